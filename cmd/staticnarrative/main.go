// Command staticnarrative publishes KBase Narratives as static HTML pages,
// either as a long-running JSON-RPC service or one-shot from the command
// line.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"staticnarrative/internal/config"
	"staticnarrative/internal/creator"
	"staticnarrative/internal/kbase"
	"staticnarrative/internal/logging"
	"staticnarrative/internal/narrative"
	"staticnarrative/internal/server"
)

var (
	cfgPath string
	verbose bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "staticnarrative",
	Short: "Publish KBase Narratives as static HTML pages",
	Long: `staticnarrative converts a saved Narrative into a self-contained
static HTML page plus a data catalog and publishes both under a versioned
URL. Run "serve" for the JSON-RPC service, or "create" for a one-shot
export.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.Load(cfgPath)
		} else {
			cfg, err = config.LoadDefault()
		}
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}
		logger, err = logging.New(cfg.Logging)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the JSON-RPC service",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return server.New(cfg, logger).Run(ctx)
	},
}

var (
	createToken     string
	createUser      string
	createRef       string
	createWsID      int
	createOutDir    string
	skipPermissions bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Export and publish one narrative",
	Long: `Exports one narrative and publishes it under the static file root.
The narrative is named either by an explicit wsid/objid/ver reference or by
a bare workspace id, which is resolved to the newest narrative it contains.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		token := resolveToken(createToken)
		if token == "" {
			return fmt.Errorf("an auth token is required (--token or KB_AUTH_TOKEN)")
		}
		if createOutDir != "" {
			cfg.StaticFileRoot = createOutDir
		}

		user := createUser
		if user == "" {
			var err error
			if user, err = kbase.NewAuth(cfg.AuthURL).WhoAmI(ctx, token); err != nil {
				return fmt.Errorf("failed to resolve user from token: %w", err)
			}
		}

		refStr := createRef
		if refStr == "" {
			if createWsID <= 0 {
				return fmt.Errorf("either --ref or --ws is required")
			}
			ws := kbase.NewWorkspace(cfg.WorkspaceURL, token)
			r, err := creator.ResolveNarrativeRef(ctx, ws, createWsID)
			if err != nil {
				return err
			}
			refStr = r.String()
		}

		url, err := creator.FromConfig(cfg, token, skipPermissions, logger).Create(ctx, user, refStr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

var infoWsID int

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the published static narrative for a workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		token := resolveToken(createToken)
		ws := kbase.NewWorkspace(cfg.WorkspaceURL, token)
		info, err := narrative.GetStaticInfo(cmd.Context(), ws, infoWsID)
		if err != nil {
			return err
		}
		return printJSON(cmd, info)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List every published static narrative under the static file root",
	RunE: func(cmd *cobra.Command, args []string) error {
		listed, err := creator.ListStatic(cfg.StaticFileRoot, cfg.URLPrefix)
		if err != nil {
			return err
		}
		return printJSON(cmd, listed)
	},
}

func resolveToken(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv("KB_AUTH_TOKEN")
}

func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to the deployment config (default $SN_DEPLOYMENT_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	createCmd.Flags().StringVar(&createToken, "token", "", "auth token (default $KB_AUTH_TOKEN)")
	createCmd.Flags().StringVar(&createUser, "user", "", "user id to run the export as (default: resolved from the token)")
	createCmd.Flags().StringVar(&createRef, "ref", "", "narrative reference as wsid/objid/ver")
	createCmd.Flags().IntVar(&createWsID, "ws", 0, "workspace id; its newest narrative is exported")
	createCmd.Flags().StringVar(&createOutDir, "outdir", "", "publish root override")
	createCmd.Flags().BoolVar(&skipPermissions, "skip-permissions-checks", false, "skip the admin and public-readability checks")

	infoCmd.Flags().StringVar(&createToken, "token", "", "auth token (default $KB_AUTH_TOKEN)")
	infoCmd.Flags().IntVar(&infoWsID, "ws", 0, "workspace id")
	_ = infoCmd.MarkFlagRequired("ws")

	rootCmd.AddCommand(serveCmd, createCmd, infoCmd, listCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
