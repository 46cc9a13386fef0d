package creator

import (
	"go.uber.org/zap"

	"staticnarrative/internal/catalog"
	"staticnarrative/internal/config"
	"staticnarrative/internal/export"
	"staticnarrative/internal/kbase"
)

// FromConfig wires a full pipeline from deployment config. Every remote
// client is built around the caller's token.
func FromConfig(cfg *config.Config, token string, skipPermissionChecks bool, log *zap.Logger) *Creator {
	ws := kbase.NewWorkspace(cfg.WorkspaceURL, token)
	exporter := export.New(
		ws,
		kbase.NewMethodStore(cfg.NMSURL),
		kbase.NewAuth(cfg.AuthURL),
		export.Settings{
			Host:           cfg.KBaseEndpoint,
			NMSImageURL:    cfg.NMSImageURL,
			ProfilePageURL: cfg.ProfilePageURL,
			AssetsBaseURL:  cfg.AssetsBaseURL,
			AssetsVersion:  cfg.AssetsVersion,
			Token:          token,
		},
		log,
	)
	cat := catalog.NewBuilder(ws, kbase.NewNarrativeService(cfg.ServiceWizardURL, token), log)
	return New(ws, exporter, cat, Options{
		Scratch:              cfg.Scratch,
		StaticFileRoot:       cfg.StaticFileRoot,
		URLPrefix:            cfg.URLPrefix,
		SkipPermissionChecks: skipPermissionChecks,
	}, log)
}
