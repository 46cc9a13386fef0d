// Package creator runs the full export pipeline: permission checks, fetch,
// catalog build, render, publish, and the metadata stamp.
package creator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"staticnarrative/internal/catalog"
	"staticnarrative/internal/export"
	"staticnarrative/internal/kbase"
	"staticnarrative/internal/narrative"
	"staticnarrative/internal/publish"
	"staticnarrative/internal/ref"
)

// Stage names attached to pipeline failures.
const (
	StageParse       = "parse_reference"
	StagePermissions = "check_permissions"
	StageFetch       = "fetch_narrative"
	StageCatalog     = "build_catalog"
	StageRender      = "render"
	StagePublish     = "publish"
	StageMetadata    = "write_metadata"
)

// StageError tags a pipeline failure with the stage it came from. The
// underlying error is preserved for unwrapping.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err}
}

// Options carries the filesystem and permission knobs for a Creator.
type Options struct {
	// Scratch is the working directory root for in-flight exports.
	Scratch string
	// StaticFileRoot is the publish target root.
	StaticFileRoot string
	// URLPrefix prefixes returned public URLs.
	URLPrefix string
	// SkipPermissionChecks bypasses the admin and public-readability
	// checks. Intended for local/CLI use only.
	SkipPermissionChecks bool
}

// Creator orchestrates one export request end to end. Steps run strictly
// sequentially and nothing is retried; the first failure is returned with
// its stage attached.
type Creator struct {
	ws       *kbase.Workspace
	exporter *export.Exporter
	catalog  *catalog.Builder
	opts     Options
	log      *zap.Logger
}

// New wires a Creator over the remote clients.
func New(ws *kbase.Workspace, exporter *export.Exporter, cat *catalog.Builder, opts Options, log *zap.Logger) *Creator {
	return &Creator{ws: ws, exporter: exporter, catalog: cat, opts: opts, log: log}
}

// Create publishes the narrative named by refStr on behalf of userID and
// returns the public URL of the published page.
func (c *Creator) Create(ctx context.Context, userID, refStr string) (string, error) {
	r, err := ref.Parse(refStr)
	if err != nil {
		return "", stageErr(StageParse, err)
	}

	if !c.opts.SkipPermissionChecks {
		if err := narrative.VerifyAdminPrivilege(ctx, c.ws, userID, r.WsID); err != nil {
			return "", stageErr(StagePermissions, err)
		}
		if err := narrative.VerifyPublicNarrative(ctx, c.ws, r.WsID); err != nil {
			return "", stageErr(StagePermissions, err)
		}
	}

	doc, err := c.exporter.FetchDocument(ctx, r)
	if err != nil {
		return "", stageErr(StageFetch, err)
	}

	workDir, err := c.workDir(r)
	if err != nil {
		return "", stageErr(StageRender, err)
	}

	cat, err := c.catalog.Build(ctx, r.WsID, workDir)
	if err != nil {
		return "", stageErr(StageCatalog, err)
	}

	rendered, err := c.exporter.Export(ctx, doc, cat, workDir)
	if err != nil {
		return "", stageErr(StageRender, err)
	}

	url, err := publish.Publish(r, rendered, cat.Path, c.opts.StaticFileRoot, c.opts.URLPrefix)
	if err != nil {
		return "", stageErr(StagePublish, err)
	}

	if err := narrative.SaveNarrativeURL(ctx, c.ws, r, url); err != nil {
		return "", stageErr(StageMetadata, err)
	}

	c.log.Info("published static narrative",
		zap.String("ref", r.String()),
		zap.String("user", userID),
		zap.String("url", url))
	return url, nil
}

// workDir makes (or reuses) the per-export scratch directory. A given
// reference's directory is exclusively owned by one in-flight export.
func (c *Creator) workDir(r ref.NarrativeRef) (string, error) {
	dir := filepath.Join(c.opts.Scratch, fmt.Sprintf("%d_%d_%d", r.WsID, r.ObjID, r.Ver))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create working directory: %w", err)
	}
	return dir, nil
}

// ResolveNarrativeRef finds the narrative object in a workspace by a
// type-filtered listing, returning the reference of its newest version.
func ResolveNarrativeRef(ctx context.Context, ws *kbase.Workspace, wsID int) (ref.NarrativeRef, error) {
	infos, err := ws.ListObjects(ctx, kbase.ListObjectsParams{
		IDs:  []int{wsID},
		Type: "KBaseNarrative.Narrative",
	})
	if err != nil {
		return ref.NarrativeRef{}, kbase.NewWorkspaceError(err, wsID, "")
	}
	if len(infos) == 0 {
		return ref.NarrativeRef{}, fmt.Errorf("no narrative found in workspace %d", wsID)
	}
	best := infos[0]
	for _, info := range infos[1:] {
		if info.Version > best.Version {
			best = info
		}
	}
	return ref.NarrativeRef{WsID: best.WsID, ObjID: best.ObjID, Ver: best.Version}, nil
}
