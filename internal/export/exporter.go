package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"go.uber.org/zap"

	"staticnarrative/internal/catalog"
	"staticnarrative/internal/kbase"
	"staticnarrative/internal/ref"
)

// narrativeTypePattern matches the full versioned narrative type string.
var narrativeTypePattern = regexp.MustCompile(`^KBaseNarrative\.Narrative-\d+\.\d+$`)

// Settings carries the endpoint and identity configuration an Exporter
// needs. Host is the public KBase front-end origin used for outbound links.
type Settings struct {
	Host           string
	NMSImageURL    string
	ProfilePageURL string
	AssetsBaseURL  string
	AssetsVersion  string
	Token          string
}

// Exporter converts one fetched narrative into a static HTML page.
type Exporter struct {
	ws   *kbase.Workspace
	nms  *kbase.MethodStore
	auth *kbase.Auth
	log  *zap.Logger

	host           string
	nmsImageURL    string
	profilePageURL string
	assetsBaseURL  string
	assetsVersion  string
	token          string
}

// New wires an Exporter over the remote service clients.
func New(ws *kbase.Workspace, nms *kbase.MethodStore, auth *kbase.Auth, s Settings, log *zap.Logger) *Exporter {
	return &Exporter{
		ws:             ws,
		nms:            nms,
		auth:           auth,
		log:            log,
		host:           s.Host,
		nmsImageURL:    s.NMSImageURL,
		profilePageURL: s.ProfilePageURL,
		assetsBaseURL:  s.AssetsBaseURL,
		assetsVersion:  s.AssetsVersion,
		token:          s.Token,
	}
}

// FetchDocument fetches and validates the narrative object, stamping the
// owning workspace id into its metadata.
func (e *Exporter) FetchDocument(ctx context.Context, r ref.NarrativeRef) (*Document, error) {
	objs, err := e.ws.GetObjects(ctx, []string{r.String()})
	if err != nil {
		return nil, kbase.NewWorkspaceError(err, r.WsID, "")
	}
	if len(objs) == 0 {
		return nil, fmt.Errorf("workspace returned no object for %s", r)
	}
	if !narrativeTypePattern.MatchString(objs[0].Info.Type) {
		return nil, fmt.Errorf("expected a Narrative object with reference %s, got a %s", r, objs[0].Info.Type)
	}
	return ParseDocument(objs[0].Data, r.WsID)
}

// Export enriches every cell of doc, assembles the page around the data
// catalog, and writes the rendered page to outDir/index.html, returning its
// path.
func (e *Exporter) Export(ctx context.Context, doc *Document, cat *catalog.Catalog, outDir string) (string, error) {
	cells, err := e.enrichCells(ctx, doc)
	if err != nil {
		return "", err
	}
	page := e.buildPage(ctx, doc, cat, cells)

	body, err := renderPage(page, e.assetsBaseURL, e.assetsVersion)
	if err != nil {
		return "", err
	}

	outPath := filepath.Join(outDir, "index.html")
	if err := os.WriteFile(outPath, body, 0o644); err != nil {
		return "", fmt.Errorf("failed to write rendered narrative: %w", err)
	}
	e.log.Info("exported narrative",
		zap.Int("ws_id", doc.Metadata.WsID),
		zap.Int("cells", len(cells)),
		zap.String("path", outPath))
	return outPath, nil
}

// enrichCells builds the position-indexed view model list, dispatching on
// each cell's kbase type discriminator.
func (e *Exporter) enrichCells(ctx context.Context, doc *Document) ([]View, error) {
	views := make([]View, 0, len(doc.Cells))
	for i, cell := range doc.Cells {
		view, err := e.enrichCell(ctx, doc, cell, i)
		if err != nil {
			return nil, fmt.Errorf("failed to enrich cell %d: %w", i, err)
		}
		views = append(views, view)
	}
	return views, nil
}

func (e *Exporter) enrichCell(ctx context.Context, doc *Document, cell Cell, index int) (View, error) {
	meta, hasKBase, err := parseKBMeta(cell.Metadata.KBase)
	if err != nil {
		return View{}, err
	}

	if !hasKBase {
		return e.plainCellView(cell, index)
	}

	view := View{
		Kind:     meta.Type,
		Index:    index,
		Title:    meta.Attributes.Title,
		Subtitle: meta.Attributes.Subtitle,
		Icon:     cellIcon(meta, e.nmsImageURL),
	}

	switch meta.Type {
	case KindApp:
		if meta.AppCell == nil {
			view.Kind = KindOther
			return view, nil
		}
		app, err := e.processAppCell(ctx, meta)
		if err != nil {
			return View{}, err
		}
		view.App = app
		view.ExternalLink = e.host + app.CatalogURL
	case KindData:
		if r := dataCellRef(meta.DataCell, doc.Metadata.WsID); r != "" {
			view.ExternalLink = e.host + "/#dataview/" + r
		}
	case KindOutput:
		// Output cells render their title and stored widget only.
	default:
		view.Kind = KindOther
	}
	return view, nil
}

// plainCellView handles cells with no kbase metadata: markdown renders to
// HTML, code shows its source, anything else passes through untouched.
func (e *Exporter) plainCellView(cell Cell, index int) (View, error) {
	view := View{Kind: KindOther, Index: index}
	switch cell.CellType {
	case "markdown":
		body, err := renderMarkdown(string(cell.Source))
		if err != nil {
			return View{}, err
		}
		view.Kind = KindMarkdown
		view.HTML = body
	case "code":
		view.Kind = KindCode
		view.Source = string(cell.Source)
	}
	return view, nil
}
