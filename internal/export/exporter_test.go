package export

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"staticnarrative/internal/catalog"
	"staticnarrative/internal/kbase"
	"staticnarrative/internal/ref"
)

// fakeEnv backs an Exporter with one HTTP server impersonating the
// workspace, the method store, and the auth service. RPC handlers are keyed
// on full method name; auth lookups answer from the users map.
type fakeEnv struct {
	t     *testing.T
	rpc   map[string]func(params []json.RawMessage) any
	users map[string]string
	srv   *httptest.Server
}

func newFakeEnv(t *testing.T) *fakeEnv {
	t.Helper()
	f := &fakeEnv{
		t:     t,
		rpc:   map[string]func([]json.RawMessage) any{},
		users: map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Auth display-name endpoint.
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(f.users)
			return
		}
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		handler, ok := f.rpc[req.Method]
		if !ok {
			t.Errorf("unexpected method %q", req.Method)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{handler(req.Params)}})
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeEnv) exporter() *Exporter {
	return New(
		kbase.NewWorkspace(f.srv.URL, "fake-token"),
		kbase.NewMethodStore(f.srv.URL),
		kbase.NewAuth(f.srv.URL),
		Settings{
			Host:           "https://narrative.kbase.us",
			NMSImageURL:    "https://kbase.us/services/nms/img/",
			ProfilePageURL: "https://narrative.kbase.us/#people/",
			AssetsBaseURL:  "https://kbase.us/static-assets",
			AssetsVersion:  "0.4.5",
			Token:          "fake-token",
		},
		zaptest.NewLogger(f.t),
	)
}

func objectInfoTuple(objID int, name, objType string, version, wsID int) json.RawMessage {
	info, _ := json.Marshal([]any{
		objID, name, objType, "2020-08-17T20:32:01+0000", version,
		"someuser", wsID, "ws_name", "md5", 123, nil,
	})
	return info
}

func TestFetchDocument(t *testing.T) {
	f := newFakeEnv(t)
	f.rpc["Workspace.get_objects2"] = func(params []json.RawMessage) any {
		var p struct {
			Objects []struct {
				Ref string `json:"ref"`
			} `json:"objects"`
		}
		require.NoError(t, json.Unmarshal(params[0], &p))
		require.Len(t, p.Objects, 1)
		assert.Equal(t, "43666/1/18", p.Objects[0].Ref)
		return map[string]any{"data": []map[string]any{{
			"data": map[string]any{
				"cells":    []map[string]any{{"cell_type": "markdown", "source": "# Title"}},
				"metadata": map[string]any{"name": "Test Narrative", "creator": "someuser"},
			},
			"info": json.RawMessage(objectInfoTuple(1, "narr", "KBaseNarrative.Narrative-4.0", 18, 43666)),
		}}}
	}

	doc, err := f.exporter().FetchDocument(context.Background(), ref.NarrativeRef{WsID: 43666, ObjID: 1, Ver: 18})
	require.NoError(t, err)
	assert.Equal(t, "Test Narrative", doc.Metadata.Name)
	assert.Equal(t, 43666, doc.Metadata.WsID)
	require.Len(t, doc.Cells, 1)
}

func TestFetchDocument_WrongType(t *testing.T) {
	f := newFakeEnv(t)
	f.rpc["Workspace.get_objects2"] = func([]json.RawMessage) any {
		return map[string]any{"data": []map[string]any{{
			"data": map[string]any{},
			"info": json.RawMessage(objectInfoTuple(1, "genome", "KBaseGenomes.Genome-10.2", 1, 43666)),
		}}}
	}

	_, err := f.exporter().FetchDocument(context.Background(), ref.NarrativeRef{WsID: 43666, ObjID: 1, Ver: 1})
	assert.EqualError(t, err, "expected a Narrative object with reference 43666/1/1, got a KBaseGenomes.Genome-10.2")
}

func TestExport_WritesSelfContainedPage(t *testing.T) {
	f := newFakeEnv(t)
	f.users["someuser"] = "Some User"
	f.rpc["Workspace.get_workspace_info"] = func([]json.RawMessage) any {
		return json.RawMessage(`[43666, "ws", "someuser", "2020-08-17T20:32:01+0000",` +
			` 9, "a", "r", "unlocked", {"narrative": "1"}]`)
	}
	f.rpc["Workspace.get_permissions"] = func([]json.RawMessage) any {
		return map[string]string{"someuser": "a", "helper": "w", "*": "r"}
	}
	f.rpc["NarrativeMethodStore.get_method_full_info"] = func(params []json.RawMessage) any {
		var p struct {
			Tag string   `json:"tag"`
			IDs []string `json:"ids"`
		}
		require.NoError(t, json.Unmarshal(params[0], &p))
		assert.Equal(t, "release", p.Tag)
		return []map[string]any{{
			"id":   "MegaHit/run_megahit",
			"name": "Assemble Reads with MEGAHIT",
			"publications": []map[string]string{{
				"display-text": "Li, D. et al. MEGAHIT. Bioinformatics (2015).",
				"link":         "https://doi.org/10.1093/bioinformatics/btv033",
			}},
		}}
	}

	doc := &Document{
		Metadata: DocMeta{Name: "Assembly Walkthrough", Creator: "someuser", WsID: 43666},
		Cells: []Cell{
			{CellType: "markdown", Source: "# Assembly\n\nSome **notes**."},
			{CellType: "code", Metadata: CellMeta{KBase: json.RawMessage(`{
				"type": "app",
				"attributes": {"title": "Assemble Reads with MEGAHIT", "subtitle": "v1.2.9",
					"info": {"url": "/#appcatalog/app/MegaHit/run_megahit/release"}},
				"appCell": {
					"app": {"id": "MegaHit/run_megahit", "tag": "release", "version": "1.2.9"},
					"params": {}
				}
			}`)}},
			{CellType: "code", Metadata: CellMeta{KBase: json.RawMessage(`{
				"type": "data",
				"attributes": {"title": "assembly_obj"},
				"dataCell": {"objectInfo": {"ref": "43666/7/1", "typeName": "Assembly"}}
			}`)}},
		},
	}
	cat := &catalog.Catalog{
		Entries: []catalog.Entry{{Ref: "43666/7/1", Name: "assembly_obj", Type: "KBaseGenomeAnnotations.Assembly-6.0"}},
		Types:   map[string]catalog.TypeInfo{"Assembly": {Count: 1}},
	}

	outDir := t.TempDir()
	path, err := f.exporter().Export(context.Background(), doc, cat, outDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(outDir, "index.html"), path)

	body, err := os.ReadFile(path)
	require.NoError(t, err)
	page := string(body)

	assert.Contains(t, page, "Assembly Walkthrough")
	assert.Contains(t, page, "<strong>notes</strong>")
	assert.Contains(t, page, "Some User")
	assert.Contains(t, page, "https://narrative.kbase.us/#people/helper")
	assert.Contains(t, page, "https://narrative.kbase.us/narrative/43666")
	assert.Contains(t, page, "Released Apps")
	assert.Contains(t, page, "MEGAHIT")
	assert.Contains(t, page, "https://narrative.kbase.us/#dataview/43666/7/1")
	assert.Contains(t, page, "staticNarrativeBundle.js")
	assert.Contains(t, page, "@font-face")
	// The author list excludes the public principal.
	assert.NotContains(t, page, `#people/*`)
}

func TestResolveAuthors_NameLookupFallsBack(t *testing.T) {
	f := newFakeEnv(t)
	f.rpc["Workspace.get_workspace_info"] = func([]json.RawMessage) any {
		return json.RawMessage(`[43666, "ws", "owner_id", "2020-08-17T20:32:01+0000",` +
			` 9, "a", "r", "unlocked", null]`)
	}
	f.rpc["Workspace.get_permissions"] = func([]json.RawMessage) any {
		return map[string]string{"owner_id": "a", "reader": "r", "writer": "w"}
	}

	authors := f.exporter().resolveAuthors(context.Background(), 43666)
	require.Len(t, authors, 2)
	// Owner first, then writers sorted; names fall back to raw ids when the
	// auth service has nothing for them.
	assert.Equal(t, Author{ID: "owner_id", Name: "owner_id", Path: "https://narrative.kbase.us/#people/owner_id"}, authors[0])
	assert.Equal(t, "writer", authors[1].ID)
}

func TestEnrichCell_UnknownKBaseType(t *testing.T) {
	f := newFakeEnv(t)
	doc := &Document{Metadata: DocMeta{WsID: 43666}}
	view, err := f.exporter().enrichCell(context.Background(), doc, Cell{
		CellType: "code",
		Metadata: CellMeta{KBase: json.RawMessage(`{"type": "editor", "attributes": {"title": "An editor"}}`)},
	}, 0)
	require.NoError(t, err)
	assert.Equal(t, KindOther, view.Kind)
	assert.Equal(t, "An editor", view.Title)
}

func TestEnrichCells_IndexesPreserved(t *testing.T) {
	f := newFakeEnv(t)
	doc := &Document{
		Metadata: DocMeta{WsID: 43666},
		Cells: []Cell{
			{CellType: "markdown", Source: "one"},
			{CellType: "code", Source: "print('two')"},
		},
	}
	views, err := f.exporter().enrichCells(context.Background(), doc)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, KindMarkdown, views[0].Kind)
	assert.Equal(t, 0, views[0].Index)
	assert.Equal(t, KindCode, views[1].Kind)
	assert.Equal(t, "print('two')", views[1].Source)
	assert.Equal(t, 1, views[1].Index)
}

func TestCollectCitations_TagFailureTolerated(t *testing.T) {
	f := newFakeEnv(t)
	called := false
	f.rpc["NarrativeMethodStore.get_method_full_info"] = func(params []json.RawMessage) any {
		var p struct {
			Tag string `json:"tag"`
		}
		require.NoError(t, json.Unmarshal(params[0], &p))
		if p.Tag == "beta" {
			called = true
			return []map[string]any{{"id": "B/app", "name": "Beta App"}}
		}
		// Malformed reply shape makes this tag's lookup fail decode.
		return "oops"
	}

	doc := &Document{Cells: []Cell{
		{Metadata: CellMeta{KBase: json.RawMessage(`{"type": "app",
			"appCell": {"app": {"id": "R/app", "tag": "release"}}}`)}},
		{Metadata: CellMeta{KBase: json.RawMessage(`{"type": "app",
			"appCell": {"app": {"id": "B/app", "tag": "beta"}}}`)}},
	}}

	groups, names := f.exporter().collectCitations(context.Background(), doc)
	assert.True(t, called)
	// Beta App has no publications, so no citation group appears, but its
	// name still feeds the page metadata.
	assert.Empty(t, groups)
	assert.Equal(t, []string{"Beta App"}, names)
}

func TestMetaDescriptionListsApps(t *testing.T) {
	f := newFakeEnv(t)
	f.rpc["Workspace.get_workspace_info"] = func([]json.RawMessage) any {
		return json.RawMessage(`[5, "ws", "owner", "2020-08-17T20:32:01+0000", 1, "a", "r", "unlocked", null]`)
	}
	f.rpc["Workspace.get_permissions"] = func([]json.RawMessage) any {
		return map[string]string{"owner": "a"}
	}
	f.rpc["NarrativeMethodStore.get_method_full_info"] = func([]json.RawMessage) any {
		return []map[string]any{{"id": "A/one", "name": "App One"}}
	}

	doc := &Document{
		Metadata: DocMeta{Name: "N", WsID: 5},
		Cells: []Cell{{Metadata: CellMeta{KBase: json.RawMessage(`{"type": "app",
			"appCell": {"app": {"id": "A/one", "tag": "release"}}}`)}}},
	}
	page := f.exporter().buildPage(context.Background(), doc, &catalog.Catalog{
		Types: map[string]catalog.TypeInfo{"Genome": {Count: 2}},
	}, nil)

	assert.Equal(t, "A KBase Narrative that uses these Apps: App One", page.MetaDescription)
	assert.True(t, strings.HasPrefix(page.MetaKeywords, "App One"))
	assert.Contains(t, page.MetaKeywords, "Genome")
}
