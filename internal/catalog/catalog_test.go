package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"staticnarrative/internal/kbase"
)

func objInfo(objID int, name, objType string, ver, wsID int) []any {
	return []any{objID, name, objType, "2019-08-26T17:33:56+0000", ver,
		"someuser", wsID, "someuser:narrative", "md5", 123, map[string]string{}}
}

// fakeServices spins up a JSON-RPC endpoint that serves both the workspace
// and narrative service methods, plus a service wizard pointing back at it.
func fakeServices(t *testing.T, sets []any, listed []any, maxObjID int) (wsURL, wizardURL string) {
	t.Helper()
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string            `json:"method"`
			Params []json.RawMessage `json:"params"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		var result any
		switch req.Method {
		case "ServiceWizard.get_service_status":
			result = map[string]any{"url": srv.URL}
		case "NarrativeService.list_sets":
			result = map[string]any{"sets": sets}
		case "Workspace.get_workspace_info":
			result = []any{43666, "someuser:narrative", "someuser", "2019-08-26T17:33:56+0000",
				maxObjID, "a", "r", "unlocked", map[string]string{}}
		case "Workspace.list_objects":
			var p struct {
				MinObjectID int `json:"minObjectID"`
			}
			require.NoError(t, json.Unmarshal(req.Params[0], &p))
			if p.MinObjectID > 1 {
				result = []any{}
			} else {
				result = listed
			}
		default:
			t.Errorf("unexpected method %q", req.Method)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"result": []any{result}})
	}))
	t.Cleanup(srv.Close)
	return srv.URL, srv.URL
}

func TestBuild_ExcludesNarrativeAndDeduplicates(t *testing.T) {
	readsSet := objInfo(8, "all_the_reads", "KBaseSets.ReadsSet-1.2", 1, 43666)
	sets := []any{map[string]any{
		"ref":  "43666/8/1",
		"info": readsSet,
		"items": []any{
			map[string]any{"ref": "43666/2/1", "info": objInfo(2, "reads_one", "KBaseFile.PairedEndLibrary-2.0", 1, 43666)},
		},
	}}
	listed := []any{
		objInfo(1, "narrative_1564507007662", "KBaseNarrative.Narrative-4.0", 18, 43666),
		objInfo(2, "reads_one", "KBaseFile.PairedEndLibrary-2.0", 1, 43666),
		objInfo(6, "Zebra_genome", "KBaseGenomes.Genome-10.2", 1, 43666),
		objInfo(7, "apple_genome", "KBaseGenomes.Genome-10.2", 1, 43666),
		// the set shows up again in the bare listing; must not duplicate
		objInfo(8, "all_the_reads", "KBaseSets.ReadsSet-1.2", 1, 43666),
	}
	wsURL, wizardURL := fakeServices(t, sets, listed, 8)

	ws := kbase.NewWorkspace(wsURL, "token")
	ns := kbase.NewNarrativeService(wizardURL, "token")
	outDir := t.TempDir()

	cat, err := NewBuilder(ws, ns, zaptest.NewLogger(t)).Build(context.Background(), 43666, outDir)
	require.NoError(t, err)

	refs := make([]string, 0, len(cat.Entries))
	for _, e := range cat.Entries {
		refs = append(refs, e.Ref)
	}
	assert.NotContains(t, refs, "43666/1/18", "the narrative itself is excluded")
	assert.Equal(t, 4, len(refs))

	counts := map[string]bool{}
	for _, r := range refs {
		assert.False(t, counts[r], "duplicate ref %s", r)
		counts[r] = true
	}

	assert.Equal(t, 2, cat.Types["Genome"].Count)
	assert.Equal(t, 1, cat.Types["ReadsSet"].Count)
	assert.Equal(t, 1, cat.Types["PairedEndLibrary"].Count)
	assert.NotContains(t, cat.Types, "Narrative")
	assert.Equal(t, "icon icon-genome", cat.Types["Genome"].Icon.Icon)
}

func TestBuild_SortsEntriesCaseInsensitively(t *testing.T) {
	listed := []any{
		objInfo(6, "Zebra_genome", "KBaseGenomes.Genome-10.2", 1, 43666),
		objInfo(7, "apple_genome", "KBaseGenomes.Genome-10.2", 1, 43666),
		objInfo(9, "Mango_media", "KBaseBiochem.Media-1.0", 1, 43666),
	}
	wsURL, wizardURL := fakeServices(t, []any{}, listed, 9)

	ws := kbase.NewWorkspace(wsURL, "token")
	ns := kbase.NewNarrativeService(wizardURL, "token")

	cat, err := NewBuilder(ws, ns, zaptest.NewLogger(t)).Build(context.Background(), 43666, t.TempDir())
	require.NoError(t, err)

	names := make([]string, 0, len(cat.Entries))
	for _, e := range cat.Entries {
		names = append(names, e.Name)
	}
	assert.Equal(t, []string{"apple_genome", "Mango_media", "Zebra_genome"}, names)
}

func TestBuild_WritesDataJSON(t *testing.T) {
	listed := []any{objInfo(6, "some_genome", "KBaseGenomes.Genome-10.2", 1, 43666)}
	wsURL, wizardURL := fakeServices(t, []any{}, listed, 6)

	ws := kbase.NewWorkspace(wsURL, "token")
	ns := kbase.NewNarrativeService(wizardURL, "token")
	outDir := t.TempDir()

	cat, err := NewBuilder(ws, ns, zaptest.NewLogger(t)).Build(context.Background(), 43666, outDir)
	require.NoError(t, err)

	raw, err := os.ReadFile(cat.Path)
	require.NoError(t, err)

	var decoded Catalog
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, "43666/6/1", decoded.Entries[0].Ref)
	assert.Equal(t, "some_genome", decoded.Entries[0].Name)
	assert.Equal(t, "KBaseGenomes.Genome-10.2", decoded.Entries[0].Type)
	assert.Equal(t, 1, decoded.Types["Genome"].Count)
}
