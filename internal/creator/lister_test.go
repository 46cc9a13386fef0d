package creator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePage(t *testing.T, root string, parts ...string) {
	t.Helper()
	dir := filepath.Join(append([]string{root}, parts...)...)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0o644))
}

func TestListStatic(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "43666", "4")
	writePage(t, root, "43666", "18")
	writePage(t, root, "678", "2")

	// Layout noise that must be skipped: non-numeric dirs, an empty
	// version dir, and a stray file at the root.
	require.NoError(t, os.MkdirAll(filepath.Join(root, "lost+found"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "43666", "19"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.txt"), []byte("x"), 0o644))

	got, err := ListStatic(root, "")
	require.NoError(t, err)

	require.Len(t, got, 2)
	assert.Equal(t, []Published{
		{WsID: 43666, NarrativeVersion: 4, URL: "/43666/4/"},
		{WsID: 43666, NarrativeVersion: 18, URL: "/43666/18/"},
	}, got[43666])
	assert.Equal(t, []Published{
		{WsID: 678, NarrativeVersion: 2, URL: "/678/2/"},
	}, got[678])
}

func TestListStatic_URLPrefix(t *testing.T) {
	root := t.TempDir()
	writePage(t, root, "5", "1")

	got, err := ListStatic(root, "https://kbase.us/n")
	require.NoError(t, err)
	require.Len(t, got[5], 1)
	assert.Equal(t, "https://kbase.us/n/5/1/", got[5][0].URL)
}

func TestListStatic_MissingRoot(t *testing.T) {
	got, err := ListStatic(filepath.Join(t.TempDir(), "nope"), "")
	require.NoError(t, err)
	assert.Empty(t, got)
}
