// Package publish copies a finished static narrative into the public web
// root and derives its public URL.
package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"staticnarrative/internal/ref"
)

// MissingArtifactError means publish was attempted before the rendered page
// existed; that is a pipeline ordering bug, never a remote condition.
type MissingArtifactError struct {
	Path string
}

func (e *MissingArtifactError) Error() string {
	return fmt.Sprintf("static narrative doesn't seem to exist at path %s", e.Path)
}

// Publish copies the rendered page and its data catalog into the
// version-addressed directory {root}/{wsid}/{ver}/ as index.html and
// data.json, overwriting any earlier publication at that version, and
// returns the public URL "{prefix}/{wsid}/{ver}/".
//
// Publication is idempotent but not mutually exclusive: two concurrent
// publishes of the same reference race on the same directory and the last
// writer wins, which is accepted for this human-triggered workload.
func Publish(r ref.NarrativeRef, renderedPath, catalogPath, root, urlPrefix string) (string, error) {
	if _, err := os.Stat(renderedPath); err != nil {
		return "", &MissingArtifactError{Path: renderedPath}
	}

	destDir := filepath.Join(root, strconv.Itoa(r.WsID), strconv.Itoa(r.Ver))
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create publish directory: %w", err)
	}

	if err := copyFile(renderedPath, filepath.Join(destDir, "index.html")); err != nil {
		return "", err
	}
	if err := copyFile(catalogPath, filepath.Join(destDir, "data.json")); err != nil {
		return "", err
	}

	return fmt.Sprintf("%s/%d/%d/", urlPrefix, r.WsID, r.Ver), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
