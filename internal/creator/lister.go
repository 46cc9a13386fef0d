package creator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Published describes one published static narrative found on disk.
type Published struct {
	WsID             int    `json:"ws_id"`
	NarrativeVersion int    `json:"narrative_version"`
	URL              string `json:"url"`
}

// ListStatic walks the publish root for index.html files laid out as
// {root}/{wsid}/{version}/index.html and groups the results by workspace id.
// Directories that don't match the numeric layout are skipped.
func ListStatic(root, urlPrefix string) (map[int][]Published, error) {
	wsDirs, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return map[int][]Published{}, nil
		}
		return nil, fmt.Errorf("failed to read publish root: %w", err)
	}

	found := map[int][]Published{}
	for _, wsDir := range wsDirs {
		if !wsDir.IsDir() {
			continue
		}
		wsID, err := strconv.Atoi(wsDir.Name())
		if err != nil || wsID <= 0 {
			continue
		}
		verDirs, err := os.ReadDir(filepath.Join(root, wsDir.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read workspace directory %s: %w", wsDir.Name(), err)
		}
		for _, verDir := range verDirs {
			if !verDir.IsDir() {
				continue
			}
			ver, err := strconv.Atoi(verDir.Name())
			if err != nil || ver <= 0 {
				continue
			}
			page := filepath.Join(root, wsDir.Name(), verDir.Name(), "index.html")
			if _, err := os.Stat(page); err != nil {
				continue
			}
			found[wsID] = append(found[wsID], Published{
				WsID:             wsID,
				NarrativeVersion: ver,
				URL:              fmt.Sprintf("%s/%d/%d/", urlPrefix, wsID, ver),
			})
		}
		sort.Slice(found[wsID], func(i, j int) bool {
			return found[wsID][i].NarrativeVersion < found[wsID][j].NarrativeVersion
		})
	}
	return found, nil
}
