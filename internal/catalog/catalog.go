// Package catalog builds the data catalog published alongside a static
// narrative: every data object owned by (or reachable as a set within) the
// narrative's workspace, grouped by type, with display icons, serialized to
// the data.json file the page's data browser reads.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"staticnarrative/internal/icons"
	"staticnarrative/internal/kbase"
)

// narrativeType is the module-qualified type of the narrative object itself;
// the narrative never lists itself in its own catalog.
const narrativeType = "KBaseNarrative.Narrative"

// Entry is one catalog line. On the wire it is the positional
// [ref, name, type, save date, metadata] array the data browser expects.
type Entry struct {
	Ref      string
	Name     string
	Type     string
	SaveDate string
	Meta     map[string]string
}

// MarshalJSON writes the positional array form.
func (e Entry) MarshalJSON() ([]byte, error) {
	meta := e.Meta
	if meta == nil {
		meta = map[string]string{}
	}
	return json.Marshal([]any{e.Ref, e.Name, e.Type, e.SaveDate, meta})
}

// UnmarshalJSON reads the positional array form.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	fields := []any{&e.Ref, &e.Name, &e.Type, &e.SaveDate, &e.Meta}
	for i, f := range fields {
		if i >= len(raw) || string(raw[i]) == "null" {
			continue
		}
		if err := json.Unmarshal(raw[i], f); err != nil {
			return fmt.Errorf("failed to decode catalog entry[%d]: %w", i, err)
		}
	}
	return nil
}

// TypeInfo aggregates one short type name in the catalog.
type TypeInfo struct {
	Count int        `json:"count"`
	Icon  icons.Icon `json:"icon"`
}

// Catalog is the built data catalog plus the path of its serialized form.
type Catalog struct {
	Entries []Entry             `json:"data"`
	Types   map[string]TypeInfo `json:"types"`
	Path    string              `json:"-"`
}

// Builder enumerates workspace data and produces catalogs.
type Builder struct {
	ws  *kbase.Workspace
	ns  *kbase.NarrativeService
	log *zap.Logger
}

// NewBuilder wires a Builder over the workspace and narrative service clients.
func NewBuilder(ws *kbase.Workspace, ns *kbase.NarrativeService, log *zap.Logger) *Builder {
	return &Builder{ws: ws, ns: ns, log: log}
}

// Build enumerates every data object in wsID (sets expanded, narrative
// excluded, de-duplicated on reference), groups by short type name, sorts
// entries case-insensitively by name, and writes the result to
// outDir/data.json. Any remote failure is fatal; no partial catalog is
// written.
func (b *Builder) Build(ctx context.Context, wsID int, outDir string) (*Catalog, error) {
	objects, err := b.listObjectsWithSets(ctx, wsID)
	if err != nil {
		return nil, err
	}

	cat := &Catalog{Types: map[string]TypeInfo{}}
	for _, info := range objects {
		objType := strings.SplitN(info.Type, "-", 2)[0]
		if objType == narrativeType {
			continue
		}
		shortName := objType[strings.LastIndex(objType, ".")+1:]
		ti, ok := cat.Types[shortName]
		if !ok {
			ti = TypeInfo{Icon: icons.ForData(shortName)}
		}
		ti.Count++
		cat.Types[shortName] = ti

		cat.Entries = append(cat.Entries, Entry{
			Ref:      info.Ref(),
			Name:     info.Name,
			Type:     info.Type,
			SaveDate: info.SaveDate,
			Meta:     info.Meta,
		})
	}

	sort.SliceStable(cat.Entries, func(i, j int) bool {
		return strings.ToLower(cat.Entries[i].Name) < strings.ToLower(cat.Entries[j].Name)
	})

	cat.Path = filepath.Join(outDir, "data.json")
	serialized, err := json.Marshal(cat)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize data catalog: %w", err)
	}
	if err := os.WriteFile(cat.Path, serialized, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write data catalog: %w", err)
	}
	b.log.Info("built data catalog",
		zap.Int("ws_id", wsID),
		zap.Int("objects", len(cat.Entries)),
		zap.Int("types", len(cat.Types)))
	return cat, nil
}

// listObjectsWithSets returns the info tuple of every object in the
// workspace: set objects first (with their members recorded), then every
// bare object not already seen as a set, de-duplicated on reference.
func (b *Builder) listObjectsWithSets(ctx context.Context, wsID int) ([]kbase.ObjectInfo, error) {
	sets, err := b.ns.ListSets(ctx, wsID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list sets in workspace %d: %w", wsID, err)
	}

	seen := map[string]bool{}
	var objects []kbase.ObjectInfo
	for _, set := range sets {
		ref := set.Ref
		if ref == "" {
			ref = set.Info.Ref()
		}
		if seen[ref] {
			continue
		}
		seen[ref] = true
		objects = append(objects, set.Info)
	}

	wsInfo, err := b.ws.GetWorkspaceInfo(ctx, wsID)
	if err != nil {
		return nil, kbase.NewWorkspaceError(err, wsID, "")
	}
	iter := newListObjectsIterator(b.ws, wsInfo, true)
	for {
		info, ok, err := iter.next(ctx)
		if err != nil {
			return nil, kbase.NewWorkspaceError(err, wsID, "")
		}
		if !ok {
			break
		}
		if seen[info.Ref()] {
			continue
		}
		seen[info.Ref()] = true
		objects = append(objects, info)
	}
	return objects, nil
}
