package export

import (
	"encoding/json"
	"fmt"
	"html/template"
	"regexp"
	"strings"

	"staticnarrative/internal/icons"
)

// Cell kinds after enrichment. App, data, and output cells come from the
// kbase metadata discriminator; markdown and code are plain notebook cells;
// nonkb is the passthrough for anything unrecognized.
const (
	KindApp      = "app"
	KindData     = "data"
	KindOutput   = "output"
	KindMarkdown = "markdown"
	KindCode     = "code"
	KindOther    = "nonkb"
)

// View is the enriched, render-ready model for one cell.
type View struct {
	Kind         string
	Index        int
	Title        string
	Subtitle     string
	Icon         icons.Icon
	ExternalLink string

	// App is set for app cells only.
	App *AppView
	// HTML is the rendered body for markdown cells.
	HTML template.HTML
	// Source is the verbatim source shown for code cells.
	Source string
}

// kbMeta mirrors the kbase blob inside a cell's metadata.
type kbMeta struct {
	Type       string        `json:"type"`
	Attributes kbAttributes  `json:"attributes"`
	AppCell    *appCellMeta  `json:"appCell"`
	DataCell   *dataCellMeta `json:"dataCell"`
}

type kbAttributes struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Info     struct {
		URL string `json:"url"`
	} `json:"info"`
}

type dataCellMeta struct {
	UPAs       map[string]string `json:"upas"`
	ObjectInfo *dataObjectInfo   `json:"objectInfo"`
}

// dataObjectInfo is the embedded object-info block older data cells carry.
// Both historical workspace-id spellings appear in the wild.
type dataObjectInfo struct {
	Ref      string `json:"ref"`
	WsID     int    `json:"ws_id"`
	WsIDAlt  int    `json:"wsid"`
	ID       int    `json:"id"`
	Version  int    `json:"version"`
	TypeName string `json:"typeName"`
}

var upaPattern = regexp.MustCompile(`^\d+/\d+/\d+$`)

// serializedUPAPattern matches the workspace-relative form stored in cell
// metadata, e.g. "[43666]/7/1".
var serializedUPAPattern = regexp.MustCompile(`^\[(\d+)\](/\d+){1,2}$`)

// isUPA reports whether s looks like a full wsid/objid/ver reference.
func isUPA(s string) bool {
	return upaPattern.MatchString(s)
}

// deserializeUPA rewrites a workspace-relative UPA against the document's
// own workspace id. A plain UPA passes through unchanged; anything else
// returns "".
func deserializeUPA(s string, wsID int) string {
	if isUPA(s) {
		return s
	}
	m := serializedUPAPattern.FindStringSubmatch(s)
	if m == nil {
		return ""
	}
	rest := s[strings.Index(s, "]")+1:]
	return fmt.Sprintf("%d%s", wsID, rest)
}

// dataCellRef resolves the object reference a data cell points at, or ""
// when neither the upas list nor the embedded object info yields one.
func dataCellRef(meta *dataCellMeta, wsID int) string {
	if meta == nil {
		return ""
	}
	if len(meta.UPAs) > 0 && wsID > 0 {
		// Any entry serves; the upas map is keyed by widget param name.
		for _, u := range meta.UPAs {
			if ref := deserializeUPA(u, wsID); ref != "" {
				return ref
			}
		}
	}
	if info := meta.ObjectInfo; info != nil {
		if info.Ref != "" {
			return info.Ref
		}
		ws := info.WsID
		if ws == 0 {
			ws = info.WsIDAlt
		}
		if ws != 0 && info.ID != 0 {
			ref := fmt.Sprintf("%d/%d", ws, info.ID)
			if info.Version != 0 {
				ref = fmt.Sprintf("%s/%d", ref, info.Version)
			}
			return ref
		}
	}
	return ""
}

// cellIcon resolves the icon for a cell from its kbase metadata.
func cellIcon(meta *kbMeta, nmsImageURL string) icons.Icon {
	switch meta.Type {
	case KindData:
		typeName := ""
		if meta.DataCell != nil && meta.DataCell.ObjectInfo != nil {
			typeName = meta.DataCell.ObjectInfo.TypeName
		}
		return icons.ForData(typeName)
	case KindOutput:
		return icons.ForOutput()
	case KindApp:
		iconURL := ""
		if meta.AppCell != nil && meta.AppCell.App.Spec.Info.Icon.URL != "" {
			iconURL = nmsImageURL + meta.AppCell.App.Spec.Info.Icon.URL
		}
		return icons.ForApp(iconURL)
	default:
		return icons.ForUnknown()
	}
}

// parseKBMeta decodes the kbase metadata blob; ok is false when the cell has
// no kbase metadata at all.
func parseKBMeta(raw json.RawMessage) (*kbMeta, bool, error) {
	if len(raw) == 0 {
		return nil, false, nil
	}
	var meta kbMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("failed to decode kbase cell metadata: %w", err)
	}
	return &meta, true, nil
}
