// Package export turns a fetched narrative document into a single
// self-contained static HTML page: per-cell enrichment (app invocations,
// data references), report views, page-level metadata (authors, citations),
// and the final template render.
package export

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Document is the fetched narrative content: an ordered cell list plus
// notebook-level metadata. It is read-only after fetch, except for the
// workspace id stamp applied for downstream convenience.
type Document struct {
	Cells    []Cell  `json:"cells"`
	Metadata DocMeta `json:"metadata"`
}

// DocMeta is the notebook-level metadata the exporter uses.
type DocMeta struct {
	Name    string `json:"name"`
	Creator string `json:"creator"`
	// WsID is stamped by the exporter after fetch; it is not part of the
	// stored narrative.
	WsID int `json:"wsid,omitempty"`
}

// Cell is one notebook cell: its nbformat type, raw source, and the
// kbase-specific metadata blob that drives enrichment.
type Cell struct {
	CellType string   `json:"cell_type"`
	Source   Source   `json:"source"`
	Metadata CellMeta `json:"metadata"`
}

// CellMeta carries the kbase metadata blob when present.
type CellMeta struct {
	KBase json.RawMessage `json:"kbase,omitempty"`
}

// Source is a notebook cell source, which arrives either as a single string
// or as a list of line strings.
type Source string

// UnmarshalJSON accepts both nbformat source encodings.
func (s *Source) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*s = Source(single)
		return nil
	}
	var lines []string
	if err := json.Unmarshal(data, &lines); err != nil {
		return fmt.Errorf("cell source must be a string or list of strings: %w", err)
	}
	*s = Source(strings.Join(lines, ""))
	return nil
}

// ParseDocument decodes a fetched narrative object body and stamps the
// owning workspace id.
func ParseDocument(raw json.RawMessage, wsID int) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode narrative document: %w", err)
	}
	doc.Metadata.WsID = wsID
	return &doc, nil
}
