// Package ref handles versioned narrative object references.
//
// A reference is the "wsid/objid/ver" triple that pins one immutable revision
// of a narrative object in the workspace service. All three components are
// required here; this package never tries to infer a narrative object id from
// workspace metadata.
package ref

import (
	"fmt"
	"strconv"
	"strings"
)

// NarrativeRef identifies one immutable revision of a narrative object.
type NarrativeRef struct {
	WsID  int
	ObjID int
	Ver   int
}

// Parse creates a NarrativeRef from a "wsid/objid/ver" string. Each segment
// must be a positive integer; the error message names the offending segment.
func Parse(s string) (NarrativeRef, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return NarrativeRef{}, fmt.Errorf("a narrative ref must be of the format wsid/objid/ver, not %q", s)
	}
	wsID, err := parseComponent(parts[0])
	if err != nil {
		return NarrativeRef{}, fmt.Errorf("the narrative workspace id must be an integer > 0, not %q", parts[0])
	}
	objID, err := parseComponent(parts[1])
	if err != nil {
		return NarrativeRef{}, fmt.Errorf("the narrative object id must be an integer > 0, not %q", parts[1])
	}
	ver, err := parseComponent(parts[2])
	if err != nil {
		return NarrativeRef{}, fmt.Errorf("the narrative version must be an integer > 0, not %q", parts[2])
	}
	return NarrativeRef{WsID: wsID, ObjID: objID, Ver: ver}, nil
}

func parseComponent(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be > 0")
	}
	return n, nil
}

// String renders the reference in its canonical wsid/objid/ver form.
func (r NarrativeRef) String() string {
	return fmt.Sprintf("%d/%d/%d", r.WsID, r.ObjID, r.Ver)
}

// Equal reports component-wise equality.
func (r NarrativeRef) Equal(other NarrativeRef) bool {
	return r.WsID == other.WsID && r.ObjID == other.ObjID && r.Ver == other.Ver
}
