package kbase

import (
	"context"
	"encoding/json"
	"fmt"
)

// ObjectInfo is the workspace object_info tuple, decoded from its wire form
// (a heterogeneous 11-element array).
type ObjectInfo struct {
	ObjID     int
	Name      string
	Type      string
	SaveDate  string
	Version   int
	SavedBy   string
	WsID      int
	Workspace string
	Checksum  string
	Size      int64
	Meta      map[string]string
}

// UnmarshalJSON decodes the positional object_info array.
func (o *ObjectInfo) UnmarshalJSON(data []byte) error {
	fields := []any{
		&o.ObjID, &o.Name, &o.Type, &o.SaveDate, &o.Version,
		&o.SavedBy, &o.WsID, &o.Workspace, &o.Checksum, &o.Size, &o.Meta,
	}
	return unmarshalTuple(data, "object_info", fields)
}

// Ref renders the wsid/objid/ver reference for this object revision.
func (o *ObjectInfo) Ref() string {
	return fmt.Sprintf("%d/%d/%d", o.WsID, o.ObjID, o.Version)
}

// WorkspaceInfo is the workspace_info tuple (9-element array on the wire).
type WorkspaceInfo struct {
	ID         int
	Name       string
	Owner      string
	ModDate    string
	MaxObjID   int
	UserPerm   string
	GlobalRead string
	LockStatus string
	Meta       map[string]string
}

// UnmarshalJSON decodes the positional workspace_info array.
func (w *WorkspaceInfo) UnmarshalJSON(data []byte) error {
	fields := []any{
		&w.ID, &w.Name, &w.Owner, &w.ModDate, &w.MaxObjID,
		&w.UserPerm, &w.GlobalRead, &w.LockStatus, &w.Meta,
	}
	return unmarshalTuple(data, "workspace_info", fields)
}

func unmarshalTuple(data []byte, what string, fields []any) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to decode %s: %w", what, err)
	}
	for i, field := range fields {
		if i >= len(raw) {
			break
		}
		if string(raw[i]) == "null" {
			continue
		}
		if err := json.Unmarshal(raw[i], field); err != nil {
			return fmt.Errorf("failed to decode %s[%d]: %w", what, i, err)
		}
	}
	return nil
}

// ObjectData is one entry from a get_objects2 call: the stored object body
// plus its info tuple.
type ObjectData struct {
	Data json.RawMessage `json:"data"`
	Info ObjectInfo      `json:"info"`
}

// Workspace is a client for the KBase Workspace service.
type Workspace struct {
	rpc *rpcClient
}

// NewWorkspace builds a Workspace client for url. token may be empty for
// anonymous lookups (e.g. the public-readability check).
func NewWorkspace(url, token string) *Workspace {
	return &Workspace{rpc: newRPCClient(url, token)}
}

// GetObjects fetches full object bodies for the given references, in order.
func (w *Workspace) GetObjects(ctx context.Context, refs []string) ([]ObjectData, error) {
	objects := make([]map[string]string, len(refs))
	for i, r := range refs {
		objects[i] = map[string]string{"ref": r}
	}
	var out struct {
		Data []ObjectData `json:"data"`
	}
	err := w.rpc.call(ctx, "Workspace.get_objects2", map[string]any{"objects": objects}, &out)
	if err != nil {
		return nil, err
	}
	return out.Data, nil
}

// GetWorkspaceInfo fetches the info tuple (including metadata) for one workspace.
func (w *Workspace) GetWorkspaceInfo(ctx context.Context, wsID int) (WorkspaceInfo, error) {
	var info WorkspaceInfo
	err := w.rpc.call(ctx, "Workspace.get_workspace_info", map[string]any{"id": wsID}, &info)
	return info, err
}

// GetObjectInfo bulk-fetches info tuples for the given references,
// order-preserving. With ignoreErrors set, unresolvable references come back
// as nil entries rather than failing the whole call.
func (w *Workspace) GetObjectInfo(ctx context.Context, refs []string, ignoreErrors bool) ([]*ObjectInfo, error) {
	objects := make([]map[string]string, len(refs))
	for i, r := range refs {
		objects[i] = map[string]string{"ref": r}
	}
	params := map[string]any{"objects": objects}
	if ignoreErrors {
		params["ignoreErrors"] = 1
	}
	var out struct {
		Infos []*ObjectInfo `json:"infos"`
	}
	if err := w.rpc.call(ctx, "Workspace.get_object_info3", params, &out); err != nil {
		return nil, err
	}
	return out.Infos, nil
}

// GetPermissions fetches the user → permission map for one workspace.
func (w *Workspace) GetPermissions(ctx context.Context, wsID int) (map[string]string, error) {
	var perms map[string]string
	err := w.rpc.call(ctx, "Workspace.get_permissions", map[string]any{"id": wsID}, &perms)
	return perms, err
}

// AlterMetadata merges the given key-value pairs into the workspace's
// persisted metadata. Existing keys not named in newMeta are left alone.
func (w *Workspace) AlterMetadata(ctx context.Context, wsID int, newMeta map[string]string) error {
	params := map[string]any{
		"wsi": map[string]any{"id": wsID},
		"new": newMeta,
	}
	return w.rpc.call(ctx, "Workspace.alter_workspace_metadata", params, nil)
}

// ListObjectsParams narrows a ListObjects call. Zero values are omitted from
// the request.
type ListObjectsParams struct {
	IDs             []int
	Type            string
	MinObjectID     int
	MaxObjectID     int
	IncludeMetadata bool
}

// ListObjects lists object info tuples for the given workspaces.
func (w *Workspace) ListObjects(ctx context.Context, p ListObjectsParams) ([]ObjectInfo, error) {
	params := map[string]any{"ids": p.IDs}
	if p.Type != "" {
		params["type"] = p.Type
	}
	if p.MinObjectID > 0 {
		params["minObjectID"] = p.MinObjectID
	}
	if p.MaxObjectID > 0 {
		params["maxObjectID"] = p.MaxObjectID
	}
	if p.IncludeMetadata {
		params["includeMetadata"] = 1
	}
	var infos []ObjectInfo
	err := w.rpc.call(ctx, "Workspace.list_objects", params, &infos)
	return infos, err
}
