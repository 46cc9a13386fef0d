// Package narrative holds workspace-level narrative concerns: permission
// verification, the persisted publication pointer, and its lookup.
package narrative

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"staticnarrative/internal/kbase"
	"staticnarrative/internal/ref"
)

// Metadata keys of the publication pointer stamped onto the workspace.
const (
	MetaURL   = "static_narrative"
	MetaVer   = "static_narrative_ver"
	MetaSaved = "static_narrative_saved"
)

// ForbiddenError means the caller or the workspace fails a permission
// requirement for creating a static narrative.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

// VerifyAdminPrivilege ensures userID holds admin ('a') rights on wsID.
// Creating a static narrative writes workspace metadata, which requires
// admin.
func VerifyAdminPrivilege(ctx context.Context, ws *kbase.Workspace, userID string, wsID int) error {
	perms, err := ws.GetPermissions(ctx, wsID)
	if err != nil {
		return kbase.NewWorkspaceError(err, wsID, "")
	}
	if perms[userID] != "a" {
		return &ForbiddenError{
			Message: fmt.Sprintf("User %s does not have admin rights on workspace %d", userID, wsID),
		}
	}
	return nil
}

// VerifyPublicNarrative ensures the workspace is publicly readable (the '*'
// principal holds at least read rights). Static narratives are only
// permitted on public narratives.
func VerifyPublicNarrative(ctx context.Context, ws *kbase.Workspace, wsID int) error {
	perms, err := ws.GetPermissions(ctx, wsID)
	if err != nil {
		return kbase.NewWorkspaceError(err, wsID, "")
	}
	switch perms["*"] {
	case "r", "w", "a":
		return nil
	}
	return &ForbiddenError{
		Message: fmt.Sprintf("Workspace %d must be publicly readable to make a Static Narrative", wsID),
	}
}

// SaveNarrativeURL stamps the publication pointer onto the workspace
// metadata: the published url, the published version, and the save time in
// ms since epoch. Existing pointers are overwritten.
func SaveNarrativeURL(ctx context.Context, ws *kbase.Workspace, r ref.NarrativeRef, url string) error {
	newMeta := map[string]string{
		MetaURL:   url,
		MetaVer:   strconv.Itoa(r.Ver),
		MetaSaved: strconv.FormatInt(time.Now().UnixMilli(), 10),
	}
	if err := ws.AlterMetadata(ctx, r.WsID, newMeta); err != nil {
		return kbase.NewWorkspaceError(err, r.WsID, "")
	}
	return nil
}

// StaticInfo describes an existing static narrative publication.
type StaticInfo struct {
	WsID        int    `json:"ws_id,omitempty"`
	NarrativeID int    `json:"narrative_id,omitempty"`
	Version     int    `json:"version,omitempty"`
	URL         string `json:"url,omitempty"`
	NarrSaved   int64  `json:"narr_saved,omitempty"`
	StaticSaved int64  `json:"static_saved,omitempty"`
}

// GetStaticInfo looks up the publication pointer for wsID. A workspace with
// no pointer yields an empty StaticInfo, not an error. When present, the
// underlying narrative object's save time is also resolved to ms epoch.
func GetStaticInfo(ctx context.Context, ws *kbase.Workspace, wsID int) (StaticInfo, error) {
	var info StaticInfo
	wsInfo, err := ws.GetWorkspaceInfo(ctx, wsID)
	if err != nil {
		return info, kbase.NewWorkspaceError(err, wsID, "")
	}

	meta := wsInfo.Meta
	if meta[MetaVer] == "" {
		return info, nil
	}
	version, err := strconv.Atoi(meta[MetaVer])
	if err != nil {
		return info, fmt.Errorf("workspace %d has a malformed %s value %q", wsID, MetaVer, meta[MetaVer])
	}
	narrativeID, err := strconv.Atoi(meta["narrative"])
	if err != nil {
		return info, fmt.Errorf("workspace %d has a malformed narrative id %q", wsID, meta["narrative"])
	}
	staticSaved, err := strconv.ParseInt(meta[MetaSaved], 10, 64)
	if err != nil {
		return info, fmt.Errorf("workspace %d has a malformed %s value %q", wsID, MetaSaved, meta[MetaSaved])
	}

	info = StaticInfo{
		WsID:        wsID,
		NarrativeID: narrativeID,
		Version:     version,
		URL:         meta[MetaURL],
		StaticSaved: staticSaved,
	}

	objRef := fmt.Sprintf("%d/%d/%d", wsID, narrativeID, version)
	objInfos, err := ws.GetObjectInfo(ctx, []string{objRef}, false)
	if err != nil {
		return StaticInfo{}, kbase.NewWorkspaceError(err, wsID, "")
	}
	if len(objInfos) > 0 && objInfos[0] != nil {
		if saved, err := parseSaveDate(objInfos[0].SaveDate); err == nil {
			info.NarrSaved = saved
		}
	}
	return info, nil
}

// parseSaveDate converts a workspace timestamp to ms since epoch. The
// service emits both "+0000"-style and "Z"-style offsets.
func parseSaveDate(s string) (int64, error) {
	for _, layout := range []string{"2006-01-02T15:04:05Z0700", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	return 0, fmt.Errorf("unrecognized save date %q", s)
}
