package catalog

import (
	"context"

	"staticnarrative/internal/kbase"
)

const (
	// partSize is the object-id window requested per list_objects call.
	partSize = 10000
	// globalLimit caps the total number of objects walked per workspace.
	globalLimit = 100000
)

// listObjectsIterator pages through a workspace's objects in object-id
// windows, so arbitrarily large workspaces never require one giant
// list_objects response.
type listObjectsIterator struct {
	ws              *kbase.Workspace
	wsInfo          kbase.WorkspaceInfo
	includeMetadata bool

	minObjID int
	total    int
	buf      []kbase.ObjectInfo
	pos      int
	done     bool
}

func newListObjectsIterator(ws *kbase.Workspace, wsInfo kbase.WorkspaceInfo, includeMetadata bool) *listObjectsIterator {
	return &listObjectsIterator{
		ws:              ws,
		wsInfo:          wsInfo,
		includeMetadata: includeMetadata,
		minObjID:        1,
	}
}

// next returns the next object info tuple, ok=false when exhausted.
func (it *listObjectsIterator) next(ctx context.Context) (kbase.ObjectInfo, bool, error) {
	for {
		if it.pos < len(it.buf) {
			info := it.buf[it.pos]
			it.pos++
			it.total++
			if it.total > globalLimit {
				it.done = true
				return kbase.ObjectInfo{}, false, nil
			}
			return info, true, nil
		}
		if it.done || it.minObjID > it.wsInfo.MaxObjID {
			return kbase.ObjectInfo{}, false, nil
		}

		infos, err := it.ws.ListObjects(ctx, kbase.ListObjectsParams{
			IDs:             []int{it.wsInfo.ID},
			MinObjectID:     it.minObjID,
			MaxObjectID:     it.minObjID + partSize - 1,
			IncludeMetadata: it.includeMetadata,
		})
		if err != nil {
			return kbase.ObjectInfo{}, false, err
		}
		it.minObjID += partSize
		it.buf = infos
		it.pos = 0
	}
}
