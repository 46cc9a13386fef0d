package kbase

import (
	"context"
)

// Publication is one citation attached to an app in the method store.
type Publication struct {
	PMID        string `json:"pmid"`
	DisplayText string `json:"display-text"`
	Link        string `json:"link"`
}

// MethodInfo is the subset of the method store's full app record the
// exporter cares about.
type MethodInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Publications []Publication `json:"publications"`
}

// MethodStore is a client for the Narrative Method Store.
type MethodStore struct {
	rpc *rpcClient
}

// NewMethodStore builds a method store client for url.
func NewMethodStore(url string) *MethodStore {
	return &MethodStore{rpc: newRPCClient(url, "")}
}

// GetMethodFullInfo bulk-fetches full app records for the given ids under one
// release tag.
func (m *MethodStore) GetMethodFullInfo(ctx context.Context, tag string, ids []string) ([]MethodInfo, error) {
	params := map[string]any{"ids": ids, "tag": tag}
	var infos []MethodInfo
	err := m.rpc.call(ctx, "NarrativeMethodStore.get_method_full_info", params, &infos)
	return infos, err
}
