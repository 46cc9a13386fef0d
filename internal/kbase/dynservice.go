package kbase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultURLCacheTime is how long a resolved dynamic service URL stays valid
// before the next call re-resolves it through the Service Wizard.
const defaultURLCacheTime = 5 * time.Minute

// DynamicServiceClient calls a KBase dynamic service, resolving (and caching)
// its current URL through the Service Wizard. If a call fails against a
// cached URL the client re-resolves once and retries; a second failure
// propagates.
type DynamicServiceClient struct {
	wizardURL    string
	serviceVer   string
	moduleName   string
	token        string
	urlCacheTime time.Duration

	mu          sync.Mutex
	cachedURL   string
	lastRefresh time.Time

	lookups singleflight.Group
}

// NewDynamicServiceClient builds a client for moduleName at serviceVer
// (usually "release"), resolving through the Service Wizard at wizardURL.
func NewDynamicServiceClient(wizardURL, serviceVer, moduleName, token string) *DynamicServiceClient {
	return &DynamicServiceClient{
		wizardURL:    wizardURL,
		serviceVer:   serviceVer,
		moduleName:   moduleName,
		token:        token,
		urlCacheTime: defaultURLCacheTime,
	}
}

// Call invokes method on the dynamic service and decodes the first result
// element into out.
func (c *DynamicServiceClient) Call(ctx context.Context, method string, params any, out any) error {
	url, refreshed, err := c.serviceURL(ctx, false)
	if err != nil {
		return err
	}

	err = newRPCClient(url, c.token).call(ctx, c.moduleName+"."+method, params, out)
	if err == nil {
		return nil
	}

	// A stale cached URL surfaces as a server error. If the URL was just
	// resolved there is nothing to refresh; forward the error unchanged.
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || refreshed {
		return err
	}

	url, _, lookupErr := c.serviceURL(ctx, true)
	if lookupErr != nil {
		return lookupErr
	}
	return newRPCClient(url, c.token).call(ctx, c.moduleName+"."+method, params, out)
}

// serviceURL returns the current service URL, re-resolving through the
// wizard when the cache is empty, expired, or force is set. Concurrent
// refreshes for the same module collapse into one wizard call.
func (c *DynamicServiceClient) serviceURL(ctx context.Context, force bool) (url string, refreshed bool, err error) {
	c.mu.Lock()
	if !force && c.cachedURL != "" && time.Since(c.lastRefresh) <= c.urlCacheTime {
		url = c.cachedURL
		c.mu.Unlock()
		return url, false, nil
	}
	c.mu.Unlock()

	v, err, _ := c.lookups.Do(c.moduleName, func() (any, error) {
		var status struct {
			URL string `json:"url"`
		}
		params := map[string]any{
			"module_name": c.moduleName,
			"version":     c.serviceVer,
		}
		wizard := newRPCClient(c.wizardURL, "")
		if err := wizard.call(ctx, "ServiceWizard.get_service_status", params, &status); err != nil {
			return "", fmt.Errorf("failed to look up %s service url: %w", c.moduleName, err)
		}
		c.mu.Lock()
		c.cachedURL = status.URL
		c.lastRefresh = time.Now()
		c.mu.Unlock()
		return status.URL, nil
	})
	if err != nil {
		return "", false, err
	}
	return v.(string), true, nil
}

// SetItem is one member of a set object, as returned by list_sets.
type SetItem struct {
	Ref  string      `json:"ref"`
	Info *ObjectInfo `json:"info"`
}

// SetInfo describes one set object plus its membership.
type SetInfo struct {
	Ref   string     `json:"ref"`
	Info  ObjectInfo `json:"info"`
	Items []SetItem  `json:"items"`
}

// NarrativeService wraps the dynamic NarrativeService module.
type NarrativeService struct {
	dyn *DynamicServiceClient
}

// NewNarrativeService builds a NarrativeService client resolving through the
// Service Wizard at wizardURL.
func NewNarrativeService(wizardURL, token string) *NarrativeService {
	return &NarrativeService{
		dyn: NewDynamicServiceClient(wizardURL, "release", "NarrativeService", token),
	}
}

// ListSets lists every set object in the workspace, including member info
// tuples and object metadata.
func (s *NarrativeService) ListSets(ctx context.Context, wsID int, includeMetadata bool) ([]SetInfo, error) {
	params := map[string]any{
		"workspaces":            []int{wsID},
		"include_set_item_info": 1,
	}
	if includeMetadata {
		params["include_metadata"] = 1
	}
	var out struct {
		Sets []json.RawMessage `json:"sets"`
	}
	if err := s.dyn.Call(ctx, "list_sets", params, &out); err != nil {
		return nil, err
	}
	sets := make([]SetInfo, 0, len(out.Sets))
	for i, raw := range out.Sets {
		var si SetInfo
		if err := json.Unmarshal(raw, &si); err != nil {
			return nil, fmt.Errorf("failed to decode set %d: %w", i, err)
		}
		sets = append(sets, si)
	}
	return sets, nil
}
