package kbase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Auth is a client for the KBase auth service's user lookup endpoint.
type Auth struct {
	baseURL string
	client  *http.Client
}

// NewAuth builds an auth client for baseURL (the service root, without the
// /api/V2 suffix).
func NewAuth(baseURL string) *Auth {
	return &Auth{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WhoAmI resolves a token to the user id it belongs to. An invalid or
// expired token surfaces as an error carrying the auth service's message.
func (a *Auth) WhoAmI(ctx context.Context, token string) (string, error) {
	endpoint := a.baseURL + "/api/V2/me"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create identity request: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, string(body))
	}

	var me struct {
		User string `json:"user"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", fmt.Errorf("failed to decode identity response: %w", err)
	}
	return me.User, nil
}

// DisplayNames resolves user ids to display names in one call. Missing users
// are simply absent from the returned map.
func (a *Auth) DisplayNames(ctx context.Context, token string, userIDs []string) (map[string]string, error) {
	endpoint := fmt.Sprintf("%s/api/V2/users?list=%s", a.baseURL, url.QueryEscape(strings.Join(userIDs, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create user lookup request: %w", err)
	}
	req.Header.Set("Authorization", token)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, string(body))
	}

	var names map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&names); err != nil {
		return nil, fmt.Errorf("failed to decode user lookup response: %w", err)
	}
	return names, nil
}
