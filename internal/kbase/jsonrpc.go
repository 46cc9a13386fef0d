// Package kbase contains thin clients for the KBase services the exporter
// talks to: the Workspace, the Narrative Method Store, dynamic services
// behind the Service Wizard, and the auth service.
//
// All JSON-RPC traffic speaks the KBase 1.1 dialect: a POST with
// {"version":"1.1","method":"Module.method","params":[...],"id":"..."} and a
// response carrying either "result" or an "error" envelope. Upstream faults
// surface as *ServerError so callers can translate them into friendlier
// errors (see WorkspaceError).
package kbase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// ServerError is an error reported by a KBase service, as opposed to a
// transport failure.
type ServerError struct {
	Name    string
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %d: %s", e.Name, e.Code, e.Message)
}

type rpcRequest struct {
	Version string `json:"version"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
	ID      string `json:"id"`
}

type rpcError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Error   string `json:"error"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

// rpcClient issues KBase JSON-RPC 1.1 calls against a single endpoint.
type rpcClient struct {
	url    string
	token  string
	client *http.Client
}

func newRPCClient(url, token string) *rpcClient {
	return &rpcClient{
		url:   url,
		token: token,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// call invokes method with params wrapped in the single-element array the
// KBase convention expects, and decodes the first result element into out.
// A nil out discards the result.
func (c *rpcClient) call(ctx context.Context, method string, params any, out any) error {
	req := rpcRequest{
		Version: "1.1",
		Method:  method,
		Params:  []any{params},
		ID:      uuid.NewString(),
	}
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", method, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", method, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", c.token)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", method, err)
	}

	var decoded rpcResponse
	if err := json.Unmarshal(respBody, &decoded); err != nil {
		if resp.StatusCode != http.StatusOK {
			return &ServerError{Name: "JSONRPCError", Code: resp.StatusCode, Message: string(respBody)}
		}
		return fmt.Errorf("failed to decode %s response: %w", method, err)
	}
	if decoded.Error != nil {
		msg := decoded.Error.Message
		if msg == "" {
			msg = decoded.Error.Error
		}
		name := decoded.Error.Name
		if name == "" {
			name = "JSONRPCError"
		}
		return &ServerError{Name: name, Code: decoded.Error.Code, Message: msg}
	}
	if resp.StatusCode != http.StatusOK {
		return &ServerError{Name: "JSONRPCError", Code: resp.StatusCode, Message: string(respBody)}
	}
	if out == nil {
		return nil
	}

	// Results arrive as a single-element array mirroring the params shape.
	var results []json.RawMessage
	if err := json.Unmarshal(decoded.Result, &results); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	if len(results) == 0 {
		return fmt.Errorf("%s returned an empty result", method)
	}
	if err := json.Unmarshal(results[0], out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
