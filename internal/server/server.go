// Package server exposes the static narrative service over JSON-RPC 1.1.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"staticnarrative/internal/config"
	"staticnarrative/internal/creator"
	"staticnarrative/internal/kbase"
	"staticnarrative/internal/narrative"
)

// Version is reported by the status method.
const Version = "0.1.0"

const servicePrefix = "StaticNarrative."

// rpcRequest is the JSON-RPC 1.1 request envelope.
type rpcRequest struct {
	Version string            `json:"version"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

type rpcError struct {
	Name    string `json:"name"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Server handles the service's RPC methods. Remote clients are built per
// request because workspace calls must carry the caller's token.
type Server struct {
	cfg *config.Config
	log *zap.Logger

	auth         *kbase.Auth
	newWorkspace func(token string) *kbase.Workspace
	newCreator   func(token string) *creator.Creator
}

// New wires a Server from deployment config.
func New(cfg *config.Config, log *zap.Logger) *Server {
	s := &Server{
		cfg:  cfg,
		log:  log,
		auth: kbase.NewAuth(cfg.AuthURL),
	}
	s.newWorkspace = func(token string) *kbase.Workspace {
		return kbase.NewWorkspace(cfg.WorkspaceURL, token)
	}
	s.newCreator = func(token string) *creator.Creator {
		return creator.FromConfig(cfg, token, false, log)
	}
	return s
}

// Run serves until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.ListenAddr,
		Handler:      s,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("serving", zap.String("addr", s.cfg.ListenAddr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, nil, http.StatusBadRequest, &rpcError{
			Name: "JSONRPCError", Code: -32700, Message: "failed to parse request body",
		})
		return
	}

	method, ok := strings.CutPrefix(req.Method, servicePrefix)
	if !ok {
		s.writeError(w, req.ID, http.StatusBadRequest, &rpcError{
			Name: "JSONRPCError", Code: -32601,
			Message: fmt.Sprintf("unknown method %q", req.Method),
		})
		return
	}

	token := r.Header.Get("Authorization")
	result, err := s.dispatch(r.Context(), method, token, req.Params)
	if err != nil {
		s.log.Warn("rpc call failed", zap.String("method", req.Method), zap.Error(err))
		s.writeError(w, req.ID, http.StatusInternalServerError, translateError(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"version": "1.1",
		"result":  []any{result},
		"id":      req.ID,
	})
}

func (s *Server) dispatch(ctx context.Context, method, token string, params []json.RawMessage) (any, error) {
	switch method {
	case "create_static_narrative":
		return s.createStaticNarrative(ctx, token, params)
	case "get_static_narrative_info":
		return s.getStaticNarrativeInfo(ctx, token, params)
	case "list_static_narratives":
		return creator.ListStatic(s.cfg.StaticFileRoot, s.cfg.URLPrefix)
	case "status":
		return map[string]string{
			"state":   "OK",
			"message": "",
			"version": Version,
		}, nil
	}
	return nil, &rpcError{
		Name: "JSONRPCError", Code: -32601,
		Message: fmt.Sprintf("unknown method %q", servicePrefix+method),
	}
}

func (s *Server) createStaticNarrative(ctx context.Context, token string, params []json.RawMessage) (any, error) {
	if token == "" {
		return nil, errors.New("a valid auth token is required to create a static narrative")
	}
	var p struct {
		NarrativeRef string `json:"narrative_ref"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}

	user, err := s.auth.WhoAmI(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller identity: %w", err)
	}

	url, err := s.newCreator(token).Create(ctx, user, p.NarrativeRef)
	if err != nil {
		return nil, err
	}
	return map[string]string{"static_narrative_url": url}, nil
}

func (s *Server) getStaticNarrativeInfo(ctx context.Context, token string, params []json.RawMessage) (any, error) {
	var p struct {
		WsID int `json:"ws_id"`
	}
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.WsID <= 0 {
		return nil, errors.New("ws_id must be an integer > 0")
	}
	return narrative.GetStaticInfo(ctx, s.newWorkspace(token), p.WsID)
}

func decodeParams(params []json.RawMessage, out any) error {
	if len(params) != 1 {
		return fmt.Errorf("expected exactly one params element, got %d", len(params))
	}
	if err := json.Unmarshal(params[0], out); err != nil {
		return fmt.Errorf("failed to decode params: %w", err)
	}
	return nil
}

func (e *rpcError) Error() string {
	return e.Message
}

// translateError maps pipeline failures onto the wire error envelope,
// keeping the user-facing messages the pipeline produced.
func translateError(err error) *rpcError {
	var re *rpcError
	if errors.As(err, &re) {
		return re
	}
	var forbidden *narrative.ForbiddenError
	if errors.As(err, &forbidden) {
		return &rpcError{Name: "Forbidden", Code: -32001, Message: forbidden.Message}
	}
	var wsErr *kbase.WorkspaceError
	if errors.As(err, &wsErr) {
		return &rpcError{Name: "WorkspaceError", Code: -32000, Message: wsErr.Message}
	}
	return &rpcError{Name: "JSONRPCError", Code: -32000, Message: err.Error()}
}

func (s *Server) writeError(w http.ResponseWriter, id json.RawMessage, status int, rpcErr *rpcError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"version": "1.1",
		"error":   rpcErr,
		"id":      id,
	})
}
