package kbase

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var permissionsPattern = regexp.MustCompile(`(?i)(\s*users?\s*(\w+)?\s*may not \w+ workspace.*)|(\s*token validation failed)`)

// IsPermissionsError guesses whether an upstream error string is a
// permission-denied error for the workspace holding the narrative.
func IsPermissionsError(err string) bool {
	return permissionsPattern.MatchString(err)
}

// WorkspaceError wraps a workspace service failure with the workspace id it
// concerns and an inferred HTTP-like status code, so callers get one uniform
// error shape instead of raw transport faults. The not-found and deleted
// cases are special-cased into clearer end-user messages; anything else
// passes the upstream text through with code 500.
type WorkspaceError struct {
	Err      error
	WsID     int
	HTTPCode int
	Message  string
}

// NewWorkspaceError translates an upstream error for workspace wsID. If
// message is non-empty it overrides the inferred message and the code stays
// at 500 unless the upstream text matches a known case.
func NewWorkspaceError(err error, wsID int, message string) *WorkspaceError {
	we := &WorkspaceError{Err: err, WsID: wsID, HTTPCode: 500}

	upstream := ""
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		upstream = serverErr.Message
	} else if err != nil {
		upstream = err.Error()
	}

	switch {
	case message != "":
		we.Message = message
	case strings.Contains(upstream, "No workspace with id"):
		we.Message = "No Narrative was found with this id."
		we.HTTPCode = 404
	case strings.Contains(upstream, "is deleted"):
		we.Message = "This Narrative was deleted and is no longer available."
		we.HTTPCode = 410
	case IsPermissionsError(upstream):
		we.Message = "You do not have access to this workspace."
		we.HTTPCode = 403
	case strings.Contains(upstream, "No object with id"):
		we.Message = "Unable to find this Narrative based on workspace information."
		we.HTTPCode = 404
	default:
		we.Message = upstream
	}
	return we
}

func (e *WorkspaceError) Error() string {
	return fmt.Sprintf("workspace error: %d: %d: %s", e.WsID, e.HTTPCode, e.Message)
}

func (e *WorkspaceError) Unwrap() error {
	return e.Err
}
