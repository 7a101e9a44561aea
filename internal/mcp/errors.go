// Package mcp implements the ToolSurface (C12): the MCP stdio transport
// exposing search, fuzzy_find, index, get_file_context, get_stale_status,
// status, config, and files as MCP tools.
package mcp

import (
	"fmt"

	codelenserrors "github.com/codelens-dev/codelens/internal/errors"
)

// Standard JSON-RPC error codes, reused from the spec the teacher's server
// already follows.
const (
	ErrCodeInvalidParams  = -32602
	ErrCodeMethodNotFound = -32601
	ErrCodeInternalError  = -32603
)

// MCPError represents an MCP protocol error with code and message.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts a CodelensError (or any other error) into an MCPError.
// The ToolSurface never panics and never leaks a bare Go error string when a
// CodelensError is available (§7).
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	result := codelenserrors.ForToolSurface(err)
	return &MCPError{Code: ErrCodeInternalError, Message: fmt.Sprintf("[%s] %s", result.ErrorKind, result.Message)}
}

// NewInvalidParamsError creates an error for invalid tool parameters.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError creates an error for an unknown tool name.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("tool %q not found", name)}
}
