// Package mcp implements the Model Context Protocol (MCP) server for CourseMind.
package mcp

import (
	"context"
	"errors"
	"fmt"

	cmerrors "github.com/coursemind/coursemind/internal/errors"
)

// Custom MCP error codes for CourseMind.
const (
	// ErrCodeCollectionNotFound indicates a requested collection does not exist.
	ErrCodeCollectionNotFound = -32001

	// ErrCodeRetrievalFailed indicates every collection search failed.
	ErrCodeRetrievalFailed = -32002

	// ErrCodeTimeout indicates the request timed out.
	ErrCodeTimeout = -32003

	// ErrCodeAnswerFailed indicates answer generation failed.
	ErrCodeAnswerFailed = -32004

	// Standard JSON-RPC error codes.
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
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

// NewInvalidParamsError creates an error for invalid parameters with a custom message.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{
		Code:    ErrCodeInvalidParams,
		Message: msg,
	}
}

// NewMethodNotFoundError creates an error for unknown methods/tools.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{
		Code:    ErrCodeMethodNotFound,
		Message: fmt.Sprintf("Tool '%s' not found.", name),
	}
}

// MapError converts internal errors to MCP errors.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}

	var me *MCPError
	if errors.As(err, &me) {
		return me
	}

	var mindErr *cmerrors.MindError
	if errors.As(err, &mindErr) {
		return mapMindError(mindErr)
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out.",
		}
	case errors.Is(err, context.Canceled):
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: "Request was canceled.",
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: "Internal server error.",
		}
	}
}

// mapMindError converts a MindError to an MCPError keyed on its code.
func mapMindError(me *cmerrors.MindError) *MCPError {
	switch me.Code {
	case cmerrors.ErrCodeCollectionNotFound:
		return &MCPError{
			Code:    ErrCodeCollectionNotFound,
			Message: me.Message,
		}
	case cmerrors.ErrCodeCollectionSearch, cmerrors.ErrCodeTotalFailure:
		return &MCPError{
			Code:    ErrCodeRetrievalFailed,
			Message: me.Message,
		}
	case cmerrors.ErrCodeAnswerFailed, cmerrors.ErrCodeOllamaUnavailable:
		return &MCPError{
			Code:    ErrCodeAnswerFailed,
			Message: me.Message,
		}
	case cmerrors.ErrCodeQueryEmpty, cmerrors.ErrCodeInvalidInput,
		cmerrors.ErrCodeInvalidStrategy, cmerrors.ErrCodeInvalidAlpha:
		return &MCPError{
			Code:    ErrCodeInvalidParams,
			Message: me.Message,
		}
	case cmerrors.ErrCodeNetworkTimeout:
		return &MCPError{
			Code:    ErrCodeTimeout,
			Message: me.Message,
		}
	default:
		return &MCPError{
			Code:    ErrCodeInternalError,
			Message: me.Message,
		}
	}
}
