package graphcontent

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes carried by the fault types. They mirror the persisted error
// vocabulary consumed by API clients.
const (
	ErrCodeBlankGraphID     = "ERR_CONTENT_BLANK_TAXONOMY_ID"
	ErrCodeBlankObjectID    = "ERR_CONTENT_BLANK_OBJECT_ID"
	ErrCodeBlankObject      = "ERR_CONTENT_BLANK_OBJECT"
	ErrCodeInvalidRelation  = "ERR_INVALID_RELATION_NAME"
	ErrCodeNotFound         = "ERR_CONTENT_NOT_FOUND"
	ErrCodeSearchError      = "ERR_CONTENT_SEARCH_ERROR"
	ErrCodeUploadFile       = "ERR_CONTENT_UPLOAD_FILE"
	ErrCodeExtract          = "ERR_CONTENT_EXTRACT"
	ErrCodePublish          = "ERR_CONTENT_PUBLISH"
)

// Sentinel errors returned by collaborators.
var (
	// ErrNodeNotFound indicates a content node was not found in the graph store.
	ErrNodeNotFound = errors.New("content node not found")

	// ErrObjectNotFound indicates a stored object was not found in the blob store.
	ErrObjectNotFound = errors.New("object not found")
)

// ClientError is a request rejected before any side effect took place.
type ClientError struct {
	Code    string
	Message string
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewClientError creates a client-fault error.
func NewClientError(code, message string) *ClientError {
	return &ClientError{Code: code, Message: message}
}

// NotFoundError is a referenced identifier that does not resolve to an
// existing node, surfaced distinctly from generic client errors.
type NotFoundError struct {
	Code    string
	Message string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(code, message string) *NotFoundError {
	return &NotFoundError{Code: code, Message: message}
}

// ValidationError carries the graph store validator's message list for a node
// that failed schema validation. No node mutation occurs when it is raised.
type ValidationError struct {
	NodeID   string
	Messages []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("node %s failed validation: %s", e.NodeID, strings.Join(e.Messages, "; "))
}

// ServerError wraps an infrastructure failure (archive I/O, upload, parse)
// into a server-fault response carrying the underlying message.
type ServerError struct {
	Code string
	Err  error
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *ServerError) Unwrap() error {
	return e.Err
}

// NewServerError wraps err as a server fault under code.
func NewServerError(code string, err error) *ServerError {
	return &ServerError{Code: code, Err: err}
}

// ContentError annotates a pipeline failure with the operation and content id
// it occurred for.
type ContentError struct {
	ContentID string
	Op        string
	Err       error
}

func (e *ContentError) Error() string {
	return fmt.Sprintf("content operation %s failed for content %s: %v", e.Op, e.ContentID, e.Err)
}

func (e *ContentError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a not-found condition, from either the
// fault type or the graph store sentinel.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf) || errors.Is(err, ErrNodeNotFound)
}

// IsClientFault reports whether err was rejected before any side effect.
func IsClientFault(err error) bool {
	var ce *ClientError
	return errors.As(err, &ce)
}

// IsValidationFailure reports whether err carries a validator message list.
func IsValidationFailure(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
