package pipeline

import "fmt"

// ErrorCode classifies pipeline failures.
type ErrorCode string

const (
	// ErrEmptyDocument aborts a run whose source has no pages.
	ErrEmptyDocument ErrorCode = "EMPTY_DOCUMENT"
	// ErrTranslationFailed marks a paragraph whose translation failed or
	// came back empty. The paragraph keeps its cover but gets no text.
	ErrTranslationFailed ErrorCode = "TRANSLATION_FAILED"
	// ErrCompositeFailed marks a page whose layers could not be merged.
	ErrCompositeFailed ErrorCode = "COMPOSITE_FAILED"
	// ErrPageFailed marks a page that failed before compositing (render,
	// detection, extraction or drawing).
	ErrPageFailed ErrorCode = "PAGE_FAILED"
	// ErrReadFailed aborts a run whose source cannot be split into pages.
	ErrReadFailed ErrorCode = "READ_FAILED"
)

// Error is a pipeline failure with its page, if any.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Page    int       `json:"page,omitempty"`
	Cause   error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Message
	if e.Page > 0 {
		msg = fmt.Sprintf("page %d: %s", e.Page, msg)
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates an Error without page information.
func NewError(code ErrorCode, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// NewPageError creates an Error for a 1-based page number.
func NewPageError(code ErrorCode, message string, page int, cause error) *Error {
	return &Error{Code: code, Message: message, Page: page, Cause: cause}
}
