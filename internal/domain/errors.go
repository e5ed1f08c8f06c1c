package domain

import (
	"errors"
	"fmt"
	"time"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code      string
	Message   string
	Err       error
	Retryable bool
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error, retryable bool) *DomainError {
	return &DomainError{
		Code:      code,
		Message:   message,
		Err:       err,
		Retryable: retryable,
	}
}

// Request validation errors.
var (
	ErrInvalidURL = &DomainError{
		Code:    "INVALID_URL",
		Message: "The provided URL is invalid",
	}

	ErrInvalidQuality = &DomainError{
		Code:    "INVALID_QUALITY",
		Message: "Quality must be best, audio or a resolution such as 720p",
	}

	ErrInvalidRange = &DomainError{
		Code:    "INVALID_RANGE",
		Message: "Playlist bounds must both be positive or both be negative",
	}

	ErrMissingChat = &DomainError{
		Code:    "MISSING_CHAT",
		Message: "A destination chat is required",
	}
)

// Transport errors.
var (
	// ErrMessageGone means the message to edit or forward no longer exists.
	ErrMessageGone = errors.New("message no longer exists")
	// ErrMessageNotModified means an edit carried the current text.
	ErrMessageNotModified = errors.New("message is not modified")
	// ErrBlocked is returned while a flood wait is pending.
	ErrBlocked = errors.New("transport blocked by flood wait")
)

// Engine errors.
var (
	// ErrIndexOutOfRange means the playlist has no item at the position.
	ErrIndexOutOfRange = errors.New("playlist index out of range")
	// ErrNoContent means the URL carries no downloadable media.
	ErrNoContent = errors.New("no media found")
	// ErrRejected means the content filter refused the item.
	ErrRejected = errors.New("rejected by content filter")
)

// RateLimitError asks the caller to wait before the next send.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: retry after %s", e.RetryAfter)
}

// AsRateLimit extracts a RateLimitError from err.
func AsRateLimit(err error) (*RateLimitError, bool) {
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return rl, true
	}
	return nil, false
}

// RejectedError carries the filter's reason.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string { return "rejected by content filter: " + e.Reason }

func (e *RejectedError) Is(target error) bool { return target == ErrRejected }
