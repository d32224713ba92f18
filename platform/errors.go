package platform

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

var (
	ErrNotFound    = errors.New("content not found")
	ErrAlreadyDone = errors.New("action already performed")
)

type RatelimitInfo struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Error returned by platform API calls which got an HTTP response.
type Error struct {
	StatusCode int
	// platform-specific error code string, if the response body included one
	Code      string
	Wrapped   error
	Ratelimit *RatelimitInfo
}

func (e *Error) Error() string {
	if e.Wrapped == nil {
		return fmt.Sprintf("platform API error %d", e.StatusCode)
	}
	if e.IsThrottled() && e.Ratelimit != nil {
		return fmt.Sprintf("platform API error %d: %s (throttled until %s)", e.StatusCode, e.Wrapped, e.Ratelimit.Reset.Local())
	}
	return fmt.Sprintf("platform API error %d: %s", e.StatusCode, e.Wrapped)
}

func (e *Error) Unwrap() error {
	return e.Wrapped
}

func (e *Error) IsThrottled() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func (e *Error) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrAlreadyDone:
		return e.StatusCode == http.StatusConflict || e.Code == "already_done" || e.Code == "already_liked"
	}
	return false
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsAlreadyDone(err error) bool {
	return errors.Is(err, ErrAlreadyDone)
}

// Reports whether the error is likely to go away on its own: rate limiting, server-side
// errors, timeouts and connection failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var perr *Error
	if errors.As(err, &perr) {
		return perr.IsThrottled() || perr.StatusCode >= 500
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr)
}
