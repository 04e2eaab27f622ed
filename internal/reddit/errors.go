package reddit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a failed fetch.
type ErrorKind int

const (
	// KindTransient covers network failures, timeouts and 5xx responses.
	KindTransient ErrorKind = iota
	// KindRateLimited is a 429; RetryAfter says how long to wait.
	KindRateLimited
	// KindNotFound means the content was deleted, banned or made private.
	KindNotFound
	// KindFatal is anything retrying will not fix.
	KindFatal
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate limited"
	case KindNotFound:
		return "not found"
	case KindFatal:
		return "fatal"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Retryable reports whether a later attempt may succeed.
func (k ErrorKind) Retryable() bool {
	return k == KindTransient || k == KindRateLimited
}

// APIError is returned for every failed client call.
type APIError struct {
	Kind       ErrorKind
	Status     int
	RetryAfter time.Duration
	Path       string
	Err        error
}

func (e *APIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " returned status %d", e.Status)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *APIError) Unwrap() error { return e.Err }

// Classify maps any error to an ErrorKind. Errors that did not come from the
// client (deadlines, dial failures) count as transient.
func Classify(err error) ErrorKind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindTransient
}

// IsCanceled reports whether err is the result of the caller giving up.
func IsCanceled(err error) bool {
	return errors.Is(err, context.Canceled)
}

// RetryAfter returns the server-requested delay carried by err, if any.
func RetryAfter(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// statusError maps a non-2xx response to an APIError.
func statusError(path string, resp *http.Response) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, Path: path}
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		apiErr.Kind = KindRateLimited
		apiErr.RetryAfter = retryAfterHeader(resp.Header)
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		apiErr.Kind = KindNotFound
	case resp.StatusCode >= 500:
		apiErr.Kind = KindTransient
	default:
		apiErr.Kind = KindFatal
	}
	return apiErr
}

// retryAfterHeader reads Retry-After, falling back to Reddit's
// x-ratelimit-reset. Both are whole seconds.
func retryAfterHeader(h http.Header) time.Duration {
	for _, name := range []string{"Retry-After", "X-Ratelimit-Reset"} {
		raw := strings.TrimSpace(h.Get(name))
		if raw == "" {
			continue
		}
		if secs, err := strconv.ParseFloat(raw, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second))
		}
		if at, err := http.ParseTime(raw); err == nil {
			if d := time.Until(at); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}
