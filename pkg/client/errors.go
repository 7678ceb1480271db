package client

import (
	"errors"
	"fmt"
)

// ErrorClass represents a classification of request failures.
type ErrorClass string

const (
	// ErrorClassInvalidURL represents a base URL or resource URI that cannot be signed.
	ErrorClassInvalidURL ErrorClass = "invalid_url"

	// ErrorClassNetwork represents transport failures, including body reads.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassDecode represents a response that does not match the expected shape.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassServer represents non-2xx responses and empty single-entity results.
	ErrorClassServer ErrorClass = "server"
)

// ErrEmptyResult is returned (wrapped in a server-class Error) when a
// single-entity fetch yields no results.
var ErrEmptyResult = errors.New("empty result")

// Error is a catalog request failure with additional context.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	status := ""
	if e.StatusCode != 0 {
		status = fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		return fmt.Sprintf("catalog %s error%s: %s: %v", e.Class, status, e.Message, e.Err)
	}
	return fmt.Sprintf("catalog %s error%s: %s", e.Class, status, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

func classOf(err error) (ErrorClass, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Class, true
	}
	return "", false
}

// IsInvalidURL reports whether err is an invalid URL failure.
func IsInvalidURL(err error) bool {
	class, ok := classOf(err)
	return ok && class == ErrorClassInvalidURL
}

// IsNetwork reports whether err is a transport failure.
func IsNetwork(err error) bool {
	class, ok := classOf(err)
	return ok && class == ErrorClassNetwork
}

// IsDecode reports whether err is a response shape mismatch.
func IsDecode(err error) bool {
	class, ok := classOf(err)
	return ok && class == ErrorClassDecode
}

// IsEmptyResult reports whether err is an empty single-entity result.
func IsEmptyResult(err error) bool {
	return errors.Is(err, ErrEmptyResult)
}

// ServerStatus returns the HTTP status of a server-class error.
// The status is 0 for an empty-result error.
func ServerStatus(err error) (int, bool) {
	var e *Error
	if errors.As(err, &e) && e.Class == ErrorClassServer {
		return e.StatusCode, true
	}
	return 0, false
}

// classifyStatus returns the class recorded for an HTTP status, or "" for success.
func classifyStatus(status int) ErrorClass {
	if status >= 200 && status < 300 {
		return ""
	}
	return ErrorClassServer
}
