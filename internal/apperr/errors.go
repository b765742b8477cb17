// Package apperr is the error taxonomy shared by the services and the HTTP layer.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConfiguration
	KindPersistence
	KindSerialization
	KindUpstream
	KindQuotaExceeded
	KindAuthentication
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConfiguration:
		return "configuration"
	case KindPersistence:
		return "persistence"
	case KindSerialization:
		return "serialization"
	case KindUpstream:
		return "upstream"
	case KindQuotaExceeded:
		return "quota_exceeded"
	case KindAuthentication:
		return "authentication"
	default:
		return "internal"
	}
}

// Error is the single error type of the service layer. Missing is only set
// for validation and configuration errors; Code and Details carry whatever
// the storage backend or upstream API reported.
type Error struct {
	Kind    Kind
	Message string
	Missing []string
	Code    string
	Details string
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	b.WriteString(": ")
	b.WriteString(e.Message)
	if len(e.Missing) > 0 {
		fmt.Fprintf(&b, " (missing: %s)", strings.Join(e.Missing, ", "))
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

func Validation(msg string, missing ...string) *Error {
	return &Error{Kind: KindValidation, Message: msg, Missing: missing}
}

func Configuration(msg string, missing ...string) *Error {
	return &Error{Kind: KindConfiguration, Message: msg, Missing: missing}
}

// Persistence wraps a storage failure. Details defaults to the cause's text
// so the backend payload survives to the HTTP boundary.
func Persistence(msg string, cause error) *Error {
	e := &Error{Kind: KindPersistence, Message: msg, Cause: cause}
	if cause != nil {
		e.Details = cause.Error()
	}
	return e
}

func Serialization(msg string, cause error) *Error {
	return &Error{Kind: KindSerialization, Message: msg, Cause: cause}
}

func Upstream(msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, Cause: cause}
}

func QuotaExceeded(msg string, cause error) *Error {
	return &Error{Kind: KindQuotaExceeded, Message: msg, Cause: cause}
}

func Authentication(msg string, cause error) *Error {
	return &Error{Kind: KindAuthentication, Message: msg, Cause: cause}
}

func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf reports the taxonomy kind of err; anything unclassified is internal.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}

// HTTPStatus maps an error chain to the status code used at the HTTP boundary.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindQuotaExceeded:
		return http.StatusTooManyRequests
	case KindAuthentication:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
