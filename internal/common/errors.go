// Package common defines sentinel error kinds and shared constants used across
// the EngineerHub server, admin CLI and HTTP layer. Callers should use
// errors.Is to match these values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Entity lookups.
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")

	// Authorization.
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")

	// Input validation.
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrPayloadTooLarge = errors.New("payload too large")

	// Blob store failures that survived the retry policy. Callers may retry later.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// Token errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")

	ErrInternal = errors.New("internal error")
)

// Error attaches a human-readable detail to one of the sentinel kinds above.
// errors.Is(err, kind) reports true for the wrapped kind.
type Error struct {
	Kind   error
	Detail string
}

// NewError builds an *Error for kind with a formatted detail message.
func NewError(kind error, format string, args ...any) *Error {
	return &Error{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Detail
}

func (e *Error) Unwrap() error { return e.Kind }

var kinds = []struct {
	err  error
	name string
}{
	{ErrNotFound, "not_found"},
	{ErrConflict, "conflict"},
	{ErrForbidden, "forbidden"},
	{ErrUnauthorized, "unauthorized"},
	{ErrInvalidToken, "unauthorized"},
	{ErrTokenExpired, "unauthorized"},
	{ErrInvalidArgument, "invalid_argument"},
	{ErrInvalidFileType, "invalid_file_type"},
	{ErrPayloadTooLarge, "payload_too_large"},
	{ErrStorageUnavailable, "storage_unavailable"},
}

// KindOf returns the stable machine-readable name of err's kind,
// or "internal" when err does not wrap any known kind.
func KindOf(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "internal"
}

// Detail returns the caller-facing message for err. Internal errors are
// reduced to a generic message so that driver or SDK details do not leak.
func Detail(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Error()
	}
	if KindOf(err) == "internal" {
		return ErrInternal.Error()
	}
	return err.Error()
}
