// Package brioerr defines the error taxonomy shared across the sync
// core: every fallible operation wraps one of these sentinel kinds so
// callers can branch with errors.Is instead of matching strings.
package brioerr

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. Wrap these with fmt.Errorf("...: %w", ErrX) at
// the point of failure; never return them bare, since the wrapping
// message is what callers and logs actually see.
var (
	// ErrNotFound means a blob, recipe, artifact, or project was looked
	// up locally or remotely and does not exist.
	ErrNotFound = errors.New("brioerr: not found")

	// ErrHashMismatch means content was read and its digest does not
	// match the hash used to address it.
	ErrHashMismatch = errors.New("brioerr: hash mismatch")

	// ErrIO covers local filesystem failures unrelated to content
	// addressing: permission, disk full, unexpected EOF.
	ErrIO = errors.New("brioerr: io failure")

	// ErrNetworkTransient means a registry call failed in a way that is
	// expected to succeed on retry (timeout, connection reset, 5xx,
	// 429).
	ErrNetworkTransient = errors.New("brioerr: transient network failure")

	// ErrNetworkFatal means a registry call failed in a way retrying
	// will not fix (4xx other than 429, malformed response).
	ErrNetworkFatal = errors.New("brioerr: fatal network failure")

	// ErrProtocolViolation means the registry responded with a
	// well-formed but semantically invalid body (wrong shape, missing
	// required field, hash in the wrong table).
	ErrProtocolViolation = errors.New("brioerr: protocol violation")

	// ErrInvariantViolation means a local invariant the sync core
	// depends on was found broken (e.g. updating a hash-identity
	// FileId, or validating content against a mutable one).
	ErrInvariantViolation = errors.New("brioerr: invariant violation")
)

// Wrap annotates a sentinel kind with context, preserving errors.Is.
func Wrap(kind error, format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), kind)
}

// IsRetryable reports whether an error (or anything it wraps) is a
// transient network failure, the only kind the registry client retries.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrNetworkTransient)
}
