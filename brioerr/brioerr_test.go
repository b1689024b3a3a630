package brioerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesErrorsIs(t *testing.T) {
	err := Wrap(ErrNotFound, "recipe %s", "abc123")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrHashMismatch))
	assert.Contains(t, err.Error(), "abc123")
}

func TestIsRetryableOnlyTransient(t *testing.T) {
	assert.True(t, IsRetryable(Wrap(ErrNetworkTransient, "timeout")))
	assert.False(t, IsRetryable(Wrap(ErrNetworkFatal, "bad request")))
	assert.False(t, IsRetryable(Wrap(ErrIO, "disk full")))
}

func TestDistinctSentinelsAreDistinguishable(t *testing.T) {
	kinds := []error{
		ErrNotFound, ErrHashMismatch, ErrIO,
		ErrNetworkTransient, ErrNetworkFatal,
		ErrProtocolViolation, ErrInvariantViolation,
	}
	for i, a := range kinds {
		for j, b := range kinds {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}
