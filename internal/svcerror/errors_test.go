package svcerror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestIsKind_MatchesOwnKind tests kind classification
func TestIsKind_MatchesOwnKind(t *testing.T) {
	err := InvalidState("cannot move consent from %q to %q", "revoked", "granted")

	assert.True(t, IsKind(err, KindInvalidState))
	assert.False(t, IsKind(err, KindNotFound))
	assert.Equal(t, KindInvalidState, KindOf(err))
}

// TestIsKind_SeesThroughWrapping tests classification of wrapped errors
func TestIsKind_SeesThroughWrapping(t *testing.T) {
	err := fmt.Errorf("handling request: %w", NotFound("consent not found: %s", "CONSENT-1"))

	assert.True(t, IsKind(err, KindNotFound))
}

// TestTransient_KeepsCause tests that the underlying cause stays reachable
func TestTransient_KeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Transient("exchange did not produce a remote outcome", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "connection refused")
}

// TestKindOf_ForeignError tests that foreign errors have no kind
func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("boom")))
	assert.False(t, IsKind(nil, KindValidation))
}
