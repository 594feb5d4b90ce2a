package gambiterr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolt-foundry/gambit/gambiterr"
)

func TestWireRoundTrip(t *testing.T) {
	original := gambiterr.New(gambiterr.Timeout, "pass deadline exceeded")
	original.Code = "E_TIMEOUT"

	wire := original.ToWire("worker")
	assert.Equal(t, "worker", wire.Source)
	assert.Equal(t, "Timeout", wire.Name)

	reconstructed := gambiterr.FromWire(wire)
	require.True(t, errors.Is(reconstructed, original))
	assert.Equal(t, "E_TIMEOUT", reconstructed.Code)
}

func TestFromWireUnknownKindFallsBackToModelError(t *testing.T) {
	wire := gambiterr.WirePayload{Name: "SomethingNewFromTheFuture", Message: "oops"}
	err := gambiterr.FromWire(wire)
	assert.Equal(t, gambiterr.ModelError, err.Kind)
}

func TestFromErrorPreservesExistingKind(t *testing.T) {
	base := gambiterr.New(gambiterr.DepthExceeded, "too deep")
	assert.Same(t, base, gambiterr.FromError(base))

	wrapped := gambiterr.FromError(errors.New("boom"))
	assert.Equal(t, gambiterr.ModelError, wrapped.Kind)
	assert.ErrorContains(t, wrapped.Unwrap(), "boom")
}
