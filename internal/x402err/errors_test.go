package x402err

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstructors_SetCode(t *testing.T) {
	assert.Equal(t, CodeConfig, Config("x").Code)
	assert.Equal(t, CodeNotSupported, NotSupported("x").Code)
	assert.Equal(t, CodeInvalidHeader, InvalidHeader("x").Code)
	assert.Equal(t, CodeUnauthorized, Unauthorized("x").Code)
	assert.Equal(t, CodeSettlement, Settlement("x").Code)
	assert.Equal(t, CodeRateLimited, RateLimited("x").Code)
}

func TestRpc_WrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("connection refused")
	wrapped := Rpc(underlying)

	assert.Equal(t, CodeRpc, wrapped.Code)
	assert.ErrorIs(t, wrapped, underlying)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestInternal_WrapsUnderlyingError(t *testing.T) {
	underlying := errors.New("nil pointer")
	wrapped := Internal(underlying)

	assert.Equal(t, CodeInternal, wrapped.Code)
	assert.Same(t, underlying, wrapped.Unwrap())
}

func TestAs_RecognizesTaxonomyMember(t *testing.T) {
	err := NotSupported("unknown asset")

	got, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotSupported, got.Code)
}

func TestAs_RejectsPlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}

func TestAs_NilError(t *testing.T) {
	_, ok := As(nil)
	assert.False(t, ok)
}

func TestError_MessageFormat(t *testing.T) {
	withoutErr := Config("missing %s", "FACILITATOR_PRIVATE_KEY")
	assert.Equal(t, "CONFIG_ERROR: missing FACILITATOR_PRIVATE_KEY", withoutErr.Error())

	withErr := Rpc(errors.New("timeout"))
	assert.Equal(t, "RPC_ERROR: rpc failure: timeout", withErr.Error())
}
