package verifier

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBigOrZero(t *testing.T) {
	assert.Equal(t, big.NewInt(0), bigOrZero(""))
	assert.Equal(t, big.NewInt(0), bigOrZero("not-a-number"))
	assert.Equal(t, big.NewInt(42), bigOrZero("42"))
}

func TestEnsure0x(t *testing.T) {
	assert.Equal(t, "0xabc", ensure0x("abc"))
	assert.Equal(t, "0xabc", ensure0x("0xabc"))
}

func TestHexToBytesVar(t *testing.T) {
	b, err := hexToBytesVar("1234")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x12, 0x34}, b)
}

func TestHexToBytes32_PadsShortHex(t *testing.T) {
	b, err := hexToBytes32("0x01")
	require.NoError(t, err)
	assert.Equal(t, byte(1), b[31])
}
