package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

// newTestRegistry builds a Registry directly from the static
// defaults, without dialing any chain client, for exercising the pure
// lookup methods below.
func newTestRegistry() *Registry {
	r := &Registry{
		networks: map[string]NetworkRecord{},
		tokens:   map[string]TokenRecord{},
	}
	for _, n := range defaultNetworks {
		r.networks[n.Slug] = n
	}
	for _, t := range defaultTokens {
		r.tokens[t.Symbol] = t
	}
	return r
}

func TestChainOf_Known(t *testing.T) {
	r := newTestRegistry()
	n, err := r.ChainOf("base-sepolia")
	require.NoError(t, err)
	assert.Equal(t, uint64(84532), n.ChainID)
}

func TestChainOf_Unknown(t *testing.T) {
	r := newTestRegistry()
	_, err := r.ChainOf("nonexistent")
	require.Error(t, err)
	xerr, ok := x402err.As(err)
	require.True(t, ok)
	assert.Equal(t, x402err.CodeNotSupported, xerr.Code)
}

func TestTokenBySymbolOrAddress_BySymbol(t *testing.T) {
	r := newTestRegistry()
	tok, err := r.TokenBySymbolOrAddress("base-sepolia", "usdc")
	require.NoError(t, err)
	assert.Equal(t, "usdc", tok.Symbol)
}

func TestTokenBySymbolOrAddress_ByAddressCaseInsensitive(t *testing.T) {
	r := newTestRegistry()
	tok, err := r.TokenBySymbolOrAddress("base-sepolia", "0x036cbd53842c5426634e7929541ec2318f3dcf7e")
	require.NoError(t, err)
	assert.Equal(t, "usdc", tok.Symbol)
}

func TestTokenBySymbolOrAddress_Unknown(t *testing.T) {
	r := newTestRegistry()
	_, err := r.TokenBySymbolOrAddress("base-sepolia", "0xdeadbeef")
	require.Error(t, err)
}

func TestAddressOf(t *testing.T) {
	r := newTestRegistry()
	addr, err := r.AddressOf("base", "usdc")
	require.NoError(t, err)
	assert.Equal(t, "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913", addr)

	_, err = r.AddressOf("ethereum-sepolia", "w0g")
	require.Error(t, err)
}

func TestConfirmationsOf(t *testing.T) {
	r := newTestRegistry()
	n, err := r.ConfirmationsOf("ethereum")
	require.NoError(t, err)
	assert.Equal(t, uint64(3), n)
}

func TestChainIDOf(t *testing.T) {
	r := newTestRegistry()
	id, err := r.ChainIDOf("ethereum-sepolia")
	require.NoError(t, err)
	assert.Equal(t, uint64(11155111), id)
}

func TestSupportedNetworks_Sorted(t *testing.T) {
	r := newTestRegistry()
	got := r.SupportedNetworks()
	assert.True(t, len(got) > 0)
	for i := 1; i < len(got); i++ {
		assert.True(t, got[i-1] < got[i])
	}
}

func TestSupportedAssets(t *testing.T) {
	r := newTestRegistry()
	got := r.SupportedAssets("0g-mainnet")
	assert.Equal(t, []string{"w0g"}, got)
}

func TestEIP3009Domain_KnownDiffersByNetwork(t *testing.T) {
	r := newTestRegistry()
	name, version, err := r.EIP3009Domain("base", "usdc")
	require.NoError(t, err)
	assert.Equal(t, "USD Coin", name)
	assert.Equal(t, "2", version)

	name, _, err = r.EIP3009Domain("base-sepolia", "usdc")
	require.NoError(t, err)
	assert.Equal(t, "USDC", name)
}

func TestEIP3009Domain_NoneConfigured(t *testing.T) {
	r := newTestRegistry()
	_, _, err := r.EIP3009Domain("0g-mainnet", "w0g")
	require.Error(t, err)
}

func TestAddressesEqual(t *testing.T) {
	assert.True(t, addressesEqual("0xABCDEF", "abcdef"))
	assert.False(t, addressesEqual("0xABCDEF", "abcdee"))
}
