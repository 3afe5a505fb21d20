package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

func clearNetworkEnv(t *testing.T) {
	for _, v := range networkEnvVar {
		t.Setenv(v, "")
	}
}

func TestLoad_MinimalValid(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "deadbeef")
	t.Setenv("BASE_SEPOLIA_RPC_URL", "https://rpc.example/base-sepolia")
	t.Setenv("DEFAULT_CHAIN", "base-sepolia")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, ModeManaged, cfg.FacilitatorMode)
	assert.Equal(t, "https://rpc.example/base-sepolia", cfg.NetworkRPCURLs["base-sepolia"])
	assert.Equal(t, defaultIdempotencyTTLSeconds, cfg.IdempotencyTTLSeconds)
}

func TestLoad_MissingPrivateKey(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "")
	t.Setenv("BASE_SEPOLIA_RPC_URL", "https://rpc.example")
	t.Setenv("DEFAULT_CHAIN", "base-sepolia")

	_, err := Load()
	require.Error(t, err)
	xerr, ok := x402err.As(err)
	require.True(t, ok)
	assert.Equal(t, x402err.CodeConfig, xerr.Code)
}

func TestLoad_NoNetworksConfigured(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "deadbeef")

	_, err := Load()
	require.Error(t, err)
	xerr, ok := x402err.As(err)
	require.True(t, ok)
	assert.Equal(t, x402err.CodeConfig, xerr.Code)
}

func TestLoad_DefaultChainWithoutRPCURL(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "deadbeef")
	t.Setenv("BASE_SEPOLIA_RPC_URL", "https://rpc.example")
	t.Setenv("DEFAULT_CHAIN", "ethereum-sepolia")

	_, err := Load()
	require.Error(t, err)
}

func TestLoad_InvalidFacilitatorMode(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "deadbeef")
	t.Setenv("BASE_SEPOLIA_RPC_URL", "https://rpc.example")
	t.Setenv("DEFAULT_CHAIN", "base-sepolia")
	t.Setenv("FACILITATOR_MODE", "centralized")

	_, err := Load()
	require.Error(t, err)
}

func TestRequireTreasury(t *testing.T) {
	cfg := &Config{}
	require.Error(t, cfg.RequireTreasury())

	cfg.TreasuryAddress = "0xabc"
	require.NoError(t, cfg.RequireTreasury())
}

func TestLoad_ChaosChainEnabled(t *testing.T) {
	clearNetworkEnv(t)
	t.Setenv("FACILITATOR_PRIVATE_KEY", "deadbeef")
	t.Setenv("BASE_SEPOLIA_RPC_URL", "https://rpc.example")
	t.Setenv("DEFAULT_CHAIN", "base-sepolia")
	t.Setenv("CHAOSCHAIN_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.ChaosChainEnabled)
}
