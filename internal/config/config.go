// Package config loads facilitator configuration from the environment,
// per spec.md §6's recognized variable set.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

// FacilitatorMode selects between managed (direct on-chain settlement,
// the only mode this repo implements) and decentralized (proxied to an
// external consensus workflow, out of scope per spec.md §9).
type FacilitatorMode string

const (
	ModeManaged       FacilitatorMode = "managed"
	ModeDecentralized FacilitatorMode = "decentralized"
)

// Config is the process-wide, read-only configuration snapshot.
type Config struct {
	Port     int
	LogLevel string

	FacilitatorMode FacilitatorMode
	DefaultChain    string

	FacilitatorPrivateKey string // hex, no 0x required
	TreasuryAddress       string // required only for the relayer strategy

	NetworkRPCURLs map[string]string // network slug -> RPC URL

	ChaosChainEnabled bool

	IdempotencyTTLSeconds int
	RateLimitPerWindow    int
	RateLimitWindowSeconds int
}

const (
	defaultPort                  = 8402
	defaultLogLevel              = "info"
	defaultIdempotencyTTLSeconds = 300
	defaultRateLimitPerWindow    = 60
	defaultRateLimitWindow       = 60
)

// networkEnvVar maps a registry network slug to its RPC env var name.
// Matches spec.md §6's literal variable list.
var networkEnvVar = map[string]string{
	"base-sepolia":        "BASE_SEPOLIA_RPC_URL",
	"ethereum-sepolia":    "ETHEREUM_SEPOLIA_RPC_URL",
	"base":                "BASE_MAINNET_RPC_URL",
	"ethereum":            "ETHEREUM_MAINNET_RPC_URL",
	"0g-mainnet":          "ZG_MAINNET_RPC_URL",
	"0g-testnet":          "ZG_TESTNET_RPC_URL",
	"skale-base-sepolia":  "SKALE_BASE_SEPOLIA_RPC_URL",
}

// Load reads and validates configuration from the environment.
// Returns a *x402err.Error (CodeConfig) on any missing required value.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                   envInt("PORT", defaultPort),
		LogLevel:               envString("LOG_LEVEL", defaultLogLevel),
		FacilitatorMode:        FacilitatorMode(envString("FACILITATOR_MODE", string(ModeManaged))),
		DefaultChain:           envString("DEFAULT_CHAIN", "base-sepolia"),
		FacilitatorPrivateKey:  os.Getenv("FACILITATOR_PRIVATE_KEY"),
		TreasuryAddress:        os.Getenv("TREASURY_ADDRESS"),
		NetworkRPCURLs:         map[string]string{},
		ChaosChainEnabled:      envBool("CHAOSCHAIN_ENABLED", false),
		IdempotencyTTLSeconds:  envInt("IDEMPOTENCY_TTL_SECONDS", defaultIdempotencyTTLSeconds),
		RateLimitPerWindow:     envInt("RATE_LIMIT_PER_WINDOW", defaultRateLimitPerWindow),
		RateLimitWindowSeconds: envInt("RATE_LIMIT_WINDOW_SECONDS", defaultRateLimitWindow),
	}

	for slug, envVar := range networkEnvVar {
		if v := os.Getenv(envVar); v != "" {
			cfg.NetworkRPCURLs[slug] = v
		}
	}

	if cfg.FacilitatorMode != ModeManaged && cfg.FacilitatorMode != ModeDecentralized {
		return nil, x402err.Config("FACILITATOR_MODE must be 'managed' or 'decentralized', got %q", cfg.FacilitatorMode)
	}

	if cfg.FacilitatorPrivateKey == "" {
		return nil, x402err.Config("FACILITATOR_PRIVATE_KEY is required")
	}

	if len(cfg.NetworkRPCURLs) == 0 {
		return nil, x402err.Config("at least one network RPC URL must be configured")
	}

	if _, ok := cfg.NetworkRPCURLs[cfg.DefaultChain]; !ok {
		return nil, x402err.Config("DEFAULT_CHAIN %q has no configured RPC URL", cfg.DefaultChain)
	}

	return cfg, nil
}

// RequireTreasury validates that TREASURY_ADDRESS is set, for callers
// that are about to register the relayer strategy.
func (c *Config) RequireTreasury() error {
	if c.TreasuryAddress == "" {
		return x402err.Config("TREASURY_ADDRESS is required for the relayer settlement strategy")
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := strings.ToLower(os.Getenv(key))
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "yes"
}
