// Package registry implements the Chain & Token Registry (spec.md §4.1):
// a two-map read-only registry built at process start from environment
// configuration and static defaults.
//
// Grounded on the teacher's mechanisms/evm/constants.go NetworkConfigs
// table and nacorid-x402-go's v2/chains.go ChainConfig table (verified
// USDC addresses, per-network EIP-3009 domain name/version pairs).
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/evmrelay/x402-facilitator/internal/chainclient"
	"github.com/evmrelay/x402-facilitator/internal/config"
	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

// NetworkRecord describes one configured EVM network.
type NetworkRecord struct {
	Slug                 string
	ChainID              uint64
	Name                 string
	RPCURL               string
	RequiredConfirmations uint64
	DefaultToken         string
}

// TokenRecord describes one configured token, potentially deployed
// on several networks.
type TokenRecord struct {
	Symbol          string
	Decimals        uint8
	SupportsEIP3009 bool
	// Addresses maps network slug -> contract address. A native asset
	// uses the zero address.
	Addresses map[string]string
	// EIP3009Name/Version carry the per-network EIP-712 domain params;
	// some tokens (e.g. mainnet vs testnet USDC) use different domain
	// name/version despite the same symbol, so these are keyed by
	// network slug as well.
	EIP3009Name    map[string]string
	EIP3009Version map[string]string
}

// Registry is the process-wide, read-only network/token directory.
// Safe for concurrent reads; construction happens once at startup.
type Registry struct {
	mu       sync.RWMutex
	networks map[string]NetworkRecord
	tokens   map[string]TokenRecord
	clients  map[string]*chainclient.Client
}

// defaultNetworks is the static registry seed, mirroring the teacher's
// NetworkConfigs (Base / Base Sepolia) extended with the rest of
// spec.md §6's recognized RPC env vars.
var defaultNetworks = []NetworkRecord{
	{Slug: "base", ChainID: 8453, Name: "Base", RequiredConfirmations: 1, DefaultToken: "usdc"},
	{Slug: "base-sepolia", ChainID: 84532, Name: "Base Sepolia", RequiredConfirmations: 1, DefaultToken: "usdc"},
	{Slug: "ethereum", ChainID: 1, Name: "Ethereum", RequiredConfirmations: 3, DefaultToken: "usdc"},
	{Slug: "ethereum-sepolia", ChainID: 11155111, Name: "Ethereum Sepolia", RequiredConfirmations: 2, DefaultToken: "usdc"},
	{Slug: "0g-mainnet", ChainID: 16661, Name: "0G Mainnet", RequiredConfirmations: 2, DefaultToken: "w0g"},
	{Slug: "0g-testnet", ChainID: 16602, Name: "0G Testnet", RequiredConfirmations: 1, DefaultToken: "w0g"},
	{Slug: "skale-base-sepolia", ChainID: 37084624, Name: "SKALE Base Sepolia", RequiredConfirmations: 1, DefaultToken: "usdc"},
}

var defaultTokens = []TokenRecord{
	{
		Symbol:          "usdc",
		Decimals:        6,
		SupportsEIP3009: true,
		Addresses: map[string]string{
			"base":                "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			"base-sepolia":        "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
			"ethereum":            "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			"ethereum-sepolia":    "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			"skale-base-sepolia":  "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		},
		EIP3009Name: map[string]string{
			"base":             "USD Coin",
			"base-sepolia":     "USDC",
			"ethereum":         "USD Coin",
			"ethereum-sepolia": "USDC",
		},
		EIP3009Version: map[string]string{
			"base":             "2",
			"base-sepolia":     "2",
			"ethereum":         "2",
			"ethereum-sepolia": "2",
		},
	},
	{
		Symbol:          "w0g",
		Decimals:        18,
		SupportsEIP3009: false, // relayer strategy: transferFrom + allowance
		Addresses: map[string]string{
			"0g-mainnet": "0x0000000000000000000000000000000000001000",
			"0g-testnet": "0x0000000000000000000000000000000000001000",
		},
	},
}

// New builds a Registry from cfg, dialing a chainclient.Client for
// every network with a configured RPC URL. Fails fast (ConfigError)
// on a malformed entry.
func New(ctx context.Context, cfg *config.Config) (*Registry, error) {
	r := &Registry{
		networks: map[string]NetworkRecord{},
		tokens:   map[string]TokenRecord{},
		clients:  map[string]*chainclient.Client{},
	}

	for _, n := range defaultNetworks {
		rpcURL, ok := cfg.NetworkRPCURLs[n.Slug]
		if !ok {
			continue // not configured for this deployment; simply unsupported
		}
		n.RPCURL = rpcURL
		r.networks[n.Slug] = n
	}
	if len(r.networks) == 0 {
		return nil, x402err.Config("no configured network matched a recognized RPC URL env var")
	}

	for _, t := range defaultTokens {
		r.tokens[t.Symbol] = t
	}

	for slug, n := range r.networks {
		client, err := chainclient.Dial(ctx, slug, n.RPCURL, cfg.FacilitatorPrivateKey)
		if err != nil {
			return nil, x402err.Config("dial network %s: %v", slug, err)
		}
		r.clients[slug] = client
	}

	return r, nil
}

// ChainOf returns the configured network record.
func (r *Registry) ChainOf(network string) (NetworkRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.networks[network]
	if !ok {
		return NetworkRecord{}, x402err.NotSupported("unsupported network: %s", network)
	}
	return n, nil
}

// TokenOf returns the configured token record by symbol.
func (r *Registry) TokenOf(symbol string) (TokenRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tokens[symbol]
	if !ok {
		return TokenRecord{}, x402err.NotSupported("unsupported asset: %s", symbol)
	}
	return t, nil
}

// TokenBySymbolOrAddress resolves an asset identifier that may be
// either a symbol ("usdc") or a contract address, per spec.md §9's
// open question: address-form assets are looked up by address and
// unknown addresses are rejected as NotSupported.
func (r *Registry) TokenBySymbolOrAddress(network, asset string) (TokenRecord, error) {
	if t, err := r.TokenOf(asset); err == nil {
		return t, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.tokens {
		if addr, ok := t.Addresses[network]; ok && addressesEqual(addr, asset) {
			return t, nil
		}
	}
	return TokenRecord{}, x402err.NotSupported("unsupported asset: %s on %s", asset, network)
}

func addressesEqual(a, b string) bool {
	norm := func(s string) string {
		s = trimHexPrefix(s)
		return toLowerASCII(s)
	}
	return norm(a) == norm(b)
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func toLowerASCII(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}

// AddressOf returns the contract address of symbol on network.
func (r *Registry) AddressOf(network, symbol string) (string, error) {
	t, err := r.TokenOf(symbol)
	if err != nil {
		return "", err
	}
	addr, ok := t.Addresses[network]
	if !ok {
		return "", x402err.NotSupported("asset %s not deployed on %s", symbol, network)
	}
	return addr, nil
}

// ConfirmationsOf returns the required confirmation depth for network.
func (r *Registry) ConfirmationsOf(network string) (uint64, error) {
	n, err := r.ChainOf(network)
	if err != nil {
		return 0, err
	}
	return n.RequiredConfirmations, nil
}

// ChainIDOf returns the numeric chain id for network.
func (r *Registry) ChainIDOf(network string) (uint64, error) {
	n, err := r.ChainOf(network)
	if err != nil {
		return 0, err
	}
	return n.ChainID, nil
}

// IsNative reports whether asset is network's native coin (zero address).
func (r *Registry) IsNative(network, asset string) bool {
	t, err := r.TokenBySymbolOrAddress(network, asset)
	if err != nil {
		return false
	}
	addr, ok := t.Addresses[network]
	return ok && trimHexPrefix(toLowerASCII(addr)) == "0000000000000000000000000000000000000000"
}

// SupportedNetworks returns all configured network slugs, sorted.
func (r *Registry) SupportedNetworks() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.networks))
	for slug := range r.networks {
		out = append(out, slug)
	}
	sort.Strings(out)
	return out
}

// SupportedAssets returns the token symbols deployed on network, sorted.
func (r *Registry) SupportedAssets(network string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := []string{}
	for symbol, t := range r.tokens {
		if _, ok := t.Addresses[network]; ok {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}

// PublicClient returns the read-capable chain client for network.
func (r *Registry) PublicClient(network string) (*chainclient.Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[network]
	if !ok {
		return nil, x402err.NotSupported("unsupported network: %s", network)
	}
	return c, nil
}

// WalletClient returns the write-capable chain client for network.
// In this facilitator the public and wallet clients are the same
// handle (both bound to the facilitator's signing key); the split
// exists so that components only ever declare the capability they
// need, matching spec.md §4.1's stated seam for testing.
func (r *Registry) WalletClient(network string) (*chainclient.Client, error) {
	return r.PublicClient(network)
}

// FacilitatorAddress returns the facilitator's signing address on network.
func (r *Registry) FacilitatorAddress(network string) (string, error) {
	c, err := r.PublicClient(network)
	if err != nil {
		return "", err
	}
	return c.Address().Hex(), nil
}

// EIP3009Domain returns the (name, version) EIP-712 domain parameters
// for symbol on network, which can differ between mainnet and testnet
// deployments of the same symbol (e.g. USDC).
func (r *Registry) EIP3009Domain(network, symbol string) (name, version string, err error) {
	t, err := r.TokenOf(symbol)
	if err != nil {
		return "", "", err
	}
	if n, ok := t.EIP3009Name[network]; ok {
		name = n
	}
	if v, ok := t.EIP3009Version[network]; ok {
		version = v
	}
	if name == "" || version == "" {
		return "", "", fmt.Errorf("no EIP-3009 domain configured for %s on %s", symbol, network)
	}
	return name, version, nil
}
