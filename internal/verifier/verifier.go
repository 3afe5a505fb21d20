// Package verifier implements the Verifier (spec.md §4.4): against a
// live chain, checks authorization well-formedness, time window,
// payer balance, and nonce-unused (EIP-3009) or allowance (relayer).
//
// The sequential fail-fast algorithm and the "never throws, always
// reports" policy are grounded directly on the teacher's
// mechanisms/evm/facilitator.go ExactEvmFacilitator.Verify; the
// interface shape generalizing network-family dispatch echoes
// vitwit-x402-go's verification/verify.go Verifier interface.
package verifier

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/evmrelay/x402-facilitator/internal/chainclient"
	"github.com/evmrelay/x402-facilitator/internal/hooks"
	"github.com/evmrelay/x402-facilitator/internal/registry"
	"github.com/evmrelay/x402-facilitator/internal/x402err"
	"github.com/evmrelay/x402-facilitator/internal/x402header"
)

// Request is the input to Verify: a raw header plus the merchant's
// stated requirements.
type Request struct {
	Network           string
	Asset             string
	PayTo             string
	MaxAmountRequired string
	PaymentHeader     interface{}
}

// Result is the Verifier's output, per spec.md §4.4.
type Result struct {
	IsValid       bool
	InvalidReason string
	Payer         string
	Decimals      uint8
	Auth          x402header.Authorization
}

// Verifier checks a payment authorization against a live chain.
type Verifier struct {
	registry *registry.Registry
	hooks    *hooks.Hooks
}

// New builds a Verifier bound to the given Chain & Token Registry.
func New(reg *registry.Registry) *Verifier {
	return &Verifier{registry: reg}
}

// WithHooks attaches lifecycle hooks (BeforeVerify/AfterVerify/
// OnVerifyFailure), fired around every Verify call.
func (v *Verifier) WithHooks(h *hooks.Hooks) *Verifier {
	v.hooks = h
	return v
}

// Verify runs the ten-step algorithm of spec.md §4.4. It never
// returns a non-nil error for expected failure conditions — those are
// surfaced via Result.InvalidReason — but does return an error for
// unexpected / RPC failures, consistent with "RPC failures propagate
// as invalidReason... the Verifier never throws; it reports" being
// interpreted at the Gateway boundary as an RpcError, not a panic.
func (v *Verifier) Verify(ctx context.Context, req Request) (Result, error) {
	hctx := hooks.VerifyContext{Network: req.Network, Asset: req.Asset, PayTo: req.PayTo, MaxAmountRequired: req.MaxAmountRequired}
	var result Result
	_, err := v.hooks.FireVerify(ctx, hctx, func() (hooks.VerifyOutcome, error) {
		r, err := v.verify(ctx, req)
		result = r
		return hooks.VerifyOutcome{IsValid: r.IsValid, InvalidReason: r.InvalidReason}, err
	})
	return result, err
}

func (v *Verifier) verify(ctx context.Context, req Request) (Result, error) {
	// 1. Resolve network.
	network, err := v.registry.ChainOf(req.Network)
	if err != nil {
		return Result{IsValid: false, InvalidReason: err.Error()}, nil
	}

	// 2. Normalize the header.
	auth, err := x402header.Normalize(req.PaymentHeader)
	if err != nil {
		return Result{IsValid: false, InvalidReason: err.Error()}, nil
	}

	// 3. Look up token config and decimals.
	token, err := v.registry.TokenBySymbolOrAddress(network.Slug, req.Asset)
	if err != nil {
		return Result{IsValid: false, InvalidReason: err.Error()}, nil
	}
	tokenAddress, err := v.registry.AddressOf(network.Slug, token.Symbol)
	if err != nil {
		return Result{IsValid: false, InvalidReason: err.Error()}, nil
	}

	// 4. Parse required amount.
	amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return Result{IsValid: false, InvalidReason: fmt.Sprintf("invalid required amount: %s", req.MaxAmountRequired)}, nil
	}

	now := time.Now().Unix()

	// 5. validAfter check.
	if auth.ValidAfter != "" {
		validAfter, ok := new(big.Int).SetString(auth.ValidAfter, 10)
		if ok && now < validAfter.Int64() {
			return Result{IsValid: false, InvalidReason: fmt.Sprintf("Authorization not yet valid (validAfter=%s, now=%d)", auth.ValidAfter, now)}, nil
		}
	}

	// 6. validBefore check.
	if auth.ValidBefore != "" {
		validBefore, ok := new(big.Int).SetString(auth.ValidBefore, 10)
		if ok && now > validBefore.Int64() {
			return Result{IsValid: false, InvalidReason: fmt.Sprintf("Authorization expired (validBefore=%s, now=%d)", auth.ValidBefore, now)}, nil
		}
	}

	if !strings.EqualFold(auth.To, req.PayTo) {
		return Result{IsValid: false, InvalidReason: "recipient mismatch"}, nil
	}

	client, err := v.registry.PublicClient(network.Slug)
	if err != nil {
		return Result{IsValid: false, InvalidReason: err.Error()}, nil
	}

	// 7. Balance check.
	balance, err := client.BalanceOf(ctx, auth.From, tokenAddress)
	if err != nil {
		return Result{}, x402err.Rpc(err)
	}
	authValue, ok := new(big.Int).SetString(auth.Value, 10)
	if !ok {
		return Result{IsValid: false, InvalidReason: fmt.Sprintf("invalid authorization value: %s", auth.Value)}, nil
	}
	if authValue.Cmp(amount) < 0 {
		return Result{IsValid: false, InvalidReason: "insufficient amount"}, nil
	}
	if balance.Cmp(authValue) < 0 {
		return Result{IsValid: false, InvalidReason: fmt.Sprintf("Insufficient %s balance. Required: %s, Available: %s", token.Symbol, authValue.String(), balance.String())}, nil
	}

	if token.SupportsEIP3009 {
		// 8. Nonce-used check.
		used, err := checkNonceUsed(ctx, client, tokenAddress, auth.From, auth.Nonce)
		if err != nil {
			return Result{}, x402err.Rpc(err)
		}
		if used {
			return Result{IsValid: false, InvalidReason: fmt.Sprintf("Authorization already used (nonce: %s)", auth.Nonce)}, nil
		}

		if err := v.verifyEIP3009Signature(ctx, network.Slug, network.ChainID, tokenAddress, token.Symbol, auth); err != nil {
			return Result{IsValid: false, InvalidReason: err.Error()}, nil
		}
	} else {
		// 9. Allowance check (relayer mode).
		facilitatorAddr, err := v.registry.FacilitatorAddress(network.Slug)
		if err != nil {
			return Result{}, x402err.Rpc(err)
		}
		allowance, err := client.Allowance(ctx, tokenAddress, auth.From, facilitatorAddr)
		if err != nil {
			return Result{}, x402err.Rpc(err)
		}
		if allowance.Cmp(authValue) < 0 {
			return Result{IsValid: false, InvalidReason: fmt.Sprintf("Insufficient allowance. Required: %s, Available: %s", authValue.String(), allowance.String())}, nil
		}
	}

	// 10. Success.
	return Result{IsValid: true, Payer: auth.From, Decimals: token.Decimals, Auth: auth}, nil
}

func checkNonceUsed(ctx context.Context, client *chainclient.Client, tokenAddress, from, nonceHex string) (bool, error) {
	nonceBytes, err := hexToBytes32(nonceHex)
	if err != nil {
		return false, err
	}
	result, err := client.ReadContract(ctx, tokenAddress, chainclient.AuthorizationStateABI, chainclient.FunctionAuthorizationState, addressFromHex(from), nonceBytes)
	if err != nil {
		return false, err
	}
	used, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("unexpected authorizationState result type %T", result)
	}
	return used, nil
}

func (v *Verifier) verifyEIP3009Signature(ctx context.Context, network string, chainID uint64, tokenAddress, symbol string, auth x402header.Authorization) error {
	name, version, err := v.registry.EIP3009Domain(network, symbol)
	if err != nil {
		return err
	}

	domain := chainclient.TypedDataDomain{
		Name:              name,
		Version:           version,
		ChainID:           new(big.Int).SetUint64(chainID),
		VerifyingContract: tokenAddress,
	}
	types := map[string][]chainclient.TypedDataField{
		"EIP712Domain": {
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		},
		"TransferWithAuthorization": {
			{Name: "from", Type: "address"},
			{Name: "to", Type: "address"},
			{Name: "value", Type: "uint256"},
			{Name: "validAfter", Type: "uint256"},
			{Name: "validBefore", Type: "uint256"},
			{Name: "nonce", Type: "bytes32"},
		},
	}

	message := map[string]interface{}{
		"from":        auth.From,
		"to":          auth.To,
		"value":       bigOrZero(auth.Value),
		"validAfter":  bigOrZero(auth.ValidAfter),
		"validBefore": bigOrZero(auth.ValidBefore),
		"nonce":       mustHexBytes32(auth.Nonce),
	}

	sigBytes, err := hexToBytesVar(x402header.CombineSignature(auth.V, auth.R, auth.S))
	if err != nil {
		return fmt.Errorf("invalid signature format")
	}

	valid, err := chainclient.VerifyTypedData(auth.From, domain, types, "TransferWithAuthorization", message, sigBytes)
	if err != nil {
		return fmt.Errorf("invalid signature")
	}
	if !valid {
		return fmt.Errorf("invalid signature")
	}
	return nil
}
