// Package settler implements the Settler (spec.md §4.5): dispatches
// to the EIP-3009 or relayer strategy, submits the transaction(s),
// waits until each is mined, and classifies the outcome from that
// single receipt. The network's required confirmation depth is not
// awaited here; Outcome.Confirmations reports that configured depth,
// not a count measured on chain.
//
// Dispatch-by-capability and the EIP-3009 write path are grounded on
// the teacher's mechanisms/evm/facilitator.go ExactEvmFacilitator.Settle;
// the concurrent dual-transfer relayer path is grounded on
// vitwit-x402-go's settlement/settle.go BatchSettle goroutine
// fan-out pattern, adapted from batch-of-requests to batch-of-legs of
// a single settlement.
package settler

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/evmrelay/x402-facilitator/internal/chainclient"
	"github.com/evmrelay/x402-facilitator/internal/config"
	"github.com/evmrelay/x402-facilitator/internal/confirmer"
	"github.com/evmrelay/x402-facilitator/internal/fee"
	"github.com/evmrelay/x402-facilitator/internal/hooks"
	"github.com/evmrelay/x402-facilitator/internal/registry"
	"github.com/evmrelay/x402-facilitator/internal/verifier"
	"github.com/evmrelay/x402-facilitator/internal/x402err"
	"github.com/evmrelay/x402-facilitator/internal/x402header"
)

// Status is a TransactionRecord's settlement status (spec.md §3).
type Status string

const (
	StatusPending           Status = "pending"
	StatusPartialSettlement Status = "partial_settlement"
	StatusConfirmed         Status = "confirmed"
	StatusFailed            Status = "failed"
)

// Request is the Settler's input.
type Request struct {
	Network           string
	Asset             string
	PayTo             string
	MaxAmountRequired string
	PaymentHeader     interface{}
	AgentID           string
}

// Outcome is the Settler's output, per spec.md §4.5.
type Outcome struct {
	TxHash        string
	TxHashFee     string
	Status        Status
	Confirmations uint64
	Payer         string
	EvidenceHash  string
	ProofOfAgency string
}

// AgentAnchor is the optional external "identity" collaborator of
// spec.md §4.5.3: after a successful EIP-3009 settlement with an
// agentId present, the Settler may anchor the payment to an external
// reputation registry. Failure here is non-fatal.
type AgentAnchor interface {
	Anchor(ctx context.Context, agentID, txHash, chain, amount string) (evidenceHash, proofOfAgency string, err error)
}

// Settler dispatches settlement to the strategy selected by the
// token's SupportsEIP3009 capability flag.
type Settler struct {
	registry *registry.Registry
	verifier *verifier.Verifier
	cfg      *config.Config
	anchor   AgentAnchor
	store    confirmer.Store
	hooks    *hooks.Hooks
}

// New builds a Settler bound to the given registry, verifier
// (re-run before every settlement attempt, per spec.md §4.5.1 step 1
// and §4.5's algorithm), and configuration.
func New(reg *registry.Registry, v *verifier.Verifier, cfg *config.Config) *Settler {
	return &Settler{registry: reg, verifier: v, cfg: cfg}
}

// WithAgentAnchor enables the optional agent-anchoring side effect.
func (s *Settler) WithAgentAnchor(anchor AgentAnchor) *Settler {
	s.anchor = anchor
	return s
}

// WithTransactionStore registers the persistence collaborator the
// Finality Confirmer sweeps. Settle is a no-op with respect to
// persistence if this is never called (spec.md §4.6: "if transaction
// store unconfigured, loop is no-op").
func (s *Settler) WithTransactionStore(store confirmer.Store) *Settler {
	s.store = store
	return s
}

// WithHooks attaches lifecycle hooks (BeforeSettle/AfterSettle/
// OnSettleFailure), fired around every Settle call.
func (s *Settler) WithHooks(h *hooks.Hooks) *Settler {
	s.hooks = h
	return s
}

// Settle re-verifies the payment and, if valid, submits it on-chain
// via the strategy selected by the token's capability flag.
func (s *Settler) Settle(ctx context.Context, req Request) (Outcome, error) {
	hctx := hooks.SettleContext{Network: req.Network, Asset: req.Asset, PayTo: req.PayTo, MaxAmountRequired: req.MaxAmountRequired, AgentID: req.AgentID}
	var outcome Outcome
	_, err := s.hooks.FireSettle(ctx, hctx, func() (hooks.SettleOutcome, error) {
		o, err := s.settle(ctx, req)
		outcome = o
		return hooks.SettleOutcome{Status: string(o.Status), TxHash: o.TxHash}, err
	})
	return outcome, err
}

func (s *Settler) settle(ctx context.Context, req Request) (Outcome, error) {
	verifyResult, err := s.verifier.Verify(ctx, verifier.Request{
		Network:           req.Network,
		Asset:             req.Asset,
		PayTo:             req.PayTo,
		MaxAmountRequired: req.MaxAmountRequired,
		PaymentHeader:     req.PaymentHeader,
	})
	if err != nil {
		return Outcome{}, err
	}
	if !verifyResult.IsValid {
		return Outcome{}, x402err.Settlement("%s", verifyResult.InvalidReason)
	}

	network, err := s.registry.ChainOf(req.Network)
	if err != nil {
		return Outcome{}, err
	}
	token, err := s.registry.TokenBySymbolOrAddress(network.Slug, req.Asset)
	if err != nil {
		return Outcome{}, err
	}
	tokenAddress, err := s.registry.AddressOf(network.Slug, token.Symbol)
	if err != nil {
		return Outcome{}, err
	}
	client, err := s.registry.WalletClient(network.Slug)
	if err != nil {
		return Outcome{}, err
	}

	amount, ok := new(big.Int).SetString(req.MaxAmountRequired, 10)
	if !ok {
		return Outcome{}, x402err.Settlement("invalid required amount: %s", req.MaxAmountRequired)
	}

	var outcome Outcome
	if token.SupportsEIP3009 {
		outcome, err = s.settleEIP3009(ctx, client, tokenAddress, network.RequiredConfirmations, verifyResult.Auth)
		if err == nil && outcome.Status == StatusConfirmed && req.AgentID != "" && s.anchor != nil {
			s.anchorAgent(ctx, req.AgentID, outcome.TxHash, network.Slug, verifyResult.Auth.Value, &outcome)
		}
	} else {
		outcome, err = s.settleRelayer(ctx, client, tokenAddress, network.RequiredConfirmations, verifyResult.Auth, req.PayTo, amount)
	}

	s.persist(outcome, network.Slug)
	return outcome, err
}

// persist records the settlement outcome for the Finality Confirmer
// to sweep. A no-op if no transaction store was registered.
func (s *Settler) persist(outcome Outcome, chain string) {
	if s.store == nil || outcome.TxHash == "" {
		return
	}
	status := confirmer.StatusPending
	switch outcome.Status {
	case StatusConfirmed:
		status = confirmer.StatusConfirmed
	case StatusFailed:
		status = confirmer.StatusFailed
	case StatusPartialSettlement:
		status = confirmer.StatusPartialSettlement
	}
	s.store.Put(confirmer.Record{
		ID:            uuid.New().String(),
		TxHash:        outcome.TxHash,
		TxHashFee:     outcome.TxHashFee,
		Chain:         chain,
		Status:        status,
		Confirmations: outcome.Confirmations,
	})
}

// anchorAgent calls the optional agent-identity collaborator. Failure
// here is non-fatal: the error is discarded without being logged, and
// evidenceHash/proofOfAgency are simply omitted from the response.
func (s *Settler) anchorAgent(ctx context.Context, agentID, txHash, chain, amount string, outcome *Outcome) {
	evidenceHash, proofOfAgency, err := s.anchor.Anchor(ctx, agentID, txHash, chain, amount)
	if err != nil {
		return
	}
	outcome.EvidenceHash = evidenceHash
	outcome.ProofOfAgency = proofOfAgency
}

// settleEIP3009 implements spec.md §4.5.1: the signed amount is used
// verbatim for the on-chain transfer, never the fee-adjusted net
// amount, because the EIP-712 signature is computed over that exact
// value.
func (s *Settler) settleEIP3009(ctx context.Context, client *chainclient.Client, tokenAddress string, requiredConfirmations uint64, auth x402header.Authorization) (Outcome, error) {
	value := bigOrZeroStr(auth.Value)
	validAfter := bigOrZeroStr(auth.ValidAfter)
	validBefore := bigOrZeroStr(auth.ValidBefore)
	if auth.ValidBefore == "" {
		validBefore = big.NewInt(time.Now().Unix() + 3600)
	}

	nonce := common.HexToHash(auth.Nonce)
	r := common.HexToHash(auth.R)
	sArr := common.HexToHash(auth.S)

	txHash, err := client.WriteContract(
		ctx,
		tokenAddress,
		chainclient.TransferWithAuthorizationABI,
		chainclient.FunctionTransferWithAuthorization,
		common.HexToAddress(auth.From),
		common.HexToAddress(auth.To),
		value,
		validAfter,
		validBefore,
		[32]byte(nonce),
		auth.V,
		[32]byte(r),
		[32]byte(sArr),
	)
	if err != nil {
		return Outcome{}, x402err.Settlement("failed to execute transferWithAuthorization: %v", err)
	}

	receipt, err := client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return Outcome{TxHash: txHash, Status: StatusPending}, x402err.Settlement("failed to get receipt: %v", err)
	}

	if receipt.Status != chainclient.TxStatusSuccess {
		return Outcome{TxHash: txHash, Status: StatusFailed}, nil
	}
	return Outcome{
		TxHash:        txHash,
		Status:        StatusConfirmed,
		Confirmations: requiredConfirmations,
		Payer:         auth.From,
	}, nil
}

// relayerLegResult is the outcome of one of the relayer strategy's
// two concurrent transferFrom calls.
type relayerLegResult struct {
	txHash  string
	success bool
	err     error
}

// settleRelayer implements spec.md §4.5.2: two transferFrom calls
// (merchant leg, treasury fee leg) submitted concurrently via the
// same wallet client, their receipts awaited in parallel.
func (s *Settler) settleRelayer(ctx context.Context, client *chainclient.Client, tokenAddress string, requiredConfirmations uint64, auth x402header.Authorization, payTo string, amount *big.Int) (Outcome, error) {
	if err := s.cfg.RequireTreasury(); err != nil {
		return Outcome{}, err
	}

	feeBase := new(big.Int).Mul(amount, big.NewInt(fee.DefaultFeeBps))
	feeBase.Div(feeBase, big.NewInt(10000))
	netAmount := new(big.Int).Sub(amount, feeBase)

	merchantCh := make(chan relayerLegResult, 1)
	feeCh := make(chan relayerLegResult, 1)

	go func() {
		merchantCh <- s.submitTransferFrom(ctx, client, tokenAddress, auth.From, payTo, netAmount)
	}()
	go func() {
		feeCh <- s.submitTransferFrom(ctx, client, tokenAddress, auth.From, s.cfg.TreasuryAddress, feeBase)
	}()

	merchantResult := <-merchantCh
	feeResult := <-feeCh

	if merchantResult.success && feeResult.success {
		return Outcome{
			TxHash:        merchantResult.txHash,
			TxHashFee:     feeResult.txHash,
			Status:        StatusConfirmed,
			Confirmations: requiredConfirmations,
			Payer:         auth.From,
		}, nil
	}

	return Outcome{
		TxHash:    merchantResult.txHash,
		TxHashFee: feeResult.txHash,
		Status:    StatusPartialSettlement,
		Payer:     auth.From,
	}, nil
}

func (s *Settler) submitTransferFrom(ctx context.Context, client *chainclient.Client, tokenAddress, from, to string, amount *big.Int) relayerLegResult {
	txHash, err := client.WriteContract(
		ctx,
		tokenAddress,
		chainclient.TransferFromABI,
		chainclient.FunctionTransferFrom,
		common.HexToAddress(from),
		common.HexToAddress(to),
		amount,
	)
	if err != nil {
		return relayerLegResult{err: fmt.Errorf("transferFrom to %s failed: %w", to, err)}
	}

	receipt, err := client.WaitForTransactionReceipt(ctx, txHash)
	if err != nil {
		return relayerLegResult{txHash: txHash, err: err}
	}
	return relayerLegResult{txHash: txHash, success: receipt.Status == chainclient.TxStatusSuccess}
}

func bigOrZeroStr(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}
