// Package hooks implements the Verifier/Settler lifecycle hooks:
// optional callbacks fired around each Verify/Settle attempt so that
// cross-cutting concerns (logging, metrics) can be wired from the
// process entrypoint instead of being hardcoded into the algorithm
// bodies, in the same spirit as the teacher's facilitator_hooks.go
// BeforeVerify/AfterVerify/OnVerifyFailure/BeforeSettle/AfterSettle/
// OnSettleFailure set.
//
// Hook context/outcome types are deliberately plain structs rather
// than the verifier/settler packages' own Request/Result/Outcome
// types, so this package has no import on either — Verifier and
// Settler both depend on Hooks, never the reverse.
package hooks

import "context"

// VerifyContext is the subset of a verify request a hook observer
// needs.
type VerifyContext struct {
	Network           string
	Asset             string
	PayTo             string
	MaxAmountRequired string
}

// VerifyOutcome is the subset of a verify result a hook observer
// needs.
type VerifyOutcome struct {
	IsValid       bool
	InvalidReason string
}

// SettleContext is the subset of a settle request a hook observer
// needs.
type SettleContext struct {
	Network           string
	Asset             string
	PayTo             string
	MaxAmountRequired string
	AgentID           string
}

// SettleOutcome is the subset of a settle outcome a hook observer
// needs.
type SettleOutcome struct {
	Status string
	TxHash string
}

// Hooks is the set of lifecycle callbacks a Verifier or Settler may be
// configured with. A nil field is simply not called. None of these are
// expected to return an error: a hook observes, it does not gate the
// underlying operation.
type Hooks struct {
	BeforeVerify    func(ctx context.Context, req VerifyContext)
	AfterVerify     func(ctx context.Context, req VerifyContext, outcome VerifyOutcome)
	OnVerifyFailure func(ctx context.Context, req VerifyContext, err error)

	BeforeSettle    func(ctx context.Context, req SettleContext)
	AfterSettle     func(ctx context.Context, req SettleContext, outcome SettleOutcome)
	OnSettleFailure func(ctx context.Context, req SettleContext, err error)
}

func (h *Hooks) fireBeforeVerify(ctx context.Context, req VerifyContext) {
	if h != nil && h.BeforeVerify != nil {
		h.BeforeVerify(ctx, req)
	}
}

func (h *Hooks) fireAfterVerify(ctx context.Context, req VerifyContext, outcome VerifyOutcome) {
	if h != nil && h.AfterVerify != nil {
		h.AfterVerify(ctx, req, outcome)
	}
}

func (h *Hooks) fireOnVerifyFailure(ctx context.Context, req VerifyContext, err error) {
	if h != nil && h.OnVerifyFailure != nil {
		h.OnVerifyFailure(ctx, req, err)
	}
}

func (h *Hooks) fireBeforeSettle(ctx context.Context, req SettleContext) {
	if h != nil && h.BeforeSettle != nil {
		h.BeforeSettle(ctx, req)
	}
}

func (h *Hooks) fireAfterSettle(ctx context.Context, req SettleContext, outcome SettleOutcome) {
	if h != nil && h.AfterSettle != nil {
		h.AfterSettle(ctx, req, outcome)
	}
}

func (h *Hooks) fireOnSettleFailure(ctx context.Context, req SettleContext, err error) {
	if h != nil && h.OnSettleFailure != nil {
		h.OnSettleFailure(ctx, req, err)
	}
}

// FireVerify dispatches the appropriate before/after/failure trio for a
// verify attempt around fn, in one call so Verifier.Verify does not
// need an early-return-safe defer at every one of its ten steps.
func (h *Hooks) FireVerify(ctx context.Context, req VerifyContext, fn func() (VerifyOutcome, error)) (VerifyOutcome, error) {
	h.fireBeforeVerify(ctx, req)
	outcome, err := fn()
	if err != nil {
		h.fireOnVerifyFailure(ctx, req, err)
	} else {
		h.fireAfterVerify(ctx, req, outcome)
	}
	return outcome, err
}

// FireSettle is FireVerify's settle-side counterpart.
func (h *Hooks) FireSettle(ctx context.Context, req SettleContext, fn func() (SettleOutcome, error)) (SettleOutcome, error) {
	h.fireBeforeSettle(ctx, req)
	outcome, err := fn()
	if err != nil {
		h.fireOnSettleFailure(ctx, req, err)
	} else {
		h.fireAfterSettle(ctx, req, outcome)
	}
	return outcome, err
}
