package confirmer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/evmrelay/x402-facilitator/internal/metrics"
	"github.com/evmrelay/x402-facilitator/internal/registry"
)

// sweepInterval and maxPerSweep are the fixed parameters of spec.md
// §4.6: every 30 seconds, up to 50 non-terminal records per tick.
const (
	sweepInterval = 30 * time.Second
	maxPerSweep   = 50
)

// Confirmer is the background Finality Confirmer loop: it polls the
// transaction store for non-terminal records and advances their
// confirmation count (and terminal status) against the chain.
//
// Grounded on the teacher's extensions/idempotency in-memory store for
// the persistence seam, and on the general "cooperative background
// task awaiting a ticker plus a shutdown signal" shape called for by
// spec.md §9's design notes — the teacher itself has no sweep loop, so
// this is new code built in the teacher's idiom (ctx-cancellation,
// zap structured logging, no goroutine leaks).
type Confirmer struct {
	store    Store
	registry *registry.Registry
	log      *zap.Logger
}

// New builds a Confirmer. store may be nil, in which case Run is a
// no-op loop (spec.md §4.6: "If transaction store is not configured
// (e.g., testing mode), loop is no-op").
func New(store Store, reg *registry.Registry, log *zap.Logger) *Confirmer {
	return &Confirmer{store: store, registry: reg, log: log}
}

// Run blocks, sweeping immediately and then every sweepInterval, until
// ctx is cancelled.
func (c *Confirmer) Run(ctx context.Context) {
	if c.store == nil {
		<-ctx.Done()
		return
	}

	c.sweep(ctx)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

// sweep performs one pass over up to maxPerSweep non-terminal records.
// A failure on one record is logged and does not abort the rest of the
// sweep, per spec.md §4.6 step 4.
func (c *Confirmer) sweep(ctx context.Context) {
	start := time.Now()
	records := c.store.NonTerminal(maxPerSweep)
	metrics.SweepRecords.Observe(float64(len(records)))

	for _, record := range records {
		if err := c.confirmOne(ctx, record); err != nil {
			c.log.Warn("confirmer: failed to check transaction",
				zap.String("id", record.ID),
				zap.String("tx_hash", record.TxHash),
				zap.Error(err),
			)
		}
	}
	metrics.SweepDuration.Observe(time.Since(start).Seconds())
}

func (c *Confirmer) confirmOne(ctx context.Context, record Record) error {
	network, err := c.registry.ChainOf(record.Chain)
	if err != nil {
		return err
	}
	client, err := c.registry.PublicClient(network.Slug)
	if err != nil {
		return err
	}

	receipt, err := client.TransactionReceipt(ctx, record.TxHash)
	if err != nil {
		return err
	}
	if receipt == nil {
		// Not yet mined; leave the record's confirmation count as-is.
		return nil
	}
	currentBlock, err := client.BlockNumber(ctx)
	if err != nil {
		return err
	}

	confirmations := uint64(0)
	if currentBlock >= receipt.BlockNumber {
		confirmations = currentBlock - receipt.BlockNumber
	}

	if confirmations >= network.RequiredConfirmations {
		now := time.Now()
		status := StatusConfirmed
		if receipt.Status != 1 {
			status = StatusFailed
		}
		record.Status = status
		record.Confirmations = confirmations
		record.ConfirmedAt = &now
		c.store.Put(record)
		return nil
	}

	record.Confirmations = confirmations
	c.store.Put(record)
	return nil
}
