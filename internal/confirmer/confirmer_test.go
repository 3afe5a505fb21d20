package confirmer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRun_NilStoreIsNoopUntilCancelled(t *testing.T) {
	c := New(nil, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("Run returned before context was cancelled")
	case <-time.After(20 * time.Millisecond):
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}

func TestRecord_IsTerminal(t *testing.T) {
	assert.False(t, Record{Status: StatusPending}.isTerminal())
	assert.False(t, Record{Status: StatusPartialSettlement}.isTerminal())
	assert.True(t, Record{Status: StatusConfirmed}.isTerminal())
	assert.True(t, Record{Status: StatusFailed}.isTerminal())
}
