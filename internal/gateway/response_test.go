package gateway

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/evmrelay/x402-facilitator/internal/fee"
)

func TestReportID_Format(t *testing.T) {
	id := reportID("1700000000")
	assert.True(t, strings.HasPrefix(id, "req_1700000000_"))
	suffix := strings.TrimPrefix(id, "req_1700000000_")
	assert.Len(t, suffix, 9)
}

func TestReportID_UniqueAcrossCalls(t *testing.T) {
	a := reportID("1700000000")
	b := reportID("1700000000")
	assert.NotEqual(t, a, b)
}

func TestConsensusProof_DeterministicAndLength(t *testing.T) {
	a := consensusProof("base-sepolia", "0xpayto", "0xnonce", "1700000000")
	b := consensusProof("base-sepolia", "0xpayto", "0xnonce", "1700000000")
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
}

func TestConsensusProof_DiffersOnInputChange(t *testing.T) {
	a := consensusProof("base-sepolia", "0xpayto", "0xnonce", "1700000000")
	b := consensusProof("base", "0xpayto", "0xnonce", "1700000000")
	assert.NotEqual(t, a, b)
}

func TestFeeBreakdownJSON_Shape(t *testing.T) {
	b := fee.Compute(big.NewInt(1000000), 6, "USDC", fee.DefaultFeeBps)
	out := feeBreakdownJSON(b)

	amount := out["amount"].(map[string]interface{})
	assert.Equal(t, "1", amount["human"])
	assert.Equal(t, "1000000", amount["base"])
	assert.Equal(t, "USDC", amount["symbol"])

	feeLeg := out["fee"].(map[string]interface{})
	assert.Equal(t, "10000", feeLeg["base"])

	net := out["net"].(map[string]interface{})
	assert.Equal(t, "990000", net["base"])
}
