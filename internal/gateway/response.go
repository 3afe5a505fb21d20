package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/evmrelay/x402-facilitator/internal/fee"
)

// reportID mints a req_<timestamp>_<9-char random> identifier, per
// spec.md §4.7. The random suffix is sourced from google/uuid rather
// than math/rand so it stays cryptographically unpredictable in a
// process already paying for a uuid dependency elsewhere.
func reportID(stableTimestamp string) string {
	return fmt.Sprintf("req_%s_%s", stableTimestamp, uuid.New().String()[:9])
}

// consensusProof derives a 64-hex-char id for a successful
// verification/settlement, per spec.md §4.7 ("64-hex-char derived id
// when valid"). It is not a cryptographic attestation, only a stable
// derived identifier, so a plain sha256 digest of the inputs suffices.
func consensusProof(network, payTo, nonce, stableTimestamp string) string {
	h := sha256.Sum256([]byte(network + ":" + payTo + ":" + nonce + ":" + stableTimestamp))
	return hex.EncodeToString(h[:])
}

func stableTimestampNow() string {
	return strconv.FormatInt(time.Now().Unix(), 10)
}

// feeBreakdownJSON assembles the {amount, fee, net} body shared by
// both /verify and /settle responses (spec.md §3's FeeBreakdown, §4.7's
// "fee breakdown always populated").
func feeBreakdownJSON(b fee.Breakdown) map[string]interface{} {
	asJSON := func(a fee.AssetAmount) map[string]interface{} {
		return map[string]interface{}{
			"human":  a.Human,
			"base":   a.Base,
			"symbol": a.Symbol,
		}
	}
	return map[string]interface{}{
		"amount": asJSON(b.Amount),
		"fee":    asJSON(b.Fee),
		"net":    asJSON(b.Net),
	}
}
