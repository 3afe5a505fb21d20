// Package fee implements the Fee Engine (spec.md §4.3): a pure
// function over base-unit integers that computes a transparent
// fee/net breakdown at a fixed rate.
//
// Human-readable formatting uses shopspring/decimal (the library the
// pack's vitwit-x402-go module declares for exactly this purpose)
// rather than floating point, to avoid base-unit rounding drift.
package fee

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultFeeBps is the process-wide fee rate: 100 bps = 1%.
const DefaultFeeBps = 100

// AssetAmount is one leg of a FeeBreakdown: a base-unit integer
// alongside its human-readable, trailing-zero-trimmed decimal form.
type AssetAmount struct {
	Human  string
	Base   string
	Symbol string
}

// Breakdown is the FeeBreakdown of spec.md §3.
type Breakdown struct {
	Amount AssetAmount
	Fee    AssetAmount
	Net    AssetAmount
}

// Compute returns the FeeBreakdown for amount base units of a token
// with the given decimals and symbol, at feeBps basis points.
//
// Invariant: Fee.Base + Net.Base = Amount.Base exactly, and
// Fee.Base = floor(Amount.Base * feeBps / 10000).
func Compute(amount *big.Int, decimals uint8, symbol string, feeBps int64) Breakdown {
	feeBase := new(big.Int).Mul(amount, big.NewInt(feeBps))
	feeBase.Div(feeBase, big.NewInt(10000))

	netBase := new(big.Int).Sub(amount, feeBase)

	return Breakdown{
		Amount: toAssetAmount(amount, decimals, symbol),
		Fee:    toAssetAmount(feeBase, decimals, symbol),
		Net:    toAssetAmount(netBase, decimals, symbol),
	}
}

func toAssetAmount(base *big.Int, decimals uint8, symbol string) AssetAmount {
	human := decimal.NewFromBigInt(base, -int32(decimals)).StringFixed(int32(decimals))
	return AssetAmount{
		Human:  trimTrailingZeros(human),
		Base:   base.String(),
		Symbol: symbol,
	}
}

// trimTrailingZeros removes trailing zeros (and a dangling decimal
// point) from a fixed-decimal string, per spec.md §4.3's
// "format x / 10^decimals with trailing-zero trim".
func trimTrailingZeros(s string) string {
	if !strings.Contains(s, ".") {
		return s
	}
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}
