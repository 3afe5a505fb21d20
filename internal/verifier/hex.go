package verifier

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

func addressFromHex(hex string) common.Address {
	return common.HexToAddress(hex)
}

func hexToBytes32(hex string) ([32]byte, error) {
	return [32]byte(common.HexToHash(hex)), nil
}

func mustHexBytes32(hex string) [32]byte {
	return [32]byte(common.HexToHash(hex))
}

func bigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return n
}

func hexToBytesVar(hex string) ([]byte, error) {
	return hexutil.Decode(ensure0x(hex))
}

func ensure0x(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s
	}
	return "0x" + s
}
