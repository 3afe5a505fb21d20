package chainclient

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// TypedDataDomain is the EIP-712 domain separator for a token contract.
type TypedDataDomain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract string
}

// TypedDataField is one field of an EIP-712 struct type.
type TypedDataField struct {
	Name string
	Type string
}

func toAPITypes(domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) apitypes.TypedData {
	td := apitypes.TypedData{
		Types:       make(apitypes.Types),
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(domain.ChainID),
			VerifyingContract: domain.VerifyingContract,
		},
		Message: message,
	}
	for typeName, fields := range types {
		typedFields := make([]apitypes.Type, len(fields))
		for i, field := range fields {
			typedFields[i] = apitypes.Type{Name: field.Name, Type: field.Type}
		}
		td.Types[typeName] = typedFields
	}
	if _, exists := td.Types["EIP712Domain"]; !exists {
		td.Types["EIP712Domain"] = []apitypes.Type{
			{Name: "name", Type: "string"},
			{Name: "version", Type: "string"},
			{Name: "chainId", Type: "uint256"},
			{Name: "verifyingContract", Type: "address"},
		}
	}
	return td
}

// HashTypedData computes keccak256("\x19\x01" || domainSeparator || structHash),
// the digest that EIP-712 signatures are computed over.
func HashTypedData(domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}) ([]byte, error) {
	td := toAPITypes(domain, types, primaryType, message)

	structHash, err := td.HashStruct(td.PrimaryType, td.Message)
	if err != nil {
		return nil, fmt.Errorf("hash struct: %w", err)
	}
	domainHash, err := td.HashStruct("EIP712Domain", td.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("hash domain: %w", err)
	}

	raw := append([]byte{0x19, 0x01}, domainHash...)
	raw = append(raw, structHash...)
	return crypto.Keccak256(raw), nil
}

// VerifyTypedData recovers the signer of an EIP-712 digest and reports
// whether it matches the claimed address.
func VerifyTypedData(address string, domain TypedDataDomain, types map[string][]TypedDataField, primaryType string, message map[string]interface{}, signature []byte) (bool, error) {
	digest, err := HashTypedData(domain, types, primaryType, message)
	if err != nil {
		return false, err
	}
	if len(signature) != 65 {
		return false, fmt.Errorf("signature must be 65 bytes, got %d", len(signature))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, fmt.Errorf("recover signer: %w", err)
	}
	recovered := crypto.PubkeyToAddress(*pubKey)
	return strings.EqualFold(recovered.Hex(), address), nil
}
