// Package x402header implements the Payment-Header Normalizer
// (spec.md §4.2): it accepts three input shapes and produces one
// canonical Authorization record with a split signature.
//
// Grounded on the teacher's utils.go findByNetworkAndScheme-style
// structural dispatch and vitwit's ParseEvmPaymentPayload shape
// sniffing (clients/ethereum.go), generalized to the five-rule
// recognition order spec.md lays out.
package x402header

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

// Authorization is the canonical post-normalization form of §3's
// Authorization data model entry.
type Authorization struct {
	From        string
	To          string
	Value       string
	ValidAfter  string // unix seconds, optional ("" if absent)
	ValidBefore string // unix seconds, optional ("" if absent)
	Nonce       string // 0x-prefixed 32-byte hex
	V           uint8
	R           string // 0x-prefixed 32-byte hex
	S           string // 0x-prefixed 32-byte hex
	Signature   string // combined 0x-prefixed 65-byte hex, if recoverable
}

// Normalize accepts a base64-encoded JSON string or a structured
// object (map[string]interface{}, already-decoded JSON) and produces
// the canonical Authorization, per spec.md §4.2's five-rule order.
func Normalize(header interface{}) (Authorization, error) {
	obj, err := toObject(header)
	if err != nil {
		return Authorization{}, err
	}

	switch {
	case hasKey(obj, "payload"):
		payload, _ := obj["payload"].(map[string]interface{})
		auth, _ := payload["authorization"].(map[string]interface{})
		if auth == nil {
			return Authorization{}, x402err.InvalidHeader("payload.authorization is missing")
		}
		a, err := fromFlatFields(auth)
		if err != nil {
			return Authorization{}, err
		}
		if sig, ok := payload["signature"].(string); ok {
			a.Signature = sig
		}
		if v, ok := obj["v"]; ok {
			applyTopLevelVRS(&a, obj, v)
		}
		return finish(a)

	case hasKey(obj, "from") && hasKey(obj, "nonce"):
		a, err := fromFlatFields(obj)
		if err != nil {
			return Authorization{}, err
		}
		return finish(a)

	case hasKey(obj, "sender") && hasKey(obj, "nonce"):
		renamed := map[string]interface{}{}
		for k, v := range obj {
			renamed[k] = v
		}
		renamed["from"] = renamed["sender"]
		delete(renamed, "sender")
		a, err := fromFlatFields(renamed)
		if err != nil {
			return Authorization{}, err
		}
		return finish(a)

	default:
		return Authorization{}, x402err.InvalidHeader("unrecognized payment header shape")
	}
}

func toObject(header interface{}) (map[string]interface{}, error) {
	switch v := header.(type) {
	case string:
		decoded, err := base64.StdEncoding.DecodeString(v)
		if err != nil {
			return nil, x402err.InvalidHeader("payment header is not valid base64: %v", err)
		}
		var obj map[string]interface{}
		if err := json.Unmarshal(decoded, &obj); err != nil {
			return nil, x402err.InvalidHeader("payment header is not valid JSON: %v", err)
		}
		return obj, nil
	case map[string]interface{}:
		return v, nil
	case nil:
		return nil, x402err.InvalidHeader("missing payment header")
	default:
		return nil, x402err.InvalidHeader("unsupported payment header type %T", header)
	}
}

func hasKey(obj map[string]interface{}, key string) bool {
	_, ok := obj[key]
	return ok
}

func fromFlatFields(obj map[string]interface{}) (Authorization, error) {
	a := Authorization{
		From:        stringField(obj, "from"),
		To:          stringField(obj, "to"),
		Value:       stringField(obj, "value"),
		ValidAfter:  stringField(obj, "validAfter"),
		ValidBefore: stringField(obj, "validBefore"),
		Nonce:       canonicalizeNonce(stringField(obj, "nonce")),
	}

	if sig := stringField(obj, "signature"); sig != "" {
		a.Signature = sig
	}
	if v, ok := obj["v"]; ok {
		applyTopLevelVRS(&a, obj, v)
	}
	return a, nil
}

func applyTopLevelVRS(a *Authorization, obj map[string]interface{}, vField interface{}) {
	r := stringField(obj, "r")
	s := stringField(obj, "s")
	v := toUint8(vField)
	if v != 0 && r != "" && s != "" {
		a.V, a.R, a.S = v, r, s
	}
}

func stringField(obj map[string]interface{}, key string) string {
	if v, ok := obj[key].(string); ok {
		return v
	}
	return ""
}

func toUint8(v interface{}) uint8 {
	switch n := v.(type) {
	case float64:
		return uint8(n)
	case string:
		var out uint8
		fmt.Sscanf(n, "%d", &out)
		return out
	default:
		return 0
	}
}

func canonicalizeNonce(nonce string) string {
	if nonce == "" {
		return nonce
	}
	if !strings.HasPrefix(nonce, "0x") {
		nonce = "0x" + nonce
	}
	return nonce
}

// finish decomposes the combined signature into (v, r, s) when the
// split form was not already present, and validates that a signature
// exists in some form.
func finish(a Authorization) (Authorization, error) {
	if a.V == 0 || a.R == "" || a.S == "" {
		if a.Signature == "" {
			return Authorization{}, x402err.InvalidHeader("Missing signature")
		}
		v, r, s, err := SplitSignature(a.Signature)
		if err != nil {
			return Authorization{}, x402err.InvalidHeader("invalid signature: %v", err)
		}
		a.V, a.R, a.S = v, r, s
	}
	if a.Nonce == "" || len(a.Nonce) != 66 {
		return Authorization{}, x402err.InvalidHeader("invalid nonce: must be a 32-byte hex string")
	}
	return a, nil
}

// SplitSignature decomposes a 0x-prefixed (or bare) 65-byte hex
// signature into r[0:32], s[32:64], v[64], normalizing v to 27/28.
func SplitSignature(sigHex string) (v uint8, r, s string, err error) {
	raw := strings.TrimPrefix(sigHex, "0x")
	if len(raw) != 130 {
		return 0, "", "", fmt.Errorf("signature must be 65 bytes hex, got %d bytes", len(raw)/2)
	}
	r = "0x" + raw[0:64]
	s = "0x" + raw[64:128]
	vByte := raw[128:130]
	var vInt uint64
	fmt.Sscanf(vByte, "%x", &vInt)
	v = uint8(vInt)
	if v < 27 {
		v += 27
	}
	return v, r, s, nil
}

// CombineSignature reassembles a combined 65-byte hex signature from
// split (v, r, s) components.
func CombineSignature(v uint8, r, s string) string {
	return strings.TrimPrefix(r, "0x") + strings.TrimPrefix(s, "0x") + fmt.Sprintf("%02x", v)
}
