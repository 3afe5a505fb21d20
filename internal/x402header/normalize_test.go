package x402header

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evmrelay/x402-facilitator/internal/x402err"
)

func repeat(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func TestNormalize_FlatFieldsWithCombinedSignature(t *testing.T) {
	obj := map[string]interface{}{
		"from":      "0xfrom",
		"to":        "0xto",
		"value":     "1000000",
		"nonce":     "aaaabbbbccccddddaaaabbbbccccddddaaaabbbbccccddddaaaabbbbccccdddd",
		"signature": "0x" + repeat("11", 32) + repeat("22", 32) + "1b",
	}

	a, err := Normalize(obj)
	require.NoError(t, err)
	assert.Equal(t, "0xfrom", a.From)
	assert.Equal(t, "1000000", a.Value)
	assert.True(t, len(a.Nonce) == 66)
	assert.Equal(t, uint8(27), a.V)
}

func TestNormalize_FlatFieldsWithSplitVRS(t *testing.T) {
	obj := map[string]interface{}{
		"from":  "0xfrom",
		"to":    "0xto",
		"value": "1000000",
		"nonce": "0x" + repeat("aa", 32),
		"v":     float64(28),
		"r":     "0x" + repeat("11", 32),
		"s":     "0x" + repeat("22", 32),
	}

	a, err := Normalize(obj)
	require.NoError(t, err)
	assert.Equal(t, uint8(28), a.V)
	assert.Equal(t, "0x"+repeat("11", 32), a.R)
}

func TestNormalize_SenderAliasedToFrom(t *testing.T) {
	obj := map[string]interface{}{
		"sender": "0xsenderaddr",
		"to":     "0xto",
		"value":  "5",
		"nonce":  "0x" + repeat("aa", 32),
		"v":      float64(27),
		"r":      "0x" + repeat("11", 32),
		"s":      "0x" + repeat("22", 32),
	}

	a, err := Normalize(obj)
	require.NoError(t, err)
	assert.Equal(t, "0xsenderaddr", a.From)
}

func TestNormalize_NestedPayloadShape(t *testing.T) {
	obj := map[string]interface{}{
		"payload": map[string]interface{}{
			"signature": "0x" + repeat("11", 32) + repeat("22", 32) + "1c",
			"authorization": map[string]interface{}{
				"from":  "0xfrom",
				"to":    "0xto",
				"value": "42",
				"nonce": "0x" + repeat("aa", 32),
			},
		},
	}

	a, err := Normalize(obj)
	require.NoError(t, err)
	assert.Equal(t, "0xfrom", a.From)
	assert.Equal(t, uint8(28), a.V)
}

func TestNormalize_Base64EncodedJSON(t *testing.T) {
	payload := map[string]interface{}{
		"from":      "0xfrom",
		"to":        "0xto",
		"value":     "1",
		"nonce":     "0x" + repeat("aa", 32),
		"signature": "0x" + repeat("11", 32) + repeat("22", 32) + "1b",
	}
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	encoded := base64.StdEncoding.EncodeToString(raw)

	a, err := Normalize(encoded)
	require.NoError(t, err)
	assert.Equal(t, "0xfrom", a.From)
}

func TestNormalize_UnrecognizedShape(t *testing.T) {
	_, err := Normalize(map[string]interface{}{"foo": "bar"})
	require.Error(t, err)
	xerr, ok := x402err.As(err)
	require.True(t, ok)
	assert.Equal(t, x402err.CodeInvalidHeader, xerr.Code)
}

func TestNormalize_InvalidBase64(t *testing.T) {
	_, err := Normalize("not-valid-base64!!!")
	require.Error(t, err)
}

func TestNormalize_MissingSignature(t *testing.T) {
	obj := map[string]interface{}{
		"from":  "0xfrom",
		"to":    "0xto",
		"value": "1",
		"nonce": "0x" + repeat("aa", 32),
	}
	_, err := Normalize(obj)
	require.Error(t, err)
}

func TestNormalize_InvalidNonceLength(t *testing.T) {
	obj := map[string]interface{}{
		"from":      "0xfrom",
		"to":        "0xto",
		"value":     "1",
		"nonce":     "0xabc",
		"signature": "0x" + repeat("11", 32) + repeat("22", 32) + "1b",
	}
	_, err := Normalize(obj)
	require.Error(t, err)
}

func TestSplitSignature_NormalizesVTo27Or28(t *testing.T) {
	sig := "0x" + repeat("11", 32) + repeat("22", 32) + "00"
	v, r, s, err := SplitSignature(sig)
	require.NoError(t, err)
	assert.Equal(t, uint8(27), v)
	assert.Equal(t, "0x"+repeat("11", 32), r)
	assert.Equal(t, "0x"+repeat("22", 32), s)
}

func TestSplitSignature_RejectsWrongLength(t *testing.T) {
	_, _, _, err := SplitSignature("0xdeadbeef")
	require.Error(t, err)
}

func TestCombineSignature_RoundTripsWithSplit(t *testing.T) {
	original := repeat("11", 32) + repeat("22", 32) + "1b"
	v, r, s, err := SplitSignature("0x" + original)
	require.NoError(t, err)

	combined := CombineSignature(v, r, s)
	assert.Equal(t, original, combined)
}
