package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateVerifyRequest_Valid(t *testing.T) {
	body := []byte(`{
		"x402Version": 1,
		"paymentHeader": "base64stuff",
		"paymentRequirements": {
			"scheme": "exact",
			"network": "base-sepolia",
			"asset": "usdc",
			"payTo": "0xabc",
			"maxAmountRequired": "1000000"
		}
	}`)
	require.NoError(t, validateVerifyRequest(body))
}

func TestValidateVerifyRequest_MissingRequiredField(t *testing.T) {
	body := []byte(`{
		"x402Version": 1,
		"paymentRequirements": {
			"scheme": "exact",
			"network": "base-sepolia",
			"asset": "usdc",
			"payTo": "0xabc",
			"maxAmountRequired": "1000000"
		}
	}`)
	err := validateVerifyRequest(body)
	require.Error(t, err)
}

func TestValidateVerifyRequest_MissingNestedField(t *testing.T) {
	body := []byte(`{
		"x402Version": 1,
		"paymentHeader": "base64stuff",
		"paymentRequirements": {
			"scheme": "exact",
			"network": "base-sepolia",
			"asset": "usdc"
		}
	}`)
	err := validateVerifyRequest(body)
	require.Error(t, err)
}

func TestDecodeRawRequest_Valid(t *testing.T) {
	body := []byte(`{
		"x402Version": 1,
		"paymentHeader": "base64stuff",
		"paymentRequirements": {
			"scheme": "exact",
			"network": "base-sepolia",
			"asset": "usdc",
			"payTo": "0xabc",
			"maxAmountRequired": "1000000"
		}
	}`)
	raw, err := decodeRawRequest(body)
	require.NoError(t, err)
	assert.Equal(t, 1, raw.X402Version)
	assert.Equal(t, "exact", raw.PaymentRequirements.Scheme)
}

func TestDecodeRawRequest_InvalidJSON(t *testing.T) {
	_, err := decodeRawRequest([]byte(`not json`))
	require.Error(t, err)
}

func TestDecodeRawRequest_MissingVersion(t *testing.T) {
	body := []byte(`{
		"paymentHeader": "base64stuff",
		"paymentRequirements": {
			"scheme": "exact",
			"network": "base-sepolia",
			"asset": "usdc",
			"payTo": "0xabc",
			"maxAmountRequired": "1000000"
		}
	}`)
	_, err := decodeRawRequest(body)
	require.Error(t, err)
}

func TestNonceOf_StringHeader(t *testing.T) {
	assert.Equal(t, "abc123", nonceOf("abc123"))
}

func TestNonceOf_NestedPayloadShape(t *testing.T) {
	header := map[string]interface{}{
		"payload": map[string]interface{}{
			"authorization": map[string]interface{}{
				"nonce": "0xnonce",
			},
		},
	}
	assert.Equal(t, "0xnonce", nonceOf(header))
}

func TestNonceOf_FlatShape(t *testing.T) {
	header := map[string]interface{}{"nonce": "0xflat"}
	assert.Equal(t, "0xflat", nonceOf(header))
}

func TestNonceOf_Unrecognized(t *testing.T) {
	assert.Equal(t, "", nonceOf(map[string]interface{}{"foo": "bar"}))
	assert.Equal(t, "", nonceOf(42))
}
