package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

// validatorInstance performs the struct-tag pass (field presence,
// minimums) before the stricter gojsonschema pass runs over the raw
// bytes. go-playground/validator is already pulled in transitively by
// gin's binding package; this wires it as a direct, explicit
// collaborator instead of leaving it implicit.
var validatorInstance = validator.New()

// verifyRequestSchema and settleRequestSchema encode the minimal
// required shape of a VerifyRequest/SettleRequest (spec.md §3),
// validated with gojsonschema in the style of the teacher's
// extensions/bazaar/facilitator.go ValidateInfo.
var verifyRequestSchema = []byte(`{
	"type": "object",
	"required": ["x402Version", "paymentHeader", "paymentRequirements"],
	"properties": {
		"x402Version": {"type": "integer", "minimum": 1},
		"paymentHeader": {},
		"paymentRequirements": {
			"type": "object",
			"required": ["scheme", "network", "asset", "payTo", "maxAmountRequired"],
			"properties": {
				"scheme": {"type": "string"},
				"network": {"type": "string"},
				"asset": {"type": "string"},
				"payTo": {"type": "string"},
				"maxAmountRequired": {"type": "string"}
			}
		}
	}
}`)

var settleRequestSchema = verifyRequestSchema

// validateAgainstSchema reports the first schema violation found in
// body against schema, or nil if body conforms.
func validateAgainstSchema(schema, body []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(body))
	if err != nil {
		return fmt.Errorf("schema validation failed: %w", err)
	}
	if !result.Valid() {
		if len(result.Errors()) > 0 {
			return fmt.Errorf("%s", result.Errors()[0].String())
		}
		return fmt.Errorf("request does not conform to schema")
	}
	return nil
}

func validateVerifyRequest(body []byte) error {
	return validateAgainstSchema(verifyRequestSchema, body)
}

func validateSettleRequest(body []byte) error {
	return validateAgainstSchema(settleRequestSchema, body)
}

// rawRequest is the shared wire shape of VerifyRequest/SettleRequest
// before type-specific assembly. agentId and idempotency key overrides
// are read straight from the decoded map since they are optional.
type rawRequest struct {
	X402Version         int                    `json:"x402Version" validate:"required,min=1"`
	PaymentHeader       interface{}            `json:"paymentHeader" validate:"required"`
	PaymentRequirements rawPaymentRequirements `json:"paymentRequirements" validate:"required"`
	AgentID             string                 `json:"agentId,omitempty"`
}

type rawPaymentRequirements struct {
	Scheme            string `json:"scheme" validate:"required"`
	Network           string `json:"network" validate:"required"`
	Asset             string `json:"asset" validate:"required"`
	PayTo             string `json:"payTo" validate:"required"`
	MaxAmountRequired string `json:"maxAmountRequired" validate:"required"`
	Resource          string `json:"resource"`
	MaxTimeoutSeconds int    `json:"maxTimeoutSeconds"`
	Description       string `json:"description"`
}

// decodeRawRequest decodes body and runs go-playground/validator's
// struct-tag pass (field presence, minimums). The stricter gojsonschema
// check is not run here; validateVerifyRequest/validateSettleRequest
// apply it separately.
func decodeRawRequest(body []byte) (rawRequest, error) {
	var raw rawRequest
	if err := json.Unmarshal(body, &raw); err != nil {
		return rawRequest{}, fmt.Errorf("invalid JSON body: %w", err)
	}
	if err := validatorInstance.Struct(raw); err != nil {
		return rawRequest{}, err
	}
	return raw, nil
}

// nonceOf extracts the normalizer-recognized nonce field from an
// already-decoded payment header for fingerprint derivation, without
// running full header normalization (the Verifier does that; the
// Gateway only needs a stable-ish key before committing to process
// the request).
func nonceOf(header interface{}) string {
	switch h := header.(type) {
	case string:
		return h // the base64 string itself is already a stable key
	case map[string]interface{}:
		if payload, ok := h["payload"].(map[string]interface{}); ok {
			if auth, ok := payload["authorization"].(map[string]interface{}); ok {
				if nonce, ok := auth["nonce"].(string); ok {
					return nonce
				}
			}
		}
		if nonce, ok := h["nonce"].(string); ok {
			return nonce
		}
	}
	return ""
}
