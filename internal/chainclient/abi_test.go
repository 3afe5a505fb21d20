package chainclient

import (
	"bytes"
	"testing"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestABIFragments_ParseAndExposeExpectedMethod(t *testing.T) {
	cases := []struct {
		name   string
		raw    []byte
		method string
	}{
		{"transferWithAuthorization", TransferWithAuthorizationABI, FunctionTransferWithAuthorization},
		{"authorizationState", AuthorizationStateABI, FunctionAuthorizationState},
		{"transferFrom", TransferFromABI, FunctionTransferFrom},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			parsed, err := gethabi.JSON(bytes.NewReader(c.raw))
			require.NoError(t, err)
			_, ok := parsed.Methods[c.method]
			assert.True(t, ok, "expected method %q in parsed ABI", c.method)
		})
	}
}
