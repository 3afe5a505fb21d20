package chainclient

// Function names and ABI fragments for the two settlement strategies.
// Grounded on the teacher's mechanisms/evm/constants.go.
const (
	FunctionTransferWithAuthorization = "transferWithAuthorization"
	FunctionAuthorizationState        = "authorizationState"
	FunctionTransferFrom              = "transferFrom"

	TxStatusSuccess uint64 = 1
)

// TransferWithAuthorizationABI is the EIP-3009 ABI fragment for
// transferWithAuthorization with a v/r/s EOA signature.
var TransferWithAuthorizationABI = []byte(`[
	{
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"},
			{"name": "validAfter", "type": "uint256"},
			{"name": "validBefore", "type": "uint256"},
			{"name": "nonce", "type": "bytes32"},
			{"name": "v", "type": "uint8"},
			{"name": "r", "type": "bytes32"},
			{"name": "s", "type": "bytes32"}
		],
		"name": "transferWithAuthorization",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)

// AuthorizationStateABI is the EIP-3009 nonce-used check.
var AuthorizationStateABI = []byte(`[
	{
		"inputs": [
			{"name": "authorizer", "type": "address"},
			{"name": "nonce", "type": "bytes32"}
		],
		"name": "authorizationState",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "view",
		"type": "function"
	}
]`)

// TransferFromABI is the standard ERC-20 transferFrom used by the
// relayer strategy.
var TransferFromABI = []byte(`[
	{
		"inputs": [
			{"name": "from", "type": "address"},
			{"name": "to", "type": "address"},
			{"name": "value", "type": "uint256"}
		],
		"name": "transferFrom",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`)
