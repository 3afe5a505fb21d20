// Package chainclient implements the EVM gateway capability abstracted
// by spec.md §4.1: a read-only public client (balance/contract reads,
// receipt lookup, block number) and a wallet client bound to the
// facilitator's signing key (contract writes). These are the only
// surfaces through which the Verifier and Settler touch a chain.
//
// Grounded on the teacher's signers/evm/client.go (ReadContract /
// WriteContract / WaitForTransactionReceipt) and the e2e reference
// server's realFacilitatorEvmSigner.
package chainclient

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Receipt mirrors the subset of a transaction receipt the rest of the
// facilitator cares about.
type Receipt struct {
	Status      uint64
	BlockNumber uint64
	TxHash      string
}

const (
	writeRetryAttempts = 3
	writeRetryDelay    = time.Second
)

// Client wraps one network's ethclient.Client with the facilitator's
// signing key, exposing the read/write surface the Verifier and
// Settler need. One Client is created per registered network.
type Client struct {
	network    string
	rpc        *ethclient.Client
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// Dial connects to an EVM network's RPC endpoint and derives the
// facilitator's signing address from privateKeyHex.
func Dial(ctx context.Context, network, rpcURL, privateKeyHex string) (*Client, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", network, err)
	}

	privateKeyHex = strings.TrimPrefix(privateKeyHex, "0x")
	privateKey, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid facilitator private key: %w", err)
	}
	address := crypto.PubkeyToAddress(privateKey.PublicKey)

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch chain id for %s: %w", network, err)
	}

	return &Client{
		network:    network,
		rpc:        rpc,
		privateKey: privateKey,
		address:    address,
		chainID:    chainID,
	}, nil
}

// Address returns the facilitator's signing address on this network.
func (c *Client) Address() common.Address { return c.address }

// ChainID returns the connected network's chain id.
func (c *Client) ChainID() *big.Int { return c.chainID }

// BlockNumber returns the current block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	return c.rpc.BlockNumber(ctx)
}

// TransactionReceipt fetches a mined transaction's receipt. Returns
// (nil, nil) if the transaction is not yet mined.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	receipt, err := c.rpc.TransactionReceipt(ctx, common.HexToHash(txHash))
	if err != nil {
		if err == ethereum.NotFound {
			return nil, nil
		}
		return nil, err
	}
	return &Receipt{Status: receipt.Status, BlockNumber: receipt.BlockNumber.Uint64(), TxHash: txHash}, nil
}

// WaitForTransactionReceipt polls for a mined receipt, up to 30 seconds.
func (c *Client) WaitForTransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	for i := 0; i < 30; i++ {
		receipt, err := c.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, err
		}
		if receipt != nil {
			return receipt, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second):
		}
	}
	return nil, fmt.Errorf("timed out waiting for receipt of %s", txHash)
}

// ReadContract performs an eth_call against a contract method and
// unpacks the single return value.
func (c *Client) ReadContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (interface{}, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return nil, fmt.Errorf("parse abi: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s call: %w", method, err)
	}

	addr := common.HexToAddress(address)
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}

	values, err := contractABI.Methods[method].Outputs.Unpack(out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s result: %w", method, err)
	}
	if len(values) == 0 {
		return nil, nil
	}
	return values[0], nil
}

// BalanceOf returns the ERC-20 balance of address for tokenAddress, or
// the native balance if tokenAddress is the zero address.
func (c *Client) BalanceOf(ctx context.Context, address, tokenAddress string) (*big.Int, error) {
	if common.HexToAddress(tokenAddress) == (common.Address{}) {
		return c.rpc.BalanceAt(ctx, common.HexToAddress(address), nil)
	}
	result, err := c.ReadContract(ctx, tokenAddress, erc20BalanceOfABI, "balanceOf", common.HexToAddress(address))
	if err != nil {
		return nil, err
	}
	balance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected balanceOf result type %T", result)
	}
	return balance, nil
}

// Allowance returns the ERC-20 allowance granted by owner to spender.
func (c *Client) Allowance(ctx context.Context, tokenAddress, owner, spender string) (*big.Int, error) {
	result, err := c.ReadContract(ctx, tokenAddress, erc20AllowanceABI, "allowance", common.HexToAddress(owner), common.HexToAddress(spender))
	if err != nil {
		return nil, err
	}
	allowance, ok := result.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("unexpected allowance result type %T", result)
	}
	return allowance, nil
}

// WriteContract signs and submits a contract transaction, retrying
// transient send failures up to writeRetryAttempts times (spec.md §5:
// "RPC endpoints are reused ... retry=3, 1s delay for writes").
func (c *Client) WriteContract(ctx context.Context, address string, abiJSON []byte, method string, args ...interface{}) (string, error) {
	contractABI, err := abi.JSON(strings.NewReader(string(abiJSON)))
	if err != nil {
		return "", fmt.Errorf("parse abi: %w", err)
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return "", fmt.Errorf("pack %s call: %w", method, err)
	}

	var lastErr error
	for attempt := 0; attempt < writeRetryAttempts; attempt++ {
		txHash, err := c.sendOnce(ctx, common.HexToAddress(address), data)
		if err == nil {
			return txHash, nil
		}
		lastErr = err
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(writeRetryDelay):
		}
	}
	return "", fmt.Errorf("write %s failed after %d attempts: %w", method, writeRetryAttempts, lastErr)
}

func (c *Client) sendOnce(ctx context.Context, to common.Address, data []byte) (string, error) {
	nonce, err := c.rpc.PendingNonceAt(ctx, c.address)
	if err != nil {
		return "", fmt.Errorf("fetch nonce: %w", err)
	}
	gasPrice, err := c.rpc.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("fetch gas price: %w", err)
	}
	gasLimit, err := c.rpc.EstimateGas(ctx, ethereum.CallMsg{From: c.address, To: &to, Data: data})
	if err != nil {
		gasLimit = 200000
	}

	tx := types.NewTransaction(nonce, to, big.NewInt(0), gasLimit, gasPrice, data)
	signer := types.LatestSignerForChainID(c.chainID)
	signedTx, err := types.SignTx(tx, signer, c.privateKey)
	if err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	if err := c.rpc.SendTransaction(ctx, signedTx); err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return signedTx.Hash().Hex(), nil
}

var erc20BalanceOfABI = []byte(`[{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`)

var erc20AllowanceABI = []byte(`[{"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`)
