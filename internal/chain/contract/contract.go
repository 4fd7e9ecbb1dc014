// Package contract binds the on-chain verification registry. The registry
// exposes one verified flag per wallet address plus add/revoke entry points
// restricted to the operator key.
package contract

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// RegistryABI describes the deployed verification registry contract.
const RegistryABI = `[
  {"type":"function","name":"getVerificationStatus","stateMutability":"view","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"addVerification","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"},{"name":"documentHash","type":"string"},{"name":"ipfsHash","type":"string"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"function","name":"revokeVerification","stateMutability":"nonpayable","inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
  {"type":"event","name":"VerificationAdded","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"documentHash","type":"string","indexed":false},{"name":"ipfsHash","type":"string","indexed":false},{"name":"timestamp","type":"uint256","indexed":false}]},
  {"type":"event","name":"VerificationRevoked","anonymous":false,"inputs":[{"name":"user","type":"address","indexed":true},{"name":"timestamp","type":"uint256","indexed":false}]}
]`

// Tx is a submitted registry transaction. Wait blocks until the transaction
// is mined and returns its block number.
type Tx struct {
	Hash string
	Wait func(ctx context.Context) (uint64, error)
}

// FeeData mirrors the node's current fee suggestions. MaxFeePerGas and
// MaxPriorityFeePerGas are nil on pre-EIP-1559 chains.
type FeeData struct {
	GasPrice             *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// Registry abstracts the verification contract so the recorder can run
// against a fake in tests.
type Registry interface {
	GetVerificationStatus(ctx context.Context, walletAddress string) (bool, error)
	AddVerification(ctx context.Context, walletAddress, documentHash, storageID string) (*Tx, error)
	RevokeVerification(ctx context.Context, walletAddress string) (*Tx, error)
	SuggestFees(ctx context.Context) (*FeeData, error)
}

// ValidAddress reports whether s is a well-formed hex wallet address.
func ValidAddress(s string) bool {
	return common.IsHexAddress(s)
}

// Client is the Registry implementation backed by an RPC node and the
// operator's signing key.
type Client struct {
	eth      *ethclient.Client
	contract *bind.BoundContract
	opts     *bind.TransactOpts
}

// Dial connects to the RPC node and binds the registry at contractAddress.
// privateKeyHex is the operator key used to sign add/revoke transactions.
func Dial(ctx context.Context, rpcURL, contractAddress, privateKeyHex string) (*Client, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc node: %w", err)
	}

	parsed, err := abi.JSON(strings.NewReader(RegistryABI))
	if err != nil {
		return nil, fmt.Errorf("parse registry abi: %w", err)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parse operator key: %w", err)
	}

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("query chain id: %w", err)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, fmt.Errorf("build transactor: %w", err)
	}

	addr := common.HexToAddress(contractAddress)
	return &Client{
		eth:      eth,
		contract: bind.NewBoundContract(addr, parsed, eth, eth, eth),
		opts:     opts,
	}, nil
}

func (c *Client) GetVerificationStatus(ctx context.Context, walletAddress string) (bool, error) {
	var out []any
	err := c.contract.Call(&bind.CallOpts{Context: ctx}, &out, "getVerificationStatus", common.HexToAddress(walletAddress))
	if err != nil {
		return false, fmt.Errorf("getVerificationStatus: %w", err)
	}
	verified, ok := out[0].(bool)
	if !ok {
		return false, fmt.Errorf("getVerificationStatus: unexpected return type %T", out[0])
	}
	return verified, nil
}

func (c *Client) AddVerification(ctx context.Context, walletAddress, documentHash, storageID string) (*Tx, error) {
	tx, err := c.transact(ctx, "addVerification", common.HexToAddress(walletAddress), documentHash, storageID)
	if err != nil {
		return nil, fmt.Errorf("addVerification: %w", err)
	}
	return tx, nil
}

func (c *Client) RevokeVerification(ctx context.Context, walletAddress string) (*Tx, error) {
	tx, err := c.transact(ctx, "revokeVerification", common.HexToAddress(walletAddress))
	if err != nil {
		return nil, fmt.Errorf("revokeVerification: %w", err)
	}
	return tx, nil
}

func (c *Client) transact(ctx context.Context, method string, args ...any) (*Tx, error) {
	opts := *c.opts
	opts.Context = ctx

	tx, err := c.contract.Transact(&opts, method, args...)
	if err != nil {
		return nil, err
	}
	return &Tx{
		Hash: tx.Hash().Hex(),
		Wait: func(ctx context.Context) (uint64, error) {
			receipt, err := bind.WaitMined(ctx, c.eth, tx)
			if err != nil {
				return 0, fmt.Errorf("await confirmation: %w", err)
			}
			if receipt.Status != types.ReceiptStatusSuccessful {
				return 0, fmt.Errorf("transaction %s reverted", tx.Hash().Hex())
			}
			return receipt.BlockNumber.Uint64(), nil
		},
	}, nil
}

// SuggestFees queries the node's fee oracle. On EIP-1559 chains the max fee
// is derived from the pending base fee plus the suggested tip.
func (c *Client) SuggestFees(ctx context.Context) (*FeeData, error) {
	gasPrice, err := c.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	fees := &FeeData{GasPrice: gasPrice}

	head, err := c.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("query head block: %w", err)
	}
	if head.BaseFee != nil {
		tip, err := c.eth.SuggestGasTipCap(ctx)
		if err != nil {
			return nil, fmt.Errorf("suggest gas tip: %w", err)
		}
		fees.MaxPriorityFeePerGas = tip
		fees.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(head.BaseFee, big.NewInt(2)), tip)
	}
	return fees, nil
}
