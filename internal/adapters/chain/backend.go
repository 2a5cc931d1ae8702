package chain

import (
	"context"
	"math/big"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	perr "ruleexplain/internal/platform/errors"
)

// Backend is the slice of the JSON-RPC client the adapter needs
// *ethclient.Client satisfies it
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial connects to an RPC endpoint
func Dial(ctx context.Context, url string) (*ethclient.Client, error) {
	if url == "" {
		return nil, perr.InvalidArgf("chain: rpc url is required")
	}
	c, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnavailable, "dial %s", url)
	}
	return c, nil
}
