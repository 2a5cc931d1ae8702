package chain

import (
	"context"
	"errors"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"golang.org/x/time/rate"

	"ruleexplain/internal/core/orchestrator"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
)

// Prompt describes the write about to be signed
type Prompt struct {
	Signer   orchestrator.Identity
	Contract common.Address
	Method   string
	Input    string
	Gas      uint64
	GasPrice *big.Int
}

// ConfirmFunc asks whether the write may be signed; false declines it
type ConfirmFunc func(ctx context.Context, p Prompt) (bool, error)

// Options tune the contract adapter
type Options struct {
	Address common.Address
	ChainID *big.Int

	// GasLimit 0 estimates per call with GasHeadroomPct on top
	GasLimit       uint64
	GasHeadroomPct uint64

	// ReceiptPoll is the receipt lookup cadence while awaiting acceptance
	ReceiptPoll time.Duration

	// RatePerSec and Burst throttle every RPC round-trip; 0 disables
	RatePerSec float64
	Burst      int

	Confirm ConfirmFunc
}

// Contract talks to the deployed clause contract
type Contract struct {
	be      Backend
	wallet  *Wallet
	abi     abi.ABI
	opt     Options
	limiter *rate.Limiter
	log     logger.Logger
}

var _ orchestrator.Submitter = (*Contract)(nil)
var _ orchestrator.Querier = (*Contract)(nil)
var _ orchestrator.Authorizer = (*Wallet)(nil)

// ErrSignatureDeclined is returned when the confirm hook says no
var ErrSignatureDeclined = perr.New(perr.ErrorCodeUnauthorized, "signature declined")

// NewContract builds the adapter; a nil ChainID is resolved from the backend
func NewContract(ctx context.Context, be Backend, w *Wallet, opt Options) (*Contract, error) {
	if be == nil {
		return nil, perr.InvalidArgf("chain: backend is required")
	}
	if opt.Address == (common.Address{}) {
		return nil, perr.InvalidArgf("chain: contract address is required")
	}
	if opt.ChainID == nil {
		id, err := be.ChainID(ctx)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "resolve chain id")
		}
		opt.ChainID = id
	}
	if opt.ReceiptPoll <= 0 {
		opt.ReceiptPoll = time.Second
	}
	if opt.GasHeadroomPct == 0 {
		opt.GasHeadroomPct = 20
	}
	c := &Contract{
		be:     be,
		wallet: w,
		abi:    ABI(),
		opt:    opt,
		log:    logger.Named("chain").With().Str("contract", opt.Address.Hex()).Logger(),
	}
	if opt.RatePerSec > 0 {
		burst := opt.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opt.RatePerSec), burst)
	}
	return c, nil
}

// ChainID returns the chain the adapter signs for
func (c *Contract) ChainID() *big.Int { return new(big.Int).Set(c.opt.ChainID) }

// Address returns the contract address
func (c *Contract) Address() common.Address { return c.opt.Address }

// Ping checks the endpoint answers and still serves the chain we sign for
func (c *Contract) Ping(ctx context.Context) error {
	id, err := c.be.ChainID(ctx)
	if err != nil {
		return rpcErr(err, "chain id")
	}
	if id.Cmp(c.opt.ChainID) != 0 {
		return perr.Newf(perr.ErrorCodeUnavailable, "endpoint serves chain %s, expected %s", id, c.opt.ChainID)
	}
	return nil
}

// Submit signs and broadcasts explain_clause(input)
func (c *Contract) Submit(ctx context.Context, signer orchestrator.Identity, input string) (orchestrator.Receipt, error) {
	if c.wallet == nil {
		return orchestrator.Receipt{}, perr.Unauthorizedf("no wallet configured")
	}
	key, from, err := c.wallet.keyFor(signer)
	if err != nil {
		return orchestrator.Receipt{}, err
	}
	data, err := c.abi.Pack(methodExplain, input)
	if err != nil {
		return orchestrator.Receipt{}, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "encode call")
	}

	if err := c.wait(ctx); err != nil {
		return orchestrator.Receipt{}, err
	}
	nonce, err := c.be.PendingNonceAt(ctx, from)
	if err != nil {
		return orchestrator.Receipt{}, rpcErr(err, "fetch nonce")
	}
	if err := c.wait(ctx); err != nil {
		return orchestrator.Receipt{}, err
	}
	price, err := c.be.SuggestGasPrice(ctx)
	if err != nil {
		return orchestrator.Receipt{}, rpcErr(err, "suggest gas price")
	}
	gas, err := c.gasFor(ctx, from, data)
	if err != nil {
		return orchestrator.Receipt{}, err
	}

	if c.opt.Confirm != nil {
		ok, err := c.opt.Confirm(ctx, Prompt{
			Signer:   signer,
			Contract: c.opt.Address,
			Method:   methodExplain,
			Input:    input,
			Gas:      gas,
			GasPrice: price,
		})
		if err != nil {
			return orchestrator.Receipt{}, perr.Wrap(err, perr.ErrorCodeUnauthorized, "confirmation failed")
		}
		if !ok {
			return orchestrator.Receipt{}, ErrSignatureDeclined
		}
	}

	to := c.opt.Address
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: price,
		Gas:      gas,
		To:       &to,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.opt.ChainID), key)
	if err != nil {
		return orchestrator.Receipt{}, perr.Wrap(err, perr.ErrorCodeUnknown, "sign transaction")
	}

	if err := c.wait(ctx); err != nil {
		return orchestrator.Receipt{}, err
	}
	if err := c.be.SendTransaction(ctx, signed); err != nil {
		return orchestrator.Receipt{}, rpcErr(err, "transaction rejected")
	}

	hash := signed.Hash().Hex()
	c.log.Info().Str("tx", hash).Uint64("nonce", nonce).Uint64("gas", gas).Msg("transaction sent")
	return orchestrator.Receipt{Ref: hash}, nil
}

// AwaitAcceptance blocks until the transaction is mined
// A reverted transaction is an error; a missing receipt keeps waiting until ctx ends
func (c *Contract) AwaitAcceptance(ctx context.Context, r orchestrator.Receipt) error {
	if !isHash(r.Ref) {
		return perr.InvalidArgf("not a transaction hash: %q", r.Ref)
	}
	hash := common.HexToHash(r.Ref)

	ticker := time.NewTicker(c.opt.ReceiptPoll)
	defer ticker.Stop()

	for {
		if err := c.wait(ctx); err != nil {
			return err
		}
		rcpt, err := c.be.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && rcpt != nil:
			if rcpt.Status == types.ReceiptStatusFailed {
				return perr.Newf(perr.ErrorCodeUnavailable, "transaction reverted in block %s", rcpt.BlockNumber)
			}
			c.log.Debug().Str("tx", r.Ref).Str("block", rcpt.BlockNumber.String()).Msg("transaction mined")
			return nil
		case err == nil, errors.Is(err, ethereum.NotFound):
		default:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.log.Warn().Err(err).Str("tx", r.Ref).Msg("receipt lookup failed; retrying")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Query performs get_explanation(key) as an eth_call against the latest block
func (c *Contract) Query(ctx context.Context, key string) (string, error) {
	data, err := c.abi.Pack(methodGet, key)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "encode call")
	}
	if err := c.wait(ctx); err != nil {
		return "", err
	}
	to := c.opt.Address
	raw, err := c.be.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return "", rpcErr(err, "call "+methodGet)
	}
	if len(raw) == 0 {
		return "", nil
	}
	out, err := c.abi.Unpack(methodGet, raw)
	if err != nil {
		return "", perr.Wrap(err, perr.ErrorCodeJSON, "decode "+methodGet)
	}
	if len(out) != 1 {
		return "", perr.Newf(perr.ErrorCodeJSON, "decode %s: %d values", methodGet, len(out))
	}
	s, ok := out[0].(string)
	if !ok {
		return "", perr.Newf(perr.ErrorCodeJSON, "decode %s: got %T", methodGet, out[0])
	}
	return s, nil
}

func (c *Contract) gasFor(ctx context.Context, from common.Address, data []byte) (uint64, error) {
	if c.opt.GasLimit > 0 {
		return c.opt.GasLimit, nil
	}
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	to := c.opt.Address
	est, err := c.be.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, rpcErr(err, "estimate gas")
	}
	return est + est*c.opt.GasHeadroomPct/100, nil
}

func (c *Contract) wait(ctx context.Context) error {
	if c.limiter == nil {
		return ctx.Err()
	}
	return c.limiter.Wait(ctx)
}

// rpcErr keeps the node's message, which usually carries the revert reason
func rpcErr(err error, msg string) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return perr.Wrap(err, perr.ErrorCodeUnavailable, msg)
}

func isHash(s string) bool {
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 2*common.HashLength {
		return false
	}
	for _, r := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", r) {
			return false
		}
	}
	return true
}
