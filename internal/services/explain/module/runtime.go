package module

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/prometheus/client_golang/prometheus"

	"ruleexplain/internal/adapters/chain"
	"ruleexplain/internal/core/orchestrator"
	"ruleexplain/internal/modkit"
	"ruleexplain/internal/modkit/repokit"
	perr "ruleexplain/internal/platform/errors"
	"ruleexplain/internal/platform/logger"
	"ruleexplain/internal/services/explain/repo"
	"ruleexplain/internal/services/explain/service"
)

// dial is swapped in tests
var dial = func(ctx context.Context, url string) (chain.Backend, func(), error) {
	c, err := chain.Dial(ctx, url)
	if err != nil {
		return nil, nil, err
	}
	return c, c.Close, nil
}

var (
	_ chain.Backend = (*ethclient.Client)(nil)
	_ modkit.Chain  = (*Runtime)(nil)
)

// Runtime is the chain side of the explain flow: one signer, one contract, one session
type Runtime struct {
	Network  string
	Wallet   *chain.Wallet
	Contract *chain.Contract
	Session  *orchestrator.Session

	close func()
}

// Dial connects to the configured network and builds a session on top of it
// confirm may be nil; it is asked before each signature
func Dial(ctx context.Context, opts Options, confirm chain.ConfirmFunc) (*Runtime, error) {
	n := opts.Network
	if !common.IsHexAddress(n.Contract) {
		return nil, perr.InvalidArgf("contract %q is not an address", n.Contract)
	}
	src, err := opts.Keys.Source()
	if err != nil {
		return nil, err
	}

	be, closeFn, err := dial(ctx, n.RPCURL)
	if err != nil {
		return nil, err
	}

	var chainID *big.Int
	if n.ChainID > 0 {
		chainID = big.NewInt(n.ChainID)
	}
	w := chain.NewWallet(src)
	c, err := chain.NewContract(ctx, be, w, chain.Options{
		Address:     common.HexToAddress(n.Contract),
		ChainID:     chainID,
		GasLimit:    n.GasLimit,
		ReceiptPoll: n.ReceiptPoll,
		RatePerSec:  n.RatePerSec,
		Burst:       n.Burst,
		Confirm:     confirm,
	})
	if err != nil {
		closeFn()
		return nil, err
	}
	sess, err := orchestrator.New(w, c, c, opts.Orchestrator)
	if err != nil {
		closeFn()
		return nil, err
	}

	logger.Named("explain").Info().
		Str("network", n.Name).
		Str("contract", n.Contract).
		Str("chain_id", c.ChainID().String()).
		Msg("explain runtime ready")

	return &Runtime{Network: n.Name, Wallet: w, Contract: c, Session: sess, close: closeFn}, nil
}

// NewService builds the ledger-backed service around the runtime session
func (rt *Runtime) NewService(db repokit.TxRunner, reg prometheus.Registerer) *service.Svc {
	return service.New(db, repo.NewPG(), rt.Session, service.NewMetrics(reg))
}

// Ping implements modkit.Chain
func (rt *Runtime) Ping(ctx context.Context) error { return rt.Contract.Ping(ctx) }

// Info implements modkit.Chain; Signer stays empty until the wallet is unlocked
func (rt *Runtime) Info() modkit.ChainInfo {
	info := modkit.ChainInfo{
		Network:  rt.Network,
		ChainID:  rt.Contract.ChainID().String(),
		Contract: rt.Contract.Address().Hex(),
	}
	if a := rt.Wallet.Address(); a != (common.Address{}) {
		info.Signer = a.Hex()
	}
	return info
}

// Close releases the RPC connection
func (rt *Runtime) Close() {
	if rt != nil && rt.close != nil {
		rt.close()
	}
}
