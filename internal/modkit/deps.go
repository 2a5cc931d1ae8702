// Package modkit provides module wiring and core deps
package modkit

import (
	"context"

	"ruleexplain/internal/platform/config"
	"ruleexplain/internal/platform/logger"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log   logger.Logger
	Cfg   config.Conf
	Chain Chain
	// Checks back the ready endpoint, in report order
	Checks []Check
}

// Check is a dependency the ready endpoint pings; a nil Ping reports skipped
type Check struct {
	Name string
	Ping func(ctx context.Context) error
}

// ChainInfo describes the network the process signs for
type ChainInfo struct {
	Network  string `json:"network"  example:"studionet"`
	ChainID  string `json:"chain_id" example:"61999"`
	Contract string `json:"contract" example:"0x471b16E3cCaBD84EE2905da9273bA193B2b46616"`
	Signer   string `json:"signer,omitempty" example:"0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"`
}

// Chain is the ledger connection shared with modules that report on it
type Chain interface {
	Ping(ctx context.Context) error
	Info() ChainInfo
}
