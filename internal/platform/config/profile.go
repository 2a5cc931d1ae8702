package config

import (
	"os"
	"strings"
	"time"

	perr "ruleexplain/internal/platform/errors"

	"gopkg.in/yaml.v3"
)

// Network describes one chain deployment of the clause contract
type Network struct {
	Name        string        `yaml:"-"`
	RPCURL      string        `yaml:"rpcUrl"`
	ChainID     int64         `yaml:"chainId"`
	Contract    string        `yaml:"contract"`
	GasLimit    uint64        `yaml:"gasLimit"`
	ReceiptPoll time.Duration `yaml:"receiptPoll"`
	RatePerSec  float64       `yaml:"ratePerSec"`
	Burst       int           `yaml:"burst"`
}

// profileFile is the on-disk layout of a networks.yaml
type profileFile struct {
	Default  string             `yaml:"default"`
	Networks map[string]Network `yaml:"networks"`
}

// DefaultNetworkName is used when neither the file nor env picks one
const DefaultNetworkName = "studionet"

// builtinNetworks are available without a profile file
var builtinNetworks = map[string]Network{
	"studionet": {
		RPCURL:      "https://studio.genlayer.com/api",
		ChainID:     61999,
		Contract:    "0x471b16E3cCaBD84EE2905da9273bA193B2b46616",
		ReceiptPoll: time.Second,
		RatePerSec:  5,
		Burst:       5,
	},
	"localnet": {
		RPCURL:      "http://127.0.0.1:4000/api",
		ChainID:     61999,
		ReceiptPoll: 500 * time.Millisecond,
	},
}

// ParseProfile decodes a networks.yaml document
func ParseProfile(data []byte) (map[string]Network, string, error) {
	var pf profileFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, "", perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse network profile")
	}
	return pf.Networks, pf.Default, nil
}

// LoadNetwork resolves a network from built-ins, an optional profile file and env
// Keys under c: PROFILE (path), NETWORK (name), RPC_URL, CONTRACT, CHAIN_ID, GAS_LIMIT
func LoadNetwork(c Conf) (Network, error) {
	nets := make(map[string]Network, len(builtinNetworks))
	for k, v := range builtinNetworks {
		nets[k] = v
	}
	def := DefaultNetworkName

	if path := c.MayString("PROFILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Network{}, perr.Wrapf(err, perr.ErrorCodeNotFound, "read network profile %s", path)
		}
		fileNets, fileDef, err := ParseProfile(data)
		if err != nil {
			return Network{}, err
		}
		for k, v := range fileNets {
			nets[strings.ToLower(k)] = merge(nets[strings.ToLower(k)], v)
		}
		if fileDef != "" {
			def = fileDef
		}
	}

	name := strings.ToLower(c.MayString("NETWORK", def))
	n, ok := nets[name]
	if !ok {
		return Network{}, perr.Newf(perr.ErrorCodeNotFound, "unknown network %q", name)
	}
	n.Name = name

	n.RPCURL = c.MayURL("RPC_URL", n.RPCURL)
	n.Contract = c.MayString("CONTRACT", n.Contract)
	n.ChainID = int64(c.MayInt("CHAIN_ID", int(n.ChainID)))
	n.GasLimit = uint64(c.MayInt("GAS_LIMIT", int(n.GasLimit)))

	if n.RPCURL == "" {
		return Network{}, perr.Newf(perr.ErrorCodeInvalidArgument, "network %q has no rpc url", name)
	}
	if n.Contract == "" {
		return Network{}, perr.Newf(perr.ErrorCodeInvalidArgument, "network %q has no contract address", name)
	}
	return n, nil
}

// merge overlays non-zero fields of src onto dst
func merge(dst, src Network) Network {
	if src.RPCURL != "" {
		dst.RPCURL = src.RPCURL
	}
	if src.ChainID != 0 {
		dst.ChainID = src.ChainID
	}
	if src.Contract != "" {
		dst.Contract = src.Contract
	}
	if src.GasLimit != 0 {
		dst.GasLimit = src.GasLimit
	}
	if src.ReceiptPoll != 0 {
		dst.ReceiptPoll = src.ReceiptPoll
	}
	if src.RatePerSec != 0 {
		dst.RatePerSec = src.RatePerSec
	}
	if src.Burst != 0 {
		dst.Burst = src.Burst
	}
	return dst
}
