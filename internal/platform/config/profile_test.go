package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	perr "ruleexplain/internal/platform/errors"
	kit "ruleexplain/internal/platform/testkit"
)

const sampleProfile = `
default: testnet
networks:
  testnet:
    rpcUrl: https://rpc.example.test
    chainId: 4221
    contract: "0x0000000000000000000000000000000000000abc"
    receiptPoll: 3s
    ratePerSec: 2.5
  studionet:
    gasLimit: 900000
`

func writeProfile(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "networks.yaml")
	if err := os.WriteFile(p, []byte(sampleProfile), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadNetwork_Builtin(t *testing.T) {
	n, err := LoadNetwork(New().Prefix("NET1_"))
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != DefaultNetworkName || n.ChainID != 61999 || n.Contract == "" {
		t.Fatalf("builtin default = %+v", n)
	}
}

func TestLoadNetwork_ProfileFile(t *testing.T) {
	c := New().Prefix("NET2_")
	t.Setenv("NET2_PROFILE", writeProfile(t))

	n, err := LoadNetwork(c)
	if err != nil {
		t.Fatal(err)
	}
	if n.Name != "testnet" || n.RPCURL != "https://rpc.example.test" || n.ChainID != 4221 {
		t.Fatalf("file default = %+v", n)
	}
	if n.ReceiptPoll != 3*time.Second || n.RatePerSec != 2.5 {
		t.Fatalf("durations/rates not decoded: %+v", n)
	}

	// file entries overlay builtins field by field
	t.Setenv("NET2_NETWORK", "studionet")
	n, err = LoadNetwork(c)
	if err != nil {
		t.Fatal(err)
	}
	if n.GasLimit != 900000 || n.RPCURL == "" || n.ChainID != 61999 {
		t.Fatalf("merged studionet = %+v", n)
	}
}

func TestLoadNetwork_EnvOverrides(t *testing.T) {
	c := New().Prefix("NET3_")
	t.Setenv("NET3_RPC_URL", "http://localhost:8545")
	t.Setenv("NET3_CONTRACT", "0x00000000000000000000000000000000000000ff")
	t.Setenv("NET3_CHAIN_ID", "1337")

	n, err := LoadNetwork(c)
	if err != nil {
		t.Fatal(err)
	}
	if n.RPCURL != "http://localhost:8545" || n.ChainID != 1337 {
		t.Fatalf("overrides not applied: %+v", n)
	}
	kit.MustContain(t, n.Contract, "ff")
}

func TestLoadNetwork_BadRPCURLKeepsProfile(t *testing.T) {
	c := New().Prefix("NET5_")
	t.Setenv("NET5_RPC_URL", "studio.genlayer.com/api")

	n, err := LoadNetwork(c)
	if err != nil {
		t.Fatal(err)
	}
	if n.RPCURL != builtinNetworks["studionet"].RPCURL {
		t.Fatalf("unparsable override should be ignored, got %q", n.RPCURL)
	}
}

func TestLoadNetwork_Errors(t *testing.T) {
	c := New().Prefix("NET4_")

	t.Setenv("NET4_NETWORK", "nowhere")
	if _, err := LoadNetwork(c); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("unknown network err = %v", err)
	}

	t.Setenv("NET4_NETWORK", "localnet")
	if _, err := LoadNetwork(c); !perr.IsCode(err, perr.ErrorCodeInvalidArgument) {
		t.Fatalf("missing contract err = %v", err)
	}

	t.Setenv("NET4_PROFILE", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := LoadNetwork(c); err == nil {
		t.Fatal("expected error for missing profile file")
	}

	if _, _, err := ParseProfile([]byte("networks: [unterminated")); err == nil {
		t.Fatal("expected yaml error")
	}
}
