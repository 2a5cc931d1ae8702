package module

import (
	"ruleexplain/internal/adapters/chain"
	"ruleexplain/internal/core/orchestrator"
	"ruleexplain/internal/platform/config"
	perr "ruleexplain/internal/platform/errors"
)

// Options controls the explain runtime
type Options struct {
	Network      config.Network
	Orchestrator orchestrator.Config
	Keys         KeyOptions
}

// KeyOptions names where the signing key comes from; exactly one source may be set
type KeyOptions struct {
	PrivateKey         string
	KeystorePath       string
	KeystorePassword   string
	Mnemonic           string
	MnemonicPassphrase string
}

// FromConfig reads with EXPLAIN_ prefix
func FromConfig(cfg config.Conf) (Options, error) {
	c := cfg.Prefix("EXPLAIN_")
	n, err := config.LoadNetwork(c)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Network:      n,
		Orchestrator: orchestrator.FromConfig(cfg),
		Keys: KeyOptions{
			PrivateKey:         c.MayString("PRIVATE_KEY", ""),
			KeystorePath:       c.MayString("KEYSTORE", ""),
			KeystorePassword:   c.MayString("KEYSTORE_PASSWORD", ""),
			Mnemonic:           c.MayString("MNEMONIC", ""),
			MnemonicPassphrase: c.MayString("MNEMONIC_PASSPHRASE", ""),
		},
	}, nil
}

// Source picks the configured key source
// No source is not an error here; authorization fails later and the run reports it
func (k KeyOptions) Source() (chain.KeySource, error) {
	set := 0
	for _, v := range []string{k.PrivateKey, k.KeystorePath, k.Mnemonic} {
		if v != "" {
			set++
		}
	}
	if set > 1 {
		return nil, perr.InvalidArgf("configure only one of private key, keystore or mnemonic")
	}
	switch {
	case k.PrivateKey != "":
		return chain.FromHex(k.PrivateKey), nil
	case k.KeystorePath != "":
		return chain.FromKeystoreFile(k.KeystorePath, k.KeystorePassword), nil
	case k.Mnemonic != "":
		return chain.FromMnemonic(k.Mnemonic, k.MnemonicPassphrase), nil
	}
	return nil, nil
}
