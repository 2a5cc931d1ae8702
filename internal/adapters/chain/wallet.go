package chain

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"

	"ruleexplain/internal/core/orchestrator"
	perr "ruleexplain/internal/platform/errors"
)

const hkdfInfoSigning = "ruleexplain/signing/v1"

// KeySource produces the signing key; it may read files or prompt
type KeySource func(ctx context.Context) (*ecdsa.PrivateKey, error)

// FromHex loads a raw secp256k1 key, with or without 0x
func FromHex(hexKey string) KeySource {
	return func(context.Context) (*ecdsa.PrivateKey, error) {
		h := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
		if h == "" {
			return nil, perr.Unauthorizedf("no private key configured")
		}
		k, err := crypto.HexToECDSA(h)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnauthorized, "invalid private key")
		}
		return k, nil
	}
}

// FromKeystore decrypts a geth keystore JSON blob
func FromKeystore(keyJSON []byte, password string) KeySource {
	return func(context.Context) (*ecdsa.PrivateKey, error) {
		if len(keyJSON) == 0 {
			return nil, perr.Unauthorizedf("empty keystore")
		}
		k, err := keystore.DecryptKey(keyJSON, password)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnauthorized, "keystore could not be unlocked")
		}
		return k.PrivateKey, nil
	}
}

// FromKeystoreFile reads the keystore lazily so a missing file surfaces at authorization time
func FromKeystoreFile(path, password string) KeySource {
	return func(ctx context.Context) (*ecdsa.PrivateKey, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeUnauthorized, "read keystore %s", path)
		}
		return FromKeystore(b, password)(ctx)
	}
}

// FromMnemonic derives a signing key from a BIP-39 phrase
// The key is HKDF-SHA256 of the BIP-39 seed, not a BIP-44 path, so the address differs
// from the one a hardware wallet would show for the same phrase
func FromMnemonic(phrase, passphrase string) KeySource {
	return func(context.Context) (*ecdsa.PrivateKey, error) {
		phrase = strings.Join(strings.Fields(phrase), " ")
		if !bip39.IsMnemonicValid(phrase) {
			return nil, perr.Unauthorizedf("invalid mnemonic")
		}
		seed := bip39.NewSeed(phrase, passphrase)
		raw := make([]byte, 32)
		if _, err := io.ReadFull(hkdf.New(sha256.New, seed, nil, []byte(hkdfInfoSigning)), raw); err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnknown, "derive signing key")
		}
		k, err := crypto.ToECDSA(raw)
		if err != nil {
			return nil, perr.Wrap(err, perr.ErrorCodeUnauthorized, "derived key out of range")
		}
		return k, nil
	}
}

// Wallet resolves a key once and signs with it afterwards
type Wallet struct {
	src KeySource

	mu   sync.RWMutex
	key  *ecdsa.PrivateKey
	addr common.Address
}

// NewWallet wraps a key source
func NewWallet(src KeySource) *Wallet { return &Wallet{src: src} }

// Authorize unlocks the key and returns its checksummed address
func (w *Wallet) Authorize(ctx context.Context) (orchestrator.Identity, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.key != nil {
		return orchestrator.Identity(w.addr.Hex()), nil
	}
	if w.src == nil {
		return "", perr.Unauthorizedf("no signing key source configured")
	}
	k, err := w.src(ctx)
	if err != nil {
		if _, ok := perr.As(err); ok {
			return "", err
		}
		return "", perr.Wrap(err, perr.ErrorCodeUnauthorized, "authorization failed")
	}
	w.key = k
	w.addr = crypto.PubkeyToAddress(k.PublicKey)
	return orchestrator.Identity(w.addr.Hex()), nil
}

// Address returns the unlocked address, zero before Authorize
func (w *Wallet) Address() common.Address {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.addr
}

// keyFor returns the private key if id matches the unlocked signer
func (w *Wallet) keyFor(id orchestrator.Identity) (*ecdsa.PrivateKey, common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.key == nil {
		return nil, common.Address{}, perr.Unauthorizedf("wallet is locked")
	}
	if !strings.EqualFold(string(id), w.addr.Hex()) {
		return nil, common.Address{}, perr.Forbiddenf("signer %s is not the unlocked account", id.Short())
	}
	return w.key, w.addr, nil
}
