package wallet

import (
	"errors"
	"fmt"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/tyler-smith/go-bip32"
)

// Accepted BIP-32 seed lengths.
const (
	MinSeedSize = 16
	MaxSeedSize = 64
)

// HDKey represents a hierarchical deterministic key (BIP-32).
type HDKey struct {
	key *bip32.Key
}

// NewMasterKey creates a master HD key from a seed of 16 to 64 bytes.
func NewMasterKey(seed []byte) (*HDKey, error) {
	if len(seed) < MinSeedSize || len(seed) > MaxSeedSize {
		return nil, &KeyDerivationError{
			Op:  "create master key",
			Err: fmt.Errorf("seed must be %d to %d bytes, got %d", MinSeedSize, MaxSeedSize, len(seed)),
		}
	}
	master, err := bip32.NewMasterKey(seed)
	if err != nil {
		return nil, &KeyDerivationError{Op: "create master key", Err: err}
	}
	return &HDKey{key: master}, nil
}

// DeriveChild derives a child key at the given index.
// For hardened derivation, add HardenedOffset to the index.
func (k *HDKey) DeriveChild(index uint32) (*HDKey, error) {
	child, err := k.key.NewChildKey(index)
	if err != nil {
		return nil, fmt.Errorf("derive child %d: %w", index, err)
	}
	return &HDKey{key: child}, nil
}

// DeriveIndices derives a key along a sequence of indices.
func (k *HDKey) DeriveIndices(indices ...uint32) (*HDKey, error) {
	current := k
	for _, idx := range indices {
		child, err := current.DeriveChild(idx)
		if err != nil {
			return nil, err
		}
		current = child
	}
	return current, nil
}

// DerivePath derives the key at path, e.g. "m/44'/60'/0'/0/0".
func (k *HDKey) DerivePath(path string) (*HDKey, error) {
	indices, err := ParsePath(path)
	if err != nil {
		return nil, &PathDerivationError{Path: path, Err: err}
	}
	child, err := k.DeriveIndices(indices...)
	if err != nil {
		return nil, &PathDerivationError{Path: path, Err: err}
	}
	return child, nil
}

// DeriveChild derives the key at path from master. It is a pure function
// of its arguments.
func DeriveChild(master *HDKey, path string) (*HDKey, error) {
	if master == nil {
		return nil, &PathDerivationError{Path: path, Err: errors.New("nil master key")}
	}
	return master.DerivePath(path)
}

// PrivateKeyBytes returns a copy of the raw 32-byte private key.
// Returns nil if this is a public-only key.
func (k *HDKey) PrivateKeyBytes() []byte {
	if !k.key.IsPrivate {
		return nil
	}
	raw := k.key.Key
	if len(raw) == 33 && raw[0] == 0 {
		raw = raw[1:]
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out
}

// checkPrivateKey verifies that priv is a usable secp256k1 scalar.
func checkPrivateKey(priv []byte) error {
	if len(priv) != 32 {
		return fmt.Errorf("private key must be 32 bytes, got %d", len(priv))
	}
	var s secp256k1.ModNScalar
	if overflow := s.SetByteSlice(priv); overflow {
		return errors.New("private key is not below the curve order")
	}
	if s.IsZero() {
		return errors.New("private key is zero")
	}
	return nil
}

func compressedPublicKey(priv []byte) ([]byte, error) {
	if err := checkPrivateKey(priv); err != nil {
		return nil, err
	}
	return secp256k1.PrivKeyFromBytes(priv).PubKey().SerializeCompressed(), nil
}

// KeyDeriver derives per-currency private keys from a seed using the path
// table. secp256k1 currencies use BIP-32, ed25519 currencies SLIP-10.
type KeyDeriver struct {
	paths *PathTable
}

// NewKeyDeriver creates a key deriver for the given table.
func NewKeyDeriver(paths *PathTable) *KeyDeriver {
	return &KeyDeriver{paths: paths}
}

// DeriveMaster creates the BIP-32 master key for seed. A new key is
// created on every call.
func (d *KeyDeriver) DeriveMaster(seed []byte) (*HDKey, error) {
	return NewMasterKey(seed)
}

// DeriveCurrency derives the private key for symbol. master is used for
// secp256k1 kinds and seed for ed25519 kinds.
func (d *KeyDeriver) DeriveCurrency(seed []byte, master *HDKey, symbol string) (Currency, []byte, error) {
	c, ok := d.paths.Lookup(symbol)
	if !ok {
		return Currency{}, nil, &PathDerivationError{Symbol: symbol, Err: errors.New("symbol not in path table")}
	}

	if c.Kind.Curve() == "ed25519" {
		priv, err := DeriveEd25519(seed, c.Path)
		if err != nil {
			return c, nil, &PathDerivationError{Symbol: c.Symbol, Path: c.Path, Err: err}
		}
		return c, priv, nil
	}

	child, err := DeriveChild(master, c.Path)
	if err != nil {
		var perr *PathDerivationError
		if errors.As(err, &perr) {
			perr.Symbol = c.Symbol
		}
		return c, nil, err
	}
	priv := child.PrivateKeyBytes()
	if err := checkPrivateKey(priv); err != nil {
		return c, nil, &KeyDerivationError{Op: "derive " + c.Symbol, Err: err}
	}
	return c, priv, nil
}
