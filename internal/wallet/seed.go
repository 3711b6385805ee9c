package wallet

import (
	"errors"
	"fmt"

	cosmosbip39 "github.com/cosmos/go-bip39"
	"github.com/ethereum/go-ethereum/accounts"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// SeedSize is the length of a standard BIP-39 seed in bytes (512 bits).
const SeedSize = 64

// DefaultEVMPath is the path whose private key the non-standard seed
// fallback reinterprets as seed bytes.
const DefaultEVMPath = "m/44'/60'/0'/0/0"

// Seed is a derived seed and the strategy that produced it.
type Seed struct {
	Bytes    []byte
	Strategy string
}

// Standard reports whether the seed came from a BIP-39 implementation.
func (s Seed) Standard() bool {
	return s.Strategy != StrategyPrivateKey
}

// Zero overwrites the seed bytes.
func (s Seed) Zero() {
	zero(s.Bytes)
}

// SeedDeriver turns a mnemonic into a seed, trying two BIP-39
// implementations and then a non-standard private key fallback.
type SeedDeriver struct {
	strategies func(mnemonic string) []Strategy[[]byte]
}

// NewSeedDeriver creates a seed deriver with the default strategy order.
func NewSeedDeriver() *SeedDeriver {
	return &SeedDeriver{strategies: defaultSeedStrategies}
}

func defaultSeedStrategies(mnemonic string) []Strategy[[]byte] {
	return []Strategy[[]byte]{
		{Name: StrategyTylerSmith, Run: func() ([]byte, error) {
			return bip39.NewSeedWithErrorChecking(mnemonic, "")
		}},
		{Name: StrategyCosmos, Run: func() ([]byte, error) {
			return cosmosbip39.NewSeedWithErrorChecking(mnemonic, "")
		}},
		{Name: StrategyPrivateKey, Run: func() ([]byte, error) {
			return privateKeySeed(mnemonic)
		}},
	}
}

// privateKeySeed derives the DefaultEVMPath account and returns its
// private key bytes. The result is not a BIP-39 seed.
func privateKeySeed(mnemonic string) ([]byte, error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("open hd wallet: %w", err)
	}
	indices, err := ParsePath(DefaultEVMPath)
	if err != nil {
		return nil, err
	}
	account, err := w.Derive(accounts.DerivationPath(indices), false)
	if err != nil {
		return nil, fmt.Errorf("derive %s: %w", DefaultEVMPath, err)
	}
	return w.PrivateKeyBytes(account)
}

// ToSeed derives a seed from mnemonic. Each strategy runs at most once,
// and only if the previous one failed. When all fail the error is a
// *DerivationError matching ErrSeedDerivation.
func (d *SeedDeriver) ToSeed(mnemonic string) (Seed, error) {
	mnemonic = NormalizeMnemonic(mnemonic)
	if mnemonic == "" {
		return Seed{}, invalid("mnemonic", "empty")
	}

	b, winner, err := firstSuccess("derive seed", ErrSeedDerivation, d.strategies(mnemonic))
	if err != nil {
		return Seed{}, err
	}
	if len(b) == 0 {
		return Seed{}, &DerivationError{
			Op:       "derive seed",
			Kind:     ErrSeedDerivation,
			Failures: []StrategyFailure{{Strategy: winner, Err: errors.New("empty seed")}},
		}
	}

	if winner == StrategyPrivateKey {
		klog.Wallet.Warn().Bool("non_standard", true).Str("strategy", winner).Int("seed_len", len(b)).
			Msg("Using non-standard seed, addresses will not match other BIP-39 wallets")
	}
	return Seed{Bytes: b, Strategy: winner}, nil
}
