// Package wallet implements deterministic wallet derivation: BIP-39
// mnemonics, seeds, BIP-32/SLIP-10 keys, per-chain addresses, seed phrase
// encryption and wallet records.
package wallet

import (
	"errors"
	"strings"

	cosmosbip39 "github.com/cosmos/go-bip39"
	"github.com/tyler-smith/go-bip39"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// Supported entropy strengths.
const (
	Strength128 = 128 // 12 words
	Strength256 = 256 // 24 words
)

// Strategy names recorded on generated mnemonics and seeds.
const (
	StrategyTylerSmith = "bip39/tyler-smith"
	StrategyCosmos     = "bip39/cosmos"
	StrategyPrivateKey = "hdwallet/private-key"
)

// Well-known phrases older clients returned when every implementation
// failed. They are only ever attached to an ErrInsecureFallback error.
const (
	fixedPhrase12 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	fixedPhrase24 = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon " +
		"abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon art"
)

// Generated is a freshly generated mnemonic and the implementation that
// produced it.
type Generated struct {
	Phrase   string
	Strategy string
}

// bip39Impl is one BIP-39 implementation.
type bip39Impl struct {
	name     string
	generate func(bits int) (string, error)
	validate func(phrase string) (bool, error)
}

var tylerSmithImpl = bip39Impl{
	name: StrategyTylerSmith,
	generate: func(bits int) (string, error) {
		entropy, err := bip39.NewEntropy(bits)
		if err != nil {
			return "", err
		}
		return bip39.NewMnemonic(entropy)
	},
	validate: func(phrase string) (bool, error) {
		return bip39.IsMnemonicValid(phrase), nil
	},
}

var cosmosImpl = bip39Impl{
	name: StrategyCosmos,
	generate: func(bits int) (string, error) {
		entropy, err := cosmosbip39.NewEntropy(bits)
		if err != nil {
			return "", err
		}
		return cosmosbip39.NewMnemonic(entropy)
	},
	validate: func(phrase string) (bool, error) {
		// IsMnemonicValid in this implementation skips the checksum.
		if _, err := cosmosbip39.MnemonicToByteArray(phrase); err != nil {
			return false, err
		}
		return true, nil
	},
}

// MnemonicGenerator generates and validates BIP-39 mnemonics with a
// primary and a secondary implementation.
type MnemonicGenerator struct {
	impls []bip39Impl
}

// NewMnemonicGenerator creates a generator using tyler-smith/go-bip39 first
// and cosmos/go-bip39 second.
func NewMnemonicGenerator() *MnemonicGenerator {
	return &MnemonicGenerator{impls: []bip39Impl{tylerSmithImpl, cosmosImpl}}
}

// Generate creates a random mnemonic with the given entropy strength.
// When every implementation fails it returns a *DerivationError matching
// ErrInsecureFallback instead of a fixed phrase.
func (g *MnemonicGenerator) Generate(strengthBits int) (Generated, error) {
	var fixed string
	switch strengthBits {
	case Strength128:
		fixed = fixedPhrase12
	case Strength256:
		fixed = fixedPhrase24
	default:
		return Generated{}, invalid("strength", "must be %d or %d bits, got %d", Strength128, Strength256, strengthBits)
	}

	strategies := make([]Strategy[string], 0, len(g.impls))
	for _, impl := range g.impls {
		strategies = append(strategies, Strategy[string]{
			Name: impl.name,
			Run: func() (string, error) {
				phrase, err := impl.generate(strengthBits)
				if err == nil && phrase == "" {
					err = errors.New("empty mnemonic")
				}
				return phrase, err
			},
		})
	}

	phrase, winner, err := firstSuccess("generate mnemonic", ErrInsecureFallback, strategies)
	if err != nil {
		var derr *DerivationError
		if errors.As(err, &derr) {
			derr.FixedPhrase = fixed
		}
		klog.Wallet.Error().Int("strength", strengthBits).Err(err).
			Msg("All mnemonic implementations failed, refusing to return the fixed fallback phrase")
		return Generated{}, err
	}
	return Generated{Phrase: phrase, Strategy: winner}, nil
}

// Validate reports whether phrase is a valid 12 or 24 word English BIP-39
// mnemonic with a correct checksum. A true result from the primary
// implementation is trusted. Otherwise the secondary result is returned.
// Validate never panics.
func (g *MnemonicGenerator) Validate(phrase string) bool {
	phrase = NormalizeMnemonic(phrase)
	if !validWordCount(phrase) {
		return false
	}

	var result bool
	for i, impl := range g.impls {
		a := try(func() (bool, error) { return impl.validate(phrase) })
		if a.err != nil {
			klog.Wallet.Debug().Str("strategy", impl.name).Err(a.err).Msg("Mnemonic rejected")
		}
		result = a.err == nil && a.value
		if result || i == len(g.impls)-1 {
			break
		}
	}
	return result
}

// NormalizeMnemonic lowercases phrase and collapses whitespace to single
// spaces.
func NormalizeMnemonic(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

func validWordCount(phrase string) bool {
	n := len(strings.Fields(phrase))
	return n == 12 || n == 24
}
