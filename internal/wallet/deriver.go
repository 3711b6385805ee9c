package wallet

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"
	hdwallet "github.com/miguelmota/go-ethereum-hdwallet"
	"github.com/tyler-smith/go-bip39"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// Derivation methods recorded on a Result.
const (
	MethodSimple  = "simple"
	MethodComplex = "complex"
	MethodDirect  = "direct"
)

// Result is the outcome of deriving addresses from a mnemonic.
type Result struct {
	// Addresses maps currency symbol to address. Never empty on success.
	Addresses map[string]string
	// Method lists the methods that contributed addresses, in order,
	// e.g. "simple+complex".
	Method string
	// SeedStrategy is the seed strategy used by the complex method, if it ran.
	SeedStrategy string
	// Skipped maps currency symbol to the reason its derivation failed.
	Skipped map[string]string
}

// addressSynth turns private keys into addresses and checks them.
type addressSynth interface {
	Address(kind Kind, priv []byte) (string, error)
	ValidateAddress(kind Kind, addr string) error
}

// AddressDeriver runs the full pipeline: validate, simple method, complex
// method, direct fallback.
type AddressDeriver struct {
	paths     *PathTable
	mnemonics *MnemonicGenerator
	seeds     *SeedDeriver
	keys      *KeyDeriver
	synth     addressSynth

	simple func(mnemonic string, currencies []Currency) (map[string]string, error)
	direct func(mnemonic string) (string, error)
}

// NewAddressDeriver creates a deriver for the given path table.
func NewAddressDeriver(paths *PathTable) *AddressDeriver {
	return &AddressDeriver{
		paths:     paths,
		mnemonics: NewMnemonicGenerator(),
		seeds:     NewSeedDeriver(),
		keys:      NewKeyDeriver(paths),
		synth:     NewAddressSynthesizer(),
		simple:    simpleEVMAddresses,
		direct:    directEVMAddress,
	}
}

// Paths returns the deriver's path table.
func (d *AddressDeriver) Paths() *PathTable {
	return d.paths
}

// Derive produces an address for every currency in the path table it can.
// Failures of individual currencies are recorded in Result.Skipped. The
// returned map is never empty when err is nil.
func (d *AddressDeriver) Derive(mnemonic string) (*Result, error) {
	defer klog.Benchmark("derive addresses")()

	mnemonic = NormalizeMnemonic(mnemonic)
	if !d.mnemonics.Validate(mnemonic) {
		return nil, invalid("mnemonic", "not a valid 12 or 24 word BIP-39 phrase")
	}

	res := &Result{Addresses: make(map[string]string), Skipped: make(map[string]string)}
	var methods []string
	var failures []StrategyFailure
	currencies := d.paths.Currencies()

	// Simple method: EVM addresses straight from the hd wallet. Partial
	// output is discarded on any failure.
	simple := try(func() (map[string]string, error) {
		addrs, err := d.simple(mnemonic, currencies)
		if err != nil {
			return nil, err
		}
		for sym, addr := range addrs {
			if err := d.checkAddress(KindEVM, addr); err != nil {
				return nil, fmt.Errorf("%s: %w", sym, err)
			}
		}
		return addrs, nil
	})
	if simple.err == nil && len(simple.value) > 0 {
		for sym, addr := range simple.value {
			res.Addresses[sym] = addr
		}
		methods = append(methods, MethodSimple)
	} else {
		err := simple.err
		if err == nil {
			err = errors.New("no addresses")
		}
		klog.Wallet.Warn().Err(err).Msg("Simple derivation failed, using full derivation")
		failures = append(failures, StrategyFailure{Strategy: MethodSimple, Err: err})
	}

	// Complex method: every currency the simple method did not produce.
	var remaining []Currency
	for _, c := range currencies {
		if _, ok := res.Addresses[c.Symbol]; !ok {
			remaining = append(remaining, c)
		}
	}
	var seedErr error
	if len(remaining) > 0 {
		n, strategy, err := d.deriveComplex(mnemonic, remaining, res)
		res.SeedStrategy = strategy
		if err != nil {
			if errors.Is(err, ErrSeedDerivation) {
				seedErr = err
			}
			failures = append(failures, StrategyFailure{Strategy: MethodComplex, Err: err})
		}
		if n > 0 {
			methods = append(methods, MethodComplex)
		}
	}

	if len(res.Addresses) == 0 {
		// Seed exhaustion is fatal once the simple method has failed too.
		if seedErr != nil {
			return nil, &DerivationError{Op: "derive addresses", Kind: ErrSeedDerivation, Failures: failures}
		}
		direct := try(func() (string, error) {
			addr, err := d.direct(mnemonic)
			if err != nil {
				return "", err
			}
			return addr, d.checkAddress(KindEVM, addr)
		})
		if direct.err != nil || direct.value == "" {
			err := direct.err
			if err == nil {
				err = errors.New("empty address")
			}
			failures = append(failures, StrategyFailure{Strategy: MethodDirect, Err: err})
			klog.Wallet.Error().Err(err).Msg("Direct fallback failed, no addresses derived")
			return nil, &DerivationError{Op: "derive addresses", Kind: ErrKeyDerivation, Failures: failures}
		}
		klog.Wallet.Warn().Msg("Derived primary EVM address with direct fallback only")
		res.Addresses["ETH"] = direct.value
		delete(res.Skipped, "ETH")
		methods = append(methods, MethodDirect)
	}

	res.Method = strings.Join(methods, "+")
	klog.Wallet.Debug().Str("method", res.Method).Str("seed_strategy", res.SeedStrategy).
		Int("addresses", len(res.Addresses)).Int("skipped", len(res.Skipped)).Msg("Addresses derived")
	return res, nil
}

// deriveComplex derives currencies through the seed deriver and key
// deriver. Each currency is isolated: its failure is recorded in
// res.Skipped and the others continue. It returns the number of addresses
// added.
func (d *AddressDeriver) deriveComplex(mnemonic string, currencies []Currency, res *Result) (int, string, error) {
	seed, err := d.seeds.ToSeed(mnemonic)
	if err != nil {
		for _, c := range currencies {
			res.Skipped[c.Symbol] = err.Error()
		}
		return 0, "", err
	}
	defer seed.Zero()

	// A master key failure only blocks secp256k1 currencies.
	master, masterErr := d.keys.DeriveMaster(seed.Bytes)

	added := 0
	for _, c := range currencies {
		a := try(func() (string, error) {
			if c.Kind.Curve() == "secp256k1" && masterErr != nil {
				return "", masterErr
			}
			_, priv, err := d.keys.DeriveCurrency(seed.Bytes, master, c.Symbol)
			if err != nil {
				return "", err
			}
			defer zero(priv)
			addr, err := d.synth.Address(c.Kind, priv)
			if err != nil {
				return "", err
			}
			return addr, d.checkAddress(c.Kind, addr)
		})
		if a.err != nil {
			klog.Wallet.Warn().Str("symbol", c.Symbol).Str("path", c.Path).Str("kind", string(c.Kind)).
				Err(a.err).Msg("Skipping currency")
			res.Skipped[c.Symbol] = a.err.Error()
			continue
		}
		res.Addresses[c.Symbol] = a.value
		added++
	}

	if added == 0 {
		if masterErr != nil {
			return 0, seed.Strategy, masterErr
		}
		return 0, seed.Strategy, fmt.Errorf("all %d currencies failed", len(currencies))
	}
	return added, seed.Strategy, nil
}

// checkAddress rejects a synthesized address that does not parse back as
// kind.
func (d *AddressDeriver) checkAddress(kind Kind, addr string) error {
	if err := d.synth.ValidateAddress(kind, addr); err != nil {
		return fmt.Errorf("malformed %s address %q: %w", kind, addr, err)
	}
	return nil
}

// simpleEVMAddresses derives every evm currency through the ethereum hd
// wallet.
func simpleEVMAddresses(mnemonic string, currencies []Currency) (map[string]string, error) {
	w, err := hdwallet.NewFromMnemonic(mnemonic)
	if err != nil {
		return nil, fmt.Errorf("open hd wallet: %w", err)
	}
	out := make(map[string]string)
	for _, c := range currencies {
		if c.Kind != KindEVM {
			continue
		}
		indices, err := ParsePath(c.Path)
		if err != nil {
			return nil, &PathDerivationError{Symbol: c.Symbol, Path: c.Path, Err: err}
		}
		account, err := w.Derive(accounts.DerivationPath(indices), false)
		if err != nil {
			return nil, &PathDerivationError{Symbol: c.Symbol, Path: c.Path, Err: err}
		}
		addr := account.Address.Hex()
		if !IsChecksumAddress(addr) {
			return nil, fmt.Errorf("%s: hd wallet produced invalid address %q", c.Symbol, addr)
		}
		out[c.Symbol] = addr
	}
	return out, nil
}

// directEVMAddress derives the DefaultEVMPath address with btcsuite's
// hdkeychain, independent of the other derivation code.
func directEVMAddress(mnemonic string) (string, error) {
	seed := bip39.NewSeed(mnemonic, "")
	defer zero(seed)

	key, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	if err != nil {
		return "", fmt.Errorf("hdkeychain master: %w", err)
	}
	indices, err := ParsePath(DefaultEVMPath)
	if err != nil {
		return "", err
	}
	for _, idx := range indices {
		if key, err = key.Derive(idx); err != nil {
			return "", fmt.Errorf("hdkeychain derive %d: %w", idx, err)
		}
	}
	priv, err := key.ECPrivKey()
	if err != nil {
		return "", err
	}
	raw := priv.Serialize()
	defer zero(raw)

	ecdsaKey, err := crypto.ToECDSA(raw)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(ecdsaKey.PublicKey).Hex(), nil
}

// Symbols returns the keys of an address map in sorted order.
func Symbols(addresses map[string]string) []string {
	out := make([]string, 0, len(addresses))
	for sym := range addresses {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
