package wallet

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	solana "github.com/gagliardetto/solana-go"
)

// AddressSynthesizer turns derived private keys into chain addresses.
type AddressSynthesizer struct {
	btcNet *chaincfg.Params
}

// Network selects the bitcoin address encoding.
type Network string

// Supported networks.
const (
	Mainnet Network = "mainnet"
	Testnet Network = "testnet"
)

// ParseNetwork returns the network named s.
func ParseNetwork(s string) (Network, error) {
	switch n := Network(strings.ToLower(strings.TrimSpace(s))); n {
	case Mainnet, Testnet:
		return n, nil
	case "":
		return Mainnet, nil
	default:
		return "", invalid("network", "must be %q or %q", Mainnet, Testnet)
	}
}

func (n Network) params() *chaincfg.Params {
	if n == Testnet {
		return &chaincfg.TestNet3Params
	}
	return &chaincfg.MainNetParams
}

// NewAddressSynthesizer creates a synthesizer producing bitcoin mainnet
// addresses.
func NewAddressSynthesizer() *AddressSynthesizer {
	return NewNetworkAddressSynthesizer(Mainnet)
}

// NewNetworkAddressSynthesizer creates a synthesizer for the given network.
// EVM and Solana addresses do not depend on it.
func NewNetworkAddressSynthesizer(n Network) *AddressSynthesizer {
	return &AddressSynthesizer{btcNet: n.params()}
}

// Address returns the address of kind for the private key priv. priv is
// never modified. An empty address is never returned without an error.
func (s *AddressSynthesizer) Address(kind Kind, priv []byte) (string, error) {
	key := make([]byte, len(priv))
	copy(key, priv)
	defer zero(key)

	var (
		addr string
		err  error
	)
	switch kind {
	case KindEVM:
		addr, err = evmAddress(key)
	case KindP2PKH:
		addr, err = s.p2pkhAddress(key)
	case KindP2WPKH:
		addr, err = s.p2wpkhAddress(key)
	case KindSolana:
		addr, err = solanaAddress(key)
	default:
		return "", fmt.Errorf("unknown address kind %q", kind)
	}
	if err != nil {
		return "", fmt.Errorf("%s address: %w", kind, err)
	}
	if addr == "" {
		return "", fmt.Errorf("%s address: empty result", kind)
	}
	return addr, nil
}

func evmAddress(priv []byte) (string, error) {
	if err := checkPrivateKey(priv); err != nil {
		return "", err
	}
	key, err := crypto.ToECDSA(priv)
	if err != nil {
		return "", err
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}

func (s *AddressSynthesizer) p2pkhAddress(priv []byte) (string, error) {
	pub, err := compressedPublicKey(priv)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pub), s.btcNet)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func (s *AddressSynthesizer) p2wpkhAddress(priv []byte) (string, error) {
	pub, err := compressedPublicKey(priv)
	if err != nil {
		return "", err
	}
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub), s.btcNet)
	if err != nil {
		return "", err
	}
	return addr.EncodeAddress(), nil
}

func solanaAddress(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("ed25519 seed must be %d bytes, got %d", ed25519.SeedSize, len(seed))
	}
	key := solana.PrivateKey(ed25519.NewKeyFromSeed(seed))
	defer zero(key)
	if err := key.Validate(); err != nil {
		return "", err
	}
	return key.PublicKey().String(), nil
}

// IsChecksumAddress reports whether addr is a 0x-prefixed EVM address in
// valid EIP-55 mixed case.
func IsChecksumAddress(addr string) bool {
	if len(addr) != 42 || addr[:2] != "0x" || !common.IsHexAddress(addr) {
		return false
	}
	return common.HexToAddress(addr).Hex() == addr
}

// ValidateAddress checks that addr is well formed for kind.
func (s *AddressSynthesizer) ValidateAddress(kind Kind, addr string) error {
	switch kind {
	case KindEVM:
		if !IsChecksumAddress(addr) {
			return errors.New("not an EIP-55 checksum address")
		}
	case KindP2PKH, KindP2WPKH:
		decoded, err := btcutil.DecodeAddress(addr, s.btcNet)
		if err != nil {
			return err
		}
		if !decoded.IsForNet(s.btcNet) {
			return errors.New("address is for another network")
		}
	case KindSolana:
		if _, err := solana.PublicKeyFromBase58(addr); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown address kind %q", kind)
	}
	return nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
