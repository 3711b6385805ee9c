package wallet

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tyler-smith/go-bip32"
)

// HardenedOffset is added to an index for hardened derivation.
const HardenedOffset = bip32.FirstHardenedChild

// Kind selects how a derived key becomes an address.
type Kind string

// Address kinds.
const (
	KindEVM    Kind = "evm"    // EIP-55 checksummed hex
	KindP2PKH  Kind = "p2pkh"  // Base58Check legacy bitcoin
	KindP2WPKH Kind = "p2wpkh" // bech32 native segwit
	KindSolana Kind = "solana" // base58 ed25519 public key, SLIP-10
)

// Kinds lists every supported address kind.
var Kinds = []Kind{KindEVM, KindP2PKH, KindP2WPKH, KindSolana}

// Valid reports whether k is a supported kind.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Curve returns the curve the kind derives on.
func (k Kind) Curve() string {
	if k == KindSolana {
		return "ed25519"
	}
	return "secp256k1"
}

// Currency is one entry of the path table.
type Currency struct {
	Symbol string `json:"symbol"`
	Path   string `json:"path"`
	Kind   Kind   `json:"kind"`
}

// DefaultCurrencies returns the built-in path table entries.
func DefaultCurrencies() []Currency {
	return []Currency{
		{Symbol: "BTC", Path: "m/44'/0'/0'/0/0", Kind: KindP2PKH},
		{Symbol: "ETH", Path: DefaultEVMPath, Kind: KindEVM},
		{Symbol: "LINK", Path: DefaultEVMPath, Kind: KindEVM},
		{Symbol: "MATIC", Path: DefaultEVMPath, Kind: KindEVM},
		{Symbol: "AVAX", Path: DefaultEVMPath, Kind: KindEVM},
		{Symbol: "SOL", Path: "m/44'/501'/0'/0'", Kind: KindSolana},
	}
}

// PathTable maps currency symbols to derivation paths. It is immutable
// after construction.
type PathTable struct {
	entries map[string]Currency
}

// NewPathTable builds a table from currencies. Later entries replace
// earlier ones with the same symbol.
func NewPathTable(currencies ...Currency) (*PathTable, error) {
	t := &PathTable{entries: make(map[string]Currency, len(currencies))}
	for _, c := range currencies {
		c.Symbol = strings.ToUpper(strings.TrimSpace(c.Symbol))
		if c.Symbol == "" {
			return nil, invalid("symbol", "empty")
		}
		if !c.Kind.Valid() {
			return nil, invalid("kind", "unknown address kind %q for %s", c.Kind, c.Symbol)
		}
		if _, err := ParsePath(c.Path); err != nil {
			return nil, &PathDerivationError{Symbol: c.Symbol, Path: c.Path, Err: err}
		}
		t.entries[c.Symbol] = c
	}
	if len(t.entries) == 0 {
		return nil, invalid("path table", "no currencies")
	}
	return t, nil
}

// DefaultPathTable returns the built-in table.
func DefaultPathTable() *PathTable {
	t, err := NewPathTable(DefaultCurrencies()...)
	if err != nil {
		panic(err)
	}
	return t
}

// With returns a copy of t with overrides applied.
func (t *PathTable) With(overrides ...Currency) (*PathTable, error) {
	return NewPathTable(append(t.Currencies(), overrides...)...)
}

// Lookup returns the entry for symbol.
func (t *PathTable) Lookup(symbol string) (Currency, bool) {
	c, ok := t.entries[strings.ToUpper(symbol)]
	return c, ok
}

// Currencies returns every entry sorted by symbol.
func (t *PathTable) Currencies() []Currency {
	out := make([]Currency, 0, len(t.entries))
	for _, c := range t.entries {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// Len returns the number of entries.
func (t *PathTable) Len() int {
	return len(t.entries)
}

// ParseCurrency parses a configuration value of the form "<path> [kind]"
// for symbol. Without a kind, coin type 60 paths are evm, 501 paths are
// solana and everything else is p2pkh.
func ParseCurrency(symbol, value string) (Currency, error) {
	fields := strings.Fields(value)
	if len(fields) == 0 || len(fields) > 2 {
		return Currency{}, invalid("path", "want \"<path> [kind]\" for %s, got %q", symbol, value)
	}
	c := Currency{Symbol: strings.ToUpper(strings.TrimSpace(symbol)), Path: fields[0]}
	indices, err := ParsePath(c.Path)
	if err != nil {
		return Currency{}, &PathDerivationError{Symbol: c.Symbol, Path: c.Path, Err: err}
	}
	if len(fields) == 2 {
		c.Kind = Kind(strings.ToLower(fields[1]))
	} else {
		c.Kind = guessKind(indices)
	}
	if !c.Kind.Valid() {
		return Currency{}, invalid("kind", "unknown address kind %q for %s", c.Kind, c.Symbol)
	}
	return c, nil
}

func guessKind(indices []uint32) Kind {
	if len(indices) < 2 {
		return KindP2PKH
	}
	switch indices[1] {
	case HardenedOffset + 60:
		return KindEVM
	case HardenedOffset + 501:
		return KindSolana
	default:
		return KindP2PKH
	}
}

// ParsePath parses a path such as "m/44'/60'/0'/0/0" into child indices.
// A trailing apostrophe, h or H marks a hardened index.
func ParsePath(path string) ([]uint32, error) {
	parts := strings.Split(strings.TrimSpace(path), "/")
	if len(parts) == 0 || parts[0] != "m" {
		return nil, fmt.Errorf("path %q must start with m", path)
	}
	if len(parts) == 1 {
		return nil, errors.New("path has no components")
	}

	indices := make([]uint32, 0, len(parts)-1)
	for _, p := range parts[1:] {
		hardened := false
		if n := len(p); n > 0 && (p[n-1] == '\'' || p[n-1] == 'h' || p[n-1] == 'H') {
			hardened = true
			p = p[:n-1]
		}
		if p == "" || strings.HasPrefix(p, "+") || strings.HasPrefix(p, "-") {
			return nil, fmt.Errorf("invalid path component %q", p)
		}
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid path component %q: %w", p, err)
		}
		idx := uint32(v)
		if idx >= HardenedOffset {
			return nil, fmt.Errorf("path component %d out of range", v)
		}
		if hardened {
			idx += HardenedOffset
		}
		indices = append(indices, idx)
	}
	return indices, nil
}
