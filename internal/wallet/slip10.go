package wallet

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/anyproto/go-slip10"
)

// DeriveEd25519 derives the 32-byte ed25519 private seed at path from seed
// using SLIP-10. Every path component must be hardened.
func DeriveEd25519(seed []byte, path string) ([]byte, error) {
	if len(seed) == 0 {
		return nil, fmt.Errorf("empty seed")
	}
	indices, err := ParsePath(path)
	if err != nil {
		return nil, err
	}

	// The library only accepts the m/N'/N' form.
	var b strings.Builder
	b.WriteString("m")
	for _, idx := range indices {
		if idx < HardenedOffset {
			return nil, fmt.Errorf("ed25519 derivation requires hardened indices, got %d", idx)
		}
		b.WriteString("/")
		b.WriteString(strconv.FormatUint(uint64(idx-HardenedOffset), 10))
		b.WriteString("'")
	}

	node, err := slip10.DeriveForPath(b.String(), seed)
	if err != nil {
		return nil, fmt.Errorf("slip10 derive %s: %w", path, err)
	}
	_, priv := node.Keypair()
	return priv.Seed(), nil
}
