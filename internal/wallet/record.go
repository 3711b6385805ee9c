package wallet

import (
	"context"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	klog "github.com/Klingon-tech/coinvault/internal/log"
)

// Wallet record constants.
const (
	WalletTable         = "wallets"
	WalletTypeGenerated = "generated"
	DefaultWalletName   = "Generated Wallet"
	MaxWalletNameLen    = 64
	fingerprintSize     = 16
)

// Store is the record store the wallet service persists to.
type Store interface {
	Save(ctx context.Context, table, id string, record any) error
	Get(ctx context.Context, table, id string, out any) error
	Query(ctx context.Context, table string, filter map[string]string, out any) error
	Delete(ctx context.Context, table, id string) error
	DeleteWhere(ctx context.Context, table string, filter map[string]string) (int, error)
}

// GeneratedWallet is a wallet derived from a mnemonic. Only Name,
// EncryptedSeedPhrase and UpdatedAt change after creation.
type GeneratedWallet struct {
	ID                  string            `json:"id"`
	UserID              string            `json:"user_id"`
	Name                string            `json:"name"`
	Type                string            `json:"type"`
	Addresses           map[string]string `json:"addresses"`
	EncryptedSeedPhrase string            `json:"encrypted_seed_phrase"`
	Fingerprint         string            `json:"fingerprint"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`

	// Persisted is false when the store rejected the record and the
	// wallet exists only in memory.
	Persisted bool `json:"-"`
}

// Fingerprint identifies an address map independent of wallet ID: the hex
// encoded first 16 bytes of BLAKE3 over the sorted SYMBOL=address lines.
func Fingerprint(addresses map[string]string) string {
	var b strings.Builder
	for _, sym := range Symbols(addresses) {
		b.WriteString(sym)
		b.WriteByte('=')
		b.WriteString(addresses[sym])
		b.WriteByte('\n')
	}
	sum := blake3.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:fingerprintSize])
}

// RecordBuilder assembles wallet records and saves them.
type RecordBuilder struct {
	store Store
	mu    sync.Mutex
	now   func() time.Time
	newID func() string
}

// NewRecordBuilder creates a builder saving to store.
func NewRecordBuilder(store Store) *RecordBuilder {
	return &RecordBuilder{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: func() string { return uuid.NewString() },
	}
}

// Build creates a wallet record and saves it. Saving the same address map
// twice for the same user updates the existing record instead: its
// encrypted seed phrase is replaced, and so is its name when name is not
// blank. If the store fails on a new record the in-memory wallet is
// returned with Persisted set to false and a nil error. A failed update
// returns a *PersistenceError since the stored record keeps the old seed
// envelope.
func (b *RecordBuilder) Build(ctx context.Context, userID, name string, addresses map[string]string, encryptedSeed string) (*GeneratedWallet, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, invalid("user id", "empty")
	}
	named := strings.TrimSpace(name) != ""
	name, err := CleanWalletName(name)
	if err != nil {
		return nil, err
	}
	if len(addresses) == 0 {
		return nil, invalid("addresses", "empty")
	}
	addrs := make(map[string]string, len(addresses))
	for sym, addr := range addresses {
		if sym == "" || addr == "" {
			return nil, invalid("addresses", "empty symbol or address")
		}
		addrs[strings.ToUpper(sym)] = addr
	}
	if encryptedSeed == "" {
		return nil, invalid("encrypted seed phrase", "empty")
	}

	now := b.now()
	w := &GeneratedWallet{
		ID:                  b.newID(),
		UserID:              userID,
		Name:                name,
		Type:                WalletTypeGenerated,
		Addresses:           addrs,
		EncryptedSeedPhrase: encryptedSeed,
		Fingerprint:         Fingerprint(addrs),
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var existing []GeneratedWallet
	err = b.store.Query(ctx, WalletTable, map[string]string{"user_id": userID, "fingerprint": w.Fingerprint}, &existing)
	if err == nil && len(existing) > 0 {
		found := existing[0]
		found.EncryptedSeedPhrase = encryptedSeed
		if named {
			found.Name = name
		}
		found.UpdatedAt = now
		if err := b.store.Save(ctx, WalletTable, found.ID, &found); err != nil {
			return nil, &PersistenceError{Op: "update wallet", Err: err}
		}
		found.Persisted = true
		klog.Wallet.Info().Str("wallet_id", found.ID).Str("user_id", userID).Msg("Existing wallet updated")
		return &found, nil
	}
	if err == nil {
		err = b.store.Save(ctx, WalletTable, w.ID, w)
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, &PersistenceError{Op: "save wallet", Err: err}
		}
		perr := &PersistenceError{Op: "save wallet", Err: err}
		klog.Wallet.Warn().Err(perr).Str("wallet_id", w.ID).Str("user_id", userID).
			Msg("Wallet not persisted, returning in-memory record")
		return w, nil
	}

	w.Persisted = true
	klog.Wallet.Info().Str("wallet_id", w.ID).Str("user_id", userID).Int("addresses", len(addrs)).Msg("Wallet saved")
	return w, nil
}

// CleanWalletName trims name and applies the default and length limit.
func CleanWalletName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultWalletName, nil
	}
	if utf8.RuneCountInString(name) > MaxWalletNameLen {
		return "", invalid("name", "longer than %d characters", MaxWalletNameLen)
	}
	return name, nil
}
