package wallet

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/Klingon-tech/coinvault/internal/storage"
)

// failingStore rejects every call.
type failingStore struct{}

var errStoreDown = errors.New("store down")

func (failingStore) Save(context.Context, string, string, any) error { return errStoreDown }
func (failingStore) Get(context.Context, string, string, any) error  { return errStoreDown }
func (failingStore) Query(context.Context, string, map[string]string, any) error {
	return errStoreDown
}
func (failingStore) Delete(context.Context, string, string) error { return errStoreDown }
func (failingStore) DeleteWhere(context.Context, string, map[string]string) (int, error) {
	return 0, errStoreDown
}

// saveFailingStore answers reads from its inner store and rejects saves.
type saveFailingStore struct{ Store }

func (saveFailingStore) Save(context.Context, string, string, any) error { return errStoreDown }

var testAddresses = map[string]string{
	"ETH": testETHAddress,
	"BTC": testBTCAddress,
}

func TestBuild(t *testing.T) {
	store := storage.NewRecordStore(storage.NewMemory())
	b := NewRecordBuilder(store)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	b.now = func() time.Time { return fixed }

	w, err := b.Build(context.Background(), "user-1", "  Savings ", testAddresses, "ciphertext")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if !w.Persisted {
		t.Error("Persisted = false, want true")
	}
	if w.Name != "Savings" {
		t.Errorf("Name = %q, want Savings", w.Name)
	}
	if w.Type != WalletTypeGenerated {
		t.Errorf("Type = %q, want %q", w.Type, WalletTypeGenerated)
	}
	if !w.CreatedAt.Equal(fixed) || !w.UpdatedAt.Equal(fixed) {
		t.Errorf("timestamps = %v/%v, want %v", w.CreatedAt, w.UpdatedAt, fixed)
	}
	if w.Fingerprint != Fingerprint(testAddresses) {
		t.Errorf("Fingerprint = %s, want %s", w.Fingerprint, Fingerprint(testAddresses))
	}

	var stored GeneratedWallet
	if err := store.Get(context.Background(), WalletTable, w.ID, &stored); err != nil {
		t.Fatalf("stored record missing: %v", err)
	}
	if stored.UserID != "user-1" || stored.Addresses["ETH"] != testETHAddress || stored.EncryptedSeedPhrase != "ciphertext" {
		t.Errorf("stored record = %+v", stored)
	}
}

func TestBuild_DefaultName(t *testing.T) {
	b := NewRecordBuilder(storage.NewRecordStore(storage.NewMemory()))
	w, err := b.Build(context.Background(), "u", "", testAddresses, "c")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if w.Name != DefaultWalletName {
		t.Errorf("Name = %q, want %q", w.Name, DefaultWalletName)
	}
}

func TestBuild_DoesNotAliasAddresses(t *testing.T) {
	b := NewRecordBuilder(storage.NewRecordStore(storage.NewMemory()))
	in := map[string]string{"ETH": testETHAddress}
	w, err := b.Build(context.Background(), "u", "n", in, "c")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	in["ETH"] = "changed"
	if w.Addresses["ETH"] != testETHAddress {
		t.Error("wallet shares the caller's address map")
	}
}

func TestBuild_Validation(t *testing.T) {
	b := NewRecordBuilder(storage.NewRecordStore(storage.NewMemory()))
	tests := []struct {
		name      string
		userID    string
		wname     string
		addresses map[string]string
		enc       string
	}{
		{"no user", " ", "n", testAddresses, "c"},
		{"no addresses", "u", "n", map[string]string{}, "c"},
		{"empty address", "u", "n", map[string]string{"ETH": ""}, "c"},
		{"no ciphertext", "u", "n", testAddresses, ""},
		{"long name", "u", strings.Repeat("x", MaxWalletNameLen+1), testAddresses, "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(context.Background(), tt.userID, tt.wname, tt.addresses, tt.enc)
			if !errors.Is(err, ErrValidation) {
				t.Errorf("Build() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestBuild_PersistenceFailureDegrades(t *testing.T) {
	b := NewRecordBuilder(failingStore{})
	w, err := b.Build(context.Background(), "u", "n", testAddresses, "c")
	if err != nil {
		t.Fatalf("Build() error = %v, want nil", err)
	}
	if w == nil {
		t.Fatal("Build() returned nil wallet")
	}
	if w.Persisted {
		t.Error("Persisted = true for a wallet the store rejected")
	}
	if w.ID == "" || len(w.Addresses) != 2 {
		t.Errorf("in-memory wallet incomplete: %+v", w)
	}
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := NewRecordBuilder(storage.NewRecordStore(storage.NewMemory()))
	_, err := b.Build(ctx, "u", "n", testAddresses, "c")
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, context.Canceled) {
		t.Errorf("Build() error = %v, want ErrPersistence wrapping context.Canceled", err)
	}
}

func TestBuild_IdempotentPerUser(t *testing.T) {
	store := storage.NewRecordStore(storage.NewMemory())
	b := NewRecordBuilder(store)
	ctx := context.Background()

	w1, err := b.Build(ctx, "u", "first", testAddresses, "c1")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	w2, err := b.Build(ctx, "u", "second", testAddresses, "c2")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if w1.ID != w2.ID {
		t.Errorf("second save created a new wallet %s, want %s", w2.ID, w1.ID)
	}
	if w2.Name != "second" || w2.EncryptedSeedPhrase != "c2" || !w2.Persisted {
		t.Errorf("second save = %+v, want the existing record updated", w2)
	}
	var stored GeneratedWallet
	if err := store.Get(ctx, WalletTable, w1.ID, &stored); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.EncryptedSeedPhrase != "c2" {
		t.Errorf("stored seed envelope = %q, want c2", stored.EncryptedSeedPhrase)
	}
	if !stored.CreatedAt.Equal(w1.CreatedAt) {
		t.Errorf("CreatedAt changed on update: %v -> %v", w1.CreatedAt, stored.CreatedAt)
	}

	// A blank name keeps the stored one.
	w3, err := b.Build(ctx, "u", "  ", testAddresses, "c3")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if w3.Name != "second" {
		t.Errorf("Name = %q, want second", w3.Name)
	}

	other, err := b.Build(ctx, "someone-else", "", testAddresses, "c4")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if other.ID == w1.ID {
		t.Error("wallets of different users were merged")
	}

	var all []GeneratedWallet
	store.Query(ctx, WalletTable, nil, &all)
	if len(all) != 2 {
		t.Errorf("stored %d wallets, want 2", len(all))
	}
}

func TestBuild_UpdateFailure(t *testing.T) {
	store := storage.NewRecordStore(storage.NewMemory())
	ctx := context.Background()
	w, err := NewRecordBuilder(store).Build(ctx, "u", "n", testAddresses, "c1")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	_, err = NewRecordBuilder(saveFailingStore{store}).Build(ctx, "u", "n", testAddresses, "c2")
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("Build() error = %v, want ErrPersistence", err)
	}
	var stored GeneratedWallet
	if err := store.Get(ctx, WalletTable, w.ID, &stored); err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if stored.EncryptedSeedPhrase != "c1" {
		t.Errorf("stored seed envelope = %q, want c1", stored.EncryptedSeedPhrase)
	}
}

func TestFingerprint(t *testing.T) {
	a := map[string]string{"ETH": "0x1", "BTC": "1a"}
	b := map[string]string{"BTC": "1a", "ETH": "0x1"}
	c := map[string]string{"ETH": "0x1", "BTC": "1b"}

	if Fingerprint(a) != Fingerprint(b) {
		t.Error("fingerprint depends on map order")
	}
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different addresses share a fingerprint")
	}
	if len(Fingerprint(a)) != 2*fingerprintSize {
		t.Errorf("fingerprint length = %d, want %d", len(Fingerprint(a)), 2*fingerprintSize)
	}
}
