package wallet

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"

	klog "github.com/Klingon-tech/coinvault/internal/log"
	"github.com/Klingon-tech/coinvault/internal/storage"
)

// QR code size bounds in pixels.
const (
	DefaultQRSize = 256
	MaxQRSize     = 1024
)

// Service is the wallet API used by the RPC layer.
type Service struct {
	mnemonics *MnemonicGenerator
	deriver   *AddressDeriver
	cipher    *SeedCipher
	records   *RecordBuilder
	store     Store

	// mu serializes read-modify-write updates of stored wallets.
	mu sync.Mutex
}

// Option configures a Service.
type Option func(*Service)

// WithNetwork selects the bitcoin network addresses are encoded for.
func WithNetwork(n Network) Option {
	return func(s *Service) {
		s.deriver.synth = NewNetworkAddressSynthesizer(n)
	}
}

// NewService creates a wallet service. A nil path table means the
// built-in defaults.
func NewService(store Store, paths *PathTable, kdf EncryptionParams, opts ...Option) *Service {
	if paths == nil {
		paths = DefaultPathTable()
	}
	s := &Service{
		mnemonics: NewMnemonicGenerator(),
		deriver:   NewAddressDeriver(paths),
		cipher:    NewSeedCipher(kdf),
		records:   NewRecordBuilder(store),
		store:     store,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Paths returns the configured path table entries.
func (s *Service) Paths() []Currency {
	return s.deriver.Paths().Currencies()
}

// GenerateMnemonic returns a new random mnemonic of strength bits.
func (s *Service) GenerateMnemonic(strength int) (string, error) {
	g, err := s.mnemonics.Generate(strength)
	if err != nil {
		return "", err
	}
	klog.Wallet.Debug().Int("strength", strength).Str("strategy", g.Strategy).Msg("Mnemonic generated")
	return g.Phrase, nil
}

// ValidateMnemonic reports whether phrase is a valid mnemonic.
func (s *Service) ValidateMnemonic(phrase string) bool {
	return s.mnemonics.Validate(phrase)
}

// GenerateAddressesFromMnemonic derives the address map for phrase.
func (s *Service) GenerateAddressesFromMnemonic(phrase string) (map[string]string, error) {
	res, err := s.deriver.Derive(phrase)
	if err != nil {
		return nil, err
	}
	return res.Addresses, nil
}

// DeriveAddresses is GenerateAddressesFromMnemonic with derivation details.
func (s *Service) DeriveAddresses(phrase string) (*Result, error) {
	return s.deriver.Derive(phrase)
}

// EncryptSeedPhrase encrypts phrase with password.
func (s *Service) EncryptSeedPhrase(phrase, password string) (string, error) {
	return s.cipher.EncryptSeedPhrase(phrase, password)
}

// DecryptSeedPhrase decrypts a phrase encrypted by EncryptSeedPhrase.
func (s *Service) DecryptSeedPhrase(ciphertext, password string) (string, error) {
	return s.cipher.DecryptSeedPhrase(ciphertext, password)
}

// SaveGeneratedWallet builds and saves a wallet record.
func (s *Service) SaveGeneratedWallet(ctx context.Context, userID, name, encryptedPhrase string, addresses map[string]string) (*GeneratedWallet, error) {
	return s.records.Build(ctx, userID, name, addresses, encryptedPhrase)
}

// CreateWallet generates a mnemonic, derives its addresses and saves the
// encrypted wallet. The mnemonic is returned for one-time display.
func (s *Service) CreateWallet(ctx context.Context, userID, name, password string, strength int) (*GeneratedWallet, string, error) {
	if password == "" {
		return nil, "", invalid("password", "empty")
	}
	phrase, err := s.GenerateMnemonic(strength)
	if err != nil {
		return nil, "", err
	}
	w, err := s.saveFromPhrase(ctx, userID, name, phrase, password)
	if err != nil {
		return nil, "", err
	}
	return w, phrase, nil
}

// ImportWallet validates an existing mnemonic, derives its addresses and
// saves the encrypted wallet.
func (s *Service) ImportWallet(ctx context.Context, userID, name, phrase, password string) (*GeneratedWallet, error) {
	if password == "" {
		return nil, invalid("password", "empty")
	}
	phrase = NormalizeMnemonic(phrase)
	if !s.mnemonics.Validate(phrase) {
		return nil, invalid("mnemonic", "not a valid 12 or 24 word BIP-39 phrase")
	}
	return s.saveFromPhrase(ctx, userID, name, phrase, password)
}

func (s *Service) saveFromPhrase(ctx context.Context, userID, name, phrase, password string) (*GeneratedWallet, error) {
	addresses, err := s.GenerateAddressesFromMnemonic(phrase)
	if err != nil {
		return nil, err
	}
	encrypted, err := s.cipher.EncryptSeedPhrase(phrase, password)
	if err != nil {
		return nil, err
	}
	return s.records.Build(ctx, userID, name, addresses, encrypted)
}

// ListWallets returns the user's wallets ordered by ID.
func (s *Service) ListWallets(ctx context.Context, userID string) ([]GeneratedWallet, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id", "empty")
	}
	var out []GeneratedWallet
	if err := s.store.Query(ctx, WalletTable, map[string]string{"user_id": userID}, &out); err != nil {
		return nil, &PersistenceError{Op: "list wallets", Err: err}
	}
	for i := range out {
		out[i].Persisted = true
	}
	if out == nil {
		out = []GeneratedWallet{}
	}
	return out, nil
}

// GetWallet returns the user's wallet with the given ID. Wallets owned by
// other users are reported as not found.
func (s *Service) GetWallet(ctx context.Context, userID, id string) (*GeneratedWallet, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalid("user id", "empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return nil, invalid("wallet id", "not a UUID")
	}
	var w GeneratedWallet
	err := s.store.Get(ctx, WalletTable, id, &w)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, &PersistenceError{Op: "get wallet", Err: err}
	}
	if w.UserID != userID {
		return nil, fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	w.Persisted = true
	return &w, nil
}

// RenameWallet changes a wallet's name.
func (s *Service) RenameWallet(ctx context.Context, userID, id, name string) (*GeneratedWallet, error) {
	name, err := CleanWalletName(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	w, err := s.GetWallet(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	w.Name = name
	w.UpdatedAt = s.records.now()
	if err := s.store.Save(ctx, WalletTable, w.ID, w); err != nil {
		return nil, &PersistenceError{Op: "rename wallet", Err: err}
	}
	klog.Wallet.Info().Str("wallet_id", id).Msg("Wallet renamed")
	return w, nil
}

// DeleteWallet removes a wallet.
func (s *Service) DeleteWallet(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.GetWallet(ctx, userID, id); err != nil {
		return err
	}
	err := s.store.Delete(ctx, WalletTable, id)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return fmt.Errorf("wallet %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return &PersistenceError{Op: "delete wallet", Err: err}
	}
	klog.Wallet.Info().Str("wallet_id", id).Msg("Wallet deleted")
	return nil
}

// DeleteUserWallets removes every wallet of userID in one batch and
// returns how many were removed.
func (s *Service) DeleteUserWallets(ctx context.Context, userID string) (int, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, invalid("user id", "empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n, err := s.store.DeleteWhere(ctx, WalletTable, map[string]string{"user_id": userID})
	if err != nil {
		return 0, &PersistenceError{Op: "delete user wallets", Err: err}
	}
	klog.Wallet.Info().Str("user_id", userID).Int("wallets", n).Msg("User wallets deleted")
	return n, nil
}

// RevealSeedPhrase decrypts a stored wallet's mnemonic.
func (s *Service) RevealSeedPhrase(ctx context.Context, userID, id, password string) (string, error) {
	w, err := s.GetWallet(ctx, userID, id)
	if err != nil {
		return "", err
	}
	phrase, err := s.cipher.DecryptSeedPhrase(w.EncryptedSeedPhrase, password)
	if err != nil {
		klog.Wallet.Warn().Str("wallet_id", id).Msg("Seed phrase reveal failed")
		return "", err
	}
	return phrase, nil
}

// AddressQR returns a base64 encoded PNG QR code of address.
func (s *Service) AddressQR(address string, size int) (string, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return "", invalid("address", "empty")
	}
	if size == 0 {
		size = DefaultQRSize
	}
	if size < 0 || size > MaxQRSize {
		return "", invalid("size", "must be between 1 and %d", MaxQRSize)
	}
	png, err := qrcode.Encode(address, qrcode.Medium, size)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
