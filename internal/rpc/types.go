package rpc

import (
	"time"

	"github.com/Klingon-tech/coinvault/internal/market"
	"github.com/Klingon-tech/coinvault/internal/wallet"
)

// JSON-RPC 2.0 error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeNotFound       = -32000
	CodeUnavailable    = -32001
)

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
	ID      interface{} `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	Result  interface{} `json:"result,omitempty"`
	Error   *Error      `json:"error,omitempty"`
	ID      interface{} `json:"id"`
}

// Error is a JSON-RPC 2.0 error object.
type Error struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ── Param types ─────────────────────────────────────────────────────────

// StrengthParam is used by wallet_generateMnemonic. Zero means 128 bits.
type StrengthParam struct {
	Strength int `json:"strength,omitempty"`
}

// MnemonicParam is used by endpoints that take a single mnemonic.
type MnemonicParam struct {
	Mnemonic string `json:"mnemonic"`
}

// EncryptSeedParam is the params for wallet_encryptSeed.
type EncryptSeedParam struct {
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
}

// DecryptSeedParam is the params for wallet_decryptSeed.
type DecryptSeedParam struct {
	EncryptedSeed string `json:"encrypted_seed"`
	Password      string `json:"password"`
}

// AddressQRParam is the params for wallet_addressQR.
type AddressQRParam struct {
	Address string `json:"address"`
	Size    int    `json:"size,omitempty"`
}

// WalletSaveParam is the params for wallet_save.
type WalletSaveParam struct {
	UserID        string            `json:"user_id"`
	Name          string            `json:"name,omitempty"`
	EncryptedSeed string            `json:"encrypted_seed"`
	Addresses     map[string]string `json:"addresses"`
}

// WalletCreateParam is the params for wallet_create.
type WalletCreateParam struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password"`
	Strength int    `json:"strength,omitempty"`
}

// WalletImportParam is the params for wallet_import.
type WalletImportParam struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
}

// UserParam is used by endpoints scoped to a user.
type UserParam struct {
	UserID string `json:"user_id"`
}

// WalletIDParam identifies one wallet of a user.
type WalletIDParam struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
}

// WalletRenameParam is the params for wallet_rename.
type WalletRenameParam struct {
	UserID string `json:"user_id"`
	ID     string `json:"id"`
	Name   string `json:"name"`
}

// WalletRevealParam is the params for wallet_revealSeed.
type WalletRevealParam struct {
	UserID   string `json:"user_id"`
	ID       string `json:"id"`
	Password string `json:"password"`
}

// PricesParam is the params for market_getPrices.
type PricesParam struct {
	IDs          []string `json:"ids"`
	VsCurrencies []string `json:"vs_currencies"`
}

// OHLCParam is the params for market_getOHLC.
type OHLCParam struct {
	ID         string `json:"id"`
	VsCurrency string `json:"vs_currency"`
	Days       int    `json:"days"`
}

// ── Result types ────────────────────────────────────────────────────────

// MnemonicResult carries a plaintext mnemonic.
type MnemonicResult struct {
	Mnemonic string `json:"mnemonic"`
	Words    int    `json:"words"`
}

// ValidateResult is returned by wallet_validateMnemonic.
type ValidateResult struct {
	Valid bool `json:"valid"`
}

// DeriveResult is returned by wallet_deriveAddresses.
type DeriveResult struct {
	Addresses    map[string]string `json:"addresses"`
	Method       string            `json:"method"`
	SeedStrategy string            `json:"seed_strategy,omitempty"`
	Skipped      map[string]string `json:"skipped,omitempty"`
}

// EncryptResult is returned by wallet_encryptSeed.
type EncryptResult struct {
	EncryptedSeed string `json:"encrypted_seed"`
}

// PathInfo describes one configured currency.
type PathInfo struct {
	Symbol string `json:"symbol"`
	Path   string `json:"path"`
	Kind   string `json:"kind"`
}

// PathsResult is returned by wallet_paths.
type PathsResult struct {
	Currencies []PathInfo `json:"currencies"`
}

// QRResult is returned by wallet_addressQR.
type QRResult struct {
	Address string `json:"address"`
	PNG     string `json:"png"` // base64
}

// WalletInfo is the public view of a stored wallet. The encrypted seed
// phrase is never returned.
type WalletInfo struct {
	ID          string            `json:"id"`
	UserID      string            `json:"user_id"`
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Addresses   map[string]string `json:"addresses"`
	Fingerprint string            `json:"fingerprint"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Persisted   bool              `json:"persisted"`
}

// WalletCreateResult is returned by wallet_create. The mnemonic is shown
// once and is not stored in plaintext.
type WalletCreateResult struct {
	Wallet   WalletInfo `json:"wallet"`
	Mnemonic string     `json:"mnemonic"`
}

// WalletListResult is returned by wallet_list.
type WalletListResult struct {
	Wallets []WalletInfo `json:"wallets"`
}

// DeleteResult is returned by wallet_delete and wallet_deleteAll.
type DeleteResult struct {
	Deleted bool `json:"deleted"`
	Count   int  `json:"count"`
}

// PricesResult is returned by market_getPrices. Prices are decimal strings.
type PricesResult struct {
	Prices market.Prices `json:"prices"`
}

// OHLCResult is returned by market_getOHLC.
type OHLCResult struct {
	ID         string          `json:"id"`
	VsCurrency string          `json:"vs_currency"`
	Days       int             `json:"days"`
	Candles    []market.Candle `json:"candles"`
}

func walletInfo(w *wallet.GeneratedWallet) WalletInfo {
	return WalletInfo{
		ID:          w.ID,
		UserID:      w.UserID,
		Name:        w.Name,
		Type:        w.Type,
		Addresses:   w.Addresses,
		Fingerprint: w.Fingerprint,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
		Persisted:   w.Persisted,
	}
}
