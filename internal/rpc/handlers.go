package rpc

import (
	"context"
	"errors"
	"strings"

	"github.com/Klingon-tech/coinvault/internal/market"
	"github.com/Klingon-tech/coinvault/internal/wallet"
)

// errorFor maps a service error to a JSON-RPC error.
func (s *Server) errorFor(method string, err error) *Error {
	switch {
	case errors.Is(err, wallet.ErrValidation),
		errors.Is(err, wallet.ErrDecrypt),
		errors.Is(err, market.ErrInvalidRequest):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.Is(err, wallet.ErrNotFound):
		return &Error{Code: CodeNotFound, Message: err.Error()}
	case errors.Is(err, market.ErrRateLimited), errors.Is(err, market.ErrUnavailable):
		return &Error{Code: CodeUnavailable, Message: err.Error()}
	default:
		// The cause may name storage paths; it stays in the log.
		s.logger.Error().Err(err).Str("method", method).Msg("RPC handler failed")
		return &Error{Code: CodeInternalError, Message: "internal error"}
	}
}

func strengthOrDefault(strength int) int {
	if strength == 0 {
		return wallet.Strength128
	}
	return strength
}

// ── Stateless wallet operations ─────────────────────────────────────────

func (s *Server) handleGenerateMnemonic(req *Request) (interface{}, *Error) {
	var p StrengthParam
	if err := parseOptionalParams(req, &p); err != nil {
		return nil, err
	}
	phrase, err := s.wallets.GenerateMnemonic(strengthOrDefault(p.Strength))
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &MnemonicResult{Mnemonic: phrase, Words: len(strings.Fields(phrase))}, nil
}

func (s *Server) handleValidateMnemonic(req *Request) (interface{}, *Error) {
	var p MnemonicParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	return &ValidateResult{Valid: s.wallets.ValidateMnemonic(p.Mnemonic)}, nil
}

func (s *Server) handleDeriveAddresses(req *Request) (interface{}, *Error) {
	var p MnemonicParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	res, err := s.wallets.DeriveAddresses(p.Mnemonic)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &DeriveResult{
		Addresses:    res.Addresses,
		Method:       res.Method,
		SeedStrategy: res.SeedStrategy,
		Skipped:      res.Skipped,
	}, nil
}

func (s *Server) handleEncryptSeed(req *Request) (interface{}, *Error) {
	var p EncryptSeedParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	enc, err := s.wallets.EncryptSeedPhrase(p.Mnemonic, p.Password)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &EncryptResult{EncryptedSeed: enc}, nil
}

func (s *Server) handleDecryptSeed(req *Request) (interface{}, *Error) {
	var p DecryptSeedParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	phrase, err := s.wallets.DecryptSeedPhrase(p.EncryptedSeed, p.Password)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &MnemonicResult{Mnemonic: phrase, Words: len(strings.Fields(phrase))}, nil
}

func (s *Server) handlePaths(_ *Request) (interface{}, *Error) {
	currencies := s.wallets.Paths()
	out := make([]PathInfo, 0, len(currencies))
	for _, c := range currencies {
		out = append(out, PathInfo{Symbol: c.Symbol, Path: c.Path, Kind: string(c.Kind)})
	}
	return &PathsResult{Currencies: out}, nil
}

func (s *Server) handleAddressQR(req *Request) (interface{}, *Error) {
	var p AddressQRParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	png, err := s.wallets.AddressQR(p.Address, p.Size)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &QRResult{Address: strings.TrimSpace(p.Address), PNG: png}, nil
}

// ── Stored wallets ──────────────────────────────────────────────────────

func (s *Server) handleWalletSave(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletSaveParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	w, err := s.wallets.SaveGeneratedWallet(ctx, p.UserID, p.Name, p.EncryptedSeed, p.Addresses)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	info := walletInfo(w)
	return &info, nil
}

func (s *Server) handleWalletCreate(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletCreateParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	w, phrase, err := s.wallets.CreateWallet(ctx, p.UserID, p.Name, p.Password, strengthOrDefault(p.Strength))
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &WalletCreateResult{Wallet: walletInfo(w), Mnemonic: phrase}, nil
}

func (s *Server) handleWalletImport(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletImportParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	w, err := s.wallets.ImportWallet(ctx, p.UserID, p.Name, p.Mnemonic, p.Password)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	info := walletInfo(w)
	return &info, nil
}

func (s *Server) handleWalletList(ctx context.Context, req *Request) (interface{}, *Error) {
	var p UserParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	wallets, err := s.wallets.ListWallets(ctx, p.UserID)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	out := make([]WalletInfo, 0, len(wallets))
	for i := range wallets {
		out = append(out, walletInfo(&wallets[i]))
	}
	return &WalletListResult{Wallets: out}, nil
}

func (s *Server) handleWalletGet(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletIDParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	w, err := s.wallets.GetWallet(ctx, p.UserID, p.ID)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	info := walletInfo(w)
	return &info, nil
}

func (s *Server) handleWalletRename(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletRenameParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	w, err := s.wallets.RenameWallet(ctx, p.UserID, p.ID, p.Name)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	info := walletInfo(w)
	return &info, nil
}

func (s *Server) handleWalletDelete(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletIDParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	if err := s.wallets.DeleteWallet(ctx, p.UserID, p.ID); err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &DeleteResult{Deleted: true, Count: 1}, nil
}

func (s *Server) handleWalletDeleteAll(ctx context.Context, req *Request) (interface{}, *Error) {
	var p UserParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	n, err := s.wallets.DeleteUserWallets(ctx, p.UserID)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &DeleteResult{Deleted: n > 0, Count: n}, nil
}

func (s *Server) handleWalletRevealSeed(ctx context.Context, req *Request) (interface{}, *Error) {
	var p WalletRevealParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	phrase, err := s.wallets.RevealSeedPhrase(ctx, p.UserID, p.ID, p.Password)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &MnemonicResult{Mnemonic: phrase, Words: len(strings.Fields(phrase))}, nil
}

// ── Market data ─────────────────────────────────────────────────────────

func (s *Server) handleMarketGetPrices(ctx context.Context, req *Request) (interface{}, *Error) {
	src := s.priceSource()
	if src == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "market data not enabled"}
	}
	var p PricesParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	prices, err := src.SimplePrices(ctx, p.IDs, p.VsCurrencies)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &PricesResult{Prices: prices}, nil
}

func (s *Server) handleMarketGetOHLC(ctx context.Context, req *Request) (interface{}, *Error) {
	src := s.priceSource()
	if src == nil {
		return nil, &Error{Code: CodeUnavailable, Message: "market data not enabled"}
	}
	var p OHLCParam
	if err := parseParams(req, &p); err != nil {
		return nil, err
	}
	candles, err := src.OHLC(ctx, p.ID, p.VsCurrency, p.Days)
	if err != nil {
		return nil, s.errorFor(req.Method, err)
	}
	return &OHLCResult{ID: p.ID, VsCurrency: p.VsCurrency, Days: p.Days, Candles: candles}, nil
}
