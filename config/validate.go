package config

import (
	"fmt"
	"net"
	"net/url"
	"sort"
	"strings"

	klog "github.com/Klingon-tech/coinvault/internal/log"
	"github.com/Klingon-tech/coinvault/internal/wallet"
)

// Validate checks config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Network != Mainnet && cfg.Network != Testnet {
		return fmt.Errorf("network must be %q or %q", Mainnet, Testnet)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("datadir is empty")
	}
	if cfg.RPC.Port < 0 || cfg.RPC.Port > 65535 {
		return fmt.Errorf("rpc.port must be in range [0, 65535]")
	}
	for _, ip := range cfg.RPC.AllowedIPs {
		if !validAllowedIP(ip) {
			return fmt.Errorf("rpc.allowed: %q is not an IP or CIDR", ip)
		}
	}

	if _, err := cfg.Wallet.PathTable(); err != nil {
		return err
	}
	if err := cfg.Wallet.KDFParams().Validate(); err != nil {
		return fmt.Errorf("wallet.kdf: %w", err)
	}

	if cfg.Market.Enabled {
		u, err := url.Parse(cfg.Market.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("market.url must be an http(s) URL")
		}
		if len(cfg.Market.VsCurrencies) == 0 {
			return fmt.Errorf("market.vs requires at least one currency")
		}
		if cfg.Market.Refresh <= 0 || cfg.Market.Timeout <= 0 {
			return fmt.Errorf("market.refresh and market.timeout must be positive")
		}
	}
	if cfg.Market.CacheTTL < 0 {
		return fmt.Errorf("market.cachettl must not be negative")
	}

	if !klog.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("log.level must be debug, info, warn, error or disabled")
	}
	return nil
}

func validAllowedIP(s string) bool {
	if strings.Contains(s, "/") {
		_, _, err := net.ParseCIDR(s)
		return err == nil
	}
	return net.ParseIP(s) != nil
}

// PathTable returns the built-in path table with the configured
// overrides applied.
func (w WalletConfig) PathTable() (*wallet.PathTable, error) {
	if len(w.Paths) == 0 {
		return wallet.DefaultPathTable(), nil
	}
	symbols := make([]string, 0, len(w.Paths))
	for sym := range w.Paths {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	overrides := make([]wallet.Currency, 0, len(symbols))
	for _, sym := range symbols {
		c, err := wallet.ParseCurrency(sym, w.Paths[sym])
		if err != nil {
			return nil, fmt.Errorf("wallet.path.%s: %w", sym, err)
		}
		overrides = append(overrides, c)
	}
	return wallet.DefaultPathTable().With(overrides...)
}

// KDFParams returns the Argon2id parameters for new envelopes.
func (w WalletConfig) KDFParams() wallet.EncryptionParams {
	return wallet.EncryptionParams{
		Memory:      w.KDF.Memory,
		Iterations:  w.KDF.Iterations,
		Parallelism: w.KDF.Parallelism,
	}
}

// WalletNetwork returns the wallet network matching cfg.Network.
func (c *Config) WalletNetwork() wallet.Network {
	if c.Network == Testnet {
		return wallet.Testnet
	}
	return wallet.Mainnet
}
