// Package config handles daemon configuration.
//
// Settings come from four layers, later ones winning:
//   - built-in defaults
//   - the coinvault.conf file in the data directory
//   - COINVAULT_* environment variables
//   - command-line flags
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// NetworkType identifies mainnet or testnet. It only changes how bitcoin
// addresses are encoded.
type NetworkType string

const (
	Mainnet NetworkType = "mainnet"
	Testnet NetworkType = "testnet"
)

// Config holds daemon runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// RPC server
	RPC RPCConfig

	// Wallet derivation and encryption
	Wallet WalletConfig

	// Price feed
	Market MarketConfig

	// Logging
	Log LogConfig
}

// RPCConfig holds RPC server settings.
type RPCConfig struct {
	Enabled     bool     `conf:"rpc.enabled"`
	Addr        string   `conf:"rpc.addr"`
	Port        int      `conf:"rpc.port"`
	AllowedIPs  []string `conf:"rpc.allowed"`
	CORSOrigins []string `conf:"rpc.cors"` // Allowed CORS origins ("*" = all).
}

// WalletConfig holds wallet settings.
type WalletConfig struct {
	// Paths maps a currency symbol to "<path> [kind]". Entries override
	// or extend the built-in path table.
	Paths map[string]string `conf:"wallet.path.<SYMBOL>"`

	KDF KDFConfig
}

// KDFConfig holds the Argon2id parameters used for new seed-phrase
// envelopes. Existing envelopes carry their own parameters.
type KDFConfig struct {
	Memory      uint32 `conf:"wallet.kdf.memory"` // KiB
	Iterations  uint32 `conf:"wallet.kdf.iterations"`
	Parallelism uint8  `conf:"wallet.kdf.parallelism"`
}

// MarketConfig holds price feed settings.
type MarketConfig struct {
	Enabled      bool          `conf:"market.enabled"`
	BaseURL      string        `conf:"market.url"`
	APIKey       string        `conf:"market.apikey"`
	Coins        []string      `conf:"market.coins"` // CoinGecko coin IDs refreshed in the background.
	VsCurrencies []string      `conf:"market.vs"`
	Refresh      time.Duration `conf:"market.refresh"`
	CacheTTL     time.Duration `conf:"market.cachettl"`
	Timeout      time.Duration `conf:"market.timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.coinvault
//	macOS:   ~/Library/Application Support/Coinvault
//	Windows: %APPDATA%\Coinvault
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".coinvault"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Coinvault")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Coinvault")
		}
		return filepath.Join(home, "AppData", "Roaming", "Coinvault")
	default:
		return filepath.Join(home, ".coinvault")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// DBDir returns the record database directory.
func (c *Config) DBDir() string {
	return filepath.Join(c.NetworkDataDir(), "db")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "coinvault.conf")
}
