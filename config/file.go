package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// walletPathPrefix starts a derivation path override key.
const walletPathPrefix = "wallet.path."

// LoadFile loads configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	if sym, ok := strings.CutPrefix(key, walletPathPrefix); ok {
		sym = strings.ToUpper(strings.TrimSpace(sym))
		if sym == "" {
			return fmt.Errorf("missing currency symbol")
		}
		if cfg.Wallet.Paths == nil {
			cfg.Wallet.Paths = make(map[string]string)
		}
		cfg.Wallet.Paths[sym] = value
		return nil
	}

	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(strings.ToLower(value))
	case "datadir":
		cfg.DataDir = value

	// RPC
	case "rpc.enabled", "rpc":
		cfg.RPC.Enabled = parseBool(value)
	case "rpc.addr":
		cfg.RPC.Addr = value
	case "rpc.port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.RPC.Port = port
	case "rpc.allowed":
		cfg.RPC.AllowedIPs = parseStringList(value)
	case "rpc.cors":
		cfg.RPC.CORSOrigins = parseStringList(value)

	// Wallet KDF
	case "wallet.kdf.memory":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.KDF.Memory = uint32(n)
	case "wallet.kdf.iterations":
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return err
		}
		cfg.Wallet.KDF.Iterations = uint32(n)
	case "wallet.kdf.parallelism":
		n, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return err
		}
		cfg.Wallet.KDF.Parallelism = uint8(n)

	// Market
	case "market.enabled", "market":
		cfg.Market.Enabled = parseBool(value)
	case "market.url":
		cfg.Market.BaseURL = value
	case "market.apikey":
		cfg.Market.APIKey = value
	case "market.coins":
		cfg.Market.Coins = parseStringList(value)
	case "market.vs":
		cfg.Market.VsCurrencies = parseStringList(value)
	case "market.refresh":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Market.Refresh = d
	case "market.cachettl":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Market.CacheTTL = d
	case "market.timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Market.Timeout = d

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseStringList parses a comma-separated list.
func parseStringList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// WriteDefaultConfig writes a default configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Coinvault Daemon Configuration

# Network: mainnet or testnet (selects bitcoin address encoding)
network = ` + string(network) + `

# Data directory (default: ~/.coinvault)
# datadir = ~/.coinvault

# ============================================================================
# RPC Server
# ============================================================================

rpc.enabled = true
rpc.addr = 127.0.0.1
rpc.port = ` + defaultRPCPort(network) + `
rpc.allowed = 127.0.0.1
# CORS allowed origins ("*" for all)
# rpc.cors = http://localhost:3000

# ============================================================================
# Wallet
# ============================================================================

# Derivation path overrides: wallet.path.<SYMBOL> = <path> [kind]
# Kinds: evm, p2pkh, p2wpkh, solana. Without a kind, coin type 60 is evm,
# 501 is solana and anything else is p2pkh.
# wallet.path.BTC = m/84'/0'/0'/0/0 p2wpkh
# wallet.path.BNB = m/44'/60'/0'/0/0

# Argon2id parameters for new seed-phrase envelopes
# wallet.kdf.memory = 65536
# wallet.kdf.iterations = 3
# wallet.kdf.parallelism = 4

# ============================================================================
# Market Data
# ============================================================================

market.enabled = false
# market.url = https://api.coingecko.com/api/v3
# market.apikey =
# market.coins = bitcoin,ethereum,chainlink,matic-network,avalanche-2,solana
# market.vs = usd
# market.refresh = 5m
# market.cachettl = 1m
# market.timeout = 10s

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0600)
}

func defaultRPCPort(network NetworkType) string {
	if network == Testnet {
		return "8745"
	}
	return "8645"
}
