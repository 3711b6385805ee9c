package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment variable overrides.
const EnvPrefix = "COINVAULT"

// envOverrides mirrors the settings that may come from the environment.
// Unset variables leave their pointer or slice nil.
type envOverrides struct {
	Network *string `envconfig:"NETWORK"`
	DataDir *string `envconfig:"DATADIR"`

	RPCEnabled *bool    `envconfig:"RPC_ENABLED"`
	RPCAddr    *string  `envconfig:"RPC_ADDR"`
	RPCPort    *int     `envconfig:"RPC_PORT"`
	RPCAllowed []string `envconfig:"RPC_ALLOWED"`
	RPCCORS    []string `envconfig:"RPC_CORS"`

	KDFMemory      *uint32 `envconfig:"WALLET_KDF_MEMORY"`
	KDFIterations  *uint32 `envconfig:"WALLET_KDF_ITERATIONS"`
	KDFParallelism *uint8  `envconfig:"WALLET_KDF_PARALLELISM"`

	MarketEnabled  *bool          `envconfig:"MARKET_ENABLED"`
	MarketURL      *string        `envconfig:"MARKET_URL"`
	MarketAPIKey   *string        `envconfig:"MARKET_APIKEY"`
	MarketCoins    []string       `envconfig:"MARKET_COINS"`
	MarketVs       []string       `envconfig:"MARKET_VS"`
	MarketRefresh  *time.Duration `envconfig:"MARKET_REFRESH"`
	MarketCacheTTL *time.Duration `envconfig:"MARKET_CACHETTL"`
	MarketTimeout  *time.Duration `envconfig:"MARKET_TIMEOUT"`

	LogLevel *string `envconfig:"LOG_LEVEL"`
	LogFile  *string `envconfig:"LOG_FILE"`
	LogJSON  *bool   `envconfig:"LOG_JSON"`
}

// ApplyEnv applies COINVAULT_* environment variables to cfg. Path
// overrides use COINVAULT_WALLET_PATH_<SYMBOL>.
func ApplyEnv(cfg *Config) error {
	var env envOverrides
	if err := envconfig.Process(EnvPrefix, &env); err != nil {
		return fmt.Errorf("environment: %w", err)
	}

	if env.Network != nil {
		cfg.Network = NetworkType(strings.ToLower(*env.Network))
	}
	setString(&cfg.DataDir, env.DataDir)

	setBool(&cfg.RPC.Enabled, env.RPCEnabled)
	setString(&cfg.RPC.Addr, env.RPCAddr)
	if env.RPCPort != nil {
		cfg.RPC.Port = *env.RPCPort
	}
	if env.RPCAllowed != nil {
		cfg.RPC.AllowedIPs = env.RPCAllowed
	}
	if env.RPCCORS != nil {
		cfg.RPC.CORSOrigins = env.RPCCORS
	}

	if env.KDFMemory != nil {
		cfg.Wallet.KDF.Memory = *env.KDFMemory
	}
	if env.KDFIterations != nil {
		cfg.Wallet.KDF.Iterations = *env.KDFIterations
	}
	if env.KDFParallelism != nil {
		cfg.Wallet.KDF.Parallelism = *env.KDFParallelism
	}
	for sym, path := range envPaths(os.Environ()) {
		if cfg.Wallet.Paths == nil {
			cfg.Wallet.Paths = make(map[string]string)
		}
		cfg.Wallet.Paths[sym] = path
	}

	setBool(&cfg.Market.Enabled, env.MarketEnabled)
	setString(&cfg.Market.BaseURL, env.MarketURL)
	setString(&cfg.Market.APIKey, env.MarketAPIKey)
	if env.MarketCoins != nil {
		cfg.Market.Coins = env.MarketCoins
	}
	if env.MarketVs != nil {
		cfg.Market.VsCurrencies = env.MarketVs
	}
	setDuration(&cfg.Market.Refresh, env.MarketRefresh)
	setDuration(&cfg.Market.CacheTTL, env.MarketCacheTTL)
	setDuration(&cfg.Market.Timeout, env.MarketTimeout)

	setString(&cfg.Log.Level, env.LogLevel)
	setString(&cfg.Log.File, env.LogFile)
	setBool(&cfg.Log.JSON, env.LogJSON)
	return nil
}

// envPaths extracts COINVAULT_WALLET_PATH_<SYMBOL> entries.
func envPaths(environ []string) map[string]string {
	prefix := EnvPrefix + "_WALLET_PATH_"
	out := make(map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		sym, ok := strings.CutPrefix(key, prefix)
		if !ok || sym == "" {
			continue
		}
		out[strings.ToUpper(sym)] = value
	}
	return out
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

func setDuration(dst *time.Duration, v *time.Duration) {
	if v != nil {
		*dst = *v
	}
}
