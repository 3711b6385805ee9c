package config

import (
	"time"

	"github.com/Klingon-tech/coinvault/internal/wallet"
)

// DefaultMainnet returns the default configuration for mainnet.
func DefaultMainnet() *Config {
	kdf := wallet.DefaultParams()
	return &Config{
		Network: Mainnet,
		DataDir: DefaultDataDir(),
		RPC: RPCConfig{
			Enabled:    true,
			Addr:       "127.0.0.1",
			Port:       8645,
			AllowedIPs: []string{"127.0.0.1"},
		},
		Wallet: WalletConfig{
			Paths: map[string]string{},
			KDF: KDFConfig{
				Memory:      kdf.Memory,
				Iterations:  kdf.Iterations,
				Parallelism: kdf.Parallelism,
			},
		},
		Market: MarketConfig{
			Enabled:      false,
			BaseURL:      "https://api.coingecko.com/api/v3",
			Coins:        []string{"bitcoin", "ethereum", "chainlink", "matic-network", "avalanche-2", "solana"},
			VsCurrencies: []string{"usd"},
			Refresh:      5 * time.Minute,
			CacheTTL:     time.Minute,
			Timeout:      10 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultTestnet returns the default configuration for testnet.
func DefaultTestnet() *Config {
	cfg := DefaultMainnet()
	cfg.Network = Testnet
	cfg.RPC.Port = 8745
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Testnet:
		return DefaultTestnet()
	default:
		return DefaultMainnet()
	}
}
