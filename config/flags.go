package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
)

// Version is the daemon version reported by --version.
const Version = "0.1.0"

// Flags holds parsed command-line flags.
type Flags struct {
	// Commands
	Help    bool
	Version bool

	// Core
	Network string
	DataDir string
	Config  string

	// RPC
	RPC        bool
	RPCAddr    string
	RPCPort    int
	RPCAllowed string
	RPCCORS    string

	// Wallet
	WalletPaths    string
	KDFMemory      uint
	KDFIterations  uint
	KDFParallelism uint

	// Market
	Market        bool
	MarketURL     string
	MarketAPIKey  string
	MarketCoins   string
	MarketRefresh string

	// Logging
	LogLevel string
	LogFile  string
	LogJSON  bool

	// Remaining args
	Args []string

	// Explicitly-set bool flags (for true/false overrides).
	SetRPC     bool
	SetMarket  bool
	SetLogJSON bool
}

// ParseFlags parses command-line flags. It returns flag.ErrHelp when
// --help was requested.
func ParseFlags(args []string) (*Flags, error) {
	f := &Flags{}
	fs := flag.NewFlagSet("coinvaultd", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	// Commands
	fs.BoolVar(&f.Help, "help", false, "Show help message")
	fs.BoolVar(&f.Help, "h", false, "Show help message (shorthand)")
	fs.BoolVar(&f.Version, "version", false, "Show version information")
	fs.BoolVar(&f.Version, "v", false, "Show version (shorthand)")

	// Core
	fs.StringVar(&f.Network, "network", "", "Network type (mainnet or testnet)")
	testnet := fs.Bool("testnet", false, "Use testnet (shorthand for --network=testnet)")
	fs.StringVar(&f.DataDir, "datadir", "", "Data directory path")
	fs.StringVar(&f.Config, "config", "", "Config file path")
	fs.StringVar(&f.Config, "c", "", "Config file path (shorthand)")

	// RPC
	fs.BoolVar(&f.RPC, "rpc", true, "Enable RPC server")
	fs.StringVar(&f.RPCAddr, "rpc-addr", "", "RPC listen address")
	fs.IntVar(&f.RPCPort, "rpc-port", 0, "RPC listen port")
	fs.StringVar(&f.RPCAllowed, "rpc-allowed", "", "Allowed IPs for RPC")
	fs.StringVar(&f.RPCCORS, "rpc-cors", "", "Allowed CORS origins for RPC (comma-separated)")

	// Wallet
	fs.StringVar(&f.WalletPaths, "wallet-paths", "", "Derivation path overrides, SYMBOL=path[:kind] comma-separated")
	fs.UintVar(&f.KDFMemory, "kdf-memory", 0, "Argon2id memory in KiB")
	fs.UintVar(&f.KDFIterations, "kdf-iterations", 0, "Argon2id iterations")
	fs.UintVar(&f.KDFParallelism, "kdf-parallelism", 0, "Argon2id lanes")

	// Market
	fs.BoolVar(&f.Market, "market", false, "Enable the price feed")
	fs.StringVar(&f.MarketURL, "market-url", "", "CoinGecko API base URL")
	fs.StringVar(&f.MarketAPIKey, "market-apikey", "", "CoinGecko API key")
	fs.StringVar(&f.MarketCoins, "market-coins", "", "CoinGecko coin IDs to refresh (comma-separated)")
	fs.StringVar(&f.MarketRefresh, "market-refresh", "", "Price refresh interval (e.g. 5m)")

	// Logging
	fs.StringVar(&f.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.LogFile, "log-file", "", "Log file path")
	fs.BoolVar(&f.LogJSON, "log-json", false, "Output logs as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *testnet {
		f.Network = string(Testnet)
	}
	f.SetRPC = isFlagSet(fs, "rpc")
	f.SetMarket = isFlagSet(fs, "market")
	f.SetLogJSON = isFlagSet(fs, "log-json")
	f.Args = fs.Args()

	// Detect unparsed flags caused by positional arguments stopping the parser.
	for _, arg := range f.Args {
		if strings.HasPrefix(arg, "-") {
			return nil, fmt.Errorf("flag %q was not parsed (positional argument stopped parsing)", arg)
		}
	}

	return f, nil
}

// ApplyFlags applies command-line flags to a Config struct.
func ApplyFlags(cfg *Config, f *Flags) error {
	// Core
	if f.Network != "" {
		cfg.Network = NetworkType(strings.ToLower(f.Network))
	}
	if f.DataDir != "" {
		cfg.DataDir = f.DataDir
	}

	// RPC
	if f.SetRPC {
		cfg.RPC.Enabled = f.RPC
	}
	if f.RPCAddr != "" {
		cfg.RPC.Addr = f.RPCAddr
	}
	if f.RPCPort != 0 {
		cfg.RPC.Port = f.RPCPort
	}
	if f.RPCAllowed != "" {
		cfg.RPC.AllowedIPs = parseStringList(f.RPCAllowed)
	}
	if f.RPCCORS != "" {
		cfg.RPC.CORSOrigins = parseStringList(f.RPCCORS)
	}

	// Wallet
	if f.WalletPaths != "" {
		for _, entry := range parseStringList(f.WalletPaths) {
			sym, value, ok := strings.Cut(entry, "=")
			if !ok {
				return fmt.Errorf("--wallet-paths entry %q: expected SYMBOL=path[:kind]", entry)
			}
			// SYMBOL=m/84'/0'/0'/0/0:p2wpkh
			value = strings.Replace(value, ":", " ", 1)
			if err := setConfigValue(cfg, walletPathPrefix+sym, value); err != nil {
				return fmt.Errorf("--wallet-paths entry %q: %w", entry, err)
			}
		}
	}
	if f.KDFMemory != 0 {
		cfg.Wallet.KDF.Memory = uint32(f.KDFMemory)
	}
	if f.KDFIterations != 0 {
		cfg.Wallet.KDF.Iterations = uint32(f.KDFIterations)
	}
	if f.KDFParallelism != 0 {
		if f.KDFParallelism > 255 {
			return fmt.Errorf("--kdf-parallelism must be at most 255")
		}
		cfg.Wallet.KDF.Parallelism = uint8(f.KDFParallelism)
	}

	// Market
	if f.SetMarket {
		cfg.Market.Enabled = f.Market
	}
	if f.MarketURL != "" {
		cfg.Market.BaseURL = f.MarketURL
	}
	if f.MarketAPIKey != "" {
		cfg.Market.APIKey = f.MarketAPIKey
	}
	if f.MarketCoins != "" {
		cfg.Market.Coins = parseStringList(f.MarketCoins)
	}
	if f.MarketRefresh != "" {
		if err := setConfigValue(cfg, "market.refresh", f.MarketRefresh); err != nil {
			return fmt.Errorf("--market-refresh: %w", err)
		}
	}

	// Logging
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
	if f.LogFile != "" {
		cfg.Log.File = f.LogFile
	}
	if f.SetLogJSON {
		cfg.Log.JSON = f.LogJSON
	}
	return nil
}

// isFlagSet checks if a flag was explicitly set.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// PrintUsage writes the daemon help text to w.
func PrintUsage(w io.Writer) {
	usage := `Coinvault - deterministic multi-currency wallet service

Usage:
  coinvaultd [options]
  coinvaultd --help

Commands:
  --help, -h      Show this help message
  --version, -v   Show version information

Core Options:
  --network       Network type: mainnet (default) or testnet
  --testnet       Shorthand for --network=testnet
  --datadir       Data directory (default: ~/.coinvault)
  --config, -c    Config file path (default: <datadir>/coinvault.conf)

RPC Options:
  --rpc           Enable RPC server (default: true)
  --rpc-addr      RPC listen address (default: 127.0.0.1)
  --rpc-port      RPC port (mainnet: 8645, testnet: 8745)
  --rpc-allowed   Allowed IPs for RPC (comma-separated)
  --rpc-cors      Allowed CORS origins for RPC (comma-separated)

Wallet Options:
  --wallet-paths     Path overrides, e.g. BTC=m/84'/0'/0'/0/0:p2wpkh,BNB=m/44'/60'/0'/0/0
  --kdf-memory       Argon2id memory in KiB (default: 65536)
  --kdf-iterations   Argon2id iterations (default: 3)
  --kdf-parallelism  Argon2id lanes (default: 4)

Market Options:
  --market          Enable the price feed
  --market-url      CoinGecko API base URL
  --market-apikey   CoinGecko API key
  --market-coins    Coin IDs refreshed in the background (comma-separated)
  --market-refresh  Refresh interval (default: 5m)

Logging Options:
  --log-level     Log level: debug, info, warn, error (default: info)
  --log-file      Log file path (default: stdout)
  --log-json      Output logs as JSON

Environment:
  Every setting can also be given as COINVAULT_<KEY>, e.g. COINVAULT_RPC_PORT,
  COINVAULT_MARKET_ENABLED or COINVAULT_WALLET_PATH_BTC. Flags override the
  environment, which overrides the config file.

Examples:
  # Start with defaults
  coinvaultd

  # Testnet bitcoin addresses and a price feed
  coinvaultd --testnet --market

  # Custom data directory
  coinvaultd --datadir=/path/to/data
`
	fmt.Fprint(w, usage)
}

// Load loads configuration with the following precedence:
// 1. Default values
// 2. Auto-create data dirs + default config (idempotent)
// 3. Config file
// 4. Environment
// 5. Command-line flags
func Load(args []string) (*Config, *Flags, error) {
	flags, err := ParseFlags(args)
	if errors.Is(err, flag.ErrHelp) {
		PrintUsage(os.Stdout)
		os.Exit(0)
	}
	if err != nil {
		return nil, nil, err
	}

	// Handle help/version
	if flags.Help {
		PrintUsage(os.Stdout)
		os.Exit(0)
	}
	if flags.Version {
		fmt.Println("coinvaultd version " + Version)
		os.Exit(0)
	}

	// Determine network first (needed for defaults)
	network := Mainnet
	if strings.ToLower(flags.Network) == string(Testnet) {
		network = Testnet
	}

	cfg := Default(network)

	// Data directory may come from the environment or flags.
	if dir := os.Getenv(EnvPrefix + "_DATADIR"); dir != "" {
		cfg.DataDir = dir
	}
	if flags.DataDir != "" {
		cfg.DataDir = flags.DataDir
	}

	// Auto-create data directories and default config on first start.
	if err := EnsureDataDirs(cfg); err != nil {
		return nil, nil, fmt.Errorf("ensuring data dirs: %w", err)
	}

	configPath := flags.Config
	if configPath == "" {
		configPath = cfg.ConfigFile()
	}
	if err := loadLayers(cfg, configPath, flags); err != nil {
		return nil, nil, err
	}

	return cfg, flags, nil
}

// loadLayers applies file, environment and flags to cfg, then validates it.
func loadLayers(cfg *Config, configPath string, flags *Flags) error {
	fileValues, err := LoadFile(configPath)
	if err != nil {
		return fmt.Errorf("loading config file: %w", err)
	}
	if err := ApplyFileConfig(cfg, fileValues); err != nil {
		return fmt.Errorf("applying config file: %w", err)
	}
	if err := ApplyEnv(cfg); err != nil {
		return err
	}
	if flags != nil {
		if err := ApplyFlags(cfg, flags); err != nil {
			return err
		}
	}
	if err := Validate(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// EnsureDataDirs creates the data directory structure and a default config
// file if they don't already exist. Safe to call on every startup.
func EnsureDataDirs(cfg *Config) error {
	dirs := []string{
		cfg.DataDir,
		cfg.NetworkDataDir(),
		cfg.DBDir(),
		cfg.LogsDir(),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}

	// Create default config if it doesn't exist.
	configPath := cfg.ConfigFile()
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := WriteDefaultConfig(configPath, cfg.Network); err != nil {
			return fmt.Errorf("writing config file: %w", err)
		}
	}

	return nil
}
