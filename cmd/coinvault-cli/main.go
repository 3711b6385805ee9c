// coinvault-cli is a command-line client for a coinvaultd daemon.
package main

import (
	"encoding/base64"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/Klingon-tech/coinvault/internal/rpc"
	"github.com/Klingon-tech/coinvault/internal/rpcclient"
	"golang.org/x/term"
)

const (
	defaultMainnetRPC = "http://127.0.0.1:8645"
	defaultTestnetRPC = "http://127.0.0.1:8745"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	rpcURL := ""
	testnet := false
	user := os.Getenv("COINVAULT_USER")

	// Scan for global flags before the subcommand.
	args := os.Args[1:]
	for len(args) > 0 {
		switch {
		case args[0] == "--rpc" && len(args) > 1:
			rpcURL = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--rpc="):
			rpcURL = args[0][len("--rpc="):]
			args = args[1:]
		case args[0] == "--user" && len(args) > 1:
			user = args[1]
			args = args[2:]
		case strings.HasPrefix(args[0], "--user="):
			user = args[0][len("--user="):]
			args = args[1:]
		case args[0] == "--testnet":
			testnet = true
			args = args[1:]
		default:
			goto dispatch
		}
	}

dispatch:
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}
	if rpcURL == "" {
		rpcURL = defaultMainnetRPC
		if testnet {
			rpcURL = defaultTestnetRPC
		}
	}

	client := rpcclient.New(rpcURL)
	cmd := args[0]
	cmdArgs := args[1:]

	switch cmd {
	case "mnemonic":
		cmdMnemonic(client, cmdArgs)
	case "derive":
		cmdDerive(client, cmdArgs)
	case "paths":
		cmdPaths(client)
	case "wallet":
		cmdWallet(client, cmdArgs, user)
	case "qr":
		cmdQR(client, cmdArgs)
	case "price":
		cmdPrice(client, cmdArgs)
	case "ohlc":
		cmdOHLC(client, cmdArgs)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: coinvault-cli [global flags] <command> [flags]

Global flags:
  --rpc <url>         RPC endpoint (default: %s, testnet %s)
  --testnet           Use the testnet default endpoint
  --user <id>         User ID for wallet commands (env COINVAULT_USER)

Commands:
  mnemonic generate [--words 12|24]   Generate a new mnemonic
  mnemonic validate "<phrase>"        Check a mnemonic
  derive "<phrase>"                   Derive addresses for a mnemonic
  paths                               Show configured derivation paths

  wallet create [--name <n>] [--words 12|24]
                                      Create and store a new wallet
  wallet import [--name <n>] --mnemonic "..."
                                      Import an existing mnemonic
  wallet list                         List wallets
  wallet show <id>                    Show a wallet
  wallet rename <id> <name>           Rename a wallet
  wallet delete <id>                  Delete a wallet
  wallet purge --yes                  Delete every wallet of the user
  wallet reveal <id>                  Decrypt and show a wallet's mnemonic

  qr <address> [--size <px>] --out <file.png>
                                      Write an address QR code
  price <coin>... [--vs usd,eur]      Show spot prices
  ohlc <coin> [--vs usd] [--days 1]   Show OHLC candles
`, defaultMainnetRPC, defaultTestnetRPC)
}

// ── mnemonic ────────────────────────────────────────────────────────────

func wordsToStrength(words int) int {
	switch words {
	case 12:
		return 128
	case 24:
		return 256
	default:
		fatal("--words must be 12 or 24")
		return 0
	}
}

func cmdMnemonic(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: coinvault-cli mnemonic <generate|validate>")
	}

	switch args[0] {
	case "generate":
		fs := flag.NewFlagSet("mnemonic generate", flag.ExitOnError)
		words := fs.Int("words", 12, "Number of words (12 or 24)")
		fs.Parse(args[1:])

		var res rpc.MnemonicResult
		if err := client.Call("wallet_generateMnemonic", rpc.StrengthParam{Strength: wordsToStrength(*words)}, &res); err != nil {
			fatal("wallet_generateMnemonic: %v", err)
		}
		fmt.Println(res.Mnemonic)
	case "validate":
		phrase := strings.Join(args[1:], " ")
		if phrase == "" {
			fatal("Usage: coinvault-cli mnemonic validate \"<phrase>\"")
		}
		var res rpc.ValidateResult
		if err := client.Call("wallet_validateMnemonic", rpc.MnemonicParam{Mnemonic: phrase}, &res); err != nil {
			fatal("wallet_validateMnemonic: %v", err)
		}
		if !res.Valid {
			fmt.Println("invalid")
			os.Exit(2)
		}
		fmt.Println("valid")
	default:
		fatal("Unknown mnemonic command: %s", args[0])
	}
}

func cmdDerive(client *rpcclient.Client, args []string) {
	phrase := strings.Join(args, " ")
	if phrase == "" {
		fatal("Usage: coinvault-cli derive \"<phrase>\"")
	}
	var res rpc.DeriveResult
	if err := client.Call("wallet_deriveAddresses", rpc.MnemonicParam{Mnemonic: phrase}, &res); err != nil {
		fatal("wallet_deriveAddresses: %v", err)
	}
	printAddresses(res.Addresses)
	fmt.Printf("Method:  %s\n", res.Method)
	if res.SeedStrategy != "" {
		fmt.Printf("Seed:    %s\n", res.SeedStrategy)
	}
	for _, sym := range sortedKeys(res.Skipped) {
		fmt.Printf("Skipped: %s (%s)\n", sym, res.Skipped[sym])
	}
}

func cmdPaths(client *rpcclient.Client) {
	var res rpc.PathsResult
	if err := client.Call("wallet_paths", nil, &res); err != nil {
		fatal("wallet_paths: %v", err)
	}
	for _, c := range res.Currencies {
		fmt.Printf("%-6s %-20s %s\n", c.Symbol, c.Path, c.Kind)
	}
}

// ── wallet ──────────────────────────────────────────────────────────────

func cmdWallet(client *rpcclient.Client, args []string, user string) {
	const walletUsage = "Usage: coinvault-cli wallet <create|import|list|show|rename|delete|purge|reveal> [flags]"
	if len(args) < 1 {
		fatal(walletUsage)
	}
	if user == "" {
		fatal("wallet commands require --user or COINVAULT_USER")
	}

	switch args[0] {
	case "create":
		cmdWalletCreate(client, args[1:], user)
	case "import":
		cmdWalletImport(client, args[1:], user)
	case "list":
		cmdWalletList(client, user)
	case "show":
		cmdWalletShow(client, args[1:], user)
	case "rename":
		cmdWalletRename(client, args[1:], user)
	case "delete":
		cmdWalletDelete(client, args[1:], user)
	case "purge":
		cmdWalletPurge(client, args[1:], user)
	case "reveal":
		cmdWalletReveal(client, args[1:], user)
	default:
		fatal("Unknown wallet command: %s\n%s", args[0], walletUsage)
	}
}

func cmdWalletCreate(client *rpcclient.Client, args []string, user string) {
	fs := flag.NewFlagSet("wallet create", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	words := fs.Int("words", 12, "Number of words (12 or 24)")
	fs.Parse(args)

	password := readNewPassword()

	var res rpc.WalletCreateResult
	err := client.Call("wallet_create", rpc.WalletCreateParam{
		UserID:   user,
		Name:     *name,
		Password: password,
		Strength: wordsToStrength(*words),
	}, &res)
	if err != nil {
		fatal("wallet_create: %v", err)
	}

	fmt.Println("Mnemonic (write this down!):")
	fmt.Printf("  %s\n\n", res.Mnemonic)
	printWallet(res.Wallet)
}

func cmdWalletImport(client *rpcclient.Client, args []string, user string) {
	fs := flag.NewFlagSet("wallet import", flag.ExitOnError)
	name := fs.String("name", "", "Wallet name")
	mnemonic := fs.String("mnemonic", "", "Mnemonic phrase")
	fs.Parse(args)

	if *mnemonic == "" {
		fatal("Usage: coinvault-cli wallet import [--name <n>] --mnemonic \"...\"")
	}
	password := readNewPassword()

	var res rpc.WalletInfo
	err := client.Call("wallet_import", rpc.WalletImportParam{
		UserID:   user,
		Name:     *name,
		Mnemonic: *mnemonic,
		Password: password,
	}, &res)
	if err != nil {
		fatal("wallet_import: %v", err)
	}
	printWallet(res)
}

func cmdWalletList(client *rpcclient.Client, user string) {
	var res rpc.WalletListResult
	if err := client.Call("wallet_list", rpc.UserParam{UserID: user}, &res); err != nil {
		fatal("wallet_list: %v", err)
	}
	if len(res.Wallets) == 0 {
		fmt.Println("No wallets found.")
		return
	}
	for _, w := range res.Wallets {
		fmt.Printf("%s  %-24s %s\n", w.ID, w.Name, w.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func cmdWalletShow(client *rpcclient.Client, args []string, user string) {
	if len(args) != 1 {
		fatal("Usage: coinvault-cli wallet show <id>")
	}
	var res rpc.WalletInfo
	if err := client.Call("wallet_get", rpc.WalletIDParam{UserID: user, ID: args[0]}, &res); err != nil {
		if code, ok := rpcclient.ErrorCode(err); ok && code == rpc.CodeNotFound {
			fatal("no wallet %s for user %q", args[0], user)
		}
		fatal("wallet_get: %v", err)
	}
	printWallet(res)
}

func cmdWalletRename(client *rpcclient.Client, args []string, user string) {
	if len(args) < 2 {
		fatal("Usage: coinvault-cli wallet rename <id> <name>")
	}
	var res rpc.WalletInfo
	err := client.Call("wallet_rename", rpc.WalletRenameParam{
		UserID: user,
		ID:     args[0],
		Name:   strings.Join(args[1:], " "),
	}, &res)
	if err != nil {
		fatal("wallet_rename: %v", err)
	}
	fmt.Printf("Renamed %s to %q\n", res.ID, res.Name)
}

func cmdWalletDelete(client *rpcclient.Client, args []string, user string) {
	if len(args) != 1 {
		fatal("Usage: coinvault-cli wallet delete <id>")
	}
	if err := client.Call("wallet_delete", rpc.WalletIDParam{UserID: user, ID: args[0]}, nil); err != nil {
		if code, ok := rpcclient.ErrorCode(err); ok && code == rpc.CodeNotFound {
			fatal("no wallet %s for user %q", args[0], user)
		}
		fatal("wallet_delete: %v", err)
	}
	fmt.Printf("Deleted %s\n", args[0])
}

func cmdWalletPurge(client *rpcclient.Client, args []string, user string) {
	if len(args) != 1 || args[0] != "--yes" {
		fatal("Usage: coinvault-cli wallet purge --yes")
	}
	var res rpc.DeleteResult
	if err := client.Call("wallet_deleteAll", rpc.UserParam{UserID: user}, &res); err != nil {
		fatal("wallet_deleteAll: %v", err)
	}
	fmt.Printf("Deleted %d wallet(s) of %q\n", res.Count, user)
}

func cmdWalletReveal(client *rpcclient.Client, args []string, user string) {
	if len(args) != 1 {
		fatal("Usage: coinvault-cli wallet reveal <id>")
	}
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}

	var res rpc.MnemonicResult
	err = client.Call("wallet_revealSeed", rpc.WalletRevealParam{
		UserID:   user,
		ID:       args[0],
		Password: string(password),
	}, &res)
	if err != nil {
		fatal("wallet_revealSeed: %v", err)
	}
	fmt.Println(res.Mnemonic)
}

// ── qr / market ─────────────────────────────────────────────────────────

func cmdQR(client *rpcclient.Client, args []string) {
	if len(args) < 1 {
		fatal("Usage: coinvault-cli qr <address> [--size <px>] --out <file.png>")
	}
	address := args[0]
	fs := flag.NewFlagSet("qr", flag.ExitOnError)
	size := fs.Int("size", 256, "Image size in pixels")
	out := fs.String("out", "", "Output PNG file")
	fs.Parse(args[1:])

	if *out == "" {
		fatal("--out is required")
	}
	var res rpc.QRResult
	if err := client.Call("wallet_addressQR", rpc.AddressQRParam{Address: address, Size: *size}, &res); err != nil {
		fatal("wallet_addressQR: %v", err)
	}
	png, err := base64.StdEncoding.DecodeString(res.PNG)
	if err != nil {
		fatal("decode png: %v", err)
	}
	if err := os.WriteFile(*out, png, 0644); err != nil {
		fatal("write %s: %v", *out, err)
	}
	fmt.Printf("Wrote %s\n", *out)
}

// splitFlagArgs separates leading positional args from trailing flags.
func splitFlagArgs(args []string) (positional, flags []string) {
	for i, a := range args {
		if strings.HasPrefix(a, "-") {
			return args[:i], args[i:]
		}
	}
	return args, nil
}

func cmdPrice(client *rpcclient.Client, args []string) {
	coins, rest := splitFlagArgs(args)
	fs := flag.NewFlagSet("price", flag.ExitOnError)
	vs := fs.String("vs", "usd", "Comma-separated quote currencies")
	fs.Parse(rest)

	if len(coins) == 0 {
		fatal("Usage: coinvault-cli price <coin>... [--vs usd,eur]")
	}
	var res rpc.PricesResult
	err := client.Call("market_getPrices", rpc.PricesParam{
		IDs:          coins,
		VsCurrencies: strings.Split(*vs, ","),
	}, &res)
	if err != nil {
		fatal("market_getPrices: %v", err)
	}
	for _, id := range sortedKeys(res.Prices) {
		quotes := res.Prices[id]
		for _, cur := range sortedKeys(quotes) {
			fmt.Printf("%-16s %s %s\n", id, quotes[cur].String(), strings.ToUpper(cur))
		}
	}
}

func cmdOHLC(client *rpcclient.Client, args []string) {
	coins, rest := splitFlagArgs(args)
	fs := flag.NewFlagSet("ohlc", flag.ExitOnError)
	vs := fs.String("vs", "usd", "Quote currency")
	days := fs.Int("days", 1, "Range in days (1, 7, 14, 30, 90, 180, 365)")
	fs.Parse(rest)

	if len(coins) != 1 {
		fatal("Usage: coinvault-cli ohlc <coin> [--vs usd] [--days 1]")
	}
	var res rpc.OHLCResult
	err := client.Call("market_getOHLC", rpc.OHLCParam{ID: coins[0], VsCurrency: *vs, Days: *days}, &res)
	if err != nil {
		fatal("market_getOHLC: %v", err)
	}
	for _, c := range res.Candles {
		fmt.Printf("%s  O %s  H %s  L %s  C %s\n",
			c.Time.UTC().Format("2006-01-02 15:04"), c.Open, c.High, c.Low, c.Close)
	}
}

// ── Output helpers ──────────────────────────────────────────────────────

func printWallet(w rpc.WalletInfo) {
	fmt.Printf("ID:          %s\n", w.ID)
	fmt.Printf("Name:        %s\n", w.Name)
	fmt.Printf("Fingerprint: %s\n", w.Fingerprint)
	fmt.Printf("Created:     %s\n", w.CreatedAt.Format("2006-01-02 15:04:05"))
	if !w.Persisted {
		fmt.Println("Warning:     wallet was not persisted by the daemon")
	}
	printAddresses(w.Addresses)
}

func printAddresses(addresses map[string]string) {
	for _, sym := range sortedKeys(addresses) {
		fmt.Printf("  %-6s %s\n", sym, addresses[sym])
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ── Password helpers ────────────────────────────────────────────────────

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr) // newline after hidden input
	if err != nil {
		return nil, err
	}
	return password, nil
}

// readNewPassword prompts twice and returns the confirmed password.
func readNewPassword() string {
	password, err := readPassword("Enter password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	confirm, err := readPassword("Confirm password: ")
	if err != nil {
		fatal("read password: %v", err)
	}
	if string(password) != string(confirm) {
		fatal("passwords do not match")
	}
	if len(password) == 0 {
		fatal("password must not be empty")
	}
	return string(password)
}

// ── Error helper ────────────────────────────────────────────────────────

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
