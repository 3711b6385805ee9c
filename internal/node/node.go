// Package node wires the wallet service, storage, market data and the
// RPC server into a single runnable unit that any binary can embed.
package node

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/Klingon-tech/coinvault/config"
	klog "github.com/Klingon-tech/coinvault/internal/log"
	"github.com/Klingon-tech/coinvault/internal/market"
	"github.com/Klingon-tech/coinvault/internal/rpc"
	"github.com/Klingon-tech/coinvault/internal/storage"
	"github.com/Klingon-tech/coinvault/internal/wallet"
	"github.com/rs/zerolog"
)

// Node is a fully-initialized coinvault daemon.
type Node struct {
	cfg    *config.Config
	logger zerolog.Logger

	// Core
	db      storage.DB
	store   *storage.RecordStore
	wallets *wallet.Service

	// Market data (nil when disabled)
	prices    *market.Cache
	refresher *market.Refresher

	// RPC (nil when disabled)
	rpcServer *rpc.Server

	// Lifecycle
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// New creates and initializes a new Node. It opens storage, builds the
// wallet service and binds the RPC listener but does NOT start the market
// refresher. Call Start() for that.
func New(cfg *config.Config) (*Node, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	// ── 1. Init logger ──────────────────────────────────────────────
	logFile, err := logFilePath(cfg)
	if err != nil {
		return nil, err
	}
	if err := klog.Init(cfg.Log.Level, cfg.Log.JSON, logFile); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger := klog.Node

	logger.Info().
		Str("network", string(cfg.Network)).
		Str("datadir", cfg.DataDir).
		Msg("Starting coinvault")

	// ── 2. Open storage ─────────────────────────────────────────────
	if err := os.MkdirAll(cfg.DBDir(), 0700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	db, err := storage.NewBadger(cfg.DBDir())
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBDir(), err)
	}
	store := storage.NewRecordStore(db)
	logger.Info().Str("path", cfg.DBDir()).Msg("Database opened")

	// ── 3. Wallet service ───────────────────────────────────────────
	paths, err := cfg.Wallet.PathTable()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("wallet paths: %w", err)
	}
	wallets := wallet.NewService(store, paths, cfg.Wallet.KDFParams(),
		wallet.WithNetwork(cfg.WalletNetwork()))
	logger.Info().
		Int("currencies", paths.Len()).
		Uint32("kdf_memory_kib", cfg.Wallet.KDF.Memory).
		Msg("Wallet service ready")

	// ── 4. Market data ──────────────────────────────────────────────
	var (
		prices    *market.Cache
		refresher *market.Refresher
	)
	if cfg.Market.Enabled {
		src := market.NewCoinGecko(cfg.Market.BaseURL, cfg.Market.APIKey, cfg.Market.Timeout)
		prices = market.NewCache(src, cfg.Market.CacheTTL)
		if len(cfg.Market.Coins) > 0 && cfg.Market.Refresh > 0 {
			refresher = market.NewRefresher(prices, cfg.Market.Coins, cfg.Market.VsCurrencies, cfg.Market.Refresh)
		}
		logger.Info().Str("url", cfg.Market.BaseURL).Strs("coins", cfg.Market.Coins).Msg("Market data enabled")
	}

	// ── 5. RPC server ───────────────────────────────────────────────
	var rpcServer *rpc.Server
	if cfg.RPC.Enabled {
		rpcAddr := fmt.Sprintf("%s:%d", cfg.RPC.Addr, cfg.RPC.Port)
		rpcServer = rpc.New(rpcAddr, wallets, cfg.RPC)
		if prices != nil {
			rpcServer.SetPriceSource(prices)
		}
		if err := rpcServer.Start(); err != nil {
			db.Close()
			return nil, fmt.Errorf("start RPC at %s: %w", rpcAddr, err)
		}
		logger.Info().Str("addr", rpcServer.Addr()).Msg("RPC server started")
	} else {
		logger.Warn().Msg("RPC disabled by config")
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Node{
		cfg:       cfg,
		logger:    logger,
		db:        db,
		store:     store,
		wallets:   wallets,
		prices:    prices,
		refresher: refresher,
		rpcServer: rpcServer,
		ctx:       ctx,
		cancel:    cancel,
	}, nil
}

// Start launches background work: the market price refresher.
func (n *Node) Start() error {
	if n.refresher != nil {
		if err := n.refresher.Start(n.ctx); err != nil {
			return fmt.Errorf("start market refresher: %w", err)
		}
	}

	n.logger.Info().
		Bool("rpc", n.rpcServer != nil).
		Bool("market", n.prices != nil).
		Msg("Node started successfully")
	return nil
}

// Stop performs graceful shutdown in reverse order. It is safe to call
// more than once.
func (n *Node) Stop() {
	n.stopOnce.Do(func() {
		n.cancel()

		if n.refresher != nil {
			n.refresher.Stop()
		}
		if n.rpcServer != nil {
			if err := n.rpcServer.Stop(); err != nil {
				n.logger.Warn().Err(err).Msg("RPC shutdown")
			}
		}
		if n.db != nil {
			if err := n.db.Close(); err != nil {
				n.logger.Warn().Err(err).Msg("Database close")
			}
		}

		n.logger.Info().Msg("Goodbye!")
	})
}

// RPCAddr returns the address the RPC server is listening on.
func (n *Node) RPCAddr() string {
	if n.rpcServer == nil {
		return ""
	}
	return n.rpcServer.Addr()
}

// Wallets returns the node's wallet service.
func (n *Node) Wallets() *wallet.Service {
	return n.wallets
}

// Prices returns the cached market data source, or nil when disabled.
func (n *Node) Prices() market.PriceSource {
	if n.prices == nil {
		return nil
	}
	return n.prices
}
