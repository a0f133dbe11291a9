package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/ethereum/go-ethereum/ethclient"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/RaghavSood/monswap/apilog"
	"github.com/RaghavSood/monswap/balances"
	"github.com/RaghavSood/monswap/config"
	"github.com/RaghavSood/monswap/db"
	"github.com/RaghavSood/monswap/logutils"
	"github.com/RaghavSood/monswap/notify"
	"github.com/RaghavSood/monswap/pricing"
	"github.com/RaghavSood/monswap/quote"
	"github.com/RaghavSood/monswap/tokens"
	"github.com/RaghavSood/monswap/wallet"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *db.Store
	rpc      *ethclient.Client
	list     tokens.List
	notifier notify.Notifier
	prices   *pricing.Client
	quotes   *quote.Client
	balances *balances.Service
}

var current *app

func loadApp() (*app, error) {
	if current != nil {
		return current, nil
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logOpts := cfg.LogOptions()
	if verbose {
		logOpts.Level = "debug"
	}
	logger, err := logutils.New(logOpts)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	store, err := db.Open(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: store, list: cfg.TokenList()}

	if cfg.RPCEndpoint != "" {
		a.rpc, err = ethclient.Dial(cfg.RPCEndpoint)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("connecting to RPC at %s: %w", cfg.RPCEndpoint, err)
		}
		logger.Debug("connected to RPC", zap.String("endpoint", cfg.RPCEndpoint))
	}

	a.notifier = notify.NewLog(logger)
	if cfg.TelegramToken != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			logger.Warn("telegram notifications disabled", zap.Error(err))
		} else {
			a.notifier = notify.Multi{a.notifier, notify.NewTelegram(bot, cfg.TelegramChatID, cfg.ExplorerTxURL, logger)}
			logger.Info("telegram notifications enabled", zap.String("bot", bot.Self.UserName))
		}
	}

	clk := clock.New()
	a.prices = pricing.NewClient(pricing.Config{
		PriceURL:     cfg.PriceAPIURL,
		FiatURL:      cfg.FiatAPIURL,
		NativeSymbol: cfg.NativeSymbol,
		HTTPClient:   apilog.NewHTTPClient("price", store, logger),
		Store:        store,
		Clock:        clk,
		Logger:       logger,
	})
	a.quotes = quote.NewClient(cfg.QuoteAPIURL, cfg.QuoteAPIKey, apilog.NewHTTPClient("quote", store, logger), cfg.QuoteRateLimit, logger)

	var sources []balances.Source
	if cfg.BalanceAPIURL != "" {
		sources = append(sources, balances.NewClient(cfg.BalanceAPIURL, apilog.NewHTTPClient("balances", store, logger), a.list))
	}
	if a.rpc != nil {
		sources = append(sources, balances.NewMulticall(a.rpc, a.list), balances.NewOnChain(a.rpc, a.list))
	}
	a.balances = balances.NewService(sources, store, clk, a.notifier, logger)

	current = a
	return a, nil
}

func closeApp() {
	if current == nil {
		return
	}
	current.logger.Sync()
	if current.rpc != nil {
		current.rpc.Close()
	}
	current.store.Close()
	current = nil
}

// signer returns the keyed wallet configured by mnemonic or private key.
func (a *app) signer(ctx context.Context) (*wallet.KeyedProvider, error) {
	if a.rpc == nil {
		return nil, errors.New("rpc_endpoint is required to sign transactions")
	}
	if !a.cfg.HasSigner() {
		return nil, errors.New("no signing key configured: set mnemonic or private_key")
	}

	var (
		p   *wallet.KeyedProvider
		err error
	)
	if a.cfg.PrivateKey != "" {
		p, err = wallet.FromHex(a.rpc, a.cfg.PrivateKey)
	} else {
		p, err = wallet.FromMnemonic(a.rpc, a.cfg.Mnemonic, a.cfg.AccountIndex)
	}
	if err != nil {
		return nil, err
	}

	chainID, err := p.ChainID(ctx)
	if err != nil {
		return nil, err
	}
	if a.cfg.ChainID != 0 && chainID.Int64() != a.cfg.ChainID {
		return nil, fmt.Errorf("rpc is on chain %s, config expects %d", chainID, a.cfg.ChainID)
	}
	return p, nil
}
