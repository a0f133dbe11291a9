package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/RaghavSood/monswap/logutils"
	"github.com/RaghavSood/monswap/tokens"
)

const envPrefix = "MONSWAP_"

type Config struct {
	// Application identifier issued by the wallet-connection provider
	WalletProjectID string `json:"wallet_project_id"`

	// Network name and chain ID
	Network string `json:"network"`
	ChainID int64  `json:"chain_id"`

	// Symbol of the chain's native asset
	NativeSymbol string `json:"native_symbol"`

	// JSON-RPC endpoint for allowance checks, gas estimation and receipts
	RPCEndpoint string `json:"rpc_endpoint"`

	// Upstream services
	QuoteAPIURL   string `json:"quote_api_url"`
	QuoteAPIKey   string `json:"quote_api_key"`
	PriceAPIURL   string `json:"price_api_url"`
	FiatAPIURL    string `json:"fiat_api_url"`
	BalanceAPIURL string `json:"balance_api_url"`

	// Requests per second allowed against the quote API
	QuoteRateLimit float64 `json:"quote_rate_limit"`

	// Spender approved before swapping ERC-20 tokens
	RouterAddress string `json:"router_address"`

	// Quote defaults
	SlippageBps     int `json:"slippage_bps"`
	DeadlineMinutes int `json:"deadline_minutes"`
	MaxHops         int `json:"max_hops"`

	// Path to SQLite database for caches and swap history
	DatabasePath string `json:"database_path"`

	// HTTP server port (default 8080)
	Port int `json:"port"`

	// Block explorer base URL, e.g. https://testnet.monadexplorer.com
	ExplorerURL string `json:"explorer_url"`

	// Signing key for the keyed wallet provider: a mnemonic or a hex key
	Mnemonic     string `json:"mnemonic"`
	AccountIndex uint32 `json:"account_index"`
	PrivateKey   string `json:"private_key"`

	// Optional Telegram delivery of swap outcomes
	TelegramToken  string `json:"telegram_token"`
	TelegramChatID int64  `json:"telegram_chat_id"`

	Log LogConfig `json:"log"`

	// Tokens added to the default list
	Tokens []TokenConfig `json:"tokens"`
}

type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	Compress   bool   `json:"compress"`
}

type TokenConfig struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Decimals uint8  `json:"decimals"`
}

// Load reads path, applies MONSWAP_* environment overrides and defaults, and
// validates the result. A missing file is allowed when the environment
// supplies the required values.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.applyEnv()
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	setString := func(name string, dst *string) {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}
	setString("WALLET_PROJECT_ID", &c.WalletProjectID)
	setString("NETWORK", &c.Network)
	setString("RPC_ENDPOINT", &c.RPCEndpoint)
	setString("QUOTE_API_URL", &c.QuoteAPIURL)
	setString("QUOTE_API_KEY", &c.QuoteAPIKey)
	setString("PRICE_API_URL", &c.PriceAPIURL)
	setString("FIAT_API_URL", &c.FiatAPIURL)
	setString("BALANCE_API_URL", &c.BalanceAPIURL)
	setString("ROUTER_ADDRESS", &c.RouterAddress)
	setString("DATABASE_PATH", &c.DatabasePath)
	setString("MNEMONIC", &c.Mnemonic)
	setString("PRIVATE_KEY", &c.PrivateKey)
	setString("TELEGRAM_TOKEN", &c.TelegramToken)
	setString("LOG_LEVEL", &c.Log.Level)

	if v, err := strconv.ParseInt(os.Getenv(envPrefix+"TELEGRAM_CHAT_ID"), 10, 64); err == nil {
		c.TelegramChatID = v
	}
	if v, err := strconv.Atoi(os.Getenv(envPrefix + "PORT")); err == nil {
		c.Port = v
	}
}

func (c *Config) applyDefaults() {
	if c.Network == "" {
		c.Network = "monad-testnet"
	}
	if c.ChainID == 0 {
		c.ChainID = 10143
	}
	if c.NativeSymbol == "" {
		c.NativeSymbol = "MON"
	}
	if c.RPCEndpoint == "" {
		c.RPCEndpoint = "https://testnet-rpc.monad.xyz"
	}
	if c.FiatAPIURL == "" {
		c.FiatAPIURL = "https://api.binance.com/api/v3/ticker/price"
	}
	if c.QuoteRateLimit == 0 {
		c.QuoteRateLimit = 5
	}
	if c.SlippageBps == 0 {
		c.SlippageBps = 50
	}
	if c.DeadlineMinutes == 0 {
		c.DeadlineMinutes = 20
	}
	if c.MaxHops == 0 {
		c.MaxHops = 3
	}
	if c.DatabasePath == "" {
		c.DatabasePath = "monswap.db"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ExplorerURL == "" {
		c.ExplorerURL = "https://testnet.monadexplorer.com"
	}
}

func (c *Config) validate() error {
	if c.WalletProjectID == "" {
		return fmt.Errorf("wallet_project_id is required")
	}
	if c.QuoteAPIURL == "" {
		return fmt.Errorf("quote_api_url is required")
	}
	if c.RouterAddress != "" && !common.IsHexAddress(c.RouterAddress) {
		return fmt.Errorf("router_address %q is not an address", c.RouterAddress)
	}
	if c.SlippageBps < 1 || c.SlippageBps > 5000 {
		return fmt.Errorf("slippage_bps must be between 1 and 5000")
	}
	if c.MaxHops < 1 {
		return fmt.Errorf("max_hops must be positive")
	}
	if c.Mnemonic != "" && c.PrivateKey != "" {
		return fmt.Errorf("set either mnemonic or private_key, not both")
	}
	for _, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %s: invalid address %q", t.Symbol, t.Address)
		}
		if t.Symbol == "" {
			return fmt.Errorf("token %s: symbol is required", t.Address)
		}
	}
	return nil
}

// HasSigner reports whether a signing key is configured.
func (c *Config) HasSigner() bool {
	return c.Mnemonic != "" || c.PrivateKey != ""
}

func (c *Config) Router() common.Address {
	return common.HexToAddress(c.RouterAddress)
}

func (c *Config) Deadline() time.Duration {
	return time.Duration(c.DeadlineMinutes) * time.Minute
}

// ExplorerTxURL returns the block explorer link for a transaction.
func (c *Config) ExplorerTxURL(txHash string) string {
	return strings.TrimRight(c.ExplorerURL, "/") + "/tx/" + txHash
}

// TokenList is the default token list for the network merged with the
// configured extra tokens.
func (c *Config) TokenList() tokens.List {
	base := tokens.List{{Address: tokens.NativeAddress, Symbol: c.NativeSymbol, Name: c.NativeSymbol, Decimals: 18}}
	if c.Network == "monad-testnet" {
		base = tokens.MonadTestnet
	}

	extra := make(tokens.List, 0, len(c.Tokens))
	for _, t := range c.Tokens {
		name := t.Name
		if name == "" {
			name = t.Symbol
		}
		decimals := t.Decimals
		if decimals == 0 {
			decimals = 18
		}
		extra = append(extra, tokens.Token{
			Address:  common.HexToAddress(t.Address),
			Symbol:   t.Symbol,
			Name:     name,
			Decimals: decimals,
			USDPrice: decimal.Zero,
		})
	}
	return base.Merge(extra)
}

// LogOptions maps the log section onto logutils options.
func (c *Config) LogOptions() logutils.Options {
	return logutils.Options{
		Level: c.Log.Level,
		File: logutils.FileOptions{
			Filename:   c.Log.File,
			MaxSize:    c.Log.MaxSizeMB,
			MaxBackups: c.Log.MaxBackups,
			Compress:   c.Log.Compress,
		},
	}
}
