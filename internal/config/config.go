// Package config loads the engine configuration from a yaml file with
// environment overrides. All knobs that were once module-level globals in
// earlier iterations of the simulator (exchange rate, starting balance, XP
// tables, oracle endpoint) live here and are threaded through constructors.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/tradequest/engine/internal/model"
	"github.com/tradequest/engine/internal/xp"
)

type ServerConfig struct {
	Port string `yaml:"port"`
}

// ExchangeConfig fixes the single quote→home conversion rate. Multi-currency
// ledgers are out of scope; one rate covers the whole catalog.
type ExchangeConfig struct {
	Rate          float64 `yaml:"rate"` // home units per quote unit
	HomeCurrency  string  `yaml:"home_currency"`
	QuoteCurrency string  `yaml:"quote_currency"`
}

type AccountsConfig struct {
	StartingBalance float64 `yaml:"starting_balance"` // home currency
}

type XPConfig struct {
	// Rates map an action ("buy", "sell") to XP per unit traded.
	Rates  map[string]float64 `yaml:"rates"`
	Levels []xp.Threshold     `yaml:"levels"`
}

type OracleConfig struct {
	Address        string `yaml:"address"` // empty → no live quotes
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// AssetSeed describes one catalog entry installed at startup.
type AssetSeed struct {
	Symbol         string  `yaml:"symbol"`
	Name           string  `yaml:"name"`
	Class          string  `yaml:"class"`
	ReferencePrice float64 `yaml:"reference_price"`
	Currency       string  `yaml:"currency"`
}

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Exchange ExchangeConfig `yaml:"exchange"`
	Accounts AccountsConfig `yaml:"accounts"`
	XP       XPConfig       `yaml:"xp"`
	Oracle   OracleConfig   `yaml:"oracle"`
	Assets   []AssetSeed    `yaml:"assets"`
}

const (
	_portDefault            = "8080"
	_rateDefault            = 0.92
	_homeCurrencyDefault    = "EUR"
	_quoteCurrencyDefault   = "USD"
	_startingBalanceDefault = 10000
	_xpRateDefault          = 5
	_oracleTimeoutDefault   = 5
)

// Load reads the yaml file at path (missing file → pure defaults), applies
// defaults and env overrides, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// fall through to defaults
		case err != nil:
			return nil, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.Setup(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Setup fills defaults and validates the result.
func (c *Config) Setup() error {
	if c.Server.Port == "" {
		c.Server.Port = _portDefault
	}
	if port := os.Getenv("PORT"); port != "" {
		c.Server.Port = port
	}

	if c.Exchange.Rate <= 0 {
		c.Exchange.Rate = _rateDefault
	}
	if c.Exchange.HomeCurrency == "" {
		c.Exchange.HomeCurrency = _homeCurrencyDefault
	}
	if c.Exchange.QuoteCurrency == "" {
		c.Exchange.QuoteCurrency = _quoteCurrencyDefault
	}

	if c.Accounts.StartingBalance <= 0 {
		c.Accounts.StartingBalance = _startingBalanceDefault
	}

	if len(c.XP.Rates) == 0 {
		c.XP.Rates = map[string]float64{"buy": _xpRateDefault, "sell": _xpRateDefault}
	}
	if len(c.XP.Levels) == 0 {
		c.XP.Levels = []xp.Threshold{
			{Level: 1, XP: 0},
			{Level: 2, XP: 100},
			{Level: 3, XP: 500},
			{Level: 4, XP: 2000},
			{Level: 5, XP: 10000},
		}
	}

	if c.Oracle.TimeoutSeconds <= 0 {
		c.Oracle.TimeoutSeconds = _oracleTimeoutDefault
	}

	for i, a := range c.Assets {
		if a.Symbol == "" {
			return fmt.Errorf("config: asset %d has empty symbol", i)
		}
		if a.ReferencePrice <= 0 {
			return fmt.Errorf("config: asset %s has non-positive reference price", a.Symbol)
		}
	}
	return nil
}

// ExchangeRate returns the fixed conversion rate as a decimal.
func (c *Config) ExchangeRate() decimal.Decimal {
	return decimal.NewFromFloat(c.Exchange.Rate)
}

// StartingBalance returns the initial play-money balance as a decimal.
func (c *Config) StartingBalance() decimal.Decimal {
	return decimal.NewFromFloat(c.Accounts.StartingBalance)
}

// XPRates converts the configured rates to decimals.
func (c *Config) XPRates() map[string]decimal.Decimal {
	rates := make(map[string]decimal.Decimal, len(c.XP.Rates))
	for action, rate := range c.XP.Rates {
		rates[action] = decimal.NewFromFloat(rate)
	}
	return rates
}

// OracleTimeout returns the per-quote timeout.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// SeedAssets converts the configured asset list to domain assets. Currency
// defaults to the exchange quote currency.
func (c *Config) SeedAssets() []model.Asset {
	assets := make([]model.Asset, 0, len(c.Assets))
	for _, a := range c.Assets {
		currency := a.Currency
		if currency == "" {
			currency = c.Exchange.QuoteCurrency
		}
		assets = append(assets, model.Asset{
			Symbol:         a.Symbol,
			Name:           a.Name,
			Class:          a.Class,
			ReferencePrice: decimal.NewFromFloat(a.ReferencePrice),
			Currency:       currency,
		})
	}
	return assets
}
