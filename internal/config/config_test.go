package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("port=%s", cfg.Server.Port)
	}
	if !cfg.ExchangeRate().Equal(decimal.NewFromFloat(0.92)) {
		t.Errorf("rate=%s", cfg.ExchangeRate())
	}
	if cfg.Exchange.HomeCurrency != "EUR" || cfg.Exchange.QuoteCurrency != "USD" {
		t.Errorf("currencies=%s/%s", cfg.Exchange.HomeCurrency, cfg.Exchange.QuoteCurrency)
	}
	if !cfg.StartingBalance().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("starting balance=%s", cfg.StartingBalance())
	}
	if len(cfg.XP.Levels) != 5 || cfg.XP.Levels[1].XP != 100 {
		t.Errorf("levels=%+v", cfg.XP.Levels)
	}
	if rate, ok := cfg.XPRates()["buy"]; !ok || !rate.Equal(decimal.NewFromInt(5)) {
		t.Errorf("buy rate=%s", rate)
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("port=%s", cfg.Server.Port)
	}
}

func TestLoad_YamlOverridesAndSeeds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
server:
  port: "9000"
exchange:
  rate: 1.1
  home_currency: GBP
accounts:
  starting_balance: 5000
oracle:
  timeout_seconds: 2
assets:
  - symbol: BTC
    name: Bitcoin
    class: crypto
    reference_price: 60000
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9000" {
		t.Errorf("port=%s", cfg.Server.Port)
	}
	if !cfg.ExchangeRate().Equal(decimal.NewFromFloat(1.1)) {
		t.Errorf("rate=%s", cfg.ExchangeRate())
	}
	if cfg.Exchange.HomeCurrency != "GBP" {
		t.Errorf("home=%s", cfg.Exchange.HomeCurrency)
	}
	if !cfg.StartingBalance().Equal(decimal.NewFromInt(5000)) {
		t.Errorf("balance=%s", cfg.StartingBalance())
	}

	seeds := cfg.SeedAssets()
	if len(seeds) != 1 || seeds[0].Symbol != "BTC" {
		t.Fatalf("seeds=%+v", seeds)
	}
	// Currency defaults to the quote currency when unset.
	if seeds[0].Currency != "USD" {
		t.Errorf("seed currency=%s", seeds[0].Currency)
	}
}

func TestLoad_RejectsBadSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
assets:
  - symbol: BTC
    reference_price: 0
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected error for non-positive reference price")
	}
}

func TestPortEnvOverride(t *testing.T) {
	t.Setenv("PORT", "7777")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "7777" {
		t.Errorf("port=%s", cfg.Server.Port)
	}
}
