package appconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}

func TestLoadConfigRejectsMissingSymbol(t *testing.T) {
	path := writeTempConfig(t, "ib:\n  host: 127.0.0.1\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for a config missing symbol")
	}
}

func TestLoadConfigFillsDefaults(t *testing.T) {
	path := writeTempConfig(t, "symbol: SPY\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Order.OrderType != "market" {
		t.Errorf("OrderType = %q, want market", cfg.Order.OrderType)
	}
	if cfg.Status.Sink != "postgres" {
		t.Errorf("Status.Sink = %q, want postgres", cfg.Status.Sink)
	}
	if cfg.Status.Postgres.Port != 5432 {
		t.Errorf("Postgres.Port = %v, want 5432", cfg.Status.Postgres.Port)
	}
	if cfg.Daemon.HeartbeatInterval != 10 {
		t.Errorf("HeartbeatInterval = %v, want 10", cfg.Daemon.HeartbeatInterval)
	}
	if cfg.StatusServer.Port != 8765 {
		t.Errorf("StatusServer.Port = %v, want 8765", cfg.StatusServer.Port)
	}
	if cfg.Gates.State.Delta.EpsilonBand != 10.0 {
		t.Errorf("EpsilonBand = %v, want 10.0", cfg.Gates.State.Delta.EpsilonBand)
	}
	if cfg.Gates.State.Delta.HedgeThreshold != 25.0 {
		t.Errorf("HedgeThreshold = %v, want 25.0", cfg.Gates.State.Delta.HedgeThreshold)
	}
	if cfg.Gates.Guard.Risk.MaxSpreadPct != cfg.Gates.State.Liquidity.ExtremeSpreadPct {
		t.Error("MaxSpreadPct should default to ExtremeSpreadPct when unset")
	}
	if !cfg.StrategyEnabled() {
		t.Error("StrategyEnabled() should default true when unset")
	}
}

func TestLoadConfigResolvesIBPortType(t *testing.T) {
	path := writeTempConfig(t, "symbol: SPY\nib:\n  port_type: tws_paper\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.IB.Port != 7497 {
		t.Errorf("IB.Port = %v, want 7497 for tws_paper", cfg.IB.Port)
	}
}

func TestLoadConfigRejectsUnknownPortType(t *testing.T) {
	path := writeTempConfig(t, "symbol: SPY\nib:\n  port_type: bogus\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error for an unknown ib.port_type")
	}
}

func TestLoadConfigRejectsHedgeThresholdBelowEpsilonBand(t *testing.T) {
	path := writeTempConfig(t, "symbol: SPY\ngates:\n  state:\n    delta:\n      epsilon_band: 50\n      hedge_threshold: 10\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected an error when hedge_threshold < epsilon_band")
	}
}

func TestLoadConfigMissingFileReturnsError(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}

func TestLoadConfigFallsBackToLegacySections(t *testing.T) {
	body := `
symbol: SPY
hedge:
  min_hedge_shares: 7
  max_hedge_shares_per_order: 321
risk:
  max_position_shares: 999
  paper_trade: true
structure:
  min_dte: 14
state_space:
  epsilon_band: 5
`
	path := writeTempConfig(t, body)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Gates.Intent.Hedge.MinHedgeShares != 7 {
		t.Errorf("MinHedgeShares = %v, want 7 from legacy hedge section", cfg.Gates.Intent.Hedge.MinHedgeShares)
	}
	if cfg.Gates.Intent.Hedge.MaxHedgeSharesPerOrder != 321 {
		t.Errorf("MaxHedgeSharesPerOrder = %v, want 321", cfg.Gates.Intent.Hedge.MaxHedgeSharesPerOrder)
	}
	if cfg.Gates.Guard.Risk.MaxPositionShares != 999 {
		t.Errorf("MaxPositionShares = %v, want 999", cfg.Gates.Guard.Risk.MaxPositionShares)
	}
	if !cfg.Gates.Guard.Risk.PaperTrade {
		t.Error("PaperTrade should fall back to legacy risk.paper_trade")
	}
	if cfg.Gates.Strategy.Structure.MinDTE != 14 {
		t.Errorf("MinDTE = %v, want 14 from legacy structure section", cfg.Gates.Strategy.Structure.MinDTE)
	}
	if cfg.Gates.State.Delta.EpsilonBand != 5 {
		t.Errorf("EpsilonBand = %v, want 5 from legacy state_space section", cfg.Gates.State.Delta.EpsilonBand)
	}
}

func TestLoadConfigNewSectionTakesPriorityOverLegacy(t *testing.T) {
	body := `
symbol: SPY
gates:
  intent:
    hedge:
      min_hedge_shares: 42
hedge:
  min_hedge_shares: 7
`
	path := writeTempConfig(t, body)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Gates.Intent.Hedge.MinHedgeShares != 42 {
		t.Errorf("MinHedgeShares = %v, want 42 (new section should win over legacy)", cfg.Gates.Intent.Hedge.MinHedgeShares)
	}
}

func TestStrategyEnabledRespectsExplicitFalse(t *testing.T) {
	f := false
	cfg := &Config{Gates: GatesConfig{Strategy: GatesStrategy{StrategyEnabled: &f}}}
	if cfg.StrategyEnabled() {
		t.Error("StrategyEnabled() should return false when explicitly disabled")
	}
}

func TestHeartbeatIntervalConversion(t *testing.T) {
	cfg := &Config{Daemon: DaemonConfig{HeartbeatInterval: 5}}
	if cfg.HeartbeatInterval().Seconds() != 5 {
		t.Errorf("HeartbeatInterval() = %v, want 5s", cfg.HeartbeatInterval())
	}
}

func TestSaveConfigRoundTrip(t *testing.T) {
	path := writeTempConfig(t, "symbol: SPY\n")
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	out := filepath.Join(t.TempDir(), "saved.yaml")
	if err := SaveConfig(out, cfg); err != nil {
		t.Fatalf("SaveConfig() error = %v", err)
	}
	reloaded, err := LoadConfig(out)
	if err != nil {
		t.Fatalf("reloading saved config: %v", err)
	}
	if reloaded.Symbol != "SPY" {
		t.Errorf("reloaded Symbol = %q, want SPY", reloaded.Symbol)
	}
}
