// Package appconfig loads and validates the daemon's YAML configuration.
package appconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete configuration for the hedging daemon.
type Config struct {
	Symbol       string             `yaml:"symbol"`
	Greeks       GreeksConfig       `yaml:"greeks"`
	IB           IBConfig           `yaml:"ib"`
	Order        OrderConfig        `yaml:"order"`
	Status       StatusConfig       `yaml:"status"`
	StatusServer StatusServerConfig `yaml:"status_server"`
	Daemon       DaemonConfig       `yaml:"daemon"`
	Gates        GatesConfig        `yaml:"gates"`

	// Legacy top-level sections kept only as a fallback source; never read
	// directly outside Validate/resolveLegacyFallbacks.
	LegacyHedge      map[string]interface{} `yaml:"hedge"`
	LegacyRisk       map[string]interface{} `yaml:"risk"`
	LegacyStructure  map[string]interface{} `yaml:"structure"`
	LegacyStateSpace map[string]interface{} `yaml:"state_space"`
}

// GreeksConfig holds the Black-Scholes inputs the core consumes.
type GreeksConfig struct {
	RiskFreeRate float64 `yaml:"risk_free_rate"`
	Volatility   float64 `yaml:"volatility"`
}

// IBConfig holds broker connection parameters.
type IBConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	PortType       string `yaml:"port_type"` // tws_live, tws_paper, gateway — resolves Port when set
	ClientID       int    `yaml:"client_id"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// OrderConfig holds order-placement defaults.
type OrderConfig struct {
	OrderType string `yaml:"order_type"` // market, limit
}

// StatusConfig selects and configures the persistence sink.
type StatusConfig struct {
	Sink     string         `yaml:"sink"` // "postgres"
	Postgres PostgresConfig `yaml:"postgres"`
}

// PostgresConfig holds connection parameters for the Postgres sink.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// StatusServerConfig holds the HTTP status/control server's bind port.
type StatusServerConfig struct {
	Port int `yaml:"port"`
}

// DaemonConfig holds daemon lifecycle tunables.
type DaemonConfig struct {
	HeartbeatInterval  int    `yaml:"heartbeat_interval"`
	IBRetryIntervalSec int    `yaml:"ib_retry_interval_sec"`
	HedgeCommand       string `yaml:"hedge_command"`
}

// GatesConfig groups every pipeline-step threshold under its new nested
// home; each leaf falls back to the legacy top-level section when unset.
type GatesConfig struct {
	Strategy GatesStrategy `yaml:"strategy"`
	State    GatesState    `yaml:"state"`
	Intent   GatesIntent   `yaml:"intent"`
	Guard    GatesGuard    `yaml:"guard"`
}

type GatesStrategy struct {
	Structure         StructureGate `yaml:"structure"`
	Earnings          EarningsGate  `yaml:"earnings"`
	TradingHoursOnly  bool          `yaml:"trading_hours_only"`
	StrategyEnabled   *bool         `yaml:"strategy_enabled"`
}

type StructureGate struct {
	MinDTE      int     `yaml:"min_dte"`
	MaxDTE      int     `yaml:"max_dte"`
	AtmBandPct  float64 `yaml:"atm_band_pct"`
}

type EarningsGate struct {
	Dates             []string `yaml:"dates"`
	BlackoutDaysBefore int     `yaml:"blackout_days_before"`
	BlackoutDaysAfter  int     `yaml:"blackout_days_after"`
}

type GatesState struct {
	Delta     DeltaGate     `yaml:"delta"`
	Market    MarketGate    `yaml:"market"`
	Liquidity LiquidityGate `yaml:"liquidity"`
	System    SystemGate    `yaml:"system"`
}

type DeltaGate struct {
	EpsilonBand    float64 `yaml:"epsilon_band"`
	HedgeThreshold float64 `yaml:"hedge_threshold"`
	MaxDeltaLimit  float64 `yaml:"max_delta_limit"`
}

type MarketGate struct {
	VolWindowMin       int     `yaml:"vol_window_min"`
	StaleTsThresholdMs float64 `yaml:"stale_ts_threshold_ms"`
}

type LiquidityGate struct {
	WideSpreadPct    float64 `yaml:"wide_spread_pct"`
	ExtremeSpreadPct float64 `yaml:"extreme_spread_pct"`
}

type SystemGate struct {
	DataLagThresholdMs float64 `yaml:"data_lag_threshold_ms"`
}

type GatesIntent struct {
	Hedge HedgeIntentGate `yaml:"hedge"`
}

type HedgeIntentGate struct {
	DeltaThresholdShares   float64 `yaml:"delta_threshold_shares"`
	MinHedgeShares         int     `yaml:"min_hedge_shares"`
	MaxHedgeSharesPerOrder int     `yaml:"max_hedge_shares_per_order"`
	CooldownSeconds        int     `yaml:"cooldown_seconds"`
	MinPriceMovePct        float64 `yaml:"min_price_move_pct"`
}

type GatesGuard struct {
	Risk RiskGuardGate `yaml:"risk"`
}

type RiskGuardGate struct {
	MaxDailyHedgeCount int     `yaml:"max_daily_hedge_count"`
	MaxPositionShares  int64   `yaml:"max_position_shares"`
	MaxDailyLossUSD    float64 `yaml:"max_daily_loss_usd"`
	MaxSpreadPct       float64 `yaml:"max_spread_pct"`
	MaxNetDeltaShares  float64 `yaml:"max_net_delta_shares"`
	PaperTrade         bool    `yaml:"paper_trade"`
}

// ibPortTypeToPort mirrors the fixed IB port-type -> TCP port table.
var ibPortTypeToPort = map[string]int{
	"tws_live":  7496,
	"tws_paper": 7497,
	"gateway":   4002,
}

// LoadConfig loads and validates configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg.resolveLegacyFallbacks()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// SaveConfig writes configuration back to a YAML file.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}

// resolveLegacyFallbacks fills any zero-valued gates.* leaf from the
// matching legacy top-level section, the Go analogue of original_source's
// _get_cfg helper which checked a "state_space"/"hedge"/"risk"/"structure"
// fallback section before applying a hardcoded default.
func (c *Config) resolveLegacyFallbacks() {
	legacyFloat(c.LegacyStructure, "min_dte", &c.Gates.Strategy.Structure.MinDTE)
	legacyFloat(c.LegacyStructure, "max_dte", &c.Gates.Strategy.Structure.MaxDTE)
	legacyFloatF(c.LegacyStructure, "atm_band_pct", &c.Gates.Strategy.Structure.AtmBandPct)

	legacyFloatF(c.LegacyStateSpace, "epsilon_band", &c.Gates.State.Delta.EpsilonBand)
	legacyFloatF(c.LegacyStateSpace, "hedge_threshold", &c.Gates.State.Delta.HedgeThreshold)
	legacyFloatF(c.LegacyStateSpace, "max_delta_limit", &c.Gates.State.Delta.MaxDeltaLimit)
	legacyFloat(c.LegacyStateSpace, "vol_window_min", &c.Gates.State.Market.VolWindowMin)
	legacyFloatF(c.LegacyStateSpace, "stale_ts_threshold_ms", &c.Gates.State.Market.StaleTsThresholdMs)
	legacyFloatF(c.LegacyStateSpace, "wide_spread_pct", &c.Gates.State.Liquidity.WideSpreadPct)
	legacyFloatF(c.LegacyStateSpace, "extreme_spread_pct", &c.Gates.State.Liquidity.ExtremeSpreadPct)
	legacyFloatF(c.LegacyStateSpace, "data_lag_threshold_ms", &c.Gates.State.System.DataLagThresholdMs)

	legacyFloatF(c.LegacyHedge, "delta_threshold_shares", &c.Gates.Intent.Hedge.DeltaThresholdShares)
	legacyFloat(c.LegacyHedge, "min_hedge_shares", &c.Gates.Intent.Hedge.MinHedgeShares)
	legacyFloat(c.LegacyHedge, "max_hedge_shares_per_order", &c.Gates.Intent.Hedge.MaxHedgeSharesPerOrder)
	legacyFloat(c.LegacyHedge, "cooldown_seconds", &c.Gates.Intent.Hedge.CooldownSeconds)
	legacyFloatF(c.LegacyHedge, "min_price_move_pct", &c.Gates.Intent.Hedge.MinPriceMovePct)

	legacyFloat(c.LegacyRisk, "max_daily_hedge_count", &c.Gates.Guard.Risk.MaxDailyHedgeCount)
	legacyInt64(c.LegacyRisk, "max_position_shares", &c.Gates.Guard.Risk.MaxPositionShares)
	legacyFloatF(c.LegacyRisk, "max_daily_loss_usd", &c.Gates.Guard.Risk.MaxDailyLossUSD)
	legacyFloatF(c.LegacyRisk, "max_spread_pct", &c.Gates.Guard.Risk.MaxSpreadPct)
	legacyFloatF(c.LegacyRisk, "max_net_delta_shares", &c.Gates.Guard.Risk.MaxNetDeltaShares)
	if v, ok := c.LegacyRisk["paper_trade"].(bool); ok && !c.Gates.Guard.Risk.PaperTrade {
		c.Gates.Guard.Risk.PaperTrade = v
	}
}

func legacyFloat(section map[string]interface{}, key string, dst *int) {
	if *dst != 0 || section == nil {
		return
	}
	if v, ok := toFloat(section[key]); ok {
		*dst = int(v)
	}
}

func legacyInt64(section map[string]interface{}, key string, dst *int64) {
	if *dst != 0 || section == nil {
		return
	}
	if v, ok := toFloat(section[key]); ok {
		*dst = int64(v)
	}
}

func legacyFloatF(section map[string]interface{}, key string, dst *float64) {
	if *dst != 0 || section == nil {
		return
	}
	if v, ok := toFloat(section[key]); ok {
		*dst = v
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

// Validate fills defaults and rejects a config missing required fields.
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	if c.IB.PortType != "" {
		port, ok := ibPortTypeToPort[c.IB.PortType]
		if !ok {
			return fmt.Errorf("ib.port_type must be one of: tws_live, tws_paper, gateway")
		}
		c.IB.Port = port
	}
	if c.IB.ConnectTimeout == 0 {
		c.IB.ConnectTimeout = 10
	}

	if c.Order.OrderType == "" {
		c.Order.OrderType = "market"
	}

	if c.Status.Sink == "" {
		c.Status.Sink = "postgres"
	}
	if c.Status.Postgres.Database == "" {
		c.Status.Postgres.Database = "bifrost"
	}
	if c.Status.Postgres.User == "" {
		c.Status.Postgres.User = "bifrost"
	}
	if c.Status.Postgres.Port == 0 {
		c.Status.Postgres.Port = 5432
	}

	if c.Daemon.HeartbeatInterval == 0 {
		c.Daemon.HeartbeatInterval = 10
	}
	if c.Daemon.IBRetryIntervalSec == 0 {
		c.Daemon.IBRetryIntervalSec = 30
	}
	if c.Daemon.HedgeCommand == "" {
		c.Daemon.HedgeCommand = "eval_hedge"
	}

	if c.StatusServer.Port == 0 {
		c.StatusServer.Port = 8765
	}

	if c.Gates.Strategy.Structure.MinDTE == 0 {
		c.Gates.Strategy.Structure.MinDTE = 21
	}
	if c.Gates.Strategy.Structure.MaxDTE == 0 {
		c.Gates.Strategy.Structure.MaxDTE = 35
	}
	if c.Gates.Strategy.Structure.AtmBandPct == 0 {
		c.Gates.Strategy.Structure.AtmBandPct = 0.03
	}

	if c.Gates.State.Delta.EpsilonBand == 0 {
		c.Gates.State.Delta.EpsilonBand = 10.0
	}
	if c.Gates.State.Delta.HedgeThreshold == 0 {
		c.Gates.State.Delta.HedgeThreshold = 25.0
	}
	if c.Gates.State.Delta.MaxDeltaLimit == 0 {
		c.Gates.State.Delta.MaxDeltaLimit = 500.0
	}
	if c.Gates.State.Delta.HedgeThreshold < c.Gates.State.Delta.EpsilonBand {
		return fmt.Errorf("gates.state.delta.hedge_threshold must be >= epsilon_band")
	}

	if c.Gates.State.Market.VolWindowMin == 0 {
		c.Gates.State.Market.VolWindowMin = 5
	}
	if c.Gates.State.Market.StaleTsThresholdMs == 0 {
		c.Gates.State.Market.StaleTsThresholdMs = 5000.0
	}

	if c.Gates.State.Liquidity.WideSpreadPct == 0 {
		c.Gates.State.Liquidity.WideSpreadPct = 0.1
	}
	if c.Gates.State.Liquidity.ExtremeSpreadPct == 0 {
		c.Gates.State.Liquidity.ExtremeSpreadPct = 0.5
	}

	if c.Gates.State.System.DataLagThresholdMs == 0 {
		c.Gates.State.System.DataLagThresholdMs = 1000.0
	}

	if c.Gates.Intent.Hedge.DeltaThresholdShares == 0 {
		c.Gates.Intent.Hedge.DeltaThresholdShares = 25.0
	}
	if c.Gates.Intent.Hedge.MinHedgeShares == 0 {
		c.Gates.Intent.Hedge.MinHedgeShares = 10
	}
	if c.Gates.Intent.Hedge.MaxHedgeSharesPerOrder == 0 {
		c.Gates.Intent.Hedge.MaxHedgeSharesPerOrder = 500
	}

	if c.Gates.Guard.Risk.MaxDailyHedgeCount == 0 {
		c.Gates.Guard.Risk.MaxDailyHedgeCount = 20
	}
	if c.Gates.Guard.Risk.MaxPositionShares == 0 {
		c.Gates.Guard.Risk.MaxPositionShares = 10000
	}
	if c.Gates.Guard.Risk.MaxSpreadPct == 0 {
		c.Gates.Guard.Risk.MaxSpreadPct = c.Gates.State.Liquidity.ExtremeSpreadPct
	}

	return nil
}

// StrategyEnabled reports whether trading is enabled, default true.
func (c *Config) StrategyEnabled() bool {
	if c.Gates.Strategy.StrategyEnabled == nil {
		return true
	}
	return *c.Gates.Strategy.StrategyEnabled
}

// HeartbeatInterval as a time.Duration convenience.
func (c *Config) HeartbeatInterval() time.Duration {
	return time.Duration(c.Daemon.HeartbeatInterval) * time.Second
}
