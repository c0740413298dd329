// Package execguard implements the stateful order-send gate that sits
// immediately before a hedge order reaches the broker, grounded on
// original_source's src/core/guards/execution_guard.py (there named
// RiskGuard) and on the teacher's pkg/trader/session.go pattern for
// parsing a trading-hours window, fixed here to the US equity/option
// regular session in America/New_York.
package execguard

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// Config bundles every threshold from spec.md §6.2 gates.guard.risk.* and
// gates.intent.hedge.*.
type Config struct {
	CooldownSeconds    int
	MaxDailyHedgeCount int
	MaxPositionShares  float64
	MaxDailyLossUSD    float64
	MaxSpreadPct       float64
	MaxNetDeltaShares  float64 // held per spec.md §4.2.2 but not one of AllowHedge's eight checks
	MinPriceMovePct    float64
	EarningsDates      []string // YYYY-MM-DD
	BlackoutDaysBefore int
	BlackoutDaysAfter  int
	TradingHoursOnly   bool
	PaperTrade         bool
}

// Guard is the stateful gate evaluated immediately before a hedge order is
// sent. Unlike tradingguard.Guard it carries mutable counters across calls,
// mirroring the teacher's pattern of a mutex-guarded struct combining
// config with mutable state (pkg/risk.RiskManager).
type Guard struct {
	mu sync.Mutex

	cfg Config

	lastHedgeTime   time.Time
	dailyHedgeCount int
	dailyHedgeDate  string
	dailyPnLUSD     float64
	circuitBreaker  bool
}

func New(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

func (g *Guard) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// IsRTHET reports whether now (converted to America/New_York) falls within
// the 09:30-16:00 regular trading session, Monday through Friday.
func IsRTHET(now time.Time) bool {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	local := now.In(loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(local.Year(), local.Month(), local.Day(), 9, 30, 0, 0, loc)
	closeT := time.Date(local.Year(), local.Month(), local.Day(), 16, 0, 0, 0, loc)
	return !local.Before(open) && !local.After(closeT)
}

func (g *Guard) isEarningsBlackout(now time.Time) bool {
	if len(g.cfg.EarningsDates) == 0 {
		return false
	}
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.UTC
	}
	today := now.In(loc)
	for _, d := range g.cfg.EarningsDates {
		ed, err := time.ParseInLocation("2006-01-02", d, loc)
		if err != nil {
			continue
		}
		before := ed.AddDate(0, 0, -g.cfg.BlackoutDaysBefore)
		after := ed.AddDate(0, 0, g.cfg.BlackoutDaysAfter)
		if !today.Before(before) && !today.After(after) {
			return true
		}
	}
	return false
}

func (g *Guard) resetDailyIfRolled(now time.Time) {
	today := now.Format("2006-01-02")
	if g.dailyHedgeDate != today {
		g.dailyHedgeDate = today
		g.dailyHedgeCount = 0
		g.circuitBreaker = false
	}
}

// AllowHedge runs the fixed 8-step gate order from spec.md §4.2.2 and
// original_source's RiskGuard.allow_hedge: circuit breaker, trading-hours,
// earnings blackout, cooldown, daily count, position-size limit, spread
// limit, then minimum price move. The first failing gate short-circuits and
// is returned as the reason. force bypasses cooldown only (D=FORCE_HEDGE
// per spec.md scenario S3); every other gate, including max_position, still
// applies. netDeltaAfter is accepted for parity with
// original_source's allow_hedge(portfolio_delta=...) argument, which it
// likewise never reads in its own gate sequence — max_net_delta_shares is
// held on Config but is not one of the fixed eight checks.
func (g *Guard) AllowHedge(now time.Time, force bool, proposedShares, stockShares, netDeltaAfter, spot, lastHedgePrice, spreadPct float64) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.resetDailyIfRolled(now)

	if g.circuitBreaker {
		return false, "circuit_breaker_tripped"
	}
	if g.cfg.TradingHoursOnly && !IsRTHET(now) {
		return false, "outside_trading_hours"
	}
	if g.isEarningsBlackout(now) {
		return false, "earnings_blackout"
	}
	if !force && g.cfg.CooldownSeconds > 0 && !g.lastHedgeTime.IsZero() {
		if now.Sub(g.lastHedgeTime) < time.Duration(g.cfg.CooldownSeconds)*time.Second {
			return false, "cooldown_active"
		}
	}
	if g.cfg.MaxDailyHedgeCount > 0 && g.dailyHedgeCount >= g.cfg.MaxDailyHedgeCount {
		return false, "max_daily_hedge_count"
	}
	if g.cfg.MaxPositionShares > 0 {
		after := stockShares + proposedShares
		if after > g.cfg.MaxPositionShares || after < -g.cfg.MaxPositionShares {
			return false, "max_position_shares"
		}
	}
	if g.cfg.MaxSpreadPct > 0 && spreadPct > g.cfg.MaxSpreadPct {
		return false, "max_spread_pct"
	}
	if g.cfg.MinPriceMovePct > 0 && lastHedgePrice > 0 {
		movePct := 100 * math.Abs(spot-lastHedgePrice) / lastHedgePrice
		if movePct < g.cfg.MinPriceMovePct {
			return false, "min_price_move"
		}
	}
	return true, ""
}

// TripCircuitBreaker latches the guard closed until the next calendar day,
// used when realized daily loss breaches MaxDailyLossUSD.
func (g *Guard) TripCircuitBreaker() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.circuitBreaker = true
}

func (g *Guard) CircuitBreakerTripped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.circuitBreaker
}

// SetDailyPnL records the day's realized P&L and trips the circuit breaker
// if it breaches the configured daily loss limit.
func (g *Guard) SetDailyPnL(now time.Time, usd float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyIfRolled(now)
	g.dailyPnLUSD = usd
	if g.cfg.MaxDailyLossUSD > 0 && usd <= -g.cfg.MaxDailyLossUSD {
		g.circuitBreaker = true
	}
}

// RecordHedgeSent updates the cooldown clock and daily counter after an
// order is actually sent to the broker.
func (g *Guard) RecordHedgeSent(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyIfRolled(now)
	g.lastHedgeTime = now
	g.dailyHedgeCount++
}

func (g *Guard) DailyHedgeCount(now time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resetDailyIfRolled(now)
	return g.dailyHedgeCount
}

func (g *Guard) PaperTrade() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cfg.PaperTrade
}

func (g *Guard) String() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return fmt.Sprintf("ExecutionGuard(dailyCount=%d circuitBreaker=%v pnl=%.2f)", g.dailyHedgeCount, g.circuitBreaker, g.dailyPnLUSD)
}
