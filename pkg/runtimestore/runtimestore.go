// Package runtimestore holds the one shared mutable structure in the
// process: positions, quotes, and daily hedge counters as seen by broker
// callbacks. All reads and writes are mutually excluded behind the store's
// mutex, except the price history, which is guarded by its own
// stats.TimeSeries lock, mirroring the teacher's pattern of a lock-guarded struct holding
// config-derived limits plus mutable counters (pkg/risk.RiskManager).
package runtimestore

import (
	"sync"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/stats"
)

// PositionRow is a broker-agnostic view of one reported position. Broker
// adapters translate their native position representation (struct or map)
// into a PositionRow, the Go analogue of original_source's duck-typed
// parse_positions input described in spec.md §9.
type PositionRow struct {
	Symbol     string
	SecType    string // STK, OPT
	Expiry     string // YYYYMMDD, options only
	Strike     float64
	Right      string // C, P
	Multiplier float64
	Quantity   float64 // signed
}

// Store is the thread-safe mutable runtime state described in spec.md §3.5.
type Store struct {
	mu sync.Mutex

	positions []PositionRow

	stockPosition float64

	underlyingBid float64
	underlyingAsk float64
	underlyingMid float64
	lastTickTS    float64

	lastHedgeTime  float64
	lastHedgePrice float64

	dailyHedgeCount int
	dailyHedgeDate  string
	dailyPnLUSD     float64

	priceSeries *stats.TimeSeries
}

// New creates a Store with the given bounded price-history length.
func New(historyCap int) *Store {
	if historyCap <= 0 {
		historyCap = 20
	}
	return &Store{priceSeries: stats.NewTimeSeries("underlying_mid", historyCap)}
}

// SetPositions replaces the full position list atomically.
func (s *Store) SetPositions(rows []PositionRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions = rows
}

// Positions returns a copy of the current position list.
func (s *Store) Positions() []PositionRow {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PositionRow, len(s.positions))
	copy(out, s.positions)
	return out
}

// SetStockPosition records the signed underlying share position.
func (s *Store) SetStockPosition(shares float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stockPosition = shares
}

// StockPosition returns the signed underlying share position.
func (s *Store) StockPosition() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stockPosition
}

// UpdateTicker records a bid/ask/mid update and appends to the bounded price
// history used by the Market Regime classifier.
func (s *Store) UpdateTicker(bid, ask, mid, ts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.underlyingBid = bid
	s.underlyingAsk = ask
	s.underlyingMid = mid
	s.lastTickTS = ts

	s.priceSeries.Append(mid, ts)
}

// Ticker returns the last known bid/ask/mid and the timestamp they arrived.
func (s *Store) Ticker() (bid, ask, mid, ts float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.underlyingBid, s.underlyingAsk, s.underlyingMid, s.lastTickTS
}

// PriceHistory returns a copy of the recent mid-price series, oldest first.
func (s *Store) PriceHistory() []float64 {
	return s.priceSeries.GetAll()
}

// RecordHedge stores the price/time of the most recent hedge and bumps the
// daily counter, resetting it on a new calendar day.
func (s *Store) RecordHedge(now time.Time, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := now.Format("2006-01-02")
	if s.dailyHedgeDate != today {
		s.dailyHedgeDate = today
		s.dailyHedgeCount = 0
	}
	s.dailyHedgeCount++
	s.lastHedgeTime = float64(now.Unix())
	s.lastHedgePrice = price
}

// LastHedge returns the timestamp (unix seconds) and price of the most
// recent recorded hedge.
func (s *Store) LastHedge() (ts, price float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastHedgeTime, s.lastHedgePrice
}

// DailyHedgeCount returns the hedge count for the current calendar day,
// resetting it first if the day has rolled over.
func (s *Store) DailyHedgeCount(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	today := now.Format("2006-01-02")
	if s.dailyHedgeDate != today {
		s.dailyHedgeDate = today
		s.dailyHedgeCount = 0
	}
	return s.dailyHedgeCount
}

// SetDailyPnL records the day's running P&L, used by the circuit breaker.
func (s *Store) SetDailyPnL(usd float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dailyPnLUSD = usd
}

// DailyPnL returns the day's running P&L.
func (s *Store) DailyPnL() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dailyPnLUSD
}
