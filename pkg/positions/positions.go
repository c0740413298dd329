// Package positions turns raw broker position rows into option legs and
// derives portfolio delta/gamma, grounded on original_source's
// src/positions/portfolio.py.
package positions

import (
	"strconv"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/pricing"
	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
)

// OptionLeg is one filtered option position, per spec.md §3.4.
type OptionLeg struct {
	Symbol     string
	Expiry     string // YYYYMMDD
	Strike     float64
	Right      pricing.Right
	Quantity   float64 // signed; long > 0
	Multiplier float64 // default 100
}

// dte returns whole days to expiry from a YYYYMMDD string, or -1 if the
// string does not parse, matching original_source's _dte.
func dte(expiry string, now time.Time) int {
	t, err := time.Parse("20060102", expiry)
	if err != nil {
		return -1
	}
	return int(t.UTC().Sub(now.UTC()).Hours() / 24)
}

func yearsToExpiry(expiry string, now time.Time) float64 {
	t, err := time.Parse("20060102", expiry)
	if err != nil {
		return 0
	}
	days := t.UTC().Sub(now.UTC()).Hours() / 24
	if days < 0 {
		return 0
	}
	return days / 365.0
}

func isNearATM(strike, spot, atmBandPct float64) bool {
	if spot <= 0 {
		return false
	}
	diff := strike - spot
	if diff < 0 {
		diff = -diff
	}
	return diff/spot <= atmBandPct
}

// Filters bundles the structural gates from spec.md §6.2
// gates.strategy.structure.*.
type Filters struct {
	Symbol     string
	MinDTE     int
	MaxDTE     int
	AtmBandPct float64
}

// ParsePositions filters raw position rows into stock shares and a list of
// in-scope option legs, applying the DTE range and ATM-band filters from
// spec.md §4.6 step 1.
func ParsePositions(rows []runtimestore.PositionRow, f Filters, spot float64, now time.Time) (legs []OptionLeg, stockShares float64) {
	for _, r := range rows {
		switch r.SecType {
		case "STK":
			if r.Symbol == f.Symbol {
				stockShares += r.Quantity
			}
		case "OPT":
			if r.Symbol != f.Symbol {
				continue
			}
			d := dte(r.Expiry, now)
			if d < f.MinDTE || d > f.MaxDTE {
				continue
			}
			if spot > 0 && !isNearATM(r.Strike, spot, f.AtmBandPct) {
				continue
			}
			mult := r.Multiplier
			if mult == 0 {
				mult = 100
			}
			legs = append(legs, OptionLeg{
				Symbol:     r.Symbol,
				Expiry:     r.Expiry,
				Strike:     r.Strike,
				Right:      pricing.Right(r.Right),
				Quantity:   r.Quantity,
				Multiplier: mult,
			})
		}
	}
	return legs, stockShares
}

// GreeksParams bundles the Black-Scholes inputs from spec.md §6.2
// greeks.{risk_free_rate, volatility}.
type GreeksParams struct {
	RiskFreeRate float64
	Volatility   float64
}

// PortfolioDelta sums the stock position plus each leg's
// qty * multiplier * per-share delta, in share-equivalents.
func PortfolioDelta(legs []OptionLeg, stockShares, spot float64, gp GreeksParams, now time.Time) float64 {
	total := stockShares
	for _, leg := range legs {
		years := yearsToExpiry(leg.Expiry, now)
		d := pricing.Delta(spot, leg.Strike, years, gp.RiskFreeRate, gp.Volatility, leg.Right)
		total += leg.Quantity * leg.Multiplier * d
	}
	return total
}

// PortfolioGamma sums each leg's qty * multiplier * per-share gamma.
func PortfolioGamma(legs []OptionLeg, spot float64, gp GreeksParams, now time.Time) float64 {
	var total float64
	for _, leg := range legs {
		years := yearsToExpiry(leg.Expiry, now)
		g := pricing.Gamma(spot, leg.Strike, years, gp.RiskFreeRate, gp.Volatility)
		total += leg.Quantity * leg.Multiplier * g
	}
	return total
}

// ParseStrike is a small helper for broker adapters that report strike as a
// string; unparseable input yields 0.
func ParseStrike(s string) float64 {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
