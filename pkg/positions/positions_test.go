package positions

import (
	"testing"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
)

func mkRows(now time.Time) []runtimestore.PositionRow {
	farExpiry := now.AddDate(0, 0, 30).Format("20060102")
	tooSoon := now.AddDate(0, 0, 1).Format("20060102")
	tooFar := now.AddDate(0, 0, 400).Format("20060102")
	return []runtimestore.PositionRow{
		{Symbol: "SPY", SecType: "STK", Quantity: 150},
		{Symbol: "OTHER", SecType: "STK", Quantity: 999},
		{Symbol: "SPY", SecType: "OPT", Expiry: farExpiry, Strike: 500, Right: "C", Quantity: -2, Multiplier: 100},
		{Symbol: "SPY", SecType: "OPT", Expiry: tooSoon, Strike: 500, Right: "C", Quantity: 5},
		{Symbol: "SPY", SecType: "OPT", Expiry: tooFar, Strike: 500, Right: "C", Quantity: 5},
		{Symbol: "SPY", SecType: "OPT", Expiry: farExpiry, Strike: 800, Right: "C", Quantity: 5},
		{Symbol: "OTHER", SecType: "OPT", Expiry: farExpiry, Strike: 500, Right: "C", Quantity: 5},
	}
}

func TestParsePositionsFiltersBySymbolDTEAndATMBand(t *testing.T) {
	now := time.Now()
	f := Filters{Symbol: "SPY", MinDTE: 5, MaxDTE: 60, AtmBandPct: 0.1}
	legs, stock := ParsePositions(mkRows(now), f, 500, now)

	if stock != 150 {
		t.Errorf("stock shares = %v, want 150 (other symbol's STK row excluded)", stock)
	}
	if len(legs) != 1 {
		t.Fatalf("legs = %d, want 1 (only the in-DTE-range, near-ATM, SPY leg survives), got %+v", len(legs), legs)
	}
	if legs[0].Strike != 500 || legs[0].Quantity != -2 {
		t.Errorf("unexpected surviving leg: %+v", legs[0])
	}
}

func TestParsePositionsDefaultsMultiplierTo100(t *testing.T) {
	now := time.Now()
	farExpiry := now.AddDate(0, 0, 30).Format("20060102")
	rows := []runtimestore.PositionRow{
		{Symbol: "SPY", SecType: "OPT", Expiry: farExpiry, Strike: 500, Right: "C", Quantity: 1, Multiplier: 0},
	}
	f := Filters{Symbol: "SPY", MinDTE: 0, MaxDTE: 60, AtmBandPct: 0.5}
	legs, _ := ParsePositions(rows, f, 500, now)
	if len(legs) != 1 || legs[0].Multiplier != 100 {
		t.Fatalf("expected default multiplier 100, got %+v", legs)
	}
}

func TestParsePositionsSkipsATMFilterWhenSpotUnknown(t *testing.T) {
	now := time.Now()
	farExpiry := now.AddDate(0, 0, 30).Format("20060102")
	rows := []runtimestore.PositionRow{
		{Symbol: "SPY", SecType: "OPT", Expiry: farExpiry, Strike: 5000, Right: "C", Quantity: 1, Multiplier: 100},
	}
	f := Filters{Symbol: "SPY", MinDTE: 0, MaxDTE: 60, AtmBandPct: 0.01}
	legs, _ := ParsePositions(rows, f, 0, now)
	if len(legs) != 1 {
		t.Fatalf("expected ATM filter to be skipped when spot<=0, got %+v", legs)
	}
}

func TestPortfolioDeltaIncludesStockAndWeightedLegDeltas(t *testing.T) {
	now := time.Now()
	farExpiry := now.AddDate(0, 0, 30).Format("20060102")
	legs := []OptionLeg{
		{Symbol: "SPY", Expiry: farExpiry, Strike: 500, Right: "C", Quantity: -2, Multiplier: 100},
	}
	gp := GreeksParams{RiskFreeRate: 0.01, Volatility: 0.2}
	total := PortfolioDelta(legs, 150, 500, gp, now)
	// -2 contracts * 100 multiplier * ~0.5 delta ~= -100, plus 150 stock ~= 50
	if total > 100 || total < 0 {
		t.Errorf("portfolio delta = %v, want roughly in [0,100]", total)
	}
}

func TestPortfolioGammaIsPositiveForLongOptions(t *testing.T) {
	now := time.Now()
	farExpiry := now.AddDate(0, 0, 30).Format("20060102")
	legs := []OptionLeg{
		{Symbol: "SPY", Expiry: farExpiry, Strike: 500, Right: "C", Quantity: 2, Multiplier: 100},
	}
	gp := GreeksParams{RiskFreeRate: 0.01, Volatility: 0.2}
	g := PortfolioGamma(legs, 500, gp, now)
	if g <= 0 {
		t.Errorf("portfolio gamma = %v, want > 0 for long calls", g)
	}
}

func TestParseStrikeInvalidYieldsZero(t *testing.T) {
	if v := ParseStrike("not-a-number"); v != 0 {
		t.Errorf("ParseStrike(invalid) = %v, want 0", v)
	}
	if v := ParseStrike("123.5"); v != 123.5 {
		t.Errorf("ParseStrike(123.5) = %v, want 123.5", v)
	}
}
