package snapshot

import (
	"testing"

	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
)

func TestDefaultSnapshotIsSafe(t *testing.T) {
	s := DefaultSnapshot()
	if s.O != stateenum.ONone || s.D != stateenum.DInBand || s.M != stateenum.MNormal {
		t.Fatalf("unexpected default snapshot: %+v", s)
	}
	if s.L != stateenum.LNoQuote || s.E != stateenum.EIdle || s.S != stateenum.SOk {
		t.Fatalf("unexpected default snapshot: %+v", s)
	}
	if s.GreeksValid() {
		t.Error("default snapshot should not have valid greeks")
	}
}

func TestUpdateReturnsNewValueWithoutMutatingReceiver(t *testing.T) {
	s := DefaultSnapshot()
	next := s.Update(map[string]interface{}{"net_delta": 12.5, "D": stateenum.DMinor})

	if s.NetDelta != 0 || s.D != stateenum.DInBand {
		t.Fatalf("receiver was mutated: %+v", s)
	}
	if next.NetDelta != 12.5 || next.D != stateenum.DMinor {
		t.Fatalf("update did not apply: %+v", next)
	}
}

func TestUpdateIgnoresUnknownKeys(t *testing.T) {
	s := DefaultSnapshot()
	next := s.Update(map[string]interface{}{"bogus_field": 1})
	if next != s {
		t.Errorf("unknown key should leave snapshot unchanged, got %+v", next)
	}
}

func TestFromCompositeCarriesGreeksValidity(t *testing.T) {
	cs := CompositeState{GreeksValid: true, OptionDelta: 42, NetDelta: 10}
	s := FromComposite(cs)
	if !s.GreeksValid() {
		t.Fatal("expected GreeksValid() true when CompositeState.GreeksValid is set")
	}
	if s.Greeks.Delta != 42 {
		t.Errorf("Greeks.Delta = %v, want 42", s.Greeks.Delta)
	}

	csInvalid := CompositeState{GreeksValid: false}
	sInvalid := FromComposite(csInvalid)
	if sInvalid.GreeksValid() || sInvalid.Greeks != nil {
		t.Errorf("expected nil/invalid greeks when CompositeState.GreeksValid is false, got %+v", sInvalid)
	}
}

func TestSpreadAndDataLagAliases(t *testing.T) {
	s := StateSnapshot{SpreadPct: 0.01, EventLagMs: 250}
	if s.Spread() != 0.01 {
		t.Errorf("Spread() = %v, want 0.01", s.Spread())
	}
	if s.DataLagMs() != 250 {
		t.Errorf("DataLagMs() = %v, want 250", s.DataLagMs())
	}
}

func TestCompositeUpdateDoesNotMutateReceiver(t *testing.T) {
	cs := CompositeState{NetDelta: 1}
	next := cs.Update(map[string]interface{}{"net_delta": 99.0})
	if cs.NetDelta != 1 {
		t.Fatalf("receiver mutated: %+v", cs)
	}
	if next.NetDelta != 99 {
		t.Fatalf("update not applied: %+v", next)
	}
}
