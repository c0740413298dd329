package tradingfsm

import "testing"

func TestStartMovesBootToSync(t *testing.T) {
	f := New(nil)
	if !f.ApplyTransition(Start, nil) || f.State() != Sync {
		t.Fatalf("state = %v, want SYNC", f.State())
	}
}

func TestSafetyOverrideFiresFromAnyState(t *testing.T) {
	f := New(nil)
	f.ApplyTransition(Start, nil) // -> SYNC
	if !f.ApplyTransition(Synced, map[string]bool{"broker_down": true}) {
		t.Fatal("expected safety override transition to succeed")
	}
	if f.State() != Safe {
		t.Fatalf("state = %v, want SAFE on broker_down", f.State())
	}
}

func TestSafetyOverrideNoOpWhenAlreadySafe(t *testing.T) {
	f := &FSM{state: Safe}
	if ok := f.ApplyTransition(Tick, map[string]bool{"data_stale": true}); ok {
		t.Error("expected no-op transition when already SAFE and a safety guard is set")
	}
}

func TestShutdownNeverTransitions(t *testing.T) {
	f := New(nil)
	f.ApplyTransition(Start, nil)
	if f.ApplyTransition(Shutdown, map[string]bool{}) {
		t.Error("SHUTDOWN event should never produce a transition in this FSM")
	}
}

func syncedFSM() *FSM {
	f := New(nil)
	f.ApplyTransition(Start, nil)
	return f
}

func TestSyncToIdleRequiresPositionsAndDataOK(t *testing.T) {
	f := syncedFSM()
	if f.ApplyTransition(Synced, map[string]bool{"positions_ok": false, "data_ok": true}) {
		t.Fatal("should not move to IDLE without positions_ok")
	}
	if !f.ApplyTransition(Synced, map[string]bool{"positions_ok": true, "data_ok": true}) || f.State() != Idle {
		t.Fatalf("state = %v, want IDLE", f.State())
	}
}

func TestSyncFallsBackToSafeOnBadData(t *testing.T) {
	f := syncedFSM()
	if !f.ApplyTransition(Synced, map[string]bool{"data_ok": false}) || f.State() != Safe {
		t.Fatalf("state = %v, want SAFE", f.State())
	}
}

func idleFSM() *FSM {
	f := syncedFSM()
	f.ApplyTransition(Synced, map[string]bool{"positions_ok": true, "data_ok": true})
	return f
}

func TestIdleToArmedRequiresOptionPositionAndStrategyEnabled(t *testing.T) {
	f := idleFSM()
	if f.ApplyTransition(Tick, map[string]bool{"option_position": true, "strategy_enabled": false}) {
		t.Fatal("should not arm without strategy_enabled")
	}
	if !f.ApplyTransition(Tick, map[string]bool{"option_position": true, "strategy_enabled": true}) || f.State() != Armed {
		t.Fatalf("state = %v, want ARMED", f.State())
	}
}

func armedFSM() *FSM {
	f := idleFSM()
	f.ApplyTransition(Tick, map[string]bool{"option_position": true, "strategy_enabled": true})
	return f
}

func TestArmedToMonitorRequiresDeltaBandReady(t *testing.T) {
	f := armedFSM()
	if f.ApplyTransition(Tick, map[string]bool{"delta_band_ready": false}) {
		t.Fatal("should not move to MONITOR without delta_band_ready")
	}
	if !f.ApplyTransition(Tick, map[string]bool{"delta_band_ready": true}) || f.State() != Monitor {
		t.Fatalf("state = %v, want MONITOR", f.State())
	}
}

func monitorFSM() *FSM {
	f := armedFSM()
	f.ApplyTransition(Tick, map[string]bool{"delta_band_ready": true})
	return f
}

func TestMonitorBranches(t *testing.T) {
	t.Run("in_no_trade_band -> NO_TRADE", func(t *testing.T) {
		f := monitorFSM()
		if !f.ApplyTransition(Tick, map[string]bool{"in_no_trade_band": true}) || f.State() != NoTrade {
			t.Fatalf("state = %v, want NO_TRADE", f.State())
		}
	})
	t.Run("out_of_band+cost_ok+liquidity_ok -> NEED_HEDGE", func(t *testing.T) {
		f := monitorFSM()
		g := map[string]bool{"out_of_band": true, "cost_ok": true, "liquidity_ok": true}
		if !f.ApplyTransition(Tick, g) || f.State() != NeedHedge {
			t.Fatalf("state = %v, want NEED_HEDGE", f.State())
		}
	})
	t.Run("out_of_band+!cost_ok -> PAUSE_COST", func(t *testing.T) {
		f := monitorFSM()
		g := map[string]bool{"out_of_band": true, "cost_ok": false, "liquidity_ok": true}
		if !f.ApplyTransition(Tick, g) || f.State() != PauseCost {
			t.Fatalf("state = %v, want PAUSE_COST", f.State())
		}
	})
	t.Run("out_of_band+!liquidity_ok -> PAUSE_LIQ", func(t *testing.T) {
		f := monitorFSM()
		g := map[string]bool{"out_of_band": true, "cost_ok": true, "liquidity_ok": false}
		if !f.ApplyTransition(Tick, g) || f.State() != PauseLiq {
			t.Fatalf("state = %v, want PAUSE_LIQ", f.State())
		}
	})
}

func TestNeedHedgeToHedgingOnTargetEmitted(t *testing.T) {
	f := monitorFSM()
	f.ApplyTransition(Tick, map[string]bool{"out_of_band": true, "cost_ok": true, "liquidity_ok": true})
	if f.State() != NeedHedge {
		t.Fatalf("precondition failed: state = %v", f.State())
	}
	if !f.ApplyTransition(TargetEmitted, nil) || f.State() != Hedging {
		t.Fatalf("state = %v, want HEDGING", f.State())
	}
}

func hedgingFSM() *FSM {
	f := monitorFSM()
	f.ApplyTransition(Tick, map[string]bool{"out_of_band": true, "cost_ok": true, "liquidity_ok": true})
	f.ApplyTransition(TargetEmitted, nil)
	return f
}

func TestHedgeDoneReturnsToMonitor(t *testing.T) {
	f := hedgingFSM()
	if !f.ApplyTransition(HedgeDone, nil) || f.State() != Monitor {
		t.Fatalf("state = %v, want MONITOR", f.State())
	}
}

func TestHedgeFailedRetriesOrGivesUp(t *testing.T) {
	f := hedgingFSM()
	if !f.ApplyTransition(HedgeFailed, map[string]bool{"retry_allowed": true}) || f.State() != NeedHedge {
		t.Fatalf("state = %v, want NEED_HEDGE on retryable failure", f.State())
	}

	g := hedgingFSM()
	if !g.ApplyTransition(HedgeFailed, map[string]bool{"retry_allowed": false}) || g.State() != Safe {
		t.Fatalf("state = %v, want SAFE when retries are exhausted", g.State())
	}
}

func TestSafeRecoversOnManualResumeOrBrokerUp(t *testing.T) {
	f := &FSM{state: Safe}
	if f.ApplyTransition(ManualResume, map[string]bool{"broker_up": false, "data_ok": true}) {
		t.Error("should not recover without broker_up")
	}
	if !f.ApplyTransition(ManualResume, map[string]bool{"broker_up": true, "data_ok": true}) || f.State() != Sync {
		t.Fatalf("state = %v, want SYNC after manual resume", f.State())
	}

	g := &FSM{state: Safe}
	if !g.ApplyTransition(BrokerUp, map[string]bool{"data_ok": true}) || g.State() != Sync {
		t.Fatalf("state = %v, want SYNC after broker_up event", g.State())
	}
}

func TestApplyTransitionLeavesStateUnchangedOnNoMatch(t *testing.T) {
	f := New(nil)
	before := f.State()
	if f.ApplyTransition(HedgeDone, nil) {
		t.Error("HEDGE_DONE from BOOT should not be a valid transition")
	}
	if f.State() != before {
		t.Errorf("state changed despite invalid transition: %v", f.State())
	}
}
