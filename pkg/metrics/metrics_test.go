package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSetActiveStateSetsOnlyTheActiveLabelToOne(t *testing.T) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_fsm_state"}, []string{"state"})
	labels := []string{"idle", "armed", "monitor"}

	SetActiveState(vec, labels, "armed")

	if got := testutil.ToFloat64(vec.WithLabelValues("armed")); got != 1.0 {
		t.Errorf("armed = %v, want 1", got)
	}
	if got := testutil.ToFloat64(vec.WithLabelValues("idle")); got != 0.0 {
		t.Errorf("idle = %v, want 0", got)
	}
	if got := testutil.ToFloat64(vec.WithLabelValues("monitor")); got != 0.0 {
		t.Errorf("monitor = %v, want 0", got)
	}
}

func TestSetActiveStateReassignsOnSubsequentCalls(t *testing.T) {
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "test_fsm_state_2"}, []string{"state"})
	labels := []string{"connecting", "connected", "running"}

	SetActiveState(vec, labels, "connecting")
	SetActiveState(vec, labels, "running")

	if got := testutil.ToFloat64(vec.WithLabelValues("connecting")); got != 0.0 {
		t.Errorf("connecting = %v, want 0 after moving to running", got)
	}
	if got := testutil.ToFloat64(vec.WithLabelValues("running")); got != 1.0 {
		t.Errorf("running = %v, want 1", got)
	}
}

func TestHandlerReturnsNonNil(t *testing.T) {
	if Handler() == nil {
		t.Fatal("Handler() returned nil")
	}
}
