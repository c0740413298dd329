package pgsink

import (
	"errors"
	"math"
	"testing"
)

func TestContractKeyOption(t *testing.T) {
	p := AccountPosition{Symbol: "SPY", SecType: "OPT", Expiry: "20240119", Strike: 450, Right: "C"}
	got := contractKey(p)
	want := "SPY|OPT|20240119|450|C"
	if got != want {
		t.Errorf("contractKey() = %q, want %q", got, want)
	}
}

func TestContractKeyStock(t *testing.T) {
	p := AccountPosition{Symbol: "SPY", SecType: "STK"}
	got := contractKey(p)
	want := "SPY|STK|||"
	if got != want {
		t.Errorf("contractKey() = %q, want %q", got, want)
	}
}

func TestContractKeyDistinguishesStrikesAndRights(t *testing.T) {
	callKey := contractKey(AccountPosition{Symbol: "SPY", SecType: "OPT", Expiry: "20240119", Strike: 450, Right: "C"})
	putKey := contractKey(AccountPosition{Symbol: "SPY", SecType: "OPT", Expiry: "20240119", Strike: 450, Right: "P"})
	otherStrike := contractKey(AccountPosition{Symbol: "SPY", SecType: "OPT", Expiry: "20240119", Strike: 460, Right: "C"})
	if callKey == putKey {
		t.Error("different option rights should produce different contract keys")
	}
	if callKey == otherStrike {
		t.Error("different strikes should produce different contract keys")
	}
}

func TestIsLockTimeoutErr(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("some unrelated failure"), false},
		{errors.New("ERROR: canceling statement due to lock timeout (SQLSTATE 55P03)"), true},
		{errors.New("lock timeout exceeded"), true},
	}
	for _, c := range cases {
		if got := isLockTimeoutErr(c.err); got != c.want {
			t.Errorf("isLockTimeoutErr(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestContains(t *testing.T) {
	if !contains("hello world", "lo wo") {
		t.Error("expected substring match")
	}
	if contains("hello", "world") {
		t.Error("expected no match")
	}
	if !contains("abc", "") {
		t.Error("empty substring should always match")
	}
	if contains("ab", "abc") {
		t.Error("substring longer than s should not match")
	}
}

func TestJSONSafeFloat(t *testing.T) {
	if got := jsonSafeFloat(1.5); got == nil || *got != 1.5 {
		t.Errorf("jsonSafeFloat(1.5) = %v, want pointer to 1.5", got)
	}
	if got := jsonSafeFloat(math.NaN()); got != nil {
		t.Errorf("jsonSafeFloat(NaN) = %v, want nil", got)
	}
	if got := jsonSafeFloat(math.Inf(1)); got != nil {
		t.Errorf("jsonSafeFloat(+Inf) = %v, want nil", got)
	}
	if got := jsonSafeFloat(math.Inf(-1)); got != nil {
		t.Errorf("jsonSafeFloat(-Inf) = %v, want nil", got)
	}
}

func TestConfigConnString(t *testing.T) {
	cfg := Config{Host: "db.internal", Port: 5432, Database: "bifrost", User: "bifrost", Password: "secret"}
	got := cfg.connString()
	want := "host=db.internal port=5432 dbname=bifrost user=bifrost password=secret connect_timeout=10"
	if got != want {
		t.Errorf("connString() = %q, want %q", got, want)
	}
}

func TestDaemonLockTablesContainsExpectedTables(t *testing.T) {
	want := map[string]bool{"daemon_heartbeat": true, "daemon_run_status": true}
	if len(DaemonLockTables) != len(want) {
		t.Fatalf("DaemonLockTables = %v, want 2 entries", DaemonLockTables)
	}
	for _, tbl := range DaemonLockTables {
		if !want[tbl] {
			t.Errorf("unexpected table %q in DaemonLockTables", tbl)
		}
	}
}
