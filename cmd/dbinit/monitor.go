package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
)

const dataLagThresholdMs = 5000.0

// monitorServer is the read-only counterpart to pkg/httpapi, grounded on
// original_source's servers/app.py + servers/self_check.py. It runs as a
// separate process from the trading daemon and only ever reads the
// Postgres tables the daemon writes.
type monitorServer struct {
	srv  *http.Server
	sink *pgsink.Sink
}

func newMonitorServer(addr string, sink *pgsink.Sink) *monitorServer {
	m := &monitorServer{sink: sink}
	mux := http.NewServeMux()
	mux.HandleFunc("/", m.handleRoot)
	mux.HandleFunc("/status", m.handleStatus)
	mux.HandleFunc("/operations", m.handleOperations)
	m.srv = &http.Server{Addr: addr, Handler: mux}
	return m
}

func (m *monitorServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[dbinit] encode response: %v", err)
	}
}

func (m *monitorServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html><head><title>hedge-daemon monitor</title></head>
<body style="font-family:system-ui;padding:1rem;">
<p><strong>hedge-daemon monitoring API</strong> — read-only, runs on a separate host from the trading daemon.</p>
<p><a href="/status">/status</a> &middot; <a href="/operations">/operations</a></p>
</body></html>`))
}

func (m *monitorServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	snap, err := m.sink.ReadStatusCurrent(ctx)
	if err != nil {
		log.Printf("[dbinit] get_status failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"self_check":        "blocked",
			"block_reasons":     []string{"status_read_error"},
			"status_lamp":       "red",
			"trading_suspended": false,
			"status":            nil,
		})
		return
	}

	suspended, _, err := m.sink.PollRunStatus(ctx)
	if err != nil {
		suspended = false
	}

	sc, reasons, lamp := deriveSelfCheck(snap, suspended)
	accounts, err := m.sink.ReadAccounts(ctx)
	if err != nil {
		accounts = nil
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"self_check":        sc,
		"block_reasons":     reasons,
		"status_lamp":       lamp,
		"trading_suspended": suspended,
		"status":            snap,
		"accounts":          accounts,
	})
}

// deriveSelfCheck ports original_source's derive_self_check: it looks at
// the most recent status_current row, not live daemon state (that version
// lives in pkg/daemon for the daemon's own /status endpoint).
func deriveSelfCheck(snap pgsink.Snapshot, suspended bool) (selfCheck string, reasons []string, lamp string) {
	daemonState := strings.ToUpper(strings.TrimSpace(snap.DaemonState))
	if daemonState != "RUNNING" && daemonState != "RUNNING_SUSPENDED" {
		return "blocked", []string{"daemon_not_running"}, "red"
	}

	if suspended || daemonState == "RUNNING_SUSPENDED" {
		return "degraded", []string{"trading_suspended"}, "yellow"
	}

	if snap.DataLagMs > dataLagThresholdMs {
		return "degraded", []string{"data_stale"}, "yellow"
	}

	tradingState := strings.ToUpper(strings.TrimSpace(snap.TradingState))
	switch tradingState {
	case "PAUSE_COST", "RISK_HALT", "STALE", "FORCE_HEDGE":
		return "degraded", []string{"trading_state_" + strings.ToLower(tradingState)}, "yellow"
	}

	return "ok", []string{}, "green"
}

func (m *monitorServer) handleOperations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	q := r.URL.Query()
	var sinceTS, untilTS *float64
	if v := q.Get("since_ts"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			sinceTS = &f
		}
	}
	if v := q.Get("until_ts"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			untilTS = &f
		}
	}
	var opType *string
	if v := q.Get("type"); v != "" {
		opType = &v
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 && n <= 1000 {
			limit = n
		}
	}

	ops, err := m.sink.ReadOperations(ctx, sinceTS, untilTS, opType, limit)
	if err != nil {
		log.Printf("[dbinit] get_operations failed: %v", err)
		writeJSON(w, http.StatusOK, map[string]interface{}{"operations": []pgsink.OperationRecord{}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": ops})
}
