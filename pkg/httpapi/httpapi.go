// Package httpapi implements the status/control HTTP surface (spec.md
// §6.4), grounded on the teacher's pkg/trader/api.go net/http + ServeMux +
// JSON-response idiom and on original_source's servers/app.py route set.
package httpapi

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
)

// Response is the standard API response envelope, matching the teacher's
// pkg/trader.APIResponse shape.
type Response struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// StatusProvider is what the daemon exposes to the HTTP layer for reads;
// implemented by the orchestrator in pkg/daemon.
type StatusProvider interface {
	StatusSnapshot() map[string]interface{}
	Operations(sinceTS, untilTS *float64, opType *string, limit int) []map[string]interface{}
}

// Server is the status/control HTTP surface. Every POST /control/* route
// requires a DB control channel (sink != nil); without one they return 503,
// matching original_source's control_via_db gate.
type Server struct {
	mux     *http.ServeMux
	srv     *http.Server
	status  StatusProvider
	sink    *pgsink.Sink
}

func New(addr string, status StatusProvider, sink *pgsink.Sink) *Server {
	s := &Server{status: status, sink: sink}
	mux := http.NewServeMux()
	s.mux = mux
	s.srv = &http.Server{Addr: addr, Handler: s.loggingMiddleware(mux)}

	mux.HandleFunc("/", s.handleRoot)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/operations", s.handleOperations)
	mux.HandleFunc("/control/stop", s.handleControl("stop"))
	mux.HandleFunc("/control/flatten", s.handleControl("flatten"))
	mux.HandleFunc("/control/retry_ib", s.handleControl("retry_ib"))
	mux.HandleFunc("/control/refresh_accounts", s.handleControl("refresh_accounts"))
	mux.HandleFunc("/control/suspend", s.handleSuspend(true))
	mux.HandleFunc("/control/resume", s.handleSuspend(false))
	mux.HandleFunc("/control/set_heartbeat_interval", s.handleSetHeartbeatInterval)
	mux.HandleFunc("/config/ib", s.handleConfigIB)

	return s
}

// Handle registers an additional handler, used to mount /metrics from
// pkg/metrics without this package depending on it directly.
func (s *Server) Handle(pattern string, handler http.Handler) {
	s.mux.Handle(pattern, handler)
}

func (s *Server) ListenAndServe() error {
	log.Printf("[httpapi] listening on %s", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("[httpapi] %s %s", r.Method, r.URL.Path)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[httpapi] encode response: %v", err)
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(`<!DOCTYPE html>
<html><head><title>hedge-daemon API</title></head>
<body style="font-family:system-ui;padding:1rem;">
<p><strong>hedge-daemon API</strong> — status and control endpoints only, no built-in UI.</p>
<p><a href="/status">/status</a> &middot; <a href="/operations">/operations</a> &middot; <a href="/metrics">/metrics</a></p>
</body></html>`))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[httpapi] get_status panic: %v", rec)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"self_check": "blocked",
				"status_lamp": "red",
				"block_reasons": []string{"status_read_error"},
			})
		}
	}()
	writeJSON(w, http.StatusOK, s.status.StatusSnapshot())
}

func (s *Server) handleOperations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var sinceTS, untilTS *float64
	if v := q.Get("since_ts"); v != "" {
		if f, err := parseFloat(v); err == nil {
			sinceTS = &f
		}
	}
	if v := q.Get("until_ts"); v != "" {
		if f, err := parseFloat(v); err == nil {
			untilTS = &f
		}
	}
	var opType *string
	if v := q.Get("type"); v != "" {
		opType = &v
	}
	limit := 100
	if v := q.Get("limit"); v != "" {
		if n, err := parseInt(v); err == nil && n >= 1 && n <= 1000 {
			limit = n
		}
	}
	items := s.status.Operations(sinceTS, untilTS, opType, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"operations": items})
}

func (s *Server) requireControl(w http.ResponseWriter) bool {
	if s.sink == nil {
		writeJSON(w, http.StatusServiceUnavailable, Response{Error: "control via DB not available (status.postgres required)"})
		return false
	}
	return true
}

func (s *Server) handleControl(command string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "POST required"})
			return
		}
		if !s.requireControl(w) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := writeControlCommand(ctx, s.sink, command); err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to write control command"})
			return
		}
		writeJSON(w, http.StatusOK, Response{OK: true, Message: command + " written to daemon_control"})
	}
}

func (s *Server) handleSuspend(suspended bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "POST required"})
			return
		}
		if !s.requireControl(w) {
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := writeRunStatus(ctx, s.sink, suspended); err != nil {
			writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to set run status"})
			return
		}
		msg := "trading resumed"
		if suspended {
			msg = "trading suspended (daemon will not hedge until resume)"
		}
		writeJSON(w, http.StatusOK, Response{OK: true, Message: msg})
	}
}

func (s *Server) handleSetHeartbeatInterval(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "POST required"})
		return
	}
	if !s.requireControl(w) {
		return
	}
	var body struct {
		HeartbeatIntervalSec *int `json:"heartbeat_interval_sec"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.HeartbeatIntervalSec == nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "heartbeat_interval_sec required (5-120)"})
		return
	}
	sec := clamp(*body.HeartbeatIntervalSec, 5, 120)
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := writeHeartbeatInterval(ctx, s.sink, sec); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to set heartbeat interval"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "heartbeat_interval_sec": sec})
}

func (s *Server) handleConfigIB(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, Response{Error: "POST required"})
		return
	}
	if !s.requireControl(w) {
		return
	}
	var body struct {
		IBHost     *string `json:"ib_host"`
		IBPortType *string `json:"ib_port_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, Response{Error: "invalid body"})
		return
	}
	host := "127.0.0.1"
	if body.IBHost != nil && *body.IBHost != "" {
		host = *body.IBHost
	}
	portType := "tws_paper"
	if body.IBPortType != nil {
		switch *body.IBPortType {
		case "tws_live", "tws_paper", "gateway":
			portType = *body.IBPortType
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := writeIBConfig(ctx, s.sink, host, portType); err != nil {
		writeJSON(w, http.StatusInternalServerError, Response{Error: "failed to write ib config"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "ib_host": host, "ib_port_type": portType})
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
