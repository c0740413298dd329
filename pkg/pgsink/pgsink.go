// Package pgsink persists daemon state and operation history to Postgres
// and mediates the DB-based control channel, grounded on original_source's
// src/sink/postgres_sink.py and src/sink/base.py. It replaces the
// teacher's direct-field Postgres access idiom (pkg/config lock_timeout
// handling was learned from grepping the pack for psycopg2-equivalent
// Go patterns) with jackc/pgx/v5, the only Postgres driver with any
// presence across the retrieval pack.
package pgsink

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Snapshot mirrors original_source's SNAPSHOT_KEYS tuple.
type Snapshot struct {
	DaemonState      string
	TradingState     string
	Symbol           string
	Spot             float64
	Bid              float64
	Ask              float64
	NetDelta         float64
	StockPosition    int64
	OptionLegsCount  int
	DailyHedgeCount  int
	DailyPnL         float64
	DataLagMs        float64
	ConfigSummary    string
	TS               float64
}

// OperationRecord mirrors original_source's OPERATION_KEYS tuple.
type OperationRecord struct {
	TS          float64
	Type        string
	Side        string
	Quantity    int64
	Price       float64
	StateReason string
}

// AccountSnapshot is one broker account's summary plus positions, the Go
// analogue of the accounts_snapshot JSON list original_source writes
// through _sync_accounts_snapshot_to_tables.
type AccountSnapshot struct {
	AccountID      string
	NetLiquidation *float64
	TotalCash      *float64
	BuyingPower    *float64
	Positions      []AccountPosition
}

type AccountPosition struct {
	Symbol    string
	SecType   string
	Exchange  string
	Currency  string
	Position  float64
	AvgCost   float64
	Expiry    string
	Strike    float64
	Right     string
}

func contractKey(p AccountPosition) string {
	if p.SecType == "OPT" {
		return fmt.Sprintf("%s|%s|%s|%v|%s", p.Symbol, p.SecType, p.Expiry, p.Strike, p.Right)
	}
	return fmt.Sprintf("%s|%s|||", p.Symbol, p.SecType)
}

// Config holds the Postgres connection parameters, per spec.md §6.2
// status.postgres.*.
type Config struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

func (c Config) connString() string {
	return fmt.Sprintf("host=%s port=%d dbname=%s user=%s password=%s connect_timeout=10",
		c.Host, c.Port, c.Database, c.User, c.Password)
}

// DaemonLockTables are the single-row tables the daemon most commonly
// contends on across a crash/restart, per spec.md §9's side-channel
// lock-release design note. Exported so cmd/dbinit's release-locks
// subcommand can reuse the same table list outside of a failed Connect.
var DaemonLockTables = []string{"daemon_heartbeat", "daemon_run_status"}

// ControlMaxAge bounds how old an unconsumed daemon_control row may be
// before it is consumed-but-ignored, per spec.md §4.7.
const ControlMaxAge = 60 * time.Second

// Sink writes snapshots/operations and mediates the control channel over a
// pooled Postgres connection.
type Sink struct {
	cfg  Config
	pool *pgxpool.Pool
}

// Connect opens the pool, sets lock_timeout on every acquired connection,
// and ensures the schema exists. On a lock-timeout error it releases
// blocking backends once via a side-channel connection and retries, per
// spec.md §9.
func Connect(ctx context.Context, cfg Config) (*Sink, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.connString())
	if err != nil {
		return nil, fmt.Errorf("parse pg config: %w", err)
	}
	poolCfg.ConnConfig.RuntimeParams["lock_timeout"] = "5s"

	for attempt := 1; attempt <= 2; attempt++ {
		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			if attempt == 1 && isLockTimeoutErr(err) {
				n := ReleasePGLocksForTables(ctx, cfg, DaemonLockTables)
				if n > 0 {
					log.Printf("[pgsink] released %d backend(s) holding locks; retrying connect", n)
					time.Sleep(500 * time.Millisecond)
					continue
				}
			}
			return nil, fmt.Errorf("connect: %w", err)
		}
		if err := ensureTables(ctx, pool); err != nil {
			pool.Close()
			if attempt == 1 && isLockTimeoutErr(err) {
				n := ReleasePGLocksForTables(ctx, cfg, DaemonLockTables)
				if n > 0 {
					log.Printf("[pgsink] released %d backend(s) holding locks; retrying connect", n)
					time.Sleep(500 * time.Millisecond)
					continue
				}
			}
			return nil, fmt.Errorf("ensure tables: %w", err)
		}
		log.Printf("[pgsink] connected: %s@%s:%d/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)
		return &Sink{cfg: cfg, pool: pool}, nil
	}
	return nil, fmt.Errorf("connect: exhausted retries")
}

func (s *Sink) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func isLockTimeoutErr(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return contains(msg, "55P03") || contains(msg, "lock timeout") || contains(msg, "canceling statement due to lock timeout")
}

func contains(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}

// ReleasePGLocksForTables opens its own connection (never the pool, since
// the pool may itself be the thing blocked), looks up backends holding
// locks on the given table names via pg_locks/pg_stat_activity, and
// terminates them with pg_terminate_backend. It is a free function rather
// than a Sink method because it must work even when Sink.Connect itself
// has not yet succeeded.
func ReleasePGLocksForTables(ctx context.Context, cfg Config, tables []string) int {
	conn, err := pgx.Connect(ctx, cfg.connString())
	if err != nil {
		log.Printf("[pgsink] release_pg_locks_for_tables: connect failed: %v", err)
		return 0
	}
	defer conn.Close(ctx)

	myPID := conn.PgConn().PID()

	rows, err := conn.Query(ctx, `
		SELECT DISTINCT l.pid
		FROM pg_locks l
		JOIN pg_class c ON l.relation = c.oid
		JOIN pg_stat_activity a ON l.pid = a.pid
		WHERE c.relname = ANY($1)
		  AND l.pid != $2
	`, tables, myPID)
	if err != nil {
		log.Printf("[pgsink] release_pg_locks_for_tables: query failed: %v", err)
		return 0
	}
	var pids []int32
	for rows.Next() {
		var pid int32
		if err := rows.Scan(&pid); err == nil {
			pids = append(pids, pid)
		}
	}
	rows.Close()

	terminated := 0
	for _, pid := range pids {
		var ok bool
		if err := conn.QueryRow(ctx, "SELECT pg_terminate_backend($1)", pid).Scan(&ok); err == nil && ok {
			terminated++
			log.Printf("[pgsink] terminated backend pid=%d (lock on %v)", pid, tables)
		}
	}
	return terminated
}

func ensureTables(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS status_current (
			id integer PRIMARY KEY DEFAULT 1,
			daemon_state text, trading_state text, symbol text,
			spot double precision, bid double precision, ask double precision,
			net_delta double precision, stock_position integer, option_legs_count integer,
			daily_hedge_count integer, daily_pnl double precision, data_lag_ms double precision,
			config_summary text, ts double precision
		)`,
		`CREATE TABLE IF NOT EXISTS status_history (
			id bigserial PRIMARY KEY,
			daemon_state text, trading_state text, symbol text,
			spot double precision, bid double precision, ask double precision,
			net_delta double precision, stock_position integer, option_legs_count integer,
			daily_hedge_count integer, daily_pnl double precision, data_lag_ms double precision,
			config_summary text, ts double precision
		)`,
		`CREATE TABLE IF NOT EXISTS operations (
			id bigserial PRIMARY KEY, ts double precision, type text, side text,
			quantity integer, price double precision, state_reason text
		)`,
		`CREATE TABLE IF NOT EXISTS daemon_control (
			id bigserial PRIMARY KEY, command text NOT NULL,
			created_at timestamptz DEFAULT now(), consumed_at timestamptz
		)`,
		`CREATE TABLE IF NOT EXISTS daemon_run_status (
			id integer PRIMARY KEY DEFAULT 1, suspended boolean NOT NULL DEFAULT false,
			updated_at timestamptz DEFAULT now(), heartbeat_interval_sec smallint
		)`,
		`INSERT INTO daemon_run_status (id, suspended) VALUES (1, false) ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS daemon_heartbeat (
			id integer PRIMARY KEY DEFAULT 1, last_ts timestamptz NOT NULL DEFAULT now(),
			hedge_running boolean NOT NULL DEFAULT false,
			ib_connected boolean DEFAULT false, ib_client_id integer,
			next_retry_ts timestamptz, seconds_until_retry smallint,
			graceful_shutdown_at timestamptz, heartbeat_interval_sec smallint
		)`,
		`INSERT INTO daemon_heartbeat (id, last_ts, hedge_running) VALUES (1, now(), false) ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS settings (
			id integer PRIMARY KEY DEFAULT 1,
			ib_host text NOT NULL DEFAULT '127.0.0.1',
			ib_port_type text NOT NULL DEFAULT 'tws_paper'
		)`,
		`INSERT INTO settings (id, ib_host, ib_port_type) VALUES (1, '127.0.0.1', 'tws_paper') ON CONFLICT (id) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS accounts (
			account_id text PRIMARY KEY, updated_at timestamptz DEFAULT now(),
			net_liquidation double precision, total_cash double precision,
			buying_power double precision, summary_extra jsonb
		)`,
		`CREATE TABLE IF NOT EXISTS account_positions (
			account_id text NOT NULL, contract_key text NOT NULL,
			symbol text, sec_type text, exchange text, currency text,
			position double precision, avg_cost double precision,
			expiry text, strike double precision, option_right text,
			updated_at timestamptz DEFAULT now(),
			PRIMARY KEY (account_id, contract_key)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema stmt: %w", err)
		}
	}
	return nil
}

func jsonSafeFloat(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// WriteSnapshot upserts status_current (id=1) and, when appendHistory is
// set, appends one row to status_history. Account snapshots, if any, are
// synced into accounts/account_positions separately via SyncAccounts.
func (s *Sink) WriteSnapshot(ctx context.Context, snap Snapshot, appendHistory bool) error {
	const upsert = `
		INSERT INTO status_current (id, daemon_state, trading_state, symbol, spot, bid, ask,
			net_delta, stock_position, option_legs_count, daily_hedge_count, daily_pnl,
			data_lag_ms, config_summary, ts)
		VALUES (1, $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			daemon_state = EXCLUDED.daemon_state, trading_state = EXCLUDED.trading_state,
			symbol = EXCLUDED.symbol, spot = EXCLUDED.spot, bid = EXCLUDED.bid, ask = EXCLUDED.ask,
			net_delta = EXCLUDED.net_delta, stock_position = EXCLUDED.stock_position,
			option_legs_count = EXCLUDED.option_legs_count, daily_hedge_count = EXCLUDED.daily_hedge_count,
			daily_pnl = EXCLUDED.daily_pnl, data_lag_ms = EXCLUDED.data_lag_ms,
			config_summary = EXCLUDED.config_summary, ts = EXCLUDED.ts
	`
	args := []any{
		snap.DaemonState, snap.TradingState, snap.Symbol,
		jsonSafeFloat(snap.Spot), jsonSafeFloat(snap.Bid), jsonSafeFloat(snap.Ask),
		jsonSafeFloat(snap.NetDelta), snap.StockPosition, snap.OptionLegsCount,
		snap.DailyHedgeCount, jsonSafeFloat(snap.DailyPnL), jsonSafeFloat(snap.DataLagMs),
		snap.ConfigSummary, jsonSafeFloat(snap.TS),
	}
	if _, err := s.pool.Exec(ctx, upsert, args...); err != nil {
		return fmt.Errorf("write_snapshot upsert: %w", err)
	}
	if appendHistory {
		const insert = `
			INSERT INTO status_history (daemon_state, trading_state, symbol, spot, bid, ask,
				net_delta, stock_position, option_legs_count, daily_hedge_count, daily_pnl,
				data_lag_ms, config_summary, ts)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		`
		if _, err := s.pool.Exec(ctx, insert, args...); err != nil {
			return fmt.Errorf("write_snapshot history: %w", err)
		}
	}
	return nil
}

// WriteOperation appends one row to the operations audit log.
func (s *Sink) WriteOperation(ctx context.Context, rec OperationRecord) error {
	const insert = `INSERT INTO operations (ts, type, side, quantity, price, state_reason)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := s.pool.Exec(ctx, insert, jsonSafeFloat(rec.TS), rec.Type, rec.Side, rec.Quantity, jsonSafeFloat(rec.Price), rec.StateReason)
	if err != nil {
		return fmt.Errorf("write_operation: %w", err)
	}
	return nil
}

// SyncAccounts upserts accounts + account_positions by (account_id,
// contract_key) and deletes positions for an account that dropped out of
// the latest snapshot (position closed), per original_source's
// _sync_accounts_snapshot_to_tables.
func (s *Sink) SyncAccounts(ctx context.Context, accounts []AccountSnapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, acc := range accounts {
		if acc.AccountID == "" {
			continue
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO accounts (account_id, updated_at, net_liquidation, total_cash, buying_power)
			VALUES ($1, now(), $2, $3, $4)
			ON CONFLICT (account_id) DO UPDATE SET
				updated_at = now(), net_liquidation = EXCLUDED.net_liquidation,
				total_cash = EXCLUDED.total_cash, buying_power = EXCLUDED.buying_power
		`, acc.AccountID, acc.NetLiquidation, acc.TotalCash, acc.BuyingPower); err != nil {
			return fmt.Errorf("upsert account: %w", err)
		}

		var seenKeys []string
		for _, p := range acc.Positions {
			key := contractKey(p)
			seenKeys = append(seenKeys, key)
			if _, err := tx.Exec(ctx, `
				INSERT INTO account_positions (account_id, symbol, sec_type, exchange, currency,
					position, avg_cost, expiry, strike, option_right, contract_key, updated_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
				ON CONFLICT (account_id, contract_key) DO UPDATE SET
					exchange = EXCLUDED.exchange, currency = EXCLUDED.currency,
					position = EXCLUDED.position, avg_cost = EXCLUDED.avg_cost,
					expiry = EXCLUDED.expiry, strike = EXCLUDED.strike,
					option_right = EXCLUDED.option_right, updated_at = now()
			`, acc.AccountID, p.Symbol, p.SecType, p.Exchange, p.Currency, p.Position, p.AvgCost, p.Expiry, p.Strike, p.Right, key); err != nil {
				return fmt.Errorf("upsert position: %w", err)
			}
		}
		if len(seenKeys) > 0 {
			if _, err := tx.Exec(ctx, `
				DELETE FROM account_positions
				WHERE account_id = $1 AND contract_key != ALL($2::text[])
			`, acc.AccountID, seenKeys); err != nil {
				return fmt.Errorf("delete stale positions: %w", err)
			}
		} else {
			if _, err := tx.Exec(ctx, `DELETE FROM account_positions WHERE account_id = $1`, acc.AccountID); err != nil {
				return fmt.Errorf("delete all positions: %w", err)
			}
		}
	}
	return tx.Commit(ctx)
}

// PollAndConsumeControl pops the oldest unconsumed daemon_control row (at
// most one per call), marks it consumed, and returns the command verbatim
// ("stop", "flatten", "retry_ib", "refresh_accounts", or whatever else a
// caller queued) — recognizing individual commands is the daemon's job, not
// this function's. Rows older than ControlMaxAge are consumed (so the queue
// clears) but not returned, so a restarted daemon never replays a stale
// "stop" from a previous run.
func (s *Sink) PollAndConsumeControl(ctx context.Context) (string, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var id int64
	var command string
	var createdAt *time.Time
	err = tx.QueryRow(ctx, `
		SELECT id, command, created_at FROM daemon_control
		WHERE consumed_at IS NULL ORDER BY id ASC LIMIT 1
	`).Scan(&id, &command, &createdAt)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("poll_and_consume_control query: %w", err)
	}

	cmd := command

	if _, err := tx.Exec(ctx, `UPDATE daemon_control SET consumed_at = now() WHERE id = $1`, id); err != nil {
		return "", fmt.Errorf("consume control: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	if createdAt == nil || time.Since(*createdAt) > ControlMaxAge {
		log.Printf("[pgsink] consumed stale control command id=%d: %s (not executed)", id, cmd)
		return "", nil
	}
	log.Printf("[pgsink] consumed control command id=%d: %s", id, cmd)
	return cmd, nil
}

// WriteDaemonHeartbeat updates the single daemon_heartbeat row.
func (s *Sink) WriteDaemonHeartbeat(ctx context.Context, hedgeRunning, ibConnected bool, ibClientID *int, nextRetryTS *float64, secondsUntilRetry *int, heartbeatIntervalSec *int) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE daemon_heartbeat
		SET last_ts = now(), hedge_running = $1, ib_connected = $2, ib_client_id = $3,
			next_retry_ts = CASE WHEN $4::double precision IS NULL THEN NULL ELSE to_timestamp($4) END,
			seconds_until_retry = $5, graceful_shutdown_at = NULL, heartbeat_interval_sec = $6
		WHERE id = 1
	`, hedgeRunning, ibConnected, ibClientID, nextRetryTS, secondsUntilRetry, heartbeatIntervalSec)
	if err != nil {
		return fmt.Errorf("write_daemon_heartbeat: %w", err)
	}
	return nil
}

// GetLastIBClientID reads daemon_heartbeat.ib_client_id, used at startup to
// pick the next client_id (last+1) and avoid "client id in use" after a
// crash restart.
func (s *Sink) GetLastIBClientID(ctx context.Context) (*int, error) {
	var id *int
	err := s.pool.QueryRow(ctx, `SELECT ib_client_id FROM daemon_heartbeat WHERE id = 1`).Scan(&id)
	if err != nil {
		return nil, fmt.Errorf("get_last_ib_client_id: %w", err)
	}
	return id, nil
}

// IBConnectionConfig is what GetIBConnectionConfig resolves from settings.
type IBConnectionConfig struct {
	Host     string
	PortType string
	Port     int
}

var ibPortTypeToPort = map[string]int{
	"tws_live":  7496,
	"tws_paper": 7497,
	"gateway":   4002,
}

// GetIBConnectionConfig reads settings (id=1) so the daemon can connect to
// IB using operator-set host/port-type even when it differs from the
// config file. It returns nil, nil when the row has no host, and an error
// when the row cannot be read; it does not read the config file itself.
func (s *Sink) GetIBConnectionConfig(ctx context.Context) (*IBConnectionConfig, error) {
	var host, portType *string
	err := s.pool.QueryRow(ctx, `SELECT ib_host, ib_port_type FROM settings WHERE id = 1`).Scan(&host, &portType)
	if err != nil {
		return nil, fmt.Errorf("get_ib_connection_config: %w", err)
	}
	if host == nil || *host == "" {
		return nil, nil
	}
	pt := "tws_paper"
	if portType != nil && *portType != "" {
		pt = *portType
	}
	port, ok := ibPortTypeToPort[pt]
	if !ok {
		port = 7497
	}
	return &IBConnectionConfig{Host: *host, PortType: pt, Port: port}, nil
}

// WriteDaemonGracefulShutdown marks graceful_shutdown_at and clears
// ib_client_id so the next start uses client_id=1. Only called on
// SIGTERM/SIGINT or after consuming a "stop" control command, never on
// SIGKILL.
func (s *Sink) WriteDaemonGracefulShutdown(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE daemon_heartbeat
		SET graceful_shutdown_at = now(), last_ts = now(), ib_client_id = NULL
		WHERE id = 1
	`)
	if err != nil {
		return fmt.Errorf("write_daemon_graceful_shutdown: %w", err)
	}
	log.Printf("[pgsink] wrote graceful shutdown marker")
	return nil
}

// WriteControlCommand inserts one row into daemon_control for the daemon to
// pick up on its next poll, per spec.md §4.7.
func (s *Sink) WriteControlCommand(ctx context.Context, command string) error {
	_, err := s.pool.Exec(ctx, `INSERT INTO daemon_control (command) VALUES ($1)`, command)
	if err != nil {
		return fmt.Errorf("write_control_command: %w", err)
	}
	return nil
}

// WriteRunStatus sets daemon_run_status.suspended.
func (s *Sink) WriteRunStatus(ctx context.Context, suspended bool) error {
	_, err := s.pool.Exec(ctx, `UPDATE daemon_run_status SET suspended = $1, updated_at = now() WHERE id = 1`, suspended)
	if err != nil {
		return fmt.Errorf("write_run_status: %w", err)
	}
	return nil
}

// WriteHeartbeatIntervalSec sets daemon_run_status.heartbeat_interval_sec.
func (s *Sink) WriteHeartbeatIntervalSec(ctx context.Context, sec int) error {
	_, err := s.pool.Exec(ctx, `UPDATE daemon_run_status SET heartbeat_interval_sec = $1, updated_at = now() WHERE id = 1`, sec)
	if err != nil {
		return fmt.Errorf("write_heartbeat_interval: %w", err)
	}
	return nil
}

// WriteIBConfig updates settings.ib_host/ib_port_type.
func (s *Sink) WriteIBConfig(ctx context.Context, host, portType string) error {
	_, err := s.pool.Exec(ctx, `UPDATE settings SET ib_host = $1, ib_port_type = $2 WHERE id = 1`, host, portType)
	if err != nil {
		return fmt.Errorf("write_ib_config: %w", err)
	}
	return nil
}

// PollRunStatus reads daemon_run_status (id=1): suspended halts new
// hedges; heartbeatIntervalSec, if set, overrides the config default.
func (s *Sink) PollRunStatus(ctx context.Context) (suspended bool, heartbeatIntervalSec *int, err error) {
	err = s.pool.QueryRow(ctx, `SELECT suspended, heartbeat_interval_sec FROM daemon_run_status WHERE id = 1`).Scan(&suspended, &heartbeatIntervalSec)
	if err != nil {
		return false, nil, fmt.Errorf("poll_run_status: %w", err)
	}
	return suspended, heartbeatIntervalSec, nil
}

// ReadStatusCurrent reads the single-row status_current table, the Go
// analogue of original_source's servers/reader.py status lookup. It is
// read by a separate monitoring process (cmd/dbinit serve-api), not by
// the daemon itself, mirroring the writer/reader process split in
// original_source between gs_trading.py and servers/app.py.
func (s *Sink) ReadStatusCurrent(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	row := s.pool.QueryRow(ctx, `
		SELECT daemon_state, trading_state, symbol, spot, bid, ask, net_delta,
		       stock_position, option_legs_count, daily_hedge_count, daily_pnl,
		       data_lag_ms, config_summary, ts
		FROM status_current WHERE id = 1`)
	if err := row.Scan(&snap.DaemonState, &snap.TradingState, &snap.Symbol, &snap.Spot, &snap.Bid, &snap.Ask,
		&snap.NetDelta, &snap.StockPosition, &snap.OptionLegsCount, &snap.DailyHedgeCount, &snap.DailyPnL,
		&snap.DataLagMs, &snap.ConfigSummary, &snap.TS); err != nil {
		return Snapshot{}, fmt.Errorf("read_status_current: %w", err)
	}
	return snap, nil
}

// ReadOperations returns recent rows from the operations table, newest
// first, optionally filtered by time range and type.
func (s *Sink) ReadOperations(ctx context.Context, sinceTS, untilTS *float64, opType *string, limit int) ([]OperationRecord, error) {
	query := `SELECT ts, type, side, quantity, price, state_reason FROM operations WHERE 1=1`
	args := []interface{}{}
	if sinceTS != nil {
		args = append(args, *sinceTS)
		query += fmt.Sprintf(" AND ts >= $%d", len(args))
	}
	if untilTS != nil {
		args = append(args, *untilTS)
		query += fmt.Sprintf(" AND ts <= $%d", len(args))
	}
	if opType != nil {
		args = append(args, *opType)
		query += fmt.Sprintf(" AND type = $%d", len(args))
	}
	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY ts DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("read_operations: %w", err)
	}
	defer rows.Close()

	var out []OperationRecord
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(&rec.TS, &rec.Type, &rec.Side, &rec.Quantity, &rec.Price, &rec.StateReason); err != nil {
			return nil, fmt.Errorf("read_operations scan: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ReadAccounts returns the synced broker account snapshots, the Go
// analogue of original_source's accounts_snapshot read in servers/app.py.
func (s *Sink) ReadAccounts(ctx context.Context) ([]AccountSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT account_id, net_liquidation, total_cash, buying_power FROM accounts`)
	if err != nil {
		return nil, fmt.Errorf("read_accounts: %w", err)
	}
	defer rows.Close()

	var accounts []AccountSnapshot
	for rows.Next() {
		var a AccountSnapshot
		if err := rows.Scan(&a.AccountID, &a.NetLiquidation, &a.TotalCash, &a.BuyingPower); err != nil {
			return nil, fmt.Errorf("read_accounts scan: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range accounts {
		posRows, err := s.pool.Query(ctx, `
			SELECT symbol, sec_type, exchange, currency, position, avg_cost, expiry, strike, option_right
			FROM account_positions WHERE account_id = $1`, accounts[i].AccountID)
		if err != nil {
			return nil, fmt.Errorf("read_account_positions: %w", err)
		}
		for posRows.Next() {
			var p AccountPosition
			if err := posRows.Scan(&p.Symbol, &p.SecType, &p.Exchange, &p.Currency, &p.Position, &p.AvgCost, &p.Expiry, &p.Strike, &p.Right); err != nil {
				posRows.Close()
				return nil, fmt.Errorf("read_account_positions scan: %w", err)
			}
			accounts[i].Positions = append(accounts[i].Positions, p)
		}
		posRows.Close()
	}
	return accounts, nil
}
