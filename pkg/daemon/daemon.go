// Package daemon wires together the classifier, guards, and FSMs into the
// running process, grounded on original_source's src/app/gs_trading.py.
// Python drives everything from a single asyncio event loop with explicit
// call_soon_threadsafe scheduling; Go already has that property for a
// goroutine blocked in select, so the broker-push / main-loop-drain idiom
// from pkg/ibclient replaces the threadsafe-scheduling dance outright.
package daemon

import (
	"context"
	"log"
	"math"
	"os"
	"sync"
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/appconfig"
	"github.com/bifrosttrader/hedge-daemon/pkg/classifier"
	"github.com/bifrosttrader/hedge-daemon/pkg/daemonfsm"
	"github.com/bifrosttrader/hedge-daemon/pkg/execguard"
	"github.com/bifrosttrader/hedge-daemon/pkg/gammascalper"
	"github.com/bifrosttrader/hedge-daemon/pkg/hedgefsm"
	"github.com/bifrosttrader/hedge-daemon/pkg/ibclient"
	"github.com/bifrosttrader/hedge-daemon/pkg/metrics"
	"github.com/bifrosttrader/hedge-daemon/pkg/pgsink"
	"github.com/bifrosttrader/hedge-daemon/pkg/positions"
	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
	"github.com/bifrosttrader/hedge-daemon/pkg/snapshot"
	"github.com/bifrosttrader/hedge-daemon/pkg/stateenum"
	"github.com/bifrosttrader/hedge-daemon/pkg/tradingfsm"
	"github.com/bifrosttrader/hedge-daemon/pkg/tradingguard"
)

var tradingStateLabels = []string{
	string(tradingfsm.Boot), string(tradingfsm.Sync), string(tradingfsm.Idle),
	string(tradingfsm.Armed), string(tradingfsm.Monitor), string(tradingfsm.NoTrade),
	string(tradingfsm.NeedHedge), string(tradingfsm.PauseCost), string(tradingfsm.PauseLiq),
	string(tradingfsm.Hedging), string(tradingfsm.Safe),
}

var daemonStateLabels = []string{
	string(daemonfsm.Idle), string(daemonfsm.Connecting), string(daemonfsm.WaitingIB),
	string(daemonfsm.Connected), string(daemonfsm.Running), string(daemonfsm.RunningSuspended),
	string(daemonfsm.Stopping), string(daemonfsm.Stopped),
}

// Daemon is the single-process event-driven gamma scalping orchestrator.
type Daemon struct {
	cfgMu       sync.Mutex
	cfg         *appconfig.Config
	configPath  string
	configMTime time.Time

	symbol       string
	structure    positions.Filters
	greeksParams positions.GreeksParams
	classifierTh classifier.Thresholds
	guardCfg     tradingguard.Config
	orderType    string
	paperTrade   bool

	heartbeatInterval time.Duration
	suspended         bool

	lifecycle *daemonfsm.FSM
	trading   *tradingfsm.FSM
	hedge     *hedgefsm.FSM
	execGuard *execguard.Guard

	store  *runtimestore.Store
	broker ibclient.BrokerClient
	sink   *pgsink.Sink

	ibClientID int

	hedgeMu sync.Mutex

	statusMu        sync.Mutex
	lastCS          snapshot.CompositeState
	lastOptionLegs  int
	lastGreeksValid bool

	opsMu sync.Mutex
	ops   []map[string]interface{}

	stopCh chan struct{}
	stopOnce sync.Once
}

const opsRingCap = 2000

// New builds a Daemon from a loaded configuration. broker and sink may be
// swapped independently: sink nil disables the DB control channel and
// persistence (status/operations stay in-memory only, matching
// original_source's "reader is None" degraded mode).
func New(cfg *appconfig.Config, configPath string, broker ibclient.BrokerClient, sink *pgsink.Sink) *Daemon {
	d := &Daemon{
		configPath: configPath,
		store:      runtimestore.New(20),
		broker:     broker,
		sink:       sink,
		stopCh:     make(chan struct{}),
	}
	d.lifecycle = daemonfsm.New(nil)
	d.trading = tradingfsm.New(nil)
	d.hedge = hedgefsm.New(10, nil)
	d.applyConfig(cfg)
	if st, err := os.Stat(configPath); err == nil {
		d.configMTime = st.ModTime()
	}
	return d
}

// applyConfig derives every per-package config struct from the YAML
// config, the Go analogue of original_source's GsTrading.__init__/
// _reload_config split.
func (d *Daemon) applyConfig(cfg *appconfig.Config) {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()

	d.cfg = cfg
	d.symbol = cfg.Symbol
	d.orderType = cfg.Order.OrderType
	d.paperTrade = cfg.Gates.Guard.Risk.PaperTrade
	d.heartbeatInterval = cfg.HeartbeatInterval()

	d.structure = positions.Filters{
		Symbol:     cfg.Symbol,
		MinDTE:     cfg.Gates.Strategy.Structure.MinDTE,
		MaxDTE:     cfg.Gates.Strategy.Structure.MaxDTE,
		AtmBandPct: cfg.Gates.Strategy.Structure.AtmBandPct,
	}
	d.greeksParams = positions.GreeksParams{
		RiskFreeRate: cfg.Greeks.RiskFreeRate,
		Volatility:   cfg.Greeks.Volatility,
	}
	d.classifierTh = classifier.Thresholds{
		EpsilonBand:        cfg.Gates.State.Delta.EpsilonBand,
		HedgeThreshold:     cfg.Gates.State.Delta.HedgeThreshold,
		MaxDeltaLimit:      cfg.Gates.State.Delta.MaxDeltaLimit,
		StaleTsThresholdMs: cfg.Gates.State.Market.StaleTsThresholdMs,
		WideSpreadPct:      cfg.Gates.State.Liquidity.WideSpreadPct,
		ExtremeSpreadPct:   cfg.Gates.State.Liquidity.ExtremeSpreadPct,
		DataLagThresholdMs: cfg.Gates.State.System.DataLagThresholdMs,
	}
	d.guardCfg = tradingguard.Config{
		EpsilonBand:        cfg.Gates.State.Delta.EpsilonBand,
		HedgeThreshold:     cfg.Gates.State.Delta.HedgeThreshold,
		ExtremeSpreadPct:   cfg.Gates.State.Liquidity.ExtremeSpreadPct,
		WideSpreadPct:      cfg.Gates.State.Liquidity.WideSpreadPct,
		MaxSpreadPct:       cfg.Gates.Guard.Risk.MaxSpreadPct,
		MinPriceMovePct:    cfg.Gates.Intent.Hedge.MinPriceMovePct,
		DataLagThresholdMs: cfg.Gates.State.System.DataLagThresholdMs,
		MaxDailyHedgeCount: cfg.Gates.Guard.Risk.MaxDailyHedgeCount,
		StrategyEnabled:    cfg.StrategyEnabled(),
	}

	egCfg := execguard.Config{
		CooldownSeconds:    cfg.Gates.Intent.Hedge.CooldownSeconds,
		MaxDailyHedgeCount: cfg.Gates.Guard.Risk.MaxDailyHedgeCount,
		MaxPositionShares:  float64(cfg.Gates.Guard.Risk.MaxPositionShares),
		MaxDailyLossUSD:    cfg.Gates.Guard.Risk.MaxDailyLossUSD,
		MaxSpreadPct:       cfg.Gates.Guard.Risk.MaxSpreadPct,
		MaxNetDeltaShares:  cfg.Gates.Guard.Risk.MaxNetDeltaShares,
		MinPriceMovePct:    cfg.Gates.Intent.Hedge.MinPriceMovePct,
		EarningsDates:      cfg.Gates.Strategy.Earnings.Dates,
		BlackoutDaysBefore: cfg.Gates.Strategy.Earnings.BlackoutDaysBefore,
		BlackoutDaysAfter:  cfg.Gates.Strategy.Earnings.BlackoutDaysAfter,
		TradingHoursOnly:   cfg.Gates.Strategy.TradingHoursOnly,
		PaperTrade:         cfg.Gates.Guard.Risk.PaperTrade,
	}
	if d.execGuard == nil {
		d.execGuard = execguard.New(egCfg)
	} else {
		d.execGuard.UpdateConfig(egCfg)
	}
}

// Run drives the daemon lifecycle FSM until it reaches STOPPED.
func (d *Daemon) Run(ctx context.Context) error {
	handlers := map[daemonfsm.State]func(context.Context) daemonfsm.State{
		daemonfsm.Idle:       d.handleIdle,
		daemonfsm.Connecting: d.handleConnecting,
		daemonfsm.WaitingIB:  d.handleWaitingIB,
		daemonfsm.Connected:  d.handleConnected,
		daemonfsm.Running:    d.handleRunning,
		daemonfsm.Stopping:   d.handleStopping,
	}
	for d.lifecycle.Current() != daemonfsm.Stopped {
		cur := d.lifecycle.Current()
		h, ok := handlers[cur]
		if !ok {
			log.Printf("[daemon] no handler for state %s; stopping", cur)
			break
		}
		next := h(ctx)
		if next == d.lifecycle.Current() {
			// Stop() already moved the lifecycle to this state; run its handler next.
			continue
		}
		if !d.lifecycle.Transition(next) {
			d.lifecycle.Transition(daemonfsm.Stopped)
		}
	}
	return nil
}

// Stop requests an orderly shutdown; safe to call multiple times or
// concurrently with Run.
func (d *Daemon) Stop() {
	d.lifecycle.RequestStop()
	d.stopOnce.Do(func() { close(d.stopCh) })
}

func (d *Daemon) handleIdle(ctx context.Context) daemonfsm.State {
	return daemonfsm.Connecting
}

func (d *Daemon) handleConnecting(ctx context.Context) daemonfsm.State {
	clientID := d.cfg.IB.ClientID
	if d.sink != nil {
		if last, err := d.sink.GetLastIBClientID(ctx); err == nil && last != nil {
			clientID = *last + 1
		}
	}
	if err := d.broker.Connect(clientID); err != nil {
		log.Printf("[daemon] IB connect failed: %v", err)
		if d.lifecycle.CanTransitionTo(daemonfsm.WaitingIB) {
			return daemonfsm.WaitingIB
		}
		return daemonfsm.Stopping
	}
	d.ibClientID = clientID
	return daemonfsm.Connected
}

// handleWaitingIB retries the broker connection on ib_retry_interval_sec,
// per the RE-7 redesign: the daemon stays up and keeps retrying rather
// than exiting just because IB is unreachable at startup.
func (d *Daemon) handleWaitingIB(ctx context.Context) daemonfsm.State {
	interval := time.Duration(d.cfg.Daemon.IBRetryIntervalSec) * time.Second
	select {
	case <-ctx.Done():
		return daemonfsm.Stopping
	case <-d.stopCh:
		return daemonfsm.Stopping
	case <-time.After(interval):
	}
	return daemonfsm.Connecting
}

func (d *Daemon) handleConnected(ctx context.Context) daemonfsm.State {
	if err := d.broker.RequestPositions(); err != nil {
		log.Printf("[daemon] initial RequestPositions failed: %v", err)
	}
	d.trading.ApplyTransition(tradingfsm.Start, nil)
	return daemonfsm.Running
}

func (d *Daemon) handleRunning(ctx context.Context) daemonfsm.State {
	if err := d.broker.SubscribeTicker(d.symbol); err != nil {
		log.Printf("[daemon] SubscribeTicker failed: %v", err)
	}

	heartbeatTicker := time.NewTicker(d.getHeartbeatInterval())
	controlTicker := time.NewTicker(3 * time.Second)
	configTicker := time.NewTicker(30 * time.Second)
	defer heartbeatTicker.Stop()
	defer controlTicker.Stop()
	defer configTicker.Stop()

	log.Printf("[daemon] running (symbol=%s, paper_trade=%v, config=%s)", d.symbol, d.paperTrade, d.configPath)

	for {
		select {
		case <-ctx.Done():
			return daemonfsm.Stopping
		case <-d.stopCh:
			return daemonfsm.Stopping

		case t, ok := <-d.broker.Tickers():
			if !ok {
				return daemonfsm.Stopping
			}
			d.store.UpdateTicker(t.Bid, t.Ask, t.Mid, t.TS)
			d.maybeHedge(ctx)

		case rows, ok := <-d.broker.Positions():
			if !ok {
				return daemonfsm.Stopping
			}
			if rows != nil {
				d.store.SetPositions(rows)
			}
			d.maybeHedge(ctx)

		case ou, ok := <-d.broker.OrderUpdates():
			if !ok {
				return daemonfsm.Stopping
			}
			d.onOrderUpdate(ctx, ou)

		case <-heartbeatTicker.C:
			d.onHeartbeat(ctx)
			if newSec := d.pollControl(ctx); newSec != nil {
				heartbeatTicker.Reset(time.Duration(*newSec) * time.Second)
			}

		case <-configTicker.C:
			d.maybeReloadConfig()
		}

		if !d.lifecycle.IsRunning() {
			return daemonfsm.Stopping
		}
	}
}

func (d *Daemon) handleStopping(ctx context.Context) daemonfsm.State {
	if err := d.broker.Disconnect(); err != nil {
		log.Printf("[daemon] disconnect error: %v", err)
	}
	if d.sink != nil {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := d.sink.WriteDaemonGracefulShutdown(sctx); err != nil {
			log.Printf("[daemon] write graceful shutdown failed: %v", err)
		}
	}
	return daemonfsm.Stopped
}

func (d *Daemon) getHeartbeatInterval() time.Duration {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	if d.heartbeatInterval <= 0 {
		return 10 * time.Second
	}
	return d.heartbeatInterval
}

func (d *Daemon) isSuspended() bool {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.suspended
}

func (d *Daemon) setSuspended(v bool) {
	d.cfgMu.Lock()
	changed := d.suspended != v
	d.suspended = v
	d.cfgMu.Unlock()
	if !changed {
		return
	}
	if v {
		d.lifecycle.Transition(daemonfsm.RunningSuspended)
	} else {
		d.lifecycle.Transition(daemonfsm.Running)
	}
}

// onHeartbeat runs maybe_hedge even without a fresh tick, and refreshes the
// daemon_heartbeat row so the status server can detect staleness.
func (d *Daemon) onHeartbeat(ctx context.Context) {
	d.maybeHedge(ctx)
	if d.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := d.sink.WriteDaemonHeartbeat(sctx, d.lifecycle.IsRunning(), d.broker.IsConnected(), &d.ibClientID, nil, nil, nil); err != nil {
		log.Printf("[daemon] write heartbeat failed: %v", err)
	}
}

// pollControl drains at most one queued command and the latest
// suspend/heartbeat-interval settings. Returns the heartbeat interval in
// seconds whenever daemon_run_status has one set, else nil.
func (d *Daemon) pollControl(ctx context.Context) *int {
	if d.sink == nil {
		return nil
	}
	sctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if cmd, err := d.sink.PollAndConsumeControl(sctx); err != nil {
		log.Printf("[daemon] poll control failed: %v", err)
	} else {
		switch cmd {
		case "stop":
			log.Printf("[daemon] stop command received from daemon_control")
			d.Stop()
		case "flatten":
			log.Printf("[daemon] flatten command received (not implemented, logging only)")
		case "retry_ib":
			log.Printf("[daemon] retry_ib command received; already connected=%v", d.broker.IsConnected())
		case "refresh_accounts":
			if err := d.broker.RequestPositions(); err != nil {
				log.Printf("[daemon] refresh_accounts RequestPositions failed: %v", err)
			}
		}
	}

	suspended, hbSec, err := d.sink.PollRunStatus(sctx)
	if err != nil {
		log.Printf("[daemon] poll run status failed: %v", err)
		return nil
	}
	d.setSuspended(suspended)
	if hbSec != nil {
		d.cfgMu.Lock()
		d.heartbeatInterval = time.Duration(*hbSec) * time.Second
		d.cfgMu.Unlock()
		return hbSec
	}
	return nil
}

func (d *Daemon) maybeReloadConfig() {
	st, err := os.Stat(d.configPath)
	if err != nil {
		return
	}
	if !st.ModTime().After(d.configMTime) {
		return
	}
	cfg, err := appconfig.LoadConfig(d.configPath)
	if err != nil {
		log.Printf("[daemon] config reload failed: %v", err)
		return
	}
	d.applyConfig(cfg)
	d.configMTime = st.ModTime()
	log.Printf("[daemon] config reloaded from %s", d.configPath)
}

func (d *Daemon) onOrderUpdate(ctx context.Context, ou ibclient.OrderUpdate) {
	switch ou.Status {
	case "ACK_OK":
		d.hedge.OnAckOK()
	case "ACK_REJECT":
		d.hedge.OnAckReject()
		d.hedge.OnTryResync()
		d.hedge.OnPositionsResynced()
		d.trading.ApplyTransition(tradingfsm.HedgeFailed, d.currentGuardMap())
	case "PARTIAL_FILL":
		d.hedge.OnPartialFill()
		d.recordOperation("fill", "", ou.FilledQty, ou.AvgPrice, "partial_fill")
	case "FULL_FILL":
		now := time.Now()
		side := sideFromFSM(d.hedge)
		d.execGuard.RecordHedgeSent(now)
		d.store.RecordHedge(now, ou.AvgPrice)
		d.hedge.OnFullFill()
		d.trading.ApplyTransition(tradingfsm.HedgeDone, d.currentGuardMap())
		d.recordOperation("fill", side, ou.FilledQty, ou.AvgPrice, "full_fill")
		metrics.HedgesSent.WithLabelValues(side).Inc()
	default:
		log.Printf("[daemon] unhandled order update status=%s order_id=%s", ou.Status, ou.OrderID)
	}
}

func sideFromFSM(h *hedgefsm.FSM) string {
	if t := h.CurrentTarget(); t != nil {
		if t.TargetShares >= 0 {
			return "BUY"
		}
		return "SELL"
	}
	return "unknown"
}

func (d *Daemon) currentGuardMap() map[string]bool {
	d.statusMu.Lock()
	cs := d.lastCS
	d.statusMu.Unlock()
	g := tradingguard.New(snapshot.FromComposite(cs), d.guardCfg, d.execGuard.DailyHedgeCount(time.Now()))
	return g.EvalAll()
}

type hedgeDecision struct {
	intent       gammascalper.HedgeIntent
	cs           snapshot.CompositeState
	spot         float64
	targetShares float64
}

// computeHedgeDecision is the read path: classify -> intent -> gates. It
// sends no order; its side effects are the store's stock position, the
// cached composite state, the metrics gauges and the trading FSM
// transitions (TICK, and TARGET_EMITTED when a hedge is approved). It
// returns nil when there is nothing to do, the Go analogue of
// GsTrading._compute_hedge_decision.
func (d *Daemon) computeHedgeDecision() (*hedgeDecision, error) {
	bid, ask, mid, tickTS := d.store.Ticker()
	if mid <= 0 {
		return nil, nil
	}
	now := time.Now()

	rows := d.store.Positions()
	legs, stockShares := positions.ParsePositions(rows, d.structure, mid, now)
	d.store.SetStockPosition(stockShares)

	portfolioDelta := positions.PortfolioDelta(legs, stockShares, mid, d.greeksParams, now)
	gamma := positions.PortfolioGamma(legs, mid, d.greeksParams, now)
	greeksValid := !math.IsNaN(portfolioDelta) && !math.IsInf(portfolioDelta, 0)

	var spreadPct *float64
	if bid > 0 && ask > 0 && mid > 0 {
		sp := (ask - bid) / mid
		spreadPct = &sp
	}

	var dataLagMs float64
	if tickTS > 0 {
		dataLagMs = (float64(now.UnixNano())/1e6 - tickTS*1000)
	}

	lastHedgeTS, lastHedgePrice := d.store.LastHedge()

	in := classifier.Inputs{
		Gamma:          gamma,
		HasOptionLeg:   len(legs) > 0,
		NetDelta:       portfolioDelta,
		SpreadPct:      spreadPct,
		LastTickAgeMs:  dataLagMs,
		PriceHistory:   d.store.PriceHistory(),
		GreeksValid:    greeksValid,
		ExecState:      d.hedge.EffectiveExecutionState(),
		DataLagMs:      dataLagMs,
		RiskHalt:       d.execGuard.CircuitBreakerTripped(),
		StockPos:       stockShares,
		OptionDelta:    portfolioDelta - stockShares,
		LastHedgeTS:    lastHedgeTS,
		LastHedgePrice: lastHedgePrice,
		TS:             float64(now.Unix()),
	}
	cs := classifier.Classify(in, d.classifierTh)

	d.statusMu.Lock()
	d.lastCS = cs
	d.lastOptionLegs = len(legs)
	d.lastGreeksValid = greeksValid
	d.statusMu.Unlock()

	metrics.NetDelta.Set(cs.NetDelta)
	metrics.DataLagMs.Set(cs.DataLagMs)
	metrics.DailyPnLUSD.Set(d.store.DailyPnL())
	metrics.SetActiveState(metrics.TradingFSMState, tradingStateLabels, string(d.trading.State()))
	metrics.SetActiveState(metrics.DaemonFSMState, daemonStateLabels, string(d.lifecycle.Current()))

	guards := tradingguard.New(snapshot.FromComposite(cs), d.guardCfg, d.execGuard.DailyHedgeCount(now)).EvalAll()
	d.trading.ApplyTransition(tradingfsm.Tick, guards)

	if !gammascalper.ShouldOutputTarget(cs) {
		return nil, nil
	}

	cfg := d.currentHedgeIntentConfig()
	order := gammascalper.GammaScalperHedge(portfolioDelta, stockShares, cfg.deltaThresholdShares, cfg.maxHedgeSharesPerOrder)
	if order == nil {
		return nil, nil
	}

	targetShares, _ := gammascalper.ComputeTargetAndNeed(portfolioDelta, stockShares)
	intent := gammascalper.HedgeIntent{
		Side:       order.Side,
		Quantity:   order.Quantity,
		ForceHedge: cs.D == stateenum.DForceHedge,
	}

	approved, reason := gammascalper.ApplyHedgeGates(intent, cs, d.execGuard, now, mid, lastHedgePrice, cfg.minHedgeShares)
	if approved == nil {
		metrics.HedgesBlocked.WithLabelValues(reason).Inc()
		log.Printf("[daemon] hedge blocked by gates (delta=%.1f would %s %.0f, reason=%s)", cs.NetDelta, intent.Side, intent.Quantity, reason)
		return nil, nil
	}

	if !d.hedge.CanPlaceOrder() {
		log.Printf("[daemon] execution not idle (E=%s), skip order", cs.E)
		return nil, nil
	}

	d.trading.ApplyTransition(tradingfsm.TargetEmitted, guards)

	return &hedgeDecision{intent: *approved, cs: cs, spot: mid, targetShares: targetShares}, nil
}

type hedgeIntentConfig struct {
	deltaThresholdShares   float64
	maxHedgeSharesPerOrder float64
	minHedgeShares         float64
}

func (d *Daemon) currentHedgeIntentConfig() hedgeIntentConfig {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	hg := d.cfg.Gates.Intent.Hedge
	return hedgeIntentConfig{
		deltaThresholdShares:   hg.DeltaThresholdShares,
		maxHedgeSharesPerOrder: float64(hg.MaxHedgeSharesPerOrder),
		minHedgeShares:         float64(hg.MinHedgeShares),
	}
}

// maybeHedge runs the hedge pipeline once, serialized by hedgeMu so that a
// ticker update and a heartbeat tick can never race each other into the
// hedge FSM concurrently.
func (d *Daemon) maybeHedge(ctx context.Context) {
	d.hedgeMu.Lock()
	defer d.hedgeMu.Unlock()

	if !d.lifecycle.IsActive() || d.isSuspended() {
		return
	}

	decision, err := d.computeHedgeDecision()
	if err != nil {
		log.Printf("[daemon] compute hedge decision failed: %v", err)
		return
	}
	if decision == nil {
		return
	}

	cfg := d.currentHedgeIntentConfig()
	target := hedgefsm.TargetPosition{TargetShares: decision.targetShares, Reason: "delta_hedge"}
	if !d.hedge.OnTarget(target, decision.cs.StockPos) {
		return
	}
	d.hedge.OnPlanDecide(decision.intent.Quantity >= cfg.minHedgeShares)
	if d.hedge.State() != hedgefsm.Send {
		return
	}

	now := time.Now()
	if d.paperTrade {
		log.Printf("[daemon] PAPER: would %s %.0f shares (delta=%.1f)", decision.intent.Side, decision.intent.Quantity, decision.cs.NetDelta)
		d.hedge.OnOrderPlaced()
		d.hedge.OnAckOK()
		d.execGuard.RecordHedgeSent(now)
		d.store.RecordHedge(now, decision.spot)
		d.hedge.OnFullFill()
		d.trading.ApplyTransition(tradingfsm.HedgeDone, d.currentGuardMap())
		metrics.HedgesSent.WithLabelValues(decision.intent.Side).Inc()
		d.recordOperation("order_sent", decision.intent.Side, decision.intent.Quantity, decision.spot, "paper_fill")
		return
	}

	d.hedge.OnOrderPlaced()
	orderID, err := d.broker.PlaceOrder(ibclient.OrderRequest{
		Symbol:    d.symbol,
		Side:      decision.intent.Side,
		Quantity:  decision.intent.Quantity,
		OrderType: d.orderType,
	})
	if err != nil {
		log.Printf("[daemon] place order failed: %v", err)
		d.hedge.OnAckReject()
		d.hedge.OnTryResync()
		d.hedge.OnPositionsResynced()
		d.trading.ApplyTransition(tradingfsm.HedgeFailed, d.currentGuardMap())
		return
	}
	log.Printf("[daemon] hedge sent: %s %.0f %s (order_id=%s)", decision.intent.Side, decision.intent.Quantity, d.symbol, orderID)
	d.recordOperation("order_sent", decision.intent.Side, decision.intent.Quantity, decision.spot, "sent")
}

func (d *Daemon) recordOperation(opType, side string, qty, price float64, reason string) {
	rec := map[string]interface{}{
		"ts":           float64(time.Now().UnixNano()) / 1e9,
		"type":         opType,
		"side":         side,
		"quantity":     qty,
		"price":        price,
		"state_reason": reason,
	}
	d.opsMu.Lock()
	d.ops = append(d.ops, rec)
	if len(d.ops) > opsRingCap {
		d.ops = d.ops[len(d.ops)-opsRingCap:]
	}
	d.opsMu.Unlock()

	if d.sink == nil {
		return
	}
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := d.sink.WriteOperation(sctx, pgsink.OperationRecord{
		TS: rec["ts"].(float64), Type: opType, Side: side,
		Quantity: int64(qty), Price: price, StateReason: reason,
	})
	if err != nil {
		log.Printf("[daemon] write operation failed: %v", err)
	}
}

// StatusSnapshot implements httpapi.StatusProvider. It never returns an
// error; it reports the last classified composite state, with the
// self-check derived by deriveSelfCheck.
func (d *Daemon) StatusSnapshot() map[string]interface{} {
	d.statusMu.Lock()
	cs := d.lastCS
	legsCount := d.lastOptionLegs
	greeksValid := d.lastGreeksValid
	d.statusMu.Unlock()

	selfCheck, lamp, reasons := deriveSelfCheck(cs, d.isSuspended())

	return map[string]interface{}{
		"self_check":        selfCheck,
		"status_lamp":       lamp,
		"block_reasons":     reasons,
		"trading_suspended": d.isSuspended(),
		"daemon_state":      string(d.lifecycle.Current()),
		"trading_state":     string(d.trading.State()),
		"execution_state":   string(cs.E),
		"symbol":            d.symbol,
		"spot":              d.lastSpot(),
		"net_delta":         cs.NetDelta,
		"stock_position":    cs.StockPos,
		"option_legs_count": legsCount,
		"greeks_valid":      greeksValid,
		"daily_hedge_count": d.execGuard.DailyHedgeCount(time.Now()),
		"daily_pnl_usd":     d.store.DailyPnL(),
		"data_lag_ms":       cs.DataLagMs,
		"ib_client_id":      d.ibClientID,
		"ib_connected":      d.broker.IsConnected(),
		"paper_trade":       d.paperTrade,
	}
}

func (d *Daemon) lastSpot() float64 {
	_, _, mid, _ := d.store.Ticker()
	return mid
}

func deriveSelfCheck(cs snapshot.CompositeState, suspended bool) (selfCheck, lamp string, reasons []string) {
	if suspended {
		reasons = append(reasons, "trading_suspended")
	}
	switch cs.S {
	case stateenum.SRiskHalt:
		return "blocked", "red", append(reasons, "risk_halt")
	case stateenum.SGreeksBad:
		return "degraded", "yellow", append(reasons, "greeks_bad")
	case stateenum.SDataLag:
		return "degraded", "yellow", append(reasons, "data_lag")
	}
	if cs.E == stateenum.EDisconnected || cs.E == stateenum.EBrokerError {
		return "degraded", "yellow", append(reasons, "execution_fault")
	}
	if len(reasons) > 0 {
		return "degraded", "yellow", reasons
	}
	return "ok", "green", reasons
}

// Operations implements httpapi.StatusProvider. Filtering is applied over
// the in-memory ring buffer; long-horizon history lives in the operations
// table and is served by cmd/dbinit's serve-api subcommand instead.
func (d *Daemon) Operations(sinceTS, untilTS *float64, opType *string, limit int) []map[string]interface{} {
	d.opsMu.Lock()
	defer d.opsMu.Unlock()

	out := make([]map[string]interface{}, 0, limit)
	for i := len(d.ops) - 1; i >= 0 && len(out) < limit; i-- {
		rec := d.ops[i]
		ts := rec["ts"].(float64)
		if sinceTS != nil && ts < *sinceTS {
			continue
		}
		if untilTS != nil && ts > *untilTS {
			continue
		}
		if opType != nil && rec["type"] != *opType {
			continue
		}
		out = append(out, rec)
	}
	return out
}
