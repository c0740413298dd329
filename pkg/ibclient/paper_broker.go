package ibclient

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
)

// PaperBrokerClient is an in-process broker double used with gates.guard.
// risk.paper_trade and in tests: every order synthesizes an immediate
// ACK_OK followed by a full fill at the last known mid price.
type PaperBrokerClient struct {
	mu        sync.RWMutex
	connected bool
	lastMid   float64

	tickers      chan TickerUpdate
	positions    chan []runtimestore.PositionRow
	orderUpdates chan OrderUpdate

	orderSeq int64
}

var _ BrokerClient = (*PaperBrokerClient)(nil)

func NewPaperBrokerClient() *PaperBrokerClient {
	return &PaperBrokerClient{
		tickers:      make(chan TickerUpdate, 256),
		positions:    make(chan []runtimestore.PositionRow, 16),
		orderUpdates: make(chan OrderUpdate, 256),
	}
}

func (p *PaperBrokerClient) Connect(clientID int) error {
	p.mu.Lock()
	p.connected = true
	p.mu.Unlock()
	log.Printf("[PaperBrokerClient] connected (client_id=%d, simulated)", clientID)
	return nil
}

func (p *PaperBrokerClient) Disconnect() error {
	p.mu.Lock()
	p.connected = false
	p.mu.Unlock()
	return nil
}

func (p *PaperBrokerClient) IsConnected() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connected
}

func (p *PaperBrokerClient) SubscribeTicker(symbol string) error { return nil }

func (p *PaperBrokerClient) RequestPositions() error {
	p.positions <- nil
	return nil
}

// SimulateTick lets tests feed a ticker update in directly, bypassing the
// broker wire.
func (p *PaperBrokerClient) SimulateTick(t TickerUpdate) {
	p.mu.Lock()
	p.lastMid = t.Mid
	p.mu.Unlock()
	p.tickers <- t
}

func (p *PaperBrokerClient) PlaceOrder(req OrderRequest) (string, error) {
	p.mu.RLock()
	connected := p.connected
	mid := p.lastMid
	p.mu.RUnlock()
	if !connected {
		return "", fmt.Errorf("paper broker not connected")
	}
	seq := atomic.AddInt64(&p.orderSeq, 1)
	orderID := fmt.Sprintf("paper-%d", seq)
	p.orderUpdates <- OrderUpdate{OrderID: orderID, Status: "ACK_OK"}
	p.orderUpdates <- OrderUpdate{OrderID: orderID, Status: "FULL_FILL", FilledQty: req.Quantity, AvgPrice: mid}
	return orderID, nil
}

func (p *PaperBrokerClient) CancelOrder(orderID string) error { return nil }

func (p *PaperBrokerClient) Tickers() <-chan TickerUpdate                 { return p.tickers }
func (p *PaperBrokerClient) Positions() <-chan []runtimestore.PositionRow { return p.positions }
func (p *PaperBrokerClient) OrderUpdates() <-chan OrderUpdate             { return p.orderUpdates }
