// Package ibclient defines the broker abstraction (spec.md §6.1) and two
// concrete adapters: a NATS-backed one and an in-process paper adapter.
// The NATS adapter is grounded on the teacher's pkg/client ORSClient
// subscribe pattern, with protobuf framing replaced by plain JSON — the
// generated pkg/proto/{md,ors} packages the teacher depends on are not
// present anywhere in the retrieval pack, and fabricating protobuf stubs
// by hand is out of bounds.
package ibclient

import (
	"time"

	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
)

// TickerUpdate is one underlying quote update.
type TickerUpdate struct {
	Symbol string
	Bid    float64
	Ask    float64
	Mid    float64
	TS     float64
}

// OrderUpdate is one broker order-state callback.
type OrderUpdate struct {
	OrderID  string
	Status   string // ACK_OK, ACK_REJECT, PARTIAL_FILL, FULL_FILL
	FilledQty float64
	AvgPrice  float64
}

// OrderRequest is a hedge order to send to the broker.
type OrderRequest struct {
	Symbol   string
	Side     string // BUY or SELL
	Quantity float64
	OrderType string // MKT, LMT
	LimitPrice float64
}

// BrokerClient is the contract the daemon drives every broker adapter
// through, per spec.md §6.1. All callback methods are invoked from the
// adapter's own goroutine; implementations must not call back into the
// daemon synchronously — instead they push onto the channels returned by
// Tickers/Positions/OrderUpdates so the main loop can drain them.
type BrokerClient interface {
	Connect(clientID int) error
	Disconnect() error
	IsConnected() bool

	SubscribeTicker(symbol string) error
	RequestPositions() error
	PlaceOrder(req OrderRequest) (orderID string, err error)
	CancelOrder(orderID string) error

	Tickers() <-chan TickerUpdate
	Positions() <-chan []runtimestore.PositionRow
	OrderUpdates() <-chan OrderUpdate
}

// PortType is the IB connection mode, per spec.md §6.2 ib.port_type.
type PortType string

const (
	TWSLive   PortType = "tws_live"
	TWSPaper  PortType = "tws_paper"
	Gateway   PortType = "gateway"
)

// PortForType maps a port-type name to its default TCP port.
func PortForType(pt PortType) (int, bool) {
	switch pt {
	case TWSLive:
		return 7496, true
	case TWSPaper:
		return 7497, true
	case Gateway:
		return 4002, true
	default:
		return 0, false
	}
}

func nowMs() float64 {
	return float64(time.Now().UnixMilli())
}
