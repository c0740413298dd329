package ibclient

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/bifrosttrader/hedge-daemon/pkg/runtimestore"
)

// NATSBrokerClient carries broker events over NATS subjects as JSON
// messages, grounded on the teacher's ORSClient.SubscribeOrderUpdates
// pattern (pkg/client/ors_client.go): subscribe once per event class, push
// each decoded message onto a buffered channel the main loop drains.
//
// Subjects (per spec.md §4.7.a):
//
//	ticker.<symbol>          -> TickerUpdate
//	positions.<client_id>    -> []runtimestore.PositionRow
//	fills.<client_id>        -> OrderUpdate
//	orders.<client_id>.send  -> OrderRequest, request/reply
type NATSBrokerClient struct {
	url      string
	clientID int

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	tickers      chan TickerUpdate
	positions    chan []runtimestore.PositionRow
	orderUpdates chan OrderUpdate

	orderSeq int64
}

var _ BrokerClient = (*NATSBrokerClient)(nil)

func NewNATSBrokerClient(url string) *NATSBrokerClient {
	return &NATSBrokerClient{
		url:          url,
		tickers:      make(chan TickerUpdate, 256),
		positions:    make(chan []runtimestore.PositionRow, 16),
		orderUpdates: make(chan OrderUpdate, 256),
	}
}

func (c *NATSBrokerClient) Connect(clientID int) error {
	nc, err := nats.Connect(c.url)
	if err != nil {
		return fmt.Errorf("nats connect: %w", err)
	}
	c.mu.Lock()
	c.conn = nc
	c.clientID = clientID
	c.mu.Unlock()
	log.Printf("[NATSBrokerClient] connected to %s, client_id=%d", c.url, clientID)

	if err := c.subscribeFills(); err != nil {
		return err
	}
	if err := c.subscribePositions(); err != nil {
		return err
	}
	return nil
}

func (c *NATSBrokerClient) subscribeFills() error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	subject := fmt.Sprintf("fills.%d", c.clientID)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var upd OrderUpdate
		if err := json.Unmarshal(msg.Data, &upd); err != nil {
			log.Printf("[NATSBrokerClient] bad fill payload: %v", err)
			return
		}
		c.orderUpdates <- upd
	})
	if err != nil {
		return fmt.Errorf("subscribe fills: %w", err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *NATSBrokerClient) subscribePositions() error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	subject := fmt.Sprintf("positions.%d", c.clientID)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var rows []runtimestore.PositionRow
		if err := json.Unmarshal(msg.Data, &rows); err != nil {
			log.Printf("[NATSBrokerClient] bad positions payload: %v", err)
			return
		}
		c.positions <- rows
	})
	if err != nil {
		return fmt.Errorf("subscribe positions: %w", err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *NATSBrokerClient) SubscribeTicker(symbol string) error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return fmt.Errorf("not connected")
	}
	subject := fmt.Sprintf("ticker.%s", symbol)
	sub, err := nc.Subscribe(subject, func(msg *nats.Msg) {
		var tu TickerUpdate
		if err := json.Unmarshal(msg.Data, &tu); err != nil {
			log.Printf("[NATSBrokerClient] bad ticker payload: %v", err)
			return
		}
		c.tickers <- tu
	})
	if err != nil {
		return fmt.Errorf("subscribe ticker: %w", err)
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *NATSBrokerClient) RequestPositions() error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return fmt.Errorf("not connected")
	}
	return nc.Publish(fmt.Sprintf("positions.%d.request", c.clientID), nil)
}

func (c *NATSBrokerClient) PlaceOrder(req OrderRequest) (string, error) {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return "", fmt.Errorf("not connected")
	}
	seq := atomic.AddInt64(&c.orderSeq, 1)
	orderID := fmt.Sprintf("hedge-%d-%d", c.clientID, seq)

	payload, err := json.Marshal(struct {
		OrderID string `json:"order_id"`
		OrderRequest
	}{OrderID: orderID, OrderRequest: req})
	if err != nil {
		return "", fmt.Errorf("marshal order: %w", err)
	}

	subject := fmt.Sprintf("orders.%d.send", c.clientID)
	reply, err := nc.Request(subject, payload, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("send order: %w", err)
	}
	var ack struct {
		Accepted bool   `json:"accepted"`
		Reason   string `json:"reason"`
	}
	if err := json.Unmarshal(reply.Data, &ack); err != nil {
		return "", fmt.Errorf("unmarshal ack: %w", err)
	}
	if !ack.Accepted {
		return "", fmt.Errorf("order rejected: %s", ack.Reason)
	}
	return orderID, nil
}

func (c *NATSBrokerClient) CancelOrder(orderID string) error {
	c.mu.RLock()
	nc := c.conn
	c.mu.RUnlock()
	if nc == nil {
		return fmt.Errorf("not connected")
	}
	payload, _ := json.Marshal(struct {
		OrderID string `json:"order_id"`
	}{OrderID: orderID})
	return nc.Publish(fmt.Sprintf("orders.%d.cancel", c.clientID), payload)
}

func (c *NATSBrokerClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && c.conn.IsConnected()
}

func (c *NATSBrokerClient) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, sub := range c.subs {
		sub.Unsubscribe()
	}
	c.subs = nil
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	return nil
}

func (c *NATSBrokerClient) Tickers() <-chan TickerUpdate                    { return c.tickers }
func (c *NATSBrokerClient) Positions() <-chan []runtimestore.PositionRow    { return c.positions }
func (c *NATSBrokerClient) OrderUpdates() <-chan OrderUpdate                { return c.orderUpdates }
