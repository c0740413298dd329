package ibclient

import "testing"

// NewNATSBrokerClient's happy paths require a live NATS server and are left
// to integration testing; these cover the disconnected guard clauses every
// method hits before ever touching the network.

func TestNATSBrokerIsConnectedFalseBeforeConnect(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if c.IsConnected() {
		t.Error("should report disconnected before Connect is called")
	}
}

func TestNATSBrokerRequestPositionsFailsWithoutConnection(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if err := c.RequestPositions(); err == nil {
		t.Error("expected an error requesting positions without a connection")
	}
}

func TestNATSBrokerPlaceOrderFailsWithoutConnection(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if _, err := c.PlaceOrder(OrderRequest{Symbol: "SPY", Side: "BUY", Quantity: 10}); err == nil {
		t.Error("expected an error placing an order without a connection")
	}
}

func TestNATSBrokerCancelOrderFailsWithoutConnection(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if err := c.CancelOrder("some-id"); err == nil {
		t.Error("expected an error cancelling an order without a connection")
	}
}

func TestNATSBrokerSubscribeTickerFailsWithoutConnection(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if err := c.SubscribeTicker("SPY"); err == nil {
		t.Error("expected an error subscribing without a connection")
	}
}

func TestNATSBrokerDisconnectIsSafeWithoutConnection(t *testing.T) {
	c := NewNATSBrokerClient("nats://127.0.0.1:4222")
	if err := c.Disconnect(); err != nil {
		t.Errorf("Disconnect() on an unconnected client should be a no-op, got error: %v", err)
	}
}
