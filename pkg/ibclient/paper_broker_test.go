package ibclient

import "testing"

func TestPaperBrokerConnectDisconnect(t *testing.T) {
	p := NewPaperBrokerClient()
	if p.IsConnected() {
		t.Fatal("should start disconnected")
	}
	if err := p.Connect(1); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if !p.IsConnected() {
		t.Error("should be connected after Connect")
	}
	if err := p.Disconnect(); err != nil {
		t.Fatalf("Disconnect() error = %v", err)
	}
	if p.IsConnected() {
		t.Error("should be disconnected after Disconnect")
	}
}

func TestPaperBrokerPlaceOrderRejectedWhenNotConnected(t *testing.T) {
	p := NewPaperBrokerClient()
	if _, err := p.PlaceOrder(OrderRequest{Symbol: "SPY", Side: "BUY", Quantity: 100}); err == nil {
		t.Fatal("expected an error placing an order while disconnected")
	}
}

func TestPaperBrokerPlaceOrderSynthesizesAckAndFullFillAtLastMid(t *testing.T) {
	p := NewPaperBrokerClient()
	p.Connect(1)
	p.SimulateTick(TickerUpdate{Symbol: "SPY", Bid: 99, Ask: 101, Mid: 100, TS: 1})

	orderID, err := p.PlaceOrder(OrderRequest{Symbol: "SPY", Side: "BUY", Quantity: 50})
	if err != nil {
		t.Fatalf("PlaceOrder() error = %v", err)
	}
	if orderID == "" {
		t.Fatal("expected a non-empty order id")
	}

	ack := <-p.OrderUpdates()
	if ack.OrderID != orderID || ack.Status != "ACK_OK" {
		t.Errorf("first update = %+v, want ACK_OK for %s", ack, orderID)
	}

	fill := <-p.OrderUpdates()
	if fill.OrderID != orderID || fill.Status != "FULL_FILL" {
		t.Errorf("second update = %+v, want FULL_FILL for %s", fill, orderID)
	}
	if fill.FilledQty != 50 {
		t.Errorf("FilledQty = %v, want 50", fill.FilledQty)
	}
	if fill.AvgPrice != 100 {
		t.Errorf("AvgPrice = %v, want 100 (last simulated mid)", fill.AvgPrice)
	}
}

func TestPaperBrokerOrderIDsAreUnique(t *testing.T) {
	p := NewPaperBrokerClient()
	p.Connect(1)

	id1, _ := p.PlaceOrder(OrderRequest{Symbol: "SPY", Side: "BUY", Quantity: 1})
	<-p.OrderUpdates()
	<-p.OrderUpdates()
	id2, _ := p.PlaceOrder(OrderRequest{Symbol: "SPY", Side: "SELL", Quantity: 1})
	<-p.OrderUpdates()
	<-p.OrderUpdates()

	if id1 == id2 {
		t.Errorf("expected unique order ids, got %q twice", id1)
	}
}

func TestPaperBrokerRequestPositionsPushesNilSnapshot(t *testing.T) {
	p := NewPaperBrokerClient()
	if err := p.RequestPositions(); err != nil {
		t.Fatalf("RequestPositions() error = %v", err)
	}
	if got := <-p.Positions(); got != nil {
		t.Errorf("Positions() pushed %v, want nil", got)
	}
}

func TestPortForType(t *testing.T) {
	cases := []struct {
		pt      PortType
		want    int
		wantOK  bool
	}{
		{TWSLive, 7496, true},
		{TWSPaper, 7497, true},
		{Gateway, 4002, true},
		{PortType("bogus"), 0, false},
	}
	for _, c := range cases {
		port, ok := PortForType(c.pt)
		if port != c.want || ok != c.wantOK {
			t.Errorf("PortForType(%v) = (%v,%v), want (%v,%v)", c.pt, port, ok, c.want, c.wantOK)
		}
	}
}
