package connector

import (
	"testing"

	"orderlink/protocol"
)

func encodeFrame(t *testing.T, event string, payload any) []byte {
	t.Helper()
	f, err := protocol.NewFrame(event, payload)
	if err != nil {
		t.Fatalf("new frame: %v", err)
	}
	raw, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return raw
}

func TestDispatchRoutesToAllHandlers(t *testing.T) {
	d := NewDispatcher()
	var a, b int
	handlers := []Handler{
		func(*protocol.Frame) { a++ },
		func(*protocol.Frame) { b++ },
	}

	d.Dispatch("order_status", encodeFrame(t, "order_status", &protocol.OrderStatusUpdate{Status: protocol.StatusReady}), handlers)

	if a != 1 || b != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", a, b)
	}
}

func TestMalformedFrameIsDroppedNotFatal(t *testing.T) {
	d := NewDispatcher()
	var got int
	handlers := []Handler{func(*protocol.Frame) { got++ }}

	// A non-JSON payload must be swallowed.
	d.Dispatch("order_status", []byte("<<definitely not json>>"), handlers)
	if got != 0 {
		t.Fatalf("malformed frame was delivered")
	}

	// The next well-formed frame still goes through.
	d.Dispatch("order_status", encodeFrame(t, "order_status", &protocol.OrderStatusUpdate{Status: protocol.StatusReady}), handlers)
	if got != 1 {
		t.Errorf("deliveries after malformed frame = %d, want 1", got)
	}
}

func TestPanickingHandlerIsIsolated(t *testing.T) {
	d := NewDispatcher()
	var after int
	handlers := []Handler{
		func(*protocol.Frame) { panic("broken UI callback") },
		func(*protocol.Frame) { after++ },
	}
	var tapped int
	d.Tap(func(*protocol.Frame) { tapped++ })

	d.Dispatch("order_status", encodeFrame(t, "order_status", &protocol.OrderStatusUpdate{Status: protocol.StatusReady}), handlers)

	if after != 1 {
		t.Errorf("handler after panicking one ran %d times, want 1", after)
	}
	if tapped != 1 {
		t.Errorf("tap ran %d times, want 1", tapped)
	}
}

func TestTapSeesEveryTopic(t *testing.T) {
	d := NewDispatcher()
	var events []string
	d.Tap(func(f *protocol.Frame) { events = append(events, f.Event) })

	d.Dispatch("order_status", encodeFrame(t, "order_status", &protocol.OrderStatusUpdate{}), nil)
	d.Dispatch("ticket_created", encodeFrame(t, "ticket_created", &protocol.TicketCreated{}), nil)

	if len(events) != 2 || events[0] != "order_status" || events[1] != "ticket_created" {
		t.Errorf("tapped events = %v", events)
	}
}
