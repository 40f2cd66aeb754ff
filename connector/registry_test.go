package connector

import (
	"testing"

	"orderlink/protocol"
)

func TestRegistrySharesOneTransportSubPerTopic(t *testing.T) {
	r := newRegistry(NewDispatcher())

	var a, b int
	id1, first := r.add("order_status", func(*protocol.Frame) { a++ })
	if !first {
		t.Error("first registration should report a new topic")
	}
	_, second := r.add("order_status", func(*protocol.Frame) { b++ })
	if second {
		t.Error("second registration on same topic should not report a new topic")
	}
	if r.topicCount() != 1 {
		t.Errorf("topic count = %d, want 1", r.topicCount())
	}

	// Both callbacks see an inbound message.
	f, _ := protocol.NewFrame("order_status", &protocol.OrderStatusUpdate{Status: protocol.StatusConfirmed})
	raw, _ := f.Encode()
	r.inbound("order_status", raw)
	if a != 1 || b != 1 {
		t.Errorf("deliveries = (%d, %d), want (1, 1)", a, b)
	}

	// Removing one keeps the topic alive; removing the last drops it.
	if handle := r.remove(id1); handle != nil {
		t.Error("removing one of two registrations must not return the topic handle")
	}
	if r.topicCount() != 1 {
		t.Errorf("topic count after partial remove = %d, want 1", r.topicCount())
	}
}

func TestRegistryActivateAllSkipsFailingTopic(t *testing.T) {
	ft := newFakeTransport()
	if err := ft.Connect(nil, nil); err != nil {
		t.Fatalf("fake connect: %v", err)
	}
	ft.failTopics["bad"] = true

	r := newRegistry(NewDispatcher())
	var got int
	r.add("bad", func(*protocol.Frame) {})
	r.add("good", func(*protocol.Frame) { got++ })

	r.activateAll(ft)

	f, _ := protocol.NewFrame("good", map[string]int{"n": 1})
	raw, _ := f.Encode()
	ft.deliver(t, "good", raw)
	if got != 1 {
		t.Errorf("good topic deliveries = %d, want 1", got)
	}
}

func TestRegistryDeactivatePreservesRegistrations(t *testing.T) {
	ft := newFakeTransport()
	if err := ft.Connect(nil, nil); err != nil {
		t.Fatalf("fake connect: %v", err)
	}

	r := newRegistry(NewDispatcher())
	var got int
	r.add("order_status", func(*protocol.Frame) { got++ })
	r.activateAll(ft)

	r.deactivateAll()
	if r.topicCount() != 1 {
		t.Errorf("topic count after deactivate = %d, want 1", r.topicCount())
	}

	// Fresh epoch: activate again, delivery resumes.
	if err := ft.Connect(nil, nil); err != nil {
		t.Fatalf("fake reconnect: %v", err)
	}
	r.activateAll(ft)
	f, _ := protocol.NewFrame("order_status", &protocol.OrderStatusUpdate{})
	raw, _ := f.Encode()
	ft.deliver(t, "order_status", raw)
	if got != 1 {
		t.Errorf("deliveries = %d, want 1", got)
	}
}

func TestRegistryRemoveUnknownID(t *testing.T) {
	r := newRegistry(NewDispatcher())
	if handle := r.remove(SubscriptionID(999)); handle != nil {
		t.Error("removing unknown id should return nil handle")
	}
}
