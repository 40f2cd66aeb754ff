package notify

import (
	"fmt"
	"sync"
	"testing"

	"orderlink/protocol"
)

type mockSink struct {
	mu    sync.Mutex
	shown []Notification
}

func (m *mockSink) Show(n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shown = append(m.shown, n)
	return nil
}

func (m *mockSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.shown)
}

type mockPerm struct {
	state    PermissionState
	requests int
}

func (m *mockPerm) Request() PermissionState {
	m.requests++
	return m.state
}

func grantedBridge(sink Sink) *Bridge {
	return NewBridge(sink, &mockPerm{state: PermissionGranted}, 100, true)
}

func update(orderUUID, status string) *protocol.OrderStatusUpdate {
	return &protocol.OrderStatusUpdate{
		OrderUUID:   orderUUID,
		OrderNumber: "ORD-77",
		Status:      status,
	}
}

func TestReadyIsPersistentWithSound(t *testing.T) {
	sink := &mockSink{}
	b := grantedBridge(sink)

	b.HandleOrderStatus(update("u-1", protocol.StatusReady))

	if len(sink.shown) != 1 {
		t.Fatalf("shown = %d, want 1", len(sink.shown))
	}
	n := sink.shown[0]
	if !n.Persistent || !n.Sound {
		t.Errorf("ready notification persistent=%v sound=%v, want both true", n.Persistent, n.Sound)
	}
}

func TestTransientStatusesAreQuiet(t *testing.T) {
	sink := &mockSink{}
	b := grantedBridge(sink)

	for _, status := range []string{protocol.StatusReceived, protocol.StatusConfirmed, protocol.StatusPreparing, protocol.StatusCompleted} {
		b.HandleOrderStatus(update("u-quiet", status))
	}
	for _, n := range sink.shown {
		if n.Persistent || n.Sound {
			t.Errorf("status %s: persistent=%v sound=%v, want both false", n.Status, n.Persistent, n.Sound)
		}
	}
}

func TestSoundDisabledGlobally(t *testing.T) {
	sink := &mockSink{}
	b := NewBridge(sink, &mockPerm{state: PermissionGranted}, 100, false)

	b.HandleOrderStatus(update("u-mute", protocol.StatusReady))
	if sink.shown[0].Sound {
		t.Error("sound fired with sound disabled in config")
	}
}

func TestDuplicateTransitionSuppressed(t *testing.T) {
	sink := &mockSink{}
	b := grantedBridge(sink)

	b.HandleOrderStatus(update("u-dup", protocol.StatusReady))
	b.HandleOrderStatus(update("u-dup", protocol.StatusReady))
	b.HandleOrderStatus(update("u-dup", protocol.StatusCompleted))

	if got := sink.count(); got != 2 {
		t.Errorf("shown = %d, want 2 (duplicate ready suppressed)", got)
	}
}

func TestUnknownStatusDropped(t *testing.T) {
	sink := &mockSink{}
	b := grantedBridge(sink)

	b.HandleOrderStatus(update("u-odd", "levitating"))
	if sink.count() != 0 {
		t.Error("unknown status produced a notification")
	}
}

func TestPermissionRequestedOnceAndDenialIsFinal(t *testing.T) {
	sink := &mockSink{}
	perm := &mockPerm{state: PermissionDenied}
	b := NewBridge(sink, perm, 100, true)

	b.HandleOrderStatus(update("u-p", protocol.StatusReady))
	b.HandleOrderStatus(update("u-p", protocol.StatusCompleted))
	b.ConnectionLost()

	if perm.requests != 1 {
		t.Errorf("permission requests = %d, want 1", perm.requests)
	}
	if sink.count() != 0 {
		t.Error("notifications shown despite denied permission")
	}
	// Records are still kept for the in-app list.
	if got := len(b.Records()); got != 3 {
		t.Errorf("records = %d, want 3", got)
	}
}

func TestRecordCapDropsOldest(t *testing.T) {
	b := NewBridge(nil, nil, 5, true)

	for i := 0; i < 8; i++ {
		b.HandleOrderStatus(update(fmt.Sprintf("u-%d", i), protocol.StatusReady))
	}

	recs := b.Records()
	if len(recs) != 5 {
		t.Fatalf("records = %d, want 5", len(recs))
	}
	// Newest first.
	if recs[0].OrderUUID != "u-7" || recs[4].OrderUUID != "u-3" {
		t.Errorf("window = [%s .. %s], want [u-7 .. u-3]", recs[0].OrderUUID, recs[4].OrderUUID)
	}
}

func TestMarkRead(t *testing.T) {
	b := NewBridge(nil, nil, 10, true)
	b.HandleOrderStatus(update("u-r1", protocol.StatusReady))
	b.HandleOrderStatus(update("u-r2", protocol.StatusReady))

	if got := b.UnreadCount(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}

	id := b.Records()[0].ID
	if !b.MarkRead(id) {
		t.Fatal("MarkRead returned false for known id")
	}
	if got := b.UnreadCount(); got != 1 {
		t.Errorf("unread = %d, want 1", got)
	}
	if b.MarkRead("nope") {
		t.Error("MarkRead returned true for unknown id")
	}

	b.MarkAllRead()
	if got := b.UnreadCount(); got != 0 {
		t.Errorf("unread after mark all = %d, want 0", got)
	}
}

func TestConnectionLostIsPersistent(t *testing.T) {
	sink := &mockSink{}
	b := grantedBridge(sink)

	b.ConnectionLost()
	if len(sink.shown) != 1 || !sink.shown[0].Persistent {
		t.Errorf("connection lost notification = %+v, want persistent", sink.shown)
	}
}

func TestSeenMapStaysBounded(t *testing.T) {
	sink := &mockSink{}
	b := NewBridge(sink, &mockPerm{state: PermissionGranted}, 5, false)

	// A long shift of completed orders must not grow the dedupe state
	// without bound.
	for i := 0; i < 200; i++ {
		id := fmt.Sprintf("u-%03d", i)
		b.HandleOrderStatus(update(id, protocol.StatusReady))
		b.HandleOrderStatus(update(id, protocol.StatusCompleted))
	}

	b.mu.Lock()
	seen := len(b.seen)
	b.mu.Unlock()
	if seen > b.retiredCap {
		t.Fatalf("seen entries = %d, want at most %d", seen, b.retiredCap)
	}

	// Recently completed orders still suppress late duplicates.
	before := sink.count()
	b.HandleOrderStatus(update("u-199", protocol.StatusCompleted))
	if got := sink.count(); got != before {
		t.Errorf("late duplicate of recent terminal event shown (count %d -> %d)", before, got)
	}
}
