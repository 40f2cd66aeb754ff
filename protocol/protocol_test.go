package protocol

import (
	"encoding/json"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	f, err := NewFrame(EventOrderStatus, &OrderStatusUpdate{
		OrderUUID:   "11111111-2222-3333-4444-555555555555",
		OrderNumber: "A-107",
		Status:      StatusReady,
		Detail:      "counter 2",
	})
	if err != nil {
		t.Fatalf("new frame: %v", err)
	}
	if f.ID == "" {
		t.Fatal("frame ID should be assigned")
	}
	if f.Version != Version {
		t.Errorf("Version = %d, want %d", f.Version, Version)
	}

	data, err := f.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	got, err := DecodeFrame(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Event != EventOrderStatus {
		t.Errorf("Event = %q, want %q", got.Event, EventOrderStatus)
	}
	if got.ID != f.ID {
		t.Errorf("ID = %q, want %q", got.ID, f.ID)
	}

	var p OrderStatusUpdate
	if err := got.DecodePayload(&p); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if p.OrderNumber != "A-107" {
		t.Errorf("OrderNumber = %q, want %q", p.OrderNumber, "A-107")
	}
	if p.Status != StatusReady {
		t.Errorf("Status = %q, want %q", p.Status, StatusReady)
	}
}

func TestDecodeFrameRejectsGarbage(t *testing.T) {
	if _, err := DecodeFrame([]byte("not json at all")); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
	if _, err := DecodeFrame([]byte(`{"payload":{}}`)); err == nil {
		t.Fatal("expected error for frame without event name")
	}
}

func TestDecodeFrameTolerantOfUnknownFields(t *testing.T) {
	raw := []byte(`{"v":1,"event":"order_status","id":"x","payload":{"status":"ready"},"extra":"ignored"}`)
	f, err := DecodeFrame(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if f.Event != EventOrderStatus {
		t.Errorf("Event = %q", f.Event)
	}
}

func TestStatusTables(t *testing.T) {
	for _, s := range []string{StatusReceived, StatusConfirmed, StatusPreparing, StatusReady, StatusCompleted, StatusCancelled, StatusFailed} {
		if !IsKnownStatus(s) {
			t.Errorf("IsKnownStatus(%q) = false", s)
		}
	}
	if IsKnownStatus("sous-vide") {
		t.Error("unexpected status should be unknown")
	}
	if !IsTerminal(StatusCompleted) || !IsTerminal(StatusCancelled) || !IsTerminal(StatusFailed) {
		t.Error("terminal statuses misclassified")
	}
	if IsTerminal(StatusReady) {
		t.Error("ready is not terminal")
	}
}

func TestUserQueueTopic(t *testing.T) {
	got := UserQueueTopic("u-42")
	want := "pos/users/u-42/queue"
	if got != want {
		t.Errorf("UserQueueTopic = %q, want %q", got, want)
	}
}

func TestPayloadJSONShape(t *testing.T) {
	p := OrderStatusUpdate{OrderUUID: "u", OrderNumber: "n", Status: StatusConfirmed}
	data, _ := json.Marshal(p)
	var m map[string]any
	json.Unmarshal(data, &m)
	if _, ok := m["order_uuid"]; !ok {
		t.Error("order_uuid key missing")
	}
	if _, ok := m["detail"]; ok {
		t.Error("empty detail should be omitted")
	}
}
