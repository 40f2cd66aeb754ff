package connector

import (
	"fmt"
	"testing"
)

func TestFlushPreservesFIFOOrder(t *testing.T) {
	q := NewOutboundQueue()
	q.Enqueue("m1", []byte("1"))
	q.Enqueue("m2", []byte("2"))
	q.Enqueue("m3", []byte("3"))

	var sent []string
	n, err := q.Flush(func(event string, _ []byte) error {
		sent = append(sent, event)
		return nil
	})
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 3 {
		t.Errorf("sent count = %d, want 3", n)
	}
	want := []string{"m1", "m2", "m3"}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
	if q.Len() != 0 {
		t.Errorf("len after flush = %d, want 0", q.Len())
	}
}

func TestFlushAbortsOnErrorAndRetains(t *testing.T) {
	q := NewOutboundQueue()
	q.Enqueue("m1", []byte("1"))
	q.Enqueue("m2", []byte("2"))
	q.Enqueue("m3", []byte("3"))

	calls := 0
	n, err := q.Flush(func(event string, _ []byte) error {
		calls++
		if event == "m2" {
			return fmt.Errorf("send failed")
		}
		return nil
	})
	if err == nil {
		t.Fatal("expected flush error")
	}
	if n != 1 {
		t.Errorf("sent count = %d, want 1", n)
	}
	if calls != 2 {
		t.Errorf("send calls = %d, want 2 (abort after first failure)", calls)
	}
	// The failed message and everything behind it stay queued.
	if q.Len() != 2 {
		t.Fatalf("len after aborted flush = %d, want 2", q.Len())
	}

	// A later pass resumes from the failed message, no duplication.
	var sent []string
	if _, err := q.Flush(func(event string, _ []byte) error {
		sent = append(sent, event)
		return nil
	}); err != nil {
		t.Fatalf("second flush: %v", err)
	}
	want := []string{"m2", "m3"}
	if len(sent) != len(want) {
		t.Fatalf("second pass sent %v, want %v", sent, want)
	}
	for i := range want {
		if sent[i] != want[i] {
			t.Errorf("second pass sent[%d] = %q, want %q", i, sent[i], want[i])
		}
	}
}

func TestFlushEmptyQueue(t *testing.T) {
	q := NewOutboundQueue()
	n, err := q.Flush(func(string, []byte) error {
		t.Fatal("send should not be called")
		return nil
	})
	if err != nil || n != 0 {
		t.Errorf("flush empty = (%d, %v), want (0, nil)", n, err)
	}
}
