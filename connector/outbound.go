package connector

import (
	"sync"
	"time"
)

// QueuedMessage is one outbound message buffered while disconnected. The
// queue is memory-only; durable order submission lives in the offline
// package.
type QueuedMessage struct {
	Event      string
	Payload    []byte
	EnqueuedAt time.Time
}

// OutboundQueue buffers messages that could not be sent and flushes them in
// FIFO order once the connection is restored.
type OutboundQueue struct {
	mu    sync.Mutex
	items []QueuedMessage
}

// NewOutboundQueue creates an empty queue.
func NewOutboundQueue() *OutboundQueue {
	return &OutboundQueue{}
}

// Enqueue appends a message to the buffer.
func (q *OutboundQueue) Enqueue(event string, payload []byte) {
	q.mu.Lock()
	q.items = append(q.items, QueuedMessage{
		Event:      event,
		Payload:    payload,
		EnqueuedAt: time.Now(),
	})
	q.mu.Unlock()
}

// Len returns the number of buffered messages.
func (q *OutboundQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush drains the buffer strictly in enqueue order, one send per entry.
// The first failed send aborts the pass; the failed message and everything
// behind it stay queued for the next connected epoch. Returns the number of
// messages sent. The lock is released around each send, so an Enqueue
// racing the drain is picked up by the same pass instead of blocking.
func (q *OutboundQueue) Flush(send func(event string, payload []byte) error) (int, error) {
	sent := 0
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			q.mu.Unlock()
			return sent, nil
		}
		msg := q.items[0]
		q.mu.Unlock()

		if err := send(msg.Event, msg.Payload); err != nil {
			return sent, err
		}

		q.mu.Lock()
		q.items = q.items[1:]
		q.mu.Unlock()
		sent++
	}
}
