package connector

import (
	"log"
	"sync"

	"orderlink/protocol"
)

// Handler receives decoded inbound frames.
type Handler func(*protocol.Frame)

// Dispatcher decodes raw transport payloads and fans them out to topic
// subscribers and cross-cutting taps. A malformed frame is logged and
// dropped without touching the connection; a panicking callback is isolated
// so the remaining handlers still run.
type Dispatcher struct {
	mu   sync.RWMutex
	taps []Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Tap registers a handler that observes every well-formed inbound frame,
// regardless of topic. The notification bridge hangs off a tap.
func (d *Dispatcher) Tap(fn Handler) {
	d.mu.Lock()
	d.taps = append(d.taps, fn)
	d.mu.Unlock()
}

// Dispatch decodes raw and delivers the frame to the given subscriber
// handlers, then to every tap.
func (d *Dispatcher) Dispatch(topic string, raw []byte, handlers []Handler) {
	frame, err := protocol.DecodeFrame(raw)
	if err != nil {
		log.Printf("dispatch: dropping malformed frame on %s: %v", topic, err)
		return
	}

	for _, h := range handlers {
		d.deliver(topic, frame, h)
	}

	d.mu.RLock()
	taps := make([]Handler, len(d.taps))
	copy(taps, d.taps)
	d.mu.RUnlock()
	for _, t := range taps {
		d.deliver(topic, frame, t)
	}
}

func (d *Dispatcher) deliver(topic string, frame *protocol.Frame, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("dispatch: handler panic on %s (%s): %v", topic, frame.Event, r)
		}
	}()
	h(frame)
}
