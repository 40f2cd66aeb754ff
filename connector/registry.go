package connector

import (
	"log"
	"sync"
)

// SubscriptionID uniquely identifies a registered subscription.
type SubscriptionID uint64

type subscription struct {
	id    SubscriptionID
	topic string
	fn    Handler
}

// topicState tracks the single transport-level subscription shared by all
// registrations on one topic.
type topicState struct {
	refs   int
	handle TransportSub
}

// Registry maps logical topics to delivery callbacks. Registrations survive
// disconnects; the transport-level subscriptions are re-issued on every
// connected transition. Multiple registrations per topic share one
// transport subscription.
type Registry struct {
	mu         sync.Mutex
	dispatcher *Dispatcher
	subs       map[SubscriptionID]*subscription
	topics     map[string]*topicState
	nextID     SubscriptionID
}

func newRegistry(d *Dispatcher) *Registry {
	return &Registry{
		dispatcher: d,
		subs:       make(map[SubscriptionID]*subscription),
		topics:     make(map[string]*topicState),
	}
}

// add stores a registration and reports whether this is the first
// registration for the topic (meaning a transport subscription is needed).
func (r *Registry) add(topic string, fn Handler) (SubscriptionID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.subs[id] = &subscription{id: id, topic: topic, fn: fn}

	ts, ok := r.topics[topic]
	if !ok {
		ts = &topicState{}
		r.topics[topic] = ts
	}
	ts.refs++
	return id, ts.refs == 1
}

// remove deletes a registration. If it was the last one for its topic, the
// transport handle (nil when never activated) is returned for cancellation.
func (r *Registry) remove(id SubscriptionID) TransportSub {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok {
		return nil
	}
	delete(r.subs, id)

	ts := r.topics[sub.topic]
	if ts == nil {
		return nil
	}
	ts.refs--
	if ts.refs > 0 {
		return nil
	}
	delete(r.topics, sub.topic)
	return ts.handle
}

// activateTopic issues the transport subscription for one topic.
func (r *Registry) activateTopic(t Transport, topic string) error {
	handle, err := t.Subscribe(topic, r.inbound)
	if err != nil {
		return err
	}
	r.mu.Lock()
	if ts, ok := r.topics[topic]; ok {
		ts.handle = handle
	}
	r.mu.Unlock()
	return nil
}

// activateAll re-issues transport subscriptions for every registered topic.
// A failing topic is logged and skipped so it cannot block the others.
func (r *Registry) activateAll(t Transport) {
	r.mu.Lock()
	topics := make([]string, 0, len(r.topics))
	for topic := range r.topics {
		topics = append(topics, topic)
	}
	r.mu.Unlock()

	for _, topic := range topics {
		if err := r.activateTopic(t, topic); err != nil {
			log.Printf("registry: subscribe %s failed, skipping: %v", topic, err)
		}
	}
}

// deactivateAll drops every transport handle without cancelling it (the
// connection is gone). Registrations are preserved for the next epoch.
func (r *Registry) deactivateAll() {
	r.mu.Lock()
	for _, ts := range r.topics {
		ts.handle = nil
	}
	r.mu.Unlock()
}

// inbound is the shared transport callback: it routes one raw message to
// everything registered on its topic via the dispatcher.
func (r *Registry) inbound(topic string, data []byte) {
	r.mu.Lock()
	var handlers []Handler
	for _, sub := range r.subs {
		if sub.topic == topic {
			handlers = append(handlers, sub.fn)
		}
	}
	r.mu.Unlock()

	r.dispatcher.Dispatch(topic, data, handlers)
}

// topicCount returns the number of distinct registered topics.
func (r *Registry) topicCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics)
}
