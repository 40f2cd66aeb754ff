package connector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"orderlink/protocol"
)

// Status is the connection lifecycle state.
type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// StatusListener observes connection state transitions.
type StatusListener func(Status)

// ManagerConfig tunes the reconnect policy.
type ManagerConfig struct {
	BaseDelay            time.Duration
	MaxReconnectAttempts int
	ConnectTimeout       time.Duration
}

// Manager owns the transport connection lifecycle: connect/disconnect,
// exponential-backoff reconnection with an attempt ceiling, and the
// sequencing guarantee that subscriptions are re-issued and the outbound
// queue flushed before a connected epoch is announced.
type Manager struct {
	cfg        ManagerConfig
	transport  Transport
	dispatcher *Dispatcher
	registry   *Registry
	outbound   *OutboundQueue

	mu             sync.Mutex
	status         Status
	attempts       int
	manual         bool
	reconnectTimer *time.Timer
	listeners      []StatusListener

	// afterFunc schedules the reconnect timer; replaceable in tests.
	afterFunc func(time.Duration, func()) *time.Timer
}

// NewManager creates a manager for the given transport. Zero config fields
// get defaults (1s base delay, 5 attempts, 10s connect timeout).
func NewManager(cfg ManagerConfig, t Transport) *Manager {
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 5
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	d := NewDispatcher()
	return &Manager{
		cfg:        cfg,
		transport:  t,
		dispatcher: d,
		registry:   newRegistry(d),
		outbound:   NewOutboundQueue(),
		afterFunc:  time.AfterFunc,
	}
}

// Status returns the current connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// IsConnected returns true while a connected epoch is live.
func (m *Manager) IsConnected() bool {
	return m.Status() == StatusConnected
}

// ReconnectAttempts returns the current reconnect attempt counter.
func (m *Manager) ReconnectAttempts() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

// QueuedOutbound returns the number of messages waiting for reconnection.
func (m *Manager) QueuedOutbound() int {
	return m.outbound.Len()
}

// OnStatusChange registers a listener for every status transition.
// Listeners run synchronously on the transition path.
func (m *Manager) OnStatusChange(fn StatusListener) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

// Tap registers a cross-cutting observer for every inbound frame.
func (m *Manager) Tap(fn Handler) {
	m.dispatcher.Tap(fn)
}

// SwapTransport replaces the transport while disconnected. Registered
// subscriptions carry over; the next Connect activates them on the new
// transport.
func (m *Manager) SwapTransport(t Transport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status == StatusConnected || m.status == StatusConnecting {
		return fmt.Errorf("cannot swap transport while %s", m.status)
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.attempts = 0
	m.transport = t
	return nil
}

// Connect opens the transport. It is idempotent: a no-op while connected or
// already connecting. On failure the reconnect policy takes over.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.status == StatusConnected || m.status == StatusConnecting {
		m.mu.Unlock()
		return nil
	}
	m.manual = false
	m.setStatusLocked(StatusConnecting)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ConnectTimeout)
	defer cancel()
	if err := m.transport.Connect(ctx, m.handleTransportClose); err != nil {
		m.mu.Lock()
		if m.manual {
			m.setStatusLocked(StatusDisconnected)
		} else {
			m.scheduleReconnectLocked()
		}
		m.mu.Unlock()
		return err
	}

	// A Disconnect issued while the dial was in flight wins: tear the
	// fresh transport back down instead of announcing a dead epoch.
	if m.abandonIfManual() {
		return nil
	}

	// Re-issue every registered subscription and drain the outbound queue
	// before announcing the epoch: resubscribe happens-before any queued or
	// fresh send, and before anyone observes StatusConnected.
	m.registry.activateAll(m.transport)

	if sent, err := m.outbound.Flush(m.transport.Send); err != nil {
		log.Printf("connector: outbound flush stopped after %d messages: %v", sent, err)
	}

	m.mu.Lock()
	if m.manual {
		m.registry.deactivateAll()
		m.mu.Unlock()
		m.abandonTransport()
		return nil
	}
	m.attempts = 0
	m.setStatusLocked(StatusConnected)
	m.mu.Unlock()

	// A Send landing between the drain above and the status flip buffers
	// its frame; pick it up now so nothing is stranded until reconnect.
	if m.outbound.Len() > 0 {
		if sent, err := m.outbound.Flush(m.transport.Send); err != nil {
			log.Printf("connector: outbound flush stopped after %d messages: %v", sent, err)
		}
	}
	return nil
}

func (m *Manager) abandonIfManual() bool {
	m.mu.Lock()
	manual := m.manual
	m.mu.Unlock()
	if manual {
		m.abandonTransport()
	}
	return manual
}

func (m *Manager) abandonTransport() {
	if err := m.transport.Close(); err != nil {
		log.Printf("connector: transport close: %v", err)
	}
}

// Disconnect is the manual teardown path: it cancels any pending reconnect
// timer, closes the transport with a normal closure and clears transport
// subscription handles. Registrations are preserved for a future Connect.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.manual = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	m.attempts = 0
	m.registry.deactivateAll()
	m.setStatusLocked(StatusDisconnected)
	m.mu.Unlock()

	if err := m.transport.Close(); err != nil {
		log.Printf("connector: transport close: %v", err)
	}
}

// Send delivers a frame if connected, otherwise buffers it for the next
// connected epoch.
func (m *Manager) Send(f *protocol.Frame) error {
	data, err := f.Encode()
	if err != nil {
		return err
	}

	m.mu.Lock()
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if !connected {
		m.outbound.Enqueue(f.Event, data)
		return nil
	}
	return m.transport.Send(f.Event, data)
}

// Subscribe registers a callback for a topic. The transport subscription is
// issued immediately when connected, otherwise deferred to the next epoch.
func (m *Manager) Subscribe(topic string, fn Handler) SubscriptionID {
	id, isNewTopic := m.registry.add(topic, fn)

	m.mu.Lock()
	connected := m.status == StatusConnected
	m.mu.Unlock()

	if connected && isNewTopic {
		if err := m.registry.activateTopic(m.transport, topic); err != nil {
			log.Printf("connector: subscribe %s: %v", topic, err)
		}
	}
	return id
}

// Unsubscribe removes a registration. Safe to call for ids that were never
// transport-activated.
func (m *Manager) Unsubscribe(id SubscriptionID) {
	handle := m.registry.remove(id)
	if handle == nil {
		return
	}
	if err := handle.Cancel(); err != nil {
		log.Printf("connector: unsubscribe: %v", err)
	}
}

// handleTransportClose is the abnormal-closure path fed by the transport.
func (m *Manager) handleTransportClose(err error) {
	m.mu.Lock()
	if m.manual {
		m.mu.Unlock()
		return
	}
	if err != nil {
		log.Printf("connector: connection lost: %v", err)
	}
	m.registry.deactivateAll()
	m.scheduleReconnectLocked()
	m.mu.Unlock()
}

// scheduleReconnectLocked applies the backoff policy. Caller holds m.mu.
func (m *Manager) scheduleReconnectLocked() {
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		log.Printf("connector: reconnect ceiling reached after %d attempts", m.attempts)
		m.setStatusLocked(StatusError)
		return
	}
	m.attempts++
	attempt := m.attempts
	delay := m.backoffDelay(attempt)
	m.reconnectTimer = m.afterFunc(delay, func() {
		m.mu.Lock()
		if m.manual {
			m.mu.Unlock()
			return
		}
		m.mu.Unlock()
		log.Printf("connector: reconnect attempt %d", attempt)
		if err := m.Connect(); err != nil {
			log.Printf("connector: reconnect attempt %d: %v", attempt, err)
		}
	})
	m.setStatusLocked(StatusDisconnected)
}

// backoffDelay is baseDelay * 2^(attempt-1). No jitter.
func (m *Manager) backoffDelay(attempt int) time.Duration {
	return m.cfg.BaseDelay * time.Duration(1<<uint(attempt-1))
}

// setStatusLocked updates status and notifies listeners. Caller holds m.mu;
// listeners run without the lock.
func (m *Manager) setStatusLocked(s Status) {
	if m.status == s {
		return
	}
	m.status = s
	listeners := make([]StatusListener, len(m.listeners))
	copy(listeners, m.listeners)

	m.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
	m.mu.Lock()
}
