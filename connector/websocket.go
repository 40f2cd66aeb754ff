package connector

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is the generic event socket: one connection carrying
// named events both ways. Topics are event names; subscribing is a local
// routing registration, the server pushes everything the session is
// entitled to.
type WebSocketTransport struct {
	url       string
	heartbeat time.Duration

	mu       sync.Mutex
	conn     *websocket.Conn
	handlers map[string]FrameHandler
	onClose  CloseHandler
	done     chan struct{}
	closed   bool

	writeMu sync.Mutex
}

// NewWebSocketTransport creates a websocket transport for the given
// endpoint. heartbeat is the ping interval; silence beyond twice that is
// treated as a dead connection.
func NewWebSocketTransport(url string, heartbeat time.Duration) *WebSocketTransport {
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}
	return &WebSocketTransport{
		url:       url,
		heartbeat: heartbeat,
		handlers:  make(map[string]FrameHandler),
	}
}

// Connect dials the endpoint. The HTTP upgrade completing is the
// transport-level handshake; a plain TCP accept without the upgrade never
// reports success.
func (t *WebSocketTransport) Connect(ctx context.Context, onClose CloseHandler) error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, t.url, nil)
	if err != nil {
		return fmt.Errorf("websocket dial %s: %w", t.url, err)
	}

	t.mu.Lock()
	t.conn = conn
	t.onClose = onClose
	t.done = make(chan struct{})
	t.closed = false
	done := t.done
	t.mu.Unlock()

	deadline := 2 * t.heartbeat
	conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(deadline))
		return nil
	})

	go t.readPump(conn, deadline)
	go t.pingLoop(conn, done)
	return nil
}

func (t *WebSocketTransport) readPump(conn *websocket.Conn, deadline time.Duration) {
	for {
		conn.SetReadDeadline(time.Now().Add(deadline))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.teardown(err)
			return
		}
		t.route(data)
	}
}

// route peeks at the event name and hands the raw frame to the handler
// registered for it. Events nobody subscribed to are dropped quietly.
func (t *WebSocketTransport) route(data []byte) {
	var peek struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &peek); err != nil {
		log.Printf("websocket: unroutable frame: %v", err)
		return
	}

	t.mu.Lock()
	fn := t.handlers[peek.Event]
	t.mu.Unlock()

	if fn != nil {
		fn(peek.Event, data)
	}
}

func (t *WebSocketTransport) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(t.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			t.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			t.writeMu.Unlock()
			if err != nil {
				// The read pump will observe the broken connection.
				return
			}
		}
	}
}

// teardown handles abnormal closure from the read pump.
func (t *WebSocketTransport) teardown(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	close(t.done)
	conn := t.conn
	t.conn = nil
	cb := t.onClose
	t.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if cb != nil {
		cb(err)
	}
}

// Close is the manual path: normal closure, no CloseHandler.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	if t.closed || t.conn == nil {
		t.closed = true
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	if t.done != nil {
		close(t.done)
	}
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	t.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client disconnect"))
	t.writeMu.Unlock()
	return conn.Close()
}

// Send writes one frame to the socket.
func (t *WebSocketTransport) Send(event string, data []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("websocket: not connected")
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket send %s: %w", event, err)
	}
	return nil
}

// Subscribe registers a local route for an event name.
func (t *WebSocketTransport) Subscribe(topic string, fn FrameHandler) (TransportSub, error) {
	if topic == "" {
		return nil, fmt.Errorf("websocket: empty event name")
	}
	t.mu.Lock()
	t.handlers[topic] = fn
	t.mu.Unlock()
	return &wsSub{t: t, topic: topic}, nil
}

type wsSub struct {
	t     *WebSocketTransport
	topic string
}

func (s *wsSub) Cancel() error {
	s.t.mu.Lock()
	delete(s.t.handlers, s.topic)
	s.t.mu.Unlock()
	return nil
}
