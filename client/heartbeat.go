package client

import (
	"log"
	"sync"
	"time"

	"orderlink/protocol"
)

// Heartbeater announces the client on startup and reports presence
// periodically so the server can track live terminals.
type Heartbeater struct {
	send      func(*protocol.Frame) error
	clientID  string
	role      string
	userID    string
	interval  time.Duration
	startTime time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

func NewHeartbeater(send func(*protocol.Frame) error, clientID, role, userID string, interval time.Duration) *Heartbeater {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Heartbeater{
		send:     send,
		clientID: clientID,
		role:     role,
		userID:   userID,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start sends the initial hello and begins the heartbeat loop.
func (h *Heartbeater) Start() {
	h.startTime = time.Now()
	h.sendHello()
	go h.loop()
}

// Hello re-announces the client, used after a reconnect when the loop
// is already running.
func (h *Heartbeater) Hello() {
	h.sendHello()
}

// Stop halts the heartbeat loop.
func (h *Heartbeater) Stop() {
	h.stopOnce.Do(func() { close(h.stopCh) })
}

func (h *Heartbeater) sendHello() {
	f, err := protocol.NewFrame(protocol.EventClientHello, &protocol.ClientHello{
		ClientID: h.clientID,
		Role:     h.role,
		UserID:   h.userID,
		Version:  Version,
	})
	if err != nil {
		log.Printf("heartbeater: build hello: %v", err)
		return
	}
	if err := h.send(f); err != nil {
		log.Printf("heartbeater: send hello: %v", err)
	} else {
		log.Printf("heartbeater: sent hello (client=%s role=%s)", h.clientID, h.role)
	}
}

func (h *Heartbeater) sendHeartbeat() {
	uptime := int64(time.Since(h.startTime).Seconds())
	f, err := protocol.NewFrame(protocol.EventClientHeartbeat, &protocol.ClientHeartbeat{
		ClientID: h.clientID,
		Role:     h.role,
		Uptime:   uptime,
	})
	if err != nil {
		log.Printf("heartbeater: build heartbeat: %v", err)
		return
	}
	if err := h.send(f); err != nil {
		log.Printf("heartbeater: send heartbeat: %v", err)
	}
}

func (h *Heartbeater) loop() {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()
	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.sendHeartbeat()
		}
	}
}
