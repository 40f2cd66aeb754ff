package connector

import (
	"context"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTTransport is the topic/queue variant over an MQTT broker. Inbound
// messages arrive on subscribed destinations; outbound client frames are
// published to a single uplink topic. Reconnect policy stays with the
// Manager, so paho's own auto-reconnect is disabled.
type MQTTTransport struct {
	broker      string
	port        int
	clientID    string
	keepalive   time.Duration
	uplinkTopic string

	mu      sync.Mutex
	client  mqtt.Client
	onClose CloseHandler
	closed  bool
}

// NewMQTTTransport creates an MQTT transport.
func NewMQTTTransport(broker string, port int, clientID, uplinkTopic string, keepalive time.Duration) *MQTTTransport {
	if keepalive <= 0 {
		keepalive = 30 * time.Second
	}
	return &MQTTTransport{
		broker:      broker,
		port:        port,
		clientID:    clientID,
		keepalive:   keepalive,
		uplinkTopic: uplinkTopic,
	}
}

// Connect establishes the broker session. The CONNACK completing the MQTT
// handshake is what reports success.
func (t *MQTTTransport) Connect(ctx context.Context, onClose CloseHandler) error {
	t.mu.Lock()
	t.onClose = onClose
	t.closed = false
	t.mu.Unlock()

	addr := fmt.Sprintf("tcp://%s:%d", t.broker, t.port)
	opts := mqtt.NewClientOptions().
		AddBroker(addr).
		SetClientID(t.clientID).
		SetAutoReconnect(false).
		SetKeepAlive(t.keepalive).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			t.handleLost(err)
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if deadline, ok := ctx.Deadline(); ok {
		if !token.WaitTimeout(time.Until(deadline)) {
			client.Disconnect(0)
			return fmt.Errorf("mqtt connect %s: timeout", addr)
		}
	} else {
		token.Wait()
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect %s: %w", addr, err)
	}

	t.mu.Lock()
	t.client = client
	t.mu.Unlock()
	return nil
}

func (t *MQTTTransport) handleLost(err error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	cb := t.onClose
	t.mu.Unlock()
	if cb != nil {
		cb(err)
	}
}

// Close disconnects with a clean DISCONNECT packet.
func (t *MQTTTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	client := t.client
	t.client = nil
	t.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}
	return nil
}

// Send publishes a client frame to the uplink topic at QoS 1.
func (t *MQTTTransport) Send(event string, data []byte) error {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil || !client.IsConnected() {
		return fmt.Errorf("mqtt: not connected")
	}

	token := client.Publish(t.uplinkTopic, 1, false, data)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish %s: %w", event, err)
	}
	return nil
}

// Subscribe registers a broker subscription at QoS 1.
func (t *MQTTTransport) Subscribe(topic string, fn FrameHandler) (TransportSub, error) {
	t.mu.Lock()
	client := t.client
	t.mu.Unlock()
	if client == nil {
		return nil, fmt.Errorf("mqtt: not connected")
	}

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		fn(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt subscribe %s: %w", topic, err)
	}
	return &mqttSub{t: t, topic: topic}, nil
}

type mqttSub struct {
	t     *MQTTTransport
	topic string
}

func (s *mqttSub) Cancel() error {
	s.t.mu.Lock()
	client := s.t.client
	s.t.mu.Unlock()
	if client == nil {
		return nil
	}
	token := client.Unsubscribe(s.topic)
	token.Wait()
	return token.Error()
}
