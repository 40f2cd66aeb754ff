package connector

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaTransport is the topic/queue variant over Kafka. Each subscribed
// destination gets its own reader in the client's consumer group; outbound
// client frames are written to the uplink topic keyed by event name.
type KafkaTransport struct {
	brokers     []string
	groupID     string
	uplinkTopic string

	mu       sync.Mutex
	writer   *kafka.Writer
	readers  map[string]*kafka.Reader
	onClose  CloseHandler
	closed   bool
	reported bool
	cancel   context.CancelFunc
	readCtx  context.Context
}

// NewKafkaTransport creates a Kafka transport.
func NewKafkaTransport(brokers []string, groupID, uplinkTopic string) *KafkaTransport {
	return &KafkaTransport{
		brokers:     brokers,
		groupID:     groupID,
		uplinkTopic: uplinkTopic,
	}
}

// Connect verifies at least one broker is reachable and prepares the
// writer. Readers are created per subscription.
func (t *KafkaTransport) Connect(ctx context.Context, onClose CloseHandler) error {
	if len(t.brokers) == 0 {
		return fmt.Errorf("kafka: no brokers configured")
	}

	// Tear down any previous epoch first. Its reader goroutines must not
	// survive to deliver stale frames into the new one.
	t.mu.Lock()
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	oldReaders := t.readers
	t.readers = nil
	oldWriter := t.writer
	t.writer = nil
	t.mu.Unlock()
	for _, r := range oldReaders {
		r.Close()
	}
	if oldWriter != nil {
		oldWriter.Close()
	}

	var conn *kafka.Conn
	var connErr error
	for _, broker := range t.brokers {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		conn, connErr = kafka.DialContext(dialCtx, "tcp", broker)
		cancel()
		if connErr == nil {
			conn.Close()
			break
		}
	}
	if connErr != nil {
		return fmt.Errorf("kafka connect: %w", connErr)
	}

	readCtx, cancel := context.WithCancel(context.Background())

	t.mu.Lock()
	t.writer = &kafka.Writer{
		Addr:         kafka.TCP(t.brokers...),
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}
	t.readers = make(map[string]*kafka.Reader)
	t.onClose = onClose
	t.closed = false
	t.reported = false
	t.readCtx = readCtx
	t.cancel = cancel
	t.mu.Unlock()
	return nil
}

// Close tears down readers and the writer without firing the CloseHandler.
func (t *KafkaTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	readers := t.readers
	t.readers = nil
	writer := t.writer
	t.writer = nil
	t.mu.Unlock()

	for _, r := range readers {
		r.Close()
	}
	if writer != nil {
		writer.Close()
	}
	return nil
}

// Send writes a client frame to the uplink topic.
func (t *KafkaTransport) Send(event string, data []byte) error {
	t.mu.Lock()
	writer := t.writer
	t.mu.Unlock()
	if writer == nil {
		return fmt.Errorf("kafka: not connected")
	}
	return writer.WriteMessages(context.Background(), kafka.Message{
		Topic: t.uplinkTopic,
		Key:   []byte(event),
		Value: data,
	})
}

// Subscribe starts a consumer for one destination.
func (t *KafkaTransport) Subscribe(topic string, fn FrameHandler) (TransportSub, error) {
	t.mu.Lock()
	if t.readers == nil {
		t.mu.Unlock()
		return nil, fmt.Errorf("kafka: not connected")
	}
	if _, ok := t.readers[topic]; ok {
		t.mu.Unlock()
		return nil, fmt.Errorf("kafka: already consuming %s", topic)
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers: t.brokers,
		Topic:   topic,
		GroupID: t.groupID,
	})
	t.readers[topic] = reader
	readCtx := t.readCtx
	t.mu.Unlock()

	go func() {
		for {
			msg, err := reader.ReadMessage(readCtx)
			if err != nil {
				if readCtx.Err() != nil {
					return
				}
				t.reportLost(fmt.Errorf("kafka read %s: %w", topic, err))
				return
			}
			fn(msg.Topic, msg.Value)
		}
	}()
	return &kafkaSub{t: t, topic: topic}, nil
}

// reportLost surfaces a reader failure as connection loss, once.
func (t *KafkaTransport) reportLost(err error) {
	t.mu.Lock()
	if t.closed || t.reported {
		t.mu.Unlock()
		return
	}
	t.reported = true
	cb := t.onClose
	t.mu.Unlock()

	log.Printf("kafka: %v", err)
	if cb != nil {
		cb(err)
	}
}

type kafkaSub struct {
	t     *KafkaTransport
	topic string
}

func (s *kafkaSub) Cancel() error {
	s.t.mu.Lock()
	var reader *kafka.Reader
	if s.t.readers != nil {
		reader = s.t.readers[s.topic]
		delete(s.t.readers, s.topic)
	}
	s.t.mu.Unlock()
	if reader == nil {
		return nil
	}
	return reader.Close()
}
