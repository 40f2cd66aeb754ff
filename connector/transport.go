package connector

import "context"

// FrameHandler receives one raw inbound message and the destination it
// arrived on.
type FrameHandler func(topic string, data []byte)

// TransportSub is a live transport-level subscription handle.
type TransportSub interface {
	Cancel() error
}

// CloseHandler is invoked once when an established connection is lost for
// any reason other than an explicit Close.
type CloseHandler func(err error)

// Transport owns one connection to the realtime backend. Implementations
// exist for the generic event socket (websocket) and for topic brokers
// (MQTT, Kafka) behind the same contract. Only the Manager touches a
// Transport; everything else goes through Manager methods.
type Transport interface {
	// Connect opens the transport. It returns only after the
	// transport-level handshake has succeeded.
	Connect(ctx context.Context, onClose CloseHandler) error

	// Close shuts the connection down with a normal closure. It must not
	// trigger the CloseHandler.
	Close() error

	// Send delivers one outbound message. The event name is advisory for
	// brokers that publish everything to a single uplink destination.
	Send(event string, data []byte) error

	// Subscribe registers interest in a destination. The handler is called
	// from the transport's read loop for every message on that destination.
	Subscribe(topic string, fn FrameHandler) (TransportSub, error)
}
