package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Frame is the universal message wrapper for all realtime traffic. On the
// event socket it is the full wire unit; on the broker transports it is the
// message body published to a topic.
type Frame struct {
	Version   int             `json:"v"`
	Event     string          `json:"event"`
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"ts"`
	Payload   json.RawMessage `json:"payload"`
}

// NewFrame creates an outbound frame with a fresh message ID.
func NewFrame(event string, payload any) (*Frame, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return &Frame{
		Version:   Version,
		Event:     event,
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}, nil
}

// DecodeFrame unmarshals a raw transport payload into a Frame.
func DecodeFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if f.Event == "" {
		return nil, fmt.Errorf("decode frame: missing event name")
	}
	return &f, nil
}

// DecodePayload unmarshals the frame payload into the given target.
func (f *Frame) DecodePayload(target any) error {
	return json.Unmarshal(f.Payload, target)
}

// Encode marshals the frame to JSON.
func (f *Frame) Encode() ([]byte, error) {
	return json.Marshal(f)
}
