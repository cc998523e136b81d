package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message is the envelope for every frame exchanged with clients
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// MessageType identifies the payload carried by a Message
type MessageType string

// Client to server
const (
	MessageTypeJoin        MessageType = "join"
	MessageTypePulse       MessageType = "pulse"
	MessageTypeChangeColor MessageType = "change-color"
)

// Server to client
const (
	MessageTypeJoined       MessageType = "joined"
	MessageTypeBurst        MessageType = "burst"
	MessageTypeStreakBroken MessageType = "streak-broken"
	MessageTypeUserCount    MessageType = "user-count"
	MessageTypeColorChanged MessageType = "color-changed"
	MessageTypeError        MessageType = "error"
	// pulse broadcasts reuse MessageTypePulse
)

// NewMessage wraps a payload in an envelope stamped with the given time
func NewMessage(t MessageType, payload interface{}, at time.Time) (*Message, error) {
	msg := &Message{Type: t, Timestamp: at}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", t, err)
		}
		msg.Data = data
	}
	return msg, nil
}

// DecodeData unmarshals the envelope's data into v
func (m *Message) DecodeData(v interface{}) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s message has no data", m.Type)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("decode %s data: %w", m.Type, err)
	}
	return nil
}
