package websocket

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope used in both directions on the surface socket.
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	// Server -> browser.
	TypeMount   = "mount"
	TypeUnmount = "unmount"
	TypeCommand = "command"
	TypeState   = "state"

	// Browser -> server.
	TypeHello         = "hello"
	TypeRendererEvent = "renderer_event"
)

func encode(kind string, data interface{}) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", kind, err)
	}
	return json.Marshal(Message{Type: kind, Data: raw})
}
