package chat

import (
	"encoding/json"

	"Parley/module/delivery/model"
)

// FrameType tags a websocket frame in either direction.
type FrameType string

const (
	FrameSubscribe   FrameType = "subscribe"   // client -> server
	FrameUnsubscribe FrameType = "unsubscribe" // client -> server
	FramePing        FrameType = "ping"        // client -> server
	FramePong        FrameType = "pong"        // server -> client
	FrameEnvelope    FrameType = "envelope"    // server -> client
	FrameError       FrameType = "error"       // server -> client
)

type Frame struct {
	Type           FrameType       `json:"type"`
	ConversationID string          `json:"conversationId,omitempty"`
	Envelope       *model.Envelope `json:"envelope,omitempty"`
	Error          string          `json:"error,omitempty"`
}

func ParseFrame(data []byte) (*Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

func (f *Frame) Marshal() []byte {
	b, _ := json.Marshal(f)
	return b
}
