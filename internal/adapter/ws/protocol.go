package ws

import (
	"encoding/json"
	"time"
)

// Frame is the envelope for all WebSocket messages, client and server bound.
type Frame struct {
	Type      string          `json:"type"`
	AgentID   string          `json:"agentId,omitempty"`
	Role      string          `json:"role,omitempty"`
	Name      string          `json:"name,omitempty"`
	Content   json.RawMessage `json:"content,omitempty"`
	Timestamp *time.Time      `json:"timestamp,omitempty"`
}

// Frame types. Clients send register and heartbeat; the server replies with
// registered and heartbeat_ack and pushes message and broadcast frames.
const (
	FrameRegister     = "register"
	FrameRegistered   = "registered"
	FrameHeartbeat    = "heartbeat"
	FrameHeartbeatAck = "heartbeat_ack"
	FrameMessage      = "message"
	FrameBroadcast    = "broadcast"
)

func now() *time.Time {
	t := time.Now().UTC()
	return &t
}
