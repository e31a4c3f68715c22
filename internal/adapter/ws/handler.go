package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
)

// HandleWS upgrades the request to a WebSocket connection and runs its read
// loop. The connection joins the registry once it sends a register frame.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		slog.Error("websocket accept failed", "error", err)
		return
	}

	// The connection outlives the HTTP request; cleanup on abnormal closure
	// must still reach the store.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	cn := &conn{ws: c, cancel: cancel}
	h.add(cn)

	slog.Info("websocket connected", "remote", r.RemoteAddr)

	go h.readLoop(ctx, cn)
}

// readLoop consumes client frames until the transport fails or closes.
// Malformed frames are logged and dropped without closing the connection;
// unrecoverable transport errors trigger registry cleanup.
func (h *Hub) readLoop(ctx context.Context, c *conn) {
	defer func() {
		h.deregister(ctx, c)
		_ = c.ws.Close(websocket.StatusNormalClosure, "")
	}()

	for {
		_, data, err := c.ws.Read(ctx)
		if err != nil {
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			slog.Warn("malformed frame dropped", "error", err)
			continue
		}

		switch f.Type {
		case FrameRegister:
			h.handleRegister(ctx, c, f)
		case FrameHeartbeat:
			h.handleHeartbeat(ctx, c, f)
		default:
			slog.Warn("unknown frame type dropped", "type", f.Type)
		}
	}
}

// handleRegister resolves the connection's agent identity. A claimed agentId
// in the frame is intentionally ignored: the (name, role) upsert is the
// authority, so a reconnecting agent gets its existing id back and a forged
// id cannot take over another agent's row.
func (h *Hub) handleRegister(ctx context.Context, c *conn, f Frame) {
	if f.Role == "" || f.Name == "" {
		slog.Warn("register frame missing role or name")
		return
	}

	agentID, err := h.register(ctx, c, f)
	if err != nil {
		slog.Error("register failed", "name", f.Name, "role", f.Role, "error", err)
		return
	}

	h.send(ctx, c, Frame{
		Type:      FrameRegistered,
		AgentID:   agentID,
		Timestamp: now(),
	})
}

func (h *Hub) handleHeartbeat(ctx context.Context, c *conn, f Frame) {
	if f.AgentID == "" {
		return
	}

	h.Touch(f.AgentID)
	if err := h.store.TouchAgent(ctx, f.AgentID); err != nil {
		slog.Error("touch agent failed", "agent_id", f.AgentID, "error", err)
	}

	h.send(ctx, c, Frame{
		Type:      FrameHeartbeatAck,
		Timestamp: now(),
	})
}

func (h *Hub) send(ctx context.Context, c *conn, f Frame) {
	data, err := json.Marshal(f)
	if err != nil {
		slog.Error("frame marshal failed", "error", err)
		return
	}
	if err := c.ws.Write(ctx, websocket.MessageText, data); err != nil {
		slog.Debug("websocket write failed", "error", err)
	}
}
