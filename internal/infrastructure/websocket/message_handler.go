package websocket

import (
	"context"
	"encoding/json"
	"time"

	"farmlink/internal/domain/entity"
	"farmlink/pkg/logger"
)

const (
	FramePing        = "ping"
	FramePong        = "pong"
	FrameTyping      = "typing"
	FrameMarkRead    = "mark_read"
	FrameReadAck     = "read_ack"
	FrameReadReceipt = "read_receipt"
	FrameError       = "error"
)

// ThreadReader marks a conversation read on behalf of a connected user.
type ThreadReader interface {
	MarkThreadRead(ctx context.Context, actor entity.Actor, otherID string) (int, error)
}

// Frame is the envelope for every message in both directions.
type Frame struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

type inboundFrame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type TypingData struct {
	UserID string `json:"user_id"`
	Typing bool   `json:"typing"`
}

type ReadData struct {
	UserID string `json:"user_id"`
	Count  int    `json:"count,omitempty"`
}

func encodeFrame(kind string, payload interface{}) ([]byte, error) {
	return json.Marshal(Frame{Type: kind, Data: payload, Timestamp: time.Now().UTC()})
}

// HandleClientMessage processes one frame sent by a client.
func (m *Manager) HandleClientMessage(client *Client, raw []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		m.sendError(client, "Invalid frame format")
		return
	}

	switch frame.Type {
	case FramePing:
		m.reply(client, FramePong, map[string]string{"status": "alive"})

	case FrameTyping:
		var data TypingData
		if err := json.Unmarshal(frame.Data, &data); err != nil || data.UserID == "" || data.UserID == client.Actor.UserID {
			m.sendError(client, "typing needs the other user's id")
			return
		}
		m.SendToUser(data.UserID, FrameTyping, TypingData{UserID: client.Actor.UserID, Typing: data.Typing})

	case FrameMarkRead:
		m.handleMarkRead(client, frame.Data)

	default:
		logger.Debug("Websocket: unknown frame type %q from %s", frame.Type, client.Actor.UserID)
		m.sendError(client, "Unknown frame type")
	}
}

func (m *Manager) handleMarkRead(client *Client, raw json.RawMessage) {
	var data ReadData
	if err := json.Unmarshal(raw, &data); err != nil || data.UserID == "" {
		m.sendError(client, "mark_read needs the other user's id")
		return
	}
	if m.threads == nil {
		m.sendError(client, "mark_read is not available")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()

	n, err := m.threads.MarkThreadRead(ctx, client.Actor, data.UserID)
	if err != nil {
		logger.Warn("Websocket mark_read failed for %s: %v", client.Actor.UserID, err)
		m.sendError(client, "Failed to mark conversation read")
		return
	}

	m.reply(client, FrameReadAck, ReadData{UserID: data.UserID, Count: n})
	if n > 0 {
		m.SendToUser(data.UserID, FrameReadReceipt, ReadData{UserID: client.Actor.UserID, Count: n})
	}
}

func (m *Manager) reply(client *Client, kind string, payload interface{}) {
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		logger.Error("Websocket: failed to encode %s frame: %v", kind, err)
		return
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()
	if _, live := m.clients[client.Actor.UserID][client]; !live {
		return
	}
	select {
	case client.Send <- frame:
	default:
		logger.Warn("Websocket: reply dropped for %s, buffer full", client.Actor.UserID)
	}
}

func (m *Manager) sendError(client *Client, message string) {
	m.reply(client, FrameError, map[string]string{"message": message})
}
