package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"farmlink/internal/domain/entity"
	"farmlink/internal/infrastructure/events"
	"farmlink/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxFrameSize   = 8 << 10
	sendBufferSize = 64
)

// Client is one live connection. A user may hold several.
type Client struct {
	Actor entity.Actor
	Conn  *websocket.Conn
	Send  chan []byte
}

// Manager tracks every live connection per user and pushes frames to them.
type Manager struct {
	clients  map[string]map[*Client]struct{}
	register chan *Client
	done     chan struct{}
	threads  ThreadReader
	mutex    sync.RWMutex
}

func NewManager(threads ThreadReader) *Manager {
	return &Manager{
		clients:  make(map[string]map[*Client]struct{}),
		register: make(chan *Client),
		done:     make(chan struct{}),
		threads:  threads,
	}
}

// Run owns registration until ctx is cancelled, then closes every connection.
func (m *Manager) Run(ctx context.Context) error {
	logger.Info("Websocket manager started")
	defer close(m.done)

	for {
		select {
		case client := <-m.register:
			m.mutex.Lock()
			set, ok := m.clients[client.Actor.UserID]
			if !ok {
				set = make(map[*Client]struct{})
				m.clients[client.Actor.UserID] = set
			}
			set[client] = struct{}{}
			connections := len(set)
			m.mutex.Unlock()
			logger.Debug("Websocket client registered: user=%s connections=%d", client.Actor.UserID, connections)

			go client.WritePump()
			go client.ReadPump(m)

		case <-ctx.Done():
			m.mutex.Lock()
			for userID, set := range m.clients {
				for client := range set {
					close(client.Send)
				}
				delete(m.clients, userID)
			}
			m.mutex.Unlock()
			logger.Info("Websocket manager stopped")
			return nil
		}
	}
}

func (m *Manager) remove(client *Client) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	set, ok := m.clients[client.Actor.UserID]
	if !ok {
		return
	}
	if _, ok := set[client]; !ok {
		return
	}
	delete(set, client)
	close(client.Send)
	if len(set) == 0 {
		delete(m.clients, client.Actor.UserID)
	}
	logger.Debug("Websocket client unregistered: user=%s", client.Actor.UserID)
}

// Attach registers conn for actor; its read and write pumps start once Run
// has recorded it. Returns nil and closes conn once the manager has stopped.
func (m *Manager) Attach(conn *websocket.Conn, actor entity.Actor) *Client {
	client := &Client{
		Actor: actor,
		Conn:  conn,
		Send:  make(chan []byte, sendBufferSize),
	}

	select {
	case m.register <- client:
	case <-m.done:
		conn.Close()
		return nil
	}
	return client
}

// Connections reports how many live connections userID has.
func (m *Manager) Connections(userID string) int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.clients[userID])
}

// SendToUser pushes a frame to every connection of userID. A connection
// whose buffer is full is dropped rather than blocking the caller.
func (m *Manager) SendToUser(userID, kind string, payload interface{}) {
	frame, err := encodeFrame(kind, payload)
	if err != nil {
		logger.Error("Websocket: failed to encode %s frame for %s: %v", kind, userID, err)
		return
	}
	m.sendRaw(userID, frame)
}

func (m *Manager) sendRaw(userID string, frame []byte) {
	m.mutex.RLock()
	var stalled []*Client
	for client := range m.clients[userID] {
		select {
		case client.Send <- frame:
		default:
			stalled = append(stalled, client)
		}
	}
	m.mutex.RUnlock()

	for _, client := range stalled {
		logger.Warn("Websocket: dropping stalled connection for %s", userID)
		m.remove(client)
	}
}

// Subscribe forwards every committed event to its recipients.
func (m *Manager) Subscribe(bus *events.Bus) {
	bus.SubscribeAll("websocket", func(ctx context.Context, event *entity.OutboxEvent) error {
		frame, err := encodeFrame(string(event.Type), json.RawMessage(event.Payload))
		if err != nil {
			return err
		}
		for _, userID := range event.Recipients {
			m.sendRaw(userID, frame)
		}
		return nil
	})
}

// ReadPump reads frames until the connection closes.
func (c *Client) ReadPump(m *Manager) {
	defer func() {
		m.remove(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxFrameSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("Websocket read error for %s: %v", c.Actor.UserID, err)
			}
			return
		}
		m.HandleClientMessage(c, message)
	}
}

// WritePump writes queued frames and keeps the connection alive with pings.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Warn("Websocket write error for %s: %v", c.Actor.UserID, err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
