package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmlink/internal/domain/entity"
	"farmlink/internal/infrastructure/events"
)

type fakeThreads struct {
	calls chan string
}

func (f *fakeThreads) MarkThreadRead(ctx context.Context, actor entity.Actor, otherID string) (int, error) {
	f.calls <- actor.UserID + "<-" + otherID
	return 2, nil
}

func startManager(t *testing.T, threads ThreadReader) (*Manager, *httptest.Server) {
	t.Helper()

	m := NewManager(threads)
	ctx, cancel := context.WithCancel(context.Background())
	go m.Run(ctx)

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		m.Attach(conn, entity.Actor{UserID: r.URL.Query().Get("user"), Role: entity.RoleBuyer})
	}))

	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return m, srv
}

func dial(t *testing.T, m *Manager, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	before := m.Connections(userID)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?user=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	assert.Eventually(t, func() bool { return m.Connections(userID) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var frame map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &frame))
	return frame
}

func TestSendToUserReachesEveryConnection(t *testing.T) {
	m, srv := startManager(t, nil)
	first := dial(t, m, srv, "u1")
	second := dial(t, m, srv, "u1")
	other := dial(t, m, srv, "u2")

	m.SendToUser("u1", "notification", map[string]string{"title": "New order"})

	for _, conn := range []*websocket.Conn{first, second} {
		frame := readFrame(t, conn)
		assert.Equal(t, "notification", frame["type"])
		assert.Equal(t, "New order", frame["data"].(map[string]interface{})["title"])
	}

	require.NoError(t, other.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, _, err := other.ReadMessage()
	assert.Error(t, err)
}

func TestBusEventsGoToRecipients(t *testing.T) {
	m, srv := startManager(t, nil)
	conn := dial(t, m, srv, "farmer-1")

	bus := events.NewBus()
	m.Subscribe(bus)

	event, err := entity.NewOutboxEvent(entity.EventMessageSent, "m1", []string{"farmer-1"}, map[string]string{"id": "m1"}, time.Now())
	require.NoError(t, err)
	require.NoError(t, bus.Publish(context.Background(), event))

	frame := readFrame(t, conn)
	assert.Equal(t, string(entity.EventMessageSent), frame["type"])
	assert.Equal(t, "m1", frame["data"].(map[string]interface{})["id"])
}

func TestClientFrames(t *testing.T) {
	threads := &fakeThreads{calls: make(chan string, 1)}
	m, srv := startManager(t, threads)
	buyer := dial(t, m, srv, "buyer-1")
	farmer := dial(t, m, srv, "farmer-1")

	require.NoError(t, buyer.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, FramePong, readFrame(t, buyer)["type"])

	require.NoError(t, buyer.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","data":{"user_id":"farmer-1","typing":true}}`)))
	typing := readFrame(t, farmer)
	assert.Equal(t, FrameTyping, typing["type"])
	assert.Equal(t, "buyer-1", typing["data"].(map[string]interface{})["user_id"])

	require.NoError(t, buyer.WriteMessage(websocket.TextMessage, []byte(`{"type":"mark_read","data":{"user_id":"farmer-1"}}`)))
	ack := readFrame(t, buyer)
	assert.Equal(t, FrameReadAck, ack["type"])
	assert.EqualValues(t, 2, ack["data"].(map[string]interface{})["count"])
	assert.Equal(t, "buyer-1<-farmer-1", <-threads.calls)
	assert.Equal(t, FrameReadReceipt, readFrame(t, farmer)["type"])

	require.NoError(t, buyer.WriteMessage(websocket.TextMessage, []byte(`not json`)))
	assert.Equal(t, FrameError, readFrame(t, buyer)["type"])
}

func TestClosedConnectionIsUnregistered(t *testing.T) {
	m, srv := startManager(t, nil)
	conn := dial(t, m, srv, "u1")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return m.Connections("u1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
