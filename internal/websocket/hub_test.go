package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"inbox/backend/internal/domain"
	"inbox/backend/internal/session"
)

type staticResolver map[string]*session.Session

func (r staticResolver) Resolve(token string) (*session.Session, error) {
	if sess, ok := r[token]; ok {
		return sess, nil
	}
	return nil, errors.New("unknown token")
}

func newTestHub(t *testing.T, resolver SessionResolver) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(nil, resolver, nil, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/v1/ws", HandleWebSocket(hub))
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		cancel()
		server.Close()
	})
	return hub, "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/ws"
}

func openSession(t *testing.T) *session.Session {
	t.Helper()
	registry := session.NewRegistry(func() []domain.Message {
		return domain.SeedMessages(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	}, time.Hour)
	sess, err := registry.Open()
	require.NoError(t, err)
	return sess
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHandleWebSocket_RejectsMissingToken(t *testing.T) {
	_, url := newTestHub(t, staticResolver{})

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandleWebSocket_RejectsUnknownToken(t *testing.T) {
	_, url := newTestHub(t, staticResolver{})

	_, resp, err := websocket.DefaultDialer.Dial(url+"?token=bogus", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHub_SnapshotAndChanges(t *testing.T) {
	sess := openSession(t)
	other := openSession(t)
	hub, url := newTestHub(t, staticResolver{"a": sess, "b": other})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=a", nil)
	require.NoError(t, err)
	defer conn.Close()

	otherConn, _, err := websocket.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer b"}})
	require.NoError(t, err)
	defer otherConn.Close()

	snapshot := readMessage(t, conn)
	assert.Equal(t, MessageTypeSnapshot, snapshot.Type)
	var messages []domain.Message
	require.NoError(t, json.Unmarshal(snapshot.Data, &messages))
	assert.Len(t, messages, sess.Store.Len())

	assert.Equal(t, MessageTypeSnapshot, readMessage(t, otherConn).Type)
	assert.Equal(t, 2, hub.ClientCount())

	sess.Store.MarkRead(1)
	hub.NotifyMessagesChanged(domain.MessageChange{
		SessionID: sess.ID,
		Op:        domain.OpMarkRead,
		MessageID: 1,
		Messages:  sess.Store.Snapshot(),
		At:        time.Now(),
	})

	changed := readMessage(t, conn)
	assert.Equal(t, MessageTypeChanged, changed.Type)
	assert.Equal(t, sess.ID, changed.SessionID)

	var change domain.MessageChange
	require.NoError(t, json.Unmarshal(changed.Data, &change))
	assert.Equal(t, domain.OpMarkRead, change.Op)
	assert.Equal(t, int64(1), change.MessageID)

	// 其他会话收不到该变更
	require.NoError(t, otherConn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var unexpected Message
	assert.Error(t, otherConn.ReadJSON(&unexpected))
}

func TestHub_PingPong(t *testing.T) {
	sess := openSession(t)
	_, url := newTestHub(t, staticResolver{"a": sess})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=a", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(Message{Type: MessageTypePing}))
	assert.Equal(t, MessageTypePong, readMessage(t, conn).Type)
}

func TestHub_SessionClosed(t *testing.T) {
	sess := openSession(t)
	hub, url := newTestHub(t, staticResolver{"a": sess})

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=a", nil)
	require.NoError(t, err)
	defer conn.Close()
	readMessage(t, conn)

	hub.SessionClosed(sess.ID)

	assert.Equal(t, MessageTypeSessionClosed, readMessage(t, conn).Type)
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, time.Second, 10*time.Millisecond)
}
