package webchat

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/counsel-room/internal/conversation"
)

const replyJSON = `{"analysis": "a", "needs": "傾聴", "reply": "話してくれてありがとう。"}`

func newService(fn conversation.LLMClientFunc) *conversation.Service {
	return conversation.NewService(
		conversation.NewMemorySessionStore(conversation.DefaultSessionTTL),
		conversation.NewOrchestrator(fn, nil),
		conversation.NewReflector(fn, ""),
		nil,
		nil,
	)
}

func replyingClient(ctx context.Context, req conversation.LLMRequest) (conversation.LLMResponse, error) {
	if req.Purpose == "reflection" {
		return conversation.LLMResponse{Text: "今日のまとめ"}, nil
	}
	return conversation.LLMResponse{Text: replyJSON}, nil
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, err := websocket.Dial(url, "", srv.URL)
	require.NoError(t, err)
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func receive(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	var out OutboundMessage
	require.NoError(t, websocket.JSON.Receive(conn, &out))
	return out
}

func newServer(t *testing.T, svc *conversation.Service) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", NewHandler(svc, nil).HandleWebSocket)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestWebSocketConversation(t *testing.T) {
	svc := newService(replyingClient)
	srv := newServer(t, svc)
	conn := dial(t, srv, "")

	session := receive(t, conn)
	require.Equal(t, "session", session.Type)
	require.NotEmpty(t, session.SessionID)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "ping"}))
	assert.Equal(t, "pong", receive(t, conn).Type)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "こんにちは"}))
	msg := receive(t, conn)
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, "話してくれてありがとう。", msg.Text)
	assert.Equal(t, 1, msg.RiskTier)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "自殺したい"}))
	msg = receive(t, conn)
	assert.Equal(t, "message", msg.Type)
	assert.Equal(t, 5, msg.RiskTier)
	resources := receive(t, conn)
	assert.Equal(t, "resources", resources.Type)
	assert.Len(t, resources.Resources, 2)

	stored, err := svc.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, 4)
}

func TestWebSocketResumesSession(t *testing.T) {
	svc := newService(replyingClient)
	ctx := context.Background()
	existing, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, existing.ID, "こんにちは")
	require.NoError(t, err)

	srv := newServer(t, svc)
	conn := dial(t, srv, "?session="+existing.ID)

	session := receive(t, conn)
	assert.Equal(t, existing.ID, session.SessionID)
	history := receive(t, conn)
	assert.Equal(t, "history", history.Type)
	assert.Len(t, history.Messages, 2)
}

func TestWebSocketUnknownSessionStartsFresh(t *testing.T) {
	srv := newServer(t, newService(replyingClient))
	conn := dial(t, srv, "?session=does-not-exist")

	session := receive(t, conn)
	assert.Equal(t, "session", session.Type)
	assert.NotEqual(t, "does-not-exist", session.SessionID)
}

func TestWebSocketAdvisoryOnFailure(t *testing.T) {
	failing := func(ctx context.Context, req conversation.LLMRequest) (conversation.LLMResponse, error) {
		return conversation.LLMResponse{}, errors.New("down")
	}
	srv := newServer(t, newService(failing))
	conn := dial(t, srv, "")
	receive(t, conn)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "こんにちは"}))
	advisory := receive(t, conn)
	assert.Equal(t, "advisory", advisory.Type)
	assert.Equal(t, conversation.GenerationFailureMessage, advisory.Text)
}

func TestWebSocketResetAndReflect(t *testing.T) {
	svc := newService(replyingClient)
	srv := newServer(t, svc)
	conn := dial(t, srv, "")
	session := receive(t, conn)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "reflect"}))
	unavailable := receive(t, conn)
	assert.Equal(t, "error", unavailable.Type)
	assert.Equal(t, reflectionUnavailableMessage, unavailable.Text)

	for i := 0; i < 4; i++ {
		require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "message", Text: "こんにちは"}))
		receive(t, conn)
	}
	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "reflect"}))
	reflection := receive(t, conn)
	assert.Equal(t, "reflection", reflection.Type)
	assert.Equal(t, "今日のまとめ", reflection.Text)

	require.NoError(t, websocket.JSON.Send(conn, InboundMessage{Type: "reset"}))
	reset := receive(t, conn)
	assert.Equal(t, "session", reset.Type)
	assert.Equal(t, session.SessionID, reset.SessionID)

	stored, err := svc.GetSession(context.Background(), session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, stored.Transcript)
}
