package webchat

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/net/websocket"

	"github.com/wolfman30/counsel-room/internal/conversation"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

// ChatService is the slice of conversation.Service the widget needs.
type ChatService interface {
	CreateSession(ctx context.Context) (*conversation.Session, error)
	GetSession(ctx context.Context, id string) (*conversation.Session, error)
	ResetSession(ctx context.Context, id string) (*conversation.Session, error)
	SendMessage(ctx context.Context, id, text string) (conversation.TurnResult, error)
	Reflect(ctx context.Context, id string) (string, error)
}

// Handler serves the chat widget over WebSocket. Each connection has one
// reader loop, so turns on a connection are handled one at a time.
type Handler struct {
	service ChatService
	logger  *logging.Logger
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "reset", "reflect", "ping"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type       string                 `json:"type"` // "session", "history", "typing", "message", "resources", "advisory", "reflection", "error", "pong"
	Text       string                 `json:"text,omitempty"`
	Role       string                 `json:"role,omitempty"`
	SessionID  string                 `json:"session_id,omitempty"`
	RiskTier   int                    `json:"risk_tier,omitempty"`
	Resources  []string               `json:"resources,omitempty"`
	Messages   []conversation.Message `json:"messages,omitempty"`
	CanReflect bool                   `json:"can_reflect,omitempty"`
}

func NewHandler(service ChatService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
// ?session=<id> resumes an existing session; otherwise a new one is created.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	ctx := r.Context()

	session, err := h.openSession(ctx, r.URL.Query().Get("session"))
	if err != nil {
		h.logger.Error("webchat: failed to open session", "error", err)
		_ = websocket.JSON.Send(conn, OutboundMessage{Type: "error", Text: conversation.GenerationFailureMessage})
		return
	}
	sessionID := session.ID
	logger := h.logger.WithSession(sessionID)

	_ = websocket.JSON.Send(conn, OutboundMessage{Type: "session", SessionID: sessionID})
	if len(session.Transcript) > 0 {
		_ = websocket.JSON.Send(conn, OutboundMessage{
			Type:       "history",
			Messages:   session.Transcript,
			CanReflect: conversation.ReflectionAvailable(session.Transcript),
		})
	}

	logger.Info("webchat: connection opened")

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			logger.Debug("webchat: connection closed", "error", err)
			return
		}

		for _, out := range h.dispatch(ctx, sessionID, msg) {
			if err := websocket.JSON.Send(conn, out); err != nil {
				logger.Debug("webchat: send failed", "error", err)
				return
			}
		}
	}
}

func (h *Handler) openSession(ctx context.Context, requested string) (*conversation.Session, error) {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		session, err := h.service.GetSession(ctx, requested)
		if err == nil {
			return session, nil
		}
		if !errors.Is(err, conversation.ErrSessionNotFound) {
			return nil, err
		}
	}
	return h.service.CreateSession(ctx)
}

// dispatch handles one inbound frame and returns the frames to send back.
func (h *Handler) dispatch(ctx context.Context, sessionID string, msg InboundMessage) []OutboundMessage {
	switch msg.Type {
	case "ping":
		return []OutboundMessage{{Type: "pong"}}
	case "message":
		if strings.TrimSpace(msg.Text) == "" {
			return nil
		}
		return h.handleTurn(ctx, sessionID, msg.Text)
	case "reset":
		if _, err := h.service.ResetSession(ctx, sessionID); err != nil {
			h.logger.WithSession(sessionID).Error("webchat: reset failed", "error", err)
			return []OutboundMessage{{Type: "error", Text: conversation.GenerationFailureMessage}}
		}
		return []OutboundMessage{{Type: "session", SessionID: sessionID}}
	case "reflect":
		note, err := h.service.Reflect(ctx, sessionID)
		if errors.Is(err, conversation.ErrReflectionUnavailable) {
			return []OutboundMessage{{Type: "error", Text: reflectionUnavailableMessage}}
		}
		if err != nil {
			return []OutboundMessage{{Type: "error", Text: conversation.GenerationFailureMessage}}
		}
		return []OutboundMessage{{Type: "reflection", Text: note}}
	default:
		return nil
	}
}

const reflectionUnavailableMessage = "もう少しお話ししてから、振り返りをしてみましょう。"

func (h *Handler) handleTurn(ctx context.Context, sessionID, text string) []OutboundMessage {
	result, err := h.service.SendMessage(ctx, sessionID, text)
	if err != nil {
		h.logger.WithSession(sessionID).Warn("webchat: message rejected", "error", err)
		return []OutboundMessage{{Type: "error", Text: conversation.GenerationFailureMessage}}
	}

	out := make([]OutboundMessage, 0, 3)
	if result.Failure == conversation.FailureNone {
		out = append(out, OutboundMessage{
			Type:       "message",
			Role:       conversation.RoleAssistant,
			Text:       result.Reply,
			RiskTier:   int(result.Tier),
			CanReflect: conversation.ReflectionAvailable(result.Transcript),
		})
	}
	if result.ShowResources {
		out = append(out, OutboundMessage{Type: "resources", Resources: result.Resources, RiskTier: int(result.Tier)})
	}
	if result.Advisory != "" {
		out = append(out, OutboundMessage{Type: "advisory", Text: result.Advisory})
	}
	return out
}
