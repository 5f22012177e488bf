package conversation

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/counsel-room/internal/risk"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

const maxRequestBody = 64 << 10

// Handler wires HTTP requests to the conversation service.
type Handler struct {
	service    *Service
	classifier *risk.Classifier
	logger     *logging.Logger
}

// NewHandler creates a conversation handler. classifier backs the stateless
// /risk/classify probe; nil uses the built-in table.
func NewHandler(service *Service, classifier *risk.Classifier, logger *logging.Logger) *Handler {
	if classifier == nil {
		classifier = risk.NewDefaultClassifier()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		service:    service,
		classifier: classifier,
		logger:     logger,
	}
}

// SessionResponse is the wire form of a Session.
type SessionResponse struct {
	ID                  string    `json:"id"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
	Transcript          []Message `json:"transcript"`
	ElevatedCount       int       `json:"elevated_count"`
	ReflectionAvailable bool      `json:"reflection_available"`
}

func NewSessionResponse(s *Session) SessionResponse {
	transcript := s.Transcript
	if transcript == nil {
		transcript = []Message{}
	}
	return SessionResponse{
		ID:                  s.ID,
		CreatedAt:           s.CreatedAt,
		UpdatedAt:           s.UpdatedAt,
		Transcript:          transcript,
		ElevatedCount:       s.ElevatedCount,
		ReflectionAvailable: ReflectionAvailable(s.Transcript),
	}
}

// TurnResponse is the wire form of a TurnResult.
type TurnResponse struct {
	Reply               string    `json:"reply,omitempty"`
	RiskTier            int       `json:"risk_tier"`
	Need                string    `json:"need"`
	ShowResources       bool      `json:"show_resources"`
	Resources           []string  `json:"resources,omitempty"`
	Failure             string    `json:"failure,omitempty"`
	Advisory            string    `json:"advisory,omitempty"`
	Transcript          []Message `json:"transcript"`
	ReflectionAvailable bool      `json:"reflection_available"`
}

func NewTurnResponse(result TurnResult) TurnResponse {
	return TurnResponse{
		Reply:               result.Reply,
		RiskTier:            int(result.Tier),
		Need:                string(result.Need),
		ShowResources:       result.ShowResources,
		Resources:           result.Resources,
		Failure:             string(result.Failure),
		Advisory:            result.Advisory,
		Transcript:          result.Transcript,
		ReflectionAvailable: ReflectionAvailable(result.Transcript),
	}
}

type textRequest struct {
	Text string `json:"text"`
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.CreateSession(r.Context())
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		http.Error(w, "Failed to create session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusCreated, NewSessionResponse(session))
}

// GetSession handles GET /sessions/{sessionID}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeSessionError(w, "failed to load session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewSessionResponse(session))
}

// DeleteSession handles DELETE /sessions/{sessionID}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := h.service.DeleteSession(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		h.writeSessionError(w, "failed to delete session", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ResetSession handles POST /sessions/{sessionID}/reset.
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.service.ResetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeSessionError(w, "failed to reset session", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewSessionResponse(session))
}

// Message handles POST /sessions/{sessionID}/messages.
func (h *Handler) Message(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		h.logger.Warn("failed to decode message request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.service.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Text)
	if err != nil {
		h.writeSessionError(w, "failed to process message", err)
		return
	}
	h.writeJSON(w, http.StatusOK, NewTurnResponse(result))
}

// Reflection handles POST /sessions/{sessionID}/reflection.
func (h *Handler) Reflection(w http.ResponseWriter, r *http.Request) {
	note, err := h.service.Reflect(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeSessionError(w, "failed to write reflection", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"reflection": note})
}

// ClassifyRisk handles POST /risk/classify. It never touches a session.
func (h *Handler) ClassifyRisk(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	tier := h.classifier.Classify(req.Text)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"risk_tier": int(tier),
		"elevated":  tier.Elevated(),
	})
}

func (h *Handler) writeSessionError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrEmptyMessage):
		http.Error(w, "Message text is required", http.StatusBadRequest)
	case errors.Is(err, ErrMessageTooLong):
		http.Error(w, "Message text is too long", http.StatusBadRequest)
	case errors.Is(err, ErrReflectionUnavailable):
		http.Error(w, "Reflection is not available yet", http.StatusConflict)
	default:
		h.logger.Error(msg, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
