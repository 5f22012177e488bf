package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/wolfman30/counsel-room/internal/observability/metrics"
	"github.com/wolfman30/counsel-room/internal/risk"
	"github.com/wolfman30/counsel-room/pkg/logging"
)

// MaxMessageRunes caps a single student message.
const MaxMessageRunes = 2000

var (
	ErrEmptyMessage   = errors.New("conversation: message is empty")
	ErrMessageTooLong = errors.New("conversation: message is too long")
)

// Service owns the session lifecycle and serializes turns per session.
type Service struct {
	store        SessionStore
	orchestrator *Orchestrator
	reflector    *Reflector
	logger       *logging.Logger
	metrics      *metrics.CounselMetrics
	now          func() time.Time

	locks *sessionLocks
}

func NewService(store SessionStore, orchestrator *Orchestrator, reflector *Reflector, logger *logging.Logger, m *metrics.CounselMetrics) *Service {
	if store == nil {
		panic("conversation: session store cannot be nil")
	}
	if orchestrator == nil {
		panic("conversation: orchestrator cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		store:        store,
		orchestrator: orchestrator,
		reflector:    reflector,
		logger:       logger,
		metrics:      m,
		now:          time.Now,
		locks:        newSessionLocks(),
	}
}

func (s *Service) lock(id string) func() {
	return s.locks.acquire(id)
}

// CreateSession starts an empty session with a fresh id.
func (s *Service) CreateSession(ctx context.Context) (*Session, error) {
	now := s.now().UTC()
	session := &Session{
		ID:         uuid.NewString(),
		CreatedAt:  now,
		UpdatedAt:  now,
		Transcript: []Message{},
		LastTier:   risk.TierNone,
	}
	if err := s.store.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("conversation: create session: %w", err)
	}
	s.metrics.SessionOpened()
	s.logger.WithSession(session.ID).Info("session created")
	return session, nil
}

func (s *Service) GetSession(ctx context.Context, id string) (*Session, error) {
	return s.store.Get(ctx, id)
}

// ResetSession clears the transcript and risk history but keeps the id.
func (s *Service) ResetSession(ctx context.Context, id string) (*Session, error) {
	unlock := s.lock(id)
	defer unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	session.Transcript = []Message{}
	session.ElevatedCount = 0
	session.LastTier = risk.TierNone
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return nil, fmt.Errorf("conversation: reset session: %w", err)
	}
	s.logger.WithSession(id).Info("session reset")
	return session, nil
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	unlock := s.lock(id)
	defer unlock()

	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.metrics.SessionClosed()
	s.logger.WithSession(id).Info("session deleted")
	return nil
}

// SendMessage runs one turn against the stored session. Generation failures
// are not errors; they come back through TurnResult.Failure.
func (s *Service) SendMessage(ctx context.Context, id, text string) (TurnResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TurnResult{}, ErrEmptyMessage
	}
	if utf8.RuneCountInString(text) > MaxMessageRunes {
		return TurnResult{}, ErrMessageTooLong
	}

	unlock := s.lock(id)
	defer unlock()

	session, err := s.store.Get(ctx, id)
	if err != nil {
		return TurnResult{}, err
	}

	logger := s.logger.WithSession(id)
	result := s.orchestrator.HandleTurn(ctx, session.Transcript, text)

	session.Transcript = result.Transcript
	session.LastTier = result.Tier
	if result.Tier.Elevated() {
		session.ElevatedCount++
	}
	session.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, session); err != nil {
		return TurnResult{}, fmt.Errorf("conversation: save session: %w", err)
	}

	logger.Info("turn handled",
		"tier", int(result.Tier),
		"need", string(result.Need),
		"show_resources", result.ShowResources,
		"failure", string(result.Failure),
		"messages", len(session.Transcript),
	)
	return result, nil
}

// Reflect writes the reflection note for a session. It returns
// ErrReflectionUnavailable until the transcript is long enough.
func (s *Service) Reflect(ctx context.Context, id string) (string, error) {
	session, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if s.reflector == nil || !ReflectionAvailable(session.Transcript) {
		return "", ErrReflectionUnavailable
	}
	note, err := s.reflector.Reflect(ctx, session.Transcript)
	if err != nil {
		s.logger.WithSession(id).Error("reflection failed", "error", err)
		return "", err
	}
	return note, nil
}
