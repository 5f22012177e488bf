package conversation

import (
	"context"
	"errors"
	"time"

	"github.com/wolfman30/counsel-room/internal/risk"
)

var (
	// ErrSessionNotFound is returned when a session id is unknown or expired.
	ErrSessionNotFound = errors.New("conversation: session not found")
	// ErrSessionExists is returned by Create when the id is already taken.
	ErrSessionExists = errors.New("conversation: session already exists")
)

// Session is one student's conversation. It lives only as long as the store
// keeps it.
type Session struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	Transcript    []Message `json:"transcript"`
	ElevatedCount int       `json:"elevated_count"`
	LastTier      risk.Tier `json:"last_tier"`
}

// Clone returns a deep copy so callers never share transcript backing arrays.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Transcript = make([]Message, len(s.Transcript))
	copy(out.Transcript, s.Transcript)
	return &out
}

// SessionStore holds sessions between turns.
type SessionStore interface {
	Create(ctx context.Context, session *Session) error
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
}
