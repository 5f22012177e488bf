package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/counsel-room/internal/risk"
)

func newTestService(stub *stubLLMClient) *Service {
	return NewService(
		NewMemorySessionStore(DefaultSessionTTL),
		NewOrchestrator(stub, nil),
		NewReflector(stub, ""),
		nil,
		nil,
	)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubLLMClient{response: LLMResponse{Text: okReply}})

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, session.ID)
	assert.Empty(t, session.Transcript)
	assert.Equal(t, risk.TierNone, session.LastTier)

	result, err := svc.SendMessage(ctx, session.ID, "  いじめられていて辛い  ")
	require.NoError(t, err)
	assert.Equal(t, risk.TierSevere, result.Tier)
	require.Len(t, result.Transcript, 2)
	assert.Equal(t, "いじめられていて辛い", result.Transcript[0].Content)

	stored, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, 2)
	assert.Equal(t, risk.TierSevere, stored.LastTier)
	assert.Equal(t, 1, stored.ElevatedCount)

	reset, err := svc.ResetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Empty(t, reset.Transcript)
	assert.Zero(t, reset.ElevatedCount)
	assert.Equal(t, risk.TierNone, reset.LastTier)
	assert.Equal(t, session.ID, reset.ID)

	require.NoError(t, svc.DeleteSession(ctx, session.ID))
	_, err = svc.GetSession(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.DeleteSession(ctx, session.ID), ErrSessionNotFound)
}

func TestServiceSendMessageValidation(t *testing.T) {
	ctx := context.Background()
	stub := &stubLLMClient{response: LLMResponse{Text: okReply}}
	svc := newTestService(stub)
	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, session.ID, " \n ")
	assert.ErrorIs(t, err, ErrEmptyMessage)

	_, err = svc.SendMessage(ctx, session.ID, strings.Repeat("あ", MaxMessageRunes+1))
	assert.ErrorIs(t, err, ErrMessageTooLong)

	_, err = svc.SendMessage(ctx, "unknown", "こんにちは")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	assert.Empty(t, stub.requests)
}

func TestServiceGenerationFailureKeepsUserMessage(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubLLMClient{err: errors.New("boom")})
	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	result, err := svc.SendMessage(ctx, session.ID, "こんにちは")
	require.NoError(t, err)
	assert.Equal(t, FailureUnknown, result.Failure)

	stored, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "こんにちは"}}, stored.Transcript)
}

func TestServiceSessionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubLLMClient{response: LLMResponse{Text: okReply}})

	a, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	b, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	_, err = svc.SendMessage(ctx, a.ID, "自殺したい")
	require.NoError(t, err)

	storedB, err := svc.GetSession(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, storedB.Transcript)
	assert.Zero(t, storedB.ElevatedCount)
}

func TestServiceSerializesTurnsPerSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubLLMClient{response: LLMResponse{Text: okReply}})
	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	const turns = 8
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.SendMessage(ctx, session.ID, "こんにちは")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := svc.GetSession(ctx, session.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Transcript, turns*2)
}

func TestServiceReflect(t *testing.T) {
	ctx := context.Background()
	stub := &stubLLMClient{respond: byPurpose("", okReply, "今日はたくさん話してくれましたね。")}
	svc := newTestService(stub)
	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, session.ID, "こんにちは")
		require.NoError(t, err)
	}
	_, err = svc.Reflect(ctx, session.ID)
	assert.ErrorIs(t, err, ErrReflectionUnavailable, "six messages is not enough")

	_, err = svc.SendMessage(ctx, session.ID, "ありがとう")
	require.NoError(t, err)

	note, err := svc.Reflect(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "今日はたくさん話してくれましたね。", note)

	_, err = svc.Reflect(ctx, "unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestServiceReleasesLocksForUnknownSessions(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&stubLLMClient{response: LLMResponse{Text: okReply}})

	for i := 0; i < 1000; i++ {
		_, err := svc.SendMessage(ctx, fmt.Sprintf("missing-%d", i), "こんにちは")
		assert.ErrorIs(t, err, ErrSessionNotFound)
		_, err = svc.ResetSession(ctx, fmt.Sprintf("gone-%d", i))
		assert.ErrorIs(t, err, ErrSessionNotFound)
	}
	assert.Zero(t, svc.locks.size())

	session, err := svc.CreateSession(ctx)
	require.NoError(t, err)
	_, err = svc.SendMessage(ctx, session.ID, "こんにちは")
	require.NoError(t, err)
	assert.Zero(t, svc.locks.size())
}
