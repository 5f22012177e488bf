package conversation

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/counsel-room/internal/risk"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisSessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSessionStore(client, ttl, nil), mr
}

func sampleSession(id string) *Session {
	now := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)
	return &Session{
		ID:         id,
		CreatedAt:  now,
		UpdatedAt:  now,
		Transcript: []Message{{Role: RoleUser, Content: "こんにちは"}},
		LastTier:   risk.TierNone,
	}
}

func exerciseStore(t *testing.T, store SessionStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Save(ctx, sampleSession("missing")), ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, "missing"), ErrSessionNotFound)

	session := sampleSession("s1")
	require.NoError(t, store.Create(ctx, session))
	assert.ErrorIs(t, store.Create(ctx, session), ErrSessionExists)

	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, session.Transcript, got.Transcript)
	assert.True(t, session.CreatedAt.Equal(got.CreatedAt))

	got.Transcript = append(got.Transcript, Message{Role: RoleAssistant, Content: "どうしたの？"})
	got.LastTier = risk.TierSevere
	got.ElevatedCount = 1
	require.NoError(t, store.Save(ctx, got))

	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, again.Transcript, 2)
	assert.Equal(t, risk.TierSevere, again.LastTier)
	assert.Equal(t, 1, again.ElevatedCount)

	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestMemorySessionStore(t *testing.T) {
	exerciseStore(t, NewMemorySessionStore(DefaultSessionTTL))
}

func TestMemorySessionStoreIsolatesCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStore(DefaultSessionTTL)
	session := sampleSession("s1")
	require.NoError(t, store.Create(ctx, session))

	session.Transcript[0].Content = "changed outside"
	got, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", got.Transcript[0].Content)

	got.Transcript[0].Content = "changed again"
	again, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "こんにちは", again.Transcript[0].Content)
	assert.Equal(t, 1, store.Len())
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newClockedMemoryStore(ttl time.Duration) (*MemorySessionStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
	store := NewMemorySessionStore(ttl)
	store.now = clock.Now
	return store, clock
}

func TestMemorySessionStoreExpiresIdleSessions(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedMemoryStore(time.Minute)

	require.NoError(t, store.Create(ctx, sampleSession("s1")))
	clock.Advance(59 * time.Second)
	_, err := store.Get(ctx, "s1")
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Save(ctx, sampleSession("s1")), ErrSessionNotFound)
	assert.Zero(t, store.Len())
}

func TestMemorySessionStoreSaveRefreshesTTL(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedMemoryStore(time.Minute)

	require.NoError(t, store.Create(ctx, sampleSession("s1")))
	clock.Advance(45 * time.Second)
	require.NoError(t, store.Save(ctx, sampleSession("s1")))
	clock.Advance(45 * time.Second)

	_, err := store.Get(ctx, "s1")
	assert.NoError(t, err)
}

func TestMemorySessionStoreSweepsAbandonedSessions(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedMemoryStore(time.Minute)

	for i := 0; i < 50; i++ {
		require.NoError(t, store.Create(ctx, sampleSession(fmt.Sprintf("abandoned-%d", i))))
	}
	assert.Equal(t, 50, store.Len())

	clock.Advance(2 * time.Minute)
	require.NoError(t, store.Create(ctx, sampleSession("fresh")))
	assert.Equal(t, 1, store.Len())
}

func TestMemorySessionStoreDefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultSessionTTL, NewMemorySessionStore(0).ttl)
}

func TestRedisSessionStore(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	exerciseStore(t, store)
}

func TestRedisSessionStoreExpires(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleSession("s1")))
	assert.Equal(t, time.Minute, mr.TTL(sessionKey("s1")))

	mr.FastForward(2 * time.Minute)
	_, err := store.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreSaveRefreshesTTL(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, sampleSession("s1")))
	mr.FastForward(45 * time.Second)
	require.NoError(t, store.Save(ctx, sampleSession("s1")))
	assert.Equal(t, time.Minute, mr.TTL(sessionKey("s1")))
}

func TestRedisSessionStoreCorruptPayload(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	require.NoError(t, mr.Set(sessionKey("bad"), "not json"))

	_, err := store.Get(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisSessionStoreDefaultTTL(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	assert.Equal(t, DefaultSessionTTL, store.ttl)
}
