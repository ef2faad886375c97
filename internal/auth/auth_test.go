package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nitplane/nitplane/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func testVerifier(t *testing.T) *BcryptVerifier {
	t.Helper()
	hash, err := HashPassword("correct horse", bcrypt.MinCost)
	require.NoError(t, err)
	v, err := NewBcryptVerifier("pilot", hash)
	require.NoError(t, err)
	return v
}

func TestBcryptVerifier(t *testing.T) {
	v := testVerifier(t)
	ctx := context.Background()

	assert.NoError(t, v.Verify(ctx, "pilot", "correct horse"))
	assert.ErrorIs(t, v.Verify(ctx, "pilot", "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, v.Verify(ctx, "copilot", "correct horse"), ErrInvalidCredentials)
	assert.ErrorIs(t, v.Verify(ctx, "", ""), ErrInvalidCredentials)
}

func TestNewBcryptVerifierRejectsPlaintext(t *testing.T) {
	_, err := NewBcryptVerifier("pilot", "hunter2")
	assert.Error(t, err)
}

// memoryStore is an in-memory SessionStore
type memoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	next     int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{sessions: map[string]*Session{}}
}

func (m *memoryStore) Create(ctx context.Context, username string, ttl time.Duration) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	now := time.Now()
	s := &Session{ID: string(rune('a' + m.next)), Username: username, CreatedAt: now, ExpiresAt: now.Add(ttl)}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memoryStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok || s.Expired(time.Now()) {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *memoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *memoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	return 0, nil
}

func TestServiceLoginLogout(t *testing.T) {
	svc := NewService(testVerifier(t), newMemoryStore(), time.Hour, logger.NewNop())
	ctx := context.Background()

	_, err := svc.Login(ctx, "pilot", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	session, err := svc.Login(ctx, "pilot", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "pilot", session.Username)
	assert.WithinDuration(t, time.Now().Add(time.Hour), session.ExpiresAt, time.Minute)

	got, err := svc.Authenticate(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, session, got)

	require.NoError(t, svc.Logout(ctx, session.ID))
	_, err = svc.Authenticate(ctx, session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = svc.Authenticate(ctx, "")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, svc.Logout(ctx, ""))
}

func TestSessionExpired(t *testing.T) {
	now := time.Now()
	s := &Session{ExpiresAt: now}
	assert.True(t, s.Expired(now))
	assert.False(t, s.Expired(now.Add(-time.Second)))
}
