// Package auth issues and resolves bearer tokens for signed-in users.
package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// ErrInvalidToken is returned for unknown or expired tokens.
var ErrInvalidToken = errors.New("invalid token")

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 24 * time.Hour

// TokenStore maps opaque tokens to user ids.
type TokenStore interface {
	Issue(ctx context.Context, userID string) (string, error)
	Resolve(ctx context.Context, token string) (string, error)
	Revoke(ctx context.Context, token string)
}

type session struct {
	userID    string
	expiresAt time.Time
}

// MemoryTokens keeps tokens in process memory.
type MemoryTokens struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	ttl    time.Duration
	tokens map[string]session
}

// Option applies a configuration option to MemoryTokens.
type Option func(*MemoryTokens)

// WithClock sets the clock used for expiry.
func WithClock(c clockwork.Clock) Option {
	return func(m *MemoryTokens) {
		if c != nil {
			m.clock = c
		}
	}
}

// WithTTL sets the token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *MemoryTokens) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// NewMemoryTokens creates an empty token store.
func NewMemoryTokens(opts ...Option) *MemoryTokens {
	m := &MemoryTokens{
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		tokens: make(map[string]session),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Issue creates a new token for userID.
func (m *MemoryTokens) Issue(_ context.Context, userID string) (string, error) {
	token := uuid.NewString()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token] = session{userID: userID, expiresAt: m.clock.Now().Add(m.ttl)}
	return token, nil
}

// Resolve returns the user id behind token.
func (m *MemoryTokens) Resolve(_ context.Context, token string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.tokens[token]
	if !ok {
		return "", ErrInvalidToken
	}
	if m.clock.Now().After(s.expiresAt) {
		delete(m.tokens, token)
		return "", ErrInvalidToken
	}
	return s.userID, nil
}

// Revoke forgets token.
func (m *MemoryTokens) Revoke(_ context.Context, token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
}
