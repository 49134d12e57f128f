// Package auth manages access tokens for API invocations.
package auth

import (
	"context"
	"sync"
	"time"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// TokenManager supplies access tokens for outgoing requests.
type TokenManager interface {
	// GetToken returns a valid access token, refreshing if necessary.
	GetToken(ctx context.Context) (string, error)

	// RefreshToken forces a token refresh.
	RefreshToken(ctx context.Context) error

	// SetToken manually sets the access token.
	SetToken(token string, expiresAt time.Time)
}

// Token is an access token with its expiry.
type Token struct {
	AccessToken string
	TokenType   string
	ExpiresAt   time.Time
}

// Valid reports whether the token is usable. Tokens inside the
// expiration buffer count as expired so requests do not race the
// deadline.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Add(constants.TokenExpirationBuffer).Before(t.ExpiresAt)
}

// TokenStore holds the current token with concurrent access.
type TokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewTokenStore creates an empty token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{}
}

// Get returns the current token, or nil.
func (s *TokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the current token.
func (s *TokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the current token.
func (s *TokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}

// StaticTokenManager serves one fixed token. Used when the caller
// already holds a bearer token for the target API.
type StaticTokenManager struct {
	store *TokenStore
}

// NewStaticTokenManager creates a manager serving the given token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	manager := &StaticTokenManager{store: NewTokenStore()}
	manager.store.Set(&Token{AccessToken: token, TokenType: "bearer"})

	return manager
}

// GetToken implements TokenManager.
func (m *StaticTokenManager) GetToken(_ context.Context) (string, error) {
	token := m.store.Get()
	if token == nil {
		return "", ErrNoToken
	}

	return token.AccessToken, nil
}

// RefreshToken implements TokenManager. Static tokens cannot refresh.
func (m *StaticTokenManager) RefreshToken(_ context.Context) error {
	return ErrRefreshUnsupported
}

// SetToken implements TokenManager.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}
