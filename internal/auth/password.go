package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fivetwenty-io/apiflow/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoToken              = errors.New("no token available")
	ErrRefreshUnsupported   = errors.New("token refresh not supported")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

const defaultTokenValidity = 24 * time.Hour

// PasswordConfig configures password-based authentication.
type PasswordConfig struct {
	// TokenURL is the full URL of the token endpoint,
	// e.g. https://api.example.com/auth/token.
	TokenURL string

	// Email and Password are the credentials sent to the endpoint.
	Email    string
	Password string

	// HTTPClient overrides the client used for token requests.
	HTTPClient *http.Client
}

// PasswordTokenManager obtains bearer tokens from a credentials-based
// token endpoint and transparently re-authenticates when they expire.
type PasswordTokenManager struct {
	config     *PasswordConfig
	store      *TokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewPasswordTokenManager creates a manager for the given credentials.
func NewPasswordTokenManager(config *PasswordConfig) *PasswordTokenManager {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: constants.ShortHTTPTimeout}
	}

	return &PasswordTokenManager{
		config:     config,
		store:      NewTokenStore(),
		httpClient: httpClient,
	}
}

// GetToken implements TokenManager. An expired or missing token
// triggers authentication before returning.
func (m *PasswordTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := m.store.Get()
	if token.Valid() {
		return token.AccessToken, nil
	}

	err := m.authenticate(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken implements TokenManager by re-authenticating.
func (m *PasswordTokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.authenticate(ctx)
}

// SetToken implements TokenManager.
func (m *PasswordTokenManager) SetToken(token string, expiresAt time.Time) {
	m.store.Set(&Token{AccessToken: token, TokenType: "bearer", ExpiresAt: expiresAt})
}

type tokenRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func (m *PasswordTokenManager) authenticate(ctx context.Context) error {
	payload, err := json.Marshal(tokenRequest{
		Email:    m.config.Email,
		Password: m.config.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}

	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s", ErrAuthenticationFailed, resp.Status)
	}

	var tokenResp tokenResponse

	err = json.Unmarshal(body, &tokenResp)
	if err != nil {
		return fmt.Errorf("failed to parse token response: %w", err)
	}

	if strings.TrimSpace(tokenResp.AccessToken) == "" {
		return fmt.Errorf("%w: empty access token", ErrAuthenticationFailed)
	}

	validity := defaultTokenValidity
	if tokenResp.ExpiresIn > 0 {
		validity = time.Duration(tokenResp.ExpiresIn) * time.Second
	}

	m.store.Set(&Token{
		AccessToken: tokenResp.AccessToken,
		TokenType:   tokenResp.TokenType,
		ExpiresAt:   time.Now().Add(validity),
	})

	return nil
}
