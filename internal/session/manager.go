package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// TokenKey is the storage key of the persisted bearer token.
const TokenKey = "auth_token"

const csrfFlightKey = "csrf"

// csrfFetchTimeout bounds a shared CSRF request once it no longer follows the
// context of the caller that started it.
const csrfFetchTimeout = 30 * time.Second

var (
	// ErrNoCSRFSource indicates RefreshCSRF was called before a source was wired.
	ErrNoCSRFSource = errors.New("session: csrf source not configured")
	// ErrEmptyCSRFToken indicates the server answered without a token.
	ErrEmptyCSRFToken = errors.New("session: empty csrf token")
)

// CSRFSource issues the dedicated "obtain CSRF token" request.
type CSRFSource interface {
	FetchCSRFToken(ctx context.Context) (string, error)
}

// CSRFSourceFunc adapts a function to CSRFSource.
type CSRFSourceFunc func(ctx context.Context) (string, error)

func (f CSRFSourceFunc) FetchCSRFToken(ctx context.Context) (string, error) {
	return f(ctx)
}

// Manager owns the bearer token and the CSRF token. The bearer token is
// written through to the TokenStore; the CSRF token never leaves memory.
type Manager struct {
	store  TokenStore
	logger zerolog.Logger

	mu     sync.RWMutex
	token  string
	csrf   string
	source CSRFSource

	refresh singleflight.Group
}

// NewManager loads the persisted token and returns a ready manager.
func NewManager(ctx context.Context, store TokenStore, logger zerolog.Logger) (*Manager, error) {
	if store == nil {
		store = NewMemoryTokenStore()
	}

	token, err := store.Load(ctx, TokenKey)
	if err != nil {
		return nil, fmt.Errorf("load session token: %w", err)
	}

	return &Manager{
		store:  store,
		token:  token,
		logger: logger.With().Str("component", "session").Logger(),
	}, nil
}

// SetCSRFSource wires the request used by RefreshCSRF.
func (m *Manager) SetCSRFSource(source CSRFSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.source = source
}

// Token returns the bearer token, if any.
func (m *Manager) Token() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token, m.token != ""
}

// SetToken replaces the bearer token and persists it. An empty token clears it.
func (m *Manager) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return m.ClearToken(ctx)
	}

	m.mu.Lock()
	m.token = token
	m.mu.Unlock()

	if err := m.store.Save(ctx, TokenKey, token); err != nil {
		return fmt.Errorf("persist session token: %w", err)
	}
	return nil
}

// ClearToken drops the bearer token from memory and durable storage.
func (m *Manager) ClearToken(ctx context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	if err := m.store.Delete(ctx, TokenKey); err != nil {
		return fmt.Errorf("delete session token: %w", err)
	}
	return nil
}

// CSRFToken returns the cached CSRF token, if any.
func (m *Manager) CSRFToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.csrf, m.csrf != ""
}

// RefreshCSRF discards the cached CSRF token and obtains a new one. On failure
// the token stays absent and the error is returned; there is no retry here.
func (m *Manager) RefreshCSRF(ctx context.Context) (string, error) {
	m.mu.Lock()
	m.csrf = ""
	m.mu.Unlock()
	return m.fetchCSRF(ctx)
}

// EnsureCSRF returns the cached CSRF token or obtains one.
func (m *Manager) EnsureCSRF(ctx context.Context) (string, error) {
	if token, ok := m.CSRFToken(); ok {
		return token, nil
	}
	return m.fetchCSRF(ctx)
}

// RenewCSRF replaces a token the server rejected. When another caller already
// replaced it, the newer token is returned without another request.
func (m *Manager) RenewCSRF(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	if m.csrf != "" && m.csrf != rejected {
		current := m.csrf
		m.mu.Unlock()
		return current, nil
	}
	m.csrf = ""
	m.mu.Unlock()
	return m.fetchCSRF(ctx)
}

// fetchCSRF runs at most one CSRF request at a time; concurrent callers share
// its result. The request is detached from the starting caller so that its
// cancellation only ends its own wait.
func (m *Manager) fetchCSRF(ctx context.Context) (string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := m.refresh.DoChan(csrfFlightKey, func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(flightCtx, csrfFetchTimeout)
		defer cancel()

		m.mu.RLock()
		source := m.source
		m.mu.RUnlock()
		if source == nil {
			return "", ErrNoCSRFSource
		}

		token, err := source.FetchCSRFToken(fetchCtx)
		if err != nil {
			return "", fmt.Errorf("fetch csrf token: %w", err)
		}
		if token == "" {
			return "", ErrEmptyCSRFToken
		}

		m.mu.Lock()
		m.csrf = token
		m.mu.Unlock()
		m.logger.Debug().Msg("csrf token refreshed")
		return token, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Logout clears both credentials.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	m.csrf = ""
	m.mu.Unlock()
	return m.ClearToken(ctx)
}

// TokenExpiry reads the exp claim of a JWT bearer token without verifying the
// signature. ok is false for opaque tokens or tokens without exp.
func (m *Manager) TokenExpiry() (time.Time, bool) {
	token, ok := m.Token()
	if !ok {
		return time.Time{}, false
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}
