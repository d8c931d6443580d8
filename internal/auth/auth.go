package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"exchange-rates-client/internal/api"
	"exchange-rates-client/internal/session"
)

var (
	// ErrNotAuthenticated means there is no valid session.
	ErrNotAuthenticated = errors.New("not logged in")
	// ErrNotAdmin means the session user lacks the Admin role.
	ErrNotAdmin = errors.New("admin role required")
	// ErrNoToken means the server accepted the credentials but issued no token.
	ErrNoToken = errors.New("server response carried no token")
)

// Backend is the part of the API client used for authentication.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (api.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (api.AuthResponse, error)
	Me(ctx context.Context) (api.UserInfo, error)
	Logout(ctx context.Context) error
}

// User is the authenticated user.
type User struct {
	Username string
	Email    string
	Role     string
}

// IsAdmin reports whether the user holds the Admin role.
func (u User) IsAdmin() bool {
	return strings.EqualFold(u.Role, api.RoleAdmin)
}

func userFrom(info api.UserInfo) User {
	return User{Username: info.Username, Email: info.Email, Role: info.Role}
}

// Service keeps the authenticated user in step with the session token.
type Service struct {
	backend Backend
	sess    *session.Manager
	logger  zerolog.Logger
	now     func() time.Time

	mu       sync.RWMutex
	user     *User
	onExpire func(path string)
}

// NewService constructs an auth service.
func NewService(backend Backend, sess *session.Manager, logger zerolog.Logger) *Service {
	return &Service{
		backend: backend,
		sess:    sess,
		logger:  logger.With().Str("component", "auth").Logger(),
		now:     time.Now,
	}
}

// OnExpire registers a callback run when the session ends outside the login flow.
func (s *Service) OnExpire(fn func(path string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onExpire = fn
}

// Login authenticates and persists the issued token.
func (s *Service) Login(ctx context.Context, username, password string) (User, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return User{}, errors.New("username and password required")
	}

	resp, err := s.backend.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return User{}, fmt.Errorf("login: %w", err)
	}
	return s.establish(ctx, resp)
}

// Register creates an account and logs into it.
func (s *Service) Register(ctx context.Context, username, email, password string) (User, error) {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(email) == "" || password == "" {
		return User{}, errors.New("username, email and password required")
	}

	resp, err := s.backend.Register(ctx, api.Registration{Username: username, Email: email, Password: password})
	if err != nil {
		return User{}, fmt.Errorf("register: %w", err)
	}
	return s.establish(ctx, resp)
}

func (s *Service) establish(ctx context.Context, resp api.AuthResponse) (User, error) {
	if resp.Token == "" {
		return User{}, ErrNoToken
	}
	if err := s.sess.SetToken(ctx, resp.Token); err != nil {
		return User{}, err
	}

	user := userFrom(resp.User())
	s.setUser(&user)
	s.logger.Info().Str("username", user.Username).Str("role", user.Role).Msg("logged in")
	return user, nil
}

// CheckAuth restores the user behind the stored token. Without a token no
// request is made. A token that is expired locally or refused by the server
// is dropped.
func (s *Service) CheckAuth(ctx context.Context) (User, error) {
	if _, ok := s.sess.Token(); !ok {
		s.setUser(nil)
		return User{}, ErrNotAuthenticated
	}

	if exp, ok := s.sess.TokenExpiry(); ok && !exp.After(s.now()) {
		s.logger.Debug().Time("expired_at", exp).Msg("stored token expired")
		s.drop(ctx)
		return User{}, ErrNotAuthenticated
	}

	info, err := s.backend.Me(ctx)
	if err != nil {
		s.logger.Debug().Err(err).Msg("session check failed")
		s.drop(ctx)
		return User{}, fmt.Errorf("%w: %w", ErrNotAuthenticated, err)
	}

	user := userFrom(info)
	s.setUser(&user)
	return user, nil
}

// Logout ends the session. Local state is cleared even when the server call
// fails; that failure is still returned.
func (s *Service) Logout(ctx context.Context) error {
	var remoteErr error
	if _, ok := s.sess.Token(); ok {
		if err := s.backend.Logout(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("server logout failed, clearing local session anyway")
			remoteErr = fmt.Errorf("logout: %w", err)
		}
	}

	s.setUser(nil)
	return errors.Join(remoteErr, s.sess.Logout(ctx))
}

// User returns the authenticated user, if any.
func (s *Service) User() (User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return User{}, false
	}
	return *s.user, true
}

// RequireAdmin checks the session and the Admin role.
func (s *Service) RequireAdmin(ctx context.Context) (User, error) {
	user, ok := s.User()
	if !ok {
		var err error
		if user, err = s.CheckAuth(ctx); err != nil {
			return User{}, err
		}
	}
	if !user.IsAdmin() {
		return user, ErrNotAdmin
	}
	return user, nil
}

// RedirectToLogin drops the user after the server ended the session.
func (s *Service) RedirectToLogin(_ context.Context, path string) {
	s.mu.Lock()
	s.user = nil
	fn := s.onExpire
	s.mu.Unlock()

	if fn != nil {
		fn(path)
	}
}

func (s *Service) drop(ctx context.Context) {
	s.setUser(nil)
	if err := s.sess.ClearToken(ctx); err != nil {
		s.logger.Warn().Err(err).Msg("failed to clear session token")
	}
}

func (s *Service) setUser(u *User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}
