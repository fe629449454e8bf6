package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"placecell.org/internal/audit"
	"placecell.org/internal/auth"
	"placecell.org/internal/nav"
	"placecell.org/internal/obs"
)

// Invalidator revokes a token on the server. The API client satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context, path, token string) error
}

// Store is the single source of truth for who is signed in. The principal
// and the token are present together or absent together, in memory and in
// storage.
type Store struct {
	mu        sync.RWMutex
	principal *auth.Principal
	token     string

	storage     Storage
	navigator   nav.Navigator
	invalidator Invalidator
}

// Option configures a Store.
type Option func(*Store) error

// WithNavigator routes the user after login and logout.
func WithNavigator(n nav.Navigator) Option {
	return func(s *Store) error {
		if n == nil {
			return errors.New("navigator is nil")
		}
		s.navigator = n
		return nil
	}
}

// WithInvalidator enables the best-effort server logout call.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Store) error {
		s.invalidator = inv
		return nil
	}
}

// New returns an empty store backed by storage.
func New(storage Storage, opts ...Option) (*Store, error) {
	if storage == nil {
		return nil, errors.New("session: storage is nil")
	}
	s := &Store{storage: storage, navigator: nav.Discard}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// SetInvalidator wires the server logout call after construction; the API
// client and the store refer to each other.
func (s *Store) SetInvalidator(inv Invalidator) {
	s.mu.Lock()
	s.invalidator = inv
	s.mu.Unlock()
}

// Restore rehydrates the session from storage without contacting the server.
// An incomplete or unreadable pair is cleared and treated as signed out.
func (s *Store) Restore(ctx context.Context) (bool, error) {
	rec, err := s.storage.Load(ctx)
	if err != nil {
		return false, fmt.Errorf("restore session: %w", err)
	}
	if rec.Empty() {
		s.reset()
		return false, nil
	}
	p, token, err := decodeRecord(rec)
	if err != nil {
		obs.Log(obs.LevelWarn, "discarding persisted session", map[string]any{"error": err.Error()})
		s.reset()
		if cerr := s.storage.Clear(ctx); cerr != nil {
			return false, fmt.Errorf("clear broken session: %w", cerr)
		}
		return false, nil
	}
	s.mu.Lock()
	s.principal = &p
	s.token = token
	s.mu.Unlock()
	return true, nil
}

// Login records a freshly authenticated principal, persists the pair and
// routes to the role's home. Switching principals requires Logout first.
func (s *Store) Login(ctx context.Context, p auth.Principal, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrMissingToken
	}
	if err := p.Validate(); err != nil {
		return err
	}
	kind, err := p.Kind()
	if err != nil {
		return err
	}
	rec, err := encodeRecord(p, token)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	s.mu.Lock()
	if s.principal != nil {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	if err := s.storage.Save(ctx, rec); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("persist session: %w", err)
	}
	s.principal = &p
	s.token = token
	s.mu.Unlock()

	_ = audit.LogEvent(auth.ContextWithPrincipal(ctx, p), "session.login", map[string]any{"kind": kind.Name})
	s.navigator.Navigate(kind.Home, nil)
	return nil
}

// Logout tells the server the token is done (best effort), then clears
// memory and storage and routes to the login page. The server call's
// outcome never blocks the local sign-out; only a storage failure is
// returned, and memory is cleared even then.
func (s *Store) Logout(ctx context.Context) error {
	s.mu.RLock()
	principal, token, inv := s.principal, s.token, s.invalidator
	s.mu.RUnlock()

	if principal != nil && token != "" && inv != nil {
		if kind, err := principal.Kind(); err == nil {
			if err := inv.Invalidate(ctx, kind.Endpoints.Logout, token); err != nil {
				obs.Log(obs.LevelWarn, "server logout failed", map[string]any{
					"path":  kind.Endpoints.Logout,
					"error": err.Error(),
				})
			}
		}
	}

	s.reset()
	err := s.storage.Clear(ctx)
	if principal != nil {
		_ = audit.LogEvent(auth.ContextWithPrincipal(ctx, *principal), "session.logout", nil)
	}
	s.navigator.Navigate(nav.Login, nil)
	if err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *Store) reset() {
	s.mu.Lock()
	s.principal = nil
	s.token = ""
	s.mu.Unlock()
}

// Current returns the signed-in principal.
func (s *Store) Current() (auth.Principal, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.principal == nil {
		return auth.Principal{}, false
	}
	return *s.principal, true
}

// Token returns the bearer token or "" when signed out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// LoggedIn reports whether a principal is active.
func (s *Store) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.principal != nil
}

// Require returns the active principal or ErrNotLoggedIn.
func (s *Store) Require() (auth.Principal, error) {
	p, ok := s.Current()
	if !ok {
		return auth.Principal{}, ErrNotLoggedIn
	}
	return p, nil
}

// ExpiresAt reads the token's exp claim for display. It is informational;
// the server remains the judge of validity.
func (s *Store) ExpiresAt() (time.Time, bool) {
	token := s.Token()
	if token == "" {
		return time.Time{}, false
	}
	return auth.TokenExpiry(token)
}

// Context attaches the active principal to ctx for audit logging.
func (s *Store) Context(ctx context.Context) context.Context {
	if p, ok := s.Current(); ok {
		return auth.ContextWithPrincipal(ctx, p)
	}
	return ctx
}
