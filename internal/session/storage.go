package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"placecell.org/internal/auth"
)

// Persisted keys. The pair is always written and removed together.
const (
	TokenKey = "access_token"
	UserKey  = "user"
)

var (
	ErrAlreadyActive  = errors.New("session: a principal is already signed in; log out first")
	ErrMissingToken   = errors.New("session: token is required")
	ErrNotLoggedIn    = errors.New("session: not logged in")
	ErrPartialSession = errors.New("session: persisted session is incomplete")
)

// Record is the raw persisted pair.
type Record struct {
	Token string
	User  string
}

// Complete reports whether both halves are present.
func (r Record) Complete() bool {
	return strings.TrimSpace(r.Token) != "" && strings.TrimSpace(r.User) != ""
}

// Empty reports whether neither half is present.
func (r Record) Empty() bool {
	return strings.TrimSpace(r.Token) == "" && strings.TrimSpace(r.User) == ""
}

// Storage persists the session pair. Save and Clear must be atomic with
// respect to the pair: readers see both keys or neither.
type Storage interface {
	Load(ctx context.Context) (Record, error)
	Save(ctx context.Context, rec Record) error
	Clear(ctx context.Context) error
}

func encodeRecord(p auth.Principal, token string) (Record, error) {
	user, err := json.Marshal(p)
	if err != nil {
		return Record{}, err
	}
	return Record{Token: token, User: string(user)}, nil
}

func decodeRecord(rec Record) (auth.Principal, string, error) {
	if !rec.Complete() {
		return auth.Principal{}, "", ErrPartialSession
	}
	var p auth.Principal
	if err := json.Unmarshal([]byte(rec.User), &p); err != nil {
		return auth.Principal{}, "", err
	}
	if err := p.Validate(); err != nil {
		return auth.Principal{}, "", err
	}
	return p, strings.TrimSpace(rec.Token), nil
}

// MemoryStorage keeps the pair in process memory.
type MemoryStorage struct {
	mu  sync.Mutex
	rec Record
}

func NewMemoryStorage() *MemoryStorage { return &MemoryStorage{} }

func (m *MemoryStorage) Load(ctx context.Context) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec, nil
}

func (m *MemoryStorage) Save(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = rec
	return nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rec = Record{}
	return nil
}
