package identity

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrNotFound = errors.New("identity: not found")
	ErrExists   = errors.New("identity: user already exists")
)

// User is the stored account record. PasswordHash is opaque to this
// package; hashing lives behind the Hasher contract.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// UserStore is the narrow persistence contract for accounts.
type UserStore interface {
	Create(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id string) (*User, error)
}

// RefreshToken is a stored single-use refresh credential.
type RefreshToken struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// RefreshStore persists refresh tokens between issuance and rotation.
type RefreshStore interface {
	Save(ctx context.Context, t *RefreshToken) error
	Find(ctx context.Context, token string) (*RefreshToken, error)
	Delete(ctx context.Context, token string) error
}

// Hasher is the credential-hashing contract. The concrete algorithm is a
// collaborator detail; handlers only compare and derive hashes through it.
type Hasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

// MemoryUserStore is an in-memory UserStore for tests and development.
type MemoryUserStore struct {
	mu    sync.RWMutex
	users map[string]*User // keyed by ID
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*User)}
}

func (s *MemoryUserStore) Create(_ context.Context, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Email == u.Email || existing.Username == u.Username {
			return ErrExists
		}
	}
	copy := *u
	s.users[u.ID] = &copy
	return nil
}

func (s *MemoryUserStore) FindByEmail(_ context.Context, email string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryUserStore) FindByID(_ context.Context, id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *u
	return &copy, nil
}

// MemoryRefreshStore is an in-memory RefreshStore.
type MemoryRefreshStore struct {
	mu     sync.Mutex
	tokens map[string]*RefreshToken
}

func NewMemoryRefreshStore() *MemoryRefreshStore {
	return &MemoryRefreshStore{tokens: make(map[string]*RefreshToken)}
}

func (s *MemoryRefreshStore) Save(_ context.Context, t *RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *t
	s.tokens[t.Token] = &copy
	return nil
}

func (s *MemoryRefreshStore) Find(_ context.Context, token string) (*RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *t
	return &copy, nil
}

func (s *MemoryRefreshStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
	return nil
}
