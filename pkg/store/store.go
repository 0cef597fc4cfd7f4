// Package store persists OAuth tokens between runs.
//
// Access is scoped: a Keychain hands out a Session, the caller performs its
// reads and writes and then closes the Session. Tokens are keyed by the
// Reddit username they belong to.
package store

import (
	"context"
	"errors"
	"sync"

	"github.com/jamesprial/go-reddift/pkg/types"
)

// ErrNotFound is returned by Session.Retrieve when no token is stored under
// the key.
var ErrNotFound = errors.New("store: token not found")

// ErrEmptyKey is returned when a token is stored, retrieved or deleted under
// an empty key.
var ErrEmptyKey = errors.New("store: empty key")

// Keychain opens sessions against a credential store.
type Keychain interface {
	Open(ctx context.Context) (Session, error)
}

// Session is one scoped acquisition of a Keychain. It must be closed.
type Session interface {
	Store(ctx context.Context, key string, tok *types.OAuthToken) error
	Retrieve(ctx context.Context, key string) (*types.OAuthToken, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

// Memory is an in-process Keychain. The zero value is ready to use.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]types.OAuthToken
	open   int
}

// NewMemory returns an empty in-process Keychain.
func NewMemory() *Memory {
	return &Memory{}
}

// Open implements Keychain.
func (m *Memory) Open(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.open++
	m.mu.Unlock()

	return &memorySession{m: m}, nil
}

// Keys returns the stored keys in no particular order.
func (m *Memory) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.tokens))
	for k := range m.tokens {
		keys = append(keys, k)
	}
	return keys
}

// OpenSessions reports how many sessions have been opened and not closed.
func (m *Memory) OpenSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open
}

type memorySession struct {
	m      *Memory
	once   sync.Once
	closed bool
}

var errSessionClosed = errors.New("store: session closed")

func (s *memorySession) Store(ctx context.Context, key string, tok *types.OAuthToken) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}
	if tok == nil {
		return errors.New("store: nil token")
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	if s.m.tokens == nil {
		s.m.tokens = make(map[string]types.OAuthToken)
	}
	s.m.tokens[key] = cloneToken(tok)
	return nil
}

func (s *memorySession) Retrieve(ctx context.Context, key string) (*types.OAuthToken, error) {
	if err := s.check(ctx, key); err != nil {
		return nil, err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	tok, ok := s.m.tokens[key]
	if !ok {
		return nil, ErrNotFound
	}
	clone := cloneToken(&tok)
	return &clone, nil
}

func (s *memorySession) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx, key); err != nil {
		return err
	}

	s.m.mu.Lock()
	defer s.m.mu.Unlock()
	delete(s.m.tokens, key)
	return nil
}

func (s *memorySession) Close() error {
	s.once.Do(func() {
		s.m.mu.Lock()
		s.m.open--
		s.closed = true
		s.m.mu.Unlock()
	})
	return nil
}

func (s *memorySession) check(ctx context.Context, key string) error {
	s.m.mu.Lock()
	closed := s.closed
	s.m.mu.Unlock()

	switch {
	case closed:
		return errSessionClosed
	case key == "":
		return ErrEmptyKey
	}
	return ctx.Err()
}

func cloneToken(tok *types.OAuthToken) types.OAuthToken {
	c := *tok
	if tok.Scope != nil {
		c.Scope = append([]string(nil), tok.Scope...)
	}
	return c
}
