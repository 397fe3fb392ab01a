package memory

import (
	"context"
	"sync"
	"time"

	"github.com/eleven-am/verdict/internal/domain"
	"github.com/eleven-am/verdict/internal/ports"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

func (e entry) live(now time.Time) bool {
	return e.expiresAt.IsZero() || e.expiresAt.After(now)
}

// Storage is an in-process ports.StoragePort used for tests and
// single-node deployments. All operations are atomic under one mutex,
// matching the atomicity the distributed backends provide natively.
type Storage struct {
	mu     sync.Mutex
	data   map[string]entry
	closed bool
}

func NewStorage() *Storage {
	return &Storage{data: make(map[string]entry)}
}

func (s *Storage) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, false, domain.ErrClosed
	}

	e, ok := s.data[key]
	if !ok || !e.live(time.Now()) {
		delete(s.data, key)
		return nil, false, nil
	}

	value := make([]byte, len(e.value))
	copy(value, e.value)
	return value, true, nil
}

func (s *Storage) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}

	s.data[key] = newEntry(value, ttl)
	return nil
}

func (s *Storage) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrClosed
	}

	if e, ok := s.data[key]; ok && e.live(time.Now()) {
		return false, nil
	}

	s.data[key] = newEntry(value, ttl)
	return true, nil
}

func (s *Storage) CompareAndPut(ctx context.Context, key string, expected, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrClosed
	}

	e, ok := s.data[key]
	if !ok || !e.live(time.Now()) {
		delete(s.data, key)
		return false, nil
	}

	if string(e.value) != string(expected) {
		return false, nil
	}

	s.data[key] = newEntry(value, ttl)
	return true, nil
}

func (s *Storage) CompareAndDelete(ctx context.Context, key string, expected []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrClosed
	}

	e, ok := s.data[key]
	if !ok || !e.live(time.Now()) {
		delete(s.data, key)
		return false, nil
	}

	if string(e.value) != string(expected) {
		return false, nil
	}

	delete(s.data, key)
	return true, nil
}

func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return domain.ErrClosed
	}

	delete(s.data, key)
	return nil
}

func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.data = make(map[string]entry)
	return nil
}

func newEntry(value []byte, ttl time.Duration) entry {
	stored := make([]byte, len(value))
	copy(stored, value)

	e := entry{value: stored}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	return e
}

var _ ports.StoragePort = (*Storage)(nil)
