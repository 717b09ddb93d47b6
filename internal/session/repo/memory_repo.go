package repo

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/entity"
)

type memoryEntry struct {
	session   entity.Session
	expiresAt time.Time
}

// MemoryStore keeps sessions in process memory. Suitable for a single
// instance in development; sessions are lost on restart.
type MemoryStore struct {
	mu    sync.Mutex
	clock clockwork.Clock
	items map[string]memoryEntry
}

func NewMemoryStore(clock clockwork.Clock) *MemoryStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &MemoryStore{clock: clock, items: make(map[string]memoryEntry)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*entity.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		return nil, entity.ErrNotFound
	}
	if !s.clock.Now().Before(e.expiresAt) {
		delete(s.items, key)
		return nil, entity.ErrNotFound
	}
	sess := e.session
	return &sess, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, sess *entity.Session, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = memoryEntry{session: *sess, expiresAt: s.clock.Now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// PurgeExpired drops entries past their expiry and returns how many went.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	var n int64
	for k, e := range s.items {
		if !now.Before(e.expiresAt) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}
