package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/blake2b"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/entity"
)

// DefaultTTL is the absolute session lifetime. It is never extended on use.
const DefaultTTL = 30 * 24 * time.Hour

// ErrNotFound means the session is absent, expired or revoked.
var ErrNotFound = entity.ErrNotFound

// Store is the only server-side state: key -> session with TTL expiry.
// Delete of a missing key must succeed.
type Store interface {
	Get(ctx context.Context, key string) (*entity.Session, error)
	Put(ctx context.Context, key string, sess *entity.Session, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Service issues session ids and maps them onto a Store. Ids are hashed
// before use as store keys so the store never holds a live cookie value.
type Service struct {
	store Store
	ttl   time.Duration
	clock clockwork.Clock
}

func NewService(store Store, ttl time.Duration, clock clockwork.Clock) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Service{store: store, ttl: ttl, clock: clock}
}

// TTL is the lifetime applied to new sessions.
func (s *Service) TTL() time.Duration { return s.ttl }

// Create stores a new session for refreshToken and returns its id.
func (s *Service) Create(ctx context.Context, refreshToken string) (string, *entity.Session, error) {
	id, err := NewID()
	if err != nil {
		return "", nil, fmt.Errorf("generate session id: %w", err)
	}
	sess := &entity.Session{RefreshToken: refreshToken, CreatedAt: s.clock.Now().UTC()}
	if err := s.store.Put(ctx, storeKey(id), sess, s.ttl); err != nil {
		return "", nil, err
	}
	return id, sess, nil
}

// Lookup returns the session for id or ErrNotFound.
func (s *Service) Lookup(ctx context.Context, id string) (*entity.Session, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	return s.store.Get(ctx, storeKey(id))
}

// Revoke deletes the session for id. Unknown ids are not an error.
func (s *Service) Revoke(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	return s.store.Delete(ctx, storeKey(id))
}

// NewID returns 32 random bytes, base64url without padding.
func NewID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func storeKey(id string) string {
	sum := blake2b.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}
