package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/entity"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/repo"
)

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (*entity.Session, error) { return nil, f.err }
func (f failingStore) Put(context.Context, string, *entity.Session, time.Duration) error {
	return f.err
}
func (f failingStore) Delete(context.Context, string) error { return f.err }

func TestService_CreateLookupRevoke(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	store := repo.NewMemoryStore(clock)
	svc := NewService(store, 0, clock)
	ctx := context.Background()

	assert.Equal(t, DefaultTTL, svc.TTL())

	id, sess, err := svc.Create(ctx, "rt-1")
	require.NoError(t, err)
	assert.Len(t, id, 43)
	assert.True(t, clock.Now().Equal(sess.CreatedAt))

	got, err := svc.Lookup(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "rt-1", got.RefreshToken)

	// the raw id is not the store key
	_, err = store.Get(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.Revoke(ctx, id))
	_, err = svc.Lookup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, svc.Revoke(ctx, id))
}

func TestService_FixedTTL(t *testing.T) {
	clock := clockwork.NewFakeClock()
	svc := NewService(repo.NewMemoryStore(clock), DefaultTTL, clock)
	ctx := context.Background()

	id, _, err := svc.Create(ctx, "rt")
	require.NoError(t, err)

	clock.Advance(29 * 24 * time.Hour)
	_, err = svc.Lookup(ctx, id)
	require.NoError(t, err)

	clock.Advance(2 * 24 * time.Hour)
	_, err = svc.Lookup(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestService_EmptyID(t *testing.T) {
	svc := NewService(failingStore{err: errors.New("should not be called")}, time.Hour, nil)
	_, err := svc.Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, svc.Revoke(context.Background(), ""))
}

func TestService_StoreErrorsPropagate(t *testing.T) {
	boom := errors.New("store down")
	svc := NewService(failingStore{err: boom}, time.Hour, nil)

	_, _, err := svc.Create(context.Background(), "rt")
	assert.ErrorIs(t, err, boom)
	_, err = svc.Lookup(context.Background(), "abc")
	assert.ErrorIs(t, err, boom)
}

func TestNewID_Unique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := NewID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
