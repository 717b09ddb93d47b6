package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonboulle/clockwork"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/session/entity"
)

// Schema lives in pkg/database/migrations:
// CREATE TABLE auth_sessions (
//   id TEXT PRIMARY KEY,
//   refresh_token TEXT NOT NULL,
//   created_at TIMESTAMPTZ NOT NULL,
//   expires_at TIMESTAMPTZ NOT NULL
// );

type PostgresStore struct {
	db    *sqlx.DB
	clock clockwork.Clock
}

func NewPostgresStore(db *sqlx.DB, clock clockwork.Clock) *PostgresStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &PostgresStore{db: db, clock: clock}
}

func (s *PostgresStore) Get(ctx context.Context, key string) (*entity.Session, error) {
	const q = `SELECT refresh_token, created_at FROM auth_sessions WHERE id = $1 AND expires_at > $2`
	var sess entity.Session
	if err := s.db.GetContext(ctx, &sess, q, key, s.clock.Now()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, entity.ErrNotFound
		}
		return nil, fmt.Errorf("select session: %w", err)
	}
	return &sess, nil
}

func (s *PostgresStore) Put(ctx context.Context, key string, sess *entity.Session, ttl time.Duration) error {
	const q = `INSERT INTO auth_sessions (id, refresh_token, created_at, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			refresh_token = EXCLUDED.refresh_token,
			created_at = EXCLUDED.created_at,
			expires_at = EXCLUDED.expires_at`
	expiresAt := s.clock.Now().Add(ttl)
	if _, err := s.db.ExecContext(ctx, q, key, sess.RefreshToken, sess.CreatedAt, expiresAt); err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = $1`, key); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// PurgeExpired removes rows Get would no longer return.
func (s *PostgresStore) PurgeExpired(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= $1`, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	return res.RowsAffected()
}
