package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// SQLSessionStore keeps sessions in the sessions table
type SQLSessionStore struct {
	db *bun.DB
}

var _ SessionStore = (*SQLSessionStore)(nil)

// NewSQLSessionStore creates a bun backed session store
func NewSQLSessionStore(db *bun.DB) *SQLSessionStore {
	return &SQLSessionStore{db: db}
}

func (s *SQLSessionStore) Save(ctx context.Context, session *Session) error {
	_, err := s.db.NewInsert().
		Model(session).
		On("CONFLICT (id) DO UPDATE").
		Set("expires_at = EXCLUDED.expires_at").
		Set("data = EXCLUDED.data").
		Exec(ctx)
	return err
}

func (s *SQLSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	record := &Session{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return record, nil
}

func (s *SQLSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.db.NewDelete().Model((*Session)(nil)).Where("id = ?", id).Exec(ctx)
	return err
}

func (s *SQLSessionStore) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.NewDelete().Model((*Session)(nil)).Where("user_id = ?", userID).Exec(ctx)
	return err
}

// PurgeExpired removes sessions past their absolute bound
func (s *SQLSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.NewDelete().
		Model((*Session)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
