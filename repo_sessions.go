package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Sessions is the server side session store
type Sessions interface {
	Create(ctx context.Context, session *Session) (*Session, error)
	CreateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error)
	GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
	DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error
	DeleteForUser(ctx context.Context, userID int64, except uuid.UUID) (int64, error)
	DeleteForUserTx(ctx context.Context, tx bun.IDB, userID int64, except uuid.UUID) (int64, error)
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
	PurgeExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error)
}

type sessions struct {
	repository.Repository[*Session]
	db *bun.DB
}

var _ Sessions = (*sessions)(nil)

func NewSessionsRepository(db *bun.DB) Sessions {
	repo := repository.NewRepository[*Session](db, repository.ModelHandlers[*Session]{
		NewRecord: func() *Session { return &Session{} },
		GetID: func(s *Session) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *Session, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &sessions{
		Repository: repo,
		db:         db,
	}
}

func (s *sessions) Create(ctx context.Context, session *Session) (*Session, error) {
	return s.CreateTx(ctx, s.db, session)
}

func (s *sessions) CreateTx(ctx context.Context, tx bun.IDB, session *Session) (*Session, error) {
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	session.ExpiresAt = session.ExpiresAt.UTC()

	created, err := s.Repository.CreateTx(ctx, tx, session)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create session")
	}
	return created, nil
}

// GetActive returns the session if it exists and has not expired.
// Expired sessions are removed on sight.
func (s *sessions) GetActive(ctx context.Context, id uuid.UUID, now time.Time) (*Session, error) {
	if id == uuid.Nil {
		return nil, ErrSessionNotFound
	}

	session, err := s.Repository.GetByID(ctx, id.String())
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrSessionNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve session")
	}

	if session.Expired(now) {
		if err := s.Delete(ctx, id); err != nil {
			return nil, err
		}
		return nil, ErrSessionNotFound
	}

	return session, nil
}

// Delete removes a session, missing sessions are not an error
func (s *sessions) Delete(ctx context.Context, id uuid.UUID) error {
	return s.DeleteTx(ctx, s.db, id)
}

func (s *sessions) DeleteTx(ctx context.Context, tx bun.IDB, id uuid.UUID) error {
	_, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete session")
	}
	return nil
}

func (s *sessions) DeleteForUser(ctx context.Context, userID int64, except uuid.UUID) (int64, error) {
	return s.DeleteForUserTx(ctx, s.db, userID, except)
}

// DeleteForUserTx drops every session of the user but except, which may be uuid.Nil
func (s *sessions) DeleteForUserTx(ctx context.Context, tx bun.IDB, userID int64, except uuid.UUID) (int64, error) {
	q := tx.NewDelete().
		Model((*Session)(nil)).
		Where("user_id = ?", userID)

	if except != uuid.Nil {
		q = q.Where("id != ?", except)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user sessions")
	}
	return res.RowsAffected()
}

func (s *sessions) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.PurgeExpiredTx(ctx, s.db, now)
}

func (s *sessions) PurgeExpiredTx(ctx context.Context, tx bun.IDB, now time.Time) (int64, error) {
	res, err := tx.NewDelete().
		Model((*Session)(nil)).
		Where("expires_at <= ?", now.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to purge sessions")
	}
	return res.RowsAffected()
}
