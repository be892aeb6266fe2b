package account

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Users is the credential store
type Users interface {
	Create(ctx context.Context, user *User) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error)
	Activate(ctx context.Context, id int64) (bool, error)
	ActivateTx(ctx context.Context, tx bun.IDB, id int64) (bool, error)
	ReplacePasswordHash(ctx context.Context, id int64, expectedHash, newHash string) (bool, error)
	ReplacePasswordHashTx(ctx context.Context, tx bun.IDB, id int64, expectedHash, newHash string) (bool, error)
	UpdateProfile(ctx context.Context, user *User) (*User, error)
	UpdateProfileTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	Delete(ctx context.Context, id int64) error
	DeleteTx(ctx context.Context, tx bun.IDB, id int64) error
}

type users struct {
	db  *bun.DB
	now func() time.Time
}

var _ Users = (*users)(nil)

type UsersOption func(*users)

// WithUsersClock overrides the clock used for timestamps
func WithUsersClock(now func() time.Time) UsersOption {
	return func(u *users) {
		if now != nil {
			u.now = now
		}
	}
}

func NewUsersRepository(db *bun.DB, opts ...UsersOption) Users {
	u := &users{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(u)
		}
	}
	return u
}

// NormalizeEmail trims and lower cases an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (a *users) Create(ctx context.Context, user *User) (*User, error) {
	return a.CreateTx(ctx, a.db, user)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	now := a.timestamp()
	user.Email = NormalizeEmail(user.Email)
	user.CreatedAt = &now
	user.UpdatedAt = &now

	if _, err := tx.NewInsert().Model(user).Returning("*").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, NewValidationError(map[string]string{"email": msgEmailTaken})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create user")
	}

	return user, nil
}

func (a *users) GetByID(ctx context.Context, id int64) (*User, error) {
	return a.GetByIDTx(ctx, a.db, id)
}

func (a *users) GetByIDTx(ctx context.Context, tx bun.IDB, id int64) (*User, error) {
	return a.getBy(ctx, tx, "id", id)
}

func (a *users) GetByEmail(ctx context.Context, email string) (*User, error) {
	return a.GetByEmailTx(ctx, a.db, email)
}

func (a *users) GetByEmailTx(ctx context.Context, tx bun.IDB, email string) (*User, error) {
	return a.getBy(ctx, tx, "email", NormalizeEmail(email))
}

func (a *users) getBy(ctx context.Context, tx bun.IDB, column string, value any) (*User, error) {
	record := &User{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.? = ?", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, ErrIdentityNotFound
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user")
	}
	return record, nil
}

func (a *users) Activate(ctx context.Context, id int64) (bool, error) {
	return a.ActivateTx(ctx, a.db, id)
}

// ActivateTx flips is_active only when it is still false. It reports
// true to the single caller that performed the transition.
func (a *users) ActivateTx(ctx context.Context, tx bun.IDB, id int64) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("is_active = ?", true).
		Set("updated_at = ?", a.timestamp()).
		Where("id = ?", id).
		Where("is_active = ?", false).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to activate user")
	}
	return affected(res)
}

func (a *users) ReplacePasswordHash(ctx context.Context, id int64, expectedHash, newHash string) (bool, error) {
	return a.ReplacePasswordHashTx(ctx, a.db, id, expectedHash, newHash)
}

// ReplacePasswordHashTx is a compare-and-set on the stored hash
func (a *users) ReplacePasswordHashTx(ctx context.Context, tx bun.IDB, id int64, expectedHash, newHash string) (bool, error) {
	res, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("password_hash = ?", newHash).
		Set("updated_at = ?", a.timestamp()).
		Where("id = ?", id).
		Where("password_hash = ?", expectedHash).
		Exec(ctx)
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}
	return affected(res)
}

func (a *users) UpdateProfile(ctx context.Context, user *User) (*User, error) {
	return a.UpdateProfileTx(ctx, a.db, user)
}

func (a *users) UpdateProfileTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	now := a.timestamp()
	user.UpdatedAt = &now

	res, err := tx.NewUpdate().
		Model(user).
		Column("name", "phone_number", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update profile")
	}

	if ok, err := affected(res); err != nil {
		return nil, err
	} else if !ok {
		return nil, ErrIdentityNotFound
	}

	return a.GetByIDTx(ctx, tx, user.ID)
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	loggedInAt := a.timestamp()
	_, err := tx.NewUpdate().
		Model((*User)(nil)).
		Set("last_login_at = ?", loggedInAt).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to track login")
	}
	user.LastLoginAt = &loggedInAt
	return nil
}

func (a *users) Delete(ctx context.Context, id int64) error {
	return a.DeleteTx(ctx, a.db, id)
}

func (a *users) DeleteTx(ctx context.Context, tx bun.IDB, id int64) error {
	res, err := tx.NewDelete().
		Model((*User)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete user")
	}

	if ok, err := affected(res); err != nil {
		return err
	} else if !ok {
		return ErrIdentityNotFound
	}
	return nil
}

func (a *users) timestamp() time.Time {
	return a.now().UTC().Truncate(time.Microsecond)
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

func affected(res rowsAffecter) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to read affected rows")
	}
	return n > 0, nil
}
