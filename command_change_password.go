package account

import (
	"context"
	"errors"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type ChangePasswordMessage struct {
	UserID      int64                              `json:"-"`
	SessionID   uuid.UUID                          `json:"-"`
	OldPassword string                             `json:"old_password"`
	NewPassword string                             `json:"new_password"`
	OnResponse  func(resp *ChangePasswordResponse) `json:"-"`
}

func (e ChangePasswordMessage) Type() string { return "user.password_change" }

type ChangePasswordResponse struct {
	User            *User
	SessionsRevoked int64
}

// ChangePasswordHandler replaces the password of an authenticated user.
// The caller session survives, every other session is revoked.
type ChangePasswordHandler struct {
	deps Dependencies
}

func NewChangePasswordHandler(deps Dependencies) *ChangePasswordHandler {
	return &ChangePasswordHandler{deps: deps.withDefaults()}
}

func (h *ChangePasswordHandler) Execute(ctx context.Context, event ChangePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password change",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ChangePasswordHandler) execute(ctx context.Context, event ChangePasswordMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.UserID <= 0 {
		return ErrUnauthenticated
	}

	user, err := h.deps.Repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		if isNotFound(err) {
			return ErrUnauthenticated
		}
		return richError(err, "failed to retrieve user for password change")
	}

	err = ValidationErrorFromOzzo(validation.ValidateStruct(&event,
		validation.Field(&event.OldPassword, validation.Required),
		validation.Field(&event.NewPassword, PasswordRules(user.Email)...),
	))
	if err != nil {
		return err
	}

	if err := h.deps.Hasher.ComparePasswordAndHash(event.OldPassword, user.PasswordHash); err != nil {
		if errors.Is(err, ErrMismatchedHashAndPassword) {
			return ErrInvalidOldPassword
		}
		return richError(err, "failed to verify password")
	}

	hash, err := h.deps.Hasher.HashPassword(event.NewPassword)
	if err != nil {
		return richError(err, "failed to hash password")
	}

	resp := &ChangePasswordResponse{User: user}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		replaced, err := h.deps.Repo.Users().ReplacePasswordHashTx(ctx, tx, user.ID, user.PasswordHash, hash)
		if err != nil {
			return err
		}

		// a concurrent change won, the old password is no longer current
		if !replaced {
			return ErrInvalidOldPassword
		}

		resp.SessionsRevoked, err = h.deps.Repo.Sessions().DeleteForUserTx(ctx, tx, user.ID, event.SessionID)
		return err
	})

	if err != nil {
		return richError(err, "failed to change password")
	}

	user.PasswordHash = hash

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType:  ActivityEventPasswordChanged,
		UserID:     user.ID,
		OccurredAt: h.deps.Now(),
		Metadata: map[string]any{
			"sessions_revoked": resp.SessionsRevoked,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
