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

type DeleteAccountMessage struct {
	UserID          int64                             `json:"-"`
	CurrentPassword string                            `json:"current_password"`
	OnResponse      func(resp *DeleteAccountResponse) `json:"-"`
}

func (e DeleteAccountMessage) Type() string { return "user.delete" }

// Validate will run validation rules
func (e DeleteAccountMessage) Validate() error {
	return ValidationErrorFromOzzo(validation.ValidateStruct(&e,
		validation.Field(&e.CurrentPassword, validation.Required),
	))
}

type DeleteAccountResponse struct {
	UserID int64
}

type DeleteAccountHandler struct {
	deps Dependencies
}

func NewDeleteAccountHandler(deps Dependencies) *DeleteAccountHandler {
	return &DeleteAccountHandler{deps: deps.withDefaults()}
}

func (h *DeleteAccountHandler) Execute(ctx context.Context, event DeleteAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account deletion",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *DeleteAccountHandler) execute(ctx context.Context, event DeleteAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.UserID <= 0 {
		return ErrUnauthenticated
	}

	if err := event.Validate(); err != nil {
		return err
	}

	err := h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.deps.Repo.Users().GetByIDTx(ctx, tx, event.UserID)
		if err != nil {
			if isNotFound(err) {
				return ErrUnauthenticated
			}
			return err
		}

		if err := h.deps.Hasher.ComparePasswordAndHash(event.CurrentPassword, user.PasswordHash); err != nil {
			if errors.Is(err, ErrMismatchedHashAndPassword) {
				return ErrInvalidPassword
			}
			return err
		}

		if _, err := h.deps.Repo.Sessions().DeleteForUserTx(ctx, tx, user.ID, uuid.Nil); err != nil {
			return err
		}

		return h.deps.Repo.Users().DeleteTx(ctx, tx, user.ID)
	})

	if err != nil {
		return richError(err, "failed to delete account")
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType:  ActivityEventAccountDeleted,
		UserID:     event.UserID,
		OccurredAt: h.deps.Now(),
	})

	if event.OnResponse != nil {
		event.OnResponse(&DeleteAccountResponse{UserID: event.UserID})
	}

	return nil
}
