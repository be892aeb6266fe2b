package account

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type FinalizePasswordResetMessage struct {
	UID        string                                    `json:"uid"`
	Token      string                                    `json:"token"`
	Password   string                                    `json:"new_password" example:"some_secret_word" doc:"Password"`
	OnResponse func(resp *FinalizePasswordResetResponse) `json:"-"`
}

func (e FinalizePasswordResetMessage) Type() string { return "user.password_reset.finalize" }

type FinalizePasswordResetResponse struct {
	User            *User
	SessionsRevoked int64
}

type FinalizePasswordResetHandler struct {
	deps Dependencies
}

func NewFinalizePasswordResetHandler(deps Dependencies) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if strings.TrimSpace(event.UID) == "" || strings.TrimSpace(event.Token) == "" {
		return ErrInvalidResetLink
	}

	id, err := h.deps.Identities.Decode(strings.TrimSpace(event.UID))
	if err != nil {
		return ErrInvalidResetLink
	}

	user, err := h.deps.Repo.Users().GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidResetLink
		}
		return richError(err, "could not retrieve user for password reset")
	}

	if !h.deps.Tokens.Verify(user, PurposePasswordReset, strings.TrimSpace(event.Token)) {
		return ErrInvalidResetLink
	}

	err = ValidationErrorFromOzzo(validation.ValidateStruct(&event,
		validation.Field(&event.Password, PasswordRules(user.Email)...),
	))
	if err != nil {
		return err
	}

	hash, err := h.deps.Hasher.HashPassword(event.Password)
	if err != nil {
		return richError(err, "failed to hash password")
	}

	resp := &FinalizePasswordResetResponse{User: user}

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		replaced, err := h.deps.Repo.Users().ReplacePasswordHashTx(ctx, tx, user.ID, user.PasswordHash, hash)
		if err != nil {
			return err
		}

		// someone else changed the password since the token was verified
		if !replaced {
			return ErrInvalidResetLink
		}

		resp.SessionsRevoked, err = h.deps.Repo.Sessions().DeleteForUserTx(ctx, tx, user.ID, uuid.Nil)
		return err
	})

	if err != nil {
		return richError(err, "failed to finalize password reset")
	}

	user.PasswordHash = hash

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetSuccess,
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
