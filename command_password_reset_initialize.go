package account

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email      string                                      `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse) `json:"-"`
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

// Validate will run validation rules
func (p InitializePasswordResetMessage) Validate() error {
	return ValidationErrorFromOzzo(validation.ValidateStruct(&p,
		validation.Field(&p.Email, validation.Required, is.Email),
	))
}

// InitializePasswordResetResponse is identical for known and unknown
// emails as far as callers outside the package are concerned.
type InitializePasswordResetResponse struct {
	Email   string
	Success bool
}

type InitializePasswordResetHandler struct {
	deps Dependencies
}

func NewInitializePasswordResetHandler(deps Dependencies) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{deps: deps.withDefaults()}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.Email = NormalizeEmail(event.Email)
	if err := event.Validate(); err != nil {
		return err
	}

	resp := &InitializePasswordResetResponse{
		Email:   NormalizeEmail(event.Email),
		Success: true,
	}

	user, err := h.deps.Repo.Users().GetByEmail(ctx, event.Email)
	switch {
	case err != nil && isNotFound(err):
		h.deps.Logger.Debug("password reset requested for unknown email")
	case err != nil:
		return richError(err, "failed to retrieve user for password reset")
	case !user.IsActive:
		h.deps.Logger.Debug("password reset requested for inactive user", "user_id", user.ID)
	default:
		h.notify(ctx, user)
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

func (h *InitializePasswordResetHandler) notify(ctx context.Context, user *User) {
	token, err := h.deps.Tokens.Issue(user, PurposePasswordReset)
	if err != nil {
		h.deps.Logger.Error("failed to issue password reset token", "user_id", user.ID, "error", err)
		return
	}

	uid, err := h.deps.Identities.Encode(user.ID)
	if err != nil {
		h.deps.Logger.Error("failed to encode user id", "user_id", user.ID, "error", err)
		return
	}

	link := h.deps.Links.PasswordReset(uid, token)
	if err := h.deps.Notifier.SendPasswordReset(ctx, user.Email, link); err != nil {
		h.deps.Logger.Error("failed to send password reset email", "user_id", user.ID, "error", err)
		return
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType:  ActivityEventPasswordResetRequest,
		UserID:     user.ID,
		OccurredAt: h.deps.Now(),
	})
}
