package account

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Email      string                           `json:"email"`
	Name       string                           `json:"name"`
	Phone      string                           `json:"phone_number"`
	Password   string                           `json:"password"`
	OnResponse func(resp *RegisterUserResponse) `json:"-"`
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// Validate will run validation rules
func (e RegisterUserMessage) Validate() error {
	return ValidationErrorFromOzzo(validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&e.Phone, validation.By(phoneRule)),
		validation.Field(&e.Password, PasswordRules(e.Email)...),
	))
}

type RegisterUserResponse struct {
	User             *User
	UID              string
	NotificationSent bool
}

type RegisterUserHandler struct {
	deps Dependencies
}

func NewRegisterUserHandler(deps Dependencies) *RegisterUserHandler {
	return &RegisterUserHandler{deps: deps.withDefaults()}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	event.Email = NormalizeEmail(event.Email)
	if err := event.Validate(); err != nil {
		return err
	}

	phone, err := NormalizePhone(event.Phone)
	if err != nil {
		return NewValidationError(map[string]string{"phone_number": err.Error()})
	}

	hash, err := h.deps.Hasher.HashPassword(event.Password)
	if err != nil {
		return richError(err, "failed to hash password")
	}

	resp := &RegisterUserResponse{}
	var link string

	err = h.deps.Repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := h.deps.Repo.Users().CreateTx(ctx, tx, &User{
			Email:        event.Email,
			Name:         event.Name,
			Phone:        phone,
			PasswordHash: hash,
		})
		if err != nil {
			return err
		}

		token, err := h.deps.Tokens.Issue(user, PurposeActivation)
		if err != nil {
			return err
		}

		uid, err := h.deps.Identities.Encode(user.ID)
		if err != nil {
			return err
		}

		resp.User = user
		resp.UID = uid
		link = h.deps.Links.Activation(uid, token)
		return nil
	})

	if err != nil {
		return richError(err, "user registration transaction failed")
	}

	if err := h.deps.Notifier.SendActivation(ctx, resp.User.Email, link); err != nil {
		h.deps.Logger.Error("failed to send activation email", "user_id", resp.User.ID, "error", err)
	} else {
		resp.NotificationSent = true
	}

	recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
		EventType:  ActivityEventRegistered,
		UserID:     resp.User.ID,
		OccurredAt: h.deps.Now(),
		Metadata: map[string]any{
			"notification_sent": resp.NotificationSent,
		},
	})

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
