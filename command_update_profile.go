package account

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// UpdateProfileMessage is a partial update, nil fields are left untouched
type UpdateProfileMessage struct {
	UserID     int64                             `json:"-"`
	Name       *string                           `json:"name"`
	Phone      *string                           `json:"phone_number"`
	OnResponse func(resp *UpdateProfileResponse) `json:"-"`
}

func (e UpdateProfileMessage) Type() string { return "user.profile_update" }

// Validate will run validation rules
func (e UpdateProfileMessage) Validate() error {
	return ValidationErrorFromOzzo(validation.ValidateStruct(&e,
		validation.Field(&e.Name, validation.NilOrNotEmpty, validation.Length(1, 200)),
		validation.Field(&e.Phone, validation.By(phoneRule)),
	))
}

type UpdateProfileResponse struct {
	User *User
}

type UpdateProfileHandler struct {
	deps Dependencies
}

func NewUpdateProfileHandler(deps Dependencies) *UpdateProfileHandler {
	return &UpdateProfileHandler{deps: deps.withDefaults()}
}

func (h *UpdateProfileHandler) Execute(ctx context.Context, event UpdateProfileMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during profile update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdateProfileHandler) execute(ctx context.Context, event UpdateProfileMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.UserID <= 0 {
		return ErrUnauthenticated
	}

	if err := event.Validate(); err != nil {
		return err
	}

	user, err := h.deps.Repo.Users().GetByID(ctx, event.UserID)
	if err != nil {
		if isNotFound(err) {
			return ErrUnauthenticated
		}
		return richError(err, "failed to retrieve user for profile update")
	}

	changed := []string{}
	if event.Name != nil {
		name := strings.TrimSpace(*event.Name)
		if name == "" {
			return NewValidationError(map[string]string{"name": "cannot be blank"})
		}
		user.Name = name
		changed = append(changed, "name")
	}

	if event.Phone != nil {
		phone, err := NormalizePhone(*event.Phone)
		if err != nil {
			return NewValidationError(map[string]string{"phone_number": err.Error()})
		}
		user.Phone = phone
		changed = append(changed, "phone_number")
	}

	resp := &UpdateProfileResponse{User: user}

	if len(changed) > 0 {
		updated, err := h.deps.Repo.Users().UpdateProfile(ctx, user)
		if err != nil {
			return richError(err, "failed to update profile")
		}
		resp.User = updated

		recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
			EventType:  ActivityEventProfileUpdated,
			UserID:     user.ID,
			OccurredAt: h.deps.Now(),
			Metadata: map[string]any{
				"fields": changed,
			},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
