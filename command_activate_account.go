package account

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// ActivationOutcome is the non error result of an activation
type ActivationOutcome string

const (
	ActivationActivated     ActivationOutcome = "activated"
	ActivationAlreadyActive ActivationOutcome = "already_active"
)

type ActivateAccountMessage struct {
	UID        string                              `json:"uid"`
	Token      string                              `json:"token"`
	OnResponse func(resp *ActivateAccountResponse) `json:"-"`
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

type ActivateAccountResponse struct {
	Outcome ActivationOutcome
	User    *User
}

// ActivateAccountHandler moves a user from registered to active.
// Decode failures, unknown users and bad tokens all report
// ErrInvalidActivationLink.
type ActivateAccountHandler struct {
	deps Dependencies
}

func NewActivateAccountHandler(deps Dependencies) *ActivateAccountHandler {
	return &ActivateAccountHandler{deps: deps.withDefaults()}
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	uid := strings.TrimSpace(event.UID)
	token := strings.TrimSpace(event.Token)
	if uid == "" || token == "" {
		return ErrMissingActivationParams
	}

	id, err := h.deps.Identities.Decode(uid)
	if err != nil {
		return ErrInvalidActivationLink
	}

	user, err := h.deps.Repo.Users().GetByID(ctx, id)
	if err != nil {
		if isNotFound(err) {
			return ErrInvalidActivationLink
		}
		return richError(err, "failed to retrieve user for activation")
	}

	// tokens are bound to the pending state, so an already activated
	// user can still prove the link was theirs
	pending := user.Snapshot()
	pending.IsActive = false
	if !h.deps.Tokens.Verify(pending, PurposeActivation, token) {
		return ErrInvalidActivationLink
	}

	resp := &ActivateAccountResponse{
		Outcome: ActivationAlreadyActive,
		User:    user,
	}

	if !user.IsActive {
		activated, err := h.deps.Repo.Users().Activate(ctx, user.ID)
		if err != nil {
			return richError(err, "failed to activate user")
		}

		user.IsActive = true
		if activated {
			resp.Outcome = ActivationActivated
			recordActivity(ctx, h.deps.Activity, h.deps.Logger, ActivityEvent{
				EventType:  ActivityEventActivated,
				UserID:     user.ID,
				OccurredAt: h.deps.Now(),
			})
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
