package account

import (
	"time"

	goerrors "github.com/goliatone/go-errors"
)

// Dependencies groups the collaborators shared by command handlers
type Dependencies struct {
	Repo       RepositoryManager
	Hasher     PasswordAuthenticator
	Tokens     TokenService
	Identities IdentityEncoder
	Links      *LinkBuilder
	Notifier   Notifier
	Activity   ActivitySink
	Logger     Logger
	Now        func() time.Time
}

// Validate checks required collaborators are present
func (d Dependencies) Validate() error {
	missing := []string{}
	if d.Repo == nil {
		missing = append(missing, "repo")
	}
	if d.Hasher == nil {
		missing = append(missing, "hasher")
	}
	if d.Tokens == nil {
		missing = append(missing, "tokens")
	}
	if d.Identities == nil {
		missing = append(missing, "identities")
	}
	if len(missing) > 0 {
		return goerrors.New("missing account dependencies", goerrors.CategoryInternal).
			WithMetadata(map[string]any{"missing": missing})
	}
	return nil
}

func (d Dependencies) withDefaults() Dependencies {
	d.Logger = resolveLogger(d.Logger)
	d.Activity = normalizeActivitySink(d.Activity)
	if d.Notifier == nil {
		d.Notifier = LogNotifier{Logger: d.Logger}
	}
	if d.Links == nil {
		d.Links = &LinkBuilder{}
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	return d
}

// NopLogger discards all output
type NopLogger struct{}

func (NopLogger) Debug(string, ...any) {}
func (NopLogger) Info(string, ...any)  {}
func (NopLogger) Warn(string, ...any)  {}
func (NopLogger) Error(string, ...any) {}
