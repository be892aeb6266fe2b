package account

import (
	"context"
	"net/url"
	"strings"
)

const (
	DefaultActivationPath    = "/account/activate/{uid}/{token}/"
	DefaultPasswordResetPath = "/account/reset_password/{uid}/{token}/"
)

// LinkBuilder renders the links mailed to users
type LinkBuilder struct {
	SiteDomain        string
	ActivationPath    string
	PasswordResetPath string
}

// NewLinkBuilderFromConfig creates a LinkBuilder using cfg
func NewLinkBuilderFromConfig(cfg Config) *LinkBuilder {
	return &LinkBuilder{
		SiteDomain:        cfg.GetSiteDomain(),
		ActivationPath:    cfg.GetActivationPath(),
		PasswordResetPath: cfg.GetPasswordResetPath(),
	}
}

// Activation returns the activation link for uid and token
func (b *LinkBuilder) Activation(uid, token string) string {
	path := DefaultActivationPath
	if b != nil && b.ActivationPath != "" {
		path = b.ActivationPath
	}
	return b.render(path, uid, token)
}

// PasswordReset returns the password reset link for uid and token
func (b *LinkBuilder) PasswordReset(uid, token string) string {
	path := DefaultPasswordResetPath
	if b != nil && b.PasswordResetPath != "" {
		path = b.PasswordResetPath
	}
	return b.render(path, uid, token)
}

func (b *LinkBuilder) render(path, uid, token string) string {
	r := strings.NewReplacer(
		"{uid}", url.PathEscape(uid),
		"{token}", url.PathEscape(token),
	)

	domain := ""
	if b != nil {
		domain = strings.TrimRight(b.SiteDomain, "/")
	}

	path = r.Replace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return domain + path
}

// LogNotifier writes links to the logger instead of sending mail
type LogNotifier struct {
	Logger Logger
}

var _ Notifier = LogNotifier{}

func (n LogNotifier) SendActivation(_ context.Context, email, link string) error {
	resolveLogger(n.Logger).Info("activation link", "to", email, "link", link)
	return nil
}

func (n LogNotifier) SendPasswordReset(_ context.Context, email, link string) error {
	resolveLogger(n.Logger).Info("password reset link", "to", email, "link", link)
	return nil
}
