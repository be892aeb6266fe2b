// Package mailer delivers account links over SMTP.
package mailer

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"io/fs"
	"net/http"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
	"gopkg.in/gomail.v2"

	account "github.com/goliatone/go-account"
)

//go:embed templates/*.tpl
var templates embed.FS

const (
	viewActivation    = "activation"
	viewPasswordReset = "password_reset"
)

// Config holds SMTP settings
type Config struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     int    `env:"PORT" envDefault:"587"`
	Username string `env:"USERNAME"`
	Password string `env:"PASSWORD"`
	From     string `env:"FROM" envDefault:"no-reply@localhost"`
	SiteName string `env:"SITE_NAME" envDefault:"Account"`
}

// Validate checks the settings needed to send mail
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("missing SMTP host")
	}
	if c.Port <= 0 {
		return fmt.Errorf("invalid SMTP port %d", c.Port)
	}
	if c.From == "" {
		return fmt.Errorf("missing SMTP from address")
	}
	return nil
}

// Sender sends composed messages, *gomail.Dialer implements it
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPNotifier implements account.Notifier
type SMTPNotifier struct {
	from     string
	siteName string
	sender   Sender
	views    *django.Engine
	logger   account.Logger
}

var _ account.Notifier = (*SMTPNotifier)(nil)

type Option func(*SMTPNotifier)

// WithSender replaces the SMTP dialer
func WithSender(sender Sender) Option {
	return func(n *SMTPNotifier) {
		if sender != nil {
			n.sender = sender
		}
	}
}

func WithLogger(logger account.Logger) Option {
	return func(n *SMTPNotifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// NewSMTPNotifier validates cfg and loads the mail templates
func NewSMTPNotifier(cfg Config, opts ...Option) (*SMTPNotifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sub, err := fs.Sub(templates, "templates")
	if err != nil {
		return nil, err
	}

	views := django.NewFileSystem(http.FS(sub), ".tpl")
	if err := views.Load(); err != nil {
		return nil, fmt.Errorf("failed to load mail templates: %w", err)
	}

	n := &SMTPNotifier{
		from:     cfg.From,
		siteName: cfg.SiteName,
		sender:   gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
		views:    views,
		logger:   account.NopLogger{},
	}

	for _, opt := range opts {
		opt(n)
	}

	return n, nil
}

func (n *SMTPNotifier) SendActivation(ctx context.Context, email, link string) error {
	return n.send(ctx, email, "Activate your "+n.siteName+" account", viewActivation, link)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, email, link string) error {
	return n.send(ctx, email, "Reset your "+n.siteName+" password", viewPasswordReset, link)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, view, link string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := n.compose(to, subject, view, link)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to render email")
	}

	if err := n.sender.DialAndSend(msg); err != nil {
		n.logger.Error("smtp delivery failed", "view", view, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send email")
	}

	n.logger.Debug("email sent", "view", view)
	return nil
}

func (n *SMTPNotifier) compose(to, subject, view, link string) (*gomail.Message, error) {
	binding := map[string]any{
		"site_name": n.siteName,
		"email":     to,
		"link":      link,
	}

	text, err := n.render(view+".txt", binding)
	if err != nil {
		return nil, err
	}

	html, err := n.render(view+".html", binding)
	if err != nil {
		return nil, err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", n.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", text)
	msg.AddAlternative("text/html", html)

	return msg, nil
}

func (n *SMTPNotifier) render(name string, binding map[string]any) (string, error) {
	var buf bytes.Buffer
	if err := n.views.Render(&buf, name, binding); err != nil {
		return "", err
	}
	return buf.String(), nil
}
