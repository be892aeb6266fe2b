// Package config loads account settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/logging"
	"github.com/goliatone/go-account/mailer"
)

// Prefix is prepended to every environment variable
const Prefix = "ACCOUNT_"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

const minSecretKeyLength = 32

// Config contains server configuration parameters.
type Config struct {
	SecretKey             string        `env:"SECRET_KEY,required"`
	Issuer                string        `env:"ISSUER" envDefault:"go-account"`
	ActivationTokenTTL    time.Duration `env:"ACTIVATION_TOKEN_TTL" envDefault:"72h"`
	PasswordResetTokenTTL time.Duration `env:"PASSWORD_RESET_TOKEN_TTL" envDefault:"72h"`
	SessionTTL            time.Duration `env:"SESSION_TTL" envDefault:"336h"`
	SessionCookieName     string        `env:"SESSION_COOKIE_NAME" envDefault:"sessionid"`
	CookieSecure          bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SiteDomain            string        `env:"SITE_DOMAIN" envDefault:"http://localhost:8000"`
	ActivationPath        string        `env:"ACTIVATION_PATH" envDefault:"/account/activate/{uid}/{token}/"`
	PasswordResetPath     string        `env:"PASSWORD_RESET_PATH" envDefault:"/account/reset_password/{uid}/{token}/"`
	PasswordHasher        string        `env:"PASSWORD_HASHER" envDefault:"bcrypt"`
	IdentityAlphabet      string        `env:"IDENTITY_ALPHABET"`
	IdentityMinLength     int           `env:"IDENTITY_MIN_LENGTH" envDefault:"8"`
	// CSRFSecret signs CSRF tokens, a random key is used when empty
	CSRFSecret  string        `env:"CSRF_SECRET"`
	MailEnabled bool          `env:"MAIL_ENABLED" envDefault:"false"`
	Debug       bool          `env:"DEBUG" envDefault:"false"`
	HTTP        HTTP          `envPrefix:"HTTP_"`
	Database    Database      `envPrefix:"DB_"`
	SMTP        mailer.Config `envPrefix:"SMTP_"`
	Log         Log           `envPrefix:"LOG_"`
}

// HTTP contains server parameters.
type HTTP struct {
	Addr            string        `env:"ADDR" envDefault:":8000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Database contains database connection parameters.
type Database struct {
	Driver       string `env:"DRIVER" envDefault:"sqlite"`
	DSN          string `env:"DSN" envDefault:"file:account.db?cache=shared"`
	MaxOpenConns int    `env:"MAX_OPEN_CONNS" envDefault:"0"`
}

// Log contains logger parameters.
type Log struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

var _ account.Config = Config{}

// Load reads the configuration from the process environment
func Load() (*Config, error) {
	return load(env.Options{Prefix: Prefix})
}

// LoadFromMap reads the configuration from vars, keys include the prefix
func LoadFromMap(vars map[string]string) (*Config, error) {
	return load(env.Options{Prefix: Prefix, Environment: vars})
}

func load(opts env.Options) (*Config, error) {
	cfg := Config{}
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate reports every invalid setting as a field error
func (c Config) Validate() error {
	fields := map[string]string{}

	if len(c.SecretKey) < minSecretKeyLength {
		fields["SECRET_KEY"] = fmt.Sprintf("must be at least %d bytes", minSecretKeyLength)
	}
	if c.CSRFSecret != "" && len(c.CSRFSecret) < minSecretKeyLength {
		fields["CSRF_SECRET"] = fmt.Sprintf("must be at least %d bytes", minSecretKeyLength)
	}

	switch c.PasswordHasher {
	case account.HasherBcrypt, account.HasherArgon2id:
	default:
		fields["PASSWORD_HASHER"] = "unknown algorithm " + c.PasswordHasher
	}

	switch c.Database.Driver {
	case DriverSQLite, DriverPostgres:
	default:
		fields["DB_DRIVER"] = "unknown driver " + c.Database.Driver
	}
	if c.Database.DSN == "" {
		fields["DB_DSN"] = "required"
	}

	switch c.Log.Format {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		fields["LOG_FORMAT"] = "unknown format " + c.Log.Format
	}

	if c.ActivationTokenTTL <= 0 {
		fields["ACTIVATION_TOKEN_TTL"] = "must be positive"
	}
	if c.PasswordResetTokenTTL <= 0 {
		fields["PASSWORD_RESET_TOKEN_TTL"] = "must be positive"
	}
	if c.SessionTTL <= 0 {
		fields["SESSION_TTL"] = "must be positive"
	}
	if c.SessionCookieName == "" {
		fields["SESSION_COOKIE_NAME"] = "required"
	}
	if c.IdentityMinLength < 0 {
		fields["IDENTITY_MIN_LENGTH"] = "can not be negative"
	}

	if c.MailEnabled {
		if err := c.SMTP.Validate(); err != nil {
			fields["SMTP"] = err.Error()
		}
	}

	if len(fields) > 0 {
		return account.NewValidationError(fields)
	}
	return nil
}

func (c Config) GetSecretKey() string {
	return c.SecretKey
}

func (c Config) GetIssuer() string {
	return c.Issuer
}

func (c Config) GetActivationTokenTTL() time.Duration {
	return c.ActivationTokenTTL
}

func (c Config) GetPasswordResetTokenTTL() time.Duration {
	return c.PasswordResetTokenTTL
}

func (c Config) GetSessionTTL() time.Duration {
	return c.SessionTTL
}

func (c Config) GetSessionCookieName() string {
	return c.SessionCookieName
}

func (c Config) GetCookieSecure() bool {
	return c.CookieSecure
}

func (c Config) GetSiteDomain() string {
	return c.SiteDomain
}

func (c Config) GetActivationPath() string {
	return c.ActivationPath
}

func (c Config) GetPasswordResetPath() string {
	return c.PasswordResetPath
}

func (c Config) GetPasswordHasher() string {
	return c.PasswordHasher
}

func (c Config) GetIdentityAlphabet() string {
	return c.IdentityAlphabet
}

func (c Config) GetIdentityMinLength() int {
	return c.IdentityMinLength
}
