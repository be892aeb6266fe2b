package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/rs/zerolog"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/config"
	"github.com/goliatone/go-account/logging"
	"github.com/goliatone/go-account/mailer"
	"github.com/goliatone/go-account/middleware/csrf"
)

const sessionPurgeInterval = time.Hour

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "accountd:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		if fields := account.ValidationFields(err); fields != nil {
			return fmt.Errorf("%w\n%s", err, print.MaybePrettyJSON(fields))
		}
		return err
	}

	zl, err := logging.NewZerolog(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	logger := logging.New(zl, "accountd")

	db, err := config.OpenDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := account.CreateSchema(ctx, db); err != nil {
		return err
	}

	deps, err := newDependencies(cfg, zl, account.NewRepositoryManager(db))
	if err != nil {
		return err
	}

	provider := account.NewUserProvider(deps.Repo.Users(), deps.Hasher).
		WithLogger(logging.New(zl, "identity"))

	sessions := account.NewSessionAuthenticator(provider, deps.Repo, cfg.GetSessionTTL()).
		WithLogger(logging.New(zl, "sessions")).
		WithActivitySink(deps.Activity)

	auther := account.NewHTTPAuthenticator(sessions, cfg).
		WithLogger(logging.New(zl, "http"))

	srv := router.NewFiberAdapter(func(a *fiber.App) *fiber.App {
		return router.DefaultFiberOptions(fiber.New(fiber.Config{
			UnescapePath:          true,
			StrictRouting:         false,
			DisableStartupMessage: !cfg.Debug,
		}))
	})

	var secureKey []byte
	if cfg.CSRFSecret != "" {
		secureKey = []byte(cfg.CSRFSecret)
	}

	account.RegisterAccountRoutes(srv.Router(),
		account.WithDependencies(deps),
		account.WithAuthenticator(auther),
		account.WithCSRF(csrf.New(csrf.Config{
			SecureKey:    secureKey,
			CookieSecure: cfg.GetCookieSecure(),
		})),
		account.WithControllerLogger(logging.New(zl, "controller")),
		account.WithDebug(cfg.Debug),
	)

	go purgeExpiredSessions(ctx, deps.Repo.Sessions(), sessionPurgeInterval, logger)

	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTP.Addr, "db_driver", cfg.Database.Driver, "mail", cfg.MailEnabled)
		errc <- srv.Serve(cfg.HTTP.Addr)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

func newDependencies(cfg *config.Config, zl zerolog.Logger, repo account.RepositoryManager) (account.Dependencies, error) {
	hasher, err := account.NewPasswordHasher(cfg.GetPasswordHasher())
	if err != nil {
		return account.Dependencies{}, err
	}

	tokens, err := account.NewTokenServiceFromConfig(cfg)
	if err != nil {
		return account.Dependencies{}, err
	}

	ids, err := account.NewIdentityEncoder(cfg.GetIdentityAlphabet(), cfg.GetIdentityMinLength())
	if err != nil {
		return account.Dependencies{}, err
	}

	var notifier account.Notifier = account.LogNotifier{Logger: logging.New(zl, "notifier")}
	if cfg.MailEnabled {
		notifier, err = mailer.NewSMTPNotifier(cfg.SMTP, mailer.WithLogger(logging.New(zl, "mailer")))
		if err != nil {
			return account.Dependencies{}, err
		}
	}

	return account.Dependencies{
		Repo:       repo,
		Hasher:     hasher,
		Tokens:     tokens,
		Identities: ids,
		Links:      account.NewLinkBuilderFromConfig(cfg),
		Notifier:   notifier,
		Activity:   logging.NewActivitySink(zl),
		Logger:     logging.New(zl, "account"),
	}, nil
}

// purgeExpiredSessions deletes expired sessions until ctx is done
func purgeExpiredSessions(ctx context.Context, sessions account.Sessions, every time.Duration, logger account.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := sessions.PurgeExpired(ctx, time.Now())
			if err != nil {
				logger.Error("failed to purge sessions", "error", err)
				continue
			}
			if n > 0 {
				logger.Debug("purged expired sessions", "count", n)
			}
		}
	}
}
