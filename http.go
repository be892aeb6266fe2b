package account

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

// DefaultSessionCookieName is used when the config does not name one
const DefaultSessionCookieName = "sessionid"

// SessionManager is the session capability the HTTP layer needs
type SessionManager interface {
	Login(ctx context.Context, email, password string, meta SessionMeta) (*Session, *User, error)
	Logout(ctx context.Context, sessionID string) error
	Authenticate(ctx context.Context, sessionID string) (*Session, *User, error)
	SessionTTL() time.Duration
}

// HTTPAuthenticator binds sessions to requests
type HTTPAuthenticator interface {
	ProtectedRoute() router.MiddlewareFunc
	Login(ctx router.Context, email, password string) (*Session, *User, error)
	Logout(ctx router.Context) error
}

type RouteAuthenticator struct {
	sessions     SessionManager
	cookieName   string
	cookieSecure bool
	now          func() time.Time
	Logger       Logger
	ErrorHandler func(c router.Context, err error) error
}

func NewHTTPAuthenticator(sessions SessionManager, cfg Config) *RouteAuthenticator {
	a := &RouteAuthenticator{
		sessions:     sessions,
		cookieName:   DefaultSessionCookieName,
		cookieSecure: true,
		now:          time.Now,
		Logger:       defLogger{},
	}

	if cfg != nil {
		if name := cfg.GetSessionCookieName(); name != "" {
			a.cookieName = name
		}
		a.cookieSecure = cfg.GetCookieSecure()
	}

	a.ErrorHandler = a.defaultErrHandler

	return a
}

func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	a.Logger = resolveLogger(logger)
	return a
}

// WithClock overrides the clock used for cookie expiry
func (a *RouteAuthenticator) WithClock(now func() time.Time) *RouteAuthenticator {
	if now != nil {
		a.now = now
	}
	return a
}

// CookieName returns the session cookie name
func (a *RouteAuthenticator) CookieName() string {
	return a.cookieName
}

// ProtectedRoute rejects requests without a live session. On success the
// user and session are available through CurrentUser, CurrentSession and
// the request context.
func (a *RouteAuthenticator) ProtectedRoute() router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			sessionID := ctx.Cookies(a.cookieName)
			if sessionID == "" {
				return a.ErrorHandler(ctx, ErrUnauthenticated)
			}

			session, user, err := a.sessions.Authenticate(ctx.Context(), sessionID)
			if err != nil {
				return a.ErrorHandler(ctx, err)
			}

			ctx.Locals(LocalsUserKey, user)
			ctx.Locals(LocalsSessionKey, session)
			ctx.SetContext(WithSessionContext(WithContext(ctx.Context(), user), session))

			return ctx.Next()
		}
	}
}

// Login opens a session and sets the session cookie
func (a *RouteAuthenticator) Login(ctx router.Context, email, password string) (*Session, *User, error) {
	meta := SessionMeta{
		IP:        ctx.IP(),
		UserAgent: ctx.GetString("User-Agent", ""),
	}

	session, user, err := a.sessions.Login(ctx.Context(), email, password, meta)
	if err != nil {
		return nil, nil, err
	}

	a.setSessionCookie(ctx, session.ID.String(), session.ExpiresAt)
	return session, user, nil
}

// Logout drops the session, if any, and clears the cookie
func (a *RouteAuthenticator) Logout(ctx router.Context) error {
	sessionID := ctx.Cookies(a.cookieName)
	a.cookieDel(ctx, a.cookieName)

	if sessionID == "" {
		return nil
	}

	if err := a.sessions.Logout(ctx.Context(), sessionID); err != nil {
		a.Logger.Error("logout failed", "error", err)
		return err
	}
	return nil
}

func (a *RouteAuthenticator) setSessionCookie(c router.Context, val string, expires time.Time) {
	c.Cookie(&router.Cookie{
		Name:     a.cookieName,
		Value:    val,
		Path:     "/",
		Expires:  expires,
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) cookieDel(c router.Context, name string) {
	c.Cookie(&router.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Expires:  a.now().Add(-time.Hour * (24 * 365)),
		HTTPOnly: true,
		Secure:   a.cookieSecure,
		SameSite: "Lax",
	})
}

func (a *RouteAuthenticator) defaultErrHandler(c router.Context, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		richErr = goerrors.Wrap(err, goerrors.CategoryInternal, "An unexpected server error occurred").
			WithCode(goerrors.CodeInternal)
	}

	a.Logger.Info(
		"protected route rejected request",
		"error", richErr.Message,
		"category", richErr.Category,
		"details", print.MaybePrettyJSON(richErr.Metadata),
	)

	return writeError(c, a.Logger, err)
}

// ErrorPayload is the JSON body of every failed request
type ErrorPayload struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code,omitempty"`
	Errors map[string]string `json:"errors,omitempty"`
}

const msgInternal = "A server error occurred."

// writeError maps err into an ErrorPayload. Internal failures are logged
// and reported with a generic detail.
func writeError(c router.Context, logger Logger, err error) error {
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		logger.Error("unhandled error", "error", err)
		return c.JSON(http.StatusInternalServerError, ErrorPayload{Detail: msgInternal})
	}

	status := statusFor(richErr)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "error", err)
		return c.JSON(status, ErrorPayload{Detail: msgInternal})
	}

	return c.JSON(status, ErrorPayload{
		Detail: richErr.Message,
		Code:   richErr.TextCode,
		Errors: ValidationFields(richErr),
	})
}

func statusFor(err *goerrors.Error) int {
	if err.Code != 0 {
		return err.Code
	}

	switch err.Category {
	case goerrors.CategoryValidation, goerrors.CategoryBadInput:
		return http.StatusBadRequest
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
