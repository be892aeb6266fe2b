package csrf

import (
	"testing"
	"time"

	"github.com/goliatone/go-router"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestSecureKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")
}

func newMockContextWithBase(method string) *router.MockContext {
	ctx := router.NewMockContext()
	ctx.On("Method").Return(method)
	ctx.On("Locals", DefaultContextKey, mock.Anything).Return(nil).Maybe()
	ctx.On("Locals", DefaultContextKey+"_header", mock.Anything).Return(nil).Maybe()
	return ctx
}

func issueCookie(t *testing.T, handler router.HandlerFunc) string {
	t.Helper()

	getCtx := newMockContextWithBase("GET")
	var cookie *router.Cookie
	getCtx.On("Cookie", mock.Anything).Run(func(args mock.Arguments) {
		cookie = args.Get(0).(*router.Cookie)
	}).Return()

	require.NoError(t, handler(getCtx))
	require.NotNil(t, cookie)
	require.Equal(t, DefaultCookieName, cookie.Name)
	require.False(t, cookie.HTTPOnly)
	require.Equal(t, "Lax", cookie.SameSite)
	require.True(t, getCtx.NextCalled)

	tokenVal, ok := getCtx.LocalsMock[DefaultContextKey].(string)
	require.True(t, ok)
	require.Equal(t, cookie.Value, tokenVal)
	return tokenVal
}

func passthroughConfig(key []byte, captured *error) Config {
	return Config{
		SecureKey: key,
		ErrorHandler: func(ctx router.Context, err error) error {
			if captured != nil {
				*captured = err
			}
			return err
		},
	}
}

func TestDoubleSubmitSuccess(t *testing.T) {
	handler := New(passthroughConfig(newTestSecureKey(), nil))(func(ctx router.Context) error { return nil })

	token := issueCookie(t, handler)

	postCtx := newMockContextWithBase("POST")
	postCtx.CookiesM[DefaultCookieName] = token
	postCtx.On("GetString", DefaultHeaderName, "").Return(token)

	require.NoError(t, handler(postCtx))
	require.True(t, postCtx.NextCalled)
}

func TestSafeRequestReusesValidCookie(t *testing.T) {
	handler := New(passthroughConfig(newTestSecureKey(), nil))(func(ctx router.Context) error { return nil })

	token := issueCookie(t, handler)

	ctx := newMockContextWithBase("GET")
	ctx.CookiesM[DefaultCookieName] = token

	require.NoError(t, handler(ctx))
	ctx.AssertNotCalled(t, "Cookie", mock.Anything)
	require.Equal(t, token, ctx.LocalsMock[DefaultContextKey])
}

func TestUnsafeRequestFailures(t *testing.T) {
	key := newTestSecureKey()
	handler := New(passthroughConfig(key, nil))(func(ctx router.Context) error { return nil })
	token := issueCookie(t, handler)

	otherKey := []byte("fedcba9876543210fedcba9876543210")
	foreign := issueCookie(t, New(passthroughConfig(otherKey, nil))(func(ctx router.Context) error { return nil }))

	tests := []struct {
		name   string
		cookie string
		header string
		want   error
	}{
		{name: "no cookie", cookie: "", header: token, want: ErrTokenMissing},
		{name: "no header", cookie: token, header: "", want: ErrTokenMismatch},
		{name: "header differs", cookie: token, header: "tampered", want: ErrTokenMismatch},
		{name: "garbage cookie", cookie: "garbage", header: "garbage", want: ErrTokenMismatch},
		{name: "cookie signed with other key", cookie: foreign, header: foreign, want: ErrTokenMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var captured error
			handler := New(passthroughConfig(key, &captured))(func(ctx router.Context) error { return nil })

			ctx := newMockContextWithBase("POST")
			if tt.cookie != "" {
				ctx.CookiesM[DefaultCookieName] = tt.cookie
			}
			ctx.On("GetString", DefaultHeaderName, "").Return(tt.header).Maybe()

			err := handler(ctx)
			require.Error(t, err)
			require.ErrorIs(t, captured, tt.want)
			require.False(t, ctx.NextCalled)
		})
	}
}

func TestTokenExpiration(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	cfg := passthroughConfig(newTestSecureKey(), nil)
	cfg.Expiration = time.Hour
	cfg.Now = func() time.Time { return now }

	handler := New(cfg)(func(ctx router.Context) error { return nil })
	token := issueCookie(t, handler)

	now = now.Add(2 * time.Hour)

	postCtx := newMockContextWithBase("POST")
	postCtx.CookiesM[DefaultCookieName] = token
	postCtx.On("GetString", DefaultHeaderName, "").Return(token).Maybe()

	err := handler(postCtx)
	require.ErrorIs(t, err, ErrTokenExpired)
}

func TestDefaultErrorHandlerResponds403(t *testing.T) {
	handler := New(Config{SecureKey: newTestSecureKey()})(func(ctx router.Context) error { return nil })

	ctx := newMockContextWithBase("POST")
	var payload map[string]string
	ctx.On("JSON", router.StatusForbidden, mock.Anything).Run(func(args mock.Arguments) {
		payload = args.Get(1).(map[string]string)
	}).Return(nil).Once()

	require.NoError(t, handler(ctx))
	require.Equal(t, "CSRF Failed: CSRF cookie not set.", payload["detail"])
}

func TestSkip(t *testing.T) {
	cfg := passthroughConfig(newTestSecureKey(), nil)
	cfg.Skip = func(router.Context) bool { return true }
	handler := New(cfg)(func(ctx router.Context) error { return nil })

	ctx := router.NewMockContext()
	require.NoError(t, handler(ctx))
	require.True(t, ctx.NextCalled)
}

func TestShortSecureKeyPanics(t *testing.T) {
	require.Panics(t, func() {
		handler := New(Config{SecureKey: []byte("short")})(func(ctx router.Context) error { return nil })
		handler(newMockContextWithBase("GET"))
	})
}
