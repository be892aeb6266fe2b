package csrf

import "github.com/goliatone/go-router"

// RouteConfig controls how the CSRF bootstrap endpoint behaves.
type RouteConfig struct {
	// Path is the route registered for retrieving the CSRF cookie.
	Path string
	// ContextKey is the context key where the middleware stored the token.
	ContextKey string
	// RouteName is the name assigned to the registered route.
	RouteName string
}

const (
	defaultRoutePath = "/account/csrf_cookie"
	defaultRouteName = "account.csrf_cookie.get"
)

// RegisterRoutes registers a GET endpoint that makes sure the client holds
// a CSRF cookie. The middleware must run before the handler.
func RegisterRoutes[T any](app router.Router[T], mw router.MiddlewareFunc, cfg ...RouteConfig) {
	conf := routeConfigDefault(cfg...)
	app.Get(conf.Path, Handler(conf), mw).SetName(conf.RouteName)
}

func routeConfigDefault(cfg ...RouteConfig) RouteConfig {
	conf := RouteConfig{
		Path:       defaultRoutePath,
		ContextKey: DefaultContextKey,
		RouteName:  defaultRouteName,
	}
	if len(cfg) == 0 {
		return conf
	}

	c := cfg[0]
	if c.Path != "" {
		conf.Path = c.Path
	}

	if c.ContextKey != "" {
		conf.ContextKey = c.ContextKey
	}

	if c.RouteName != "" {
		conf.RouteName = c.RouteName
	}

	return conf
}

// Handler responds with the token the middleware placed in the context
func Handler(cfg RouteConfig) router.HandlerFunc {
	if cfg.ContextKey == "" {
		cfg.ContextKey = DefaultContextKey
	}
	return func(ctx router.Context) error {
		token, _ := ctx.Locals(cfg.ContextKey).(string)
		if token == "" {
			return ctx.JSON(router.StatusForbidden, map[string]string{
				"detail": "CSRF Failed: " + ErrTokenMissing.Error() + ".",
			})
		}

		ctx.SetHeader("Cache-Control", "no-store, max-age=0")
		ctx.SetHeader("Pragma", "no-cache")
		ctx.SetHeader("Expires", "0")

		headerName := DefaultHeaderName
		if v, ok := ctx.Locals(cfg.ContextKey + "_header").(string); ok && v != "" {
			headerName = v
		}

		return ctx.JSON(router.StatusOK, map[string]string{
			"detail":      "CSRF cookie set",
			"token":       token,
			"header_name": headerName,
		})
	}
}
