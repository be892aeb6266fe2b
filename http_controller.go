package account

import (
	"net/http"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"

	"github.com/goliatone/go-account/middleware/csrf"
)

// RegisterAccountRoutes mounts the account API on app
func RegisterAccountRoutes[T any](app router.Router[T], opts ...AccountControllerOption) *AccountController {

	controller := NewAccountController(opts...)
	protected := controller.Auther.ProtectedRoute()

	app.Get(controller.Routes.CSRFCookie, controller.CSRFCookie, controller.middleware()...).
		SetName("account.csrf_cookie.get")

	app.Get(controller.Routes.CheckAuth, controller.CheckAuth, controller.middleware(protected)...).
		SetName("account.checkauth.get")

	app.Post(controller.Routes.Registration, controller.Registration, controller.middleware()...).
		SetName("account.registration.post")

	app.Post(controller.Routes.Activate, controller.Activate, controller.middleware()...).
		SetName("account.activate.post")
	app.Post(withLinkParams(controller.Routes.Activate), controller.Activate, controller.middleware()...).
		SetName("account.activate-link.post")

	app.Post(controller.Routes.Login, controller.Login, controller.middleware()...).
		SetName("account.login.post")
	app.Post(controller.Routes.Logout, controller.Logout, controller.middleware()...).
		SetName("account.logout.post")

	app.Get(controller.Routes.User, controller.UserShow, controller.middleware(protected)...).
		SetName("account.user.get")
	app.Patch(controller.Routes.User, controller.UserUpdate, controller.middleware(protected)...).
		SetName("account.user.patch")
	app.Delete(controller.Routes.User, controller.UserDelete, controller.middleware(protected)...).
		SetName("account.user.delete")

	app.Post(controller.Routes.ChangePassword, controller.ChangePassword, controller.middleware(protected)...).
		SetName("account.change_password.post")

	app.Post(controller.Routes.ResetPassword, controller.ResetPassword, controller.middleware()...).
		SetName("account.reset_password.post")
	app.Post(withLinkParams(controller.Routes.ResetPassword), controller.ResetPasswordConfirm, controller.middleware()...).
		SetName("account.reset_password-confirm.post")

	return controller
}

func withLinkParams(base string) string {
	return strings.TrimRight(base, "/") + "/:uid/:token/"
}

type AccountControllerRoutes struct {
	CSRFCookie     string
	CheckAuth      string
	Registration   string
	Activate       string
	Login          string
	Logout         string
	User           string
	ChangePassword string
	ResetPassword  string
}

// DefaultAccountControllerRoutes returns the default API paths
func DefaultAccountControllerRoutes() *AccountControllerRoutes {
	return &AccountControllerRoutes{
		CSRFCookie:     "/account/csrf_cookie",
		CheckAuth:      "/account/checkauth",
		Registration:   "/account/registration/",
		Activate:       "/account/activate/",
		Login:          "/account/login/",
		Logout:         "/account/logout/",
		User:           "/account/user/",
		ChangePassword: "/account/change_password/",
		ResetPassword:  "/account/reset_password/",
	}
}

type AccountController struct {
	Debug  bool
	Logger Logger
	Routes *AccountControllerRoutes
	Auther HTTPAuthenticator
	// CSRF, when set, runs in front of every account route
	CSRF         router.MiddlewareFunc
	ErrorHandler func(router.Context, error) error

	deps           *Dependencies
	register       *RegisterUserHandler
	activate       *ActivateAccountHandler
	resetInit      *InitializePasswordResetHandler
	resetFinalize  *FinalizePasswordResetHandler
	changePassword *ChangePasswordHandler
	updateProfile  *UpdateProfileHandler
	deleteAccount  *DeleteAccountHandler
}

type AccountControllerOption func(*AccountController) *AccountController

// WithDependencies wires the command handlers behind the controller
func WithDependencies(deps Dependencies) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.deps = &deps
		return c
	}
}

func WithAuthenticator(auther HTTPAuthenticator) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Auther = auther
		return c
	}
}

func WithCSRF(mw router.MiddlewareFunc) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.CSRF = mw
		return c
	}
}

func WithRoutes(routes *AccountControllerRoutes) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		if routes != nil {
			c.Routes = routes
		}
		return c
	}
}

func WithControllerLogger(logger Logger) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Logger = resolveLogger(logger)
		return c
	}
}

func WithDebug(debug bool) AccountControllerOption {
	return func(c *AccountController) *AccountController {
		c.Debug = debug
		return c
	}
}

func NewAccountController(opts ...AccountControllerOption) *AccountController {
	c := &AccountController{
		Logger: defLogger{},
		Routes: DefaultAccountControllerRoutes(),
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.deps == nil {
		panic("Missing Dependencies in account controller...")
	}

	if err := c.deps.Validate(); err != nil {
		panic(err)
	}

	if c.Auther == nil {
		panic("Missing HTTPAuthenticator in account controller...")
	}

	// csrf_cookie reads the token the middleware leaves in locals
	if c.CSRF == nil {
		c.CSRF = csrf.New()
	}

	if c.ErrorHandler == nil {
		c.ErrorHandler = func(ctx router.Context, err error) error {
			return writeError(ctx, c.Logger, err)
		}
	}

	deps := *c.deps
	if deps.Logger == nil {
		deps.Logger = c.Logger
	}

	c.register = NewRegisterUserHandler(deps)
	c.activate = NewActivateAccountHandler(deps)
	c.resetInit = NewInitializePasswordResetHandler(deps)
	c.resetFinalize = NewFinalizePasswordResetHandler(deps)
	c.changePassword = NewChangePasswordHandler(deps)
	c.updateProfile = NewUpdateProfileHandler(deps)
	c.deleteAccount = NewDeleteAccountHandler(deps)

	return c
}

func (a *AccountController) middleware(mw ...router.MiddlewareFunc) []router.MiddlewareFunc {
	return append([]router.MiddlewareFunc{a.CSRF}, mw...)
}

// DetailResponse is the body of requests that return no record
type DetailResponse struct {
	Detail string `json:"detail"`
	Status string `json:"status,omitempty"`
}

// LoginResponse is returned by a successful login
type LoginResponse struct {
	Detail string     `json:"detail"`
	User   UserRecord `json:"user"`
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules. Format checks are left out, any
// bad input ends as invalid credentials.
func (r LoginRequest) Validate() error {
	return ValidationErrorFromOzzo(validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	))
}

func (a *AccountController) CSRFCookie(ctx router.Context) error {
	return csrf.Handler(csrf.RouteConfig{})(ctx)
}

func (a *AccountController) CheckAuth(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}
	return ctx.JSON(http.StatusOK, NewUserRecord(user))
}

func (a *AccountController) Registration(ctx router.Context) error {
	payload := RegisterUserMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}

	var res *RegisterUserResponse
	payload.OnResponse = func(resp *RegisterUserResponse) {
		res = resp
	}

	if err := a.register.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	record := NewUserRecord(res.User)
	if a.Debug {
		a.Logger.Debug("registered user", "record", print.MaybePrettyJSON(record))
	}

	return ctx.JSON(http.StatusCreated, record)
}

// Activate confirms an account. The uid and token come from the path
// when present, otherwise from the body.
func (a *AccountController) Activate(ctx router.Context) error {
	payload := ActivateAccountMessage{
		UID:   ctx.Param("uid", ""),
		Token: ctx.Param("token", ""),
	}

	if payload.UID == "" && payload.Token == "" {
		if err := ctx.Bind(&payload); err != nil {
			return a.ErrorHandler(ctx, ErrMalformedPayload)
		}
	}

	var res *ActivateAccountResponse
	payload.OnResponse = func(resp *ActivateAccountResponse) {
		res = resp
	}

	if err := a.activate.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	detail := "Account activated successfully."
	if res.Outcome == ActivationAlreadyActive {
		detail = "Account is already Activated."
	}

	return ctx.JSON(http.StatusOK, DetailResponse{
		Detail: detail,
		Status: string(res.Outcome),
	})
}

func (a *AccountController) Login(ctx router.Context) error {
	payload := LoginRequest{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}

	if err := payload.Validate(); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	_, user, err := a.Auther.Login(ctx, payload.Email, payload.Password)
	if err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, LoginResponse{
		Detail: "Successfully logged in.",
		User:   NewUserRecord(user),
	})
}

// Logout always succeeds for a missing or unknown session
func (a *AccountController) Logout(ctx router.Context) error {
	if err := a.Auther.Logout(ctx); err != nil {
		return a.ErrorHandler(ctx, err)
	}
	return ctx.JSON(http.StatusOK, DetailResponse{Detail: "Successfully logged out."})
}

func (a *AccountController) UserShow(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}
	return ctx.JSON(http.StatusOK, NewUserRecord(user))
}

func (a *AccountController) UserUpdate(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := UpdateProfileMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}
	payload.UserID = user.ID

	var res *UpdateProfileResponse
	payload.OnResponse = func(resp *UpdateProfileResponse) {
		res = resp
	}

	if err := a.updateProfile.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, NewUserRecord(res.User))
}

func (a *AccountController) UserDelete(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := DeleteAccountMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}
	payload.UserID = user.ID

	if err := a.deleteAccount.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	if err := a.Auther.Logout(ctx); err != nil {
		a.Logger.Warn("failed to clear session after account deletion", "error", err)
	}

	return ctx.JSON(http.StatusOK, DetailResponse{Detail: "Account deleted."})
}

func (a *AccountController) ChangePassword(ctx router.Context) error {
	user, ok := CurrentUser(ctx)
	if !ok {
		return a.ErrorHandler(ctx, ErrUnauthenticated)
	}

	payload := ChangePasswordMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}
	payload.UserID = user.ID
	if session, ok := CurrentSession(ctx); ok {
		payload.SessionID = session.ID
	}

	if err := a.changePassword.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, DetailResponse{Detail: "New password has been saved."})
}

// ResetPassword answers the same way whether or not the email is known
func (a *AccountController) ResetPassword(ctx router.Context) error {
	payload := InitializePasswordResetMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}

	if err := a.resetInit.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, DetailResponse{Detail: "Password reset e-mail has been sent."})
}

func (a *AccountController) ResetPasswordConfirm(ctx router.Context) error {
	payload := FinalizePasswordResetMessage{}
	if err := ctx.Bind(&payload); err != nil {
		return a.ErrorHandler(ctx, ErrMalformedPayload)
	}

	if uid := ctx.Param("uid", ""); uid != "" {
		payload.UID = uid
	}
	if token := ctx.Param("token", ""); token != "" {
		payload.Token = token
	}

	if err := a.resetFinalize.Execute(ctx.Context(), payload); err != nil {
		return a.ErrorHandler(ctx, err)
	}

	return ctx.JSON(http.StatusOK, DetailResponse{Detail: "Password has been reset with the new password."})
}
