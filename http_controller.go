package coachgate

import (
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"
	"github.com/goliatone/go-router"
	"github.com/goliatone/go-router/flash"
)

// AuthControllerRoutes holds the paths the controller mounts.
type AuthControllerRoutes struct {
	Login   string
	Logout  string
	Signup  string
	Landing string
}

// AuthController exposes the sign-in, sign-out, and sign-up actions over the
// identity gateway and the signup saga. Failures redirect with a short flash
// message; diagnostic detail stays in logs.
type AuthController struct {
	Logger       Logger
	Gateway      IdentityGateway
	Signup       *SignupHandler
	Spec         CookieSpec
	Routes       *AuthControllerRoutes
	ErrorHandler router.ErrorHandler
}

type AuthControllerOption func(*AuthController) *AuthController

func NewAuthController(opts ...AuthControllerOption) *AuthController {
	c := &AuthController{
		Logger:       defLogger{},
		Spec:         DefaultCookieSpec(),
		ErrorHandler: defaultErrHandler,
		Routes: &AuthControllerRoutes{
			Login:   "/login",
			Logout:  "/logout",
			Signup:  "/signup",
			Landing: "/dashboard",
		},
	}

	for _, opt := range opts {
		c = opt(c)
	}

	if c.Gateway == nil {
		panic("Missing IdentityGateway in auth controller...")
	}

	if c.Signup == nil {
		panic("Missing SignupHandler in auth controller...")
	}

	return c
}

func WithControllerGateway(gateway IdentityGateway) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Gateway = gateway
		return c
	}
}

func WithControllerSignup(handler *SignupHandler) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Signup = handler
		return c
	}
}

func WithControllerSpec(spec CookieSpec) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		c.Spec = spec
		return c
	}
}

func WithControllerLogger(logger Logger) AuthControllerOption {
	return func(c *AuthController) *AuthController {
		if logger != nil {
			c.Logger = logger
		}
		return c
	}
}

// RegisterAuthRoutes mounts the controller actions.
func RegisterAuthRoutes[T any](app router.Router[T], opts ...AuthControllerOption) {
	controller := NewAuthController(opts...)

	app.Post(controller.Routes.Login, controller.LoginPost).SetName("sign-in.post")
	app.Get(controller.Routes.Logout, controller.LogOut).SetName("sign-out.get")
	app.Post(controller.Routes.Signup, controller.SignupPost).SetName("sign-up.post")
}

// LoginRequest payload
type LoginRequest struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

func (a *AuthController) LoginPost(ctx router.Context) error {
	payload := new(LoginRequest)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("login parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Error parsing body",
		}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}

	if err := payload.Validate(); err != nil {
		a.Logger.Error("login validate payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Invalid credentials payload",
		}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}

	session, mutations, err := a.Gateway.Authenticate(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		a.Logger.Error("login authenticate: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Authentication Error",
		}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
	}

	mutations.ApplyTo(ctx)
	a.Logger.Info("login ok", "user_id", session.UserID)

	return ctx.Redirect(a.Routes.Landing, fiber.StatusSeeOther)
}

func (a *AuthController) LogOut(ctx router.Context) error {
	mutations := a.Spec.ClearPair(nil)

	if revoker, ok := a.Gateway.(SessionRevoker); ok {
		cookies := a.Spec.ReadPair(ctx)
		if revoked, err := revoker.RevokeSession(ctx.Context(), cookies); err != nil {
			a.Logger.Warn("logout revoke: ", "error", err)
		} else if len(revoked) > 0 {
			mutations = revoked
		}
	}

	mutations.ApplyTo(ctx)
	return ctx.Redirect("/", fiber.StatusTemporaryRedirect)
}

func (a *AuthController) SignupPost(ctx router.Context) error {
	payload := new(SignupMessage)

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Error("signup parse payload: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Error parsing body",
		}).Redirect(a.Routes.Signup, fiber.StatusSeeOther)
	}

	identity, err := a.Signup.Execute(ctx.Context(), *payload)
	if err != nil {
		if IsCompensationFailure(err) {
			// the saga already emitted the reconciliation signal;
			// keep the user-facing message generic
			a.Logger.Error("signup compensation failure", "error", err)
			return flash.WithError(ctx, router.ViewContext{
				"system_message": "We could not complete your registration. Please contact support.",
			}).Redirect(a.Routes.Signup, fiber.StatusSeeOther)
		}

		a.Logger.Error("signup error: ", "error", err)
		return flash.WithError(ctx, router.ViewContext{
			"system_message": "Error creating your account",
		}).Redirect(a.Routes.Signup, fiber.StatusSeeOther)
	}

	a.Logger.Info("signup ok", "identity_id", identity.ID)

	return flash.WithSuccess(ctx, router.ViewContext{
		"system_message": "Successful registration",
	}).Redirect(a.Routes.Login, fiber.StatusSeeOther)
}
