package authflow

import (
	"context"
	"errors"
	"strings"
	"sync"

	"placecell.org/internal/apiclient"
	"placecell.org/internal/auth"
	"placecell.org/internal/nav"
)

// State is the controller's position in the sign-up/sign-in flow.
type State int

const (
	Anonymous State = iota
	Registering
	OTPPending
	Authenticated
)

func (s State) String() string {
	switch s {
	case Registering:
		return "registering"
	case OTPPending:
		return "otp_pending"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

const (
	registerFallback = "Registration failed. Please try again."
	verifyFallback   = "Failed to verify OTP. Please try again."
	loginFallback    = "Login failed. Please check your credentials."
)

// Gateway is the slice of the API client the flow needs.
type Gateway interface {
	PostJSON(ctx context.Context, path string, in, out any) error
}

// Session receives the principal once the server accepts the user.
type Session interface {
	Login(ctx context.Context, p auth.Principal, token string) error
	Logout(ctx context.Context) error
	LoggedIn() bool
}

// StepError is a server-side rejection of one step, carrying the message to
// show the user.
type StepError struct {
	Step    string
	Message string
	Err     error
}

func (e *StepError) Error() string { return e.Step + ": " + e.Message }
func (e *StepError) Unwrap() error { return e.Err }

// Controller drives register, OTP verification, login and logout for one
// kind of principal. Nothing is committed to the session until the server
// returns a token.
type Controller struct {
	mu        sync.Mutex
	kind      auth.Kind
	gateway   Gateway
	session   Session
	navigator nav.Navigator

	state   State
	email   string
	prefill string
}

// Option configures a Controller.
type Option func(*Controller)

// WithNavigator routes between the register and verify views.
func WithNavigator(n nav.Navigator) Option {
	return func(c *Controller) {
		if n != nil {
			c.navigator = n
		}
	}
}

// New builds a controller for kind.
func New(kind auth.Kind, gw Gateway, sess Session, opts ...Option) (*Controller, error) {
	if gw == nil || sess == nil {
		return nil, errors.New("authflow: gateway and session are required")
	}
	c := &Controller{kind: kind, gateway: gw, session: sess, navigator: nav.Discard}
	for _, opt := range opts {
		opt(c)
	}
	if sess.LoggedIn() {
		c.state = Authenticated
	}
	return c, nil
}

// Kind returns the population this controller serves.
func (c *Controller) Kind() auth.Kind { return c.kind }

// State returns the current flow state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.signedIn()
	return c.state
}

// PendingEmail is the address awaiting OTP verification. It lives only in memory.
func (c *Controller) PendingEmail() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

// Prefill is the email to show in the register form after Resend.
func (c *Controller) Prefill() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.prefill
}

// Begin opens the registration form.
func (c *Controller) Begin() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signedIn() {
		return ErrAlreadyAuthenticated
	}
	c.state = Registering
	return nil
}

// Register validates form locally and, only if it passes, submits it once.
// On success the email is held for verification and the state becomes
// OTPPending. Validation failures make no network call and change nothing.
func (c *Controller) Register(ctx context.Context, form Form) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signedIn() {
		return "", ErrAlreadyAuthenticated
	}
	if form == nil || form.Kind().Name != c.kind.Name {
		return "", ErrWrongKind
	}
	if err := form.Validate(); err != nil {
		return "", err
	}

	var resp struct {
		Message string `json:"message"`
	}
	if err := c.gateway.PostJSON(ctx, c.kind.Endpoints.Register, form.Payload(), &resp); err != nil {
		return "", &StepError{Step: "register", Message: apiclient.MessageOr(err, registerFallback), Err: err}
	}

	c.email = form.EmailAddress()
	c.prefill = ""
	c.state = OTPPending
	c.navigator.Navigate(c.kind.VerifyRoute, map[string]string{"email": c.email})
	return resp.Message, nil
}

type tokenResponse struct {
	Message      string          `json:"message"`
	AccessToken  string          `json:"access_token"`
	RefreshToken string          `json:"refresh_token"`
	User         auth.UserRecord `json:"user"`
}

// VerifyOTP submits the code for the pending email. Codes that are not six
// digits are rejected without a request. On success the session is signed in.
func (c *Controller) VerifyOTP(ctx context.Context, code string) (auth.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != OTPPending || c.email == "" {
		return auth.Principal{}, ErrNoPendingEmail
	}
	code = strings.TrimSpace(code)
	if !ValidOTP(code) {
		return auth.Principal{}, ErrInvalidOTP
	}

	var resp tokenResponse
	if err := c.gateway.PostJSON(ctx, c.kind.Endpoints.VerifyOTP, map[string]string{
		"email": c.email,
		"otp":   code,
	}, &resp); err != nil {
		return auth.Principal{}, &StepError{Step: "verify", Message: apiclient.MessageOr(err, verifyFallback), Err: err}
	}
	p, err := c.commit(ctx, "verify", resp)
	if err != nil {
		return auth.Principal{}, err
	}
	c.email = ""
	return p, nil
}

// Resend returns to the register form with the email prefilled. The user
// resubmits the form to get a fresh code; there is no resend timer.
func (c *Controller) Resend() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != OTPPending || c.email == "" {
		return "", ErrNoPendingEmail
	}
	c.prefill = c.email
	c.email = ""
	c.state = Registering
	c.navigator.Navigate(c.kind.RegisterRoute, map[string]string{"email": c.prefill})
	return c.prefill, nil
}

// Login signs in an already verified account.
func (c *Controller) Login(ctx context.Context, email, password string) (auth.Principal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.signedIn() {
		return auth.Principal{}, ErrAlreadyAuthenticated
	}
	v := &validator{}
	v.required("email", email)
	v.required("password", password)
	if err := v.err(); err != nil {
		return auth.Principal{}, err
	}

	var resp tokenResponse
	if err := c.gateway.PostJSON(ctx, c.kind.Endpoints.Login, map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	}, &resp); err != nil {
		return auth.Principal{}, &StepError{Step: "login", Message: apiclient.MessageOr(err, loginFallback), Err: err}
	}
	return c.commit(ctx, "login", resp)
}

// Logout ends the session and resets the flow.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	err := c.session.Logout(ctx)
	c.state = Anonymous
	c.email = ""
	c.prefill = ""
	return err
}

// signedIn reconciles the flow with the session, which may have been ended
// elsewhere (for example by a 401 forcing logout).
func (c *Controller) signedIn() bool {
	if c.session.LoggedIn() {
		c.state = Authenticated
		return true
	}
	if c.state == Authenticated {
		c.state = Anonymous
	}
	return false
}

func (c *Controller) commit(ctx context.Context, step string, resp tokenResponse) (auth.Principal, error) {
	token := strings.TrimSpace(resp.AccessToken)
	if token == "" {
		return auth.Principal{}, &StepError{Step: step, Message: "server response did not include an access token"}
	}
	p, err := resp.User.Principal(c.kind)
	if err != nil {
		return auth.Principal{}, &StepError{Step: step, Message: "server response did not include a usable user", Err: err}
	}
	if err := c.session.Login(ctx, p, token); err != nil {
		return auth.Principal{}, err
	}
	c.state = Authenticated
	return p, nil
}
