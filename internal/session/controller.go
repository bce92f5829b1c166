package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/negosyoko/nena/internal/api"
	"github.com/negosyoko/nena/internal/tokenstore"
)

const (
	defaultCallTimeout    = 30 * time.Second
	defaultMaxPINFailures = 5
	defaultPINLockout     = 30 * time.Second
	defaultMaxPINLockout  = 15 * time.Minute
	defaultEventBuffer    = 32
)

// Backend is the slice of the API client the controller drives.
// *api.Client implements it.
type Backend interface {
	Register(ctx context.Context, in api.RegisterRequest) (api.MessageResponse, error)
	ResendOTP(ctx context.Context, in api.ResendOTPRequest) (api.MessageResponse, error)
	VerifyOTP(ctx context.Context, in api.VerifyOTPRequest) (api.AuthResult, error)
	CompleteProfile(ctx context.Context, in api.CompleteProfileRequest) (api.AuthResult, error)
	SetPIN(ctx context.Context, in api.SetPINRequest) (api.AuthResult, error)
	LoginWithPIN(ctx context.Context, in api.LoginWithPINRequest) (api.AuthResult, error)
	Logout(ctx context.Context) (api.MessageResponse, error)
}

// Options tunes a Controller. Zero values select defaults.
type Options struct {
	CallTimeout    time.Duration
	MaxPINFailures int
	PINLockout     time.Duration
	MaxPINLockout  time.Duration
	EventBuffer    int
	Logger         *slog.Logger
	Now            func() time.Time
}

// Controller drives the signup/login phase machine.
//
// Every operation returns its error and also publishes one Event, except
// calls rejected with ErrInFlight or ErrClosed and results discarded with
// ErrDiscarded. A failed operation never changes the phase. A result is
// discarded when another operation moved the phase while it was running.
type Controller struct {
	backend Backend
	tokens  tokenstore.Store
	logger  *slog.Logger
	timeout time.Duration
	now     func() time.Time

	baseCtx context.Context
	cancel  context.CancelFunc
	events  chan Event

	mu       sync.Mutex
	phase    Phase
	phone    string
	ticket   string
	gen      uint64
	closed   bool
	inflight map[Op]bool
	guard    pinGuard
}

// New builds a controller in the Unregistered phase. Call Restore to pick
// up a token persisted by an earlier run.
func New(backend Backend, tokens tokenstore.Store, opts Options) *Controller {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.MaxPINFailures <= 0 {
		opts.MaxPINFailures = defaultMaxPINFailures
	}
	if opts.PINLockout <= 0 {
		opts.PINLockout = defaultPINLockout
	}
	if opts.MaxPINLockout < opts.PINLockout {
		opts.MaxPINLockout = defaultMaxPINLockout
		if opts.MaxPINLockout < opts.PINLockout {
			opts.MaxPINLockout = opts.PINLockout
		}
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = defaultEventBuffer
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		backend:  backend,
		tokens:   tokens,
		logger:   opts.Logger,
		timeout:  opts.CallTimeout,
		now:      opts.Now,
		baseCtx:  ctx,
		cancel:   cancel,
		events:   make(chan Event, opts.EventBuffer),
		phase:    Unregistered,
		inflight: make(map[Op]bool),
		guard: pinGuard{
			maxFailures: opts.MaxPINFailures,
			window:      opts.PINLockout,
			maxWindow:   opts.MaxPINLockout,
		},
	}
}

// Events delivers one-time outcome events. The channel is closed by Close.
func (c *Controller) Events() <-chan Event {
	return c.events
}

// Phase returns the current phase.
func (c *Controller) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Session returns a snapshot including the stored token when authenticated.
func (c *Controller) Session(ctx context.Context) (Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Session{PhoneNumber: c.phone, Phase: c.phase}
	if c.phase != Authenticated {
		return s, nil
	}
	token, _, err := c.tokens.Get(ctx)
	if err != nil {
		return Session{}, fmt.Errorf("read token: %w", err)
	}
	s.Token = token
	return s, nil
}

// Close tears the controller down. Calls still in flight are discarded.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.gen++
	c.cancel()
	close(c.events)
}

// StartRegistration sends an OTP to phone and fixes it for the session.
func (c *Controller) StartRegistration(ctx context.Context, phone string) error {
	a, err := c.start(ctx, OpStartRegistration, Unregistered)
	if err != nil {
		return err
	}
	phone, err = normalizePhone(phone)
	if err != nil {
		return c.finish(a, "", err, nil)
	}

	res, err := c.backend.Register(a.ctx, api.RegisterRequest{PhoneNumber: phone})
	return c.finish(a, res.Message, err, func() error {
		// a token left by an earlier run that was never restored
		if err := c.tokens.Delete(a.ctx); err != nil {
			return fmt.Errorf("clear token: %w", err)
		}
		c.phone = phone
		c.ticket = ""
		c.phase = OtpPending
		c.logger.Info("otp requested", slog.String("phone", maskPhone(phone)))
		return nil
	})
}

// ResendOTP asks for a new OTP. The phase stays OtpPending.
func (c *Controller) ResendOTP(ctx context.Context) error {
	a, err := c.start(ctx, OpResendOTP, OtpPending)
	if err != nil {
		return err
	}
	res, err := c.backend.ResendOTP(a.ctx, api.ResendOTPRequest{PhoneNumber: a.phone})
	return c.finish(a, res.Message, err, nil)
}

// VerifyOTP submits code. The next phase follows the server's view of the
// account: a returned access token authenticates immediately, a login flow
// asks for the PIN, otherwise signup continues where the account left off.
func (c *Controller) VerifyOTP(ctx context.Context, code string) error {
	a, err := c.start(ctx, OpVerifyOTP, OtpPending)
	if err != nil {
		return err
	}
	code, err = validateOTP(code)
	if err != nil {
		return c.finish(a, "", err, nil)
	}

	res, err := c.backend.VerifyOTP(a.ctx, api.VerifyOTPRequest{PhoneNumber: a.phone, OTP: code})
	return c.finish(a, res.Message, err, func() error {
		if res.Access != "" {
			return c.authenticateLocked(a.ctx, res.Access)
		}
		c.phase = phaseAfterOTP(res)
		c.ticket = res.SignupTicket
		return nil
	})
}

func phaseAfterOTP(res api.AuthResult) Phase {
	switch {
	case res.IsLoginFlow || res.UserStatus == api.StatusPINSet:
		return PinRequired
	case res.UserStatus == api.StatusProfileComplete:
		return PinNotSet
	case res.UserStatus == api.StatusProfileIncomplete:
		return ProfileIncomplete
	default:
		return OtpVerified
	}
}

// CompleteProfile submits the user's names. middleName may be empty.
func (c *Controller) CompleteProfile(ctx context.Context, firstName, middleName, lastName string) error {
	a, err := c.start(ctx, OpCompleteProfile, OtpVerified, ProfileIncomplete)
	if err != nil {
		return err
	}

	req := api.CompleteProfileRequest{PhoneNumber: a.phone, SignupTicket: a.ticket}
	if req.FirstName, err = validateName("first_name", "First name", firstName, true); err != nil {
		return c.finish(a, "", err, nil)
	}
	if req.MiddleName, err = validateName("middle_name", "Middle name", middleName, false); err != nil {
		return c.finish(a, "", err, nil)
	}
	if req.LastName, err = validateName("last_name", "Last name", lastName, true); err != nil {
		return c.finish(a, "", err, nil)
	}

	res, err := c.backend.CompleteProfile(a.ctx, req)
	return c.finish(a, res.Message, err, func() error {
		if res.UserStatus != api.StatusProfileComplete {
			return fmt.Errorf("%w %q after profile completion", ErrUnexpectedStatus, res.UserStatus)
		}
		c.phase = PinNotSet
		return nil
	})
}

// SetPIN sets the login PIN. The controller never stores the PIN; when the
// server answers with an access token the session is authenticated,
// otherwise the user logs in with the new PIN next.
func (c *Controller) SetPIN(ctx context.Context, pin string) error {
	a, err := c.start(ctx, OpSetPIN, PinNotSet)
	if err != nil {
		return err
	}
	if err := validatePIN(pin); err != nil {
		return c.finish(a, "", err, nil)
	}

	res, err := c.backend.SetPIN(a.ctx, api.SetPINRequest{PhoneNumber: a.phone, SignupTicket: a.ticket, PIN: pin})
	return c.finish(a, res.Message, err, func() error {
		c.ticket = ""
		if res.Access != "" {
			return c.authenticateLocked(a.ctx, res.Access)
		}
		c.phase = PinRequired
		return nil
	})
}

// LoginWithPIN authenticates with phone and PIN. From Unregistered it is the
// returning-user entry point and the phone is fixed only once the server
// accepts the PIN. From PinRequired the phone must match the session's.
// Rejected attempts keep the phase and count towards the local lockout.
func (c *Controller) LoginWithPIN(ctx context.Context, phone, pin string) error {
	a, err := c.start(ctx, OpLoginWithPIN, PinRequired, Unregistered)
	if err != nil {
		return err
	}
	phone, err = normalizePhone(phone)
	if err != nil {
		return c.finish(a, "", err, nil)
	}
	if err := validatePIN(pin); err != nil {
		return c.finish(a, "", err, nil)
	}
	if err := c.checkPINLogin(a, phone); err != nil {
		return c.finish(a, "", err, nil)
	}

	res, err := c.backend.LoginWithPIN(a.ctx, api.LoginWithPINRequest{PhoneNumber: phone, PIN: pin})
	if err != nil {
		var be *api.BackendError
		if errors.As(err, &be) && be.IsClientError() {
			c.recordPINFailure(a)
		}
		return c.finish(a, "", err, nil)
	}
	return c.finish(a, res.Message, nil, func() error {
		if res.Access == "" {
			return ErrMissingToken
		}
		prev := c.phone
		c.phone = phone
		if err := c.authenticateLocked(a.ctx, res.Access); err != nil {
			c.phone = prev
			return err
		}
		c.guard.reset()
		return nil
	})
}

// checkPINLogin refuses a login attempt during lockout or for a phone other
// than the one fixed by the session. It never changes state.
func (c *Controller) checkPINLogin(a *attempt, phone string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.guard.remaining(c.now()); wait > 0 {
		return &LockoutError{RetryAfter: wait}
	}
	if a.phase == PinRequired && a.phone != "" && a.phone != phone {
		return &ValidationError{Field: "phone_number", Reason: "Phone number does not match this session."}
	}
	return nil
}

func (c *Controller) recordPINFailure(a *attempt) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || a.gen != c.gen {
		return
	}
	if window := c.guard.fail(c.now()); window > 0 {
		c.logger.Warn("pin login locked",
			slog.String("phone", maskPhone(c.phone)),
			slog.Duration("window", window),
		)
	}
}

// Logout clears the token and resets the session to Unregistered. The
// server-side logout is best effort. Calls in flight are discarded.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.inflight[OpLogout] {
		c.mu.Unlock()
		return ErrInFlight
	}
	c.inflight[OpLogout] = true
	c.gen++
	wasAuthenticated := c.phase == Authenticated
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, OpLogout)
		c.mu.Unlock()
	}()

	if wasAuthenticated {
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		if _, err := c.backend.Logout(callCtx); err != nil {
			c.logger.Warn("server logout failed", slog.Any("error", err))
		}
		cancel()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrDiscarded
	}
	if err := c.tokens.Delete(ctx); err != nil {
		err = fmt.Errorf("delete token: %w", err)
		c.emitLocked(OpLogout, "", err)
		return err
	}
	c.phase = Unregistered
	c.phone = ""
	c.ticket = ""
	c.logger.Info("session reset")
	c.emitLocked(OpLogout, "Logged out", nil)
	return nil
}

// Restore resumes an authenticated session from a token persisted by a
// previous run. It reports whether a token was found.
func (c *Controller) Restore(ctx context.Context) (bool, error) {
	a, err := c.start(ctx, OpRestore, Unregistered)
	if err != nil {
		return false, err
	}
	_, ok, err := c.tokens.Get(a.ctx)
	if err != nil {
		err = fmt.Errorf("read token: %w", err)
	}
	err = c.finish(a, "", err, func() error {
		if ok {
			c.phase = Authenticated
		}
		return nil
	})
	return ok && err == nil, err
}

// authenticateLocked saves token and enters Authenticated. Callers hold mu.
func (c *Controller) authenticateLocked(ctx context.Context, token string) error {
	if err := c.tokens.Save(ctx, token); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	c.phase = Authenticated
	c.ticket = ""
	c.logger.Info("session authenticated", slog.String("phone", maskPhone(c.phone)))
	return nil
}

type attempt struct {
	op     Op
	gen    uint64
	phase  Phase
	phone  string
	ticket string
	ctx    context.Context
	cancel func()
}

// start admits op if the controller is open, op is not already running and
// the phase is one of allowed.
func (c *Controller) start(ctx context.Context, op Op, allowed ...Phase) (*attempt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}
	if c.inflight[op] {
		c.logger.Debug("duplicate call ignored", slog.String("op", string(op)))
		return nil, ErrInFlight
	}
	if !slices.Contains(allowed, c.phase) {
		err := &StateError{Op: op, Phase: c.phase}
		c.emitLocked(op, "", err)
		return nil, err
	}

	c.inflight[op] = true
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	stop := context.AfterFunc(c.baseCtx, cancel)
	return &attempt{
		op:     op,
		gen:    c.gen,
		phase:  c.phase,
		phone:  c.phone,
		ticket: c.ticket,
		ctx:    callCtx,
		cancel: func() {
			stop()
			cancel()
		},
	}, nil
}

// finish releases a and applies the outcome. apply runs under mu only when
// callErr is nil and the attempt is still current; its error becomes the
// outcome. Attempts outlived by Logout or Close, or admitted in a phase the
// session has since left, are dropped with ErrDiscarded.
func (c *Controller) finish(a *attempt, msg string, callErr error, apply func() error) error {
	defer a.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, a.op)

	if c.closed || a.gen != c.gen || c.phase != a.phase {
		c.logger.Info("discarding stale result",
			slog.String("op", string(a.op)),
			slog.String("admitted", a.phase.String()),
			slog.String("phase", c.phase.String()),
		)
		return ErrDiscarded
	}
	if callErr == nil && apply != nil {
		callErr = apply()
	}
	if callErr != nil {
		c.logger.Debug("operation failed",
			slog.String("op", string(a.op)),
			slog.String("phase", c.phase.String()),
			slog.Any("error", callErr),
		)
	}
	c.emitLocked(a.op, msg, callErr)
	return callErr
}
