package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/negosyoko/nena/internal/api"
	"github.com/negosyoko/nena/internal/logging"
	"github.com/negosyoko/nena/internal/tokenstore"
)

type fakeBackend struct {
	mu    sync.Mutex
	calls map[string]int

	register        func(context.Context, api.RegisterRequest) (api.MessageResponse, error)
	resendOTP       func(context.Context, api.ResendOTPRequest) (api.MessageResponse, error)
	verifyOTP       func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error)
	completeProfile func(context.Context, api.CompleteProfileRequest) (api.AuthResult, error)
	setPIN          func(context.Context, api.SetPINRequest) (api.AuthResult, error)
	loginWithPIN    func(context.Context, api.LoginWithPINRequest) (api.AuthResult, error)
	logout          func(context.Context) (api.MessageResponse, error)
}

func (f *fakeBackend) count(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
}

func (f *fakeBackend) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeBackend) Register(ctx context.Context, in api.RegisterRequest) (api.MessageResponse, error) {
	f.count("register")
	if f.register == nil {
		return api.MessageResponse{Message: "OTP sent"}, nil
	}
	return f.register(ctx, in)
}

func (f *fakeBackend) ResendOTP(ctx context.Context, in api.ResendOTPRequest) (api.MessageResponse, error) {
	f.count("resend")
	if f.resendOTP == nil {
		return api.MessageResponse{Message: "OTP resent"}, nil
	}
	return f.resendOTP(ctx, in)
}

func (f *fakeBackend) VerifyOTP(ctx context.Context, in api.VerifyOTPRequest) (api.AuthResult, error) {
	f.count("verify")
	if f.verifyOTP == nil {
		return api.AuthResult{Message: "verified", UserStatus: api.StatusOTPVerified}, nil
	}
	return f.verifyOTP(ctx, in)
}

func (f *fakeBackend) CompleteProfile(ctx context.Context, in api.CompleteProfileRequest) (api.AuthResult, error) {
	f.count("profile")
	if f.completeProfile == nil {
		return api.AuthResult{Message: "profile saved", UserStatus: api.StatusProfileComplete}, nil
	}
	return f.completeProfile(ctx, in)
}

func (f *fakeBackend) SetPIN(ctx context.Context, in api.SetPINRequest) (api.AuthResult, error) {
	f.count("set_pin")
	if f.setPIN == nil {
		return api.AuthResult{Message: "PIN set", UserStatus: api.StatusPINSet, Access: "access-1"}, nil
	}
	return f.setPIN(ctx, in)
}

func (f *fakeBackend) LoginWithPIN(ctx context.Context, in api.LoginWithPINRequest) (api.AuthResult, error) {
	f.count("login")
	if f.loginWithPIN == nil {
		return api.AuthResult{Message: "welcome back", Access: "access-2"}, nil
	}
	return f.loginWithPIN(ctx, in)
}

func (f *fakeBackend) Logout(ctx context.Context) (api.MessageResponse, error) {
	f.count("logout")
	if f.logout == nil {
		return api.MessageResponse{Message: "bye"}, nil
	}
	return f.logout(ctx)
}

func newTestController(t *testing.T, b Backend, opts Options) (*Controller, tokenstore.Store) {
	t.Helper()
	tokens := tokenstore.NewMemory()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	c := New(b, tokens, opts)
	t.Cleanup(c.Close)
	return c, tokens
}

func drain(c *Controller) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func storedToken(t *testing.T, s tokenstore.Store) (string, bool) {
	t.Helper()
	tok, ok, err := s.Get(context.Background())
	if err != nil {
		t.Fatalf("get token: %v", err)
	}
	return tok, ok
}

func reachOtpPending(t *testing.T, c *Controller) {
	t.Helper()
	if err := c.StartRegistration(context.Background(), "+639123456789"); err != nil {
		t.Fatalf("start registration: %v", err)
	}
	drain(c)
}

func TestStartRegistrationRejectsBadPhoneLocally(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newTestController(t, b, Options{})

	for _, phone := range []string{"", "12ab567", "123", "1234567890123456"} {
		err := c.StartRegistration(context.Background(), phone)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("phone %q: expected validation error, got %v", phone, err)
		}
	}
	if b.total() != 0 {
		t.Fatalf("expected no network calls, got %d", b.total())
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}
	events := drain(c)
	if len(events) != 4 {
		t.Fatalf("expected one event per attempt, got %d", len(events))
	}
	for _, ev := range events {
		if ev.Kind != EventError || ev.Message == "" {
			t.Fatalf("expected error event with message, got %+v", ev)
		}
	}
}

func TestStartRegistrationFixesNormalizedPhone(t *testing.T) {
	var sent string
	b := &fakeBackend{register: func(_ context.Context, in api.RegisterRequest) (api.MessageResponse, error) {
		sent = in.PhoneNumber
		return api.MessageResponse{Message: "OTP sent"}, nil
	}}
	c, _ := newTestController(t, b, Options{})

	if err := c.StartRegistration(context.Background(), " +639123456789 "); err != nil {
		t.Fatalf("start registration: %v", err)
	}
	if sent != "639123456789" {
		t.Fatalf("expected normalized phone, got %q", sent)
	}
	s, err := c.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != OtpPending || s.PhoneNumber != "639123456789" {
		t.Fatalf("unexpected session %+v", s)
	}
	events := drain(c)
	if len(events) != 1 || events[0].Kind != EventSuccess || events[0].Message != "OTP sent" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestFullSignupFlow(t *testing.T) {
	b := &fakeBackend{}
	c, tokens := newTestController(t, b, Options{})
	ctx := context.Background()

	reachOtpPending(t, c)
	if err := c.VerifyOTP(ctx, "123456"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Phase() != OtpVerified {
		t.Fatalf("expected OtpVerified, got %s", c.Phase())
	}
	if err := c.CompleteProfile(ctx, "Maria", "", "Santos"); err != nil {
		t.Fatalf("complete profile: %v", err)
	}
	if c.Phase() != PinNotSet {
		t.Fatalf("expected PinNotSet, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("token must not exist before authentication")
	}
	if err := c.SetPIN(ctx, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if c.Phase() != Authenticated {
		t.Fatalf("expected Authenticated, got %s", c.Phase())
	}
	if tok, ok := storedToken(t, tokens); !ok || tok != "access-1" {
		t.Fatalf("expected stored token, got %q %v", tok, ok)
	}

	s, err := c.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Token != "access-1" {
		t.Fatalf("expected session token, got %q", s.Token)
	}
}

func TestSignupTicketIsForwarded(t *testing.T) {
	var profileTicket, pinTicket string
	b := &fakeBackend{
		verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
			return api.AuthResult{UserStatus: api.StatusOTPVerified, SignupTicket: "ticket-1"}, nil
		},
		completeProfile: func(_ context.Context, in api.CompleteProfileRequest) (api.AuthResult, error) {
			profileTicket = in.SignupTicket
			return api.AuthResult{UserStatus: api.StatusProfileComplete}, nil
		},
		setPIN: func(_ context.Context, in api.SetPINRequest) (api.AuthResult, error) {
			pinTicket = in.SignupTicket
			return api.AuthResult{UserStatus: api.StatusPINSet, Access: "access-1"}, nil
		},
	}
	c, _ := newTestController(t, b, Options{})
	ctx := context.Background()
	reachOtpPending(t, c)

	if err := c.VerifyOTP(ctx, "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := c.CompleteProfile(ctx, "Maria", "", "Santos"); err != nil {
		t.Fatalf("complete profile: %v", err)
	}
	if err := c.SetPIN(ctx, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if profileTicket != "ticket-1" || pinTicket != "ticket-1" {
		t.Fatalf("ticket not forwarded: profile=%q pin=%q", profileTicket, pinTicket)
	}
}

func TestVerifyOTPNextPhase(t *testing.T) {
	cases := []struct {
		name string
		res  api.AuthResult
		want Phase
	}{
		{"access token", api.AuthResult{UserStatus: api.StatusProfileComplete, Access: "tok"}, Authenticated},
		{"login flow", api.AuthResult{IsLoginFlow: true}, PinRequired},
		{"pin already set", api.AuthResult{UserStatus: api.StatusPINSet}, PinRequired},
		{"profile complete", api.AuthResult{UserStatus: api.StatusProfileComplete}, PinNotSet},
		{"profile incomplete", api.AuthResult{UserStatus: api.StatusProfileIncomplete}, ProfileIncomplete},
		{"otp verified", api.AuthResult{UserStatus: api.StatusOTPVerified}, OtpVerified},
		{"no status", api.AuthResult{Message: "ok"}, OtpVerified},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := &fakeBackend{verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
				return tc.res, nil
			}}
			c, tokens := newTestController(t, b, Options{})
			reachOtpPending(t, c)

			if err := c.VerifyOTP(context.Background(), "1234"); err != nil {
				t.Fatalf("verify: %v", err)
			}
			if c.Phase() != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, c.Phase())
			}
			_, ok := storedToken(t, tokens)
			if ok != (tc.want == Authenticated) {
				t.Fatalf("token presence %v does not match phase %s", ok, c.Phase())
			}
		})
	}
}

func TestVerifyOTPBackendErrorKeepsPhase(t *testing.T) {
	b := &fakeBackend{verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
		return api.AuthResult{}, &api.BackendError{Status: 400, Detail: "invalid otp"}
	}}
	c, _ := newTestController(t, b, Options{})
	reachOtpPending(t, c)

	err := c.VerifyOTP(context.Background(), "0000")
	var be *api.BackendError
	if !errors.As(err, &be) {
		t.Fatalf("expected backend error, got %v", err)
	}
	if c.Phase() != OtpPending {
		t.Fatalf("expected OtpPending, got %s", c.Phase())
	}
	events := drain(c)
	if len(events) != 1 || events[0].Message != "invalid otp" || events[0].Phase != OtpPending {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestResendOTPKeepsPhase(t *testing.T) {
	var phone string
	b := &fakeBackend{resendOTP: func(_ context.Context, in api.ResendOTPRequest) (api.MessageResponse, error) {
		phone = in.PhoneNumber
		return api.MessageResponse{Message: "OTP resent"}, nil
	}}
	c, _ := newTestController(t, b, Options{})
	reachOtpPending(t, c)

	if err := c.ResendOTP(context.Background()); err != nil {
		t.Fatalf("resend: %v", err)
	}
	if phone != "639123456789" {
		t.Fatalf("resend used phone %q", phone)
	}
	if c.Phase() != OtpPending {
		t.Fatalf("expected OtpPending, got %s", c.Phase())
	}
	if events := drain(c); len(events) != 1 || events[0].Message != "OTP resent" {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestOperationsOutsideTheirPhaseAreRejected(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newTestController(t, b, Options{})
	ctx := context.Background()

	checks := map[Op]error{
		OpVerifyOTP:       c.VerifyOTP(ctx, "1234"),
		OpResendOTP:       c.ResendOTP(ctx),
		OpCompleteProfile: c.CompleteProfile(ctx, "A", "", "B"),
		OpSetPIN:          c.SetPIN(ctx, "1234"),
	}
	for op, err := range checks {
		var se *StateError
		if !errors.As(err, &se) || se.Op != op || se.Phase != Unregistered {
			t.Fatalf("%s: expected state error, got %v", op, err)
		}
	}
	if b.total() != 0 {
		t.Fatalf("expected no network calls, got %d", b.total())
	}
	if len(drain(c)) != len(checks) {
		t.Fatalf("expected one error event per rejected call")
	}
}

func TestCompleteProfileValidation(t *testing.T) {
	b := &fakeBackend{verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
		return api.AuthResult{UserStatus: api.StatusProfileIncomplete}, nil
	}}
	c, _ := newTestController(t, b, Options{})
	reachOtpPending(t, c)
	if err := c.VerifyOTP(context.Background(), "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	long := ""
	for i := 0; i < 65; i++ {
		long += "a"
	}
	for _, names := range [][3]string{{"", "", "Santos"}, {"Maria", "", "  "}, {long, "", "Santos"}, {"Maria", long, "Santos"}} {
		err := c.CompleteProfile(context.Background(), names[0], names[1], names[2])
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("names %q: expected validation error, got %v", names, err)
		}
	}
	if b.Calls("profile") != 0 {
		t.Fatalf("expected no profile calls")
	}
	if c.Phase() != ProfileIncomplete {
		t.Fatalf("expected ProfileIncomplete, got %s", c.Phase())
	}
}

func TestCompleteProfileRequiresProfileComplete(t *testing.T) {
	b := &fakeBackend{completeProfile: func(context.Context, api.CompleteProfileRequest) (api.AuthResult, error) {
		return api.AuthResult{UserStatus: api.StatusProfileIncomplete}, nil
	}}
	c, _ := newTestController(t, b, Options{})
	reachOtpPending(t, c)
	if err := c.VerifyOTP(context.Background(), "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	drain(c)

	err := c.CompleteProfile(context.Background(), "Maria", "Cruz", "Santos")
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Fatalf("expected unexpected status, got %v", err)
	}
	if c.Phase() != OtpVerified {
		t.Fatalf("expected OtpVerified, got %s", c.Phase())
	}
	events := drain(c)
	if len(events) != 1 || events[0].Kind != EventError {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestSetPINWithoutTokenMovesToPinRequired(t *testing.T) {
	b := &fakeBackend{
		verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
			return api.AuthResult{UserStatus: api.StatusProfileComplete}, nil
		},
		setPIN: func(_ context.Context, in api.SetPINRequest) (api.AuthResult, error) {
			if in.PhoneNumber != "639123456789" {
				t.Errorf("set pin without phone: %+v", in)
			}
			return api.AuthResult{Message: "PIN set", UserStatus: api.StatusPINSet}, nil
		},
	}
	c, tokens := newTestController(t, b, Options{})
	reachOtpPending(t, c)
	if err := c.VerifyOTP(context.Background(), "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}

	if err := c.SetPIN(context.Background(), "12ab"); err == nil {
		t.Fatalf("expected validation error")
	}
	if err := c.SetPIN(context.Background(), "4321"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if c.Phase() != PinRequired {
		t.Fatalf("expected PinRequired, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("token must not be stored without access")
	}

	if err := c.LoginWithPIN(context.Background(), "639123456789", "4321"); err != nil {
		t.Fatalf("login: %v", err)
	}
	if tok, ok := storedToken(t, tokens); !ok || tok != "access-2" {
		t.Fatalf("expected stored token after login, got %q %v", tok, ok)
	}
}

func TestLoginFromUnregistered(t *testing.T) {
	b := &fakeBackend{}
	c, tokens := newTestController(t, b, Options{})

	if err := c.LoginWithPIN(context.Background(), "+639123456789", "1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	s, err := c.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != Authenticated || s.PhoneNumber != "639123456789" || s.Token != "access-2" {
		t.Fatalf("unexpected session %+v", s)
	}
	if tok, _ := storedToken(t, tokens); tok != "access-2" {
		t.Fatalf("unexpected stored token %q", tok)
	}
}

func TestLoginPhoneMustMatchSession(t *testing.T) {
	b := &fakeBackend{verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
		return api.AuthResult{IsLoginFlow: true}, nil
	}}
	c, _ := newTestController(t, b, Options{})
	reachOtpPending(t, c)
	if err := c.VerifyOTP(context.Background(), "1234"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if c.Phase() != PinRequired {
		t.Fatalf("expected PinRequired, got %s", c.Phase())
	}

	err := c.LoginWithPIN(context.Background(), "639000000000", "1234")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "phone_number" {
		t.Fatalf("expected phone mismatch, got %v", err)
	}
	if b.Calls("login") != 0 {
		t.Fatalf("mismatched phone must not reach the backend, got %d calls", b.Calls("login"))
	}
	if c.Phase() != PinRequired {
		t.Fatalf("expected PinRequired, got %s", c.Phase())
	}
	if err := c.LoginWithPIN(context.Background(), "639123456789", "1234"); err != nil {
		t.Fatalf("login with session phone: %v", err)
	}
}

func TestFailedLoginFromUnregisteredKeepsPhase(t *testing.T) {
	var phones []string
	b := &fakeBackend{loginWithPIN: func(_ context.Context, in api.LoginWithPINRequest) (api.AuthResult, error) {
		phones = append(phones, in.PhoneNumber)
		if len(phones) == 1 {
			return api.AuthResult{}, &api.NetworkError{Op: "login_with_pin", Err: errors.New("connection refused")}
		}
		return api.AuthResult{}, &api.BackendError{Status: 401, Detail: "invalid credentials"}
	}}
	c, _ := newTestController(t, b, Options{})
	ctx := context.Background()

	if err := c.LoginWithPIN(ctx, "639123456789", "1234"); err == nil {
		t.Fatalf("expected network failure")
	}
	s, err := c.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != Unregistered || s.PhoneNumber != "" {
		t.Fatalf("failed login changed the session: %+v", s)
	}

	if err := c.LoginWithPIN(ctx, "639000000000", "1234"); err == nil {
		t.Fatalf("expected rejected login")
	}
	if len(phones) != 2 || phones[1] != "639000000000" {
		t.Fatalf("corrected phone must reach the backend, got %v", phones)
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}

	if err := c.StartRegistration(ctx, "639000000000"); err != nil {
		t.Fatalf("registration after failed login: %v", err)
	}
	if c.Phase() != OtpPending {
		t.Fatalf("expected OtpPending, got %s", c.Phase())
	}
}

func TestLoginWithoutAccessTokenFails(t *testing.T) {
	b := &fakeBackend{loginWithPIN: func(context.Context, api.LoginWithPINRequest) (api.AuthResult, error) {
		return api.AuthResult{Message: "ok"}, nil
	}}
	c, tokens := newTestController(t, b, Options{})

	err := c.LoginWithPIN(context.Background(), "639123456789", "1234")
	if !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected missing token, got %v", err)
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("no token expected")
	}
}

func TestPINLockout(t *testing.T) {
	now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	b := &fakeBackend{loginWithPIN: func(context.Context, api.LoginWithPINRequest) (api.AuthResult, error) {
		return api.AuthResult{}, &api.BackendError{Status: 401, Detail: "invalid credentials"}
	}}
	c, _ := newTestController(t, b, Options{
		MaxPINFailures: 3,
		PINLockout:     30 * time.Second,
		MaxPINLockout:  time.Minute,
		Now:            func() time.Time { return now },
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := c.LoginWithPIN(ctx, "639123456789", "1234"); errors.Is(err, ErrPINLocked) {
			t.Fatalf("attempt %d locked too early", i+1)
		}
	}
	err := c.LoginWithPIN(ctx, "639123456789", "1234")
	var le *LockoutError
	if !errors.As(err, &le) || le.RetryAfter != 30*time.Second {
		t.Fatalf("expected 30s lockout, got %v", err)
	}
	if b.Calls("login") != 3 {
		t.Fatalf("locked attempt must not reach the backend, got %d calls", b.Calls("login"))
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}

	now = now.Add(31 * time.Second)
	for i := 0; i < 3; i++ {
		c.LoginWithPIN(ctx, "639123456789", "1234")
	}
	err = c.LoginWithPIN(ctx, "639123456789", "1234")
	if !errors.As(err, &le) || le.RetryAfter != time.Minute {
		t.Fatalf("expected doubled lockout, got %v", err)
	}

	now = now.Add(2 * time.Minute)
	for i := 0; i < 3; i++ {
		c.LoginWithPIN(ctx, "639123456789", "1234")
	}
	err = c.LoginWithPIN(ctx, "639123456789", "1234")
	if !errors.As(err, &le) || le.RetryAfter != time.Minute {
		t.Fatalf("expected lockout capped at one minute, got %v", err)
	}
}

func TestNetworkErrorsDoNotCountTowardsLockout(t *testing.T) {
	b := &fakeBackend{loginWithPIN: func(context.Context, api.LoginWithPINRequest) (api.AuthResult, error) {
		return api.AuthResult{}, &api.NetworkError{Op: "login_with_pin", Err: errors.New("connection refused")}
	}}
	c, _ := newTestController(t, b, Options{MaxPINFailures: 2})

	for i := 0; i < 5; i++ {
		err := c.LoginWithPIN(context.Background(), "639123456789", "1234")
		if errors.Is(err, ErrPINLocked) {
			t.Fatalf("network failures must not lock the PIN")
		}
	}
	if b.Calls("login") != 5 {
		t.Fatalf("expected 5 login calls, got %d", b.Calls("login"))
	}
}

func TestDuplicateCallWhileInFlight(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{register: func(context.Context, api.RegisterRequest) (api.MessageResponse, error) {
		close(entered)
		<-release
		return api.MessageResponse{Message: "OTP sent"}, nil
	}}
	c, _ := newTestController(t, b, Options{})

	done := make(chan error, 1)
	go func() { done <- c.StartRegistration(context.Background(), "639123456789") }()
	<-entered

	if err := c.StartRegistration(context.Background(), "639123456789"); !errors.Is(err, ErrInFlight) {
		t.Fatalf("expected in-flight rejection, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("start registration: %v", err)
	}
	if b.Calls("register") != 1 {
		t.Fatalf("expected one register call, got %d", b.Calls("register"))
	}
	if events := drain(c); len(events) != 1 {
		t.Fatalf("expected a single event, got %+v", events)
	}
}

func TestCloseDiscardsInFlightResult(t *testing.T) {
	entered := make(chan struct{})
	b := &fakeBackend{verifyOTP: func(ctx context.Context, _ api.VerifyOTPRequest) (api.AuthResult, error) {
		close(entered)
		<-ctx.Done()
		return api.AuthResult{}, ctx.Err()
	}}
	c, tokens := newTestController(t, b, Options{})
	reachOtpPending(t, c)

	done := make(chan error, 1)
	go func() { done <- c.VerifyOTP(context.Background(), "1234") }()
	<-entered
	c.Close()

	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded result, got %v", err)
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("no token expected after teardown")
	}
	if _, ok := <-c.Events(); ok {
		t.Fatalf("expected closed event channel")
	}
	if err := c.StartRegistration(context.Background(), "639123456789"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected closed controller, got %v", err)
	}
}

func TestLogoutDiscardsInFlightLogin(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{loginWithPIN: func(context.Context, api.LoginWithPINRequest) (api.AuthResult, error) {
		close(entered)
		<-release
		return api.AuthResult{Access: "late"}, nil
	}}
	c, tokens := newTestController(t, b, Options{})

	done := make(chan error, 1)
	go func() { done <- c.LoginWithPIN(context.Background(), "639123456789", "1234") }()
	<-entered

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded login, got %v", err)
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("late login must not store a token")
	}
	if b.Calls("logout") != 0 {
		t.Fatalf("server logout is only sent for authenticated sessions")
	}
}

func TestRegistrationDroppedWhenLoginWinsTheRace(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{register: func(context.Context, api.RegisterRequest) (api.MessageResponse, error) {
		close(entered)
		<-release
		return api.MessageResponse{Message: "OTP sent"}, nil
	}}
	c, tokens := newTestController(t, b, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- c.StartRegistration(ctx, "639000000000") }()
	<-entered

	if err := c.LoginWithPIN(ctx, "639123456789", "1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded registration, got %v", err)
	}

	s, err := c.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != Authenticated || s.PhoneNumber != "639123456789" || s.Token != "access-2" {
		t.Fatalf("unexpected session %+v", s)
	}
	if tok, ok := storedToken(t, tokens); !ok || tok != "access-2" {
		t.Fatalf("expected stored token, got %q %v", tok, ok)
	}
	events := drain(c)
	if len(events) != 1 || events[0].Op != OpLoginWithPIN {
		t.Fatalf("expected only the login event, got %+v", events)
	}
}

func TestLogoutDiscardsInFlightVerifyOTP(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	b := &fakeBackend{verifyOTP: func(context.Context, api.VerifyOTPRequest) (api.AuthResult, error) {
		close(entered)
		<-release
		return api.AuthResult{UserStatus: api.StatusPINSet, Access: "late"}, nil
	}}
	c, tokens := newTestController(t, b, Options{})
	reachOtpPending(t, c)

	done := make(chan error, 1)
	go func() { done <- c.VerifyOTP(context.Background(), "1234") }()
	<-entered

	if err := c.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	close(release)
	if err := <-done; !errors.Is(err, ErrDiscarded) {
		t.Fatalf("expected discarded verify, got %v", err)
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("late verify must not store a token")
	}
	events := drain(c)
	if len(events) != 1 || events[0].Op != OpLogout {
		t.Fatalf("expected only the logout event, got %+v", events)
	}
}

func TestLogoutClearsSession(t *testing.T) {
	b := &fakeBackend{logout: func(context.Context) (api.MessageResponse, error) {
		return api.MessageResponse{}, &api.NetworkError{Op: "logout", Err: errors.New("offline")}
	}}
	c, tokens := newTestController(t, b, Options{})
	ctx := context.Background()

	if err := c.LoginWithPIN(ctx, "639123456789", "1234"); err != nil {
		t.Fatalf("login: %v", err)
	}
	drain(c)

	if err := c.Logout(ctx); err != nil {
		t.Fatalf("logout must succeed when the server is unreachable: %v", err)
	}
	s, err := c.Session(ctx)
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != Unregistered || s.PhoneNumber != "" || s.Token != "" {
		t.Fatalf("unexpected session after logout %+v", s)
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("token must be deleted")
	}
	if b.Calls("logout") != 1 {
		t.Fatalf("expected a best-effort server logout")
	}
	events := drain(c)
	if len(events) != 1 || events[0].Op != OpLogout || events[0].Kind != EventSuccess {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestRestore(t *testing.T) {
	tokens := tokenstore.NewMemory()
	if err := tokens.Save(context.Background(), "persisted"); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := New(&fakeBackend{}, tokens, Options{Logger: logging.Discard()})
	defer c.Close()

	ok, err := c.Restore(context.Background())
	if err != nil || !ok {
		t.Fatalf("restore: %v %v", ok, err)
	}
	s, err := c.Session(context.Background())
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if s.Phase != Authenticated || s.Token != "persisted" {
		t.Fatalf("unexpected session %+v", s)
	}
	if _, err := c.Restore(context.Background()); err == nil {
		t.Fatalf("restore is only allowed while Unregistered")
	}

	empty, _ := newTestController(t, &fakeBackend{}, Options{})
	ok, err = empty.Restore(context.Background())
	if err != nil || ok {
		t.Fatalf("restore without token: %v %v", ok, err)
	}
	if empty.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", empty.Phase())
	}
}

func TestStartRegistrationClearsUnrestoredToken(t *testing.T) {
	tokens := tokenstore.NewMemory()
	if err := tokens.Save(context.Background(), "stale"); err != nil {
		t.Fatalf("save: %v", err)
	}
	c := New(&fakeBackend{}, tokens, Options{Logger: logging.Discard()})
	defer c.Close()

	if err := c.StartRegistration(context.Background(), "639123456789"); err != nil {
		t.Fatalf("start registration: %v", err)
	}
	if c.Phase() != OtpPending {
		t.Fatalf("expected OtpPending, got %s", c.Phase())
	}
	if _, ok := storedToken(t, tokens); ok {
		t.Fatalf("token must not outlive the phase change")
	}
}

func TestCallTimeout(t *testing.T) {
	b := &fakeBackend{register: func(ctx context.Context, _ api.RegisterRequest) (api.MessageResponse, error) {
		<-ctx.Done()
		return api.MessageResponse{}, ctx.Err()
	}}
	c, _ := newTestController(t, b, Options{CallTimeout: 20 * time.Millisecond})

	err := c.StartRegistration(context.Background(), "639123456789")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
	if c.Phase() != Unregistered {
		t.Fatalf("expected Unregistered, got %s", c.Phase())
	}
	events := drain(c)
	if len(events) != 1 || events[0].Message != "The request timed out. Please try again." {
		t.Fatalf("unexpected events %+v", events)
	}
}

func TestScenarioAgainstHTTPBackend(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/register/":
			w.Write([]byte(`{"message":"OTP sent"}`))
		case "/verify-otp/":
			var in api.VerifyOTPRequest
			json.NewDecoder(r.Body).Decode(&in)
			if in.OTP != "246810" {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"detail":"invalid otp"}`))
				return
			}
			w.Write([]byte(`{"message":"verified","user_status":"PROFILE_COMPLETE","access":"tok"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokens := tokenstore.NewMemory()
	client, err := api.New(srv.URL, tokens, api.Options{Logger: logging.Discard()})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	c := New(client, tokens, Options{Logger: logging.Discard()})
	defer c.Close()
	ctx := context.Background()

	if err := c.StartRegistration(ctx, "9123456789"); err != nil {
		t.Fatalf("start registration: %v", err)
	}
	if ev := <-c.Events(); ev.Message != "OTP sent" || ev.Phase != OtpPending {
		t.Fatalf("unexpected event %+v", ev)
	}

	if err := c.VerifyOTP(ctx, "111111"); err == nil {
		t.Fatalf("expected wrong otp to fail")
	}
	if ev := <-c.Events(); ev.Kind != EventError || ev.Message != "invalid otp" || ev.Phase != OtpPending {
		t.Fatalf("unexpected event %+v", ev)
	}

	if err := c.VerifyOTP(ctx, "246810"); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ev := <-c.Events(); ev.Kind != EventSuccess || ev.Phase != Authenticated {
		t.Fatalf("unexpected event %+v", ev)
	}
	if tok, ok := storedToken(t, tokens); !ok || tok != "tok" {
		t.Fatalf("expected stored token, got %q %v", tok, ok)
	}
}

func TestMessage(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&ValidationError{Field: "pin", Reason: "PIN must be 4 to 6 digits."}, "PIN must be 4 to 6 digits."},
		{&api.BackendError{Status: 400, Detail: "invalid otp"}, "invalid otp"},
		{&LockoutError{RetryAfter: 30 * time.Second}, "Too many incorrect PIN attempts. Try again in 30s."},
		{&api.NetworkError{Op: "register", Err: errors.New("dial tcp")}, "Unable to reach the server. Check your connection and try again."},
		{api.ErrEmptyResponse, "The server returned an empty response."},
		{ErrMissingToken, "The server returned an unexpected response."},
	}
	for _, tc := range cases {
		if got := Message(tc.err); got != tc.want {
			t.Fatalf("Message(%v) = %q, want %q", tc.err, got, tc.want)
		}
	}
}
