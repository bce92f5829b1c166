package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/negosyoko/nena/internal/logging"
	"github.com/negosyoko/nena/internal/notification"
)

func newTestService(t *testing.T) (*Service, *notification.Recorder) {
	t.Helper()
	rec := &notification.Recorder{}
	svc := NewService(NewMemoryRepository(), NewMemoryOTPStore(), rec, Options{FixedOTP: "123456", Logger: logging.Discard()})
	return svc, rec
}

func TestSignupLifecycle(t *testing.T) {
	svc, rec := newTestService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, "+639123456789")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Phone != "639123456789" || user.Status != StatusRegistered {
		t.Fatalf("unexpected user %+v", user)
	}
	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Kind != notification.KindOTP || !strings.Contains(msgs[0].Body, "123456") {
		t.Fatalf("expected otp notification, got %+v", msgs)
	}

	if _, _, err := svc.VerifyOTP(ctx, user.Phone, "000000"); !errors.Is(err, ErrInvalidOTP) {
		t.Fatalf("expected invalid otp, got %v", err)
	}
	user, ticket, err := svc.VerifyOTP(ctx, user.Phone, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Status != StatusOTPVerified || ticket == "" {
		t.Fatalf("expected OTP_VERIFIED with a ticket, got %s %q", user.Status, ticket)
	}
	if _, _, err := svc.VerifyOTP(ctx, user.Phone, "123456"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("otp must be single use, got %v", err)
	}

	if _, err := svc.SetPIN(ctx, user.Phone, ticket, "1234"); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("pin before profile must fail, got %v", err)
	}
	user, err = svc.CompleteProfile(ctx, user.Phone, ticket, Profile{FirstName: " Maria ", LastName: "Santos"})
	if err != nil {
		t.Fatalf("complete profile: %v", err)
	}
	if user.Status != StatusProfileComplete || user.FirstName != "Maria" {
		t.Fatalf("unexpected user %+v", user)
	}

	user, err = svc.SetPIN(ctx, user.Phone, ticket, "1234")
	if err != nil {
		t.Fatalf("set pin: %v", err)
	}
	if user.Status != StatusPINSet || len(user.PINHash) == 0 {
		t.Fatalf("unexpected user %+v", user)
	}
	if _, err := svc.SetPIN(ctx, user.Phone, ticket, "9999"); !errors.Is(err, ErrSignupExpired) {
		t.Fatalf("ticket must be consumed by set pin, got %v", err)
	}

	authed, err := svc.Authenticate(ctx, "639123456789", "1234")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if authed.LastLogin == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if _, err := svc.Authenticate(ctx, "639123456789", "9999"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
}

func TestReturningUserVerifyKeepsStatus(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	phone := "639170000001"

	svc.Register(ctx, phone)
	_, ticket, _ := svc.VerifyOTP(ctx, phone, "123456")
	svc.CompleteProfile(ctx, phone, ticket, Profile{FirstName: "Jose", LastName: "Rizal"})
	if _, err := svc.SetPIN(ctx, phone, ticket, "5678"); err != nil {
		t.Fatalf("set pin: %v", err)
	}

	if _, err := svc.Register(ctx, phone); err != nil {
		t.Fatalf("second register: %v", err)
	}
	user, ticket, err := svc.VerifyOTP(ctx, phone, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if user.Status != StatusPINSet {
		t.Fatalf("expected PIN_SET for returning user, got %s", user.Status)
	}
	if ticket != "" {
		t.Fatalf("returning users log in with their PIN, got ticket %q", ticket)
	}
}

func TestValidationErrorsCarryFields(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "12ab")
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "phone_number" {
		t.Fatalf("expected phone validation error, got %v", err)
	}
	if got := ve.FieldErrors()["phone_number"]; len(got) != 1 {
		t.Fatalf("unexpected field errors %v", got)
	}

	svc.Register(ctx, "639123456789")
	_, ticket, _ := svc.VerifyOTP(ctx, "639123456789", "123456")
	_, err = svc.CompleteProfile(ctx, "639123456789", ticket, Profile{FirstName: strings.Repeat("x", 65), LastName: "Cruz"})
	if !errors.As(err, &ve) || ve.Field != "first_name" {
		t.Fatalf("expected first_name validation error, got %v", err)
	}
}

func TestSignupStepsRequireTicket(t *testing.T) {
	tickets := NewMemoryOTPStore().(*memoryOTPStore)
	now := time.Now()
	tickets.now = func() time.Time { return now }
	svc := NewService(NewMemoryRepository(), NewMemoryOTPStore(), &notification.Recorder{}, Options{
		FixedOTP:  "123456",
		SignupTTL: 10 * time.Minute,
		Tickets:   tickets,
		Logger:    logging.Discard(),
	})
	ctx := context.Background()
	phone := "639170000002"

	if _, err := svc.Register(ctx, phone); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, ticket, err := svc.VerifyOTP(ctx, phone, "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}

	profile := Profile{FirstName: "Ana", LastName: "Lopez"}
	for _, bad := range []string{"", "not-the-ticket"} {
		if _, err := svc.CompleteProfile(ctx, phone, bad, profile); !errors.Is(err, ErrSignupExpired) {
			t.Fatalf("ticket %q: expected signup expired, got %v", bad, err)
		}
	}
	if _, err := svc.CompleteProfile(ctx, phone, ticket, profile); err != nil {
		t.Fatalf("complete profile: %v", err)
	}
	if _, err := svc.SetPIN(ctx, phone, "", "1234"); !errors.Is(err, ErrSignupExpired) {
		t.Fatalf("set pin without ticket: expected signup expired, got %v", err)
	}

	now = now.Add(11 * time.Minute)
	if _, err := svc.SetPIN(ctx, phone, ticket, "1234"); !errors.Is(err, ErrSignupExpired) {
		t.Fatalf("expired ticket: expected signup expired, got %v", err)
	}

	// verifying again resumes the signup with a fresh ticket
	if err := svc.ResendOTP(ctx, phone); err != nil {
		t.Fatalf("resend: %v", err)
	}
	user, fresh, err := svc.VerifyOTP(ctx, phone, "123456")
	if err != nil {
		t.Fatalf("verify again: %v", err)
	}
	if user.Status != StatusProfileComplete || fresh == "" || fresh == ticket {
		t.Fatalf("unexpected resume %s %q", user.Status, fresh)
	}
	if _, err := svc.SetPIN(ctx, phone, fresh, "1234"); err != nil {
		t.Fatalf("set pin: %v", err)
	}
}

func TestResendOTPUnknownPhone(t *testing.T) {
	svc, _ := newTestService(t)
	if err := svc.ResendOTP(context.Background(), "639123456789"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected user not found, got %v", err)
	}
}

func TestMemoryOTPStoreExpiry(t *testing.T) {
	store := NewMemoryOTPStore().(*memoryOTPStore)
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Put(ctx, "639123456789", []byte("hash"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Get(ctx, "639123456789"); err != nil {
		t.Fatalf("get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(ctx, "639123456789"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestRedisOTPStore(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer cache.Close()

	store := NewRedisOTPStore(cache)
	ctx := context.Background()
	if err := store.Put(ctx, "639123456789", []byte("hash"), time.Minute); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "639123456789")
	if err != nil || string(got) != "hash" {
		t.Fatalf("get: %q %v", got, err)
	}

	tickets := NewRedisTicketStore(cache)
	if _, err := tickets.Get(ctx, "639123456789"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("ticket store must not see otp keys, got %v", err)
	}

	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(ctx, "639123456789"); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
