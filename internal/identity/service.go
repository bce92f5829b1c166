package identity

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/negosyoko/nena/internal/notification"
)

const (
	defaultOTPTTL    = 5 * time.Minute
	defaultSignupTTL = 15 * time.Minute
	otpDigits     = 6
	maxNameRunes  = 64
)

// Options tunes OTP issuance.
type Options struct {
	OTPTTL time.Duration
	// FixedOTP replaces random codes. Development only.
	FixedOTP string
	// SignupTTL bounds the time between OTP verification and PIN setup.
	SignupTTL time.Duration
	// Tickets holds signup tickets; process memory when nil.
	Tickets OTPStore
	Logger  *slog.Logger
}

// Service manages the signup lifecycle: phone registration, OTP
// verification, profile completion and PIN setup.
type Service struct {
	repo     Repository
	otps     OTPStore
	notifier notification.Notifier
	opts     Options
	now      func() time.Time
}

// NewService creates a new identity service.
func NewService(repo Repository, otps OTPStore, notifier notification.Notifier, opts Options) *Service {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = defaultOTPTTL
	}
	if opts.SignupTTL <= 0 {
		opts.SignupTTL = defaultSignupTTL
	}
	if opts.Tickets == nil {
		opts.Tickets = NewMemoryOTPStore()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{repo: repo, otps: otps, notifier: notifier, opts: opts, now: time.Now}
}

// NormalizePhone strips whitespace and one leading '+'. The rest must be 7
// to 15 digits.
func NormalizePhone(raw string) (string, error) {
	phone := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	if phone == "" {
		return "", &ValidationError{Field: "phone_number", Message: "This field is required."}
	}
	if len(phone) < 7 || len(phone) > 15 || !digitsOnly(phone) {
		return "", &ValidationError{Field: "phone_number", Message: "Enter a valid phone number."}
	}
	return phone, nil
}

func digitsOnly(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

// Register creates the account if needed and sends an OTP. Returning users
// go through the same call.
func (s *Service) Register(ctx context.Context, rawPhone string) (User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return User{}, err
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrUserNotFound) {
		user = User{
			ID:        uuid.New().String(),
			Phone:     phone,
			Status:    StatusRegistered,
			CreatedAt: s.now().UTC(),
		}
		if err := s.repo.Create(ctx, user); err != nil {
			return User{}, err
		}
	} else if err != nil {
		return User{}, err
	}

	if err := s.issueOTP(ctx, phone); err != nil {
		return User{}, err
	}
	return user, nil
}

// ResendOTP replaces the pending OTP for a known phone number.
func (s *Service) ResendOTP(ctx context.Context, rawPhone string) error {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return err
	}
	if _, err := s.repo.FindByPhone(ctx, phone); err != nil {
		return err
	}
	return s.issueOTP(ctx, phone)
}

func (s *Service) issueOTP(ctx context.Context, phone string) error {
	code := s.opts.FixedOTP
	if code == "" {
		var err error
		if code, err = randomDigits(otpDigits); err != nil {
			return err
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.otps.Put(ctx, phone, hash, s.opts.OTPTTL); err != nil {
		return err
	}

	msg := notification.Message{
		Kind:        notification.KindOTP,
		Destination: phone,
		Body:        fmt.Sprintf("Your Nena verification code is %s. It expires in %s.", code, s.opts.OTPTTL),
	}
	if err := s.notifier.Send(ctx, msg); err != nil {
		s.opts.Logger.Warn("otp delivery failed", slog.Any("error", err))
	}
	return nil
}

func randomDigits(n int) (string, error) {
	var b strings.Builder
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate otp: %w", err)
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// VerifyOTP checks code and consumes it. A freshly registered account moves
// to OTP_VERIFIED; accounts further along keep their status so the caller
// can tell a login from a resumed signup. Unless the account already has a
// PIN, the returned ticket authorizes the remaining signup steps.
func (s *Service) VerifyOTP(ctx context.Context, rawPhone, code string) (User, string, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return User{}, "", err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return User{}, "", &ValidationError{Field: "otp", Message: "This field is required."}
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return User{}, "", err
	}
	hash, err := s.otps.Get(ctx, phone)
	if err != nil {
		return User{}, "", err
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(code)); err != nil {
		return User{}, "", ErrInvalidOTP
	}
	if err := s.otps.Delete(ctx, phone); err != nil {
		return User{}, "", err
	}

	if user.Status == StatusRegistered {
		user.Status = StatusOTPVerified
		if err := s.repo.Update(ctx, user); err != nil {
			return User{}, "", err
		}
	}
	if user.Status == StatusPINSet {
		return user, "", nil
	}

	ticket := uuid.NewString()
	ticketHash, err := bcrypt.GenerateFromPassword([]byte(ticket), bcrypt.DefaultCost)
	if err != nil {
		return User{}, "", err
	}
	if err := s.opts.Tickets.Put(ctx, phone, ticketHash, s.opts.SignupTTL); err != nil {
		return User{}, "", err
	}
	return user, ticket, nil
}

// checkTicket reports ErrSignupExpired unless ticket is the live signup
// ticket of phone.
func (s *Service) checkTicket(ctx context.Context, phone, ticket string) error {
	if ticket == "" {
		return ErrSignupExpired
	}
	hash, err := s.opts.Tickets.Get(ctx, phone)
	if errors.Is(err, ErrOTPExpired) {
		return ErrSignupExpired
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(ticket)) != nil {
		return ErrSignupExpired
	}
	return nil
}

// CompleteProfile stores the user's names after OTP verification. ticket is
// the one returned by VerifyOTP.
func (s *Service) CompleteProfile(ctx context.Context, rawPhone, ticket string, p Profile) (User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return User{}, err
	}
	if p.FirstName, err = cleanName("first_name", p.FirstName, true); err != nil {
		return User{}, err
	}
	if p.MiddleName, err = cleanName("middle_name", p.MiddleName, false); err != nil {
		return User{}, err
	}
	if p.LastName, err = cleanName("last_name", p.LastName, true); err != nil {
		return User{}, err
	}
	if err := s.checkTicket(ctx, phone, ticket); err != nil {
		return User{}, err
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return User{}, err
	}
	if user.Status != StatusOTPVerified && user.Status != StatusProfileComplete {
		return User{}, ErrWrongStep
	}

	user.FirstName, user.MiddleName, user.LastName = p.FirstName, p.MiddleName, p.LastName
	user.Status = StatusProfileComplete
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	return user, nil
}

func cleanName(field, value string, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" && required {
		return "", &ValidationError{Field: field, Message: "This field is required."}
	}
	if utf8.RuneCountInString(value) > maxNameRunes {
		return "", &ValidationError{Field: field, Message: "Ensure this field has no more than 64 characters."}
	}
	return value, nil
}

// SetPIN hashes and stores the login PIN once the profile is complete. It
// consumes the signup ticket.
func (s *Service) SetPIN(ctx context.Context, rawPhone, ticket, pin string) (User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return User{}, err
	}
	if len(pin) < 4 || len(pin) > 6 || !digitsOnly(pin) {
		return User{}, &ValidationError{Field: "pin", Message: "PIN must be 4 to 6 digits."}
	}
	if err := s.checkTicket(ctx, phone, ticket); err != nil {
		return User{}, err
	}

	user, err := s.repo.FindByPhone(ctx, phone)
	if err != nil {
		return User{}, err
	}
	if user.Status != StatusProfileComplete {
		return User{}, ErrWrongStep
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	user.PINHash = hash
	user.Status = StatusPINSet
	if err := s.repo.Update(ctx, user); err != nil {
		return User{}, err
	}
	if err := s.opts.Tickets.Delete(ctx, phone); err != nil {
		s.opts.Logger.Warn("signup ticket not cleared", slog.Any("error", err))
	}
	return user, nil
}

// Authenticate verifies phone and PIN.
func (s *Service) Authenticate(ctx context.Context, rawPhone, pin string) (User, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return User{}, err
	}
	user, err := s.repo.FindByPhone(ctx, phone)
	if errors.Is(err, ErrUserNotFound) {
		return User{}, ErrInvalidCredentials
	}
	if err != nil {
		return User{}, err
	}
	if user.Status != StatusPINSet {
		return User{}, ErrWrongStep
	}
	if err := bcrypt.CompareHashAndPassword(user.PINHash, []byte(pin)); err != nil {
		return User{}, ErrInvalidCredentials
	}

	now := s.now().UTC()
	if err := s.repo.TouchLogin(ctx, user.ID, now); err != nil {
		return User{}, err
	}
	user.LastLogin = &now
	return user, nil
}

// FindByID loads a user for token checks.
func (s *Service) FindByID(ctx context.Context, id string) (User, error) {
	return s.repo.FindByID(ctx, id)
}
