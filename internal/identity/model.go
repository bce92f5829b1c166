package identity

import (
	"errors"
	"time"

	"github.com/negosyoko/nena/internal/validation"
)

// Account statuses in signup order.
const (
	StatusRegistered      = "REGISTERED"
	StatusOTPVerified     = "OTP_VERIFIED"
	StatusProfileComplete = "PROFILE_COMPLETE"
	StatusPINSet          = "PIN_SET"
)

var (
	ErrUserExists         = errors.New("user exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrInvalidOTP         = errors.New("invalid otp")
	ErrOTPExpired         = errors.New("otp expired or not requested")
	ErrInvalidCredentials = errors.New("invalid phone number or PIN")
	ErrWrongStep          = errors.New("step not allowed for this account")
	ErrSignupExpired      = errors.New("signup session expired, verify your phone number again")
)

// User is a borrower account keyed by phone number.
type User struct {
	ID           string
	Phone        string
	FirstName    string
	MiddleName   string
	LastName     string
	Status       string
	PINHash      []byte
	TokenVersion int
	CreatedAt    time.Time
	LastLogin    *time.Time
}

// Profile holds the names collected after OTP verification.
type Profile struct {
	FirstName  string
	MiddleName string
	LastName   string
}

// ValidationError rejects a single request field.
type ValidationError = validation.Error
