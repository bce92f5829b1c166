package api

import "time"

// User statuses reported in auth envelopes.
const (
	StatusRegistered        = "REGISTERED"
	StatusOTPVerified       = "OTP_VERIFIED"
	StatusProfileIncomplete = "PROFILE_INCOMPLETE"
	StatusProfileComplete   = "PROFILE_COMPLETE"
	StatusPINSet            = "PIN_SET"
)

// RegisterRequest starts a signup (or login) by sending an OTP.
type RegisterRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// ResendOTPRequest asks for a fresh OTP for the same phone number.
type ResendOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
}

type VerifyOTPRequest struct {
	PhoneNumber string `json:"phone_number"`
	OTP         string `json:"otp"`
}

// CompleteProfileRequest and SetPINRequest carry the signup ticket from
// VerifyOTP because no bearer token exists before the PIN is set.
type CompleteProfileRequest struct {
	PhoneNumber  string `json:"phone_number"`
	SignupTicket string `json:"signup_ticket"`
	FirstName    string `json:"first_name"`
	MiddleName   string `json:"middle_name,omitempty"`
	LastName     string `json:"last_name"`
}

type SetPINRequest struct {
	PhoneNumber  string `json:"phone_number"`
	SignupTicket string `json:"signup_ticket"`
	PIN          string `json:"pin"`
}

type LoginWithPINRequest struct {
	PhoneNumber string `json:"phone_number"`
	PIN         string `json:"pin"`
}

// MessageResponse is the plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// AuthResult is the auth endpoint envelope (schema auth-envelope/v1).
type AuthResult struct {
	Message      string `json:"message"`
	Access       string `json:"access,omitempty"`
	Refresh      string `json:"refresh,omitempty"`
	UserStatus   string `json:"user_status,omitempty"`
	IsLoginFlow  bool   `json:"is_login_flow,omitempty"`
	SignupTicket string `json:"signup_ticket,omitempty"`
}

// LoanApplicationRequest applies for a loan. Amount is in centavos.
// IdempotencyKey is sent as a header; a random one is used when empty.
type LoanApplicationRequest struct {
	Amount         int64  `json:"amount"`
	TermMonths     int    `json:"term_months"`
	Purpose        string `json:"purpose"`
	BusinessName   string `json:"business_name,omitempty"`
	IdempotencyKey string `json:"-"`
}

type LoanApplicationResponse struct {
	Message       string `json:"message"`
	ApplicationID string `json:"application_id"`
	Status        string `json:"status"`
}

type ChatRequest struct {
	Message string `json:"message"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

// MonthlyTotal is income summed over one calendar month (YYYY-MM).
type MonthlyTotal struct {
	Month string `json:"month"`
	Total int64  `json:"total"`
}

type SourceTotal struct {
	Source string `json:"source"`
	Total  int64  `json:"total"`
	Count  int    `json:"count"`
}

// Analytics summarises the caller's income records.
type Analytics struct {
	TotalIncome   int64          `json:"total_income"`
	RecordCount   int            `json:"record_count"`
	AverageAmount int64          `json:"average_amount"`
	Monthly       []MonthlyTotal `json:"monthly"`
	TopSources    []SourceTotal  `json:"top_sources"`
}

// IncomeRecord is one income entry. ReceivedOn is a YYYY-MM-DD date.
type IncomeRecord struct {
	ID         string    `json:"id"`
	Amount     int64     `json:"amount"`
	Source     string    `json:"source"`
	ReceivedOn string    `json:"received_on"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

type CreateIncomeRecordRequest struct {
	Amount     int64  `json:"amount"`
	Source     string `json:"source"`
	ReceivedOn string `json:"received_on"`
	Notes      string `json:"notes,omitempty"`
}

// Document is the metadata of an uploaded document image.
type Document struct {
	ID          string    `json:"id"`
	Label       string    `json:"label"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	UploadedAt  time.Time `json:"uploaded_at"`
}
