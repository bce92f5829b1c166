package session

import "fmt"

// Phase is one step of the signup/login lifecycle. A controller is in
// exactly one phase at a time.
type Phase int

const (
	Unregistered Phase = iota
	OtpPending
	OtpVerified
	ProfileIncomplete
	PinNotSet
	PinRequired
	Authenticated
)

var phaseNames = [...]string{
	Unregistered:      "Unregistered",
	OtpPending:        "OtpPending",
	OtpVerified:       "OtpVerified",
	ProfileIncomplete: "ProfileIncomplete",
	PinNotSet:         "PinNotSet",
	PinRequired:       "PinRequired",
	Authenticated:     "Authenticated",
}

func (p Phase) String() string {
	if p >= 0 && int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Op names a controller operation in events and errors.
type Op string

const (
	OpStartRegistration Op = "start_registration"
	OpVerifyOTP         Op = "verify_otp"
	OpResendOTP         Op = "resend_otp"
	OpCompleteProfile   Op = "complete_profile"
	OpSetPIN            Op = "set_pin"
	OpLoginWithPIN      Op = "login_with_pin"
	OpLogout            Op = "logout"
	OpRestore           Op = "restore"
)

// Session is a snapshot of the controller state. Token is only set when
// Phase is Authenticated.
type Session struct {
	PhoneNumber string
	Phase       Phase
	Token       string
}
