package session

import (
	"strings"
	"unicode/utf8"
)

const (
	minPhoneDigits = 7
	maxPhoneDigits = 15
	minOTPDigits   = 4
	maxOTPDigits   = 8
	minPINDigits   = 4
	maxPINDigits   = 6
	maxNameRunes   = 64
)

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// normalizePhone trims whitespace and one leading '+'; the rest must be
// 7 to 15 digits.
func normalizePhone(raw string) (string, error) {
	phone := strings.TrimPrefix(strings.TrimSpace(raw), "+")
	switch {
	case phone == "":
		return "", &ValidationError{Field: "phone_number", Reason: "Phone number is required."}
	case !isDigits(phone):
		return "", &ValidationError{Field: "phone_number", Reason: "Phone number must contain digits only."}
	case len(phone) < minPhoneDigits || len(phone) > maxPhoneDigits:
		return "", &ValidationError{Field: "phone_number", Reason: "Phone number must be 7 to 15 digits."}
	}
	return phone, nil
}

func validateOTP(code string) (string, error) {
	code = strings.TrimSpace(code)
	if !isDigits(code) || len(code) < minOTPDigits || len(code) > maxOTPDigits {
		return "", &ValidationError{Field: "otp", Reason: "OTP must be 4 to 8 digits."}
	}
	return code, nil
}

func validatePIN(pin string) error {
	if !isDigits(pin) || len(pin) < minPINDigits || len(pin) > maxPINDigits {
		return &ValidationError{Field: "pin", Reason: "PIN must be 4 to 6 digits."}
	}
	return nil
}

func validateName(field, label, value string, required bool) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		if required {
			return "", &ValidationError{Field: field, Reason: label + " is required."}
		}
		return "", nil
	}
	if utf8.RuneCountInString(value) > maxNameRunes {
		return "", &ValidationError{Field: field, Reason: label + " must be at most 64 characters."}
	}
	return value, nil
}

// maskPhone keeps the last four digits for logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
