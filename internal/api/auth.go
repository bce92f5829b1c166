package api

import (
	"context"
	"net/http"
)

func (c *Client) postAuth(ctx context.Context, op, path string, payload any) (AuthResult, error) {
	req, err := jsonRequest(op, http.MethodPost, path, false, payload)
	if err != nil {
		return AuthResult{}, err
	}
	var out AuthResult
	if err := c.call(ctx, req, AuthEnvelopeSchema, &out); err != nil {
		return AuthResult{}, err
	}
	return out, nil
}

func (c *Client) postMessage(ctx context.Context, op, path string, auth bool, payload any) (MessageResponse, error) {
	req, err := jsonRequest(op, http.MethodPost, path, auth, payload)
	if err != nil {
		return MessageResponse{}, err
	}
	var out MessageResponse
	if err := c.call(ctx, req, MessageSchema, &out); err != nil {
		return MessageResponse{}, err
	}
	return out, nil
}

// Register asks the backend to send an OTP to the phone number.
func (c *Client) Register(ctx context.Context, in RegisterRequest) (MessageResponse, error) {
	return c.postMessage(ctx, "register", "/register/", false, in)
}

// ResendOTP re-sends the OTP for a pending registration.
func (c *Client) ResendOTP(ctx context.Context, in ResendOTPRequest) (MessageResponse, error) {
	return c.postMessage(ctx, "resend_otp", "/resend-otp/", false, in)
}

// VerifyOTP submits the OTP code.
func (c *Client) VerifyOTP(ctx context.Context, in VerifyOTPRequest) (AuthResult, error) {
	return c.postAuth(ctx, "verify_otp", "/verify-otp/", in)
}

// CompleteProfile stores the user's names.
func (c *Client) CompleteProfile(ctx context.Context, in CompleteProfileRequest) (AuthResult, error) {
	return c.postAuth(ctx, "complete_profile", "/complete-profile/", in)
}

// SetPIN sets the login PIN of a freshly profiled user.
func (c *Client) SetPIN(ctx context.Context, in SetPINRequest) (AuthResult, error) {
	return c.postAuth(ctx, "set_pin", "/set-pin/", in)
}

// LoginWithPIN exchanges phone number and PIN for tokens.
func (c *Client) LoginWithPIN(ctx context.Context, in LoginWithPINRequest) (AuthResult, error) {
	return c.postAuth(ctx, "login_with_pin", "/login-with-pin/", in)
}

// Logout invalidates the current token server-side.
func (c *Client) Logout(ctx context.Context) (MessageResponse, error) {
	return c.postMessage(ctx, "logout", "/logout/", true, struct{}{})
}
