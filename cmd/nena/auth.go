package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/negosyoko/nena/internal/api"
	"github.com/negosyoko/nena/internal/session"
)

const maxPromptAttempts = 5

var errNotSignedIn = errors.New("not signed in")

func isClientError(err error) bool {
	var be *api.BackendError
	return errors.As(err, &be) && be.IsClientError()
}

func newSignupCmd(a *app) *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Register a phone number and finish onboarding",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if phone == "" {
				var err error
				if phone, err = a.prompt("Phone number: "); err != nil {
					return a.fail(err)
				}
			}
			err := a.ctrl.StartRegistration(ctx, phone)
			a.report()
			if err != nil {
				return err
			}
			return a.onboard(ctx, phone)
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number, digits only")
	return cmd
}

// onboard walks the remaining phases until the session is authenticated.
func (a *app) onboard(ctx context.Context, phone string) error {
	failures := 0
	for a.ctrl.Phase() != session.Authenticated {
		var err error
		switch a.ctrl.Phase() {
		case session.OtpPending:
			err = a.otpStep(ctx)
		case session.OtpVerified, session.ProfileIncomplete:
			err = a.profileStep(ctx)
		case session.PinNotSet:
			err = a.setPINStep(ctx)
		case session.PinRequired:
			err = a.loginStep(ctx, phone)
		default:
			return fmt.Errorf("unexpected phase %s", a.ctrl.Phase())
		}
		a.report()
		if err == nil {
			failures = 0
			continue
		}
		if errors.Is(err, errNoInput) || !retryable(err) {
			return err
		}
		if failures++; failures >= maxPromptAttempts {
			return err
		}
	}
	fmt.Fprintln(a.out, "You're signed in.")
	return nil
}

func (a *app) otpStep(ctx context.Context) error {
	code, err := a.prompt("OTP (type 'resend' for a new code): ")
	if err != nil {
		return err
	}
	if code == "resend" {
		return a.ctrl.ResendOTP(ctx)
	}
	return a.ctrl.VerifyOTP(ctx, code)
}

func (a *app) profileStep(ctx context.Context) error {
	first, err := a.prompt("First name: ")
	if err != nil {
		return err
	}
	middle, err := a.prompt("Middle name (optional): ")
	if err != nil {
		return err
	}
	last, err := a.prompt("Last name: ")
	if err != nil {
		return err
	}
	return a.ctrl.CompleteProfile(ctx, first, middle, last)
}

func (a *app) setPINStep(ctx context.Context) error {
	pin, err := a.prompt("Choose a 4-6 digit PIN: ")
	if err != nil {
		return err
	}
	confirm, err := a.prompt("Confirm PIN: ")
	if err != nil {
		return err
	}
	if pin != confirm {
		fmt.Fprintln(a.out, "✗ PINs do not match.")
		return &session.ValidationError{Field: "pin", Reason: "PINs do not match."}
	}
	return a.ctrl.SetPIN(ctx, pin)
}

func (a *app) loginStep(ctx context.Context, phone string) error {
	pin, err := a.prompt("PIN: ")
	if err != nil {
		return err
	}
	return a.ctrl.LoginWithPIN(ctx, phone, pin)
}

func newLoginCmd(a *app) *cobra.Command {
	var phone string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with phone number and PIN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if phone == "" {
				var err error
				if phone, err = a.prompt("Phone number: "); err != nil {
					return a.fail(err)
				}
			}
			for attempt := 1; ; attempt++ {
				err := a.loginStep(ctx, phone)
				a.report()
				if err == nil {
					fmt.Fprintln(a.out, "You're signed in.")
					return nil
				}
				if errors.Is(err, errNoInput) || !retryable(err) || attempt >= maxPromptAttempts {
					return err
				}
			}
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "phone number, digits only")
	return cmd
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, err := a.ctrl.Restore(ctx); err != nil {
				a.report()
				return err
			}
			err := a.ctrl.Logout(ctx)
			a.report()
			return err
		},
	}
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show whether this device is signed in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ok, err := a.ctrl.Restore(cmd.Context())
			if err != nil {
				return a.fail(err)
			}
			fmt.Fprintf(a.out, "phase: %s\n", a.ctrl.Phase())
			if ok {
				fmt.Fprintf(a.out, "token store: %s (signed in)\n", a.cfg.TokenStore)
			} else {
				fmt.Fprintf(a.out, "token store: %s (no token)\n", a.cfg.TokenStore)
			}
			return nil
		},
	}
}

// requireLogin resumes the stored session before an authenticated command.
func (a *app) requireLogin(ctx context.Context) error {
	if a.ctrl.Phase() == session.Authenticated {
		return nil
	}
	ok, err := a.ctrl.Restore(ctx)
	if err != nil {
		return a.fail(err)
	}
	if !ok {
		fmt.Fprintln(a.err, "error: not signed in, run `nena login` first")
		return errNotSignedIn
	}
	return nil
}
