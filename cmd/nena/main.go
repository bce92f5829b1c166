// Command nena is a terminal client for the Nena lending sandbox.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/negosyoko/nena/internal/api"
	"github.com/negosyoko/nena/internal/config"
	"github.com/negosyoko/nena/internal/logging"
	"github.com/negosyoko/nena/internal/session"
	"github.com/negosyoko/nena/internal/tokenstore"
)

// app holds what every subcommand needs once the root has set it up.
type app struct {
	cfg    config.ClientConfig
	logger *slog.Logger
	tokens tokenstore.Store
	client *api.Client
	ctrl   *session.Controller

	in  *bufio.Reader
	out io.Writer
	err io.Writer
}

func main() {
	// .env is optional for the client
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, a := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	a.close()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) (*cobra.Command, *app) {
	a := &app{in: bufio.NewReader(stdin), out: stdout, err: stderr}
	var baseURL string

	root := &cobra.Command{
		Use:           "nena",
		Short:         "Sign up, log in and manage loans from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return a.fail(err)
			}
			if baseURL != "" {
				cfg.BaseURL = baseURL
			}
			return a.open(cmd.Context(), cfg)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&baseURL, "base-url", "", "API base URL (overrides NENA_BASE_URL)")

	root.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newStatusCmd(a),
		newLoanCmd(a),
		newChatCmd(a),
		newAnalyticsCmd(a),
		newIncomeCmd(a),
		newDocumentsCmd(a),
	)
	return root, a
}

func (a *app) open(ctx context.Context, cfg config.ClientConfig) error {
	a.cfg = cfg
	a.logger = logging.NewWithWriter(a.err, cfg.LogLevel, "text")

	tokens, err := openTokenStore(ctx, cfg)
	if err != nil {
		return a.fail(err)
	}
	client, err := api.New(cfg.BaseURL, tokens, api.Options{Timeout: cfg.CallTimeout, Logger: a.logger})
	if err != nil {
		tokens.Close()
		return a.fail(err)
	}
	a.tokens = tokens
	a.client = client
	a.ctrl = session.New(client, tokens, session.Options{
		CallTimeout:    cfg.CallTimeout,
		MaxPINFailures: cfg.MaxPINFailures,
		PINLockout:     cfg.PINLockout,
		Logger:         a.logger,
	})
	return nil
}

// close releases the controller and token store. Safe when open never ran.
func (a *app) close() {
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	if a.tokens != nil {
		if err := a.tokens.Close(); err != nil {
			a.logger.Warn("close token store", slog.Any("error", err))
		}
	}
}

func openTokenStore(ctx context.Context, cfg config.ClientConfig) (tokenstore.Store, error) {
	switch cfg.TokenStore {
	case config.TokenStoreMemory:
		return tokenstore.NewMemory(), nil
	case config.TokenStoreSQLite:
		return tokenstore.OpenSQLite(ctx, cfg.TokenPath)
	case config.TokenStoreRedis:
		return tokenstore.OpenRedis(ctx, cfg.RedisURL, cfg.DeviceID)
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

// fail prints the user-facing line for err and returns it for the exit code.
func (a *app) fail(err error) error {
	fmt.Fprintln(a.err, "error:", session.Message(err))
	return err
}
