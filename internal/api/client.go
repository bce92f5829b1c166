package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 30 * time.Second
	maxResponseBytes = 8 << 20
	userAgent        = "nena-client/1"
)

// TokenSource yields the bearer token for authenticated calls.
// tokenstore.Store satisfies it.
type TokenSource interface {
	Get(ctx context.Context) (token string, ok bool, err error)
}

// Options tunes a Client. Zero values select defaults.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *slog.Logger
}

// Client issues the backend calls. It holds no session state of its own;
// the bearer token is read from the TokenSource on every authenticated call.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
	logger  *slog.Logger
	schemas schemaSet
}

// New builds a client for baseURL.
func New(baseURL string, tokens TokenSource, opts Options) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if tokens == nil {
		return nil, fmt.Errorf("token source is required")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schemas, err := loadSchemas()
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: baseURL,
		http:    httpClient,
		tokens:  tokens,
		logger:  logger,
		schemas: schemas,
	}, nil
}

type request struct {
	op          string
	method      string
	path        string
	auth        bool
	body        io.Reader
	contentType string
	header      http.Header
}

func jsonRequest(op, method, path string, auth bool, payload any) (request, error) {
	req := request{op: op, method: method, path: path, auth: auth}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return request{}, fmt.Errorf("%s: encode request: %w", op, err)
		}
		req.body = bytes.NewReader(b)
		req.contentType = "application/json"
	}
	return req, nil
}

// send performs the round trip and returns the body of a 2xx response.
func (c *Client) send(ctx context.Context, r request) ([]byte, error) {
	httpReq, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, r.body)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", r.op, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	if r.contentType != "" {
		httpReq.Header.Set("Content-Type", r.contentType)
	}
	for k, vs := range r.header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if r.auth {
		token, ok, err := c.tokens.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: read token: %w", r.op, err)
		}
		if ok && token != "" {
			httpReq.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.logger.Debug("api call failed", slog.String("op", r.op), slog.Any("error", err))
		return nil, &NetworkError{Op: r.op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &NetworkError{Op: r.op, Err: fmt.Errorf("read body: %w", err)}
	}

	c.logger.Debug("api call completed",
		slog.String("op", r.op),
		slog.String("method", r.method),
		slog.String("path", r.path),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newBackendError(resp.StatusCode, body)
	}
	return body, nil
}

// call sends r and decodes the JSON body into out, validating it against
// schema first when one is named.
func (c *Client) call(ctx context.Context, r request, schema string, out any) error {
	body, err := c.send(ctx, r)
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%s: %w", r.op, ErrEmptyResponse)
	}
	if schema != "" {
		if err := c.schemas.validate(schema, body); err != nil {
			return fmt.Errorf("%s: %w", r.op, err)
		}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%s: %w: %v", r.op, ErrMalformedResponse, err)
	}
	return nil
}
