package cloud

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	// DefaultTimeout bounds every remote call.
	DefaultTimeout = 30 * time.Second

	// DefaultRateLimit is the per-adapter request rate (requests per second).
	DefaultRateLimit = 10

	maxErrorBody = 4096
)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	rateLimit  int
	logger     *zap.Logger
	baseURL    string
	now        func() time.Time
}

// Option configures an adapter.
type Option func(*options)

// WithHTTPClient sets the base client. Its transport is wrapped with bearer auth.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTimeout sets the per request timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithRateLimit sets requests per second.
func WithRateLimit(rps int) Option {
	return func(o *options) { o.rateLimit = rps }
}

// WithLogger sets a logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithBaseURL points every endpoint of an adapter at one host, regardless of region.
func WithBaseURL(u string) Option {
	return func(o *options) { o.baseURL = strings.TrimRight(u, "/") }
}

// WithClock sets the time source used for API version dates.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		timeout:   DefaultTimeout,
		rateLimit: DefaultRateLimit,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return o
}

// restClient is the shared JSON-over-HTTP plumbing of every adapter.
type restClient struct {
	http    *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
	baseURL string
	now     func() time.Time
}

func newRESTClient(ts oauth2.TokenSource, o options, name string) *restClient {
	var base http.RoundTripper = http.DefaultTransport
	if o.httpClient != nil && o.httpClient.Transport != nil {
		base = o.httpClient.Transport
	}
	return &restClient{
		http: &http.Client{
			Timeout:   o.timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		},
		limiter: rate.NewLimiter(rate.Limit(o.rateLimit), o.rateLimit),
		logger:  o.logger.Named(name),
		baseURL: o.baseURL,
		now:     o.now,
	}
}

// endpoint returns the fixed base URL when configured, otherwise def.
func (c *restClient) endpoint(def string) string {
	if c.baseURL != "" {
		return c.baseURL
	}
	return def
}

// request describes one remote call.
type request struct {
	op       string
	method   string
	url      string
	header   http.Header
	body     any
	notFound Kind // classification of a 404
}

func (c *restClient) do(ctx context.Context, r request, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return NewError(KindNetwork, r.op, err)
	}

	var body io.Reader
	if r.body != nil {
		b, err := json.Marshal(r.body)
		if err != nil {
			return NewError(KindInvalidRequest, r.op, fmt.Errorf("failed to encode request: %w", err))
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, r.url, body)
	if err != nil {
		return NewError(KindInvalidRequest, r.op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range r.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		// Token source failures arrive wrapped in *url.Error and keep their kind.
		return Classify(err, KindNetwork, r.op)
	}
	defer resp.Body.Close()

	c.logger.Debug("api request",
		zap.String("op", r.op),
		zap.String("method", r.method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &Error{
			Kind:       classifyStatus(resp.StatusCode, r.notFound),
			Op:         r.op,
			StatusCode: resp.StatusCode,
			Err:        errors.New(apiMessage(msg)),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return NewError(KindNetwork, r.op, fmt.Errorf("failed to decode response: %w", err))
	}
	return nil
}

func classifyStatus(code int, notFound Kind) Kind {
	switch {
	case code == http.StatusUnauthorized:
		return KindAuth
	case code == http.StatusForbidden:
		return KindPermission
	case code == http.StatusNotFound:
		if notFound == KindUnknown {
			return KindInvalidRequest
		}
		return notFound
	case code == http.StatusTooManyRequests, code >= 500:
		return KindNetwork
	default:
		return KindInvalidRequest
	}
}

// apiMessage extracts the first message of an IBM Cloud error body, falling
// back to the raw text.
func apiMessage(body []byte) string {
	var payload struct {
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
		Message     string `json:"message"`
		Description string `json:"description"`
	}
	if json.Unmarshal(body, &payload) == nil {
		switch {
		case len(payload.Errors) > 0 && payload.Errors[0].Message != "":
			return payload.Errors[0].Message
		case payload.Message != "":
			return payload.Message
		case payload.Description != "":
			return payload.Description
		}
	}
	text := strings.TrimSpace(string(body))
	if text == "" {
		return "empty response"
	}
	return text
}
