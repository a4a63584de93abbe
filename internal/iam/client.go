package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/greyhoundforty/blueterm/internal/cloud"
)

const (
	// DefaultTokenURL is the IAM token endpoint.
	DefaultTokenURL = "https://iam.cloud.ibm.com/identity/token"

	apiKeyGrantType = "urn:ibm:params:oauth:grant-type:apikey"
)

// Client exchanges an API key for an IAM access token.
type Client struct {
	tokenURL   string
	httpClient *http.Client
	logger     *zap.Logger
	now        func() time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithTokenURL overrides the token endpoint.
func WithTokenURL(u string) ClientOption {
	return func(c *Client) { c.tokenURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = h }
}

// WithClientLogger sets the logger.
func WithClientLogger(l *zap.Logger) ClientOption {
	return func(c *Client) { c.logger = l }
}

// WithNow sets the time source used when the response only carries expires_in.
func WithNow(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

// NewClient creates an IAM client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		tokenURL:   DefaultTokenURL,
		httpClient: &http.Client{Timeout: cloud.DefaultTimeout},
		logger:     zap.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("iam")
	return c
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
	Expiration  int64  `json:"expiration"`
}

type iamError struct {
	ErrorCode    string `json:"errorCode"`
	ErrorMessage string `json:"errorMessage"`
}

// Exchange performs the API key grant.
func (c *Client) Exchange(ctx context.Context, apiKey string) (*oauth2.Token, error) {
	const op = "iam token exchange"

	if strings.TrimSpace(apiKey) == "" {
		return nil, cloud.Errorf(cloud.KindAuth, op, "API key is empty")
	}

	form := url.Values{}
	form.Set("grant_type", apiKeyGrantType)
	form.Set("apikey", apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, cloud.NewError(cloud.KindInvalidRequest, op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, cloud.Classify(err, cloud.KindNetwork, op)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, cloud.NewError(cloud.KindNetwork, op, fmt.Errorf("failed to read response: %w", err))
	}

	if resp.StatusCode != http.StatusOK {
		var ie iamError
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &ie) == nil && ie.ErrorMessage != "" {
			msg = ie.ErrorMessage
		}
		kind := cloud.KindNetwork
		switch resp.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			kind = cloud.KindAuth
		case http.StatusForbidden:
			kind = cloud.KindPermission
		}
		c.logger.Warn("token exchange rejected", zap.Int("status", resp.StatusCode), zap.String("code", ie.ErrorCode))
		return nil, &cloud.Error{Kind: kind, Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, cloud.NewError(cloud.KindNetwork, op, fmt.Errorf("failed to decode response: %w", err))
	}
	if tr.AccessToken == "" {
		return nil, cloud.Errorf(cloud.KindAuth, op, "response carried no access token")
	}

	var expiry time.Time
	switch {
	case tr.Expiration > 0:
		expiry = time.Unix(tr.Expiration, 0)
	case tr.ExpiresIn > 0:
		expiry = c.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	default:
		return nil, cloud.Errorf(cloud.KindAuth, op, "response carried no expiry")
	}

	c.logger.Debug("token issued", zap.Time("expiry", expiry))
	return &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tr.TokenType, Expiry: expiry}, nil
}
