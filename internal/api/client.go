// Package api is the HTTP client for the Haven advisory backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/FeelPulse/haven/internal/logger"
	"github.com/FeelPulse/haven/internal/metrics"
	"github.com/FeelPulse/haven/pkg/types"
)

const (
	// DefaultBaseURL is where the backend listens in a local deployment
	DefaultBaseURL = "http://localhost:5016"
	defaultTimeout = 60 * time.Second
	maxBodyBytes   = 4 << 20
)

// Endpoint paths
const (
	PathChat           = "/chat"
	PathRefresh        = "/auth/refresh"
	PathLogin          = "/auth/login"
	PathRegister       = "/auth/register"
	PathForgotPassword = "/auth/forgot-password"
	PathResetPassword  = "/auth/reset-password"
)

// Client talks to the Haven backend over HTTP
type Client struct {
	baseURL string
	client  *http.Client
	log     *logger.Logger
	metrics *metrics.Collector
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.client.Timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l.WithComponent("api") }
}

// WithMetrics records request counts on m
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the backend at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
		log:     logger.GetDefaultLogger().WithComponent("api"),
		metrics: metrics.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the backend root this client targets
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatReply is the success body of POST /chat.
// Properties is kept raw so a malformed listing array does not fail the whole reply.
type ChatReply struct {
	Response   string          `json:"response"`
	Properties json.RawMessage `json:"properties,omitempty"`
}

// Chat sends one user message with the given access token
func (c *Client) Chat(ctx context.Context, accessToken, message string) (*ChatReply, error) {
	var reply ChatReply
	if err := c.post(ctx, PathChat, accessToken, ChatRequest{Message: message}, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
}

// Refresh exchanges a refresh token for a new access token
func (c *Client) Refresh(ctx context.Context, refreshToken string) (string, error) {
	var resp refreshResponse
	if err := c.post(ctx, PathRefresh, "", refreshRequest{RefreshToken: refreshToken}, &resp); err != nil {
		return "", err
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: refresh response has no access_token", ErrDecode)
	}
	return resp.AccessToken, nil
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Login authenticates with email and password and returns the issued tokens
func (c *Client) Login(ctx context.Context, req LoginRequest) (types.TokenPair, error) {
	var resp loginResponse
	if err := c.post(ctx, PathLogin, "", req, &resp); err != nil {
		return types.TokenPair{}, err
	}
	if resp.AccessToken == "" {
		return types.TokenPair{}, fmt.Errorf("%w: login response has no access_token", ErrDecode)
	}
	return types.TokenPair{AccessToken: resp.AccessToken, RefreshToken: resp.RefreshToken}, nil
}

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	City     string `json:"city"`
	Password string `json:"password"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password
type ResetPasswordRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"new_password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates an account and returns the backend's confirmation text
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	var resp messageResponse
	if err := c.post(ctx, PathRegister, "", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ForgotPassword asks the backend to email a one-time reset code
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	if err := c.post(ctx, PathForgotPassword, "", forgotPasswordRequest{Email: email}, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ResetPassword sets a new password using the emailed one-time code
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	var resp messageResponse
	if err := c.post(ctx, PathResetPassword, "", req, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// post sends a JSON body and decodes a JSON response into out
func (c *Client) post(ctx context.Context, path, bearer string, in, out any) error {
	bodyData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(bodyData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	c.metrics.IncrementRequest(path)
	log := c.log.With("path", path)
	start := time.Now()

	resp, err := c.client.Do(req)
	if err != nil {
		log.Warn("POST failed: %v", err)
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	log.Debug("POST -> %d (%s, %d bytes)", resp.StatusCode, time.Since(start).Round(time.Millisecond), len(respBody))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		se := &StatusError{Code: resp.StatusCode}
		var eb errorBody
		if err := json.Unmarshal(respBody, &eb); err != nil {
			se.Malformed = true
		} else {
			se.Message = eb.Error
			if se.Message == "" {
				se.Message = eb.Message
			}
		}
		return se
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}
