// Package auth runs the account flows (login, registration, password reset)
// against the backend and keeps the resulting tokens in session storage.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/FeelPulse/haven/internal/api"
	"github.com/FeelPulse/haven/internal/logger"
	"github.com/FeelPulse/haven/internal/store"
	"github.com/FeelPulse/haven/pkg/types"
)

// TextUnreachable is shown when an account request gets no response
const TextUnreachable = "Cannot connect to server. Ensure backend is running."

// ErrNotLoggedIn is returned when no tokens are stored
var ErrNotLoggedIn = errors.New("not logged in")

// Service performs account requests and owns the stored session
type Service struct {
	client *api.Client
	kv     store.KV
	log    *logger.Logger
}

// NewService creates an account service
func NewService(client *api.Client, kv store.KV) *Service {
	return &Service{
		client: client,
		kv:     kv,
		log:    logger.GetDefaultLogger().WithComponent("auth"),
	}
}

// Login authenticates and stores the issued tokens
func (s *Service) Login(ctx context.Context, email, password string) (types.TokenPair, error) {
	email = strings.TrimSpace(email)
	if err := ValidateLogin(email, password); err != nil {
		return types.TokenPair{}, err
	}

	tokens, err := s.client.Login(ctx, api.LoginRequest{Email: email, Password: password})
	if err != nil {
		return types.TokenPair{}, err
	}

	if err := store.SaveTokens(s.kv, tokens); err != nil {
		return types.TokenPair{}, fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.kv.Set(store.KeyEmail, email); err != nil {
		return types.TokenPair{}, fmt.Errorf("failed to store session: %w", err)
	}

	s.log.Info("Logged in as %s", email)
	return tokens, nil
}

// Tokens returns the stored tokens, or ErrNotLoggedIn
func (s *Service) Tokens() (types.TokenPair, error) {
	tokens, err := store.LoadTokens(s.kv)
	if err != nil {
		return types.TokenPair{}, fmt.Errorf("failed to read session: %w", err)
	}
	if tokens.Empty() {
		return types.TokenPair{}, ErrNotLoggedIn
	}
	if err := store.TouchSession(s.kv); err != nil {
		s.log.Warn("Failed to mark session as used: %v", err)
	}
	return tokens, nil
}

// Email returns the account the stored tokens belong to
func (s *Service) Email() string {
	email, err := s.kv.Get(store.KeyEmail)
	if err != nil {
		s.log.Warn("Failed to read stored email: %v", err)
		return ""
	}
	return email
}

// SaveTokens replaces the stored tokens, e.g. after a refresh
func (s *Service) SaveTokens(tokens types.TokenPair) error {
	return store.SaveTokens(s.kv, tokens)
}

// Expire drops the tokens after the backend ended the session. The email is
// kept so the next login can offer it.
func (s *Service) Expire() error {
	s.log.Info("Session expired, clearing stored tokens")
	return store.ClearTokens(s.kv)
}

// Logout forgets the whole session
func (s *Service) Logout() error {
	if err := s.kv.Clear(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	s.log.Info("Logged out")
	return nil
}

// Register creates an account
func (s *Service) Register(ctx context.Context, req api.RegisterRequest) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateRegister(req); err != nil {
		return "", err
	}
	return s.client.Register(ctx, req)
}

// ForgotPassword requests a reset code for email
func (s *Service) ForgotPassword(ctx context.Context, email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return "", err
	}
	return s.client.ForgotPassword(ctx, email)
}

// ResetPassword sets a new password using the emailed code
func (s *Service) ResetPassword(ctx context.Context, req api.ResetPasswordRequest, confirm string) (string, error) {
	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := ValidateReset(req, confirm); err != nil {
		return "", err
	}
	return s.client.ResetPassword(ctx, req)
}

// DisplayError turns an account flow error into text for the user. fallback
// is used when the backend rejected the request without saying why.
func DisplayError(err error, fallback string) string {
	var fe *FormError
	if errors.As(err, &fe) {
		return fe.Message
	}
	if se, ok := api.AsStatus(err); ok {
		if se.Message != "" && !se.Malformed {
			return se.Message
		}
		return fallback
	}
	if api.IsDecode(err) {
		return fallback
	}
	return TextUnreachable
}
