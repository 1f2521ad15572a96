package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/FeelPulse/haven/internal/api"
	"github.com/FeelPulse/haven/internal/apitest"
	"github.com/FeelPulse/haven/internal/store"
	"github.com/FeelPulse/haven/pkg/types"
)

func TestValidateEmail(t *testing.T) {
	tests := []struct {
		email string
		valid bool
	}{
		{"buyer@example.com", true},
		{"first.last-name@mail.co.in", true},
		{"user_1@host.io", true},
		{"", false},
		{"no-at-sign.com", false},
		{"user@nodot", false},
		{"user@host.", false},
		{"two@@host.com", false},
		{"space in@host.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.email, func(t *testing.T) {
			err := ValidateEmail(tt.email)
			if (err == nil) != tt.valid {
				t.Errorf("ValidateEmail(%q) = %v, want valid=%v", tt.email, err, tt.valid)
			}
		})
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("12345"); err == nil || err.Error() != "Password too short" {
		t.Errorf("expected short password error, got %v", err)
	}
	if err := ValidatePassword("123456"); err != nil {
		t.Errorf("six characters should pass, got %v", err)
	}
}

func TestValidateRegister(t *testing.T) {
	valid := api.RegisterRequest{Name: "Asha", Phone: "9999999999", Email: "asha@example.com", City: "Pune", Password: "secret1"}

	tests := []struct {
		name    string
		mutate  func(*api.RegisterRequest)
		wantErr string
	}{
		{name: "valid", mutate: func(*api.RegisterRequest) {}},
		{
			name:    "missing fields listed in order",
			mutate:  func(r *api.RegisterRequest) { r.Name = ""; r.City = "  " },
			wantErr: "Missing fields: name, city",
		},
		{
			name:    "bad email",
			mutate:  func(r *api.RegisterRequest) { r.Email = "asha" },
			wantErr: "Invalid email",
		},
		{
			name:    "short password",
			mutate:  func(r *api.RegisterRequest) { r.Password = "abc" },
			wantErr: "Password too short",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid
			tt.mutate(&req)
			err := ValidateRegister(req)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || err.Error() != tt.wantErr {
				t.Errorf("error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidateReset(t *testing.T) {
	req := api.ResetPasswordRequest{Email: "a@b.co", OTP: "123456", NewPassword: "newpass"}

	if err := ValidateReset(req, "newpass"); err != nil {
		t.Errorf("valid reset rejected: %v", err)
	}
	if err := ValidateReset(req, "different"); err == nil || err.Error() != "Passwords do not match." {
		t.Errorf("expected mismatch error, got %v", err)
	}

	bad := req
	bad.OTP = "12ab56"
	if err := ValidateReset(bad, "newpass"); err == nil {
		t.Error("expected error for non-numeric OTP")
	}

	bad = req
	bad.Email = ""
	if err := ValidateReset(bad, "newpass"); err == nil {
		t.Error("expected error for missing email")
	}
}

func newService(t *testing.T) (*Service, *apitest.Server, store.KV) {
	t.Helper()
	srv := apitest.NewServer(t)
	kv := store.NewMemory()
	return NewService(api.NewClient(srv.URL), kv), srv, kv
}

func TestServiceLogin(t *testing.T) {
	svc, srv, kv := newService(t)
	srv.AddUser("buyer@example.com", "secret1")

	if _, err := svc.Tokens(); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("expected ErrNotLoggedIn before login, got %v", err)
	}

	tokens, err := svc.Login(context.Background(), " buyer@example.com ", "secret1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	stored, err := svc.Tokens()
	if err != nil {
		t.Fatalf("Tokens failed: %v", err)
	}
	if stored != tokens {
		t.Errorf("stored tokens %+v differ from issued %+v", stored, tokens)
	}
	if svc.Email() != "buyer@example.com" {
		t.Errorf("Email = %q", svc.Email())
	}
	if v, _ := kv.Get(store.KeyRefreshToken); v != tokens.RefreshToken {
		t.Error("refresh token not written to storage")
	}
}

func TestServiceLogin_Failures(t *testing.T) {
	svc, srv, _ := newService(t)
	srv.AddUser("buyer@example.com", "secret1")

	_, err := svc.Login(context.Background(), "", "secret1")
	if DisplayError(err, "Login failed.") != "Email and password required" {
		t.Errorf("unexpected validation error: %v", err)
	}
	if srv.Count(api.PathLogin) != 0 {
		t.Error("invalid input should not reach the backend")
	}

	_, err = svc.Login(context.Background(), "buyer@example.com", "wrong!")
	if got := DisplayError(err, "Login failed."); got != "Invalid credentials" {
		t.Errorf("DisplayError = %q, want Invalid credentials", got)
	}
	if _, err := svc.Tokens(); !errors.Is(err, ErrNotLoggedIn) {
		t.Error("failed login should not store tokens")
	}
}

func TestServiceExpireAndLogout(t *testing.T) {
	svc, srv, _ := newService(t)
	srv.AddUser("a@b.co", "secret1")
	svc.Login(context.Background(), "a@b.co", "secret1")

	if err := svc.Expire(); err != nil {
		t.Fatalf("Expire failed: %v", err)
	}
	if _, err := svc.Tokens(); !errors.Is(err, ErrNotLoggedIn) {
		t.Error("Expire should drop tokens")
	}
	if svc.Email() != "a@b.co" {
		t.Error("Expire should keep the email")
	}

	if err := svc.Logout(); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if svc.Email() != "" {
		t.Error("Logout should forget the email")
	}
}

func TestServiceSaveTokens(t *testing.T) {
	svc, _, _ := newService(t)

	tp := types.TokenPair{AccessToken: "new", RefreshToken: "ref"}
	if err := svc.SaveTokens(tp); err != nil {
		t.Fatalf("SaveTokens failed: %v", err)
	}
	if got, _ := svc.Tokens(); got != tp {
		t.Errorf("Tokens = %+v, want %+v", got, tp)
	}
}

func TestServiceAccountFlows(t *testing.T) {
	svc, srv, _ := newService(t)
	ctx := context.Background()

	req := api.RegisterRequest{Name: "Asha", Phone: "9999999999", Email: "asha@example.com", City: "Pune", Password: "secret1"}
	if msg, err := svc.Register(ctx, req); err != nil || msg != "User created" {
		t.Fatalf("Register = %q, %v", msg, err)
	}
	if _, err := svc.Register(ctx, req); DisplayError(err, "Registration failed.") != "User already exists" {
		t.Errorf("expected duplicate error, got %v", err)
	}

	if _, err := svc.ForgotPassword(ctx, "not-an-email"); err == nil {
		t.Error("expected validation error")
	}
	if msg, err := svc.ForgotPassword(ctx, "asha@example.com"); err != nil || !strings.Contains(msg, "reset instructions") {
		t.Errorf("ForgotPassword = %q, %v", msg, err)
	}

	reset := api.ResetPasswordRequest{Email: "asha@example.com", OTP: "654321", NewPassword: "newpass"}
	_, err := svc.ResetPassword(ctx, reset, "newpass")
	if got := DisplayError(err, "Reset failed. Please check your OTP."); got != "Invalid or expired OTP" {
		t.Errorf("DisplayError = %q", got)
	}

	reset.OTP = apitest.ValidOTP
	if _, err := svc.ResetPassword(ctx, reset, "mismatch"); err == nil {
		t.Error("expected confirmation mismatch")
	}
	if srv.Count(api.PathResetPassword) != 1 {
		t.Errorf("mismatched confirmation should not reach the backend")
	}

	if msg, err := svc.ResetPassword(ctx, reset, "newpass"); err != nil || msg != "Password reset successful" {
		t.Errorf("ResetPassword = %q, %v", msg, err)
	}
	if _, err := svc.Login(ctx, "asha@example.com", "newpass"); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestDisplayError(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	_, transportErr := api.NewClient(url).Login(context.Background(), api.LoginRequest{Email: "a@b.co", Password: "x"})

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"form error", &FormError{Message: "Invalid email"}, "Invalid email"},
		{"wrapped form error", fmt.Errorf("register: %w", &FormError{Message: "Password too short"}), "Password too short"},
		{"backend message", &api.StatusError{Code: 400, Message: "User already exists"}, "User already exists"},
		{"backend without message", &api.StatusError{Code: 500}, "fallback"},
		{"malformed backend body", &api.StatusError{Code: 502, Malformed: true}, "fallback"},
		{"undecodable success", fmt.Errorf("%w: eof", api.ErrDecode), "fallback"},
		{"unreachable", transportErr, TextUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DisplayError(tt.err, "fallback"); got != tt.want {
				t.Errorf("DisplayError = %q, want %q", got, tt.want)
			}
		})
	}
}
