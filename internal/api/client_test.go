package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/FeelPulse/haven/internal/apitest"
	"github.com/FeelPulse/haven/internal/logger"
	"github.com/FeelPulse/haven/internal/metrics"
)

func TestNewClientDefaults(t *testing.T) {
	c := NewClient("")
	if c.BaseURL() != DefaultBaseURL {
		t.Errorf("BaseURL = %s, want %s", c.BaseURL(), DefaultBaseURL)
	}

	c = NewClient("http://example.test/api/")
	if c.BaseURL() != "http://example.test/api" {
		t.Errorf("trailing slash should be trimmed, got %s", c.BaseURL())
	}
}

func TestClientChat(t *testing.T) {
	srv := apitest.NewServer(t)
	tokens := srv.IssueTokens("buyer@example.com")
	m := metrics.NewCollector()
	c := NewClient(srv.URL, WithMetrics(m))

	reply, err := c.Chat(context.Background(), tokens.AccessToken, "3 BHK in Mumbai")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply.Response != "You said: 3 BHK in Mumbai" {
		t.Errorf("Response = %q", reply.Response)
	}

	auth := srv.ChatAuthorizations()
	if len(auth) != 1 || auth[0] != "Bearer "+tokens.AccessToken {
		t.Errorf("unexpected Authorization headers: %v", auth)
	}
	if m.GetRequests()[PathChat] != 1 {
		t.Errorf("expected one /chat request recorded, got %v", m.GetRequests())
	}
}

func TestClientChat_PreSeparatedProperties(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.QueueChat(apitest.ChatStep{
		Status: http.StatusOK,
		Body:   `{"response":"One match","properties":[{"_id":"p1","title":"Villa"}]}`,
	})
	c := NewClient(srv.URL)

	reply, err := c.Chat(context.Background(), "any", "villa")
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if reply.Response != "One match" {
		t.Errorf("Response = %q", reply.Response)
	}
	if !strings.Contains(string(reply.Properties), `"p1"`) {
		t.Errorf("Properties = %s", reply.Properties)
	}
}

func TestClientChat_Unauthorized(t *testing.T) {
	srv := apitest.NewServer(t)
	c := NewClient(srv.URL)

	_, err := c.Chat(context.Background(), srv.ExpiredAccessToken("a@b.co"), "hello")
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if !IsUnauthorized(err) {
		t.Errorf("expected unauthorized error, got %v", err)
	}
	se, ok := AsStatus(err)
	if !ok || se.Message != "Token expired" {
		t.Errorf("unexpected status error: %#v", se)
	}
}

func TestClientChat_ErrorKinds(t *testing.T) {
	tests := []struct {
		name          string
		step          apitest.ChatStep
		wantStatus    int
		wantMessage   string
		wantDecode    bool
		wantMalformed bool
	}{
		{
			name:        "backend error field",
			step:        apitest.ChatStep{Status: 500, Body: `{"error":"429 RESOURCE_EXHAUSTED"}`},
			wantStatus:  500,
			wantMessage: "429 RESOURCE_EXHAUSTED",
		},
		{
			name:        "message field fallback",
			step:        apitest.ChatStep{Status: 400, Body: `{"success":false,"message":"Missing fields"}`},
			wantStatus:  400,
			wantMessage: "Missing fields",
		},
		{
			name:          "html error page",
			step:          apitest.ChatStep{Status: 502, Body: `<html>Bad Gateway</html>`},
			wantStatus:    502,
			wantDecode:    true,
			wantMalformed: true,
		},
		{
			name:       "success with invalid body",
			step:       apitest.ChatStep{Status: 200, Body: `not json`},
			wantDecode: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apitest.NewServer(t)
			srv.QueueChat(tt.step)
			c := NewClient(srv.URL)

			_, err := c.Chat(context.Background(), "tok", "hi")
			if err == nil {
				t.Fatal("expected error")
			}
			if IsDecode(err) != tt.wantDecode {
				t.Errorf("IsDecode = %v, want %v (err: %v)", IsDecode(err), tt.wantDecode, err)
			}

			se, ok := AsStatus(err)
			if tt.wantStatus == 0 {
				if ok {
					t.Errorf("unexpected status error %v", se)
				}
				if !errors.Is(err, ErrDecode) {
					t.Errorf("expected ErrDecode, got %v", err)
				}
				return
			}
			if !ok {
				t.Fatalf("expected StatusError, got %T", err)
			}
			if se.Code != tt.wantStatus {
				t.Errorf("Code = %d, want %d", se.Code, tt.wantStatus)
			}
			if se.Message != tt.wantMessage {
				t.Errorf("Message = %q, want %q", se.Message, tt.wantMessage)
			}
			if se.Malformed != tt.wantMalformed {
				t.Errorf("Malformed = %v, want %v", se.Malformed, tt.wantMalformed)
			}
		})
	}
}

func TestClientChat_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, WithTimeout(2*time.Second))
	_, err := c.Chat(context.Background(), "tok", "hi")
	if err == nil {
		t.Fatal("expected transport error")
	}
	if _, ok := AsStatus(err); ok {
		t.Error("transport failure should not be a StatusError")
	}
	if IsDecode(err) {
		t.Error("transport failure should not be a decode error")
	}
}

func TestClientRefresh(t *testing.T) {
	srv := apitest.NewServer(t)
	tokens := srv.IssueTokens("a@b.co")
	c := NewClient(srv.URL)

	access, err := c.Refresh(context.Background(), tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if access == "" || access == tokens.AccessToken {
		t.Errorf("expected a new access token, got %q", access)
	}

	// An access token is not a refresh token
	if _, err := c.Refresh(context.Background(), tokens.AccessToken); !IsUnauthorized(err) {
		t.Errorf("expected unauthorized for wrong token type, got %v", err)
	}

	srv.SetRefreshFailure(true)
	if _, err := c.Refresh(context.Background(), tokens.RefreshToken); !IsUnauthorized(err) {
		t.Errorf("expected unauthorized when refresh is rejected, got %v", err)
	}
	if srv.Count(PathRefresh) != 3 {
		t.Errorf("expected 3 refresh calls, got %d", srv.Count(PathRefresh))
	}
}

func TestClientLogin(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("a@b.co", "secret1")
	c := NewClient(srv.URL)

	tokens, err := c.Login(context.Background(), LoginRequest{Email: "a@b.co", Password: "secret1"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Errorf("expected both tokens, got %+v", tokens)
	}

	_, err = c.Login(context.Background(), LoginRequest{Email: "a@b.co", Password: "wrong"})
	se, ok := AsStatus(err)
	if !ok || se.Code != http.StatusUnauthorized || se.Message != "Invalid credentials" {
		t.Errorf("unexpected login failure: %v", err)
	}
}

func TestClientAccountFlows(t *testing.T) {
	srv := apitest.NewServer(t)
	c := NewClient(srv.URL)
	ctx := context.Background()

	msg, err := c.Register(ctx, RegisterRequest{Name: "Asha", Phone: "9999999999", Email: "asha@example.com", City: "Pune", Password: "secret1"})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if msg != "User created" {
		t.Errorf("Register message = %q", msg)
	}

	_, err = c.Register(ctx, RegisterRequest{Email: "asha@example.com", Password: "secret1"})
	if se, ok := AsStatus(err); !ok || se.Message != "User already exists" {
		t.Errorf("expected duplicate registration error, got %v", err)
	}

	msg, err = c.ForgotPassword(ctx, "asha@example.com")
	if err != nil || !strings.Contains(msg, "reset instructions") {
		t.Errorf("ForgotPassword = %q, %v", msg, err)
	}

	if _, err := c.ResetPassword(ctx, ResetPasswordRequest{Email: "asha@example.com", OTP: "000000", NewPassword: "newpass"}); err == nil {
		t.Error("expected error for wrong OTP")
	}

	msg, err = c.ResetPassword(ctx, ResetPasswordRequest{Email: "asha@example.com", OTP: apitest.ValidOTP, NewPassword: "newpass"})
	if err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}
	if msg != "Password reset successful" {
		t.Errorf("ResetPassword message = %q", msg)
	}

	if _, err := c.Login(ctx, LoginRequest{Email: "asha@example.com", Password: "newpass"}); err != nil {
		t.Errorf("login with new password failed: %v", err)
	}
}

func TestClientContextCancelled(t *testing.T) {
	srv := apitest.NewServer(t)
	c := NewClient(srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.Chat(ctx, "tok", "hi"); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestClientLogsRequestPath(t *testing.T) {
	srv := apitest.NewServer(t)
	tokens := srv.IssueTokens("buyer@example.com")

	buf := &bytes.Buffer{}
	log := logger.New(&logger.Config{Level: "debug", Component: "api"})
	log.SetOutput(buf)
	c := NewClient(srv.URL, WithLogger(log))

	if _, err := c.Chat(context.Background(), tokens.AccessToken, "hello"); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}

	output := buf.String()
	if !strings.Contains(output, "POST -> 200") || !strings.Contains(output, "path="+PathChat) {
		t.Errorf("request line should carry the path field, got: %s", output)
	}
}
