package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/FeelPulse/haven/internal/api"
	"github.com/FeelPulse/haven/internal/auth"
	"github.com/FeelPulse/haven/internal/config"
)

// fail reports msg and marks the command as failed
func (a *app) fail(msg string) error {
	fmt.Fprintf(a.out, "❌ %s\n", msg)
	return errSilent
}

func (a *app) cmdLogin(ctx context.Context) error {
	fmt.Fprintln(a.out, "🏠 Haven AI - Sign in")
	fmt.Fprintln(a.out)

	email, err := a.prompt("Email", a.auth.Email())
	if err != nil {
		return err
	}
	password, err := a.promptSecret("Password")
	if err != nil {
		return err
	}

	if _, err := a.auth.Login(ctx, email, password); err != nil {
		a.log.Debug("Login failed: %v", err)
		return a.fail(auth.DisplayError(err, "Login failed"))
	}

	fmt.Fprintf(a.out, "\n✅ Logged in as %s\n", email)
	a.saveConfig()
	fmt.Fprintln(a.out, "💬 Start chatting: haven chat")
	return nil
}

// saveConfig writes the settings in effect to the config file unless one
// already exists, so later runs keep the same backend
func (a *app) saveConfig() {
	if a.configPath == "" {
		return
	}
	if _, err := os.Stat(a.configPath); !errors.Is(err, fs.ErrNotExist) {
		return
	}
	if err := config.Save(a.cfg, a.configPath); err != nil {
		a.log.Warn("Failed to save config: %v", err)
		return
	}
	fmt.Fprintf(a.out, "📝 Settings saved to %s\n", a.configPath)
}

func (a *app) cmdRegister(ctx context.Context) error {
	fmt.Fprintln(a.out, "🏠 Haven AI - Create account")
	fmt.Fprintln(a.out)

	var req api.RegisterRequest
	fields := []struct {
		label string
		dst   *string
	}{
		{"Full name", &req.Name},
		{"Phone", &req.Phone},
		{"Email", &req.Email},
		{"City", &req.City},
	}
	for _, f := range fields {
		v, err := a.prompt(f.label, "")
		if err != nil {
			return err
		}
		*f.dst = v
	}
	password, err := a.promptSecret("Password")
	if err != nil {
		return err
	}
	req.Password = password

	msg, err := a.auth.Register(ctx, req)
	if err != nil {
		return a.fail(auth.DisplayError(err, "Registration failed"))
	}
	if msg == "" {
		msg = "Registration successful"
	}

	fmt.Fprintf(a.out, "\n✅ %s\n", msg)
	fmt.Fprintln(a.out, "🔑 Sign in: haven login")
	return nil
}

func (a *app) cmdForgotPassword(ctx context.Context) error {
	email, err := a.prompt("Email", a.auth.Email())
	if err != nil {
		return err
	}

	msg, err := a.auth.ForgotPassword(ctx, email)
	if err != nil {
		return a.fail(auth.DisplayError(err, "Failed to send OTP"))
	}
	if msg == "" {
		msg = "OTP sent to your email"
	}

	fmt.Fprintf(a.out, "✅ %s\n", msg)
	fmt.Fprintln(a.out, "🔑 Then run: haven reset-password")
	return nil
}

func (a *app) cmdResetPassword(ctx context.Context) error {
	var req api.ResetPasswordRequest
	var err error

	if req.Email, err = a.prompt("Email", a.auth.Email()); err != nil {
		return err
	}
	if req.OTP, err = a.prompt("OTP", ""); err != nil {
		return err
	}
	if req.NewPassword, err = a.promptSecret("New password"); err != nil {
		return err
	}
	confirm, err := a.promptSecret("Confirm password")
	if err != nil {
		return err
	}

	msg, err := a.auth.ResetPassword(ctx, req, confirm)
	if err != nil {
		return a.fail(auth.DisplayError(err, "Reset failed"))
	}
	if msg == "" {
		msg = "Password reset successful"
	}

	fmt.Fprintf(a.out, "✅ %s\n", msg)
	fmt.Fprintln(a.out, "🔑 Sign in: haven login")
	return nil
}

func (a *app) cmdLogout() error {
	if err := a.auth.Logout(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "✅ Logged out")
	return nil
}

func (a *app) cmdStatus() error {
	fmt.Fprintf(a.out, "📡 Backend: %s\n", a.client.BaseURL())

	tokens, err := a.auth.Tokens()
	if errors.Is(err, auth.ErrNotLoggedIn) {
		fmt.Fprintln(a.out, "❌ Not logged in")
		fmt.Fprintln(a.out, "\n🔑 Sign in: haven login")
		return nil
	}
	if err != nil {
		return err
	}

	if email := a.auth.Email(); email != "" {
		fmt.Fprintf(a.out, "✅ Logged in as %s\n", email)
	} else {
		fmt.Fprintln(a.out, "✅ Logged in")
	}

	if exp, ok := tokenExpiry(tokens.AccessToken); ok {
		now := time.Now()
		if exp.After(now) {
			fmt.Fprintf(a.out, "⏱️  Access token expires %s (in %s)\n", exp.Local().Format(time.RFC1123), exp.Sub(now).Round(time.Second))
		} else {
			fmt.Fprintf(a.out, "⏱️  Access token expired %s\n", exp.Local().Format(time.RFC1123))
		}
	}
	if tokens.RefreshToken != "" {
		fmt.Fprintln(a.out, "🔄 Refresh token stored")
	} else {
		fmt.Fprintln(a.out, "⚠️  No refresh token, the session ends when the access token expires")
	}
	return nil
}

// tokenExpiry reads the exp claim without verifying the signature. The
// backend holds the key; this is for display only.
func tokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
