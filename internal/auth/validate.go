package auth

import (
	"regexp"
	"strings"

	"github.com/FeelPulse/haven/internal/api"
)

const minPasswordLength = 6

var emailPattern = regexp.MustCompile(`^[\w.-]+@[\w.-]+\.\w+$`)

var otpPattern = regexp.MustCompile(`^\d{6}$`)

// FormError is a problem with user input, caught before any request is made
type FormError struct {
	Message string
}

func (e *FormError) Error() string {
	return e.Message
}

func formError(msg string) error {
	return &FormError{Message: msg}
}

// ValidateEmail checks the address shape the backend accepts
func ValidateEmail(email string) error {
	if !emailPattern.MatchString(email) {
		return formError("Invalid email")
	}
	return nil
}

// ValidatePassword enforces the minimum password length
func ValidatePassword(password string) error {
	if len(password) < minPasswordLength {
		return formError("Password too short")
	}
	return nil
}

// ValidateLogin checks login input
func ValidateLogin(email, password string) error {
	if strings.TrimSpace(email) == "" || password == "" {
		return formError("Email and password required")
	}
	return nil
}

// ValidateRegister checks that every field is present, then email and password
func ValidateRegister(req api.RegisterRequest) error {
	fields := []struct {
		name, value string
	}{
		{"name", req.Name},
		{"email", req.Email},
		{"password", req.Password},
		{"phone", req.Phone},
		{"city", req.City},
	}

	var missing []string
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return formError("Missing fields: " + strings.Join(missing, ", "))
	}

	if err := ValidateEmail(req.Email); err != nil {
		return err
	}
	return ValidatePassword(req.Password)
}

// ValidateReset checks a password reset form, including the confirmation field
func ValidateReset(req api.ResetPasswordRequest, confirm string) error {
	if strings.TrimSpace(req.Email) == "" || req.OTP == "" || req.NewPassword == "" {
		return formError("Email, OTP and new password required")
	}
	if req.NewPassword != confirm {
		return formError("Passwords do not match.")
	}
	if !otpPattern.MatchString(req.OTP) {
		return formError("OTP must be 6 digits")
	}
	return ValidatePassword(req.NewPassword)
}
