// Package apitest runs an in-process stand-in for the Haven backend so the
// client, the chat session and the CLI can be tested end to end.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/FeelPulse/haven/pkg/types"
)

// ValidOTP is the one-time code the fake backend accepts for password resets
const ValidOTP = "123456"

// ChatStep is one scripted /chat response. Scripted steps bypass token checks.
type ChatStep struct {
	Status int
	Body   string
}

// Server is a fake backend
type Server struct {
	*httptest.Server

	secret      []byte
	accessTTL   time.Duration
	mu          sync.Mutex
	counts      map[string]int
	script      []ChatStep
	failRefresh bool
	users       map[string]string // email -> password
	chatAuth    []string
	chatInputs  []string
	reply       func(message string) string
}

// NewServer starts a fake backend that is closed when the test ends
func NewServer(t testing.TB) *Server {
	t.Helper()

	s := &Server{
		secret:    []byte("apitest-secret"),
		accessTTL: 15 * time.Minute,
		counts:    make(map[string]int),
		users:     make(map[string]string),
		reply: func(message string) string {
			return "You said: " + message
		},
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.count)

	r.Post("/chat", s.handleChat)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.handleLogin)
		r.Post("/refresh", s.handleRefresh)
		r.Post("/register", s.handleRegister)
		r.Post("/forgot-password", s.handleForgotPassword)
		r.Post("/reset-password", s.handleResetPassword)
	})
	return r
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.counts[r.URL.Path]++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// AddUser registers credentials accepted by /auth/login
func (s *Server) AddUser(email, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[email] = password
}

// QueueChat scripts the next /chat responses in order
func (s *Server) QueueChat(steps ...ChatStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = append(s.script, steps...)
}

// SetReply sets the response text for authenticated, unscripted /chat calls
func (s *Server) SetReply(fn func(message string) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = fn
}

// SetRefreshFailure makes /auth/refresh reject every token
func (s *Server) SetRefreshFailure(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRefresh = fail
}

// Count returns how many requests hit path
func (s *Server) Count(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[path]
}

// ChatAuthorizations returns the Authorization headers seen on /chat, in order
func (s *Server) ChatAuthorizations() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chatAuth...)
}

// ChatMessages returns the message bodies seen on /chat, in order
func (s *Server) ChatMessages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.chatInputs...)
}

// IssueTokens mints a valid token pair for email
func (s *Server) IssueTokens(email string) types.TokenPair {
	return types.TokenPair{
		AccessToken:  s.sign(email, "access", s.accessTTL),
		RefreshToken: s.sign(email, "refresh", 7*24*time.Hour),
	}
}

// ExpiredAccessToken mints an access token that is already expired
func (s *Server) ExpiredAccessToken(email string) string {
	return s.sign(email, "access", -time.Minute)
}

func (s *Server) sign(email, kind string, ttl time.Duration) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"jti":   uuid.NewString(),
		"email": email,
		"type":  kind,
		"iat":   now.Unix(),
		"exp":   now.Add(ttl).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	return token
}

// verify checks signature, expiry and token type, returning the email claim
func (s *Server) verify(tokenString, kind string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if claims["type"] != kind {
		return "", fmt.Errorf("invalid token type")
	}
	email, _ := claims["email"].(string)
	return email, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Message string `json:"message"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	s.chatAuth = append(s.chatAuth, r.Header.Get("Authorization"))
	s.chatInputs = append(s.chatInputs, req.Message)
	var step *ChatStep
	if len(s.script) > 0 {
		step = &s.script[0]
		s.script = s.script[1:]
	}
	reply := s.reply
	s.mu.Unlock()

	if step != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(step.Status)
		w.Write([]byte(step.Body))
		return
	}

	bearer := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if _, err := s.verify(bearer, "access"); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Token expired"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Message required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"response": reply(req.Message)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Email and password required"})
		return
	}

	s.mu.Lock()
	password, ok := s.users[req.Email]
	s.mu.Unlock()
	if !ok || password != req.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid credentials"})
		return
	}

	tokens := s.IssueTokens(req.Email)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":       "Login successful",
		"access_token":  tokens.AccessToken,
		"refresh_token": tokens.RefreshToken,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	json.NewDecoder(r.Body).Decode(&req)
	if req.RefreshToken == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing refresh token"})
		return
	}

	s.mu.Lock()
	fail := s.failRefresh
	s.mu.Unlock()

	email, err := s.verify(req.RefreshToken, "refresh")
	if fail || err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"access_token": s.sign(email, "access", s.accessTTL)})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"name"`
		Phone    string `json:"phone"`
		Email    string `json:"email"`
		City     string `json:"city"`
		Password string `json:"password"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	_, exists := s.users[req.Email]
	if !exists {
		s.users[req.Email] = req.Password
	}
	s.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "User already exists"})
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "User created"})
}

func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "If an account exists for this email, you will receive reset instructions.",
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		OTP         string `json:"otp"`
		NewPassword string `json:"new_password"`
	}
	json.NewDecoder(r.Body).Decode(&req)

	if req.OTP != ValidOTP {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired OTP"})
		return
	}

	s.mu.Lock()
	s.users[req.Email] = req.NewPassword
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password reset successful"})
}
