// Package chat holds the conversation with the advisory backend: the message
// log, the in-flight guard, one-shot token refresh and reply decomposition.
package chat

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FeelPulse/haven/internal/api"
	"github.com/FeelPulse/haven/internal/listing"
	"github.com/FeelPulse/haven/internal/logger"
	"github.com/FeelPulse/haven/internal/metrics"
	"github.com/FeelPulse/haven/pkg/types"
)

// User-visible texts for failed sends
const (
	TextConnectivity   = "I'm having trouble connecting to my central intelligence. Please ensure the backend is active."
	TextInvalidReply   = "The server returned an invalid response."
	TextSessionExpired = "Your session has ended. Please log in again to continue."
	TextQuota          = "Great things take time! I've reached my daily limit for free AI consultations. Please try again tomorrow or consider upgrading your plan."
	TextUnexpected     = "An unexpected error occurred."
)

// quotaMarkers are substrings of backend errors that mean the AI quota ran out
var quotaMarkers = []string{"quota", "RESOURCE_EXHAUSTED"}

// Transport is the backend as seen by a session. *api.Client satisfies it.
type Transport interface {
	Chat(ctx context.Context, accessToken, message string) (*api.ChatReply, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
}

// State is the position of a send in the refresh protocol
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateAwaitingRefresh
	StateRetrying
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:            "idle",
	StateRequesting:      "requesting",
	StateAwaitingRefresh: "awaiting-refresh",
	StateRetrying:        "retrying",
	StateFailed:          "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// EventKind says what changed in a session
type EventKind int

const (
	EventMessage EventKind = iota // a message was appended
	EventLoading                  // the in-flight flag changed
	EventLogout                   // the session expired and logout ran
)

// Event is delivered to the notify callback after the change is visible
// through the session's accessors
type Event struct {
	Kind    EventKind
	Message types.Message // set for EventMessage
	Loading bool          // set for EventLoading
}

// Session is one conversation. Safe for use from multiple goroutines; at most
// one Send runs at a time and overlapping calls are rejected.
type Session struct {
	transport Transport

	mu       sync.Mutex
	messages []types.Message
	loading  bool
	state    State
	tokens   types.TokenPair
	latest   []types.Listing

	logout    func()
	refreshed func(types.TokenPair)
	notify    func(Event)
	welcome   string
	now       func() time.Time
	log       *logger.Logger
	metrics   *metrics.Collector
}

// Option configures a Session
type Option func(*Session)

// WithLogout sets the callback run when the session can no longer authenticate
func WithLogout(fn func()) Option {
	return func(s *Session) { s.logout = fn }
}

// WithTokenRefreshed sets the callback that receives the token pair after a
// successful refresh, so the caller can persist it
func WithTokenRefreshed(fn func(types.TokenPair)) Option {
	return func(s *Session) { s.refreshed = fn }
}

// WithNotify sets the callback for session events
func WithNotify(fn func(Event)) Option {
	return func(s *Session) { s.notify = fn }
}

// WithWelcome seeds the log with an agent greeting
func WithWelcome(text string) Option {
	return func(s *Session) { s.welcome = text }
}

// WithLogger sets the logger
func WithLogger(l *logger.Logger) Option {
	return func(s *Session) { s.log = l.WithComponent("chat") }
}

// WithMetrics records session activity on m
func WithMetrics(m *metrics.Collector) Option {
	return func(s *Session) { s.metrics = m }
}

// WithClock overrides the message timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// New creates a session that authenticates with tokens
func New(transport Transport, tokens types.TokenPair, opts ...Option) *Session {
	s := &Session{
		transport: transport,
		tokens:    tokens,
		state:     StateIdle,
		now:       time.Now,
		log:       logger.GetDefaultLogger().WithComponent("chat"),
		metrics:   metrics.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.welcome != "" {
		s.messages = append(s.messages, s.newMessage(types.RoleAgent, s.welcome, nil))
	}
	return s
}

// Messages returns a deep copy of the log in append order
func (s *Session) Messages() []types.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Message, len(s.messages))
	for i, m := range s.messages {
		out[i] = m.Clone()
	}
	return out
}

// Loading reports whether a send is in flight
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// State returns the refresh protocol state of the current or last send
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tokens returns the credentials the next request will use
func (s *Session) Tokens() types.TokenPair {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens
}

// Listings returns the listings of the most recent reply that carried any
func (s *Session) Listings() []types.Listing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return types.CloneListings(s.latest)
}

// Send posts text to the backend. It returns false without doing anything
// when text is blank or another send is in flight. Otherwise the user message
// is appended before any network call, and Send returns true once the agent
// message (reply or error text) has been appended.
func (s *Session) Send(ctx context.Context, text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}

	s.mu.Lock()
	if s.loading {
		s.mu.Unlock()
		return false
	}
	s.loading = true
	s.state = StateRequesting
	tokens := s.tokens
	userMsg := s.appendLocked(types.RoleUser, text, nil)
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessage, Message: userMsg})
	s.emit(Event{Kind: EventLoading, Loading: true})

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		s.emit(Event{Kind: EventLoading, Loading: false})
	}()

	reply, err := s.transport.Chat(ctx, tokens.AccessToken, text)
	if err != nil && api.IsUnauthorized(err) {
		s.setState(StateAwaitingRefresh)

		access, ok := s.refresh(ctx, tokens.RefreshToken)
		if !ok {
			s.expire()
			s.setState(StateFailed)
			return true
		}

		s.setState(StateRetrying)
		reply, err = s.transport.Chat(ctx, access, text)
		s.settle(reply, err)
		s.setState(StateIdle)
		return true
	}

	s.settle(reply, err)
	if err != nil {
		s.setState(StateFailed)
	} else {
		s.setState(StateIdle)
	}
	return true
}

// refresh trades the refresh token for a new access token and stores it
func (s *Session) refresh(ctx context.Context, refreshToken string) (string, bool) {
	if refreshToken == "" {
		s.log.Warn("Access token rejected and no refresh token is available")
		return "", false
	}

	access, err := s.transport.Refresh(ctx, refreshToken)
	if err != nil {
		s.log.Warn("Token refresh failed: %v", err)
		return "", false
	}

	s.mu.Lock()
	s.tokens.AccessToken = access
	tokens := s.tokens
	s.mu.Unlock()

	s.metrics.IncrementRefresh()
	s.log.Debug("Access token refreshed")
	if s.refreshed != nil {
		s.refreshed(tokens)
	}
	return access, true
}

// settle appends the agent message for a finished chat call
func (s *Session) settle(reply *api.ChatReply, err error) {
	if err != nil {
		text, kind, expired := classify(err)
		s.metrics.IncrementError(kind)
		s.log.Warn("Chat request failed (%s): %v", kind, err)
		if expired {
			s.expire()
			return
		}
		s.appendAgent(text, nil)
		return
	}

	text, listings := decompose(reply)
	if listings != nil {
		s.metrics.AddListings(len(listings))
		s.log.Debug("Reply carried %d listings", len(listings))
	}
	s.appendAgent(text, listings)
}

// expire reports the ended session and runs logout
func (s *Session) expire() {
	s.metrics.IncrementLogout()
	s.appendAgent(TextSessionExpired, nil)
	s.log.Info("Session expired, logging out")
	if s.logout != nil {
		s.logout()
	}
	s.emit(Event{Kind: EventLogout})
}

// decompose splits a successful reply into display text and listings,
// preferring a pre-separated properties array
func decompose(reply *api.ChatReply) (string, []types.Listing) {
	if len(reply.Properties) > 0 {
		if listings, ok := listing.Decode(reply.Properties); ok {
			return reply.Response, listings
		}
	}
	return listing.Extract(reply.Response)
}

// classify maps a failed chat call to its user-visible text and a metrics
// kind. expired is true when the failure ends the authenticated session.
func classify(err error) (text, kind string, expired bool) {
	se, ok := api.AsStatus(err)
	if !ok {
		if api.IsDecode(err) {
			return TextInvalidReply, "decode", false
		}
		return TextConnectivity, "transport", false
	}

	message := se.Message
	if se.Malformed {
		message = TextInvalidReply
	}

	switch {
	case se.Code == http.StatusTooManyRequests || containsAny(message, quotaMarkers):
		return TextQuota, "quota", false
	case se.Code == http.StatusUnauthorized || strings.Contains(message, "Token expired"):
		return TextSessionExpired, "auth", true
	case se.Malformed:
		return TextInvalidReply, "decode", false
	case message != "":
		return message, "backend", false
	default:
		return TextUnexpected, "backend", false
	}
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

func (s *Session) appendAgent(text string, listings []types.Listing) {
	s.mu.Lock()
	msg := s.appendLocked(types.RoleAgent, text, listings)
	if listings != nil {
		s.latest = msg.Listings
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventMessage, Message: msg.Clone()})
}

// appendLocked adds a message to the log; caller holds mu
func (s *Session) appendLocked(role types.Role, text string, listings []types.Listing) types.Message {
	msg := s.newMessage(role, text, listings)
	s.messages = append(s.messages, msg)
	s.metrics.IncrementMessages(string(role))
	return msg
}

func (s *Session) newMessage(role types.Role, text string, listings []types.Listing) types.Message {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return types.Message{
		ID:        id.String(),
		Role:      role,
		Text:      text,
		Timestamp: s.now(),
		Listings:  types.CloneListings(listings),
	}
}

func (s *Session) emit(e Event) {
	if s.notify != nil {
		s.notify(e)
	}
}
