package types

import "time"

// Role identifies who authored a chat message
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
)

// Message represents one entry in the chat log
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"type"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	Listings  []Listing `json:"properties,omitempty"` // nil when the reply carried no listings
}

// IsAgent reports whether the message was authored by the advisory service
func (m Message) IsAgent() bool {
	return m.Role == RoleAgent
}

// Clone returns a copy of m whose listings can be changed without touching m
func (m Message) Clone() Message {
	m.Listings = CloneListings(m.Listings)
	return m
}

// HasListings reports whether listings are attached to the message
func (m Message) HasListings() bool {
	return m.Listings != nil
}

// TokenPair holds the credentials attached to backend requests
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Empty reports whether no access token is present
func (t TokenPair) Empty() bool {
	return t.AccessToken == ""
}
