// Package store keeps the per-user session values (the token pair) between
// invocations, the way a browser keeps them in session storage.
package store

import (
	"sync"

	"github.com/FeelPulse/haven/pkg/types"
)

// Session keys
const (
	KeyAccessToken  = "access_token"
	KeyRefreshToken = "refresh_token"
	KeyEmail        = "email" // account the tokens were issued to
)

// KV is string key/value session storage. Get returns "" for missing keys.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
	Clear() error
}

// Toucher is implemented by stores that prune idle values
type Toucher interface {
	Touch(keys ...string) error
}

// TouchSession marks the session values as used so idle pruning keeps them.
// Stores without idle pruning ignore it.
func TouchSession(kv KV) error {
	t, ok := kv.(Toucher)
	if !ok {
		return nil
	}
	return t.Touch(KeyAccessToken, KeyRefreshToken, KeyEmail)
}

// LoadTokens reads the token pair from kv
func LoadTokens(kv KV) (types.TokenPair, error) {
	access, err := kv.Get(KeyAccessToken)
	if err != nil {
		return types.TokenPair{}, err
	}
	refresh, err := kv.Get(KeyRefreshToken)
	if err != nil {
		return types.TokenPair{}, err
	}
	return types.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// SaveTokens writes the token pair to kv. An empty refresh token removes the stored one.
func SaveTokens(kv KV, tokens types.TokenPair) error {
	if err := kv.Set(KeyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if tokens.RefreshToken == "" {
		return kv.Delete(KeyRefreshToken)
	}
	return kv.Set(KeyRefreshToken, tokens.RefreshToken)
}

// ClearTokens removes both tokens
func ClearTokens(kv KV) error {
	if err := kv.Delete(KeyAccessToken); err != nil {
		return err
	}
	return kv.Delete(KeyRefreshToken)
}

// Memory is process-lifetime session storage
type Memory struct {
	values map[string]string
	mu     sync.RWMutex
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{values: make(map[string]string)}
}

func (m *Memory) Get(key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.values[key], nil
}

func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *Memory) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *Memory) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string]string)
	return nil
}
