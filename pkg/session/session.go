// Package session implements the server-side, per-visitor key/value store that
// backs the basket, page statistics and login state.
package session

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// KV is the per-session surface handed to components. Values are JSON encoded.
type KV interface {
	Get(key string, dest any) (bool, error)
	Set(key string, value any) error
	Delete(key string)
	Has(key string) bool
}

// Session is one visitor's key/value state. It is not safe for concurrent use;
// a session is handled by one request at a time.
type Session struct {
	id         string
	previousID string
	values     map[string]json.RawMessage
	isNew      bool
	modified   bool
}

var _ KV = (*Session)(nil)

// New returns an empty session with a fresh identifier.
func New() *Session {
	return &Session{
		id:     NewID(),
		values: map[string]json.RawMessage{},
		isNew:  true,
	}
}

// NewID generates a session identifier.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id looks like an identifier produced by NewID.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func restore(id string, values map[string]json.RawMessage) *Session {
	if values == nil {
		values = map[string]json.RawMessage{}
	}
	return &Session{id: id, values: values}
}

func (s *Session) ID() string { return s.id }

// PreviousID is the identifier the session had before a Flush or CycleID, if any.
func (s *Session) PreviousID() string { return s.previousID }

func (s *Session) IsNew() bool { return s.isNew }

func (s *Session) Modified() bool { return s.modified }

func (s *Session) Len() int { return len(s.values) }

// Get decodes the value stored under key into dest. It reports false when the key is absent.
func (s *Session) Get(key string, dest any) (bool, error) {
	raw, ok := s.values[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return true, fmt.Errorf("decode session key %q: %w", key, err)
	}
	return true, nil
}

// Set stores value under key.
func (s *Session) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode session key %q: %w", key, err)
	}
	s.values[key] = raw
	s.modified = true
	return nil
}

// Delete removes key; missing keys are ignored.
func (s *Session) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	s.modified = true
}

func (s *Session) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Keys returns the stored keys in lexical order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CycleID assigns a new identifier while keeping the data (used on login).
func (s *Session) CycleID() {
	if s.previousID == "" && !s.isNew {
		s.previousID = s.id
	}
	s.id = NewID()
	s.modified = true
}

// Flush drops every value and rotates the identifier (used on logout).
func (s *Session) Flush() {
	s.values = map[string]json.RawMessage{}
	s.CycleID()
}

func (s *Session) snapshot() ([]byte, error) {
	return json.Marshal(s.values)
}
