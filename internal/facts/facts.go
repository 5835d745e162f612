// Package facts stores remembered notes about users and the server, and
// ranks them against an incoming message by embedding similarity.
package facts

import "fmt"

// Note is a remembered statement. Embedding is nil when the note was saved
// without one; such notes are never ranked.
type Note struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// UserRecord holds everything remembered about one user.
type UserRecord struct {
	Notes []Note `json:"notes"`
}

// ServerRecord holds server-wide memory.
type ServerRecord struct {
	Notes          []Note         `json:"notes"`
	Relationships  map[string]any `json:"relationships"`
	CurrentPersona *string        `json:"current_persona,omitempty"`
}

// Memory is the whole persisted memory document.
type Memory struct {
	Users  map[string]*UserRecord `json:"users"`
	Server ServerRecord           `json:"server"`
}

// NewMemory returns the empty document used when nothing is persisted yet.
func NewMemory() *Memory {
	m := &Memory{}
	m.normalise()
	return m
}

// normalise replaces nil collections so that the document always encodes
// as the canonical shape and callers can append without nil checks.
func (m *Memory) normalise() {
	if m.Users == nil {
		m.Users = make(map[string]*UserRecord)
	}
	for id, u := range m.Users {
		if u == nil {
			u = &UserRecord{}
			m.Users[id] = u
		}
		if u.Notes == nil {
			u.Notes = []Note{}
		}
	}
	if m.Server.Notes == nil {
		m.Server.Notes = []Note{}
	}
	if m.Server.Relationships == nil {
		m.Server.Relationships = make(map[string]any)
	}
}

// Scope selects whose notes an operation addresses.
type Scope struct {
	userID string
	server bool
}

// UserScope addresses the notes of one user.
func UserScope(userID string) Scope { return Scope{userID: userID} }

// ServerScope addresses server-wide notes.
func ServerScope() Scope { return Scope{server: true} }

// IsServer reports whether s addresses server-wide notes.
func (s Scope) IsServer() bool { return s.server }

// UserID returns the user addressed by s, or "" for the server scope.
func (s Scope) UserID() string { return s.userID }

func (s Scope) String() string {
	if s.server {
		return "server"
	}
	return fmt.Sprintf("user:%s", s.userID)
}

// notes returns the notes for s in m, or nil.
func (m *Memory) notes(s Scope) []Note {
	if s.server {
		return m.Server.Notes
	}
	if u := m.Users[s.userID]; u != nil {
		return u.Notes
	}
	return nil
}
