// Package sharing models the access-control entries copied between accounts.
package sharing

import (
	"fmt"
	"strings"
)

// ScopeType is who an entry grants access to
type ScopeType string

const (
	ScopeUser   ScopeType = "user"
	ScopeGroup  ScopeType = "group"
	ScopeDomain ScopeType = "domain"
	ScopeAnyone ScopeType = "anyone"
)

// Role is the access level an entry grants
type Role string

const (
	RoleOwner     Role = "owner"
	RoleOrganizer Role = "organizer"
	RoleWriter    Role = "writer"
	RoleCommenter Role = "commenter"
	RoleReader    Role = "reader"
)

// Entry is one sharing grant on a document. Two entries are the same entry
// when their scope identifiers are equal, whatever their type and role.
type Entry struct {
	ScopeType ScopeType `json:"scopeType"`
	Role      Role      `json:"role"`
	// ScopeID is an email address or a domain; empty for anyone
	ScopeID string `json:"scopeId,omitempty"`
}

// NewEntry creates an entry
func NewEntry(scopeType ScopeType, role Role, scopeID string) Entry {
	return Entry{ScopeType: scopeType, Role: role, ScopeID: scopeID}
}

// Key is the identity of the entry
func (e Entry) Key() string {
	return e.ScopeID
}

// Matches reports whether the entry is scoped to identifier, ignoring case
func (e Entry) Matches(identifier string) bool {
	return e.ScopeID != "" && strings.EqualFold(e.ScopeID, identifier)
}

// Equal reports whether e and other are the same entry
func (e Entry) Equal(other Entry) bool {
	return e.Key() == other.Key()
}

func (e Entry) String() string {
	if e.ScopeID == "" {
		return fmt.Sprintf("%s:%s", e.ScopeType, e.Role)
	}
	return fmt.Sprintf("%s:%s:%s", e.ScopeType, e.Role, e.ScopeID)
}

// Set holds at most one entry per key. The first entry added for a key wins,
// and iteration follows insertion order.
type Set struct {
	index   map[string]int
	entries []Entry
}

// NewSet creates a set holding entries, first-wins
func NewSet(entries ...Entry) *Set {
	s := &Set{index: make(map[string]int)}
	for _, e := range entries {
		s.Add(e)
	}
	return s
}

// Add inserts e unless an entry with the same key is present. It reports whether e was added.
func (s *Set) Add(e Entry) bool {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if _, ok := s.index[e.Key()]; ok {
		return false
	}
	s.index[e.Key()] = len(s.entries)
	s.entries = append(s.entries, e)
	return true
}

// Get returns the entry stored for key
func (s *Set) Get(key string) (Entry, bool) {
	i, ok := s.index[key]
	if !ok {
		return Entry{}, false
	}
	return s.entries[i], true
}

// Contains reports whether an entry with e's key is present
func (s *Set) Contains(e Entry) bool {
	_, ok := s.index[e.Key()]
	return ok
}

func (s *Set) Len() int {
	return len(s.entries)
}

// Entries returns the entries in insertion order
func (s *Set) Entries() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Without returns a new set without the entries matching any of identifiers
func (s *Set) Without(identifiers ...string) *Set {
	out := NewSet()
	for _, e := range s.entries {
		excluded := false
		for _, id := range identifiers {
			if e.Matches(id) {
				excluded = true
				break
			}
		}
		if !excluded {
			out.Add(e)
		}
	}
	return out
}

// Find returns the first entry matching identifier, ignoring case
func (s *Set) Find(identifier string) (Entry, bool) {
	for _, e := range s.entries {
		if e.Matches(identifier) {
			return e, true
		}
	}
	return Entry{}, false
}
