// Package llm holds the provider-agnostic conversation types shared by the
// relay, the session stores and the provider adapters.
package llm

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// ErrInvalidUTF8 is returned for turn content that is not valid UTF-8.
// Such content would not survive a JSON round trip unchanged.
var ErrInvalidUTF8 = errors.New("turn content is not valid UTF-8")

// Role is the author of a Turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	default:
		return false
	}
}

// Turn is one role-tagged message in a conversation. For assistant turns
// Content is always the fully accumulated text of a completed stream.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewTurn creates a Turn with the given role and content.
func NewTurn(role Role, content string) Turn {
	return Turn{Role: role, Content: content}
}

// Validate returns an error if the turn has an unknown role or content that
// is not valid UTF-8.
func (t Turn) Validate() error {
	if !t.Role.Valid() {
		return fmt.Errorf("invalid turn role: %q", t.Role)
	}
	if !utf8.ValidString(t.Content) {
		return ErrInvalidUTF8
	}
	return nil
}

// CloneTurns returns a copy of turns that shares no backing array with the input.
// A nil input yields an empty, non-nil slice so callers always serialize "[]".
func CloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
