// Package session defines the persisted form of named chat sessions and the
// Store interface implemented by each storage driver.
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
)

const (
	// MaxNameLength bounds session names and owner ids in bytes.
	MaxNameLength = 128

	// fileSuffix is stripped from session names so "demo" and "demo.json"
	// address the same session.
	fileSuffix = ".json"
)

// Session is one named, ordered conversation belonging to an owner.
type Session struct {
	Owner     string     `json:"-"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	History   []llm.Turn `json:"history"`
}

// Empty returns a session with no turns and zero timestamps. It is what Load
// yields for a session that was never saved.
func Empty(owner, name string) *Session {
	return &Session{
		Owner:   owner,
		Name:    name,
		History: []llm.Turn{},
	}
}

// Meta describes a session in a listing.
type Meta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     int       `json:"turns"`
}

// NormalizeName trims surrounding whitespace and a trailing ".json".
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	return strings.TrimSuffix(name, fileSuffix)
}

// ValidateName normalizes name and checks that it is safe to use as a
// single path element.
func ValidateName(name string) (string, error) {
	name = NormalizeName(name)
	if err := validateSegment(name); err != nil {
		return "", &InvalidNameError{Kind: "session", Value: name, Reason: err.Error()}
	}
	return name, nil
}

// ValidateOwner checks that owner is safe to use as a single path element.
func ValidateOwner(owner string) error {
	if err := validateSegment(owner); err != nil {
		return &InvalidNameError{Kind: "owner", Value: owner, Reason: err.Error()}
	}
	return nil
}

func validateSegment(s string) error {
	switch {
	case s == "":
		return fmt.Errorf("must not be empty")
	case len(s) > MaxNameLength:
		return fmt.Errorf("longer than %d bytes", MaxNameLength)
	case strings.HasPrefix(s, "."):
		return fmt.Errorf("must not start with a dot")
	case strings.ContainsAny(s, `/\`):
		return fmt.Errorf("must not contain path separators")
	case strings.ContainsRune(s, 0):
		return fmt.Errorf("must not contain NUL")
	}
	return nil
}

// Validate checks owner and name together and returns the normalized name.
func Validate(owner, name string) (string, error) {
	if err := ValidateOwner(owner); err != nil {
		return "", err
	}
	return ValidateName(name)
}

// DefaultName returns the name given to the n-th session when the user does
// not pick one, following "chat_<n>".
func DefaultName(existing []Meta) string {
	taken := make(map[string]struct{}, len(existing))
	for _, m := range existing {
		taken[m.Name] = struct{}{}
	}

	for n := len(existing) + 1; ; n++ {
		name := fmt.Sprintf("chat_%d", n)
		if _, ok := taken[name]; !ok {
			return name
		}
	}
}
