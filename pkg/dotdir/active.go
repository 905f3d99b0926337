package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	activeFile = "active.json"
)

// ActiveState is the session the CLI chat resumes by default.
type ActiveState struct {
	Owner   string `json:"owner"`
	Session string `json:"session"`
}

// LoadActive loads the active session state from .scribe/active.json.
// Returns nil, nil if no session has been selected yet.
func (m *Manager) LoadActive(overrideDir string) (*ActiveState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, activeFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading active session: %w", err)
	}

	state := &ActiveState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing active session: %w", err)
	}

	return state, nil
}

// SaveActive persists the active session state.
func (m *Manager) SaveActive(state *ActiveState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil active session")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling active session: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, activeFile), data, 0o600); err != nil {
		return fmt.Errorf("writing active session: %w", err)
	}

	return nil
}

// ClearActive removes the active session state so the next chat starts in
// a scratch session. Returns nil if it was already cleared.
func (m *Manager) ClearActive(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, activeFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing active session: %w", err)
	}

	return nil
}
