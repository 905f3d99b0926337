// Package dotdir manages the .scribe/ and ~/.scribe directories.
//
// Besides config and credentials, the directory holds the active session
// state: which session "scribe chat" resumes when no name is given.
package dotdir

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// dirName is the name of the scribe directory.
	dirName = ".scribe"
)

type Manager struct{}

func NewManager() *Manager {
	return &Manager{}
}

// Target returns the target absolute path to a .scribe/ directory.
// Order of precedence is as follows:
//  1. Provided override
//  2. Local ./.scribe/ dir
//  3. Home ~/.scribe/ dir
//
// The resolved directory is created if it does not exist.
func (m *Manager) Target(overrideDir string) (string, error) {
	var dir string

	switch {
	case overrideDir != "":
		dir = overrideDir

	case m.localDirExists():
		cwd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting current directory: %w", err)
		}
		dir = filepath.Join(cwd, dirName)

	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, dirName)
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("creating scribe directory %s: %w", dir, err)
	}

	return filepath.Abs(dir)
}

// SessionsDir returns the default root of the file session store inside
// the resolved .scribe/ directory.
func (m *Manager) SessionsDir(overrideDir string) (string, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "sessions"), nil
}

// localDirExists checks whether a .scribe/ directory exists in the current
// working directory.
func (m *Manager) localDirExists() bool {
	cwd, err := os.Getwd()
	if err != nil {
		return false
	}

	info, err := os.Stat(filepath.Join(cwd, dirName))
	return err == nil && info.IsDir()
}
