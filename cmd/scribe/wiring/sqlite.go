package wiring

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/papercomputeco/scribe/pkg/dotdir"
)

const defaultSQLiteName = "scribe.db"

// ResolveSQLitePath picks the SQLite session database. An explicit path
// wins, then SCRIBE_DB, then an existing database in the working directory,
// and finally scribe.db inside the resolved .scribe/ directory.
func ResolveSQLitePath(override, configDir string) (string, error) {
	if override != "" {
		return override, nil
	}

	if envPath := strings.TrimSpace(os.Getenv("SCRIBE_DB")); envPath != "" {
		return envPath, nil
	}

	for _, candidate := range []string{"scribe.db", "scribe.sqlite"} {
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Abs(candidate)
		}
	}

	target, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(target, defaultSQLiteName), nil
}
