// Package sessionutils builds a session.Store from configuration.
package sessionutils

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/session/file"
	"github.com/papercomputeco/scribe/pkg/session/inmemory"
	"github.com/papercomputeco/scribe/pkg/session/sqlstore"
)

// Supported storage drivers.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type NewStoreOpts struct {
	Driver      string
	Dir         string
	SQLitePath  string
	PostgresDSN string
	Logger      *slog.Logger
}

func NewStore(ctx context.Context, o *NewStoreOpts) (session.Store, error) {
	switch o.Driver {
	case DriverFile, "":
		opts := []file.Option{}
		if o.Logger != nil {
			opts = append(opts, file.WithLogger(o.Logger))
		}
		return file.NewDriver(o.Dir, opts...)
	case DriverMemory:
		return inmemory.NewDriver(), nil
	case DriverSQLite:
		if o.SQLitePath == "" {
			return nil, fmt.Errorf("storage driver %q requires a sqlite path", o.Driver)
		}
		return sqlstore.NewSQLite(ctx, o.SQLitePath)
	case DriverPostgres:
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("storage driver %q requires a postgres dsn", o.Driver)
		}
		return sqlstore.NewPostgres(ctx, o.PostgresDSN)
	default:
		return nil, fmt.Errorf("unsupported storage driver: %s", o.Driver)
	}
}
