// Package sessionscmder provides the sessions command for listing,
// inspecting, switching and removing saved chat sessions.
package sessionscmder

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/session"
)

const sessionsLongDesc string = `List, inspect, switch and remove saved chat sessions.
The browse subcommand opens an interactive picker.

Sessions belong to an owner (--owner, default from client.owner) and are
read from the configured session store.

Examples:
  scribe sessions list
  scribe sessions browse
  scribe sessions show trip
  scribe sessions use trip
  scribe sessions rm chat_3`

const sessionsShortDesc string = "Manage saved chat sessions"

func NewSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"session"},
		Short:   sessionsShortDesc,
		Long:    sessionsLongDesc,
	}

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newUseCmd())
	cmd.AddCommand(newBrowseCmd())

	return cmd
}

var flagKeys = []string{
	config.FlagOwner,
	config.FlagStorageDriver,
	config.FlagSessionsDir,
	config.FlagSQLite,
	config.FlagPostgres,
}

type storeFlags struct {
	owner, storage, sessionsDir, sqlite, postgres string
}

func addStoreFlags(cmd *cobra.Command, f *storeFlags) {
	config.AddStringFlag(cmd, config.Flags, config.FlagOwner, &f.owner)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionsDir, &f.sessionsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgres)
}

// withStore opens the configured store for the resolved owner, runs fn and
// closes the store.
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store session.Store, owner string) error) error {
	cfg, err := wiring.LoadConfig(cmd, flagKeys)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := session.ValidateOwner(cfg.Client.Owner); err != nil {
		return err
	}

	ctx := cmd.Context()
	store, err := wiring.OpenStore(ctx, cfg, wiring.ConfigDir(cmd), wiring.NewLogger(cmd))
	if err != nil {
		return err
	}
	defer store.Close()

	return fn(ctx, store, cfg.Client.Owner)
}
