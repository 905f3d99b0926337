package sessionscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/session"
)

func newRmCmd() *cobra.Command {
	var f storeFlags

	cmd := &cobra.Command{
		Use:     "rm <name>...",
		Aliases: []string{"remove"},
		Short:   "Remove sessions",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := wiring.ConfigDir(cmd)
			return withStore(cmd, func(ctx context.Context, store session.Store, owner string) error {
				return runRm(ctx, cmd.OutOrStdout(), store, owner, configDir, args)
			})
		},
	}
	addStoreFlags(cmd, &f)

	return cmd
}

func runRm(ctx context.Context, out io.Writer, store session.Store, owner, configDir string, names []string) error {
	ddm := dotdir.NewManager()
	active, _ := ddm.LoadActive(configDir)

	for _, name := range names {
		name, err := session.Validate(owner, name)
		if err != nil {
			return err
		}

		if err := store.Remove(ctx, owner, name); err != nil {
			return err
		}

		if active != nil && active.Owner == owner && active.Session == name {
			if err := ddm.ClearActive(configDir); err != nil {
				return err
			}
		}

		fmt.Fprintf(out, "  %s Removed %s\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	}

	return nil
}
