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

func newUseCmd() *cobra.Command {
	var f storeFlags

	cmd := &cobra.Command{
		Use:   "use <name>",
		Short: "Make a session the one 'scribe chat' resumes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir := wiring.ConfigDir(cmd)
			return withStore(cmd, func(ctx context.Context, store session.Store, owner string) error {
				return runUse(ctx, cmd.OutOrStdout(), store, owner, configDir, args[0])
			})
		},
	}
	addStoreFlags(cmd, &f)

	return cmd
}

// runUse marks an existing session active. Unknown names are rejected so a
// typo does not silently start a new session on the next chat.
func runUse(ctx context.Context, out io.Writer, store session.Store, owner, configDir, name string) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	metas, err := store.List(ctx, owner)
	if err != nil {
		return err
	}

	found := false
	for _, m := range metas {
		if m.Name == name {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("no session named %q", name)
	}

	if err := dotdir.NewManager().SaveActive(&dotdir.ActiveState{Owner: owner, Session: name}, configDir); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Active session is now %s\n", cliui.SuccessMark, cliui.NameStyle.Render(name))
	return nil
}
