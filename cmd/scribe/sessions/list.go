package sessionscmder

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/session"
)

func newListCmd() *cobra.Command {
	var f storeFlags

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List sessions, most recently updated first",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir := wiring.ConfigDir(cmd)
			return withStore(cmd, func(ctx context.Context, store session.Store, owner string) error {
				return runList(ctx, cmd.OutOrStdout(), store, owner, activeName(configDir, owner), time.Now())
			})
		},
	}
	addStoreFlags(cmd, &f)

	return cmd
}

// activeName returns the owner's active session, or "" when none is set.
func activeName(configDir, owner string) string {
	state, err := dotdir.NewManager().LoadActive(configDir)
	if err != nil || state == nil {
		return ""
	}
	if state.Owner != owner {
		return ""
	}
	return state.Session
}

func runList(ctx context.Context, out io.Writer, store session.Store, owner, active string, now time.Time) error {
	metas, err := store.List(ctx, owner)
	if err != nil {
		return err
	}

	if len(metas) == 0 {
		fmt.Fprintf(out, "\n  %s No sessions for %s.\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(owner))
		fmt.Fprintf(out, "  Use 'scribe chat' to start one.\n\n")
		return nil
	}

	width := 0
	for _, m := range metas {
		width = max(width, len(m.Name))
	}

	fmt.Fprintf(out, "\n  %s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("Sessions of %s", owner)))
	for _, m := range metas {
		marker := " "
		if m.Name == active {
			marker = cliui.SuccessMark
		}
		fmt.Fprintf(out, "  %s %-*s  %s  %s\n",
			marker,
			width, m.Name,
			cliui.DimStyle.Render(fmt.Sprintf("%3d turns", m.Turns)),
			cliui.DimStyle.Render(cliui.FormatAge(m.UpdatedAt, now)),
		)
	}
	fmt.Fprintln(out)

	return nil
}
