package sessionscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

func newShowCmd() *cobra.Command {
	var (
		f      storeFlags
		asJSON bool
		render bool
	)

	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Print a session's turns",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, store session.Store, owner string) error {
				return runShow(ctx, cmd.OutOrStdout(), store, owner, args[0], asJSON, render)
			})
		},
	}
	addStoreFlags(cmd, &f)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the session document as JSON")
	cmd.Flags().BoolVar(&render, "render", false, "Render assistant turns as markdown")

	return cmd
}

func runShow(ctx context.Context, out io.Writer, store session.Store, owner, name string, asJSON, render bool) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	sess, err := store.Load(ctx, owner, name)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.HeaderStyle.Render(sess.Name),
		cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(sess.History))),
	)

	for _, t := range sess.History {
		content := t.Content
		if render && t.Role == llm.RoleAssistant {
			if rendered, err := cliui.RenderMarkdown(content); err == nil {
				content = rendered
			}
		}
		fmt.Fprintf(out, "%s %s\n\n", cliui.Role(string(t.Role)), content)
	}

	return nil
}
