// Package transcribecmder provides the transcribe command turning recorded
// speech into text, and optionally into chat prompts.
package transcribecmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/media"
)

type transcribeCommander struct {
	flags   transcribeFlags
	watch   bool
	session string
}

type transcribeFlags struct {
	owner, provider, model, endpoint, scene string
	storage, sessionsDir, sqlite, postgres  string
	mediaEndpoint, inbox                    string
}

var flagKeys = []string{
	config.FlagOwner,
	config.FlagProvider,
	config.FlagModel,
	config.FlagEndpoint,
	config.FlagScene,
	config.FlagStorageDriver,
	config.FlagSessionsDir,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagMediaEndpoint,
	config.FlagMediaInbox,
}

const transcribeLongDesc string = `Transcribe recorded speech with the configured
OpenAI-compatible audio endpoint.

Each audio file argument is transcribed and printed. With --watch, the inbox
directory (--inbox or media.inbox) is watched for finished recordings: a
recording <id>.wav is picked up once <id>.done exists, and its text is
written to <id>.txt.

With --session, every transcript is also sent as a message to that chat
session and the reply is printed.

Examples:
  scribe transcribe memo.m4a
  scribe transcribe --watch --inbox ~/Recordings
  scribe transcribe --watch --session dictation`

const transcribeShortDesc string = "Transcribe audio to text"

func NewTranscribeCmd() *cobra.Command {
	cmder := &transcribeCommander{}

	cmd := &cobra.Command{
		Use:   "transcribe [audio-file...]",
		Short: transcribeShortDesc,
		Long:  transcribeLongDesc,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, args)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagOwner, &f.owner)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &f.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagScene, &f.scene)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionsDir, &f.sessionsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagMediaEndpoint, &f.mediaEndpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagMediaInbox, &f.inbox)
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Watch the inbox directory for finished recordings")
	cmd.Flags().StringVar(&cmder.session, "session", "", "Send each transcript to this chat session")

	return cmd
}

func (c *transcribeCommander) run(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !c.watch {
		return errors.New("give at least one audio file, or --watch")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := wiring.LoadConfig(cmd, flagKeys)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := wiring.NewMediaClient(cfg, wiring.ConfigDir(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	emit := func(_ context.Context, source, text string) error {
		if len(args) > 1 || c.watch {
			fmt.Fprintf(out, "%s %s\n", cliui.NameStyle.Render(source+":"), text)
			return nil
		}
		fmt.Fprintln(out, text)
		return nil
	}

	if c.session != "" {
		rt, err := wiring.Open(ctx, cmd, flagKeys)
		if err != nil {
			return err
		}
		defer func() {
			if err := rt.Close(); err != nil {
				rt.Logger.Warn("closing runtime", "error", err)
			}
		}()

		fwd := &forwarder{
			out:      out,
			owner:    rt.Config.Client.Owner,
			session:  c.session,
			registry: rt.Registry,
			service:  rt.Service,
			resolver: rt.Resolver,
		}
		show := emit
		emit = func(ctx context.Context, source, text string) error {
			if err := show(ctx, source, text); err != nil {
				return err
			}
			return fwd.send(ctx, text)
		}
	}

	for _, path := range args {
		text, err := transcribeFile(ctx, client, path)
		if err != nil {
			return err
		}
		if err := emit(ctx, filepath.Base(path), text); err != nil {
			return err
		}
	}

	if !c.watch {
		return nil
	}

	if cfg.Media.Inbox == "" {
		return errors.New("--watch needs an inbox directory: set --inbox or media.inbox")
	}

	inbox, err := media.NewInbox(cfg.Media.Inbox, client, wiring.NewLogger(cmd))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for recordings (Ctrl-C to stop)\n", cfg.Media.Inbox)
	return inbox.Run(ctx, func(t media.Transcript) {
		if t.Err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", cliui.FailMark, t.ID, t.Err)
			return
		}
		if err := emit(ctx, t.ID, t.Text); err != nil {
			fmt.Fprintf(out, "%s %s: %v\n", cliui.FailMark, t.ID, err)
		}
	})
}

func transcribeFile(ctx context.Context, t media.Transcriber, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening audio file: %w", err)
	}
	defer f.Close()

	return t.Transcribe(ctx, f, filepath.Base(path))
}

// forwarder sends transcripts to one chat session and prints the replies.
type forwarder struct {
	out      io.Writer
	owner    string
	session  string
	registry *chat.Registry
	service  *chat.Service
	resolver *chat.Resolver
}

func (f *forwarder) send(ctx context.Context, text string) error {
	target, err := f.resolver.Resolve(chat.Selection{})
	if err != nil {
		return err
	}

	log, err := f.registry.Get(ctx, f.owner, f.session)
	if err != nil {
		return err
	}

	reply, err := f.service.Submit(ctx, log, target, text)
	if err != nil {
		return err
	}

	fmt.Fprintf(f.out, "%s ", cliui.Role("assistant"))
	for fragment := range reply.Fragments() {
		fmt.Fprint(f.out, fragment)
	}
	fmt.Fprintln(f.out)

	res, err := reply.Finish(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	if res.Incomplete {
		fmt.Fprintln(f.out, cliui.DimStyle.Render("(reply incomplete, not saved)"))
	}
	return nil
}
