// Package chatcmder provides the chat command for line-oriented chat in the
// terminal, backed by the local session store or a scribe server.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/api"
	"github.com/papercomputeco/scribe/api/client"
	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/llm"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("assistant> ")
)

type chatCommander struct {
	owner, provider, model, endpoint, scene string
	storage, sessionsDir, sqlite, postgres  string
	serverTarget                            string
	stripCitations                          bool

	newSession bool
	remote     bool
	render     bool
	system     string
	attach     []string
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
	config.FlagServerTarget,
	config.FlagStripCitations,
}

const chatLongDesc string = `Start an interactive chat session.

Replies stream to the terminal as they arrive. Every message is saved to
the session before it is sent, and a reply is saved once it has streamed
completely. Press Ctrl+C while a reply streams to stop it; a stopped reply
is shown but not saved.

Without a session argument the active session is resumed, or a new
"chat_<n>" session is started. The session you chat in becomes active.

Commands inside the chat:
  /new [name]      start a new session
  /switch <name>   continue another session
  /history         print the session so far
  /attach <path>   add a document's text to the session
  /exit            quit (Ctrl+D works too)

Documents (.txt .md .pdf .doc .docx .png .jpg) are read by the provider's
files API, so attaching needs an OpenAI-compatible provider such as
moonshot. Their text joins the session once as a system turn.

With --remote, messages go through the scribe server at --server-target.

Examples:
  scribe chat
  scribe chat trip-planning --provider moonshot --scene article
  scribe chat --new --system "You are a terse Go reviewer."
  scribe chat report --provider moonshot --attach q3.pdf
  scribe chat --remote --server-target http://localhost:8080`

const chatShortDesc string = "Interactive streaming chat with saved sessions"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat [session]",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var name string
			if len(args) == 1 {
				name = args[0]
			}
			return cmder.run(cmd, name)
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagOwner, &cmder.owner)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &cmder.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagScene, &cmder.scene)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionsDir, &cmder.sessionsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagServerTarget, &cmder.serverTarget)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStripCitations, &cmder.stripCitations)

	cmd.Flags().BoolVarP(&cmder.newSession, "new", "n", false, "Start a new session instead of resuming")
	cmd.Flags().BoolVar(&cmder.remote, "remote", false, "Chat through the scribe server")
	cmd.Flags().BoolVar(&cmder.render, "render", false, "Re-render each finished reply as markdown")
	cmd.Flags().StringVar(&cmder.system, "system", "", "System prompt added to a new session")
	cmd.Flags().StringArrayVarP(&cmder.attach, "attach", "a", nil, "Document to add to the session before chatting (repeatable)")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		b     backend
		owner string
	)

	if c.remote {
		cfg, err := wiring.LoadConfig(cmd, flagKeys)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		owner = cfg.Client.Owner
		b = &remoteBackend{
			client: client.New(cfg.Client.ServerTarget, owner, nil),
			target: cfg.Client.ServerTarget,
			req:    api.MessageRequest{
				Provider: changedString(cmd, "provider"),
				Model:    changedString(cmd, "model"),
				Scene:    changedString(cmd, "scene"),
			},
		}
	} else {
		rt, err := wiring.Open(ctx, cmd, flagKeys)
		if err != nil {
			return err
		}
		defer rt.Close()

		// flags already reached the resolver defaults through viper
		owner = rt.Config.Client.Owner
		b = &localBackend{
			owner:    owner,
			registry: rt.Registry,
			service:  rt.Service,
			resolver: rt.Resolver,

			extractors: wiring.Extractors,
		}
	}

	configDir := wiring.ConfigDir(cmd)
	if name == "" && !c.newSession {
		name = activeSession(configDir, owner)
	}

	loop := &chatLoop{
		in:          cmd.InOrStdin(),
		out:         cmd.OutOrStdout(),
		backend:     b,
		render:      c.render,
		attachments: c.attach,
		interrupt: func(ctx context.Context) (context.Context, context.CancelFunc) {
			return signal.NotifyContext(ctx, os.Interrupt)
		},
		onSwitch: func(session string) {
			_ = dotdir.NewManager().SaveActive(&dotdir.ActiveState{Owner: owner, Session: session}, configDir)
		},
	}
	return loop.run(ctx, name, c.system)
}

// changedString returns a flag's value only when it was set explicitly, so
// the server applies its own defaults otherwise.
func changedString(cmd *cobra.Command, name string) string {
	if !cmd.Flags().Changed(name) {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return v
}

func activeSession(configDir, owner string) string {
	state, err := dotdir.NewManager().LoadActive(configDir)
	if err != nil || state == nil || state.Owner != owner {
		return ""
	}
	return state.Session
}

type chatLoop struct {
	in      io.Reader
	out     io.Writer
	backend backend
	render  bool

	// attachments are added to the session before the first prompt.
	attachments []string

	// interrupt derives the context of one streaming reply.
	interrupt func(context.Context) (context.Context, context.CancelFunc)

	// onSwitch is told about every session the loop moves to.
	onSwitch func(name string)

	session string
}

func (l *chatLoop) run(ctx context.Context, name, system string) error {
	if err := l.open(ctx, name); err != nil {
		return err
	}

	if system != "" {
		if err := l.addSystem(ctx, system); err != nil {
			return err
		}
	}

	for _, path := range l.attachments {
		if err := l.attach(ctx, path); err != nil {
			return err
		}
	}

	fmt.Fprintf(l.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(l.in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(l.out, userPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(l.out)
			return scanner.Err()
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			quit, err := l.command(ctx, input)
			if err != nil {
				fmt.Fprintf(l.out, "  %s %v\n\n", cliui.FailMark, err)
			}
			if quit {
				return nil
			}
			continue
		}

		l.send(ctx, input)
	}
}

func (l *chatLoop) open(ctx context.Context, name string) error {
	session, history, err := l.backend.Open(ctx, name)
	if err != nil {
		return err
	}
	l.switched(session)

	fmt.Fprintln(l.out)
	if len(history) > 0 {
		fmt.Fprintf(l.out, "  %s Resuming %s %s\n",
			cliui.SuccessMark,
			cliui.NameStyle.Render(session),
			cliui.DimStyle.Render(fmt.Sprintf("(%d turns)", len(history))),
		)
	} else {
		fmt.Fprintf(l.out, "  %s New session %s\n", cliui.DimStyle.Render("●"), cliui.NameStyle.Render(session))
	}
	fmt.Fprintf(l.out, "  %s %s\n", cliui.KeyStyle.Render("Provider:"), cliui.NameStyle.Render(l.backend.Describe()))
	return nil
}

func (l *chatLoop) addSystem(ctx context.Context, prompt string) error {
	if err := l.backend.System(ctx, l.session, prompt); err != nil {
		return fmt.Errorf("adding system prompt: %w", err)
	}
	fmt.Fprintf(l.out, "  %s %s\n", cliui.Role(string(llm.RoleSystem)), cliui.DimStyle.Render(prompt))
	return nil
}

func (l *chatLoop) attach(ctx context.Context, path string) error {
	appended, err := l.backend.Attach(ctx, l.session, path)
	if err != nil {
		return fmt.Errorf("attaching %s: %w", path, err)
	}

	note := "attached"
	if !appended {
		note = "already attached"
	}
	fmt.Fprintf(l.out, "  %s %s %s\n", cliui.SuccessMark, cliui.NameStyle.Render(filepath.Base(path)), cliui.DimStyle.Render(note))
	return nil
}

func (l *chatLoop) switched(name string) {
	l.session = name
	if l.onSwitch != nil {
		l.onSwitch(name)
	}
}

// command runs a slash command and reports whether the loop should end.
func (l *chatLoop) command(ctx context.Context, input string) (bool, error) {
	verb, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch verb {
	case "/exit", "/quit":
		return true, nil
	case "/new":
		name, err := l.backend.Create(ctx, arg)
		if err != nil {
			return false, err
		}
		return false, l.open(ctx, name)
	case "/switch":
		if arg == "" {
			return false, errors.New("usage: /switch <name>")
		}
		return false, l.open(ctx, arg)
	case "/history":
		_, history, err := l.backend.Open(ctx, l.session)
		if err != nil {
			return false, err
		}
		printHistory(l.out, history)
		return false, nil
	case "/attach":
		if arg == "" {
			return false, errors.New("usage: /attach <path>")
		}
		return false, l.attach(ctx, arg)
	case "/help":
		fmt.Fprintln(l.out, "  /new [name]  /switch <name>  /history  /attach <path>  /exit")
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s (try /help)", verb)
	}
}

func (l *chatLoop) send(ctx context.Context, input string) {
	streamCtx, stop := l.interrupt(ctx)
	defer stop()

	fmt.Fprint(l.out, assistantPrompt)
	res, err := l.backend.Send(streamCtx, l.session, input, func(fragment string) {
		fmt.Fprint(l.out, fragment)
	})
	fmt.Fprintln(l.out)

	switch {
	case err != nil && streamCtx.Err() != nil:
		fmt.Fprintf(l.out, "  %s\n\n", cliui.DimStyle.Render("(interrupted)"))
		return
	case err != nil:
		fmt.Fprintf(l.out, "  %s %v\n\n", cliui.FailMark, err)
		return
	}

	if res.Warning != "" {
		fmt.Fprintf(l.out, "  %s %s\n", cliui.WarnStyle.Render("!"), res.Warning)
	}

	switch {
	case res.Incomplete:
		fmt.Fprintf(l.out, "  %s\n", cliui.DimStyle.Render("(reply incomplete, not saved)"))
	case !res.Saved:
		fmt.Fprintf(l.out, "  %s\n", cliui.DimStyle.Render("(empty reply, not saved)"))
	case l.render:
		if rendered, err := cliui.RenderMarkdown(res.Content); err == nil {
			fmt.Fprint(l.out, rendered)
		}
	}
	fmt.Fprintln(l.out)
}

func printHistory(out io.Writer, history []llm.Turn) {
	if len(history) == 0 {
		fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("(no turns yet)"))
		return
	}
	for _, t := range history {
		fmt.Fprintf(out, "%s %s\n\n", cliui.Role(string(t.Role)), t.Content)
	}
}
