package sessionscmder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	bubbletea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/dotdir"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/utils"
)

var (
	browseSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true)
	browseMutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	browsePaneStyle     = lipgloss.NewStyle().BorderStyle(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
)

type browseKeyMap struct {
	Up   key.Binding
	Down key.Binding
	Use  key.Binding
	Quit key.Binding
}

func (k browseKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Down, k.Up, k.Use, k.Quit}
}

func (k browseKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

func defaultBrowseKeys() browseKeyMap {
	return browseKeyMap{
		Up:   key.NewBinding(key.WithKeys("k", "up"), key.WithHelp("k", "up")),
		Down: key.NewBinding(key.WithKeys("j", "down"), key.WithHelp("j", "down")),
		Use:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "use")),
		Quit: key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func newBrowseCmd() *cobra.Command {
	var f storeFlags

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse sessions interactively and pick the active one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir := wiring.ConfigDir(cmd)
			return withStore(cmd, func(ctx context.Context, store session.Store, owner string) error {
				return runBrowse(ctx, cmd, store, owner, configDir)
			})
		},
	}
	addStoreFlags(cmd, &f)

	return cmd
}

func runBrowse(ctx context.Context, cmd *cobra.Command, store session.Store, owner, configDir string) error {
	metas, err := store.List(ctx, owner)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		return runList(ctx, cmd.OutOrStdout(), store, owner, "", time.Now())
	}

	// lipgloss misdetects color support under the alt screen
	renderer := lipgloss.NewRenderer(os.Stdout, termenv.WithProfile(termenv.ANSI256))
	lipgloss.SetDefaultRenderer(renderer)

	model := newBrowseModel(ctx, store, owner, metas, activeName(configDir, owner))
	program := bubbletea.NewProgram(model,
		bubbletea.WithContext(ctx),
		bubbletea.WithAltScreen(),
	)

	final, err := program.Run()
	if err != nil {
		return err
	}

	chosen := final.(browseModel).chosen
	if chosen == "" {
		return nil
	}
	if err := dotdir.NewManager().SaveActive(&dotdir.ActiveState{Owner: owner, Session: chosen}, configDir); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "  %s Active session is now %s\n", cliui.SuccessMark, cliui.NameStyle.Render(chosen))
	return nil
}

type previewLoadedMsg struct {
	name  string
	turns []llm.Turn
	err   error
}

type browseModel struct {
	ctx    context.Context
	store  session.Store
	owner  string
	metas  []session.Meta
	active string

	cursor  int
	preview previewLoadedMsg
	chosen  string

	width  int
	height int
	keys   browseKeyMap
	help   help.Model
	now    func() time.Time
}

func newBrowseModel(ctx context.Context, store session.Store, owner string, metas []session.Meta, active string) browseModel {
	cursor := 0
	for i, m := range metas {
		if m.Name == active {
			cursor = i
		}
	}

	return browseModel{
		ctx:    ctx,
		store:  store,
		owner:  owner,
		metas:  metas,
		active: active,
		cursor: cursor,
		keys:   defaultBrowseKeys(),
		help:   help.New(),
		now:    time.Now,
	}
}

func (m browseModel) Init() bubbletea.Cmd {
	return m.loadPreview()
}

func (m browseModel) Update(msg bubbletea.Msg) (bubbletea.Model, bubbletea.Cmd) {
	switch msg := msg.(type) {
	case bubbletea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case previewLoadedMsg:
		// drop previews that arrive after the cursor moved on
		if msg.name == m.selected() {
			m.preview = msg
		}
		return m, nil
	case bubbletea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, bubbletea.Quit
		case key.Matches(msg, m.keys.Down):
			return m.moveCursor(1)
		case key.Matches(msg, m.keys.Up):
			return m.moveCursor(-1)
		case key.Matches(msg, m.keys.Use):
			m.chosen = m.selected()
			return m, bubbletea.Quit
		}
	}
	return m, nil
}

func (m browseModel) moveCursor(delta int) (bubbletea.Model, bubbletea.Cmd) {
	next := min(max(m.cursor+delta, 0), len(m.metas)-1)
	if next == m.cursor {
		return m, nil
	}
	m.cursor = next
	return m, m.loadPreview()
}

func (m browseModel) selected() string {
	if len(m.metas) == 0 {
		return ""
	}
	return m.metas[m.cursor].Name
}

func (m browseModel) loadPreview() bubbletea.Cmd {
	name := m.selected()
	if name == "" {
		return nil
	}
	store, ctx, owner := m.store, m.ctx, m.owner
	return func() bubbletea.Msg {
		sess, err := store.Load(ctx, owner, name)
		if err != nil {
			return previewLoadedMsg{name: name, err: err}
		}
		return previewLoadedMsg{name: name, turns: sess.History}
	}
}

func (m browseModel) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}
	listWidth := max(width/3, 24)
	previewWidth := max(width-listWidth-6, 30)

	lines := []string{cliui.HeaderStyle.Render(fmt.Sprintf("Sessions of %s", m.owner)), ""}
	for i, meta := range m.metas {
		marker := "  "
		if meta.Name == m.active {
			marker = cliui.SuccessMark + " "
		}
		row := fmt.Sprintf("%s%s %s", marker, utils.Truncate(meta.Name, listWidth-12),
			browseMutedStyle.Render(fmt.Sprintf("%d · %s", meta.Turns, cliui.FormatAge(meta.UpdatedAt, m.now()))))
		if i == m.cursor {
			row = browseSelectedStyle.Render("›") + row
		} else {
			row = " " + row
		}
		lines = append(lines, row)
	}

	list := lipgloss.NewStyle().Width(listWidth).Render(strings.Join(lines, "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, "  ", m.viewPreview(previewWidth))

	return body + "\n\n" + browseMutedStyle.Render(m.help.View(m.keys))
}

func (m browseModel) viewPreview(width int) string {
	var b strings.Builder
	switch {
	case m.preview.name != m.selected():
		b.WriteString(browseMutedStyle.Render("loading…"))
	case m.preview.err != nil:
		b.WriteString(cliui.FailMark + " " + m.preview.err.Error())
	case len(m.preview.turns) == 0:
		b.WriteString(browseMutedStyle.Render("(no turns)"))
	default:
		turns := m.preview.turns
		if limit := max(m.height/3, 4); len(turns) > limit {
			turns = turns[len(turns)-limit:]
		}
		for _, t := range turns {
			fmt.Fprintf(&b, "%s %s\n", cliui.Role(string(t.Role)), utils.Preview(t.Content, width-14))
		}
	}
	return browsePaneStyle.Width(width).Render(strings.TrimRight(b.String(), "\n"))
}
