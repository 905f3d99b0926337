package sessionscmder

import (
	"context"
	"errors"
	"time"

	bubbletea "github.com/charmbracelet/bubbletea"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session/inmemory"
)

var _ = Describe("browseModel", func() {
	var (
		ctx   context.Context
		store *inmemory.Driver
		model browseModel
	)

	press := func(m browseModel, k bubbletea.KeyMsg) (browseModel, bubbletea.Cmd) {
		next, cmd := m.Update(k)
		return next.(browseModel), cmd
	}
	runes := func(s string) bubbletea.KeyMsg {
		return bubbletea.KeyMsg{Type: bubbletea.KeyRunes, Runes: []rune(s)}
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = inmemory.NewDriver()
		Expect(store.Save(ctx, "alice", "older", []llm.Turn{llm.NewTurn(llm.RoleUser, "first")})).To(Succeed())
		Expect(store.Save(ctx, "alice", "newer", []llm.Turn{
			llm.NewTurn(llm.RoleUser, "question"),
			llm.NewTurn(llm.RoleAssistant, "answer"),
		})).To(Succeed())

		metas, err := store.List(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		model = newBrowseModel(ctx, store, "alice", metas, "")
		model.now = func() time.Time { return time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC) }
	})

	It("starts on the active session", func() {
		metas, _ := store.List(ctx, "alice")
		m := newBrowseModel(ctx, store, "alice", metas, metas[1].Name)
		Expect(m.cursor).To(Equal(1))
	})

	It("loads the preview of the selected session", func() {
		msg := model.Init()()
		loaded, ok := msg.(previewLoadedMsg)
		Expect(ok).To(BeTrue())
		Expect(loaded.name).To(Equal(model.selected()))

		next, _ := model.Update(loaded)
		Expect(next.(browseModel).View()).To(ContainSubstring(loaded.turns[0].Content))
	})

	It("moves within bounds and reloads the preview", func() {
		m, cmd := press(model, runes("k"))
		Expect(m.cursor).To(Equal(0))
		Expect(cmd).To(BeNil())

		m, cmd = press(m, runes("j"))
		Expect(m.cursor).To(Equal(1))
		Expect(cmd).NotTo(BeNil())
		Expect(cmd().(previewLoadedMsg).name).To(Equal(m.metas[1].Name))

		m, _ = press(m, bubbletea.KeyMsg{Type: bubbletea.KeyDown})
		Expect(m.cursor).To(Equal(1))
	})

	It("ignores previews for sessions no longer selected", func() {
		stale := previewLoadedMsg{name: "not-selected", turns: []llm.Turn{llm.NewTurn(llm.RoleUser, "x")}}
		next, _ := model.Update(stale)
		Expect(next.(browseModel).preview.name).To(BeEmpty())
	})

	It("chooses the selected session on enter", func() {
		m, cmd := press(model, bubbletea.KeyMsg{Type: bubbletea.KeyEnter})
		Expect(m.chosen).To(Equal(model.selected()))
		Expect(cmd).NotTo(BeNil())
	})

	It("quits without choosing", func() {
		m, cmd := press(model, runes("q"))
		Expect(m.chosen).To(BeEmpty())
		Expect(cmd).NotTo(BeNil())
	})

	It("renders the list and help", func() {
		view := model.View()
		Expect(view).To(ContainSubstring("Sessions of alice"))
		Expect(view).To(ContainSubstring("older"))
		Expect(view).To(ContainSubstring("newer"))
		Expect(view).To(ContainSubstring("quit"))
	})

	It("shows load errors in the preview pane", func() {
		next, _ := model.Update(previewLoadedMsg{name: model.selected(), err: errors.New("disk on fire")})
		Expect(next.(browseModel).View()).To(ContainSubstring("disk on fire"))
	})
})
