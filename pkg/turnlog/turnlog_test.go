package turnlog_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/session/inmemory"
	"github.com/papercomputeco/scribe/pkg/turnlog"
)

// failingStore rejects saves until fail is cleared.
type failingStore struct {
	*inmemory.Driver
	fail  bool
	saves int
}

func (s *failingStore) Save(ctx context.Context, owner, name string, turns []llm.Turn) error {
	s.saves++
	if s.fail {
		return &session.PersistenceError{Op: "save", Owner: owner, Name: name, Err: errors.New("disk full")}
	}
	return s.Driver.Save(ctx, owner, name, turns)
}

var _ = Describe("TurnLog", func() {
	var (
		ctx   context.Context
		store *failingStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		store = &failingStore{Driver: inmemory.NewDriver()}
	})

	Describe("scratch sessions", func() {
		It("accepts appends and never persists", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())
			Expect(log.CommitIfNamed(ctx)).To(Succeed())

			Expect(store.saves).To(BeZero())
			Expect(log.Name()).To(BeEmpty())
			Expect(log.Len()).To(Equal(1))
		})
	})

	Describe("Append", func() {
		It("rejects turns with unknown roles", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn("narrator", "x"))).To(HaveOccurred())
			Expect(log.Len()).To(BeZero())
		})

		It("rejects content that would not round-trip", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "\xff\xfe"))).To(MatchError(llm.ErrInvalidUTF8))
			Expect(log.Len()).To(BeZero())
		})

		It("preserves order", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "1"))).To(Succeed())
			Expect(log.Append(llm.NewTurn(llm.RoleAssistant, "2"))).To(Succeed())
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "3"))).To(Succeed())

			Expect(log.Turns()).To(Equal([]llm.Turn{
				llm.NewTurn(llm.RoleUser, "1"),
				llm.NewTurn(llm.RoleAssistant, "2"),
				llm.NewTurn(llm.RoleUser, "3"),
			}))
		})

		It("hands out copies", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())

			turns := log.Turns()
			turns[0].Content = "changed"
			Expect(log.Turns()[0].Content).To(Equal("hi"))
		})
	})

	Describe("named sessions", func() {
		It("persists the full sequence on commit", func() {
			log, err := turnlog.Open(ctx, store, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())

			Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())
			Expect(log.Dirty()).To(BeTrue())
			Expect(log.CommitIfNamed(ctx)).To(Succeed())
			Expect(log.Dirty()).To(BeFalse())

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(Equal([]llm.Turn{llm.NewTurn(llm.RoleUser, "hi")}))
		})

		It("keeps turns in memory when the save fails and retries later", func() {
			log, err := turnlog.Open(ctx, store, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())

			store.fail = true
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())
			err = log.CommitIfNamed(ctx)
			var pe *session.PersistenceError
			Expect(errors.As(err, &pe)).To(BeTrue())
			Expect(log.Dirty()).To(BeTrue())
			Expect(log.Len()).To(Equal(1))

			store.fail = false
			Expect(log.Append(llm.NewTurn(llm.RoleAssistant, "hello"))).To(Succeed())
			Expect(log.CommitIfNamed(ctx)).To(Succeed())

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(HaveLen(2))
		})
	})

	Describe("SwitchTo", func() {
		It("discards unsaved turns and loads the target", func() {
			Expect(store.Save(ctx, "alice", "other", []llm.Turn{llm.NewTurn(llm.RoleUser, "there")})).To(Succeed())

			log, err := turnlog.Open(ctx, store, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "unsaved"))).To(Succeed())

			saves := store.saves
			Expect(log.SwitchTo(ctx, "other")).To(Succeed())
			Expect(store.saves).To(Equal(saves))
			Expect(log.Name()).To(Equal("other"))
			Expect(log.Turns()).To(Equal([]llm.Turn{llm.NewTurn(llm.RoleUser, "there")}))

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(BeEmpty())
		})

		It("switches to a scratch session for an empty name", func() {
			log, err := turnlog.Open(ctx, store, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())

			Expect(log.SwitchTo(ctx, "")).To(Succeed())
			Expect(log.Name()).To(BeEmpty())
			Expect(log.Len()).To(BeZero())
		})

		It("leaves the log untouched when the name is invalid", func() {
			log, err := turnlog.Open(ctx, store, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "kept"))).To(Succeed())

			Expect(log.SwitchTo(ctx, "../escape")).To(HaveOccurred())
			Expect(log.Name()).To(Equal("demo"))
			Expect(log.Len()).To(Equal(1))
		})
	})

	Describe("Create", func() {
		It("saves the new empty session immediately", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Create(ctx, "fresh")).To(Succeed())

			metas, err := store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(1))
			Expect(metas[0].Name).To(Equal("fresh"))
			Expect(log.Name()).To(Equal("fresh"))
		})
	})

	Describe("AppendUnique", func() {
		It("adds a turn only once", func() {
			log := turnlog.New(store, "alice")
			doc := llm.NewTurn(llm.RoleSystem, "report.pdf:\nRevenue grew.")

			added, err := log.AppendUnique(doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeTrue())

			added, err = log.AppendUnique(doc)
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeFalse())
			Expect(log.Turns()).To(Equal([]llm.Turn{doc}))
		})

		It("treats the same content under another role as new", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "notes"))).To(Succeed())

			added, err := log.AppendUnique(llm.NewTurn(llm.RoleSystem, "notes"))
			Expect(err).NotTo(HaveOccurred())
			Expect(added).To(BeTrue())
			Expect(log.Len()).To(Equal(2))
		})

		It("refuses turns on a detached log", func() {
			log := turnlog.New(store, "alice")
			log.Detach()

			_, err := log.AppendUnique(llm.NewTurn(llm.RoleSystem, "doc"))
			Expect(err).To(MatchError(turnlog.ErrDetached))
		})
	})

	Describe("Detach", func() {
		It("stops appends and saves until the log switches sessions", func() {
			log := turnlog.New(store, "alice")
			Expect(log.Create(ctx, "demo")).To(Succeed())
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())

			log.Detach()
			Expect(store.Remove(ctx, "alice", "demo")).To(Succeed())
			saves := store.saves

			Expect(log.Append(llm.NewTurn(llm.RoleAssistant, "hello"))).To(MatchError(turnlog.ErrDetached))
			Expect(log.CommitIfNamed(ctx)).To(Succeed())
			Expect(store.saves).To(Equal(saves))
			Expect(log.Turns()).To(HaveLen(1))
			Expect(log.Dirty()).To(BeFalse())

			metas, err := store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(BeEmpty())

			Expect(log.SwitchTo(ctx, "other")).To(Succeed())
			Expect(log.Detached()).To(BeFalse())
			Expect(log.Append(llm.NewTurn(llm.RoleUser, "again"))).To(Succeed())
		})
	})

	It("supports the chat round trip end to end", func() {
		log := turnlog.New(store, "alice")
		Expect(log.Create(ctx, "demo")).To(Succeed())
		Expect(log.Append(llm.NewTurn(llm.RoleUser, "hi"))).To(Succeed())
		Expect(log.Append(llm.NewTurn(llm.RoleAssistant, "Hello!"))).To(Succeed())
		Expect(log.CommitIfNamed(ctx)).To(Succeed())

		s, err := store.Load(ctx, "alice", "demo")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.History).To(Equal([]llm.Turn{
			llm.NewTurn(llm.RoleUser, "hi"),
			llm.NewTurn(llm.RoleAssistant, "Hello!"),
		}))
	})
})
