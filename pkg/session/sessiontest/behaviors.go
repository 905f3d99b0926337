// Package sessiontest holds Ginkgo behaviors shared by every session.Store
// driver's test suite.
package sessiontest

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

// Clock is a deterministic time source that advances one second per call.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a Clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current instant and advances the clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

// StoreBehaviors registers the specs every session.Store must satisfy.
// newStore is called before each spec with a fresh clock.
func StoreBehaviors(newStore func(now func() time.Time) session.Store) {
	var (
		store session.Store
		ctx   context.Context
	)

	conversation := []llm.Turn{
		llm.NewTurn(llm.RoleSystem, "You are terse."),
		llm.NewTurn(llm.RoleUser, "hi"),
		llm.NewTurn(llm.RoleAssistant, "Hello!"),
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = newStore(NewClock().Now)
	})

	AfterEach(func() {
		Expect(store.Close()).To(Succeed())
	})

	Describe("Save and Load", func() {
		It("round-trips the turn sequence", func() {
			Expect(store.Save(ctx, "alice", "demo", conversation)).To(Succeed())

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.Name).To(Equal("demo"))
			Expect(s.Owner).To(Equal("alice"))
			Expect(s.History).To(Equal(conversation))
		})

		It("loads a session that was never saved as empty", func() {
			s, err := store.Load(ctx, "alice", "never_created")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).NotTo(BeNil())
			Expect(s.History).To(BeEmpty())
		})

		It("round-trips an empty session", func() {
			Expect(store.Save(ctx, "alice", "blank", nil)).To(Succeed())

			s, err := store.Load(ctx, "alice", "blank")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(BeEmpty())
		})

		It("replaces the whole sequence and keeps the creation time", func() {
			Expect(store.Save(ctx, "alice", "demo", conversation)).To(Succeed())
			first, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())

			replacement := []llm.Turn{llm.NewTurn(llm.RoleUser, "start over")}
			Expect(store.Save(ctx, "alice", "demo", replacement)).To(Succeed())

			second, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(second.History).To(Equal(replacement))
			Expect(second.CreatedAt).To(BeTemporally("==", first.CreatedAt))
			Expect(second.UpdatedAt).To(BeTemporally(">", first.UpdatedAt))
		})

		It("loads the same sequence whether it was saved once or twice", func() {
			Expect(store.Save(ctx, "alice", "once", conversation)).To(Succeed())
			Expect(store.Save(ctx, "alice", "twice", conversation)).To(Succeed())
			Expect(store.Save(ctx, "alice", "twice", conversation)).To(Succeed())

			once, err := store.Load(ctx, "alice", "once")
			Expect(err).NotTo(HaveOccurred())
			twice, err := store.Load(ctx, "alice", "twice")
			Expect(err).NotTo(HaveOccurred())
			Expect(twice.History).To(Equal(once.History))
			Expect(twice.History).To(Equal(conversation))

			metas, err := store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(HaveLen(2))
			for _, m := range metas {
				Expect(m.Turns).To(Equal(len(conversation)))
			}
		})

		It("does not alias the caller's slice", func() {
			turns := []llm.Turn{llm.NewTurn(llm.RoleUser, "original")}
			Expect(store.Save(ctx, "alice", "demo", turns)).To(Succeed())
			turns[0].Content = "mutated"

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History[0].Content).To(Equal("original"))
		})

		It("treats a trailing .json as part of the file name", func() {
			Expect(store.Save(ctx, "alice", "demo.json", conversation)).To(Succeed())

			s, err := store.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(HaveLen(3))
		})

		It("keeps owners isolated", func() {
			Expect(store.Save(ctx, "alice", "demo", conversation)).To(Succeed())

			s, err := store.Load(ctx, "bob", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(BeEmpty())

			metas, err := store.List(ctx, "bob")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(BeEmpty())
		})

		DescribeTable("rejects unsafe names",
			func(owner, name string) {
				err := store.Save(ctx, owner, name, conversation)
				var invalid *session.InvalidNameError
				Expect(errors.As(err, &invalid)).To(BeTrue())

				_, err = store.Load(ctx, owner, name)
				Expect(errors.As(err, &invalid)).To(BeTrue())
			},
			Entry("empty name", "alice", ""),
			Entry("path traversal", "alice", "../bob/demo"),
			Entry("dot file", "alice", ".hidden"),
			Entry("separator", "alice", "a/b"),
			Entry("empty owner", "", "demo"),
			Entry("traversal owner", "..", "demo"),
		)
	})

	Describe("List", func() {
		It("returns empty for an unknown owner", func() {
			metas, err := store.List(ctx, "nobody")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(BeEmpty())
		})

		It("orders sessions by most recent update", func() {
			Expect(store.Save(ctx, "alice", "first", conversation)).To(Succeed())
			Expect(store.Save(ctx, "alice", "second", conversation[:1])).To(Succeed())
			Expect(store.Save(ctx, "alice", "third", nil)).To(Succeed())

			metas, err := store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(names(metas)).To(Equal([]string{"third", "second", "first"}))
			Expect(metas[2].Turns).To(Equal(3))
			Expect(metas[1].Turns).To(Equal(1))

			Expect(store.Save(ctx, "alice", "first", conversation)).To(Succeed())
			metas, err = store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(names(metas)).To(Equal([]string{"first", "third", "second"}))
		})
	})

	Describe("Remove", func() {
		It("deletes the session", func() {
			Expect(store.Save(ctx, "alice", "x", conversation)).To(Succeed())
			Expect(store.Remove(ctx, "alice", "x")).To(Succeed())

			metas, err := store.List(ctx, "alice")
			Expect(err).NotTo(HaveOccurred())
			Expect(metas).To(BeEmpty())

			s, err := store.Load(ctx, "alice", "x")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(BeEmpty())
		})

		It("is idempotent", func() {
			Expect(store.Save(ctx, "alice", "x", conversation)).To(Succeed())
			Expect(store.Remove(ctx, "alice", "x")).To(Succeed())
			Expect(store.Remove(ctx, "alice", "x")).To(Succeed())
			Expect(store.Remove(ctx, "alice", "never")).To(Succeed())
		})
	})
}

func names(metas []session.Meta) []string {
	out := make([]string, len(metas))
	for i, m := range metas {
		out[i] = m.Name
	}
	return out
}
