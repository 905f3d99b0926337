package session_test

import (
	"errors"
	"io/fs"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/session"
)

var _ = Describe("Names", func() {
	It("normalizes whitespace and the .json suffix", func() {
		name, err := session.ValidateName("  demo.json ")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("demo"))
	})

	It("accepts names with inner dots and spaces", func() {
		name, err := session.ValidateName("trip v1.2 notes")
		Expect(err).NotTo(HaveOccurred())
		Expect(name).To(Equal("trip v1.2 notes"))
	})

	DescribeTable("rejects unsafe session names",
		func(name string) {
			_, err := session.ValidateName(name)
			var invalid *session.InvalidNameError
			Expect(errors.As(err, &invalid)).To(BeTrue())
			Expect(invalid.Kind).To(Equal("session"))
		},
		Entry("empty", ""),
		Entry("only the suffix", ".json"),
		Entry("parent directory", ".."),
		Entry("nested path", "a/b"),
		Entry("windows path", `a\b`),
		Entry("too long", strings.Repeat("x", session.MaxNameLength+1)),
	)

	It("validates owners without normalizing them", func() {
		Expect(session.ValidateOwner("alice")).To(Succeed())
		Expect(session.ValidateOwner("../alice")).To(HaveOccurred())
	})
})

var _ = Describe("DefaultName", func() {
	It("numbers sessions from one", func() {
		Expect(session.DefaultName(nil)).To(Equal("chat_1"))
	})

	It("uses the next free number", func() {
		existing := []session.Meta{{Name: "chat_1"}, {Name: "chat_3"}}
		Expect(session.DefaultName(existing)).To(Equal("chat_4"))

		existing = []session.Meta{{Name: "chat_2"}, {Name: "notes"}}
		Expect(session.DefaultName(existing)).To(Equal("chat_3"))
	})
})

var _ = Describe("PersistenceError", func() {
	It("unwraps to the underlying failure", func() {
		err := &session.PersistenceError{Op: "save", Owner: "alice", Name: "demo", Err: fs.ErrPermission}
		Expect(errors.Is(err, fs.ErrPermission)).To(BeTrue())
		Expect(err.Error()).To(Equal("save session alice/demo: permission denied"))
	})
})

var _ = Describe("Empty", func() {
	It("has a non-nil history", func() {
		s := session.Empty("alice", "x")
		Expect(s.History).NotTo(BeNil())
		Expect(s.History).To(BeEmpty())
	})
})
