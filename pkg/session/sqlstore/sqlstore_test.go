package sqlstore_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
	"github.com/papercomputeco/scribe/pkg/session/sessiontest"
	"github.com/papercomputeco/scribe/pkg/session/sqlstore"
)

var _ = Describe("SQLite Driver", func() {
	sessiontest.StoreBehaviors(func(now func() time.Time) session.Store {
		dbPath := filepath.Join(GinkgoT().TempDir(), "sessions.db")
		d, err := sqlstore.NewSQLite(context.Background(), dbPath)
		Expect(err).NotTo(HaveOccurred())
		return d.WithClock(now)
	})

	Describe("NewSQLite", func() {
		It("creates the database file", func() {
			dbPath := filepath.Join(GinkgoT().TempDir(), "scribe.db")

			d, err := sqlstore.NewSQLite(context.Background(), dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			_, err = os.Stat(dbPath)
			Expect(err).NotTo(HaveOccurred())
		})

		It("reopens an existing database without losing sessions", func() {
			ctx := context.Background()
			dbPath := filepath.Join(GinkgoT().TempDir(), "scribe.db")

			d, err := sqlstore.NewSQLite(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Save(ctx, "alice", "demo", []llm.Turn{llm.NewTurn(llm.RoleUser, "hi")})).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = sqlstore.NewSQLite(ctx, dbPath)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			s, err := d.Load(ctx, "alice", "demo")
			Expect(err).NotTo(HaveOccurred())
			Expect(s.History).To(HaveLen(1))
		})
	})
})
