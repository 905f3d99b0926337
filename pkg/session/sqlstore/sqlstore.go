// Package sqlstore provides a SQL-backed session driver. Queries are built
// with ent's dialect-aware SQL builder so the same code serves SQLite and
// PostgreSQL.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/tidwall/gjson"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/session"
)

// Table is the name of the sessions table.
const Table = "scribe_sessions"

const (
	colOwner     = "owner"
	colName      = "name"
	colHistory   = "history"
	colCreatedAt = "created_at"
	colUpdatedAt = "updated_at"
)

// Driver implements session.Store on a database/sql connection.
type Driver struct {
	db      *sql.DB
	builder *entsql.DialectBuilder
	now     func() time.Time
}

// New wraps an open database of the given ent dialect (dialect.SQLite or
// dialect.Postgres) and creates the sessions table if it does not exist.
func New(ctx context.Context, db *sql.DB, dialectName string) (*Driver, error) {
	d := &Driver{
		db:      db,
		builder: entsql.Dialect(dialectName),
		now:     time.Now,
	}

	if err := d.migrate(ctx); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return d, nil
}

// WithClock overrides the time source used for session timestamps.
func (d *Driver) WithClock(now func() time.Time) *Driver {
	d.now = now
	return d
}

func (d *Driver) migrate(ctx context.Context) error {
	query, args := d.builder.CreateTable(Table).
		IfNotExists().
		Columns(
			entsql.Column(colOwner).Type("varchar(128)").Attr("NOT NULL"),
			entsql.Column(colName).Type("varchar(128)").Attr("NOT NULL"),
			entsql.Column(colHistory).Type("text").Attr("NOT NULL"),
			entsql.Column(colCreatedAt).Type("bigint").Attr("NOT NULL"),
			entsql.Column(colUpdatedAt).Type("bigint").Attr("NOT NULL"),
		).
		PrimaryKey(colOwner, colName).
		Query()

	_, err := d.db.ExecContext(ctx, query, args...)
	return err
}

// List returns the owner's sessions, most recently updated first.
func (d *Driver) List(ctx context.Context, owner string) ([]session.Meta, error) {
	if err := session.ValidateOwner(owner); err != nil {
		return nil, err
	}

	sel := d.builder.Select(colName, colHistory, colCreatedAt, colUpdatedAt).
		From(d.builder.Table(Table)).
		Where(entsql.EQ(colOwner, owner))
	sel.OrderBy(entsql.Desc(sel.C(colUpdatedAt)), sel.C(colName))
	query, args := sel.Query()

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	metas := []session.Meta{}
	for rows.Next() {
		var (
			name, history    string
			created, updated int64
		)
		if err := rows.Scan(&name, &history, &created, &updated); err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}

		metas = append(metas, session.Meta{
			Name:      name,
			CreatedAt: time.Unix(0, created).UTC(),
			UpdatedAt: time.Unix(0, updated).UTC(),
			Turns:     int(gjson.Get(history, "#").Int()),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return metas, nil
}

// Save upserts the session row. An existing row keeps its created_at.
func (d *Driver) Save(ctx context.Context, owner, name string, turns []llm.Turn) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	history, err := json.Marshal(llm.CloneTurns(turns))
	if err != nil {
		return &session.PersistenceError{Op: "save", Owner: owner, Name: name, Err: err}
	}

	now := d.now().UnixNano()
	query, args := d.builder.Insert(Table).
		Columns(colOwner, colName, colHistory, colCreatedAt, colUpdatedAt).
		Values(owner, name, string(history), now, now).
		OnConflict(
			entsql.ConflictColumns(colOwner, colName),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded(colHistory)
				u.SetExcluded(colUpdatedAt)
			}),
		).
		Query()

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return &session.PersistenceError{Op: "save", Owner: owner, Name: name, Err: err}
	}
	return nil
}

// Load reads the session row. A missing row loads as an empty session.
func (d *Driver) Load(ctx context.Context, owner, name string) (*session.Session, error) {
	name, err := session.Validate(owner, name)
	if err != nil {
		return nil, err
	}

	query, args := d.builder.Select(colHistory, colCreatedAt, colUpdatedAt).
		From(d.builder.Table(Table)).
		Where(entsql.And(
			entsql.EQ(colOwner, owner),
			entsql.EQ(colName, name),
		)).
		Query()

	var (
		history          string
		created, updated int64
	)
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&history, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Empty(owner, name), nil
	}
	if err != nil {
		return nil, &session.PersistenceError{Op: "load", Owner: owner, Name: name, Err: err}
	}

	s := &session.Session{
		Owner:     owner,
		Name:      name,
		CreatedAt: time.Unix(0, created).UTC(),
		UpdatedAt: time.Unix(0, updated).UTC(),
		History:   []llm.Turn{},
	}
	if err := json.Unmarshal([]byte(history), &s.History); err != nil {
		return nil, &session.PersistenceError{Op: "load", Owner: owner, Name: name, Err: err}
	}
	return s, nil
}

// Remove deletes the session row. Deleting a missing row is not an error.
func (d *Driver) Remove(ctx context.Context, owner, name string) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	query, args := d.builder.Delete(Table).
		Where(entsql.And(
			entsql.EQ(colOwner, owner),
			entsql.EQ(colName, name),
		)).
		Query()

	if _, err := d.db.ExecContext(ctx, query, args...); err != nil {
		return &session.PersistenceError{Op: "remove", Owner: owner, Name: name, Err: err}
	}
	return nil
}

// Close closes the underlying database.
func (d *Driver) Close() error {
	return d.db.Close()
}
