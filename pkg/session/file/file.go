// Package file provides the default session driver: one JSON document per
// session under <root>/<owner>/<name>.json.
package file

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/logger"
	"github.com/papercomputeco/scribe/pkg/session"
)

const (
	dirPerm  = 0o700
	filePerm = 0o600
	ext      = ".json"
)

// Driver implements session.Store on the local filesystem.
type Driver struct {
	root   string
	now    func() time.Time
	logger *slog.Logger

	// rename moves a finished temp file over the session file.
	rename func(oldpath, newpath string) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithClock overrides the time source used for session timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// WithLogger sets the logger used to report unreadable session files.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) {
		d.logger = l
	}
}

// NewDriver creates a file-backed store rooted at root. The directory is
// created on first save.
func NewDriver(root string, opts ...Option) (*Driver, error) {
	if root == "" {
		return nil, errors.New("session root directory is required")
	}

	d := &Driver{
		root:   root,
		now:    time.Now,
		logger: logger.Nop(),
		rename: os.Rename,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Root returns the directory holding every owner's sessions.
func (d *Driver) Root() string {
	return d.root
}

// List returns the owner's sessions, most recently updated first.
func (d *Driver) List(_ context.Context, owner string) ([]session.Meta, error) {
	if err := session.ValidateOwner(owner); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(filepath.Join(d.root, owner))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []session.Meta{}, nil
		}
		return nil, fmt.Errorf("reading session directory: %w", err)
	}

	metas := make([]session.Meta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		// temp files from in-progress saves start with a dot
		if entry.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, ext) {
			continue
		}

		meta, err := d.meta(filepath.Join(d.root, owner, name))
		if err != nil {
			d.logger.Warn("skipping unreadable session file",
				"owner", owner,
				"file", name,
				"error", err,
			)
			continue
		}
		metas = append(metas, meta)
	}

	slices.SortFunc(metas, func(a, b session.Meta) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	return metas, nil
}

func (d *Driver) meta(path string) (session.Meta, error) {
	info, err := os.Stat(path)
	if err != nil {
		return session.Meta{}, err
	}

	doc, err := readDocument(path)
	if err != nil {
		return session.Meta{}, err
	}

	meta := session.Meta{
		Name:      strings.TrimSuffix(filepath.Base(path), ext),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Turns:     len(doc.History),
	}

	// files written by older versions carry only a history
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = info.ModTime()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = meta.UpdatedAt
	}
	return meta, nil
}

// Save atomically replaces the session file. The new document is written to
// a temp file in the same directory, synced, then renamed over the old one.
func (d *Driver) Save(_ context.Context, owner, name string, turns []llm.Turn) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	if err := d.save(owner, name, turns); err != nil {
		return &session.PersistenceError{Op: "save", Owner: owner, Name: name, Err: err}
	}
	return nil
}

func (d *Driver) save(owner, name string, turns []llm.Turn) error {
	dir := filepath.Join(d.root, owner)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("creating owner directory: %w", err)
	}

	path := filepath.Join(dir, name+ext)
	now := d.now().UTC()

	doc := &session.Session{
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		History:   llm.CloneTurns(turns),
	}
	if prev, err := readDocument(path); err == nil && !prev.CreatedAt.IsZero() {
		doc.CreatedAt = prev.CreatedAt
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling session: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, "."+name+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp session file: %w", err)
	}
	tmpName := tmpFile.Name()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if err := tmpFile.Chmod(filePerm); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("chmod temp session file: %w", err)
	}

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("writing temp session file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("syncing temp session file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp session file: %w", err)
	}

	if err := d.rename(tmpName, path); err != nil {
		return fmt.Errorf("persisting session file: %w", err)
	}

	committed = true
	return nil
}

// Load reads the session file. A missing file loads as an empty session.
func (d *Driver) Load(_ context.Context, owner, name string) (*session.Session, error) {
	name, err := session.Validate(owner, name)
	if err != nil {
		return nil, err
	}

	doc, err := readDocument(filepath.Join(d.root, owner, name+ext))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return session.Empty(owner, name), nil
		}
		return nil, &session.PersistenceError{Op: "load", Owner: owner, Name: name, Err: err}
	}

	doc.Owner = owner
	doc.Name = name
	if doc.History == nil {
		doc.History = []llm.Turn{}
	}
	return doc, nil
}

// Remove deletes the session file. A missing file is not an error.
func (d *Driver) Remove(_ context.Context, owner, name string) error {
	name, err := session.Validate(owner, name)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(d.root, owner, name+ext)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return &session.PersistenceError{Op: "remove", Owner: owner, Name: name, Err: err}
	}
	return nil
}

// Close is a no-op; the driver holds no open files between calls.
func (d *Driver) Close() error {
	return nil
}

func readDocument(path string) (*session.Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc session.Session
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return &doc, nil
}
