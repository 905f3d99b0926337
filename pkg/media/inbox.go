package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/papercomputeco/scribe/pkg/logger"
)

const (
	// doneExt marks a recording as fully written: the recorder writes
	// <id>.<audio ext> and then creates <id>.done.
	doneExt = ".done"

	// transcriptExt holds the text of a processed recording.
	transcriptExt = ".txt"
)

// audioExts are the recording formats the inbox looks for, in order.
var audioExts = []string{".wav", ".mp3", ".m4a", ".webm", ".ogg"}

// Transcript is the outcome of one recording.
type Transcript struct {
	ID   string
	Path string
	Text string
	Err  error
}

// Inbox watches a directory for completed recordings and transcribes each
// one exactly once. A recording is complete when its <id>.done marker
// exists. On success the text is written to <id>.txt and the marker removed,
// so a restarted inbox does not transcribe it again. A failed recording keeps
// its marker and is released; touching the marker again retries it.
type Inbox struct {
	dir         string
	transcriber Transcriber
	logger      *slog.Logger

	mu   sync.Mutex
	seen map[string]struct{}
}

// NewInbox creates an inbox over dir, creating the directory if needed.
func NewInbox(dir string, t Transcriber, l *slog.Logger) (*Inbox, error) {
	if t == nil {
		return nil, errors.New("inbox requires a transcriber")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating inbox directory: %w", err)
	}
	if l == nil {
		l = logger.Nop()
	}

	return &Inbox{
		dir:         dir,
		transcriber: t,
		logger:      l,
		seen:        make(map[string]struct{}),
	}, nil
}

// Run processes recordings already waiting in the directory, then watches
// for new ones until ctx is done. handle is called once per recording from
// the Run goroutine.
func (i *Inbox) Run(ctx context.Context, handle func(Transcript)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating inbox watcher: %w", err)
	}
	defer watcher.Close()

	// watch before scanning so markers created in between are not missed
	if err := watcher.Add(i.dir); err != nil {
		return fmt.Errorf("watching inbox dir: %w", err)
	}

	if err := i.scan(ctx, handle); err != nil {
		return err
	}

	i.logger.Info("inbox watching", "dir", i.dir)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if id, ok := markerID(event.Name); ok {
				i.process(ctx, id, handle)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("inbox watcher error: %w", err)
		}
	}
}

// scan processes every marker currently in the directory.
func (i *Inbox) scan(ctx context.Context, handle func(Transcript)) error {
	entries, err := os.ReadDir(i.dir)
	if err != nil {
		return fmt.Errorf("reading inbox dir: %w", err)
	}

	for _, entry := range entries {
		if id, ok := markerID(entry.Name()); ok {
			i.process(ctx, id, handle)
		}
	}
	return nil
}

func (i *Inbox) process(ctx context.Context, id string, handle func(Transcript)) {
	if !i.claim(id) {
		return
	}

	t := Transcript{ID: id}
	t.Path, t.Err = i.audioPath(id)
	if t.Err == nil {
		t.Text, t.Err = i.transcribe(ctx, t.Path)
	}

	if t.Err == nil {
		t.Err = i.complete(id, t.Text)
	}

	if t.Err != nil {
		i.release(id)
		i.logger.Warn("recording not transcribed", "id", id, "error", t.Err)
	} else {
		i.logger.Info("recording transcribed", "id", id, "chars", len(t.Text))
	}

	handle(t)
}

// claim reports whether id has not been processed by this inbox yet.
func (i *Inbox) claim(id string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.seen[id]; ok {
		return false
	}
	i.seen[id] = struct{}{}
	return true
}

func (i *Inbox) release(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.seen, id)
}

func (i *Inbox) audioPath(id string) (string, error) {
	for _, ext := range audioExts {
		path := filepath.Join(i.dir, id+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no audio file for recording %q", id)
}

func (i *Inbox) transcribe(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	return i.transcriber.Transcribe(ctx, f, filepath.Base(path))
}

func (i *Inbox) complete(id, text string) error {
	if err := os.WriteFile(filepath.Join(i.dir, id+transcriptExt), []byte(text+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing transcript: %w", err)
	}
	if err := os.Remove(filepath.Join(i.dir, id+doneExt)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing marker: %w", err)
	}
	return nil
}

func markerID(path string) (string, bool) {
	name := filepath.Base(path)
	id, ok := strings.CutSuffix(name, doneExt)
	if !ok || id == "" || strings.HasPrefix(id, ".") {
		return "", false
	}
	return id, true
}
