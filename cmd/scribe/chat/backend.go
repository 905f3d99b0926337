package chatcmder

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/papercomputeco/scribe/api"
	"github.com/papercomputeco/scribe/api/client"
	"github.com/papercomputeco/scribe/pkg/chat"
	"github.com/papercomputeco/scribe/pkg/llm"
	"github.com/papercomputeco/scribe/pkg/media"
)

// outcome is how one reply ended, from the chat loop's point of view.
type outcome struct {
	Content    string
	Saved      bool
	Incomplete bool
	Warning    string
}

// backend is where the chat loop sends messages: the local session store or
// a scribe server.
type backend interface {
	// Open positions on the named session, creating a default-named one
	// when name is empty, and returns its name and history.
	Open(ctx context.Context, name string) (string, []llm.Turn, error)

	// Create starts a new session; an empty name picks "chat_<n>".
	Create(ctx context.Context, name string) (string, error)

	// System appends a system turn to the named session.
	System(ctx context.Context, name, prompt string) error

	// Attach adds the text of the document at path to the named session.
	// It reports false when the session already held that text.
	Attach(ctx context.Context, name, path string) (bool, error)

	Send(ctx context.Context, name, prompt string, onFragment func(string)) (outcome, error)

	Describe() string
}

type localBackend struct {
	owner    string
	registry *chat.Registry
	service  *chat.Service
	resolver *chat.Resolver
	sel      chat.Selection

	extractors func(chat.Target) (media.Extractor, error)
}

func (b *localBackend) Open(ctx context.Context, name string) (string, []llm.Turn, error) {
	if name == "" {
		log, err := b.registry.Create(ctx, b.owner, "")
		if err != nil {
			return "", nil, err
		}
		return log.Name(), log.Turns(), nil
	}

	log, err := b.registry.Get(ctx, b.owner, name)
	if err != nil {
		return "", nil, err
	}
	return log.Name(), log.Turns(), nil
}

func (b *localBackend) Create(ctx context.Context, name string) (string, error) {
	log, err := b.registry.Create(ctx, b.owner, name)
	if err != nil {
		return "", err
	}
	return log.Name(), nil
}

func (b *localBackend) System(ctx context.Context, name, prompt string) error {
	log, err := b.registry.Get(ctx, b.owner, name)
	if err != nil {
		return err
	}
	if err := log.Append(llm.NewTurn(llm.RoleSystem, prompt)); err != nil {
		return err
	}
	return log.CommitIfNamed(ctx)
}

func (b *localBackend) Attach(ctx context.Context, name, path string) (bool, error) {
	if _, err := media.DocumentType(path); err != nil {
		return false, err
	}

	target, err := b.resolver.Resolve(b.sel)
	if err != nil {
		return false, err
	}
	extractor, err := b.extractors(target)
	if err != nil {
		return false, err
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	text, err := extractor.Extract(ctx, f, path)
	if err != nil {
		return false, err
	}

	log, err := b.registry.Get(ctx, b.owner, name)
	if err != nil {
		return false, err
	}
	res, err := b.service.Attach(ctx, log, filepath.Base(path), text)
	return res.Appended, err
}

func (b *localBackend) Send(ctx context.Context, name, prompt string, onFragment func(string)) (outcome, error) {
	target, err := b.resolver.Resolve(b.sel)
	if err != nil {
		return outcome{}, err
	}

	log, err := b.registry.Get(ctx, b.owner, name)
	if err != nil {
		return outcome{}, err
	}

	reply, err := b.service.Submit(ctx, log, target, prompt)
	if err != nil {
		return outcome{}, err
	}

	for fragment := range reply.Fragments() {
		onFragment(fragment)
	}

	// the stream may have been cut by ctx; saving must not be
	res, err := reply.Finish(context.WithoutCancel(ctx))
	out := outcome{
		Content:    res.Content,
		Saved:      res.Appended,
		Incomplete: res.Incomplete,
	}
	if submitErr := reply.SubmitErr(); submitErr != nil {
		out.Warning = "your message was not saved: " + submitErr.Error()
	}
	return out, err
}

func (b *localBackend) Describe() string {
	target, err := b.resolver.Resolve(b.sel)
	if err != nil {
		return b.resolver.Defaults().Provider
	}
	return target.Name + " · " + target.Binding.Model
}

type remoteBackend struct {
	client *client.Client
	target string
	req    api.MessageRequest
}

func (b *remoteBackend) Open(ctx context.Context, name string) (string, []llm.Turn, error) {
	if name == "" {
		created, err := b.client.CreateSession(ctx, "")
		if err != nil {
			return "", nil, err
		}
		return created.Name, created.History, nil
	}

	sess, err := b.client.GetSession(ctx, name)
	if err != nil {
		return "", nil, err
	}
	return sess.Name, sess.History, nil
}

func (b *remoteBackend) Create(ctx context.Context, name string) (string, error) {
	created, err := b.client.CreateSession(ctx, name)
	if err != nil {
		return "", err
	}
	return created.Name, nil
}

func (b *remoteBackend) System(context.Context, string, string) error {
	return errors.New("system prompts are only supported for local sessions")
}

func (b *remoteBackend) Attach(ctx context.Context, name, path string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	res, err := b.client.Attach(ctx, name, path, f, b.req.Provider)
	if err != nil {
		return false, err
	}
	return res.Appended, nil
}

func (b *remoteBackend) Send(ctx context.Context, name, prompt string, onFragment func(string)) (outcome, error) {
	req := b.req
	req.Content = prompt

	done, err := b.client.Send(ctx, name, req, onFragment)
	if err != nil {
		return outcome{}, err
	}
	return outcome{
		Content:    done.Content,
		Saved:      done.Turn != nil,
		Incomplete: done.Incomplete,
		Warning:    done.SaveError,
	}, nil
}

func (b *remoteBackend) Describe() string {
	return b.target
}
