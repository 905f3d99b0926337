// Package servecmder provides the serve command running the scribe HTTP
// server.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/api"
	"github.com/papercomputeco/scribe/api/mcp"
	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/media"
)

type serveCommander struct {
	flags serveFlags
}

// serveFlags are bound to viper; their values are read back through the
// resolved config.
type serveFlags struct {
	listen, provider, model, endpoint, scene string
	storage, sessionsDir, sqlite, postgres   string
	events, kafkaBrokers, kafkaTopic         string
	mediaEndpoint, inbox, logFile            string
	slidesEndpoint                           string
	stripCitations                           bool
}

var flagKeys = []string{
	config.FlagListen,
	config.FlagProvider,
	config.FlagModel,
	config.FlagEndpoint,
	config.FlagScene,
	config.FlagStorageDriver,
	config.FlagSessionsDir,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventsDriver,
	config.FlagKafkaBrokers,
	config.FlagKafkaTopic,
	config.FlagMediaEndpoint,
	config.FlagMediaInbox,
	config.FlagStripCitations,
	config.FlagLogFile,
	config.FlagSlidesEndpoint,
}

const serveLongDesc string = `Run the scribe HTTP server.

The server exposes the sessions API, streams replies to
POST /v1/sessions/:name/messages as server-sent events, and mounts an MCP
endpoint at /mcp with read-only session tools. Requests act for the owner
named in the X-Scribe-User header.

When an openai credential is available, /v1/transcriptions and /v1/images
are enabled, and --inbox watches a directory for finished recordings.
Documents posted to /v1/sessions/:name/files are extracted by the selected
OpenAI-compatible provider and added to the session. /v1/slides is enabled
when an xfyun credential is available.

Examples:
  scribe serve
  scribe serve --listen :9000 --provider deepseek --storage sqlite
  scribe serve --events kafka --kafka-brokers localhost:9092
  scribe serve --log-file scribe.log`

const serveShortDesc string = "Run the scribe HTTP server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	f := &cmder.flags
	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &f.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &f.provider)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &f.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagEndpoint, &f.endpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagScene, &f.scene)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &f.storage)
	config.AddStringFlag(cmd, config.Flags, config.FlagSessionsDir, &f.sessionsDir)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &f.sqlite)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &f.postgres)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsDriver, &f.events)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaBrokers, &f.kafkaBrokers)
	config.AddStringFlag(cmd, config.Flags, config.FlagKafkaTopic, &f.kafkaTopic)
	config.AddStringFlag(cmd, config.Flags, config.FlagMediaEndpoint, &f.mediaEndpoint)
	config.AddStringFlag(cmd, config.Flags, config.FlagMediaInbox, &f.inbox)
	config.AddBoolFlag(cmd, config.Flags, config.FlagStripCitations, &f.stripCitations)
	config.AddStringFlag(cmd, config.Flags, config.FlagLogFile, &f.logFile)
	config.AddStringFlag(cmd, config.Flags, config.FlagSlidesEndpoint, &f.slidesEndpoint)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := wiring.Open(ctx, cmd, flagKeys)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			rt.Logger.Warn("closing runtime", "error", err)
		}
	}()

	mcpServer, err := mcp.NewServer(mcp.Config{Store: rt.Store, Logger: rt.Logger})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	deps := api.Deps{
		Registry: rt.Registry,
		Service:  rt.Service,
		Resolver: rt.Resolver,
		MCP:      mcpServer.Handler(),

		Extractors: wiring.Extractors,
	}

	mediaClient, err := wiring.NewMediaClient(rt.Config, rt.ConfigDir)
	switch {
	case errors.Is(err, wiring.ErrNoMediaKey):
		rt.Logger.Info("transcription and images disabled", "reason", err)
	case err != nil:
		return err
	default:
		deps.Transcriber = mediaClient
		deps.Imager = mediaClient
	}

	slides, err := wiring.NewSlides(rt.Config, rt.ConfigDir, media.SlidesConfig{})
	switch {
	case errors.Is(err, wiring.ErrNoSlidesKey):
		rt.Logger.Info("slide generation disabled", "reason", err)
	case err != nil:
		return err
	default:
		deps.Slides = slides
	}

	server, err := api.NewServer(api.Config{ListenAddr: rt.Config.Server.Listen}, deps, rt.Logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 2)

	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	if rt.Config.Media.Inbox != "" && mediaClient != nil {
		go func() {
			if err := c.watchInbox(ctx, rt.Config.Media.Inbox, mediaClient, rt); err != nil {
				errChan <- err
			}
		}()
	}

	rt.Logger.Info("scribe server ready",
		"listen", rt.Config.Server.Listen,
		"provider", rt.Config.Provider.Name,
		"storage", rt.Config.Storage.Driver,
	)

	select {
	case err := <-errChan:
		_ = server.Shutdown()
		return err
	case <-ctx.Done():
		rt.Logger.Info("received signal, shutting down")
		return server.Shutdown()
	}
}

// watchInbox transcribes finished recordings next to their audio so the web
// client can pick the text up as a prompt.
func (c *serveCommander) watchInbox(ctx context.Context, dir string, t media.Transcriber, rt *wiring.Runtime) error {
	inbox, err := media.NewInbox(dir, t, rt.Logger)
	if err != nil {
		return err
	}

	rt.Logger.Info("watching recordings inbox", "dir", dir)
	return inbox.Run(ctx, func(tr media.Transcript) {
		if tr.Err != nil {
			rt.Logger.Warn("transcription failed", "recording", tr.ID, "error", tr.Err)
			return
		}
		rt.Logger.Info("transcribed recording", "recording", tr.ID, "chars", len(tr.Text))
	})
}
