// Package scribecmder builds the root scribe command.
package scribecmder

import (
	"github.com/spf13/cobra"

	authcmder "github.com/papercomputeco/scribe/cmd/scribe/auth"
	chatcmder "github.com/papercomputeco/scribe/cmd/scribe/chat"
	configcmder "github.com/papercomputeco/scribe/cmd/scribe/config"
	imaginecmder "github.com/papercomputeco/scribe/cmd/scribe/imagine"
	initcmder "github.com/papercomputeco/scribe/cmd/scribe/init"
	servecmder "github.com/papercomputeco/scribe/cmd/scribe/serve"
	sessionscmder "github.com/papercomputeco/scribe/cmd/scribe/sessions"
	slidescmder "github.com/papercomputeco/scribe/cmd/scribe/slides"
	transcribecmder "github.com/papercomputeco/scribe/cmd/scribe/transcribe"
	versioncmder "github.com/papercomputeco/scribe/cmd/version"
)

const scribeLongDesc string = `Scribe is a streaming chat relay with persistent sessions.

Chat with any configured provider from the terminal, or run the server
for web and API clients:
  scribe chat          Chat in the terminal, resuming the active session
  scribe sessions      List, show, switch and remove saved sessions
  scribe serve         Run the HTTP server (sessions API, SSE chat, MCP)
  scribe transcribe    Turn recordings into text, or into chat messages
  scribe slides        Generate a slide deck from a description`

const scribeShortDesc string = "Scribe - streaming chat with saved sessions"

func NewScribeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "scribe",
		Short:        scribeShortDesc,
		Long:         scribeLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .scribe/ config directory")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(authcmder.NewAuthCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(sessionscmder.NewSessionsCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(transcribecmder.NewTranscribeCmd())
	cmd.AddCommand(imaginecmder.NewImagineCmd())
	cmd.AddCommand(slidescmder.NewSlidesCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
