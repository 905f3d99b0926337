// Package slidescmder provides the slides command generating a slide deck
// from a description.
package slidescmder

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/config"
	"github.com/papercomputeco/scribe/pkg/media"
)

type slidesCommander struct {
	slidesEndpoint string
	theme          string
	mode           string
	author         string
	notes          bool
	cover          bool
	poll           time.Duration
}

const slidesLongDesc string = `Generate a slide deck from a description and print its download URL.

Generation runs on iFlytek's slide API and needs an xfyun credential: the
app id as the key and the API secret ('scribe auth xfyun'). It usually
takes a minute or two; the command waits until the deck is ready.

Themes: auto, purple, green, lightblue, taupe, blue, telecomRed, telecomGreen.
Modes:  auto, topic (expand a short topic), text (lay out the given text).

Examples:
  scribe slides a pitch for a community solar farm
  scribe slides --theme blue --notes --author "Ada" "Q3 engineering review"`

const slidesShortDesc string = "Generate a slide deck from a description"

func NewSlidesCmd() *cobra.Command {
	cmder := &slidesCommander{}

	cmd := &cobra.Command{
		Use:   "slides <description>...",
		Short: slidesShortDesc,
		Long:  slidesLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagSlidesEndpoint, &cmder.slidesEndpoint)
	cmd.Flags().StringVar(&cmder.theme, "theme", "", "Deck theme (overrides media.slides_theme)")
	cmd.Flags().StringVar(&cmder.mode, "mode", "auto", "Generation mode: auto, topic or text")
	cmd.Flags().StringVar(&cmder.author, "author", "", "Author shown on the cover")
	cmd.Flags().BoolVar(&cmder.notes, "notes", false, "Write speaker notes")
	cmd.Flags().BoolVar(&cmder.cover, "cover", false, "Generate a cover image")
	cmd.Flags().DurationVar(&cmder.poll, "poll", 5*time.Second, "Wait between progress checks")

	return cmd
}

func (c *slidesCommander) run(cmd *cobra.Command, text string) error {
	cfg, err := wiring.LoadConfig(cmd, []string{config.FlagSlidesEndpoint})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	theme := cfg.Media.SlidesTheme
	if c.theme != "" {
		theme = c.theme
	}
	if !slices.Contains(media.SlideThemes, theme) {
		return fmt.Errorf("unknown theme %q", theme)
	}
	if !slices.Contains(media.SlideModes, c.mode) {
		return fmt.Errorf("unknown mode %q", c.mode)
	}

	slides, err := wiring.NewSlides(cfg, wiring.ConfigDir(cmd), media.SlidesConfig{
		Theme:        theme,
		Mode:         c.mode,
		Author:       c.author,
		SpeakNotes:   c.notes,
		CoverImage:   c.cover,
		PollInterval: c.poll,
	})
	if err != nil {
		return err
	}

	deck, err := slides.MakeSlides(cmd.Context(), text)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), deck)
	return nil
}
