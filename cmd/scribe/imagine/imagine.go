// Package imaginecmder provides the imagine command generating an image
// from a prompt.
package imaginecmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/cmd/scribe/wiring"
	"github.com/papercomputeco/scribe/pkg/config"
)

type imagineCommander struct {
	mediaEndpoint string
	model         string
	size          string
}

const imagineLongDesc string = `Generate an image from a prompt and print its URL.

The image model and size default to media.image_model and media.image_size
in config.toml.

Examples:
  scribe imagine a lighthouse at dusk, watercolor
  scribe imagine --size 1792x1024 "a wide mountain panorama"`

const imagineShortDesc string = "Generate an image from a prompt"

func NewImagineCmd() *cobra.Command {
	cmder := &imagineCommander{}

	cmd := &cobra.Command{
		Use:   "imagine <prompt>...",
		Short: imagineShortDesc,
		Long:  imagineLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd, strings.Join(args, " "))
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagMediaEndpoint, &cmder.mediaEndpoint)
	cmd.Flags().StringVar(&cmder.model, "image-model", "", "Image model (overrides media.image_model)")
	cmd.Flags().StringVar(&cmder.size, "size", "", "Image size (overrides media.image_size)")

	return cmd
}

func (c *imagineCommander) run(cmd *cobra.Command, prompt string) error {
	cfg, err := wiring.LoadConfig(cmd, []string{config.FlagMediaEndpoint})
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.model != "" {
		cfg.Media.ImageModel = c.model
	}
	if c.size != "" {
		cfg.Media.ImageSize = c.size
	}

	client, err := wiring.NewMediaClient(cfg, wiring.ConfigDir(cmd))
	if err != nil {
		return err
	}

	url, err := client.Generate(cmd.Context(), prompt)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), url)
	return nil
}
