// Package configcmder provides the config command for managing persistent
// scribe configuration stored in the .scribe/ directory.
package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/scribe/pkg/cliui"
	"github.com/papercomputeco/scribe/pkg/config"
)

const configLongDesc string = `Manage persistent scribe configuration.

Configuration is stored as config.toml in the .scribe/ directory and provides
default values for command flags. CLI flags and SCRIBE_* environment
variables take precedence over config file values.

Keys use dotted notation matching the TOML section structure, for example:
  provider.name, provider.model, provider.scene, provider.temperature,
  storage.driver, storage.sqlite_path, server.listen, client.owner,
  events.driver, events.brokers, media.inbox

Use subcommands to get, set, or list configuration values:
  scribe config set <key> <value>    Set a configuration value
  scribe config get <key>            Get a configuration value
  scribe config list                 List all configuration values

Examples:
  scribe config set provider.name deepseek
  scribe config set provider.scene code
  scribe config get provider.name
  scribe config list`

const configShortDesc string = "Manage persistent scribe configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func printTarget(out io.Writer, cfger *config.Configer) {
	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)
}
