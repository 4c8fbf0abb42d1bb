package commands

import (
	"fmt"
	"sort"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// AppInfo describes the application environment and directories
func AppInfo(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "app:info",
		Short: "Show application environment and directories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			settings := c.Settings()

			writef(out, "%s %s\n", console.Bold.Render(settings.App.Name), console.Muted.Render("helix "+core.Version))
			writeln(out, console.Table([]string{"Property", "Value"}, [][]string{
				{"Environment", c.Environment()},
				{"Application ID", fmt.Sprint(c.ApplicationID())},
				{"Timezone", c.Timezone()},
				{"Mode", c.Mode().String()},
			}))

			dirs := c.Directories()
			aliases := make([]string, 0, len(dirs))
			for alias := range dirs {
				aliases = append(aliases, alias)
			}
			sort.Strings(aliases)
			rows := make([][]string, 0, len(aliases))
			for _, alias := range aliases {
				rows = append(rows, []string{alias, dirs[alias]})
			}
			writeln(out, console.Table([]string{"Directory", "Path"}, rows))
			return nil
		},
	}
}

// ConfigShow prints a configuration section as YAML
func ConfigShow(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "config:show <section>",
		Short: "Show the merged content of a configuration section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			section, err := c.GetConfig(args[0])
			if err != nil {
				return err
			}
			data, err := yaml.Marshal(section)
			if err != nil {
				return fmt.Errorf("failed to encode section %s: %w", args[0], err)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
