package commands

import (
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/spf13/cobra"
)

// ViewsCompile compiles every view of every namespace into the view cache
func ViewsCompile(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "views:compile",
		Short: "Compile every view into the view cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			views, err := c.Views()
			if err != nil {
				return err
			}

			compiled, err := views.CompileAll()
			for _, name := range compiled {
				writef(out, "%s %s\n", console.Success.Render("compiled"), name)
			}
			if err != nil {
				return err
			}
			if len(compiled) == 0 {
				writeln(out, "No views were found.")
			}
			return nil
		},
	}
}
