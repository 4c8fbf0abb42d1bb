package commands

import (
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/core/container"
	"github.com/spf13/cobra"
)

// Serve starts the HTTP dispatcher until the command context is cancelled
func Serve(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the application over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dispatcher, err := container.Resolve[core.Dispatcher](c.Container(), core.AliasHTTP)
			if err != nil {
				return err
			}
			return c.Start(cmd.Context(), dispatcher)
		},
	}
}
