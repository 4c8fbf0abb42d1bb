package commands

import (
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04:05"

// NotConfiguredHint is printed when the migrations directory or history table is missing
const NotConfiguredHint = "Migrations are not configured yet, run 'migrate:init' first."

// MigrateInit creates the migrations directory and history table
func MigrateInit(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:init",
		Short: "Create the migrations directory and history table",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := c.Migrator()
			if err != nil {
				return err
			}
			if err := m.Init(cmd.Context()); err != nil {
				return err
			}
			writeln(cmd.OutOrStdout(), console.Success.Render("Migrations initialised in "+m.Directory()))
			return nil
		},
	}
}

// MigrateStatus lists migrations and their execution state
func MigrateStatus(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:status",
		Short: "Show the status of every migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			m, err := c.Migrator()
			if err != nil {
				return err
			}
			if !m.IsConfigured() {
				writeln(out, console.Warning.Render(NotConfiguredHint))
				return nil
			}

			list, err := m.Migrations(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				writeln(out, "No migrations were found.")
				return nil
			}

			rows := make([][]string, 0, len(list))
			for _, s := range list {
				performed := console.Error.Render("not executed yet")
				if !s.Pending() {
					performed = s.TimeExecuted.In(c.Location()).Format(timeLayout)
				}
				rows = append(rows, []string{
					s.Name,
					s.Filename,
					s.TimeCreated.In(c.Location()).Format(timeLayout),
					performed,
				})
			}
			writeln(out, console.Table([]string{"Migration", "Filename", "Created at", "Performed at"}, rows))
			return nil
		},
	}
}

// Migrate executes pending migrations
func Migrate(c *core.Core) *cobra.Command {
	var steps int
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Execute pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			m, err := c.Migrator()
			if err != nil {
				return err
			}
			if !m.IsConfigured() {
				writeln(out, console.Warning.Render(NotConfiguredHint))
				return nil
			}

			executed, err := m.Run(cmd.Context(), steps)
			for _, s := range executed {
				writef(out, "Migration %s executed in %s\n", console.Bold.Render(s.Name), s.TimeExecuted.In(c.Location()).Format(timeLayout))
			}
			if err != nil {
				return err
			}
			if len(executed) == 0 {
				writeln(out, "No outstanding migrations were found.")
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to execute, 0 executes all")
	return cmd
}

// MigrateRollback reverts the last executed migration
func MigrateRollback(c *core.Core) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate:rollback",
		Short: "Roll back the last executed migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			m, err := c.Migrator()
			if err != nil {
				return err
			}
			if !m.IsConfigured() {
				writeln(out, console.Warning.Render(NotConfiguredHint))
				return nil
			}

			s, err := m.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if s == nil {
				writeln(out, "No executed migrations were found.")
				return nil
			}
			writef(out, "Migration %s was rolled back\n", console.Bold.Render(s.Name))
			return nil
		},
	}
}

// MakeMigration creates a timestamped migration pair
func MakeMigration(c *core.Core) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "make:migration <name>",
		Short: "Create an empty up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := c.Migrator()
			if err != nil {
				return err
			}
			created, err := m.Create(args[0], description)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writef(out, "Migration %s created\n", console.Bold.Render(created.Version+"_"+created.Name))
			writeln(out, console.Muted.Render(created.UpPath))
			writeln(out, console.Muted.Render(created.DownPath))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "migration description")
	return cmd
}
