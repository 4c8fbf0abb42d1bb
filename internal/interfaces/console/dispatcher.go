// Package console runs the application as a command line tool built on cobra.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/debug"
	"github.com/spf13/cobra"
)

// CommandFactory builds a command bound to the application core
type CommandFactory func(c *core.Core) *cobra.Command

// Dispatcher executes console commands
type Dispatcher struct {
	core   *core.Core
	root   *cobra.Command
	args   []string
	stderr io.Writer
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithCommands registers commands built by factories
func WithCommands(factories ...CommandFactory) Option {
	return func(d *Dispatcher) {
		for _, factory := range factories {
			d.root.AddCommand(factory(d.core))
		}
	}
}

// WithArgs sets the command line instead of os.Args
func WithArgs(args ...string) Option {
	return func(d *Dispatcher) {
		d.args = args
	}
}

// WithOutput redirects command output and error output
func WithOutput(stdout, stderr io.Writer) Option {
	return func(d *Dispatcher) {
		d.root.SetOut(stdout)
		d.root.SetErr(stderr)
		d.stderr = stderr
	}
}

// New creates a console dispatcher for c
func New(c *core.Core, opts ...Option) *Dispatcher {
	settings := c.Settings()
	root := &cobra.Command{
		Use:           "helix",
		Short:         settings.App.Name + " console",
		Version:       core.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	d := &Dispatcher{core: c, root: root, stderr: os.Stderr}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the root command
func (d *Dispatcher) Root() *cobra.Command {
	return d.root
}

// Commands lists the registered command names, sorted
func (d *Dispatcher) Commands() []string {
	var names []string
	for _, cmd := range d.root.Commands() {
		names = append(names, cmd.Name())
	}
	sort.Strings(names)
	return names
}

// SetArgs replaces the command line executed by Start
func (d *Dispatcher) SetArgs(args ...string) {
	d.args = args
}

// Start executes the command line
func (d *Dispatcher) Start(ctx context.Context) error {
	if d.args != nil {
		d.root.SetArgs(d.args)
	} else {
		d.root.SetArgs(os.Args[1:])
	}
	return d.root.ExecuteContext(ctx)
}

// Run executes one command line, used by commands invoking other commands
func (d *Dispatcher) Run(ctx context.Context, args ...string) error {
	d.root.SetArgs(args)
	return d.root.ExecuteContext(ctx)
}

// HandleSnapshot prints the snapshot in red to the error output. Stack traces are
// omitted in production.
func (d *Dispatcher) HandleSnapshot(s *debug.Snapshot) {
	text := fmt.Sprintf("[%s] %s\nsnapshot: %s", s.Type, s.Message, s.ID)
	if !d.core.IsProduction() {
		text = s.Render()
	}
	fmt.Fprintln(d.stderr, Error.Render(text))
}

// Bootloader binds a console dispatcher with the given commands as the core console
// dispatcher
func Bootloader(factories ...CommandFactory) core.Bootloader {
	return BootloaderWith(WithCommands(factories...))
}

// BootloaderWith binds a console dispatcher created with opts
func BootloaderWith(opts ...Option) core.Bootloader {
	return func(c *core.Core) error {
		c.Container().Singleton(core.ConsoleDispatcherBinding, func(*container.Container, container.Params) (any, error) {
			return New(c, opts...), nil
		})
		return nil
	}
}
