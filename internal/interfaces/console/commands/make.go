package commands

import (
	"fmt"
	"path"
	"strings"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/helixframework/helix/internal/reactor"
	"github.com/spf13/cobra"
)

// generator is implemented by the reactor generators
type generator interface {
	Name() string
}

type makeOptions struct {
	pkg          string
	directory    string
	imports      []string
	dependencies []string
}

func (o *makeOptions) register(cmd *cobra.Command, pkg string, withDependencies bool) {
	cmd.Flags().StringVar(&o.pkg, "package", pkg, "package of the generated file")
	cmd.Flags().StringVar(&o.directory, "dir", "", "target directory, <application>/<package> by default")
	cmd.Flags().StringArrayVar(&o.imports, "import", nil, "import path of a package used by generated types")
	if withDependencies {
		cmd.Flags().StringArrayVar(&o.dependencies, "dependency", nil, "constructor dependency as name:type")
	}
}

func (o *makeOptions) filename(c *core.Core, name, suffix string) string {
	dir := o.directory
	if dir == "" {
		dir = path.Join(c.MustDirectory(core.DirApplication), o.pkg)
	}
	return path.Join(dir, reactor.Snake(name)+suffix+".go")
}

// addDependencies parses name:type pairs
func addDependencies(add func(name, typ string) error, dependencies []string) error {
	for _, d := range dependencies {
		name, typ, ok := strings.Cut(d, ":")
		if !ok || name == "" || typ == "" {
			return fmt.Errorf("invalid dependency %q, expected name:type", d)
		}
		if err := add(name, typ); err != nil {
			return err
		}
	}
	return nil
}

func written(cmd *cobra.Command, g generator, filename string) {
	writef(cmd.OutOrStdout(), "%s was created in %s\n", console.Bold.Render(g.Name()), filename)
}

// MakeController generates a controller, optionally with CRUD actions
func MakeController(c *core.Core) *cobra.Command {
	var (
		opts    makeOptions
		service string
		request string
	)
	cmd := &cobra.Command{
		Use:   "make:controller <name>",
		Short: "Generate a controller",
		Example: `  helix make:controller user
  helix make:controller user --crud '*orm.Repository[models.User]' --request '*requests.UserRequest' \
    --import example.com/app/models --import example.com/app/requests`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			g, err := reactor.NewControllerGenerator(opts.pkg, name, opts.imports...)
			if err != nil {
				return err
			}
			if err := addDependencies(g.AddDependency, opts.dependencies); err != nil {
				return err
			}
			if service != "" {
				if err := g.CreateCRUD(name, service, request); err != nil {
					return err
				}
			}

			filename := opts.filename(c, name, "_controller")
			if err := g.Write(c.Files(), filename); err != nil {
				return err
			}
			written(cmd, g, filename)
			return nil
		},
	}
	opts.register(cmd, "controllers", true)
	cmd.Flags().StringVar(&service, "crud", "", "service type to generate CRUD actions with")
	cmd.Flags().StringVar(&request, "request", "", "request type bound by update and create")
	return cmd
}

// MakeService generates a service with constructor dependencies
func MakeService(c *core.Core) *cobra.Command {
	var opts makeOptions
	cmd := &cobra.Command{
		Use:     "make:service <name>",
		Short:   "Generate a service",
		Example: `  helix make:service billing --dependency 'log:*zap.Logger'`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			g, err := reactor.NewServiceGenerator(opts.pkg, name, opts.imports...)
			if err != nil {
				return err
			}
			if err := addDependencies(g.AddDependency, opts.dependencies); err != nil {
				return err
			}

			filename := opts.filename(c, name, "_service")
			if err := g.Write(c.Files(), filename); err != nil {
				return err
			}
			written(cmd, g, filename)
			return nil
		},
	}
	opts.register(cmd, "services", true)
	return cmd
}

// MakeRequest generates a validated request struct
func MakeRequest(c *core.Core) *cobra.Command {
	var (
		opts   makeOptions
		fields []string
	)
	cmd := &cobra.Command{
		Use:     "make:request <name>",
		Short:   "Generate a validated request",
		Example: `  helix make:request user --field name:string:required --field email:string:required,email`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			g, err := reactor.NewRequestGenerator(opts.pkg, name, opts.imports...)
			if err != nil {
				return err
			}
			for _, f := range fields {
				parts := strings.SplitN(f, ":", 3)
				field := reactor.RequestField{Name: parts[0]}
				if len(parts) > 1 {
					field.Type = parts[1]
				}
				if len(parts) > 2 {
					field.Rules = parts[2]
				}
				if err := g.AddField(field); err != nil {
					return err
				}
			}

			filename := opts.filename(c, name, "_request")
			if err := g.Write(c.Files(), filename); err != nil {
				return err
			}
			written(cmd, g, filename)
			return nil
		},
	}
	opts.register(cmd, "requests", false)
	cmd.Flags().StringArrayVar(&fields, "field", nil, "request field as name[:type[:rules]]")
	return cmd
}
