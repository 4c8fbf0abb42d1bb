// Command helix is the console entry point of a helix application: it runs migrations,
// code generators, view compilation and, with "serve", the HTTP server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/helixframework/helix/internal/interfaces/console/commands"
	"github.com/helixframework/helix/internal/interfaces/http/dispatcher"
)

func main() {
	os.Exit(run())
}

func run() int {
	root, err := applicationRoot()
	if err != nil {
		fmt.Fprintln(os.Stderr, "helix:", err)
		return 1
	}

	c, err := core.Init(core.Directories{Root: root},
		core.WithMode(core.ModeConsole),
		core.WithBootloaders(
			console.Bootloader(commands.Default()...),
			dispatcher.Bootloader(),
		),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "helix:", err)
		return 1
	}
	defer func() {
		_ = c.Logger().Sync()
		_ = c.Close()
	}()
	defer c.Recover()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := c.Start(ctx, nil); err != nil {
		c.HandleError(err)
		return 1
	}
	return 0
}

// applicationRoot is HELIX_ROOT or the working directory
func applicationRoot() (string, error) {
	if root := os.Getenv("HELIX_ROOT"); root != "" {
		return root, nil
	}
	return os.Getwd()
}
