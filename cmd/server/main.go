// Command server runs a helix application as an HTTP server until SIGINT or SIGTERM.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/http/dispatcher"
	"go.uber.org/zap"
)

func main() {
	root := os.Getenv("HELIX_ROOT")
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(os.Stderr, "server:", err)
			os.Exit(1)
		}
		root = wd
	}

	c, err := core.Init(core.Directories{Root: root},
		core.WithMode(core.ModeHTTP),
		core.WithBootloaders(dispatcher.Bootloader()),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, "server:", err)
		os.Exit(1)
	}

	log := c.Logger()
	log.Info("Starting helix",
		zap.String("app", c.Settings().App.Name),
		zap.String("environment", c.Environment()),
		zap.String("version", core.Version),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = c.Start(ctx, nil)
	stop()
	if err != nil {
		c.HandleError(err)
	}

	_ = log.Sync()
	_ = c.Close()
	if err != nil {
		os.Exit(1)
	}
}
