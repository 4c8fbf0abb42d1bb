package core

import (
	"context"
	"fmt"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/helixframework/helix/internal/debug"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Dispatcher serves the application, e.g. as a console command or an HTTP server
type Dispatcher interface {
	Start(ctx context.Context) error
	HandleSnapshot(s *debug.Snapshot)
}

// Start runs dispatcher, or the default dispatcher of the core mode when it is nil
func (c *Core) Start(ctx context.Context, dispatcher Dispatcher) error {
	if dispatcher == nil {
		alias := AliasConsole
		if c.mode == ModeHTTP {
			alias = AliasHTTP
		}
		d, err := container.Resolve[Dispatcher](c.container, alias)
		if err != nil {
			return &CoreError{Code: CodeNoDispatcher, Message: fmt.Sprintf("no %s dispatcher is registered", c.mode), Err: err}
		}
		dispatcher = d
	}

	c.mu.Lock()
	c.dispatcher = dispatcher
	c.mu.Unlock()

	return dispatcher.Start(ctx)
}

// Dispatcher returns the active dispatcher, nil before Start
func (c *Core) Dispatcher() Dispatcher {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.dispatcher
}

// CallAction executes action of the controller bound as controller.<name>
func (c *Core) CallAction(ctx context.Context, controller, action string, params map[string]any) (any, error) {
	alias := ControllerAlias(controller)
	if !c.container.Has(alias) {
		return nil, controllerNotFound(controller)
	}

	value, err := c.container.Get(alias, nil)
	if err != nil {
		return nil, err
	}
	ctrl, ok := value.(Controller)
	if !ok {
		return nil, controllerNotFound(controller)
	}

	ctx, log := logger.WithAction(ctx, logger.L(ctx), controller, action)
	log.Debug("Calling action")
	return ctrl.CallAction(ctx, action, params)
}

// HandleError reports err as a snapshot and hands it to the active dispatcher. Without
// a dispatcher the rendered snapshot goes to stderr.
func (c *Core) HandleError(err error) *debug.Snapshot {
	s := c.Snapshot(err)

	if d := c.Dispatcher(); d != nil {
		d.HandleSnapshot(s)
		return s
	}
	if _, werr := fmt.Fprintln(c.stderr, s.Render()); werr != nil {
		c.logger.Warn("unable to write snapshot", zap.Error(werr))
	}
	return s
}

// Snapshot captures and reports err without handing it to a dispatcher. Dispatchers use
// it for errors they render themselves.
func (c *Core) Snapshot(err error) *debug.Snapshot {
	s := debug.NewSnapshot(err, c.Environment())
	c.reporter.Report(s)
	return s
}

// Recover handles a panic of the calling goroutine. Use as "defer c.Recover()".
func (c *Core) Recover() {
	if r := recover(); r != nil {
		c.HandleError(debug.NewFatalError(r))
	}
}
