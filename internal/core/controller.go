package core

import (
	"context"
	"sort"
)

// ControllerAlias returns the container alias a controller is bound under
func ControllerAlias(name string) string {
	return "controller." + name
}

// Controller executes named actions
type Controller interface {
	CallAction(ctx context.Context, action string, params map[string]any) (any, error)
}

// ActionFunc handles one controller action
type ActionFunc func(ctx context.Context, params map[string]any) (any, error)

// BaseController dispatches actions registered with HandleAction. Controllers embed it
// and register their actions in their constructor; actions must not be registered
// while the controller is serving calls.
type BaseController struct {
	// DefaultAction runs when the action name is empty
	DefaultAction string

	name    string
	actions map[string]ActionFunc
}

// NewBaseController creates a base controller named name with "index" as default action
func NewBaseController(name string) BaseController {
	return BaseController{DefaultAction: "index", name: name}
}

// Name returns the controller name used in errors
func (c *BaseController) Name() string {
	return c.name
}

// HandleAction registers fn under action
func (c *BaseController) HandleAction(action string, fn ActionFunc) {
	if c.actions == nil {
		c.actions = make(map[string]ActionFunc)
	}
	c.actions[action] = fn
}

// Actions returns the registered action names, sorted
func (c *BaseController) Actions() []string {
	out := make([]string, 0, len(c.actions))
	for name := range c.actions {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// CallAction runs action, or the default action when it is empty
func (c *BaseController) CallAction(ctx context.Context, action string, params map[string]any) (any, error) {
	if action == "" {
		action = c.DefaultAction
	}

	fn, ok := c.actions[action]
	if !ok || fn == nil {
		return nil, badAction(c.name, action)
	}
	if params == nil {
		params = map[string]any{}
	}
	return fn(ctx, params)
}
