package core

import (
	"context"
	"errors"
	"testing"

	"github.com/helixframework/helix/internal/core/container"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type greetController struct {
	BaseController
}

func newGreetController() *greetController {
	c := &greetController{BaseController: NewBaseController("greet")}
	c.HandleAction("index", func(context.Context, map[string]any) (any, error) {
		return "hello", nil
	})
	c.HandleAction("name", func(_ context.Context, params map[string]any) (any, error) {
		name, ok := params["name"].(string)
		if !ok {
			return nil, BadArgument("name", "required")
		}
		return "hello " + name, nil
	})
	return c
}

func TestBaseController_CallAction(t *testing.T) {
	c := newGreetController()
	ctx := context.Background()

	tests := []struct {
		name    string
		action  string
		params  map[string]any
		want    any
		wantErr error
	}{
		{"default action", "", nil, "hello", nil},
		{"explicit action", "name", map[string]any{"name": "ann"}, "hello ann", nil},
		{"bad argument", "name", nil, nil, ErrBadArgument},
		{"unknown action", "delete", nil, nil, ErrBadAction},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.CallAction(ctx, tt.action, tt.params)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, []string{"index", "name"}, c.Actions())
}

func TestCore_CallAction(t *testing.T) {
	c, _ := newTestCore(t, nil)
	c.Container().Singleton(ControllerAlias("greet"), func(*container.Container, container.Params) (any, error) {
		return newGreetController(), nil
	})
	c.Container().Instance(ControllerAlias("broken"), "not a controller")
	ctx := context.Background()

	got, err := c.CallAction(ctx, "greet", "name", map[string]any{"name": "bob"})
	require.NoError(t, err)
	assert.Equal(t, "hello bob", got)

	_, err = c.CallAction(ctx, "missing", "index", nil)
	assert.ErrorIs(t, err, ErrControllerNotFound)
	var ctrlErr *ControllerError
	require.True(t, errors.As(err, &ctrlErr))
	assert.Equal(t, "missing", ctrlErr.Controller)
	assert.Equal(t, "Undefined controller 'missing'", ctrlErr.Error())

	_, err = c.CallAction(ctx, "broken", "index", nil)
	assert.ErrorIs(t, err, ErrControllerNotFound)

	_, err = c.CallAction(ctx, "greet", "nope", nil)
	assert.ErrorIs(t, err, ErrBadAction)
}
