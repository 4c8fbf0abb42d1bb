package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/interfaces/console"
	"github.com/helixframework/helix/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type app struct {
	root string
	core *core.Core
}

func newApp(t *testing.T) *app {
	t.Helper()
	c, root := testutil.NewDiskCore(t, testutil.SQLiteSettings)
	return &app{root: root, core: c}
}

// run executes one command line on a fresh dispatcher so flag values never leak
// between invocations
func (a *app) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	d := console.New(a.core, console.WithCommands(Default()...), console.WithOutput(&stdout, &stderr))
	err := d.Run(context.Background(), args...)
	return stdout.String(), err
}

func (a *app) write(t *testing.T, name, content string) {
	t.Helper()
	testutil.WriteFile(t, a.root, name, content)
}

func TestDefault_Registered(t *testing.T) {
	a := newApp(t)
	d := console.New(a.core, console.WithCommands(Default()...))
	assert.Equal(t, []string{
		"app:info",
		"config:show",
		"make:controller",
		"make:migration",
		"make:request",
		"make:service",
		"migrate",
		"migrate:init",
		"migrate:rollback",
		"migrate:status",
		"serve",
		"views:compile",
	}, d.Commands())
}

func TestAppInfo(t *testing.T) {
	a := newApp(t)
	out, err := a.run(t, "app:info")
	require.NoError(t, err)

	for _, s := range []string{"demo", core.Version, "Environment", "development", "Application ID", "UTC", a.root} {
		assert.Contains(t, out, s)
	}
}

func TestConfigShow(t *testing.T) {
	a := newApp(t)
	a.write(t, "application/config/mail.toml", "driver = \"smtp\"\nport = 25\n")

	out, err := a.run(t, "config:show", "mail")
	require.NoError(t, err)
	assert.Contains(t, out, "driver: smtp")
	assert.Contains(t, out, "port: 25")

	_, err = a.run(t, "config:show", "queue")
	assert.Error(t, err)

	_, err = a.run(t, "config:show")
	assert.Error(t, err)
}

func TestMigrations(t *testing.T) {
	a := newApp(t)

	out, err := a.run(t, "migrate:status")
	require.NoError(t, err)
	assert.Contains(t, out, NotConfiguredHint)

	out, err = a.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, NotConfiguredHint)

	out, err = a.run(t, "migrate:init")
	require.NoError(t, err)
	assert.Contains(t, out, "Migrations initialised in")

	out, err = a.run(t, "migrate:status")
	require.NoError(t, err)
	assert.Contains(t, out, "No migrations were found.")

	out, err = a.run(t, "make:migration", "create_users", "-d", "users table")
	require.NoError(t, err)
	assert.Contains(t, out, "_create_users created")

	ups, err := filepath.Glob(filepath.Join(a.root, "application/migrations/*_create_users.up.sql"))
	require.NoError(t, err)
	require.Len(t, ups, 1)
	require.NoError(t, os.WriteFile(ups[0], []byte("CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);\n"), 0o644))
	down := strings.TrimSuffix(ups[0], ".up.sql") + ".down.sql"
	require.NoError(t, os.WriteFile(down, []byte("DROP TABLE users;\n"), 0o644))

	out, err = a.run(t, "migrate:status")
	require.NoError(t, err)
	assert.Contains(t, out, "create_users")
	assert.Contains(t, out, "not executed yet")

	out, err = a.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration create_users executed in")

	out, err = a.run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "No outstanding migrations were found.")

	out, err = a.run(t, "migrate:status")
	require.NoError(t, err)
	assert.NotContains(t, out, "not executed yet")

	out, err = a.run(t, "migrate:rollback")
	require.NoError(t, err)
	assert.Contains(t, out, "Migration create_users was rolled back")

	out, err = a.run(t, "migrate:rollback")
	require.NoError(t, err)
	assert.Contains(t, out, "No executed migrations were found.")
}

func TestMakeController(t *testing.T) {
	a := newApp(t)

	out, err := a.run(t, "make:controller", "user",
		"--crud", "*orm.Repository[models.User]",
		"--import", "example.com/app/models",
	)
	require.NoError(t, err)
	assert.Contains(t, out, "UserController was created in")

	filename := filepath.Join(a.root, "application/controllers/user_controller.go")
	source, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Contains(t, string(source), "package controllers")
	assert.Contains(t, string(source), "func NewUserController(users *orm.Repository[models.User]) *UserController")
	assert.Contains(t, string(source), `c.HandleAction("delete", c.Delete)`)

	_, err = a.run(t, "make:controller", "user")
	assert.Error(t, err, "existing files are never overwritten")

	_, err = a.run(t, "make:controller", "user", "--dependency", "broken")
	assert.Error(t, err)
}

func TestMakeService(t *testing.T) {
	a := newApp(t)

	out, err := a.run(t, "make:service", "billing", "--dependency", "log:*zap.Logger", "--dir", filepath.Join(a.root, "pkg/billing"), "--package", "billing")
	require.NoError(t, err)
	assert.Contains(t, out, "BillingService was created in")

	source, err := os.ReadFile(filepath.Join(a.root, "pkg/billing/billing_service.go"))
	require.NoError(t, err)
	assert.Contains(t, string(source), "package billing")
	assert.Contains(t, string(source), `"go.uber.org/zap"`)
	assert.Contains(t, string(source), "func NewBillingService(log *zap.Logger) *BillingService")
}

func TestMakeRequest(t *testing.T) {
	a := newApp(t)

	_, err := a.run(t, "make:request", "signup",
		"--field", "email:string:required,email",
		"--field", "age:int",
		"--field", "nickname",
	)
	require.NoError(t, err)

	source, err := os.ReadFile(filepath.Join(a.root, "application/requests/signup_request.go"))
	require.NoError(t, err)
	assert.Contains(t, string(source), "type SignupRequest struct")
	assert.Contains(t, string(source), `validate:"required,email"`)
	assert.Contains(t, string(source), "func (r *SignupRequest) Fields() map[string]any")

	_, err = a.run(t, "make:request", "invite", "--field", "email", "--field", "email")
	assert.Error(t, err)
}

func TestViewsCompile(t *testing.T) {
	a := newApp(t)

	out, err := a.run(t, "views:compile")
	require.NoError(t, err)
	assert.Contains(t, out, "No views were found.")

	a.write(t, "application/views/home.tpl", "<h1>Hello</h1>")
	out, err = a.run(t, "views:compile")
	require.NoError(t, err)
	assert.Contains(t, out, "compiled default:home")
}
