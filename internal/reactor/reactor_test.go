package reactor

import (
	"go/ast"
	"go/parser"
	"go/token"
	"testing"

	"github.com/helixframework/helix/internal/infrastructure/files"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNames(t *testing.T) {
	tests := []struct {
		in, camel, lower, snake, plural string
	}{
		{"user", "User", "user", "user", "users"},
		{"blog_post", "BlogPost", "blogPost", "blog_post", "blogPosts"},
		{"blog-category", "BlogCategory", "blogCategory", "blog_category", "blogCategories"},
		{"UserID", "UserID", "userID", "user_id", ""},
		{"person", "Person", "person", "person", "people"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.camel, Camel(tt.in))
			assert.Equal(t, tt.lower, LowerCamel(tt.in))
			assert.Equal(t, tt.snake, Snake(tt.in))
			if tt.plural != "" {
				assert.Equal(t, tt.plural, Plural(tt.in))
			}
		})
	}
}

func TestPackageName(t *testing.T) {
	tests := map[string]string{
		"net/http":                             "http",
		"github.com/redis/go-redis/v9":         "redis",
		"gopkg.in/yaml.v3":                     "yaml",
		"example.com/app/models":               "models",
		"github.com/jinzhu/inflection":         "inflection",
		"github.com/golang-migrate/migrate/v4": "migrate",
	}
	for in, want := range tests {
		assert.Equal(t, want, PackageName(in), in)
	}
}

// parse checks the source is valid Go and returns the declared top level names
func parse(t *testing.T, src []byte) []string {
	t.Helper()
	f, err := parser.ParseFile(token.NewFileSet(), "generated.go", src, parser.ParseComments)
	require.NoError(t, err, string(src))

	var names []string
	for _, d := range f.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			names = append(names, d.Name.Name)
		case *ast.GenDecl:
			for _, s := range d.Specs {
				if ts, ok := s.(*ast.TypeSpec); ok {
					names = append(names, ts.Name.Name)
				}
			}
		}
	}
	return names
}

func TestServiceGenerator(t *testing.T) {
	g, err := NewServiceGenerator("services", "user", "example.com/app/models")
	require.NoError(t, err)
	assert.Equal(t, "UserService", g.Name())

	require.NoError(t, g.AddDependency("users", "*orm.Repository[models.User]"))
	require.NoError(t, g.AddDependency("log", "*zap.Logger"))
	require.NoError(t, g.AddDependency("users", "string"))
	assert.Equal(t, []string{"users", "log"}, g.Dependencies())

	src, err := g.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"UserService", "NewUserService"}, parse(t, src))

	out := string(src)
	assert.Contains(t, out, "package services\n")
	assert.Contains(t, out, "\"example.com/app/models\"")
	assert.Contains(t, out, ModulePath+"/internal/orm\"")
	assert.Contains(t, out, "\"go.uber.org/zap\"")
	assert.Contains(t, out, "// UserService implements user operations.")
	assert.Contains(t, out, "func NewUserService(users *orm.Repository[models.User], log *zap.Logger) *UserService {")
	assert.Contains(t, out, "return &UserService{users: users, log: log}")
}

func TestServiceGenerator_Errors(t *testing.T) {
	_, err := NewServiceGenerator("services", "9lives")
	assert.ErrorIs(t, err, ErrInvalidName)

	g, err := NewServiceGenerator("services", "user")
	require.NoError(t, err)
	assert.Error(t, g.AddDependency("users", "*models.User"))
	assert.Error(t, g.AddDependency("users", "*orm.Repository["))
	assert.ErrorIs(t, g.AddDependency("bad name", "string"), ErrInvalidName)
}

func TestControllerGenerator_Empty(t *testing.T) {
	g, err := NewControllerGenerator("controllers", "home")
	require.NoError(t, err)

	src, err := g.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"HomeController", "NewHomeController", "Index"}, parse(t, src))

	out := string(src)
	assert.Contains(t, out, "\tcore.BaseController\n")
	assert.Contains(t, out, `c := &HomeController{BaseController: core.NewBaseController("home")}`)
	assert.Contains(t, out, `c.HandleAction("index", c.Index)`)
	assert.Contains(t, out, "func (c *HomeController) Index(ctx context.Context, params map[string]any) (any, error) {")
	assert.Equal(t, []string{"index"}, g.Actions())

	// rendering twice yields the same source
	again, err := g.Render()
	require.NoError(t, err)
	assert.Equal(t, string(src), string(again))
}

func TestControllerGenerator_CreateCRUD(t *testing.T) {
	g, err := NewControllerGenerator("controllers", "user", "example.com/app/models")
	require.NoError(t, err)
	require.NoError(t, g.CreateCRUD("user", "*orm.Repository[models.User]", ""))
	assert.Equal(t, []string{"retrieve", "show", "update", "create", "delete"}, g.Actions())

	src, err := g.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"UserController", "NewUserController", "Retrieve", "Show", "Update", "Create", "Delete",
	}, parse(t, src))

	out := string(src)
	for _, line := range []string{
		"\t\"context\"\n\t\"net/http\"\n",
		`c := &UserController{BaseController: core.NewBaseController("user"), users: users}`,
		`c.DefaultAction = "retrieve"`,
		`c.HandleAction("delete", c.Delete)`,
		`page, err := c.users.Find().Paginate(ctx, dto.IntParam(params, "page", 1), 50)`,
		`return dto.NewPageResponse(page), nil`,
		`entity, err := c.users.FindByPK(ctx, params["id"])`,
		`return nil, dto.NotFound()`,
		`if err := c.users.Assign(entity, params); err != nil {`,
		`return nil, dto.FromValidation(err)`,
		`return dto.Status{Status: http.StatusNoContent, Message: "Updated"}, nil`,
		`entity, err := c.users.Create(nil)`,
		`id, err := c.users.PrimaryKey(entity)`,
		`return dto.Status{Status: http.StatusCreated, Message: "Created", ID: id}, nil`,
		`return nil, dto.ServerError(err.Error())`,
		`return dto.Status{Status: http.StatusNoContent, Message: "Deleted"}, nil`,
		"// Retrieve lists users, 50 per page.",
	} {
		assert.Contains(t, out, line)
	}
	assert.NotContains(t, out, "dto.Bind")
}

func TestControllerGenerator_CreateCRUDWithRequest(t *testing.T) {
	g, err := NewControllerGenerator("controllers", "blog_post", "example.com/app/models", "example.com/app/requests")
	require.NoError(t, err)
	require.NoError(t, g.CreateCRUD("blog_post", "*orm.Repository[models.BlogPost]", "*requests.BlogPostRequest"))

	src, err := g.Render()
	require.NoError(t, err)
	parse(t, src)

	out := string(src)
	for _, line := range []string{
		"\"example.com/app/requests\"",
		`core.NewBaseController("blog_post")`,
		"blogPosts *orm.Repository[models.BlogPost]",
		"var request requests.BlogPostRequest",
		"if err := dto.Bind(params, &request); err != nil {",
		"if err := c.blogPosts.Assign(entity, request.Fields()); err != nil {",
		"entity, err := c.blogPosts.Create(request.Fields())",
	} {
		assert.Contains(t, out, line)
	}
}

func TestControllerGenerator_Errors(t *testing.T) {
	g, err := NewControllerGenerator("controllers", "user")
	require.NoError(t, err)

	assert.Error(t, g.CreateCRUD("user", "*orm.Repository[models.User]", ""))
	assert.ErrorIs(t, g.CreateCRUD("", "*orm.Repository[int]", ""), ErrInvalidName)

	require.NoError(t, g.AddAction("ping", nil))
	assert.Error(t, g.AddAction("ping", nil))
}

func TestRequestGenerator(t *testing.T) {
	g, err := NewRequestGenerator("requests", "user")
	require.NoError(t, err)
	require.NoError(t, g.AddField(RequestField{Name: "name", Rules: "required,min=2"}))
	require.NoError(t, g.AddField(RequestField{Name: "email", Type: "string", Rules: "required,email"}))
	require.NoError(t, g.AddField(RequestField{Name: "birth_date", Type: "*time.Time"}))
	assert.Error(t, g.AddField(RequestField{Name: "email"}))

	src, err := g.Render()
	require.NoError(t, err)
	assert.Equal(t, []string{"UserRequest", "Fields"}, parse(t, src))

	out := string(src)
	assert.Contains(t, out, "\"time\"")
	assert.Contains(t, out, "`json:\"email\" validate:\"required,email\"`")
	assert.Contains(t, out, "`json:\"birth_date\"`")
	assert.Contains(t, out, "func (r *UserRequest) Fields() map[string]any {")
	assert.Contains(t, out, `"birth_date": r.BirthDate`)
}

func TestWrite_NeverOverwrites(t *testing.T) {
	fm := files.NewMemory()
	filename := "/app/application/controllers/user_controller.go"

	g, err := NewControllerGenerator("controllers", "user")
	require.NoError(t, err)
	require.NoError(t, g.Write(fm, filename))

	written, err := fm.Read(filename)
	require.NoError(t, err)
	parse(t, written)

	require.NoError(t, fm.Write(filename, []byte("package controllers\n"), files.ReadOnly, false))
	assert.ErrorIs(t, g.Write(fm, filename), ErrExists)

	kept, err := fm.Read(filename)
	require.NoError(t, err)
	assert.Equal(t, "package controllers\n", string(kept))
}
