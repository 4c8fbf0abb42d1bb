package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/helixframework/helix/internal/core"
	"github.com/helixframework/helix/internal/debug"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"github.com/helixframework/helix/internal/interfaces/http/dto"
	"github.com/helixframework/helix/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

const maxMultipartMemory = 32 << 20

type requestKey struct{}

// WithRequest stores the HTTP request in ctx
func WithRequest(ctx context.Context, r *http.Request) context.Context {
	return context.WithValue(ctx, requestKey{}, r)
}

// Request returns the HTTP request an action is executed for
func Request(ctx context.Context) (*http.Request, bool) {
	r, ok := ctx.Value(requestKey{}).(*http.Request)
	return r, ok
}

// handle serves the default route. "/user/show/7" calls action "show" of controller
// "user" with params["id"] = "7".
func (d *Dispatcher) handle(c *gin.Context) {
	action, id := SplitPath(c.Param("path"))
	params, err := Params(c)
	if err != nil {
		d.renderError(c, err)
		return
	}
	if id != "" {
		params["id"] = id
	}
	d.call(c, c.Param("controller"), action, params)
}

// Action returns a handler executing one controller action. Path parameters of the
// route are merged into the action params.
func (d *Dispatcher) Action(controller, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		params, err := Params(c)
		if err != nil {
			d.renderError(c, err)
			return
		}
		for _, p := range c.Params {
			params[p.Key] = p.Value
		}
		d.call(c, controller, action, params)
	}
}

func (d *Dispatcher) call(c *gin.Context, controller, action string, params map[string]any) {
	c.Set(middleware.ActionKey, action)
	ctx := WithRequest(c.Request.Context(), c.Request)

	result, err := d.core.CallAction(ctx, controller, action, params)
	if err != nil {
		d.renderError(c, err)
		return
	}
	d.render(c, result)
}

// SplitPath splits the wildcard part of the default route into the action and the
// remaining path
func SplitPath(path string) (action, rest string) {
	path = strings.Trim(path, "/")
	action, rest, _ = strings.Cut(path, "/")
	return action, rest
}

// Params merges the query string with a JSON, urlencoded or multipart body. Body values
// win over query values; uploaded files are passed as *multipart.FileHeader.
func Params(c *gin.Context) (map[string]any, error) {
	params := make(map[string]any)
	for key, values := range c.Request.URL.Query() {
		params[key] = single(values)
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return params, nil
	}

	switch c.ContentType() {
	case binding.MIMEJSON:
		var body map[string]any
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			return nil, malformed(err)
		}
		for key, value := range body {
			params[key] = value
		}
	case binding.MIMEPOSTForm:
		if err := c.Request.ParseForm(); err != nil {
			return nil, malformed(err)
		}
		for key, values := range c.Request.PostForm {
			params[key] = single(values)
		}
	case binding.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxMultipartMemory); err != nil {
			return nil, malformed(err)
		}
		for key, values := range c.Request.MultipartForm.Value {
			params[key] = single(values)
		}
		for key, files := range c.Request.MultipartForm.File {
			if len(files) > 0 {
				params[key] = files[0]
			}
		}
	}
	return params, nil
}

func single(values []string) any {
	if len(values) == 1 {
		return values[0]
	}
	return append([]string(nil), values...)
}

func malformed(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return dto.NewClientError(http.StatusRequestEntityTooLarge, "Request body exceeds maximum allowed size")
	}
	return dto.NewClientError(http.StatusBadRequest, "Malformed request body")
}

// render writes an action result: strings as HTML, dto.Status with its own status code
// and everything else as JSON. A nil result answers 204.
func (d *Dispatcher) render(c *gin.Context, result any) {
	switch v := result.(type) {
	case nil:
		c.Status(http.StatusNoContent)
	case string:
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(v))
	case []byte:
		c.Data(http.StatusOK, "application/octet-stream", v)
	case dto.Status:
		renderStatus(c, v)
	case *dto.Status:
		if v == nil {
			c.Status(http.StatusNoContent)
			return
		}
		renderStatus(c, *v)
	default:
		c.JSON(http.StatusOK, v)
	}
}

func renderStatus(c *gin.Context, s dto.Status) {
	status := s.Status
	if status == 0 {
		status = http.StatusOK
	}
	if status == http.StatusNoContent || status == http.StatusNotModified {
		c.Status(status)
		return
	}
	c.JSON(status, s)
}

// renderError maps action errors onto responses. Client errors keep their status,
// missing controllers and actions answer 404 and anything else becomes a 500 snapshot.
func (d *Dispatcher) renderError(c *gin.Context, err error) {
	var clientErr *dto.ClientError
	if errors.As(err, &clientErr) {
		if clientErr.Status >= http.StatusInternalServerError {
			_ = c.Error(err)
		}
		c.AbortWithStatusJSON(clientErr.Status, clientErr.Response())
		return
	}

	var ctrlErr *core.ControllerError
	if errors.As(err, &ctrlErr) {
		switch ctrlErr.Code {
		case core.CodeNotFound, core.CodeBadAction:
			logger.GetGinLogger(c).Debug("Controller action not found", zap.String("path", c.Request.URL.Path), zap.Error(err))
			d.renderError(c, dto.NotFound())
			return
		case core.CodeBadArgument:
			d.renderError(c, dto.NewClientError(http.StatusBadRequest, ctrlErr.Message))
			return
		}
	}

	_ = c.Error(err)
	d.renderSnapshot(c, d.core.Snapshot(err))
}

func (d *Dispatcher) renderSnapshot(c *gin.Context, s *debug.Snapshot) {
	info := &dto.ErrorInfo{
		Code:     dto.ErrCodeInternal,
		Message:  http.StatusText(http.StatusInternalServerError),
		Snapshot: s.ID,
	}
	if !d.core.IsProduction() {
		info.Message = fmt.Sprintf("[%s] %s", s.Type, s.Message)
		info.Trace = strings.Split(strings.TrimRight(s.Stack, "\n"), "\n")
	}
	c.AbortWithStatusJSON(http.StatusInternalServerError, dto.Response{Error: info})
}

func (d *Dispatcher) recovered(c *gin.Context, value any) {
	d.renderSnapshot(c, d.core.Snapshot(debug.NewFatalError(value)))
}
