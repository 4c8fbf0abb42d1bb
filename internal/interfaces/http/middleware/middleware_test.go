package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/helixframework/helix/internal/infrastructure/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name        string
		cfg         CORSConfig
		method      string
		origin      string
		wantStatus  int
		wantOrigin  string
		wantCreds   string
		wantMethods bool
	}{
		{
			name:       "empty whitelist sets no headers",
			cfg:        DefaultCORSConfig(),
			method:     http.MethodGet,
			origin:     "http://evil.example",
			wantStatus: http.StatusOK,
		},
		{
			name: "listed origin is echoed",
			cfg: CORSConfig{
				AllowOrigins:     []string{"http://localhost:3000"},
				AllowMethods:     []string{"GET"},
				AllowCredentials: true,
			},
			method:      http.MethodGet,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusOK,
			wantOrigin:  "http://localhost:3000",
			wantCreds:   "true",
			wantMethods: true,
		},
		{
			name:       "unlisted origin sets no headers",
			cfg:        CORSConfig{AllowOrigins: []string{"http://localhost:3000"}},
			method:     http.MethodGet,
			origin:     "http://other.example",
			wantStatus: http.StatusOK,
		},
		{
			name: "wildcard never allows credentials",
			cfg: CORSConfig{
				AllowOrigins:     []string{"*"},
				AllowCredentials: true,
			},
			method:      http.MethodGet,
			origin:      "http://any.example",
			wantStatus:  http.StatusOK,
			wantOrigin:  "*",
			wantMethods: true,
		},
		{
			name:       "preflight without allowed origin",
			cfg:        DefaultCORSConfig(),
			method:     http.MethodOptions,
			origin:     "http://any.example",
			wantStatus: http.StatusNoContent,
		},
		{
			name:        "preflight with allowed origin",
			cfg:         CORSConfig{AllowOrigins: []string{"http://localhost:3000"}, AllowMethods: []string{"GET", "POST"}},
			method:      http.MethodOptions,
			origin:      "http://localhost:3000",
			wantStatus:  http.StatusNoContent,
			wantOrigin:  "http://localhost:3000",
			wantMethods: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := gin.New()
			engine.Use(CORS(tt.cfg))
			engine.GET("/test", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

			req := httptest.NewRequest(tt.method, "/test", nil)
			req.Header.Set("Origin", tt.origin)
			w := serve(engine, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantOrigin, w.Header().Get("Access-Control-Allow-Origin"))
			assert.Equal(t, tt.wantCreds, w.Header().Get("Access-Control-Allow-Credentials"))
			assert.Equal(t, tt.wantMethods, w.Header().Get("Access-Control-Allow-Methods") != "")
		})
	}
}

func TestCORS_DefaultLists(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}}))
	engine.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://any.example")
	h := serve(engine, req).Header()

	defaults := DefaultCORSConfig()
	assert.Equal(t, strings.Join(defaults.AllowMethods, ", "), h.Get("Access-Control-Allow-Methods"))
	assert.Equal(t, strings.Join(defaults.AllowHeaders, ", "), h.Get("Access-Control-Allow-Headers"))
}

func TestCORS_MaxAge(t *testing.T) {
	engine := gin.New()
	engine.Use(CORS(CORSConfig{AllowOrigins: []string{"*"}, MaxAge: 12 * time.Hour}))
	engine.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.Header.Set("Origin", "http://any.example")
	assert.Equal(t, "43200", serve(engine, req).Header().Get("Access-Control-Max-Age"))
}

func TestRequestID(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestID())
	engine.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(logger.GinRequestIDKey))
	})

	tests := []struct {
		name   string
		header string
		reuse  bool
	}{
		{"generates an id", "", false},
		{"reuses the client id", "client-id", true},
		{"replaces oversized ids", strings.Repeat("x", MaxRequestIDLength+1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			if tt.header != "" {
				req.Header.Set(RequestIDHeader, tt.header)
			}
			w := serve(engine, req)

			id := w.Header().Get(RequestIDHeader)
			require.NotEmpty(t, id)
			assert.Equal(t, id, w.Body.String())
			assert.Equal(t, tt.reuse, id == tt.header)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	engine := gin.New()
	engine.Use(BodyLimit(16))
	engine.POST("/test", func(c *gin.Context) {
		if _, err := c.GetRawData(); err != nil {
			c.Status(http.StatusRequestEntityTooLarge)
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(engine, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, w.Code)

	w = serve(engine, httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(strings.Repeat("x", 64))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.Contains(t, w.Body.String(), "ERR_REQUEST_TOO_LARGE")

	req := httptest.NewRequest(http.MethodPost, "/test", bytes.NewReader(make([]byte, 64)))
	req.ContentLength = -1
	w = serve(engine, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code, "streamed bodies are capped by the reader")
}

func TestTracing(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	engine := gin.New()
	engine.Use(RequestID())
	engine.Use(Tracing(TracingConfig{ServiceName: "test", Enabled: true, Provider: tp})...)
	engine.GET("/:controller/*path", func(c *gin.Context) {
		c.Set(ActionKey, "show")
		c.Status(http.StatusNotFound)
	})

	req := httptest.NewRequest(http.MethodGet, "/user/show/1", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	serve(engine, req)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, codes.Error, span.Status().Code)
	assert.Equal(t, "Not Found", span.Status().Description)

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "req-1", attrs["request_id"].AsString())
	assert.Equal(t, "user", attrs["helix.controller"].AsString())
	assert.Equal(t, "show", attrs["helix.action"].AsString())
}

func TestTracing_Disabled(t *testing.T) {
	handlers := Tracing(TracingConfig{Enabled: false})
	require.Len(t, handlers, 1)

	engine := gin.New()
	engine.Use(handlers...)
	engine.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })
	assert.Equal(t, http.StatusOK, serve(engine, httptest.NewRequest(http.MethodGet, "/test", nil)).Code)
}

func TestSpanStatusText(t *testing.T) {
	tests := map[int]string{
		http.StatusBadRequest:          "Client Error",
		http.StatusUnauthorized:        "Unauthorized",
		http.StatusForbidden:           "Forbidden",
		http.StatusNotFound:            "Not Found",
		http.StatusInternalServerError: "Internal Server Error",
		http.StatusBadGateway:          "Internal Server Error",
	}
	for status, want := range tests {
		assert.Equal(t, want, SpanStatusText(status))
	}
}
