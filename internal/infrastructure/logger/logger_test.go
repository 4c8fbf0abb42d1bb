package logger

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestConfigForEnvironment(t *testing.T) {
	tests := []struct {
		env    string
		level  string
		format string
	}{
		{"development", "debug", "console"},
		{"testing", "info", "console"},
		{"staging", "info", "json"},
		{"production", "info", "json"},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := ConfigForEnvironment(tt.env)
			assert.Equal(t, tt.level, cfg.Level)
			assert.Equal(t, tt.format, cfg.Format)
		})
	}
}

func TestNew_FileOutput(t *testing.T) {
	output := filepath.Join(t.TempDir(), "logs", "app.log")

	log, err := New(&Config{Level: "info", Format: "json", Output: output, Name: "helix"})
	require.NoError(t, err)
	log.Info("started")
	require.NoError(t, log.Sync())

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"started"`)
	assert.Contains(t, string(data), `"logger":"helix"`)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLevel("DEBUG"))
	assert.Equal(t, zapcore.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, ParseLevel("chatty"))
}

func TestBenchmark(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	done := Benchmark(zap.New(core), "compile", zap.String("view", "home"))

	elapsed := done(zap.Int("size", 10))
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	entries := recorded.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "compile", fields["operation"])
	assert.Equal(t, "home", fields["view"])
	assert.Equal(t, int64(10), fields["size"])
}

func TestContextHelpers(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	assert.NotNil(t, FromContext(context.Background()))

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	ctx, _ = WithAction(ctx, FromContext(ctx), "users", "show")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	controller, action := GetAction(ctx)
	assert.Equal(t, "users", controller)
	assert.Equal(t, "show", action)

	traceID, _ := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	spanID, _ := trace.SpanIDFromHex("0102030405060708")
	ctx = trace.ContextWithSpanContext(ctx, trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	L(ctx).Info("handled")
	fields := recorded.All()[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "show", fields["action"])
	assert.Equal(t, traceID.String(), fields["trace_id"])
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.InfoLevel)

	router := gin.New()
	router.Use(func(c *gin.Context) { c.Set(GinRequestIDKey, "req-7") })
	router.Use(GinMiddleware(zap.New(core)))
	router.GET("/ok", func(c *gin.Context) {
		assert.Equal(t, "req-7", GetRequestID(c.Request.Context()))
		FromContext(c.Request.Context()).Info("inside")
		assert.Same(t, FromContext(c.Request.Context()), GetGinLogger(c))
		c.Status(http.StatusOK)
	})
	router.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ok?x=1", nil))
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := recorded.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "inside", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "x=1", entries[1].ContextMap()["query"])
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zapcore.ErrorLevel)

	t.Run("default aborts with 500", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(zap.New(core), nil))
		router.GET("/", func(*gin.Context) { panic("boom") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("custom handler renders", func(t *testing.T) {
		router := gin.New()
		router.Use(Recovery(zap.New(core), func(c *gin.Context, recovered any) {
			c.String(http.StatusServiceUnavailable, "%v", recovered)
		}))
		router.GET("/", func(*gin.Context) { panic("down") })

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "down", w.Body.String())
	})

	assert.Equal(t, 2, recorded.Len())
}

func TestGormLogger_Trace(t *testing.T) {
	query := func() (string, int64) { return "SELECT 1", 1 }

	tests := []struct {
		name      string
		level     gormlogger.LogLevel
		begin     time.Time
		err       error
		opts      []GormLoggerOption
		wantMsg   string
		wantLevel zapcore.Level
	}{
		{"error", gormlogger.Error, time.Now(), errors.New("syntax"), nil, "SQL error", zapcore.ErrorLevel},
		{"slow", gormlogger.Warn, time.Now().Add(-time.Second), nil, nil, "slow SQL", zapcore.WarnLevel},
		{"below threshold", gormlogger.Warn, time.Now().Add(-time.Second), nil, []GormLoggerOption{WithSlowThreshold(2 * time.Second)}, "", 0},
		{"info", gormlogger.Info, time.Now(), nil, nil, "SQL", zapcore.DebugLevel},
		{"not found ignored", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, nil, "", 0},
		{"not found reported", gormlogger.Error, time.Now(), gormlogger.ErrRecordNotFound, []GormLoggerOption{WithRecordNotFound(true)}, "SQL error", zapcore.ErrorLevel},
		{"silent", gormlogger.Silent, time.Now(), errors.New("x"), nil, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			core, recorded := observer.New(zapcore.DebugLevel)
			gl := NewGormLogger(zap.New(core), "default", tt.level, tt.opts...)

			gl.Trace(context.Background(), tt.begin, query, tt.err)

			if tt.wantMsg == "" {
				assert.Zero(t, recorded.Len())
				return
			}
			require.Equal(t, 1, recorded.Len())
			entry := recorded.All()[0]
			assert.Equal(t, tt.wantMsg, entry.Message)
			assert.Equal(t, tt.wantLevel, entry.Level)
			assert.Equal(t, "default", entry.ContextMap()["connection"])
		})
	}
}

func TestGormLogger_LogMode(t *testing.T) {
	gl := NewGormLogger(zap.NewNop(), "default", gormlogger.Info)
	quiet := gl.LogMode(gormlogger.Silent).(*GormLogger)

	assert.Equal(t, gormlogger.Info, gl.level)
	assert.Equal(t, gormlogger.Silent, quiet.level)
	assert.Equal(t, gormlogger.Warn, GormLevel("info"))
	assert.Equal(t, gormlogger.Info, GormLevel("debug"))
}
