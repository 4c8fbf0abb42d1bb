package logger

import (
	"time"

	"go.uber.org/zap"
)

// Benchmark starts timing an operation. The returned function logs the elapsed
// time at debug level together with any fields passed to it.
//
//	done := logger.Benchmark(log, "compile", zap.String("view", name))
//	defer done()
func Benchmark(logger *zap.Logger, operation string, fields ...zap.Field) func(extra ...zap.Field) time.Duration {
	start := time.Now()
	return func(extra ...zap.Field) time.Duration {
		elapsed := time.Since(start)
		if ce := logger.Check(zap.DebugLevel, "benchmark"); ce != nil {
			all := make([]zap.Field, 0, len(fields)+len(extra)+2)
			all = append(all, zap.String("operation", operation), zap.Duration("elapsed", elapsed))
			all = append(all, fields...)
			all = append(all, extra...)
			ce.Write(all...)
		}
		return elapsed
	}
}
