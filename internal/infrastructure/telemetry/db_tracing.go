package telemetry

import (
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TraceDatabase registers the otelgorm plugin on db when tracing is enabled.
// Query variables are only attached to spans when withVariables is set.
func (tp *TracerProvider) TraceDatabase(db *gorm.DB, system string, withVariables bool) error {
	if !tp.IsEnabled() {
		return nil
	}

	opts := []otelgorm.Option{
		otelgorm.WithDBName(system),
		otelgorm.WithTracerProvider(tp.provider),
	}
	if !withVariables {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}

	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return fmt.Errorf("failed to register database tracing: %w", err)
	}

	tp.logger.Debug("Database tracing enabled", zap.String("db_system", system))
	return nil
}
