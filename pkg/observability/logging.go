package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/vine/pkg/domain"
)

// LogHooks logs every lifecycle event at debug level, and finalize passes
// that notified someone at info level.
func LogHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnWrite: func(e *domain.WriteEvent) {
			logger.Debug("write", "store", e.Store, "prop", e.Prop, "delete", e.Delete)
		},
		OnCompute: func(e *domain.ComputeEvent) {
			logger.Debug("compute",
				"store", e.Store,
				"prop", e.Prop,
				"changed", e.Changed,
				"duration", e.Duration,
			)
		},
		OnFinalize: func(e *domain.FinalizeEvent) {
			level := slog.LevelDebug
			if e.Notified > 0 || e.Listeners > 0 {
				level = slog.LevelInfo
			}
			logger.Log(context.Background(), level, "finalize",
				"stores", e.Stores,
				"changed", len(e.Changed),
				"notified", e.Notified,
				"listeners", e.Listeners,
				"duration", e.Duration,
			)
		},
	}
}
