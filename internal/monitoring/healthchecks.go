package monitoring

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

const HEALTHCHECK_TIMER = 15

// CheckFunc reports whether a dependency is usable.
type CheckFunc func(ctx context.Context) error

// MonitorHealth runs check every HEALTHCHECK_TIMER seconds and stores the
// outcome in healthy. It logs transitions only.
func MonitorHealth(ctx context.Context, name string, check CheckFunc, healthy *atomic.Bool) {
	monitor(ctx, name, check, healthy, time.Second*HEALTHCHECK_TIMER)
}

func monitor(ctx context.Context, name string, check CheckFunc, healthy *atomic.Bool, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	probe := func() {
		checkCtx, cancel := context.WithTimeout(ctx, every)
		defer cancel()

		err := check(checkCtx)
		was := healthy.Swap(err == nil)
		switch {
		case err != nil && was:
			slog.Warn("[HealthCheck] Dependency is unhealthy",
				slog.String("name", name),
				slog.String("error", err.Error()))
		case err == nil && !was:
			slog.Info("[HealthCheck] Dependency recovered", slog.String("name", name))
		}
	}

	probe()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			probe()
		}
	}
}
