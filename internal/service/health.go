package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/makeasinger/stemsplit/internal/client"
	"github.com/makeasinger/stemsplit/internal/model"
)

// Dependency states reported by the health check.
const (
	ServiceOK          = "ok"
	ServiceUnavailable = "unavailable"
	ServiceDisabled    = "disabled"
)

const (
	healthHealthy  = "healthy"
	healthDegraded = "degraded"

	checkTimeout = 3 * time.Second
)

// Check probes one dependency.
type Check func(ctx context.Context) error

// HealthService reports liveness and whether the separation model is loaded.
type HealthService struct {
	separator client.Separator
	checks    map[string]Check
	logger    *zap.Logger
}

func NewHealthService(sep client.Separator, logger *zap.Logger) *HealthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthService{
		separator: sep,
		checks:    make(map[string]Check),
		logger:    logger.Named("health"),
	}
}

// AddCheck registers a dependency probe. A nil check reports the dependency
// as disabled.
func (h *HealthService) AddCheck(name string, check Check) {
	h.checks[name] = check
}

// Report probes every registered dependency concurrently. The service is
// degraded when the model is not loaded; optional dependencies only show up
// in the services map.
func (h *HealthService) Report(ctx context.Context) model.HealthResponse {
	info := h.separator.Info(ctx)

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	var mu sync.Mutex
	services := make(map[string]string, len(names))
	var g errgroup.Group
	for _, name := range names {
		name, check := name, h.checks[name]
		if check == nil {
			mu.Lock()
			services[name] = ServiceDisabled
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()
			state := ServiceOK
			if err := check(cctx); err != nil {
				h.logger.Warn("dependency check failed", zap.String("service", name), zap.Error(err))
				state = ServiceUnavailable
			}
			mu.Lock()
			services[name] = state
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	status := healthHealthy
	if !info.ModelLoaded {
		status = healthDegraded
	}
	return model.HealthResponse{
		Status:      status,
		Device:      info.Device,
		ModelLoaded: info.ModelLoaded,
		Model:       info.Model,
		SampleRate:  info.SampleRate,
		Services:    services,
	}
}
