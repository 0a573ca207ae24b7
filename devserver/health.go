package devserver

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// pinger is the part of the store the health checker probes.
type pinger interface {
	Ping(ctx context.Context) error
}

// StoreHealthChecker probes the database periodically and caches the result
// so /health never blocks on a slow database.
type StoreHealthChecker struct {
	db           pinger
	healthy      atomic.Int32
	log          zerolog.Logger
	probeTimeout time.Duration
}

func NewStoreHealthChecker(db pinger, log zerolog.Logger, probeTimeout time.Duration) *StoreHealthChecker {
	return &StoreHealthChecker{db: db, log: log, probeTimeout: probeTimeout}
}

// IsHealthy returns the cached status. It is false until the first probe.
func (hc *StoreHealthChecker) IsHealthy() bool { return hc.healthy.Load() == 1 }

// Probe runs one check and updates the cached status.
func (hc *StoreHealthChecker) Probe(ctx context.Context) bool {
	to := hc.probeTimeout
	if to <= 0 {
		to = 2 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, to)
	defer cancel()

	prev := hc.healthy.Load()
	var cur int32
	if err := hc.db.Ping(ctx); err != nil {
		if prev == 1 {
			hc.log.Error().Err(err).Msg("store health: DOWN")
		}
	} else {
		cur = 1
		if prev == 0 {
			hc.log.Info().Msg("store health: UP")
		}
	}
	hc.healthy.Store(cur)
	return cur == 1
}

// Start probes immediately and then every interval until ctx is done.
func (hc *StoreHealthChecker) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	hc.Probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hc.Probe(ctx)
		}
	}
}

// ServeHTTP handles GET /health. 503 when the store is down.
func (hc *StoreHealthChecker) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	status, code := "healthy", http.StatusOK
	if !hc.IsHealthy() {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
