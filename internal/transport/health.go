package transport

import (
	"context"
	"sync"
	"time"

	"github.com/sungwon/mailjobs/internal/metrics"
)

const (
	defaultCheckInterval = 30 * time.Second
	defaultCheckTimeout  = 10 * time.Second
	unhealthyThreshold   = 3
)

// HealthStatus represents the current health state of a transport.
type HealthStatus struct {
	Healthy             bool
	LastCheck           time.Time
	ConsecutiveFailures int
	LastError           string
}

// HealthChecker periodically checks a transport and tracks its status.
// A transport is reported unhealthy after three consecutive failed checks
// and healthy again after one success.
type HealthChecker struct {
	mu        sync.RWMutex
	transport Transport
	status    HealthStatus
	checked   bool
	interval  time.Duration
	timeout   time.Duration
}

// NewHealthChecker creates a health checker for t.
func NewHealthChecker(t Transport, interval time.Duration) *HealthChecker {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &HealthChecker{
		transport: t,
		status:    HealthStatus{Healthy: true},
		interval:  interval,
		timeout:   defaultCheckTimeout,
	}
}

// Run checks immediately and then on every interval until ctx is done.
func (hc *HealthChecker) Run(ctx context.Context) error {
	hc.Check(ctx)

	ticker := time.NewTicker(hc.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			hc.Check(ctx)
		}
	}
}

// Check runs one health check and updates the tracked status.
func (hc *HealthChecker) Check(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, hc.timeout)
	defer cancel()

	err := hc.transport.HealthCheck(ctx)

	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.checked = true
	hc.status.LastCheck = time.Now()
	if err != nil {
		hc.status.ConsecutiveFailures++
		hc.status.LastError = err.Error()
		if hc.status.ConsecutiveFailures >= unhealthyThreshold {
			hc.status.Healthy = false
		}
	} else {
		hc.status.ConsecutiveFailures = 0
		hc.status.Healthy = true
		hc.status.LastError = ""
	}

	gauge := 0.0
	if hc.status.Healthy {
		gauge = 1
	}
	metrics.TransportHealthy.WithLabelValues(hc.transport.GetName()).Set(gauge)
}

// IsHealthy reports the last known state. Before the first check it
// returns true.
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status.Healthy
}

// Status returns a snapshot of the tracked status and whether any check
// has run yet.
func (hc *HealthChecker) Status() (HealthStatus, bool) {
	hc.mu.RLock()
	defer hc.mu.RUnlock()
	return hc.status, hc.checked
}
