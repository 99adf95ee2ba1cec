package monitoring

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sync"
	"time"
)

// Health check status constants
const (
	StatusUp      = "UP"
	StatusDown    = "DOWN"
	StatusWarning = "WARNING"
)

// Pinger is anything whose reachability can be checked, such as the
// storage backend or the redis relay.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker manages system health checks
type HealthChecker struct {
	services      map[string]HealthCheckFunc
	lastResults   map[string]*CheckResult
	checkInterval time.Duration
	timeout       time.Duration
	now           func() time.Time
	mu            sync.RWMutex
}

// HealthCheckFunc defines a health check function
type HealthCheckFunc func(context.Context) *CheckResult

// CheckResult represents the result of a health check
type CheckResult struct {
	Status      string                 `json:"status"`
	Component   string                 `json:"component"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Error       string                 `json:"error,omitempty"`
}

// SystemHealth represents overall system health
type SystemHealth struct {
	Status     string                  `json:"status"`
	Components map[string]*CheckResult `json:"components"`
	Timestamp  time.Time               `json:"timestamp"`
}

// NewHealthChecker registers the memory and goroutine checks. Callers add
// component checks with RegisterCheck or PingCheck.
func NewHealthChecker(interval time.Duration) *HealthChecker {
	hc := &HealthChecker{
		services:      make(map[string]HealthCheckFunc),
		lastResults:   make(map[string]*CheckResult),
		checkInterval: interval,
		timeout:       2 * time.Second,
		now:           time.Now,
	}

	hc.RegisterCheck("memory", hc.MemoryCheck)
	hc.RegisterCheck("goroutines", hc.GoroutineCheck)
	return hc
}

// RegisterCheck adds a new health check
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.services[name] = check
}

// StartChecks runs every check now and then once per interval.
func (h *HealthChecker) StartChecks(ctx context.Context) {
	h.RunChecks(ctx)

	ticker := time.NewTicker(h.checkInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				h.RunChecks(ctx)
			}
		}
	}()
}

// RunChecks runs all registered checks. Checks run outside the lock.
func (h *HealthChecker) RunChecks(ctx context.Context) {
	h.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(h.services))
	for name, check := range h.services {
		checks[name] = check
	}
	h.mu.RUnlock()

	results := make(map[string]*CheckResult, len(checks))
	for name, check := range checks {
		cctx, cancel := context.WithTimeout(ctx, h.timeout)
		result := check(cctx)
		cancel()
		result.LastChecked = h.now()
		results[name] = result
	}

	h.mu.Lock()
	for name, result := range results {
		h.lastResults[name] = result
	}
	h.mu.Unlock()
}

// GetHealth returns current system health status
func (h *HealthChecker) GetHealth() *SystemHealth {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health := &SystemHealth{
		Status:     StatusUp,
		Components: make(map[string]*CheckResult),
		Timestamp:  h.now(),
	}

	for name, result := range h.lastResults {
		health.Components[name] = result
		if result.Status == StatusDown {
			health.Status = StatusDown
		} else if result.Status == StatusWarning && health.Status != StatusDown {
			health.Status = StatusWarning
		}
	}
	return health
}

// PingCheck reports component as down whenever p.Ping fails.
func PingCheck(component string, p Pinger) HealthCheckFunc {
	return func(ctx context.Context) *CheckResult {
		result := &CheckResult{Status: StatusUp, Component: component}

		start := time.Now()
		err := p.Ping(ctx)
		result.Details = map[string]interface{}{
			"latency_ms": time.Since(start).Milliseconds(),
		}
		if err != nil {
			result.Status = StatusDown
			result.Error = fmt.Sprintf("%s unreachable: %v", component, err)
		}
		return result
	}
}

// MemoryCheck checks system memory usage
func (h *HealthChecker) MemoryCheck(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Status:    StatusUp,
		Component: "memory",
	}

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	result.Details = map[string]interface{}{
		"heap_alloc":     memStats.HeapAlloc,
		"heap_sys":       memStats.HeapSys,
		"heap_inuse":     memStats.HeapInuse,
		"heap_objects":   memStats.HeapObjects,
		"gc_pause_total": memStats.PauseTotalNs,
		"gc_num":         memStats.NumGC,
	}

	if memStats.HeapSys > 0 && float64(memStats.HeapInuse)/float64(memStats.HeapSys) > 0.9 {
		result.Status = StatusWarning
		result.Error = "High memory usage"
	}
	return result
}

// GoroutineCheck monitors goroutine count
func (h *HealthChecker) GoroutineCheck(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Status:    StatusUp,
		Component: "goroutines",
		Details:   make(map[string]interface{}),
	}

	goroutineCount := runtime.NumGoroutine()
	result.Details["count"] = goroutineCount

	if goroutineCount > 10000 {
		result.Status = StatusWarning
		result.Error = "High number of goroutines"
	}
	return result
}

// HTTPHandler returns a health check HTTP handler
func (h *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		health := h.GetHealth()

		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
