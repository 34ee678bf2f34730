package health

import (
	"context"
	"sync"
	"time"
)

// Manager coordinates health checks and aggregates results.
// It runs checks in parallel, each under its own timeout.
type Manager struct {
	checkers []Checker
	timeout  time.Duration
	mu       sync.RWMutex
}

// NewManager creates a new health check manager with a 5-second per-check timeout.
func NewManager() *Manager {
	return &Manager{
		checkers: make([]Checker, 0),
		timeout:  5 * time.Second,
	}
}

// WithTimeout sets a custom timeout for health checks.
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return m
}

// AddChecker registers a new health checker.
// Reports list checks in the order they were added.
func (m *Manager) AddChecker(checker Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, checker)
}

// Check is one named entry of a Report.
type Check struct {
	Name   string `json:"name" yaml:"name"`
	Result `yaml:",inline"`
}

// Report is the outcome of one Manager.Run.
type Report struct {
	Status Status  `json:"status" yaml:"status"`
	Checks []Check `json:"checks" yaml:"checks"`
}

// Healthy reports whether no check was unhealthy.
func (r *Report) Healthy() bool {
	return r.Status != StatusUnhealthy
}

// Run executes all registered checks in parallel and returns them in registration order.
func (m *Manager) Run(ctx context.Context) *Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	timeout := m.timeout
	m.mu.RUnlock()

	checks := make([]Check, len(checkers))
	var wg sync.WaitGroup

	for i, checker := range checkers {
		wg.Add(1)
		go func(i int, c Checker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			result := c.Check(checkCtx)
			if result == nil {
				result = Unhealthy("check returned no result")
			}
			if result.Latency == 0 {
				result.Latency = time.Since(start)
			}
			checks[i] = Check{Name: c.Name(), Result: *result}
		}(i, checker)
	}

	wg.Wait()
	return &Report{Status: OverallStatus(checks), Checks: checks}
}

// OverallStatus determines the overall health:
//   - StatusUnhealthy if any check is unhealthy
//   - StatusDegraded if any check is degraded
//   - StatusHealthy otherwise, including when there are no checks
func OverallStatus(checks []Check) Status {
	hasDegraded := false
	for _, c := range checks {
		if c.Status == StatusUnhealthy {
			return StatusUnhealthy
		}
		if c.Status == StatusDegraded {
			hasDegraded = true
		}
	}

	if hasDegraded {
		return StatusDegraded
	}
	return StatusHealthy
}

// CheckNames returns the names of all registered checkers.
func (m *Manager) CheckNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, len(m.checkers))
	for i, checker := range m.checkers {
		names[i] = checker.Name()
	}
	return names
}
