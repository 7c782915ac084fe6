package health

import (
	"maps"
	"slices"
	"sync"
	"time"
)

// Checker is anything that can report its own health.
type Checker interface {
	Health() Status
}

// CheckFunc adapts a function to Checker.
type CheckFunc func() Status

func (f CheckFunc) Health() Status { return f() }

// Monitor keeps the latest status per component. Statuses are either pushed
// with Update or pulled from registered Checkers on Check.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]Checker
}

// NewMonitor creates an empty monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]Checker),
	}
}

// Register polls c under name on every Check.
func (m *Monitor) Register(name string, c Checker) {
	m.mu.Lock()
	m.checkers[name] = c
	m.mu.Unlock()
}

// Update records status for name, stamping it if needed.
func (m *Monitor) Update(name string, status Status) {
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}

	m.mu.Lock()
	m.statuses[name] = status
	m.mu.Unlock()
}

func (m *Monitor) UpdateHealthy(name, message string)   { m.Update(name, NewHealthy(name, message)) }
func (m *Monitor) UpdateDegraded(name, message string)  { m.Update(name, NewDegraded(name, message)) }
func (m *Monitor) UpdateUnhealthy(name, message string) { m.Update(name, NewUnhealthy(name, message)) }

// Get returns the last status recorded for name.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// Remove forgets name and its checker.
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	delete(m.statuses, name)
	delete(m.checkers, name)
	m.mu.Unlock()
}

// Components lists known component names in order.
func (m *Monitor) Components() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := slices.Collect(maps.Keys(m.statuses))
	for name := range m.checkers {
		if _, ok := m.statuses[name]; !ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

// Check polls every checker, records the results and returns the aggregate
// under system. Checkers run without the monitor lock held.
func (m *Monitor) Check(system string) Status {
	m.mu.RLock()
	checkers := maps.Clone(m.checkers)
	m.mu.RUnlock()

	for name, c := range checkers {
		m.Update(name, c.Health())
	}
	return m.Aggregate(system)
}

// Aggregate combines the recorded statuses, ordered by component name.
func (m *Monitor) Aggregate(system string) Status {
	m.mu.RLock()
	subs := make([]Status, 0, len(m.statuses))
	for _, name := range slices.Sorted(maps.Keys(m.statuses)) {
		subs = append(subs, m.statuses[name])
	}
	m.mu.RUnlock()

	return Aggregate(system, subs)
}
