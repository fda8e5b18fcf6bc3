// Package store provides Store implementations.
package store

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/warp/plantao-engine/compensation"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	sectors     map[key]compensation.Sector
	workers     map[key]compensation.Worker
	shifts      map[key]compensation.ShiftOccurrence
	assignments map[key]compensation.Assignment
	overrides   map[compensation.Scope]compensation.RateOverride
	runs        map[string]compensation.InvalidationRun

	// insertion order keeps list results deterministic
	assignmentOrder []key
}

type key struct {
	TenantID compensation.TenantID
	ID       string
}

func NewMemory() *Memory {
	return &Memory{
		sectors:     make(map[key]compensation.Sector),
		workers:     make(map[key]compensation.Worker),
		shifts:      make(map[key]compensation.ShiftOccurrence),
		assignments: make(map[key]compensation.Assignment),
		overrides:   make(map[compensation.Scope]compensation.RateOverride),
		runs:        make(map[string]compensation.InvalidationRun),
	}
}

var _ compensation.Store = (*Memory)(nil)

// =============================================================================
// SCHEDULE
// =============================================================================

func (m *Memory) SaveSector(_ context.Context, s compensation.Sector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectors[key{s.TenantID, string(s.ID)}] = s
	return nil
}

func (m *Memory) SaveWorker(_ context.Context, w compensation.Worker) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.workers[key{w.TenantID, string(w.ID)}] = w
	return nil
}

func (m *Memory) SaveShift(_ context.Context, s compensation.ShiftOccurrence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Date = compensation.DateOf(s.Date)
	m.shifts[key{s.TenantID, string(s.ID)}] = s
	return nil
}

func (m *Memory) SaveAssignment(_ context.Context, a compensation.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{a.TenantID, string(a.ID)}
	if _, ok := m.assignments[k]; !ok {
		m.assignmentOrder = append(m.assignmentOrder, k)
	}
	m.assignments[k] = a
	return nil
}

func (m *Memory) GetAssignment(_ context.Context, tenantID compensation.TenantID, id compensation.AssignmentID) (*compensation.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.assignments[key{tenantID, string(id)}]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

func (m *Memory) ListShifts(_ context.Context, f compensation.ShiftFilter) ([]compensation.ShiftOccurrence, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []compensation.ShiftOccurrence
	for k, s := range m.shifts {
		if k.TenantID != f.TenantID {
			continue
		}
		if f.SectorID != "" && s.SectorID != f.SectorID {
			continue
		}
		if !f.From.IsZero() && s.Date.Before(compensation.DateOf(f.From)) {
			continue
		}
		if !f.To.IsZero() && s.Date.After(compensation.DateOf(f.To)) {
			continue
		}
		result = append(result, s)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].Date.Equal(result[j].Date) {
			return result[i].Date.Before(result[j].Date)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

func (m *Memory) ListAssignments(_ context.Context, f compensation.AssignmentFilter) ([]compensation.Assignment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []compensation.Assignment
	for _, k := range m.assignmentOrder {
		a := m.assignments[k]
		if k.TenantID != f.TenantID {
			continue
		}
		if f.WorkerID != "" && a.WorkerID != f.WorkerID {
			continue
		}
		if f.ShiftIDs != nil && !slices.Contains(f.ShiftIDs, a.ShiftID) {
			continue
		}
		result = append(result, a)
	}
	return result, nil
}

func (m *Memory) ListSectors(_ context.Context, tenantID compensation.TenantID) ([]compensation.Sector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []compensation.Sector
	for k, s := range m.sectors {
		if k.TenantID == tenantID {
			result = append(result, s)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

func (m *Memory) ListWorkers(_ context.Context, tenantID compensation.TenantID) ([]compensation.Worker, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []compensation.Worker
	for k, w := range m.workers {
		if k.TenantID == tenantID {
			result = append(result, w)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

// =============================================================================
// OVERRIDES - one row per scope
// =============================================================================

func (m *Memory) GetOverride(_ context.Context, scope compensation.Scope) (*compensation.RateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.overrides[scope]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (m *Memory) ListOverrides(_ context.Context, f compensation.OverrideFilter) ([]compensation.RateOverride, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []compensation.RateOverride
	for scope, o := range m.overrides {
		if scope.TenantID != f.TenantID {
			continue
		}
		if f.SectorID != "" && scope.SectorID != f.SectorID {
			continue
		}
		if f.WorkerID != "" && scope.WorkerID != f.WorkerID {
			continue
		}
		if len(f.Months) > 0 && !slices.Contains(f.Months, compensation.YearMonth{Year: scope.Year, Month: scope.Month}) {
			continue
		}
		result = append(result, o)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Scope().String() < result[j].Scope().String() })
	return result, nil
}

func (m *Memory) UpsertOverride(_ context.Context, o compensation.RateOverride) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[o.Scope()] = o
	return nil
}

func (m *Memory) DeleteOverride(_ context.Context, scope compensation.Scope) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.overrides[scope]
	delete(m.overrides, scope)
	return ok, nil
}

// =============================================================================
// CACHED VALUES
// =============================================================================

func (m *Memory) ClearCachedValues(_ context.Context, tenantID compensation.TenantID, ids []compensation.AssignmentID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	changed := 0
	for _, id := range ids {
		k := key{tenantID, string(id)}
		a, ok := m.assignments[k]
		if !ok || !a.CachedValue.IsSet() {
			continue
		}
		a.CachedValue = compensation.Unset()
		m.assignments[k] = a
		changed++
	}
	return changed, nil
}

func (m *Memory) SetCachedValue(_ context.Context, tenantID compensation.TenantID, id compensation.AssignmentID, value compensation.Rate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := key{tenantID, string(id)}
	a, ok := m.assignments[k]
	if !ok {
		return compensation.ErrAssignmentNotFound
	}
	a.CachedValue = value
	m.assignments[k] = a
	return nil
}

// =============================================================================
// INVALIDATION RUNS
// =============================================================================

func (m *Memory) SaveInvalidationRun(_ context.Context, run compensation.InvalidationRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) GetInvalidationRun(_ context.Context, id string) (*compensation.InvalidationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, nil
	}
	return &run, nil
}

func (m *Memory) ListInvalidationRuns(_ context.Context, status compensation.RunStatus) ([]compensation.InvalidationRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []compensation.InvalidationRun
	for _, run := range m.runs {
		if status == "" || run.Status == status {
			result = append(result, run)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Reset drops every record.
func (m *Memory) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sectors = make(map[key]compensation.Sector)
	m.workers = make(map[key]compensation.Worker)
	m.shifts = make(map[key]compensation.ShiftOccurrence)
	m.assignments = make(map[key]compensation.Assignment)
	m.overrides = make(map[compensation.Scope]compensation.RateOverride)
	m.runs = make(map[string]compensation.InvalidationRun)
	m.assignmentOrder = nil
	return nil
}
