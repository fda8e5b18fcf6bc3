/*
store.go - Persistence boundary of the compensation engine

PURPOSE:
  The engine never owns storage. It reads shifts, assignments, sectors,
  workers and overrides through filtered queries, and writes in exactly three
  places: override upsert/delete, cached value clear/pin, and invalidation
  run bookkeeping.

KEY INTERFACES:
  ScheduleReader:       Filtered reads used by reports and the coordinator
  ScheduleWriter:       Record maintenance (sectors, workers, shifts, assignments)
  OverrideStore:        Upsert-by-scope override rows
  CacheStore:           The cached value field on assignments
  InvalidationRunStore: Bookkeeping for sweeps that must be retried

IMPLEMENTATIONS:
  - compensation/store/memory.go: In-memory for testing
  - store/sqlite/sqlite.go: SQLite
*/
package compensation

import (
	"context"
	"time"
)

// =============================================================================
// FILTERS
// =============================================================================

// ShiftFilter selects shift occurrences. Zero fields do not filter.
// From and To are inclusive calendar days.
type ShiftFilter struct {
	TenantID TenantID
	SectorID SectorID
	From     time.Time
	To       time.Time
}

// AssignmentFilter selects assignments. A nil ShiftIDs does not filter;
// an empty non-nil ShiftIDs matches nothing.
type AssignmentFilter struct {
	TenantID TenantID
	WorkerID WorkerID
	ShiftIDs []ShiftID
}

type OverrideFilter struct {
	TenantID TenantID
	SectorID SectorID
	WorkerID WorkerID
	Months   []YearMonth // empty matches every month
}

// =============================================================================
// STORE INTERFACES
// =============================================================================

type ScheduleReader interface {
	ListShifts(ctx context.Context, filter ShiftFilter) ([]ShiftOccurrence, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]Assignment, error)
	ListSectors(ctx context.Context, tenantID TenantID) ([]Sector, error)
	ListWorkers(ctx context.Context, tenantID TenantID) ([]Worker, error)
}

type ScheduleWriter interface {
	SaveSector(ctx context.Context, sector Sector) error
	SaveWorker(ctx context.Context, worker Worker) error
	SaveShift(ctx context.Context, shift ShiftOccurrence) error
	SaveAssignment(ctx context.Context, assignment Assignment) error
	GetAssignment(ctx context.Context, tenantID TenantID, id AssignmentID) (*Assignment, error)
}

// OverrideStore keeps at most one row per Scope.
type OverrideStore interface {
	// GetOverride returns nil, nil when no row exists for the scope.
	GetOverride(ctx context.Context, scope Scope) (*RateOverride, error)
	ListOverrides(ctx context.Context, filter OverrideFilter) ([]RateOverride, error)
	// UpsertOverride inserts or replaces the row keyed by o.Scope().
	UpsertOverride(ctx context.Context, o RateOverride) error
	// DeleteOverride reports whether a row existed.
	DeleteOverride(ctx context.Context, scope Scope) (bool, error)
}

type CacheStore interface {
	// ClearCachedValues sets the cached value of each assignment to unset.
	// Clearing an unset value is a no-op. Returns how many rows changed.
	ClearCachedValues(ctx context.Context, tenantID TenantID, ids []AssignmentID) (int, error)
	// SetCachedValue pins (or, with Unset, unpins) one assignment's value.
	SetCachedValue(ctx context.Context, tenantID TenantID, id AssignmentID, value Rate) error
}

type InvalidationRunStore interface {
	// SaveInvalidationRun upserts by run ID.
	SaveInvalidationRun(ctx context.Context, run InvalidationRun) error
	// GetInvalidationRun returns nil, nil when the run does not exist.
	GetInvalidationRun(ctx context.Context, id string) (*InvalidationRun, error)
	// ListInvalidationRuns returns runs with the given status, or all when empty.
	ListInvalidationRuns(ctx context.Context, status RunStatus) ([]InvalidationRun, error)
}

// Store is everything the HTTP layer and the CLI wire together.
type Store interface {
	ScheduleReader
	ScheduleWriter
	OverrideStore
	CacheStore
	InvalidationRunStore
}

// =============================================================================
// INVALIDATION RUNS
// =============================================================================

type RunStatus string

const (
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// InvalidationRun records the latest sweep for one scope. Its ID is derived
// from the scope, so a scope never has more than one run.
type InvalidationRun struct {
	ID        string
	Scope     Scope
	Status    RunStatus
	Attempts  int
	Matched   int
	Cleared   int
	Error     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// RunIDFor returns the run ID used for a scope.
func RunIDFor(scope Scope) string { return "inv:" + scope.String() }
