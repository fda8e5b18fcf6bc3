/*
invalidate.go - Invalidation Coordinator

PURPOSE:
  When an override row is upserted or deleted, every cached value for that
  worker, in that sector, within that month, is stale. The coordinator clears
  them so the next report re-derives the amount through Resolve. Nothing is
  recomputed eagerly.

STEPS:
  1. Window = first..last day of the scope month
  2. Shifts of the scope sector inside the window
  3. Assignments of the scope worker against those shifts
  4. Clear the cached value of those that have one (set to unset, never zero)

GUARANTEES:
  - Idempotent: a second sweep finds nothing left to clear
  - Every call runs its own sweep on its own context, so a call made after
    a write always lists assignments after that write
  - Different scopes never block each other
  - Must run after the override write commits. Failures come back as
    *InvalidationWarning and never undo that write.
*/
package compensation

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds OnOverridesChanged when Concurrency is unset.
const DefaultConcurrency = 4

// Invalidator is what the override service needs from the coordinator.
type Invalidator interface {
	OnOverrideChanged(ctx context.Context, scope Scope) (InvalidationResult, error)
	OnOverridesChanged(ctx context.Context, scopes []Scope) ([]InvalidationResult, error)
}

// InvalidationResult describes one sweep.
type InvalidationResult struct {
	Scope   Scope
	Matched []AssignmentID // assignments of the worker in the scope
	Cleared []AssignmentID // the subset that had a cached value
	Err     error          // set by OnOverridesChanged for a failed scope
}

type Coordinator struct {
	Schedule    ScheduleReader
	Cache       CacheStore
	Logger      *zap.Logger
	Concurrency int
}

func NewCoordinator(schedule ScheduleReader, cache CacheStore, logger *zap.Logger) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		Schedule:    schedule,
		Cache:       cache,
		Logger:      logger,
		Concurrency: DefaultConcurrency,
	}
}

// OnOverrideChanged clears stale cached values for one scope.
func (c *Coordinator) OnOverrideChanged(ctx context.Context, scope Scope) (InvalidationResult, error) {
	if err := scope.Validate(); err != nil {
		return InvalidationResult{Scope: scope}, err
	}

	result, err := c.sweep(ctx, scope)
	if err != nil {
		c.Logger.Warn("cache invalidation incomplete",
			zap.Stringer("scope", scope),
			zap.Error(err))
		return result, err
	}
	return result, nil
}

// OnOverridesChanged sweeps several scopes concurrently. Every scope is
// attempted; the returned error joins the warnings of those that failed.
// Results keep the order of scopes.
func (c *Coordinator) OnOverridesChanged(ctx context.Context, scopes []Scope) ([]InvalidationResult, error) {
	results := make([]InvalidationResult, len(scopes))
	errs := make([]error, len(scopes))

	limit := c.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	var g errgroup.Group
	g.SetLimit(limit)
	for i, scope := range scopes {
		g.Go(func() error {
			results[i], errs[i] = c.OnOverrideChanged(ctx, scope)
			results[i].Err = errs[i]
			return nil
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

func (c *Coordinator) sweep(ctx context.Context, scope Scope) (InvalidationResult, error) {
	result := InvalidationResult{Scope: scope}
	from, to := scope.Window()

	shifts, err := c.Schedule.ListShifts(ctx, ShiftFilter{
		TenantID: scope.TenantID,
		SectorID: scope.SectorID,
		From:     from,
		To:       to,
	})
	if err != nil {
		return result, &InvalidationWarning{Scope: scope, Stage: "list_shifts", Err: err}
	}
	if len(shifts) == 0 {
		return result, nil
	}

	shiftIDs := make([]ShiftID, len(shifts))
	for i, s := range shifts {
		shiftIDs[i] = s.ID
	}
	assignments, err := c.Schedule.ListAssignments(ctx, AssignmentFilter{
		TenantID: scope.TenantID,
		WorkerID: scope.WorkerID,
		ShiftIDs: shiftIDs,
	})
	if err != nil {
		return result, &InvalidationWarning{Scope: scope, Stage: "list_assignments", Err: err}
	}

	var stale []AssignmentID
	for _, a := range assignments {
		result.Matched = append(result.Matched, a.ID)
		if a.CachedValue.IsSet() {
			stale = append(stale, a.ID)
		}
	}
	if len(stale) == 0 {
		return result, nil
	}

	if _, err := c.Cache.ClearCachedValues(ctx, scope.TenantID, stale); err != nil {
		return result, &InvalidationWarning{Scope: scope, Stage: "clear", Err: err}
	}
	result.Cleared = stale

	c.Logger.Debug("cleared cached values",
		zap.Stringer("scope", scope),
		zap.Int("matched", len(result.Matched)),
		zap.Int("cleared", len(stale)))
	return result, nil
}

// Pin stores an explicit cached value on one assignment. Zero is a valid pin.
// Pinning Unset() removes the pin.
func (c *Coordinator) Pin(ctx context.Context, tenantID TenantID, id AssignmentID, value Rate) error {
	if err := c.Cache.SetCachedValue(ctx, tenantID, id, value); err != nil {
		return err
	}
	c.Logger.Info("cached value pinned",
		zap.String("tenant", string(tenantID)),
		zap.String("assignment", string(id)),
		zap.Stringer("value", value))
	return nil
}
