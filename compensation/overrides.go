/*
overrides.go - Override editing with follow-up invalidation

PURPOSE:
  The only sanctioned way to change an override. Save writes the row
  (upsert keyed on the scope, or delete once both fields are unset) and only
  then sweeps the scope's cached values.

FAILURE SEMANTICS:
  A failed write is an error and nothing is invalidated. A failed sweep is a
  warning carried in SaveResult.Warning: the write stands, the scope is
  recorded as a failed invalidation run, and RetryFailed picks it up later.
  Resync books manual sweeps the same way.

SEE ALSO:
  - invalidate.go: The sweep itself
  - api/scheduler.go: Periodic RetryFailed
*/
package compensation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type OverrideService struct {
	Overrides   OverrideStore
	Invalidator Invalidator
	Runs        InvalidationRunStore // optional; nil disables retry bookkeeping
	Logger      *zap.Logger
	Now         func() time.Time
}

func NewOverrideService(overrides OverrideStore, inv Invalidator, runs InvalidationRunStore, logger *zap.Logger) *OverrideService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OverrideService{
		Overrides:   overrides,
		Invalidator: inv,
		Runs:        runs,
		Logger:      logger,
		Now:         time.Now,
	}
}

// SaveResult is the outcome of one override save.
type SaveResult struct {
	Override     *RateOverride // nil when the row was deleted or never existed
	Deleted      bool
	Changed      bool // false when an empty override met no existing row
	Invalidation InvalidationResult
	Warning      error // non-fatal; see IsWarning
}

// Save upserts o, or deletes its row when both fields are unset, then
// invalidates the scope.
func (s *OverrideService) Save(ctx context.Context, o RateOverride) (SaveResult, error) {
	result, err := s.write(ctx, o)
	if err != nil || !result.Changed {
		return result, err
	}

	inv, invErr := s.Invalidator.OnOverrideChanged(ctx, o.Scope())
	result.Invalidation = inv
	result.Warning = s.record(ctx, o.Scope(), inv, invErr)
	return result, nil
}

// SaveMany writes every override in order, then invalidates the changed
// scopes concurrently. A write failure stops the batch; the overrides already
// written are still invalidated and their results returned with the error.
func (s *OverrideService) SaveMany(ctx context.Context, overrides []RateOverride) ([]SaveResult, error) {
	results := make([]SaveResult, 0, len(overrides))
	var writeErr error
	for _, o := range overrides {
		r, err := s.write(ctx, o)
		if err != nil {
			writeErr = fmt.Errorf("override %s: %w", o.Scope(), err)
			break
		}
		results = append(results, r)
	}

	var scopes []Scope
	var positions []int
	for i, r := range results {
		if r.Changed {
			scopes = append(scopes, overrides[i].Scope())
			positions = append(positions, i)
		}
	}
	if len(scopes) > 0 {
		invs, _ := s.Invalidator.OnOverridesChanged(ctx, scopes)
		for j, pos := range positions {
			if j >= len(invs) {
				break
			}
			results[pos].Invalidation = invs[j]
			results[pos].Warning = s.record(ctx, scopes[j], invs[j], invs[j].Err)
		}
	}
	return results, writeErr
}

// Get returns the override for a scope, or ErrOverrideNotFound.
func (s *OverrideService) Get(ctx context.Context, scope Scope) (*RateOverride, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	o, err := s.Overrides.GetOverride(ctx, scope)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, ErrOverrideNotFound
	}
	return o, nil
}

// List returns the overrides of one tenant and month.
func (s *OverrideService) List(ctx context.Context, tenantID TenantID, year int, month time.Month) ([]RateOverride, error) {
	return s.Overrides.ListOverrides(ctx, OverrideFilter{
		TenantID: tenantID,
		Months:   []YearMonth{{Year: year, Month: month}},
	})
}

// Resync sweeps a scope without writing anything, for cached values that
// went stale outside Save. The outcome is booked like any other run, so a
// failed resync is picked up by RetryFailed. The error is either a scope
// validation error or a warning.
func (s *OverrideService) Resync(ctx context.Context, scope Scope) (InvalidationResult, error) {
	if err := scope.Validate(); err != nil {
		return InvalidationResult{Scope: scope}, err
	}
	inv, err := s.Invalidator.OnOverrideChanged(ctx, scope)
	return inv, s.record(ctx, scope, inv, err)
}

// RetryFailed re-runs every failed invalidation run. It returns how many
// scopes completed.
func (s *OverrideService) RetryFailed(ctx context.Context) (int, error) {
	if s.Runs == nil {
		return 0, nil
	}
	runs, err := s.Runs.ListInvalidationRuns(ctx, RunFailed)
	if err != nil {
		return 0, fmt.Errorf("failed to list invalidation runs: %w", err)
	}
	completed := 0
	for _, run := range runs {
		if ctx.Err() != nil {
			return completed, ctx.Err()
		}
		inv, invErr := s.Invalidator.OnOverrideChanged(ctx, run.Scope)
		if s.record(ctx, run.Scope, inv, invErr) == nil {
			completed++
		}
	}
	return completed, nil
}

func (s *OverrideService) write(ctx context.Context, o RateOverride) (SaveResult, error) {
	scope := o.Scope()
	if err := scope.Validate(); err != nil {
		return SaveResult{}, err
	}

	if o.IsEmpty() {
		deleted, err := s.Overrides.DeleteOverride(ctx, scope)
		if err != nil {
			return SaveResult{}, fmt.Errorf("failed to delete override: %w", err)
		}
		return SaveResult{Deleted: deleted, Changed: deleted}, nil
	}

	existing, err := s.Overrides.GetOverride(ctx, scope)
	if err != nil {
		return SaveResult{}, fmt.Errorf("failed to load override: %w", err)
	}
	switch {
	case existing != nil:
		o.ID = existing.ID
	case o.ID == "":
		o.ID = uuid.NewString()
	}
	o.UpdatedAt = s.Now().UTC()

	if err := s.Overrides.UpsertOverride(ctx, o); err != nil {
		return SaveResult{}, fmt.Errorf("failed to save override: %w", err)
	}
	return SaveResult{Override: &o, Changed: true}, nil
}

// record books the sweep outcome and returns the warning, if any.
func (s *OverrideService) record(ctx context.Context, scope Scope, inv InvalidationResult, invErr error) error {
	if s.Runs == nil {
		return invErr
	}
	now := s.Now().UTC()
	run := InvalidationRun{
		ID:        RunIDFor(scope),
		Scope:     scope,
		Status:    RunCompleted,
		Matched:   len(inv.Matched),
		Cleared:   len(inv.Cleared),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if prev := s.previousRun(ctx, run.ID); prev != nil {
		run.CreatedAt = prev.CreatedAt
		run.Attempts = prev.Attempts
	}
	run.Attempts++
	if invErr != nil {
		run.Status = RunFailed
		run.Error = invErr.Error()
	}
	if err := s.Runs.SaveInvalidationRun(ctx, run); err != nil {
		s.Logger.Error("failed to record invalidation run",
			zap.Stringer("scope", scope),
			zap.Error(err))
	}
	return invErr
}

func (s *OverrideService) previousRun(ctx context.Context, id string) *InvalidationRun {
	run, err := s.Runs.GetInvalidationRun(ctx, id)
	if err != nil {
		return nil
	}
	return run
}
