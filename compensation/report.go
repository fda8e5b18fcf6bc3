package compensation

import (
	"context"
	"fmt"
	"time"
)

// ReportQuery selects the pairings of one tenant over a date window.
// SectorID and WorkerID narrow the selection when set.
type ReportQuery struct {
	TenantID TenantID
	From     time.Time
	To       time.Time
	SectorID SectorID
	WorkerID WorkerID
}

func (q ReportQuery) Validate() error {
	if q.TenantID == "" {
		return fmt.Errorf("%w: tenant is required", ErrInvalidScope)
	}
	if q.From.IsZero() || q.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidRange)
	}
	if DateOf(q.To).Before(DateOf(q.From)) {
		return ErrInvalidRange
	}
	return nil
}

// Report is what the financial screens render.
type Report struct {
	Query   ReportQuery
	Entries []ResolvedEntry
	Sectors []SectorReport
	Workers []WorkerSummary
	Totals  Totals
}

// Reporter loads records, resolves every pairing and aggregates. It never
// writes: resolved values are not persisted back as cached values.
type Reporter struct {
	Schedule  ScheduleReader
	Overrides OverrideStore
}

func NewReporter(schedule ScheduleReader, overrides OverrideStore) *Reporter {
	return &Reporter{Schedule: schedule, Overrides: overrides}
}

// Load fetches everything needed to resolve the query.
func (r *Reporter) Load(ctx context.Context, q ReportQuery) (ReportData, error) {
	if err := q.Validate(); err != nil {
		return ReportData{}, err
	}

	shifts, err := r.Schedule.ListShifts(ctx, ShiftFilter{
		TenantID: q.TenantID,
		SectorID: q.SectorID,
		From:     DateOf(q.From),
		To:       DateOf(q.To),
	})
	if err != nil {
		return ReportData{}, fmt.Errorf("failed to list shifts: %w", err)
	}
	data := ReportData{Shifts: shifts}
	if len(shifts) == 0 {
		return data, nil
	}

	ids := make([]ShiftID, len(shifts))
	for i, s := range shifts {
		ids[i] = s.ID
	}
	if data.Assignments, err = r.Schedule.ListAssignments(ctx, AssignmentFilter{
		TenantID: q.TenantID,
		WorkerID: q.WorkerID,
		ShiftIDs: ids,
	}); err != nil {
		return ReportData{}, fmt.Errorf("failed to list assignments: %w", err)
	}
	if data.Sectors, err = r.Schedule.ListSectors(ctx, q.TenantID); err != nil {
		return ReportData{}, fmt.Errorf("failed to list sectors: %w", err)
	}
	if data.Workers, err = r.Schedule.ListWorkers(ctx, q.TenantID); err != nil {
		return ReportData{}, fmt.Errorf("failed to list workers: %w", err)
	}
	if data.Overrides, err = r.Overrides.ListOverrides(ctx, OverrideFilter{
		TenantID: q.TenantID,
		SectorID: q.SectorID,
		WorkerID: q.WorkerID,
		Months:   MonthsBetween(DateOf(q.From), DateOf(q.To)),
	}); err != nil {
		return ReportData{}, fmt.Errorf("failed to list overrides: %w", err)
	}
	return data, nil
}

// Build loads, resolves and aggregates.
func (r *Reporter) Build(ctx context.Context, q ReportQuery) (*Report, error) {
	data, err := r.Load(ctx, q)
	if err != nil {
		return nil, err
	}
	entries := ResolveAll(data)
	return &Report{
		Query:   q,
		Entries: entries,
		Sectors: Aggregate(entries),
		Workers: AggregateByWorker(entries),
		Totals:  GrandTotals(entries),
	}, nil
}
