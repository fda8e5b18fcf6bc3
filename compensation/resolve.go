/*
resolve.go - Rate Resolution Service

PURPOSE:
  Decides the amount owed for one (worker, shift) pairing. Pure: no I/O, no
  shared state, safe to call from any number of report requests at once.

PRECEDENCE (first tier that yields a value wins):
  1. Period from the shift start hour: [06:00, 18:00) day, otherwise night
  2. Cached value on the assignment, zero included
  3. Override for (sector, worker, month, year) of the shift date, zero included
  4. Sector default for the period, zero included
  5. Shift base value, only when strictly positive
  6. Unpriced

  Tier 5 treats a zero base value as "not entered yet". Tiers 2-4 treat zero
  as an explicit amount. See BaseValueCounts.
*/
package compensation

// BaseValueCounts reports whether a shift base value is meaningful for
// resolution. Zero does not count.
func BaseValueCounts(base Rate) bool { return base.IsPositive() }

// Resolve resolves one pairing. sector and override may be nil. override must
// already match the shift's sector, the assignment's worker and the month of
// the shift date; Resolve does not re-check the key.
func Resolve(a Assignment, shift ShiftOccurrence, sector *Sector, override *RateOverride) ResolvedEntry {
	period := ClassifyPeriod(shift.StartTime)

	entry := ResolvedEntry{
		AssignmentID: a.ID,
		ShiftID:      shift.ID,
		WorkerID:     a.WorkerID,
		SectorID:     shift.SectorID,
		Date:         DateOf(shift.Date),
		Period:       period,
		Value:        Unset(),
		Source:       SourceNone,
	}
	if sector != nil {
		entry.SectorName = sector.Name
	}

	switch {
	case a.CachedValue.IsSet():
		entry.Value, entry.Source = a.CachedValue, SourceCached
	case override != nil && override.ValueFor(period).IsSet():
		entry.Value, entry.Source = override.ValueFor(period), SourceOverride
	case sector != nil && sector.DefaultFor(period).IsSet():
		entry.Value, entry.Source = sector.DefaultFor(period), SourceSectorDefault
	case BaseValueCounts(shift.BaseValue):
		entry.Value, entry.Source = shift.BaseValue, SourceBaseValue
	}
	return entry
}

// =============================================================================
// BATCH RESOLUTION
// =============================================================================

// OverrideIndex looks overrides up by scope.
type OverrideIndex map[Scope]*RateOverride

func NewOverrideIndex(overrides []RateOverride) OverrideIndex {
	idx := make(OverrideIndex, len(overrides))
	for i := range overrides {
		o := overrides[i]
		idx[o.Scope()] = &o
	}
	return idx
}

// Lookup returns the override matching the pairing, or nil.
func (idx OverrideIndex) Lookup(a Assignment, shift ShiftOccurrence) *RateOverride {
	if !shift.HasSector() {
		return nil
	}
	return idx[Scope{
		TenantID: shift.TenantID,
		SectorID: shift.SectorID,
		WorkerID: a.WorkerID,
		Year:     shift.Date.Year(),
		Month:    shift.Date.Month(),
	}]
}

// ReportData is everything ResolveAll needs, already fetched.
type ReportData struct {
	Shifts      []ShiftOccurrence
	Assignments []Assignment
	Sectors     []Sector
	Workers     []Worker
	Overrides   []RateOverride
}

// ResolveAll resolves every assignment in data, in assignment order.
// Cancelled assignments and assignments whose shift is not in data are skipped.
func ResolveAll(data ReportData) []ResolvedEntry {
	shifts := make(map[ShiftID]ShiftOccurrence, len(data.Shifts))
	for _, s := range data.Shifts {
		shifts[s.ID] = s
	}
	sectors := make(map[SectorID]*Sector, len(data.Sectors))
	for i := range data.Sectors {
		sectors[data.Sectors[i].ID] = &data.Sectors[i]
	}
	names := make(map[WorkerID]string, len(data.Workers))
	for _, w := range data.Workers {
		names[w.ID] = w.Name
	}
	overrides := NewOverrideIndex(data.Overrides)

	entries := make([]ResolvedEntry, 0, len(data.Assignments))
	for _, a := range data.Assignments {
		if a.Status == StatusCancelled {
			continue
		}
		shift, ok := shifts[a.ShiftID]
		if !ok {
			continue
		}
		var sector *Sector
		if shift.HasSector() {
			sector = sectors[shift.SectorID]
		}
		entry := Resolve(a, shift, sector, overrides.Lookup(a, shift))
		entry.WorkerName = names[a.WorkerID]
		entries = append(entries, entry)
	}
	return entries
}
