/*
aggregate.go - Aggregation Engine

PURPOSE:
  Folds a flat list of resolved entries into the hierarchical report the
  financial screens render: sector -> worker -> entries, plus grand totals.
  A second, orthogonal fold groups by worker across all sectors for "total
  payable per worker".

INVARIANTS:
  - Unpriced entries are counted, never summed as zero
  - GrandTotals(entries).Value equals the sum of every priced value
  - Empty input yields an empty report and zero totals
  - Pure: no shared state, safe for concurrent use

ORDERING:
  Sectors by name, workers by name within a sector, entries by date. Names
  are compared with a Brazilian Portuguese collator so "Ágata" sorts next to
  "Agnes". Ties keep input order. The synthetic "No sector" group sorts last.
*/
package compensation

import (
	"slices"

	"github.com/shopspring/decimal"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// NoSectorName labels the synthetic group of shifts without a sector.
const NoSectorName = "No sector"

// =============================================================================
// TOTALS
// =============================================================================

type Totals struct {
	Entries      int
	Priced       int
	Unpriced     int
	Value        decimal.Decimal
	DayEntries   int
	NightEntries int
	DayValue     decimal.Decimal
	NightValue   decimal.Decimal
	Workers      int // distinct workers contributing entries
}

func (t *Totals) add(e ResolvedEntry) {
	t.Entries++
	if e.Period == PeriodNight {
		t.NightEntries++
	} else {
		t.DayEntries++
	}
	v, ok := e.Value.Get()
	if !ok {
		t.Unpriced++
		return
	}
	t.Priced++
	t.Value = t.Value.Add(v)
	if e.Period == PeriodNight {
		t.NightValue = t.NightValue.Add(v)
	} else {
		t.DayValue = t.DayValue.Add(v)
	}
}

// =============================================================================
// REPORT SHAPES
// =============================================================================

type WorkerSummary struct {
	WorkerID   WorkerID
	WorkerName string
	Entries    []ResolvedEntry // date ascending
	Totals     Totals
}

type SectorReport struct {
	SectorID   SectorID // empty for the synthetic group
	SectorName string
	Workers    []WorkerSummary
	Totals     Totals
}

// =============================================================================
// AGGREGATION
// =============================================================================

// Aggregate groups entries by sector, then by worker.
func Aggregate(entries []ResolvedEntry) []SectorReport {
	reports := []SectorReport{}
	sectorIdx := make(map[SectorID]int)
	workerIdx := make([]map[WorkerID]int, 0)

	for _, e := range entries {
		si, ok := sectorIdx[e.SectorID]
		if !ok {
			si = len(reports)
			sectorIdx[e.SectorID] = si
			reports = append(reports, SectorReport{SectorID: e.SectorID, SectorName: sectorLabel(e)})
			workerIdx = append(workerIdx, make(map[WorkerID]int))
		}
		report := &reports[si]

		wi, ok := workerIdx[si][e.WorkerID]
		if !ok {
			wi = len(report.Workers)
			workerIdx[si][e.WorkerID] = wi
			report.Workers = append(report.Workers, WorkerSummary{WorkerID: e.WorkerID, WorkerName: workerLabel(e)})
		}
		ws := &report.Workers[wi]
		ws.Entries = append(ws.Entries, e)
		ws.Totals.add(e)
		report.Totals.add(e)
	}

	col := newCollator()
	for i := range reports {
		r := &reports[i]
		r.Totals.Workers = len(r.Workers)
		for j := range r.Workers {
			r.Workers[j].Totals.Workers = 1
			sortByDate(r.Workers[j].Entries)
		}
		slices.SortStableFunc(r.Workers, func(a, b WorkerSummary) int {
			return col.CompareString(a.WorkerName, b.WorkerName)
		})
	}
	slices.SortStableFunc(reports, func(a, b SectorReport) int {
		aNone, bNone := a.SectorID == "", b.SectorID == ""
		switch {
		case aNone && !bNone:
			return 1
		case bNone && !aNone:
			return -1
		}
		return col.CompareString(a.SectorName, b.SectorName)
	})
	return reports
}

// AggregateByWorker ignores sectors and sums per worker.
func AggregateByWorker(entries []ResolvedEntry) []WorkerSummary {
	summaries := []WorkerSummary{}
	idx := make(map[WorkerID]int)
	for _, e := range entries {
		i, ok := idx[e.WorkerID]
		if !ok {
			i = len(summaries)
			idx[e.WorkerID] = i
			summaries = append(summaries, WorkerSummary{WorkerID: e.WorkerID, WorkerName: workerLabel(e), Totals: Totals{Workers: 1}})
		}
		summaries[i].Entries = append(summaries[i].Entries, e)
		summaries[i].Totals.add(e)
	}

	col := newCollator()
	for i := range summaries {
		sortByDate(summaries[i].Entries)
	}
	slices.SortStableFunc(summaries, func(a, b WorkerSummary) int {
		return col.CompareString(a.WorkerName, b.WorkerName)
	})
	return summaries
}

// GrandTotals sums every entry regardless of grouping.
func GrandTotals(entries []ResolvedEntry) Totals {
	var t Totals
	workers := make(map[WorkerID]struct{})
	for _, e := range entries {
		t.add(e)
		workers[e.WorkerID] = struct{}{}
	}
	t.Workers = len(workers)
	return t
}

// SumSectors adds up per-sector totals. It always agrees with GrandTotals
// except for Workers, which is not additive across sectors.
func SumSectors(reports []SectorReport) Totals {
	var t Totals
	for _, r := range reports {
		t.Entries += r.Totals.Entries
		t.Priced += r.Totals.Priced
		t.Unpriced += r.Totals.Unpriced
		t.Value = t.Value.Add(r.Totals.Value)
		t.DayEntries += r.Totals.DayEntries
		t.NightEntries += r.Totals.NightEntries
		t.DayValue = t.DayValue.Add(r.Totals.DayValue)
		t.NightValue = t.NightValue.Add(r.Totals.NightValue)
	}
	return t
}

// =============================================================================
// HELPERS
// =============================================================================

// newCollator returns a fresh collator. Collators are not safe for
// concurrent use, so each aggregation builds its own.
func newCollator() *collate.Collator {
	return collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
}

func sortByDate(entries []ResolvedEntry) {
	slices.SortStableFunc(entries, func(a, b ResolvedEntry) int {
		return a.Date.Compare(b.Date)
	})
}

func sectorLabel(e ResolvedEntry) string {
	switch {
	case e.SectorID == "":
		return NoSectorName
	case e.SectorName != "":
		return e.SectorName
	default:
		return string(e.SectorID)
	}
}

func workerLabel(e ResolvedEntry) string {
	if e.WorkerName != "" {
		return e.WorkerName
	}
	return string(e.WorkerID)
}
