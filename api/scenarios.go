/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
	Provides pre-built scenarios that populate the store with realistic
	hospital schedules so the financial screens have something to show.
	Each scenario creates sectors, workers, shifts, assignments and overrides
	that exercise specific parts of the resolution order.

AVAILABLE SCENARIOS:
	hospital-month:   One month of a small hospital across three sectors
	precedence-tour:  One pairing per resolution tier, plus the zero cases

HOW SCENARIOS WORK:
 1. Reset the store (clear all data)
 2. Create sectors and workers
 3. Create shift occurrences and assignments
 4. Save overrides through the override service (so sweeps run)
 5. Pin cached values where the scenario needs them

USAGE VIA API:
	POST /api/scenarios/load
	{"scenario_id": "hospital-month"}

NOTE:
	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Handler wiring
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/warp/plantao-engine/compensation"
)

// DemoTenant is the tenant every scenario seeds.
const DemoTenant compensation.TenantID = "demo-hospital"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "hospital-month",
		Name:        "Hospital Month",
		Description: "March 2025 across ICU, ER and surgery with overrides, pins and an unsectored shift",
	},
	{
		ID:          "precedence-tour",
		Name:        "Precedence Tour",
		Description: "One pairing per tier: cached, override, sector default, base value, unpriced",
	},
}

// resetter is implemented by stores that can drop all data.
type resetter interface {
	Reset(ctx context.Context) error
}

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the ID of the last loaded scenario.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"scenario_id": current})
}

// LoadScenario resets the store and seeds a scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	if err := h.Load(r.Context(), req.ScenarioID); err != nil {
		if errors.Is(err, errUnknownScenario) {
			writeError(w, http.StatusBadRequest, "Unknown scenario", fmt.Errorf("%s", req.ScenarioID))
			return
		}
		h.writeDomainError(w, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":      "loaded",
		"scenario_id": req.ScenarioID,
		"tenant":      string(DemoTenant),
	})
}

// ResetDatabase drops every record.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.reset(r.Context()); err != nil {
		h.writeDomainError(w, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

var errUnknownScenario = errors.New("unknown scenario")

// Load resets the store and seeds the scenario with the given ID.
func (h *Handler) Load(ctx context.Context, id string) error {
	var load func(context.Context) error
	switch id {
	case "hospital-month":
		load = h.loadHospitalMonthScenario
	case "precedence-tour":
		load = h.loadPrecedenceTourScenario
	default:
		return errUnknownScenario
	}

	if err := h.reset(ctx); err != nil {
		return err
	}
	if err := load(ctx); err != nil {
		return fmt.Errorf("scenario %s: %w", id, err)
	}
	h.mu.Lock()
	h.currentScenario = id
	h.mu.Unlock()
	return nil
}

func (h *Handler) reset(ctx context.Context) error {
	rs, ok := h.Store.(resetter)
	if !ok {
		return fmt.Errorf("store %T cannot be reset", h.Store)
	}
	return rs.Reset(ctx)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadHospitalMonthScenario seeds March 2025.
//
//	ICU      day 1200, night 1500
//	ER       day 900, night unset
//	Surgery  no defaults; shifts carry base values
//
// Bruno has an ICU override for March (day 0, night 1800), Érica has a pinned
// value on one ER shift, and one Ágata shift has no sector at all.
func (h *Handler) loadHospitalMonthScenario(ctx context.Context) error {
	s := &seeder{ctx: ctx, store: h.Store, tenant: DemoTenant}

	s.sector("icu", "UTI Adulto", compensation.RateFromInt(1200), compensation.RateFromInt(1500))
	s.sector("er", "Pronto-Socorro", compensation.RateFromInt(900), compensation.Unset())
	s.sector("surgery", "Centro Cirúrgico", compensation.Unset(), compensation.Unset())

	s.worker("agata", "Ágata Ribeiro")
	s.worker("bruno", "Bruno Costa")
	s.worker("erica", "Érica Lima")
	s.worker("zilda", "Zilda Nunes")

	for day := 1; day <= 31; day += 3 {
		date := compensation.NewDate(2025, time.March, day)
		s.shift(fmt.Sprintf("icu-d-%02d", day), date, "07:00", "19:00", "icu", compensation.Unset())
		s.shift(fmt.Sprintf("icu-n-%02d", day), date, "19:00", "07:00", "icu", compensation.Unset())
		s.shift(fmt.Sprintf("er-d-%02d", day), date, "08:00", "20:00", "er", compensation.Unset())
		s.shift(fmt.Sprintf("er-n-%02d", day), date, "20:00", "08:00", "er", compensation.Unset())

		s.assign(fmt.Sprintf("a-icu-d-%02d", day), "agata", fmt.Sprintf("icu-d-%02d", day))
		s.assign(fmt.Sprintf("a-icu-n-%02d", day), "bruno", fmt.Sprintf("icu-n-%02d", day))
		s.assign(fmt.Sprintf("a-er-d-%02d", day), "erica", fmt.Sprintf("er-d-%02d", day))
		s.assign(fmt.Sprintf("a-er-n-%02d", day), "zilda", fmt.Sprintf("er-n-%02d", day))
	}
	// Bruno also covers some ICU day shifts, where his override pays zero.
	s.assign("a-icu-d-04-bruno", "bruno", "icu-d-04")
	s.assign("a-icu-d-10-bruno", "bruno", "icu-d-10")

	s.shift("cc-07", compensation.NewDate(2025, time.March, 7), "07:00", "13:00", "surgery", compensation.RateFromInt(650))
	s.shift("cc-14", compensation.NewDate(2025, time.March, 14), "13:00", "19:00", "surgery", compensation.RateFromInt(0))
	s.assign("a-cc-07", "zilda", "cc-07")
	s.assign("a-cc-14", "zilda", "cc-14")

	s.shift("transport-20", compensation.NewDate(2025, time.March, 20), "10:00", "16:00", "", compensation.RateFromInt(400))
	s.assign("a-transport-20", "agata", "transport-20")

	s.assignWith(compensation.Assignment{
		ID:       "a-er-d-13-cancelled",
		WorkerID: "agata",
		ShiftID:  "er-d-13",
		Status:   compensation.StatusCancelled,
	})
	if s.err != nil {
		return s.err
	}

	if _, err := h.Overrides.Save(ctx, compensation.RateOverride{
		TenantID:   DemoTenant,
		SectorID:   "icu",
		WorkerID:   "bruno",
		Year:       2025,
		Month:      time.March,
		DayValue:   compensation.RateFromInt(0),
		NightValue: compensation.RateFromInt(1800),
	}); err != nil {
		return err
	}

	return h.Coordinator.Pin(ctx, DemoTenant, "a-er-d-07", compensation.RateFromInt(750))
}

// loadPrecedenceTourScenario seeds one pairing per tier on 2025-03-10.
func (h *Handler) loadPrecedenceTourScenario(ctx context.Context) error {
	s := &seeder{ctx: ctx, store: h.Store, tenant: DemoTenant}
	date := compensation.NewDate(2025, time.March, 10)

	s.sector("er", "ER", compensation.RateFromInt(400), compensation.RateFromInt(500))
	s.sector("icu", "ICU", compensation.Unset(), compensation.Unset())
	s.worker("w-cached", "Cached Zero")
	s.worker("w-override", "Override Zero")
	s.worker("w-default", "Sector Default")
	s.worker("w-base", "Base Value")
	s.worker("w-unpriced", "Unpriced")

	// cached zero wins over the ER day default of 400
	s.shift("s-cached", date, "08:00", "20:00", "er", compensation.Unset())
	s.assignWith(compensation.Assignment{ID: "a-cached", WorkerID: "w-cached", ShiftID: "s-cached", CachedValue: compensation.RateFromInt(0)})

	// override day value zero beats the sector default
	s.shift("s-override", date, "09:00", "21:00", "er", compensation.Unset())
	s.assign("a-override", "w-override", "s-override")

	// night default 500
	s.shift("s-default", date, "19:00", "07:00", "er", compensation.Unset())
	s.assign("a-default", "w-default", "s-default")

	// ICU has no defaults: positive base value counts, zero does not
	s.shift("s-base", date, "07:00", "19:00", "icu", compensation.RateFromInt(350))
	s.assign("a-base", "w-base", "s-base")
	s.shift("s-unpriced", date, "07:00", "19:00", "icu", compensation.RateFromInt(0))
	s.assign("a-unpriced", "w-unpriced", "s-unpriced")
	if s.err != nil {
		return s.err
	}

	_, err := h.Overrides.Save(ctx, compensation.RateOverride{
		TenantID: DemoTenant,
		SectorID: "er",
		WorkerID: "w-override",
		Year:     2025,
		Month:    time.March,
		DayValue: compensation.RateFromInt(0),
	})
	return err
}

// =============================================================================
// SEEDING HELPERS
// =============================================================================

// seeder writes records until the first error, then does nothing.
type seeder struct {
	ctx    context.Context
	store  compensation.ScheduleWriter
	tenant compensation.TenantID
	err    error
}

func (s *seeder) sector(id, name string, day, night compensation.Rate) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveSector(s.ctx, compensation.Sector{
		ID:           compensation.SectorID(id),
		TenantID:     s.tenant,
		Name:         name,
		DefaultDay:   day,
		DefaultNight: night,
	})
}

func (s *seeder) worker(id, name string) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveWorker(s.ctx, compensation.Worker{
		ID:       compensation.WorkerID(id),
		TenantID: s.tenant,
		Name:     name,
	})
}

func (s *seeder) shift(id string, date time.Time, start, end, sectorID string, base compensation.Rate) {
	if s.err != nil {
		return
	}
	s.err = s.store.SaveShift(s.ctx, compensation.ShiftOccurrence{
		ID:        compensation.ShiftID(id),
		TenantID:  s.tenant,
		Date:      date,
		StartTime: start,
		EndTime:   end,
		SectorID:  compensation.SectorID(sectorID),
		BaseValue: base,
	})
}

func (s *seeder) assign(id, workerID, shiftID string) {
	s.assignWith(compensation.Assignment{
		ID:       compensation.AssignmentID(id),
		WorkerID: compensation.WorkerID(workerID),
		ShiftID:  compensation.ShiftID(shiftID),
	})
}

func (s *seeder) assignWith(a compensation.Assignment) {
	if s.err != nil {
		return
	}
	a.TenantID = s.tenant
	if a.Status == "" {
		a.Status = compensation.StatusAssigned
	}
	s.err = s.store.SaveAssignment(s.ctx, a)
}
