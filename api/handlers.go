/*
handlers.go - HTTP API handlers for the shift compensation engine

PURPOSE:
  Exposes the compensation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Schedule (per tenant, under /api/tenants/{tenant}):
    GET    /sectors                   List sectors
    POST   /sectors                   Create or update a sector
    GET    /workers                   List workers
    POST   /workers                   Create or update a worker
    GET    /shifts?from&to&sector     List shift occurrences
    POST   /shifts                    Create or update a shift occurrence
    GET    /assignments?worker        List assignments
    POST   /assignments               Create or update an assignment
    PUT    /assignments/{id}/pin      Pin a cached value (zero allowed)
    DELETE /assignments/{id}/pin      Remove the pin

  Overrides:
    GET    /overrides?year&month      List a month of overrides
    PUT    /overrides                 Upsert one override (both null deletes)
    PUT    /overrides/bulk            Upsert a month grid

  Reports (?from&to&sector&worker):
    GET    /reports/sectors           Sector -> worker breakdown
    GET    /reports/workers           Per-worker summaries
    GET    /reports/totals            Grand totals only
    GET    /reports/entries           Flat resolved entries

  Invalidation:
    POST   /invalidations             Manual resync of one scope
    GET    /api/invalidation-runs     Recorded sweeps (?status)
    POST   /api/invalidation-runs/retry  Retry failed sweeps now

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Record not found
  - 500: Internal errors
  A failed cache sweep after a committed override write is NOT an error:
  the response is 200 with a "warning" field.

SECURITY NOTE:
  Tenant isolation is by path only. There is no authentication layer.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/plantao-engine/compensation"
)

const dateLayout = "2006-01-02"

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       compensation.Store
	Coordinator *compensation.Coordinator
	Overrides   *compensation.OverrideService
	Reporter    *compensation.Reporter
	Logger      *zap.Logger

	validate *validator.Validate

	// Track currently loaded scenario
	mu              sync.Mutex
	currentScenario string
}

// NewHandler wires the engine services on top of store.
func NewHandler(store compensation.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	coordinator := compensation.NewCoordinator(store, store, logger.Named("invalidation"))
	return &Handler{
		Store:       store,
		Coordinator: coordinator,
		Overrides:   compensation.NewOverrideService(store, coordinator, store, logger.Named("overrides")),
		Reporter:    compensation.NewReporter(store, store),
		Logger:      logger,
		validate:    newValidator(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, _, err := compensation.ParseClock(fl.Field().String())
		return err == nil
	})
	return v
}

func tenantParam(r *http.Request) compensation.TenantID {
	return compensation.TenantID(chi.URLParam(r, "tenant"))
}

// =============================================================================
// SECTOR / WORKER HANDLERS
// =============================================================================

// ListSectors returns the sectors of a tenant.
func (h *Handler) ListSectors(w http.ResponseWriter, r *http.Request) {
	sectors, err := h.Store.ListSectors(r.Context(), tenantParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list sectors", err)
		return
	}
	dtos := make([]SectorDTO, len(sectors))
	for i, s := range sectors {
		dtos[i] = toSectorDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveSector creates or updates a sector and its default values.
func (h *Handler) SaveSector(w http.ResponseWriter, r *http.Request) {
	var req SaveSectorRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	sector := compensation.Sector{
		ID:           compensation.SectorID(req.ID),
		TenantID:     tenantParam(r),
		Name:         req.Name,
		DefaultDay:   req.DefaultDayValue,
		DefaultNight: req.DefaultNightValue,
	}
	if err := h.Store.SaveSector(r.Context(), sector); err != nil {
		h.writeDomainError(w, "Failed to save sector", err)
		return
	}
	writeJSON(w, http.StatusCreated, toSectorDTO(sector))
}

// ListWorkers returns the workers of a tenant.
func (h *Handler) ListWorkers(w http.ResponseWriter, r *http.Request) {
	workers, err := h.Store.ListWorkers(r.Context(), tenantParam(r))
	if err != nil {
		h.writeDomainError(w, "Failed to list workers", err)
		return
	}
	dtos := make([]WorkerDTO, len(workers))
	for i, wk := range workers {
		dtos[i] = WorkerDTO{ID: string(wk.ID), Name: wk.Name}
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveWorker(w http.ResponseWriter, r *http.Request) {
	var req SaveWorkerRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	worker := compensation.Worker{
		ID:       compensation.WorkerID(req.ID),
		TenantID: tenantParam(r),
		Name:     req.Name,
	}
	if err := h.Store.SaveWorker(r.Context(), worker); err != nil {
		h.writeDomainError(w, "Failed to save worker", err)
		return
	}
	writeJSON(w, http.StatusCreated, WorkerDTO{ID: req.ID, Name: req.Name})
}

// =============================================================================
// SHIFT / ASSIGNMENT HANDLERS
// =============================================================================

// ListShifts returns shift occurrences, optionally narrowed by date window
// and sector.
func (h *Handler) ListShifts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := compensation.ShiftFilter{
		TenantID: tenantParam(r),
		SectorID: compensation.SectorID(q.Get("sector")),
	}
	var err error
	if filter.From, err = parseOptionalDate(q.Get("from")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	if filter.To, err = parseOptionalDate(q.Get("to")); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	shifts, err := h.Store.ListShifts(r.Context(), filter)
	if err != nil {
		h.writeDomainError(w, "Failed to list shifts", err)
		return
	}
	dtos := make([]ShiftDTO, len(shifts))
	for i, s := range shifts {
		dtos[i] = toShiftDTO(s)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveShift(w http.ResponseWriter, r *http.Request) {
	var req SaveShiftRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}
	shift := compensation.ShiftOccurrence{
		ID:        compensation.ShiftID(req.ID),
		TenantID:  tenantParam(r),
		Date:      date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		SectorID:  compensation.SectorID(req.SectorID),
		BaseValue: req.BaseValue,
	}
	if err := h.Store.SaveShift(r.Context(), shift); err != nil {
		h.writeDomainError(w, "Failed to save shift", err)
		return
	}
	writeJSON(w, http.StatusCreated, toShiftDTO(shift))
}

// ListAssignments returns the assignments of a tenant, optionally for one
// worker.
func (h *Handler) ListAssignments(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Store.ListAssignments(r.Context(), compensation.AssignmentFilter{
		TenantID: tenantParam(r),
		WorkerID: compensation.WorkerID(r.URL.Query().Get("worker")),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to list assignments", err)
		return
	}
	dtos := make([]AssignmentDTO, len(assignments))
	for i, a := range assignments {
		dtos[i] = toAssignmentDTO(a)
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) SaveAssignment(w http.ResponseWriter, r *http.Request) {
	var req SaveAssignmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	status := compensation.AssignmentStatus(req.Status)
	if status == "" {
		status = compensation.StatusAssigned
	}
	a := compensation.Assignment{
		ID:          compensation.AssignmentID(req.ID),
		TenantID:    tenantParam(r),
		WorkerID:    compensation.WorkerID(req.WorkerID),
		ShiftID:     compensation.ShiftID(req.ShiftID),
		CachedValue: req.CachedValue,
		Status:      status,
	}
	if err := h.Store.SaveAssignment(r.Context(), a); err != nil {
		h.writeDomainError(w, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, toAssignmentDTO(a))
}

// PinValue stores an explicit cached value on one assignment.
// PUT /api/tenants/{tenant}/assignments/{id}/pin
func (h *Handler) PinValue(w http.ResponseWriter, r *http.Request) {
	var req PinValueRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	h.pin(w, r, req.Value)
}

// UnpinValue clears the cached value so the amount is derived again.
// DELETE /api/tenants/{tenant}/assignments/{id}/pin
func (h *Handler) UnpinValue(w http.ResponseWriter, r *http.Request) {
	h.pin(w, r, compensation.Unset())
}

func (h *Handler) pin(w http.ResponseWriter, r *http.Request, value compensation.Rate) {
	tenantID := tenantParam(r)
	id := compensation.AssignmentID(chi.URLParam(r, "id"))
	if err := h.Coordinator.Pin(r.Context(), tenantID, id, value); err != nil {
		h.writeDomainError(w, "Failed to pin value", err)
		return
	}
	a, err := h.Store.GetAssignment(r.Context(), tenantID, id)
	if err != nil {
		h.writeDomainError(w, "Failed to load assignment", err)
		return
	}
	if a == nil {
		writeError(w, http.StatusNotFound, "Assignment not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toAssignmentDTO(*a))
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// ListOverrides returns the overrides of one month.
// GET /api/tenants/{tenant}/overrides?year=2025&month=3
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid year", err)
		return
	}
	month, err := strconv.Atoi(r.URL.Query().Get("month"))
	if err != nil || month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "Invalid month", err)
		return
	}

	overrides, err := h.Overrides.List(r.Context(), tenantParam(r), year, time.Month(month))
	if err != nil {
		h.writeDomainError(w, "Failed to list overrides", err)
		return
	}
	dtos := make([]OverrideDTO, len(overrides))
	for i, o := range overrides {
		dtos[i] = toOverrideDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// SaveOverride upserts one override and invalidates its scope.
// PUT /api/tenants/{tenant}/overrides
func (h *Handler) SaveOverride(w http.ResponseWriter, r *http.Request) {
	var req SaveOverrideRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	result, err := h.Overrides.Save(r.Context(), overrideFromRequest(tenantParam(r), req))
	if err != nil {
		h.writeDomainError(w, "Failed to save override", err)
		return
	}
	writeJSON(w, http.StatusOK, toSaveOverrideResponse(result))
}

// SaveOverrides upserts a grid of overrides, then invalidates every changed
// scope. Rows written before a failing one stay written.
// PUT /api/tenants/{tenant}/overrides/bulk
func (h *Handler) SaveOverrides(w http.ResponseWriter, r *http.Request) {
	var req SaveOverridesRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	tenantID := tenantParam(r)
	overrides := make([]compensation.RateOverride, len(req.Overrides))
	for i, o := range req.Overrides {
		overrides[i] = overrideFromRequest(tenantID, o)
	}

	results, err := h.Overrides.SaveMany(r.Context(), overrides)
	if err != nil {
		h.writeDomainError(w, fmt.Sprintf("Failed after saving %d of %d overrides", len(results), len(overrides)), err)
		return
	}
	resp := make([]SaveOverrideResponse, len(results))
	for i, res := range results {
		resp[i] = toSaveOverrideResponse(res)
	}
	writeJSON(w, http.StatusOK, resp)
}

func overrideFromRequest(tenantID compensation.TenantID, req SaveOverrideRequest) compensation.RateOverride {
	return compensation.RateOverride{
		TenantID:   tenantID,
		SectorID:   compensation.SectorID(req.SectorID),
		WorkerID:   compensation.WorkerID(req.WorkerID),
		Year:       req.Year,
		Month:      time.Month(req.Month),
		DayValue:   req.DayValue,
		NightValue: req.NightValue,
	}
}

func toSaveOverrideResponse(res compensation.SaveResult) SaveOverrideResponse {
	resp := SaveOverrideResponse{Deleted: res.Deleted}
	if res.Override != nil {
		dto := toOverrideDTO(*res.Override)
		resp.Override = &dto
	}
	if res.Changed {
		resp.Invalidation = toInvalidationDTO(res.Invalidation, res.Warning)
	}
	if res.Warning != nil {
		resp.Warning = res.Warning.Error()
	}
	return resp
}

// =============================================================================
// REPORT HANDLERS
// =============================================================================

// SectorReport returns the sector -> worker breakdown.
// GET /api/tenants/{tenant}/reports/sectors?from=2025-03-01&to=2025-03-31
func (h *Handler) SectorReport(w http.ResponseWriter, r *http.Request) {
	report, resp, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	resp.Sectors = toSectorReportDTOs(report.Sectors)
	writeJSON(w, http.StatusOK, resp)
}

// WorkerReport returns one summary per worker across sectors.
func (h *Handler) WorkerReport(w http.ResponseWriter, r *http.Request) {
	report, resp, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	resp.Workers = toWorkerSummaryDTOs(report.Workers)
	writeJSON(w, http.StatusOK, resp)
}

// TotalsReport returns only the grand totals.
func (h *Handler) TotalsReport(w http.ResponseWriter, r *http.Request) {
	_, resp, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// EntriesReport returns the flat resolved entries, with their source.
func (h *Handler) EntriesReport(w http.ResponseWriter, r *http.Request) {
	report, resp, ok := h.buildReport(w, r)
	if !ok {
		return
	}
	resp.Entries = toEntryDTOs(report.Entries)
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) buildReport(w http.ResponseWriter, r *http.Request) (*compensation.Report, ReportResponse, bool) {
	q := r.URL.Query()
	from, err := time.Parse(dateLayout, q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return nil, ReportResponse{}, false
	}
	to, err := time.Parse(dateLayout, q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return nil, ReportResponse{}, false
	}

	report, err := h.Reporter.Build(r.Context(), compensation.ReportQuery{
		TenantID: tenantParam(r),
		From:     from,
		To:       to,
		SectorID: compensation.SectorID(q.Get("sector")),
		WorkerID: compensation.WorkerID(q.Get("worker")),
	})
	if err != nil {
		h.writeDomainError(w, "Failed to build report", err)
		return nil, ReportResponse{}, false
	}
	resp := NewReportResponse(report)
	resp.Sectors, resp.Workers, resp.Entries = nil, nil, nil
	return report, resp, true
}

// =============================================================================
// INVALIDATION HANDLERS
// =============================================================================

// Invalidate re-runs the cache sweep for one scope. Safe to repeat.
// POST /api/tenants/{tenant}/invalidations
func (h *Handler) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req InvalidateRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	scope := compensation.Scope{
		TenantID: tenantParam(r),
		SectorID: compensation.SectorID(req.SectorID),
		WorkerID: compensation.WorkerID(req.WorkerID),
		Year:     req.Year,
		Month:    time.Month(req.Month),
	}

	result, err := h.Overrides.Resync(r.Context(), scope)
	if err != nil && !compensation.IsWarning(err) {
		h.writeDomainError(w, "Failed to invalidate", err)
		return
	}
	writeJSON(w, http.StatusOK, toInvalidationDTO(result, err))
}

// ListInvalidationRuns returns recorded sweeps.
// GET /api/invalidation-runs?status=failed
func (h *Handler) ListInvalidationRuns(w http.ResponseWriter, r *http.Request) {
	status := compensation.RunStatus(r.URL.Query().Get("status"))
	runs, err := h.Store.ListInvalidationRuns(r.Context(), status)
	if err != nil {
		h.writeDomainError(w, "Failed to list invalidation runs", err)
		return
	}
	dtos := make([]InvalidationRunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// RetryInvalidations re-runs every failed sweep now.
// POST /api/invalidation-runs/retry
func (h *Handler) RetryInvalidations(w http.ResponseWriter, r *http.Request) {
	completed, err := h.Overrides.RetryFailed(r.Context())
	if err != nil {
		h.writeDomainError(w, "Failed to retry invalidations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"completed": completed})
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return h.validate.Struct(dst)
}

// writeDomainError maps engine errors to HTTP statuses.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case compensation.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	case compensation.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, context.Canceled):
		writeError(w, http.StatusRequestTimeout, message, err)
	default:
		h.Logger.Error(message, zap.Error(err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func parseOptionalDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, s)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
