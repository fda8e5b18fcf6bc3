/*
dto.go - Data Transfer Objects for API requests and responses

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

AMOUNTS:
  Nullable amounts use compensation.Rate, which encodes unset as null and a
  set value as a JSON number. Sending 0 sets an explicit zero; sending null or
  omitting the field leaves it unset. Report sums are decimal strings.

VALIDATION:
  Request types carry go-playground/validator tags, checked in handlers via
  decodeAndValidate.
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/plantao-engine/compensation"
)

// =============================================================================
// SECTORS / WORKERS
// =============================================================================

type SectorDTO struct {
	ID                string            `json:"id"`
	Name              string            `json:"name"`
	DefaultDayValue   compensation.Rate `json:"default_day_value"`
	DefaultNightValue compensation.Rate `json:"default_night_value"`
}

type SaveSectorRequest struct {
	ID                string            `json:"id" validate:"required,max=64"`
	Name              string            `json:"name" validate:"required,max=200"`
	DefaultDayValue   compensation.Rate `json:"default_day_value"`
	DefaultNightValue compensation.Rate `json:"default_night_value"`
}

type WorkerDTO struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SaveWorkerRequest struct {
	ID   string `json:"id" validate:"required,max=64"`
	Name string `json:"name" validate:"required,max=200"`
}

// =============================================================================
// SHIFTS / ASSIGNMENTS
// =============================================================================

type ShiftDTO struct {
	ID        string            `json:"id"`
	Date      string            `json:"date"`
	StartTime string            `json:"start_time"`
	EndTime   string            `json:"end_time"`
	SectorID  string            `json:"sector_id,omitempty"`
	BaseValue compensation.Rate `json:"base_value"`
	Period    string            `json:"period"`
}

type SaveShiftRequest struct {
	ID        string            `json:"id" validate:"required,max=64"`
	Date      string            `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime string            `json:"start_time" validate:"required,clock"`
	EndTime   string            `json:"end_time" validate:"omitempty,clock"`
	SectorID  string            `json:"sector_id" validate:"max=64"`
	BaseValue compensation.Rate `json:"base_value"`
}

type AssignmentDTO struct {
	ID          string            `json:"id"`
	WorkerID    string            `json:"worker_id"`
	ShiftID     string            `json:"shift_id"`
	CachedValue compensation.Rate `json:"cached_value"`
	Status      string            `json:"status"`
}

type SaveAssignmentRequest struct {
	ID          string            `json:"id" validate:"required,max=64"`
	WorkerID    string            `json:"worker_id" validate:"required,max=64"`
	ShiftID     string            `json:"shift_id" validate:"required,max=64"`
	CachedValue compensation.Rate `json:"cached_value"`
	Status      string            `json:"status" validate:"omitempty,oneof=assigned confirmed completed cancelled"`
}

// PinValueRequest pins a cached value. A null value unpins.
type PinValueRequest struct {
	Value compensation.Rate `json:"value"`
}

// =============================================================================
// OVERRIDES
// =============================================================================

type OverrideDTO struct {
	ID         string            `json:"id"`
	SectorID   string            `json:"sector_id"`
	WorkerID   string            `json:"worker_id"`
	Year       int               `json:"year"`
	Month      int               `json:"month"`
	DayValue   compensation.Rate `json:"day_value"`
	NightValue compensation.Rate `json:"night_value"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

// SaveOverrideRequest upserts an override. Both values null deletes it.
type SaveOverrideRequest struct {
	SectorID   string            `json:"sector_id" validate:"required,max=64"`
	WorkerID   string            `json:"worker_id" validate:"required,max=64"`
	Year       int               `json:"year" validate:"required,min=1900,max=9999"`
	Month      int               `json:"month" validate:"required,min=1,max=12"`
	DayValue   compensation.Rate `json:"day_value"`
	NightValue compensation.Rate `json:"night_value"`
}

type SaveOverridesRequest struct {
	Overrides []SaveOverrideRequest `json:"overrides" validate:"required,min=1,max=1000,dive"`
}

type SaveOverrideResponse struct {
	Override     *OverrideDTO     `json:"override"`
	Deleted      bool             `json:"deleted"`
	Invalidation *InvalidationDTO `json:"invalidation,omitempty"`
	Warning      string           `json:"warning,omitempty"`
}

// =============================================================================
// INVALIDATION
// =============================================================================

type InvalidateRequest struct {
	SectorID string `json:"sector_id" validate:"required,max=64"`
	WorkerID string `json:"worker_id" validate:"required,max=64"`
	Year     int    `json:"year" validate:"required,min=1900,max=9999"`
	Month    int    `json:"month" validate:"required,min=1,max=12"`
}

type InvalidationDTO struct {
	Matched []string `json:"matched"`
	Cleared []string `json:"cleared"`
	Warning string   `json:"warning,omitempty"`
}

type InvalidationRunDTO struct {
	ID        string `json:"id"`
	TenantID  string `json:"tenant_id"`
	SectorID  string `json:"sector_id"`
	WorkerID  string `json:"worker_id"`
	Year      int    `json:"year"`
	Month     int    `json:"month"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	Matched   int    `json:"matched"`
	Cleared   int    `json:"cleared"`
	Error     string `json:"error,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// =============================================================================
// REPORTS
// =============================================================================

type EntryDTO struct {
	AssignmentID string            `json:"assignment_id"`
	ShiftID      string            `json:"shift_id"`
	WorkerID     string            `json:"worker_id"`
	WorkerName   string            `json:"worker_name"`
	SectorID     string            `json:"sector_id,omitempty"`
	SectorName   string            `json:"sector_name,omitempty"`
	Date         string            `json:"date"`
	Period       string            `json:"period"`
	Value        compensation.Rate `json:"value"`
	Priced       bool              `json:"priced"`
	Source       string            `json:"source"`
}

type TotalsDTO struct {
	Entries      int             `json:"entries"`
	Priced       int             `json:"priced"`
	Unpriced     int             `json:"unpriced"`
	Value        decimal.Decimal `json:"value"`
	DayEntries   int             `json:"day_entries"`
	NightEntries int             `json:"night_entries"`
	DayValue     decimal.Decimal `json:"day_value"`
	NightValue   decimal.Decimal `json:"night_value"`
	Workers      int             `json:"workers"`
}

type WorkerSummaryDTO struct {
	WorkerID   string     `json:"worker_id"`
	WorkerName string     `json:"worker_name"`
	Entries    []EntryDTO `json:"entries"`
	Totals     TotalsDTO  `json:"totals"`
}

type SectorReportDTO struct {
	SectorID   string             `json:"sector_id,omitempty"`
	SectorName string             `json:"sector_name"`
	Workers    []WorkerSummaryDTO `json:"workers"`
	Totals     TotalsDTO          `json:"totals"`
}

type ReportResponse struct {
	TenantID string             `json:"tenant_id"`
	From     string             `json:"from"`
	To       string             `json:"to"`
	Sectors  []SectorReportDTO  `json:"sectors,omitempty"`
	Workers  []WorkerSummaryDTO `json:"workers,omitempty"`
	Entries  []EntryDTO         `json:"entries,omitempty"`
	Totals   TotalsDTO          `json:"totals"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toSectorDTO(s compensation.Sector) SectorDTO {
	return SectorDTO{ID: string(s.ID), Name: s.Name, DefaultDayValue: s.DefaultDay, DefaultNightValue: s.DefaultNight}
}

func toShiftDTO(s compensation.ShiftOccurrence) ShiftDTO {
	return ShiftDTO{
		ID:        string(s.ID),
		Date:      s.Date.Format(dateLayout),
		StartTime: s.StartTime,
		EndTime:   s.EndTime,
		SectorID:  string(s.SectorID),
		BaseValue: s.BaseValue,
		Period:    string(compensation.ClassifyPeriod(s.StartTime)),
	}
}

func toAssignmentDTO(a compensation.Assignment) AssignmentDTO {
	return AssignmentDTO{
		ID:          string(a.ID),
		WorkerID:    string(a.WorkerID),
		ShiftID:     string(a.ShiftID),
		CachedValue: a.CachedValue,
		Status:      string(a.Status),
	}
}

func toOverrideDTO(o compensation.RateOverride) OverrideDTO {
	dto := OverrideDTO{
		ID:         o.ID,
		SectorID:   string(o.SectorID),
		WorkerID:   string(o.WorkerID),
		Year:       o.Year,
		Month:      int(o.Month),
		DayValue:   o.DayValue,
		NightValue: o.NightValue,
	}
	if !o.UpdatedAt.IsZero() {
		dto.UpdatedAt = o.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}

func toInvalidationDTO(r compensation.InvalidationResult, warning error) *InvalidationDTO {
	dto := &InvalidationDTO{
		Matched: idStrings(r.Matched),
		Cleared: idStrings(r.Cleared),
	}
	if warning != nil {
		dto.Warning = warning.Error()
	}
	return dto
}

func toRunDTO(r compensation.InvalidationRun) InvalidationRunDTO {
	return InvalidationRunDTO{
		ID:        r.ID,
		TenantID:  string(r.Scope.TenantID),
		SectorID:  string(r.Scope.SectorID),
		WorkerID:  string(r.Scope.WorkerID),
		Year:      r.Scope.Year,
		Month:     int(r.Scope.Month),
		Status:    string(r.Status),
		Attempts:  r.Attempts,
		Matched:   r.Matched,
		Cleared:   r.Cleared,
		Error:     r.Error,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
		UpdatedAt: r.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTOs(entries []compensation.ResolvedEntry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = EntryDTO{
			AssignmentID: string(e.AssignmentID),
			ShiftID:      string(e.ShiftID),
			WorkerID:     string(e.WorkerID),
			WorkerName:   e.WorkerName,
			SectorID:     string(e.SectorID),
			SectorName:   e.SectorName,
			Date:         e.Date.Format(dateLayout),
			Period:       string(e.Period),
			Value:        e.Value,
			Priced:       e.Priced(),
			Source:       string(e.Source),
		}
	}
	return dtos
}

func toTotalsDTO(t compensation.Totals) TotalsDTO {
	return TotalsDTO{
		Entries:      t.Entries,
		Priced:       t.Priced,
		Unpriced:     t.Unpriced,
		Value:        t.Value,
		DayEntries:   t.DayEntries,
		NightEntries: t.NightEntries,
		DayValue:     t.DayValue,
		NightValue:   t.NightValue,
		Workers:      t.Workers,
	}
}

func toWorkerSummaryDTOs(summaries []compensation.WorkerSummary) []WorkerSummaryDTO {
	dtos := make([]WorkerSummaryDTO, len(summaries))
	for i, w := range summaries {
		dtos[i] = WorkerSummaryDTO{
			WorkerID:   string(w.WorkerID),
			WorkerName: w.WorkerName,
			Entries:    toEntryDTOs(w.Entries),
			Totals:     toTotalsDTO(w.Totals),
		}
	}
	return dtos
}

func toSectorReportDTOs(reports []compensation.SectorReport) []SectorReportDTO {
	dtos := make([]SectorReportDTO, len(reports))
	for i, r := range reports {
		dtos[i] = SectorReportDTO{
			SectorID:   string(r.SectorID),
			SectorName: r.SectorName,
			Workers:    toWorkerSummaryDTOs(r.Workers),
			Totals:     toTotalsDTO(r.Totals),
		}
	}
	return dtos
}

func idStrings(ids []compensation.AssignmentID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}
	return out
}

// NewReportResponse renders every section of a report.
func NewReportResponse(report *compensation.Report) ReportResponse {
	return ReportResponse{
		TenantID: string(report.Query.TenantID),
		From:     report.Query.From.Format(dateLayout),
		To:       report.Query.To.Format(dateLayout),
		Sectors:  toSectorReportDTOs(report.Sectors),
		Workers:  toWorkerSummaryDTOs(report.Workers),
		Entries:  toEntryDTOs(report.Entries),
		Totals:   toTotalsDTO(report.Totals),
	}
}
