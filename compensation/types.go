/*
Package compensation resolves what is owed for every (worker, shift) pairing
and rolls the resolved amounts up into financial reports.

PURPOSE:
  Hospital sectors staff dated shifts with plantonistas. The amount owed for a
  shift comes from a layered fallback chain (pinned cached value, individual
  monthly override, sector default, shift base value). This package holds the
  domain types, the pure resolution and aggregation functions, and the one
  stateful piece: the coordinator that clears stale cached values when an
  override changes.

KEY CONCEPTS IN THIS FILE (types.go):
  - Rate: an optional monetary amount. Unset and zero are different things.
  - ShiftOccurrence, Sector, Worker, Assignment, RateOverride: persisted records
  - ResolvedEntry: derived, never persisted, produced fresh on every read

DESIGN PRINCIPLES:
  1. Zero is a value: every tier carries an explicit "set" flag
  2. Precision: amounts use decimal.Decimal, never float64
  3. Type Safety: distinct ID types for tenants, sectors, workers, shifts

SEE ALSO:
  - resolve.go: Rate Resolution Service
  - invalidate.go: Invalidation Coordinator
  - aggregate.go: Aggregation Engine
*/
package compensation

import (
	"bytes"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RATE - Optional amount in the single opaque currency unit
// =============================================================================

// Rate is a tagged optional amount. The zero Rate is unset.
type Rate struct {
	value decimal.Decimal
	set   bool
}

// Unset returns a Rate with no value.
func Unset() Rate { return Rate{} }

func NewRate(v decimal.Decimal) Rate        { return Rate{value: v, set: true} }
func RateFromInt(v int64) Rate              { return NewRate(decimal.NewFromInt(v)) }
func RateFromFloat(v float64) Rate          { return NewRate(decimal.NewFromFloat(v)) }
func (r Rate) IsSet() bool                  { return r.set }
func (r Rate) Get() (decimal.Decimal, bool) { return r.value, r.set }

// ParseRate parses a decimal string. The empty string is Unset.
func ParseRate(s string) (Rate, error) {
	if s == "" {
		return Unset(), nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Unset(), fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return NewRate(d), nil
}

// Decimal returns the value, or zero when unset. Callers that must tell the
// two apart use Get.
func (r Rate) Decimal() decimal.Decimal {
	if !r.set {
		return decimal.Zero
	}
	return r.value
}

// IsPositive reports whether the rate is set and strictly greater than zero.
func (r Rate) IsPositive() bool { return r.set && r.value.IsPositive() }

func (r Rate) Equal(other Rate) bool {
	if r.set != other.set {
		return false
	}
	return !r.set || r.value.Equal(other.value)
}

func (r Rate) String() string {
	if !r.set {
		return "unset"
	}
	return r.value.String()
}

// MarshalJSON encodes an unset rate as null and a set rate as a JSON number.
func (r Rate) MarshalJSON() ([]byte, error) {
	if !r.set {
		return []byte("null"), nil
	}
	return []byte(r.value.String()), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*r = Unset()
		return nil
	}
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*r = NewRate(d)
	return nil
}

// Value implements driver.Valuer. Unset is stored as NULL.
func (r Rate) Value() (driver.Value, error) {
	if !r.set {
		return nil, nil
	}
	return r.value.String(), nil
}

// Scan implements sql.Scanner.
func (r *Rate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*r = Unset()
	case string:
		parsed, err := ParseRate(v)
		if err != nil {
			return err
		}
		*r = parsed
	case []byte:
		parsed, err := ParseRate(string(v))
		if err != nil {
			return err
		}
		*r = parsed
	case int64:
		*r = RateFromInt(v)
	case float64:
		*r = RateFromFloat(v)
	default:
		return fmt.Errorf("cannot scan %T into Rate", src)
	}
	return nil
}

// =============================================================================
// IDENTIFIERS
// =============================================================================

type TenantID string
type SectorID string
type WorkerID string
type ShiftID string
type AssignmentID string

// =============================================================================
// PERIOD & SOURCE
// =============================================================================

// Period is the day/night classification of a shift.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodNight Period = "night"
)

// Source records which tier produced a resolved value.
type Source string

const (
	SourceCached        Source = "cached"
	SourceOverride      Source = "override"
	SourceSectorDefault Source = "sector_default"
	SourceBaseValue     Source = "base_value"
	SourceNone          Source = "none"
)

// =============================================================================
// PERSISTED RECORDS
// =============================================================================

// ShiftOccurrence is one dated, timed work slot.
type ShiftOccurrence struct {
	ID        ShiftID
	TenantID  TenantID
	Date      time.Time // day granularity, UTC
	StartTime string    // "HH:MM"
	EndTime   string    // "HH:MM"
	SectorID  SectorID  // empty when the shift has no sector
	BaseValue Rate
}

// HasSector reports whether the shift belongs to a sector.
func (s ShiftOccurrence) HasSector() bool { return s.SectorID != "" }

type Sector struct {
	ID           SectorID
	TenantID     TenantID
	Name         string
	DefaultDay   Rate
	DefaultNight Rate
}

// DefaultFor returns the sector default for the given period.
func (s Sector) DefaultFor(p Period) Rate {
	if p == PeriodNight {
		return s.DefaultNight
	}
	return s.DefaultDay
}

type Worker struct {
	ID       WorkerID
	TenantID TenantID
	Name     string
}

type AssignmentStatus string

const (
	StatusAssigned  AssignmentStatus = "assigned"
	StatusConfirmed AssignmentStatus = "confirmed"
	StatusCompleted AssignmentStatus = "completed"
	StatusCancelled AssignmentStatus = "cancelled"
)

// Assignment links one worker to one shift occurrence. CachedValue is a
// previously resolved or admin-pinned amount; it wins over every other tier
// until the Invalidation Coordinator clears it.
type Assignment struct {
	ID          AssignmentID
	TenantID    TenantID
	WorkerID    WorkerID
	ShiftID     ShiftID
	CachedValue Rate
	Status      AssignmentStatus
}

// RateOverride is a worker- and month-specific rate for a sector.
// At most one row exists per Scope.
type RateOverride struct {
	ID         string
	TenantID   TenantID
	SectorID   SectorID
	WorkerID   WorkerID
	Year       int
	Month      time.Month
	DayValue   Rate
	NightValue Rate
	UpdatedAt  time.Time
}

func (o RateOverride) Scope() Scope {
	return Scope{TenantID: o.TenantID, SectorID: o.SectorID, WorkerID: o.WorkerID, Year: o.Year, Month: o.Month}
}

// ValueFor returns the override field for the given period.
func (o RateOverride) ValueFor(p Period) Rate {
	if p == PeriodNight {
		return o.NightValue
	}
	return o.DayValue
}

// IsEmpty reports whether both fields are unset. A zero field is not empty.
func (o RateOverride) IsEmpty() bool { return !o.DayValue.IsSet() && !o.NightValue.IsSet() }

// =============================================================================
// SCOPE - Key of an override row and unit of invalidation
// =============================================================================

type Scope struct {
	TenantID TenantID
	SectorID SectorID
	WorkerID WorkerID
	Year     int
	Month    time.Month
}

// Validate checks that every key component is present.
func (s Scope) Validate() error {
	switch {
	case s.TenantID == "":
		return fmt.Errorf("%w: tenant is required", ErrInvalidScope)
	case s.SectorID == "":
		return fmt.Errorf("%w: sector is required", ErrInvalidScope)
	case s.WorkerID == "":
		return fmt.Errorf("%w: worker is required", ErrInvalidScope)
	case s.Month < time.January || s.Month > time.December:
		return fmt.Errorf("%w: month %d out of range", ErrInvalidScope, s.Month)
	case s.Year < 1:
		return fmt.Errorf("%w: year %d out of range", ErrInvalidScope, s.Year)
	}
	return nil
}

// Window returns the first and last calendar day of the scope's month.
func (s Scope) Window() (from, to time.Time) {
	return StartOfMonth(s.Year, s.Month), EndOfMonth(s.Year, s.Month)
}

func (s Scope) String() string {
	return fmt.Sprintf("%s/%s/%s/%04d-%02d", s.TenantID, s.SectorID, s.WorkerID, s.Year, int(s.Month))
}

// =============================================================================
// RESOLVED ENTRY - Derived, produced fresh on every read
// =============================================================================

type ResolvedEntry struct {
	AssignmentID AssignmentID
	ShiftID      ShiftID
	WorkerID     WorkerID
	WorkerName   string
	SectorID     SectorID // empty for shifts without a sector
	SectorName   string
	Date         time.Time
	Period       Period
	Value        Rate // unset means unpriced
	Source       Source
}

// Priced reports whether some tier produced a value.
func (e ResolvedEntry) Priced() bool { return e.Value.IsSet() }
