/*
Package sqlite provides a SQLite-backed implementation of compensation.Store.

KEY TABLES:
  sectors:            Sector defaults (day/night, nullable)
  workers:            Plantonistas
  shifts:             Dated shift occurrences, optional sector and base value
  assignments:        Worker-to-shift links carrying the cached value
  rate_overrides:     One row per (tenant, sector, worker, year, month)
  invalidation_runs:  Latest cache sweep per override scope

NULL VS ZERO:
  Every amount column is nullable TEXT holding a decimal string. NULL is
  "unset"; '0' is an explicit zero. compensation.Rate implements
  sql.Scanner and driver.Valuer, so the distinction never passes through a
  Go zero value.

INDEXES:
  - idx_rate_overrides_scope: Enforces the one-row-per-scope invariant
  - idx_shifts_tenant_sector_date: Invalidation sweep and report window scans
  - idx_assignments_tenant_worker: Invalidation sweep

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, with WAL journaling so readers do not
  block each other.

USAGE:
  store, err := sqlite.New("./data/plantao.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"cmp"
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/plantao-engine/compensation"
)

const dateLayout = "2006-01-02"

// maxInArgs caps the number of placeholders per IN (...) clause.
const maxInArgs = 500

// Store implements compensation.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ compensation.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sectors (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		default_day_value TEXT,
		default_night_value TEXT,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS workers (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		name TEXT NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE TABLE IF NOT EXISTS shifts (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		date TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL DEFAULT '',
		sector_id TEXT,
		base_value TEXT,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_tenant_sector_date
		ON shifts(tenant_id, sector_id, date);
	CREATE INDEX IF NOT EXISTS idx_shifts_tenant_date
		ON shifts(tenant_id, date);

	CREATE TABLE IF NOT EXISTS assignments (
		tenant_id TEXT NOT NULL,
		id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		shift_id TEXT NOT NULL,
		cached_value TEXT,
		status TEXT NOT NULL DEFAULT 'assigned',
		seq INTEGER NOT NULL,
		PRIMARY KEY (tenant_id, id)
	);

	CREATE INDEX IF NOT EXISTS idx_assignments_tenant_worker
		ON assignments(tenant_id, worker_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_tenant_shift
		ON assignments(tenant_id, shift_id);

	CREATE TABLE IF NOT EXISTS rate_overrides (
		id TEXT NOT NULL,
		tenant_id TEXT NOT NULL,
		sector_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		day_value TEXT,
		night_value TEXT,
		updated_at TEXT NOT NULL
	);

	-- At most one override per scope
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rate_overrides_scope
		ON rate_overrides(tenant_id, sector_id, worker_id, year, month);

	CREATE TABLE IF NOT EXISTS invalidation_runs (
		id TEXT PRIMARY KEY,
		tenant_id TEXT NOT NULL,
		sector_id TEXT NOT NULL,
		worker_id TEXT NOT NULL,
		year INTEGER NOT NULL,
		month INTEGER NOT NULL,
		status TEXT NOT NULL,
		attempts INTEGER NOT NULL DEFAULT 0,
		matched INTEGER NOT NULL DEFAULT 0,
		cleared INTEGER NOT NULL DEFAULT 0,
		error TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invalidation_runs_status
		ON invalidation_runs(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// SCHEDULE WRITES
// =============================================================================

func (s *Store) SaveSector(ctx context.Context, sec compensation.Sector) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sectors (tenant_id, id, name, default_day_value, default_night_value)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			name = excluded.name,
			default_day_value = excluded.default_day_value,
			default_night_value = excluded.default_night_value
	`, sec.TenantID, sec.ID, sec.Name, sec.DefaultDay, sec.DefaultNight)
	if err != nil {
		return fmt.Errorf("failed to save sector: %w", err)
	}
	return nil
}

func (s *Store) SaveWorker(ctx context.Context, w compensation.Worker) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO workers (tenant_id, id, name) VALUES (?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET name = excluded.name
	`, w.TenantID, w.ID, w.Name)
	if err != nil {
		return fmt.Errorf("failed to save worker: %w", err)
	}
	return nil
}

func (s *Store) SaveShift(ctx context.Context, sh compensation.ShiftOccurrence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shifts (tenant_id, id, date, start_time, end_time, sector_id, base_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			date = excluded.date,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			sector_id = excluded.sector_id,
			base_value = excluded.base_value
	`, sh.TenantID, sh.ID, compensation.DateOf(sh.Date).Format(dateLayout), sh.StartTime, sh.EndTime,
		nullString(string(sh.SectorID)), sh.BaseValue)
	if err != nil {
		return fmt.Errorf("failed to save shift: %w", err)
	}
	return nil
}

func (s *Store) SaveAssignment(ctx context.Context, a compensation.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := a.Status
	if status == "" {
		status = compensation.StatusAssigned
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO assignments (tenant_id, id, worker_id, shift_id, cached_value, status, seq)
		VALUES (?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM assignments))
		ON CONFLICT(tenant_id, id) DO UPDATE SET
			worker_id = excluded.worker_id,
			shift_id = excluded.shift_id,
			cached_value = excluded.cached_value,
			status = excluded.status
	`, a.TenantID, a.ID, a.WorkerID, a.ShiftID, a.CachedValue, status)
	if err != nil {
		return fmt.Errorf("failed to save assignment: %w", err)
	}
	return nil
}

func (s *Store) GetAssignment(ctx context.Context, tenantID compensation.TenantID, id compensation.AssignmentID) (*compensation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var a compensation.Assignment
	err := s.db.QueryRowContext(ctx, `
		SELECT tenant_id, id, worker_id, shift_id, cached_value, status
		FROM assignments WHERE tenant_id = ? AND id = ?
	`, tenantID, id).Scan(&a.TenantID, &a.ID, &a.WorkerID, &a.ShiftID, &a.CachedValue, &a.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment: %w", err)
	}
	return &a, nil
}

// =============================================================================
// SCHEDULE READS
// =============================================================================

func (s *Store) ListShifts(ctx context.Context, f compensation.ShiftFilter) ([]compensation.ShiftOccurrence, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT tenant_id, id, date, start_time, end_time, sector_id, base_value FROM shifts WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.SectorID != "" {
		query += ` AND sector_id = ?`
		args = append(args, f.SectorID)
	}
	if !f.From.IsZero() {
		query += ` AND date >= ?`
		args = append(args, compensation.DateOf(f.From).Format(dateLayout))
	}
	if !f.To.IsZero() {
		query += ` AND date <= ?`
		args = append(args, compensation.DateOf(f.To).Format(dateLayout))
	}
	query += ` ORDER BY date ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []compensation.ShiftOccurrence
	for rows.Next() {
		var (
			sh       compensation.ShiftOccurrence
			date     string
			sectorID sql.NullString
		)
		if err := rows.Scan(&sh.TenantID, &sh.ID, &date, &sh.StartTime, &sh.EndTime, &sectorID, &sh.BaseValue); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		sh.Date, _ = time.Parse(dateLayout, date)
		sh.SectorID = compensation.SectorID(sectorID.String)
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (s *Store) ListAssignments(ctx context.Context, f compensation.AssignmentFilter) ([]compensation.Assignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if f.ShiftIDs != nil && len(f.ShiftIDs) == 0 {
		return nil, nil
	}

	base := `SELECT seq, tenant_id, id, worker_id, shift_id, cached_value, status FROM assignments WHERE tenant_id = ?`
	baseArgs := []any{f.TenantID}
	if f.WorkerID != "" {
		base += ` AND worker_id = ?`
		baseArgs = append(baseArgs, f.WorkerID)
	}

	if f.ShiftIDs == nil {
		rows, err := s.queryAssignments(ctx, base+` ORDER BY seq ASC`, baseArgs...)
		return withoutSeq(rows), err
	}

	// Chunks each come back in seq order; merge them back into one.
	var merged []sequencedAssignment
	for _, chunk := range chunks(f.ShiftIDs, maxInArgs) {
		args := append(append([]any{}, baseArgs...), toArgs(chunk)...)
		query := base + ` AND shift_id IN (` + placeholders(len(chunk)) + `)`
		part, err := s.queryAssignments(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		merged = append(merged, part...)
	}
	slices.SortFunc(merged, func(a, b sequencedAssignment) int { return cmp.Compare(a.seq, b.seq) })
	return withoutSeq(merged), nil
}

// sequencedAssignment carries the insertion counter used for ordering.
type sequencedAssignment struct {
	seq int64
	compensation.Assignment
}

func withoutSeq(rows []sequencedAssignment) []compensation.Assignment {
	if rows == nil {
		return nil
	}
	assignments := make([]compensation.Assignment, len(rows))
	for i, r := range rows {
		assignments[i] = r.Assignment
	}
	return assignments
}

func (s *Store) queryAssignments(ctx context.Context, query string, args ...any) ([]sequencedAssignment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	var assignments []sequencedAssignment
	for rows.Next() {
		var r sequencedAssignment
		a := &r.Assignment
		if err := rows.Scan(&r.seq, &a.TenantID, &a.ID, &a.WorkerID, &a.ShiftID, &a.CachedValue, &a.Status); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		assignments = append(assignments, r)
	}
	return assignments, rows.Err()
}

func (s *Store) ListSectors(ctx context.Context, tenantID compensation.TenantID) ([]compensation.Sector, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT tenant_id, id, name, default_day_value, default_night_value
		FROM sectors WHERE tenant_id = ? ORDER BY name
	`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query sectors: %w", err)
	}
	defer rows.Close()

	var sectors []compensation.Sector
	for rows.Next() {
		var sec compensation.Sector
		if err := rows.Scan(&sec.TenantID, &sec.ID, &sec.Name, &sec.DefaultDay, &sec.DefaultNight); err != nil {
			return nil, fmt.Errorf("failed to scan sector: %w", err)
		}
		sectors = append(sectors, sec)
	}
	return sectors, rows.Err()
}

func (s *Store) ListWorkers(ctx context.Context, tenantID compensation.TenantID) ([]compensation.Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, id, name FROM workers WHERE tenant_id = ? ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to query workers: %w", err)
	}
	defer rows.Close()

	var workers []compensation.Worker
	for rows.Next() {
		var w compensation.Worker
		if err := rows.Scan(&w.TenantID, &w.ID, &w.Name); err != nil {
			return nil, fmt.Errorf("failed to scan worker: %w", err)
		}
		workers = append(workers, w)
	}
	return workers, rows.Err()
}

// =============================================================================
// OVERRIDES
// =============================================================================

func (s *Store) GetOverride(ctx context.Context, scope compensation.Scope) (*compensation.RateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overrides, err := s.queryOverrides(ctx, `
		SELECT id, tenant_id, sector_id, worker_id, year, month, day_value, night_value, updated_at
		FROM rate_overrides
		WHERE tenant_id = ? AND sector_id = ? AND worker_id = ? AND year = ? AND month = ?
	`, scope.TenantID, scope.SectorID, scope.WorkerID, scope.Year, int(scope.Month))
	if err != nil || len(overrides) == 0 {
		return nil, err
	}
	return &overrides[0], nil
}

func (s *Store) ListOverrides(ctx context.Context, f compensation.OverrideFilter) ([]compensation.RateOverride, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, tenant_id, sector_id, worker_id, year, month, day_value, night_value, updated_at
		FROM rate_overrides WHERE tenant_id = ?`
	args := []any{f.TenantID}
	if f.SectorID != "" {
		query += ` AND sector_id = ?`
		args = append(args, f.SectorID)
	}
	if f.WorkerID != "" {
		query += ` AND worker_id = ?`
		args = append(args, f.WorkerID)
	}
	if len(f.Months) > 0 {
		clauses := make([]string, len(f.Months))
		for i, ym := range f.Months {
			clauses[i] = `(year = ? AND month = ?)`
			args = append(args, ym.Year, int(ym.Month))
		}
		query += ` AND (` + strings.Join(clauses, " OR ") + `)`
	}
	query += ` ORDER BY year, month, sector_id, worker_id`

	return s.queryOverrides(ctx, query, args...)
}

func (s *Store) queryOverrides(ctx context.Context, query string, args ...any) ([]compensation.RateOverride, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query overrides: %w", err)
	}
	defer rows.Close()

	var overrides []compensation.RateOverride
	for rows.Next() {
		var (
			o         compensation.RateOverride
			month     int
			updatedAt string
		)
		if err := rows.Scan(&o.ID, &o.TenantID, &o.SectorID, &o.WorkerID, &o.Year, &month,
			&o.DayValue, &o.NightValue, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		o.Month = time.Month(month)
		o.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}

// UpsertOverride inserts or replaces the row for o's scope. The row ID of an
// existing scope is kept.
func (s *Store) UpsertOverride(ctx context.Context, o compensation.RateOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	updatedAt := o.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rate_overrides
		(id, tenant_id, sector_id, worker_id, year, month, day_value, night_value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tenant_id, sector_id, worker_id, year, month) DO UPDATE SET
			day_value = excluded.day_value,
			night_value = excluded.night_value,
			updated_at = excluded.updated_at
	`, o.ID, o.TenantID, o.SectorID, o.WorkerID, o.Year, int(o.Month),
		o.DayValue, o.NightValue, updatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to upsert override: %w", err)
	}
	return nil
}

func (s *Store) DeleteOverride(ctx context.Context, scope compensation.Scope) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		DELETE FROM rate_overrides
		WHERE tenant_id = ? AND sector_id = ? AND worker_id = ? AND year = ? AND month = ?
	`, scope.TenantID, scope.SectorID, scope.WorkerID, scope.Year, int(scope.Month))
	if err != nil {
		return false, fmt.Errorf("failed to delete override: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// =============================================================================
// CACHED VALUES
// =============================================================================

// ClearCachedValues sets cached_value to NULL for the given assignments in a
// single transaction.
func (s *Store) ClearCachedValues(ctx context.Context, tenantID compensation.TenantID, ids []compensation.AssignmentID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	changed := 0
	for _, chunk := range chunks(ids, maxInArgs) {
		args := append([]any{tenantID}, toArgs(chunk)...)
		res, err := sqlTx.ExecContext(ctx, `
			UPDATE assignments SET cached_value = NULL
			WHERE tenant_id = ? AND cached_value IS NOT NULL AND id IN (`+placeholders(len(chunk))+`)
		`, args...)
		if err != nil {
			return 0, fmt.Errorf("failed to clear cached values: %w", err)
		}
		n, _ := res.RowsAffected()
		changed += int(n)
	}

	if err := sqlTx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit cache clear: %w", err)
	}
	return changed, nil
}

func (s *Store) SetCachedValue(ctx context.Context, tenantID compensation.TenantID, id compensation.AssignmentID, value compensation.Rate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE assignments SET cached_value = ? WHERE tenant_id = ? AND id = ?`,
		value, tenantID, id)
	if err != nil {
		return fmt.Errorf("failed to set cached value: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return compensation.ErrAssignmentNotFound
	}
	return nil
}

// =============================================================================
// INVALIDATION RUNS
// =============================================================================

func (s *Store) SaveInvalidationRun(ctx context.Context, r compensation.InvalidationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invalidation_runs
		(id, tenant_id, sector_id, worker_id, year, month, status, attempts, matched, cleared, error, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			attempts = excluded.attempts,
			matched = excluded.matched,
			cleared = excluded.cleared,
			error = excluded.error,
			updated_at = excluded.updated_at
	`,
		r.ID, r.Scope.TenantID, r.Scope.SectorID, r.Scope.WorkerID, r.Scope.Year, int(r.Scope.Month),
		r.Status, r.Attempts, r.Matched, r.Cleared, nullString(r.Error),
		r.CreatedAt.UTC().Format(time.RFC3339), r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save invalidation run: %w", err)
	}
	return nil
}

func (s *Store) GetInvalidationRun(ctx context.Context, id string) (*compensation.InvalidationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs, err := s.queryRuns(ctx, runColumns+` WHERE id = ?`, id)
	if err != nil || len(runs) == 0 {
		return nil, err
	}
	return &runs[0], nil
}

func (s *Store) ListInvalidationRuns(ctx context.Context, status compensation.RunStatus) ([]compensation.InvalidationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if status == "" {
		return s.queryRuns(ctx, runColumns+` ORDER BY updated_at DESC, id`)
	}
	return s.queryRuns(ctx, runColumns+` WHERE status = ? ORDER BY updated_at DESC, id`, status)
}

const runColumns = `
	SELECT id, tenant_id, sector_id, worker_id, year, month, status, attempts, matched, cleared, error, created_at, updated_at
	FROM invalidation_runs`

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]compensation.InvalidationRun, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invalidation runs: %w", err)
	}
	defer rows.Close()

	var runs []compensation.InvalidationRun
	for rows.Next() {
		var (
			r                    compensation.InvalidationRun
			month                int
			errText              sql.NullString
			createdAt, updatedAt string
		)
		if err := rows.Scan(&r.ID, &r.Scope.TenantID, &r.Scope.SectorID, &r.Scope.WorkerID,
			&r.Scope.Year, &month, &r.Status, &r.Attempts, &r.Matched, &r.Cleared,
			&errText, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan invalidation run: %w", err)
		}
		r.Scope.Month = time.Month(month)
		r.Error = errText.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// ADMIN
// =============================================================================

// Reset deletes every row. Used by scenario loading.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"invalidation_runs", "rate_overrides", "assignments", "shifts", "workers", "sectors"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to reset %s: %w", table, err)
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs[T ~string](ids []T) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = string(id)
	}
	return args
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
