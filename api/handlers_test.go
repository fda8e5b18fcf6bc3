/*
handlers_test.go - HTTP tests for the compensation API

Tests for:
- Override upsert over HTTP (explicit zero, null+null delete)
- Report endpoints against the hospital-month scenario
- Input validation and error status mapping
- Pinning, manual invalidation and retry of failed sweeps
*/
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/plantao-engine/compensation"
	"github.com/warp/plantao-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func setupTestHandler(t *testing.T) *Handler {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, zaptest.NewLogger(t))
}

func setupTestRouter(t *testing.T) (*Handler, *chi.Mux) {
	h := setupTestHandler(t)
	return h, NewRouter(h, nil)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const demo = "/api/tenants/" + string(DemoTenant)

// =============================================================================
// OVERRIDES
// =============================================================================

func TestSaveOverride_ZeroPersistsAndNullDeletes(t *testing.T) {
	// GIVEN: The precedence-tour scenario
	// WHEN: PUTting an override with day 0, then one with both values null
	// THEN: The first keeps an explicit zero; the second deletes the row

	h, router := setupTestRouter(t)
	require.NoError(t, h.Load(context.Background(), "precedence-tour"))

	rec := doJSON(t, router, http.MethodPut, demo+"/overrides",
		`{"sector_id":"er","worker_id":"w-default","year":2025,"month":3,"day_value":0,"night_value":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	saved := decode[SaveOverrideResponse](t, rec)
	require.NotNil(t, saved.Override)
	assert.True(t, saved.Override.DayValue.IsSet())
	assert.True(t, saved.Override.DayValue.Decimal().IsZero())
	assert.False(t, saved.Override.NightValue.IsSet())
	require.NotNil(t, saved.Invalidation)
	assert.Equal(t, []string{"a-default"}, saved.Invalidation.Matched)
	assert.Empty(t, saved.Warning)
	assert.Contains(t, rec.Body.String(), `"day_value":0`)
	assert.Contains(t, rec.Body.String(), `"night_value":null`)

	rec = doJSON(t, router, http.MethodGet, demo+"/overrides?year=2025&month=3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]OverrideDTO](t, rec), 2)

	rec = doJSON(t, router, http.MethodPut, demo+"/overrides",
		`{"sector_id":"er","worker_id":"w-default","year":2025,"month":3,"day_value":null,"night_value":null}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	deleted := decode[SaveOverrideResponse](t, rec)
	assert.True(t, deleted.Deleted)
	assert.Nil(t, deleted.Override)

	rec = doJSON(t, router, http.MethodGet, demo+"/overrides?year=2025&month=3", nil)
	overrides := decode[[]OverrideDTO](t, rec)
	require.Len(t, overrides, 1)
	assert.Equal(t, "w-override", overrides[0].WorkerID)
}

func TestSaveOverride_Validation(t *testing.T) {
	_, router := setupTestRouter(t)

	tests := []struct {
		name string
		body string
	}{
		{"month out of range", `{"sector_id":"er","worker_id":"w1","year":2025,"month":13,"day_value":1}`},
		{"missing worker", `{"sector_id":"er","year":2025,"month":3,"day_value":1}`},
		{"malformed amount", `{"sector_id":"er","worker_id":"w1","year":2025,"month":3,"day_value":"abc"}`},
		{"not json", `{`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPut, demo+"/overrides", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.NotEmpty(t, decode[ErrorResponse](t, rec).Error)
		})
	}
}

func TestSaveOverrides_Bulk(t *testing.T) {
	h, router := setupTestRouter(t)
	require.NoError(t, h.Load(context.Background(), "hospital-month"))

	rec := doJSON(t, router, http.MethodPut, demo+"/overrides/bulk", SaveOverridesRequest{
		Overrides: []SaveOverrideRequest{
			{SectorID: "er", WorkerID: "zilda", Year: 2025, Month: 3, NightValue: compensation.RateFromInt(1100)},
			{SectorID: "icu", WorkerID: "bruno", Year: 2025, Month: 3},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	results := decode[[]SaveOverrideResponse](t, rec)
	require.Len(t, results, 2)
	assert.False(t, results[0].Deleted)
	assert.True(t, results[1].Deleted, "both values null removes Bruno's ICU override")

	rec = doJSON(t, router, http.MethodGet, demo+"/reports/totals?from=2025-03-01&to=2025-03-31", nil)
	totals := decode[ReportResponse](t, rec).Totals
	assert.Equal(t, 1, totals.Unpriced, "Zilda's ER nights are now priced")
}

// =============================================================================
// REPORTS
// =============================================================================

func TestReports_HospitalMonth(t *testing.T) {
	// GIVEN: The hospital-month scenario
	// WHEN: Requesting the March reports
	// THEN: 49 entries, 12 unpriced, 43800 in total, sectors in collated order
	//       with the unsectored group last

	h, router := setupTestRouter(t)
	require.NoError(t, h.Load(context.Background(), "hospital-month"))
	window := "?from=2025-03-01&to=2025-03-31"

	rec := doJSON(t, router, http.MethodGet, demo+"/reports/totals"+window, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	totals := decode[ReportResponse](t, rec)
	assert.Equal(t, 49, totals.Totals.Entries)
	assert.Equal(t, 12, totals.Totals.Unpriced)
	assert.Equal(t, 4, totals.Totals.Workers)
	assert.Equal(t, "43800", totals.Totals.Value.String())
	assert.Empty(t, totals.Sectors)
	assert.Empty(t, totals.Entries)

	rec = doJSON(t, router, http.MethodGet, demo+"/reports/sectors"+window, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	sectors := decode[ReportResponse](t, rec).Sectors
	require.Len(t, sectors, 4)
	names := make([]string, len(sectors))
	for i, s := range sectors {
		names[i] = s.SectorName
	}
	assert.Equal(t, []string{"Centro Cirúrgico", "Pronto-Socorro", "UTI Adulto", compensation.NoSectorName}, names)
	assert.Equal(t, "650", sectors[0].Totals.Value.String())
	assert.Equal(t, 1, sectors[0].Totals.Unpriced)
	assert.Equal(t, "9750", sectors[1].Totals.Value.String())
	assert.Equal(t, 11, sectors[1].Totals.Unpriced)
	assert.Equal(t, "33000", sectors[2].Totals.Value.String())

	rec = doJSON(t, router, http.MethodGet, demo+"/reports/workers"+window, nil)
	workers := decode[ReportResponse](t, rec).Workers
	require.Len(t, workers, 4)
	assert.Equal(t, "Ágata Ribeiro", workers[0].WorkerName)
	assert.Equal(t, "Zilda Nunes", workers[3].WorkerName)
	assert.Equal(t, "19800", workers[1].Totals.Value.String(), "Bruno: 11 nights at 1800, 2 days at 0")

	rec = doJSON(t, router, http.MethodGet, demo+"/reports/entries"+window+"&worker=erica", nil)
	entries := decode[ReportResponse](t, rec).Entries
	require.Len(t, entries, 11)
	var pinned EntryDTO
	for _, e := range entries {
		if e.AssignmentID == "a-er-d-07" {
			pinned = e
		}
	}
	assert.Equal(t, string(compensation.SourceCached), pinned.Source)
	assert.Equal(t, "750", pinned.Value.String())
}

func TestReports_InvalidWindow(t *testing.T) {
	_, router := setupTestRouter(t)

	tests := []struct {
		name  string
		query string
	}{
		{"missing from", "?to=2025-03-31"},
		{"malformed to", "?from=2025-03-01&to=31/03/2025"},
		{"to before from", "?from=2025-03-31&to=2025-03-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodGet, demo+"/reports/sectors"+tt.query, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

// =============================================================================
// SCHEDULE
// =============================================================================

func TestSchedule_CreateAndList(t *testing.T) {
	_, router := setupTestRouter(t)
	base := "/api/tenants/t1"

	rec := doJSON(t, router, http.MethodPost, base+"/sectors", `{"id":"er","name":"ER","default_day_value":0}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = doJSON(t, router, http.MethodPost, base+"/workers", `{"id":"w1","name":"Ana"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, router, http.MethodPost, base+"/shifts", `{"id":"s1","date":"2025-03-01","start_time":"18:00","sector_id":"er"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "night", decode[ShiftDTO](t, rec).Period)

	rec = doJSON(t, router, http.MethodPost, base+"/shifts", `{"id":"s2","date":"2025-03-01","start_time":"25:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad clock")
	rec = doJSON(t, router, http.MethodPost, base+"/shifts", `{"id":"s2","date":"03/01/2025","start_time":"08:00"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "bad date")

	rec = doJSON(t, router, http.MethodPost, base+"/assignments", `{"id":"a1","worker_id":"w1","shift_id":"s1","status":"on-hold"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "unknown status")
	rec = doJSON(t, router, http.MethodPost, base+"/assignments", `{"id":"a1","worker_id":"w1","shift_id":"s1"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "assigned", decode[AssignmentDTO](t, rec).Status)

	rec = doJSON(t, router, http.MethodGet, base+"/sectors", nil)
	sectors := decode[[]SectorDTO](t, rec)
	require.Len(t, sectors, 1)
	assert.True(t, sectors[0].DefaultDayValue.IsSet())
	assert.False(t, sectors[0].DefaultNightValue.IsSet())

	rec = doJSON(t, router, http.MethodGet, base+"/shifts?from=2025-03-01&to=2025-03-01&sector=er", nil)
	assert.Len(t, decode[[]ShiftDTO](t, rec), 1)
	rec = doJSON(t, router, http.MethodGet, base+"/shifts?from=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, router, http.MethodGet, base+"/assignments?worker=w1", nil)
	assert.Len(t, decode[[]AssignmentDTO](t, rec), 1)
	rec = doJSON(t, router, http.MethodGet, "/api/tenants/t2/assignments", nil)
	assert.Empty(t, decode[[]AssignmentDTO](t, rec))
}

// =============================================================================
// PINNING
// =============================================================================

func TestPinValue(t *testing.T) {
	h, router := setupTestRouter(t)
	require.NoError(t, h.Load(context.Background(), "precedence-tour"))

	rec := doJSON(t, router, http.MethodPut, demo+"/assignments/a-default/pin", `{"value":0}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	pinned := decode[AssignmentDTO](t, rec)
	assert.True(t, pinned.CachedValue.IsSet())
	assert.True(t, pinned.CachedValue.Decimal().IsZero())

	rec = doJSON(t, router, http.MethodDelete, demo+"/assignments/a-default/pin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[AssignmentDTO](t, rec).CachedValue.IsSet())

	rec = doJSON(t, router, http.MethodPut, demo+"/assignments/missing/pin", `{"value":10}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// INVALIDATION
// =============================================================================

func TestInvalidate_ManualResync(t *testing.T) {
	h, router := setupTestRouter(t)
	require.NoError(t, h.Load(context.Background(), "hospital-month"))

	rec := doJSON(t, router, http.MethodPost, demo+"/invalidations",
		`{"sector_id":"er","worker_id":"erica","year":2025,"month":3}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	result := decode[InvalidationDTO](t, rec)
	assert.Len(t, result.Matched, 11)
	assert.Equal(t, []string{"a-er-d-07"}, result.Cleared, "only the pinned value was cached")
	assert.Empty(t, result.Warning)

	rec = doJSON(t, router, http.MethodGet, "/api/invalidation-runs?status=completed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resync *InvalidationRunDTO
	for _, run := range decode[[]InvalidationRunDTO](t, rec) {
		if run.WorkerID == "erica" && run.SectorID == "er" {
			resync = &run
		}
	}
	require.NotNil(t, resync, "manual resyncs are booked like saves")
	assert.Equal(t, 1, resync.Attempts)
	assert.Equal(t, 1, resync.Cleared)

	rec = doJSON(t, router, http.MethodPost, demo+"/invalidations", `{"sector_id":"er","year":2025,"month":3}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvalidationRuns_ListAndRetry(t *testing.T) {
	// GIVEN: A failed run recorded for a scope with a cached value
	// WHEN: Listing failed runs, then retrying
	// THEN: The run is listed, the retry completes it and clears the value

	h, router := setupTestRouter(t)
	ctx := context.Background()
	require.NoError(t, h.Load(ctx, "hospital-month"))

	scope := compensation.Scope{TenantID: DemoTenant, SectorID: "er", WorkerID: "erica", Year: 2025, Month: time.March}
	now := time.Now()
	require.NoError(t, h.Store.SaveInvalidationRun(ctx, compensation.InvalidationRun{
		ID:        compensation.RunIDFor(scope),
		Scope:     scope,
		Status:    compensation.RunFailed,
		Attempts:  1,
		Error:     "database is locked",
		CreatedAt: now,
		UpdatedAt: now,
	}))

	rec := doJSON(t, router, http.MethodGet, "/api/invalidation-runs?status=failed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	failed := decode[[]InvalidationRunDTO](t, rec)
	require.Len(t, failed, 1)
	assert.Equal(t, "erica", failed[0].WorkerID)
	assert.Equal(t, "database is locked", failed[0].Error)

	rec = doJSON(t, router, http.MethodPost, "/api/invalidation-runs/retry", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"completed": 1}, decode[map[string]int](t, rec))

	a, err := h.Store.GetAssignment(ctx, DemoTenant, "a-er-d-07")
	require.NoError(t, err)
	assert.False(t, a.CachedValue.IsSet())

	rec = doJSON(t, router, http.MethodGet, "/api/invalidation-runs?status=failed", nil)
	assert.Empty(t, decode[[]InvalidationRunDTO](t, rec))
}
