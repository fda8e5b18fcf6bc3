package compensation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/plantao-engine/compensation"
	"github.com/warp/plantao-engine/compensation/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

var errStoreDown = errors.New("store unavailable")

// flakyStore fails or blocks selected calls of an in-memory store.
type flakyStore struct {
	*store.Memory

	failSector compensation.SectorID // ListShifts fails for this sector
	failClear  bool

	// The first ListShifts for blockSector waits on release or its context.
	blockSector compensation.SectorID
	entered     chan struct{}
	release     chan struct{}
	blocked     atomic.Bool

	// The first ListAssignments reads, then waits on resume before returning.
	holdAssignments bool
	held            chan struct{}
	resume          chan struct{}
	assignmentCalls atomic.Int32

	listCalls atomic.Int32
}

func (f *flakyStore) ListShifts(ctx context.Context, filter compensation.ShiftFilter) ([]compensation.ShiftOccurrence, error) {
	f.listCalls.Add(1)
	if f.failSector != "" && filter.SectorID == f.failSector {
		return nil, errStoreDown
	}
	if f.blockSector != "" && filter.SectorID == f.blockSector && f.blocked.CompareAndSwap(false, true) {
		f.entered <- struct{}{}
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.Memory.ListShifts(ctx, filter)
}

func (f *flakyStore) ListAssignments(ctx context.Context, filter compensation.AssignmentFilter) ([]compensation.Assignment, error) {
	assignments, err := f.Memory.ListAssignments(ctx, filter)
	if f.holdAssignments && f.assignmentCalls.Add(1) == 1 {
		f.held <- struct{}{}
		<-f.resume
	}
	return assignments, err
}

func (f *flakyStore) ClearCachedValues(ctx context.Context, tenantID compensation.TenantID, ids []compensation.AssignmentID) (int, error) {
	if f.failClear {
		return 0, errStoreDown
	}
	return f.Memory.ClearCachedValues(ctx, tenantID, ids)
}

// seedMarch stores, for tenant t1:
//
//	er-1, er-2   ER shifts in March        w1 cached 500 and w1 uncached, w2 cached 0
//	er-apr       ER shift in April         w1 cached 500
//	icu-1        ICU shift in March        w1 cached 900
func seedMarch(t *testing.T, mem *store.Memory) {
	t.Helper()
	ctx := context.Background()

	shifts := []compensation.ShiftOccurrence{
		{ID: "er-1", TenantID: "t1", Date: compensation.NewDate(2025, time.March, 1), StartTime: "08:00", SectorID: "er"},
		{ID: "er-2", TenantID: "t1", Date: compensation.NewDate(2025, time.March, 31), StartTime: "20:00", SectorID: "er"},
		{ID: "er-apr", TenantID: "t1", Date: compensation.NewDate(2025, time.April, 1), StartTime: "08:00", SectorID: "er"},
		{ID: "icu-1", TenantID: "t1", Date: compensation.NewDate(2025, time.March, 15), StartTime: "08:00", SectorID: "icu"},
	}
	for _, s := range shifts {
		require.NoError(t, mem.SaveShift(ctx, s))
	}

	assignments := []compensation.Assignment{
		{ID: "a-er-1", WorkerID: "w1", ShiftID: "er-1", CachedValue: rate(500)},
		{ID: "a-er-2", WorkerID: "w1", ShiftID: "er-2"},
		{ID: "a-er-1-w2", WorkerID: "w2", ShiftID: "er-1", CachedValue: rate(0)},
		{ID: "a-er-apr", WorkerID: "w1", ShiftID: "er-apr", CachedValue: rate(500)},
		{ID: "a-icu-1", WorkerID: "w1", ShiftID: "icu-1", CachedValue: rate(900)},
	}
	for _, a := range assignments {
		a.TenantID = "t1"
		a.Status = compensation.StatusAssigned
		require.NoError(t, mem.SaveAssignment(ctx, a))
	}
}

func cachedValue(t *testing.T, mem *store.Memory, id compensation.AssignmentID) compensation.Rate {
	t.Helper()
	a, err := mem.GetAssignment(context.Background(), "t1", id)
	require.NoError(t, err)
	require.NotNil(t, a)
	return a.CachedValue
}

var marchER = compensation.Scope{TenantID: "t1", SectorID: "er", WorkerID: "w1", Year: 2025, Month: time.March}

// =============================================================================
// SINGLE SCOPE
// =============================================================================

func TestCoordinator_ClearsOnlyTheScope(t *testing.T) {
	// GIVEN: Cached values across sectors, months and workers
	// WHEN: Invalidating (t1, er, w1, March 2025)
	// THEN: Only w1's March ER cached values become unset

	mem := store.NewMemory()
	seedMarch(t, mem)
	c := compensation.NewCoordinator(mem, mem, zaptest.NewLogger(t))

	result, err := c.OnOverrideChanged(context.Background(), marchER)

	require.NoError(t, err)
	assert.ElementsMatch(t, []compensation.AssignmentID{"a-er-1", "a-er-2"}, result.Matched)
	assert.Equal(t, []compensation.AssignmentID{"a-er-1"}, result.Cleared)

	assert.False(t, cachedValue(t, mem, "a-er-1").IsSet())
	assert.True(t, cachedValue(t, mem, "a-er-1-w2").IsSet(), "other worker untouched")
	assert.True(t, cachedValue(t, mem, "a-er-apr").IsSet(), "other month untouched")
	assert.True(t, cachedValue(t, mem, "a-icu-1").IsSet(), "other sector untouched")
}

func TestCoordinator_Idempotent(t *testing.T) {
	mem := store.NewMemory()
	seedMarch(t, mem)
	c := compensation.NewCoordinator(mem, mem, nil)
	ctx := context.Background()

	_, err := c.OnOverrideChanged(ctx, marchER)
	require.NoError(t, err)
	second, err := c.OnOverrideChanged(ctx, marchER)

	require.NoError(t, err)
	assert.Len(t, second.Matched, 2)
	assert.Empty(t, second.Cleared)
	assert.False(t, cachedValue(t, mem, "a-er-1").IsSet())
}

func TestCoordinator_EmptyScope(t *testing.T) {
	c := compensation.NewCoordinator(store.NewMemory(), store.NewMemory(), nil)
	result, err := c.OnOverrideChanged(context.Background(), marchER)

	require.NoError(t, err)
	assert.Empty(t, result.Matched)
	assert.Empty(t, result.Cleared)
}

func TestCoordinator_InvalidScope(t *testing.T) {
	mem := store.NewMemory()
	c := compensation.NewCoordinator(mem, mem, nil)

	_, err := c.OnOverrideChanged(context.Background(), compensation.Scope{TenantID: "t1", SectorID: "er", Year: 2025, Month: time.March})

	require.Error(t, err)
	assert.ErrorIs(t, err, compensation.ErrInvalidScope)
	assert.False(t, compensation.IsWarning(err))
}

func TestCoordinator_StoreFailureIsWarning(t *testing.T) {
	// GIVEN: A store whose cache clear fails
	// WHEN: Invalidating
	// THEN: A non-fatal warning naming the failed stage; values stay cached

	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{Memory: mem, failClear: true}
	c := compensation.NewCoordinator(fs, fs, zaptest.NewLogger(t))

	result, err := c.OnOverrideChanged(context.Background(), marchER)

	require.Error(t, err)
	assert.True(t, compensation.IsWarning(err))
	assert.ErrorIs(t, err, errStoreDown)
	var warning *compensation.InvalidationWarning
	require.ErrorAs(t, err, &warning)
	assert.Equal(t, "clear", warning.Stage)
	assert.Equal(t, marchER, warning.Scope)
	assert.Len(t, result.Matched, 2)
	assert.Empty(t, result.Cleared)
	assert.True(t, cachedValue(t, mem, "a-er-1").IsSet())
}

// =============================================================================
// CONCURRENCY
// =============================================================================

func TestCoordinator_ManyScopesKeepOrderAndJoinWarnings(t *testing.T) {
	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{Memory: mem, failSector: "icu"}
	c := compensation.NewCoordinator(fs, fs, nil)
	c.Concurrency = 2

	marchICU := marchER
	marchICU.SectorID = "icu"
	aprilER := marchER
	aprilER.Month = time.April
	scopes := []compensation.Scope{marchER, marchICU, aprilER}

	results, err := c.OnOverridesChanged(context.Background(), scopes)

	require.Error(t, err)
	assert.True(t, compensation.IsWarning(err))
	require.Len(t, results, 3)
	for i, r := range results {
		assert.Equal(t, scopes[i], r.Scope)
	}
	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []compensation.AssignmentID{"a-er-apr"}, results[2].Cleared)
	assert.True(t, cachedValue(t, mem, "a-icu-1").IsSet())
}

func TestCoordinator_ScopesDoNotBlockEachOther(t *testing.T) {
	// GIVEN: A sweep of the ICU scope stuck in the store
	// WHEN: Sweeping the ER scope meanwhile
	// THEN: The ER sweep completes before the ICU one is released

	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{
		Memory:      mem,
		blockSector: "icu",
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	c := compensation.NewCoordinator(fs, fs, nil)
	ctx := context.Background()

	marchICU := marchER
	marchICU.SectorID = "icu"

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.OnOverrideChanged(ctx, marchICU)
		assert.NoError(t, err)
	}()
	<-fs.entered

	result, err := c.OnOverrideChanged(ctx, marchER)
	require.NoError(t, err)
	assert.Equal(t, []compensation.AssignmentID{"a-er-1"}, result.Cleared)
	assert.True(t, cachedValue(t, mem, "a-icu-1").IsSet(), "ICU sweep still blocked")

	close(fs.release)
	wg.Wait()
	assert.False(t, cachedValue(t, mem, "a-icu-1").IsSet())
}

func TestCoordinator_ConcurrentSameScope(t *testing.T) {
	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{Memory: mem}
	c := compensation.NewCoordinator(fs, fs, nil)

	const callers = 8
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.OnOverrideChanged(context.Background(), marchER)
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.LessOrEqual(t, int(fs.listCalls.Load()), callers)
	assert.False(t, cachedValue(t, mem, "a-er-1").IsSet())
}

func TestCoordinator_PinDuringSweepClearedByNextCall(t *testing.T) {
	// GIVEN: A sweep paused after it listed w1's March ER assignments
	// WHEN: a-er-2 gets a cached value, then a second sweep of the same scope runs
	// THEN: The second sweep sees and clears a-er-2 without waiting for the first

	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{
		Memory:          mem,
		holdAssignments: true,
		held:            make(chan struct{}, 1),
		resume:          make(chan struct{}),
	}
	c := compensation.NewCoordinator(fs, fs, zaptest.NewLogger(t))
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := c.OnOverrideChanged(ctx, marchER)
		assert.NoError(t, err)
	}()
	<-fs.held

	require.NoError(t, mem.SetCachedValue(ctx, "t1", "a-er-2", rate(999)))
	second, err := c.OnOverrideChanged(ctx, marchER)

	require.NoError(t, err)
	assert.ElementsMatch(t, []compensation.AssignmentID{"a-er-1", "a-er-2"}, second.Cleared)
	assert.False(t, cachedValue(t, mem, "a-er-2").IsSet())

	close(fs.resume)
	wg.Wait()
	assert.False(t, cachedValue(t, mem, "a-er-2").IsSet())
}

func TestCoordinator_CancelledCallerDoesNotFailOthers(t *testing.T) {
	// GIVEN: A sweep of marchER stuck in ListShifts on a cancellable context
	// WHEN: A second caller sweeps the same scope, then the first is cancelled
	// THEN: The second completes cleanly; only the first gets a warning

	mem := store.NewMemory()
	seedMarch(t, mem)
	fs := &flakyStore{
		Memory:      mem,
		blockSector: "er",
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	defer close(fs.release)
	c := compensation.NewCoordinator(fs, fs, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	var firstErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = c.OnOverrideChanged(ctx, marchER)
	}()
	<-fs.entered

	second, err := c.OnOverrideChanged(context.Background(), marchER)
	require.NoError(t, err)
	assert.Equal(t, []compensation.AssignmentID{"a-er-1"}, second.Cleared)

	cancel()
	wg.Wait()
	require.Error(t, firstErr)
	assert.True(t, compensation.IsWarning(firstErr))
	assert.ErrorIs(t, firstErr, context.Canceled)
	assert.False(t, cachedValue(t, mem, "a-er-1").IsSet())
}

// =============================================================================
// PINNING
// =============================================================================

func TestCoordinator_PinZeroAndUnpin(t *testing.T) {
	mem := store.NewMemory()
	seedMarch(t, mem)
	c := compensation.NewCoordinator(mem, mem, nil)
	ctx := context.Background()

	require.NoError(t, c.Pin(ctx, "t1", "a-er-2", rate(0)))
	pinned := cachedValue(t, mem, "a-er-2")
	assert.True(t, pinned.IsSet())
	assert.True(t, pinned.Decimal().IsZero())

	require.NoError(t, c.Pin(ctx, "t1", "a-er-2", compensation.Unset()))
	assert.False(t, cachedValue(t, mem, "a-er-2").IsSet())

	err := c.Pin(ctx, "t1", "missing", rate(1))
	assert.ErrorIs(t, err, compensation.ErrAssignmentNotFound)
	assert.True(t, compensation.IsNotFound(err))
}
