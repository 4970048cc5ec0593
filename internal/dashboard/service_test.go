package dashboard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"finboard/internal/amqp"
	"finboard/internal/cache"
	"finboard/internal/core"
	"finboard/internal/ledger"

	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	mu         sync.Mutex
	profile    core.UserProfile
	txs        []core.Transaction
	monthly    []core.MonthlyExpenseEntry
	profileErr error
	listErr    error
	monthlyErr error
	createErr  error
	listCalls  int
	listHook   func(call int)
	created    []core.NewTransactionDraft
	deleted    []string
}

func (f *fakeAPI) GetUser(context.Context, string) (core.UserProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.profileErr
}

func (f *fakeAPI) ListTransactions(context.Context, string) ([]core.Transaction, error) {
	f.mu.Lock()
	f.listCalls++
	n := f.listCalls
	snapshot := append([]core.Transaction(nil), f.txs...)
	err := f.listErr
	hook := f.listHook
	f.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (f *fakeAPI) MonthlyExpenses(context.Context, string) ([]core.MonthlyExpenseEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.monthly, f.monthlyErr
}

func (f *fakeAPI) CreateTransaction(_ context.Context, _ string, d core.NewTransactionDraft) (core.Transaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return core.Transaction{}, f.createErr
	}
	f.created = append(f.created, d)
	tx := core.Transaction{ID: ledger.NewID(), Description: d.Description, Amount: d.Amount, Date: d.Date}
	f.txs = append(f.txs, tx)
	return tx, nil
}

func (f *fakeAPI) DeleteTransaction(_ context.Context, _ string, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	for i, tx := range f.txs {
		if tx.ID == id {
			f.txs = append(f.txs[:i], f.txs[i+1:]...)
			return nil
		}
	}
	return ledger.ErrTransactionNotFound
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listCalls
}

func at(days int) core.Date {
	return core.Date{Time: fixedNow.AddDate(0, 0, -days)}
}

func sampleAPI() *fakeAPI {
	return &fakeAPI{
		profile: core.UserProfile{FirstName: "Asha", LastName: "Rao"},
		txs: []core.Transaction{
			{ID: "a", Description: "Grocery Store", Amount: decimal.RequireFromString("-124.50"), Date: at(0)},
			{ID: "b", Description: "Salary Deposit", Amount: decimal.RequireFromString("3500.00"), Date: at(1)},
			{ID: "c", Description: "Electric Bill", Amount: decimal.RequireFromString("-87.32"), Date: at(3)},
			{ID: "d", Description: "Old rent", Amount: decimal.RequireFromString("-900"), Date: at(40)},
		},
		monthly: []core.MonthlyExpenseEntry{{Month: "2025-05", Total: decimal.NewFromInt(-900)}},
	}
}

func newTestService(api ledger.API) *Service {
	return NewService(api, cache.NewLRUCache[State](16, time.Minute), WithClock(func() time.Time { return fixedNow }))
}

func TestLoadFetchesAndDerives(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)

	st, err := svc.Load(context.Background(), "asha@example.com", core.RangeWeek)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.UserName != "Asha Rao" || st.Failed() {
		t.Fatalf("unexpected state %+v", st)
	}
	if st.Stats.TransactionCount != 3 || !st.Stats.TotalSpent.Equal(decimal.RequireFromString("3288.18")) {
		t.Fatalf("week stats = %+v", st.Stats)
	}
	if len(st.All) != 4 || len(st.Charts.Daily) != 30 || len(st.Charts.Monthly) != 1 {
		t.Fatalf("unexpected bundle: all=%d daily=%d monthly=%d", len(st.All), len(st.Charts.Daily), len(st.Charts.Monthly))
	}

	// Cached: no second fetch for the same range.
	if _, err := svc.Load(context.Background(), "ASHA@example.com", core.RangeWeek); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if api.calls() != 1 {
		t.Fatalf("expected 1 fetch, got %d", api.calls())
	}
}

func TestSetRangeRefiltersWithoutFetching(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()

	first, _ := svc.Load(ctx, "asha@example.com", core.RangeAll)
	st, err := svc.SetRange(ctx, "asha@example.com", core.RangeMonth)
	if err != nil {
		t.Fatalf("set range: %v", err)
	}
	if st.Range != core.RangeMonth || st.Stats.TransactionCount != 3 || first.Stats.TransactionCount != 4 {
		t.Fatalf("range %s count %d (was %d)", st.Range, st.Stats.TransactionCount, first.Stats.TransactionCount)
	}
	if api.calls() != 1 {
		t.Fatalf("range change should not fetch, got %d calls", api.calls())
	}
	if cur, _ := svc.Current("asha@example.com"); cur.Range != core.RangeMonth {
		t.Fatalf("cached range = %s", cur.Range)
	}
}

func TestFailureKeepsPreviousDataAndIsSurfaced(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()

	if _, err := svc.Refresh(ctx, "asha@example.com", core.RangeAll); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	api.mu.Lock()
	api.listErr = errors.New("connection refused")
	api.txs = nil
	api.mu.Unlock()

	st, err := svc.Refresh(ctx, "asha@example.com", core.RangeAll)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if !st.Failed() || len(st.Errors) != 1 || st.Errors[0].Source != SourceTransactions {
		t.Fatalf("expected a transactions error, got %+v", st.Errors)
	}
	if len(st.All) != 4 || st.Empty() {
		t.Fatalf("previous transactions should be kept, got %d", len(st.All))
	}
	if st.Err() == nil {
		t.Fatalf("Err() should report the failure")
	}
}

func TestFirstLoadFailureIsNotEmpty(t *testing.T) {
	api := sampleAPI()
	api.listErr = errors.New("boom")
	api.monthlyErr = errors.New("boom")
	svc := newTestService(api)

	st, _ := svc.Load(context.Background(), "asha@example.com", core.RangeAll)
	if st.Empty() || len(st.Errors) != 2 {
		t.Fatalf("a failed load must be distinct from no data: %+v", st.Errors)
	}
	if st.Stats.TransactionCount != 0 || len(st.Charts.Daily) != 30 {
		t.Fatalf("unexpected derived state %+v", st.Stats)
	}
}

func TestLatestFetchWins(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	api.listHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}

	stale := make(chan State)
	go func() {
		st, _ := svc.Refresh(ctx, "asha@example.com", core.RangeAll)
		stale <- st
	}()
	<-started

	api.mu.Lock()
	api.txs = api.txs[:1]
	api.mu.Unlock()
	fresh, _ := svc.Refresh(ctx, "asha@example.com", core.RangeAll)
	close(release)
	late := <-stale

	if fresh.Stats.TransactionCount != 1 {
		t.Fatalf("fresh state count = %d", fresh.Stats.TransactionCount)
	}
	if late.Generation != fresh.Generation || late.Stats.TransactionCount != 1 {
		t.Fatalf("stale fetch overwrote newer state: gen %d count %d", late.Generation, late.Stats.TransactionCount)
	}
	if cur, _ := svc.Current("asha@example.com"); cur.Generation != fresh.Generation {
		t.Fatalf("cached generation %d, want %d", cur.Generation, fresh.Generation)
	}
}

func TestInvalidateDiscardsInFlightFetch(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	api.listHook = func(call int) {
		if call == 1 {
			close(started)
			<-release
		}
	}

	done := make(chan struct{})
	go func() {
		svc.Refresh(ctx, "asha@example.com", core.RangeAll)
		close(done)
	}()
	<-started

	// The ledger changes while the first fetch is still reading.
	api.mu.Lock()
	api.txs = api.txs[:1]
	api.mu.Unlock()
	if err := svc.HandleChange(amqp.NewChangeEvent(amqp.ChangeDeleted, "b", "u1", "asha@example.com")); err != nil {
		t.Fatalf("handle change: %v", err)
	}
	close(release)
	<-done

	if _, ok := svc.Current("asha@example.com"); ok {
		t.Fatal("a fetch started before the change must not be cached")
	}
	st, err := svc.Load(ctx, "asha@example.com", core.RangeAll)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.Stats.TransactionCount != 1 || api.calls() != 2 {
		t.Fatalf("expected a re-fetch with 1 row, got count=%d fetches=%d", st.Stats.TransactionCount, api.calls())
	}
}

func TestLoadRetriesFailedFirstFetch(t *testing.T) {
	api := sampleAPI()
	api.listErr = errors.New("connection refused")
	svc := newTestService(api)
	ctx := context.Background()

	if st, _ := svc.Load(ctx, "asha@example.com", core.RangeAll); !st.Failed() {
		t.Fatal("first load should fail")
	}

	api.mu.Lock()
	api.listErr = nil
	api.mu.Unlock()

	st, err := svc.Load(ctx, "asha@example.com", core.RangeAll)
	if err != nil || st.Failed() || st.Stats.TransactionCount != 4 {
		t.Fatalf("second load should fetch again: count=%d errors=%v err=%v", st.Stats.TransactionCount, st.Errors, err)
	}
	if api.calls() != 2 {
		t.Fatalf("expected 2 fetches, got %d", api.calls())
	}

	// A later failure with data in hand is served from the cache.
	api.mu.Lock()
	api.listErr = errors.New("connection refused")
	api.mu.Unlock()
	svc.Refresh(ctx, "asha@example.com", core.RangeAll)
	if st, _ := svc.Load(ctx, "asha@example.com", core.RangeAll); len(st.All) != 4 || api.calls() != 3 {
		t.Fatalf("kept data should be served without fetching, all=%d fetches=%d", len(st.All), api.calls())
	}
}

func TestCreateRefetches(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()
	svc.Load(ctx, "asha@example.com", core.RangeAll)

	d := core.NewTransactionDraft{Description: "Bus pass", Amount: decimal.RequireFromString("-45.10"), Date: at(0)}
	st, tx, err := svc.Create(ctx, "asha@example.com", core.RangeAll, d)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if tx.ID == "" || st.Stats.TransactionCount != 5 {
		t.Fatalf("expected re-fetched state with 5 rows, got %d", st.Stats.TransactionCount)
	}
	if api.calls() != 2 {
		t.Fatalf("expected re-fetch after create, got %d fetches", api.calls())
	}

	if _, _, err := svc.Create(ctx, "asha@example.com", core.RangeAll, core.NewTransactionDraft{}); !errors.Is(err, core.ErrEmptyDescription) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(api.created) != 1 {
		t.Fatalf("invalid draft must not reach the API")
	}
}

func TestMutationFailureLeavesState(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()
	before, _ := svc.Load(ctx, "asha@example.com", core.RangeAll)

	api.createErr = errors.New("503")
	d := core.NewTransactionDraft{Description: "Bus", Amount: decimal.NewFromInt(-2), Date: at(0)}
	st, _, err := svc.Create(ctx, "asha@example.com", core.RangeAll, d)
	if err == nil || st.Generation != before.Generation || len(st.Errors) != 1 || st.Errors[0].Source != SourceCreate {
		t.Fatalf("unexpected result %+v err=%v", st.Errors, err)
	}
	if cur, _ := svc.Current("asha@example.com"); cur.Failed() {
		t.Fatalf("cached state should be untouched")
	}
}

func TestDelete(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	ctx := context.Background()

	st, err := svc.Delete(ctx, "asha@example.com", core.RangeAll, "b")
	if err != nil || st.Stats.TransactionCount != 3 {
		t.Fatalf("delete: count=%d err=%v", st.Stats.TransactionCount, err)
	}
	if _, err := svc.Delete(ctx, "asha@example.com", core.RangeAll, " "); !errors.Is(err, ledger.ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if _, err := svc.Delete(ctx, "asha@example.com", core.RangeAll, "zzz"); !errors.Is(err, ledger.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := svc.Load(ctx, "", core.RangeAll); !errors.Is(err, ErrNoEmail) {
		t.Fatalf("expected ErrNoEmail, got %v", err)
	}
}

func TestHandleChangeInvalidates(t *testing.T) {
	api := sampleAPI()
	svc := newTestService(api)
	svc.Load(context.Background(), "asha@example.com", core.RangeAll)

	if err := svc.HandleChange(amqp.NewChangeEvent(amqp.ChangeDeleted, "b", "u1", "Asha@Example.com")); err != nil {
		t.Fatalf("handle change: %v", err)
	}
	if _, ok := svc.Current("asha@example.com"); ok {
		t.Fatalf("state should have been dropped")
	}
}
