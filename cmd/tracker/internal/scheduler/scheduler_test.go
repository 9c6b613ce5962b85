package scheduler_test

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/marketdata"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/scheduler"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/testutils"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/tracker"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

type fixture struct {
	tracker  *tracker.Tracker
	client   *testutils.MockMarketClient
	notifier *testutils.MockNotifier
	reporter *testutils.MockReporter
	sched    *scheduler.Scheduler
}

func setup(cfg scheduler.Config) *fixture {
	f := &fixture{
		tracker:  tracker.NewTracker(10),
		client:   testutils.NewMockMarketClient(map[models.Symbol]float64{}),
		notifier: &testutils.MockNotifier{},
		reporter: &testutils.MockReporter{},
	}
	f.sched = scheduler.New(cfg, f.tracker, f.client, f.notifier, f.reporter, zap.NewNop())
	return f
}

func TestPoll_EmptySetIsNoop(t *testing.T) {
	f := setup(scheduler.Config{})

	res := f.sched.Poll(context.Background(), f.tracker.Symbols())

	if !res.Skipped() {
		t.Errorf("Expected skipped cycle")
	}
	if f.client.CallCount() != 0 {
		t.Errorf("Client should not be called for an empty set")
	}
}

func TestPoll_RecordsThenFiresCrossing(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL", "MSFT"})
	f.tracker.SetAlert("AAPL", 10)

	f.client.SetPrice("AAPL", 9)
	f.client.SetPrice("MSFT", 300)
	res := f.sched.Poll(context.Background(), f.tracker.Symbols())
	if len(res.Alerts) != 0 {
		t.Errorf("First observation must not fire, got %v", res.Alerts)
	}

	f.client.SetPrice("AAPL", 11)
	res = f.sched.Poll(context.Background(), f.tracker.Symbols())

	if !slices.Equal(res.Recorded, []models.Symbol{"AAPL", "MSFT"}) {
		t.Errorf("Expected both symbols recorded, got %v", res.Recorded)
	}
	if f.notifier.Count() != 1 {
		t.Fatalf("Expected 1 alert, got %d", f.notifier.Count())
	}
	ev := f.notifier.Events[0]
	if ev.Symbol != "AAPL" || ev.Price != 11 || ev.Direction != models.DirectionUp {
		t.Errorf("Unexpected alert %+v", ev)
	}
	if len(f.reporter.Updates) != 4 {
		t.Errorf("Expected 4 update reports, got %d", len(f.reporter.Updates))
	}
}

func TestPoll_FetchErrorLeavesHistoryUntouched(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL"})
	f.tracker.SetAlert("AAPL", 10)

	f.client.SetPrice("AAPL", 9)
	f.sched.Poll(context.Background(), f.tracker.Symbols())
	f.client.SetPrice("AAPL", 11)
	f.sched.Poll(context.Background(), f.tracker.Symbols())
	alertsBefore := f.notifier.Count()
	before, _ := f.tracker.Snapshot("AAPL")

	f.client.SetErr(errors.New("connection refused"))
	res := f.sched.Poll(context.Background(), f.tracker.Symbols())

	var fe *marketdata.FetchError
	if !errors.As(res.Err, &fe) {
		t.Errorf("Expected FetchError, got %v", res.Err)
	}
	after, _ := f.tracker.Snapshot("AAPL")
	if !slices.Equal(before, after) {
		t.Errorf("History changed on fetch error: %v -> %v", before, after)
	}
	if f.notifier.Count() != alertsBefore {
		t.Errorf("Fetch error must not re-fire alerts")
	}
	if len(f.reporter.Failures) != 1 {
		t.Errorf("Expected failure reported to operator")
	}
}

func TestPoll_StaleSymbolsNotReevaluated(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL", "MSFT"})
	f.tracker.SetAlert("AAPL", 10)

	f.client.SetPrice("AAPL", 9)
	f.client.SetPrice("MSFT", 1)
	f.sched.Poll(context.Background(), f.tracker.Symbols())
	f.client.SetPrice("AAPL", 11)
	f.sched.Poll(context.Background(), f.tracker.Symbols())

	// AAPL drops out of the response
	delete(f.client.Prices, "AAPL")
	res := f.sched.Poll(context.Background(), f.tracker.Symbols())

	if slices.Contains(res.Recorded, "AAPL") {
		t.Errorf("AAPL should not be recorded")
	}
	if f.notifier.Count() != 1 {
		t.Errorf("Crossing must fire exactly once, got %d", f.notifier.Count())
	}
}

func TestPoll_Timeout(t *testing.T) {
	f := setup(scheduler.Config{FetchTimeout: 20 * time.Millisecond})
	f.tracker.Seed([]string{"AAPL"})
	f.client.SetPrice("AAPL", 1)
	f.client.Delay = time.Second

	start := time.Now()
	res := f.sched.Poll(context.Background(), f.tracker.Symbols())

	if !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded, got %v", res.Err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Errorf("Fetch was not bounded by the timeout")
	}
	if hist, _ := f.tracker.Snapshot("AAPL"); len(hist) != 0 {
		t.Errorf("Timed out fetch must not record, got %v", hist)
	}
}

func TestPoll_SymbolRemovedDuringFetch(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL", "MSFT"})
	f.client.SetPrice("AAPL", 1)
	f.client.SetPrice("MSFT", 2)
	f.client.Delay = 100 * time.Millisecond

	done := make(chan scheduler.CycleResult)
	go func() {
		done <- f.sched.Poll(context.Background(), f.tracker.Symbols())
	}()
	time.Sleep(20 * time.Millisecond)
	f.tracker.Untrack("AAPL")

	res := <-done
	if !slices.Equal(res.Recorded, []models.Symbol{"MSFT"}) {
		t.Errorf("Expected only MSFT recorded, got %v", res.Recorded)
	}
}

func TestPoll_IgnoresUnrequestedQuotes(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL", "MSFT"})
	f.client.SetPrice("AAPL", 1)
	f.client.SetPrice("MSFT", 2)

	// the client filters by request, so ask for AAPL only
	res := f.sched.Poll(context.Background(), []models.Symbol{"AAPL"})

	if !slices.Equal(res.Recorded, []models.Symbol{"AAPL"}) {
		t.Errorf("Expected AAPL only, got %v", res.Recorded)
	}
	if hist, _ := f.tracker.Snapshot("MSFT"); len(hist) != 0 {
		t.Errorf("MSFT should be untouched, got %v", hist)
	}
}

func TestPoll_ReportsOnlyRecordedQuotes(t *testing.T) {
	f := setup(scheduler.Config{})
	f.tracker.Seed([]string{"AAPL"})
	f.client.Raw = []models.Quote{{Symbol: "aapl", Price: 1}, {Symbol: "AAPL", Price: 4}}

	f.sched.Poll(context.Background(), f.tracker.Symbols())

	f.reporter.Mu.Lock()
	defer f.reporter.Mu.Unlock()
	if len(f.reporter.Updates) != 1 {
		t.Fatalf("Expected one update, got %v", f.reporter.Updates)
	}
	if u := f.reporter.Updates[0]; u.Symbol != "AAPL" || u.Price != 1 {
		t.Errorf("Expected the stored quote AAPL 1, got %+v", u)
	}
	if hist, _ := f.tracker.Snapshot("AAPL"); !slices.Equal(hist, []float64{1}) {
		t.Errorf("Expected history [1], got %v", hist)
	}
}

func TestMultiReporter(t *testing.T) {
	a, b := &testutils.MockReporter{}, &testutils.MockReporter{}
	multi := scheduler.MultiReporter{a, b}

	multi.Updated(models.Quote{Symbol: "AAPL", Price: 1}, time.Now())
	multi.FetchFailed(errors.New("down"))

	for _, r := range []*testutils.MockReporter{a, b} {
		if len(r.Updates) != 1 || len(r.Failures) != 1 {
			t.Errorf("Expected one update and one failure, got %v / %v", r.Updates, r.Failures)
		}
	}
}

func TestRun_OnDemandPollForAddedSymbol(t *testing.T) {
	f := setup(scheduler.Config{Interval: time.Hour})
	f.tracker.Seed([]string{"MSFT"})
	f.tracker.OnTrack(f.sched.Trigger)
	f.client.SetPrice("AAPL", 150)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- f.sched.Run(ctx) }()

	f.tracker.Track("aapl")

	deadline := time.Now().Add(2 * time.Second)
	for f.client.CallCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() returned %v", err)
	}

	if got := f.client.LastCall(); !slices.Equal(got, []models.Symbol{"AAPL"}) {
		t.Errorf("Expected on-demand poll for AAPL alone, got %v", got)
	}
	if p, ok, _ := f.tracker.Latest("AAPL"); !ok || p != 150 {
		t.Errorf("Expected AAPL recorded at 150, got %v", p)
	}
}

func TestRun_PeriodicTicks(t *testing.T) {
	f := setup(scheduler.Config{Interval: 10 * time.Millisecond})
	f.tracker.Seed([]string{"AAPL"})
	f.client.SetPrice("AAPL", 1)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	f.sched.Run(ctx)

	if f.client.CallCount() < 2 {
		t.Errorf("Expected several periodic polls, got %d", f.client.CallCount())
	}
	if hist, _ := f.tracker.Snapshot("AAPL"); len(hist) > 10 {
		t.Errorf("History exceeded capacity: %d", len(hist))
	}
}

func TestRun_FetchErrorsDoNotStopScheduler(t *testing.T) {
	f := setup(scheduler.Config{Interval: 10 * time.Millisecond})
	f.tracker.Seed([]string{"AAPL"})
	f.client.SetErr(errors.New("boom"))

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()
	if err := f.sched.Run(ctx); err != nil {
		t.Errorf("Run() returned %v", err)
	}

	if f.client.CallCount() < 2 {
		t.Errorf("Scheduler should keep polling after failures, got %d calls", f.client.CallCount())
	}
}

func TestRun_ShutdownLetsInFlightFetchFinish(t *testing.T) {
	f := setup(scheduler.Config{Interval: time.Hour, PollOnStart: true})
	f.tracker.Seed([]string{"AAPL"})
	f.client.SetPrice("AAPL", 42)
	f.client.Delay = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() { done <- f.sched.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if p, ok, _ := f.tracker.Latest("AAPL"); !ok || p != 42 {
		t.Errorf("In-flight fetch should have completed and recorded, got %v %v", p, ok)
	}
}
