package hub_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/hub"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/protocol"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/testutils"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/tracker"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

func setup() (*hub.Hub, *tracker.Tracker) {
	tr := tracker.NewTracker(10)
	return hub.NewHub(tr, zap.NewNop()), tr
}

func price(p float64) *float64 { return &p }

func TestHub_Track_Success(t *testing.T) {
	h, tr := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{
		Action:  protocol.ActionTrack,
		Payload: protocol.RequestPayload{Symbols: []string{"aapl"}},
		ID:      "req-1",
	})

	last := client.Last()
	if last.Type != protocol.TypeAck || last.ID != "req-1" {
		t.Errorf("Expected ack for req-1, got %+v", last)
	}
	if !tr.IsTracked("AAPL") {
		t.Errorf("Expected AAPL to be tracked")
	}
}

func TestHub_Track_MixedDuplicates(t *testing.T) {
	h, tr := setup()
	tr.Track("AAPL")
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{
		Action:  protocol.ActionTrack,
		Payload: protocol.RequestPayload{Symbols: []string{"AAPL", "tsla", " "}},
	})

	last := client.Last()
	if last.Status != "success" || !strings.Contains(last.Message, "TSLA") {
		t.Errorf("Expected TSLA accepted, got %+v", last)
	}
	if strings.Contains(last.Message, "AAPL") {
		t.Errorf("Response should not list the duplicate")
	}
	if tr.Len() != 2 {
		t.Errorf("Expected 2 tracked symbols, got %d", tr.Len())
	}
}

func TestHub_Track_AllDuplicates(t *testing.T) {
	h, tr := setup()
	tr.Track("AAPL")
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{
		Action: protocol.ActionTrack, Payload: protocol.RequestPayload{Symbols: []string{"aapl"}},
	})

	if client.LastMsgType() != protocol.TypeError || !strings.Contains(client.Last().Message, "Already tracked") {
		t.Errorf("Expected already-tracked error, got %+v", client.Last())
	}
}

func TestHub_Untrack(t *testing.T) {
	h, tr := setup()
	client := testutils.NewMockClient("c1")
	tr.Track("AAPL")
	tr.Track("TSLA")

	h.HandleCommand(client, protocol.WSRequest{
		Action: protocol.ActionUntrack, Payload: protocol.RequestPayload{Symbols: []string{"aapl"}},
	})

	if tr.IsTracked("AAPL") || !tr.IsTracked("TSLA") {
		t.Errorf("Expected only AAPL removed, got %v", tr.Symbols())
	}

	h.HandleCommand(client, protocol.WSRequest{
		Action: protocol.ActionUntrack, Payload: protocol.RequestPayload{Symbols: []string{"GOOG"}},
	})
	if client.LastMsgType() != protocol.TypeError {
		t.Errorf("Expected error for untracking a non-tracked symbol")
	}
}

func TestHub_SetAlert(t *testing.T) {
	h, tr := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{
		Action:  protocol.ActionSetAlert,
		Payload: protocol.RequestPayload{Symbols: []string{"AAPL"}, Price: price(100)},
	})
	if client.LastMsgType() != protocol.TypeError {
		t.Errorf("Expected error for untracked symbol")
	}

	tr.Track("AAPL")
	h.HandleCommand(client, protocol.WSRequest{
		Action:  protocol.ActionSetAlert,
		Payload: protocol.RequestPayload{Symbols: []string{"aapl"}, Price: price(100)},
	})
	if target, ok := tr.Alert("AAPL"); !ok || target != 100 {
		t.Errorf("Expected alert at 100, got %v", target)
	}

	h.HandleCommand(client, protocol.WSRequest{
		Action: protocol.ActionSetAlert, Payload: protocol.RequestPayload{Symbols: []string{"AAPL"}},
	})
	if client.LastMsgType() != protocol.TypeError {
		t.Errorf("Expected error when price is missing")
	}
}

func TestHub_List(t *testing.T) {
	h, tr := setup()
	client := testutils.NewMockClient("c1")
	tr.Track("AAPL")
	tr.Track("MSFT")
	tr.Record("AAPL", 150)
	tr.SetAlert("MSFT", 400)

	h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionList})

	rows, ok := client.Last().Data.([]protocol.SymbolView)
	if !ok || len(rows) != 2 {
		t.Fatalf("Expected 2 rows, got %+v", client.Last().Data)
	}
	if rows[0].Symbol != "AAPL" || rows[0].Latest == nil || *rows[0].Latest != 150 || rows[0].Alert != nil {
		t.Errorf("Unexpected AAPL row %+v", rows[0])
	}
	if rows[1].Latest != nil || rows[1].Alert == nil || *rows[1].Alert != 400 {
		t.Errorf("Unexpected MSFT row %+v", rows[1])
	}
}

func TestHub_History(t *testing.T) {
	h, tr := setup()
	client := testutils.NewMockClient("c1")
	tr.Track("AAPL")
	tr.Record("AAPL", 1)
	tr.Record("AAPL", 2)

	h.HandleCommand(client, protocol.WSRequest{
		Action: protocol.ActionHistory, Payload: protocol.RequestPayload{Symbols: []string{"aapl"}},
	})

	view, ok := client.Last().Data.(protocol.HistoryView)
	if !ok || view.Symbol != "AAPL" || len(view.Prices) != 2 {
		t.Errorf("Unexpected history %+v", client.Last().Data)
	}
}

func TestHub_UnknownAction(t *testing.T) {
	h, _ := setup()
	client := testutils.NewMockClient("c1")

	h.HandleCommand(client, protocol.WSRequest{Action: "subscribe"})

	if client.LastMsgType() != protocol.TypeError {
		t.Errorf("Expected error for unknown action")
	}
}

func TestHub_NotifyBroadcasts(t *testing.T) {
	h, _ := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")
	h.Register(c1)
	h.Register(c2)

	h.Notify(context.Background(), models.AlertEvent{Symbol: "AAPL", Price: 11, Target: 10})

	for _, c := range []*testutils.MockClient{c1, c2} {
		if c.LastMsgType() != protocol.TypeAlert {
			t.Errorf("%s did not receive the alert", c.ID())
		}
	}

	h.Unregister(c1)
	if !c1.Closed || h.Clients() != 1 {
		t.Errorf("Unregister should close and drop the client")
	}
}

func TestHub_ReportsCycleOutcomes(t *testing.T) {
	h, _ := setup()
	client := testutils.NewMockClient("c1")
	h.Register(client)

	at := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC)
	h.Updated(models.Quote{Symbol: "AAPL", Price: 12.5}, at)

	update, ok := client.Last().Data.(protocol.UpdateView)
	if client.LastMsgType() != protocol.TypeUpdate || !ok {
		t.Fatalf("Expected update frame, got %+v", client.Last())
	}
	if update.Symbol != "AAPL" || update.Price != 12.5 || !update.At.Equal(at) {
		t.Errorf("Unexpected update %+v", update)
	}

	h.FetchFailed(errors.New("provider down"))
	if last := client.Last(); last.Type != protocol.TypeError || !strings.Contains(last.Message, "provider down") {
		t.Errorf("Expected fetch failure frame, got %+v", last)
	}
}

func TestHub_CloseAll(t *testing.T) {
	h, _ := setup()
	c1 := testutils.NewMockClient("c1")
	c2 := testutils.NewMockClient("c2")
	h.Register(c1)
	h.Register(c2)

	h.CloseAll()

	if !c1.Closed || !c2.Closed {
		t.Errorf("Every client should be closed")
	}
	if h.Clients() != 0 {
		t.Errorf("Expected no clients left, got %d", h.Clients())
	}

	// later Notify must not reach closed clients
	h.Notify(context.Background(), models.AlertEvent{Symbol: "AAPL"})
	if len(c1.Messages) != 0 {
		t.Errorf("Closed client received %v", c1.Messages)
	}

	late := testutils.NewMockClient("late")
	h.Register(late)
	if !late.Closed || h.Clients() != 0 {
		t.Errorf("Registration after CloseAll should be refused")
	}
}

func TestHub_RaceCondition(t *testing.T) {
	// Run with `go test -race ./...`
	h, _ := setup()
	client := testutils.NewMockClient("c1")
	h.Register(client)

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionTrack, Payload: protocol.RequestPayload{Symbols: []string{"AAPL"}}})
	}()
	go func() {
		defer wg.Done()
		h.HandleCommand(client, protocol.WSRequest{Action: protocol.ActionUntrack, Payload: protocol.RequestPayload{Symbols: []string{"AAPL"}}})
	}()
	go func() {
		defer wg.Done()
		h.Notify(context.Background(), models.AlertEvent{Symbol: "AAPL"})
		h.Unregister(client)
	}()
	wg.Wait()
}
