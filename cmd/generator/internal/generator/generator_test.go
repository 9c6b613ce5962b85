package generator_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/generator/internal/generator"
	"github.com/shubham-shewale/stock-tracker/cmd/generator/internal/testutils"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

func TestGenerator_Logic(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}

	// Index 0 (AAPL), 0.5 -> zero step
	mockRand := &testutils.MockRand{ValInt: 0, ValFloat: 0.5}
	mockClock := &testutils.MockClock{CurrentTime: time.Unix(0, 0)}

	gen := generator.NewStockGenerator(zap.NewNop(), mockWriter, []string{"aapl"}, map[string]float64{"AAPL": 100.0}, generator.Options{}, mockRand, mockClock)

	// MockClock.Sleep returns instantly, so bound the run by wall time
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	gen.Run(ctx)

	mockWriter.Mu.Lock()
	defer mockWriter.Mu.Unlock()

	if len(mockWriter.Messages) == 0 {
		t.Fatal("Expected messages to be generated")
	}

	var update models.StockUpdate
	if err := json.Unmarshal(mockWriter.Messages[0].Value, &update); err != nil {
		t.Fatalf("Generated invalid JSON: %v", err)
	}

	if update.Symbol != "AAPL" {
		t.Errorf("Expected AAPL, got %s", update.Symbol)
	}
	if string(mockWriter.Messages[0].Key) != "AAPL" {
		t.Errorf("Expected message key AAPL, got %s", mockWriter.Messages[0].Key)
	}
	if update.SeqID != 1 {
		t.Errorf("Expected SeqID 1, got %d", update.SeqID)
	}
	if update.Price != 100.0 {
		t.Errorf("Expected Price 100.0, got %f", update.Price)
	}
}

func TestGenerator_WalkPersists(t *testing.T) {
	// 1.0 -> +MaxStep, 0.0 -> -MaxStep
	mockRand := &testutils.MockRand{Floats: []float64{1.0, 1.0, 0.0}}
	gen := generator.NewStockGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"AAPL"}, nil,
		generator.Options{BasePrice: 10, MaxStep: 2}, mockRand, &testutils.MockClock{})

	want := []float64{12, 14, 12}
	for i, w := range want {
		u := gen.Next()
		if u.Price != w {
			t.Errorf("Tick %d: expected %.2f, got %.2f", i, w, u.Price)
		}
		if u.SeqID != int64(i+1) {
			t.Errorf("Tick %d: expected SeqID %d, got %d", i, i+1, u.SeqID)
		}
	}
}

func TestGenerator_PriceFloor(t *testing.T) {
	mockRand := &testutils.MockRand{ValFloat: 0.0}
	gen := generator.NewStockGenerator(zap.NewNop(), &testutils.MockKafkaWriter{}, []string{"PENNY"}, map[string]float64{"PENNY": 1},
		generator.Options{MaxStep: 5}, mockRand, &testutils.MockClock{})

	if u := gen.Next(); u.Price != 0.01 {
		t.Errorf("Expected floor price 0.01, got %f", u.Price)
	}
}

func TestGenerator_DedupesSymbols(t *testing.T) {
	mockWriter := &testutils.MockKafkaWriter{}
	// Intn always 1: valid only if the duplicate collapsed into one entry per symbol
	gen := generator.NewStockGenerator(zap.NewNop(), mockWriter, []string{"aapl", "AAPL ", "", "msft"}, nil,
		generator.Options{}, &testutils.MockRand{ValInt: 1, ValFloat: 0.5}, &testutils.MockClock{})

	if u := gen.Next(); u.Symbol != "MSFT" {
		t.Errorf("Expected MSFT at index 1, got %s", u.Symbol)
	}
}

func TestTopicCreator_Flow(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{}
	tc := generator.NewTopicCreator(zap.NewNop(), mockDialer, &testutils.MockClock{})

	if err := tc.Create(context.Background(), []string{"broker:9092"}, "market_ticks", "price_alerts"); err != nil {
		t.Fatalf("Create() unexpected error = %v", err)
	}

	if mockDialer.ConnSpy == nil {
		t.Fatal("Dialer was never called")
	}
	got := mockDialer.ConnSpy.CreatedTopics
	if len(got) != 2 || got[0] != "market_ticks" || got[1] != "price_alerts" {
		t.Errorf("Unexpected created topics %v", got)
	}
}

func TestTopicCreator_DialFailure(t *testing.T) {
	mockDialer := &testutils.MockKafkaDialer{Err: errors.New("connection refused")}
	tc := generator.NewTopicCreator(zap.NewNop(), mockDialer, &testutils.MockClock{})

	if err := tc.Create(context.Background(), []string{"a:9092", "b:9092"}, "t"); err == nil {
		t.Error("Expected error when no broker is reachable")
	}
	if err := tc.Create(context.Background(), nil, "t"); err == nil {
		t.Error("Expected error for empty broker list")
	}
}
