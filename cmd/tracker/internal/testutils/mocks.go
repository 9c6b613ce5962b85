package testutils

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/protocol"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// MockMarketClient serves canned quotes and records every request
type MockMarketClient struct {
	Prices map[models.Symbol]float64 // symbols missing here are omitted from responses
	// Raw, when set, is returned verbatim instead of the Prices lookup
	Raw    []models.Quote
	Err    error
	Delay  time.Duration
	Calls  [][]models.Symbol
	Mu     sync.Mutex
}

func NewMockMarketClient(prices map[models.Symbol]float64) *MockMarketClient {
	return &MockMarketClient{Prices: prices}
}

func (m *MockMarketClient) Name() string { return "mock" }

func (m *MockMarketClient) Fetch(ctx context.Context, symbols []models.Symbol) ([]models.Quote, error) {
	m.Mu.Lock()
	m.Calls = append(m.Calls, append([]models.Symbol(nil), symbols...))
	delay, err := m.Delay, m.Err
	m.Mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}

	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Raw != nil {
		return append([]models.Quote(nil), m.Raw...), nil
	}
	var quotes []models.Quote
	for _, s := range symbols {
		if p, ok := m.Prices[s]; ok {
			quotes = append(quotes, models.Quote{Symbol: s, Price: p})
		}
	}
	return quotes, nil
}

// SetPrice changes the price served for sym on the next fetch
func (m *MockMarketClient) SetPrice(sym models.Symbol, price float64) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.Prices == nil {
		m.Prices = make(map[models.Symbol]float64)
	}
	m.Prices[sym] = price
}

func (m *MockMarketClient) SetErr(err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Err = err
}

func (m *MockMarketClient) CallCount() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Calls)
}

func (m *MockMarketClient) LastCall() []models.Symbol {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Calls) == 0 {
		return nil
	}
	return m.Calls[len(m.Calls)-1]
}

// MockNotifier collects alert events
type MockNotifier struct {
	Events []models.AlertEvent
	Err    error
	Mu     sync.Mutex
}

func (m *MockNotifier) Notify(ctx context.Context, ev models.AlertEvent) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Events = append(m.Events, ev)
	return m.Err
}

func (m *MockNotifier) Count() int {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	return len(m.Events)
}

// MockReporter records what the scheduler shows the operator
type MockReporter struct {
	Updates  []models.Quote
	Failures []error
	Mu       sync.Mutex
}

func (m *MockReporter) Updated(q models.Quote, at time.Time) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Updates = append(m.Updates, q)
}

func (m *MockReporter) FetchFailed(err error) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Failures = append(m.Failures, err)
}

type MockRand struct {
	ValFloat float64
}

func (m *MockRand) Float64() float64 { return m.ValFloat }

type MockKafkaWriter struct {
	Messages   []kafka.Message
	Mu         sync.Mutex
	ShouldFail bool
}

func (m *MockKafkaWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if m.ShouldFail {
		return errors.New("kafka error")
	}
	m.Messages = append(m.Messages, msgs...)
	return nil
}

func (m *MockKafkaWriter) Close() error { return nil }

// MockClient simulates a connected websocket operator
type MockClient struct {
	IDVal    string
	Messages []protocol.WSResponse
	Closed   bool
	Mu       sync.Mutex
}

func NewMockClient(id string) *MockClient {
	return &MockClient{IDVal: id, Messages: make([]protocol.WSResponse, 0)}
}

func (m *MockClient) ID() string { return m.IDVal }

func (m *MockClient) Close() {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	m.Closed = true
}

func (m *MockClient) SendJSON(v interface{}) {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if resp, ok := v.(protocol.WSResponse); ok {
		m.Messages = append(m.Messages, resp)
	}
}

func (m *MockClient) Last() protocol.WSResponse {
	m.Mu.Lock()
	defer m.Mu.Unlock()
	if len(m.Messages) == 0 {
		return protocol.WSResponse{}
	}
	return m.Messages[len(m.Messages)-1]
}

func (m *MockClient) LastMsgType() string {
	return m.Last().Type
}
