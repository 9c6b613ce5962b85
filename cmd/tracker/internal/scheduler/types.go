package scheduler

import (
	"time"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Tracker is the part of the tracker state a poll cycle touches.
type Tracker interface {
	Symbols() []models.Symbol
	IsTracked(raw string) bool
	RecordBatch(quotes []models.Quote) []models.Symbol
	CheckAlerts(symbols []models.Symbol) []models.AlertEvent
}

// Reporter surfaces cycle outcomes to the operator.
type Reporter interface {
	Updated(q models.Quote, at time.Time)
	FetchFailed(err error)
}

type Config struct {
	Interval     time.Duration
	FetchTimeout time.Duration
	PollOnStart  bool
	QueueSize    int
}

// CycleResult summarizes one fetch → record → evaluate pass.
type CycleResult struct {
	Requested []models.Symbol
	Recorded  []models.Symbol
	Alerts    []models.AlertEvent
	Err       error
}

// Skipped reports a cycle that had nothing to poll.
func (r CycleResult) Skipped() bool { return len(r.Requested) == 0 }

// MultiReporter fans cycle outcomes out to several surfaces.
type MultiReporter []Reporter

func (m MultiReporter) Updated(q models.Quote, at time.Time) {
	for _, r := range m {
		r.Updated(q, at)
	}
}

func (m MultiReporter) FetchFailed(err error) {
	for _, r := range m {
		r.FetchFailed(err)
	}
}

type nopReporter struct{}

func (nopReporter) Updated(models.Quote, time.Time) {}
func (nopReporter) FetchFailed(error)               {}
