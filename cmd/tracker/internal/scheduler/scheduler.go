package scheduler

import (
	"context"
	"errors"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/marketdata"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/notify"
	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

const (
	DefaultInterval     = 300 * time.Second
	DefaultFetchTimeout = 10 * time.Second
	defaultQueueSize    = 16
	notifyTimeout       = 5 * time.Second
)

// Scheduler polls the market data client on a fixed period and on demand,
// records the quotes and evaluates alerts for what was recorded.
type Scheduler struct {
	cfg      Config
	tracker  Tracker
	client   marketdata.Client
	notifier notify.Notifier
	reporter Reporter
	logger   *zap.Logger

	requests chan models.Symbol
	now      func() time.Time
}

func New(cfg Config, tr Tracker, client marketdata.Client, notifier notify.Notifier, reporter Reporter, logger *zap.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = DefaultFetchTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if reporter == nil {
		reporter = nopReporter{}
	}
	if notifier == nil {
		notifier = notify.Multi{}
	}
	return &Scheduler{
		cfg:      cfg,
		tracker:  tr,
		client:   client,
		notifier: notifier,
		reporter: reporter,
		logger:   logger,
		requests: make(chan models.Symbol, cfg.QueueSize),
		now:      time.Now,
	}
}

// Trigger asks for an out-of-cycle poll of sym. It never blocks; when the queue
// is full the request is dropped and the next tick covers the symbol.
func (s *Scheduler) Trigger(sym models.Symbol) {
	select {
	case s.requests <- sym:
	default:
		s.logger.Warn("Poll queue full, dropping on-demand request", zap.String("symbol", sym.String()))
	}
}

// Run drives poll cycles until ctx is cancelled. A cycle in progress is finished first.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.logger.Info("Scheduler Started",
		zap.Duration("interval", s.cfg.Interval),
		zap.Duration("fetch_timeout", s.cfg.FetchTimeout),
		zap.String("source", s.client.Name()),
	)

	if s.cfg.PollOnStart {
		s.Poll(ctx, s.tracker.Symbols())
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return nil
		case <-ticker.C:
			if ctx.Err() != nil {
				continue
			}
			s.Poll(ctx, s.tracker.Symbols())
		case sym := <-s.requests:
			if ctx.Err() != nil {
				continue
			}
			// it may have been untracked while queued
			if !s.tracker.IsTracked(sym.String()) {
				continue
			}
			s.Poll(ctx, []models.Symbol{sym})
		}
	}
}

// Poll runs one cycle over symbols. Cancelling ctx does not abort the fetch; only the
// fetch timeout does.
func (s *Scheduler) Poll(ctx context.Context, symbols []models.Symbol) CycleResult {
	res := CycleResult{Requested: symbols}
	if len(symbols) == 0 {
		return res
	}

	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
	quotes, err := s.client.Fetch(fetchCtx, symbols)
	cancel()

	if err != nil {
		res.Err = asFetchError(s.client.Name(), err)
		s.logger.Error("Fetch failed",
			zap.String("source", s.client.Name()),
			zap.Int("symbols", len(symbols)),
			zap.Error(res.Err),
		)
		s.reporter.FetchFailed(res.Err)
		// nothing recorded, so nothing can have crossed
		return res
	}

	quotes = slices.DeleteFunc(quotes, func(q models.Quote) bool {
		return !slices.Contains(symbols, models.NormalizeSymbol(string(q.Symbol)))
	})
	res.Recorded = s.tracker.RecordBatch(quotes)

	// RecordBatch keeps the first quote per symbol; report exactly those
	at := s.now()
	reported := make(map[models.Symbol]bool, len(res.Recorded))
	for _, q := range quotes {
		sym := models.NormalizeSymbol(string(q.Symbol))
		if reported[sym] || !slices.Contains(res.Recorded, sym) {
			continue
		}
		reported[sym] = true
		q.Symbol = sym
		s.logger.Debug("Updated", zap.String("symbol", sym.String()), zap.Float64("price", q.Price))
		s.reporter.Updated(q, at)
	}
	if missing := len(symbols) - len(res.Recorded); missing > 0 {
		s.logger.Debug("Symbols without fresh data this cycle", zap.Int("missing", missing))
	}

	// every record of this cycle is in place before any crossing is evaluated
	res.Alerts = s.tracker.CheckAlerts(res.Recorded)
	for _, ev := range res.Alerts {
		s.dispatch(ctx, ev)
	}
	return res
}

func (s *Scheduler) dispatch(ctx context.Context, ev models.AlertEvent) {
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := s.notifier.Notify(nctx, ev); err != nil {
		s.logger.Error("Alert delivery failed", zap.String("symbol", ev.Symbol.String()), zap.Error(err))
	}
}

func asFetchError(source string, err error) error {
	var fe *marketdata.FetchError
	if errors.As(err, &fe) {
		return err
	}
	return &marketdata.FetchError{Source: source, Err: err}
}
