package tracker

import (
	"fmt"
	"iter"
	"math"
	"slices"
	"sync"
	"time"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

type entry struct {
	hist      *history
	target    float64
	hasTarget bool
}

// Tracker owns the tracked symbols, their price histories and alert targets.
// A single lock covers all three so registry changes, appends and reads see one consistent view.
type Tracker struct {
	mu      sync.RWMutex
	order   []models.Symbol
	entries map[models.Symbol]*entry

	historySize int
	onTrack     func(models.Symbol)
	now         func() time.Time
}

func NewTracker(historySize int) *Tracker {
	if historySize < 1 {
		historySize = DefaultHistorySize
	}
	return &Tracker{
		entries:     make(map[models.Symbol]*entry),
		historySize: historySize,
		now:         time.Now,
	}
}

// OnTrack registers the hook run after a symbol is newly tracked, outside the lock.
func (t *Tracker) OnTrack(fn func(models.Symbol)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onTrack = fn
}

// SetClock replaces the time source used to stamp alert events.
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Seed tracks a loaded symbol list without triggering polls. Invalid and duplicate entries are skipped.
func (t *Tracker) Seed(raw []string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	added := 0
	for _, r := range raw {
		sym := models.NormalizeSymbol(r)
		if sym == "" {
			continue
		}
		if _, ok := t.entries[sym]; ok {
			continue
		}
		t.insert(sym)
		added++
	}
	return added
}

// Track starts tracking raw and returns the normalized symbol.
func (t *Tracker) Track(raw string) (models.Symbol, error) {
	sym := models.NormalizeSymbol(raw)
	if sym == "" {
		return sym, ErrInvalidSymbol
	}

	t.mu.Lock()
	if _, ok := t.entries[sym]; ok {
		t.mu.Unlock()
		return sym, fmt.Errorf("%s: %w", sym, ErrAlreadyTracked)
	}
	t.insert(sym)
	hook := t.onTrack
	t.mu.Unlock()

	if hook != nil {
		hook(sym)
	}
	return sym, nil
}

func (t *Tracker) insert(sym models.Symbol) {
	t.order = append(t.order, sym)
	t.entries[sym] = &entry{hist: newHistory(t.historySize)}
}

// Untrack drops the symbol together with its history and alert target.
func (t *Tracker) Untrack(raw string) (models.Symbol, error) {
	sym := models.NormalizeSymbol(raw)

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.entries[sym]; !ok {
		return sym, fmt.Errorf("%s: %w", sym, ErrNotTracked)
	}
	delete(t.entries, sym)
	t.order = slices.DeleteFunc(t.order, func(s models.Symbol) bool { return s == sym })
	return sym, nil
}

// IsTracked reports whether raw is currently tracked.
func (t *Tracker) IsTracked(raw string) bool {
	sym := models.NormalizeSymbol(raw)

	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.entries[sym]
	return ok
}

// SetAlert creates or replaces the alert target of a tracked symbol.
func (t *Tracker) SetAlert(raw string, price float64) (models.Symbol, error) {
	sym := models.NormalizeSymbol(raw)
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return sym, fmt.Errorf("%v: %w", price, ErrInvalidPrice)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[sym]
	if !ok {
		return sym, fmt.Errorf("%s: %w", sym, ErrNotTracked)
	}
	e.target = price
	e.hasTarget = true
	return sym, nil
}

// ClearAlert removes the alert target of a tracked symbol, if any.
func (t *Tracker) ClearAlert(raw string) (models.Symbol, error) {
	sym := models.NormalizeSymbol(raw)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[sym]
	if !ok {
		return sym, fmt.Errorf("%s: %w", sym, ErrNotTracked)
	}
	e.target, e.hasTarget = 0, false
	return sym, nil
}

// Alert returns the target of sym, if one is set.
func (t *Tracker) Alert(raw string) (float64, bool) {
	sym := models.NormalizeSymbol(raw)

	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[sym]
	if !ok || !e.hasTarget {
		return 0, false
	}
	return e.target, true
}

// Alerts returns a copy of all alert targets.
func (t *Tracker) Alerts() map[models.Symbol]float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[models.Symbol]float64)
	for sym, e := range t.entries {
		if e.hasTarget {
			out[sym] = e.target
		}
	}
	return out
}

// Symbols returns the tracked symbols in insertion order.
func (t *Tracker) Symbols() []models.Symbol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return slices.Clone(t.order)
}

// List yields the tracked symbols in insertion order. Every range over it starts from a fresh snapshot.
func (t *Tracker) List() iter.Seq[models.Symbol] {
	return func(yield func(models.Symbol) bool) {
		for _, sym := range t.Symbols() {
			if !yield(sym) {
				return
			}
		}
	}
}

// Len returns the number of tracked symbols.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.order)
}

// Record appends price to the history of sym. It reports false when sym is not tracked.
func (t *Tracker) Record(sym models.Symbol, price float64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.record(sym, price)
}

// RecordBatch appends a whole fetch result in one critical section and returns the
// symbols that were recorded. Quotes for symbols untracked mid-fetch are dropped.
func (t *Tracker) RecordBatch(quotes []models.Quote) []models.Symbol {
	t.mu.Lock()
	defer t.mu.Unlock()

	var recorded []models.Symbol
	for _, q := range quotes {
		sym := models.NormalizeSymbol(string(q.Symbol))
		if slices.Contains(recorded, sym) {
			// one observation per symbol per cycle
			continue
		}
		if t.record(sym, q.Price) {
			recorded = append(recorded, sym)
		}
	}
	return recorded
}

func (t *Tracker) record(sym models.Symbol, price float64) bool {
	e, ok := t.entries[sym]
	if !ok {
		return false
	}
	e.hist.push(price)
	return true
}

// Latest returns the most recent price of sym; ok is false while there is no data yet.
func (t *Tracker) Latest(raw string) (price float64, ok bool, err error) {
	sym := models.NormalizeSymbol(raw)

	t.mu.RLock()
	defer t.mu.RUnlock()

	e, found := t.entries[sym]
	if !found {
		return 0, false, fmt.Errorf("%s: %w", sym, ErrNotTracked)
	}
	price, ok = e.hist.last()
	return price, ok, nil
}

// Snapshot returns a copy of the price history of sym, oldest first.
func (t *Tracker) Snapshot(raw string) ([]float64, error) {
	sym := models.NormalizeSymbol(raw)

	t.mu.RLock()
	defer t.mu.RUnlock()

	e, ok := t.entries[sym]
	if !ok {
		return nil, fmt.Errorf("%s: %w", sym, ErrNotTracked)
	}
	return e.hist.values(), nil
}

// HistorySize is the per-symbol capacity.
func (t *Tracker) HistorySize() int { return t.historySize }
