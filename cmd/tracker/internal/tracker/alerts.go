package tracker

import (
	"github.com/google/uuid"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Crossing describes a transition of price across a target between two consecutive observations.
type Crossing struct {
	Previous  float64
	Current   float64
	Direction string
}

// Evaluate reports whether the last two points of hist cross target.
// Landing exactly on the target counts; staying on it does not.
func Evaluate(hist []float64, target float64) (Crossing, bool) {
	n := len(hist)
	if n < 2 {
		return Crossing{}, false
	}
	return crossing(hist[n-2], hist[n-1], target)
}

func crossing(prev, cur, target float64) (Crossing, bool) {
	switch {
	case prev < target && cur >= target:
		return Crossing{Previous: prev, Current: cur, Direction: models.DirectionUp}, true
	case prev > target && cur <= target:
		return Crossing{Previous: prev, Current: cur, Direction: models.DirectionDown}, true
	}
	return Crossing{}, false
}

// CheckAlerts evaluates the alert targets of the given symbols against their current history.
// Symbols that are untracked, have no target or fewer than two points are skipped.
func (t *Tracker) CheckAlerts(symbols []models.Symbol) []models.AlertEvent {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var events []models.AlertEvent
	for _, sym := range symbols {
		e, ok := t.entries[sym]
		if !ok || !e.hasTarget {
			continue
		}
		prev, cur, ok := e.hist.lastTwo()
		if !ok {
			continue
		}
		c, fired := crossing(prev, cur, e.target)
		if !fired {
			continue
		}
		events = append(events, models.AlertEvent{
			ID:        uuid.NewString(),
			Symbol:    sym,
			Target:    e.target,
			Price:     c.Current,
			Previous:  c.Previous,
			Direction: c.Direction,
			At:        t.now(),
		})
	}
	return events
}
