package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Notifier delivers alert events to one destination.
type Notifier interface {
	Notify(ctx context.Context, ev models.AlertEvent) error
}

// Multi fans an event out to every notifier; one failing sink does not stop the others.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, ev models.AlertEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Console writes the operator-facing alert line and logs the event.
type Console struct {
	mu     sync.Mutex
	out    io.Writer
	logger *zap.Logger
}

func NewConsole(out io.Writer, logger *zap.Logger) *Console {
	return &Console{out: out, logger: logger}
}

func (c *Console) Notify(_ context.Context, ev models.AlertEvent) error {
	c.logger.Warn("ALERT",
		zap.String("symbol", ev.Symbol.String()),
		zap.Float64("price", ev.Price),
		zap.Float64("target", ev.Target),
		zap.String("direction", ev.Direction),
	)

	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := fmt.Fprintln(c.out, FormatAlert(ev))
	return err
}

// FormatAlert renders the human-readable alert line.
func FormatAlert(ev models.AlertEvent) string {
	return fmt.Sprintf("ALERT: %s hit $%.2f (target: $%.2f)", ev.Symbol, ev.Price, ev.Target)
}
