package marketdata

import (
	"context"
	"fmt"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Client is a batch price lookup. A response may omit some of the requested symbols.
type Client interface {
	Name() string
	Fetch(ctx context.Context, symbols []models.Symbol) ([]models.Quote, error)
}

// FetchError wraps any failure of a lookup: transport, decoding or timeout.
type FetchError struct {
	Source string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Source, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func fetchErr(source string, format string, args ...any) error {
	return &FetchError{Source: source, Err: fmt.Errorf(format, args...)}
}

// Rand is the randomness the simulator needs, swappable for deterministic tests.
type Rand interface {
	Float64() float64
}
