package marketdata

import (
	"context"
	"math"
	"sync"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

const simulatorSource = "simulator"

// Compile-time check to ensure Simulator implements Client
var _ Client = (*Simulator)(nil)

// Simulator random-walks a price per symbol, for running the tracker without a data provider.
type Simulator struct {
	mu        sync.Mutex
	rand      Rand
	prices    map[models.Symbol]float64
	basePrice float64
	maxStep   float64
}

// NewSimulator starts unknown symbols at basePrice and moves each by at most ±maxStep per fetch.
func NewSimulator(rnd Rand, basePrices map[models.Symbol]float64, basePrice, maxStep float64) *Simulator {
	prices := make(map[models.Symbol]float64, len(basePrices))
	for s, p := range basePrices {
		prices[s] = p
	}
	return &Simulator{
		rand:      rnd,
		prices:    prices,
		basePrice: basePrice,
		maxStep:   maxStep,
	}
}

func (s *Simulator) Name() string { return simulatorSource }

func (s *Simulator) Fetch(ctx context.Context, symbols []models.Symbol) ([]models.Quote, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Source: simulatorSource, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	quotes := make([]models.Quote, 0, len(symbols))
	for _, sym := range symbols {
		price, ok := s.prices[sym]
		if !ok {
			price = s.basePrice
		}
		// (r * 2 - 1) * step spreads the move evenly around the previous price
		fluctuation := (s.rand.Float64()*2 - 1) * s.maxStep
		price = math.Max(0.01, math.Round((price+fluctuation)*100)/100)
		s.prices[sym] = price
		quotes = append(quotes, models.Quote{Symbol: sym, Price: price})
	}
	return quotes, nil
}
