package generator

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

const minPrice = 0.01

// StockGenerator publishes a random walk per symbol. Prices persist between
// ticks so a walk can drift across alert targets, unlike independent samples.
type StockGenerator struct {
	logger      *zap.Logger
	writer      KafkaWriter
	symbols     []models.Symbol
	prices      map[models.Symbol]float64
	opts        Options
	rand        Rand
	clock       Clock
	seqCounters map[models.Symbol]int64
}

func NewStockGenerator(
	logger *zap.Logger,
	writer KafkaWriter,
	symbols []string,
	seeds map[string]float64,
	opts Options,
	rnd Rand,
	clock Clock,
) *StockGenerator {
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.BasePrice <= 0 {
		opts.BasePrice = 100
	}
	if opts.MaxStep <= 0 {
		opts.MaxStep = 5
	}

	sg := &StockGenerator{
		logger:      logger,
		writer:      writer,
		prices:      make(map[models.Symbol]float64),
		opts:        opts,
		rand:        rnd,
		clock:       clock,
		seqCounters: make(map[models.Symbol]int64),
	}
	for _, raw := range symbols {
		sym := models.NormalizeSymbol(raw)
		if sym == "" {
			continue
		}
		if _, dup := sg.prices[sym]; dup {
			continue
		}
		sg.symbols = append(sg.symbols, sym)
		sg.prices[sym] = opts.BasePrice
	}
	for raw, price := range seeds {
		sym := models.NormalizeSymbol(raw)
		if _, ok := sg.prices[sym]; ok && price > 0 {
			sg.prices[sym] = price
		}
	}
	return sg
}

// Next advances one random symbol and returns its tick.
func (sg *StockGenerator) Next() models.StockUpdate {
	sym := sg.symbols[sg.rand.Intn(len(sg.symbols))]

	step := (sg.rand.Float64()*2 - 1) * sg.opts.MaxStep
	price := math.Round((sg.prices[sym]+step)*100) / 100
	if price < minPrice {
		price = minPrice
	}
	sg.prices[sym] = price
	sg.seqCounters[sym]++

	return models.StockUpdate{
		Symbol:    sym.String(),
		Price:     price,
		Timestamp: sg.clock.Now().UnixMicro(),
		SeqID:     sg.seqCounters[sym],
	}
}

func (sg *StockGenerator) Run(ctx context.Context) {
	sg.logger.Info("Generator Started", zap.Int("symbols", len(sg.symbols)), zap.Duration("interval", sg.opts.Interval))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if len(sg.symbols) == 0 {
				sg.clock.Sleep(1 * time.Second)
				continue
			}

			update := sg.Next()
			payload, err := json.Marshal(update)
			if err != nil {
				sg.logger.Error("JSON Marshal Error", zap.Error(err))
				continue
			}

			// key by symbol so a symbol stays on one partition
			err = sg.writer.WriteMessages(ctx, kafka.Message{
				Key:   []byte(update.Symbol),
				Value: payload,
			})
			if err != nil {
				sg.logger.Error("Kafka Write Error", zap.Error(err))
			} else {
				sg.logger.Debug("Sent update", zap.String("symbol", update.Symbol), zap.Float64("price", update.Price))
			}

			sg.clock.Sleep(sg.opts.Interval)
		}
	}
}
