package processor

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

// Processor turns the tick stream into the latest-price snapshots the tracker polls.
// Ticks are sharded by symbol so one worker sees every tick of a symbol, in order.
type Processor struct {
	cfg    Config
	logger Logger
	rdb    RedisClient
	reader KafkaReader
}

func NewProcessor(cfg Config, logger Logger, rdb RedisClient, reader KafkaReader) *Processor {
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 100
	}
	if cfg.SnapshotTTL <= 0 {
		cfg.SnapshotTTL = time.Hour
	}
	return &Processor{cfg: cfg, logger: logger, rdb: rdb, reader: reader}
}

// Run consumes until ctx is cancelled, then drains the workers.
func (p *Processor) Run(ctx context.Context) error {
	workerChans := make([]chan models.StockUpdate, p.cfg.NumWorkers)
	var wg sync.WaitGroup

	for i := range workerChans {
		workerChans[i] = make(chan models.StockUpdate, p.cfg.QueueSize)
		wg.Add(1)
		go p.worker(i, workerChans[i], &wg)
	}

	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		p.logger.Info("Processor Started", zap.Int("workers", p.cfg.NumWorkers))
		for {
			m, err := p.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return
				}
				p.logger.Error("Kafka Read Error", zap.Error(err))
				continue
			}

			update, ok := p.decode(m.Value)
			if !ok {
				continue
			}

			workerID := getWorkerID(update.Symbol, p.cfg.NumWorkers)
			select {
			case workerChans[workerID] <- update:
			case <-ctx.Done():
				return
			default:
				// latest price wins; a dropped tick is superseded by the next one
				p.logger.Warn("Dropping slow packet", zap.String("symbol", update.Symbol), zap.Int("worker_id", workerID))
			}
		}
	}()

	<-ctx.Done()
	p.logger.Info("Shutdown signal received, stopping processor...")
	<-readerDone

	for _, ch := range workerChans {
		close(ch)
	}
	p.logger.Info("Waiting for workers to drain...")
	wg.Wait()

	return nil
}

// decode validates a tick and normalizes its symbol.
func (p *Processor) decode(payload []byte) (models.StockUpdate, bool) {
	var update models.StockUpdate
	if err := json.Unmarshal(payload, &update); err != nil {
		p.logger.Error("JSON Unmarshal Error", zap.Error(err))
		return update, false
	}

	update.Symbol = models.NormalizeSymbol(update.Symbol).String()
	if update.Symbol == "" {
		p.logger.Warn("Tick without symbol")
		return update, false
	}
	if math.IsNaN(update.Price) || math.IsInf(update.Price, 0) || update.Price <= 0 {
		p.logger.Warn("Tick with invalid price", zap.String("symbol", update.Symbol), zap.Float64("price", update.Price))
		return update, false
	}
	return update, true
}

func (p *Processor) worker(id int, updates <-chan models.StockUpdate, wg *sync.WaitGroup) {
	defer wg.Done()
	// Background: a cancelled run must not abort a half-written snapshot
	ctx := context.Background()

	// per-symbol dedup is sound only because sharding pins a symbol to one worker
	lastSeq := make(map[string]int64)

	for update := range updates {
		if update.SeqID <= lastSeq[update.Symbol] {
			p.logger.Debug("Skipping duplicate update", zap.String("symbol", update.Symbol), zap.Int64("seq_id", update.SeqID))
			continue
		}

		payload, err := json.Marshal(update)
		if err != nil {
			p.logger.Error("JSON Marshal Error", zap.Error(err))
			continue
		}

		pipe := p.rdb.Pipeline()
		pipe.Set(ctx, models.SnapshotKey(models.Symbol(update.Symbol)), payload, p.cfg.SnapshotTTL)

		if _, err := pipe.Exec(ctx); err != nil {
			p.logger.Error("Redis Pipeline Error", zap.Error(err), zap.String("symbol", update.Symbol))
			continue
		}
		p.logger.Debug("Processed", zap.String("symbol", update.Symbol), zap.Int("worker_id", id))
		lastSeq[update.Symbol] = update.SeqID
	}
}

func getWorkerID(symbol string, numWorkers int) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(numWorkers))
}
