package marketdata

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/shubham-shewale/stock-tracker/pkg/models"
)

const redisSource = "redis"

// Compile-time check to ensure RedisSnapshots implements Client
var _ Client = (*RedisSnapshots)(nil)

// RedisSnapshots reads the latest StockUpdate per symbol written by the processor.
type RedisSnapshots struct {
	client redis.Cmdable
	logger *zap.Logger
}

func NewRedisSnapshots(client redis.Cmdable, logger *zap.Logger) *RedisSnapshots {
	return &RedisSnapshots{client: client, logger: logger}
}

func (r *RedisSnapshots) Name() string { return redisSource }

// Fetch issues a single MGET for all symbols. Missing or expired keys are omitted from the result.
func (r *RedisSnapshots) Fetch(ctx context.Context, symbols []models.Symbol) ([]models.Quote, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	keys := make([]string, len(symbols))
	for i, sym := range symbols {
		keys[i] = models.SnapshotKey(sym)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, &FetchError{Source: redisSource, Err: err}
	}

	var quotes []models.Quote
	for i, val := range results {
		payload, ok := val.(string)
		if !ok || payload == "" {
			continue
		}
		var update models.StockUpdate
		if err := json.Unmarshal([]byte(payload), &update); err != nil {
			r.logger.Warn("Skipping malformed snapshot", zap.String("key", keys[i]), zap.Error(err))
			continue
		}
		sym := models.NormalizeSymbol(update.Symbol)
		if sym == "" {
			sym = symbols[i]
		}
		quotes = append(quotes, models.Quote{Symbol: sym, Price: update.Price})
	}
	return quotes, nil
}
