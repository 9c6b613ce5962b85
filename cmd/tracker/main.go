package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/console"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/gateway"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/hub"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/marketdata"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/notify"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/scheduler"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/storage"
	"github.com/shubham-shewale/stock-tracker/cmd/tracker/internal/tracker"
	"github.com/shubham-shewale/stock-tracker/pkg/config"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	logger, err := config.NewLogger(cfg.Logger)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	if err := run(cfg, logger, os.Stdin, os.Stdout); err != nil {
		logger.Fatal("Tracker failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logger *zap.Logger, in io.Reader, out io.Writer) error {
	tr := tracker.NewTracker(cfg.Tracker.HistorySize)

	symbolsFile := storage.NewSymbolFile(cfg.Storage.SymbolsFile)
	saved, err := symbolsFile.Load()
	switch {
	case err != nil:
		fmt.Fprintf(out, "Error loading stocks: %v\n", err)
	case len(saved) == 0:
		fmt.Fprintln(out, "No saved stocks found.")
	default:
		fmt.Fprintf(out, "Loaded %d stocks from file.\n", tr.Seed(saved))
	}

	client, closeClient, err := newMarketClient(cfg, logger)
	if err != nil {
		return err
	}
	defer closeClient()

	cons := console.New(tr, out)
	notifiers := notify.Multi{notify.NewConsole(cons.Writer(), logger)}

	if cfg.Notify.Kafka {
		pub := notify.NewKafkaPublisher(notify.NewKafkaWriter(cfg.Kafka.Brokers, cfg.Kafka.AlertsTopic))
		defer pub.Close()
		notifiers = append(notifiers, pub)
	}

	reporters := scheduler.MultiReporter{cons}

	var wsHub *hub.Hub
	if cfg.Gateway.Enabled {
		wsHub = hub.NewHub(tr, logger)
		notifiers = append(notifiers, wsHub)
		reporters = append(reporters, wsHub)
	}

	sched := scheduler.New(scheduler.Config{
		Interval:     cfg.Poll.Interval,
		FetchTimeout: cfg.Poll.FetchTimeout,
		PollOnStart:  cfg.Poll.OnStart,
	}, tr, client, notifiers, reporters, logger)
	tr.OnTrack(sched.Trigger)

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	g.Go(func() error {
		// leaving the console ends the program
		defer cancel()
		return cons.Run(gctx, in)
	})

	if wsHub != nil {
		srv := &http.Server{Addr: cfg.App.Port, Handler: gatewayMux(wsHub, logger)}
		g.Go(func() error {
			logger.Info("Gateway Started", zap.String("port", cfg.App.Port))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("gateway: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			// Shutdown does not touch hijacked websocket connections
			wsHub.CloseAll()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// the scheduler has returned before anything is persisted
	runErr := g.Wait()

	if err := symbolsFile.Save(tr.Symbols()); err != nil {
		fmt.Fprintf(out, "Error saving stocks: %v\n", err)
	} else {
		fmt.Fprintf(out, "Saved %d stocks to file.\n", tr.Len())
	}

	logger.Info("Shutdown Complete")
	return runErr
}

func gatewayMux(h *hub.Hub, logger *zap.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/ws", gateway.Handler(h, logger))
	return mux
}

func newMarketClient(cfg *config.Config, logger *zap.Logger) (marketdata.Client, func(), error) {
	switch cfg.Market.Source {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			// polls will fail and be retried on every tick
			logger.Warn("Redis not reachable yet", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		return marketdata.NewRedisSnapshots(rdb, logger), func() { rdb.Close() }, nil
	case "simulator":
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
		return marketdata.NewSimulator(rnd, nil, 100, 5), func() {}, nil
	case "marketstack":
		if cfg.Market.MarketstackKey == "" {
			logger.Warn("MARKET_MARKETSTACK_KEY is empty; requests will be rejected")
		}
		return marketdata.NewMarketstack(cfg.Market.MarketstackURL, cfg.Market.MarketstackKey, cfg.Poll.FetchTimeout), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown market source %q", cfg.Market.Source)
}
