package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"swaylend/config"
	"swaylend/core/events"
	"swaylend/core/types"
	"swaylend/native/market"
	"swaylend/observability"
	"swaylend/observability/logging"
	"swaylend/oracle"
	"swaylend/rpc"
	"swaylend/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.SetupWithOptions(logging.Options{
		Service: "marketd",
		Env:     cfg.Environment,
		File:    cfg.LogFile,
	})

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	resolver, err := oracleResolver(cfg, logger)
	if err != nil {
		logger.Error("failed to configure oracle", slog.Any("error", err))
		os.Exit(1)
	}

	markets := market.NewDirectory(db,
		market.WithOracleResolver(resolver),
		market.WithEmitter(observability.CountingEmitter{Next: logEmitter{logger: logger}}),
		market.WithLogger(logger),
	)
	ids, err := markets.List()
	if err != nil {
		logger.Error("failed to list markets", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("markets loaded", slog.Int("count", len(ids)), slog.Uint64("chain_id", cfg.ChainID))

	server := rpc.NewServer(markets, rpc.ServerConfig{
		ChainID:            cfg.ChainID,
		RateLimitPerMinute: cfg.RPC.RateLimitPerMinute,
		Burst:              cfg.RPC.Burst,
		MaxBodyBytes:       int64(cfg.RPC.MaxBodyBytes),
		ReadHeaderTimeout:  time.Duration(cfg.RPC.ReadHeaderTimeout) * time.Second,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := server.Serve(ctx, cfg.RPCAddress); err != nil {
		logger.Error("rpc server stopped", slog.Any("error", err))
		db.Close()
		os.Exit(1)
	}
	logger.Info("marketd shut down")
}

// oracleResolver routes the configured oracle contract id to the Hermes
// price service. Without a Hermes URL every price read fails with an
// unconfigured oracle.
func oracleResolver(cfg *config.Config, logger *slog.Logger) (oracle.Resolver, error) {
	registry := oracle.NewRegistry()
	oracleID, err := cfg.Market.OracleContract()
	if err != nil {
		return nil, err
	}
	if cfg.Oracle.HermesURL == "" || oracleID.IsZero() {
		logger.Warn("no price oracle configured; valuation calls will fail")
		return registry, nil
	}
	client := &http.Client{Timeout: time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second}
	hermes := oracle.NewHermesOracle(client, cfg.Oracle.HermesURL, cfg.Oracle.RequestsPerSecond, cfg.Oracle.Burst)
	hermes.SetTimeout(time.Duration(cfg.Oracle.TimeoutSeconds) * time.Second)
	registry.Register(oracleID, hermes)
	logger.Info("hermes oracle registered",
		slog.String("oracle", oracleID.String()),
		slog.String("endpoint", cfg.Oracle.HermesURL))
	return registry, nil
}

// logEmitter writes committed market events to the service log.
type logEmitter struct {
	logger *slog.Logger
}

func (e logEmitter) Emit(evt events.Event) {
	attrs := []any{slog.String("type", evt.EventType())}
	if typed, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := typed.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	e.logger.Info("market event", attrs...)
}
