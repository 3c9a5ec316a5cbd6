package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/ErikG1776/syntropiq/api"
	"github.com/ErikG1776/syntropiq/config"
	"github.com/ErikG1776/syntropiq/domain"
	"github.com/ErikG1776/syntropiq/executor"
	"github.com/ErikG1776/syntropiq/governance"
	"github.com/ErikG1776/syntropiq/policy"
	"github.com/ErikG1776/syntropiq/registry"
	"github.com/ErikG1776/syntropiq/store"
)

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func main() {
	cfg := config.Load()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting governance kernel",
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("database", cfg.DatabaseURL),
		zap.String("routing_mode", string(cfg.RoutingMode)))

	db, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	reg := registry.New(db, logger)

	// Rebind agents persisted by previous runs.
	persisted, err := db.ListAgents(ctx)
	if err != nil {
		logger.Fatal("failed to list persisted agents", zap.Error(err))
	}
	for _, a := range persisted {
		if _, err := reg.Register(ctx, a.ID, a.Capabilities, a.TrustScore, a.Status); err != nil {
			logger.Fatal("failed to rebind agent", zap.String("agent_id", a.ID), zap.Error(err))
		}
	}
	if len(persisted) > 0 {
		logger.Info("rebound persisted agents", zap.Int("count", len(persisted)))
	}

	trustEngine := governance.NewTrustEngine(governance.TrustEngineParams{
		Thresholds: domain.Thresholds{
			Trust:       cfg.TrustThreshold,
			Suppression: cfg.SuppressionThreshold,
			DriftDelta:  cfg.DriftDelta,
		},
		MaxRedemptionCycles: cfg.MaxRedemptionCycles,
		ProbationQuota:      cfg.ProbationQuota,
		Mode:                cfg.RoutingMode,
		Seed:                cfg.RandomSeed,
		StatusSink:          reg,
		Logger:              logger,
	})
	if err := trustEngine.Rehydrate(ctx, db); err != nil {
		logger.Fatal("failed to rehydrate suppression state", zap.Error(err))
	}

	mutationEngine, err := governance.NewMutationEngine(ctx, governance.MutationEngineParams{
		Initial:           trustEngine.Thresholds(),
		MutationRate:      cfg.MutationRate,
		TargetSuccessRate: cfg.TargetSuccessRate,
		HistoryWindow:     cfg.HistoryWindow,
		Store:             db,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("failed to initialize mutation engine", zap.Error(err))
	}
	// The trust engine picks up wherever the mutation log left off.
	trustEngine.SetThresholds(mutationEngine.Thresholds())

	loop := governance.NewGovernanceLoop(governance.LoopParams{
		Store: db,
		Learner: governance.Learner{
			Reward:  cfg.RewardRate,
			Penalty: cfg.PenaltyRate,
		},
		TrustEngine: trustEngine,
		Mutation:    mutationEngine,
		Logger:      logger,
	})

	policyEngine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		logger.Fatal("failed to initialize policy engine", zap.Error(err))
	}

	h := api.NewHandler(db, reg, loop, executor.NewDeterministic(0.0), policyEngine, cfg, logger)

	server := echo.New()
	server.HideBanner = true
	server.Use(middleware.Logger())
	server.Use(middleware.Recover())
	server.Use(middleware.CORS())
	h.RegisterRoutes(server)

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal("failed to start server", zap.Error(err))
		}
	}()
	logger.Info("api started", zap.Int("port", cfg.HTTPPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown server gracefully", zap.Error(err))
	}

	logger.Info("governance kernel stopped")
}
