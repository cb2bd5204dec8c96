// Addrrisk - cryptocurrency address risk scoring that deploys in 60 seconds.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/riskgraph/addrrisk/internal/api"
	"github.com/riskgraph/addrrisk/internal/bus"
	"github.com/riskgraph/addrrisk/internal/cache"
	"github.com/riskgraph/addrrisk/internal/classifier"
	"github.com/riskgraph/addrrisk/internal/customrules"
	"github.com/riskgraph/addrrisk/internal/domain"
	"github.com/riskgraph/addrrisk/internal/ml"
	"github.com/riskgraph/addrrisk/internal/pipeline"
	"github.com/riskgraph/addrrisk/internal/repository"
	"github.com/riskgraph/addrrisk/internal/txsource"
	"github.com/riskgraph/addrrisk/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// GlobalTenantID is used for custom rules and bundles that apply to
// every tenant, loaded once at startup alongside per-tenant sets.
const GlobalTenantID = "*"

func main() {
	logLevel := slog.LevelInfo
	if os.Getenv("ADDRRISK_DEBUG") == "true" {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("starting addrrisk",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)

	cfg := domain.DefaultConfig()
	if os.Getenv("ADDRRISK_TIER") == "pro" {
		cfg = domain.ProConfig()
		slog.Info("running in Pro tier mode")
	}

	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		slog.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		slog.Error("failed to initialize repository", "error", err)
		os.Exit(1)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		slog.Error("failed to initialize cache", "error", err)
		os.Exit(1)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		slog.Error("failed to initialize event bus", "error", err)
		os.Exit(1)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	// Entity classification is memoized through the two-phase cache;
	// sanctions-list ingestion itself is an external concern the static
	// lookup simply exposes a Seed/Set surface for.
	baseClassifier := classifier.NewStaticClassifier()
	entityClassifier := classifier.NewCachedClassifier(baseClassifier, cacheImpl, 10*time.Minute)

	txSource := txsource.NewRepositoryTransactionSource(repo)

	customRuleEngine, err := customrules.NewEngine(100)
	if err != nil {
		slog.Error("failed to initialize custom rule engine", "error", err)
		os.Exit(1)
	}
	if err := loadCustomRulesFromDatabase(ctx, repo, customRuleEngine); err != nil {
		slog.Error("failed to load custom rules", "error", err)
		os.Exit(1)
	}
	slog.Info("custom rule engine initialized", "rules_count", customRuleEngine.RulesCount())

	bundleEngine := customrules.NewBundleEngine()
	if err := loadRuleBundlesFromDatabase(ctx, repo, bundleEngine); err != nil {
		slog.Error("failed to load rule bundles", "error", err)
		os.Exit(1)
	}
	slog.Info("rule bundle engine initialized", "bundle_count", bundleEngine.BundleCount())

	predict := ml.NewBaseline()

	pl, err := pipeline.New(entityClassifier, txSource, customRuleEngine, bundleEngine, predict, cfg.Pipeline)
	if err != nil {
		slog.Error("failed to initialize analysis pipeline", "error", err)
		os.Exit(1)
	}
	slog.Info("analysis pipeline initialized")

	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("ADDRRISK_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, repo, pl)

		tenantIDs := []string{}
		if envTenants := os.Getenv("ADDRRISK_TENANTS"); envTenants != "" {
			tenantIDs = []string{envTenants}
		}

		workerCfg := worker.Config{
			TenantIDs:   tenantIDs,
			WorkerCount: 5,
		}

		if err := asyncWorker.Start(workerCfg); err != nil {
			slog.Error("failed to start async worker", "error", err)
		} else {
			slog.Info("async worker started", "tenant_count", len(tenantIDs))
		}
	}

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, pl, customRuleEngine, bundleEngine, Version)

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("addrrisk is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)

	printBanner(cfg, Version)

	<-ctx.Done()
	slog.Info("shutting down...")

	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("addrrisk shutdown complete")
}

// loadCustomRulesFromDatabase loads every global custom rule from the
// database into the engine. All rules must be configured via POST
// /rules - no hardcoded defaults.
func loadCustomRulesFromDatabase(ctx context.Context, repo domain.Repository, engine *customrules.Engine) error {
	dbRules, err := repo.ListCustomRules(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list custom rules from database", "error", err)
		return nil
	}

	if len(dbRules) > 0 {
		slog.Info("loading custom rules from database", "count", len(dbRules))
		return engine.LoadRules(dbRules)
	}

	slog.Info("no custom rules in database - configure via POST /rules API")
	return nil
}

// loadRuleBundlesFromDatabase loads every global rule bundle from the
// database into the bundle engine.
func loadRuleBundlesFromDatabase(ctx context.Context, repo domain.Repository, engine *customrules.BundleEngine) error {
	dbBundles, err := repo.ListRuleBundles(ctx, GlobalTenantID)
	if err != nil {
		slog.Warn("failed to list rule bundles from database", "error", err)
		return nil
	}

	if len(dbBundles) > 0 {
		slog.Info("loading rule bundles from database", "count", len(dbBundles))
		engine.LoadBundles(dbBundles)
		return nil
	}

	slog.Info("no rule bundles in database - configure via POST /bundles API")
	return nil
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  ╔══════════════════════════════════════════╗")
	fmt.Println("  ║              ADDRRISK                     ║")
	fmt.Println("  ║   Address Risk Scoring Engine             ║")
	fmt.Println("  ║   Eyes on every counterparty.              ║")
	fmt.Println("  ╚══════════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST   /analyze          - Analyze an address")
	fmt.Println("    GET    /analyses/{id}    - Get a persisted analysis")
	fmt.Println("    GET    /rules            - List custom rules")
	fmt.Println("    POST   /rules            - Create a custom rule")
	fmt.Println("    POST   /rules/reload     - Hot-reload custom rules")
	fmt.Println("    GET    /bundles          - List rule bundles")
	fmt.Println("    POST   /bundles          - Create a rule bundle")
	fmt.Println("    PUT    /bundles/{id}     - Update a rule bundle")
	fmt.Println("    DELETE /bundles/{id}     - Delete a rule bundle")
	fmt.Println("    GET    /health           - Health check")
	fmt.Println()
}
