package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"lead_scoring_backend/internal/scoring"
	"lead_scoring_backend/internal/scoring/decay"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/db"
	"lead_scoring_backend/platform/logger"
	"lead_scoring_backend/platform/validator"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "compute new scores without writing them")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting score backfill", "dry_run", *dryRun)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	ruleStore, closeRuleStore, err := scoring.OpenRuleStore(cfg)
	if err != nil {
		log.Error("failed to open rule cache", "error", err)
		panic("failed to open rule cache: " + err.Error())
	}
	defer func() { _ = closeRuleStore() }()

	module := scoring.NewModule(pool, ruleStore, nil, nil, validator.New(), cfg, log)

	stats, err := module.Jobs().RecalculateAll(ctx, decay.Options{DryRun: *dryRun})
	if err != nil {
		log.Error("score backfill failed", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(stats)

	if stats.ErrorsEncountered > 0 {
		os.Exit(2)
	}
}
