package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"lead_scoring_backend/internal/scoring"
	"lead_scoring_backend/internal/scoring/repository"
	"lead_scoring_backend/internal/scoring/rules"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/db"
	"lead_scoring_backend/platform/logger"
)

func main() {
	file := flag.String("file", "configs/scoring-rules.yaml", "YAML rule file to load")
	dryRun := flag.Bool("dry-run", false, "validate the file without touching the database")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	set, err := rules.LoadFile(*file)
	if err != nil {
		log.Error("invalid rule file", "file", *file, "error", err)
		os.Exit(1)
	}
	log.Info("rule file parsed",
		"file", *file,
		"demographic", len(set.Demographic),
		"behavioral", len(set.Behavioral),
		"negative", len(set.Negative),
		"thresholds", len(set.Thresholds),
	)
	if *dryRun {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	repo := repository.New(pool)
	if err := repo.ReplaceRuleSet(ctx, set); err != nil {
		log.Error("failed to store rules", "error", err)
		panic("failed to store rules: " + err.Error())
	}

	ruleStore, closeRuleStore, err := scoring.OpenRuleStore(cfg)
	if err != nil {
		log.Warn("rule cache not reachable, running processes pick up new rules after the cache ttl", "error", err)
		return
	}
	defer func() { _ = closeRuleStore() }()

	if err := rules.NewCache(rules.LoaderFunc(repo.LoadRuleSet), ruleStore, cfg.GetRuleCacheTTL(), log).Invalidate(ctx); err != nil {
		log.Warn("failed to invalidate shared rule cache", "error", err)
	}

	log.Info("scoring rules seeded", "rules", set.Size())
}
