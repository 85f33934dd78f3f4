package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"lead_scoring_backend/internal/events"
	"lead_scoring_backend/internal/scheduler"
	"lead_scoring_backend/internal/scoring"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/db"
	"lead_scoring_backend/platform/logger"
	"lead_scoring_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env, "decay_schedule", cfg.GetDecaySchedule())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg, log)
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

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = client.Close() }()

	eventBus := events.NewInMemoryBus(log)
	scoringModule := scoring.NewModule(pool, ruleStore, client, eventBus, validator.New(), cfg, log)

	schedule, err := scheduler.NewDecaySchedule(cfg.GetDecaySchedule(), client, log)
	if err != nil {
		log.Error("failed to initialize decay schedule", "error", err)
		panic("failed to initialize decay schedule: " + err.Error())
	}
	go schedule.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, scoringModule.Recalculate, scoringModule.Jobs(), log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
	eventBus.Wait()
}
