// Package scoring provides the lead scoring bounded context module.
// This file wires the engine, rule cache, batch jobs and HTTP routes.
package scoring

import (
	"context"

	"lead_scoring_backend/internal/events"
	apphttp "lead_scoring_backend/internal/http"
	"lead_scoring_backend/internal/scheduler"
	"lead_scoring_backend/internal/scoring/decay"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/internal/scoring/handler"
	"lead_scoring_backend/internal/scoring/repository"
	"lead_scoring_backend/internal/scoring/rules"
	"lead_scoring_backend/internal/scoring/service"
	"lead_scoring_backend/platform/cache"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/logger"
	"lead_scoring_backend/platform/validator"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config is the configuration the module reads.
type Config interface {
	config.ScoringConfig
	config.RuleCacheConfig
}

// Queue hands work to the background worker. Nil runs everything inline.
type Queue interface {
	service.Enqueuer
	scheduler.SweepEnqueuer
}

// Store is the persistence the module needs, including rule loading.
type Store interface {
	repository.ScoringRepository
	LoadRuleSet(ctx context.Context) (domain.RuleSet, error)
}

// OpenRuleStore returns the shared cache for rule snapshots. The memory
// backend returns a nil store, which keeps the cache process-local.
func OpenRuleStore(cfg config.RuleCacheConfig) (cache.Store, func() error, error) {
	if cfg.GetRuleCacheBackend() != "redis" {
		return nil, func() error { return nil }, nil
	}
	client, err := cache.NewRedisClient(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, nil, err
	}
	store := cache.NewRedisStore(client, "lead_scoring:")
	return store, store.Close, nil
}

// Module is the scoring bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	engine  *service.Engine
	jobs    *decay.Job
	rules   *rules.Cache
}

// NewModule creates the scoring module on top of Postgres. ruleStore may be
// nil for a process-local rule cache.
func NewModule(pool *pgxpool.Pool, ruleStore cache.Store, queue Queue, eventBus events.Bus, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	return newModule(repository.New(pool), ruleStore, queue, eventBus, val, cfg, log)
}

func newModule(store Store, ruleStore cache.Store, queue Queue, eventBus events.Bus, val *validator.Validator, cfg Config, log *logger.Logger) *Module {
	if log == nil {
		log = logger.Nop()
	}
	var loader rules.Loader = rules.LoaderFunc(store.LoadRuleSet)
	if path := cfg.GetRulesFile(); path != "" {
		loader = rules.FileLoader{Path: path}
		log.Info("scoring rules loaded from file", "path", path)
	}
	ruleCache := rules.NewCache(loader, ruleStore, cfg.GetRuleCacheTTL(), log)

	engine := service.New(ruleCache, store, eventBus, log, service.WithActivityLimit(cfg.GetActivityLimit()))

	jobs := decay.New(engine, store, ruleCache, decay.Config{
		MinMomentum: cfg.GetDecayMinMomentum(),
		BatchSize:   cfg.GetDecayBatchSize(),
		Concurrency: cfg.GetDecayConcurrency(),
		BatchDelay:  cfg.GetDecayBatchDelay(),
	}, log)

	if eventBus != nil {
		eventBus.Subscribe(events.ActivityRecorded{}.EventName(), engine.ActivityHandler(queue))
		eventBus.Subscribe(events.LeadScoreChanged{}.EventName(), events.HandlerFunc(func(ctx context.Context, event events.Event) error {
			e, ok := event.(events.LeadScoreChanged)
			if !ok {
				return nil
			}
			log.WithContext(ctx).Debug("lead classification changed",
				"lead_id", e.LeadID, "from", e.PreviousClassification, "to", e.Classification, "reason", e.Reason)
			return nil
		}))
	}

	return &Module{
		handler: handler.New(engine, jobs, ruleCache, queue, val, log),
		engine:  engine,
		jobs:    jobs,
		rules:   ruleCache,
	}
}

// Name returns the module name for logging.
func (m *Module) Name() string {
	return "scoring"
}

// Engine returns the scoring engine for other entry points.
func (m *Module) Engine() *service.Engine {
	return m.engine
}

// Jobs returns the batch jobs used by the worker and CLI tools.
func (m *Module) Jobs() *decay.Job {
	return m.jobs
}

// Rules returns the rule cache.
func (m *Module) Rules() *rules.Cache {
	return m.rules
}

// Recalculate adapts the engine to the worker's task hook.
func (m *Module) Recalculate(ctx context.Context, leadID uuid.UUID, trigger domain.Trigger) error {
	_, err := m.engine.Recalculate(ctx, leadID, trigger)
	return err
}

// RegisterRoutes mounts lead routes under the protected group and the
// maintenance routes under the admin group.
func (m *Module) RegisterRoutes(groups *apphttp.RouteGroups) {
	m.handler.RegisterRoutes(groups.Protected.Group("/leads"))
	m.handler.RegisterAdminRoutes(groups.Admin.Group("/scoring"))
}

var _ apphttp.Module = (*Module)(nil)
