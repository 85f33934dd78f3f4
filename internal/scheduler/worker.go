package scheduler

import (
	"context"
	"fmt"

	"lead_scoring_backend/internal/scoring/decay"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/apperr"
	"lead_scoring_backend/platform/config"
	"lead_scoring_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Sweeper runs batch scoring jobs.
type Sweeper interface {
	RunDecay(ctx context.Context, opts decay.Options) (decay.Stats, error)
	RecalculateAll(ctx context.Context, opts decay.Options) (decay.Stats, error)
}

// RecalculateFunc adapts a function to the worker's recalculation hook.
type RecalculateFunc func(ctx context.Context, leadID uuid.UUID, trigger domain.Trigger) error

type Worker struct {
	server      *asynq.Server
	mux         *asynq.ServeMux
	recalculate RecalculateFunc
	sweeper     Sweeper
	log         *logger.Logger
}

func NewWorker(cfg config.SchedulerConfig, recalculate RecalculateFunc, sweeper Sweeper, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queueName(cfg): 1,
		},
	})

	w := newHandlers(recalculate, sweeper, log)
	w.server = server

	return w, nil
}

func newHandlers(recalculate RecalculateFunc, sweeper Sweeper, log *logger.Logger) *Worker {
	if log == nil {
		log = logger.Nop()
	}
	w := &Worker{
		mux:         asynq.NewServeMux(),
		recalculate: recalculate,
		sweeper:     sweeper,
		log:         log,
	}
	w.mux.HandleFunc(TaskRecalculateLead, w.handleRecalculateLead)
	w.mux.HandleFunc(TaskScoreSweep, w.handleScoreSweep)
	return w
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// withJobID tags the context with the asynq task id so handler logs carry it.
func withJobID(ctx context.Context) context.Context {
	if id, ok := asynq.GetTaskID(ctx); ok {
		return context.WithValue(ctx, logger.JobIDKey, id)
	}
	return ctx
}

func (w *Worker) handleRecalculateLead(ctx context.Context, task *asynq.Task) error {
	ctx = withJobID(ctx)
	payload, err := ParseRecalculateLeadPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	leadID, err := uuid.Parse(payload.LeadID)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	trigger := domain.Trigger(payload.Trigger)
	if trigger == "" {
		trigger = domain.TriggerActivity
	}

	err = w.recalculate(ctx, leadID, trigger)
	if apperr.Is(err, apperr.KindNotFound) {
		w.log.WithContext(ctx).Info("recalculation skipped, lead no longer exists", "lead_id", leadID)
		return nil
	}
	return err
}

func (w *Worker) handleScoreSweep(ctx context.Context, task *asynq.Task) error {
	ctx = withJobID(ctx)
	payload, err := ParseScoreSweepPayload(task)
	if err != nil {
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}
	w.log.WithContext(ctx).Info("score sweep started", "mode", payload.Mode, "dry_run", payload.DryRun)

	opts := decay.Options{DryRun: payload.DryRun}
	switch payload.Mode {
	case SweepDecay:
		_, err = w.sweeper.RunDecay(ctx, opts)
	case SweepRecalculateAll:
		_, err = w.sweeper.RecalculateAll(ctx, opts)
	default:
		return fmt.Errorf("%w: unknown sweep mode %q", asynq.SkipRetry, payload.Mode)
	}
	return err
}
