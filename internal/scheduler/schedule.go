package scheduler

import (
	"context"
	"fmt"

	"lead_scoring_backend/platform/logger"

	"github.com/robfig/cron/v3"
)

// DefaultDecaySchedule runs the sweep every 15 minutes (seconds field first).
const DefaultDecaySchedule = "0 */15 * * * *"

// SweepEnqueuer queues sweeps.
type SweepEnqueuer interface {
	EnqueueSweep(ctx context.Context, payload ScoreSweepPayload) error
}

// DecaySchedule enqueues a decay sweep on a cron expression.
type DecaySchedule struct {
	cron     *cron.Cron
	enqueuer SweepEnqueuer
	log      *logger.Logger
	spec     string
}

// NewDecaySchedule validates spec and registers the sweep entry.
func NewDecaySchedule(spec string, enqueuer SweepEnqueuer, log *logger.Logger) (*DecaySchedule, error) {
	if spec == "" {
		spec = DefaultDecaySchedule
	}
	if log == nil {
		log = logger.Nop()
	}

	s := &DecaySchedule{
		cron:     cron.New(cron.WithSeconds()),
		enqueuer: enqueuer,
		log:      log,
		spec:     spec,
	}
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return nil, fmt.Errorf("invalid decay schedule %q: %w", spec, err)
	}
	return s, nil
}

func (s *DecaySchedule) tick() {
	if err := s.enqueuer.EnqueueSweep(context.Background(), ScoreSweepPayload{Mode: SweepDecay}); err != nil {
		s.log.Error("failed to enqueue decay sweep", "error", err)
		return
	}
	s.log.Debug("decay sweep enqueued", "schedule", s.spec)
}

// Run starts the cron loop and blocks until ctx is cancelled.
func (s *DecaySchedule) Run(ctx context.Context) {
	s.cron.Start()
	s.log.Info("decay schedule started", "schedule", s.spec)
	<-ctx.Done()
	<-s.cron.Stop().Done()
}
