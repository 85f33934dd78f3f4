package scheduler

import (
	"context"
	"errors"
	"testing"

	"lead_scoring_backend/internal/scoring/decay"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

func TestRecalculatePayloadRoundTrip(t *testing.T) {
	id := uuid.New()
	task, err := NewRecalculateLeadTask(RecalculateLeadPayload{LeadID: id.String(), Trigger: "activity"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskRecalculateLead {
		t.Fatalf("unexpected task type %s", task.Type())
	}

	payload, err := ParseRecalculateLeadPayload(task)
	if err != nil || payload.LeadID != id.String() {
		t.Fatalf("unexpected payload %+v (%v)", payload, err)
	}
}

func TestSweepPayloadDefaultsToDecay(t *testing.T) {
	payload, err := ParseScoreSweepPayload(asynq.NewTask(TaskScoreSweep, []byte(`{}`)))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if payload.Mode != SweepDecay || payload.DryRun {
		t.Fatalf("unexpected defaults %+v", payload)
	}
}

type fakeSweeper struct {
	decayRuns int
	allRuns   int
	lastOpts  decay.Options
}

func (f *fakeSweeper) RunDecay(_ context.Context, opts decay.Options) (decay.Stats, error) {
	f.decayRuns++
	f.lastOpts = opts
	return decay.Stats{}, nil
}

func (f *fakeSweeper) RecalculateAll(_ context.Context, opts decay.Options) (decay.Stats, error) {
	f.allRuns++
	f.lastOpts = opts
	return decay.Stats{}, nil
}

func TestWorkerDispatchesTasks(t *testing.T) {
	var got uuid.UUID
	var gotTrigger domain.Trigger
	sweeper := &fakeSweeper{}
	w := newHandlers(func(_ context.Context, leadID uuid.UUID, trigger domain.Trigger) error {
		got, gotTrigger = leadID, trigger
		return nil
	}, sweeper, nil)
	ctx := context.Background()

	id := uuid.New()
	task, _ := NewRecalculateLeadTask(RecalculateLeadPayload{LeadID: id.String()})
	if err := w.mux.ProcessTask(ctx, task); err != nil {
		t.Fatalf("process recalculation: %v", err)
	}
	if got != id || gotTrigger != domain.TriggerActivity {
		t.Fatalf("expected recalculation for %s with activity trigger, got %s %s", id, got, gotTrigger)
	}

	sweep, _ := NewScoreSweepTask(ScoreSweepPayload{Mode: SweepRecalculateAll, DryRun: true})
	if err := w.mux.ProcessTask(ctx, sweep); err != nil {
		t.Fatalf("process sweep: %v", err)
	}
	if sweeper.allRuns != 1 || !sweeper.lastOpts.DryRun {
		t.Fatalf("expected dry-run recalculate-all, got %+v", sweeper)
	}
}

func TestWorkerSkipsRetryForBadPayloads(t *testing.T) {
	w := newHandlers(func(context.Context, uuid.UUID, domain.Trigger) error { return nil }, &fakeSweeper{}, nil)

	err := w.mux.ProcessTask(context.Background(), asynq.NewTask(TaskRecalculateLead, []byte(`{"leadId":"nope"}`)))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for invalid lead id, got %v", err)
	}

	unknown, _ := NewScoreSweepTask(ScoreSweepPayload{Mode: "rebuild"})
	if err := w.mux.ProcessTask(context.Background(), unknown); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("expected SkipRetry for unknown mode, got %v", err)
	}
}

func TestWorkerIgnoresDeletedLeads(t *testing.T) {
	w := newHandlers(func(context.Context, uuid.UUID, domain.Trigger) error {
		return apperr.NotFound("lead not found")
	}, &fakeSweeper{}, nil)

	task, _ := NewRecalculateLeadTask(RecalculateLeadPayload{LeadID: uuid.NewString()})
	if err := w.mux.ProcessTask(context.Background(), task); err != nil {
		t.Fatalf("expected missing lead to be acknowledged, got %v", err)
	}
}

type countingEnqueuer struct{ sweeps []ScoreSweepPayload }

func (c *countingEnqueuer) EnqueueSweep(_ context.Context, payload ScoreSweepPayload) error {
	c.sweeps = append(c.sweeps, payload)
	return nil
}

func TestDecayScheduleRejectsInvalidSpec(t *testing.T) {
	if _, err := NewDecaySchedule("every now and then", &countingEnqueuer{}, nil); err == nil {
		t.Fatalf("expected invalid cron expression to fail")
	}
}

func TestDecayScheduleTickEnqueuesDecay(t *testing.T) {
	enqueuer := &countingEnqueuer{}
	s, err := NewDecaySchedule("", enqueuer, nil)
	if err != nil {
		t.Fatalf("new schedule: %v", err)
	}

	s.tick()

	if len(enqueuer.sweeps) != 1 || enqueuer.sweeps[0].Mode != SweepDecay {
		t.Fatalf("expected one decay sweep, got %+v", enqueuer.sweeps)
	}
}
