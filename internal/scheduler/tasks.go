package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskRecalculateLead = "scoring.recalculate"

const TaskScoreSweep = "scoring.sweep"

// Sweep modes.
const (
	SweepDecay          = "decay"
	SweepRecalculateAll = "recalculate_all"
)

type RecalculateLeadPayload struct {
	LeadID  string `json:"leadId"`
	Trigger string `json:"trigger"`
}

type ScoreSweepPayload struct {
	Mode   string `json:"mode"`
	DryRun bool   `json:"dryRun"`
}

func NewRecalculateLeadTask(payload RecalculateLeadPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskRecalculateLead, data), nil
}

func ParseRecalculateLeadPayload(task *asynq.Task) (RecalculateLeadPayload, error) {
	var payload RecalculateLeadPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return RecalculateLeadPayload{}, err
	}
	return payload, nil
}

func NewScoreSweepTask(payload ScoreSweepPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskScoreSweep, data), nil
}

func ParseScoreSweepPayload(task *asynq.Task) (ScoreSweepPayload, error) {
	var payload ScoreSweepPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ScoreSweepPayload{}, err
	}
	if payload.Mode == "" {
		payload.Mode = SweepDecay
	}
	return payload, nil
}
