package repository

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"lead_scoring_backend/internal/scoring/domain"

	"github.com/google/uuid"
)

// Memory is an in-process ScoringRepository for tests and local runs
// without Postgres.
type Memory struct {
	mu         sync.Mutex
	rules      domain.RuleSet
	leads      map[uuid.UUID]domain.Lead
	activities map[uuid.UUID][]domain.Activity
	scores     map[uuid.UUID]domain.LeadScore
	history    map[uuid.UUID][]domain.ScoreHistoryEntry
	nextID     int64

	// Saves counts successful score writes.
	Saves int
	// FailSave makes SaveScore fail for the listed leads.
	FailSave map[uuid.UUID]error
	// FailActivities makes ListActivities fail for the listed leads.
	FailActivities map[uuid.UUID]error
}

var _ ScoringRepository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		leads:          make(map[uuid.UUID]domain.Lead),
		activities:     make(map[uuid.UUID][]domain.Activity),
		scores:         make(map[uuid.UUID]domain.LeadScore),
		history:        make(map[uuid.UUID][]domain.ScoreHistoryEntry),
		FailSave:       make(map[uuid.UUID]error),
		FailActivities: make(map[uuid.UUID]error),
	}
}

// PutLead inserts or replaces a lead.
func (m *Memory) PutLead(lead domain.Lead) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leads[lead.ID] = lead
}

// PutScore stores a score without writing history.
func (m *Memory) PutScore(score domain.LeadScore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scores[score.LeadID] = score
}

// AddActivity appends an activity without touching the lead.
func (m *Memory) AddActivity(activity domain.Activity) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if activity.ID == uuid.Nil {
		activity.ID = uuid.New()
	}
	m.activities[activity.LeadID] = append(m.activities[activity.LeadID], activity)
}

func (m *Memory) ListRules(context.Context) ([]domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Rule, 0, m.rules.Size())
	out = append(out, m.rules.Demographic...)
	out = append(out, m.rules.Behavioral...)
	out = append(out, m.rules.Negative...)
	return out, nil
}

func (m *Memory) ListThresholds(context.Context) ([]domain.Threshold, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Threshold(nil), m.rules.Thresholds...), nil
}

// LoadRuleSet returns the stored rule set.
func (m *Memory) LoadRuleSet(context.Context) (domain.RuleSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rules, nil
}

func (m *Memory) ReplaceRuleSet(_ context.Context, set domain.RuleSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = set
	return nil
}

func (m *Memory) GetLead(_ context.Context, id uuid.UUID) (domain.Lead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[id]
	if !ok {
		return domain.Lead{}, ErrNotFound
	}
	return lead, nil
}

func (m *Memory) ListLeadIDs(_ context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.leads))
	for id := range m.leads {
		if bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	return ids, nil
}

func (m *Memory) ListActivities(_ context.Context, leadID uuid.UUID, limit int) ([]domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.FailActivities[leadID]; err != nil {
		return nil, err
	}
	out := append([]domain.Activity(nil), m.activities[leadID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) InsertActivity(_ context.Context, params InsertActivityParams) (domain.Activity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	lead, ok := m.leads[params.LeadID]
	if !ok {
		return domain.Activity{}, ErrNotFound
	}
	activity := domain.Activity{
		ID:              uuid.New(),
		LeadID:          params.LeadID,
		ActivityType:    params.ActivityType,
		ActivitySubtype: params.ActivitySubtype,
		OccurredAt:      params.OccurredAt,
	}
	m.activities[params.LeadID] = append(m.activities[params.LeadID], activity)
	if lead.LastActivityAt == nil || params.OccurredAt.After(*lead.LastActivityAt) {
		at := params.OccurredAt
		lead.LastActivityAt = &at
		m.leads[lead.ID] = lead
	}
	return activity, nil
}

func (m *Memory) GetScore(_ context.Context, leadID uuid.UUID) (domain.LeadScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	score, ok := m.scores[leadID]
	if !ok {
		return domain.LeadScore{}, ErrNotFound
	}
	return score, nil
}

func (m *Memory) ListHistory(_ context.Context, leadID uuid.UUID, limit int) ([]domain.ScoreHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.history[leadID]
	out := make([]domain.ScoreHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (m *Memory) ListDecayCandidates(_ context.Context, minMomentum int, after uuid.UUID, limit int) ([]domain.LeadScore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uuid.UUID, 0, len(m.scores))
	for id, score := range m.scores {
		if score.Momentum.Score >= minMomentum && bytes.Compare(id[:], after[:]) > 0 {
			ids = append(ids, id)
		}
	}
	sortIDs(ids)
	if len(ids) > limit {
		ids = ids[:limit]
	}
	out := make([]domain.LeadScore, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.scores[id])
	}
	return out, nil
}

func (m *Memory) SaveScore(_ context.Context, score domain.LeadScore, trigger domain.Trigger, changeReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveLocked(score, trigger, changeReason)
}

func (m *Memory) SaveScoreIfCurrent(_ context.Context, score domain.LeadScore, previous *domain.LeadScore, trigger domain.Trigger, changeReason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.scores[score.LeadID]
	if previous == nil && ok {
		return ErrStaleScore
	}
	if previous != nil && (!ok || !current.CalculatedAt.Equal(previous.CalculatedAt)) {
		return ErrStaleScore
	}
	return m.saveLocked(score, trigger, changeReason)
}

func (m *Memory) saveLocked(score domain.LeadScore, trigger domain.Trigger, changeReason string) error {
	if err := m.FailSave[score.LeadID]; err != nil {
		return err
	}
	m.Saves++
	m.nextID++
	m.scores[score.LeadID] = score
	m.history[score.LeadID] = append(m.history[score.LeadID], domain.ScoreHistoryEntry{
		ID:           m.nextID,
		Score:        score,
		Trigger:      trigger,
		ChangeReason: changeReason,
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

// SaveCount returns the number of successful saves.
func (m *Memory) SaveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Saves
}

func sortIDs(ids []uuid.UUID) {
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
}
