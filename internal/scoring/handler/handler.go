package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"lead_scoring_backend/internal/scheduler"
	"lead_scoring_backend/internal/scoring/decay"
	"lead_scoring_backend/internal/scoring/domain"
	"lead_scoring_backend/internal/scoring/service"
	"lead_scoring_backend/internal/scoring/transport"
	"lead_scoring_backend/platform/apperr"
	"lead_scoring_backend/platform/httpkit"
	"lead_scoring_backend/platform/logger"
	"lead_scoring_backend/platform/sanitize"
	"lead_scoring_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"

	maxClockSkew = 5 * time.Minute
)

// RuleRefresher reloads the rule snapshot from its source.
type RuleRefresher interface {
	Refresh(ctx context.Context) (domain.RuleSet, error)
}

type Handler struct {
	engine *service.Engine
	jobs   scheduler.Sweeper
	rules  RuleRefresher
	queue  scheduler.SweepEnqueuer
	val    *validator.Validator
	log    *logger.Logger
}

// New creates the scoring handler. queue may be nil, in which case async
// sweep requests are rejected.
func New(engine *service.Engine, jobs scheduler.Sweeper, rules RuleRefresher, queue scheduler.SweepEnqueuer, val *validator.Validator, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{engine: engine, jobs: jobs, rules: rules, queue: queue, val: val, log: log}
}

// RegisterRoutes mounts the per-lead routes on an authenticated /leads group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:id/score", h.GetScore)
	rg.GET("/:id/score/history", h.ListHistory)
	rg.GET("/:id/score/preview", h.Preview)
	rg.POST("/:id/score/recalculate", h.Recalculate)
	rg.POST("/:id/activities", h.RecordActivity)
}

// RegisterAdminRoutes mounts the maintenance routes on an admin-only group.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/decay", h.RunDecay)
	rg.POST("/recalculate-all", h.RecalculateAll)
	rg.POST("/rules/refresh", h.RefreshRules)
}

func (h *Handler) GetScore(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	score, err := h.engine.GetScore(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, score)
}

func (h *Handler) ListHistory(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var query transport.HistoryQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(query); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(err.Error()))
		return
	}

	entries, err := h.engine.History(c.Request.Context(), leadID, query.Limit)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, transport.HistoryResponse{Items: entries})
}

func (h *Handler) Preview(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	result, err := h.engine.Preview(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, toRecalculateResponse(result))
}

func (h *Handler) Recalculate(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	result, err := h.engine.Recalculate(c.Request.Context(), leadID, domain.TriggerManual)
	if httpkit.HandleError(c, err) {
		return
	}

	h.log.WithContext(c.Request.Context()).Info("manual recalculation",
		"lead_id", leadID, "changed", result.Changed, "actor", httpkit.ActorLabel(c))
	httpkit.OK(c, toRecalculateResponse(result))
}

func (h *Handler) RecordActivity(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	var req transport.RecordActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	req.ActivityType = sanitize.Identifier(req.ActivityType)
	req.ActivitySubtype = sanitize.TextPtr(req.ActivitySubtype)
	if err := h.val.Struct(req); err != nil {
		httpkit.HandleError(c, apperr.Validation(msgValidationFailed).WithDetails(err.Error()))
		return
	}
	if req.OccurredAt != nil && req.OccurredAt.After(h.engine.Now().Add(maxClockSkew)) {
		httpkit.HandleError(c, apperr.Validation("occurredAt cannot be in the future"))
		return
	}

	activity, err := h.engine.RecordActivity(c.Request.Context(), service.RecordActivityParams{
		LeadID:          leadID,
		ActivityType:    req.ActivityType,
		ActivitySubtype: req.ActivitySubtype,
		OccurredAt:      req.OccurredAt,
	})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.JSON(c, http.StatusCreated, transport.RecordActivityResponse{Activity: activity})
}

func (h *Handler) RunDecay(c *gin.Context) {
	h.sweep(c, scheduler.SweepDecay, h.jobs.RunDecay)
}

func (h *Handler) RecalculateAll(c *gin.Context) {
	h.sweep(c, scheduler.SweepRecalculateAll, h.jobs.RecalculateAll)
}

func (h *Handler) sweep(c *gin.Context, mode string, run func(context.Context, decay.Options) (decay.Stats, error)) {
	var req transport.SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	log := h.log.WithContext(c.Request.Context())

	if req.Async {
		if h.queue == nil {
			httpkit.HandleError(c, apperr.Unavailable("background queue not configured"))
			return
		}
		payload := scheduler.ScoreSweepPayload{Mode: mode, DryRun: req.DryRun}
		if err := h.queue.EnqueueSweep(c.Request.Context(), payload); err != nil {
			log.Error("enqueue sweep failed", "mode", mode, "error", err)
			httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "could not queue sweep", err))
			return
		}
		log.Info("sweep queued", "mode", mode, "dry_run", req.DryRun, "actor", httpkit.ActorLabel(c))
		httpkit.Accepted(c, transport.SweepQueuedResponse{Mode: mode, DryRun: req.DryRun, Queued: true})
		return
	}

	log.Info("sweep started", "mode", mode, "dry_run", req.DryRun, "actor", httpkit.ActorLabel(c))
	stats, err := run(c.Request.Context(), decay.Options{DryRun: req.DryRun})
	if httpkit.HandleError(c, err) {
		return
	}

	httpkit.OK(c, stats)
}

func (h *Handler) RefreshRules(c *gin.Context) {
	set, err := h.rules.Refresh(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, apperr.Wrap(apperr.KindUnavailable, "scoring rules unavailable", err))
		return
	}

	h.log.WithContext(c.Request.Context()).Info("scoring rules refreshed",
		"rules", set.Size(), "actor", httpkit.ActorLabel(c))
	httpkit.OK(c, transport.RulesRefreshResponse{
		Demographic: len(set.Demographic),
		Behavioral:  len(set.Behavioral),
		Negative:    len(set.Negative),
		Thresholds:  len(set.Thresholds),
	})
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return uuid.Nil, false
	}
	return id, true
}

func toRecalculateResponse(result service.Result) transport.RecalculateResponse {
	return transport.RecalculateResponse{
		Score:     result.Score,
		Previous:  result.Previous,
		Changed:   result.Changed,
		Persisted: result.Persisted,
	}
}
