package ptr

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ptrsync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/syncrun"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ws"
)

// SourceZonesRequest selects a node's source-zone listing
type SourceZonesRequest struct {
	NodeID       int  `form:"nodeId" binding:"required"`
	ForceRefresh bool `form:"forceRefresh"`
}

// PreviewRequest asks for a reconciliation plan of one forward zone
type PreviewRequest struct {
	NodeID           int    `json:"nodeId" binding:"required"`
	ZoneName         string `json:"zoneName" binding:"required"`
	IPv4PrefixLength int    `json:"ipv4PrefixLength"`
	IPv6PrefixLength int    `json:"ipv6PrefixLength"`
}

// ApplyRequest asks for a reconciliation run of one forward zone
type ApplyRequest struct {
	PreviewRequest
	ConflictPolicy            string            `json:"conflictPolicy"`
	DryRun                    bool              `json:"dryRun"`
	CatalogZoneName           string            `json:"catalogZoneName"`
	SourceHostnameResolutions map[string]string `json:"sourceHostnameResolutions"`
}

// ApplyResponse is the apply endpoint payload
type ApplyResponse struct {
	RunID    string                `json:"runId,omitempty"`
	Actions  []ptrsync.ApplyAction `json:"actions"`
	Summary  ptrsync.Summary       `json:"summary"`
	Warnings []string              `json:"warnings,omitempty"`
}

// RunsRequest filters the sync-run audit listing
type RunsRequest struct {
	NodeID int `form:"nodeId"`
	Limit  int `form:"limit"`
}

// Handler handles the PTR reconciliation API
type Handler struct {
	engine  *ptrsync.Service
	factory *nodes.ClientFactory
	logger  *logrus.Entry

	// seams, replaced in tests
	withClient     func(ctx context.Context, nodeID int, fn func(client ptrsync.ControlClient, nodeName string) error) error
	recordRun      func(ctx context.Context, nodeID int, params ptrsync.ApplyParams, result *ptrsync.ApplyResult) (*model.SyncRun, error)
	recordRejected func(ctx context.Context, nodeID int, params ptrsync.ApplyParams, cause error) (*model.SyncRun, error)
	publish        func(topic, eventType string, payload interface{}) error
}

// NewHandler creates the PTR handler
func NewHandler(engine *ptrsync.Service, factory *nodes.ClientFactory, logger *logrus.Entry) *Handler {
	h := &Handler{
		engine:         engine,
		factory:        factory,
		logger:         logger,
		recordRun:      syncrun.Record,
		recordRejected: syncrun.RecordRejected,
		publish:        ws.PublishEvent,
	}
	h.withClient = h.resolveAndRun
	return h
}

// resolveAndRun looks the node up and runs fn with its control client.
// Do retries once on a stale cached session.
func (h *Handler) resolveAndRun(ctx context.Context, nodeID int, fn func(ptrsync.ControlClient, string) error) error {
	node, err := nodes.Get(ctx, nodeID)
	if err != nil {
		return httpx.ErrNotFound(fmt.Sprintf("node %d not found", nodeID))
	}
	return h.factory.Do(ctx, node, func(c *technitium.Client) error {
		return fn(c, node.Name)
	})
}

// SourceZones handles GET /api/v1/ptr/source-zones
func (h *Handler) SourceZones(c *gin.Context) {
	var req SourceZonesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	var result *ptrsync.SourceZonesResult
	cacheKey := fmt.Sprintf("node:%d", req.NodeID)
	err := h.withClient(c.Request.Context(), req.NodeID, func(client ptrsync.ControlClient, _ string) error {
		var serr error
		result, serr = h.engine.ListSourceZones(c.Request.Context(), client, cacheKey, req.ForceRefresh)
		return serr
	})
	if err != nil {
		httpx.Fail(c, mapError(err))
		return
	}

	httpx.OK(c, result)
}

// Preview handles POST /api/v1/ptr/preview
func (h *Handler) Preview(c *gin.Context) {
	var req PreviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	var plan *ptrsync.Plan
	err := h.withClient(c.Request.Context(), req.NodeID, func(client ptrsync.ControlClient, _ string) error {
		var perr error
		plan, perr = h.engine.Preview(c.Request.Context(), client, req.ZoneName, ptrsync.PrefixOptions{
			IPv4PrefixLength: req.IPv4PrefixLength,
			IPv6PrefixLength: req.IPv6PrefixLength,
		})
		return perr
	})
	if err != nil {
		httpx.Fail(c, mapError(err))
		return
	}

	httpx.OK(c, plan)
}

// Apply handles POST /api/v1/ptr/apply
func (h *Handler) Apply(c *gin.Context) {
	var req ApplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	policy := ptrsync.ConflictPolicy(req.ConflictPolicy)
	switch policy {
	case "", ptrsync.ConflictPolicySkip:
		policy = ptrsync.ConflictPolicySkip
	case ptrsync.ConflictPolicyFail:
	default:
		httpx.Fail(c, httpx.ErrParamInvalid("conflictPolicy must be skip or fail"))
		return
	}

	params := ptrsync.ApplyParams{
		ZoneName: req.ZoneName,
		Prefixes: ptrsync.PrefixOptions{
			IPv4PrefixLength: req.IPv4PrefixLength,
			IPv6PrefixLength: req.IPv6PrefixLength,
		},
		ConflictPolicy:  policy,
		CatalogZoneName: req.CatalogZoneName,
		Resolutions:     req.SourceHostnameResolutions,
		DryRun:          req.DryRun,
	}

	ctx := c.Request.Context()
	var result *ptrsync.ApplyResult
	err := h.withClient(ctx, req.NodeID, func(client ptrsync.ControlClient, nodeName string) error {
		var aerr error
		result, aerr = h.engine.Apply(ctx, client, nodeName, params)
		return aerr
	})
	if err != nil {
		h.auditRejection(ctx, req.NodeID, params, err)
		httpx.Fail(c, mapError(err))
		return
	}

	response := ApplyResponse{
		Actions:  result.Actions,
		Summary:  result.Summary,
		Warnings: result.Warnings,
	}

	run, err := h.recordRun(ctx, req.NodeID, params, result)
	if err != nil {
		// The run already executed; losing the audit row is a warning,
		// not a failure of the apply itself.
		h.logger.WithError(err).Error("Failed to persist sync run")
		response.Warnings = append(response.Warnings, "audit record could not be persisted")
	} else {
		response.RunID = run.ID
		if perr := h.publish(ws.TopicRuns, "run-completed", gin.H{
			"runId":    run.ID,
			"nodeId":   req.NodeID,
			"zoneName": req.ZoneName,
			"dryRun":   req.DryRun,
			"status":   run.Status,
			"summary":  result.Summary,
		}); perr != nil {
			h.logger.WithError(perr).Warn("Failed to publish run event")
		}
	}

	httpx.OK(c, response)
}

// auditRejection keeps aborted runs in the audit trail. Only failures
// the engine rejected deliberately are recorded; transport errors are
// not runs.
func (h *Handler) auditRejection(ctx context.Context, nodeID int, params ptrsync.ApplyParams, cause error) {
	var verr *ptrsync.ValidationError
	var abort *ptrsync.ConflictAbortError
	if !errors.As(cause, &verr) && !errors.As(cause, &abort) {
		return
	}
	if _, err := h.recordRejected(ctx, nodeID, params, cause); err != nil {
		h.logger.WithError(err).Error("Failed to persist rejected sync run")
	}
}

// Runs handles GET /api/v1/ptr/runs
func (h *Handler) Runs(c *gin.Context) {
	var req RunsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	runs, err := syncrun.List(c.Request.Context(), req.NodeID, req.Limit)
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to list sync runs", err))
		return
	}
	httpx.OK(c, gin.H{"items": runs})
}

// Run handles GET /api/v1/ptr/runs/:id
func (h *Handler) Run(c *gin.Context) {
	id := c.Param("id")
	run, err := syncrun.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, syncrun.ErrNotFound) {
			httpx.Fail(c, httpx.ErrNotFound("sync run not found"))
			return
		}
		httpx.Fail(c, httpx.ErrDatabaseError("failed to fetch sync run", err))
		return
	}
	httpx.OK(c, run)
}

// mapError translates engine and upstream errors to API errors
func mapError(err error) error {
	var appErr *httpx.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var verr *ptrsync.ValidationError
	if errors.As(err, &verr) {
		return httpx.ErrParamInvalid(verr.Error())
	}
	var abort *ptrsync.ConflictAbortError
	if errors.As(err, &abort) {
		return httpx.ErrStateConflict(abort.Error())
	}
	var apiErr *technitium.APIError
	if errors.As(err, &apiErr) || errors.Is(err, technitium.ErrInvalidToken) {
		return httpx.ErrUpstreamError(err.Error(), err)
	}
	return httpx.ErrUpstreamError("DNS node request failed", err)
}
