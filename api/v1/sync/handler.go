package sync

import (
	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/clustersync"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
)

// DiffRequest compares one zone between a source node and targets
type DiffRequest struct {
	ZoneName      string `json:"zoneName" binding:"required"`
	SourceNodeID  int    `json:"sourceNodeId" binding:"required"`
	TargetNodeIDs []int  `json:"targetNodeIds" binding:"required,min=1"`
}

// Handler handles the cross-node record tools
type Handler struct {
	service *clustersync.Service
}

// NewHandler creates a new cluster sync handler
func NewHandler(service *clustersync.Service) *Handler {
	return &Handler{service: service}
}

// Diff handles POST /api/v1/sync/diff
func (h *Handler) Diff(c *gin.Context) {
	var req DiffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	result, err := h.service.Diff(c.Request.Context(), req.ZoneName, req.SourceNodeID, req.TargetNodeIDs)
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}
	httpx.OK(c, result)
}

// Push handles POST /api/v1/sync/push
func (h *Handler) Push(c *gin.Context) {
	var req DiffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	result, err := h.service.Push(c.Request.Context(), req.ZoneName, req.SourceNodeID, req.TargetNodeIDs)
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}
	httpx.OK(c, result)
}
