package querylogs

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/querylog"
)

// QueryRequest selects one node's query log page
type QueryRequest struct {
	NodeID int `form:"nodeId" binding:"required"`
	querylog.Request
}

// StatsRequest selects one node's query log aggregates
type StatsRequest struct {
	NodeID     int `form:"nodeId" binding:"required"`
	SampleSize int `form:"sample"`
}

// Handler handles the query log API
type Handler struct {
	service *querylog.Service
}

// NewHandler creates a new query log handler
func NewHandler(service *querylog.Service) *Handler {
	return &Handler{service: service}
}

func resolveNode(c *gin.Context, nodeID int) (*model.Node, bool) {
	node, err := nodes.Get(c.Request.Context(), nodeID)
	if err != nil {
		httpx.Fail(c, httpx.ErrNotFound(fmt.Sprintf("node %d not found", nodeID)))
		return nil, false
	}
	return node, true
}

// Query handles GET /api/v1/querylogs
func (h *Handler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	node, ok := resolveNode(c, req.NodeID)
	if !ok {
		return
	}

	page, err := h.service.Query(c.Request.Context(), node, req.Request)
	if err != nil {
		httpx.Fail(c, httpx.ErrUpstreamError(err.Error(), err))
		return
	}
	httpx.OK(c, page)
}

// Stats handles GET /api/v1/querylogs/stats
func (h *Handler) Stats(c *gin.Context) {
	var req StatsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	node, ok := resolveNode(c, req.NodeID)
	if !ok {
		return
	}

	stats, err := h.service.Stats(c.Request.Context(), node, req.SampleSize)
	if err != nil {
		httpx.Fail(c, httpx.ErrUpstreamError(err.Error(), err))
		return
	}
	httpx.OK(c, stats)
}
