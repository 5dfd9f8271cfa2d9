package blocklists

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/blocklists"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
)

// ListRequest selects one list, optionally narrowed to a subtree
type ListRequest struct {
	Scope  string `form:"scope" binding:"required"`
	Domain string `form:"domain"`
}

// MutateRequest adds or removes one domain cluster-wide
type MutateRequest struct {
	Scope  string `json:"scope" binding:"required"`
	Domain string `json:"domain" binding:"required"`
}

// Handler handles the cluster-wide allow/block list API
type Handler struct {
	service *blocklists.Service
}

// NewHandler creates a new blocklists handler
func NewHandler(service *blocklists.Service) *Handler {
	return &Handler{service: service}
}

// List handles GET /api/v1/blocklists
func (h *Handler) List(c *gin.Context) {
	var req ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	scope, err := blocklists.ParseScope(req.Scope)
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	result, err := h.service.List(c.Request.Context(), scope, req.Domain)
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to list entries", err))
		return
	}
	httpx.OK(c, result)
}

// Add handles POST /api/v1/blocklists/add
func (h *Handler) Add(c *gin.Context) {
	h.mutate(c, h.service.Add)
}

// Remove handles POST /api/v1/blocklists/remove
func (h *Handler) Remove(c *gin.Context) {
	h.mutate(c, h.service.Remove)
}

func (h *Handler) mutate(c *gin.Context, fn func(ctx context.Context, scope blocklists.Scope, domain string) ([]blocklists.NodeOutcome, error)) {
	var req MutateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	scope, err := blocklists.ParseScope(req.Scope)
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	outcomes, err := fn(c.Request.Context(), scope, req.Domain)
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}
	httpx.OK(c, gin.H{"results": outcomes})
}
