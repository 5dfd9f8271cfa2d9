package zones

import (
	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/zones"
)

// Handler handles the aggregated zone view API
type Handler struct {
	service *zones.Service
}

// NewHandler creates a new zones handler
func NewHandler(service *zones.Service) *Handler {
	return &Handler{service: service}
}

// Overview handles GET /api/v1/zones/overview
func (h *Handler) Overview(c *gin.Context) {
	overview, err := h.service.Overview(c.Request.Context())
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to build zone overview", err))
		return
	}
	httpx.OK(c, overview)
}
