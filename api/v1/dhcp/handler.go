package dhcp

import (
	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/dhcp"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
)

// Handler handles the merged DHCP views
type Handler struct {
	service *dhcp.Service
}

// NewHandler creates a new DHCP handler
func NewHandler(service *dhcp.Service) *Handler {
	return &Handler{service: service}
}

// Scopes handles GET /api/v1/dhcp/scopes
func (h *Handler) Scopes(c *gin.Context) {
	result, err := h.service.Scopes(c.Request.Context())
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to list DHCP scopes", err))
		return
	}
	httpx.OK(c, result)
}

// Leases handles GET /api/v1/dhcp/leases
func (h *Handler) Leases(c *gin.Context) {
	result, err := h.service.Leases(c.Request.Context())
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to list DHCP leases", err))
		return
	}
	httpx.OK(c, result)
}
