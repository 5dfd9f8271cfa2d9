package certs

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/acme"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
)

// ObtainRequest asks for a certificate, answering the DNS-01 challenge
// through the chosen node.
type ObtainRequest struct {
	NodeID  int      `json:"nodeId" binding:"required"`
	Domains []string `json:"domains" binding:"required,min=1"`
}

// Handler handles the ACME certificate API
type Handler struct {
	service *acme.Service
	factory *nodes.ClientFactory
}

// NewHandler creates a new certs handler
func NewHandler(service *acme.Service, factory *nodes.ClientFactory) *Handler {
	return &Handler{service: service, factory: factory}
}

// Obtain handles POST /api/v1/certs/obtain
func (h *Handler) Obtain(c *gin.Context) {
	var req ObtainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	ctx := c.Request.Context()
	node, err := nodes.Get(ctx, req.NodeID)
	if err != nil {
		httpx.Fail(c, httpx.ErrNotFound(fmt.Sprintf("node %d not found", req.NodeID)))
		return
	}

	var result *acme.Result
	err = h.factory.Do(ctx, node, func(client *technitium.Client) error {
		var oerr error
		result, oerr = h.service.Obtain(ctx, client, req.Domains)
		return oerr
	})
	if err != nil {
		httpx.Fail(c, httpx.ErrUpstreamError(err.Error(), err))
		return
	}

	httpx.OK(c, result)
}
