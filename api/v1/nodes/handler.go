package nodes

import (
	"github.com/gin-gonic/gin"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/httpx"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/nodes"
)

// CreateRequest represents a node registration request
type CreateRequest struct {
	Name     string `json:"name" binding:"required"`
	BaseURL  string `json:"baseUrl" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
	APIToken string `json:"apiToken"`
	Enabled  *bool  `json:"enabled"`
}

// UpdateRequest represents a node update request
type UpdateRequest struct {
	ID       int     `json:"id" binding:"required"`
	Name     *string `json:"name"`
	BaseURL  *string `json:"baseUrl"`
	Username *string `json:"username"`
	Password *string `json:"password"`
	APIToken *string `json:"apiToken"`
	Enabled  *bool   `json:"enabled"`
}

// DeleteRequest represents a node delete request
type DeleteRequest struct {
	IDs []int `json:"ids" binding:"required,min=1"`
}

// CheckRequest represents an immediate health check request
type CheckRequest struct {
	IDs []int `json:"ids" binding:"required,min=1"`
}

// Handler handles the node registry API
type Handler struct {
	health *nodes.HealthWorker
}

// NewHandler creates a new nodes handler. health may be nil when the
// health worker is disabled; the check endpoint then rejects requests.
func NewHandler(health *nodes.HealthWorker) *Handler {
	return &Handler{health: health}
}

// List handles GET /api/v1/nodes
func (h *Handler) List(c *gin.Context) {
	items, err := nodes.List(c.Request.Context())
	if err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to list nodes", err))
		return
	}
	httpx.OK(c, gin.H{"items": items})
}

// Create handles POST /api/v1/nodes/create
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	node, err := nodes.Create(c.Request.Context(), nodes.CreateParams{
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		Username: req.Username,
		Password: req.Password,
		APIToken: req.APIToken,
		Enabled:  enabled,
	})
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	httpx.OK(c, gin.H{"id": node.ID, "name": node.Name})
}

// Update handles POST /api/v1/nodes/update
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	err := nodes.Update(c.Request.Context(), nodes.UpdateParams{
		ID:       req.ID,
		Name:     req.Name,
		BaseURL:  req.BaseURL,
		Username: req.Username,
		Password: req.Password,
		APIToken: req.APIToken,
		Enabled:  req.Enabled,
	})
	if err != nil {
		httpx.Fail(c, httpx.ErrParamInvalid(err.Error()))
		return
	}

	httpx.OK(c, gin.H{"id": req.ID})
}

// Delete handles POST /api/v1/nodes/delete
func (h *Handler) Delete(c *gin.Context) {
	var req DeleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	if err := nodes.Delete(c.Request.Context(), req.IDs); err != nil {
		httpx.Fail(c, httpx.ErrDatabaseError("failed to delete nodes", err))
		return
	}

	httpx.OK(c, gin.H{"deleted": len(req.IDs)})
}

// Check handles POST /api/v1/nodes/check
func (h *Handler) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpx.Fail(c, httpx.ErrParamMissing(err.Error()))
		return
	}

	if h.health == nil {
		httpx.Fail(c, httpx.ErrStateConflict("health worker is disabled"))
		return
	}

	results := h.health.CheckNodes(req.IDs)
	httpx.OK(c, gin.H{"results": results})
}
