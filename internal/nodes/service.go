package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/db"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"

	"gorm.io/gorm"
)

// ListItem represents a node in the list response
type ListItem struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	BaseURL         string `json:"baseUrl"`
	AuthMode        string `json:"authMode"`
	Enabled         bool   `json:"enabled"`
	Status          string `json:"status"`
	Version         string `json:"version,omitempty"`
	LastSeenAt      string `json:"lastSeenAt,omitempty"`
	HealthFailCount int    `json:"healthFailCount"`
	LastHealthError string `json:"lastHealthError,omitempty"`
}

// CreateParams represents parameters for registering a node
type CreateParams struct {
	Name     string
	BaseURL  string
	Username string
	Password string
	APIToken string
	Enabled  bool
}

// UpdateParams represents parameters for updating a node
type UpdateParams struct {
	ID       int
	Name     *string
	BaseURL  *string
	Username *string
	Password *string
	APIToken *string
	Enabled  *bool
}

// List returns all registered nodes
func List(ctx context.Context) ([]ListItem, error) {
	var nodes []model.Node
	if err := db.GetDB().Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch nodes: %w", err)
	}

	items := make([]ListItem, len(nodes))
	for i, n := range nodes {
		items[i] = toListItem(&n)
	}
	return items, nil
}

// Get returns one node by ID
func Get(ctx context.Context, id int) (*model.Node, error) {
	var node model.Node
	if err := db.GetDB().First(&node, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("node %d not found", id)
		}
		return nil, fmt.Errorf("failed to fetch node: %w", err)
	}
	return &node, nil
}

// Create registers a new node
func Create(ctx context.Context, params CreateParams) (*model.Node, error) {
	if strings.TrimSpace(params.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(params.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("baseUrl is required")
	}
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		return nil, fmt.Errorf("baseUrl must start with http:// or https://")
	}
	if params.APIToken == "" && (params.Username == "" || params.Password == "") {
		return nil, fmt.Errorf("either apiToken or username and password are required")
	}

	node := model.Node{
		Name:     params.Name,
		BaseURL:  baseURL,
		Username: params.Username,
		Password: params.Password,
		APIToken: params.APIToken,
		Enabled:  params.Enabled,
		Status:   model.NodeStatusUnknown,
	}
	if err := db.GetDB().Create(&node).Error; err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	return &node, nil
}

// Update modifies an existing node
func Update(ctx context.Context, params UpdateParams) error {
	var node model.Node
	if err := db.GetDB().First(&node, params.ID).Error; err != nil {
		return fmt.Errorf("node not found: %w", err)
	}

	updates := make(map[string]interface{})
	if params.Name != nil {
		if strings.TrimSpace(*params.Name) == "" {
			return fmt.Errorf("name cannot be empty")
		}
		updates["name"] = *params.Name
	}
	if params.BaseURL != nil {
		baseURL := strings.TrimRight(strings.TrimSpace(*params.BaseURL), "/")
		if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
			return fmt.Errorf("baseUrl must start with http:// or https://")
		}
		updates["base_url"] = baseURL
	}
	if params.Username != nil {
		updates["username"] = *params.Username
	}
	if params.Password != nil {
		updates["password"] = *params.Password
	}
	if params.APIToken != nil {
		updates["api_token"] = *params.APIToken
	}
	if params.Enabled != nil {
		updates["enabled"] = *params.Enabled
	}

	if len(updates) > 0 {
		if err := db.GetDB().Model(&node).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update node: %w", err)
		}
	}
	return nil
}

// Delete removes nodes by IDs
func Delete(ctx context.Context, ids []int) error {
	if len(ids) == 0 {
		return fmt.Errorf("no IDs provided")
	}
	if err := db.GetDB().Delete(&model.Node{}, ids).Error; err != nil {
		return fmt.Errorf("failed to delete nodes: %w", err)
	}
	return nil
}

// ListEnabled returns all enabled nodes, the working set for cluster
// wide operations.
func ListEnabled(ctx context.Context) ([]model.Node, error) {
	var nodes []model.Node
	if err := db.GetDB().Where("enabled = ?", true).Order("id").Find(&nodes).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch enabled nodes: %w", err)
	}
	return nodes, nil
}

func toListItem(n *model.Node) ListItem {
	item := ListItem{
		ID:              n.ID,
		Name:            n.Name,
		BaseURL:         n.BaseURL,
		AuthMode:        "token",
		Enabled:         n.Enabled,
		Status:          string(n.Status),
		Version:         n.Version,
		HealthFailCount: n.HealthFailCount,
		LastHealthError: n.LastHealthError,
	}
	if n.APIToken == "" {
		item.AuthMode = "password"
	}
	if n.LastSeenAt != nil {
		item.LastSeenAt = n.LastSeenAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return item
}
