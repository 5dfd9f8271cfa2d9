package model

import "time"

// NodeStatus represents the reachability of a DNS node
type NodeStatus string

const (
	NodeStatusOnline  NodeStatus = "online"
	NodeStatusOffline NodeStatus = "offline"
	NodeStatusUnknown NodeStatus = "unknown"
)

// Node represents a Technitium DNS server managed by the companion.
// Either APIToken or Username/Password must be set; a stored token is
// preferred and password login is the fallback.
type Node struct {
	BaseModel
	Name            string     `gorm:"type:varchar(128);uniqueIndex;not null" json:"name"`
	BaseURL         string     `gorm:"type:varchar(255);not null" json:"base_url"`
	Username        string     `gorm:"type:varchar(64)" json:"username,omitempty"`
	Password        string     `gorm:"type:varchar(255)" json:"-"`
	APIToken        string     `gorm:"type:varchar(255)" json:"-"`
	Enabled         bool       `gorm:"type:tinyint;default:1" json:"enabled"`
	Status          NodeStatus `gorm:"type:enum('online','offline','unknown');default:'unknown'" json:"status"`
	Version         string     `gorm:"type:varchar(32)" json:"version,omitempty"`
	LastSeenAt      *time.Time `json:"last_seen_at,omitempty"`
	HealthFailCount int        `gorm:"default:0" json:"health_fail_count"`
	LastHealthError string     `gorm:"type:varchar(512)" json:"last_health_error,omitempty"`
}

// TableName specifies the table name for Node model
func (Node) TableName() string {
	return "nodes"
}
