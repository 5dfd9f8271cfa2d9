package model

import (
	"time"

	"gorm.io/datatypes"
)

// SyncRunStatus represents the state of a PTR synchronization run
type SyncRunStatus string

const (
	SyncRunStatusRunning   SyncRunStatus = "running"
	SyncRunStatusCompleted SyncRunStatus = "completed"
	SyncRunStatusFailed    SyncRunStatus = "failed"
)

// SyncRun is the audit record of one PTR reconciliation (preview or apply)
// against a node. Actions holds the executed action list as JSON.
type SyncRun struct {
	ID               string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	NodeID           int            `gorm:"index;not null" json:"node_id"`
	ZoneName         string         `gorm:"type:varchar(255);not null" json:"zone_name"`
	DryRun           bool           `gorm:"type:tinyint;default:0" json:"dry_run"`
	ConflictPolicy   string         `gorm:"type:varchar(16);default:'skip'" json:"conflict_policy"`
	Status           SyncRunStatus  `gorm:"type:enum('running','completed','failed');default:'running'" json:"status"`
	Actions          datatypes.JSON `json:"actions"`
	CreatedZones     int            `gorm:"default:0" json:"created_zones"`
	CreatedRecords   int            `gorm:"default:0" json:"created_records"`
	UpdatedRecords   int            `gorm:"default:0" json:"updated_records"`
	SkippedConflicts int            `gorm:"default:0" json:"skipped_conflicts"`
	Noops            int            `gorm:"default:0" json:"noops"`
	Errors           int            `gorm:"default:0" json:"errors"`
	ErrorMessage     string         `gorm:"type:varchar(1024)" json:"error_message,omitempty"`
	StartedAt        time.Time      `gorm:"autoCreateTime" json:"started_at"`
	FinishedAt       *time.Time     `json:"finished_at,omitempty"`
}

// TableName specifies the table name for SyncRun model
func (SyncRun) TableName() string {
	return "sync_runs"
}
