package syncrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/db"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ptrsync"
)

// ErrNotFound is returned when a run ID does not exist
var ErrNotFound = errors.New("sync run not found")

// Record persists the audit row for one completed apply run. Dry runs
// are persisted too, flagged as such.
func Record(ctx context.Context, nodeID int, params ptrsync.ApplyParams, result *ptrsync.ApplyResult) (*model.SyncRun, error) {
	actions, err := json.Marshal(result.Actions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode actions: %w", err)
	}

	now := time.Now()
	run := model.SyncRun{
		ID:               uuid.NewString(),
		NodeID:           nodeID,
		ZoneName:         params.ZoneName,
		DryRun:           params.DryRun,
		ConflictPolicy:   string(params.ConflictPolicy),
		Status:           model.SyncRunStatusCompleted,
		Actions:          actions,
		CreatedZones:     result.Summary.CreatedZones,
		CreatedRecords:   result.Summary.CreatedRecords,
		UpdatedRecords:   result.Summary.UpdatedRecords,
		SkippedConflicts: result.Summary.SkippedConflicts,
		Noops:            result.Summary.Noops,
		Errors:           result.Summary.Errors,
		FinishedAt:       &now,
	}
	if result.Summary.Errors > 0 {
		run.Status = model.SyncRunStatusFailed
	}

	if err := db.GetDB().WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to persist sync run: %w", err)
	}
	return &run, nil
}

// RecordRejected persists a run that never got past validation, keeping
// the audit trail complete for conflict-policy aborts.
func RecordRejected(ctx context.Context, nodeID int, params ptrsync.ApplyParams, cause error) (*model.SyncRun, error) {
	now := time.Now()
	run := model.SyncRun{
		ID:             uuid.NewString(),
		NodeID:         nodeID,
		ZoneName:       params.ZoneName,
		DryRun:         params.DryRun,
		ConflictPolicy: string(params.ConflictPolicy),
		Status:         model.SyncRunStatusFailed,
		Actions:        []byte("[]"),
		ErrorMessage:   truncate(cause.Error(), 1024),
		FinishedAt:     &now,
	}
	if err := db.GetDB().WithContext(ctx).Create(&run).Error; err != nil {
		return nil, fmt.Errorf("failed to persist sync run: %w", err)
	}
	return &run, nil
}

// List returns the most recent runs, newest first
func List(ctx context.Context, nodeID, limit int) ([]model.SyncRun, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := db.GetDB().WithContext(ctx).Order("started_at DESC").Limit(limit)
	if nodeID > 0 {
		query = query.Where("node_id = ?", nodeID)
	}
	var runs []model.SyncRun
	if err := query.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch sync runs: %w", err)
	}
	return runs, nil
}

// Get returns one run by ID
func Get(ctx context.Context, id string) (*model.SyncRun, error) {
	var run model.SyncRun
	if err := db.GetDB().WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to fetch sync run: %w", err)
	}
	return &run, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
