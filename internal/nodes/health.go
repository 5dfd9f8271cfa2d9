package nodes

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/technitium"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/ws"
)

// HealthWorker periodically probes every enabled node's API
type HealthWorker struct {
	ctx                  context.Context
	cancel               context.CancelFunc
	db                   *gorm.DB
	factory              *ClientFactory
	logger               *logrus.Entry
	interval             time.Duration
	offlineFailThreshold int
	concurrency          int
}

// HealthConfig holds the configuration for the health worker
type HealthConfig struct {
	DB                   *gorm.DB
	Factory              *ClientFactory
	Logger               *logrus.Entry
	IntervalSec          int
	OfflineFailThreshold int
	Concurrency          int
}

// CheckResult holds the result of a single manual health check
type CheckResult struct {
	NodeID     int    `json:"nodeId"`
	OK         bool   `json:"ok"`
	Status     string `json:"status"`
	LastSeenAt string `json:"lastSeenAt,omitempty"`
	Error      string `json:"error,omitempty"`
}

// NewHealthWorker creates a health worker
func NewHealthWorker(cfg *HealthConfig) *HealthWorker {
	ctx, cancel := context.WithCancel(context.Background())
	return &HealthWorker{
		ctx:                  ctx,
		cancel:               cancel,
		db:                   cfg.DB,
		factory:              cfg.Factory,
		logger:               cfg.Logger,
		interval:             time.Duration(cfg.IntervalSec) * time.Second,
		offlineFailThreshold: cfg.OfflineFailThreshold,
		concurrency:          cfg.Concurrency,
	}
}

// Start begins the periodic health checks
func (w *HealthWorker) Start() {
	w.logger.Info("Starting node health worker...")
	ticker := time.NewTicker(w.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.runHealthChecks()
			case <-w.ctx.Done():
				w.logger.Info("Stopping node health worker...")
				return
			}
		}
	}()
}

// Stop gracefully stops the worker
func (w *HealthWorker) Stop() {
	w.cancel()
}

func (w *HealthWorker) runHealthChecks() {
	var nodes []model.Node
	if err := w.db.Where("enabled = ?", true).Find(&nodes).Error; err != nil {
		w.logger.Errorf("Failed to fetch nodes for health check: %v", err)
		return
	}
	if len(nodes) == 0 {
		return
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, w.concurrency)

	for _, node := range nodes {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(n model.Node) {
			defer wg.Done()
			defer func() { <-semaphore }()
			w.checkNode(&n)
		}(node)
	}

	wg.Wait()
}

// checkNode probes the node with a cheap authenticated API call. A
// password-auth node exercises its session refresh path here too.
func (w *HealthWorker) checkNode(node *model.Node) {
	err := w.factory.Do(w.ctx, node, func(c *technitium.Client) error {
		_, err := c.ListZones(w.ctx)
		return err
	})
	if err != nil {
		w.handleFailure(node, err)
		return
	}
	w.handleSuccess(node)
}

func (w *HealthWorker) handleSuccess(node *model.Node) {
	updates := map[string]interface{}{
		"last_seen_at":      time.Now(),
		"last_health_error": "",
		"health_fail_count": 0,
		"status":            model.NodeStatusOnline,
	}
	if v := w.factory.Version(node.ID); v != "" && v != node.Version {
		updates["version"] = v
	}

	if err := w.db.Model(node).Updates(updates).Error; err != nil {
		w.logger.Errorf("Failed to update node %d on success: %v", node.ID, err)
	}

	if node.Status != model.NodeStatusOnline {
		w.publishStatus(node, model.NodeStatusOnline)
	}
}

func (w *HealthWorker) handleFailure(node *model.Node, err error) {
	errorMsg := err.Error()
	if len(errorMsg) > 512 {
		errorMsg = errorMsg[:512]
	}

	newFailCount := node.HealthFailCount + 1
	updates := map[string]interface{}{
		"last_health_error": errorMsg,
		"health_fail_count": newFailCount,
	}
	if newFailCount >= w.offlineFailThreshold {
		updates["status"] = model.NodeStatusOffline
	}

	if err := w.db.Model(node).Updates(updates).Error; err != nil {
		w.logger.Errorf("Failed to update node %d on failure: %v", node.ID, err)
	}

	if newFailCount >= w.offlineFailThreshold && node.Status != model.NodeStatusOffline {
		w.publishStatus(node, model.NodeStatusOffline)
	}
}

// publishStatus pushes a node status transition to connected clients
func (w *HealthWorker) publishStatus(node *model.Node, status model.NodeStatus) {
	err := ws.PublishEvent(ws.TopicNodes, "node-status", map[string]interface{}{
		"nodeId": node.ID,
		"name":   node.Name,
		"status": status,
	})
	if err != nil {
		w.logger.Warnf("Failed to publish status event for node %d: %v", node.ID, err)
	}
}

// CheckNodes performs an immediate health check on a list of nodes
func (w *HealthWorker) CheckNodes(nodeIDs []int) []CheckResult {
	var nodes []model.Node
	if err := w.db.Where("id IN ?", nodeIDs).Find(&nodes).Error; err != nil {
		w.logger.Errorf("Failed to fetch nodes for manual check: %v", err)
		return nil
	}

	results := make([]CheckResult, 0, len(nodes))
	var wg sync.WaitGroup
	resultChan := make(chan CheckResult, len(nodes))

	for _, node := range nodes {
		wg.Add(1)
		go func(n model.Node) {
			defer wg.Done()
			w.checkNode(&n)

			// Re-fetch to report the updated status
			var updated model.Node
			if err := w.db.First(&updated, n.ID).Error; err != nil {
				w.logger.Errorf("Failed to re-fetch node %d: %v", n.ID, err)
				return
			}

			result := CheckResult{
				NodeID: updated.ID,
				Status: string(updated.Status),
				Error:  updated.LastHealthError,
			}
			result.OK = result.Error == ""
			if updated.LastSeenAt != nil {
				result.LastSeenAt = updated.LastSeenAt.Format("2006-01-02T15:04:05Z07:00")
			}
			resultChan <- result
		}(node)
	}

	wg.Wait()
	close(resultChan)

	for res := range resultChan {
		results = append(results, res)
	}
	return results
}
