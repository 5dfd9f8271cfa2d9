package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/db"
	"github.com/Fail-Safe/Technitium-DNS-Companion-sub002/internal/model"
)

// Event topics the companion emits
const (
	TopicRuns  = "runs"  // PTR sync run lifecycle
	TopicNodes = "nodes" // node status transitions
)

// PublishEvent stores an event for replay and broadcasts it as
// "<topic>:update". A broadcast-only failure does not fail the publish;
// clients recover through the replay buffer.
func PublishEvent(topic, eventType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	event := model.WSEvent{
		Topic:     topic,
		EventType: eventType,
		Payload:   string(data),
	}
	if err := db.GetDB().Create(&event).Error; err != nil {
		return fmt.Errorf("failed to store event: %w", err)
	}

	BroadcastToAll(topic+":update", map[string]interface{}{
		"eventId": event.ID,
		"type":    eventType,
		"data":    payload,
	})
	return nil
}

// GetIncrementalEvents returns stored events of a topic after
// lastEventID, oldest first, capped at maxCount.
func GetIncrementalEvents(topic string, lastEventID int64, maxCount int) ([]model.WSEvent, error) {
	var events []model.WSEvent
	err := db.GetDB().
		Where("topic = ? AND id > ?", topic, lastEventID).
		Order("id ASC").
		Limit(maxCount).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	return events, nil
}

// GetLatestEventID returns the newest stored event ID of a topic, 0
// when the topic has no events yet.
func GetLatestEventID(topic string) (int64, error) {
	var event model.WSEvent
	err := db.GetDB().
		Where("topic = ?", topic).
		Order("id DESC").
		First(&event).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to query latest event: %w", err)
	}
	return event.ID, nil
}
