package ws

import (
	"encoding/json"

	socketio "github.com/googollee/go-socket.io"
)

const maxReplayEvents = 500

// handleRequestEvents replays missed events of a topic to one client.
// The client sends {topic, lastEventId}; events after lastEventId come
// back as "<topic>:replay". When the backlog is too large the client is
// told to refetch the full state over the REST API instead.
func handleRequestEvents(s socketio.Conn, data interface{}) {
	topic := ""
	var lastEventID int64
	if m, ok := data.(map[string]interface{}); ok {
		topic, _ = m["topic"].(string)
		if f, ok := m["lastEventId"].(float64); ok {
			lastEventID = int64(f)
		}
	}
	if topic != TopicRuns && topic != TopicNodes {
		s.Emit("error", map[string]interface{}{"message": "unknown topic"})
		return
	}

	events, err := GetIncrementalEvents(topic, lastEventID, maxReplayEvents)
	if err != nil || len(events) >= maxReplayEvents {
		s.Emit(topic+":resync", map[string]interface{}{"reason": "replay unavailable"})
		return
	}

	items := make([]map[string]interface{}, 0, len(events))
	for _, e := range events {
		var payload interface{}
		if err := json.Unmarshal([]byte(e.Payload), &payload); err != nil {
			continue
		}
		items = append(items, map[string]interface{}{
			"eventId": e.ID,
			"type":    e.EventType,
			"data":    payload,
		})
	}
	s.Emit(topic+":replay", map[string]interface{}{"events": items})
}
