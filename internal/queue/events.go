package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"campusnotify/internal/model"
)

// Event types on the notice stream
const (
	EventNoticePublished = "notice_published"
	EventNoticeRetracted = "notice_retracted"
)

// Stream names
const (
	StreamNotices = "stream:notices"
)

// Consumer group name for fan-out workers
const (
	ConsumerGroupFanout = "notice_fanout"
)

// NoticeEvent is a message on the notice stream. The authoring side publishes
// one when a notice goes live or is withdrawn.
type NoticeEvent struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"` // Unix seconds

	NoticeID int64              `json:"notice_id"`
	Category model.Category     `json:"category,omitempty"`
	Priority model.Priority     `json:"priority,omitempty"`
	Target   model.NoticeTarget `json:"target"`
}

// NewNoticePublishedEvent builds the event that triggers a fan-out.
func NewNoticePublishedEvent(n model.NoticePublished) NoticeEvent {
	return NoticeEvent{
		Type:      EventNoticePublished,
		Timestamp: time.Now().Unix(),
		NoticeID:  n.NoticeID,
		Category:  n.Category,
		Priority:  n.Priority,
		Target:    n.Target,
	}
}

// NewNoticeRetractedEvent builds the event sent when a notice is withdrawn.
func NewNoticeRetractedEvent(noticeID int64) NoticeEvent {
	return NoticeEvent{
		Type:      EventNoticeRetracted,
		Timestamp: time.Now().Unix(),
		NoticeID:  noticeID,
	}
}

// Published returns the fan-out input carried by the event.
func (e NoticeEvent) Published() model.NoticePublished {
	return model.NoticePublished{
		NoticeID: e.NoticeID,
		Category: e.Category,
		Priority: e.Priority,
		Target:   e.Target,
	}
}

// ToMap converts the event to XADD field-value pairs; the payload is JSON in "data".
func (e NoticeEvent) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

// ParseNoticeEvent parses a NoticeEvent from Redis stream message values.
func ParseNoticeEvent(values map[string]interface{}) (NoticeEvent, error) {
	data, ok := values["data"].(string)
	if !ok {
		return NoticeEvent{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event NoticeEvent
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return NoticeEvent{}, fmt.Errorf("unmarshal event: %w", err)
	}
	if event.NoticeID <= 0 {
		return NoticeEvent{}, fmt.Errorf("event without notice_id")
	}
	return event, nil
}
