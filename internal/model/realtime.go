package model

import "time"

// Realtime event names, client to server.
const (
	EventGetUnreadCount       = "get_unread_count"
	EventMarkNotificationRead = "mark_notification_read"
	EventBulkMarkRead         = "bulk_mark_read"
)

// Realtime event names, server to client.
const (
	EventConnected              = "connected"
	EventNewNotice              = "new_notice"
	EventUnreadCount            = "unread_count"
	EventNotificationMarkedRead = "notification_marked_read"
	EventBulkMarkedRead         = "bulk_marked_read"
	EventNoticeRetracted        = "notice_retracted"
	EventError                  = "error"
)

// NewNoticePayload is the data of a new_notice event.
type NewNoticePayload struct {
	NoticeID    int64     `json:"noticeId"`
	Title       string    `json:"title"`
	Content     string    `json:"content,omitempty"`
	Category    Category  `json:"category"`
	Priority    Priority  `json:"priority"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NoticeRefPayload carries a single notice id
// (notification_marked_read, notice_retracted).
type NoticeRefPayload struct {
	NoticeID int64 `json:"noticeId"`
}

// BulkMarkedReadPayload is the data of a bulk_marked_read event.
type BulkMarkedReadPayload struct {
	NoticeIDs []int64 `json:"noticeIds"`
	Marked    int64   `json:"marked"`
}

// ConnectedPayload is the data of the connected event.
type ConnectedPayload struct {
	UserID    int64     `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorPayload is the data of an error event.
type ErrorPayload struct {
	Message string `json:"message"`
}
