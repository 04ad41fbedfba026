package model

import "time"

// Delivery statuses.
const (
	DeliveryStatusDelivered = "delivered"
	DeliveryStatusFailed    = "failed"
)

// DeliveryRecord tracks one notice owed to one user. At most one per (NoticeID, UserID).
type DeliveryRecord struct {
	NoticeID       int64      `db:"notice_id" json:"notice_id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	DeliveryStatus string     `db:"delivery_status" json:"delivery_status"`
	DeliveredAt    time.Time  `db:"delivered_at" json:"delivered_at"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
}

// IsRead reports whether the record has been read.
func (d *DeliveryRecord) IsRead() bool {
	return d.ReadAt != nil
}

// MarkReadRequest is the body of a single mark-read call.
type MarkReadRequest struct {
	NoticeID int64 `json:"notice_id" validate:"required,gt=0"`
}

// BulkMarkReadRequest is the body of a bulk mark-read call.
type BulkMarkReadRequest struct {
	NoticeIDs []int64 `json:"notice_ids" validate:"required,min=1,max=500,dive,gt=0"`
}

// BulkMarkReadResult reports how many of the requested notices were marked.
// Marked < Requested means some ids were unknown, inactive or expired.
type BulkMarkReadResult struct {
	NoticeIDs []int64 `json:"notice_ids"`
	Requested int     `json:"requested"`
	Marked    int64   `json:"marked"`
}

// NoticePublished is the inbound event that triggers a fan-out.
type NoticePublished struct {
	NoticeID int64        `json:"notice_id"`
	Category Category     `json:"category"`
	Priority Priority     `json:"priority"`
	Target   NoticeTarget `json:"target"`
}

// FanoutReport summarises one fan-out run.
type FanoutReport struct {
	NoticeID      int64 `json:"notice_id"`
	Resolved      int   `json:"resolved"`
	Recorded      int64 `json:"recorded"`
	Alertable     int   `json:"alertable"`
	RealtimeSent  int   `json:"realtime_sent"`
	PushSucceeded int   `json:"push_succeeded"`
	PushFailed    int   `json:"push_failed"`
}
