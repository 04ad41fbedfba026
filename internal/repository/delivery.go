package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campusnotify/internal/model"
)

type deliveryRepository struct {
	db *sqlx.DB
}

func NewDeliveryRepository(db *sqlx.DB) DeliveryRepository {
	return &deliveryRepository{db: db}
}

// BulkEnsureDelivered inserts one delivered row per user in a single statement.
// Pairs that already exist are skipped by the primary key, so repeated or
// concurrent fan-outs of the same notice never fail and never duplicate.
func (r *deliveryRepository) BulkEnsureDelivered(ctx context.Context, noticeID int64, userIDs []int64) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO notice_deliveries (notice_id, user_id, delivery_status, delivered_at)
		SELECT $1, uid, $3, NOW()
		FROM unnest($2::bigint[]) AS uid
		ON CONFLICT (notice_id, user_id) DO NOTHING
	`
	res, err := r.db.ExecContext(ctx, query, noticeID, pq.Array(userIDs), model.DeliveryStatusDelivered)
	if err != nil {
		return 0, fmt.Errorf("bulk ensure delivered: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk ensure delivered rows: %w", err)
	}
	return inserted, nil
}

// visibleNotice restricts mark-read upserts to notices a user can still see.
const visibleNotice = `
	n.is_active = true
	AND n.published_at <= NOW()
	AND (n.expires_at IS NULL OR n.expires_at > NOW())`

// MarkRead creates a delivered+read row or stamps read_at on the existing one.
func (r *deliveryRepository) MarkRead(ctx context.Context, userID, noticeID int64) error {
	query := `
		INSERT INTO notice_deliveries (notice_id, user_id, delivery_status, delivered_at, read_at)
		SELECT n.id, $1, $3, NOW(), NOW()
		FROM notices n
		WHERE n.id = $2 AND ` + visibleNotice + `
		ON CONFLICT (notice_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
	`
	res, err := r.db.ExecContext(ctx, query, userID, noticeID, model.DeliveryStatusDelivered)
	if err != nil {
		return fmt.Errorf("mark notice read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark notice read rows: %w", err)
	}
	if n == 0 {
		return model.ErrNoticeNotFound
	}
	return nil
}

// BulkMarkRead marks every visible notice in noticeIDs. Unknown, inactive and
// expired ids are skipped; the returned count tells the caller how many stuck.
func (r *deliveryRepository) BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (int64, error) {
	if len(noticeIDs) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO notice_deliveries (notice_id, user_id, delivery_status, delivered_at, read_at)
		SELECT n.id, $1, $3, NOW(), NOW()
		FROM notices n
		WHERE n.id = ANY($2) AND ` + visibleNotice + `
		ON CONFLICT (notice_id, user_id) DO UPDATE SET read_at = EXCLUDED.read_at
	`
	res, err := r.db.ExecContext(ctx, query, userID, pq.Array(noticeIDs), model.DeliveryStatusDelivered)
	if err != nil {
		return 0, fmt.Errorf("bulk mark read: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("bulk mark read rows: %w", err)
	}
	return n, nil
}

func (r *deliveryRepository) ReadAt(ctx context.Context, userID int64, noticeIDs []int64) (map[int64]time.Time, error) {
	result := make(map[int64]time.Time)
	if len(noticeIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT notice_id, read_at
		FROM notice_deliveries
		WHERE user_id = $1 AND notice_id = ANY($2) AND read_at IS NOT NULL
	`
	type readRow struct {
		NoticeID int64     `db:"notice_id"`
		ReadAt   time.Time `db:"read_at"`
	}

	var rows []readRow
	if err := r.db.SelectContext(ctx, &rows, query, userID, pq.Array(noticeIDs)); err != nil {
		return nil, fmt.Errorf("get read state: %w", err)
	}
	for _, row := range rows {
		result[row.NoticeID] = row.ReadAt
	}
	return result, nil
}
