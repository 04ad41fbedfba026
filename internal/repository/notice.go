package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campusnotify/internal/model"
)

const noticeColumns = `
	id, title, content, category, priority,
	class_id, batch_id, module_id, target_role, author_id,
	published_at, expires_at, is_active, created_at`

type noticeRepository struct {
	db *sqlx.DB
}

func NewNoticeRepository(db *sqlx.DB) NoticeRepository {
	return &noticeRepository{db: db}
}

func (r *noticeRepository) GetByID(ctx context.Context, id int64) (*model.Notice, error) {
	query := `SELECT ` + noticeColumns + ` FROM notices WHERE id = $1`

	var n model.Notice
	err := r.db.GetContext(ctx, &n, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrNoticeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notice: %w", err)
	}
	return &n, nil
}

// ListVisibleFor prefilters on the structural axes the audience belongs to.
// Final matching is done by the caller with NoticeTarget.Matches.
func (r *noticeRepository) ListVisibleFor(ctx context.Context, audience model.Audience, now time.Time) ([]model.Notice, error) {
	query := `SELECT ` + noticeColumns + `
		FROM notices
		WHERE is_active = true
		  AND published_at <= $1
		  AND (expires_at IS NULL OR expires_at > $1)
		  AND (class_id IS NULL OR class_id = ANY($2))
		  AND (batch_id IS NULL OR batch_id = $3)
		  AND (module_id IS NULL OR module_id = ANY($4))
		  AND (target_role IS NULL OR target_role = $5)
		ORDER BY published_at DESC, id DESC
	`

	notices := []model.Notice{}
	err := r.db.SelectContext(ctx, &notices, query,
		now,
		pq.Array(nonNil(audience.ClassIDs)),
		audience.BatchID,
		pq.Array(nonNil(audience.ModuleIDs)),
		string(audience.Role),
	)
	if err != nil {
		return nil, fmt.Errorf("list visible notices: %w", err)
	}
	return notices, nil
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
