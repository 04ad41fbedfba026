package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campusnotify/internal/model"
)

const preferenceColumns = `
	user_id, in_app_enabled, push_enabled, email_enabled,
	exam_notifications, event_notifications, general_notifications,
	urgent_only, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
	created_at, updated_at`

type preferenceRepository struct {
	db *sqlx.DB
}

func NewPreferenceRepository(db *sqlx.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) GetByUserID(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = $1`

	var p model.NotificationPreference
	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrPreferenceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get notification preference: %w", err)
	}
	return &p, nil
}

func (r *preferenceRepository) GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*model.NotificationPreference, error) {
	result := make(map[int64]*model.NotificationPreference, len(userIDs))
	if len(userIDs) == 0 {
		return result, nil
	}

	query := `SELECT ` + preferenceColumns + ` FROM notification_preferences WHERE user_id = ANY($1)`

	var prefs []model.NotificationPreference
	if err := r.db.SelectContext(ctx, &prefs, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("get notification preferences: %w", err)
	}
	for i := range prefs {
		result[prefs[i].UserID] = &prefs[i]
	}
	return result, nil
}

// GetOrCreate inserts the default row if none exists, then reads it back.
// Concurrent first accesses race on the primary key, not on a read.
func (r *preferenceRepository) GetOrCreate(ctx context.Context, userID int64) (*model.NotificationPreference, error) {
	d := model.DefaultPreference(userID)
	query := `
		INSERT INTO notification_preferences (
			user_id, in_app_enabled, push_enabled, email_enabled,
			exam_notifications, event_notifications, general_notifications,
			urgent_only, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err := r.db.ExecContext(ctx, query,
		d.UserID, d.InAppEnabled, d.PushEnabled, d.EmailEnabled,
		d.ExamNotifications, d.EventNotifications, d.GeneralNotifications,
		d.UrgentOnly, d.QuietHoursEnabled, d.QuietHoursStart, d.QuietHoursEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("create default notification preference: %w", err)
	}
	return r.GetByUserID(ctx, userID)
}

func (r *preferenceRepository) Save(ctx context.Context, p *model.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences (
			user_id, in_app_enabled, push_enabled, email_enabled,
			exam_notifications, event_notifications, general_notifications,
			urgent_only, quiet_hours_enabled, quiet_hours_start, quiet_hours_end,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, NOW(), NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			in_app_enabled = EXCLUDED.in_app_enabled,
			push_enabled = EXCLUDED.push_enabled,
			email_enabled = EXCLUDED.email_enabled,
			exam_notifications = EXCLUDED.exam_notifications,
			event_notifications = EXCLUDED.event_notifications,
			general_notifications = EXCLUDED.general_notifications,
			urgent_only = EXCLUDED.urgent_only,
			quiet_hours_enabled = EXCLUDED.quiet_hours_enabled,
			quiet_hours_start = EXCLUDED.quiet_hours_start,
			quiet_hours_end = EXCLUDED.quiet_hours_end,
			updated_at = NOW()
		RETURNING created_at, updated_at
	`
	row := r.db.QueryRowxContext(ctx, query,
		p.UserID, p.InAppEnabled, p.PushEnabled, p.EmailEnabled,
		p.ExamNotifications, p.EventNotifications, p.GeneralNotifications,
		p.UrgentOnly, p.QuietHoursEnabled, p.QuietHoursStart, p.QuietHoursEnd,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		return fmt.Errorf("save notification preference: %w", err)
	}
	return nil
}
