package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"campusnotify/internal/model"
)

const deviceTokenColumns = `
	id, user_id, token, platform, device_id, app_version,
	is_active, last_used, created_at, updated_at`

type deviceTokenRepository struct {
	db *sqlx.DB
}

func NewDeviceTokenRepository(db *sqlx.DB) DeviceTokenRepository {
	return &deviceTokenRepository{db: db}
}

// Upsert creates or updates a device token.
// If the token already exists it is reassigned to userID, its metadata is
// refreshed and it is reactivated; the row is never duplicated.
func (r *deviceTokenRepository) Upsert(ctx context.Context, userID int64, req *model.RegisterTokenRequest) (*model.DeviceToken, error) {
	query := `
		INSERT INTO device_tokens (user_id, token, platform, device_id, app_version, is_active, last_used, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, true, NOW(), NOW(), NOW())
		ON CONFLICT (token) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			platform = EXCLUDED.platform,
			device_id = COALESCE(EXCLUDED.device_id, device_tokens.device_id),
			app_version = COALESCE(EXCLUDED.app_version, device_tokens.app_version),
			is_active = true,
			last_used = NOW(),
			updated_at = NOW()
		RETURNING ` + deviceTokenColumns

	var t model.DeviceToken
	err := r.db.GetContext(ctx, &t, query, userID, req.Token, req.Platform, req.DeviceID, req.AppVersion)
	if err != nil {
		return nil, fmt.Errorf("upsert device token: %w", err)
	}
	return &t, nil
}

func (r *deviceTokenRepository) ListByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	query := `
		SELECT ` + deviceTokenColumns + `
		FROM device_tokens
		WHERE user_id = $1
		ORDER BY updated_at DESC
	`
	tokens := []model.DeviceToken{}
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("get device tokens: %w", err)
	}
	return tokens, nil
}

func (r *deviceTokenRepository) ActiveTokensForUsers(ctx context.Context, userIDs []int64) ([]model.DeviceToken, error) {
	tokens := []model.DeviceToken{}
	if len(userIDs) == 0 {
		return tokens, nil
	}

	query := `
		SELECT ` + deviceTokenColumns + `
		FROM device_tokens
		WHERE user_id = ANY($1) AND is_active = true
	`
	if err := r.db.SelectContext(ctx, &tokens, query, pq.Array(userIDs)); err != nil {
		return nil, fmt.Errorf("get active device tokens: %w", err)
	}
	return tokens, nil
}

// Deactivate retires one of the caller's own tokens (explicit unregister).
func (r *deviceTokenRepository) Deactivate(ctx context.Context, userID int64, token string) error {
	query := `
		UPDATE device_tokens
		SET is_active = false, updated_at = NOW()
		WHERE token = $1 AND user_id = $2
	`
	res, err := r.db.ExecContext(ctx, query, token, userID)
	if err != nil {
		return fmt.Errorf("deactivate device token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate device token rows: %w", err)
	}
	if n == 0 {
		return model.ErrTokenNotFound
	}
	return nil
}

// DeactivateTokens retires tokens the push provider reported as permanently invalid.
func (r *deviceTokenRepository) DeactivateTokens(ctx context.Context, tokens []string) (int64, error) {
	if len(tokens) == 0 {
		return 0, nil
	}

	query := `
		UPDATE device_tokens
		SET is_active = false, updated_at = NOW()
		WHERE token = ANY($1) AND is_active = true
	`
	res, err := r.db.ExecContext(ctx, query, pq.Array(tokens))
	if err != nil {
		return 0, fmt.Errorf("deactivate device tokens: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("deactivate device tokens rows: %w", err)
	}
	return n, nil
}

func (r *deviceTokenRepository) TouchTokens(ctx context.Context, tokens []string) error {
	if len(tokens) == 0 {
		return nil
	}

	query := `UPDATE device_tokens SET last_used = NOW() WHERE token = ANY($1)`
	if _, err := r.db.ExecContext(ctx, query, pq.Array(tokens)); err != nil {
		return fmt.Errorf("touch device tokens: %w", err)
	}
	return nil
}
