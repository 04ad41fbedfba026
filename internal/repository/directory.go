package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"campusnotify/internal/model"
)

type directory struct {
	db *sqlx.DB
}

func NewDirectory(db *sqlx.DB) Directory {
	return &directory{db: db}
}

func (r *directory) ActiveUserIDs(ctx context.Context) ([]int64, error) {
	return r.selectIDs(ctx, "active users", `SELECT id FROM users WHERE is_active = true`)
}

func (r *directory) UsersByRole(ctx context.Context, role model.Role) ([]int64, error) {
	return r.selectIDs(ctx, "users by role", `
		SELECT id FROM users
		WHERE is_active = true AND role = $1
	`, string(role))
}

func (r *directory) ClassMembers(ctx context.Context, classID int64, role model.Role) ([]int64, error) {
	return r.selectIDs(ctx, "class members", `
		SELECT DISTINCT u.id
		FROM class_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.class_id = $1 AND cm.is_active = true
		  AND u.is_active = true AND u.role = $2
	`, classID, string(role))
}

func (r *directory) BatchMembers(ctx context.Context, batchID int64, role model.Role) ([]int64, error) {
	return r.selectIDs(ctx, "batch members", `
		SELECT id FROM users
		WHERE batch_id = $1 AND is_active = true AND role = $2
	`, batchID, string(role))
}

func (r *directory) ModuleMembers(ctx context.Context, moduleID int64, role model.Role) ([]int64, error) {
	return r.selectIDs(ctx, "module members", `
		SELECT DISTINCT u.id
		FROM module_enrollments me
		JOIN users u ON u.id = me.user_id
		WHERE me.module_id = $1 AND me.is_active = true
		  AND u.is_active = true AND u.role = $2
	`, moduleID, string(role))
}

func (r *directory) UserRole(ctx context.Context, userID int64) (model.Role, error) {
	var role string
	err := r.db.GetContext(ctx, &role, `SELECT role FROM users WHERE id = $1 AND is_active = true`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get user role: %w", err)
	}
	return model.Role(role), nil
}

func (r *directory) ClassIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.selectIDs(ctx, "classes for user", `
		SELECT class_id FROM class_members
		WHERE user_id = $1 AND is_active = true
	`, userID)
}

func (r *directory) BatchIDForUser(ctx context.Context, userID int64) (*int64, error) {
	var batchID sql.NullInt64
	err := r.db.GetContext(ctx, &batchID, `SELECT batch_id FROM users WHERE id = $1 AND is_active = true`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get batch for user: %w", err)
	}
	if !batchID.Valid {
		return nil, nil
	}
	id := batchID.Int64
	return &id, nil
}

func (r *directory) ModuleIDsForUser(ctx context.Context, userID int64) ([]int64, error) {
	return r.selectIDs(ctx, "modules for user", `
		SELECT module_id FROM module_enrollments
		WHERE user_id = $1 AND is_active = true
	`, userID)
}

func (r *directory) selectIDs(ctx context.Context, what, query string, args ...interface{}) ([]int64, error) {
	ids := []int64{}
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		return nil, fmt.Errorf("get %s: %w", what, err)
	}
	return ids, nil
}
