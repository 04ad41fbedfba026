package repository

import (
	"context"
	"time"

	"campusnotify/internal/model"
)

// Directory is the read-only gateway onto the platform's user, class, batch
// and module tables. Unknown ids yield empty results, never errors.
type Directory interface {
	// ActiveUserIDs returns every active user.
	ActiveUserIDs(ctx context.Context) ([]int64, error)
	// UsersByRole returns active users with the given role.
	UsersByRole(ctx context.Context, role model.Role) ([]int64, error)
	// ClassMembers returns active users of role with an active membership in the class.
	ClassMembers(ctx context.Context, classID int64, role model.Role) ([]int64, error)
	// BatchMembers returns active users of role whose batch is batchID.
	BatchMembers(ctx context.Context, batchID int64, role model.Role) ([]int64, error)
	// ModuleMembers returns active users of role with an active enrollment in the module.
	ModuleMembers(ctx context.Context, moduleID int64, role model.Role) ([]int64, error)

	// UserRole returns the role of an active user.
	UserRole(ctx context.Context, userID int64) (model.Role, error)
	// ClassIDsForUser returns the classes the user is currently an active member of.
	ClassIDsForUser(ctx context.Context, userID int64) ([]int64, error)
	// BatchIDForUser returns the user's batch, nil when unassigned.
	BatchIDForUser(ctx context.Context, userID int64) (*int64, error)
	// ModuleIDsForUser returns the modules the user is actively enrolled in.
	ModuleIDsForUser(ctx context.Context, userID int64) ([]int64, error)
}

type NoticeRepository interface {
	// GetByID returns a notice regardless of its visibility.
	GetByID(ctx context.Context, id int64) (*model.Notice, error)
	// ListVisibleFor returns notices visible at now whose structural target
	// could address the audience. Callers apply NoticeTarget.Matches.
	ListVisibleFor(ctx context.Context, audience model.Audience, now time.Time) ([]model.Notice, error)
}

// DeliveryRepository is the Delivery Ledger store. Every write is a keyed upsert.
type DeliveryRepository interface {
	// BulkEnsureDelivered inserts a delivered record per user; existing pairs are skipped.
	BulkEnsureDelivered(ctx context.Context, noticeID int64, userIDs []int64) (int64, error)
	// MarkRead upserts a read record; ErrNoticeNotFound if the notice is not visible.
	MarkRead(ctx context.Context, userID, noticeID int64) error
	// BulkMarkRead upserts read records for the visible subset of noticeIDs.
	BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (int64, error)
	// ReadAt returns read timestamps for the given notices that the user has read.
	ReadAt(ctx context.Context, userID int64, noticeIDs []int64) (map[int64]time.Time, error)
}

type PreferenceRepository interface {
	// GetByUserID returns ErrPreferenceNotFound when the user has no row.
	GetByUserID(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	// GetByUserIDs returns the rows that exist, keyed by user.
	GetByUserIDs(ctx context.Context, userIDs []int64) (map[int64]*model.NotificationPreference, error)
	// GetOrCreate returns the user's row, inserting defaults first if missing.
	GetOrCreate(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	// Save writes every field of pref.
	Save(ctx context.Context, pref *model.NotificationPreference) error
}

type DeviceTokenRepository interface {
	// Upsert creates or refreshes a token; an existing token moves to userID and reactivates.
	Upsert(ctx context.Context, userID int64, req *model.RegisterTokenRequest) (*model.DeviceToken, error)
	// ListByUserID returns all of a user's tokens, active or not.
	ListByUserID(ctx context.Context, userID int64) ([]model.DeviceToken, error)
	// ActiveTokensForUsers returns active tokens owned by any of userIDs.
	ActiveTokensForUsers(ctx context.Context, userIDs []int64) ([]model.DeviceToken, error)
	// Deactivate marks one of the user's tokens inactive; ErrTokenNotFound if not theirs.
	Deactivate(ctx context.Context, userID int64, token string) error
	// DeactivateTokens marks tokens inactive regardless of owner.
	DeactivateTokens(ctx context.Context, tokens []string) (int64, error)
	// TouchTokens refreshes last_used for tokens that accepted a push.
	TouchTokens(ctx context.Context, tokens []string) error
}
