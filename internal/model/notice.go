package model

import (
	"time"
)

// Category classifies a notice and selects which preference toggle governs it.
type Category string

const (
	CategoryExam    Category = "EXAM"
	CategoryEvent   Category = "EVENT"
	CategoryHoliday Category = "HOLIDAY"
	CategoryGeneral Category = "GENERAL"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryExam, CategoryEvent, CategoryHoliday, CategoryGeneral:
		return true
	}
	return false
}

// Priority of a notice. Stored and forwarded, but alerting decisions are made on Category.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Role of a platform user.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleTeacher Role = "TEACHER"
	RoleAdmin   Role = "ADMIN"
)

// Roles lists every role that owns a realtime room.
var Roles = []Role{RoleStudent, RoleTeacher, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return true
	}
	return false
}

// NoticeTarget is the targeting descriptor of a notice.
// Nil fields are unconstrained; all nil means global. Set fields are ANDed.
type NoticeTarget struct {
	ClassID  *int64 `db:"class_id" json:"class_id,omitempty"`
	BatchID  *int64 `db:"batch_id" json:"batch_id,omitempty"`
	ModuleID *int64 `db:"module_id" json:"module_id,omitempty"`
	Role     *Role  `db:"target_role" json:"target_role,omitempty"`
}

// IsGlobal reports whether the target has no constraint at all.
func (t NoticeTarget) IsGlobal() bool {
	return !t.IsStructural() && t.Role == nil
}

// IsStructural reports whether a class, batch or module is targeted.
func (t NoticeTarget) IsStructural() bool {
	return t.ClassID != nil || t.BatchID != nil || t.ModuleID != nil
}

// AudienceRole is the role a notice is pushed to at publish time. Structural
// targets without an explicit role address students.
func (t NoticeTarget) AudienceRole() (Role, bool) {
	if t.Role != nil {
		return *t.Role, true
	}
	if t.IsStructural() {
		return RoleStudent, true
	}
	return "", false
}

// Matches reports whether a viewer with the given audience is addressed by t.
// Only an explicit role constrains the viewer. A structural target without one
// is visible to every current member, whatever their role; the implied
// student audience only scopes who is alerted at publish time.
func (t NoticeTarget) Matches(a Audience) bool {
	if t.Role != nil && *t.Role != a.Role {
		return false
	}
	if t.ClassID != nil && !containsID(a.ClassIDs, *t.ClassID) {
		return false
	}
	if t.BatchID != nil && (a.BatchID == nil || *a.BatchID != *t.BatchID) {
		return false
	}
	if t.ModuleID != nil && !containsID(a.ModuleIDs, *t.ModuleID) {
		return false
	}
	return true
}

// Audience is a viewer's current memberships, derived at query time.
type Audience struct {
	UserID    int64
	Role      Role
	ClassIDs  []int64
	BatchID   *int64
	ModuleIDs []int64
}

// Notice is a targeted announcement. Authored elsewhere; read-only here.
type Notice struct {
	ID       int64    `db:"id" json:"id"`
	Title    string   `db:"title" json:"title"`
	Content  string   `db:"content" json:"content"`
	Category Category `db:"category" json:"category"`
	Priority Priority `db:"priority" json:"priority"`
	NoticeTarget
	AuthorID    *int64     `db:"author_id" json:"author_id,omitempty"`
	PublishedAt time.Time  `db:"published_at" json:"published_at"`
	ExpiresAt   *time.Time `db:"expires_at" json:"expires_at,omitempty"`
	IsActive    bool       `db:"is_active" json:"-"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
}

// Visible reports whether the notice is active, published and not expired at now.
func (n *Notice) Visible(now time.Time) bool {
	if !n.IsActive || n.PublishedAt.After(now) {
		return false
	}
	return n.ExpiresAt == nil || n.ExpiresAt.After(now)
}

// InboxItem is a notice as seen by one user.
type InboxItem struct {
	Notice
	IsRead bool       `json:"is_read"`
	ReadAt *time.Time `json:"read_at,omitempty"`
}

// UnreadCount is the badge payload.
type UnreadCount struct {
	Unread int `json:"unread"`
	Total  int `json:"total"`
}

// NotificationStats is the stats endpoint payload.
type NotificationStats struct {
	Total  int `json:"total"`
	Read   int `json:"read"`
	Unread int `json:"unread"`
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
