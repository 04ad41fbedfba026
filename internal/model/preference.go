package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day in minutes since midnight (0..1439).
// "HH:mm" only exists at the storage and API boundaries.
type ClockTime int

// ParseClockTime parses "HH:mm" (a trailing ":ss" is accepted and ignored).
// Every part must be exactly two digits.
func ParseClockTime(s string) (ClockTime, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	h, ok := twoDigits(parts[0])
	if !ok || h > 23 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	m, ok := twoDigits(parts[1])
	if !ok || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
	}
	if len(parts) == 3 {
		if sec, ok := twoDigits(parts[2]); !ok || sec > 59 {
			return 0, fmt.Errorf("%w: %q", ErrInvalidClockTime, s)
		}
	}
	return ClockTime(h*60 + m), nil
}

func twoDigits(s string) (int, bool) {
	if len(s) != 2 || s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// ClockTimeOf returns the minute of day of t in t's location.
func ClockTimeOf(t time.Time) ClockTime {
	return ClockTime(t.Hour()*60 + t.Minute())
}

// String formats as zero-padded "HH:mm".
func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	return c.String(), nil
}

// Scan implements sql.Scanner.
func (c *ClockTime) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case time.Time:
		*c = ClockTimeOf(v)
		return nil
	default:
		return fmt.Errorf("scan clock time: unsupported type %T", src)
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// MarshalJSON encodes as "HH:mm".
func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes "HH:mm".
func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseClockTime(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Default quiet-hour bounds for a freshly created preference row.
const (
	DefaultQuietHoursStart ClockTime = 22 * 60
	DefaultQuietHoursEnd   ClockTime = 7 * 60
)

// NotificationPreference is one user's alerting settings.
type NotificationPreference struct {
	UserID int64 `db:"user_id" json:"user_id"`

	InAppEnabled bool `db:"in_app_enabled" json:"in_app_enabled"`
	PushEnabled  bool `db:"push_enabled" json:"push_enabled"`
	EmailEnabled bool `db:"email_enabled" json:"email_enabled"`

	ExamNotifications    bool `db:"exam_notifications" json:"exam_notifications"`
	EventNotifications   bool `db:"event_notifications" json:"event_notifications"`
	GeneralNotifications bool `db:"general_notifications" json:"general_notifications"`

	UrgentOnly bool `db:"urgent_only" json:"urgent_only"`

	QuietHoursEnabled bool       `db:"quiet_hours_enabled" json:"quiet_hours_enabled"`
	QuietHoursStart   *ClockTime `db:"quiet_hours_start" json:"quiet_hours_start"`
	QuietHoursEnd     *ClockTime `db:"quiet_hours_end" json:"quiet_hours_end"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DefaultPreference returns the settings a user gets before changing anything.
func DefaultPreference(userID int64) *NotificationPreference {
	start, end := DefaultQuietHoursStart, DefaultQuietHoursEnd
	return &NotificationPreference{
		UserID:               userID,
		InAppEnabled:         true,
		PushEnabled:          true,
		EmailEnabled:         true,
		ExamNotifications:    true,
		EventNotifications:   true,
		GeneralNotifications: true,
		QuietHoursStart:      &start,
		QuietHoursEnd:        &end,
	}
}

// CategoryEnabled maps a notice category onto its toggle.
func (p *NotificationPreference) CategoryEnabled(c Category) bool {
	switch c {
	case CategoryExam:
		return p.ExamNotifications
	case CategoryEvent, CategoryHoliday:
		return p.EventNotifications
	case CategoryGeneral:
		return p.GeneralNotifications
	}
	return true
}

// InQuietHours reports whether now falls inside the quiet window.
// A window with start >= end spans midnight.
func (p *NotificationPreference) InQuietHours(now ClockTime) bool {
	if !p.QuietHoursEnabled || p.QuietHoursStart == nil || p.QuietHoursEnd == nil {
		return false
	}
	start, end := *p.QuietHoursStart, *p.QuietHoursEnd
	if start < end {
		return start <= now && now <= end
	}
	return now >= start || now <= end
}

// UpdatePreferencesRequest is a partial update; nil fields are left unchanged.
type UpdatePreferencesRequest struct {
	InAppEnabled         *bool   `json:"in_app_enabled"`
	PushEnabled          *bool   `json:"push_enabled"`
	EmailEnabled         *bool   `json:"email_enabled"`
	ExamNotifications    *bool   `json:"exam_notifications"`
	EventNotifications   *bool   `json:"event_notifications"`
	GeneralNotifications *bool   `json:"general_notifications"`
	UrgentOnly           *bool   `json:"urgent_only"`
	QuietHoursEnabled    *bool   `json:"quiet_hours_enabled"`
	QuietHoursStart      *string `json:"quiet_hours_start" validate:"omitempty,clocktime"`
	QuietHoursEnd        *string `json:"quiet_hours_end" validate:"omitempty,clocktime"`
}

// Apply copies the set fields of req onto p.
func (req *UpdatePreferencesRequest) Apply(p *NotificationPreference) error {
	setBool(&p.InAppEnabled, req.InAppEnabled)
	setBool(&p.PushEnabled, req.PushEnabled)
	setBool(&p.EmailEnabled, req.EmailEnabled)
	setBool(&p.ExamNotifications, req.ExamNotifications)
	setBool(&p.EventNotifications, req.EventNotifications)
	setBool(&p.GeneralNotifications, req.GeneralNotifications)
	setBool(&p.UrgentOnly, req.UrgentOnly)
	setBool(&p.QuietHoursEnabled, req.QuietHoursEnabled)

	if req.QuietHoursStart != nil {
		c, err := ParseClockTime(*req.QuietHoursStart)
		if err != nil {
			return err
		}
		p.QuietHoursStart = &c
	}
	if req.QuietHoursEnd != nil {
		c, err := ParseClockTime(*req.QuietHoursEnd)
		if err != nil {
			return err
		}
		p.QuietHoursEnd = &c
	}
	return nil
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}
