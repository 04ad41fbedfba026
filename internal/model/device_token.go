package model

import (
	"strings"
	"time"
)

// DeviceToken is one installed app instance able to receive push notifications.
// Rows are deactivated, never deleted.
type DeviceToken struct {
	ID         int64     `db:"id" json:"id"`
	UserID     int64     `db:"user_id" json:"-"`
	Token      string    `db:"token" json:"-"`
	Platform   string    `db:"platform" json:"platform"`
	DeviceID   *string   `db:"device_id" json:"device_id,omitempty"`
	AppVersion *string   `db:"app_version" json:"app_version,omitempty"`
	IsActive   bool      `db:"is_active" json:"is_active"`
	LastUsed   time.Time `db:"last_used" json:"last_used"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// TokenPreview is a short, log-safe prefix of the token.
func (t *DeviceToken) TokenPreview() string {
	return PreviewToken(t.Token)
}

// PreviewToken returns a short, log-safe prefix of a push token.
func PreviewToken(token string) string {
	if len(token) <= 12 {
		return token
	}
	return token[:12] + "..."
}

// IsExpoToken reports whether token was issued by Expo rather than FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}

// RegisterTokenRequest is the body for registering a device token.
type RegisterTokenRequest struct {
	Token      string  `json:"token" validate:"required,max=4096"`
	Platform   string  `json:"platform" validate:"omitempty,oneof=ios android web expo"`
	DeviceID   *string `json:"device_id" validate:"omitempty,max=255"`
	AppVersion *string `json:"app_version" validate:"omitempty,max=64"`
}

// UnregisterTokenRequest is the body for unregistering a device token.
type UnregisterTokenRequest struct {
	Token string `json:"token" validate:"required,max=4096"`
}

// Platform constants
const (
	PlatformIOS     = "ios"
	PlatformAndroid = "android"
	PlatformWeb     = "web"
	PlatformExpo    = "expo"
)

// PushMessage is the visible part of a push notification.
type PushMessage struct {
	Title    string
	Body     string
	ImageURL string
}

// PushResult is the provider outcome for one token.
// Permanent marks failures that mean the token will never work again.
type PushResult struct {
	Token     string
	Success   bool
	Permanent bool
	Err       error
}

// PushReport summarises a push send.
type PushReport struct {
	SuccessCount   int      `json:"success_count"`
	FailureCount   int      `json:"failure_count"`
	Deactivated    []string `json:"-"`
	NoActiveTokens bool     `json:"no_active_tokens"`
}
