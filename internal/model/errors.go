package model

import "errors"

var (
	// ErrNoticeNotFound is returned when a notice does not exist, is inactive or expired.
	ErrNoticeNotFound = errors.New("notice not found")

	// ErrTokenNotFound is returned when a device token is not registered to the caller.
	ErrTokenNotFound = errors.New("device token not found")

	// ErrInvalidClockTime is returned for quiet-hour bounds that are not "HH:mm".
	ErrInvalidClockTime = errors.New("invalid clock time, expected HH:mm")

	// ErrPreferenceNotFound is returned when a user has no preference row yet.
	ErrPreferenceNotFound = errors.New("notification preference not found")
)

// API error codes (used in HTTP responses)
const (
	CodeTokenExpired    = "TOKEN_EXPIRED"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeValidation      = "VALIDATION_ERROR"
	CodeNoticeNotFound  = "NOTICE_NOT_FOUND"
	CodeDeviceNotFound  = "DEVICE_TOKEN_NOT_FOUND"
	CodeInvalidClockVal = "INVALID_QUIET_HOURS"
)
