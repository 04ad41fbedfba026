package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/repository"
)

// DeviceService manages the push tokens a user registers from their apps.
type DeviceService struct {
	tokens repository.DeviceTokenRepository
	log    logrus.FieldLogger
}

func NewDeviceService(tokens repository.DeviceTokenRepository, log logrus.FieldLogger) *DeviceService {
	return &DeviceService{tokens: tokens, log: logger.Component(log, "devices")}
}

// Register stores a token or refreshes an existing one.
//
// Tokens are unique: registering a token held by another user moves it to
// userID, which happens when a device changes hands.
func (s *DeviceService) Register(ctx context.Context, userID int64, req *model.RegisterTokenRequest) (*model.DeviceToken, error) {
	if req.Platform == "" {
		if model.IsExpoToken(req.Token) {
			req.Platform = model.PlatformExpo
		} else {
			req.Platform = model.PlatformAndroid
		}
	}

	token, err := s.tokens.Upsert(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"platform": token.Platform,
		"token":    token.TokenPreview(),
	}).Info("Device token registered")
	return token, nil
}

// Unregister deactivates one of the caller's tokens, e.g. on logout.
func (s *DeviceService) Unregister(ctx context.Context, userID int64, token string) error {
	if err := s.tokens.Deactivate(ctx, userID, token); err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"user_id": userID,
		"token":   model.PreviewToken(token),
	}).Info("Device token unregistered")
	return nil
}

func (s *DeviceService) List(ctx context.Context, userID int64) ([]model.DeviceToken, error) {
	return s.tokens.ListByUserID(ctx, userID)
}
