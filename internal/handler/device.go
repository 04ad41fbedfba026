package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"campusnotify/internal/httputil"
	"campusnotify/internal/logger"
	"campusnotify/internal/model"
)

type DeviceRegistry interface {
	Register(ctx context.Context, userID int64, req *model.RegisterTokenRequest) (*model.DeviceToken, error)
	Unregister(ctx context.Context, userID int64, token string) error
	List(ctx context.Context, userID int64) ([]model.DeviceToken, error)
}

type DeviceHandler struct {
	devices   DeviceRegistry
	validator *httputil.Validator
	log       logrus.FieldLogger
}

func NewDeviceHandler(devices DeviceRegistry, validator *httputil.Validator, log logrus.FieldLogger) *DeviceHandler {
	return &DeviceHandler{
		devices:   devices,
		validator: validator,
		log:       logger.Component(log, "device-handler"),
	}
}

// RegisterToken handles POST /devices/token
// Registers a device token for push notifications.
func (h *DeviceHandler) RegisterToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.RegisterTokenRequest
	if !h.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	token, err := h.devices.Register(r.Context(), identity.UserID, &req)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Register device token failed")
		httputil.WriteInternalError(w, "Failed to register device token")
		return
	}

	httputil.WriteSuccess(w, "Device token registered", token)
}

// RemoveToken handles DELETE /devices/token
// Deactivates a device token (e.g., on logout).
func (h *DeviceHandler) RemoveToken(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.UnregisterTokenRequest
	if !h.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	if err := h.devices.Unregister(r.Context(), identity.UserID, req.Token); err != nil {
		if errors.Is(err, model.ErrTokenNotFound) {
			httputil.WriteNotFoundWithCode(w, model.CodeDeviceNotFound, "Device token not found")
			return
		}
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Remove device token failed")
		httputil.WriteInternalError(w, "Failed to remove device token")
		return
	}

	httputil.WriteSuccess(w, "Device token removed", nil)
}

// List handles GET /devices
func (h *DeviceHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	tokens, err := h.devices.List(r.Context(), identity.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("List device tokens failed")
		httputil.WriteInternalError(w, "Failed to list device tokens")
		return
	}
	if tokens == nil {
		tokens = []model.DeviceToken{}
	}

	httputil.WriteSuccess(w, "", tokens)
}
