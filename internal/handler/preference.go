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

type PreferenceStore interface {
	Get(ctx context.Context, userID int64) (*model.NotificationPreference, error)
	Update(ctx context.Context, userID int64, req *model.UpdatePreferencesRequest) (*model.NotificationPreference, error)
}

type PreferenceHandler struct {
	prefs     PreferenceStore
	validator *httputil.Validator
	log       logrus.FieldLogger
}

func NewPreferenceHandler(prefs PreferenceStore, validator *httputil.Validator, log logrus.FieldLogger) *PreferenceHandler {
	return &PreferenceHandler{
		prefs:     prefs,
		validator: validator,
		log:       logger.Component(log, "preference-handler"),
	}
}

// Get handles GET /notifications/preferences
// Creates the default row on first access.
func (h *PreferenceHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pref, err := h.prefs.Get(r.Context(), identity.UserID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Get preferences failed")
		httputil.WriteInternalError(w, "Failed to get preferences")
		return
	}

	httputil.WriteSuccess(w, "", pref)
}

// Update handles PUT /notifications/preferences
// Fields left out of the body keep their current value.
func (h *PreferenceHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.UpdatePreferencesRequest
	if !h.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	pref, err := h.prefs.Update(r.Context(), identity.UserID, &req)
	if err != nil {
		if errors.Is(err, model.ErrInvalidClockTime) {
			httputil.WriteBadRequestWithCode(w, model.CodeInvalidClockVal, err.Error())
			return
		}
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Update preferences failed")
		httputil.WriteInternalError(w, "Failed to update preferences")
		return
	}

	httputil.WriteSuccess(w, "Preferences updated", pref)
}
