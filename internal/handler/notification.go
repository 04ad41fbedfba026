package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"campusnotify/internal/auth"
	"campusnotify/internal/httputil"
	"campusnotify/internal/logger"
	"campusnotify/internal/model"
	"campusnotify/internal/transport/http/middleware"
)

// Ledger is the read-state API behind the notification endpoints.
type Ledger interface {
	ListForUser(ctx context.Context, userID int64, role model.Role, limit int) ([]model.InboxItem, error)
	UnreadCount(ctx context.Context, userID int64, role model.Role) (model.UnreadCount, error)
	Stats(ctx context.Context, userID int64, role model.Role) (model.NotificationStats, error)
	MarkRead(ctx context.Context, userID, noticeID int64) error
	BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (*model.BulkMarkReadResult, error)
	MarkAllRead(ctx context.Context, userID int64, role model.Role) (*model.BulkMarkReadResult, error)
}

// UserEmitter pushes realtime events to one user's open connections.
type UserEmitter interface {
	EmitToUser(ctx context.Context, userID int64, event string, data interface{}) error
}

type NotificationHandler struct {
	ledger    Ledger
	emitter   UserEmitter
	validator *httputil.Validator
	log       logrus.FieldLogger
}

// NewNotificationHandler wires the inbox endpoints. emitter may be nil; when
// set, read changes made over HTTP are mirrored to the user's live sessions.
func NewNotificationHandler(ledger Ledger, emitter UserEmitter, validator *httputil.Validator, log logrus.FieldLogger) *NotificationHandler {
	return &NotificationHandler{
		ledger:    ledger,
		emitter:   emitter,
		validator: validator,
		log:       logger.Component(log, "notification-handler"),
	}
}

// requireIdentity returns the caller or writes a 401.
func requireIdentity(w http.ResponseWriter, r *http.Request) (*auth.Identity, bool) {
	identity, ok := middleware.IdentityFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w, "Authentication required")
		return nil, false
	}
	return identity, true
}

// List handles GET /notifications
// Returns the caller's eligible notices, newest first, with read state.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	limit := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			httputil.WriteBadRequest(w, "Invalid limit parameter")
			return
		}
		limit = parsed
	}

	items, err := h.ledger.ListForUser(r.Context(), identity.UserID, identity.Role, limit)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("List notifications failed")
		httputil.WriteInternalError(w, "Failed to get notifications")
		return
	}
	if items == nil {
		items = []model.InboxItem{}
	}

	httputil.WriteSuccess(w, "", items)
}

// UnreadCount handles GET /notifications/unread-count
// Returns the badge count.
func (h *NotificationHandler) UnreadCount(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	count, err := h.ledger.UnreadCount(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Unread count failed")
		httputil.WriteInternalError(w, "Failed to get unread count")
		return
	}

	httputil.WriteSuccess(w, "", count)
}

// Stats handles GET /notifications/stats
func (h *NotificationHandler) Stats(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	stats, err := h.ledger.Stats(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Notification stats failed")
		httputil.WriteInternalError(w, "Failed to get notification stats")
		return
	}

	httputil.WriteSuccess(w, "", stats)
}

// MarkRead handles POST /notifications/{id}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	noticeID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || noticeID <= 0 {
		httputil.WriteBadRequest(w, "Invalid notice ID")
		return
	}

	if err := h.ledger.MarkRead(r.Context(), identity.UserID, noticeID); err != nil {
		if errors.Is(err, model.ErrNoticeNotFound) {
			httputil.WriteNotFoundWithCode(w, model.CodeNoticeNotFound, "Notice not found")
			return
		}
		h.log.WithError(err).WithFields(logrus.Fields{
			"user_id":   identity.UserID,
			"notice_id": noticeID,
		}).Error("Mark read failed")
		httputil.WriteInternalError(w, "Failed to mark notice as read")
		return
	}

	h.syncUnreadCount(r.Context(), identity)
	httputil.WriteSuccess(w, "Notice marked as read", model.NoticeRefPayload{NoticeID: noticeID})
}

// BulkMarkRead handles POST /notifications/read
func (h *NotificationHandler) BulkMarkRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req model.BulkMarkReadRequest
	if !h.validator.DecodeAndValidate(w, r, &req) {
		return
	}

	res, err := h.ledger.BulkMarkRead(r.Context(), identity.UserID, req.NoticeIDs)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Bulk mark read failed")
		httputil.WriteInternalError(w, "Failed to mark notices as read")
		return
	}

	h.syncUnreadCount(r.Context(), identity)
	httputil.WriteSuccess(w, "Notices marked as read", res)
}

// MarkAllRead handles POST /notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	res, err := h.ledger.MarkAllRead(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Error("Mark all read failed")
		httputil.WriteInternalError(w, "Failed to mark all notices as read")
		return
	}

	h.syncUnreadCount(r.Context(), identity)
	httputil.WriteSuccess(w, "All notices marked as read", res)
}

func (h *NotificationHandler) syncUnreadCount(ctx context.Context, identity *auth.Identity) {
	if h.emitter == nil {
		return
	}
	count, err := h.ledger.UnreadCount(ctx, identity.UserID, identity.Role)
	if err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Warn("Unread count sync failed")
		return
	}
	if err := h.emitter.EmitToUser(ctx, identity.UserID, model.EventUnreadCount, count); err != nil {
		h.log.WithError(err).WithField("user_id", identity.UserID).Warn("Unread count emit failed")
	}
}
