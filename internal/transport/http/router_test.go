package http_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusnotify/internal/auth"
	"campusnotify/internal/handler"
	"campusnotify/internal/httputil"
	"campusnotify/internal/model"
	transport "campusnotify/internal/transport/http"
)

type stubLedger struct{}

func (stubLedger) ListForUser(ctx context.Context, userID int64, role model.Role, limit int) ([]model.InboxItem, error) {
	return nil, nil
}

func (stubLedger) UnreadCount(ctx context.Context, userID int64, role model.Role) (model.UnreadCount, error) {
	return model.UnreadCount{Unread: int(userID), Total: int(userID)}, nil
}

func (stubLedger) Stats(ctx context.Context, userID int64, role model.Role) (model.NotificationStats, error) {
	return model.NotificationStats{}, nil
}

func (stubLedger) MarkRead(ctx context.Context, userID, noticeID int64) error { return nil }

func (stubLedger) BulkMarkRead(ctx context.Context, userID int64, noticeIDs []int64) (*model.BulkMarkReadResult, error) {
	return &model.BulkMarkReadResult{}, nil
}

func (stubLedger) MarkAllRead(ctx context.Context, userID int64, role model.Role) (*model.BulkMarkReadResult, error) {
	return &model.BulkMarkReadResult{}, nil
}

func newTestRouter(t *testing.T, tokens *auth.Validator) http.Handler {
	t.Helper()
	log, _ := test.NewNullLogger()
	v := httputil.NewValidator()
	return transport.NewRouter(transport.RouterConfig{
		NotificationHandler: handler.NewNotificationHandler(stubLedger{}, nil, v, log),
		PreferenceHandler:   handler.NewPreferenceHandler(nil, v, log),
		DeviceHandler:       handler.NewDeviceHandler(nil, v, log),
		Tokens:              tokens,
		Logger:              log,
	})
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter(t, auth.NewValidator("secret"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	router := newTestRouter(t, auth.NewValidator("secret"))
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestRouter_ProtectedRoutesNeedToken(t *testing.T) {
	router := newTestRouter(t, auth.NewValidator("secret"))

	for _, path := range []string{"/notifications", "/notifications/unread-count", "/devices"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestRouter_ExpiredTokenHasCode(t *testing.T) {
	tokens := auth.NewValidator("secret")
	router := newTestRouter(t, tokens)
	token, err := tokens.Issue(3, model.RoleStudent, -time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), model.CodeTokenExpired)
}

func TestRouter_BearerAndCookieTokens(t *testing.T) {
	tokens := auth.NewValidator("secret")
	router := newTestRouter(t, tokens)
	token, err := tokens.Issue(3, model.RoleStudent, time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"data":{"unread":3,"total":3}}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/notifications/unread-count", nil)
	req.AddCookie(&http.Cookie{Name: "access_token", Value: token})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
