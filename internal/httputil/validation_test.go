package httputil_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"campusnotify/internal/httputil"
	"campusnotify/internal/model"
)

func TestValidator_ClockTime(t *testing.T) {
	v := httputil.NewValidator()
	good, bad := "06:30", "6pm"

	assert.NoError(t, v.Validate(&model.UpdatePreferencesRequest{QuietHoursStart: &good}))
	assert.NoError(t, v.Validate(&model.UpdatePreferencesRequest{}), "omitted fields are not validated")

	err := v.Validate(&model.UpdatePreferencesRequest{QuietHoursEnd: &bad})
	require.Error(t, err)
	fields := httputil.FieldErrors(err)
	assert.Contains(t, fields["quiet_hours_end"], "HH:mm")
}

func TestValidator_ClockTimeRejectsLooseForms(t *testing.T) {
	require.NotPanics(t, func() { httputil.NewValidator() })
	v := httputil.NewValidator()

	for _, in := range []string{"7:5", "+7:05", "24:00"} {
		fields := httputil.FieldErrors(v.Validate(&model.UpdatePreferencesRequest{QuietHoursStart: &in}))
		assert.Contains(t, fields, "quiet_hours_start", in)
	}
}

func TestValidator_BulkMarkRead(t *testing.T) {
	v := httputil.NewValidator()

	assert.NoError(t, v.Validate(&model.BulkMarkReadRequest{NoticeIDs: []int64{1, 2}}))

	fields := httputil.FieldErrors(v.Validate(&model.BulkMarkReadRequest{NoticeIDs: []int64{1, 0}}))
	assert.NotEmpty(t, fields)
}

func TestDecodeAndValidate_BadJSON(t *testing.T) {
	v := httputil.NewValidator()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))

	var dst model.RegisterTokenRequest
	ok := v.DecodeAndValidate(rec, req, &dst)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), httputil.ErrCodeBadRequest)
}

func TestDecodeAndValidate_MissingToken(t *testing.T) {
	v := httputil.NewValidator()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"platform":"ios"}`))

	var dst model.RegisterTokenRequest
	ok := v.DecodeAndValidate(rec, req, &dst)

	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token"`)
}
