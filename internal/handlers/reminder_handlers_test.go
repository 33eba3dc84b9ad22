package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_billing_app/internal/billing"
)

type fakeRunner struct {
	report *billing.RunReport
	err    error
}

func (f *fakeRunner) RunBatch(ctx context.Context, now time.Time) (*billing.RunReport, error) {
	return f.report, f.err
}

func triggerRequest(token string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/jobs/reminders", nil)
	if token != "" {
		req.Header.Set("X-Job-Token", token)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestTriggerReminders(t *testing.T) {
	runner := &fakeRunner{report: &billing.RunReport{
		Total: 3, Sent: 2, Skipped: 1,
		Items: []billing.RunItem{{PlanUUID: "p1", Outcome: billing.OutcomeSent}},
	}}
	h := NewReminderHandler(runner)

	c, rec := triggerRequest("")
	require.NoError(t, h.TriggerReminders(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])

	summary := body["summary"].(map[string]interface{})
	assert.Equal(t, float64(3), summary["total"])
	assert.Equal(t, float64(2), summary["sent"])
	assert.Equal(t, float64(1), summary["skipped"])

	// Outside production the per-plan items are echoed for debugging.
	assert.Contains(t, body, "items")
}

func TestTriggerRemindersProductionRequiresToken(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("REMINDER_JOB_TOKEN", "secret")

	h := NewReminderHandler(&fakeRunner{report: &billing.RunReport{}})

	c, _ := triggerRequest("")
	err := h.TriggerReminders(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	c, _ = triggerRequest("wrong")
	err = h.TriggerReminders(c)
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusUnauthorized, httpErr.Code)

	c, rec := triggerRequest("secret")
	require.NoError(t, h.TriggerReminders(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.NotContains(t, body, "items")
}

func TestTriggerRemindersBatchFailure(t *testing.T) {
	h := NewReminderHandler(&fakeRunner{err: errors.New("db down")})

	c, _ := triggerRequest("")
	err := h.TriggerReminders(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusInternalServerError, httpErr.Code)
}
