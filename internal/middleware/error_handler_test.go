package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"academy_billing_app/internal/billing"
)

func renderError(t *testing.T, err error) (int, map[string]string) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	JSONErrorHandler(err, c)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestJSONErrorHandlerMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{
			name:   "validation",
			err:    &billing.ValidationError{Field: "amount", Reason: "must be greater than zero"},
			status: http.StatusBadRequest,
			code:   billing.CodeValidation,
		},
		{
			name:   "invalid transition",
			err:    &billing.InvalidTransitionError{From: "CANCELLED", To: "ACTIVE"},
			status: http.StatusBadRequest,
			code:   billing.CodeInvalidTransition,
		},
		{
			name:   "not found",
			err:    &billing.NotFoundError{Resource: "plan", ID: "x"},
			status: http.StatusNotFound,
			code:   billing.CodeNotFound,
		},
		{
			name:   "transaction",
			err:    &billing.TransactionError{Err: errors.New("deadlock")},
			status: http.StatusInternalServerError,
			code:   billing.CodeTransaction,
		},
		{
			name:   "unknown",
			err:    errors.New("boom"),
			status: http.StatusInternalServerError,
			code:   "INTERNAL_ERROR",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body := renderError(t, tc.err)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestJSONErrorHandlerEchoError(t *testing.T) {
	status, body := renderError(t, echo.NewHTTPError(http.StatusUnauthorized, "missing bearer token"))
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "missing bearer token", body["error"])
}

func TestJSONErrorHandlerMessagesAreOpaqueFor500(t *testing.T) {
	_, body := renderError(t, &billing.TransactionError{Err: errors.New("pq: deadlock detected")})
	assert.NotContains(t, body["error"], "deadlock")
}
