package handlers

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"

	"academy_billing_app/internal/billing"
)

// BatchRunner is the slice of the dispatcher the job endpoint needs.
type BatchRunner interface {
	RunBatch(ctx context.Context, now time.Time) (*billing.RunReport, error)
}

// ReminderHandler exposes the reminder batch as an HTTP job endpoint so an
// external scheduler (cron, cloud scheduler) can trigger runs alongside the
// built-in worker.
type ReminderHandler struct {
	runner BatchRunner
}

func NewReminderHandler(runner BatchRunner) *ReminderHandler {
	return &ReminderHandler{runner: runner}
}

// TriggerReminders handles POST /api/jobs/reminders. In production the caller
// must present the shared job token; outside production the endpoint is open
// and echoes per-plan items for debugging.
func (h *ReminderHandler) TriggerReminders(c echo.Context) error {
	isProduction := os.Getenv("APP_ENV") == "production"

	if isProduction {
		expected := os.Getenv("REMINDER_JOB_TOKEN")
		if expected == "" || c.Request().Header.Get("X-Job-Token") != expected {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid job token")
		}
	}

	started := time.Now()
	report, err := h.runner.RunBatch(c.Request().Context(), started)
	if err != nil {
		c.Logger().Errorf("reminder batch failed: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "reminder batch failed")
	}

	response := map[string]interface{}{
		"success": true,
		"summary": map[string]int{
			"total":   report.Total,
			"sent":    report.Sent,
			"skipped": report.Skipped,
			"errors":  report.Errors,
		},
		"execution_time_ms": time.Since(started).Milliseconds(),
		"timestamp":         started.UTC().Format(time.RFC3339),
	}
	if !isProduction {
		response["items"] = report.Items
	}

	return c.JSON(http.StatusOK, response)
}
