package tasks

import (
	"context"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/gorm"

	"academy_billing_app/internal/billing"
	"academy_billing_app/internal/models"
	"academy_billing_app/internal/services"
)

// SendRemindersTaskDef runs one reminder batch. Scheduled as a recurring task
// it becomes the automatic trigger; the HTTP job endpoint shares the same
// dispatcher, and the compare-and-set in the store keeps the two from
// double-sending.
type SendRemindersTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *SendRemindersTaskDef) TaskID() string {
	return "send_billing_reminders"
}

// HandleExecution runs the reminder dispatcher over one batch of plans.
// Arguments may carry a "limit" override for the batch size.
func (t *SendRemindersTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, task models.ScheduledTask) (map[string]interface{}, error) {
	dispatcher := NewDispatcher(db)

	if raw, ok := task.Arguments["limit"].(float64); ok && raw > 0 {
		dispatcher.BatchLimit = int(raw)
	}

	report, err := dispatcher.RunBatch(ctx, time.Now())
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"status":  "success",
		"total":   report.Total,
		"sent":    report.Sent,
		"skipped": report.Skipped,
		"errors":  report.Errors,
	}, nil
}

// SendRemindersTask is the singleton instance of SendRemindersTaskDef
var SendRemindersTask = &SendRemindersTaskDef{}

var (
	cacheOnce   sync.Once
	sharedCache *services.RedisCache
)

// directoryCache connects to Redis at most once per process; runs share the
// connection or all go uncached when Redis is down.
func directoryCache() *services.RedisCache {
	cacheOnce.Do(func() {
		redisURL := os.Getenv("REDIS_URL")
		if redisURL == "" {
			return
		}
		cache, err := services.NewRedisCache(redisURL)
		if err != nil {
			log.Printf("Redis unavailable, directory cache disabled: %v", err)
			return
		}
		sharedCache = cache
	})
	return sharedCache
}

// NewDispatcher wires a reminder dispatcher from the environment: the GORM
// store, the configured notification channel, and the directory client with
// an optional Redis cache in front of it.
func NewDispatcher(db *gorm.DB) *billing.Dispatcher {
	return &billing.Dispatcher{
		Store:     &billing.GormReminderStore{DB: db},
		Directory: services.DirectoryFromEnv(directoryCache()),
		Notifier:  services.NotifierFromEnv(),
		Policy:    billing.DefaultReminderPolicy(),
	}
}
