package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/constructo-erp/constructo-erp/internal/quotes"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskQuoteExpiry marks overdue open quotes as expired.
	TaskQuoteExpiry = "quotes:expire"
	// TaskStatsWarmup refreshes the cached quote statistics snapshot.
	TaskStatsWarmup = "quotes:stats_warmup"
)

// QuoteExpiryPayload lets a manual run pin the reference date; the cron
// run leaves it empty and uses the current time.
type QuoteExpiryPayload struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// NewQuoteExpiryTask constructs the expiry sweep task.
func NewQuoteExpiryTask(payload QuoteExpiryPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskQuoteExpiry, data), nil
}

// NewStatsWarmupTask constructs the statistics warmup task.
func NewStatsWarmupTask() *asynq.Task {
	return asynq.NewTask(TaskStatsWarmup, nil)
}

// QuoteExpiryHandler processes TaskQuoteExpiry tasks.
func QuoteExpiryHandler(service *quotes.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		var payload QuoteExpiryPayload
		if len(t.Payload()) > 0 {
			if err := json.Unmarshal(t.Payload(), &payload); err != nil {
				return asynq.SkipRetry
			}
		}
		asOf := time.Now()
		if payload.AsOf != nil {
			asOf = *payload.AsOf
		}

		count, err := service.ExpireOverdue(ctx, asOf)
		if err != nil {
			logger.ErrorContext(ctx, "quote expiry sweep failed", "error", err)
			return err
		}
		logger.InfoContext(ctx, "quote expiry sweep done", "expired", count)
		return nil
	}
}

// StatsWarmupHandler processes TaskStatsWarmup tasks.
func StatsWarmupHandler(service *quotes.Service, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, t *asynq.Task) error {
		if _, err := service.Statistics(ctx); err != nil {
			logger.ErrorContext(ctx, "stats warmup failed", "error", err)
			return err
		}
		return nil
	}
}
