package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerlane/invoicer/internal/income"
	jobmetrics "github.com/ledgerlane/invoicer/internal/jobs"
	"github.com/ledgerlane/invoicer/internal/invoice"
)

const defaultWarmupMonths = 12

// ReportLoader computes (and caches) income reports.
type ReportLoader interface {
	GetIncomeReport(ctx context.Context, r income.Range) (income.Report, error)
}

// IncomeWarmupJob loads the default income page ranges so the first visit
// after a write is served from cache.
type IncomeWarmupJob struct {
	Reports  ReportLoader
	Location *time.Location
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

// Handle implements asynq.HandlerFunc.
func (j *IncomeWarmupJob) Handle(ctx context.Context, t *asynq.Task) (err error) {
	if j == nil || j.Reports == nil {
		return errors.New("income warmup: handler not configured")
	}
	var payload IncomeWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("decode warmup payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	if payload.Months <= 0 {
		payload.Months = defaultWarmupMonths
	}

	tracker := j.Metrics.Track(TaskIncomeWarmup)
	defer func() { err = tracker.End(err) }()

	for _, rng := range j.ranges(payload.Months) {
		if _, err := j.Reports.GetIncomeReport(ctx, rng); err != nil {
			loggerOrDefault(j.Logger).Error("warm income report", slog.String("range", rng.Key()), slog.Any("error", err))
			return err
		}
		j.Metrics.AddItems(TaskIncomeWarmup, 1)
	}
	return nil
}

// ranges are the current window and the same window a year earlier, which
// is what the income page loads.
func (j *IncomeWarmupJob) ranges(months int) []income.Range {
	now := time.Now
	if j.clock != nil {
		now = j.clock
	}
	loc := j.Location
	if loc == nil {
		loc = time.UTC
	}
	current := income.TrailingMonths(invoice.DateOf(now().In(loc)), months)
	previous := income.Range{
		Start: invoice.DateOf(current.Start.AddDate(-1, 0, 0)),
		End:   invoice.DateOf(current.End.AddDate(-1, 0, 0)),
	}
	return []income.Range{current, previous}
}
