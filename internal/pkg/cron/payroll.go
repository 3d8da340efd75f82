package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
)

// MonthlyRunner is the slice of the payroll service the scheduled run needs
type MonthlyRunner interface {
	RunMonthly(ctx context.Context, req payroll.BulkProcessRequest) (payroll.BulkProcessResponse, error)
	ListRuns(ctx context.Context, year, month int) ([]payroll.RunResponse, error)
}

type PayrollJobs struct {
	runner MonthlyRunner
	// day of month the previous month is processed on, 0 disables the job
	autoRunDay int
	// cron expression the day check is evaluated on
	schedule string
	// an unfinished run older than this is treated as crashed, 0 never
	staleAfter time.Duration
	now        func() time.Time
}

func NewPayrollJobs(runner MonthlyRunner, autoRunDay int, schedule string, staleAfter time.Duration) *PayrollJobs {
	if schedule == "" {
		schedule = "0 * * * *"
	}
	return &PayrollJobs{
		runner:     runner,
		autoRunDay: autoRunDay,
		schedule:   schedule,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

func (j *PayrollJobs) RegisterJobs(scheduler *Scheduler) error {
	if j.autoRunDay <= 0 {
		slog.Info("Cron: scheduled payroll run disabled")
		return nil
	}
	return scheduler.AddScheduledJob("monthly_payroll_run", j.schedule, j.RunPreviousMonth)
}

// RunPreviousMonth processes last month's payroll once, on the configured day.
// A period is retried only when every earlier run failed or was left
// in progress by a crashed process.
func (j *PayrollJobs) RunPreviousMonth(ctx context.Context) error {
	now := j.now().UTC()
	if now.Day() != j.autoRunDay {
		return nil
	}

	prev := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	year, month := prev.Year(), int(prev.Month())

	runs, err := j.runner.ListRuns(ctx, year, month)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	for _, run := range runs {
		switch {
		case run.Status == string(payroll.RunStatusFailed):
		case j.isStale(run, now):
			slog.Warn("Cron: ignoring stale payroll run", "run_id", run.ID, "started_at", run.StartedAt)
		default:
			return nil
		}
	}

	slog.Info("Cron: starting scheduled payroll run", "year", year, "month", month)

	triggeredBy := "scheduler"
	result, err := j.runner.RunMonthly(ctx, payroll.BulkProcessRequest{
		Year:        year,
		Month:       month,
		TriggeredBy: &triggeredBy,
	})
	if errors.Is(err, payroll.ErrRunInProgress) {
		slog.Info("Cron: payroll run already in progress", "year", year, "month", month)
		return nil
	}
	if err != nil {
		return fmt.Errorf("scheduled payroll run failed: %w", err)
	}

	slog.Info("Cron: scheduled payroll run finished",
		"year", year,
		"month", month,
		"status", result.Status,
		"processed", result.SuccessfulCount,
		"failed", result.FailedCount,
		"skipped", result.SkippedCount,
	)
	return nil
}

func (j *PayrollJobs) isStale(run payroll.RunResponse, now time.Time) bool {
	if j.staleAfter <= 0 || run.Status != string(payroll.RunStatusInProgress) || run.FinishedAt != nil {
		return false
	}
	started, err := time.Parse(time.RFC3339, run.StartedAt)
	if err != nil {
		return false
	}
	return now.Sub(started) > j.staleAfter
}
