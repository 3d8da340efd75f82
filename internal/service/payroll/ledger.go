package payroll

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/events"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/lock"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type LedgerOptions struct {
	Workers int
	LockTTL time.Duration
}

// Ledger runs the payslip processor over a set of employees for one period.
type Ledger struct {
	employeeRepo employee.EmployeeRepository
	payslipRepo  payroll.PayslipRepository
	runRepo      payroll.RunRepository
	processor    *PayslipProcessor
	locker       lock.Locker
	publisher    events.Publisher
	opts         LedgerOptions
	now          func() time.Time
}

func NewLedger(
	employeeRepo employee.EmployeeRepository,
	payslipRepo payroll.PayslipRepository,
	runRepo payroll.RunRepository,
	processor *PayslipProcessor,
	locker lock.Locker,
	publisher events.Publisher,
	opts LedgerOptions,
) *Ledger {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 10 * time.Minute
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &Ledger{
		employeeRepo: employeeRepo,
		payslipRepo:  payslipRepo,
		runRepo:      runRepo,
		processor:    processor,
		locker:       locker,
		publisher:    publisher,
		opts:         opts,
		now:          time.Now,
	}
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeFailed
	outcomeSkipped
)

type target struct {
	employee employee.Employee
	// err is set when the employee was rejected while resolving targets
	err error
}

type employeeResult struct {
	outcome outcome
	result  payroll.EmployeeProcessingResult
}

func runLockKey(year, month int) string {
	return fmt.Sprintf("run:%04d-%02d", year, month)
}

// Run processes one period. Per-employee failures are recorded and never abort
// the batch. A dry run computes every payslip and persists nothing.
func (l *Ledger) Run(ctx context.Context, req payroll.BulkProcessRequest) (payroll.BulkProcessResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.BulkProcessResponse{}, err
	}
	if _, _, _, err := MonthBounds(req.Year, req.Month); err != nil {
		return payroll.BulkProcessResponse{}, err
	}

	targets, err := l.resolveTargets(ctx, req.EmployeeIDs)
	if err != nil {
		return payroll.BulkProcessResponse{}, err
	}

	if !req.DryRun {
		lease, err := l.locker.Acquire(ctx, runLockKey(req.Year, req.Month), l.opts.LockTTL)
		if err != nil {
			if errors.Is(err, lock.ErrNotAcquired) {
				return payroll.BulkProcessResponse{}, payroll.ErrRunInProgress
			}
			return payroll.BulkProcessResponse{}, fmt.Errorf("failed to acquire run lock: %w", err)
		}
		stopKeepAlive := l.keepAlive(ctx, lease, req.Year, req.Month)
		defer func() {
			stopKeepAlive()
			if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("failed to release run lock", "year", req.Year, "month", req.Month, "error", err)
			}
		}()
	}

	resp := payroll.BulkProcessResponse{
		Year:                 req.Year,
		Month:                req.Month,
		DryRun:               req.DryRun,
		TotalEmployees:       len(targets),
		TotalAmountProcessed: decimal.Zero,
		ProcessedEmployees:   []payroll.EmployeeProcessingResult{},
		FailedEmployees:      []payroll.EmployeeProcessingResult{},
		SkippedEmployees:     []payroll.EmployeeProcessingResult{},
	}

	previous, err := l.runRepo.GetLatestByPeriod(ctx, req.Year, req.Month)
	if err == nil {
		resp.PreviousRunID = &previous.ID
	} else if !errors.Is(err, payroll.ErrRunNotFound) {
		return payroll.BulkProcessResponse{}, err
	}

	skip := req.ShouldSkipDuplicates()
	paid := map[string]string{}
	if skip && len(targets) > 0 {
		ids := make([]string, 0, len(targets))
		for _, t := range targets {
			if t.err == nil {
				ids = append(ids, t.employee.ID)
			}
		}
		if len(ids) > 0 {
			paid, err = l.payslipRepo.GetPaidEmployeeIDs(ctx, req.Year, req.Month, ids)
			if err != nil {
				return payroll.BulkProcessResponse{}, err
			}
		}
	}

	var run payroll.MonthlyProcessingRun
	if !req.DryRun {
		run, err = l.runRepo.Create(ctx, payroll.MonthlyProcessingRun{
			Year:           req.Year,
			Month:          req.Month,
			TotalEmployees: len(targets),
			TotalAmount:    decimal.Zero,
			Status:         payroll.RunStatusInProgress,
			SkipDuplicates: skip,
			TriggeredBy:    req.TriggeredBy,
			Notes:          req.Notes,
			StartedAt:      l.now().UTC(),
		})
		if err != nil {
			return payroll.BulkProcessResponse{}, err
		}
		resp.RunID = &run.ID
	}

	results := make([]employeeResult, len(targets))
	// workers record their own failures and never return an error
	var g errgroup.Group
	g.SetLimit(l.opts.Workers)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = l.processOne(ctx, req, t, skip, paid, resp.RunID)
			return nil
		})
	}
	g.Wait()

	for _, r := range results {
		switch r.outcome {
		case outcomeProcessed:
			resp.ProcessedEmployees = append(resp.ProcessedEmployees, r.result)
			resp.TotalAmountProcessed = resp.TotalAmountProcessed.Add(r.result.AmountProcessed)
		case outcomeSkipped:
			resp.SkippedEmployees = append(resp.SkippedEmployees, r.result)
		default:
			resp.FailedEmployees = append(resp.FailedEmployees, r.result)
		}
	}
	resp.SuccessfulCount = len(resp.ProcessedEmployees)
	resp.FailedCount = len(resp.FailedEmployees)
	resp.SkippedCount = len(resp.SkippedEmployees)
	resp.Status = string(runStatus(resp))

	if !req.DryRun {
		finished := l.now().UTC()
		run.ProcessedCount = resp.SuccessfulCount
		run.FailedCount = resp.FailedCount
		run.SkippedCount = resp.SkippedCount
		run.TotalAmount = resp.TotalAmountProcessed
		run.Status = payroll.RunStatus(resp.Status)
		run.FinishedAt = &finished
		if err := l.runRepo.Finish(context.WithoutCancel(ctx), run); err != nil {
			return payroll.BulkProcessResponse{}, err
		}
		l.publishCompleted(ctx, run)
	}

	slog.Info("payroll run finished",
		"run_id", run.ID,
		"year", req.Year,
		"month", req.Month,
		"dry_run", req.DryRun,
		"status", resp.Status,
		"total", resp.TotalEmployees,
		"processed", resp.SuccessfulCount,
		"failed", resp.FailedCount,
		"skipped", resp.SkippedCount,
		"amount", resp.TotalAmountProcessed.StringFixed(2),
	)

	return resp, nil
}

// keepAlive refreshes the run lock every third of its TTL until stop is called,
// so a run that outlasts the TTL keeps the period to itself.
func (l *Ledger) keepAlive(ctx context.Context, lease lock.Lease, year, month int) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	go func() {
		defer close(done)
		ticker := time.NewTicker(l.opts.LockTTL / 3)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				err := lease.Refresh(ctx, l.opts.LockTTL)
				switch {
				case err == nil:
				case ctx.Err() != nil:
					return
				case errors.Is(err, lock.ErrLost):
					slog.Error("payroll run lock lost", "year", year, "month", month)
					return
				default:
					slog.Warn("failed to refresh run lock", "year", year, "month", month, "error", err)
				}
			}
		}
	}()

	return func() {
		cancel()
		<-done
	}
}

// resolveTargets keeps the caller's order for explicit IDs. Unknown and
// inactive employees become per-employee failures.
func (l *Ledger) resolveTargets(ctx context.Context, ids []string) ([]target, error) {
	if len(ids) == 0 {
		active, err := l.employeeRepo.GetActive(ctx)
		if err != nil {
			return nil, err
		}
		targets := make([]target, len(active))
		for i, e := range active {
			targets[i] = target{employee: e}
		}
		return targets, nil
	}

	ids = validator.Unique(ids)
	found, err := l.employeeRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]employee.Employee, len(found))
	for _, e := range found {
		byID[e.ID] = e
	}

	targets := make([]target, len(ids))
	for i, id := range ids {
		e, ok := byID[id]
		switch {
		case !ok:
			targets[i] = target{employee: employee.Employee{ID: id}, err: employee.ErrEmployeeNotFound}
		case !e.IsActive:
			targets[i] = target{employee: e, err: employee.ErrEmployeeInactive}
		default:
			targets[i] = target{employee: e}
		}
	}
	return targets, nil
}

func (l *Ledger) processOne(ctx context.Context, req payroll.BulkProcessRequest, t target, skip bool, paid map[string]string, runID *string) employeeResult {
	e := t.employee
	res := payroll.EmployeeProcessingResult{
		EmployeeID:      e.ID,
		EmployeeName:    e.FullName,
		AmountProcessed: decimal.Zero,
	}

	if t.err != nil {
		res.Message = t.err.Error()
		return employeeResult{outcome: outcomeFailed, result: res}
	}

	if payslipID, ok := paid[e.ID]; ok && skip {
		res.Success = true
		res.DuplicatePrevented = true
		res.Message = "payslip already paid for this period"
		res.PayslipID = &payslipID
		return employeeResult{outcome: outcomeSkipped, result: res}
	}

	in := ProcessInput{
		Employee:        e,
		Year:            req.Year,
		Month:           req.Month,
		CustomDeduction: decimal.Zero,
		Notes:           req.Notes,
		RunID:           runID,
		Status:          payroll.PayslipStatusPaid,
		AllowPaid:       !skip,
		DryRun:          req.DryRun,
	}
	if amount, ok := req.CustomDeductions[e.ID]; ok {
		in.CustomDeduction = amount
	}

	computed, err := l.processor.Process(ctx, in)
	if err != nil {
		if errors.Is(err, payroll.ErrPayslipAlreadyPaid) && skip {
			res.Success = true
			res.DuplicatePrevented = true
			res.Message = "payslip already paid for this period"
			return employeeResult{outcome: outcomeSkipped, result: res}
		}
		if isNotFound(err) {
			slog.Warn("employee not payable", "employee_id", e.ID, "year", req.Year, "month", req.Month, "error", err)
		} else {
			slog.Error("failed to process payslip", "employee_id", e.ID, "year", req.Year, "month", req.Month, "error", err)
		}
		res.Message = err.Error()
		return employeeResult{outcome: outcomeFailed, result: res}
	}

	res.Success = true
	res.AmountProcessed = computed.Payslip.Amount
	if computed.Payslip.ID != "" {
		id := computed.Payslip.ID
		res.PayslipID = &id
		res.Message = "payslip processed"
	} else {
		res.Message = "payslip computed (dry run)"
	}
	return employeeResult{outcome: outcomeProcessed, result: res}
}

func runStatus(resp payroll.BulkProcessResponse) payroll.RunStatus {
	switch {
	case resp.FailedCount == 0:
		return payroll.RunStatusCompleted
	case resp.SuccessfulCount == 0 && resp.SkippedCount == 0:
		return payroll.RunStatusFailed
	default:
		return payroll.RunStatusCompletedWithErrors
	}
}

func (l *Ledger) publishCompleted(ctx context.Context, run payroll.MonthlyProcessingRun) {
	event := events.RunCompletedEvent{
		EventType:      "run_completed",
		RunID:          run.ID,
		Year:           run.Year,
		Month:          run.Month,
		Status:         string(run.Status),
		TotalEmployees: run.TotalEmployees,
		ProcessedCount: run.ProcessedCount,
		FailedCount:    run.FailedCount,
		SkippedCount:   run.SkippedCount,
		TotalAmount:    run.TotalAmount,
		OccurredAt:     l.now().UTC(),
	}
	if err := l.publisher.Publish(ctx, events.RunCompletedTopic, run.ID, event.EventType, event); err != nil {
		slog.Warn("failed to publish run event", "run_id", run.ID, "error", err)
	}
}
