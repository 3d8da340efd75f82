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
	"github.com/shopspring/decimal"
)

// ProcessInput describes one payslip computation for an (employee, year, month) key.
type ProcessInput struct {
	Employee employee.Employee
	Year     int
	Month    int

	// Leave overrides. A nil field is read from approved leave records.
	UnpaidLeaveDays *decimal.Decimal
	HalfDayLeaves   *int

	CustomDeduction decimal.Decimal
	Notes           *string
	RunID           *string

	// Status is the terminal status written on success, processed or paid.
	Status payroll.PayslipStatus
	// AllowPaid lets a paid payslip be recomputed.
	AllowPaid bool
	DryRun    bool
}

// Computation is everything derived for one payslip before it is persisted.
type Computation struct {
	Structure  payroll.SalaryStructure
	Components payroll.SalaryComponents
	Leave      payroll.LeaveSummary
	Deduction  payroll.LeaveDeduction
	Payslip    payroll.Payslip
}

type PayslipProcessor struct {
	structureRepo payroll.SalaryStructureRepository
	payslipRepo   payroll.PayslipRepository
	leave         *LeaveDeductionEngine
	calc          *Calculator
	rules         Rules
	publisher     events.Publisher
	now           func() time.Time
}

func NewPayslipProcessor(
	structureRepo payroll.SalaryStructureRepository,
	payslipRepo payroll.PayslipRepository,
	leave *LeaveDeductionEngine,
	calc *Calculator,
	rules Rules,
	publisher events.Publisher,
) *PayslipProcessor {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	return &PayslipProcessor{
		structureRepo: structureRepo,
		payslipRepo:   payslipRepo,
		leave:         leave,
		calc:          calc,
		rules:         rules,
		publisher:     publisher,
		now:           time.Now,
	}
}

// loadStructure returns the employee's structure, rejecting the onboarding zero row.
func (p *PayslipProcessor) loadStructure(ctx context.Context, employeeID string) (payroll.SalaryStructure, error) {
	structure, err := p.structureRepo.GetByEmployeeID(ctx, employeeID)
	if err != nil {
		return payroll.SalaryStructure{}, err
	}
	if structure.IsZero() {
		return payroll.SalaryStructure{}, payroll.ErrSalaryStructureEmpty
	}
	return structure, nil
}

// Compute derives the payslip figures without writing anything.
func (p *PayslipProcessor) Compute(ctx context.Context, in ProcessInput) (Computation, error) {
	structure, err := p.loadStructure(ctx, in.Employee.ID)
	if err != nil {
		return Computation{}, err
	}
	return p.compute(ctx, in, structure)
}

func (p *PayslipProcessor) compute(ctx context.Context, in ProcessInput, structure payroll.SalaryStructure) (Computation, error) {
	_, _, totalDays, err := MonthBounds(in.Year, in.Month)
	if err != nil {
		return Computation{}, err
	}
	if in.CustomDeduction.IsNegative() {
		return Computation{}, fmt.Errorf("%w: custom deduction must be non-negative", payroll.ErrInvalidInput)
	}

	summary, err := p.leaveSummary(ctx, in)
	if err != nil {
		return Computation{}, err
	}

	components := p.calc.FromStructure(structure, in.Employee.City, in.Employee.State)

	basis := structure.NetPay
	if p.rules.DeductionBasis == DeductionBasisGross {
		basis = structure.MonthlyGross
	}
	deduction, err := ComputeDeduction(basis, summary.UnpaidDays, summary.HalfDays, totalDays)
	if err != nil {
		return Computation{}, err
	}

	total := decimal.NewFromInt(int64(totalDays))
	prorate := func(v decimal.Decimal) decimal.Decimal {
		return v.Mul(deduction.PayableDays).Div(total).Round(2)
	}

	slip := payroll.Payslip{
		EmployeeID: in.Employee.ID,
		Year:       in.Year,
		Month:      in.Month,

		BasicActual:            structure.Basic,
		BasicPaid:              prorate(structure.Basic),
		HRAActual:              structure.HRA,
		HRAPaid:                prorate(structure.HRA),
		SpecialAllowanceActual: structure.SpecialAllowance,
		SpecialAllowancePaid:   prorate(structure.SpecialAllowance),
		TotalEarningsActual:    structure.MonthlyGross,

		PFDeduction:          structure.PFDeduction,
		TaxDeduction:         structure.TaxDeduction,
		ProfessionalTax:      components.ProfessionalTax,
		CustomDeduction:      in.CustomDeduction.Round(2),
		LeaveDeductionAmount: deduction.Deduction,

		TotalWorkingDays:  totalDays,
		ActualPayableDays: deduction.PayableDays,
		LossOfPayDays:     deduction.LeaveUnits,
		DaysPayable:       deduction.PayableDays,
		UnpaidLeaveDays:   summary.UnpaidDays,
		HalfDayLeaves:     summary.HalfDays,

		Status:       in.Status,
		RunID:        in.RunID,
		Notes:        in.Notes,
		EmployeeName: &in.Employee.FullName,
	}
	slip.TotalEarningsPaid = slip.BasicPaid.Add(slip.HRAPaid).Add(slip.SpecialAllowancePaid)
	slip.TotalDeductions = structure.TotalDeductions.Add(slip.LeaveDeductionAmount).Add(slip.CustomDeduction)
	slip.Amount = slip.TotalEarningsActual.Sub(slip.TotalDeductions)

	return Computation{
		Structure:  structure,
		Components: components,
		Leave:      summary,
		Deduction:  deduction,
		Payslip:    slip,
	}, nil
}

// leaveSummary reads leave records unless both counts were supplied.
// Supplied counts replace the fetched ones.
func (p *PayslipProcessor) leaveSummary(ctx context.Context, in ProcessInput) (payroll.LeaveSummary, error) {
	summary := payroll.LeaveSummary{UnpaidDays: decimal.Zero, Breakdown: []payroll.LeaveBreakdownItem{}}
	if in.UnpaidLeaveDays == nil || in.HalfDayLeaves == nil {
		fetched, err := p.leave.FetchUnpaid(ctx, in.Employee.ID, in.Year, in.Month)
		if err != nil {
			return payroll.LeaveSummary{}, err
		}
		summary = fetched
	}
	if in.UnpaidLeaveDays != nil {
		summary.UnpaidDays = *in.UnpaidLeaveDays
	}
	if in.HalfDayLeaves != nil {
		summary.HalfDays = *in.HalfDayLeaves
	}
	return summary, nil
}

// Process computes and upserts the payslip for the input's period. Figures
// are computed before the row is touched, so a failing input never disturbs
// a stored payslip. The row is then reserved in processing status so
// concurrent callers share one row.
func (p *PayslipProcessor) Process(ctx context.Context, in ProcessInput) (Computation, error) {
	if in.Status != payroll.PayslipStatusProcessed && in.Status != payroll.PayslipStatusPaid {
		return Computation{}, fmt.Errorf("%w: unsupported target status %q", payroll.ErrInvalidInput, in.Status)
	}

	result, err := p.Compute(ctx, in)
	if err != nil {
		return Computation{}, err
	}
	if in.DryRun {
		return result, nil
	}

	reserved, err := p.payslipRepo.Reserve(ctx, in.Employee.ID, in.Year, in.Month, in.AllowPaid)
	if err != nil {
		return Computation{}, err
	}

	now := p.now().UTC()
	slip := result.Payslip
	slip.ID = reserved.ID
	slip.CreatedAt = reserved.CreatedAt
	slip.ProcessedAt = &now
	if slip.Status == payroll.PayslipStatusPaid {
		slip.PaidAt = &now
	}

	saved, err := p.payslipRepo.Complete(ctx, slip)
	if err != nil {
		p.markFailed(ctx, reserved.ID, err)
		return Computation{}, err
	}
	if saved.EmployeeName == nil {
		saved.EmployeeName = slip.EmployeeName
	}
	result.Payslip = saved

	p.publishProcessed(ctx, saved)
	return result, nil
}

func (p *PayslipProcessor) markFailed(ctx context.Context, id string, cause error) {
	if err := p.payslipRepo.MarkFailed(ctx, id, cause.Error()); err != nil {
		slog.Error("failed to mark payslip as failed", "payslip_id", id, "cause", cause, "error", err)
	}
}

func (p *PayslipProcessor) publishProcessed(ctx context.Context, slip payroll.Payslip) {
	event := events.PayslipProcessedEvent{
		EventType:  "payslip_processed",
		PayslipID:  slip.ID,
		EmployeeID: slip.EmployeeID,
		Year:       slip.Year,
		Month:      slip.Month,
		Amount:     slip.Amount,
		Status:     string(slip.Status),
		RunID:      slip.RunID,
		OccurredAt: p.now().UTC(),
	}
	if err := p.publisher.Publish(ctx, events.PayslipProcessedTopic, slip.EmployeeID, event.EventType, event); err != nil {
		slog.Warn("failed to publish payslip event", "payslip_id", slip.ID, "error", err)
	}
}

// isNotFound reports errors that mean the employee cannot be paid at all
func isNotFound(err error) bool {
	return errors.Is(err, employee.ErrEmployeeNotFound) ||
		errors.Is(err, payroll.ErrSalaryStructureNotFound) ||
		errors.Is(err, payroll.ErrSalaryStructureEmpty)
}
