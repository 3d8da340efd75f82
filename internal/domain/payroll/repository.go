package payroll

import (
	"context"

	"github.com/shopspring/decimal"
)

type SalaryStructureRepository interface {
	GetByEmployeeID(ctx context.Context, employeeID string) (SalaryStructure, error)
	Upsert(ctx context.Context, structure SalaryStructure) (SalaryStructure, error)
}

// PayslipRepository stores payslips under the unique key (employee_id, year, month).
type PayslipRepository interface {
	// Reserve creates the period row in processing status, or moves an existing row
	// back to processing. A paid row is only reclaimed when allowPaid is set,
	// otherwise ErrPayslipAlreadyPaid is returned.
	Reserve(ctx context.Context, employeeID string, year, month int, allowPaid bool) (Payslip, error)
	// Complete writes the computed figures into a reserved row.
	Complete(ctx context.Context, payslip Payslip) (Payslip, error)
	MarkFailed(ctx context.Context, id string, reason string) error
	MarkPaid(ctx context.Context, ids []string) (int64, error)
	SetFileURL(ctx context.Context, id string, fileURL string) error

	GetByID(ctx context.Context, id string) (Payslip, error)
	GetByEmployeePeriod(ctx context.Context, employeeID string, year, month int) (Payslip, error)
	GetPaidEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]string, error)
	List(ctx context.Context, filter PayslipFilter) ([]Payslip, int64, error)
	GetYearToDate(ctx context.Context, employeeID string, year, month int) (earnings, deductions decimal.Decimal, err error)
}

type RunRepository interface {
	Create(ctx context.Context, run MonthlyProcessingRun) (MonthlyProcessingRun, error)
	Finish(ctx context.Context, run MonthlyProcessingRun) error
	GetByID(ctx context.Context, id string) (MonthlyProcessingRun, error)
	GetLatestByPeriod(ctx context.Context, year, month int) (MonthlyProcessingRun, error)
	ListByPeriod(ctx context.Context, year, month int) ([]MonthlyProcessingRun, error)
}
