package payroll

import (
	"context"
)

type PayrollService interface {
	// Tax
	PreviewTax(ctx context.Context, req TaxPreviewRequest) (TaxPreviewResponse, error)

	// Salary structure
	GetStructure(ctx context.Context, employeeID string) (SalaryStructureResponse, error)
	CalculateStructure(ctx context.Context, req CalculateStructureRequest) (SalaryStructureResponse, error)
	UpdateStructure(ctx context.Context, req UpdateSalaryStructureRequest) (SalaryStructureResponse, error)
	ValidateStructure(ctx context.Context, employeeID string) (StructureValidationResponse, error)
	GetCTCBreakdown(ctx context.Context, employeeID string) (CTCBreakdownResponse, error)

	// Monthly
	ValidateMonth(ctx context.Context, req MonthlyValidationRequest) (MonthlyValidationResponse, error)
	GetDetailedPayslip(ctx context.Context, req DetailedPayslipRequest) (DetailedPayslipResponse, error)

	// Payslips
	ProcessPayslip(ctx context.Context, req ProcessPayslipRequest) (PayslipResponse, error)
	GetPayslip(ctx context.Context, id string) (PayslipResponse, error)
	ListPayslips(ctx context.Context, filter PayslipFilter) (ListPayslipResponse, error)
	FinalizePayslips(ctx context.Context, req FinalizePayslipsRequest) (FinalizePayslipsResponse, error)
	RenderPayslipPDF(ctx context.Context, id string) (content []byte, filename string, err error)

	// Runs
	RunMonthly(ctx context.Context, req BulkProcessRequest) (BulkProcessResponse, error)
	GetRun(ctx context.Context, id string) (RunResponse, error)
	ListRuns(ctx context.Context, year, month int) ([]RunResponse, error)
}
