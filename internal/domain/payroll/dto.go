package payroll

import (
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

var (
	minBasicPercentage = decimal.NewFromFloat(0.3)
	maxBasicPercentage = decimal.NewFromFloat(0.6)
)

func validatePeriod(errs validator.ValidationErrors, year, month int) validator.ValidationErrors {
	if year < 2000 || year > 2100 {
		errs = append(errs, validator.ValidationError{Field: "year", Message: "must be between 2000 and 2100"})
	}
	if month < 1 || month > 12 {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "must be between 1 and 12"})
	}
	return errs
}

func validateLeaveOverrides(errs validator.ValidationErrors, unpaid *decimal.Decimal, halfDays *int) validator.ValidationErrors {
	if unpaid != nil && unpaid.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "unpaid_leave_days", Message: "must be non-negative"})
	}
	if halfDays != nil && *halfDays < 0 {
		errs = append(errs, validator.ValidationError{Field: "half_day_leaves", Message: "must be non-negative"})
	}
	return errs
}

// ========== TAX DTOs ==========

type TaxPreviewRequest struct {
	AnnualIncome decimal.Decimal `json:"annual_income"`
}

func (r *TaxPreviewRequest) Validate() error {
	var errs validator.ValidationErrors

	if r.AnnualIncome.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "annual_income", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type TaxPreviewResponse struct {
	AnnualTax  decimal.Decimal `json:"annual_tax"`
	MonthlyTax decimal.Decimal `json:"monthly_tax"`
	Details    TaxDetails      `json:"details"`
}

// ========== SALARY STRUCTURE DTOs ==========

// StructureOverrides carries manually set components. Nil fields keep the computed value.
type StructureOverrides struct {
	Basic            *decimal.Decimal `json:"basic,omitempty"`
	HRA              *decimal.Decimal `json:"hra,omitempty"`
	SpecialAllowance *decimal.Decimal `json:"special_allowance,omitempty"`
	PFDeduction      *decimal.Decimal `json:"pf_deduction,omitempty"`
	TaxDeduction     *decimal.Decimal `json:"tax_deduction,omitempty"`
	ProfessionalTax  *decimal.Decimal `json:"professional_tax,omitempty"`
}

func (o StructureOverrides) IsEmpty() bool {
	return o.Basic == nil && o.HRA == nil && o.SpecialAllowance == nil &&
		o.PFDeduction == nil && o.TaxDeduction == nil && o.ProfessionalTax == nil
}

func (o StructureOverrides) validate(errs validator.ValidationErrors) validator.ValidationErrors {
	// special_allowance may go negative, the structure validator reports it
	nonNegative := []struct {
		field string
		value *decimal.Decimal
	}{
		{"overrides.basic", o.Basic},
		{"overrides.hra", o.HRA},
		{"overrides.pf_deduction", o.PFDeduction},
		{"overrides.tax_deduction", o.TaxDeduction},
		{"overrides.professional_tax", o.ProfessionalTax},
	}
	for _, f := range nonNegative {
		if f.value != nil && f.value.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: f.field, Message: "must be non-negative"})
		}
	}
	return errs
}

type CalculateStructureRequest struct {
	EmployeeID        string
	AnnualCTC         *decimal.Decimal   `json:"annual_ctc,omitempty"`
	MonthlyGross      *decimal.Decimal   `json:"monthly_gross,omitempty"`
	City              *string            `json:"city,omitempty"`
	State             *string            `json:"state,omitempty"`
	BasicPercentage   *decimal.Decimal   `json:"basic_percentage,omitempty"`
	IncludeEmployerPF bool               `json:"include_employer_pf"`
	Overrides         StructureOverrides `json:"overrides"`
	Save              bool               `json:"save"`
}

func (r *CalculateStructureRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}

	hasCTC := r.AnnualCTC != nil && r.AnnualCTC.IsPositive()
	hasGross := r.MonthlyGross != nil && r.MonthlyGross.IsPositive()
	if !hasCTC && !hasGross {
		errs = append(errs, validator.ValidationError{Field: "annual_ctc", Message: "annual_ctc or monthly_gross must be greater than 0"})
	}

	if r.BasicPercentage != nil && (r.BasicPercentage.LessThan(minBasicPercentage) || r.BasicPercentage.GreaterThan(maxBasicPercentage)) {
		errs = append(errs, validator.ValidationError{Field: "basic_percentage", Message: "must be between 0.3 and 0.6"})
	}

	errs = r.Overrides.validate(errs)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type UpdateSalaryStructureRequest struct {
	EmployeeID    string
	Overrides     StructureOverrides `json:"overrides"`
	Currency      *string            `json:"currency,omitempty"`
	EffectiveFrom *string            `json:"effective_from,omitempty"`
}

func (r *UpdateSalaryStructureRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	if r.Overrides.IsEmpty() && r.Currency == nil && r.EffectiveFrom == nil {
		errs = append(errs, validator.ValidationError{Field: "overrides", Message: "at least one field must be updated"})
	}
	if r.Currency != nil && len(*r.Currency) != 3 {
		errs = append(errs, validator.ValidationError{Field: "currency", Message: "must be a 3-letter currency code"})
	}
	if r.EffectiveFrom != nil {
		if _, ok := validator.IsValidDate(*r.EffectiveFrom); !ok {
			errs = append(errs, validator.ValidationError{Field: "effective_from", Message: "must be in YYYY-MM-DD format"})
		}
	}

	errs = r.Overrides.validate(errs)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type SalaryStructureResponse struct {
	EmployeeID       string           `json:"employee_id"`
	Currency         string           `json:"currency"`
	EffectiveFrom    *string          `json:"effective_from,omitempty"`
	Components       SalaryComponents `json:"components"`
	IsValid          bool             `json:"is_valid"`
	ValidationIssues []string         `json:"validation_issues"`
	Saved            bool             `json:"saved"`
}

type StructureValidationResponse struct {
	EmployeeID           string          `json:"employee_id"`
	IsValid              bool            `json:"is_valid"`
	Issues               []string        `json:"issues"`
	Recommendations      []string        `json:"recommendations"`
	ComplianceScore      decimal.Decimal `json:"compliance_score"`
	BasicPercentage      decimal.Decimal `json:"basic_percentage"`
	HRAPercentage        decimal.Decimal `json:"hra_percentage"`
	DeductionsPercentage decimal.Decimal `json:"deductions_percentage"`
}

type CTCBreakdownResponse struct {
	Employee           employee.Identity  `json:"employee"`
	AnnualCTC          decimal.Decimal    `json:"annual_ctc"`
	MonthlyCTC         decimal.Decimal    `json:"monthly_ctc"`
	Components         SalaryComponents   `json:"components"`
	EmployerPF         decimal.Decimal    `json:"employer_pf"`
	CostPerDay         decimal.Decimal    `json:"cost_per_day"`
	CalculationDetails CalculationDetails `json:"calculation_details"`
	GeneratedAt        time.Time          `json:"generated_at"`
}

// ========== MONTHLY DTOs ==========

type MonthlyValidationRequest struct {
	EmployeeID      string
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	UnpaidLeaveDays *decimal.Decimal `json:"unpaid_leave_days,omitempty"`
	HalfDayLeaves   *int             `json:"half_day_leaves,omitempty"`
	CustomDeduction *decimal.Decimal `json:"custom_deduction,omitempty"`
	GeneratePayslip bool             `json:"generate_payslip"`
}

func (r *MonthlyValidationRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	errs = validatePeriod(errs, r.Year, r.Month)
	errs = validateLeaveOverrides(errs, r.UnpaidLeaveDays, r.HalfDayLeaves)
	if r.CustomDeduction != nil && r.CustomDeduction.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "custom_deduction", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type MonthlyValidationResponse struct {
	EmployeeID         string               `json:"employee_id"`
	Year               int                  `json:"year"`
	Month              int                  `json:"month"`
	IsValid            bool                 `json:"is_valid"`
	Issues             []string             `json:"issues"`
	DaysInMonth        int                  `json:"days_in_month"`
	WorkingDays        int                  `json:"working_days"`
	UnpaidLeaveDays    decimal.Decimal      `json:"unpaid_leave_days"`
	HalfDayLeaves      int                  `json:"half_day_leaves"`
	PayableDays        decimal.Decimal      `json:"payable_days"`
	DailySalary        decimal.Decimal      `json:"daily_salary"`
	LeaveDeduction     decimal.Decimal      `json:"leave_deduction"`
	CustomDeduction    decimal.Decimal      `json:"custom_deduction"`
	FinalNetSalary     decimal.Decimal      `json:"final_net_salary"`
	PayslipID          *string              `json:"payslip_id,omitempty"`
	LeaveBreakdown     []LeaveBreakdownItem `json:"leave_breakdown"`
	CalculationDetails map[string]string    `json:"calculation_details"`
}

type DetailedPayslipRequest struct {
	EmployeeID      string
	Year            int
	Month           int
	UnpaidLeaveDays *decimal.Decimal
	HalfDayLeaves   *int
}

func (r *DetailedPayslipRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	errs = validatePeriod(errs, r.Year, r.Month)
	errs = validateLeaveOverrides(errs, r.UnpaidLeaveDays, r.HalfDayLeaves)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type DetailedPayslipResponse struct {
	Employee  employee.Identity `json:"employee"`
	PayslipID *string           `json:"payslip_id,omitempty"`
	Year      int               `json:"year"`
	Month     int               `json:"month"`
	PayDate   string            `json:"pay_date"`

	AnnualCTC  decimal.Decimal `json:"annual_ctc"`
	MonthlyCTC decimal.Decimal `json:"monthly_ctc"`

	BasicActual             decimal.Decimal `json:"basic_actual"`
	BasicPayable            decimal.Decimal `json:"basic_payable"`
	HRAActual               decimal.Decimal `json:"hra_actual"`
	HRAPayable              decimal.Decimal `json:"hra_payable"`
	SpecialAllowanceActual  decimal.Decimal `json:"special_allowance_actual"`
	SpecialAllowancePayable decimal.Decimal `json:"special_allowance_payable"`
	TotalEarningsActual     decimal.Decimal `json:"total_earnings_actual"`
	TotalEarningsPayable    decimal.Decimal `json:"total_earnings_payable"`

	PFDeduction     decimal.Decimal `json:"pf_deduction"`
	TaxDeduction    decimal.Decimal `json:"tax_deduction"`
	ProfessionalTax decimal.Decimal `json:"professional_tax"`
	LeaveDeduction  decimal.Decimal `json:"leave_deduction"`
	OtherDeductions decimal.Decimal `json:"other_deductions"`
	TotalDeductions decimal.Decimal `json:"total_deductions"`

	GrossSalary          decimal.Decimal `json:"gross_salary"`
	InHandSalary         decimal.Decimal `json:"in_hand_salary"`
	FinalAmount          decimal.Decimal `json:"final_amount"`
	TotalDays            int             `json:"total_days"`
	WorkingDays          int             `json:"working_days"`
	UnpaidLeaveDays      decimal.Decimal `json:"unpaid_leave_days"`
	HalfDayLeaves        int             `json:"half_day_leaves"`
	PayableDays          decimal.Decimal `json:"payable_days"`
	PerDaySalary         decimal.Decimal `json:"per_day_salary"`
	SalaryCut            decimal.Decimal `json:"salary_cut"`
	FinalProcessedSalary decimal.Decimal `json:"final_processed_salary"`

	YTDEarnings   *decimal.Decimal `json:"ytd_earnings,omitempty"`
	YTDDeductions *decimal.Decimal `json:"ytd_deductions,omitempty"`

	LeaveBreakdown     []LeaveBreakdownItem `json:"leave_breakdown"`
	CalculationDetails map[string]string    `json:"calculation_details"`
}

// ========== PAYSLIP DTOs ==========

type ProcessPayslipRequest struct {
	EmployeeID      string           `json:"employee_id"`
	Year            int              `json:"year"`
	Month           int              `json:"month"`
	UnpaidLeaveDays *decimal.Decimal `json:"unpaid_leave_days,omitempty"`
	HalfDayLeaves   *int             `json:"half_day_leaves,omitempty"`
	CustomDeduction *decimal.Decimal `json:"custom_deduction,omitempty"`
	Notes           *string          `json:"notes,omitempty"`
	Reprocess       bool             `json:"reprocess"`
}

func (r *ProcessPayslipRequest) Validate() error {
	var errs validator.ValidationErrors

	if validator.IsEmpty(r.EmployeeID) {
		errs = append(errs, validator.ValidationError{Field: "employee_id", Message: "is required"})
	}
	errs = validatePeriod(errs, r.Year, r.Month)
	errs = validateLeaveOverrides(errs, r.UnpaidLeaveDays, r.HalfDayLeaves)
	if r.CustomDeduction != nil && r.CustomDeduction.IsNegative() {
		errs = append(errs, validator.ValidationError{Field: "custom_deduction", Message: "must be non-negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type PayslipResponse struct {
	ID           string  `json:"id"`
	EmployeeID   string  `json:"employee_id"`
	EmployeeName *string `json:"employee_name,omitempty"`
	Year         int     `json:"year"`
	Month        int     `json:"month"`

	BasicActual            decimal.Decimal `json:"basic_actual"`
	BasicPaid              decimal.Decimal `json:"basic_paid"`
	HRAActual              decimal.Decimal `json:"hra_actual"`
	HRAPaid                decimal.Decimal `json:"hra_paid"`
	SpecialAllowanceActual decimal.Decimal `json:"special_allowance_actual"`
	SpecialAllowancePaid   decimal.Decimal `json:"special_allowance_paid"`
	TotalEarningsActual    decimal.Decimal `json:"total_earnings_actual"`
	TotalEarningsPaid      decimal.Decimal `json:"total_earnings_paid"`

	PFDeduction          decimal.Decimal `json:"pf_deduction"`
	TaxDeduction         decimal.Decimal `json:"tax_deduction"`
	ProfessionalTax      decimal.Decimal `json:"professional_tax"`
	CustomDeduction      decimal.Decimal `json:"custom_deduction"`
	LeaveDeductionAmount decimal.Decimal `json:"leave_deduction_amount"`
	TotalDeductions      decimal.Decimal `json:"total_deductions"`

	TotalWorkingDays  int             `json:"total_working_days"`
	ActualPayableDays decimal.Decimal `json:"actual_payable_days"`
	LossOfPayDays     decimal.Decimal `json:"loss_of_pay_days"`
	DaysPayable       decimal.Decimal `json:"days_payable"`
	UnpaidLeaveDays   decimal.Decimal `json:"unpaid_leave_days"`
	HalfDayLeaves     int             `json:"half_day_leaves"`

	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	FailureReason *string         `json:"failure_reason,omitempty"`
	RunID         *string         `json:"run_id,omitempty"`
	Notes         *string         `json:"notes,omitempty"`
	FileURL       *string         `json:"file_url,omitempty"`
	ProcessedAt   *string         `json:"processed_at,omitempty"`
	PaidAt        *string         `json:"paid_at,omitempty"`
}

type PayslipFilter struct {
	Year       *int    `json:"year,omitempty"`
	Month      *int    `json:"month,omitempty"`
	Status     *string `json:"status,omitempty"`
	EmployeeID *string `json:"employee_id,omitempty"`
	Page       int     `json:"page"`
	Limit      int     `json:"limit"`
}

func (f *PayslipFilter) Validate() error {
	var errs validator.ValidationErrors

	if f.Month != nil && (*f.Month < 1 || *f.Month > 12) {
		errs = append(errs, validator.ValidationError{Field: "month", Message: "must be between 1 and 12"})
	}
	if f.Status != nil && !PayslipStatus(*f.Status).IsValid() {
		errs = append(errs, validator.ValidationError{Field: "status", Message: "must be one of processing, processed, paid, failed"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type ListPayslipResponse struct {
	Data       []PayslipResponse `json:"data"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}

type FinalizePayslipsRequest struct {
	PayslipIDs []string `json:"payslip_ids"`
}

func (r *FinalizePayslipsRequest) Validate() error {
	var errs validator.ValidationErrors

	if len(r.PayslipIDs) == 0 {
		errs = append(errs, validator.ValidationError{Field: "payslip_ids", Message: "at least one payslip is required"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

type FinalizePayslipsResponse struct {
	Requested int   `json:"requested"`
	Finalized int64 `json:"finalized"`
}

// ========== RUN DTOs ==========

type BulkProcessRequest struct {
	Year             int                        `json:"year"`
	Month            int                        `json:"month"`
	EmployeeIDs      []string                   `json:"employee_ids,omitempty"`
	CustomDeductions map[string]decimal.Decimal `json:"custom_deductions,omitempty"`
	Notes            *string                    `json:"notes,omitempty"`
	SkipDuplicates   *bool                      `json:"skip_duplicates,omitempty"`
	DryRun           bool                       `json:"dry_run"`
	TriggeredBy      *string                    `json:"-"`
}

func (r *BulkProcessRequest) Validate() error {
	var errs validator.ValidationErrors

	errs = validatePeriod(errs, r.Year, r.Month)
	for id, amount := range r.CustomDeductions {
		if amount.IsNegative() {
			errs = append(errs, validator.ValidationError{Field: "custom_deductions." + id, Message: "must be non-negative"})
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ShouldSkipDuplicates defaults to true when the flag is omitted
func (r *BulkProcessRequest) ShouldSkipDuplicates() bool {
	return r.SkipDuplicates == nil || *r.SkipDuplicates
}

type EmployeeProcessingResult struct {
	EmployeeID         string          `json:"employee_id"`
	EmployeeName       string          `json:"employee_name"`
	Success            bool            `json:"success"`
	Message            string          `json:"message"`
	PayslipID          *string         `json:"payslip_id,omitempty"`
	AmountProcessed    decimal.Decimal `json:"amount_processed"`
	DuplicatePrevented bool            `json:"duplicate_prevented"`
}

type BulkProcessResponse struct {
	RunID                *string                    `json:"run_id,omitempty"`
	PreviousRunID        *string                    `json:"previous_run_id,omitempty"`
	Year                 int                        `json:"year"`
	Month                int                        `json:"month"`
	DryRun               bool                       `json:"dry_run"`
	Status               string                     `json:"status"`
	TotalEmployees       int                        `json:"total_employees"`
	SuccessfulCount      int                        `json:"successful_count"`
	FailedCount          int                        `json:"failed_count"`
	SkippedCount         int                        `json:"skipped_count"`
	TotalAmountProcessed decimal.Decimal            `json:"total_amount_processed"`
	ProcessedEmployees   []EmployeeProcessingResult `json:"processed_employees"`
	FailedEmployees      []EmployeeProcessingResult `json:"failed_employees"`
	SkippedEmployees     []EmployeeProcessingResult `json:"skipped_employees"`
}

type RunResponse struct {
	ID             string          `json:"id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Status         string          `json:"status"`
	TotalEmployees int             `json:"total_employees"`
	ProcessedCount int             `json:"processed_count"`
	FailedCount    int             `json:"failed_count"`
	SkippedCount   int             `json:"skipped_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	SkipDuplicates bool            `json:"skip_duplicates"`
	TriggeredBy    *string         `json:"triggered_by,omitempty"`
	Notes          *string         `json:"notes,omitempty"`
	StartedAt      string          `json:"started_at"`
	FinishedAt     *string         `json:"finished_at,omitempty"`
}
