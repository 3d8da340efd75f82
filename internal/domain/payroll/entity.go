package payroll

import (
	"time"

	"github.com/shopspring/decimal"
)

// SalaryStructure - Monthly salary structure of an employee.
// ProfessionalTax is derived from the employee's state and is not stored.
type SalaryStructure struct {
	ID               string
	EmployeeID       string
	AnnualCTC        decimal.Decimal
	MonthlyGross     decimal.Decimal
	Basic            decimal.Decimal
	HRA              decimal.Decimal
	SpecialAllowance decimal.Decimal
	PFDeduction      decimal.Decimal
	TaxDeduction     decimal.Decimal
	TotalDeductions  decimal.Decimal
	NetPay           decimal.Decimal
	Currency         string
	EffectiveFrom    time.Time
	EffectiveTo      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsZero reports whether the structure still holds its onboarding zero values
func (s SalaryStructure) IsZero() bool {
	return s.MonthlyGross.IsZero() && s.AnnualCTC.IsZero()
}

// SalaryComponents - Fully computed monthly components with the audit trail
type SalaryComponents struct {
	AnnualCTC        decimal.Decimal    `json:"annual_ctc"`
	MonthlyGross     decimal.Decimal    `json:"monthly_gross"`
	Basic            decimal.Decimal    `json:"basic"`
	HRA              decimal.Decimal    `json:"hra"`
	SpecialAllowance decimal.Decimal    `json:"special_allowance"`
	PFDeduction      decimal.Decimal    `json:"pf_deduction"`
	TaxDeduction     decimal.Decimal    `json:"tax_deduction"`
	ProfessionalTax  decimal.Decimal    `json:"professional_tax"`
	TotalDeductions  decimal.Decimal    `json:"total_deductions"`
	NetPay           decimal.Decimal    `json:"net_pay"`
	EmployerPF       decimal.Decimal    `json:"employer_pf"`
	Details          CalculationDetails `json:"calculation_details"`
}

type CityClass string

const (
	CityMetro    CityClass = "metro"
	CityNonMetro CityClass = "non-metro"
)

// CalculationDetails records the inputs and rules behind a computed structure
type CalculationDetails struct {
	BasicPercentage          decimal.Decimal `json:"basic_percentage"`
	HRAPercentage            decimal.Decimal `json:"hra_percentage"`
	City                     string          `json:"city"`
	CityClassification       CityClass       `json:"city_classification"`
	PFCapApplied             decimal.Decimal `json:"pf_cap_applied"`
	PFWageCeiling            bool            `json:"pf_wage_ceiling"`
	EmployerPFIncluded       bool            `json:"employer_pf_included"`
	StandardDeductionApplied decimal.Decimal `json:"standard_deduction_applied"`
	ProfessionalTaxState     string          `json:"professional_tax_state"`
	AnnualGrossIncome        decimal.Decimal `json:"annual_gross_income"`
	TaxSlabApplied           string          `json:"tax_slab_applied"`
	Overrides                []string        `json:"overrides,omitempty"`
}

// TaxDetails - Breakdown of an annual tax computation
type TaxDetails struct {
	AnnualIncome      decimal.Decimal `json:"annual_income"`
	StandardDeduction decimal.Decimal `json:"standard_deduction"`
	TaxableIncome     decimal.Decimal `json:"taxable_income"`
	GrossTax          decimal.Decimal `json:"gross_tax"`
	RebateApplied     decimal.Decimal `json:"rebate_applied"`
	NetTax            decimal.Decimal `json:"net_tax"`
	RebateLimit       decimal.Decimal `json:"rebate_limit"`
	RebateAmount      decimal.Decimal `json:"rebate_amount"`
	SlabApplied       string          `json:"slab_applied"`
}

// PayslipStatus enum
type PayslipStatus string

const (
	PayslipStatusProcessing PayslipStatus = "processing"
	PayslipStatusProcessed  PayslipStatus = "processed"
	PayslipStatusPaid       PayslipStatus = "paid"
	PayslipStatusFailed     PayslipStatus = "failed"
)

func (s PayslipStatus) IsValid() bool {
	switch s {
	case PayslipStatusProcessing, PayslipStatusProcessed, PayslipStatusPaid, PayslipStatusFailed:
		return true
	}
	return false
}

// Payslip - One record per employee per calendar month
type Payslip struct {
	ID         string
	EmployeeID string
	Year       int
	Month      int

	// Earnings, actual (no leave) and paid (prorated)
	BasicActual            decimal.Decimal
	BasicPaid              decimal.Decimal
	HRAActual              decimal.Decimal
	HRAPaid                decimal.Decimal
	SpecialAllowanceActual decimal.Decimal
	SpecialAllowancePaid   decimal.Decimal
	TotalEarningsActual    decimal.Decimal
	TotalEarningsPaid      decimal.Decimal

	// Deductions
	PFDeduction          decimal.Decimal
	TaxDeduction         decimal.Decimal
	ProfessionalTax      decimal.Decimal
	CustomDeduction      decimal.Decimal
	LeaveDeductionAmount decimal.Decimal
	TotalDeductions      decimal.Decimal

	// Working days
	TotalWorkingDays  int
	ActualPayableDays decimal.Decimal
	LossOfPayDays     decimal.Decimal
	DaysPayable       decimal.Decimal
	UnpaidLeaveDays   decimal.Decimal
	HalfDayLeaves     int

	Amount        decimal.Decimal
	Status        PayslipStatus
	FailureReason *string
	RunID         *string
	Notes         *string
	FileURL       *string
	ProcessedAt   *time.Time
	PaidAt        *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Joined fields
	EmployeeName *string
}

// RunStatus enum
type RunStatus string

const (
	RunStatusInProgress          RunStatus = "in_progress"
	RunStatusCompleted           RunStatus = "completed"
	RunStatusCompletedWithErrors RunStatus = "completed_with_errors"
	RunStatusFailed              RunStatus = "failed"
)

// MonthlyProcessingRun - One bulk invocation of the monthly ledger
type MonthlyProcessingRun struct {
	ID             string
	Year           int
	Month          int
	TotalEmployees int
	ProcessedCount int
	FailedCount    int
	SkippedCount   int
	TotalAmount    decimal.Decimal
	Status         RunStatus
	SkipDuplicates bool
	TriggeredBy    *string
	Notes          *string
	StartedAt      time.Time
	FinishedAt     *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// LeaveBreakdownItem - One leave record's contribution to a month
type LeaveBreakdownItem struct {
	LeaveID     string          `json:"leave_id"`
	StartDate   string          `json:"start_date"`
	EndDate     string          `json:"end_date"`
	Days        decimal.Decimal `json:"days"`
	IsHalfDay   bool            `json:"is_half_day"`
	HalfDayType *string         `json:"half_day_type,omitempty"`
	Reason      *string         `json:"reason,omitempty"`
}

// LeaveSummary - Unpaid leave totals of one employee for one month
type LeaveSummary struct {
	UnpaidDays decimal.Decimal      `json:"unpaid_leave_days"`
	HalfDays   int                  `json:"half_day_leaves"`
	Breakdown  []LeaveBreakdownItem `json:"leave_breakdown"`
}

// LeaveUnits is unpaid days plus half a day per half-day leave
func (s LeaveSummary) LeaveUnits() decimal.Decimal {
	return s.UnpaidDays.Add(decimal.NewFromInt(int64(s.HalfDays)).Mul(decimal.NewFromFloat(0.5)))
}

// LeaveDeduction - Result of prorating a monthly amount by leave
type LeaveDeduction struct {
	DailyRate   decimal.Decimal
	LeaveUnits  decimal.Decimal
	Deduction   decimal.Decimal
	PayableDays decimal.Decimal
	TotalDays   int
}
