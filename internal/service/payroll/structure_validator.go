package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

const (
	issuePenalty          = 15
	recommendationPenalty = 5
)

// StructureValidator runs compliance checks over computed components. It never
// mutates its input and never fails.
type StructureValidator struct {
	tables *Tables
}

func NewStructureValidator(tables *Tables) *StructureValidator {
	return &StructureValidator{tables: tables}
}

func (v *StructureValidator) basicRatio(c payroll.SalaryComponents) (decimal.Decimal, bool) {
	if !c.AnnualCTC.IsPositive() {
		return decimal.Zero, false
	}
	return c.Basic.Mul(twelve).Div(c.AnnualCTC), true
}

func (v *StructureValidator) hraRatio(c payroll.SalaryComponents) (decimal.Decimal, bool) {
	if !c.Basic.IsPositive() {
		return decimal.Zero, false
	}
	return c.HRA.Div(c.Basic), true
}

// Validate returns the list of compliance issues, empty when compliant.
func (v *StructureValidator) Validate(c payroll.SalaryComponents) []string {
	issues := []string{}
	t := v.tables

	if ratio, ok := v.basicRatio(c); !ok {
		issues = append(issues, "Annual CTC is not positive")
	} else if ratio.LessThan(t.minBasicRatio) {
		issues = append(issues, "Basic salary is less than 35% of CTC (unusual)")
	} else if ratio.GreaterThan(t.maxBasicRatio) {
		issues = append(issues, "Basic salary is more than 60% of CTC (unusual)")
	}

	if c.HRA.IsPositive() {
		ratio, ok := v.hraRatio(c)
		if !ok || ratio.GreaterThan(t.maxHRAToBasic) {
			issues = append(issues, "HRA is more than 60% of basic salary (unusual)")
		}
	}

	if c.SpecialAllowance.IsNegative() {
		issues = append(issues, fmt.Sprintf("Special allowance is negative (%s)", c.SpecialAllowance.StringFixed(2)))
	}

	if !c.NetPay.IsPositive() {
		issues = append(issues, "Net pay is not positive")
	}

	if c.PFDeduction.GreaterThan(c.Basic.Mul(t.employeePFRate).Round(2)) {
		issues = append(issues, "PF deduction exceeds 12% of basic salary")
	}

	return issues
}

// ValidateDetailed adds recommendations, ratios and a compliance score.
func (v *StructureValidator) ValidateDetailed(c payroll.SalaryComponents) payroll.StructureValidationResponse {
	t := v.tables
	issues := v.Validate(c)

	basicPct, _ := v.basicRatio(c)
	hraPct, _ := v.hraRatio(c)
	deductionsPct := decimal.Zero
	if c.AnnualCTC.IsPositive() {
		deductionsPct = c.TotalDeductions.Mul(twelve).Div(c.AnnualCTC)
	}

	recommendations := []string{}
	if basicPct.LessThan(t.minBasicRatio) {
		recommendations = append(recommendations, "Consider increasing basic salary to at least 35% of CTC")
	} else if basicPct.GreaterThan(t.maxBasicRatio) {
		recommendations = append(recommendations, "Consider reducing basic salary to no more than 60% of CTC")
	}
	if hraPct.GreaterThan(t.maxHRAToBasic) {
		recommendations = append(recommendations, "HRA seems unusually high compared to basic salary")
	}
	if !c.NetPay.IsPositive() {
		recommendations = append(recommendations, "Net pay should be positive")
	}

	score := int64(100 - issuePenalty*len(issues) - recommendationPenalty*len(recommendations))
	if score < 0 {
		score = 0
	}

	return payroll.StructureValidationResponse{
		IsValid:              len(issues) == 0,
		Issues:               issues,
		Recommendations:      recommendations,
		ComplianceScore:      decimal.NewFromInt(score),
		BasicPercentage:      basicPct.Round(4),
		HRAPercentage:        hraPct.Round(4),
		DeductionsPercentage: deductionsPct.Round(4),
	}
}
