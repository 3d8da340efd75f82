package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var twelve = decimal.NewFromInt(12)

type TaxEngine struct {
	tables *Tables
}

func NewTaxEngine(tables *Tables) *TaxEngine {
	return &TaxEngine{tables: tables}
}

// ComputeTax returns the annual tax on annualIncome after the standard deduction
// and the low-income rebate.
func (e *TaxEngine) ComputeTax(annualIncome decimal.Decimal) (payroll.TaxDetails, error) {
	if annualIncome.IsNegative() {
		return payroll.TaxDetails{}, fmt.Errorf("%w: annual income must be non-negative", payroll.ErrInvalidInput)
	}

	t := e.tables
	taxable := decimal.Max(decimal.Zero, annualIncome.Sub(t.standardDeduction))

	tax := decimal.Zero
	previous := decimal.Zero
	for _, slab := range t.slabs {
		if taxable.LessThanOrEqual(previous) {
			break
		}
		upper := taxable
		if slab.UpperBound != nil && slab.UpperBound.LessThan(taxable) {
			upper = *slab.UpperBound
		}
		tax = tax.Add(upper.Sub(previous).Mul(slab.Rate))
		if slab.UpperBound == nil {
			break
		}
		previous = *slab.UpperBound
	}
	tax = tax.Round(2)

	rebate := decimal.Zero
	if taxable.LessThanOrEqual(t.rebateLimit) {
		rebate = decimal.Min(tax, t.rebateAmount)
	}

	return payroll.TaxDetails{
		AnnualIncome:      annualIncome,
		StandardDeduction: t.standardDeduction,
		TaxableIncome:     taxable,
		GrossTax:          tax,
		RebateApplied:     rebate,
		NetTax:            tax.Sub(rebate),
		RebateLimit:       t.rebateLimit,
		RebateAmount:      t.rebateAmount,
		SlabApplied:       t.SlabLabel(taxable),
	}, nil
}

// MonthlyTax is the annual net tax spread over twelve months.
func (e *TaxEngine) MonthlyTax(annualIncome decimal.Decimal) (decimal.Decimal, payroll.TaxDetails, error) {
	details, err := e.ComputeTax(annualIncome)
	if err != nil {
		return decimal.Zero, payroll.TaxDetails{}, err
	}
	return details.NetTax.Div(twelve).Round(2), details, nil
}
