package payroll

import (
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// DeductionBasis selects which monthly figure leave days are charged against
type DeductionBasis string

const (
	DeductionBasisNet   DeductionBasis = "net"
	DeductionBasisGross DeductionBasis = "gross"
)

// Rules are the deployment-level switches on top of the statutory tables
type Rules struct {
	PFWageCeiling  bool
	DeductionBasis DeductionBasis
	Currency       string
}

func DefaultRules() Rules {
	return Rules{
		PFWageCeiling:  true,
		DeductionBasis: DeductionBasisNet,
		Currency:       "INR",
	}
}

type CTCInput struct {
	AnnualCTC         decimal.Decimal
	City              string
	State             string
	BasicPercentage   *decimal.Decimal
	IncludeEmployerPF bool
}

var (
	minBasicPct = decimal.NewFromFloat(0.3)
	maxBasicPct = decimal.NewFromFloat(0.6)
)

type Calculator struct {
	tables *Tables
	tax    *TaxEngine
	rules  Rules
}

func NewCalculator(tables *Tables, tax *TaxEngine, rules Rules) *Calculator {
	return &Calculator{tables: tables, tax: tax, rules: rules}
}

// pfWage is the part of basic PF is charged on
func (c *Calculator) pfWage(basic decimal.Decimal) decimal.Decimal {
	if c.rules.PFWageCeiling {
		return decimal.Min(basic, c.tables.pfCap)
	}
	return basic
}

// PF returns the monthly employee and employer contributions for basic
func (c *Calculator) PF(basic decimal.Decimal) (employee, employer decimal.Decimal) {
	wage := c.pfWage(basic)
	return wage.Mul(c.tables.employeePFRate).Round(2), wage.Mul(c.tables.employerPFRate).Round(2)
}

// MonthlyProfessionalTax returns the state's monthly amount and the table key it came from
func (c *Calculator) MonthlyProfessionalTax(state string) (decimal.Decimal, string) {
	annual, key := c.tables.AnnualProfessionalTax(state)
	return annual.Div(twelve).Round(2), key
}

// FromCTC decomposes an annual CTC into monthly components.
func (c *Calculator) FromCTC(in CTCInput) (payroll.SalaryComponents, error) {
	if !in.AnnualCTC.IsPositive() {
		return payroll.SalaryComponents{}, fmt.Errorf("%w: annual CTC must be greater than 0", payroll.ErrInvalidInput)
	}

	basicPct := c.tables.basicPercentage
	if in.BasicPercentage != nil {
		if in.BasicPercentage.LessThan(minBasicPct) || in.BasicPercentage.GreaterThan(maxBasicPct) {
			return payroll.SalaryComponents{}, fmt.Errorf("%w: basic percentage must be between 0.3 and 0.6", payroll.ErrInvalidInput)
		}
		basicPct = *in.BasicPercentage
	}

	hraRate := c.tables.HRARate(in.City)
	basic := in.AnnualCTC.Mul(basicPct).Div(twelve).Round(2)
	hra := basic.Mul(hraRate).Round(2)
	pf, employerPF := c.PF(basic)

	remaining := in.AnnualCTC.Sub(basic.Add(hra).Mul(twelve))
	if in.IncludeEmployerPF {
		remaining = remaining.Sub(employerPF.Mul(twelve))
	}
	special := remaining.Div(twelve).Round(2)

	gross := basic.Add(hra).Add(special)
	tax, taxDetails, err := c.tax.MonthlyTax(gross.Mul(twelve))
	if err != nil {
		return payroll.SalaryComponents{}, err
	}
	profTax, stateKey := c.MonthlyProfessionalTax(in.State)

	components := payroll.SalaryComponents{
		AnnualCTC:        in.AnnualCTC,
		Basic:            basic,
		HRA:              hra,
		SpecialAllowance: special,
		PFDeduction:      pf,
		TaxDeduction:     tax,
		ProfessionalTax:  profTax,
		EmployerPF:       employerPF,
		Details: payroll.CalculationDetails{
			BasicPercentage:          basicPct,
			HRAPercentage:            hraRate,
			City:                     normalize(in.City),
			CityClassification:       c.tables.CityClass(in.City),
			PFCapApplied:             c.pfWage(basic),
			PFWageCeiling:            c.rules.PFWageCeiling,
			EmployerPFIncluded:       in.IncludeEmployerPF,
			StandardDeductionApplied: c.tables.standardDeduction,
			ProfessionalTaxState:     stateKey,
			AnnualGrossIncome:        taxDetails.AnnualIncome,
			TaxSlabApplied:           taxDetails.SlabApplied,
		},
	}
	for _, n := range []node{nodeGross, nodeDeductions, nodeNet} {
		derive[n](&components)
	}

	return components, nil
}

// FromMonthlyGross treats twelve months of gross as the annual CTC.
func (c *Calculator) FromMonthlyGross(monthlyGross decimal.Decimal, in CTCInput) (payroll.SalaryComponents, error) {
	if !monthlyGross.IsPositive() {
		return payroll.SalaryComponents{}, fmt.Errorf("%w: monthly gross must be greater than 0", payroll.ErrInvalidInput)
	}
	in.AnnualCTC = monthlyGross.Mul(twelve)
	return c.FromCTC(in)
}

// FromStructure rebuilds components from a stored structure. Professional tax is
// whatever the stored total carries beyond PF and income tax.
func (c *Calculator) FromStructure(s payroll.SalaryStructure, city, state string) payroll.SalaryComponents {
	_, employerPF := c.PF(s.Basic)
	profTax := decimal.Max(decimal.Zero, s.TotalDeductions.Sub(s.PFDeduction).Sub(s.TaxDeduction))
	_, stateKey := c.tables.AnnualProfessionalTax(state)

	basicPct := decimal.Zero
	if s.AnnualCTC.IsPositive() {
		basicPct = s.Basic.Mul(twelve).Div(s.AnnualCTC).Round(4)
	}
	hraPct := decimal.Zero
	if s.Basic.IsPositive() {
		hraPct = s.HRA.Div(s.Basic).Round(4)
	}
	annualGross := s.MonthlyGross.Mul(twelve)

	return payroll.SalaryComponents{
		AnnualCTC:        s.AnnualCTC,
		MonthlyGross:     s.MonthlyGross,
		Basic:            s.Basic,
		HRA:              s.HRA,
		SpecialAllowance: s.SpecialAllowance,
		PFDeduction:      s.PFDeduction,
		TaxDeduction:     s.TaxDeduction,
		ProfessionalTax:  profTax,
		TotalDeductions:  s.TotalDeductions,
		NetPay:           s.NetPay,
		EmployerPF:       employerPF,
		Details: payroll.CalculationDetails{
			BasicPercentage:          basicPct,
			HRAPercentage:            hraPct,
			City:                     normalize(city),
			CityClassification:       c.tables.CityClass(city),
			PFCapApplied:             c.pfWage(s.Basic),
			PFWageCeiling:            c.rules.PFWageCeiling,
			StandardDeductionApplied: c.tables.standardDeduction,
			ProfessionalTaxState:     stateKey,
			AnnualGrossIncome:        annualGross,
			TaxSlabApplied:           c.tables.SlabLabel(decimal.Max(decimal.Zero, annualGross.Sub(c.tables.standardDeduction))),
		},
	}
}

// ToStructure maps computed components onto a storable structure.
func ToStructure(employeeID string, c payroll.SalaryComponents, currency string) payroll.SalaryStructure {
	return payroll.SalaryStructure{
		EmployeeID:       employeeID,
		AnnualCTC:        c.AnnualCTC,
		MonthlyGross:     c.MonthlyGross,
		Basic:            c.Basic,
		HRA:              c.HRA,
		SpecialAllowance: c.SpecialAllowance,
		PFDeduction:      c.PFDeduction,
		TaxDeduction:     c.TaxDeduction,
		TotalDeductions:  c.TotalDeductions,
		NetPay:           c.NetPay,
		Currency:         currency,
	}
}

// ========== OVERRIDES ==========

// node is a field in the salary dependency graph
type node int

const (
	nodeBasic node = iota
	nodeHRA
	nodeSpecialAllowance
	nodePF
	nodeTax
	nodeProfessionalTax
	nodeGross
	nodeDeductions
	nodeAnnualCTC
	nodeNet
)

var nodeNames = map[node]string{
	nodeBasic:            "basic",
	nodeHRA:              "hra",
	nodeSpecialAllowance: "special_allowance",
	nodePF:               "pf_deduction",
	nodeTax:              "tax_deduction",
	nodeProfessionalTax:  "professional_tax",
}

// dependents lists, for each field, the derived fields computed from it.
//
//	gross      <- basic, hra, special_allowance
//	deductions <- pf, tax, professional_tax
//	annual_ctc <- gross
//	net        <- gross, deductions
var dependents = map[node][]node{
	nodeBasic:            {nodeGross},
	nodeHRA:              {nodeGross},
	nodeSpecialAllowance: {nodeGross},
	nodePF:               {nodeDeductions},
	nodeTax:              {nodeDeductions},
	nodeProfessionalTax:  {nodeDeductions},
	nodeGross:            {nodeAnnualCTC, nodeNet},
	nodeDeductions:       {nodeNet},
}

// derivedOrder is a topological order of the derived nodes
var derivedOrder = []node{nodeGross, nodeDeductions, nodeAnnualCTC, nodeNet}

var derive = map[node]func(*payroll.SalaryComponents){
	nodeGross: func(c *payroll.SalaryComponents) {
		c.MonthlyGross = c.Basic.Add(c.HRA).Add(c.SpecialAllowance)
	},
	nodeDeductions: func(c *payroll.SalaryComponents) {
		c.TotalDeductions = c.PFDeduction.Add(c.TaxDeduction).Add(c.ProfessionalTax)
	},
	nodeAnnualCTC: func(c *payroll.SalaryComponents) {
		c.AnnualCTC = c.MonthlyGross.Mul(twelve)
	},
	nodeNet: func(c *payroll.SalaryComponents) {
		c.NetPay = c.MonthlyGross.Sub(c.TotalDeductions)
	},
}

// recompute refreshes every derived node reachable from the changed nodes,
// walking derivedOrder so each node sees its inputs already updated.
func recompute(c *payroll.SalaryComponents, changed ...node) {
	dirty := make(map[node]bool)
	queue := append([]node(nil), changed...)
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if dirty[n] {
			continue
		}
		dirty[n] = true
		queue = append(queue, dependents[n]...)
	}
	for _, n := range derivedOrder {
		if dirty[n] {
			derive[n](c)
		}
	}
}

// ApplyOverrides sets the overridden fields and recomputes their dependents.
// Overriding an earning rederives annual CTC as twelve months of gross.
func ApplyOverrides(c payroll.SalaryComponents, o payroll.StructureOverrides) payroll.SalaryComponents {
	fields := []struct {
		node   node
		value  *decimal.Decimal
		target *decimal.Decimal
	}{
		{nodeBasic, o.Basic, &c.Basic},
		{nodeHRA, o.HRA, &c.HRA},
		{nodeSpecialAllowance, o.SpecialAllowance, &c.SpecialAllowance},
		{nodePF, o.PFDeduction, &c.PFDeduction},
		{nodeTax, o.TaxDeduction, &c.TaxDeduction},
		{nodeProfessionalTax, o.ProfessionalTax, &c.ProfessionalTax},
	}

	var changed []node
	c.Details.Overrides = append([]string(nil), c.Details.Overrides...)
	for _, f := range fields {
		if f.value == nil {
			continue
		}
		*f.target = f.value.Round(2)
		changed = append(changed, f.node)
		c.Details.Overrides = append(c.Details.Overrides, nodeNames[f.node])
	}
	if len(changed) == 0 {
		return c
	}

	recompute(&c, changed...)
	return c
}
