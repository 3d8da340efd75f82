package payroll

import (
	"fmt"
	"strings"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

// TaxSlab is one progressive band. A nil UpperBound is unbounded.
type TaxSlab struct {
	UpperBound *decimal.Decimal
	Rate       decimal.Decimal
}

// Tables holds the statutory constants and lookup tables. Build once at startup
// and share; nothing mutates it after construction.
type Tables struct {
	basicPercentage   decimal.Decimal
	metroHRARate      decimal.Decimal
	nonMetroHRARate   decimal.Decimal
	employeePFRate    decimal.Decimal
	employerPFRate    decimal.Decimal
	pfCap             decimal.Decimal
	standardDeduction decimal.Decimal
	rebateLimit       decimal.Decimal
	rebateAmount      decimal.Decimal
	slabs             []TaxSlab

	metroCities       map[string]struct{}
	professionalTax   map[string]decimal.Decimal
	defaultProfTax    decimal.Decimal
	minBasicRatio     decimal.Decimal
	maxBasicRatio     decimal.Decimal
	maxHRAToBasic     decimal.Decimal
	minPayableDaysPct decimal.Decimal
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func bound(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DefaultTables returns the current Indian payroll rules.
func DefaultTables() *Tables {
	t := &Tables{
		basicPercentage:   dec(0.45),
		metroHRARate:      dec(0.50),
		nonMetroHRARate:   dec(0.40),
		employeePFRate:    dec(0.12),
		employerPFRate:    dec(0.12),
		pfCap:             decimal.NewFromInt(15000),
		standardDeduction: decimal.NewFromInt(50000),
		rebateLimit:       decimal.NewFromInt(500000),
		rebateAmount:      decimal.NewFromInt(12500),
		slabs: []TaxSlab{
			{UpperBound: bound(250000), Rate: decimal.Zero},
			{UpperBound: bound(500000), Rate: dec(0.05)},
			{UpperBound: bound(1000000), Rate: dec(0.20)},
			{UpperBound: nil, Rate: dec(0.30)},
		},
		defaultProfTax:    decimal.NewFromInt(2400),
		minBasicRatio:     dec(0.35),
		maxBasicRatio:     dec(0.60),
		maxHRAToBasic:     dec(0.60),
		minPayableDaysPct: dec(0.50),
	}

	t.metroCities = make(map[string]struct{})
	for _, city := range []string{
		"delhi", "mumbai", "chennai", "kolkata",
		"bangalore", "hyderabad", "pune", "gurgaon",
		"noida", "faridabad", "ghaziabad",
	} {
		t.metroCities[city] = struct{}{}
	}

	t.professionalTax = make(map[string]decimal.Decimal)
	byAmount := map[int64][]string{
		2500: {"maharashtra", "karnataka", "west bengal", "bihar", "assam", "kerala", "odisha",
			"punjab", "rajasthan", "tamil nadu", "telangana", "uttar pradesh", "madhya pradesh"},
		2400: {"gujarat", "andhra pradesh"},
		2000: {"haryana", "jharkhand", "uttarakhand", "chhattisgarh"},
		1200: {"goa"},
	}
	for amount, states := range byAmount {
		for _, state := range states {
			t.professionalTax[state] = decimal.NewFromInt(amount)
		}
	}

	return t
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func (t *Tables) IsMetro(city string) bool {
	_, ok := t.metroCities[normalize(city)]
	return ok
}

func (t *Tables) CityClass(city string) payroll.CityClass {
	if t.IsMetro(city) {
		return payroll.CityMetro
	}
	return payroll.CityNonMetro
}

func (t *Tables) HRARate(city string) decimal.Decimal {
	if t.IsMetro(city) {
		return t.metroHRARate
	}
	return t.nonMetroHRARate
}

// AnnualProfessionalTax returns the state's yearly amount and the table key used.
func (t *Tables) AnnualProfessionalTax(state string) (decimal.Decimal, string) {
	key := normalize(state)
	if amount, ok := t.professionalTax[key]; ok {
		return amount, key
	}
	return t.defaultProfTax, "default"
}

// SlabLabel describes the highest slab a taxable income reaches, e.g. "20% (₹5L - ₹10L)".
func (t *Tables) SlabLabel(taxable decimal.Decimal) string {
	lower := decimal.Zero
	for _, slab := range t.slabs {
		if slab.UpperBound == nil || taxable.LessThanOrEqual(*slab.UpperBound) {
			return slabLabel(lower, slab)
		}
		lower = *slab.UpperBound
	}
	return ""
}

func slabLabel(lower decimal.Decimal, slab TaxSlab) string {
	rate := slab.Rate.Mul(decimal.NewFromInt(100)).String() + "%"
	switch {
	case slab.UpperBound == nil:
		return fmt.Sprintf("%s (Above %s)", rate, lakhs(lower))
	case lower.IsZero():
		return fmt.Sprintf("%s (Up to %s)", rate, lakhs(*slab.UpperBound))
	default:
		return fmt.Sprintf("%s (%s - %s)", rate, lakhs(lower), lakhs(*slab.UpperBound))
	}
}

func lakhs(v decimal.Decimal) string {
	return "₹" + v.Div(decimal.NewFromInt(100000)).String() + "L"
}
