package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type salaryStructureRepository struct {
	db *database.DB
}

func NewSalaryStructureRepository(db *database.DB) payroll.SalaryStructureRepository {
	return &salaryStructureRepository{db: db}
}

const structureColumns = `
	id, employee_id, annual_ctc, monthly_gross, basic, hra, special_allowance,
	pf_deduction, tax_deduction, total_deductions, net_pay, currency,
	effective_from, effective_to, created_at, updated_at`

func structureDest(s *payroll.SalaryStructure) []any {
	return []any{
		&s.ID, &s.EmployeeID, &s.AnnualCTC, &s.MonthlyGross, &s.Basic, &s.HRA, &s.SpecialAllowance,
		&s.PFDeduction, &s.TaxDeduction, &s.TotalDeductions, &s.NetPay, &s.Currency,
		&s.EffectiveFrom, &s.EffectiveTo, &s.CreatedAt, &s.UpdatedAt,
	}
}

// GetByEmployeeID implements payroll.SalaryStructureRepository.
func (r *salaryStructureRepository) GetByEmployeeID(ctx context.Context, employeeID string) (payroll.SalaryStructure, error) {
	q := GetQuerier(ctx, r.db)

	var s payroll.SalaryStructure
	err := q.QueryRow(ctx, `SELECT`+structureColumns+` FROM salary_structures WHERE employee_id = $1`, employeeID).
		Scan(structureDest(&s)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.SalaryStructure{}, payroll.ErrSalaryStructureNotFound
		}
		return payroll.SalaryStructure{}, fmt.Errorf("failed to get salary structure: %w", err)
	}
	return s, nil
}

// Upsert implements payroll.SalaryStructureRepository. One structure per employee.
func (r *salaryStructureRepository) Upsert(ctx context.Context, s payroll.SalaryStructure) (payroll.SalaryStructure, error) {
	q := GetQuerier(ctx, r.db)

	query := `
		INSERT INTO salary_structures (
			employee_id, annual_ctc, monthly_gross, basic, hra, special_allowance,
			pf_deduction, tax_deduction, total_deductions, net_pay, currency,
			effective_from, effective_to
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (employee_id) DO UPDATE SET
			annual_ctc = EXCLUDED.annual_ctc,
			monthly_gross = EXCLUDED.monthly_gross,
			basic = EXCLUDED.basic,
			hra = EXCLUDED.hra,
			special_allowance = EXCLUDED.special_allowance,
			pf_deduction = EXCLUDED.pf_deduction,
			tax_deduction = EXCLUDED.tax_deduction,
			total_deductions = EXCLUDED.total_deductions,
			net_pay = EXCLUDED.net_pay,
			currency = EXCLUDED.currency,
			effective_from = EXCLUDED.effective_from,
			effective_to = EXCLUDED.effective_to,
			updated_at = NOW()
		RETURNING` + structureColumns

	var saved payroll.SalaryStructure
	err := q.QueryRow(ctx, query,
		s.EmployeeID, s.AnnualCTC, s.MonthlyGross, s.Basic, s.HRA, s.SpecialAllowance,
		s.PFDeduction, s.TaxDeduction, s.TotalDeductions, s.NetPay, s.Currency,
		s.EffectiveFrom, s.EffectiveTo,
	).Scan(structureDest(&saved)...)
	if err != nil {
		return payroll.SalaryStructure{}, fmt.Errorf("failed to save salary structure: %w", err)
	}
	return saved, nil
}
