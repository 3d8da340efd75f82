package postgresql

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type payslipRepository struct {
	db *database.DB
}

func NewPayslipRepository(db *database.DB) payroll.PayslipRepository {
	return &payslipRepository{db: db}
}

const payslipColumns = `
	ps.id, ps.employee_id, ps.year, ps.month,
	ps.basic_actual, ps.basic_paid, ps.hra_actual, ps.hra_paid,
	ps.special_allowance_actual, ps.special_allowance_paid,
	ps.total_earnings_actual, ps.total_earnings_paid,
	ps.pf_deduction, ps.tax_deduction, ps.professional_tax, ps.custom_deduction,
	ps.leave_deduction_amount, ps.total_deductions,
	ps.total_working_days, ps.actual_payable_days, ps.loss_of_pay_days, ps.days_payable,
	ps.unpaid_leave_days, ps.half_day_leaves,
	ps.amount, ps.status, ps.failure_reason, ps.run_id, ps.notes, ps.file_url,
	ps.processed_at, ps.paid_at, ps.created_at, ps.updated_at`

func payslipDest(ps *payroll.Payslip) []any {
	return []any{
		&ps.ID, &ps.EmployeeID, &ps.Year, &ps.Month,
		&ps.BasicActual, &ps.BasicPaid, &ps.HRAActual, &ps.HRAPaid,
		&ps.SpecialAllowanceActual, &ps.SpecialAllowancePaid,
		&ps.TotalEarningsActual, &ps.TotalEarningsPaid,
		&ps.PFDeduction, &ps.TaxDeduction, &ps.ProfessionalTax, &ps.CustomDeduction,
		&ps.LeaveDeductionAmount, &ps.TotalDeductions,
		&ps.TotalWorkingDays, &ps.ActualPayableDays, &ps.LossOfPayDays, &ps.DaysPayable,
		&ps.UnpaidLeaveDays, &ps.HalfDayLeaves,
		&ps.Amount, &ps.Status, &ps.FailureReason, &ps.RunID, &ps.Notes, &ps.FileURL,
		&ps.ProcessedAt, &ps.PaidAt, &ps.CreatedAt, &ps.UpdatedAt,
	}
}

// Reserve implements payroll.PayslipRepository.
func (r *payslipRepository) Reserve(ctx context.Context, employeeID string, year, month int, allowPaid bool) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.Payslip{}, fmt.Errorf("failed to generate payslip id: %w", err)
	}

	query := `
		INSERT INTO payslips AS ps (id, employee_id, year, month, status)
		VALUES ($1, $2, $3, $4, 'processing')
		ON CONFLICT (employee_id, year, month) DO UPDATE
			SET status = 'processing', failure_reason = NULL, updated_at = NOW()
			WHERE ps.status <> 'paid' OR $5
		RETURNING` + payslipColumns

	var ps payroll.Payslip
	err = q.QueryRow(ctx, query, id.String(), employeeID, year, month, allowPaid).Scan(payslipDest(&ps)...)
	if err != nil {
		// the conflict branch was filtered out by the WHERE clause
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipAlreadyPaid
		}
		return payroll.Payslip{}, fmt.Errorf("failed to reserve payslip: %w", err)
	}
	return ps, nil
}

// Complete implements payroll.PayslipRepository. The row is locked first so a
// concurrent finalize cannot be overwritten by a non-paid result. Any archived
// PDF is dropped since its figures may have changed.
func (r *payslipRepository) Complete(ctx context.Context, p payroll.Payslip) (payroll.Payslip, error) {
	var saved payroll.Payslip
	err := WithTransaction(ctx, r.db, func(ctx context.Context) error {
		q := GetQuerier(ctx, r.db)

		var current payroll.PayslipStatus
		err := q.QueryRow(ctx, `SELECT status FROM payslips WHERE id = $1 FOR UPDATE`, p.ID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return payroll.ErrPayslipNotFound
			}
			return fmt.Errorf("failed to lock payslip: %w", err)
		}
		if current == payroll.PayslipStatusPaid && p.Status != payroll.PayslipStatusPaid {
			return payroll.ErrPayslipAlreadyPaid
		}

		query := `
			UPDATE payslips AS ps SET
				basic_actual = $2, basic_paid = $3, hra_actual = $4, hra_paid = $5,
				special_allowance_actual = $6, special_allowance_paid = $7,
				total_earnings_actual = $8, total_earnings_paid = $9,
				pf_deduction = $10, tax_deduction = $11, professional_tax = $12,
				custom_deduction = $13, leave_deduction_amount = $14, total_deductions = $15,
				total_working_days = $16, actual_payable_days = $17, loss_of_pay_days = $18,
				days_payable = $19, unpaid_leave_days = $20, half_day_leaves = $21,
				amount = $22, status = $23, failure_reason = NULL, run_id = $24, notes = $25, file_url = NULL,
				processed_at = $26, paid_at = $27, updated_at = NOW()
			WHERE ps.id = $1
			RETURNING` + payslipColumns

		err = q.QueryRow(ctx, query,
			p.ID,
			p.BasicActual, p.BasicPaid, p.HRAActual, p.HRAPaid,
			p.SpecialAllowanceActual, p.SpecialAllowancePaid,
			p.TotalEarningsActual, p.TotalEarningsPaid,
			p.PFDeduction, p.TaxDeduction, p.ProfessionalTax,
			p.CustomDeduction, p.LeaveDeductionAmount, p.TotalDeductions,
			p.TotalWorkingDays, p.ActualPayableDays, p.LossOfPayDays,
			p.DaysPayable, p.UnpaidLeaveDays, p.HalfDayLeaves,
			p.Amount, p.Status, p.RunID, p.Notes,
			p.ProcessedAt, p.PaidAt,
		).Scan(payslipDest(&saved)...)
		if err != nil {
			return fmt.Errorf("failed to complete payslip: %w", err)
		}
		return nil
	})
	if err != nil {
		return payroll.Payslip{}, err
	}
	return saved, nil
}

// MarkFailed implements payroll.PayslipRepository.
func (r *payslipRepository) MarkFailed(ctx context.Context, id string, reason string) error {
	q := GetQuerier(ctx, r.db)

	// rows that already left processing are left alone
	_, err := q.Exec(ctx, `
		UPDATE payslips SET status = 'failed', failure_reason = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'processing'
	`, id, reason)
	if err != nil {
		return fmt.Errorf("failed to mark payslip as failed: %w", err)
	}
	return nil
}

// MarkPaid implements payroll.PayslipRepository. Only processed payslips move.
func (r *payslipRepository) MarkPaid(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE payslips SET status = 'paid', paid_at = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = 'processed'
	`, ids, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to mark payslips as paid: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SetFileURL implements payroll.PayslipRepository.
func (r *payslipRepository) SetFileURL(ctx context.Context, id string, fileURL string) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE payslips SET file_url = $2, updated_at = NOW() WHERE id = $1`, id, fileURL)
	if err != nil {
		return fmt.Errorf("failed to set payslip file url: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrPayslipNotFound
	}
	return nil
}

// GetByID implements payroll.PayslipRepository.
func (r *payslipRepository) GetByID(ctx context.Context, id string) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + payslipColumns + `, e.full_name
		FROM payslips ps
		JOIN employees e ON e.id = ps.employee_id
		WHERE ps.id = $1`

	var ps payroll.Payslip
	err := q.QueryRow(ctx, query, id).Scan(append(payslipDest(&ps), &ps.EmployeeName)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get payslip: %w", err)
	}
	return ps, nil
}

// GetByEmployeePeriod implements payroll.PayslipRepository.
func (r *payslipRepository) GetByEmployeePeriod(ctx context.Context, employeeID string, year, month int) (payroll.Payslip, error) {
	q := GetQuerier(ctx, r.db)

	query := `SELECT` + payslipColumns + `, e.full_name
		FROM payslips ps
		JOIN employees e ON e.id = ps.employee_id
		WHERE ps.employee_id = $1 AND ps.year = $2 AND ps.month = $3`

	var ps payroll.Payslip
	err := q.QueryRow(ctx, query, employeeID, year, month).Scan(append(payslipDest(&ps), &ps.EmployeeName)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.Payslip{}, payroll.ErrPayslipNotFound
		}
		return payroll.Payslip{}, fmt.Errorf("failed to get payslip: %w", err)
	}
	return ps, nil
}

// GetPaidEmployeeIDs implements payroll.PayslipRepository. The map is keyed by
// employee ID and holds the paid payslip ID.
func (r *payslipRepository) GetPaidEmployeeIDs(ctx context.Context, year, month int, employeeIDs []string) (map[string]string, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT employee_id, id FROM payslips
		WHERE year = $1 AND month = $2 AND employee_id = ANY($3) AND status = 'paid'
	`, year, month, employeeIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get paid payslips: %w", err)
	}
	defer rows.Close()

	paid := make(map[string]string)
	for rows.Next() {
		var employeeID, payslipID string
		if err := rows.Scan(&employeeID, &payslipID); err != nil {
			return nil, fmt.Errorf("failed to scan paid payslip: %w", err)
		}
		paid[employeeID] = payslipID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate paid payslips: %w", err)
	}
	return paid, nil
}

// List implements payroll.PayslipRepository.
func (r *payslipRepository) List(ctx context.Context, filter payroll.PayslipFilter) ([]payroll.Payslip, int64, error) {
	q := GetQuerier(ctx, r.db)

	baseQuery := `
		FROM payslips ps
		JOIN employees e ON e.id = ps.employee_id
		WHERE 1 = 1
	`
	args := []any{}
	argIdx := 1

	if filter.Year != nil {
		baseQuery += fmt.Sprintf(" AND ps.year = $%d", argIdx)
		args = append(args, *filter.Year)
		argIdx++
	}
	if filter.Month != nil {
		baseQuery += fmt.Sprintf(" AND ps.month = $%d", argIdx)
		args = append(args, *filter.Month)
		argIdx++
	}
	if filter.Status != nil {
		baseQuery += fmt.Sprintf(" AND ps.status = $%d", argIdx)
		args = append(args, *filter.Status)
		argIdx++
	}
	if filter.EmployeeID != nil {
		baseQuery += fmt.Sprintf(" AND ps.employee_id = $%d", argIdx)
		args = append(args, *filter.EmployeeID)
		argIdx++
	}

	var totalCount int64
	if err := q.QueryRow(ctx, "SELECT COUNT(*) "+baseQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count payslips: %w", err)
	}

	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.Limit

	selectQuery := fmt.Sprintf(`SELECT %s, e.full_name
		%s
		ORDER BY ps.year DESC, ps.month DESC, e.full_name ASC
		LIMIT $%d OFFSET $%d
	`, payslipColumns, baseQuery, argIdx, argIdx+1)
	args = append(args, filter.Limit, offset)

	rows, err := q.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list payslips: %w", err)
	}
	defer rows.Close()

	var payslips []payroll.Payslip
	for rows.Next() {
		var ps payroll.Payslip
		if err := rows.Scan(append(payslipDest(&ps), &ps.EmployeeName)...); err != nil {
			return nil, 0, fmt.Errorf("failed to scan payslip: %w", err)
		}
		payslips = append(payslips, ps)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate payslips: %w", err)
	}

	return payslips, totalCount, nil
}

// GetYearToDate implements payroll.PayslipRepository. Sums processed and paid
// payslips of the calendar year up to and including month.
func (r *payslipRepository) GetYearToDate(ctx context.Context, employeeID string, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	q := GetQuerier(ctx, r.db)

	var earnings, deductions decimal.Decimal
	err := q.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_earnings_paid), 0), COALESCE(SUM(total_deductions), 0)
		FROM payslips
		WHERE employee_id = $1 AND year = $2 AND month <= $3 AND status IN ('processed', 'paid')
	`, employeeID, year, month).Scan(&earnings, &deductions)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to get year to date totals: %w", err)
	}
	return earnings, deductions, nil
}
