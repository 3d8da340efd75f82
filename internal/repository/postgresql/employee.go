package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/jackc/pgx/v5"
)

type employeeRepository struct {
	db *database.DB
}

func NewEmployeeRepository(db *database.DB) employee.EmployeeRepository {
	return &employeeRepository{db: db}
}

const employeeColumns = `
	id, full_name, email, department, designation, city, state,
	is_active, hire_date, created_at, updated_at`

func employeeDest(e *employee.Employee) []any {
	return []any{
		&e.ID, &e.FullName, &e.Email, &e.Department, &e.Designation, &e.City, &e.State,
		&e.IsActive, &e.HireDate, &e.CreatedAt, &e.UpdatedAt,
	}
}

// GetByID implements employee.EmployeeRepository.
func (r *employeeRepository) GetByID(ctx context.Context, id string) (employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	var e employee.Employee
	err := q.QueryRow(ctx, `SELECT`+employeeColumns+` FROM employees WHERE id = $1`, id).Scan(employeeDest(&e)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return employee.Employee{}, employee.ErrEmployeeNotFound
		}
		return employee.Employee{}, fmt.Errorf("failed to get employee by id %s: %w", id, err)
	}
	return e, nil
}

// GetByIDs implements employee.EmployeeRepository. Unknown IDs are omitted.
func (r *employeeRepository) GetByIDs(ctx context.Context, ids []string) ([]employee.Employee, error) {
	if len(ids) == 0 {
		return []employee.Employee{}, nil
	}
	return r.list(ctx, `SELECT`+employeeColumns+` FROM employees WHERE id = ANY($1)`, ids)
}

// GetActive implements employee.EmployeeRepository.
func (r *employeeRepository) GetActive(ctx context.Context) ([]employee.Employee, error) {
	return r.list(ctx, `SELECT`+employeeColumns+` FROM employees WHERE is_active = TRUE ORDER BY full_name ASC`)
}

func (r *employeeRepository) list(ctx context.Context, query string, args ...any) ([]employee.Employee, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	employees := []employee.Employee{}
	for rows.Next() {
		var e employee.Employee
		if err := rows.Scan(employeeDest(&e)...); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate employees: %w", err)
	}
	return employees, nil
}
