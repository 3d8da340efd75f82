package postgresql

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
)

type leaveRepository struct {
	db *database.DB
}

func NewLeaveRepository(db *database.DB) leave.LeaveRepository {
	return &leaveRepository{db: db}
}

// GetOverlapping implements leave.LeaveRepository.
func (r *leaveRepository) GetOverlapping(ctx context.Context, employeeID string, kind leave.LeaveKind, from, to time.Time) ([]leave.LeaveRecord, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `
		SELECT id, employee_id, start_date, end_date, days, leave_type, is_half_day, half_day_type, reason
		FROM leave_records
		WHERE employee_id = $1 AND leave_type = $2
			AND start_date <= $4 AND end_date >= $3
		ORDER BY start_date ASC
	`, employeeID, string(kind), from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query leave records: %w", err)
	}
	defer rows.Close()

	var records []leave.LeaveRecord
	for rows.Next() {
		var rec leave.LeaveRecord
		var halfDayType *string
		if err := rows.Scan(
			&rec.ID, &rec.EmployeeID, &rec.StartDate, &rec.EndDate, &rec.Days,
			&rec.Kind, &rec.HalfDay, &halfDayType, &rec.Reason,
		); err != nil {
			return nil, fmt.Errorf("failed to scan leave record: %w", err)
		}
		if halfDayType != nil {
			t := leave.HalfDayType(*halfDayType)
			rec.HalfDayType = &t
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate leave records: %w", err)
	}
	return records, nil
}
