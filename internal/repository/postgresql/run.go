package postgresql

import (
	"context"
	"errors"
	"fmt"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type runRepository struct {
	db *database.DB
}

func NewRunRepository(db *database.DB) payroll.RunRepository {
	return &runRepository{db: db}
}

const runColumns = `
	id, year, month, total_employees, processed_count, failed_count, skipped_count,
	total_amount, status, skip_duplicates, triggered_by, notes,
	started_at, finished_at, created_at, updated_at`

func runDest(run *payroll.MonthlyProcessingRun) []any {
	return []any{
		&run.ID, &run.Year, &run.Month, &run.TotalEmployees, &run.ProcessedCount, &run.FailedCount, &run.SkippedCount,
		&run.TotalAmount, &run.Status, &run.SkipDuplicates, &run.TriggeredBy, &run.Notes,
		&run.StartedAt, &run.FinishedAt, &run.CreatedAt, &run.UpdatedAt,
	}
}

// Create implements payroll.RunRepository.
func (r *runRepository) Create(ctx context.Context, run payroll.MonthlyProcessingRun) (payroll.MonthlyProcessingRun, error) {
	q := GetQuerier(ctx, r.db)

	id, err := uuid.NewV7()
	if err != nil {
		return payroll.MonthlyProcessingRun{}, fmt.Errorf("failed to generate run id: %w", err)
	}

	query := `
		INSERT INTO payroll_runs (
			id, year, month, total_employees, total_amount, status,
			skip_duplicates, triggered_by, notes, started_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING` + runColumns

	var created payroll.MonthlyProcessingRun
	err = q.QueryRow(ctx, query,
		id.String(), run.Year, run.Month, run.TotalEmployees, run.TotalAmount, run.Status,
		run.SkipDuplicates, run.TriggeredBy, run.Notes, run.StartedAt,
	).Scan(runDest(&created)...)
	if err != nil {
		return payroll.MonthlyProcessingRun{}, fmt.Errorf("failed to create payroll run: %w", err)
	}
	return created, nil
}

// Finish implements payroll.RunRepository.
func (r *runRepository) Finish(ctx context.Context, run payroll.MonthlyProcessingRun) error {
	q := GetQuerier(ctx, r.db)

	tag, err := q.Exec(ctx, `
		UPDATE payroll_runs SET
			processed_count = $2, failed_count = $3, skipped_count = $4,
			total_amount = $5, status = $6, finished_at = $7, updated_at = NOW()
		WHERE id = $1
	`, run.ID, run.ProcessedCount, run.FailedCount, run.SkippedCount, run.TotalAmount, run.Status, run.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish payroll run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return payroll.ErrRunNotFound
	}
	return nil
}

// GetByID implements payroll.RunRepository.
func (r *runRepository) GetByID(ctx context.Context, id string) (payroll.MonthlyProcessingRun, error) {
	q := GetQuerier(ctx, r.db)

	var run payroll.MonthlyProcessingRun
	err := q.QueryRow(ctx, `SELECT`+runColumns+` FROM payroll_runs WHERE id = $1`, id).Scan(runDest(&run)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.MonthlyProcessingRun{}, payroll.ErrRunNotFound
		}
		return payroll.MonthlyProcessingRun{}, fmt.Errorf("failed to get payroll run: %w", err)
	}
	return run, nil
}

// GetLatestByPeriod implements payroll.RunRepository.
func (r *runRepository) GetLatestByPeriod(ctx context.Context, year, month int) (payroll.MonthlyProcessingRun, error) {
	q := GetQuerier(ctx, r.db)

	var run payroll.MonthlyProcessingRun
	err := q.QueryRow(ctx, `SELECT`+runColumns+`
		FROM payroll_runs
		WHERE year = $1 AND month = $2
		ORDER BY started_at DESC
		LIMIT 1
	`, year, month).Scan(runDest(&run)...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return payroll.MonthlyProcessingRun{}, payroll.ErrRunNotFound
		}
		return payroll.MonthlyProcessingRun{}, fmt.Errorf("failed to get latest payroll run: %w", err)
	}
	return run, nil
}

// ListByPeriod implements payroll.RunRepository. Newest first.
func (r *runRepository) ListByPeriod(ctx context.Context, year, month int) ([]payroll.MonthlyProcessingRun, error) {
	q := GetQuerier(ctx, r.db)

	rows, err := q.Query(ctx, `SELECT`+runColumns+`
		FROM payroll_runs
		WHERE year = $1 AND month = $2
		ORDER BY started_at DESC
	`, year, month)
	if err != nil {
		return nil, fmt.Errorf("failed to list payroll runs: %w", err)
	}
	defer rows.Close()

	runs := []payroll.MonthlyProcessingRun{}
	for rows.Next() {
		var run payroll.MonthlyProcessingRun
		if err := rows.Scan(runDest(&run)...); err != nil {
			return nil, fmt.Errorf("failed to scan payroll run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate payroll runs: %w", err)
	}
	return runs, nil
}
