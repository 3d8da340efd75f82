package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PayslipProcessedTopic = "payroll.payslip.processed.v1"
	RunCompletedTopic     = "payroll.run.completed.v1"
)

type PayslipProcessedEvent struct {
	EventType  string          `json:"event_type"`
	PayslipID  string          `json:"payslip_id"`
	EmployeeID string          `json:"employee_id"`
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	Amount     decimal.Decimal `json:"amount"`
	Status     string          `json:"status"`
	RunID      *string         `json:"run_id,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type RunCompletedEvent struct {
	EventType      string          `json:"event_type"`
	RunID          string          `json:"run_id"`
	Year           int             `json:"year"`
	Month          int             `json:"month"`
	Status         string          `json:"status"`
	TotalEmployees int             `json:"total_employees"`
	ProcessedCount int             `json:"processed_count"`
	FailedCount    int             `json:"failed_count"`
	SkippedCount   int             `json:"skipped_count"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	OccurredAt     time.Time       `json:"occurred_at"`
}
