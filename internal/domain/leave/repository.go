package leave

import (
	"context"
	"time"
)

type LeaveRepository interface {
	// GetOverlapping returns records of the given kind whose span intersects [from, to].
	GetOverlapping(ctx context.Context, employeeID string, kind LeaveKind, from, to time.Time) ([]LeaveRecord, error)
}
