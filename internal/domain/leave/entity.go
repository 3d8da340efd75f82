package leave

import (
	"time"

	"github.com/shopspring/decimal"
)

type LeaveKind string

const (
	LeaveKindPaid   LeaveKind = "paid"
	LeaveKindUnpaid LeaveKind = "unpaid"
)

type HalfDayType string

const (
	HalfDayFirst  HalfDayType = "first_half"
	HalfDaySecond HalfDayType = "second_half"
)

// LeaveRecord is an approved leave supplied by the leave workflow.
//
// HalfDay and HalfDayType are optional on the producer side. A record with
// HalfDay set counts as half a day whatever its Days value or half type says.
type LeaveRecord struct {
	ID          string
	EmployeeID  string
	StartDate   time.Time
	EndDate     time.Time
	Days        decimal.Decimal
	Kind        LeaveKind
	HalfDay     bool
	HalfDayType *HalfDayType
	Reason      *string
}

// OverlapDays returns the calendar days of r that fall inside [from, to].
func (r LeaveRecord) OverlapDays(from, to time.Time) int {
	start := r.StartDate
	if start.Before(from) {
		start = from
	}
	end := r.EndDate
	if end.After(to) {
		end = to
	}
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// SpanDays is the inclusive calendar length of the record.
func (r LeaveRecord) SpanDays() int {
	if r.EndDate.Before(r.StartDate) {
		return 0
	}
	return int(r.EndDate.Sub(r.StartDate).Hours()/24) + 1
}
