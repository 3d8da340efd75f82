package payroll

import (
	"context"
	"fmt"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

var half = decimal.NewFromFloat(0.5)

// MonthBounds returns the first and last calendar day of a month and its length.
func MonthBounds(year, month int) (first, last time.Time, days int, err error) {
	if month < 1 || month > 12 || year < 1 {
		return time.Time{}, time.Time{}, 0, fmt.Errorf("%w: %d-%02d", payroll.ErrInvalidPeriod, year, month)
	}
	first = time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	last = first.AddDate(0, 1, -1)
	return first, last, last.Day(), nil
}

type LeaveDeductionEngine struct {
	leaveRepo leave.LeaveRepository
}

func NewLeaveDeductionEngine(leaveRepo leave.LeaveRepository) *LeaveDeductionEngine {
	return &LeaveDeductionEngine{leaveRepo: leaveRepo}
}

// FetchUnpaid totals the unpaid leave an employee took in a month.
// Full-day records that straddle the month boundary count only the days inside it.
func (e *LeaveDeductionEngine) FetchUnpaid(ctx context.Context, employeeID string, year, month int) (payroll.LeaveSummary, error) {
	first, last, _, err := MonthBounds(year, month)
	if err != nil {
		return payroll.LeaveSummary{}, err
	}

	records, err := e.leaveRepo.GetOverlapping(ctx, employeeID, leave.LeaveKindUnpaid, first, last)
	if err != nil {
		return payroll.LeaveSummary{}, fmt.Errorf("failed to fetch unpaid leave: %w", err)
	}

	summary := payroll.LeaveSummary{
		UnpaidDays: decimal.Zero,
		Breakdown:  make([]payroll.LeaveBreakdownItem, 0, len(records)),
	}
	for _, r := range records {
		if r.Kind != leave.LeaveKindUnpaid {
			continue
		}
		if r.EndDate.Before(r.StartDate) {
			return payroll.LeaveSummary{}, fmt.Errorf("%w: leave %s", leave.ErrInvalidLeaveRange, r.ID)
		}
		overlap := r.OverlapDays(first, last)
		if overlap == 0 {
			continue
		}

		item := payroll.LeaveBreakdownItem{
			LeaveID:   r.ID,
			StartDate: r.StartDate.Format("2006-01-02"),
			EndDate:   r.EndDate.Format("2006-01-02"),
			Reason:    r.Reason,
		}

		if r.HalfDay {
			halfType := "unspecified"
			if r.HalfDayType != nil {
				halfType = string(*r.HalfDayType)
			}
			item.Days = half
			item.IsHalfDay = true
			item.HalfDayType = &halfType
			summary.HalfDays++
		} else {
			days := r.Days
			if span := r.SpanDays(); overlap < span {
				days = r.Days.Mul(decimal.NewFromInt(int64(overlap))).Div(decimal.NewFromInt(int64(span))).Round(2)
			}
			item.Days = days
			summary.UnpaidDays = summary.UnpaidDays.Add(days)
		}

		summary.Breakdown = append(summary.Breakdown, item)
	}

	return summary, nil
}

// ComputeDeduction prorates monthlyAmount by the leave units taken in a period
// of totalDays days.
func ComputeDeduction(monthlyAmount, unpaidDays decimal.Decimal, halfDays, totalDays int) (payroll.LeaveDeduction, error) {
	if totalDays <= 0 {
		return payroll.LeaveDeduction{}, fmt.Errorf("%w: period has no days", payroll.ErrInvalidPeriod)
	}
	if unpaidDays.IsNegative() || halfDays < 0 {
		return payroll.LeaveDeduction{}, fmt.Errorf("%w: leave counts must be non-negative", payroll.ErrInvalidInput)
	}

	total := decimal.NewFromInt(int64(totalDays))
	units := unpaidDays.Add(decimal.NewFromInt(int64(halfDays)).Mul(half))

	return payroll.LeaveDeduction{
		DailyRate:   monthlyAmount.Div(total).Round(2),
		LeaveUnits:  units,
		Deduction:   monthlyAmount.Mul(units).Div(total).Round(2),
		PayableDays: decimal.Max(decimal.Zero, total.Sub(units)),
		TotalDays:   totalDays,
	}, nil
}
