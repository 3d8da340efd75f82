package payroll

import (
	"context"
	"testing"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func processInput(f *fixture, employeeID string, year, month int) ProcessInput {
	e, _ := f.employees.GetByID(context.Background(), employeeID)
	return ProcessInput{
		Employee:        e,
		Year:            year,
		Month:           month,
		CustomDeduction: d("0"),
		Status:          payroll.PayslipStatusProcessed,
	}
}

func TestPayslipProcessor_Process_NoLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	result, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 3))
	require.NoError(t, err)

	slip := result.Payslip
	assert.Equal(t, "ps-1", slip.ID)
	assert.Equal(t, payroll.PayslipStatusProcessed, slip.Status)
	assert.NotNil(t, slip.ProcessedAt)
	assert.Nil(t, slip.PaidAt)
	assert.Equal(t, 31, slip.TotalWorkingDays)
	assert.True(t, d("31").Equal(slip.DaysPayable))
	assert.True(t, slip.LossOfPayDays.IsZero())
	assert.True(t, slip.BasicActual.Equal(slip.BasicPaid))
	assert.True(t, d("100000").Equal(slip.TotalEarningsPaid))
	assert.True(t, d("200").Equal(slip.ProfessionalTax))
	assert.True(t, d("15125").Equal(slip.TotalDeductions))
	assert.True(t, d("84875").Equal(slip.Amount))

	assert.Equal(t, 1, f.publisher.count(events.PayslipProcessedTopic))
}

func TestPayslipProcessor_Process_ProratesLeave(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.UnpaidLeaveDays = dp("2")
	in.HalfDayLeaves = ip(1)

	result, err := f.processor.Process(ctx, in)
	require.NoError(t, err)

	slip := result.Payslip
	assert.Equal(t, 30, slip.TotalWorkingDays)
	assert.True(t, d("27.5").Equal(slip.DaysPayable))
	assert.True(t, d("27.5").Equal(slip.ActualPayableDays))
	assert.True(t, d("2.5").Equal(slip.LossOfPayDays))
	assert.True(t, d("2829.17").Equal(result.Deduction.DailyRate))
	assert.True(t, d("7072.92").Equal(slip.LeaveDeductionAmount))

	assert.True(t, d("41250").Equal(slip.BasicPaid))
	assert.True(t, d("20625").Equal(slip.HRAPaid))
	assert.True(t, d("29791.67").Equal(slip.SpecialAllowancePaid))
	assert.True(t, d("91666.67").Equal(slip.TotalEarningsPaid))

	assert.True(t, d("22197.92").Equal(slip.TotalDeductions))
	assert.True(t, d("77802.08").Equal(slip.Amount))
	assert.True(t, slip.TotalEarningsActual.Sub(slip.TotalDeductions).Equal(slip.Amount))
}

func TestPayslipProcessor_Process_ScenarioB(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	s := scenarioStructure("emp-1")
	s.TaxDeduction = d("38125")
	s.TotalDeductions = d("40000")
	s.NetPay = d("60000")
	f.structures.structures["emp-1"] = s

	in := processInput(f, "emp-1", 2024, 6)
	in.UnpaidLeaveDays = dp("2")
	in.HalfDayLeaves = ip(1)

	result, err := f.processor.Process(ctx, in)
	require.NoError(t, err)

	assert.True(t, d("2000").Equal(result.Deduction.DailyRate))
	assert.True(t, d("5000").Equal(result.Payslip.LeaveDeductionAmount))
	assert.True(t, d("27.5").Equal(result.Payslip.DaysPayable))
	assert.True(t, d("55000").Equal(result.Payslip.Amount))
}

func TestPayslipProcessor_Process_GrossBasis(t *testing.T) {
	ctx := context.Background()
	rules := DefaultRules()
	rules.DeductionBasis = DeductionBasisGross
	f := newFixture(rules, activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.UnpaidLeaveDays = dp("3")
	in.HalfDayLeaves = ip(0)

	result, err := f.processor.Process(ctx, in)
	require.NoError(t, err)
	assert.True(t, d("10000").Equal(result.Payslip.LeaveDeductionAmount))
	assert.True(t, d("74875").Equal(result.Payslip.Amount))
}

func TestPayslipProcessor_Process_ReadsLeaveRecords(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	f.leaves.records = []leave.LeaveRecord{
		{ID: "l1", EmployeeID: "emp-1", StartDate: date(2024, 4, 1), EndDate: date(2024, 4, 2), Days: d("2"), Kind: leave.LeaveKindUnpaid},
		{ID: "l2", EmployeeID: "emp-1", StartDate: date(2024, 4, 9), EndDate: date(2024, 4, 9), Days: d("0.5"), Kind: leave.LeaveKindUnpaid, HalfDay: true},
	}

	result, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	require.NoError(t, err)
	assert.True(t, d("2").Equal(result.Payslip.UnpaidLeaveDays))
	assert.Equal(t, 1, result.Payslip.HalfDayLeaves)
	assert.True(t, d("27.5").Equal(result.Payslip.DaysPayable))
	assert.Len(t, result.Leave.Breakdown, 2)

	// a supplied count replaces only its own figure
	in := processInput(f, "emp-1", 2024, 4)
	in.HalfDayLeaves = ip(0)
	result, err = f.processor.Process(ctx, in)
	require.NoError(t, err)
	assert.True(t, d("28").Equal(result.Payslip.DaysPayable))
}

func TestPayslipProcessor_Process_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.UnpaidLeaveDays = dp("1")
	in.HalfDayLeaves = ip(2)

	first, err := f.processor.Process(ctx, in)
	require.NoError(t, err)
	second, err := f.processor.Process(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, 1, f.payslips.count())
	assert.Equal(t, first.Payslip.ID, second.Payslip.ID)
	assert.True(t, first.Payslip.Amount.Equal(second.Payslip.Amount))
}

func TestPayslipProcessor_Process_MissingStructure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	delete(f.structures.structures, "emp-1")

	_, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	assert.ErrorIs(t, err, payroll.ErrSalaryStructureNotFound)
	assert.Zero(t, f.payslips.count())
}

func TestPayslipProcessor_Process_EmptyStructure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	f.structures.structures["emp-1"] = payroll.SalaryStructure{EmployeeID: "emp-1"}

	_, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	assert.ErrorIs(t, err, payroll.ErrSalaryStructureEmpty)
	assert.Zero(t, f.payslips.count())
}

func TestPayslipProcessor_Process_PaidIsProtected(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.Status = payroll.PayslipStatusPaid
	paid, err := f.processor.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayslipStatusPaid, paid.Payslip.Status)
	assert.NotNil(t, paid.Payslip.PaidAt)

	in.Status = payroll.PayslipStatusProcessed
	_, err = f.processor.Process(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrPayslipAlreadyPaid)

	in.AllowPaid = true
	again, err := f.processor.Process(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, paid.Payslip.ID, again.Payslip.ID)
	assert.Equal(t, 1, f.payslips.count())
}

func TestPayslipProcessor_Process_LeaveErrorWritesNothing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	f.leaves.err = errBoom

	_, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	assert.ErrorIs(t, err, errBoom)

	_, err = f.payslips.GetByEmployeePeriod(ctx, "emp-1", 2024, 4)
	assert.ErrorIs(t, err, payroll.ErrPayslipNotFound)
	assert.Zero(t, f.publisher.count(events.PayslipProcessedTopic))
}

func TestPayslipProcessor_Process_LeaveErrorKeepsProcessedSlip(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	first, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	require.NoError(t, err)

	f.leaves.err = errBoom
	_, err = f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	assert.ErrorIs(t, err, errBoom)

	slip, err := f.payslips.GetByEmployeePeriod(ctx, "emp-1", 2024, 4)
	require.NoError(t, err)
	assert.Equal(t, first.Payslip.ID, slip.ID)
	assert.Equal(t, payroll.PayslipStatusProcessed, slip.Status)
	assert.Nil(t, slip.FailureReason)
	assert.True(t, first.Payslip.Amount.Equal(slip.Amount))
}

func TestPayslipProcessor_Process_CompleteFails(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	f.payslips.completeErr = errBoom

	_, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	assert.ErrorIs(t, err, errBoom)

	slip, err := f.payslips.GetByEmployeePeriod(ctx, "emp-1", 2024, 4)
	require.NoError(t, err)
	assert.Equal(t, payroll.PayslipStatusFailed, slip.Status)
	require.NotNil(t, slip.FailureReason)
	assert.Contains(t, *slip.FailureReason, "boom")

	// the failed row is reclaimed by the next attempt
	f.payslips.completeErr = nil
	result, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	require.NoError(t, err)
	assert.Equal(t, slip.ID, result.Payslip.ID)
	assert.Equal(t, payroll.PayslipStatusProcessed, result.Payslip.Status)
}

func TestPayslipProcessor_Process_DryRun(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.DryRun = true
	result, err := f.processor.Process(ctx, in)
	require.NoError(t, err)

	assert.Empty(t, result.Payslip.ID)
	assert.True(t, d("84875").Equal(result.Payslip.Amount))
	assert.Zero(t, f.payslips.count())
	assert.Zero(t, f.publisher.count(events.PayslipProcessedTopic))
}

func TestPayslipProcessor_Process_PublishFailureIsIgnored(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))
	f.publisher.err = errBoom

	result, err := f.processor.Process(ctx, processInput(f, "emp-1", 2024, 4))
	require.NoError(t, err)
	assert.Equal(t, payroll.PayslipStatusProcessed, result.Payslip.Status)
}

func TestPayslipProcessor_Process_InvalidInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(DefaultRules(), activeEmployee("emp-1", "Asha Rao"))

	in := processInput(f, "emp-1", 2024, 4)
	in.Status = payroll.PayslipStatusFailed
	_, err := f.processor.Process(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)

	in = processInput(f, "emp-1", 2024, 4)
	in.CustomDeduction = d("-1")
	_, err = f.processor.Process(ctx, in)
	assert.ErrorIs(t, err, payroll.ErrInvalidInput)
}
