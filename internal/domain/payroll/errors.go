package payroll

import "errors"

var (
	ErrSalaryStructureNotFound = errors.New("salary structure not found")
	ErrSalaryStructureEmpty    = errors.New("salary structure has not been configured")
	ErrPayslipNotFound         = errors.New("payslip not found")
	ErrPayslipAlreadyPaid      = errors.New("payslip already paid for this period")
	ErrPayslipNotProcessed     = errors.New("payslip is not in processed status")
	ErrRunNotFound             = errors.New("payroll run not found")
	ErrRunInProgress           = errors.New("payroll run already in progress for this period")
	ErrInvalidPeriod           = errors.New("invalid payroll period")
	ErrInvalidInput            = errors.New("invalid payroll input")
)
