package response

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/auth"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
)

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth
	case errors.Is(err, auth.ErrInvalidToken):
		Unauthorized(w, err.Error())
	case errors.Is(err, auth.ErrAdminPrivilegeRequired):
		Forbidden(w, err.Error())

	// Employee
	case errors.Is(err, employee.ErrEmployeeNotFound):
		NotFound(w, "Employee not found")
	case errors.Is(err, employee.ErrEmployeeInactive):
		BadRequest(w, "Employee is not active", nil)

	// Leave
	case errors.Is(err, leave.ErrInvalidLeaveRange):
		BadRequest(w, err.Error(), nil)

	// Payroll
	case errors.Is(err, payroll.ErrSalaryStructureNotFound):
		NotFound(w, "Salary structure not found")
	case errors.Is(err, payroll.ErrSalaryStructureEmpty):
		BadRequest(w, "Salary structure has not been configured", nil)
	case errors.Is(err, payroll.ErrPayslipNotFound):
		NotFound(w, "Payslip not found")
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrPayslipAlreadyPaid):
		Conflict(w, "Payslip already paid for this period")
	case errors.Is(err, payroll.ErrRunInProgress):
		Conflict(w, "Payroll run already in progress for this period")
	case errors.Is(err, payroll.ErrPayslipNotProcessed):
		Conflict(w, "Payslip is not processed yet")
	case errors.Is(err, payroll.ErrInvalidPeriod), errors.Is(err, payroll.ErrInvalidInput):
		BadRequest(w, err.Error(), nil)

	default:
		slog.Error("unhandled error", "error", err)
		InternalServerError(w, "An unexpected error occurred")
	}
}
