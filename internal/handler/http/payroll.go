package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/middleware"
	"github.com/cmlabs-hris/payroll-backend-go/internal/handler/http/response"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type PayrollHandler interface {
	// Tax
	PreviewTax(w http.ResponseWriter, r *http.Request)

	// Salary structure
	GetStructure(w http.ResponseWriter, r *http.Request)
	CalculateStructure(w http.ResponseWriter, r *http.Request)
	UpdateStructure(w http.ResponseWriter, r *http.Request)
	ValidateStructure(w http.ResponseWriter, r *http.Request)
	GetCTCBreakdown(w http.ResponseWriter, r *http.Request)

	// Monthly
	ValidateMonth(w http.ResponseWriter, r *http.Request)
	GetDetailedPayslip(w http.ResponseWriter, r *http.Request)

	// Payslips
	ProcessPayslip(w http.ResponseWriter, r *http.Request)
	GetPayslip(w http.ResponseWriter, r *http.Request)
	ListPayslips(w http.ResponseWriter, r *http.Request)
	DownloadPayslip(w http.ResponseWriter, r *http.Request)
	FinalizePayslips(w http.ResponseWriter, r *http.Request)

	// Runs
	RunMonthly(w http.ResponseWriter, r *http.Request)
	GetRun(w http.ResponseWriter, r *http.Request)
	ListRuns(w http.ResponseWriter, r *http.Request)
}

type payrollHandlerImpl struct {
	payrollService payroll.PayrollService
}

func NewPayrollHandler(payrollService payroll.PayrollService) PayrollHandler {
	return &payrollHandlerImpl{payrollService: payrollService}
}

// ========== TAX ==========

func (h *payrollHandlerImpl) PreviewTax(w http.ResponseWriter, r *http.Request) {
	var req payroll.TaxPreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.PreviewTax(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== SALARY STRUCTURE ==========

func (h *payrollHandlerImpl) GetStructure(w http.ResponseWriter, r *http.Request) {
	employeeID := chi.URLParam(r, "employeeID")

	result, err := h.payrollService.GetStructure(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) CalculateStructure(w http.ResponseWriter, r *http.Request) {
	var req payroll.CalculateStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.EmployeeID = chi.URLParam(r, "employeeID")

	result, err := h.payrollService.CalculateStructure(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if req.Save {
		response.SuccessWithMessage(w, "Salary structure saved", result)
		return
	}
	response.Success(w, result)
}

func (h *payrollHandlerImpl) UpdateStructure(w http.ResponseWriter, r *http.Request) {
	var req payroll.UpdateSalaryStructureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.EmployeeID = chi.URLParam(r, "employeeID")

	result, err := h.payrollService.UpdateStructure(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Salary structure updated", result)
}

func (h *payrollHandlerImpl) ValidateStructure(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.ValidateStructure(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetCTCBreakdown(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetCTCBreakdown(r.Context(), chi.URLParam(r, "employeeID"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== MONTHLY ==========

func (h *payrollHandlerImpl) ValidateMonth(w http.ResponseWriter, r *http.Request) {
	var req payroll.MonthlyValidationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.EmployeeID = chi.URLParam(r, "employeeID")

	result, err := h.payrollService.ValidateMonth(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetDetailedPayslip(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(w, chi.URLParam(r, "year"), chi.URLParam(r, "month"))
	if !ok {
		return
	}

	req := payroll.DetailedPayslipRequest{
		EmployeeID: chi.URLParam(r, "employeeID"),
		Year:       year,
		Month:      month,
	}
	if v := r.URL.Query().Get("unpaid_leave_days"); v != "" {
		days, err := decimal.NewFromString(v)
		if err != nil {
			response.BadRequest(w, "Invalid unpaid_leave_days", nil)
			return
		}
		req.UnpaidLeaveDays = &days
	}
	if v := r.URL.Query().Get("half_day_leaves"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			response.BadRequest(w, "Invalid half_day_leaves", nil)
			return
		}
		req.HalfDayLeaves = &n
	}

	result, err := h.payrollService.GetDetailedPayslip(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// ========== PAYSLIPS ==========

func (h *payrollHandlerImpl) ProcessPayslip(w http.ResponseWriter, r *http.Request) {
	var req payroll.ProcessPayslipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.ProcessPayslip(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Payslip processed", result)
}

func (h *payrollHandlerImpl) GetPayslip(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		response.BadRequest(w, "Payslip ID is required", nil)
		return
	}

	result, err := h.payrollService.GetPayslip(r.Context(), id)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListPayslips(w http.ResponseWriter, r *http.Request) {
	var filter payroll.PayslipFilter
	query := r.URL.Query()

	if pageStr := query.Get("page"); pageStr != "" {
		if page, err := strconv.Atoi(pageStr); err == nil {
			filter.Page = page
		}
	}
	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}
	if yearStr := query.Get("year"); yearStr != "" {
		year, err := strconv.Atoi(yearStr)
		if err != nil {
			response.BadRequest(w, "Invalid year", nil)
			return
		}
		filter.Year = &year
	}
	if monthStr := query.Get("month"); monthStr != "" {
		month, err := strconv.Atoi(monthStr)
		if err != nil {
			response.BadRequest(w, "Invalid month", nil)
			return
		}
		filter.Month = &month
	}
	if status := query.Get("status"); status != "" {
		filter.Status = &status
	}
	if employeeID := query.Get("employee_id"); employeeID != "" {
		filter.EmployeeID = &employeeID
	}

	result, err := h.payrollService.ListPayslips(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	totalPages := 0
	if result.Limit > 0 {
		totalPages = int((result.TotalCount + int64(result.Limit) - 1) / int64(result.Limit))
	}
	response.SuccessWithMeta(w, result.Data, &response.Meta{
		Page:       result.Page,
		Limit:      result.Limit,
		TotalItems: result.TotalCount,
		TotalPages: totalPages,
	})
}

func (h *payrollHandlerImpl) DownloadPayslip(w http.ResponseWriter, r *http.Request) {
	content, filename, err := h.payrollService.RenderPayslipPDF(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.File(w, "application/pdf", filename, content)
}

func (h *payrollHandlerImpl) FinalizePayslips(w http.ResponseWriter, r *http.Request) {
	var req payroll.FinalizePayslipsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}

	result, err := h.payrollService.FinalizePayslips(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Payslips finalized", result)
}

// ========== RUNS ==========

func (h *payrollHandlerImpl) RunMonthly(w http.ResponseWriter, r *http.Request) {
	var req payroll.BulkProcessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body", nil)
		return
	}
	req.TriggeredBy = middleware.UserID(r)

	result, err := h.payrollService.RunMonthly(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) GetRun(w http.ResponseWriter, r *http.Request) {
	result, err := h.payrollService.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

func (h *payrollHandlerImpl) ListRuns(w http.ResponseWriter, r *http.Request) {
	year, month, ok := periodParams(w, r.URL.Query().Get("year"), r.URL.Query().Get("month"))
	if !ok {
		return
	}

	result, err := h.payrollService.ListRuns(r.Context(), year, month)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// periodParams parses year and month, writing a 400 on failure
func periodParams(w http.ResponseWriter, yearStr, monthStr string) (int, int, bool) {
	if yearStr == "" || monthStr == "" {
		response.BadRequest(w, "year and month are required", nil)
		return 0, 0, false
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		response.BadRequest(w, "Invalid year", nil)
		return 0, 0, false
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		response.BadRequest(w, "Invalid month", nil)
		return 0, 0, false
	}
	return year, month, true
}
