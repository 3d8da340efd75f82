package payroll

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/payslippdf"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/storage"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/shopspring/decimal"
)

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
	dateLayout       = "2006-01-02"
)

var daysPerYear = decimal.NewFromInt(365)

type PayrollServiceImpl struct {
	employeeRepo  employee.EmployeeRepository
	structureRepo payroll.SalaryStructureRepository
	payslipRepo   payroll.PayslipRepository
	runRepo       payroll.RunRepository

	tables    *Tables
	tax       *TaxEngine
	calc      *Calculator
	validator *StructureValidator
	processor *PayslipProcessor
	ledger    *Ledger
	rules     Rules
	archive   storage.FileStorage
	now       func() time.Time
}

type ServiceOption func(*PayrollServiceImpl)

// WithArchive keeps rendered PDFs of paid payslips in fs
func WithArchive(fs storage.FileStorage) ServiceOption {
	return func(s *PayrollServiceImpl) {
		s.archive = fs
	}
}

func NewPayrollService(
	employeeRepo employee.EmployeeRepository,
	structureRepo payroll.SalaryStructureRepository,
	payslipRepo payroll.PayslipRepository,
	runRepo payroll.RunRepository,
	tables *Tables,
	tax *TaxEngine,
	calc *Calculator,
	processor *PayslipProcessor,
	ledger *Ledger,
	rules Rules,
	opts ...ServiceOption,
) payroll.PayrollService {
	svc := &PayrollServiceImpl{
		employeeRepo:  employeeRepo,
		structureRepo: structureRepo,
		payslipRepo:   payslipRepo,
		runRepo:       runRepo,
		tables:        tables,
		tax:           tax,
		calc:          calc,
		validator:     NewStructureValidator(tables),
		processor:     processor,
		ledger:        ledger,
		rules:         rules,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// ========== TAX ==========

func (s *PayrollServiceImpl) PreviewTax(ctx context.Context, req payroll.TaxPreviewRequest) (payroll.TaxPreviewResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.TaxPreviewResponse{}, err
	}

	monthly, details, err := s.tax.MonthlyTax(req.AnnualIncome)
	if err != nil {
		return payroll.TaxPreviewResponse{}, err
	}

	return payroll.TaxPreviewResponse{
		AnnualTax:  details.NetTax,
		MonthlyTax: monthly,
		Details:    details,
	}, nil
}

// ========== SALARY STRUCTURE ==========

func (s *PayrollServiceImpl) GetStructure(ctx context.Context, employeeID string) (payroll.SalaryStructureResponse, error) {
	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	structure, err := s.structureRepo.GetByEmployeeID(ctx, emp.ID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	components := s.calc.FromStructure(structure, emp.City, emp.State)
	return s.structureResponse(emp.ID, structure, components, false), nil
}

func (s *PayrollServiceImpl) CalculateStructure(ctx context.Context, req payroll.CalculateStructureRequest) (payroll.SalaryStructureResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	in := CTCInput{
		City:              emp.City,
		State:             emp.State,
		BasicPercentage:   req.BasicPercentage,
		IncludeEmployerPF: req.IncludeEmployerPF,
	}
	if req.City != nil {
		in.City = *req.City
	}
	if req.State != nil {
		in.State = *req.State
	}

	var components payroll.SalaryComponents
	if req.AnnualCTC != nil && req.AnnualCTC.IsPositive() {
		in.AnnualCTC = *req.AnnualCTC
		components, err = s.calc.FromCTC(in)
	} else {
		components, err = s.calc.FromMonthlyGross(*req.MonthlyGross, in)
	}
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}
	components = ApplyOverrides(components, req.Overrides)

	structure := ToStructure(emp.ID, components, s.rules.Currency)
	structure.EffectiveFrom = truncateDay(s.now())

	if req.Save {
		saved, err := s.structureRepo.Upsert(ctx, structure)
		if err != nil {
			return payroll.SalaryStructureResponse{}, fmt.Errorf("failed to save salary structure: %w", err)
		}
		structure = saved
	}

	return s.structureResponse(emp.ID, structure, components, req.Save), nil
}

func (s *PayrollServiceImpl) UpdateStructure(ctx context.Context, req payroll.UpdateSalaryStructureRequest) (payroll.SalaryStructureResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	current, err := s.structureRepo.GetByEmployeeID(ctx, emp.ID)
	if err != nil {
		return payroll.SalaryStructureResponse{}, err
	}

	components := ApplyOverrides(s.calc.FromStructure(current, emp.City, emp.State), req.Overrides)

	currency := current.Currency
	if req.Currency != nil {
		currency = *req.Currency
	}
	updated := ToStructure(emp.ID, components, currency)
	updated.ID = current.ID
	updated.EffectiveFrom = current.EffectiveFrom
	if req.EffectiveFrom != nil {
		updated.EffectiveFrom, _ = validator.IsValidDate(*req.EffectiveFrom)
	} else if updated.EffectiveFrom.IsZero() {
		updated.EffectiveFrom = truncateDay(s.now())
	}

	saved, err := s.structureRepo.Upsert(ctx, updated)
	if err != nil {
		return payroll.SalaryStructureResponse{}, fmt.Errorf("failed to save salary structure: %w", err)
	}

	return s.structureResponse(emp.ID, saved, components, true), nil
}

func (s *PayrollServiceImpl) ValidateStructure(ctx context.Context, employeeID string) (payroll.StructureValidationResponse, error) {
	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return payroll.StructureValidationResponse{}, err
	}

	structure, err := s.structureRepo.GetByEmployeeID(ctx, emp.ID)
	if err != nil {
		return payroll.StructureValidationResponse{}, err
	}

	report := s.validator.ValidateDetailed(s.calc.FromStructure(structure, emp.City, emp.State))
	report.EmployeeID = emp.ID
	return report, nil
}

func (s *PayrollServiceImpl) GetCTCBreakdown(ctx context.Context, employeeID string) (payroll.CTCBreakdownResponse, error) {
	emp, err := s.employeeRepo.GetByID(ctx, employeeID)
	if err != nil {
		return payroll.CTCBreakdownResponse{}, err
	}

	structure, err := s.structureRepo.GetByEmployeeID(ctx, emp.ID)
	if err != nil {
		return payroll.CTCBreakdownResponse{}, err
	}
	if structure.IsZero() {
		return payroll.CTCBreakdownResponse{}, payroll.ErrSalaryStructureEmpty
	}

	components := s.calc.FromStructure(structure, emp.City, emp.State)
	return payroll.CTCBreakdownResponse{
		Employee:           emp.Identity(),
		AnnualCTC:          structure.AnnualCTC,
		MonthlyCTC:         structure.AnnualCTC.Div(twelve).Round(2),
		Components:         components,
		EmployerPF:         components.EmployerPF,
		CostPerDay:         structure.AnnualCTC.Div(daysPerYear).Round(2),
		CalculationDetails: components.Details,
		GeneratedAt:        s.now().UTC(),
	}, nil
}

func (s *PayrollServiceImpl) structureResponse(employeeID string, structure payroll.SalaryStructure, components payroll.SalaryComponents, saved bool) payroll.SalaryStructureResponse {
	issues := s.validator.Validate(components)

	resp := payroll.SalaryStructureResponse{
		EmployeeID:       employeeID,
		Currency:         structure.Currency,
		Components:       components,
		IsValid:          len(issues) == 0,
		ValidationIssues: issues,
		Saved:            saved,
	}
	if resp.Currency == "" {
		resp.Currency = s.rules.Currency
	}
	if !structure.EffectiveFrom.IsZero() {
		from := structure.EffectiveFrom.Format(dateLayout)
		resp.EffectiveFrom = &from
	}
	return resp
}

// ========== MONTHLY ==========

func (s *PayrollServiceImpl) ValidateMonth(ctx context.Context, req payroll.MonthlyValidationRequest) (payroll.MonthlyValidationResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.MonthlyValidationResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return payroll.MonthlyValidationResponse{}, err
	}

	in := ProcessInput{
		Employee:        emp,
		Year:            req.Year,
		Month:           req.Month,
		UnpaidLeaveDays: req.UnpaidLeaveDays,
		HalfDayLeaves:   req.HalfDayLeaves,
		CustomDeduction: decimal.Zero,
		Status:          payroll.PayslipStatusProcessed,
	}
	if req.CustomDeduction != nil {
		in.CustomDeduction = *req.CustomDeduction
	}

	computed, err := s.processor.Compute(ctx, in)
	if err != nil {
		return payroll.MonthlyValidationResponse{}, err
	}

	slip := computed.Payslip
	d := computed.Deduction
	total := decimal.NewFromInt(int64(d.TotalDays))

	issues := []string{}
	if slip.Amount.IsNegative() {
		issues = append(issues, "Final salary would be negative after deductions")
	}
	if d.PayableDays.LessThan(total.Mul(s.tables.minPayableDaysPct)) {
		issues = append(issues, "Payable days are less than 50% of total days")
	}
	if computed.Structure.SpecialAllowance.IsNegative() {
		issues = append(issues, fmt.Sprintf("Special allowance is negative (%s)", computed.Structure.SpecialAllowance.StringFixed(2)))
	}

	resp := payroll.MonthlyValidationResponse{
		EmployeeID:      emp.ID,
		Year:            req.Year,
		Month:           req.Month,
		IsValid:         len(issues) == 0,
		Issues:          issues,
		DaysInMonth:     d.TotalDays,
		WorkingDays:     d.TotalDays,
		UnpaidLeaveDays: computed.Leave.UnpaidDays,
		HalfDayLeaves:   computed.Leave.HalfDays,
		PayableDays:     d.PayableDays,
		DailySalary:     d.DailyRate,
		LeaveDeduction:  d.Deduction,
		CustomDeduction: slip.CustomDeduction,
		FinalNetSalary:  slip.Amount,
		LeaveBreakdown:  computed.Leave.Breakdown,
		CalculationDetails: map[string]string{
			"deduction_basis":             string(s.rules.DeductionBasis),
			"daily_salary_calculation":    fmt.Sprintf("%s / %d = %s", s.basis(computed.Structure).StringFixed(2), d.TotalDays, d.DailyRate.StringFixed(2)),
			"leave_deduction_calculation": fmt.Sprintf("%s / %d * %s = %s", s.basis(computed.Structure).StringFixed(2), d.TotalDays, d.LeaveUnits.String(), d.Deduction.StringFixed(2)),
			"final_salary_calculation":    fmt.Sprintf("%s - %s - %s = %s", computed.Structure.NetPay.StringFixed(2), d.Deduction.StringFixed(2), slip.CustomDeduction.StringFixed(2), slip.Amount.StringFixed(2)),
			"payable_days_ratio":          d.PayableDays.Div(total).Round(4).String(),
		},
	}

	if req.GeneratePayslip && resp.IsValid {
		in.CustomDeduction = slip.CustomDeduction
		processed, err := s.processor.Process(ctx, in)
		if err != nil {
			return payroll.MonthlyValidationResponse{}, err
		}
		resp.PayslipID = &processed.Payslip.ID
	}

	return resp, nil
}

func (s *PayrollServiceImpl) basis(structure payroll.SalaryStructure) decimal.Decimal {
	if s.rules.DeductionBasis == DeductionBasisGross {
		return structure.MonthlyGross
	}
	return structure.NetPay
}

func (s *PayrollServiceImpl) GetDetailedPayslip(ctx context.Context, req payroll.DetailedPayslipRequest) (payroll.DetailedPayslipResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.DetailedPayslipResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return payroll.DetailedPayslipResponse{}, err
	}

	computed, err := s.processor.Compute(ctx, ProcessInput{
		Employee:        emp,
		Year:            req.Year,
		Month:           req.Month,
		UnpaidLeaveDays: req.UnpaidLeaveDays,
		HalfDayLeaves:   req.HalfDayLeaves,
		CustomDeduction: decimal.Zero,
		Status:          payroll.PayslipStatusProcessed,
	})
	if err != nil {
		return payroll.DetailedPayslipResponse{}, err
	}

	slip := computed.Payslip
	d := computed.Deduction
	st := computed.Structure
	_, last, _, _ := MonthBounds(req.Year, req.Month)

	resp := payroll.DetailedPayslipResponse{
		Employee: emp.Identity(),
		Year:     req.Year,
		Month:    req.Month,
		PayDate:  last.Format(dateLayout),

		AnnualCTC:  st.AnnualCTC,
		MonthlyCTC: st.MonthlyGross,

		BasicActual:             slip.BasicActual,
		BasicPayable:            slip.BasicPaid,
		HRAActual:               slip.HRAActual,
		HRAPayable:              slip.HRAPaid,
		SpecialAllowanceActual:  slip.SpecialAllowanceActual,
		SpecialAllowancePayable: slip.SpecialAllowancePaid,
		TotalEarningsActual:     slip.TotalEarningsActual,
		TotalEarningsPayable:    slip.TotalEarningsPaid,

		PFDeduction:     slip.PFDeduction,
		TaxDeduction:    slip.TaxDeduction,
		ProfessionalTax: slip.ProfessionalTax,
		LeaveDeduction:  slip.LeaveDeductionAmount,
		OtherDeductions: slip.CustomDeduction,
		TotalDeductions: slip.TotalDeductions,

		GrossSalary:          slip.TotalEarningsPaid,
		InHandSalary:         st.NetPay,
		FinalAmount:          slip.Amount,
		TotalDays:            d.TotalDays,
		WorkingDays:          d.TotalDays,
		UnpaidLeaveDays:      computed.Leave.UnpaidDays,
		HalfDayLeaves:        computed.Leave.HalfDays,
		PayableDays:          d.PayableDays,
		PerDaySalary:         d.DailyRate,
		SalaryCut:            d.Deduction,
		FinalProcessedSalary: st.NetPay.Sub(d.Deduction),

		LeaveBreakdown: computed.Leave.Breakdown,
		CalculationDetails: map[string]string{
			"deduction_basis":          string(s.rules.DeductionBasis),
			"per_day_salary":           fmt.Sprintf("%s / %d = %s", s.basis(st).StringFixed(2), d.TotalDays, d.DailyRate.StringFixed(2)),
			"salary_cut":               fmt.Sprintf("%s leave units = %s", d.LeaveUnits.String(), d.Deduction.StringFixed(2)),
			"final_salary_calculation": fmt.Sprintf("%s - %s = %s", st.NetPay.StringFixed(2), d.Deduction.StringFixed(2), st.NetPay.Sub(d.Deduction).StringFixed(2)),
			"working_days":             "calendar days in month",
			"leave_processing_note":    "Half day leaves counted as 0.5 days each",
			"generated_for_month":      fmt.Sprintf("%d/%d", req.Month, req.Year),
		},
	}

	existing, err := s.payslipRepo.GetByEmployeePeriod(ctx, emp.ID, req.Year, req.Month)
	switch {
	case err == nil:
		resp.PayslipID = &existing.ID
	case !errors.Is(err, payroll.ErrPayslipNotFound):
		return payroll.DetailedPayslipResponse{}, err
	}

	earnings, deductions, err := s.payslipRepo.GetYearToDate(ctx, emp.ID, req.Year, req.Month)
	if err != nil {
		return payroll.DetailedPayslipResponse{}, err
	}
	resp.YTDEarnings = &earnings
	resp.YTDDeductions = &deductions

	return resp, nil
}

// ========== PAYSLIPS ==========

func (s *PayrollServiceImpl) ProcessPayslip(ctx context.Context, req payroll.ProcessPayslipRequest) (payroll.PayslipResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayslipResponse{}, err
	}

	emp, err := s.employeeRepo.GetByID(ctx, req.EmployeeID)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	if !emp.IsActive {
		return payroll.PayslipResponse{}, employee.ErrEmployeeInactive
	}

	in := ProcessInput{
		Employee:        emp,
		Year:            req.Year,
		Month:           req.Month,
		UnpaidLeaveDays: req.UnpaidLeaveDays,
		HalfDayLeaves:   req.HalfDayLeaves,
		CustomDeduction: decimal.Zero,
		Notes:           req.Notes,
		Status:          payroll.PayslipStatusProcessed,
		AllowPaid:       req.Reprocess,
	}
	if req.CustomDeduction != nil {
		in.CustomDeduction = *req.CustomDeduction
	}

	computed, err := s.processor.Process(ctx, in)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	return s.toResponse(computed.Payslip), nil
}

func (s *PayrollServiceImpl) GetPayslip(ctx context.Context, id string) (payroll.PayslipResponse, error) {
	slip, err := s.payslipRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.PayslipResponse{}, err
	}
	return s.toResponse(slip), nil
}

func (s *PayrollServiceImpl) ListPayslips(ctx context.Context, filter payroll.PayslipFilter) (payroll.ListPayslipResponse, error) {
	if err := filter.Validate(); err != nil {
		return payroll.ListPayslipResponse{}, err
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = defaultPageLimit
	}
	if filter.Limit > maxPageLimit {
		filter.Limit = maxPageLimit
	}

	slips, total, err := s.payslipRepo.List(ctx, filter)
	if err != nil {
		return payroll.ListPayslipResponse{}, err
	}

	data := make([]payroll.PayslipResponse, 0, len(slips))
	for _, slip := range slips {
		data = append(data, s.toResponse(slip))
	}

	return payroll.ListPayslipResponse{
		Data:       data,
		TotalCount: total,
		Page:       filter.Page,
		Limit:      filter.Limit,
	}, nil
}

func (s *PayrollServiceImpl) FinalizePayslips(ctx context.Context, req payroll.FinalizePayslipsRequest) (payroll.FinalizePayslipsResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.FinalizePayslipsResponse{}, err
	}

	ids := validator.Unique(req.PayslipIDs)
	finalized, err := s.payslipRepo.MarkPaid(ctx, ids)
	if err != nil {
		return payroll.FinalizePayslipsResponse{}, err
	}

	return payroll.FinalizePayslipsResponse{Requested: len(ids), Finalized: finalized}, nil
}

func (s *PayrollServiceImpl) RenderPayslipPDF(ctx context.Context, id string) ([]byte, string, error) {
	slip, err := s.payslipRepo.GetByID(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if slip.Status != payroll.PayslipStatusProcessed && slip.Status != payroll.PayslipStatusPaid {
		return nil, "", payroll.ErrPayslipNotProcessed
	}
	filename := fmt.Sprintf("payslip-%s-%04d-%02d.pdf", slip.EmployeeID, slip.Year, slip.Month)

	archived := s.archive != nil && slip.Status == payroll.PayslipStatusPaid
	if archived && slip.FileURL != nil {
		content, err := s.readArchived(ctx, *slip.FileURL)
		if err == nil {
			return content, filename, nil
		}
		slog.Warn("archived payslip unreadable, rendering again", "payslip_id", slip.ID, "file", *slip.FileURL, "error", err)
	}

	doc := payslippdf.Document{
		PayslipID:  slip.ID,
		EmployeeID: slip.EmployeeID,
		Year:       slip.Year,
		Month:      slip.Month,
		Currency:   s.rules.Currency,
		Status:     string(slip.Status),
		Earnings: []payslippdf.Line{
			{Label: "Basic", Actual: slip.BasicActual, Payable: slip.BasicPaid},
			{Label: "House rent allowance", Actual: slip.HRAActual, Payable: slip.HRAPaid},
			{Label: "Special allowance", Actual: slip.SpecialAllowanceActual, Payable: slip.SpecialAllowancePaid},
		},
		Deductions: []payslippdf.Line{
			{Label: "Provident fund", Payable: slip.PFDeduction},
			{Label: "Income tax", Payable: slip.TaxDeduction},
			{Label: "Professional tax", Payable: slip.ProfessionalTax},
			{Label: "Leave deduction", Payable: slip.LeaveDeductionAmount},
			{Label: "Other deductions", Payable: slip.CustomDeduction},
		},
		TotalDays:       slip.TotalWorkingDays,
		PayableDays:     slip.DaysPayable,
		UnpaidLeaveDays: slip.UnpaidLeaveDays,
		HalfDayLeaves:   slip.HalfDayLeaves,
		TotalEarnings:   slip.TotalEarningsActual,
		TotalDeductions: slip.TotalDeductions,
		NetAmount:       slip.Amount,
		GeneratedAt:     s.now(),
	}
	if slip.EmployeeName != nil {
		doc.EmployeeName = *slip.EmployeeName
	}

	emp, err := s.employeeRepo.GetByID(ctx, slip.EmployeeID)
	switch {
	case err == nil:
		doc.EmployeeName = emp.FullName
		doc.Email = emp.Email
	case !errors.Is(err, employee.ErrEmployeeNotFound):
		return nil, "", err
	}

	content, err := payslippdf.Render(doc)
	if err != nil {
		return nil, "", err
	}

	if archived {
		s.storeArchived(ctx, slip, content)
	}
	return content, filename, nil
}

func archiveKey(slip payroll.Payslip) string {
	return fmt.Sprintf("payslips/%04d/%02d/%s.pdf", slip.Year, slip.Month, slip.ID)
}

func (s *PayrollServiceImpl) readArchived(ctx context.Context, key string) ([]byte, error) {
	rc, err := s.archive.Download(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// storeArchived keeps the rendered file; failures only cost a re-render later
func (s *PayrollServiceImpl) storeArchived(ctx context.Context, slip payroll.Payslip, content []byte) {
	key, err := s.archive.Upload(ctx, bytes.NewReader(content), archiveKey(slip), "application/pdf")
	if err != nil {
		slog.Warn("failed to archive payslip pdf", "payslip_id", slip.ID, "error", err)
		return
	}
	if err := s.payslipRepo.SetFileURL(ctx, slip.ID, key); err != nil {
		slog.Warn("failed to record archived payslip", "payslip_id", slip.ID, "error", err)
	}
}

// ========== RUNS ==========

func (s *PayrollServiceImpl) RunMonthly(ctx context.Context, req payroll.BulkProcessRequest) (payroll.BulkProcessResponse, error) {
	return s.ledger.Run(ctx, req)
}

func (s *PayrollServiceImpl) GetRun(ctx context.Context, id string) (payroll.RunResponse, error) {
	run, err := s.runRepo.GetByID(ctx, id)
	if err != nil {
		return payroll.RunResponse{}, err
	}
	return runToResponse(run), nil
}

func (s *PayrollServiceImpl) ListRuns(ctx context.Context, year, month int) ([]payroll.RunResponse, error) {
	if _, _, _, err := MonthBounds(year, month); err != nil {
		return nil, err
	}

	runs, err := s.runRepo.ListByPeriod(ctx, year, month)
	if err != nil {
		return nil, err
	}

	resp := make([]payroll.RunResponse, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, runToResponse(run))
	}
	return resp, nil
}

// ========== MAPPERS ==========

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// toResponse adds the archive URL when the PDF has been kept
func (s *PayrollServiceImpl) toResponse(p payroll.Payslip) payroll.PayslipResponse {
	resp := payslipToResponse(p)
	if s.archive != nil && p.FileURL != nil {
		url := s.archive.URL(*p.FileURL)
		resp.FileURL = &url
	}
	return resp
}

func payslipToResponse(p payroll.Payslip) payroll.PayslipResponse {
	return payroll.PayslipResponse{
		ID:           p.ID,
		EmployeeID:   p.EmployeeID,
		EmployeeName: p.EmployeeName,
		Year:         p.Year,
		Month:        p.Month,

		BasicActual:            p.BasicActual,
		BasicPaid:              p.BasicPaid,
		HRAActual:              p.HRAActual,
		HRAPaid:                p.HRAPaid,
		SpecialAllowanceActual: p.SpecialAllowanceActual,
		SpecialAllowancePaid:   p.SpecialAllowancePaid,
		TotalEarningsActual:    p.TotalEarningsActual,
		TotalEarningsPaid:      p.TotalEarningsPaid,

		PFDeduction:          p.PFDeduction,
		TaxDeduction:         p.TaxDeduction,
		ProfessionalTax:      p.ProfessionalTax,
		CustomDeduction:      p.CustomDeduction,
		LeaveDeductionAmount: p.LeaveDeductionAmount,
		TotalDeductions:      p.TotalDeductions,

		TotalWorkingDays:  p.TotalWorkingDays,
		ActualPayableDays: p.ActualPayableDays,
		LossOfPayDays:     p.LossOfPayDays,
		DaysPayable:       p.DaysPayable,
		UnpaidLeaveDays:   p.UnpaidLeaveDays,
		HalfDayLeaves:     p.HalfDayLeaves,

		Amount:        p.Amount,
		Status:        string(p.Status),
		FailureReason: p.FailureReason,
		RunID:         p.RunID,
		Notes:         p.Notes,
		ProcessedAt:   formatTime(p.ProcessedAt),
		PaidAt:        formatTime(p.PaidAt),
	}
}

func runToResponse(r payroll.MonthlyProcessingRun) payroll.RunResponse {
	return payroll.RunResponse{
		ID:             r.ID,
		Year:           r.Year,
		Month:          r.Month,
		Status:         string(r.Status),
		TotalEmployees: r.TotalEmployees,
		ProcessedCount: r.ProcessedCount,
		FailedCount:    r.FailedCount,
		SkippedCount:   r.SkippedCount,
		TotalAmount:    r.TotalAmount,
		SkipDuplicates: r.SkipDuplicates,
		TriggeredBy:    r.TriggeredBy,
		Notes:          r.Notes,
		StartedAt:      r.StartedAt.UTC().Format(time.RFC3339),
		FinishedAt:     formatTime(r.FinishedAt),
	}
}
