package payroll

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/employee"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/leave"
	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func dp(s string) *decimal.Decimal {
	v := d(s)
	return &v
}

func ip(v int) *int {
	return &v
}

func date(y, m, day int) time.Time {
	return time.Date(y, time.Month(m), day, 0, 0, 0, 0, time.UTC)
}

// ========== EMPLOYEES ==========

type fakeEmployeeRepo struct {
	employees map[string]employee.Employee
	order     []string
}

func newFakeEmployeeRepo(emps ...employee.Employee) *fakeEmployeeRepo {
	r := &fakeEmployeeRepo{employees: map[string]employee.Employee{}}
	for _, e := range emps {
		r.employees[e.ID] = e
		r.order = append(r.order, e.ID)
	}
	return r
}

func (r *fakeEmployeeRepo) GetByID(_ context.Context, id string) (employee.Employee, error) {
	e, ok := r.employees[id]
	if !ok {
		return employee.Employee{}, employee.ErrEmployeeNotFound
	}
	return e, nil
}

func (r *fakeEmployeeRepo) GetByIDs(_ context.Context, ids []string) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, id := range ids {
		if e, ok := r.employees[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *fakeEmployeeRepo) GetActive(_ context.Context) ([]employee.Employee, error) {
	var out []employee.Employee
	for _, id := range r.order {
		if e := r.employees[id]; e.IsActive {
			out = append(out, e)
		}
	}
	return out, nil
}

// ========== LEAVE ==========

type fakeLeaveRepo struct {
	records []leave.LeaveRecord
	err     error

	// entered is signalled on every call and block holds calls until closed
	entered chan struct{}
	block   chan struct{}
}

func (r *fakeLeaveRepo) GetOverlapping(ctx context.Context, employeeID string, kind leave.LeaveKind, from, to time.Time) ([]leave.LeaveRecord, error) {
	if r.entered != nil {
		select {
		case r.entered <- struct{}{}:
		default:
		}
	}
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	var out []leave.LeaveRecord
	for _, rec := range r.records {
		if rec.EmployeeID != employeeID || rec.Kind != kind {
			continue
		}
		if rec.EndDate.Before(from) || rec.StartDate.After(to) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// ========== STRUCTURES ==========

type fakeStructureRepo struct {
	mu         sync.Mutex
	structures map[string]payroll.SalaryStructure
	upserts    int
}

func newFakeStructureRepo(structures ...payroll.SalaryStructure) *fakeStructureRepo {
	r := &fakeStructureRepo{structures: map[string]payroll.SalaryStructure{}}
	for _, s := range structures {
		r.structures[s.EmployeeID] = s
	}
	return r
}

func (r *fakeStructureRepo) GetByEmployeeID(_ context.Context, employeeID string) (payroll.SalaryStructure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.structures[employeeID]
	if !ok {
		return payroll.SalaryStructure{}, payroll.ErrSalaryStructureNotFound
	}
	return s, nil
}

func (r *fakeStructureRepo) Upsert(_ context.Context, s payroll.SalaryStructure) (payroll.SalaryStructure, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s.ID == "" {
		s.ID = "ss-" + s.EmployeeID
	}
	r.structures[s.EmployeeID] = s
	r.upserts++
	return s, nil
}

// ========== PAYSLIPS ==========

type periodKey struct {
	employeeID string
	year       int
	month      int
}

type fakePayslipRepo struct {
	mu          sync.Mutex
	byID        map[string]*payroll.Payslip
	byKey       map[periodKey]string
	seq         int
	completeErr error
}

func newFakePayslipRepo() *fakePayslipRepo {
	return &fakePayslipRepo{byID: map[string]*payroll.Payslip{}, byKey: map[periodKey]string{}}
}

func (r *fakePayslipRepo) Reserve(_ context.Context, employeeID string, year, month int, allowPaid bool) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := periodKey{employeeID, year, month}
	if id, ok := r.byKey[key]; ok {
		p := r.byID[id]
		if p.Status == payroll.PayslipStatusPaid && !allowPaid {
			return payroll.Payslip{}, payroll.ErrPayslipAlreadyPaid
		}
		p.Status = payroll.PayslipStatusProcessing
		p.FailureReason = nil
		return *p, nil
	}

	r.seq++
	p := &payroll.Payslip{
		ID:         fmt.Sprintf("ps-%d", r.seq),
		EmployeeID: employeeID,
		Year:       year,
		Month:      month,
		Status:     payroll.PayslipStatusProcessing,
		CreatedAt:  time.Now(),
	}
	r.byID[p.ID] = p
	r.byKey[key] = p.ID
	return *p, nil
}

func (r *fakePayslipRepo) Complete(_ context.Context, p payroll.Payslip) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completeErr != nil {
		return payroll.Payslip{}, r.completeErr
	}
	if _, ok := r.byID[p.ID]; !ok {
		return payroll.Payslip{}, payroll.ErrPayslipNotFound
	}
	stored := p
	r.byID[p.ID] = &stored
	return stored, nil
}

func (r *fakePayslipRepo) MarkFailed(_ context.Context, id string, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return payroll.ErrPayslipNotFound
	}
	if p.Status == payroll.PayslipStatusProcessing {
		p.Status = payroll.PayslipStatusFailed
		p.FailureReason = &reason
	}
	return nil
}

func (r *fakePayslipRepo) MarkPaid(_ context.Context, ids []string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	now := time.Now()
	for _, id := range ids {
		if p, ok := r.byID[id]; ok && p.Status == payroll.PayslipStatusProcessed {
			p.Status = payroll.PayslipStatusPaid
			p.PaidAt = &now
			n++
		}
	}
	return n, nil
}

func (r *fakePayslipRepo) SetFileURL(_ context.Context, id string, fileURL string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return payroll.ErrPayslipNotFound
	}
	p.FileURL = &fileURL
	return nil
}

func (r *fakePayslipRepo) GetByID(_ context.Context, id string) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byID[id]
	if !ok {
		return payroll.Payslip{}, payroll.ErrPayslipNotFound
	}
	return *p, nil
}

func (r *fakePayslipRepo) GetByEmployeePeriod(_ context.Context, employeeID string, year, month int) (payroll.Payslip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byKey[periodKey{employeeID, year, month}]
	if !ok {
		return payroll.Payslip{}, payroll.ErrPayslipNotFound
	}
	return *r.byID[id], nil
}

func (r *fakePayslipRepo) GetPaidEmployeeIDs(_ context.Context, year, month int, employeeIDs []string) (map[string]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]string{}
	for _, empID := range employeeIDs {
		id, ok := r.byKey[periodKey{empID, year, month}]
		if ok && r.byID[id].Status == payroll.PayslipStatusPaid {
			out[empID] = id
		}
	}
	return out, nil
}

func (r *fakePayslipRepo) List(_ context.Context, f payroll.PayslipFilter) ([]payroll.Payslip, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var all []payroll.Payslip
	for _, p := range r.byID {
		if f.Year != nil && p.Year != *f.Year {
			continue
		}
		if f.Month != nil && p.Month != *f.Month {
			continue
		}
		if f.Status != nil && string(p.Status) != *f.Status {
			continue
		}
		if f.EmployeeID != nil && p.EmployeeID != *f.EmployeeID {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	total := int64(len(all))
	start := (f.Page - 1) * f.Limit
	if start > len(all) {
		start = len(all)
	}
	end := start + f.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *fakePayslipRepo) GetYearToDate(_ context.Context, employeeID string, year, month int) (decimal.Decimal, decimal.Decimal, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	earnings, deductions := decimal.Zero, decimal.Zero
	for _, p := range r.byID {
		if p.EmployeeID != employeeID || p.Year != year || p.Month > month {
			continue
		}
		if p.Status != payroll.PayslipStatusProcessed && p.Status != payroll.PayslipStatusPaid {
			continue
		}
		earnings = earnings.Add(p.TotalEarningsPaid)
		deductions = deductions.Add(p.TotalDeductions)
	}
	return earnings, deductions, nil
}

func (r *fakePayslipRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// ========== RUNS ==========

type fakeRunRepo struct {
	mu   sync.Mutex
	runs []payroll.MonthlyProcessingRun
}

func (r *fakeRunRepo) Create(_ context.Context, run payroll.MonthlyProcessingRun) (payroll.MonthlyProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run.ID = fmt.Sprintf("run-%d", len(r.runs)+1)
	r.runs = append(r.runs, run)
	return run, nil
}

func (r *fakeRunRepo) Finish(_ context.Context, run payroll.MonthlyProcessingRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.runs {
		if r.runs[i].ID == run.ID {
			r.runs[i] = run
			return nil
		}
	}
	return payroll.ErrRunNotFound
}

func (r *fakeRunRepo) GetByID(_ context.Context, id string) (payroll.MonthlyProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, run := range r.runs {
		if run.ID == id {
			return run, nil
		}
	}
	return payroll.MonthlyProcessingRun{}, payroll.ErrRunNotFound
}

func (r *fakeRunRepo) GetLatestByPeriod(_ context.Context, year, month int) (payroll.MonthlyProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.runs) - 1; i >= 0; i-- {
		if r.runs[i].Year == year && r.runs[i].Month == month {
			return r.runs[i], nil
		}
	}
	return payroll.MonthlyProcessingRun{}, payroll.ErrRunNotFound
}

func (r *fakeRunRepo) ListByPeriod(_ context.Context, year, month int) ([]payroll.MonthlyProcessingRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []payroll.MonthlyProcessingRun
	for _, run := range r.runs {
		if run.Year == year && run.Month == month {
			out = append(out, run)
		}
	}
	return out, nil
}

// ========== EVENTS ==========

type publishedEvent struct {
	topic     string
	key       string
	eventType string
}

type fakePublisher struct {
	mu     sync.Mutex
	events []publishedEvent
	err    error
}

func (p *fakePublisher) Publish(_ context.Context, topic, key, eventType string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, publishedEvent{topic: topic, key: key, eventType: eventType})
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) count(topic string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.topic == topic {
			n++
		}
	}
	return n
}

// ========== FIXTURE ==========

var errBoom = errors.New("boom")

// scenarioStructure is Scenario A with the PF wage ceiling on:
// CTC 12L, delhi, 45% basic, default professional tax.
func scenarioStructure(employeeID string) payroll.SalaryStructure {
	return payroll.SalaryStructure{
		ID:               "ss-" + employeeID,
		EmployeeID:       employeeID,
		AnnualCTC:        d("1200000"),
		MonthlyGross:     d("100000"),
		Basic:            d("45000"),
		HRA:              d("22500"),
		SpecialAllowance: d("32500"),
		PFDeduction:      d("1800"),
		TaxDeduction:     d("13125"),
		TotalDeductions:  d("15125"),
		NetPay:           d("84875"),
		Currency:         "INR",
		EffectiveFrom:    date(2024, 1, 1),
	}
}

func activeEmployee(id, name string) employee.Employee {
	return employee.Employee{
		ID:       id,
		FullName: name,
		Email:    id + "@example.com",
		City:     "Delhi",
		IsActive: true,
	}
}

type fixture struct {
	employees  *fakeEmployeeRepo
	leaves     *fakeLeaveRepo
	structures *fakeStructureRepo
	payslips   *fakePayslipRepo
	runs       *fakeRunRepo
	publisher  *fakePublisher
	processor  *PayslipProcessor
	ledger     *Ledger
	service    *PayrollServiceImpl
}

func newFixture(rules Rules, emps ...employee.Employee) *fixture {
	f := &fixture{
		employees:  newFakeEmployeeRepo(emps...),
		leaves:     &fakeLeaveRepo{},
		structures: newFakeStructureRepo(),
		payslips:   newFakePayslipRepo(),
		runs:       &fakeRunRepo{},
		publisher:  &fakePublisher{},
	}
	for _, e := range emps {
		f.structures.structures[e.ID] = scenarioStructure(e.ID)
	}

	tables := DefaultTables()
	tax := NewTaxEngine(tables)
	calc := NewCalculator(tables, tax, rules)
	f.processor = NewPayslipProcessor(f.structures, f.payslips, NewLeaveDeductionEngine(f.leaves), calc, rules, f.publisher)
	f.ledger = NewLedger(f.employees, f.payslips, f.runs, f.processor, nil, f.publisher, LedgerOptions{Workers: 4})
	f.service = NewPayrollService(f.employees, f.structures, f.payslips, f.runs, tables, tax, calc, f.processor, f.ledger, rules).(*PayrollServiceImpl)
	return f
}
