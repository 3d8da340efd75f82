package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/cmlabs-hris/payroll-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-backend-go/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePayrollService embeds the interface so tests only stub what they call
type fakePayrollService struct {
	payroll.PayrollService

	runReq   payroll.BulkProcessRequest
	runErr   error
	payslip  payroll.PayslipResponse
	getErr   error
	list     payroll.ListPayslipResponse
	filter   payroll.PayslipFilter
	pdf      []byte
	pdfErr   error
	listRuns []payroll.RunResponse
}

func (f *fakePayrollService) RunMonthly(_ context.Context, req payroll.BulkProcessRequest) (payroll.BulkProcessResponse, error) {
	f.runReq = req
	if f.runErr != nil {
		return payroll.BulkProcessResponse{}, f.runErr
	}
	return payroll.BulkProcessResponse{Year: req.Year, Month: req.Month, Status: string(payroll.RunStatusCompleted)}, nil
}

func (f *fakePayrollService) GetPayslip(_ context.Context, id string) (payroll.PayslipResponse, error) {
	if f.getErr != nil {
		return payroll.PayslipResponse{}, f.getErr
	}
	return f.payslip, nil
}

func (f *fakePayrollService) ListPayslips(_ context.Context, filter payroll.PayslipFilter) (payroll.ListPayslipResponse, error) {
	f.filter = filter
	return f.list, nil
}

func (f *fakePayrollService) RenderPayslipPDF(_ context.Context, id string) ([]byte, string, error) {
	if f.pdfErr != nil {
		return nil, "", f.pdfErr
	}
	return f.pdf, "payslip-" + id + ".pdf", nil
}

func (f *fakePayrollService) ListRuns(_ context.Context, year, month int) ([]payroll.RunResponse, error) {
	return f.listRuns, nil
}

func (f *fakePayrollService) ProcessPayslip(_ context.Context, req payroll.ProcessPayslipRequest) (payroll.PayslipResponse, error) {
	if err := req.Validate(); err != nil {
		return payroll.PayslipResponse{}, err
	}
	return f.payslip, nil
}

const testSecret = "test-secret-key-for-jwt"

func newTestServer(t *testing.T, svc *fakePayrollService) (*httptest.Server, jwt.Service) {
	t.Helper()
	jwtSvc := jwt.NewJWTService(testSecret, "1h")
	router := NewRouter(RouterConfig{AppName: "payroll-test", Env: "test", LogLevel: slog.LevelError}, jwtSvc, NewPayrollHandler(svc))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, jwtSvc
}

func doRequest(t *testing.T, method, url, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func token(t *testing.T, svc jwt.Service, admin bool) string {
	t.Helper()
	tok, _, err := svc.GenerateAccessToken("user-1", "hr@example.com", admin)
	require.NoError(t, err)
	return tok
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestPayrollHandler_RequiresToken(t *testing.T) {
	srv, _ := newTestServer(t, &fakePayrollService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPayrollHandler_RunMonthly_AdminOnly(t *testing.T) {
	svc := &fakePayrollService{}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/payroll/runs", token(t, jwtSvc, false), map[string]any{"year": 2024, "month": 3})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestPayrollHandler_RunMonthly_Success(t *testing.T) {
	svc := &fakePayrollService{}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/payroll/runs", token(t, jwtSvc, true), map[string]any{
		"year":            2024,
		"month":           3,
		"skip_duplicates": false,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, 2024, svc.runReq.Year)
	assert.Equal(t, 3, svc.runReq.Month)
	require.NotNil(t, svc.runReq.SkipDuplicates)
	assert.False(t, *svc.runReq.SkipDuplicates)
	require.NotNil(t, svc.runReq.TriggeredBy)
	assert.Equal(t, "user-1", *svc.runReq.TriggeredBy)

	body := decodeBody(t, resp)
	assert.Equal(t, true, body["success"])
}

func TestPayrollHandler_RunMonthly_InProgressConflict(t *testing.T) {
	svc := &fakePayrollService{runErr: payroll.ErrRunInProgress}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/payroll/runs", token(t, jwtSvc, true), map[string]any{"year": 2024, "month": 3})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPayrollHandler_RunMonthly_ValidationError(t *testing.T) {
	svc := &fakePayrollService{runErr: validator.ValidationErrors{{Field: "month", Message: "must be between 1 and 12"}}}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/payroll/runs", token(t, jwtSvc, true), map[string]any{"year": 2024, "month": 13})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody(t, resp)
	errBody := body["error"].(map[string]any)
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
}

func TestPayrollHandler_RunMonthly_BadBody(t *testing.T) {
	srv, jwtSvc := newTestServer(t, &fakePayrollService{})

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/payroll/runs", bytes.NewBufferString("{not json"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token(t, jwtSvc, true))
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPayrollHandler_ProcessPayslip_Validation(t *testing.T) {
	srv, jwtSvc := newTestServer(t, &fakePayrollService{})

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/payroll/payslips", token(t, jwtSvc, true), map[string]any{"year": 2024, "month": 3})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestPayrollHandler_GetPayslip_NotFound(t *testing.T) {
	svc := &fakePayrollService{getErr: payroll.ErrPayslipNotFound}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips/abc", token(t, jwtSvc, false), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPayrollHandler_ListPayslips_FilterAndMeta(t *testing.T) {
	svc := &fakePayrollService{list: payroll.ListPayslipResponse{
		Data:       []payroll.PayslipResponse{},
		TotalCount: 45,
		Page:       2,
		Limit:      20,
	}}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips?year=2024&month=3&status=paid&page=2", token(t, jwtSvc, false), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	require.NotNil(t, svc.filter.Year)
	assert.Equal(t, 2024, *svc.filter.Year)
	require.NotNil(t, svc.filter.Status)
	assert.Equal(t, "paid", *svc.filter.Status)
	assert.Equal(t, 2, svc.filter.Page)

	body := decodeBody(t, resp)
	meta := body["meta"].(map[string]any)
	assert.Equal(t, float64(3), meta["total_pages"])
	assert.Equal(t, float64(45), meta["total_items"])
}

func TestPayrollHandler_ListPayslips_BadYear(t *testing.T) {
	srv, jwtSvc := newTestServer(t, &fakePayrollService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips?year=abc", token(t, jwtSvc, false), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPayrollHandler_DownloadPayslip(t *testing.T) {
	svc := &fakePayrollService{pdf: []byte("%PDF-1.3 test")}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips/ps-1/pdf", token(t, jwtSvc, false), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "payslip-ps-1.pdf")

	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 test", string(content))
}

func TestPayrollHandler_DownloadPayslip_NotProcessed(t *testing.T) {
	svc := &fakePayrollService{pdfErr: payroll.ErrPayslipNotProcessed}
	srv, jwtSvc := newTestServer(t, svc)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/payslips/ps-1/pdf", token(t, jwtSvc, false), nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestPayrollHandler_ListRuns_RequiresPeriod(t *testing.T) {
	srv, jwtSvc := newTestServer(t, &fakePayrollService{})

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/runs?year=2024", token(t, jwtSvc, false), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/payroll/runs?year=2024&month=3", token(t, jwtSvc, false), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_ServesArchivedFilesWithAuth(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "payslips"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payslips", "a.pdf"), []byte("%PDF"), 0o644))

	jwtSvc := jwt.NewJWTService(testSecret, "1h")
	router := NewRouter(RouterConfig{Env: "test", LogLevel: slog.LevelError, FilesDir: dir}, jwtSvc, NewPayrollHandler(&fakePayrollService{}))
	srv := httptest.NewServer(router)
	defer srv.Close()

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/files/payslips/a.pdf", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/files/payslips/a.pdf", token(t, jwtSvc, false), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	content, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(content))
}
