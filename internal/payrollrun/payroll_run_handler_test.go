package payrollrun_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"go-payroll/internal/payrollrun"
	payrollrunerrors "go-payroll/internal/payrollrun/errors"
)

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiEnvelope struct {
	Ok    bool            `json:"ok"`
	Data  json.RawMessage `json:"data"`
	Error *apiError       `json:"error"`
}

func mustDecodeEnvelope(t *testing.T, body []byte) apiEnvelope {
	t.Helper()
	var env apiEnvelope
	err := json.Unmarshal(body, &env)
	assert.NoError(t, err)
	return env
}

type fakeRunService struct {
	initiateFn         func(ctx context.Context, req payrollrun.InitiateRunRequest) (payrollrun.RunResponse, error)
	getAllFn           func(ctx context.Context) ([]payrollrun.RunResponse, error)
	getByRefFn         func(ctx context.Context, ref string) (payrollrun.RunResponse, error)
	getDetailsFn       func(ctx context.Context, ref string) ([]payrollrun.DetailResponse, error)
	getExceptionsFn    func(ctx context.Context, ref string) ([]payrollrun.DetailResponse, error)
	editPeriodFn       func(ctx context.Context, ref string, req payrollrun.EditPeriodRequest) (payrollrun.RunResponse, error)
	publishFn          func(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error)
	managerApproveFn   func(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error)
	managerRejectFn    func(ctx context.Context, ref string, actorID string, req payrollrun.RejectRequest) (payrollrun.RunResponse, error)
	financeApproveFn   func(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error)
	financeRejectFn    func(ctx context.Context, ref string, actorID string, req payrollrun.RejectRequest) (payrollrun.RunResponse, error)
	freezeFn           func(ctx context.Context, ref string, actorID string, req payrollrun.FreezeRequest) (payrollrun.RunResponse, error)
	unfreezeFn         func(ctx context.Context, ref string, actorID string, req payrollrun.UnfreezeRequest) (payrollrun.RunResponse, error)
	approvalPanelFn    func(ctx context.Context, ref string) (payrollrun.ApprovalPanelResponse, error)
	generatePayslipsFn func(ctx context.Context, ref string) (payrollrun.GeneratePayslipsResponse, error)
	recalculateFn      func(ctx context.Context, ref string, employeeID string, req payrollrun.RecalculateEmployeeRequest) (payrollrun.DetailResponse, error)
	adjustFn           func(ctx context.Context, ref string, employeeID string, req payrollrun.AdjustmentRequest) (payrollrun.DetailResponse, error)
	resolveExceptionFn func(ctx context.Context, ref string, employeeID string, req payrollrun.ResolveExceptionRequest) (payrollrun.DetailResponse, error)
}

func (f *fakeRunService) Initiate(ctx context.Context, req payrollrun.InitiateRunRequest) (payrollrun.RunResponse, error) {
	return f.initiateFn(ctx, req)
}

func (f *fakeRunService) GetAll(ctx context.Context) ([]payrollrun.RunResponse, error) {
	return f.getAllFn(ctx)
}

func (f *fakeRunService) GetByRef(ctx context.Context, ref string) (payrollrun.RunResponse, error) {
	return f.getByRefFn(ctx, ref)
}

func (f *fakeRunService) GetDetails(ctx context.Context, ref string) ([]payrollrun.DetailResponse, error) {
	return f.getDetailsFn(ctx, ref)
}

func (f *fakeRunService) GetExceptions(ctx context.Context, ref string) ([]payrollrun.DetailResponse, error) {
	return f.getExceptionsFn(ctx, ref)
}

func (f *fakeRunService) EditPeriod(ctx context.Context, ref string, req payrollrun.EditPeriodRequest) (payrollrun.RunResponse, error) {
	return f.editPeriodFn(ctx, ref, req)
}

func (f *fakeRunService) PublishForReview(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error) {
	return f.publishFn(ctx, ref, actorID)
}

func (f *fakeRunService) ManagerApprove(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error) {
	return f.managerApproveFn(ctx, ref, actorID)
}

func (f *fakeRunService) ManagerReject(ctx context.Context, ref string, actorID string, req payrollrun.RejectRequest) (payrollrun.RunResponse, error) {
	return f.managerRejectFn(ctx, ref, actorID, req)
}

func (f *fakeRunService) FinanceApprove(ctx context.Context, ref string, actorID string) (payrollrun.RunResponse, error) {
	return f.financeApproveFn(ctx, ref, actorID)
}

func (f *fakeRunService) FinanceReject(ctx context.Context, ref string, actorID string, req payrollrun.RejectRequest) (payrollrun.RunResponse, error) {
	return f.financeRejectFn(ctx, ref, actorID, req)
}

func (f *fakeRunService) Freeze(ctx context.Context, ref string, actorID string, req payrollrun.FreezeRequest) (payrollrun.RunResponse, error) {
	return f.freezeFn(ctx, ref, actorID, req)
}

func (f *fakeRunService) Unfreeze(ctx context.Context, ref string, actorID string, req payrollrun.UnfreezeRequest) (payrollrun.RunResponse, error) {
	return f.unfreezeFn(ctx, ref, actorID, req)
}

func (f *fakeRunService) ApprovalPanel(ctx context.Context, ref string) (payrollrun.ApprovalPanelResponse, error) {
	return f.approvalPanelFn(ctx, ref)
}

func (f *fakeRunService) GeneratePayslips(ctx context.Context, ref string) (payrollrun.GeneratePayslipsResponse, error) {
	return f.generatePayslipsFn(ctx, ref)
}

func (f *fakeRunService) RecalculateEmployee(ctx context.Context, ref string, employeeID string, req payrollrun.RecalculateEmployeeRequest) (payrollrun.DetailResponse, error) {
	return f.recalculateFn(ctx, ref, employeeID, req)
}

func (f *fakeRunService) Adjust(ctx context.Context, ref string, employeeID string, req payrollrun.AdjustmentRequest) (payrollrun.DetailResponse, error) {
	return f.adjustFn(ctx, ref, employeeID, req)
}

func (f *fakeRunService) ResolveException(ctx context.Context, ref string, employeeID string, req payrollrun.ResolveExceptionRequest) (payrollrun.DetailResponse, error) {
	return f.resolveExceptionFn(ctx, ref, employeeID, req)
}

func TestRunHandler_Initiate(t *testing.T) {
	specialistID := uuid.New().String()

	svc := &fakeRunService{
		initiateFn: func(ctx context.Context, req payrollrun.InitiateRunRequest) (payrollrun.RunResponse, error) {
			assert.Equal(t, "2025-07-31", req.PayrollPeriod)
			assert.Equal(t, "acme-gmbh", req.Entity)
			assert.Equal(t, specialistID, req.SpecialistID)
			return payrollrun.RunResponse{
				ID:        uuid.New().String(),
				RunNumber: "PR-2025-0001",
				Status:    payrollrun.StatusDraft,
			}, nil
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"payroll_period":"2025-07-31","entity":"acme-gmbh","specialist_id":"` + specialistID + `"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Initiate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.True(t, env.Ok)
}

func TestRunHandler_Initiate_SpecialistDefaultsToActor(t *testing.T) {
	actorID := uuid.New().String()

	svc := &fakeRunService{
		initiateFn: func(ctx context.Context, req payrollrun.InitiateRunRequest) (payrollrun.RunResponse, error) {
			assert.Equal(t, actorID, req.SpecialistID)
			return payrollrun.RunResponse{ID: uuid.New().String(), Status: payrollrun.StatusDraft}, nil
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"payroll_period":"2025-07-31","entity":"acme-gmbh"}`
	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set("actor_id", actorID)

	h.Initiate(c)

	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestRunHandler_Initiate_MissingPeriod(t *testing.T) {
	h := payrollrun.NewHandler(&fakeRunService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs", strings.NewReader(`{"entity":"acme-gmbh"}`))
	c.Request.Header.Set("Content-Type", "application/json")

	h.Initiate(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.False(t, env.Ok)
	assert.Equal(t, "VALIDATION_ERROR", env.Error.Code)
}

func TestRunHandler_GetByRef_NotFound(t *testing.T) {
	svc := &fakeRunService{
		getByRefFn: func(ctx context.Context, ref string) (payrollrun.RunResponse, error) {
			return payrollrun.RunResponse{}, payrollrunerrors.ErrRunNotFound
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodGet, "/payroll-runs/PR-2025-0042", nil)
	c.Params = gin.Params{{Key: "ref", Value: "PR-2025-0042"}}

	h.GetByRef(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.False(t, env.Ok)
	assert.Equal(t, "payroll run not found", env.Error.Message)
}

func TestRunHandler_ManagerReject_MissingReason(t *testing.T) {
	h := payrollrun.NewHandler(&fakeRunService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs/x/manager-reject", strings.NewReader(`{}`))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "ref", Value: "x"}}

	h.ManagerReject(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandler_Freeze_EmptyBody(t *testing.T) {
	ref := uuid.New().String()
	actorID := uuid.New().String()

	svc := &fakeRunService{
		freezeFn: func(ctx context.Context, gotRef string, gotActor string, req payrollrun.FreezeRequest) (payrollrun.RunResponse, error) {
			assert.Equal(t, ref, gotRef)
			assert.Equal(t, actorID, gotActor)
			assert.Nil(t, req.Reason)
			return payrollrun.RunResponse{ID: gotRef, Status: payrollrun.StatusLocked}, nil
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs/"+ref+"/freeze", nil)
	c.Params = gin.Params{{Key: "ref", Value: ref}}
	c.Request.Header.Set("X-Actor-ID", actorID)

	h.Freeze(c)

	assert.Equal(t, http.StatusOK, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.True(t, env.Ok)
}

func TestRunHandler_Freeze_InvalidState(t *testing.T) {
	svc := &fakeRunService{
		freezeFn: func(ctx context.Context, ref string, actorID string, req payrollrun.FreezeRequest) (payrollrun.RunResponse, error) {
			return payrollrun.RunResponse{}, payrollrunerrors.ErrFreezeRequiresApproved
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs/x/freeze", nil)
	c.Params = gin.Params{{Key: "ref", Value: "x"}}

	h.Freeze(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.False(t, env.Ok)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)
}

func TestRunHandler_Adjust_InvalidType(t *testing.T) {
	h := payrollrun.NewHandler(&fakeRunService{})
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	body := `{"type":"refund","amount":100}`
	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs/x/employees/y/adjustments", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = gin.Params{{Key: "ref", Value: "x"}, {Key: "employeeId", Value: "y"}}

	h.Adjust(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRunHandler_GeneratePayslips(t *testing.T) {
	ref := uuid.New().String()

	svc := &fakeRunService{
		generatePayslipsFn: func(ctx context.Context, gotRef string) (payrollrun.GeneratePayslipsResponse, error) {
			return payrollrun.GeneratePayslipsResponse{RunID: gotRef, Count: 12}, nil
		},
	}

	h := payrollrun.NewHandler(svc)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	c.Request = httptest.NewRequest(http.MethodPost, "/payroll-runs/"+ref+"/payslips", nil)
	c.Params = gin.Params{{Key: "ref", Value: ref}}

	h.GeneratePayslips(c)

	assert.Equal(t, http.StatusOK, w.Code)
	env := mustDecodeEnvelope(t, w.Body.Bytes())
	assert.True(t, env.Ok)

	var data payrollrun.GeneratePayslipsResponse
	assert.NoError(t, json.Unmarshal(env.Data, &data))
	assert.Equal(t, 12, data.Count)
}
