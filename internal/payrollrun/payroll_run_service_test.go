package payrollrun_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-payroll/internal/ancillary"
	"go-payroll/internal/employee"
	"go-payroll/internal/payrollrun"
	payrollrunerrors "go-payroll/internal/payrollrun/errors"
	"go-payroll/internal/penalty"
	"go-payroll/internal/shared/apperror"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

// --- fakes ---

type transitionCall struct {
	runID        string
	fromStatuses []string
	updates      map[string]any
}

type fakeRunRepo struct {
	runs    map[string]*payrollrun.PayrollRun
	details map[string][]payrollrun.EmployeePayrollDetail

	hasActiveFn  func(ctx context.Context, period time.Time, entity string, excludeRunID *string) (bool, error)
	transitionFn func(ctx context.Context, runID string, fromStatuses []string, updates map[string]any) (bool, error)

	transitions []transitionCall
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{
		runs:    make(map[string]*payrollrun.PayrollRun),
		details: make(map[string][]payrollrun.EmployeePayrollDetail),
	}
}

func (f *fakeRunRepo) WithTx(tx *sql.Tx) payrollrun.Repository { return f }

func (f *fakeRunRepo) Create(ctx context.Context, run *payrollrun.PayrollRun) error {
	cp := *run
	f.runs[run.ID.String()] = &cp
	return nil
}

func (f *fakeRunRepo) FindAll(ctx context.Context) ([]payrollrun.PayrollRun, error) {
	var out []payrollrun.PayrollRun
	for _, run := range f.runs {
		out = append(out, *run)
	}
	return out, nil
}

func (f *fakeRunRepo) FindByID(ctx context.Context, id string) (*payrollrun.PayrollRun, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRunRepo) FindByRunNumber(ctx context.Context, runNumber string) (*payrollrun.PayrollRun, error) {
	for _, run := range f.runs {
		if run.RunNumber == runNumber {
			cp := *run
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRunRepo) HasActiveRunForPeriod(ctx context.Context, period time.Time, entity string, excludeRunID *string) (bool, error) {
	if f.hasActiveFn != nil {
		return f.hasActiveFn(ctx, period, entity, excludeRunID)
	}
	for _, run := range f.runs {
		if excludeRunID != nil && run.ID.String() == *excludeRunID {
			continue
		}
		if run.PayrollPeriod.Equal(period) && run.Entity == entity && run.Status != payrollrun.StatusRejected {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRunRepo) Update(ctx context.Context, run *payrollrun.PayrollRun) error {
	cp := *run
	f.runs[run.ID.String()] = &cp
	return nil
}

func (f *fakeRunRepo) TransitionStatus(ctx context.Context, runID string, fromStatuses []string, updates map[string]any) (bool, error) {
	f.transitions = append(f.transitions, transitionCall{runID: runID, fromStatuses: fromStatuses, updates: updates})
	if f.transitionFn != nil {
		return f.transitionFn(ctx, runID, fromStatuses, updates)
	}

	run, ok := f.runs[runID]
	if !ok {
		return false, nil
	}
	matched := false
	for _, status := range fromStatuses {
		if run.Status == status {
			matched = true
			break
		}
	}
	if !matched {
		return false, nil
	}

	for key, value := range updates {
		switch key {
		case "status":
			run.Status = value.(string)
		case "rejection_reason":
			v := value.(string)
			run.RejectionReason = &v
		case "unlock_reason":
			v := value.(string)
			run.UnlockReason = &v
		case "payroll_manager_id":
			v := value.(uuid.UUID)
			run.PayrollManagerID = &v
		case "finance_staff_id":
			v := value.(uuid.UUID)
			run.FinanceStaffID = &v
		case "manager_approval_date":
			if v, ok := value.(time.Time); ok {
				run.ManagerApprovalDate = &v
			} else {
				run.ManagerApprovalDate = nil
			}
		case "finance_approval_date":
			if v, ok := value.(time.Time); ok {
				run.FinanceApprovalDate = &v
			} else {
				run.FinanceApprovalDate = nil
			}
		}
	}
	return true, nil
}

func (f *fakeRunRepo) UpsertDetail(ctx context.Context, detail *payrollrun.EmployeePayrollDetail) error {
	if detail.ID == uuid.Nil {
		detail.ID = uuid.New()
	}
	runID := detail.RunID.String()
	for i, existing := range f.details[runID] {
		if existing.EmployeeID == detail.EmployeeID {
			f.details[runID][i] = *detail
			return nil
		}
	}
	f.details[runID] = append(f.details[runID], *detail)
	return nil
}

func (f *fakeRunRepo) FindDetails(ctx context.Context, runID string) ([]payrollrun.EmployeePayrollDetail, error) {
	return f.details[runID], nil
}

func (f *fakeRunRepo) FindDetail(ctx context.Context, runID string, employeeID string) (*payrollrun.EmployeePayrollDetail, error) {
	for _, detail := range f.details[runID] {
		if detail.EmployeeID.String() == employeeID {
			cp := detail
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRunRepo) UpdateDetail(ctx context.Context, detail *payrollrun.EmployeePayrollDetail) error {
	return f.UpsertDetail(ctx, detail)
}

func (f *fakeRunRepo) AggregateDetails(ctx context.Context, runID string) (payrollrun.DetailAggregate, error) {
	agg := payrollrun.DetailAggregate{TotalNetPay: decimal.Zero}
	for _, detail := range f.details[runID] {
		agg.Employees++
		if detail.HasExceptions() {
			agg.Exceptions++
		}
		agg.TotalNetPay = agg.TotalNetPay.Add(detail.NetPay)
	}
	return agg, nil
}

type fakeEmployeeRepo struct {
	employees []employee.Employee
	grades    map[string]*employee.PayGrade

	findActiveErr error
}

func (f *fakeEmployeeRepo) FindActive(ctx context.Context, entity string) ([]employee.Employee, error) {
	if f.findActiveErr != nil {
		return nil, f.findActiveErr
	}
	return f.employees, nil
}

func (f *fakeEmployeeRepo) FindByID(ctx context.Context, id string) (*employee.Employee, error) {
	for i := range f.employees {
		if f.employees[i].ID.String() == id {
			return &f.employees[i], nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeEmployeeRepo) FindPayGrade(ctx context.Context, id string) (*employee.PayGrade, error) {
	grade, ok := f.grades[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return grade, nil
}

type fakeAncillaryRepo struct {
	bonuses  map[string][]ancillary.SigningBonus
	benefits map[string][]ancillary.TerminationBenefit
}

func (f *fakeAncillaryRepo) CountPendingSigningBonuses(ctx context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeAncillaryRepo) CountPendingTerminationBenefits(ctx context.Context) (int64, error) {
	return 0, nil
}

func (f *fakeAncillaryRepo) FindApprovedSigningBonuses(ctx context.Context, employeeID string) ([]ancillary.SigningBonus, error) {
	return f.bonuses[employeeID], nil
}

func (f *fakeAncillaryRepo) FindApprovedTerminationBenefits(ctx context.Context, employeeID string) ([]ancillary.TerminationBenefit, error) {
	return f.benefits[employeeID], nil
}

type fakePenaltyRepo struct {
	records map[string]*penalty.PenaltyRecord
}

func (f *fakePenaltyRepo) FindByEmployee(ctx context.Context, employeeID string) (*penalty.PenaltyRecord, error) {
	return f.records[employeeID], nil
}

type fakeGate struct {
	checkFn func(ctx context.Context) error
}

func (f *fakeGate) Check(ctx context.Context) error {
	if f.checkFn != nil {
		return f.checkFn(ctx)
	}
	return nil
}

type fakeCounterRepo struct {
	next int64
}

func (f *fakeCounterRepo) GetNextValue(ctx context.Context, entity string, counterType string) (int64, error) {
	f.next++
	return f.next, nil
}

type fakeGenerator struct {
	result payrollrun.GenerationResult
	err    error
	calls  []string
}

func (f *fakeGenerator) GenerateForRun(ctx context.Context, runID string) (payrollrun.GenerationResult, error) {
	f.calls = append(f.calls, runID)
	return f.result, f.err
}

// --- setup ---

type serviceDeps struct {
	db        *sql.DB
	sqlMock   sqlmock.Sqlmock
	repo      *fakeRunRepo
	employees *fakeEmployeeRepo
	ancils    *fakeAncillaryRepo
	penalties *fakePenaltyRepo
	gate      *fakeGate
	counter   *fakeCounterRepo
	generator *fakeGenerator
	service   payrollrun.Service
}

func setupServiceTest(t *testing.T) *serviceDeps {
	t.Helper()

	db, sqlMock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	deps := &serviceDeps{
		db:      db,
		sqlMock: sqlMock,
		repo:    newFakeRunRepo(),
		employees: &fakeEmployeeRepo{
			grades: make(map[string]*employee.PayGrade),
		},
		ancils: &fakeAncillaryRepo{
			bonuses:  make(map[string][]ancillary.SigningBonus),
			benefits: make(map[string][]ancillary.TerminationBenefit),
		},
		penalties: &fakePenaltyRepo{records: make(map[string]*penalty.PenaltyRecord)},
		gate:      &fakeGate{},
		counter:   &fakeCounterRepo{},
		generator: &fakeGenerator{},
	}

	builder := payrollrun.NewDraftBuilder(deps.employees, deps.ancils, deps.penalties, zap.NewNop())
	deps.service = payrollrun.NewService(
		db,
		deps.repo,
		deps.employees,
		deps.counter,
		deps.gate,
		builder,
		nil,
		deps.generator,
		zap.NewNop(),
	)
	return deps
}

func seedRun(deps *serviceDeps, status string) *payrollrun.PayrollRun {
	run := &payrollrun.PayrollRun{
		ID:                  uuid.New(),
		RunNumber:           "PR-2025-0001",
		PayrollPeriod:       time.Date(2025, 7, 31, 0, 0, 0, 0, time.UTC),
		Entity:              "acme-gmbh",
		Status:              status,
		Employees:           1,
		TotalNetPay:         decimal.Zero,
		PaymentStatus:       payrollrun.PaymentStatusPending,
		PayrollSpecialistID: uuid.New(),
	}
	deps.repo.runs[run.ID.String()] = run
	return run
}

func seedDetail(deps *serviceDeps, run *payrollrun.PayrollRun, netPay string) *payrollrun.EmployeePayrollDetail {
	detail := payrollrun.EmployeePayrollDetail{
		ID:         uuid.New(),
		RunID:      run.ID,
		EmployeeID: uuid.New(),
		NetSalary:  d(netPay),
		NetPay:     d(netPay),
		BankStatus: payrollrun.BankStatusValid,
	}
	deps.repo.details[run.ID.String()] = append(deps.repo.details[run.ID.String()], detail)
	return &detail
}

// --- initiation ---

func TestInitiate_BuildsDraftAndAggregates(t *testing.T) {
	deps := setupServiceTest(t)

	gradeID := uuid.New()
	deps.employees.grades[gradeID.String()] = &employee.PayGrade{
		ID:         gradeID,
		BaseSalary: d("6000"),
		Allowances: []employee.PayGradeAllowance{
			{Name: "Housing Allowance", Amount: d("500")},
			{Name: "Transport Allowance", Amount: d("300")},
		},
	}
	deps.employees.employees = []employee.Employee{
		{
			ID:                uuid.New(),
			FullName:          "Lena Fischer",
			Entity:            "acme-gmbh",
			Status:            employee.StatusActive,
			PayGradeID:        &gradeID,
			BankName:          "Sparkasse",
			BankAccountNumber: "DE89370400440532013000",
		},
		{
			ID:       uuid.New(),
			FullName: "Jonas Weber",
			Entity:   "acme-gmbh",
			Status:   employee.StatusActive,
		},
	}

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "2025-07-31",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	require.NoError(t, err)
	assert.Equal(t, "PR-2025-0001", resp.RunNumber)
	assert.Equal(t, payrollrun.StatusDraft, resp.Status)
	assert.Equal(t, 2, resp.Employees)
	assert.Equal(t, 1, resp.Exceptions)
	// 6000 + 500 + 300 = 6800 gross; tax 703.75, insurance 690.00
	assert.Equal(t, "5406.25", resp.TotalNetPay)

	details := deps.repo.details[resp.ID]
	require.Len(t, details, 2)
	assert.Equal(t, "5406.25", details[0].NetPay.StringFixed(2))
	assert.Equal(t, payrollrun.BankStatusValid, details[0].BankStatus)
	assert.False(t, details[0].HasExceptions())

	assert.Equal(t, payrollrun.BankStatusMissing, details[1].BankStatus)
	require.True(t, details[1].HasExceptions())
	assert.Contains(t, *details[1].Exceptions, "Missing bank details")
	assert.Contains(t, *details[1].Exceptions, "Zero base salary")

	assert.NoError(t, deps.sqlMock.ExpectationsWereMet())
}

func TestInitiate_InvalidPeriodFormat(t *testing.T) {
	deps := setupServiceTest(t)

	_, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "July 2025",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	assert.ErrorIs(t, err, payrollrunerrors.ErrInvalidPeriodFormat)
}

func TestInitiate_GateBlocked(t *testing.T) {
	deps := setupServiceTest(t)
	deps.gate.checkFn = func(ctx context.Context) error {
		return ancillary.ErrGateBlocked
	}

	_, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "2025-07-31",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	assert.ErrorIs(t, err, ancillary.ErrGateBlocked)
	assert.Empty(t, deps.repo.runs)
}

func TestInitiate_PeriodConflict(t *testing.T) {
	deps := setupServiceTest(t)
	seedRun(deps, payrollrun.StatusUnderReview)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectRollback()

	_, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "2025-07-31",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	assert.ErrorIs(t, err, payrollrunerrors.ErrPeriodConflict)
}

func TestInitiate_RejectedRunFreesPeriod(t *testing.T) {
	deps := setupServiceTest(t)
	old := seedRun(deps, payrollrun.StatusRejected)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "2025-07-31",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	require.NoError(t, err)
	assert.NotEqual(t, old.ID.String(), resp.ID)
	assert.Equal(t, payrollrun.StatusDraft, resp.Status)
}

func TestInitiate_RosterFailureRejectsRunAndFails(t *testing.T) {
	deps := setupServiceTest(t)
	deps.employees.findActiveErr = errors.New("roster service unavailable")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	_, err := deps.service.Initiate(context.Background(), payrollrun.InitiateRunRequest{
		PayrollPeriod: "2025-07-31",
		Entity:        "acme-gmbh",
		SpecialistID:  uuid.NewString(),
	})

	require.Error(t, err)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.CodeCalculationError, appErr.Code)
	assert.Contains(t, err.Error(), "roster service unavailable")

	// The run itself is committed as REJECTED with the reason on record.
	require.Len(t, deps.repo.runs, 1)
	for _, run := range deps.repo.runs {
		assert.Equal(t, payrollrun.StatusRejected, run.Status)
		require.NotNil(t, run.RejectionReason)
		assert.Contains(t, *run.RejectionReason, "roster service unavailable")
	}
}

// --- approval lifecycle ---

func TestLifecycle_PublishThenTwoStageApproval(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusDraft)
	managerID := uuid.NewString()
	financeID := uuid.NewString()

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()
	resp, err := deps.service.PublishForReview(context.Background(), run.ID.String(), managerID)
	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusUnderReview, resp.Status)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()
	resp, err = deps.service.ManagerApprove(context.Background(), run.ID.String(), managerID)
	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusPendingFinanceApproval, resp.Status)
	require.NotNil(t, resp.PayrollManagerID)
	assert.Equal(t, managerID, *resp.PayrollManagerID)
	assert.NotNil(t, resp.ManagerApprovalDate)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()
	resp, err = deps.service.FinanceApprove(context.Background(), run.ID.String(), financeID)
	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusApproved, resp.Status)
	require.NotNil(t, resp.FinanceStaffID)
	assert.Equal(t, financeID, *resp.FinanceStaffID)
	assert.NotNil(t, resp.FinanceApprovalDate)
}

func TestFinanceApprove_RequiresManagerApproval(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)

	_, err := deps.service.FinanceApprove(context.Background(), run.ID.String(), uuid.NewString())

	assert.ErrorIs(t, err, payrollrunerrors.ErrManagerApprovalRequired)
}

func TestManagerApprove_RejectedRun(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusRejected)

	_, err := deps.service.ManagerApprove(context.Background(), run.ID.String(), uuid.NewString())

	assert.ErrorIs(t, err, payrollrunerrors.ErrApproveRejectedRun)
}

func TestManagerApprove_GateRechecked(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)
	deps.gate.checkFn = func(ctx context.Context) error {
		return ancillary.ErrGateBlocked
	}

	_, err := deps.service.ManagerApprove(context.Background(), run.ID.String(), uuid.NewString())

	assert.ErrorIs(t, err, ancillary.ErrGateBlocked)
	assert.Empty(t, deps.repo.transitions)
}

func TestManagerReject_RequiresReason(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)

	_, err := deps.service.ManagerReject(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.RejectRequest{})

	assert.ErrorIs(t, err, payrollrunerrors.ErrRejectionReasonRequired)
}

func TestFinanceReject_RecordsReason(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusPendingFinanceApproval)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.FinanceReject(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.RejectRequest{
		Reason: "totals do not reconcile with the ledger",
	})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusRejected, resp.Status)
	require.NotNil(t, resp.RejectionReason)
	assert.Equal(t, "totals do not reconcile with the ledger", *resp.RejectionReason)
	assert.Nil(t, resp.FinanceApprovalDate)
}

func TestPublish_ApprovedRunBlocked(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)

	_, err := deps.service.PublishForReview(context.Background(), run.ID.String(), uuid.NewString())

	assert.ErrorIs(t, err, payrollrunerrors.ErrPublishAfterApproval)
}

func TestTransition_ConcurrentMoveConflicts(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusDraft)
	deps.repo.transitionFn = func(ctx context.Context, runID string, fromStatuses []string, updates map[string]any) (bool, error) {
		return false, nil
	}

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectRollback()

	_, err := deps.service.PublishForReview(context.Background(), run.ID.String(), uuid.NewString())

	assert.ErrorIs(t, err, payrollrunerrors.ErrConcurrentTransition)
}

// --- freeze / unfreeze ---

func TestFreeze_RequiresApproved(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusDraft)

	_, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	assert.ErrorIs(t, err, payrollrunerrors.ErrFreezeRequiresApproved)
	assert.Empty(t, deps.generator.calls)
}

func TestFreeze_LocksAndGeneratesPayslips(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	deps.generator.result = payrollrun.GenerationResult{Count: 3}

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusLocked, resp.Status)
	assert.Equal(t, []string{run.ID.String()}, deps.generator.calls)
}

func TestFreeze_SecondCallIsIdempotent(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusLocked)
	deps.generator.result = payrollrun.GenerationResult{Skipped: true}

	resp, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusLocked, resp.Status)
	// Generation is re-attempted but no status transition happens.
	assert.Empty(t, deps.repo.transitions)
	assert.Equal(t, []string{run.ID.String()}, deps.generator.calls)
}

func TestFreeze_GenerationFailureIsRetriable(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	deps.generator.err = errors.New("payslip store unavailable")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	_, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	require.Error(t, err)
	// The lock itself committed; the run waits for a retry to get payslips.
	assert.Equal(t, payrollrun.StatusLocked, deps.repo.runs[run.ID.String()].Status)

	deps.generator.err = nil
	deps.generator.result = payrollrun.GenerationResult{Count: 2}

	resp, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusLocked, resp.Status)
	// One transition total: the retry re-enters on the LOCKED path.
	assert.Len(t, deps.repo.transitions, 1)
	assert.Equal(t, []string{run.ID.String(), run.ID.String()}, deps.generator.calls)
}

func TestFreeze_EmptyRunCannotLock(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	run.Employees = 0

	_, err := deps.service.Freeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.FreezeRequest{})

	assert.ErrorIs(t, err, payrollrunerrors.ErrNoPayslipsGenerated)
	assert.Empty(t, deps.generator.calls)
}

func TestUnfreeze_RequiresLocked(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)

	_, err := deps.service.Unfreeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.UnfreezeRequest{})

	assert.ErrorIs(t, err, payrollrunerrors.ErrUnfreezeRequiresLocked)
}

func TestUnfreeze_RecordsReason(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusLocked)
	reason := "late termination benefit for one employee"

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Unfreeze(context.Background(), run.ID.String(), uuid.NewString(), payrollrun.UnfreezeRequest{Reason: &reason})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusUnlocked, resp.Status)
	require.NotNil(t, resp.UnlockReason)
	assert.Equal(t, reason, *resp.UnlockReason)
}

// --- period edit ---

func TestEditPeriod_OnlyWhileEditable(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectRollback()

	_, err := deps.service.EditPeriod(context.Background(), run.ID.String(), payrollrun.EditPeriodRequest{
		PayrollPeriod: "2025-08-31",
	})

	assert.ErrorIs(t, err, payrollrunerrors.ErrPeriodNotEditable)
}

func TestEditPeriod_ReopensRejectedRun(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusRejected)

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.EditPeriod(context.Background(), run.ID.String(), payrollrun.EditPeriodRequest{
		PayrollPeriod: "2025-08-31",
	})

	require.NoError(t, err)
	assert.Equal(t, payrollrun.StatusDraft, resp.Status)
	assert.Equal(t, "2025-08-31", resp.PayrollPeriod)
	assert.Nil(t, resp.RejectionReason)
}

// --- adjustments ---

func TestAdjust_BonusRaisesNetPay(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	detail := seedDetail(deps, run, "1000")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeBonus,
		Amount: d("100"),
	})

	require.NoError(t, err)
	assert.Equal(t, "100.00", resp.Bonus)
	assert.Equal(t, "1100.00", resp.NetPay)
	// NetSalary is the untouched calculated reference.
	assert.Equal(t, "1000.00", resp.NetSalary)
}

func TestAdjust_DeductionLowersNetPay(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	detail := seedDetail(deps, run, "1000")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeDeduction,
		Amount: d("100"),
	})

	require.NoError(t, err)
	assert.Equal(t, "100.00", resp.Deductions)
	assert.Equal(t, "900.00", resp.NetPay)
}

func TestAdjust_FlowsIntoRunTotal(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	detail := seedDetail(deps, run, "1000")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	_, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeBenefit,
		Amount: d("250"),
	})

	require.NoError(t, err)
	stored := deps.repo.runs[run.ID.String()]
	assert.Equal(t, "1250.00", stored.TotalNetPay.StringFixed(2))
}

func TestAdjust_ReasonJoinsNarrative(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	detail := seedDetail(deps, run, "1000")
	reason := "court-ordered garnishment"

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeDeduction,
		Amount: d("75"),
		Reason: &reason,
	})

	require.NoError(t, err)
	require.NotNil(t, resp.Exceptions)
	assert.Equal(t, "court-ordered garnishment", *resp.Exceptions)
}

func TestAdjust_RejectsNonPositiveAmount(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusApproved)
	detail := seedDetail(deps, run, "1000")

	_, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeBonus,
		Amount: d("0"),
	})

	assert.ErrorIs(t, err, payrollrunerrors.ErrAmountRequired)
}

func TestAdjust_LockedRunIsReadOnly(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusLocked)
	detail := seedDetail(deps, run, "1000")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectRollback()

	_, err := deps.service.Adjust(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.AdjustmentRequest{
		Type:   payrollrun.AdjustmentTypeBonus,
		Amount: d("100"),
	})

	assert.ErrorIs(t, err, payrollrunerrors.ErrRunLocked)
}

// --- exceptions ---

func TestResolveException_AppendsResolvedNote(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)
	detail := seedDetail(deps, run, "0")
	narrative := "Missing bank details"
	deps.repo.details[run.ID.String()][0].Exceptions = &narrative

	note := "bank details confirmed by HR"

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.ResolveException(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.ResolveExceptionRequest{Note: &note})

	require.NoError(t, err)
	require.NotNil(t, resp.Exceptions)
	assert.Equal(t, "Missing bank details -- RESOLVED: bank details confirmed by HR", *resp.Exceptions)
}

func TestResolveException_ClearsWithoutNote(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)
	detail := seedDetail(deps, run, "0")
	narrative := "Missing bank details"
	deps.repo.details[run.ID.String()][0].Exceptions = &narrative

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.ResolveException(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.ResolveExceptionRequest{})

	require.NoError(t, err)
	assert.Nil(t, resp.Exceptions)

	stored := deps.repo.runs[run.ID.String()]
	assert.Equal(t, 0, stored.Exceptions)
}

func TestResolveException_NoOpWithoutExceptions(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusUnderReview)
	detail := seedDetail(deps, run, "1000")

	deps.sqlMock.ExpectBegin()
	deps.sqlMock.ExpectCommit()

	resp, err := deps.service.ResolveException(context.Background(), run.ID.String(), detail.EmployeeID.String(), payrollrun.ResolveExceptionRequest{})

	require.NoError(t, err)
	assert.Nil(t, resp.Exceptions)
}

func TestGetExceptions_FiltersCleanRows(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusDraft)
	seedDetail(deps, run, "1000")
	flagged := seedDetail(deps, run, "0")
	narrative := "Zero base salary"
	deps.repo.details[run.ID.String()][1].Exceptions = &narrative

	resp, err := deps.service.GetExceptions(context.Background(), run.ID.String())

	require.NoError(t, err)
	require.Len(t, resp, 1)
	assert.Equal(t, flagged.EmployeeID.String(), resp[0].EmployeeID)
}

// --- lookups ---

func TestGetByRef_AcceptsRunNumber(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusDraft)

	resp, err := deps.service.GetByRef(context.Background(), "PR-2025-0001")

	require.NoError(t, err)
	assert.Equal(t, run.ID.String(), resp.ID)
}

func TestGetByRef_UnknownRun(t *testing.T) {
	deps := setupServiceTest(t)

	_, err := deps.service.GetByRef(context.Background(), uuid.NewString())

	assert.ErrorIs(t, err, payrollrunerrors.ErrRunNotFound)
}

func TestApprovalPanel_DerivesPendingStage(t *testing.T) {
	deps := setupServiceTest(t)
	run := seedRun(deps, payrollrun.StatusPendingFinanceApproval)

	resp, err := deps.service.ApprovalPanel(context.Background(), run.ID.String())

	require.NoError(t, err)
	assert.Equal(t, "FINANCE", resp.PendingStage)
	assert.Equal(t, run.RunNumber, resp.RunNumber)
}
