package payrollrun

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"go-payroll/internal/ancillary"
	"go-payroll/internal/employee"
	"go-payroll/internal/events"
	"go-payroll/internal/messaging/kafka"
	payrollrunerrors "go-payroll/internal/payrollrun/errors"
	"go-payroll/internal/shared/contextutil"
	"go-payroll/internal/shared/counter"
)

const (
	counterTypeRunNumber = "payroll_run_number"
	periodLayout         = "2006-01-02"
)

//go:generate mockgen -source=payroll_run_service.go -destination=mock/payroll_run_service_mock.go -package=mock
type Service interface {
	Initiate(ctx context.Context, req InitiateRunRequest) (RunResponse, error)
	GetAll(ctx context.Context) ([]RunResponse, error)
	GetByRef(ctx context.Context, ref string) (RunResponse, error)
	GetDetails(ctx context.Context, ref string) ([]DetailResponse, error)
	GetExceptions(ctx context.Context, ref string) ([]DetailResponse, error)
	EditPeriod(ctx context.Context, ref string, req EditPeriodRequest) (RunResponse, error)
	PublishForReview(ctx context.Context, ref string, actorID string) (RunResponse, error)
	ManagerApprove(ctx context.Context, ref string, actorID string) (RunResponse, error)
	ManagerReject(ctx context.Context, ref string, actorID string, req RejectRequest) (RunResponse, error)
	FinanceApprove(ctx context.Context, ref string, actorID string) (RunResponse, error)
	FinanceReject(ctx context.Context, ref string, actorID string, req RejectRequest) (RunResponse, error)
	Freeze(ctx context.Context, ref string, actorID string, req FreezeRequest) (RunResponse, error)
	Unfreeze(ctx context.Context, ref string, actorID string, req UnfreezeRequest) (RunResponse, error)
	ApprovalPanel(ctx context.Context, ref string) (ApprovalPanelResponse, error)
	GeneratePayslips(ctx context.Context, ref string) (GeneratePayslipsResponse, error)
	RecalculateEmployee(ctx context.Context, ref string, employeeID string, req RecalculateEmployeeRequest) (DetailResponse, error)
	Adjust(ctx context.Context, ref string, employeeID string, req AdjustmentRequest) (DetailResponse, error)
	ResolveException(ctx context.Context, ref string, employeeID string, req ResolveExceptionRequest) (DetailResponse, error)
}

type service struct {
	db           *sql.DB
	repo         Repository
	employeeRepo employee.Repository
	counter      counter.Repository
	gate         ancillary.Gate
	builder      *DraftBuilder
	outbox       kafka.OutboxRepository
	payslips     PayslipGenerator
	sf           *singleflight.Group
	logger       *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	employeeRepo employee.Repository,
	counterRepo counter.Repository,
	gate ancillary.Gate,
	builder *DraftBuilder,
	outboxRepo kafka.OutboxRepository,
	payslips PayslipGenerator,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("payrollrun.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("payrollrun.service")
	}
	return &service{
		db:           db,
		repo:         repo,
		employeeRepo: employeeRepo,
		counter:      counterRepo,
		gate:         gate,
		builder:      builder,
		outbox:       outboxRepo,
		payslips:     payslips,
		sf:           &singleflight.Group{},
		logger:       l,
	}
}

func (s *service) Initiate(ctx context.Context, req InitiateRunRequest) (RunResponse, error) {
	rid := contextutil.GetRequestID(ctx)
	s.logger.Debug("initiate payroll run requested",
		zap.String("request_id", rid),
		zap.String("payroll_period", req.PayrollPeriod),
		zap.String("entity", req.Entity),
	)

	period, err := time.Parse(periodLayout, req.PayrollPeriod)
	if err != nil {
		s.logger.Warn("initiate run invalid payroll_period",
			zap.String("payroll_period", req.PayrollPeriod),
			zap.Error(err),
		)
		return RunResponse{}, payrollrunerrors.ErrInvalidPeriodFormat
	}

	specialistID, err := uuid.Parse(req.SpecialistID)
	if err != nil {
		return RunResponse{}, payrollrunerrors.ErrEmployeeNotFound
	}

	if err := s.gate.Check(ctx); err != nil {
		s.logger.Warn("initiate run blocked by pending ancillaries",
			zap.String("request_id", rid),
			zap.Error(err),
		)
		return RunResponse{}, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.logger.Error("initiate run begin tx failed", zap.String("request_id", rid), zap.Error(err))
		return RunResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	// Pre-check for a friendly error; the partial unique index on
	// (payroll_period, entity) WHERE status <> 'REJECTED' is what actually
	// holds under concurrent initiation.
	exists, err := qtx.HasActiveRunForPeriod(ctx, period, req.Entity, nil)
	if err != nil {
		return RunResponse{}, err
	}
	if exists {
		return RunResponse{}, payrollrunerrors.ErrPeriodConflict
	}

	runNumber := req.RunNumber
	if runNumber == "" {
		nextVal, err := s.counter.GetNextValue(ctx, req.Entity, counterTypeRunNumber)
		if err != nil {
			s.logger.Error("initiate run generate number failed", zap.Error(err))
			return RunResponse{}, err
		}
		runNumber = fmt.Sprintf("PR-%d-%04d", period.Year(), nextVal)
	}

	run := &PayrollRun{
		ID:                  uuid.New(),
		RunNumber:           runNumber,
		PayrollPeriod:       period,
		Entity:              req.Entity,
		Status:              StatusDraft,
		TotalNetPay:         decimal.Zero,
		PaymentStatus:       PaymentStatusPending,
		PayrollSpecialistID: specialistID,
	}

	if err := qtx.Create(ctx, run); err != nil {
		s.logger.Error("initiate run persist failed", zap.Error(err))
		return RunResponse{}, mapRepositoryError(err)
	}

	details, buildErr := s.builder.Build(ctx, run)
	if buildErr != nil {
		// Draft generation failure parks the run in REJECTED with the reason
		// recorded for the specialist; the error is re-raised after commit.
		reason := buildErr.Error()
		run.Status = StatusRejected
		run.RejectionReason = &reason
		if err := qtx.Update(ctx, run); err != nil {
			return RunResponse{}, mapRepositoryError(err)
		}
	} else {
		for i := range details {
			if err := qtx.UpsertDetail(ctx, &details[i]); err != nil {
				s.logger.Error("initiate run detail persist failed",
					zap.String("employee_id", details[i].EmployeeID.String()),
					zap.Error(err),
				)
				return RunResponse{}, mapRepositoryError(err)
			}
		}
		if err := s.refreshAggregates(ctx, qtx, run); err != nil {
			return RunResponse{}, err
		}
	}

	if err := s.queueStatusEvent(ctx, tx, run, events.EventTypeRunInitiated, "", run.Status, req.SpecialistID, derefOrEmpty(run.RejectionReason)); err != nil {
		return RunResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		s.logger.Error("initiate run commit failed", zap.String("request_id", rid), zap.Error(err))
		return RunResponse{}, err
	}

	if buildErr != nil {
		s.logger.Warn("payroll run rejected on draft generation failure",
			zap.String("request_id", rid),
			zap.String("run_id", run.ID.String()),
			zap.String("run_number", run.RunNumber),
			zap.String("reason", derefOrEmpty(run.RejectionReason)),
		)
		return RunResponse{}, payrollrunerrors.DraftBuildFailed(buildErr)
	}

	s.logger.Info("payroll run initiated",
		zap.String("request_id", rid),
		zap.String("run_id", run.ID.String()),
		zap.String("run_number", run.RunNumber),
		zap.String("status", run.Status),
		zap.Int("employees", run.Employees),
		zap.Int("exceptions", run.Exceptions),
	)
	return mapRunToResponse(*run), nil
}

func (s *service) GetAll(ctx context.Context) ([]RunResponse, error) {
	runs, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	resp := make([]RunResponse, len(runs))
	for i, run := range runs {
		resp[i] = mapRunToResponse(run)
	}
	return resp, nil
}

func (s *service) GetByRef(ctx context.Context, ref string) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}
	return mapRunToResponse(*run), nil
}

func (s *service) GetDetails(ctx context.Context, ref string) ([]DetailResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.FindDetails(ctx, run.ID.String())
	if err != nil {
		return nil, err
	}

	resp := make([]DetailResponse, len(details))
	for i, d := range details {
		resp[i] = mapDetailToResponse(d)
	}
	return resp, nil
}

func (s *service) GetExceptions(ctx context.Context, ref string) ([]DetailResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return nil, err
	}

	details, err := s.repo.FindDetails(ctx, run.ID.String())
	if err != nil {
		return nil, err
	}

	resp := make([]DetailResponse, 0)
	for _, d := range details {
		if d.HasExceptions() {
			resp = append(resp, mapDetailToResponse(d))
		}
	}
	return resp, nil
}

func (s *service) EditPeriod(ctx context.Context, ref string, req EditPeriodRequest) (RunResponse, error) {
	period, err := time.Parse(periodLayout, req.PayrollPeriod)
	if err != nil {
		return RunResponse{}, payrollrunerrors.ErrInvalidPeriodFormat
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return RunResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	run, err := s.resolveRunWith(ctx, qtx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if !editableStatuses[run.Status] {
		return RunResponse{}, payrollrunerrors.ErrPeriodNotEditable
	}

	runID := run.ID.String()
	exists, err := qtx.HasActiveRunForPeriod(ctx, period, run.Entity, &runID)
	if err != nil {
		return RunResponse{}, err
	}
	if exists {
		return RunResponse{}, payrollrunerrors.ErrPeriodConflict
	}

	run.PayrollPeriod = period
	// Fixing the period on a rejected run reopens it as a draft.
	if run.Status == StatusRejected {
		run.Status = StatusDraft
		run.RejectionReason = nil
	}

	if err := qtx.Update(ctx, run); err != nil {
		return RunResponse{}, mapRepositoryError(err)
	}

	if err := tx.Commit(); err != nil {
		return RunResponse{}, err
	}

	s.logger.Info("payroll period updated",
		zap.String("run_id", runID),
		zap.String("payroll_period", req.PayrollPeriod),
	)
	return mapRunToResponse(*run), nil
}

func (s *service) PublishForReview(ctx context.Context, ref string, actorID string) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if run.Status == StatusApproved || run.Status == StatusLocked {
		return RunResponse{}, payrollrunerrors.ErrPublishAfterApproval
	}

	updates := map[string]any{
		"status":     StatusUnderReview,
		"updated_at": time.Now().UTC(),
	}
	if err := s.transition(ctx, run, updates, events.EventTypeRunPublished, StatusUnderReview, actorID, ""); err != nil {
		return RunResponse{}, err
	}

	run.Status = StatusUnderReview
	return mapRunToResponse(*run), nil
}

func (s *service) ManagerApprove(ctx context.Context, ref string, actorID string) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if run.Status == StatusRejected {
		return RunResponse{}, payrollrunerrors.ErrApproveRejectedRun
	}
	if run.Status == StatusLocked {
		return RunResponse{}, payrollrunerrors.ErrRunLocked
	}

	// Ancillary approvals may have been filed since initiation; the gate is
	// re-checked so nothing pending slips past the manager stage.
	if err := s.gate.Check(ctx); err != nil {
		return RunResponse{}, err
	}

	managerID, err := uuid.Parse(actorID)
	if err != nil {
		return RunResponse{}, payrollrunerrors.ErrEmployeeNotFound
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":                StatusPendingFinanceApproval,
		"payroll_manager_id":    managerID,
		"manager_approval_date": now,
		"updated_at":            now,
	}
	if err := s.transition(ctx, run, updates, events.EventTypeRunManagerApproved, StatusPendingFinanceApproval, actorID, ""); err != nil {
		return RunResponse{}, err
	}

	run.Status = StatusPendingFinanceApproval
	run.PayrollManagerID = &managerID
	run.ManagerApprovalDate = &now
	return mapRunToResponse(*run), nil
}

func (s *service) ManagerReject(ctx context.Context, ref string, actorID string, req RejectRequest) (RunResponse, error) {
	return s.reject(ctx, ref, actorID, req, "payroll_manager_id")
}

func (s *service) FinanceApprove(ctx context.Context, ref string, actorID string) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if run.Status == StatusRejected {
		return RunResponse{}, payrollrunerrors.ErrApproveRejectedRun
	}
	if run.Status == StatusLocked {
		return RunResponse{}, payrollrunerrors.ErrRunLocked
	}
	if run.ManagerApprovalDate == nil {
		return RunResponse{}, payrollrunerrors.ErrManagerApprovalRequired
	}

	financeID, err := uuid.Parse(actorID)
	if err != nil {
		return RunResponse{}, payrollrunerrors.ErrEmployeeNotFound
	}

	now := time.Now().UTC()
	updates := map[string]any{
		"status":                StatusApproved,
		"finance_staff_id":      financeID,
		"finance_approval_date": now,
		"updated_at":            now,
	}
	if err := s.transition(ctx, run, updates, events.EventTypeRunFinanceApproved, StatusApproved, actorID, ""); err != nil {
		return RunResponse{}, err
	}

	run.Status = StatusApproved
	run.FinanceStaffID = &financeID
	run.FinanceApprovalDate = &now
	return mapRunToResponse(*run), nil
}

func (s *service) FinanceReject(ctx context.Context, ref string, actorID string, req RejectRequest) (RunResponse, error) {
	return s.reject(ctx, ref, actorID, req, "finance_staff_id")
}

func (s *service) reject(ctx context.Context, ref string, actorID string, req RejectRequest, actorColumn string) (RunResponse, error) {
	if req.Reason == "" {
		return RunResponse{}, payrollrunerrors.ErrRejectionReasonRequired
	}

	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if run.Status == StatusLocked {
		return RunResponse{}, payrollrunerrors.ErrRunLocked
	}

	rejectorID, err := uuid.Parse(actorID)
	if err != nil {
		return RunResponse{}, payrollrunerrors.ErrEmployeeNotFound
	}

	updates := map[string]any{
		"status":           StatusRejected,
		"rejection_reason": req.Reason,
		actorColumn:        rejectorID,
		"updated_at":       time.Now().UTC(),
	}
	// Rejection voids the rejecting stage's approval stamp.
	if actorColumn == "payroll_manager_id" {
		updates["manager_approval_date"] = nil
	} else {
		updates["finance_approval_date"] = nil
	}
	if err := s.transition(ctx, run, updates, events.EventTypeRunRejected, StatusRejected, actorID, req.Reason); err != nil {
		return RunResponse{}, err
	}

	run.Status = StatusRejected
	run.RejectionReason = &req.Reason
	if actorColumn == "payroll_manager_id" {
		run.PayrollManagerID = &rejectorID
		run.ManagerApprovalDate = nil
	} else {
		run.FinanceStaffID = &rejectorID
		run.FinanceApprovalDate = nil
	}
	return mapRunToResponse(*run), nil
}

func (s *service) Freeze(ctx context.Context, ref string, actorID string, req FreezeRequest) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	switch run.Status {
	case StatusLocked:
		// Already frozen: fall through to generation, which is idempotent.
	case StatusApproved:
		// An empty run can never produce payslips; refusing before the
		// transition keeps LOCKED synonymous with "payslips exist".
		if run.Employees == 0 {
			return RunResponse{}, payrollrunerrors.ErrNoPayslipsGenerated
		}
		updates := map[string]any{
			"status":     StatusLocked,
			"updated_at": time.Now().UTC(),
		}
		if err := s.transition(ctx, run, updates, events.EventTypeRunLocked, StatusLocked, actorID, derefOrEmpty(req.Reason)); err != nil {
			return RunResponse{}, err
		}
		run.Status = StatusLocked
	default:
		return RunResponse{}, payrollrunerrors.ErrFreezeRequiresApproved
	}

	// Generation runs after the LOCKED commit: the generator only accepts a
	// LOCKED run. If it fails here the caller gets the error back and retries
	// Freeze, which re-enters through the LOCKED fall-through onto the
	// idempotent generation path.
	if s.payslips != nil {
		result, err := s.payslips.GenerateForRun(ctx, run.ID.String())
		if err != nil {
			s.logger.Error("payslip generation after freeze failed",
				zap.String("run_id", run.ID.String()),
				zap.Error(err),
			)
			return RunResponse{}, err
		}
		s.logger.Info("payroll run frozen",
			zap.String("run_id", run.ID.String()),
			zap.Int("payslips", result.Count),
			zap.Bool("skipped", result.Skipped),
		)
	}

	return mapRunToResponse(*run), nil
}

func (s *service) Unfreeze(ctx context.Context, ref string, actorID string, req UnfreezeRequest) (RunResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return RunResponse{}, err
	}

	if run.Status != StatusLocked {
		return RunResponse{}, payrollrunerrors.ErrUnfreezeRequiresLocked
	}

	updates := map[string]any{
		"status":     StatusUnlocked,
		"updated_at": time.Now().UTC(),
	}
	if req.Reason != nil {
		updates["unlock_reason"] = *req.Reason
	}
	if err := s.transition(ctx, run, updates, events.EventTypeRunUnlocked, StatusUnlocked, actorID, derefOrEmpty(req.Reason)); err != nil {
		return RunResponse{}, err
	}

	run.Status = StatusUnlocked
	run.UnlockReason = req.Reason
	return mapRunToResponse(*run), nil
}

func (s *service) ApprovalPanel(ctx context.Context, ref string) (ApprovalPanelResponse, error) {
	// Approval dashboards poll this endpoint; concurrent reads for one run
	// are collapsed into a single lookup.
	v, err, _ := s.sf.Do("approval-panel:"+ref, func() (any, error) {
		run, err := s.resolveRun(ctx, ref)
		if err != nil {
			return nil, err
		}
		return mapRunToApprovalPanel(*run), nil
	})
	if err != nil {
		return ApprovalPanelResponse{}, err
	}
	return v.(ApprovalPanelResponse), nil
}

func (s *service) GeneratePayslips(ctx context.Context, ref string) (GeneratePayslipsResponse, error) {
	run, err := s.resolveRun(ctx, ref)
	if err != nil {
		return GeneratePayslipsResponse{}, err
	}

	if run.Status != StatusLocked {
		return GeneratePayslipsResponse{}, payrollrunerrors.ErrPayslipsRequireLocked
	}

	result, err := s.payslips.GenerateForRun(ctx, run.ID.String())
	if err != nil {
		return GeneratePayslipsResponse{}, err
	}

	return GeneratePayslipsResponse{
		RunID:   run.ID.String(),
		Count:   result.Count,
		Skipped: result.Skipped,
	}, nil
}

func (s *service) RecalculateEmployee(
	ctx context.Context,
	ref string,
	employeeID string,
	req RecalculateEmployeeRequest,
) (DetailResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DetailResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	run, err := s.resolveRunWith(ctx, qtx, ref)
	if err != nil {
		return DetailResponse{}, err
	}
	if run.Status == StatusLocked {
		return DetailResponse{}, payrollrunerrors.ErrRunLocked
	}

	emp, err := s.employeeRepo.FindByID(ctx, employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DetailResponse{}, payrollrunerrors.ErrEmployeeNotFound
		}
		return DetailResponse{}, err
	}

	detail, err := s.builder.Rebuild(ctx, run, *emp, req)
	if err != nil {
		s.logger.Error("recalculate employee failed",
			zap.String("run_id", run.ID.String()),
			zap.String("employee_id", employeeID),
			zap.Error(err),
		)
		return DetailResponse{}, err
	}

	if err := qtx.UpsertDetail(ctx, &detail); err != nil {
		return DetailResponse{}, mapRepositoryError(err)
	}
	if err := s.refreshAggregates(ctx, qtx, run); err != nil {
		return DetailResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return DetailResponse{}, err
	}

	s.logger.Info("employee recalculated",
		zap.String("run_id", run.ID.String()),
		zap.String("employee_id", employeeID),
	)
	return mapDetailToResponse(detail), nil
}

func (s *service) Adjust(
	ctx context.Context,
	ref string,
	employeeID string,
	req AdjustmentRequest,
) (DetailResponse, error) {
	if !req.Amount.IsPositive() {
		return DetailResponse{}, payrollrunerrors.ErrAmountRequired
	}
	amount := req.Amount.Round(2)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DetailResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	run, err := s.resolveRunWith(ctx, qtx, ref)
	if err != nil {
		return DetailResponse{}, err
	}
	if run.Status == StatusLocked {
		return DetailResponse{}, payrollrunerrors.ErrRunLocked
	}

	detail, err := qtx.FindDetail(ctx, run.ID.String(), employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DetailResponse{}, payrollrunerrors.ErrDetailNotFound
		}
		return DetailResponse{}, err
	}

	// Adjustments move NetPay directly; NetSalary stays the calculated
	// reference value so the delta remains visible.
	switch req.Type {
	case AdjustmentTypeBonus:
		detail.Bonus = detail.Bonus.Add(amount).Round(2)
		detail.NetPay = detail.NetPay.Add(amount).Round(2)
	case AdjustmentTypeDeduction:
		detail.Deductions = detail.Deductions.Add(amount).Round(2)
		detail.NetPay = detail.NetPay.Sub(amount).Round(2)
	case AdjustmentTypeBenefit:
		detail.Benefit = detail.Benefit.Add(amount).Round(2)
		detail.NetPay = detail.NetPay.Add(amount).Round(2)
	default:
		return DetailResponse{}, payrollrunerrors.ErrInvalidAdjustmentType
	}

	// Adjustment reasons become part of the row's exception narrative so the
	// delta stays explainable after the fact.
	if req.Reason != nil && *req.Reason != "" {
		detail.Exceptions = appendNarrative(detail.Exceptions, *req.Reason)
	}

	if err := qtx.UpdateDetail(ctx, detail); err != nil {
		return DetailResponse{}, mapRepositoryError(err)
	}
	if err := s.refreshAggregates(ctx, qtx, run); err != nil {
		return DetailResponse{}, err
	}

	if err := tx.Commit(); err != nil {
		return DetailResponse{}, err
	}

	s.logger.Info("payroll detail adjusted",
		zap.String("run_id", run.ID.String()),
		zap.String("employee_id", employeeID),
		zap.String("type", req.Type),
		zap.String("amount", amount.StringFixed(2)),
		zap.Stringp("reason", req.Reason),
	)
	return mapDetailToResponse(*detail), nil
}

func (s *service) ResolveException(
	ctx context.Context,
	ref string,
	employeeID string,
	req ResolveExceptionRequest,
) (DetailResponse, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DetailResponse{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	// Resolution stays available on a locked run; the narrative is the one
	// field that outlives the freeze.
	run, err := s.resolveRunWith(ctx, qtx, ref)
	if err != nil {
		return DetailResponse{}, err
	}

	detail, err := qtx.FindDetail(ctx, run.ID.String(), employeeID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return DetailResponse{}, payrollrunerrors.ErrDetailNotFound
		}
		return DetailResponse{}, err
	}

	if detail.HasExceptions() {
		s.logger.Info("payroll exception resolved",
			zap.String("run_id", run.ID.String()),
			zap.String("employee_id", employeeID),
			zap.String("exceptions", *detail.Exceptions),
			zap.Stringp("note", req.Note),
		)
		if req.Note != nil && *req.Note != "" {
			resolved := *detail.Exceptions + " -- RESOLVED: " + *req.Note
			detail.Exceptions = &resolved
		} else {
			detail.Exceptions = nil
		}

		if err := qtx.UpdateDetail(ctx, detail); err != nil {
			return DetailResponse{}, mapRepositoryError(err)
		}
		if err := s.refreshAggregates(ctx, qtx, run); err != nil {
			return DetailResponse{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return DetailResponse{}, err
	}

	return mapDetailToResponse(*detail), nil
}

// transition performs a check-and-set status update from the run's observed
// status and queues the matching outbox event in one transaction.
func (s *service) transition(
	ctx context.Context,
	run *PayrollRun,
	updates map[string]any,
	eventType string,
	toStatus string,
	actorID string,
	reason string,
) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)

	ok, err := qtx.TransitionStatus(ctx, run.ID.String(), []string{run.Status}, updates)
	if err != nil {
		return mapRepositoryError(err)
	}
	if !ok {
		s.logger.Warn("payroll run status moved concurrently",
			zap.String("run_id", run.ID.String()),
			zap.String("expected_status", run.Status),
			zap.String("target_status", toStatus),
		)
		return payrollrunerrors.ErrConcurrentTransition
	}

	fromStatus := run.Status
	snapshot := *run
	snapshot.Status = toStatus
	if err := s.queueStatusEvent(ctx, tx, &snapshot, eventType, fromStatus, toStatus, actorID, reason); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("payroll run status changed",
		zap.String("run_id", run.ID.String()),
		zap.String("from", fromStatus),
		zap.String("to", toStatus),
		zap.String("actor_id", actorID),
	)
	return nil
}

func (s *service) queueStatusEvent(
	ctx context.Context,
	tx *sql.Tx,
	run *PayrollRun,
	eventType string,
	fromStatus string,
	toStatus string,
	actorID string,
	reason string,
) error {
	if s.outbox == nil {
		return nil
	}

	rid := contextutil.GetRequestID(ctx)
	event := events.PayrollRunStatusChangedEvent{
		EventType:     eventType,
		RunID:         run.ID.String(),
		RunNumber:     run.RunNumber,
		PayrollPeriod: run.PayrollPeriod.Format(periodLayout),
		Entity:        run.Entity,
		FromStatus:    fromStatus,
		ToStatus:      toStatus,
		ActorID:       actorID,
		Reason:        reason,
		OccurredAt:    time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal run event failed", zap.String("request_id", rid), zap.Error(err))
		return err
	}

	outboxRepo := s.outbox.WithTx(tx)
	if err := outboxRepo.Create(ctx, kafka.OutboxEvent{
		ID:            uuid.NewString(),
		RequestID:     rid,
		AggregateType: "payroll_run",
		AggregateID:   run.ID.String(),
		EventType:     eventType,
		Topic:         events.PayrollRunStatusChangedTopic,
		Payload:       payload,
		Status:        kafka.OutboxStatusPending,
	}); err != nil {
		s.logger.Error("run outbox persist failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// refreshAggregates recomputes the run roll-up from its detail set.
func (s *service) refreshAggregates(ctx context.Context, repo Repository, run *PayrollRun) error {
	agg, err := repo.AggregateDetails(ctx, run.ID.String())
	if err != nil {
		return err
	}

	run.Employees = agg.Employees
	run.Exceptions = agg.Exceptions
	run.TotalNetPay = agg.TotalNetPay

	return repo.Update(ctx, run)
}

func (s *service) resolveRun(ctx context.Context, ref string) (*PayrollRun, error) {
	return s.resolveRunWith(ctx, s.repo, ref)
}

// resolveRunWith accepts either the internal uuid or the human-readable run
// number as the run reference.
func (s *service) resolveRunWith(ctx context.Context, repo Repository, ref string) (*PayrollRun, error) {
	var (
		run *PayrollRun
		err error
	)
	if _, parseErr := uuid.Parse(ref); parseErr == nil {
		run, err = repo.FindByID(ctx, ref)
	} else {
		run, err = repo.FindByRunNumber(ctx, ref)
	}
	if err != nil {
		return nil, mapRepositoryError(err)
	}
	return run, nil
}

func mapRunToResponse(run PayrollRun) RunResponse {
	resp := RunResponse{
		ID:                  run.ID.String(),
		RunNumber:           run.RunNumber,
		PayrollPeriod:       run.PayrollPeriod.Format(periodLayout),
		Entity:              run.Entity,
		Status:              run.Status,
		Employees:           run.Employees,
		Exceptions:          run.Exceptions,
		TotalNetPay:         run.TotalNetPay.StringFixed(2),
		PaymentStatus:       run.PaymentStatus,
		PayrollSpecialistID: run.PayrollSpecialistID.String(),
		RejectionReason:     run.RejectionReason,
		UnlockReason:        run.UnlockReason,
	}

	if run.PayrollManagerID != nil {
		v := run.PayrollManagerID.String()
		resp.PayrollManagerID = &v
	}
	if run.FinanceStaffID != nil {
		v := run.FinanceStaffID.String()
		resp.FinanceStaffID = &v
	}
	if run.ManagerApprovalDate != nil {
		v := run.ManagerApprovalDate.Format(time.RFC3339)
		resp.ManagerApprovalDate = &v
	}
	if run.FinanceApprovalDate != nil {
		v := run.FinanceApprovalDate.Format(time.RFC3339)
		resp.FinanceApprovalDate = &v
	}

	return resp
}

func mapRunToApprovalPanel(run PayrollRun) ApprovalPanelResponse {
	resp := ApprovalPanelResponse{
		RunID:           run.ID.String(),
		RunNumber:       run.RunNumber,
		Status:          run.Status,
		PendingStage:    pendingStage(run),
		Employees:       run.Employees,
		Exceptions:      run.Exceptions,
		TotalNetPay:     run.TotalNetPay.StringFixed(2),
		RejectionReason: run.RejectionReason,
	}

	if run.PayrollManagerID != nil {
		v := run.PayrollManagerID.String()
		resp.PayrollManagerID = &v
	}
	if run.FinanceStaffID != nil {
		v := run.FinanceStaffID.String()
		resp.FinanceStaffID = &v
	}
	if run.ManagerApprovalDate != nil {
		v := run.ManagerApprovalDate.Format(time.RFC3339)
		resp.ManagerApprovalDate = &v
	}
	if run.FinanceApprovalDate != nil {
		v := run.FinanceApprovalDate.Format(time.RFC3339)
		resp.FinanceApprovalDate = &v
	}

	return resp
}

func pendingStage(run PayrollRun) string {
	switch run.Status {
	case StatusUnderReview, StatusPendingManagerApproval:
		return "MANAGER"
	case StatusPendingFinanceApproval:
		return "FINANCE"
	default:
		return "NONE"
	}
}

func mapDetailToResponse(d EmployeePayrollDetail) DetailResponse {
	return DetailResponse{
		ID:         d.ID.String(),
		RunID:      d.RunID.String(),
		EmployeeID: d.EmployeeID.String(),
		BaseSalary: d.BaseSalary.StringFixed(2),
		Allowances: d.Allowances.StringFixed(2),
		Deductions: d.Deductions.StringFixed(2),
		Bonus:      d.Bonus.StringFixed(2),
		Benefit:    d.Benefit.StringFixed(2),
		NetSalary:  d.NetSalary.StringFixed(2),
		NetPay:     d.NetPay.StringFixed(2),
		BankStatus: d.BankStatus,
		Exceptions: d.Exceptions,
	}
}

func appendNarrative(existing *string, entry string) *string {
	if existing == nil || *existing == "" {
		return &entry
	}
	joined := *existing + exceptionSeparator + entry
	return &joined
}

func derefOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
