package payslip

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
	"gorm.io/gorm"

	"go-payroll/internal/calculation"
	"go-payroll/internal/employee"
	"go-payroll/internal/events"
	"go-payroll/internal/messaging/kafka"
	"go-payroll/internal/payrollrun"
	payrollrunerrors "go-payroll/internal/payrollrun/errors"
	paysliperrors "go-payroll/internal/payslip/errors"
	"go-payroll/internal/shared/contextutil"
	"go-payroll/internal/shared/counter"
)

const (
	counterTypePayslipNumber = "payslip_number"
	periodLayout             = "2006-01-02"
)

//go:generate mockgen -source=payslip_service.go -destination=mock/payslip_service_mock.go -package=mock
type Service interface {
	// GenerateForRun satisfies the generator seam used by the run workflow.
	GenerateForRun(ctx context.Context, runID string) (payrollrun.GenerationResult, error)
	GetByID(ctx context.Context, id string) (PayslipResponse, error)
	GetByRun(ctx context.Context, runID string) ([]PayslipResponse, error)
	DownloadPDF(ctx context.Context, id string) ([]byte, string, error)
	MarkPaid(ctx context.Context, id string) (PayslipResponse, error)
	Distribute(ctx context.Context, id string) (PayslipResponse, error)
}

type service struct {
	db           *sql.DB
	repo         Repository
	runRepo      payrollrun.Repository
	employeeRepo employee.Repository
	counter      counter.Repository
	outbox       kafka.OutboxRepository
	logger       *zap.Logger
}

func NewService(
	db *sql.DB,
	repo Repository,
	runRepo payrollrun.Repository,
	employeeRepo employee.Repository,
	counterRepo counter.Repository,
	outboxRepo kafka.OutboxRepository,
	logger ...*zap.Logger,
) Service {
	l := zap.L().Named("payslip.service")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0].Named("payslip.service")
	}
	return &service{
		db:           db,
		repo:         repo,
		runRepo:      runRepo,
		employeeRepo: employeeRepo,
		counter:      counterRepo,
		outbox:       outboxRepo,
		logger:       l,
	}
}

func (s *service) GenerateForRun(ctx context.Context, runID string) (payrollrun.GenerationResult, error) {
	rid := contextutil.GetRequestID(ctx)

	run, err := s.runRepo.FindByID(ctx, runID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return payrollrun.GenerationResult{}, paysliperrors.ErrPayslipNotFound
		}
		return payrollrun.GenerationResult{}, err
	}
	if run.Status != payrollrun.StatusLocked {
		return payrollrun.GenerationResult{}, paysliperrors.ErrRunNotLocked
	}

	details, err := s.runRepo.FindDetails(ctx, runID)
	if err != nil {
		return payrollrun.GenerationResult{}, err
	}
	if len(details) == 0 {
		return payrollrun.GenerationResult{}, payrollrunerrors.ErrNoPayslipsGenerated
	}

	existing, err := s.repo.FindByRun(ctx, runID)
	if err != nil {
		return payrollrun.GenerationResult{}, err
	}
	covered := make(map[uuid.UUID]bool, len(existing))
	for _, slip := range existing {
		covered[slip.EmployeeID] = true
	}

	var pending []payrollrun.EmployeePayrollDetail
	for _, d := range details {
		if !covered[d.EmployeeID] {
			pending = append(pending, d)
		}
	}

	if len(pending) == 0 {
		s.logger.Info("payslip generation skipped, run already covered",
			zap.String("request_id", rid),
			zap.String("run_id", runID),
			zap.Int("existing", len(existing)),
		)
		return payrollrun.GenerationResult{Count: len(existing), Skipped: true}, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return payrollrun.GenerationResult{}, err
	}
	defer tx.Rollback()

	qtx := s.repo.WithTx(tx)
	for i := range pending {
		slip, err := s.buildSlip(ctx, run, pending[i])
		if err != nil {
			return payrollrun.GenerationResult{}, err
		}
		if err := qtx.Create(ctx, slip); err != nil {
			s.logger.Error("payslip persist failed",
				zap.String("run_id", runID),
				zap.String("employee_id", pending[i].EmployeeID.String()),
				zap.Error(err),
			)
			return payrollrun.GenerationResult{}, err
		}
	}

	if s.outbox != nil {
		event := events.PayslipsGeneratedEvent{
			EventType:  "payslips_generated",
			RunID:      run.ID.String(),
			RunNumber:  run.RunNumber,
			Count:      len(pending),
			OccurredAt: time.Now().UTC(),
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return payrollrun.GenerationResult{}, err
		}
		if err := s.outbox.WithTx(tx).Create(ctx, kafka.OutboxEvent{
			ID:            uuid.NewString(),
			RequestID:     rid,
			AggregateType: "payroll_run",
			AggregateID:   run.ID.String(),
			EventType:     event.EventType,
			Topic:         events.PayslipsGeneratedTopic,
			Payload:       payload,
			Status:        kafka.OutboxStatusPending,
		}); err != nil {
			return payrollrun.GenerationResult{}, err
		}
	}

	// Generation closes the draft cycle, so the run roll-up is refreshed from
	// the frozen detail set one last time.
	agg, err := s.runRepo.WithTx(tx).AggregateDetails(ctx, runID)
	if err != nil {
		return payrollrun.GenerationResult{}, err
	}
	run.Employees = agg.Employees
	run.Exceptions = agg.Exceptions
	run.TotalNetPay = agg.TotalNetPay
	if err := s.runRepo.WithTx(tx).Update(ctx, run); err != nil {
		return payrollrun.GenerationResult{}, err
	}

	if err := tx.Commit(); err != nil {
		return payrollrun.GenerationResult{}, err
	}

	s.logger.Info("payslips generated",
		zap.String("request_id", rid),
		zap.String("run_id", runID),
		zap.Int("count", len(pending)),
	)
	return payrollrun.GenerationResult{Count: len(pending)}, nil
}

// buildSlip synthesizes the itemized sections from a detail snapshot. The
// tax and insurance lines are re-derived from the same math the draft used,
// so slip totals always reconcile with the stored detail.
func (s *service) buildSlip(
	ctx context.Context,
	run *payrollrun.PayrollRun,
	detail payrollrun.EmployeePayrollDetail,
) (*Payslip, error) {
	gross := detail.BaseSalary.
		Add(detail.Allowances).
		Add(detail.Bonus).
		Add(detail.Benefit).
		Round(2)

	tax := calculation.Tax(gross)
	insurance := calculation.Insurance(detail.BaseSalary)

	other := detail.Deductions.Sub(tax).Sub(insurance).Round(2)
	if other.IsNegative() {
		other = decimal.Zero
	}

	earnings := EarningsDetails{
		BaseSalary: detail.BaseSalary,
		Allowances: []LineItem{},
		Bonuses:    []LineItem{},
		Benefits:   []LineItem{},
		Refunds:    []LineItem{},
	}
	if detail.Allowances.IsPositive() {
		earnings.Allowances = append(earnings.Allowances, LineItem{Label: "Allowances", Amount: detail.Allowances})
	}
	if detail.Bonus.IsPositive() {
		earnings.Bonuses = append(earnings.Bonuses, LineItem{Label: "Bonuses", Amount: detail.Bonus})
	}
	if detail.Benefit.IsPositive() {
		earnings.Benefits = append(earnings.Benefits, LineItem{Label: "Benefits", Amount: detail.Benefit})
	}

	deductions := DeductionsDetails{
		Taxes:      []LineItem{{Label: "Income tax", Amount: tax}},
		Insurances: []LineItem{{Label: "Social insurance", Amount: insurance}},
		Penalties:  []LineItem{},
	}
	if other.IsPositive() {
		deductions.Penalties = append(deductions.Penalties, LineItem{Label: "Penalties and other deductions", Amount: other})
	}

	nextVal, err := s.counter.GetNextValue(ctx, run.Entity, counterTypePayslipNumber)
	if err != nil {
		return nil, fmt.Errorf("generate payslip number: %w", err)
	}

	return &Payslip{
		ID:              uuid.New(),
		PayslipNumber:   fmt.Sprintf("PS-%d-%06d", run.PayrollPeriod.Year(), nextVal),
		RunID:           run.ID,
		EmployeeID:      detail.EmployeeID,
		PayrollPeriod:   run.PayrollPeriod,
		Entity:          run.Entity,
		Earnings:        earnings,
		Deductions:      deductions,
		TotalGross:      gross,
		TotalDeductions: detail.Deductions,
		NetPay:          detail.NetPay,
		Status:          StatusPending,
	}, nil
}

func (s *service) GetByID(ctx context.Context, id string) (PayslipResponse, error) {
	slip, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PayslipResponse{}, mapNotFound(err)
	}
	return mapToResponse(*slip), nil
}

func (s *service) GetByRun(ctx context.Context, runID string) ([]PayslipResponse, error) {
	slips, err := s.repo.FindByRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	resp := make([]PayslipResponse, len(slips))
	for i, slip := range slips {
		resp[i] = mapToResponse(slip)
	}
	return resp, nil
}

func (s *service) DownloadPDF(ctx context.Context, id string) ([]byte, string, error) {
	slip, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, "", mapNotFound(err)
	}

	employeeName := slip.EmployeeID.String()
	if emp, err := s.employeeRepo.FindByID(ctx, slip.EmployeeID.String()); err == nil {
		employeeName = emp.FullName
	}

	pdf, err := buildPayslipPDF(*slip, employeeName)
	if err != nil {
		s.logger.Error("payslip pdf render failed", zap.String("payslip_id", id), zap.Error(err))
		return nil, "", err
	}

	filename := fmt.Sprintf("%s.pdf", slip.PayslipNumber)
	return pdf, filename, nil
}

func (s *service) MarkPaid(ctx context.Context, id string) (PayslipResponse, error) {
	slip, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PayslipResponse{}, mapNotFound(err)
	}
	if slip.Status == StatusPaid {
		return PayslipResponse{}, paysliperrors.ErrAlreadyPaid
	}

	now := time.Now().UTC()
	slip.Status = StatusPaid
	slip.PaidAt = &now
	if err := s.repo.Update(ctx, slip); err != nil {
		return PayslipResponse{}, err
	}

	// Once the last slip is paid, the run's payment status follows.
	unpaid, err := s.repo.CountUnpaidByRun(ctx, slip.RunID.String())
	if err != nil {
		return PayslipResponse{}, err
	}
	if unpaid == 0 {
		run, err := s.runRepo.FindByID(ctx, slip.RunID.String())
		if err != nil {
			return PayslipResponse{}, err
		}
		run.PaymentStatus = payrollrun.PaymentStatusPaid
		if err := s.runRepo.Update(ctx, run); err != nil {
			return PayslipResponse{}, err
		}
		s.logger.Info("payroll run fully paid", zap.String("run_id", slip.RunID.String()))
	}

	return mapToResponse(*slip), nil
}

func (s *service) Distribute(ctx context.Context, id string) (PayslipResponse, error) {
	slip, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return PayslipResponse{}, mapNotFound(err)
	}
	if slip.Status != StatusPending {
		return PayslipResponse{}, paysliperrors.ErrNotDistributable
	}

	now := time.Now().UTC()
	slip.Status = StatusDistributed
	slip.DistributedAt = &now
	if err := s.repo.Update(ctx, slip); err != nil {
		return PayslipResponse{}, err
	}

	s.logger.Info("payslip distributed",
		zap.String("payslip_id", slip.ID.String()),
		zap.String("employee_id", slip.EmployeeID.String()),
	)
	return mapToResponse(*slip), nil
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return paysliperrors.ErrPayslipNotFound
	}
	return err
}

func mapToResponse(slip Payslip) PayslipResponse {
	resp := PayslipResponse{
		ID:              slip.ID.String(),
		PayslipNumber:   slip.PayslipNumber,
		RunID:           slip.RunID.String(),
		EmployeeID:      slip.EmployeeID.String(),
		PayrollPeriod:   slip.PayrollPeriod.Format(periodLayout),
		Entity:          slip.Entity,
		TotalGross:      slip.TotalGross.StringFixed(2),
		TotalDeductions: slip.TotalDeductions.StringFixed(2),
		NetPay:          slip.NetPay.StringFixed(2),
		Status:          slip.Status,
		Earnings: EarningsResponse{
			BaseSalary: slip.Earnings.BaseSalary.StringFixed(2),
			Allowances: mapLineItems(slip.Earnings.Allowances),
			Bonuses:    mapLineItems(slip.Earnings.Bonuses),
			Benefits:   mapLineItems(slip.Earnings.Benefits),
			Refunds:    mapLineItems(slip.Earnings.Refunds),
		},
		Deductions: DeductionsResponse{
			Taxes:      mapLineItems(slip.Deductions.Taxes),
			Insurances: mapLineItems(slip.Deductions.Insurances),
			Penalties:  mapLineItems(slip.Deductions.Penalties),
		},
	}

	if slip.DistributedAt != nil {
		v := slip.DistributedAt.Format(time.RFC3339)
		resp.DistributedAt = &v
	}
	if slip.PaidAt != nil {
		v := slip.PaidAt.Format(time.RFC3339)
		resp.PaidAt = &v
	}

	return resp
}

func mapLineItems(items []LineItem) []LineItemResponse {
	resp := make([]LineItemResponse, len(items))
	for i, item := range items {
		resp[i] = LineItemResponse{Label: item.Label, Amount: item.Amount.StringFixed(2)}
	}
	return resp
}
