package payrollrun

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-payroll/internal/ancillary"
	"go-payroll/internal/calculation"
	"go-payroll/internal/employee"
	"go-payroll/internal/penalty"
)

const exceptionSeparator = " | "

// DraftBuilder assembles the detail set for a run: it walks the active
// roster of the run's entity, resolves each employee's calculation inputs
// and runs the salary pipeline. Calculation failures become exception
// narratives on the row; infrastructure failures abort the whole build.
type DraftBuilder struct {
	employeeRepo  employee.Repository
	ancillaryRepo ancillary.Repository
	penaltyRepo   penalty.Repository
	logger        *zap.Logger
}

func NewDraftBuilder(
	employeeRepo employee.Repository,
	ancillaryRepo ancillary.Repository,
	penaltyRepo penalty.Repository,
	logger ...*zap.Logger,
) *DraftBuilder {
	l := zap.L().Named("payrollrun.draft_builder")
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	}
	return &DraftBuilder{
		employeeRepo:  employeeRepo,
		ancillaryRepo: ancillaryRepo,
		penaltyRepo:   penaltyRepo,
		logger:        l,
	}
}

// Build produces one detail row per active employee of the entity. The
// returned error is fatal: the caller marks the run REJECTED with the error
// message as the rejection reason.
func (b *DraftBuilder) Build(ctx context.Context, run *PayrollRun) ([]EmployeePayrollDetail, error) {
	roster, err := b.employeeRepo.FindActive(ctx, run.Entity)
	if err != nil {
		b.logger.Error("failed to load active roster",
			zap.String("run_id", run.ID.String()),
			zap.String("entity", run.Entity),
			zap.Error(err))
		return nil, fmt.Errorf("load active roster for %s: %w", run.Entity, err)
	}

	details := make([]EmployeePayrollDetail, 0, len(roster))
	for _, emp := range roster {
		detail, err := b.buildDetail(ctx, run, emp)
		if err != nil {
			b.logger.Error("draft generation aborted",
				zap.String("run_id", run.ID.String()),
				zap.String("employee_id", emp.ID.String()),
				zap.Error(err))
			return nil, fmt.Errorf("employee %s: %w", emp.ID, err)
		}
		details = append(details, detail)
	}

	b.logger.Info("draft details built",
		zap.String("run_id", run.ID.String()),
		zap.Int("employees", len(details)))
	return details, nil
}

// Rebuild recomputes a single row, applying the override payload on top of
// the employee's reference data.
func (b *DraftBuilder) Rebuild(
	ctx context.Context,
	run *PayrollRun,
	emp employee.Employee,
	req RecalculateEmployeeRequest,
) (EmployeePayrollDetail, error) {
	in, grade, bonuses, benefits, penalties, err := b.resolveInputs(ctx, emp)
	if err != nil {
		return EmployeePayrollDetail{}, err
	}

	in.BaseSalaryOverride = req.BaseSalary
	in.HousingAllowanceOverride = req.HousingAllowance
	in.TransportationAllowanceOverride = req.TransportationAllowance
	in.OtherAllowancesOverride = req.OtherAllowances
	if req.LeaveCompensation != nil {
		in.LeaveCompensation = *req.LeaveCompensation
	}
	if req.BankName != nil {
		in.BankName = *req.BankName
	}
	if req.BankAccountNumber != nil {
		in.BankAccountNumber = *req.BankAccountNumber
	}

	return b.assemble(run, emp, in, grade, bonuses, benefits, penalties), nil
}

func (b *DraftBuilder) buildDetail(
	ctx context.Context,
	run *PayrollRun,
	emp employee.Employee,
) (EmployeePayrollDetail, error) {
	in, grade, bonuses, benefits, penalties, err := b.resolveInputs(ctx, emp)
	if err != nil {
		return EmployeePayrollDetail{}, err
	}
	return b.assemble(run, emp, in, grade, bonuses, benefits, penalties), nil
}

func (b *DraftBuilder) resolveInputs(
	ctx context.Context,
	emp employee.Employee,
) (calculation.EmployeeInput, *calculation.PayGrade, []calculation.ApprovedAddition, []calculation.ApprovedAddition, []calculation.PenaltyItem, error) {
	in := calculation.EmployeeInput{
		EmployeeID:        emp.ID,
		BankName:          emp.BankName,
		BankAccountNumber: emp.BankAccountNumber,
	}

	var grade *calculation.PayGrade
	if emp.PayGradeID != nil {
		g, err := b.employeeRepo.FindPayGrade(ctx, emp.PayGradeID.String())
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Dangling grade reference: treat as no grade and let the
			// anomaly rules flag the zero base salary.
			b.logger.Warn("pay grade reference not found",
				zap.String("employee_id", emp.ID.String()),
				zap.String("pay_grade_id", emp.PayGradeID.String()))
		case err != nil:
			return in, nil, nil, nil, nil, fmt.Errorf("resolve pay grade: %w", err)
		default:
			grade = toCalculationGrade(g)
		}
	}

	signingBonuses, err := b.ancillaryRepo.FindApprovedSigningBonuses(ctx, emp.ID.String())
	if err != nil {
		return in, nil, nil, nil, nil, fmt.Errorf("load signing bonuses: %w", err)
	}
	bonuses := make([]calculation.ApprovedAddition, 0, len(signingBonuses))
	for _, sb := range signingBonuses {
		bonuses = append(bonuses, calculation.ApprovedAddition{
			Label:  "Signing bonus",
			Amount: sb.GivenAmount,
		})
	}

	terminationBenefits, err := b.ancillaryRepo.FindApprovedTerminationBenefits(ctx, emp.ID.String())
	if err != nil {
		return in, nil, nil, nil, nil, fmt.Errorf("load termination benefits: %w", err)
	}
	benefits := make([]calculation.ApprovedAddition, 0, len(terminationBenefits))
	for _, tb := range terminationBenefits {
		benefits = append(benefits, calculation.ApprovedAddition{
			Label:  benefitLabel(tb.BenefitType),
			Amount: tb.GivenAmount,
		})
	}

	record, err := b.penaltyRepo.FindByEmployee(ctx, emp.ID.String())
	if err != nil {
		return in, nil, nil, nil, nil, fmt.Errorf("load penalties: %w", err)
	}
	var penalties []calculation.PenaltyItem
	if record != nil {
		penalties = make([]calculation.PenaltyItem, 0, len(record.Items))
		for _, item := range record.Items {
			penalties = append(penalties, calculation.PenaltyItem{
				Label:  item.Label,
				Amount: item.Amount,
			})
		}
	}

	return in, grade, bonuses, benefits, penalties, nil
}

// assemble runs the pipeline and folds the result, anomalies included, into
// a detail row. A calculation error yields a zeroed row carrying the error
// as an exception; the batch keeps going.
func (b *DraftBuilder) assemble(
	run *PayrollRun,
	emp employee.Employee,
	in calculation.EmployeeInput,
	grade *calculation.PayGrade,
	bonuses []calculation.ApprovedAddition,
	benefits []calculation.ApprovedAddition,
	penalties []calculation.PenaltyItem,
) EmployeePayrollDetail {
	breakdown, calcErr := calculation.Calculate(in, grade, bonuses, benefits, penalties)
	reasons := calculation.Detect(in, breakdown, calcErr)

	detail := EmployeePayrollDetail{
		RunID:      run.ID,
		EmployeeID: emp.ID,
		BankStatus: bankStatus(in),
	}

	if calcErr == nil {
		detail.BaseSalary = breakdown.BaseSalary
		detail.Allowances = breakdown.TotalAllowances().Add(breakdown.LeaveCompensation).Round(2)
		detail.Deductions = breakdown.Tax.Add(breakdown.Insurance).Add(breakdown.Penalties).Round(2)
		detail.Bonus = breakdown.Bonus
		detail.Benefit = breakdown.Benefit
		detail.NetSalary = breakdown.NetSalary
		detail.NetPay = breakdown.NetSalary
	} else {
		detail.BaseSalary = decimal.Zero
		detail.Allowances = decimal.Zero
		detail.Deductions = decimal.Zero
		detail.Bonus = decimal.Zero
		detail.Benefit = decimal.Zero
		detail.NetSalary = decimal.Zero
		detail.NetPay = decimal.Zero
	}

	if len(reasons) > 0 {
		joined := strings.Join(reasons, exceptionSeparator)
		detail.Exceptions = &joined
		// Any exception suppresses the clean bank status, banking-related or
		// not. Observed behavior, kept for compatibility.
		detail.BankStatus = BankStatusMissing
	}

	return detail
}

func toCalculationGrade(g *employee.PayGrade) *calculation.PayGrade {
	grade := calculation.PayGrade{BaseSalary: g.BaseSalary}
	for _, a := range g.Allowances {
		grade.Allowances = append(grade.Allowances, calculation.Allowance{
			Name:   a.Name,
			Amount: a.Amount,
		})
	}
	return &grade
}

func benefitLabel(benefitType string) string {
	if strings.EqualFold(benefitType, "RESIGNATION") {
		return "Resignation benefit"
	}
	return "Termination benefit"
}

func bankStatus(in calculation.EmployeeInput) string {
	if in.BankName == "" || in.BankAccountNumber == "" {
		return BankStatusMissing
	}
	return BankStatusValid
}
