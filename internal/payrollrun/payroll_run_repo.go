package payrollrun

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DetailAggregate is the roll-up of a run's detail set.
type DetailAggregate struct {
	Employees   int
	Exceptions  int
	TotalNetPay decimal.Decimal
}

//go:generate mockgen -source=payroll_run_repo.go -destination=mock/payroll_run_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, run *PayrollRun) error
	FindAll(ctx context.Context) ([]PayrollRun, error)
	FindByID(ctx context.Context, id string) (*PayrollRun, error)
	FindByRunNumber(ctx context.Context, runNumber string) (*PayrollRun, error)
	HasActiveRunForPeriod(ctx context.Context, period time.Time, entity string, excludeRunID *string) (bool, error)
	Update(ctx context.Context, run *PayrollRun) error
	// TransitionStatus performs a check-and-set status update. It reports
	// false when the run was not in any of fromStatuses at update time,
	// which callers surface as a concurrent-transition conflict.
	TransitionStatus(ctx context.Context, runID string, fromStatuses []string, updates map[string]any) (bool, error)
	UpsertDetail(ctx context.Context, detail *EmployeePayrollDetail) error
	FindDetails(ctx context.Context, runID string) ([]EmployeePayrollDetail, error)
	FindDetail(ctx context.Context, runID string, employeeID string) (*EmployeePayrollDetail, error)
	UpdateDetail(ctx context.Context, detail *EmployeePayrollDetail) error
	AggregateDetails(ctx context.Context, runID string) (DetailAggregate, error)
}

type repository struct {
	db *gorm.DB
	tx *sql.Tx
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *sql.Tx) Repository {
	return &repository{
		db: r.db,
		tx: tx,
	}
}

func (r *repository) Create(ctx context.Context, run *PayrollRun) error {
	return r.db.WithContext(ctx).Create(run).Error
}

func (r *repository) FindAll(ctx context.Context) ([]PayrollRun, error) {
	var runs []PayrollRun
	err := r.db.WithContext(ctx).
		Order("payroll_period DESC, created_at DESC").
		Find(&runs).Error
	return runs, err
}

func (r *repository) FindByID(ctx context.Context, id string) (*PayrollRun, error) {
	var run PayrollRun
	err := r.db.WithContext(ctx).First(&run, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) FindByRunNumber(ctx context.Context, runNumber string) (*PayrollRun, error) {
	var run PayrollRun
	err := r.db.WithContext(ctx).First(&run, "run_number = ?", runNumber).Error
	if err != nil {
		return nil, err
	}
	return &run, nil
}

func (r *repository) HasActiveRunForPeriod(
	ctx context.Context,
	period time.Time,
	entity string,
	excludeRunID *string,
) (bool, error) {
	db := r.db.WithContext(ctx).
		Model(&PayrollRun{}).
		Where("payroll_period = ?", period).
		Where("entity = ?", entity).
		Where("status <> ?", StatusRejected)

	if excludeRunID != nil && *excludeRunID != "" {
		db = db.Where("id <> ?", *excludeRunID)
	}

	var count int64
	err := db.Count(&count).Error
	return count > 0, err
}

func (r *repository) Update(ctx context.Context, run *PayrollRun) error {
	return r.db.WithContext(ctx).Save(run).Error
}

func (r *repository) TransitionStatus(
	ctx context.Context,
	runID string,
	fromStatuses []string,
	updates map[string]any,
) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&PayrollRun{}).
		Where("id = ?", runID).
		Where("status IN ?", fromStatuses).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpsertDetail(ctx context.Context, detail *EmployeePayrollDetail) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "run_id"}, {Name: "employee_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"base_salary",
				"allowances",
				"deductions",
				"bonus",
				"benefit",
				"net_salary",
				"net_pay",
				"bank_status",
				"exceptions",
				"updated_at",
			}),
		}).
		Create(detail).Error
}

func (r *repository) FindDetails(ctx context.Context, runID string) ([]EmployeePayrollDetail, error) {
	var details []EmployeePayrollDetail
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&details).Error
	return details, err
}

func (r *repository) FindDetail(ctx context.Context, runID string, employeeID string) (*EmployeePayrollDetail, error) {
	var detail EmployeePayrollDetail
	err := r.db.WithContext(ctx).
		First(&detail, "run_id = ? AND employee_id = ?", runID, employeeID).Error
	if err != nil {
		return nil, err
	}
	return &detail, nil
}

func (r *repository) UpdateDetail(ctx context.Context, detail *EmployeePayrollDetail) error {
	return r.db.WithContext(ctx).Save(detail).Error
}

func (r *repository) AggregateDetails(ctx context.Context, runID string) (DetailAggregate, error) {
	var row struct {
		Employees   int
		Exceptions  int
		TotalNetPay decimal.Decimal
	}
	err := r.db.WithContext(ctx).
		Model(&EmployeePayrollDetail{}).
		Select(
			"COUNT(*) AS employees, "+
				"COUNT(*) FILTER (WHERE exceptions IS NOT NULL AND exceptions <> '') AS exceptions, "+
				"COALESCE(SUM(net_pay), 0) AS total_net_pay",
		).
		Where("run_id = ?", runID).
		Scan(&row).Error
	if err != nil {
		return DetailAggregate{}, err
	}
	return DetailAggregate{
		Employees:   row.Employees,
		Exceptions:  row.Exceptions,
		TotalNetPay: row.TotalNetPay,
	}, nil
}
