package payslip

import (
	"context"
	"database/sql"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

//go:generate mockgen -source=payslip_repo.go -destination=mock/payslip_repo_mock.go -package=mock
type Repository interface {
	WithTx(tx *sql.Tx) Repository
	Create(ctx context.Context, slip *Payslip) error
	FindByID(ctx context.Context, id string) (*Payslip, error)
	FindByRun(ctx context.Context, runID string) ([]Payslip, error)
	FindByRunAndEmployee(ctx context.Context, runID string, employeeID string) (*Payslip, error)
	CountUnpaidByRun(ctx context.Context, runID string) (int64, error)
	Update(ctx context.Context, slip *Payslip) error
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

// Create inserts a slip; a concurrent duplicate for the same run and
// employee is silently dropped, which keeps generation idempotent under
// racing freeze calls.
func (r *repository) Create(ctx context.Context, slip *Payslip) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "run_id"}, {Name: "employee_id"}},
			DoNothing: true,
		}).
		Create(slip).Error
}

func (r *repository) FindByID(ctx context.Context, id string) (*Payslip, error) {
	var slip Payslip
	err := r.db.WithContext(ctx).First(&slip, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &slip, nil
}

func (r *repository) FindByRun(ctx context.Context, runID string) ([]Payslip, error) {
	var slips []Payslip
	err := r.db.WithContext(ctx).
		Where("run_id = ?", runID).
		Order("created_at ASC").
		Find(&slips).Error
	return slips, err
}

func (r *repository) FindByRunAndEmployee(ctx context.Context, runID string, employeeID string) (*Payslip, error) {
	var slip Payslip
	err := r.db.WithContext(ctx).
		First(&slip, "run_id = ? AND employee_id = ?", runID, employeeID).Error
	if err != nil {
		return nil, err
	}
	return &slip, nil
}

func (r *repository) CountUnpaidByRun(ctx context.Context, runID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&Payslip{}).
		Where("run_id = ?", runID).
		Where("status <> ?", StatusPaid).
		Count(&count).Error
	return count, err
}

func (r *repository) Update(ctx context.Context, slip *Payslip) error {
	return r.db.WithContext(ctx).Save(slip).Error
}
