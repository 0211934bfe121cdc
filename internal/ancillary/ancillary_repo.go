package ancillary

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -source=ancillary_repo.go -destination=mock/ancillary_repo_mock.go -package=mock
type Repository interface {
	CountPendingSigningBonuses(ctx context.Context) (int64, error)
	CountPendingTerminationBenefits(ctx context.Context) (int64, error)
	FindApprovedSigningBonuses(ctx context.Context, employeeID string) ([]SigningBonus, error)
	FindApprovedTerminationBenefits(ctx context.Context, employeeID string) ([]TerminationBenefit, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CountPendingSigningBonuses(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&SigningBonus{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) CountPendingTerminationBenefits(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&TerminationBenefit{}).
		Where("status = ?", StatusPending).
		Count(&count).Error
	return count, err
}

func (r *repository) FindApprovedSigningBonuses(ctx context.Context, employeeID string) ([]SigningBonus, error) {
	var bonuses []SigningBonus
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("status = ?", StatusApproved).
		Find(&bonuses).Error
	return bonuses, err
}

func (r *repository) FindApprovedTerminationBenefits(ctx context.Context, employeeID string) ([]TerminationBenefit, error) {
	var benefits []TerminationBenefit
	err := r.db.WithContext(ctx).
		Where("employee_id = ?", employeeID).
		Where("status = ?", StatusApproved).
		Find(&benefits).Error
	return benefits, err
}
