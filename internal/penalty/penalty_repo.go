package penalty

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

//go:generate mockgen -source=penalty_repo.go -destination=mock/penalty_repo_mock.go -package=mock
type Repository interface {
	// FindByEmployee returns nil (no error) when the employee has no penalty
	// record; absence means zero penalties.
	FindByEmployee(ctx context.Context, employeeID string) (*PenaltyRecord, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindByEmployee(ctx context.Context, employeeID string) (*PenaltyRecord, error) {
	var record PenaltyRecord
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&record, "employee_id = ?", employeeID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}
