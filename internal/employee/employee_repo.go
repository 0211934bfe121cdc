package employee

import (
	"context"

	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

//go:generate mockgen -source=employee_repo.go -destination=mock/employee_repo_mock.go -package=mock

// Repository is the read-only roster boundary. Employee lifecycle writes
// (onboarding, termination) belong to the upstream HR service.
type Repository interface {
	FindActive(ctx context.Context, entity string) ([]Employee, error)
	FindByID(ctx context.Context, id string) (*Employee, error)
	FindPayGrade(ctx context.Context, id string) (*PayGrade, error)
}

type repository struct {
	db     *gorm.DB
	grades singleflight.Group
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) FindActive(ctx context.Context, entity string) ([]Employee, error) {
	var employees []Employee
	err := r.db.WithContext(ctx).
		Where("entity = ?", entity).
		Where("status = ?", StatusActive).
		Order("full_name ASC").
		Find(&employees).Error
	return employees, err
}

func (r *repository) FindByID(ctx context.Context, id string) (*Employee, error) {
	var e Employee
	err := r.db.WithContext(ctx).First(&e, "id = ?", id).Error
	return &e, err
}

// FindPayGrade loads a grade with its allowances. Draft generation resolves
// the same handful of grades for a whole roster, so concurrent lookups for
// one grade are collapsed into a single query.
func (r *repository) FindPayGrade(ctx context.Context, id string) (*PayGrade, error) {
	v, err, _ := r.grades.Do(id, func() (any, error) {
		var grade PayGrade
		err := r.db.WithContext(ctx).
			Preload("Allowances").
			First(&grade, "id = ?", id).Error
		if err != nil {
			return nil, err
		}
		return &grade, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*PayGrade), nil
}
