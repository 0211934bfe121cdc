package counter

import (
	"context"

	"gorm.io/gorm"
)

//go:generate mockgen -destination=mock/counter_repo_mock.go -package=mock . Repository
type Repository interface {
	GetNextValue(ctx context.Context, entity string, counterType string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetNextValue(ctx context.Context, entity string, counterType string) (int64, error) {
	var nextValue int64

	// Atomic UPSERT and increment so concurrent run initiations per entity/type
	// never hand out the same sequence number.
	err := r.db.WithContext(ctx).Raw(`
		INSERT INTO entity_counters (entity, counter_type, last_value, updated_at)
		VALUES (?, ?, 1, now())
		ON CONFLICT (entity, counter_type) DO UPDATE
		SET last_value = entity_counters.last_value + 1, updated_at = now()
		RETURNING last_value
	`, entity, counterType).Scan(&nextValue).Error

	if err != nil {
		return 0, err
	}

	return nextValue, nil
}
