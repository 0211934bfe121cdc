package penalty

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PenaltyRecord is the per-employee penalty sheet owned by the discipline
// workflow; this engine only reads it. At most one record per employee.
type PenaltyRecord struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`

	Items []PenaltyItem `gorm:"foreignKey:RecordID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PenaltyItem struct {
	ID       uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	RecordID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Label    string          `gorm:"type:varchar(120);not null"`
	Amount   decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time
}
