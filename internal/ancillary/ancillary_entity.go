package ancillary

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Ancillary approval statuses. Only APPROVED amounts join gross salary;
// PENDING items block new-run initiation.
const (
	StatusPending  = "PENDING"
	StatusApproved = "APPROVED"
	StatusRejected = "REJECTED"
	StatusPaid     = "PAID"
)

// SigningBonus is an externally owned approval record, read-only here.
type SigningBonus struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status      string          `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	GivenAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TerminationBenefit covers both termination and resignation benefit
// records, read-only here.
type TerminationBenefit struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	EmployeeID  uuid.UUID       `gorm:"type:uuid;not null;index"`
	BenefitType string          `gorm:"type:varchar(30);not null"` // TERMINATION | RESIGNATION
	Status      string          `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	GivenAmount decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
