package employee

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const StatusActive = "ACTIVE"

// Employee is the roster projection this engine needs: identity, activity
// status, compensation reference and bank details. Organizational structure
// (departments, positions, reporting lines) lives outside this service.
type Employee struct {
	ID         uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	FullName   string     `gorm:"type:varchar(160);not null"`
	Entity     string     `gorm:"type:varchar(80);not null;index:idx_employees_entity_status"`
	Status     string     `gorm:"type:varchar(20);not null;default:'ACTIVE';index:idx_employees_entity_status"`
	PayGradeID *uuid.UUID `gorm:"type:uuid;index"`

	BankName          string `gorm:"type:varchar(120)"`
	BankAccountNumber string `gorm:"type:varchar(60)"`

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt gorm.DeletedAt `gorm:"index"`
}

// PayGrade holds the reference base salary and its allowance breakdown.
type PayGrade struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	Name       string          `gorm:"type:varchar(80);not null"`
	BaseSalary decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	Allowances []PayGradeAllowance `gorm:"foreignKey:PayGradeID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

type PayGradeAllowance struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PayGradeID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Name       string          `gorm:"type:varchar(120);not null"`
	Amount     decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
