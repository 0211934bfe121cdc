package payrollrun

import (
	"errors"
	"strings"

	payrollrunerrors "go-payroll/internal/payrollrun/errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

func mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return payrollrunerrors.ErrRunNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			switch pgErr.ConstraintName {
			case "uq_payroll_runs_active_period":
				return payrollrunerrors.ErrPeriodConflict
			case "uq_payroll_runs_run_number":
				return payrollrunerrors.ErrRunNumberConflict
			}
		}
	}

	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "duplicate key value") {
		if strings.Contains(errMsg, "uq_payroll_runs_active_period") {
			return payrollrunerrors.ErrPeriodConflict
		}
		if strings.Contains(errMsg, "uq_payroll_runs_run_number") {
			return payrollrunerrors.ErrRunNumberConflict
		}
	}

	return err
}
