package app

import (
	"database/sql"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
	"gorm.io/gorm"

	"go-payroll/internal/ancillary"
	"go-payroll/internal/employee"
	"go-payroll/internal/messaging/kafka"
	"go-payroll/internal/middleware"
	"go-payroll/internal/payrollrun"
	"go-payroll/internal/payslip"
	"go-payroll/internal/penalty"
	"go-payroll/internal/shared/counter"
)

func registerModules(
	router *gin.Engine,
	db *sql.DB,
	gormDB *gorm.DB,
	rdb *redis.Client,
) error {
	// --- Repositories ---
	employeeRepo := employee.NewRepository(gormDB)
	ancillaryRepo := ancillary.NewRepository(gormDB)
	penaltyRepo := penalty.NewRepository(gormDB)
	counterRepo := counter.NewRepository(gormDB)
	runRepo := payrollrun.NewRepository(gormDB)
	payslipRepo := payslip.NewRepository(gormDB)
	outboxRepo := kafka.NewOutboxRepository(db)

	// --- Services ---
	gate := ancillary.NewGate(ancillaryRepo)
	builder := payrollrun.NewDraftBuilder(employeeRepo, ancillaryRepo, penaltyRepo)
	payslipService := payslip.NewService(db, payslipRepo, runRepo, employeeRepo, counterRepo, outboxRepo)
	runService := payrollrun.NewService(db, runRepo, employeeRepo, counterRepo, gate, builder, outboxRepo, payslipService)

	// --- Handlers ---
	runHandler := payrollrun.NewHandlerWithRedis(runService, rdb)
	payslipHandler := payslip.NewHandler(payslipService)

	// --- Routes Registration ---
	api := router.Group("/api/v1")
	api.Use(middleware.RateLimitByActor(rate.Limit(20), 40))
	{
		payrollrun.RegisterRoutes(api, runHandler, rdb)
		payslip.RegisterRoutes(api, payslipHandler)
	}

	return nil
}
