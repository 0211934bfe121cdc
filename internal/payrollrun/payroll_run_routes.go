package payrollrun

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"go-payroll/internal/middleware"
)

func RegisterRoutes(
	r *gin.RouterGroup,
	handler *Handler,
	rdb ...*redis.Client,
) {
	var redisClient *redis.Client
	if len(rdb) > 0 {
		redisClient = rdb[0]
	}

	runs := r.Group("/payroll-runs")
	{
		runs.GET("", handler.GetAll)
		runs.GET("/:ref", handler.GetByRef)
		runs.GET("/:ref/details", handler.GetDetails)
		runs.GET("/:ref/exceptions", handler.GetExceptions)
		runs.GET("/:ref/approval-panel", handler.ApprovalPanel)

		if redisClient != nil {
			runs.POST("", middleware.Idempotency(redisClient), handler.Initiate)
		} else {
			runs.POST("", handler.Initiate)
		}

		runs.PATCH("/:ref/period", handler.EditPeriod)
		runs.POST("/:ref/publish", handler.PublishForReview)
		runs.POST("/:ref/manager-approve", handler.ManagerApprove)
		runs.POST("/:ref/manager-reject", handler.ManagerReject)
		runs.POST("/:ref/finance-approve", handler.FinanceApprove)
		runs.POST("/:ref/finance-reject", handler.FinanceReject)
		runs.POST("/:ref/freeze", handler.Freeze)
		runs.POST("/:ref/unfreeze", handler.Unfreeze)
		runs.POST("/:ref/payslips", handler.GeneratePayslips)

		runs.POST("/:ref/employees/:employeeId/recalculate", handler.RecalculateEmployee)
		runs.POST("/:ref/employees/:employeeId/adjustments", handler.Adjust)
		runs.POST("/:ref/employees/:employeeId/resolve-exception", handler.ResolveException)
	}
}
