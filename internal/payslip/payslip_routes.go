package payslip

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.RouterGroup, handler *Handler) {
	payslips := r.Group("/payslips")
	{
		payslips.GET("", handler.GetByRun)
		payslips.GET("/:id", handler.GetByID)
		payslips.GET("/:id/download", handler.Download)
		payslips.POST("/:id/mark-paid", handler.MarkPaid)
		payslips.POST("/:id/distribute", handler.Distribute)
	}
}
