package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"report-service/internal/config"
	"report-service/internal/logging"
)

func NewRouter(logger *logging.Logger, cfg config.Config, h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))
	r.MaxMultipartMemory = cfg.API.MaxUploadMB << 20

	api := r.Group(cfg.API.BasePath)
	api.Use(BodyLimitMiddleware(cfg.API.MaxUploadMB << 20))
	{
		// Reports
		api.POST("/reports", h.GenerateReport)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/:id", h.GetReport)
		api.GET("/reports/:id/url", h.GetReportURL)
		api.GET("/reports/:id/download", h.DownloadReport)

		// Delivery
		api.POST("/reports/:id/send", h.SendReport)
		api.GET("/reports/:id/deliveries", h.GetDeliveryLogs)
		api.POST("/users/:user_id/telegram", h.RegisterTelegram)

		api.GET("/ws/:user_id", h.HandleWebSocket)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}
