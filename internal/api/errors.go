package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"report-service/internal/analysis"
	"report-service/internal/db"
	"report-service/internal/report"
	"report-service/internal/services"
	"report-service/internal/storage"
)

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrSourceRead),
		errors.Is(err, analysis.ErrDataFormat),
		errors.Is(err, analysis.ErrInsufficientData),
		errors.Is(err, report.ErrRender):
		return http.StatusUnprocessableEntity
	case errors.Is(err, db.ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(c *gin.Context, action string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Errorf("Failed to %s: %v", action, err)
		c.JSON(status, gin.H{"error": "Failed to " + action})
		return
	}
	h.logger.Warnf("Failed to %s: %v", action, err)
	c.JSON(status, gin.H{"error": err.Error()})
}
