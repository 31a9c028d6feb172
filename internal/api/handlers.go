package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"report-service/internal/logging"
	"report-service/internal/models"
	"report-service/internal/services"
	"report-service/internal/storage"
)

// ReportService is the part of services.Service the HTTP API drives.
type ReportService interface {
	GenerateReport(ctx context.Context, req services.GenerateRequest) (models.Report, error)
	GetReport(ctx context.Context, id uuid.UUID) (models.Report, error)
	ListReports(ctx context.Context, userID int64, from, to time.Time) ([]models.Report, error)
	ReportURL(ctx context.Context, id uuid.UUID) (string, error)
	ReportFile(ctx context.Context, id uuid.UUID) (models.Report, []byte, error)
	DeliveryLogs(ctx context.Context, reportID uuid.UUID) ([]models.DeliveryLog, error)
	SendReport(ctx context.Context, req models.DeliveryRequest) ([]models.DeliveryLog, error)
	ScheduleDelivery(req models.DeliveryRequest) error
	RegisterTelegram(ctx context.Context, userID, chatID int64) error
	AddWebSocketConnection(userID int64, conn *websocket.Conn) bool
	RemoveWebSocketConnection(userID int64, conn *websocket.Conn)
}

type Handler struct {
	svc      ReportService
	logger   *logging.Logger
	upgrader websocket.Upgrader
}

func NewHandler(svc ReportService, logger *logging.Logger) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// GenerateReport accepts a multipart upload: user_id, name, file (xlsx), optional template (docx) and sheet.
func (h *Handler) GenerateReport(c *gin.Context) {
	userID, err := strconv.ParseInt(c.PostForm("user_id"), 10, 64)
	if err != nil {
		h.logger.Errorf("Invalid user_id %q: %v", c.PostForm("user_id"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	excel, err := readFormFile(c, "file")
	if err != nil {
		h.logger.Errorf("Invalid spreadsheet upload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	var template []byte
	if _, err := c.FormFile("template"); err == nil {
		if template, err = readFormFile(c, "template"); err != nil {
			h.logger.Errorf("Invalid template upload: %v", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	r, err := h.svc.GenerateReport(c.Request.Context(), services.GenerateRequest{
		UserID:   userID,
		Name:     c.PostForm("name"),
		Excel:    excel,
		Template: template,
		Sheet:    c.PostForm("sheet"),
	})
	if err != nil {
		h.writeError(c, "generate report", err)
		return
	}
	h.logger.Infof("Created report: %s", r.ID)
	c.JSON(http.StatusCreated, r)
}

func readFormFile(c *gin.Context, field string) ([]byte, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, fmt.Errorf("missing %s upload", field)
	}
	return readMultipartFile(fh)
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// ListReports handles GET /reports?user_id=&from=&to=. Dates are YYYY-MM-DD or RFC 3339.
func (h *Handler) ListReports(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil {
		h.logger.Errorf("Invalid user_id %q: %v", c.Query("user_id"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	from, err := parseBound(c.Query("from"), false)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid from: " + err.Error()})
		return
	}
	to, err := parseBound(c.Query("to"), true)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid to: " + err.Error()})
		return
	}

	reports, err := h.svc.ListReports(c.Request.Context(), userID, from, to)
	if err != nil {
		h.writeError(c, "list reports", err)
		return
	}
	h.logger.Infof("Retrieved %d reports for user_id %d", len(reports), userID)
	c.JSON(http.StatusOK, reports)
}

// parseBound parses a range bound. A bare date as upper bound covers the whole day.
func parseBound(s string, upper bool) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("want YYYY-MM-DD or RFC 3339, got %q", s)
	}
	if upper {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, nil
}

func (h *Handler) reportID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.logger.Errorf("Invalid report id %q: %v", c.Param("id"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report id"})
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) GetReport(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	r, err := h.svc.GetReport(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get report", err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) GetReportURL(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	url, err := h.svc.ReportURL(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "create download link", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"url": url})
}

func (h *Handler) DownloadReport(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	r, data, err := h.svc.ReportFile(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "download report", err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", services.FileName(r)))
	c.Data(http.StatusOK, storage.ContentTypeDOCX, data)
}

// SendReport delivers the report right away, or schedules it when delay_seconds is set.
func (h *Handler) SendReport(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	var req models.DeliveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for delivery: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	req.ReportID = id

	if req.DelaySeconds > 0 {
		if _, err := h.svc.GetReport(c.Request.Context(), id); err != nil {
			h.writeError(c, "schedule delivery", err)
			return
		}
		if err := h.svc.ScheduleDelivery(req); err != nil {
			h.writeError(c, "schedule delivery", err)
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"message": "Delivery scheduled", "delay_seconds": req.DelaySeconds})
		return
	}

	logs, err := h.svc.SendReport(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, "send report", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) GetDeliveryLogs(c *gin.Context) {
	id, ok := h.reportID(c)
	if !ok {
		return
	}
	logs, err := h.svc.DeliveryLogs(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, "get delivery logs", err)
		return
	}
	c.JSON(http.StatusOK, logs)
}

func (h *Handler) RegisterTelegram(c *gin.Context) {
	type TelegramRequest struct {
		ChatID int64 `json:"chat_id" binding:"required"`
	}

	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		h.logger.Errorf("Invalid user_id %s: %v", c.Param("user_id"), err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	var req TelegramRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.RegisterTelegram(c.Request.Context(), userID, req.ChatID); err != nil {
		h.writeError(c, "register telegram", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Telegram chat linked"})
}

// HandleWebSocket keeps a push channel open for a platform user until the client disconnects.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("user_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user_id"})
		return
	}
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf("WebSocket upgrade failed for user %d: %v", userID, err)
		return
	}
	defer conn.Close()

	if !h.svc.AddWebSocketConnection(userID, conn) {
		msg := websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}
	defer h.svc.RemoveWebSocketConnection(userID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
