package handler

import (
	"errors"
	"net/http"

	"github.com/ashtavinayaka/tankflow/internal/middleware"
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Options configures the handlers beyond the services they call.
type Options struct {
	UploadDir     string
	MaxUploadSize int64
	BOM           bom.Options
}

// Handlers 处理器集合
type Handlers struct {
	Tank        *TankHandler
	Process     *ProcessHandler
	Report      *ReportHandler
	Requirement *RequirementHandler
	SSE         *SSEHandler

	maxUploadSize int64
}

// NewHandlers 创建处理器集合
func NewHandlers(svc *service.Services, lookup *requirement.Lookup, hub *sse.Hub, opts Options, logger *zap.Logger) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.UploadDir == "" {
		opts.UploadDir = "./uploads"
	}
	if opts.BOM.CodeColumn == "" {
		opts.BOM = bom.DefaultOptions()
	}
	return &Handlers{
		Tank:          NewTankHandler(svc.Tank, svc.Workflow, opts, logger),
		Process:       NewProcessHandler(svc.Workflow, svc.Report),
		Report:        NewReportHandler(svc.Report),
		Requirement:   NewRequirementHandler(lookup),
		SSE:           NewSSEHandler(hub),
		maxUploadSize: opts.MaxUploadSize,
	}
}

// RegisterRoutes mounts the board API under /api.
func RegisterRoutes(r gin.IRouter, h *Handlers) {
	api := r.Group("/api")

	tanks := api.Group("/tanks")
	{
		upload := middleware.BodyLimit(h.maxUploadSize)
		tanks.GET("", h.Tank.List)
		tanks.POST("", upload, h.Tank.Create)
		tanks.GET("/bom-template", h.Tank.Template)
		tanks.GET("/:id", h.Tank.Get)
		tanks.POST("/:id/bom", upload, h.Tank.AppendBOM)
		tanks.GET("/:id/completion-status", h.Tank.CompletionStatus)
		tanks.GET("/:id/check-completion", h.Tank.CompletionStatus)
		tanks.POST("/:id/final-qc", h.Tank.BookFinalQC)
	}

	processes := api.Group("/processes")
	{
		processes.GET("", h.Process.List)
		processes.GET("/check/:tankId/:serialNo", h.Process.Check)
		processes.POST("/update-status", h.Process.UpdateStatusBySerial)
		processes.PATCH("/:id/status", h.Process.UpdateStatus)
		processes.PATCH("/:id/progress", h.Process.UpdateProgress)
		processes.POST("/:id/qc", h.Process.CompleteQC)
	}

	api.GET("/reports/:type", h.Report.Report)
	api.GET("/requirements", h.Requirement.List)
	api.GET("/events", h.SSE.Stream)
}

// OK 成功响应
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Error 错误响应 {"error": message, "code": CODE}
func Error(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, apperror.CodeValidation, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, apperror.CodeNotFound, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, apperror.CodePersistence, message)
}

// bindError keeps body-size failures intact and reports the rest as bad input.
func bindError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return err
	}
	return apperror.Validation("invalid request: %v", err)
}

// RespondError maps a service error onto its HTTP status and code.
func RespondError(c *gin.Context, err error) {
	c.Error(err)

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		Error(c, http.StatusRequestEntityTooLarge, apperror.CodeValidation, "upload is too large")
		return
	}

	appErr := apperror.From(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}
	Error(c, status, appErr.Code, appErr.Message)
}
