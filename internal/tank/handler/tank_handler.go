package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const bomField = "bom"

// TankHandler 储罐处理器
type TankHandler struct {
	svc      *service.TankService
	workflow *service.WorkflowService
	opts     Options
	logger   *zap.Logger
}

func NewTankHandler(svc *service.TankService, workflow *service.WorkflowService, opts Options, logger *zap.Logger) *TankHandler {
	return &TankHandler{svc: svc, workflow: workflow, opts: opts, logger: logger}
}

// Create POST /api/tanks (multipart: tankType, capacity, deliveryDate, clientName, bom)
func (h *TankHandler) Create(c *gin.Context) {
	var input service.CreateTankInput
	if err := c.ShouldBind(&input); err != nil {
		RespondError(c, bindError(err))
		return
	}

	file, cleanup, err := h.saveUpload(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	defer cleanup()

	result, err := h.svc.CreateTank(c.Request.Context(), &input, file)
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, result)
}

// AppendBOM POST /api/tanks/:id/bom
func (h *TankHandler) AppendBOM(c *gin.Context) {
	file, cleanup, err := h.saveUpload(c)
	if err != nil {
		RespondError(c, err)
		return
	}
	defer cleanup()

	result, err := h.svc.AppendBOM(c.Request.Context(), c.Param("id"), file)
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, result)
}

// saveUpload writes the bom part under the upload dir. The returned cleanup
// removes it; a failed removal is logged.
func (h *TankHandler) saveUpload(c *gin.Context) (service.BOMFile, func(), error) {
	header, err := c.FormFile(bomField)
	if errors.Is(err, http.ErrMissingFile) {
		return service.BOMFile{}, nil, apperror.Validation("bom file is required")
	}
	if err != nil {
		return service.BOMFile{}, nil, bindError(err)
	}

	if err := os.MkdirAll(h.opts.UploadDir, 0o755); err != nil {
		return service.BOMFile{}, nil, apperror.Persistence(err, "failed to prepare upload dir")
	}
	path := filepath.Join(h.opts.UploadDir, uuid.New().String()[:32]+filepath.Ext(header.Filename))
	if err := c.SaveUploadedFile(header, path); err != nil {
		os.Remove(path)
		return service.BOMFile{}, nil, apperror.Persistence(err, "failed to store upload")
	}

	cleanup := func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			h.logger.Warn("failed to remove uploaded bom", zap.String("path", path), zap.Error(err))
		}
	}
	return service.BOMFile{Filename: header.Filename, Path: path}, cleanup, nil
}

// List GET /api/tanks
func (h *TankHandler) List(c *gin.Context) {
	tanks, err := h.svc.ListTanks(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{"tanks": tanks})
}

// Get GET /api/tanks/:id
func (h *TankHandler) Get(c *gin.Context) {
	detail, err := h.svc.GetTank(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, detail)
}

// CompletionStatus GET /api/tanks/:id/completion-status
func (h *TankHandler) CompletionStatus(c *gin.Context) {
	status, err := h.workflow.CheckCompletion(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, status)
}

// BookFinalQC POST /api/tanks/:id/final-qc
func (h *TankHandler) BookFinalQC(c *gin.Context) {
	result, err := h.workflow.BookFinalQC(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{
		"success":       true,
		"tank":          result.Tank,
		"processes":     result.Processes,
		"alreadyBooked": result.AlreadyBooked,
	})
}

// Template GET /api/tanks/bom-template
func (h *TankHandler) Template(c *gin.Context) {
	f, err := bom.GenerateTemplate(h.opts.BOM)
	if err != nil {
		InternalError(c, "failed to build template")
		return
	}
	defer f.Close()

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "BOM_Template.xlsx"))
	c.Header("Content-Transfer-Encoding", "binary")

	if err := f.Write(c.Writer); err != nil {
		h.logger.Warn("write template", zap.Error(err))
	}
}
