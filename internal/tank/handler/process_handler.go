package handler

import (
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/gin-gonic/gin"
)

// ProcessHandler 工序处理器
type ProcessHandler struct {
	workflow *service.WorkflowService
	report   *service.ReportService
}

func NewProcessHandler(workflow *service.WorkflowService, report *service.ReportService) *ProcessHandler {
	return &ProcessHandler{workflow: workflow, report: report}
}

type statusRequest struct {
	Status string `json:"status"`
}

type progressRequest struct {
	Progress *float64 `json:"progress"`
}

// updateStatusRequest is the drag handler's body; processId wins over tankId+serialNo.
type updateStatusRequest struct {
	TankID    string `json:"tankId"`
	ProcessID string `json:"processId"`
	SerialNo  string `json:"serialNo"`
	NewStatus string `json:"newStatus"`
}

// List GET /api/processes
func (h *ProcessHandler) List(c *gin.Context) {
	processes, err := h.report.ListProcesses(c.Request.Context())
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{"processes": processes})
}

// Check GET /api/processes/check/:tankId/:serialNo
func (h *ProcessHandler) Check(c *gin.Context) {
	p, err := h.workflow.VerifyStatus(c.Request.Context(), c.Param("tankId"), c.Param("serialNo"))
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{"status": p.Status, "processId": p.ID, "progress": p.Progress})
}

// UpdateStatus PATCH /api/processes/:id/status
func (h *ProcessHandler) UpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, bindError(err))
		return
	}
	change, err := h.workflow.SetStatus(c.Request.Context(), c.Param("id"), req.Status)
	if err != nil {
		RespondError(c, err)
		return
	}
	respondChange(c, change)
}

// UpdateStatusBySerial POST /api/processes/update-status
func (h *ProcessHandler) UpdateStatusBySerial(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, bindError(err))
		return
	}

	var (
		change *service.StatusChange
		err    error
	)
	switch {
	case req.ProcessID != "":
		change, err = h.workflow.SetStatus(c.Request.Context(), req.ProcessID, req.NewStatus)
	case req.TankID != "" && req.SerialNo != "":
		change, err = h.workflow.SetStatusBySerial(c.Request.Context(), req.TankID, req.SerialNo, req.NewStatus)
	default:
		err = apperror.Validation("processId or tankId and serialNo are required")
	}
	if err != nil {
		RespondError(c, err)
		return
	}
	respondChange(c, change)
}

func respondChange(c *gin.Context, change *service.StatusChange) {
	OK(c, gin.H{
		"success":      true,
		"process":      change.Process,
		"tankComplete": change.TankComplete,
		"tankStatus":   change.TankStatus,
	})
}

// UpdateProgress PATCH /api/processes/:id/progress
func (h *ProcessHandler) UpdateProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, apperror.Validation("progress must be an integer between 0 and 100"))
		return
	}
	if req.Progress == nil {
		RespondError(c, apperror.Validation("progress is required"))
		return
	}
	p, err := h.workflow.UpdateProgress(c.Request.Context(), c.Param("id"), *req.Progress)
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{"success": true, "process": p})
}

// CompleteQC POST /api/processes/:id/qc
func (h *ProcessHandler) CompleteQC(c *gin.Context) {
	p, err := h.workflow.CompleteQC(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	OK(c, gin.H{"success": true, "process": p})
}
