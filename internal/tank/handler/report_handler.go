package handler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/gin-gonic/gin"
)

// ReportHandler 报表处理器
type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// Report GET /api/reports/:type?format=json|csv|xlsx
func (h *ReportHandler) Report(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", service.FormatJSON))
	switch format {
	case service.FormatJSON, service.FormatCSV, service.FormatXLSX:
	default:
		RespondError(c, apperror.Validation("unknown format %q", format))
		return
	}

	reportType, processes, err := h.svc.Report(c.Request.Context(), c.Param("type"))
	if err != nil {
		RespondError(c, err)
		return
	}
	h.svc.RecordExport(reportType, format)

	switch format {
	case service.FormatCSV:
		var buf bytes.Buffer
		if err := service.WriteCSV(&buf, processes); err != nil {
			InternalError(c, "failed to render report")
			return
		}
		attachment(c, service.ExportFilename(reportType, format))
		c.Data(200, "text/csv; charset=utf-8", buf.Bytes())
	case service.FormatXLSX:
		f, err := service.BuildXLSX(reportType, processes)
		if err != nil {
			InternalError(c, "failed to render report")
			return
		}
		defer f.Close()
		buf, err := f.WriteToBuffer()
		if err != nil {
			InternalError(c, "failed to render report")
			return
		}
		attachment(c, service.ExportFilename(reportType, format))
		c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	default:
		OK(c, gin.H{"processes": processes})
	}
}

func attachment(c *gin.Context, filename string) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
}

// RequirementHandler 工时参考表
type RequirementHandler struct {
	lookup *requirement.Lookup
}

func NewRequirementHandler(lookup *requirement.Lookup) *RequirementHandler {
	return &RequirementHandler{lookup: lookup}
}

// List GET /api/requirements
func (h *RequirementHandler) List(c *gin.Context) {
	OK(c, gin.H{"requirements": h.lookup.Entries()})
}
