package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ashtavinayaka/tankflow/internal/metrics"
	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/xuri/excelize/v2"
)

// ReportType selects which processes a report lists.
type ReportType string

const (
	ReportOpen      ReportType = "open"
	ReportOngoing   ReportType = "ongoing"
	ReportCompleted ReportType = "completed"
	ReportQCPending ReportType = "qc-pending"
	ReportFinalQC   ReportType = "final-qc"
)

var ReportTypes = []ReportType{ReportOpen, ReportOngoing, ReportCompleted, ReportQCPending, ReportFinalQC}

// Export formats
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

var reportHeaders = []string{"Tank Name", "Process Name", "Serial No", "Workers", "Time to Complete", "Status", "Added Date"}

const addedDateLayout = "2006-01-02 15:04"

func ParseReportType(s string) (ReportType, bool) {
	t := ReportType(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range ReportTypes {
		if t == known {
			return t, true
		}
	}
	return "", false
}

// Filter is the process selection behind a report type.
func (t ReportType) Filter() repository.ProcessFilter {
	switch t {
	case ReportOngoing:
		return repository.ProcessFilter{Status: entity.StatusOngoing}
	case ReportCompleted:
		return repository.ProcessFilter{Status: entity.StatusCompleted}
	case ReportQCPending:
		return repository.ProcessFilter{Status: entity.StatusCompleted, QCCompleted: repository.Bool(false)}
	case ReportFinalQC:
		return repository.ProcessFilter{
			Status:           entity.StatusCompleted,
			QCCompleted:      repository.Bool(true),
			FinalQCCompleted: repository.Bool(false),
		}
	default:
		return repository.ProcessFilter{Status: entity.StatusOpen}
	}
}

type ReportService struct {
	processRepo repository.ProcessRepository
	metrics     *metrics.Metrics
}

func NewReportService(processRepo repository.ProcessRepository, m *metrics.Metrics) *ReportService {
	return &ReportService{processRepo: processRepo, metrics: m}
}

// ListProcesses returns every process in stable order.
func (s *ReportService) ListProcesses(ctx context.Context) ([]entity.Process, error) {
	processes, err := s.processRepo.List(ctx, repository.ProcessFilter{})
	if err != nil {
		return nil, apperror.Persistence(err, "failed to list processes")
	}
	return processes, nil
}

// Report 按类型筛选工序
func (s *ReportService) Report(ctx context.Context, reportType string) (ReportType, []entity.Process, error) {
	t, ok := ParseReportType(reportType)
	if !ok {
		return "", nil, apperror.Validation("unknown report type %q", reportType)
	}
	processes, err := s.processRepo.List(ctx, t.Filter())
	if err != nil {
		return "", nil, apperror.Persistence(err, "failed to build %s report", t)
	}
	return t, processes, nil
}

// RecordExport counts a served report.
func (s *ReportService) RecordExport(t ReportType, format string) {
	s.metrics.RecordReport(string(t), format)
}

func reportRow(p *entity.Process) []string {
	return []string{
		p.TankName,
		p.ProcessName,
		p.SerialNo,
		strconv.Itoa(p.Workers),
		strconv.FormatFloat(p.TimeToComplete, 'f', -1, 64),
		string(p.Status),
		p.AddedAt.Format(addedDateLayout),
	}
}

// WriteCSV renders one row per process under the report header.
func WriteCSV(w io.Writer, processes []entity.Process) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(reportHeaders); err != nil {
		return err
	}
	for i := range processes {
		if err := cw.Write(reportRow(&processes[i])); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// BuildXLSX renders the report as a workbook with a bold header row.
func BuildXLSX(t ReportType, processes []entity.Process) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := "Report"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Border: []excelize.Border{
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err != nil {
		return nil, err
	}

	for i, h := range reportHeaders {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	for i := range processes {
		p := &processes[i]
		row := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", row), p.TankName)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", row), p.ProcessName)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", row), p.SerialNo)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", row), p.Workers)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", row), p.TimeToComplete)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", row), string(p.Status))
		f.SetCellValue(sheet, fmt.Sprintf("G%d", row), p.AddedAt.Format(addedDateLayout))
	}

	colWidths := []float64{28, 32, 10, 10, 16, 12, 18}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}
	f.SetDocProps(&excelize.DocProperties{Title: string(t) + " report"})
	return f, nil
}

// ExportFilename is report-{type}.{ext}.
func ExportFilename(t ReportType, format string) string {
	return fmt.Sprintf("report-%s.%s", t, format)
}
