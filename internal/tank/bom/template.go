package bom

import (
	"strconv"

	"github.com/xuri/excelize/v2"
)

var templateHeaders = []string{"No.", "Description", "Qty", "Unit", "Material", "Remarks"}

// GenerateTemplate builds an empty BOM workbook with the header row the
// parser expects, plus a sheet of filling instructions.
func GenerateTemplate(opts Options) (*excelize.File, error) {
	if opts.CodeColumn == "" {
		opts = DefaultOptions()
	}

	f := excelize.NewFile()
	sheet := "BOM"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	boldStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
	})
	if err != nil {
		return nil, err
	}

	headers := append([]string{}, templateHeaders...)
	headers[0] = opts.CodeColumn
	headers[1] = opts.DescriptionColumn
	for i, h := range headers {
		col, _ := excelize.ColumnNumberToName(i + 1)
		cell := col + "1"
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, boldStyle)
	}

	sample := []interface{}{opts.CodePrefix + "001", "Inner Shell Cutting", 1, "set", "SS316L", ""}
	for i, v := range sample {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetCellValue(sheet, col+"2", v)
	}

	colWidths := []float64{12, 32, 8, 8, 14, 24}
	for i, w := range colWidths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		f.SetColWidth(sheet, col, col, w)
	}

	helpSheet := "Instructions"
	if _, err := f.NewSheet(helpSheet); err != nil {
		return nil, err
	}
	helpData := [][]string{
		{"Column", "Meaning", "Required"},
		{opts.CodeColumn, "Item code. Rows starting with " + opts.CodePrefix + " become process cards", "yes"},
		{opts.DescriptionColumn, "Process name shown on the card", "no"},
		{"Qty / Unit / Material / Remarks", "Kept for reference, not tracked", "no"},
	}
	for r, row := range helpData {
		for c, v := range row {
			col, _ := excelize.ColumnNumberToName(c + 1)
			f.SetCellValue(helpSheet, col+strconv.Itoa(r+1), v)
		}
	}
	f.SetColWidth(helpSheet, "A", "A", 30)
	f.SetColWidth(helpSheet, "B", "B", 60)

	return f, nil
}
