package bom

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXLSXKeepsOnlySFGRows(t *testing.T) {
	data := testutil.BOMWorkbook(t,
		[]string{"No.", "Description", "Qty"},
		[]string{"SFG001", "Inner Shell Cutting", "1"},
		[]string{"OTHER1", "Bolt M12", "40"},
		[]string{"sfg002", "Inner Shell Rolling", "1"},
		[]string{"", "blank code", ""},
	)

	rows, err := Open(bytes.NewReader(data), "bom.xlsx", DefaultOptions())
	require.NoError(t, err)

	items, err := Collect(rows)
	require.NoError(t, err)
	require.Len(t, items, 2)

	assert.Equal(t, "SFG001", items[0].Code)
	assert.Equal(t, "Inner Shell Cutting", items[0].Description)
	assert.Equal(t, 2, items[0].Row)
	assert.Equal(t, map[string]string{"No.": "SFG001", "Description": "Inner Shell Cutting", "Qty": "1"}, items[0].Cells)

	assert.Equal(t, "sfg002", items[1].Code)
	assert.Equal(t, 4, items[1].Row)
	assert.Equal(t, 2, rows.Skipped())
}

func TestXLSXHeaderMatchIgnoresCaseAndSpace(t *testing.T) {
	data := testutil.BOMWorkbook(t,
		[]string{" no. ", "DESCRIPTION"},
		[]string{"SFG009", "Nozzle Fit-up"},
	)

	items, err := parseAll(t, data, "bom.xlsx")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Nozzle Fit-up", items[0].Description)
}

func TestMissingCodeColumnYieldsNothing(t *testing.T) {
	data := testutil.BOMWorkbook(t,
		[]string{"Item", "Description"},
		[]string{"SFG001", "Inner Shell Cutting"},
	)

	rows, err := Open(bytes.NewReader(data), "bom.xlsx", DefaultOptions())
	require.NoError(t, err)
	assert.False(t, rows.HasCodeColumn())

	items, err := Collect(rows)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEmptyWorkbook(t *testing.T) {
	data := testutil.BOMWorkbook(t)

	items, err := parseAll(t, data, "bom.xlsx")
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRowsAreConsumedOnce(t *testing.T) {
	data := testutil.BOMWorkbook(t,
		[]string{"No."},
		[]string{"SFG001"},
	)

	rows, err := Open(bytes.NewReader(data), "bom.xlsx", DefaultOptions())
	require.NoError(t, err)
	defer rows.Close()

	assert.True(t, rows.Next())
	assert.False(t, rows.Next())
	assert.False(t, rows.Next())
}

func TestInvalidWorkbookIsParseError(t *testing.T) {
	_, err := Open(strings.NewReader("definitely not a zip"), "bom.xlsx", DefaultOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrParse))
}

func TestLegacyXLSRejected(t *testing.T) {
	_, err := Open(strings.NewReader(""), "bom.xls", DefaultOptions())
	assert.True(t, errors.Is(err, apperror.ErrParse))
}

func TestCSV(t *testing.T) {
	csv := "\xEF\xBB\xBFNo.,Description\nSFG001,Inner Shell Cutting\nOTHER1,Washer\nSFG003,\"Shell Welding, long seam\"\n"

	items, err := parseAll(t, []byte(csv), "bom.csv")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "SFG001", items[0].Code)
	assert.Equal(t, "Shell Welding, long seam", items[1].Description)
	assert.Equal(t, 4, items[1].Row)
}

func TestCSVWindows1252(t *testing.T) {
	// 0xB0 is the degree sign in cp1252
	csv := []byte("No.,Description\nSFG004,Dish End 90\xB0 Bend\n")

	items, err := parseAll(t, csv, "bom.csv")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Dish End 90° Bend", items[0].Description)
}

func TestSniffWithoutExtension(t *testing.T) {
	data := testutil.BOMWorkbook(t,
		[]string{"No."},
		[]string{"SFG001"},
	)
	items, err := parseAll(t, data, "upload")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	items, err = parseAll(t, []byte("No.\nSFG002\n"), "upload")
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestCustomPrefix(t *testing.T) {
	data := []byte("Code,Name\nFG-10,Frame\nSFG001,Shell\n")
	rows, err := OpenCSV(bytes.NewReader(data), Options{CodeColumn: "Code", DescriptionColumn: "Name", CodePrefix: "fg-"})
	require.NoError(t, err)

	items, err := Collect(rows)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "Frame", items[0].Description)
}

func TestTemplateRoundTrip(t *testing.T) {
	f, err := GenerateTemplate(DefaultOptions())
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	items, err := parseAll(t, buf.Bytes(), "template.xlsx")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "SFG001", items[0].Code)
}

func parseAll(t *testing.T, data []byte, name string) ([]LineItem, error) {
	t.Helper()
	rows, err := Open(bytes.NewReader(data), name, DefaultOptions())
	if err != nil {
		return nil, err
	}
	return Collect(rows)
}
