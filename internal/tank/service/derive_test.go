package service

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/bom"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func csvRows(t *testing.T, data string) *bom.Rows {
	t.Helper()
	rows, err := bom.OpenCSV(strings.NewReader(data), bom.DefaultOptions())
	require.NoError(t, err)
	return rows
}

func testTank() *entity.Tank {
	return &entity.Tank{ID: "tank-1", TankType: "Acid Storage Tank", Capacity: decimal.NewFromInt(10)}
}

func lookupWithoutNames() *requirement.Lookup {
	return requirement.New([]entity.Requirement{{SFGCode: "SFG009", WorkersRequired: 1, TimeRequiredHrs: 1}})
}

func TestDeriveAcidStorageTank(t *testing.T) {
	rows := csvRows(t, "No.,Description\nSFG001,Inner Shell Cutting\nOTHER1,\n")
	now := time.Now()

	processes, diags, err := DeriveProcesses(testTank(), 1, rows, defaultLookup(), now)
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Empty(t, diags)

	p := processes[0]
	assert.Equal(t, "1.1", p.SerialNo)
	assert.Equal(t, 4, p.Workers)
	assert.Equal(t, 5.0, p.TimeToComplete)
	assert.Equal(t, entity.StatusOpen, p.Status)
	assert.Equal(t, 0, p.Progress)
	assert.False(t, p.QCCompleted)
	assert.False(t, p.FinalQCCompleted)
	assert.Equal(t, "Inner Shell Cutting", p.ProcessName)
	assert.Equal(t, "Acid Storage Tank - 10KL", p.TankName)
	assert.Equal(t, "tank-1", p.TankID)
	assert.Equal(t, now, p.AddedAt)
	assert.Len(t, p.ID, 32)
}

func TestDeriveSerialsIncreaseByPosition(t *testing.T) {
	rows := csvRows(t, "No.\nSFG003\nBOLT\nsfg001\nSFG999\nSFG002\n")

	processes, diags, err := DeriveProcesses(testTank(), 2, rows, defaultLookup(), time.Now())
	require.NoError(t, err)

	var serials, codes []string
	for _, p := range processes {
		serials = append(serials, p.SerialNo)
		codes = append(codes, p.SFGCode)
		assert.Equal(t, 2, p.Batch)
	}
	assert.Equal(t, []string{"2.1", "2.2", "2.3"}, serials)
	assert.Equal(t, []string{"SFG003", "sfg001", "SFG002"}, codes)

	require.Len(t, diags, 1)
	assert.Equal(t, Diagnostic{Row: 5, Code: "SFG999", Reason: ReasonNoRequirement}, diags[0])
}

func TestDeriveProcessNameFallback(t *testing.T) {
	rows := csvRows(t, "No.,Description\nSFG002,\n")

	processes, _, err := DeriveProcesses(testTank(), 1, rows, defaultLookup(), time.Now())
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, "Shell Rolling", processes[0].ProcessName)

	rows = csvRows(t, "No.\nSFG009\n")
	processes, _, err = DeriveProcesses(testTank(), 1, rows, lookupWithoutNames(), time.Now())
	require.NoError(t, err)
	require.Len(t, processes, 1)
	assert.Equal(t, "SFG009", processes[0].ProcessName)
}

func TestDeriveNoPrefixNoProcess(t *testing.T) {
	rows := csvRows(t, "No.\nXSFG001\nFG001\n")

	processes, diags, err := DeriveProcesses(testTank(), 1, rows, defaultLookup(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, processes)
	assert.Empty(t, diags)
	assert.NotNil(t, processes)
}

type failingItems struct{ err error }

func (f failingItems) Next() bool         { return false }
func (f failingItems) Item() bom.LineItem { return bom.LineItem{} }
func (f failingItems) Err() error         { return f.err }

func TestDerivePropagatesReadError(t *testing.T) {
	boom := errors.New("boom")
	_, _, err := DeriveProcesses(testTank(), 1, failingItems{err: boom}, defaultLookup(), time.Now())
	assert.ErrorIs(t, err, boom)
}
