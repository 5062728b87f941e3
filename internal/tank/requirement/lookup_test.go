package requirement

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindIsCaseInsensitive(t *testing.T) {
	l := New([]entity.Requirement{
		{SFGCode: "sfg001", WorkersRequired: 4, TimeRequiredHrs: 5},
	})

	req, ok := l.Find("SFG001")
	require.True(t, ok)
	assert.Equal(t, 4, req.WorkersRequired)
	assert.Equal(t, 5.0, req.TimeRequiredHrs)

	_, ok = l.Find("SFG0011")
	assert.False(t, ok)
}

func TestFirstDuplicateWins(t *testing.T) {
	l := New([]entity.Requirement{
		{SFGCode: "SFG002", WorkersRequired: 3, TimeRequiredHrs: 6},
		{SFGCode: "sfg002", WorkersRequired: 9, TimeRequiredHrs: 9},
	})

	req, ok := l.Find("Sfg002")
	require.True(t, ok)
	assert.Equal(t, 3, req.WorkersRequired)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, []string{"sfg002"}, l.Duplicates())
}

func TestLoadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "time-required.json")
	doc := `{"tasks":[
		{"sfg_code":"SFG001","process_name":"Inner Shell Cutting","workers_required":4,"time_required_hrs":5},
		{"sfg_code":"SFG002","workers_required":2,"time_required_hrs":1.5}
	]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())

	req, ok := l.Find("sfg002")
	require.True(t, ok)
	assert.Equal(t, 1.5, req.TimeRequiredHrs)

	first, _ := l.Find("SFG001")
	assert.Equal(t, "Inner Shell Cutting", first.ProcessName)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "requirements.yaml")
	doc := "tasks:\n  - sfg_code: SFG010\n    workers_required: 2\n    time_required_hrs: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	l, err := Load(path)
	require.NoError(t, err)

	req, ok := l.Find("sfg010")
	require.True(t, ok)
	assert.Equal(t, 2, req.WorkersRequired)
}

func TestLoadRejectsMissingCode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks":[{"workers_required":1}]}`), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadRejectsHoursBeyondStoredPrecision(t *testing.T) {
	for name, hours := range map[string]string{
		"three decimals": "2.125",
		"too large":      "100000000",
	} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "hours.json")
			doc := `{"tasks":[{"sfg_code":"SFG001","workers_required":1,"time_required_hrs":` + hours + `}]}`
			require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

			_, err := Load(path)
			assert.Error(t, err)
		})
	}

	path := filepath.Join(t.TempDir(), "ok.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"tasks":[{"sfg_code":"SFG001","workers_required":1,"time_required_hrs":8.25}]}`), 0o644))
	l, err := Load(path)
	require.NoError(t, err)
	req, ok := l.Find("SFG001")
	require.True(t, ok)
	assert.Equal(t, 8.25, req.TimeRequiredHrs)
}
