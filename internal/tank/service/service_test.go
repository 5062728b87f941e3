package service

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository/jsonfile"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/ashtavinayaka/tankflow/internal/tank/testutil"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingPublisher) Publish(_ context.Context, ev sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingPublisher) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

type fakeArchiver struct {
	keys []string
}

func (a *fakeArchiver) Store(_ context.Context, tankID string, batch int, filename, path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	key := tankID + "/" + filename
	a.keys = append(a.keys, key)
	return key, nil
}

type fixture struct {
	svc       *Services
	repos     *repository.Repositories
	publisher *recordingPublisher
	archiver  *fakeArchiver
}

func defaultLookup() *requirement.Lookup {
	return requirement.New([]entity.Requirement{
		{SFGCode: "sfg001", ProcessName: "Shell Cutting", WorkersRequired: 4, TimeRequiredHrs: 5},
		{SFGCode: "SFG002", ProcessName: "Shell Rolling", WorkersRequired: 3, TimeRequiredHrs: 6},
		{SFGCode: "SFG003", ProcessName: "Long Seam Welding", WorkersRequired: 2, TimeRequiredHrs: 8.5},
	})
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := jsonfile.Open(filepath.Join(t.TempDir(), "tankflow.json"))
	require.NoError(t, err)

	f := &fixture{
		repos:     jsonfile.NewRepositories(db),
		publisher: &recordingPublisher{},
		archiver:  &fakeArchiver{},
	}
	f.svc = NewServices(Deps{
		Repos:     f.repos,
		Lookup:    defaultLookup(),
		Publisher: f.publisher,
		Archiver:  f.archiver,
	})
	return f
}

// bomFile writes an xlsx BOM to disk. rows[0] is the header.
func bomFile(t *testing.T, rows ...[]string) BOMFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, os.WriteFile(path, testutil.BOMWorkbook(t, rows...), 0o644))
	return BOMFile{Filename: "bom.xlsx", Path: path}
}

func validInput() *CreateTankInput {
	return &CreateTankInput{
		TankType:     "Acid Storage Tank",
		Capacity:     "10",
		DeliveryDate: "2026-12-01",
		ClientName:   "Shree Chemicals",
	}
}

// createTank submits a tank whose BOM lists codes in order.
func (f *fixture) createTank(t *testing.T, codes ...string) *SubmissionResult {
	t.Helper()
	rows := [][]string{{"No.", "Description"}}
	for _, c := range codes {
		rows = append(rows, []string{c, ""})
	}
	res, err := f.svc.Tank.CreateTank(context.Background(), validInput(), bomFile(t, rows...))
	require.NoError(t, err)
	return res
}
