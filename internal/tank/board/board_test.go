package board

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/handler"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository/jsonfile"
	"github.com/ashtavinayaka/tankflow/internal/tank/requirement"
	"github.com/ashtavinayaka/tankflow/internal/tank/service"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/ashtavinayaka/tankflow/internal/tank/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeClient struct {
	processes  []entity.Process
	observed   entity.Status
	setErr     error
	checkErr   error
	complete   bool
	setCalls   int
	checkCalls int
	// seen is the card status the board showed while the PATCH was in flight
	seen  entity.Status
	board *Board
}

func (f *fakeClient) Processes(context.Context) ([]entity.Process, error) {
	return f.processes, nil
}

func (f *fakeClient) Check(_ context.Context, tankID, serialNo string) (*Observed, error) {
	f.checkCalls++
	if f.checkErr != nil {
		return nil, f.checkErr
	}
	return &Observed{Status: f.observed}, nil
}

func (f *fakeClient) SetStatus(_ context.Context, processID string, status entity.Status) (*StatusResult, error) {
	f.setCalls++
	if f.board != nil {
		card, _ := f.board.Card(processID)
		f.seen = card.Status
	}
	if f.setErr != nil {
		return nil, f.setErr
	}
	for _, p := range f.processes {
		if p.ID == processID {
			p.SetStatus(status)
			return &StatusResult{Success: true, Process: &p, TankStatus: status}, nil
		}
	}
	return nil, apperror.NotFound("process %s not found", processID)
}

func (f *fakeClient) CompletionStatus(_ context.Context, tankID string) (*Completion, error) {
	return &Completion{TankID: tankID, IsComplete: f.complete}, nil
}

func newFakeBoard(t *testing.T, client *fakeClient, opts ...Option) *Board {
	t.Helper()
	client.processes = []entity.Process{
		{ID: "p1", TankID: "t1", SerialNo: "1.1", Status: entity.StatusOpen},
		{ID: "p2", TankID: "t1", SerialNo: "1.2", Status: entity.StatusOngoing},
	}
	b := New(client, opts...)
	client.board = b
	require.NoError(t, b.Load(context.Background()))
	return b
}

func TestLoadColumns(t *testing.T) {
	b := newFakeBoard(t, &fakeClient{})

	assert.Len(t, b.Column(entity.StatusOpen), 1)
	assert.Len(t, b.Column(entity.StatusOngoing), 1)
	assert.Empty(t, b.Column(entity.StatusQC))
}

func TestRequestStatusChangeApplies(t *testing.T) {
	client := &fakeClient{observed: entity.StatusOpen}
	b := newFakeBoard(t, client)

	p, err := b.RequestStatusChange(context.Background(), "p1", entity.StatusOngoing)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOngoing, p.Status)
	assert.Equal(t, entity.StatusOngoing, client.seen)
	assert.Equal(t, 1, client.checkCalls)

	card, ok := b.Card("p1")
	require.True(t, ok)
	assert.Equal(t, entity.StatusOngoing, card.Status)
	assert.Len(t, b.Column(entity.StatusOngoing), 2)
}

func TestRequestStatusChangeRollsBack(t *testing.T) {
	// the server moved p1 to ongoing since the board loaded
	client := &fakeClient{observed: entity.StatusOngoing, setErr: errors.New("connection reset")}
	b := newFakeBoard(t, client)

	_, err := b.RequestStatusChange(context.Background(), "p1", entity.StatusCompleted)
	require.Error(t, err)
	assert.Equal(t, entity.StatusCompleted, client.seen)

	card, _ := b.Card("p1")
	assert.Equal(t, entity.StatusOngoing, card.Status)
}

func TestRequestStatusChangeRejectsEarly(t *testing.T) {
	client := &fakeClient{observed: entity.StatusOpen}
	b := newFakeBoard(t, client)

	_, err := b.RequestStatusChange(context.Background(), "p1", entity.Status("paused"))
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = b.RequestStatusChange(context.Background(), "nope", entity.StatusOngoing)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	client.checkErr = apperror.NotFound("gone")
	_, err = b.RequestStatusChange(context.Background(), "p1", entity.StatusOngoing)
	assert.Error(t, err)
	assert.Zero(t, client.setCalls)

	card, _ := b.Card("p1")
	assert.Equal(t, entity.StatusOpen, card.Status)
}

func TestTankCompleteCallback(t *testing.T) {
	var completed []string
	client := &fakeClient{observed: entity.StatusOngoing, complete: true}
	b := newFakeBoard(t, client, OnTankComplete(func(tankID string) {
		completed = append(completed, tankID)
	}))

	_, err := b.RequestStatusChange(context.Background(), "p2", entity.StatusOngoing)
	require.NoError(t, err)
	assert.Empty(t, completed)

	_, err = b.RequestStatusChange(context.Background(), "p2", entity.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, completed)
}

func setupAPI(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := jsonfile.Open(filepath.Join(t.TempDir(), "tankflow.json"))
	require.NoError(t, err)

	lookup := requirement.New([]entity.Requirement{
		{SFGCode: "SFG001", ProcessName: "Shell Cutting", WorkersRequired: 4, TimeRequiredHrs: 5},
		{SFGCode: "SFG002", ProcessName: "Shell Rolling", WorkersRequired: 3, TimeRequiredHrs: 6},
	})
	hub := sse.NewHub(zap.NewNop())
	svc := service.NewServices(service.Deps{Repos: jsonfile.NewRepositories(db), Lookup: lookup, Publisher: hub})

	r := testutil.SetupRouter()
	handler.RegisterRoutes(r, handler.NewHandlers(svc, lookup, hub, handler.Options{
		UploadDir:     filepath.Join(t.TempDir(), "uploads"),
		MaxUploadSize: 1 << 20,
	}, zap.NewNop()))

	bomBytes := testutil.BOMWorkbook(t, []string{"No."}, []string{"SFG001"}, []string{"SFG002"})
	w := testutil.DoMultipart(r, "/api/tanks", map[string]string{
		"tankType":     "Water Tank",
		"capacity":     "25",
		"deliveryDate": "2026-11-30",
		"clientName":   "Municipal Works",
	}, "bom", "bom.xlsx", bomBytes)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestBoardAgainstAPI(t *testing.T) {
	srv := setupAPI(t)
	ctx := context.Background()

	var completed []string
	b := New(NewHTTPClient(srv.URL, srv.Client()), OnTankComplete(func(tankID string) {
		completed = append(completed, tankID)
	}))
	require.NoError(t, b.Load(ctx))

	open := b.Column(entity.StatusOpen)
	require.Len(t, open, 2)

	for _, card := range open {
		p, err := b.RequestStatusChange(ctx, card.ID, entity.StatusCompleted)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, p.Status)
	}
	assert.Equal(t, []string{open[0].TankID}, completed)
	assert.Len(t, b.Column(entity.StatusCompleted), 2)

	// reload reads what the server stored
	require.NoError(t, b.Load(ctx))
	assert.Len(t, b.Column(entity.StatusCompleted), 2)
}

func TestHTTPClientErrors(t *testing.T) {
	srv := setupAPI(t)
	client := NewHTTPClient(srv.URL+"/", nil)
	ctx := context.Background()

	_, err := client.SetStatus(ctx, "missing", entity.StatusOngoing)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusNotFound, appErr.HTTPStatus)

	processes, err := client.Processes(ctx)
	require.NoError(t, err)
	require.Len(t, processes, 2)

	_, err = client.SetStatus(ctx, processes[0].ID, entity.Status("paused"))
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	observed, err := client.Check(ctx, processes[0].TankID, "1.2")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, observed.Status)
	assert.Equal(t, processes[1].ID, observed.ProcessID)
}
