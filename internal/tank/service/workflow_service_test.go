package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ashtavinayaka/tankflow/internal/tank/apperror"
	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/sse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleProcessCompletionSignalsTank(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.createTank(t, "SFG001")

	change, err := f.svc.Workflow.SetStatus(ctx, res.Processes[0].ID, "completed")
	require.NoError(t, err)
	assert.True(t, change.TankComplete)
	assert.Equal(t, entity.StatusOpen, change.PreviousStatus)
	assert.Equal(t, entity.StatusCompleted, change.TankStatus)

	status, err := f.svc.Workflow.CheckCompletion(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.True(t, status.IsComplete)
	assert.Equal(t, 1, status.Total)

	assert.Contains(t, f.publisher.types(), sse.EventTankUpdate)
}

func TestCompletionSignalOnlyWhenAllCompleted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.createTank(t, "SFG001", "SFG002", "SFG003")

	for i, p := range res.Processes {
		change, err := f.svc.Workflow.SetStatus(ctx, p.ID, "completed")
		require.NoError(t, err)
		assert.Equal(t, i == len(res.Processes)-1, change.TankComplete, "after %s", p.SerialNo)
	}

	// moving one back breaks completion
	change, err := f.svc.Workflow.SetStatus(ctx, res.Processes[1].ID, "ongoing")
	require.NoError(t, err)
	assert.False(t, change.TankComplete)
	assert.Equal(t, entity.StatusOngoing, change.TankStatus)

	status, err := f.svc.Workflow.CheckCompletion(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.False(t, status.IsComplete)
	assert.Equal(t, 2, status.Completed)
}

func TestStatusTransitionsArePermissive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTank(t, "SFG001").Processes[0].ID

	for _, st := range []string{"qc", "open", "completed", "ongoing", "open", "QC"} {
		change, err := f.svc.Workflow.SetStatus(ctx, id, st)
		require.NoError(t, err, st)
		got, _ := entity.ParseStatus(st)
		assert.Equal(t, got, change.Process.Status)
	}
}

func TestSetStatusErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTank(t, "SFG001").Processes[0].ID

	_, err := f.svc.Workflow.SetStatus(ctx, id, "done")
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = f.svc.Workflow.SetStatus(ctx, "missing", "open")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestTankStatusFollowsProcesses(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.createTank(t, "SFG001", "SFG002")

	_, err := f.svc.Workflow.SetStatus(ctx, res.Processes[0].ID, "ongoing")
	require.NoError(t, err)
	tank, err := f.repos.Tank.FindByID(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOngoing, tank.Status)

	_, err = f.svc.Workflow.SetStatus(ctx, res.Processes[0].ID, "open")
	require.NoError(t, err)
	tank, err = f.repos.Tank.FindByID(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, tank.Status)
}

func TestSetStatusBySerialAndVerify(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.createTank(t, "SFG001", "SFG002")

	p, err := f.svc.Workflow.VerifyStatus(ctx, res.Tank.ID, "1.2")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOpen, p.Status)

	change, err := f.svc.Workflow.SetStatusBySerial(ctx, res.Tank.ID, "1.2", "ongoing")
	require.NoError(t, err)
	assert.Equal(t, res.Processes[1].ID, change.Process.ID)

	p, err = f.svc.Workflow.VerifyStatus(ctx, res.Tank.ID, "1.2")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusOngoing, p.Status)

	_, err = f.svc.Workflow.VerifyStatus(ctx, res.Tank.ID, "9.9")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
	_, err = f.svc.Workflow.SetStatusBySerial(ctx, res.Tank.ID, "1.1", "bogus")
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestUpdateProgressBounds(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTank(t, "SFG001").Processes[0].ID

	for _, bad := range []float64{-1, 101, 50.5} {
		_, err := f.svc.Workflow.UpdateProgress(ctx, id, bad)
		assert.True(t, errors.Is(err, apperror.ErrValidation), "progress %v", bad)
	}

	for _, ok := range []float64{0, 100} {
		p, err := f.svc.Workflow.UpdateProgress(ctx, id, ok)
		require.NoError(t, err)
		assert.Equal(t, int(ok), p.Progress)

		stored, err := f.repos.Process.FindByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int(ok), stored.Progress)
		// stored regardless of status
		assert.Equal(t, entity.StatusOpen, stored.Status)
	}

	_, err := f.svc.Workflow.UpdateProgress(ctx, "missing", 10)
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestCheckCompletionEdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Workflow.CheckCompletion(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	empty := f.createTank(t)
	status, err := f.svc.Workflow.CheckCompletion(ctx, empty.Tank.ID)
	require.NoError(t, err)
	assert.False(t, status.IsComplete)
}

func TestCompleteQC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.createTank(t, "SFG001").Processes[0].ID

	_, err := f.svc.Workflow.CompleteQC(ctx, id)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	_, err = f.svc.Workflow.SetStatus(ctx, id, "completed")
	require.NoError(t, err)
	p, err := f.svc.Workflow.CompleteQC(ctx, id)
	require.NoError(t, err)
	assert.True(t, p.QCCompleted)
	assert.False(t, p.FinalQCCompleted)

	// leaving completed clears the QC flags
	change, err := f.svc.Workflow.SetStatus(ctx, id, "ongoing")
	require.NoError(t, err)
	assert.False(t, change.Process.QCCompleted)
}

func TestBookFinalQC(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.createTank(t, "SFG001", "SFG002")

	_, err := f.svc.Workflow.BookFinalQC(ctx, res.Tank.ID)
	assert.True(t, errors.Is(err, apperror.ErrValidation))

	for _, p := range res.Processes {
		_, err := f.svc.Workflow.SetStatus(ctx, p.ID, "completed")
		require.NoError(t, err)
	}

	out, err := f.svc.Workflow.BookFinalQC(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.False(t, out.AlreadyBooked)
	assert.Equal(t, 2, out.Processes)
	assert.Equal(t, entity.StatusQC, out.Tank.Status)

	for _, p := range res.Processes {
		stored, err := f.repos.Process.FindByID(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, stored.QCCompleted)
		assert.True(t, stored.FinalQCCompleted)
		assert.Equal(t, entity.StatusCompleted, stored.Status)
	}

	again, err := f.svc.Workflow.BookFinalQC(ctx, res.Tank.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadyBooked)

	// qc tank stays qc while everything is still completed
	change, err := f.svc.Workflow.SetStatus(ctx, res.Processes[0].ID, "completed")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusQC, change.TankStatus)
}

func TestBookFinalQCErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Workflow.BookFinalQC(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))

	empty := f.createTank(t)
	_, err = f.svc.Workflow.BookFinalQC(ctx, empty.Tank.ID)
	assert.True(t, errors.Is(err, apperror.ErrValidation))
}

func TestDeriveTankStatus(t *testing.T) {
	procs := func(statuses ...entity.Status) []entity.Process {
		out := make([]entity.Process, len(statuses))
		for i, s := range statuses {
			out[i].Status = s
		}
		return out
	}

	cases := []struct {
		name     string
		current  entity.Status
		in       []entity.Process
		want     entity.Status
		complete bool
	}{
		{"no processes", entity.StatusOpen, nil, entity.StatusOpen, false},
		{"all open", entity.StatusOngoing, procs(entity.StatusOpen, entity.StatusOpen), entity.StatusOpen, false},
		{"one ongoing", entity.StatusOpen, procs(entity.StatusOpen, entity.StatusOngoing), entity.StatusOngoing, false},
		{"one in qc column", entity.StatusOpen, procs(entity.StatusQC, entity.StatusOpen), entity.StatusOngoing, false},
		{"all completed", entity.StatusOngoing, procs(entity.StatusCompleted, entity.StatusCompleted), entity.StatusCompleted, true},
		{"booked stays qc", entity.StatusQC, procs(entity.StatusCompleted), entity.StatusQC, true},
		{"booked reopened", entity.StatusQC, procs(entity.StatusCompleted, entity.StatusOngoing), entity.StatusOngoing, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, complete := DeriveTankStatus(tc.current, tc.in)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.complete, complete)
		})
	}
}
