// Package repositorytest holds the behaviour every store backend must share.
package repositorytest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"github.com/ashtavinayaka/tankflow/internal/tank/repository"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// NewTank returns an unsaved tank.
func NewTank(tankType string, capacity int64) *entity.Tank {
	now := time.Now().Truncate(time.Millisecond)
	return &entity.Tank{
		ID:           uuid.New().String()[:32],
		TankType:     tankType,
		Capacity:     decimal.NewFromInt(capacity),
		DeliveryDate: now.AddDate(0, 1, 0),
		ClientName:   "Shree Chemicals",
		Status:       entity.StatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// NewProcess returns an unsaved process of tank at batch.position.
func NewProcess(tank *entity.Tank, batch, position int, code string) *entity.Process {
	now := time.Now().Truncate(time.Millisecond)
	return &entity.Process{
		ID:             uuid.New().String()[:32],
		TankID:         tank.ID,
		TankName:       tank.DisplayName(),
		ProcessName:    "Process " + code,
		SerialNo:       entity.FormatSerial(batch, position),
		Batch:          batch,
		Position:       position,
		SFGCode:        code,
		Workers:        position,
		TimeToComplete: float64(position) * 1.5,
		Status:         entity.StatusOpen,
		AddedAt:        now,
		UpdatedAt:      now,
	}
}

// Run exercises a Repositories implementation. newRepos must return an empty store.
func Run(t *testing.T, newRepos func(t *testing.T) *repository.Repositories) {
	t.Run("CreateAndFind", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		tank := NewTank("Acid Storage Tank", 10)
		p1 := NewProcess(tank, 1, 1, "SFG001")
		p2 := NewProcess(tank, 1, 2, "SFG002")
		require.NoError(t, repos.Tank.CreateWithProcesses(ctx, tank, []*entity.Process{p1, p2}))

		got, err := repos.Tank.FindByID(ctx, tank.ID)
		require.NoError(t, err)
		assert.Equal(t, "Acid Storage Tank", got.TankType)
		assert.True(t, got.Capacity.Equal(decimal.NewFromInt(10)))
		assert.Equal(t, entity.StatusOpen, got.Status)

		bySerial, err := repos.Process.FindByTankAndSerial(ctx, tank.ID, "1.2")
		require.NoError(t, err)
		assert.Equal(t, p2.ID, bySerial.ID)
		assert.Equal(t, "SFG002", bySerial.SFGCode)
		assert.Equal(t, 3.0, bySerial.TimeToComplete)

		byID, err := repos.Process.FindByID(ctx, p1.ID)
		require.NoError(t, err)
		assert.Equal(t, "1.1", byID.SerialNo)
		assert.Equal(t, "Acid Storage Tank - 10KL", byID.TankName)
	})

	t.Run("NotFound", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		_, err := repos.Tank.FindByID(ctx, "missing")
		assert.True(t, errors.Is(err, repository.ErrNotFound))

		_, err = repos.Process.FindByID(ctx, "missing")
		assert.True(t, errors.Is(err, repository.ErrNotFound))

		_, err = repos.Process.FindByTankAndSerial(ctx, "missing", "1.1")
		assert.True(t, errors.Is(err, repository.ErrNotFound))

		err = repos.Tank.UpdateStatus(ctx, "missing", entity.StatusOngoing)
		assert.True(t, errors.Is(err, repository.ErrNotFound))

		tank := NewTank("Ghost", 1)
		err = repos.Process.Save(ctx, NewProcess(tank, 1, 1, "SFG001"))
		assert.True(t, errors.Is(err, repository.ErrNotFound))
	})

	t.Run("TankWithoutProcesses", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		tank := NewTank("Water Tank", 5)
		require.NoError(t, repos.Tank.CreateWithProcesses(ctx, tank, nil))

		tanks, err := repos.Tank.List(ctx)
		require.NoError(t, err)
		require.Len(t, tanks, 1)

		processes, err := repos.Process.List(ctx, repository.ProcessFilter{TankID: tank.ID})
		require.NoError(t, err)
		assert.Empty(t, processes)
	})

	t.Run("SaveAndFilter", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		tank := NewTank("Reactor", 20)
		p1 := NewProcess(tank, 1, 1, "SFG001")
		p2 := NewProcess(tank, 1, 2, "SFG002")
		p3 := NewProcess(tank, 1, 3, "SFG003")
		require.NoError(t, repos.Tank.CreateWithProcesses(ctx, tank, []*entity.Process{p1, p2, p3}))

		p1.Status = entity.StatusCompleted
		p1.Progress = 100
		require.NoError(t, repos.Process.Save(ctx, p1))

		p2.Status = entity.StatusCompleted
		p2.QCCompleted = true
		p3.Status = entity.StatusOngoing
		p3.Progress = 40
		require.NoError(t, repos.Process.SaveAll(ctx, []*entity.Process{p2, p3}))

		completed, err := repos.Process.List(ctx, repository.ProcessFilter{Status: entity.StatusCompleted})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID, p2.ID}, ids(completed))

		pending, err := repos.Process.List(ctx, repository.ProcessFilter{
			Status:      entity.StatusCompleted,
			QCCompleted: repository.Bool(false),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{p1.ID}, ids(pending))

		finalQC, err := repos.Process.List(ctx, repository.ProcessFilter{
			Status:           entity.StatusCompleted,
			QCCompleted:      repository.Bool(true),
			FinalQCCompleted: repository.Bool(false),
		})
		require.NoError(t, err)
		assert.Equal(t, []string{p2.ID}, ids(finalQC))

		got, err := repos.Process.FindByID(ctx, p3.ID)
		require.NoError(t, err)
		assert.Equal(t, 40, got.Progress)
		assert.Equal(t, entity.StatusOngoing, got.Status)
	})

	t.Run("UpdateTankStatus", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		tank := NewTank("Mixing Vessel", 3)
		require.NoError(t, repos.Tank.CreateWithProcesses(ctx, tank, nil))
		require.NoError(t, repos.Tank.UpdateStatus(ctx, tank.ID, entity.StatusCompleted))

		got, err := repos.Tank.FindByID(ctx, tank.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.StatusCompleted, got.Status)
	})

	t.Run("AppendBatchAndStableOrder", func(t *testing.T) {
		repos := newRepos(t)
		ctx := context.Background()

		tank := NewTank("Storage Tank", 50)
		first := []*entity.Process{NewProcess(tank, 1, 1, "SFG001"), NewProcess(tank, 1, 2, "SFG002")}
		require.NoError(t, repos.Tank.CreateWithProcesses(ctx, tank, first))

		second := []*entity.Process{NewProcess(tank, 2, 1, "SFG005")}
		second[0].AddedAt = second[0].AddedAt.Add(time.Second)
		require.NoError(t, repos.Process.CreateBatch(ctx, second))

		a, err := repos.Process.List(ctx, repository.ProcessFilter{})
		require.NoError(t, err)
		b, err := repos.Process.List(ctx, repository.ProcessFilter{})
		require.NoError(t, err)

		assert.Equal(t, []string{first[0].ID, first[1].ID, second[0].ID}, ids(a))
		assert.Equal(t, ids(a), ids(b))
	})
}

func ids(processes []entity.Process) []string {
	out := make([]string, len(processes))
	for i, p := range processes {
		out[i] = p.ID
	}
	return out
}
