package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// TankRepository persists tanks. CreateWithProcesses stores a tank together
// with the first batch of processes derived from its BOM.
type TankRepository interface {
	CreateWithProcesses(ctx context.Context, tank *entity.Tank, processes []*entity.Process) error
	FindByID(ctx context.Context, id string) (*entity.Tank, error)
	List(ctx context.Context) ([]entity.Tank, error)
	UpdateStatus(ctx context.Context, id string, status entity.Status) error
}

// ProcessRepository persists process cards. List returns processes ordered
// by added time, tank, batch and position so repeated reads are stable.
type ProcessRepository interface {
	CreateBatch(ctx context.Context, processes []*entity.Process) error
	FindByID(ctx context.Context, id string) (*entity.Process, error)
	FindByTankAndSerial(ctx context.Context, tankID, serialNo string) (*entity.Process, error)
	List(ctx context.Context, filter ProcessFilter) ([]entity.Process, error)
	Save(ctx context.Context, process *entity.Process) error
	SaveAll(ctx context.Context, processes []*entity.Process) error
}

// ProcessFilter narrows List. Zero values match everything.
type ProcessFilter struct {
	TankID           string
	Status           entity.Status
	QCCompleted      *bool
	FinalQCCompleted *bool
}

// Match applies the filter in memory.
func (f ProcessFilter) Match(p *entity.Process) bool {
	if f.TankID != "" && p.TankID != f.TankID {
		return false
	}
	if f.Status != "" && p.Status != f.Status {
		return false
	}
	if f.QCCompleted != nil && p.QCCompleted != *f.QCCompleted {
		return false
	}
	if f.FinalQCCompleted != nil && p.FinalQCCompleted != *f.FinalQCCompleted {
		return false
	}
	return true
}

// SortProcesses applies the List ordering to an in-memory slice.
func SortProcesses(processes []entity.Process) {
	sort.SliceStable(processes, func(i, j int) bool {
		a, b := processes[i], processes[j]
		if !a.AddedAt.Equal(b.AddedAt) {
			return a.AddedAt.Before(b.AddedAt)
		}
		if a.TankID != b.TankID {
			return a.TankID < b.TankID
		}
		if a.Batch != b.Batch {
			return a.Batch < b.Batch
		}
		if a.Position != b.Position {
			return a.Position < b.Position
		}
		return a.ID < b.ID
	})
}

// Bool is a helper for building filters.
func Bool(v bool) *bool {
	return &v
}

// Repositories 仓库集合
type Repositories struct {
	Tank    TankRepository
	Process ProcessRepository
}

// NewRepositories builds the postgres-backed repositories.
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Tank:    NewTankRepository(db),
		Process: NewProcessRepository(db),
	}
}

// AutoMigrate creates the tanks and processes tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&entity.Tank{}, &entity.Process{})
}
