package repository

import (
	"context"
	"errors"
	"time"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"gorm.io/gorm"
)

type GormTankRepository struct {
	db *gorm.DB
}

func NewTankRepository(db *gorm.DB) *GormTankRepository {
	return &GormTankRepository{db: db}
}

// CreateWithProcesses 在同一事务中写入储罐及其工序
func (r *GormTankRepository) CreateWithProcesses(ctx context.Context, tank *entity.Tank, processes []*entity.Process) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tank).Error; err != nil {
			return err
		}
		if len(processes) == 0 {
			return nil
		}
		return tx.Create(processes).Error
	})
}

func (r *GormTankRepository) FindByID(ctx context.Context, id string) (*entity.Tank, error) {
	var tank entity.Tank
	err := r.db.WithContext(ctx).First(&tank, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tank, nil
}

func (r *GormTankRepository) List(ctx context.Context) ([]entity.Tank, error) {
	var tanks []entity.Tank
	err := r.db.WithContext(ctx).
		Order("created_at ASC, id ASC").
		Find(&tanks).Error
	return tanks, err
}

func (r *GormTankRepository) UpdateStatus(ctx context.Context, id string, status entity.Status) error {
	result := r.db.WithContext(ctx).
		Model(&entity.Tank{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
