package repository

import (
	"context"
	"errors"

	"github.com/ashtavinayaka/tankflow/internal/tank/entity"
	"gorm.io/gorm"
)

type GormProcessRepository struct {
	db *gorm.DB
}

func NewProcessRepository(db *gorm.DB) *GormProcessRepository {
	return &GormProcessRepository{db: db}
}

func (r *GormProcessRepository) CreateBatch(ctx context.Context, processes []*entity.Process) error {
	if len(processes) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(processes).Error
}

func (r *GormProcessRepository) FindByID(ctx context.Context, id string) (*entity.Process, error) {
	var process entity.Process
	err := r.db.WithContext(ctx).First(&process, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &process, nil
}

// FindByTankAndSerial 按储罐和序号查找工序（拖拽前的校验读取）
func (r *GormProcessRepository) FindByTankAndSerial(ctx context.Context, tankID, serialNo string) (*entity.Process, error) {
	var process entity.Process
	err := r.db.WithContext(ctx).
		Where("tank_id = ? AND serial_no = ?", tankID, serialNo).
		First(&process).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &process, nil
}

func (r *GormProcessRepository) List(ctx context.Context, filter ProcessFilter) ([]entity.Process, error) {
	query := r.db.WithContext(ctx).Model(&entity.Process{})
	if filter.TankID != "" {
		query = query.Where("tank_id = ?", filter.TankID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.QCCompleted != nil {
		query = query.Where("qc_completed = ?", *filter.QCCompleted)
	}
	if filter.FinalQCCompleted != nil {
		query = query.Where("final_qc_completed = ?", *filter.FinalQCCompleted)
	}

	var processes []entity.Process
	err := query.
		Order("added_at ASC, tank_id ASC, batch ASC, position ASC, id ASC").
		Find(&processes).Error
	return processes, err
}

func (r *GormProcessRepository) Save(ctx context.Context, process *entity.Process) error {
	result := r.db.WithContext(ctx).
		Model(process).
		Select("*").
		Omit("id", "added_at").
		Updates(process)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GormProcessRepository) SaveAll(ctx context.Context, processes []*entity.Process) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, p := range processes {
			if err := tx.Model(p).Select("*").Omit("id", "added_at").Updates(p).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
