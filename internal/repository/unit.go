package repository

import (
	"context"

	"github.com/otahak/herald/internal/models"
	"gorm.io/gorm"
)

// UnitRepository persists units and their mutable state.
type UnitRepository interface {
	BaseRepository
	Create(ctx context.Context, unit *models.Unit) error
	CreateBatch(ctx context.Context, units []*models.Unit) error
	Save(ctx context.Context, unit *models.Unit) error
	SaveState(ctx context.Context, state *models.UnitState) error
	FindByID(ctx context.Context, id string) (*models.Unit, error)
	FindByPlayer(ctx context.Context, playerID string) ([]*models.Unit, error)
	DeleteByPlayer(ctx context.Context, playerID string) (int64, error)
}

type unitRepo struct {
	*BaseRepo
}

// NewUnitRepository creates the unit repository.
func NewUnitRepository(db *gorm.DB) UnitRepository {
	return &unitRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

func (r *unitRepo) Create(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

func (r *unitRepo) CreateBatch(ctx context.Context, units []*models.Unit) error {
	if len(units) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(units).Error
}

func (r *unitRepo) Save(ctx context.Context, unit *models.Unit) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(unit).Error
}

func (r *unitRepo) SaveState(ctx context.Context, state *models.UnitState) error {
	return r.db.WithContext(ctx).Save(state).Error
}

func (r *unitRepo) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	var unit models.Unit
	err := r.db.WithContext(ctx).
		Preload("State").
		Where("id = ?", id).
		First(&unit).Error
	if err != nil {
		return nil, err
	}
	return &unit, nil
}

func (r *unitRepo) FindByPlayer(ctx context.Context, playerID string) ([]*models.Unit, error) {
	var units []*models.Unit
	err := r.db.WithContext(ctx).
		Preload("State").
		Where("player_id = ?", playerID).
		Order("created_at").
		Find(&units).Error
	return units, err
}

// DeleteByPlayer removes a player's units and their states, clearing any
// attachments pointing at them first.
func (r *unitRepo) DeleteByPlayer(ctx context.Context, playerID string) (int64, error) {
	var removed int64
	err := r.Transaction(ctx, func(tx *gorm.DB) error {
		var ids []string
		if err := tx.Model(&models.Unit{}).
			Where("player_id = ?", playerID).
			Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		if err := tx.Model(&models.Unit{}).
			Where("attached_to_unit_id IN ?", ids).
			Update("attached_to_unit_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("unit_id IN ?", ids).
			Delete(&models.UnitState{}).Error; err != nil {
			return err
		}
		result := tx.Where("id IN ?", ids).Delete(&models.Unit{})
		removed = result.RowsAffected
		return result.Error
	})
	return removed, err
}

func (r *unitRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &unitRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
