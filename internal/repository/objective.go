package repository

import (
	"context"

	"github.com/otahak/herald/internal/models"
	"gorm.io/gorm"
)

// ObjectiveRepository persists objective markers.
type ObjectiveRepository interface {
	BaseRepository
	CreateBatch(ctx context.Context, objectives []*models.Objective) error
	Save(ctx context.Context, objective *models.Objective) error
	CountByGame(ctx context.Context, gameID string) (int64, error)
}

type objectiveRepo struct {
	*BaseRepo
}

// NewObjectiveRepository creates the objective repository.
func NewObjectiveRepository(db *gorm.DB) ObjectiveRepository {
	return &objectiveRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

func (r *objectiveRepo) CreateBatch(ctx context.Context, objectives []*models.Objective) error {
	if len(objectives) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(objectives).Error
}

func (r *objectiveRepo) Save(ctx context.Context, objective *models.Objective) error {
	return r.db.WithContext(ctx).Save(objective).Error
}

func (r *objectiveRepo) CountByGame(ctx context.Context, gameID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Objective{}).
		Where("game_id = ?", gameID).
		Count(&count).Error
	return count, err
}

func (r *objectiveRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &objectiveRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
