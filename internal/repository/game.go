package repository

import (
	"context"
	"time"

	"github.com/otahak/herald/internal/models"
	"gorm.io/gorm"
)

// GameRepository persists game sessions and their object graph.
type GameRepository interface {
	BaseRepository
	Create(ctx context.Context, game *models.Game) error
	Save(ctx context.Context, game *models.Game) error
	FindByID(ctx context.Context, id string) (*models.Game, error)
	FindByCode(ctx context.Context, code string) (*models.Game, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	TouchActivity(ctx context.Context, gameID string, at time.Time) error
	Delete(ctx context.Context, id string) error
	FindIdle(ctx context.Context, p *Pagination) ([]*models.Game, error)
	MarkExpired(ctx context.Context, gameID string) error
	CleanupExpired(ctx context.Context, deleteBefore time.Time) (int64, error)
}

type gameRepo struct {
	*BaseRepo
}

// NewGameRepository creates the game repository.
func NewGameRepository(db *gorm.DB) GameRepository {
	return &gameRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

func (r *gameRepo) Create(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Create(game).Error
}

func (r *gameRepo) Save(ctx context.Context, game *models.Game) error {
	return r.db.WithContext(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(game).Error
}

// withGraph preloads the full session graph in stable order.
func withGraph(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Players", func(db *gorm.DB) *gorm.DB {
			return db.Order("players.created_at")
		}).
		Preload("Players.Units", func(db *gorm.DB) *gorm.DB {
			return db.Order("units.created_at")
		}).
		Preload("Players.Units.State").
		Preload("Objectives", func(db *gorm.DB) *gorm.DB {
			return db.Order("objectives.marker_number")
		})
}

func (r *gameRepo) FindByID(ctx context.Context, id string) (*models.Game, error) {
	var game models.Game
	err := withGraph(r.db.WithContext(ctx)).
		Where("id = ?", id).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepo) FindByCode(ctx context.Context, code string) (*models.Game, error) {
	var game models.Game
	err := withGraph(r.db.WithContext(ctx)).
		Where("code = ?", code).
		First(&game).Error
	if err != nil {
		return nil, err
	}
	return &game, nil
}

func (r *gameRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("code = ?", code).
		Count(&count).Error
	return count > 0, err
}

func (r *gameRepo) TouchActivity(ctx context.Context, gameID string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", gameID).
		Update("last_activity_at", at).Error
}

func (r *gameRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).
		Select("Players", "Objectives", "Events").
		Delete(&models.Game{BaseModel: models.BaseModel{ID: id}}).Error
}

// FindIdle lists non-terminal games oldest activity first, so a sweeper can
// re-check their expiration.
func (r *gameRepo) FindIdle(ctx context.Context, p *Pagination) ([]*models.Game, error) {
	var games []*models.Game

	q := r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("status NOT IN ?", []models.GameStatus{models.StatusCompleted, models.StatusExpired})
	q.Count(&p.Total)

	err := q.
		Order("last_activity_at").
		Scopes(Paginate(p)).
		Find(&games).Error

	return games, err
}

func (r *gameRepo) MarkExpired(ctx context.Context, gameID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Game{}).
		Where("id = ?", gameID).
		Update("status", models.StatusExpired).Error
}

// CleanupExpired hard-deletes expired games whose last activity is older
// than deleteBefore.
func (r *gameRepo) CleanupExpired(ctx context.Context, deleteBefore time.Time) (int64, error) {
	var stale []*models.Game
	err := r.db.WithContext(ctx).
		Where("status = ? AND last_activity_at < ?", models.StatusExpired, deleteBefore).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	var removed int64
	for _, game := range stale {
		if err := r.Delete(ctx, game.ID); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

func (r *gameRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &gameRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
