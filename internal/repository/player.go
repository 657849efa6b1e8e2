package repository

import (
	"context"

	"github.com/otahak/herald/internal/models"
	"gorm.io/gorm"
)

// PlayerRepository persists players.
type PlayerRepository interface {
	BaseRepository
	Create(ctx context.Context, player *models.Player) error
	Save(ctx context.Context, player *models.Player) error
	FindByID(ctx context.Context, id string) (*models.Player, error)
	SetConnected(ctx context.Context, playerID string, connected bool) error
	AnyConnected(ctx context.Context, gameID string) (bool, error)
}

type playerRepo struct {
	*BaseRepo
}

// NewPlayerRepository creates the player repository.
func NewPlayerRepository(db *gorm.DB) PlayerRepository {
	return &playerRepo{
		BaseRepo: NewBaseRepo(db),
	}
}

func (r *playerRepo) Create(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Create(player).Error
}

func (r *playerRepo) Save(ctx context.Context, player *models.Player) error {
	return r.db.WithContext(ctx).Save(player).Error
}

func (r *playerRepo) FindByID(ctx context.Context, id string) (*models.Player, error) {
	var player models.Player
	err := r.db.WithContext(ctx).
		Preload("Units").
		Preload("Units.State").
		Where("id = ?", id).
		First(&player).Error
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (r *playerRepo) SetConnected(ctx context.Context, playerID string, connected bool) error {
	return r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("id = ?", playerID).
		Update("is_connected", connected).Error
}

func (r *playerRepo) AnyConnected(ctx context.Context, gameID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Player{}).
		Where("game_id = ? AND is_connected = ?", gameID, true).
		Count(&count).Error
	return count > 0, err
}

func (r *playerRepo) WithTx(tx *gorm.DB) BaseRepository {
	return &playerRepo{
		BaseRepo: &BaseRepo{db: tx},
	}
}
