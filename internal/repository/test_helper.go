package repository

import (
	"context"
	"testing"

	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens an in-memory database with the full schema.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.Game{},
		&models.Player{},
		&models.Unit{},
		&models.UnitState{},
		&models.Objective{},
		&models.GameEvent{},
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
	})

	return db
}

// SeedTestGame creates a two-player game with one unit each.
func SeedTestGame(t *testing.T, db *gorm.DB) *models.Game {
	t.Helper()

	game := &models.Game{
		Code:       "TESTAB",
		Name:       "Test Battle",
		GameSystem: models.SystemGrimdarkFuture,
		Status:     models.StatusLobby,
		MaxRounds:  4,
	}
	require.NoError(t, db.Create(game).Error)

	for i, name := range []string{"Alice", "Bob"} {
		player := &models.Player{
			GameID: game.ID,
			Name:   name,
			IsHost: i == 0,
		}
		require.NoError(t, db.Create(player).Error)

		unit := &models.Unit{
			PlayerID: player.ID,
			Name:     name + "'s Squad",
			Quality:  4,
			Defense:  4,
			Size:     5,
			Tough:    1,
			Cost:     150,
		}
		require.NoError(t, db.Create(unit).Error)
		require.NoError(t, db.Create(&models.UnitState{
			UnitID:           unit.ID,
			ModelsRemaining:  unit.Size,
			DeploymentStatus: models.DeploymentDeployed,
		}).Error)
	}

	loaded, err := NewGameRepository(db).FindByCode(context.Background(), game.Code)
	require.NoError(t, err)
	return loaded
}
