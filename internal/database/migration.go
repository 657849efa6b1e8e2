package database

import (
	"fmt"
	"strings"

	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/models"
	"go.uber.org/zap"
)

// AutoMigrate creates or updates the schema.
func AutoMigrate() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	migrationModels := []interface{}{
		&models.Game{},
		&models.Player{},
		&models.Unit{},
		&models.UnitState{},
		&models.Objective{},
		&models.GameEvent{},
	}

	logger.Info("running database migration")

	if DB.Dialector.Name() == "sqlite" {
		// avoid rebuild issues when gorm recreates tables
		DB.Exec("PRAGMA foreign_keys = OFF")
		defer DB.Exec("PRAGMA foreign_keys = ON")
	}

	for _, model := range migrationModels {
		if err := DB.AutoMigrate(model); err != nil {
			logger.Error("migration failed",
				zap.String("model", fmt.Sprintf("%T", model)),
				zap.Error(err),
			)
			return err
		}
	}

	if err := createIndexes(); err != nil {
		return err
	}

	logger.Info("database migration complete")
	return nil
}

func createIndexes() error {
	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_games_status ON games(status)",
		"CREATE INDEX IF NOT EXISTS idx_games_last_activity_at ON games(last_activity_at)",
		"CREATE INDEX IF NOT EXISTS idx_players_game_id ON players(game_id)",
		"CREATE INDEX IF NOT EXISTS idx_units_player_id ON units(player_id)",
		"CREATE INDEX IF NOT EXISTS idx_units_attached_to_unit_id ON units(attached_to_unit_id)",
		"CREATE INDEX IF NOT EXISTS idx_objectives_game_id ON objectives(game_id)",
		"CREATE INDEX IF NOT EXISTS idx_game_events_game_id ON game_events(game_id)",
		"CREATE INDEX IF NOT EXISTS idx_game_events_event_type ON game_events(event_type)",
		"CREATE INDEX IF NOT EXISTS idx_game_events_target_unit_id ON game_events(target_unit_id)",
		"CREATE INDEX IF NOT EXISTS idx_game_events_created_at ON game_events(created_at)",
	}

	for _, idx := range indexes {
		if err := DB.Exec(idx).Error; err != nil {
			if !strings.Contains(err.Error(), "already exists") {
				logger.Warn("index creation failed", zap.String("index", idx), zap.Error(err))
			}
		}
	}

	return nil
}

// DropAllTables removes every table. Test environments only.
func DropAllTables() error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	var tables []string
	if err := DB.Raw("SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'").Scan(&tables).Error; err != nil {
		return err
	}

	for _, table := range tables {
		if err := DB.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table)).Error; err != nil {
			logger.Error("drop table failed", zap.String("table", table), zap.Error(err))
			return err
		}
	}

	return nil
}
