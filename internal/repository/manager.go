package repository

import (
	"context"

	"gorm.io/gorm"
)

// Manager bundles all repositories over one handle.
type Manager struct {
	db *gorm.DB

	Games      GameRepository
	Players    PlayerRepository
	Units      UnitRepository
	Objectives ObjectiveRepository
	Events     EventRepository
}

// NewManager builds all repositories.
func NewManager(db *gorm.DB) *Manager {
	return &Manager{
		db:         db,
		Games:      NewGameRepository(db),
		Players:    NewPlayerRepository(db),
		Units:      NewUnitRepository(db),
		Objectives: NewObjectiveRepository(db),
		Events:     NewEventRepository(db),
	}
}

// DB returns the shared handle.
func (m *Manager) DB() *gorm.DB {
	return m.db
}

// Transaction runs fn with a manager bound to one transaction.
func (m *Manager) Transaction(ctx context.Context, fn func(txm *Manager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewManager(tx))
	})
}
