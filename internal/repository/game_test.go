package repository

import (
	"context"
	"testing"
	"time"

	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestGameRepository_CreateAndFindByCode(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	game := &models.Game{
		Code:       "ABC234",
		Name:       "Friday Night Battle",
		GameSystem: models.SystemGrimdarkFuture,
		Status:     models.StatusLobby,
		MaxRounds:  4,
	}
	require.NoError(t, repo.Create(ctx, game))
	assert.NotEmpty(t, game.ID)

	found, err := repo.FindByCode(ctx, "ABC234")
	require.NoError(t, err)
	assert.Equal(t, game.ID, found.ID)
	assert.Equal(t, "Friday Night Battle", found.Name)

	_, err = repo.FindByCode(ctx, "NOPE99")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestGameRepository_FindByCodePreloadsGraph(t *testing.T) {
	db := SetupTestDB(t)
	game := SeedTestGame(t, db)

	require.Len(t, game.Players, 2)
	assert.Equal(t, "Alice", game.Players[0].Name)
	require.Len(t, game.Players[0].Units, 1)
	require.NotNil(t, game.Players[0].Units[0].State)
	assert.Equal(t, 5, game.Players[0].Units[0].State.ModelsRemaining)
}

func TestGameRepository_CodeExists(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	SeedTestGame(t, db)

	exists, err := repo.CodeExists(ctx, "TESTAB")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.CodeExists(ctx, "FRESH2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestGameRepository_TouchActivity(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	game := SeedTestGame(t, db)
	require.Nil(t, game.LastActivityAt)

	at := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.TouchActivity(ctx, game.ID, at))

	found, err := repo.FindByID(ctx, game.ID)
	require.NoError(t, err)
	require.NotNil(t, found.LastActivityAt)
	assert.WithinDuration(t, at, *found.LastActivityAt, time.Second)
}

func TestGameRepository_CleanupExpired(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	game := SeedTestGame(t, db)
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, repo.TouchActivity(ctx, game.ID, old))
	require.NoError(t, repo.MarkExpired(ctx, game.ID))

	removed, err := repo.CleanupExpired(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	_, err = repo.FindByID(ctx, game.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	// players of the deleted game are gone too
	var players int64
	db.Model(&models.Player{}).Where("game_id = ?", game.ID).Count(&players)
	assert.Zero(t, players)
}

func TestGameRepository_FindIdleSkipsTerminal(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewGameRepository(db)
	ctx := context.Background()

	game := SeedTestGame(t, db)
	done := &models.Game{
		Code:      "DONE22",
		Name:      "Finished",
		Status:    models.StatusCompleted,
		MaxRounds: 4,
	}
	require.NoError(t, repo.Create(ctx, done))

	p := NewPagination(1, 50)
	idle, err := repo.FindIdle(ctx, p)
	require.NoError(t, err)
	require.Len(t, idle, 1)
	assert.Equal(t, game.ID, idle[0].ID)
}
