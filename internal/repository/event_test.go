package repository

import (
	"context"
	"testing"
	"time"

	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func appendEvent(t *testing.T, repo EventRepository, gameID string, eventType models.EventType, unitID *string, createdAt time.Time) *models.GameEvent {
	t.Helper()
	event := &models.GameEvent{
		GameID:       gameID,
		EventType:    eventType,
		Description:  string(eventType),
		RoundNumber:  1,
		TargetUnitID: unitID,
	}
	require.NoError(t, repo.Append(context.Background(), event))
	if !createdAt.IsZero() {
		require.NoError(t, repo.GetDB().
			Model(&models.GameEvent{}).
			Where("id = ?", event.ID).
			Update("created_at", createdAt).Error)
		event.CreatedAt = createdAt
	}
	return event
}

func TestEventRepository_ListNewestFirst(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewEventRepository(db)
	game := SeedTestGame(t, db)

	base := time.Now().Add(-time.Minute)
	appendEvent(t, repo, game.ID, models.EventRoundStarted, nil, base)
	appendEvent(t, repo, game.ID, models.EventUnitActivated, nil, base.Add(10*time.Second))
	appendEvent(t, repo, game.ID, models.EventUnitWounded, nil, base.Add(20*time.Second))

	p := NewPagination(1, 50)
	events, err := repo.List(context.Background(), game.ID, false, p)
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, models.EventUnitWounded, events[0].EventType)
	assert.Equal(t, models.EventRoundStarted, events[2].EventType)
	assert.Equal(t, int64(3), p.Total)
}

func TestEventRepository_RetractRecent(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewEventRepository(db)
	game := SeedTestGame(t, db)
	playerID := game.Players[0].ID

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		event := appendEvent(t, repo, game.ID, models.EventVPChanged, nil, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, repo.GetDB().
			Model(&models.GameEvent{}).
			Where("id = ?", event.ID).
			Update("player_id", playerID).Error)
	}

	retracted, err := repo.RetractRecent(context.Background(), game.ID, models.EventVPChanged, &playerID, nil, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), retracted)

	// retracted rows are gone entirely, not flagged
	p := NewPagination(1, 50)
	visible, err := repo.List(context.Background(), game.ID, false, p)
	require.NoError(t, err)
	assert.Len(t, visible, 1)

	all, err := repo.List(context.Background(), game.ID, true, NewPagination(1, 50))
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestEventRepository_RetractRecentRespectsUnitFilter(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewEventRepository(db)
	game := SeedTestGame(t, db)
	unitA := game.Players[0].Units[0].ID
	unitB := game.Players[1].Units[0].ID

	appendEvent(t, repo, game.ID, models.EventUnitWounded, &unitA, time.Time{})
	appendEvent(t, repo, game.ID, models.EventUnitWounded, &unitB, time.Time{})

	retracted, err := repo.RetractRecent(context.Background(), game.ID, models.EventUnitWounded, nil, &unitA, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(1), retracted)

	count, err := repo.CountByType(context.Background(), game.ID, models.EventUnitWounded)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEventRepository_FindRecentAndDelete(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewEventRepository(db)
	game := SeedTestGame(t, db)
	unitID := game.Players[0].Units[0].ID

	base := time.Now().Add(-time.Minute)
	first := appendEvent(t, repo, game.ID, models.EventUnitWounded, &unitID, base)
	second := appendEvent(t, repo, game.ID, models.EventUnitWounded, &unitID, base.Add(5*time.Second))

	recent, err := repo.FindRecent(context.Background(), game.ID, models.EventUnitWounded, &unitID, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, second.ID, recent[0].ID)

	require.NoError(t, repo.DeleteByIDs(context.Background(), []string{second.ID}))

	recent, err = repo.FindRecent(context.Background(), game.ID, models.EventUnitWounded, &unitID, 5)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, first.ID, recent[0].ID)
}

func TestEventRepository_ExportMarkdown(t *testing.T) {
	db := SetupTestDB(t)
	repo := NewEventRepository(db)
	game := SeedTestGame(t, db)

	base := time.Now().Add(-time.Minute)
	roundEvent := appendEvent(t, repo, game.ID, models.EventRoundStarted, nil, base)
	require.NoError(t, repo.GetDB().
		Model(&models.GameEvent{}).
		Where("id = ?", roundEvent.ID).
		Update("description", "Round 1 started").Error)
	undone := appendEvent(t, repo, game.ID, models.EventUnitWounded, nil, base.Add(time.Second))
	_, err := repo.RetractRecent(context.Background(), game.ID, models.EventUnitWounded, nil, nil, 1)
	require.NoError(t, err)

	md, err := repo.ExportMarkdown(context.Background(), game)
	require.NoError(t, err)
	assert.Contains(t, md, "# Test Battle")
	assert.Contains(t, md, "`TESTAB`")
	assert.Contains(t, md, "Alice")
	assert.Contains(t, md, "Round 1 started")
	assert.NotContains(t, md, undone.ID)
	assert.NotContains(t, md, "unit_wounded")
}
