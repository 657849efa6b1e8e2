package game

import (
	"context"
	"testing"
	"time"

	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// attachHero creates a hero joined to the named parent unit and returns the
// reloaded game.
func attachHero(t *testing.T, svc *Service, g *models.Game, playerID, parentID string) *models.Game {
	t.Helper()
	game, err := svc.CreateUnit(context.Background(), g.Code, CreateUnitRequest{
		PlayerID:         playerID,
		Name:             "Captain",
		Quality:          3,
		Defense:          4,
		Size:             1,
		Tough:            3,
		Cost:             100,
		IsHero:           true,
		AttachedToUnitID: &parentID,
	})
	require.NoError(t, err)
	return game
}

func TestWoundRoundTripWithinGraceWindow(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	squad := unitByName(t, seeded, "Alice's Squad")

	game, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		WoundsTaken: ptr(2),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, unitByName(t, game, "Alice's Squad").State.WoundsTaken)
	assert.EqualValues(t, 2, countEvents(t, svc, game.ID, models.EventUnitWounded))

	game, err = svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		WoundsTaken: ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, unitByName(t, game, "Alice's Squad").State.WoundsTaken)
	assert.EqualValues(t, 0, countEvents(t, svc, game.ID, models.EventUnitWounded))
	assert.EqualValues(t, 0, countEvents(t, svc, game.ID, models.EventUnitHealed))
}

func TestWoundHealOutsideGraceWindow(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	squad := unitByName(t, seeded, "Alice's Squad")

	game, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		WoundsTaken: ptr(1),
	})
	require.NoError(t, err)

	// Age the wound event past the grace window so the heal is logged
	// instead of deleting it.
	past := time.Now().UTC().Add(-2 * time.Minute)
	require.NoError(t, svc.repos.DB().Model(&models.GameEvent{}).
		Where("game_id = ? AND event_type = ?", game.ID, models.EventUnitWounded).
		Update("created_at", past).Error)

	game, err = svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		WoundsTaken: ptr(0),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, unitByName(t, game, "Alice's Squad").State.WoundsTaken)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitWounded))
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitHealed))
}

func TestActivationGuardOnAttachedUnit(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game := attachHero(t, svc, seeded, alice.ID, squad.ID)
	hero := unitByName(t, game, "Captain")

	_, err := svc.UpdateUnitState(context.Background(), seeded.Code, hero.ID, UpdateUnitStateRequest{
		ActivatedThisRound: ptr(true),
	})
	assert.Equal(t, errors.ErrUnitAttached, errors.GetCode(err))
}

func TestActivationCascadesToAttached(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game := attachHero(t, svc, seeded, alice.ID, squad.ID)

	game, err := svc.UpdateUnitState(context.Background(), seeded.Code, squad.ID, UpdateUnitStateRequest{
		ActivatedThisRound: ptr(true),
	})
	require.NoError(t, err)

	assert.True(t, unitByName(t, game, "Alice's Squad").State.ActivatedThisRound)
	assert.True(t, unitByName(t, game, "Captain").State.ActivatedThisRound)
	assert.EqualValues(t, 2, countEvents(t, svc, game.ID, models.EventUnitActivated))
}

func TestShakenSyncsToAttached(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game := attachHero(t, svc, seeded, alice.ID, squad.ID)

	game, err := svc.UpdateUnitState(context.Background(), seeded.Code, squad.ID, UpdateUnitStateRequest{
		IsShaken: ptr(true),
	})
	require.NoError(t, err)

	assert.True(t, unitByName(t, game, "Alice's Squad").State.IsShaken)
	assert.True(t, unitByName(t, game, "Captain").State.IsShaken)
	assert.EqualValues(t, 2, countEvents(t, svc, game.ID, models.EventStatusShaken))

	game, err = svc.UpdateUnitState(context.Background(), seeded.Code, squad.ID, UpdateUnitStateRequest{
		IsShaken: ptr(false),
	})
	require.NoError(t, err)

	assert.False(t, unitByName(t, game, "Alice's Squad").State.IsShaken)
	assert.False(t, unitByName(t, game, "Captain").State.IsShaken)
	assert.EqualValues(t, 2, countEvents(t, svc, game.ID, models.EventStatusShakenCleared))
}

func TestDestroyDetachesAndPreservesShaken(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game := attachHero(t, svc, seeded, alice.ID, squad.ID)

	// Mark the parent shaken directly so the hero stays unshaken until the
	// destroy cascade runs.
	state := unitByName(t, game, "Alice's Squad").State
	state.IsShaken = true
	require.NoError(t, svc.repos.Units.SaveState(ctx, state))

	game, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		DeploymentStatus: ptr(models.DeploymentDestroyed),
	})
	require.NoError(t, err)

	hero := unitByName(t, game, "Captain")
	assert.Nil(t, hero.AttachedToUnitID)
	assert.True(t, hero.State.IsShaken)
	assert.Equal(t, models.DeploymentDestroyed, unitByName(t, game, "Alice's Squad").State.DeploymentStatus)

	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitDestroyed))
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitDetached))
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventStatusShaken))
}

func TestAmbushDeploymentLogsDeployed(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	squad := unitByName(t, seeded, "Alice's Squad")

	_, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		DeploymentStatus: ptr(models.DeploymentInAmbush),
	})
	require.NoError(t, err)

	game, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		DeploymentStatus: ptr(models.DeploymentDeployed),
	})
	require.NoError(t, err)

	assert.Equal(t, models.DeploymentDeployed, unitByName(t, game, "Alice's Squad").State.DeploymentStatus)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitDeployed))
}

func TestTransportEmbarkDisembark(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game, err := svc.CreateUnit(ctx, seeded.Code, CreateUnitRequest{
		PlayerID:          alice.ID,
		Name:              "APC",
		Quality:           4,
		Defense:           2,
		Size:              1,
		Tough:             6,
		Cost:              200,
		IsTransport:       true,
		TransportCapacity: 11,
	})
	require.NoError(t, err)
	apc := unitByName(t, game, "APC")

	game, err = svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		TransportID: &apc.ID,
	})
	require.NoError(t, err)
	state := unitByName(t, game, "Alice's Squad").State
	require.NotNil(t, state.TransportID)
	assert.Equal(t, apc.ID, *state.TransportID)
	assert.Equal(t, models.DeploymentEmbarked, state.DeploymentStatus)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitEmbarked))

	game, err = svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		TransportID: ptr(""),
	})
	require.NoError(t, err)
	state = unitByName(t, game, "Alice's Squad").State
	assert.Nil(t, state.TransportID)
	assert.Equal(t, models.DeploymentDeployed, state.DeploymentStatus)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitDisembarked))
}

func TestSpellTokenClamp(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]

	game, err := svc.CreateUnit(ctx, seeded.Code, CreateUnitRequest{
		PlayerID:    alice.ID,
		Name:        "Sorcerer",
		Size:        1,
		Cost:        80,
		IsCaster:    true,
		CasterLevel: 2,
	})
	require.NoError(t, err)
	sorcerer := unitByName(t, game, "Sorcerer")
	assert.Equal(t, 2, sorcerer.State.SpellTokens, "casters start with tokens equal to their level")

	game, err = svc.UpdateUnitState(ctx, seeded.Code, sorcerer.ID, UpdateUnitStateRequest{
		SpellTokens: ptr(10),
	})
	require.NoError(t, err)
	assert.Equal(t, models.MaxSpellTokens, unitByName(t, game, "Sorcerer").State.SpellTokens)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventSpellTokensGained))

	game, err = svc.UpdateUnitState(ctx, seeded.Code, sorcerer.ID, UpdateUnitStateRequest{
		SpellTokens: ptr(-3),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, unitByName(t, game, "Sorcerer").State.SpellTokens)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventSpellTokensSpent))
}

func TestLimitedWeaponsLogNewEntriesOnly(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	squad := unitByName(t, seeded, "Alice's Squad")

	game, err := svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		LimitedWeaponsUsed: ptr(models.StringList{"Flamethrower"}),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventLimitedWeaponUsed))

	game, err = svc.UpdateUnitState(ctx, seeded.Code, squad.ID, UpdateUnitStateRequest{
		LimitedWeaponsUsed: ptr(models.StringList{"Flamethrower", "Rocket Launcher"}),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, countEvents(t, svc, game.ID, models.EventLimitedWeaponUsed))
	assert.Len(t, unitByName(t, game, "Alice's Squad").State.LimitedWeaponsUsed, 2)
}

func TestModelsRemainingClampedToSize(t *testing.T) {
	svc, seeded := newTestService(t)
	squad := unitByName(t, seeded, "Alice's Squad")

	game, err := svc.UpdateUnitState(context.Background(), seeded.Code, squad.ID, UpdateUnitStateRequest{
		ModelsRemaining: ptr(99),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, unitByName(t, game, "Alice's Squad").State.ModelsRemaining)

	game, err = svc.UpdateUnitState(context.Background(), seeded.Code, squad.ID, UpdateUnitStateRequest{
		ModelsRemaining: ptr(-1),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, unitByName(t, game, "Alice's Squad").State.ModelsRemaining)
}

func TestCreateUnitCrossPlayerAttachFails(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]
	bobSquad := unitByName(t, seeded, "Bob's Squad")

	_, err := svc.CreateUnit(context.Background(), seeded.Code, CreateUnitRequest{
		PlayerID:         alice.ID,
		Name:             "Captain",
		Size:             1,
		AttachedToUnitID: &bobSquad.ID,
	})
	assert.Equal(t, errors.ErrCrossPlayerAttach, errors.GetCode(err))
}

func TestCreateUnitDerivesFlagsFromRules(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]

	game, err := svc.CreateUnit(context.Background(), seeded.Code, CreateUnitRequest{
		PlayerID: alice.ID,
		Name:     "Snipers",
		Size:     3,
		Cost:     120,
		Rules: models.JSONList{
			map[string]any{"name": "Ambush"},
			map[string]any{"name": "Tough", "rating": float64(3)},
		},
	})
	require.NoError(t, err)

	snipers := unitByName(t, game, "Snipers")
	assert.True(t, snipers.HasAmbush)
	assert.Equal(t, 3, snipers.Tough)
	assert.Equal(t, models.DeploymentInAmbush, snipers.State.DeploymentStatus)
}

func TestCreateUnitLobbyOnly(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]

	_, err := svc.StartGame(ctx, seeded.Code)
	require.NoError(t, err)

	_, err = svc.CreateUnit(ctx, seeded.Code, CreateUnitRequest{
		PlayerID: alice.ID,
		Name:     "Reinforcements",
		Size:     5,
		Cost:     100,
	})
	assert.Equal(t, errors.ErrGameNotInLobby, errors.GetCode(err))
}

func TestCreateUnitUpdatesArmyTotals(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]

	game, err := svc.CreateUnit(context.Background(), seeded.Code, CreateUnitRequest{
		PlayerID: alice.ID,
		Name:     "Snipers",
		Size:     3,
		Cost:     120,
	})
	require.NoError(t, err)

	owner := game.Player(alice.ID)
	assert.Equal(t, 1, owner.StartingUnitCount)
	assert.Equal(t, 120, owner.StartingPoints)

	game, err = svc.CreateUnit(context.Background(), seeded.Code, CreateUnitRequest{
		PlayerID: alice.ID,
		Name:     "Scouts",
		Size:     5,
		Cost:     80,
	})
	require.NoError(t, err)

	owner = game.Player(alice.ID)
	assert.Equal(t, 2, owner.StartingUnitCount)
	assert.Equal(t, 200, owner.StartingPoints)
}

func TestDetachUnit(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]
	squad := unitByName(t, seeded, "Alice's Squad")

	game := attachHero(t, svc, seeded, alice.ID, squad.ID)
	hero := unitByName(t, game, "Captain")

	game, err := svc.DetachUnit(context.Background(), seeded.Code, hero.ID)
	require.NoError(t, err)
	assert.Nil(t, unitByName(t, game, "Captain").AttachedToUnitID)
	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventUnitDetached))

	_, err = svc.DetachUnit(context.Background(), seeded.Code, hero.ID)
	assert.Equal(t, errors.ErrUnitNotAttached, errors.GetCode(err))
}

func TestClearUnits(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]

	game, result, err := svc.ClearUnits(ctx, seeded.Code, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.UnitsCleared)
	assert.Equal(t, 150, result.PointsCleared)
	assert.Empty(t, game.Player(alice.ID).Units)
	assert.Nil(t, game.Player(alice.ID).ArmyName)
}

func TestClearUnitsLobbyOnly(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()

	_, err := svc.StartGame(ctx, seeded.Code)
	require.NoError(t, err)

	_, _, err = svc.ClearUnits(ctx, seeded.Code, seeded.Players[0].ID)
	assert.Equal(t, errors.ErrGameNotInLobby, errors.GetCode(err))
}

func TestUnitActionLogsEvent(t *testing.T) {
	svc, seeded := newTestService(t)
	unit := unitByName(t, seeded, "Alice's Squad")

	_, err := svc.UpdateUnitState(context.Background(), seeded.Code, unit.ID, UpdateUnitStateRequest{
		Action: ptr("charge"),
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countEvents(t, svc, seeded.ID, models.EventUnitCharged))

	// the action verb does not activate the unit on its own
	game, err := svc.GetGame(context.Background(), seeded.Code)
	require.NoError(t, err)
	assert.False(t, game.Unit(unit.ID).State.ActivatedThisRound)

	_, err = svc.UpdateUnitState(context.Background(), seeded.Code, unit.ID, UpdateUnitStateRequest{
		Action: ptr("moonwalk"),
	})
	assert.Equal(t, errors.ErrInvalidParam, errors.GetCode(err))
}

func TestUpdateUnitStateUnknownUnit(t *testing.T) {
	svc, seeded := newTestService(t)

	_, err := svc.UpdateUnitState(context.Background(), seeded.Code, "nope", UpdateUnitStateRequest{
		WoundsTaken: ptr(1),
	})
	assert.Equal(t, errors.ErrUnitNotFound, errors.GetCode(err))
}
