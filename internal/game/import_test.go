package game

import (
	"context"
	"testing"

	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleImport() ArmyImport {
	return ArmyImport{
		ListID: "list123",
		Units: []ImportedUnit{
			{
				Name:              "Commander",
				Quality:           3,
				Defense:           3,
				Size:              1,
				Cost:              100,
				ArmyForgeID:       "u2",
				SelectionID:       "sel2",
				JoinToSelectionID: ptr("sel1"),
				Rules: models.JSONList{
					map[string]any{"name": "Hero"},
					map[string]any{"name": "Tough", "rating": float64(3)},
					map[string]any{"name": "Caster", "rating": float64(2)},
				},
			},
			{
				Name:        "Storm Troopers",
				Quality:     4,
				Defense:     4,
				Size:        5,
				Cost:        150,
				ArmyForgeID: "u1",
				SelectionID: "sel1",
				Rules: models.JSONList{
					map[string]any{"name": "Strider"},
				},
			},
			{
				Name:        "Snipers",
				Quality:     4,
				Defense:     5,
				Size:        3,
				Cost:        120,
				ArmyForgeID: "u3",
				SelectionID: "sel3",
				Rules: models.JSONList{
					map[string]any{"name": "Ambush"},
				},
			},
		},
	}
}

func TestImportArmyReplacesRoster(t *testing.T) {
	svc, seeded := newTestService(t)
	ctx := context.Background()
	alice := seeded.Players[0]

	game, count, points, err := svc.ImportArmy(ctx, seeded.Code, alice.ID, sampleImport())
	require.NoError(t, err)

	assert.Equal(t, 3, count)
	assert.Equal(t, 370, points)

	player := game.Player(alice.ID)
	require.Len(t, player.Units, 3, "seeded squad replaced by the imported roster")
	require.NotNil(t, player.ArmyForgeListID)
	assert.Equal(t, "list123", *player.ArmyForgeListID)
	require.NotNil(t, player.ArmyName)
	assert.Equal(t, "Imported Army (3 units)", *player.ArmyName)
	assert.Equal(t, 3, player.StartingUnitCount)
	assert.Equal(t, 370, player.StartingPoints)

	assert.EqualValues(t, 1, countEvents(t, svc, game.ID, models.EventArmyImported))
}

func TestImportArmyResolvesAttachments(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]

	// The hero appears before its unit in the list; attachment still
	// resolves on the second pass.
	game, _, _, err := svc.ImportArmy(context.Background(), seeded.Code, alice.ID, sampleImport())
	require.NoError(t, err)

	commander := unitByName(t, game, "Commander")
	troopers := unitByName(t, game, "Storm Troopers")
	require.NotNil(t, commander.AttachedToUnitID)
	assert.Equal(t, troopers.ID, *commander.AttachedToUnitID)
	assert.Nil(t, troopers.AttachedToUnitID)
}

func TestImportArmyDerivesFlagsAndState(t *testing.T) {
	svc, seeded := newTestService(t)
	alice := seeded.Players[0]

	game, _, _, err := svc.ImportArmy(context.Background(), seeded.Code, alice.ID, sampleImport())
	require.NoError(t, err)

	commander := unitByName(t, game, "Commander")
	assert.True(t, commander.IsHero)
	assert.True(t, commander.IsCaster)
	assert.Equal(t, 2, commander.CasterLevel)
	assert.Equal(t, 3, commander.Tough)
	assert.Equal(t, 2, commander.State.SpellTokens)

	snipers := unitByName(t, game, "Snipers")
	assert.True(t, snipers.HasAmbush)
	assert.Equal(t, models.DeploymentInAmbush, snipers.State.DeploymentStatus)
	assert.Equal(t, 3, snipers.State.ModelsRemaining)
}

func TestImportArmyEmptyList(t *testing.T) {
	svc, seeded := newTestService(t)

	_, _, _, err := svc.ImportArmy(context.Background(), seeded.Code, seeded.Players[0].ID, ArmyImport{ListID: "x"})
	assert.Equal(t, errors.ErrImportBadList, errors.GetCode(err))
}

func TestImportArmyUnknownPlayer(t *testing.T) {
	svc, seeded := newTestService(t)

	_, _, _, err := svc.ImportArmy(context.Background(), seeded.Code, "nope", sampleImport())
	assert.Equal(t, errors.ErrPlayerNotFound, errors.GetCode(err))
}
