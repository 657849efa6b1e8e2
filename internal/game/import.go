package game

import (
	"context"
	"fmt"

	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
	"go.uber.org/zap"
)

// ImportedUnit is one unit handed over by the import adapter, already
// decoupled from the upstream wire format.
type ImportedUnit struct {
	Name       string
	CustomName *string
	Quality    int
	Defense    int
	Size       int
	Cost       int

	Loadout  models.JSONList
	Rules    models.JSONList
	Upgrades models.JSONList

	ArmyForgeID string
	SelectionID string

	// SelectionID of the unit this one joins, for hero attachments.
	JoinToSelectionID *string
}

// ArmyImport is a full roster replacement for one player.
type ArmyImport struct {
	ListID string
	Units  []ImportedUnit
}

// ImportArmy replaces a player's roster with an imported list. Units are
// created in a first pass, then attachments are resolved by selection id in a
// second, since a hero may join a unit that appears later in the list.
// Returns the reloaded game, the unit count, and the total points.
func (s *Service) ImportArmy(ctx context.Context, code, playerID string, imp ArmyImport) (*models.Game, int, int, error) {
	if len(imp.Units) == 0 {
		return nil, 0, 0, errors.New(errors.ErrImportBadList, "list has no units")
	}

	var unitsCreated, totalPoints int
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		player := game.Player(playerID)
		if player == nil {
			return errors.Newf(errors.ErrPlayerNotFound, "player %s", playerID)
		}

		if _, err := s.repos.Units.DeleteByPlayer(ctx, player.ID); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		bySelection := make(map[string]*models.Unit, len(imp.Units))
		for i := range imp.Units {
			iu := &imp.Units[i]
			flags := ParseSpecialRules(iu.Rules)

			unit := &models.Unit{
				PlayerID:   player.ID,
				Name:       iu.Name,
				CustomName: iu.CustomName,
				Quality:    orDefault(iu.Quality, 4),
				Defense:    orDefault(iu.Defense, 4),
				Size:       orDefault(iu.Size, 1),
				Tough:      flags.Tough,
				Cost:       iu.Cost,
				Loadout:    iu.Loadout,
				Rules:      iu.Rules,
				Upgrades:   iu.Upgrades,

				IsHero:            flags.IsHero,
				IsCaster:          flags.IsCaster,
				CasterLevel:       flags.CasterLevel,
				IsTransport:       flags.IsTransport,
				TransportCapacity: flags.TransportCapacity,
				HasAmbush:         flags.HasAmbush,
				HasScout:          flags.HasScout,
			}
			if iu.ArmyForgeID != "" {
				unit.ArmyForgeID = &iu.ArmyForgeID
			}
			if iu.SelectionID != "" {
				unit.ArmyForgeSelectionID = &iu.SelectionID
			}

			deployment := models.DeploymentDeployed
			if flags.HasAmbush {
				deployment = models.DeploymentInAmbush
			}
			unit.State = &models.UnitState{
				ModelsRemaining:  unit.Size,
				DeploymentStatus: deployment,
			}
			if flags.IsCaster {
				unit.State.SpellTokens = flags.CasterLevel
			}

			if err := s.repos.Units.Create(ctx, unit); err != nil {
				return errors.Wrapf(err, errors.ErrDatabaseWrite, "unit %q", iu.Name)
			}
			if iu.SelectionID != "" {
				bySelection[iu.SelectionID] = unit
			}
			totalPoints += unit.Cost
			unitsCreated++
		}

		for i := range imp.Units {
			iu := &imp.Units[i]
			if iu.JoinToSelectionID == nil || *iu.JoinToSelectionID == "" {
				continue
			}
			child := bySelection[iu.SelectionID]
			parent := bySelection[*iu.JoinToSelectionID]
			if child == nil || parent == nil || child.ID == parent.ID {
				continue
			}
			child.AttachedToUnitID = &parent.ID
			if err := s.repos.Units.Save(ctx, child); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}

		armyName := fmt.Sprintf("Imported Army (%d units)", unitsCreated)
		player.ArmyForgeListID = &imp.ListID
		player.ArmyName = &armyName
		player.StartingUnitCount = unitsCreated
		player.StartingPoints = totalPoints
		if err := s.repos.Players.Save(ctx, player); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		return s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:    &player.ID,
			EventType:   models.EventArmyImported,
			Description: fmt.Sprintf("%s imported army: %d units, %dpts", player.Name, unitsCreated, totalPoints),
			Details: models.JSONMap{
				"list_id":      imp.ListID,
				"units_count":  unitsCreated,
				"total_points": totalPoints,
			},
		})
	})
	if err != nil {
		return nil, 0, 0, err
	}

	s.log.Info("army imported",
		zap.String("code", game.Code),
		zap.String("player_id", playerID),
		zap.String("list_id", imp.ListID),
		zap.Int("units", unitsCreated),
		zap.Int("points", totalPoints),
	)
	s.broadcast(game, stateUpdate(map[string]any{
		"reason":    "army_imported",
		"player_id": playerID,
	}))

	return game, unitsCreated, totalPoints, nil
}
