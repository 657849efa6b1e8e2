package importer

import (
	"context"
	"fmt"

	"github.com/otahak/herald/internal/game"
	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/models"
	"go.uber.org/zap"
)

// Service glues the Army Forge client to the game engine: it fetches a
// shared list and hands it over as a roster replacement.
type Service struct {
	client *Client
	games  *game.Service
	log    *zap.Logger
}

// NewService wires the adapter.
func NewService(client *Client, games *game.Service) *Service {
	return &Service{
		client: client,
		games:  games,
		log:    logger.GetModuleLogger("importer"),
	}
}

// FetchList exposes the raw upstream list, for the read-only proxy endpoint.
func (s *Service) FetchList(ctx context.Context, listID string) (*ArmyForgeList, error) {
	return s.client.FetchList(ctx, listID)
}

// ImportArmy fetches the shared list and replaces the player's roster with
// it. The player's previous units are cleared first.
func (s *Service) ImportArmy(ctx context.Context, code string, req ImportRequest) (*models.Game, *ImportResult, error) {
	listID, err := ExtractListID(req.ArmyForgeURL)
	if err != nil {
		return nil, nil, err
	}

	list, err := s.client.FetchList(ctx, listID)
	if err != nil {
		return nil, nil, err
	}

	updated, unitsImported, totalPoints, err := s.games.ImportArmy(ctx, code, req.PlayerID, toArmyImport(listID, list))
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("import finished",
		zap.String("code", code),
		zap.String("list_id", listID),
		zap.Int("units", unitsImported),
	)

	return updated, &ImportResult{
		UnitsImported: unitsImported,
		ArmyName:      fmt.Sprintf("Imported Army (%d units)", unitsImported),
		TotalPoints:   totalPoints,
	}, nil
}

// toArmyImport converts the upstream payload into the engine's neutral form.
func toArmyImport(listID string, list *ArmyForgeList) game.ArmyImport {
	imp := game.ArmyImport{
		ListID: listID,
		Units:  make([]game.ImportedUnit, 0, len(list.Units)),
	}
	for i := range list.Units {
		u := &list.Units[i]
		imp.Units = append(imp.Units, game.ImportedUnit{
			Name:              u.Name,
			CustomName:        u.CustomName,
			Quality:           u.Quality,
			Defense:           u.Defense,
			Size:              u.Size,
			Cost:              u.Cost,
			Loadout:           u.Loadout,
			Rules:             u.Rules,
			Upgrades:          u.SelectedUpgrades,
			ArmyForgeID:       u.ID,
			SelectionID:       u.SelectionID,
			JoinToSelectionID: u.JoinToUnit,
		})
	}
	return imp
}
