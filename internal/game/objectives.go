package game

import (
	"context"
	"fmt"

	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
)

const (
	minObjectives     = 3
	maxObjectives     = 6
	defaultObjectives = 4
)

// CreateObjectives seeds the markers for a session. One-shot: fails once any
// markers exist.
func (s *Service) CreateObjectives(ctx context.Context, code string, req CreateObjectivesRequest) (*models.Game, error) {
	count := req.Count
	if count == 0 {
		count = defaultObjectives
	}
	if count < minObjectives {
		count = minObjectives
	}
	if count > maxObjectives {
		count = maxObjectives
	}

	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		existing, err := s.repos.Objectives.CountByGame(ctx, game.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		if existing > 0 {
			return errors.New(errors.ErrObjectivesExist)
		}

		objectives := make([]*models.Objective, 0, count)
		for i := 1; i <= count; i++ {
			objectives = append(objectives, &models.Objective{
				GameID:       game.ID,
				MarkerNumber: i,
				Status:       models.ObjectiveNeutral,
			})
		}
		if err := s.repos.Objectives.CreateBatch(ctx, objectives); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		return s.logEvent(ctx, game, &models.GameEvent{
			EventType:   models.EventCustom,
			Description: fmt.Sprintf("%d objective markers placed", count),
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason": "objectives_created",
	}))

	return game, nil
}

// UpdateObjective changes a marker's control state.
func (s *Service) UpdateObjective(ctx context.Context, code, objectiveID string, req UpdateObjectiveRequest) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		objective := game.Objective(objectiveID)
		if objective == nil {
			return errors.Newf(errors.ErrObjectiveNotFound, "objective %s", objectiveID)
		}

		previous := objective.Status
		objective.Status = req.Status

		var event *models.GameEvent
		switch req.Status {
		case models.ObjectiveSeized:
			objective.ControlledByID = req.ControlledByID
			controller := "unknown"
			if req.ControlledByID != nil {
				if p := game.Player(*req.ControlledByID); p != nil {
					controller = p.Name
				}
			}
			event = &models.GameEvent{
				PlayerID:          req.ControlledByID,
				TargetObjectiveID: &objective.ID,
				EventType:         models.EventObjectiveSeized,
				Description:       fmt.Sprintf("%s seized %s", controller, objective.DisplayName()),
				Details:           models.JSONMap{"previous_status": string(previous)},
			}

		case models.ObjectiveContested:
			objective.ControlledByID = nil
			event = &models.GameEvent{
				TargetObjectiveID: &objective.ID,
				EventType:         models.EventObjectiveContested,
				Description:       fmt.Sprintf("%s is contested", objective.DisplayName()),
				Details:           models.JSONMap{"previous_status": string(previous)},
			}

		case models.ObjectiveNeutral:
			objective.ControlledByID = nil
			event = &models.GameEvent{
				TargetObjectiveID: &objective.ID,
				EventType:         models.EventObjectiveNeutralized,
				Description:       fmt.Sprintf("%s is neutral again", objective.DisplayName()),
				Details:           models.JSONMap{"previous_status": string(previous)},
			}

		default:
			return errors.Newf(errors.ErrInvalidParam, "unknown objective status %q", req.Status)
		}

		if err := s.repos.Objectives.Save(ctx, objective); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		return s.logEvent(ctx, game, event)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":       "objective_updated",
		"objective_id": objectiveID,
	}))

	return game, nil
}
