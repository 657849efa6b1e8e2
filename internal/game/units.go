package game

import (
	"context"
	"fmt"
	"time"

	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/models"
	"go.uber.org/zap"
)

// UpdateUnitState applies a partial unit-state update. Each non-nil field is
// an independent transition producing its own event(s); cascades (activation,
// shaken sync, destroy-detach) run against units attached to the target.
func (s *Service) UpdateUnitState(ctx context.Context, code, unitID string, req UpdateUnitStateRequest) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		unit := game.Unit(unitID)
		if unit == nil {
			return errors.Newf(errors.ErrUnitNotFound, "unit %s", unitID)
		}
		state := unit.State
		if state == nil {
			return errors.Newf(errors.ErrUnitNotInitialized, "unit %s has no state", unitID)
		}
		owner := game.Player(unit.PlayerID)
		if owner == nil {
			return errors.Newf(errors.ErrPlayerNotFound, "owner of unit %s", unitID)
		}

		if req.WoundsTaken != nil {
			if err := s.applyWounds(ctx, game, unit, owner, *req.WoundsTaken); err != nil {
				return err
			}
		}

		if req.ModelsRemaining != nil {
			target := *req.ModelsRemaining
			if target < 0 {
				target = 0
			}
			if unit.Size > 0 && target > unit.Size {
				target = unit.Size
			}
			state.ModelsRemaining = target
		}

		if req.ActivatedThisRound != nil {
			if err := s.applyActivation(ctx, game, unit, owner, *req.ActivatedThisRound); err != nil {
				return err
			}
		}

		if req.Action != nil {
			if err := s.applyAction(ctx, game, unit, owner, *req.Action); err != nil {
				return err
			}
		}

		if req.IsShaken != nil && *req.IsShaken != state.IsShaken {
			if err := s.applyShaken(ctx, game, unit, owner, *req.IsShaken); err != nil {
				return err
			}
		}

		if req.IsFatigued != nil && *req.IsFatigued != state.IsFatigued {
			state.IsFatigued = *req.IsFatigued
			if state.IsFatigued {
				if err := s.logEvent(ctx, game, &models.GameEvent{
					PlayerID:     &owner.ID,
					TargetUnitID: &unit.ID,
					EventType:    models.EventStatusFatigued,
					Description:  fmt.Sprintf("%s is fatigued", unit.DisplayName()),
				}); err != nil {
					return err
				}
			}
		}

		if req.DeploymentStatus != nil && *req.DeploymentStatus != state.DeploymentStatus {
			if err := s.applyDeployment(ctx, game, unit, owner, *req.DeploymentStatus); err != nil {
				return err
			}
		}

		if req.TransportID != nil {
			if err := s.applyTransport(ctx, game, unit, owner, *req.TransportID); err != nil {
				return err
			}
		}

		if req.SpellTokens != nil {
			if err := s.applySpellTokens(ctx, game, unit, owner, *req.SpellTokens); err != nil {
				return err
			}
		}

		if req.LimitedWeaponsUsed != nil {
			if err := s.applyLimitedWeapons(ctx, game, unit, owner, *req.LimitedWeaponsUsed); err != nil {
				return err
			}
		}

		if req.CustomNotes != nil {
			state.CustomNotes = req.CustomNotes
		}

		return s.repos.Units.SaveState(ctx, state)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":  "unit_updated",
		"unit_id": unitID,
	}))

	return game, nil
}

// applyWounds handles a wound-count change. Each added point gets its own
// event. Healing first deletes matching wound events inside the grace window
// (a misclick correction), then logs the rest as explicit heals.
func (s *Service) applyWounds(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, target int) error {
	state := unit.State
	if target < 0 {
		target = 0
	}
	delta := target - state.WoundsTaken

	switch {
	case delta > 0:
		for i := 0; i < delta; i++ {
			before := state.WoundsTaken + i
			if err := s.logEvent(ctx, game, &models.GameEvent{
				PlayerID:     &owner.ID,
				TargetUnitID: &unit.ID,
				EventType:    models.EventUnitWounded,
				Description:  fmt.Sprintf("%s took a wound (%d/%d)", unit.DisplayName(), before+1, unit.MaxWounds()),
				Details: models.JSONMap{
					"wounds_before": before,
					"wounds_after":  before + 1,
				},
			}); err != nil {
				return err
			}
		}

	case delta < 0:
		heal := -delta
		recent, err := s.repos.Events.FindRecent(ctx, game.ID, models.EventUnitWounded, &unit.ID, heal)
		if err != nil {
			return errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		cutoff := time.Now().UTC().Add(-s.woundGrace)
		var misclicks []string
		for _, ev := range recent {
			if ev.CreatedAt.After(cutoff) {
				misclicks = append(misclicks, ev.ID)
			}
		}
		if len(misclicks) > 0 {
			if err := s.repos.Events.DeleteByIDs(ctx, misclicks); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}
		for i := len(misclicks); i < heal; i++ {
			before := state.WoundsTaken - i
			if err := s.logEvent(ctx, game, &models.GameEvent{
				PlayerID:     &owner.ID,
				TargetUnitID: &unit.ID,
				EventType:    models.EventUnitHealed,
				Description:  fmt.Sprintf("%s healed a wound (%d/%d)", unit.DisplayName(), before-1, unit.MaxWounds()),
				Details: models.JSONMap{
					"wounds_before": before,
					"wounds_after":  before - 1,
				},
			}); err != nil {
				return err
			}
		}
	}

	state.WoundsTaken = target
	return nil
}

// applyActivation flips the activated flag. Attached units never activate on
// their own; activating a parent also activates its attached units.
// applyAction records which declared action a unit took this activation.
// Actions only log; activation itself goes through applyActivation so the
// attached-unit guard stays in one place.
func (s *Service) applyAction(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, action string) error {
	var (
		eventType models.EventType
		verb      string
	)
	switch action {
	case "rush":
		eventType, verb = models.EventUnitRushed, "rushed"
	case "advance":
		eventType, verb = models.EventUnitAdvanced, "advanced"
	case "hold":
		eventType, verb = models.EventUnitHeld, "held position"
	case "charge":
		eventType, verb = models.EventUnitCharged, "charged"
	case "attack":
		eventType, verb = models.EventUnitAttacked, "attacked"
	default:
		return errors.Newf(errors.ErrInvalidParam, "unknown action %q", action)
	}

	return s.logEvent(ctx, game, &models.GameEvent{
		PlayerID:     &owner.ID,
		TargetUnitID: &unit.ID,
		EventType:    eventType,
		Description:  fmt.Sprintf("%s %s", unit.DisplayName(), verb),
	})
}

func (s *Service) applyActivation(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, activated bool) error {
	state := unit.State

	if !activated {
		state.ActivatedThisRound = false
		return nil
	}

	if unit.IsAttached() {
		return errors.Newf(errors.ErrUnitAttached, "%s activates with its parent unit", unit.DisplayName())
	}
	if state.ActivatedThisRound {
		return nil
	}

	state.ActivatedThisRound = true
	if err := s.logEvent(ctx, game, &models.GameEvent{
		PlayerID:     &owner.ID,
		TargetUnitID: &unit.ID,
		EventType:    models.EventUnitActivated,
		Description:  fmt.Sprintf("%s activated", unit.DisplayName()),
	}); err != nil {
		return err
	}

	for _, attached := range game.AttachedTo(unit.ID) {
		ast := attached.State
		if ast == nil || ast.ActivatedThisRound {
			continue
		}
		ast.ActivatedThisRound = true
		if err := s.repos.Units.SaveState(ctx, ast); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		if err := s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &attached.ID,
			EventType:    models.EventUnitActivated,
			Description:  fmt.Sprintf("%s activated (with %s)", attached.DisplayName(), unit.DisplayName()),
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyShaken toggles shaken and mirrors the new value onto attached units.
// A joined hero shares its unit's morale state.
func (s *Service) applyShaken(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, shaken bool) error {
	state := unit.State
	state.IsShaken = shaken

	eventType := models.EventStatusShaken
	desc := fmt.Sprintf("%s is shaken", unit.DisplayName())
	if !shaken {
		eventType = models.EventStatusShakenCleared
		desc = fmt.Sprintf("%s recovered from shaken", unit.DisplayName())
	}
	if err := s.logEvent(ctx, game, &models.GameEvent{
		PlayerID:     &owner.ID,
		TargetUnitID: &unit.ID,
		EventType:    eventType,
		Description:  desc,
	}); err != nil {
		return err
	}

	for _, attached := range game.AttachedTo(unit.ID) {
		ast := attached.State
		if ast == nil || ast.IsShaken == shaken {
			continue
		}
		ast.IsShaken = shaken
		if err := s.repos.Units.SaveState(ctx, ast); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		attachedDesc := fmt.Sprintf("%s is shaken (attached to %s)", attached.DisplayName(), unit.DisplayName())
		attachedType := models.EventStatusShaken
		if !shaken {
			attachedType = models.EventStatusShakenCleared
			attachedDesc = fmt.Sprintf("%s recovered from shaken (attached to %s)", attached.DisplayName(), unit.DisplayName())
		}
		if err := s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &attached.ID,
			EventType:    attachedType,
			Description:  attachedDesc,
		}); err != nil {
			return err
		}
	}
	return nil
}

// applyDeployment handles deployment transitions. Destroying a unit detaches
// everything joined to it; a shaken parent passes shaken on to the freed
// units so the morale state survives the detach.
func (s *Service) applyDeployment(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, target models.DeploymentStatus) error {
	state := unit.State
	previous := state.DeploymentStatus
	state.DeploymentStatus = target

	switch target {
	case models.DeploymentDeployed:
		if previous == models.DeploymentInAmbush || previous == models.DeploymentInReserve {
			return s.logEvent(ctx, game, &models.GameEvent{
				PlayerID:     &owner.ID,
				TargetUnitID: &unit.ID,
				EventType:    models.EventUnitDeployed,
				Description:  fmt.Sprintf("%s deployed", unit.DisplayName()),
				Details:      models.JSONMap{"previous_status": string(previous)},
			})
		}

	case models.DeploymentDestroyed:
		if err := s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &unit.ID,
			EventType:    models.EventUnitDestroyed,
			Description:  fmt.Sprintf("%s was destroyed", unit.DisplayName()),
		}); err != nil {
			return err
		}

		wasShaken := state.IsShaken
		for _, attached := range game.AttachedTo(unit.ID) {
			attached.AttachedToUnitID = nil
			if err := s.repos.Units.Save(ctx, attached); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
			if err := s.logEvent(ctx, game, &models.GameEvent{
				PlayerID:     &owner.ID,
				TargetUnitID: &attached.ID,
				EventType:    models.EventUnitDetached,
				Description:  fmt.Sprintf("%s detached from %s (destroyed)", attached.DisplayName(), unit.DisplayName()),
			}); err != nil {
				return err
			}

			ast := attached.State
			if wasShaken && ast != nil && !ast.IsShaken {
				ast.IsShaken = true
				if err := s.repos.Units.SaveState(ctx, ast); err != nil {
					return errors.Wrap(err, errors.ErrDatabaseWrite)
				}
				if err := s.logEvent(ctx, game, &models.GameEvent{
					PlayerID:     &owner.ID,
					TargetUnitID: &attached.ID,
					EventType:    models.EventStatusShaken,
					Description:  fmt.Sprintf("%s is shaken (carried over from %s)", attached.DisplayName(), unit.DisplayName()),
				}); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// applyTransport embarks into the named transport, or disembarks when the id
// is empty.
func (s *Service) applyTransport(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, transportID string) error {
	state := unit.State

	if transportID == "" {
		if state.TransportID == nil {
			return nil
		}
		transportName := "transport"
		if t := game.Unit(*state.TransportID); t != nil {
			transportName = t.DisplayName()
		}
		state.TransportID = nil
		state.DeploymentStatus = models.DeploymentDeployed
		return s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &unit.ID,
			EventType:    models.EventUnitDisembarked,
			Description:  fmt.Sprintf("%s disembarked from %s", unit.DisplayName(), transportName),
		})
	}

	transport := game.Unit(transportID)
	if transport == nil {
		return errors.Newf(errors.ErrUnitNotFound, "transport %s", transportID)
	}
	state.TransportID = &transport.ID
	state.DeploymentStatus = models.DeploymentEmbarked
	return s.logEvent(ctx, game, &models.GameEvent{
		PlayerID:     &owner.ID,
		TargetUnitID: &unit.ID,
		EventType:    models.EventUnitEmbarked,
		Description:  fmt.Sprintf("%s embarked into %s", unit.DisplayName(), transport.DisplayName()),
	})
}

// applySpellTokens clamps the pool to [0, MaxSpellTokens] and logs the net
// change.
func (s *Service) applySpellTokens(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, target int) error {
	state := unit.State
	if target < 0 {
		target = 0
	}
	if target > models.MaxSpellTokens {
		target = models.MaxSpellTokens
	}
	delta := target - state.SpellTokens
	state.SpellTokens = target
	if delta == 0 {
		return nil
	}

	eventType := models.EventSpellTokensGained
	desc := fmt.Sprintf("%s gained %d spell token(s) (%d total)", unit.DisplayName(), delta, target)
	if delta < 0 {
		eventType = models.EventSpellTokensSpent
		desc = fmt.Sprintf("%s spent %d spell token(s) (%d left)", unit.DisplayName(), -delta, target)
	}
	return s.logEvent(ctx, game, &models.GameEvent{
		PlayerID:     &owner.ID,
		TargetUnitID: &unit.ID,
		EventType:    eventType,
		Description:  desc,
		Details: models.JSONMap{
			"delta": delta,
			"total": target,
		},
	})
}

// applyLimitedWeapons logs one event per weapon newly present in the list.
func (s *Service) applyLimitedWeapons(ctx context.Context, game *models.Game, unit *models.Unit, owner *models.Player, weapons models.StringList) error {
	state := unit.State
	previous := make(map[string]bool, len(state.LimitedWeaponsUsed))
	for _, w := range state.LimitedWeaponsUsed {
		previous[w] = true
	}
	for _, w := range weapons {
		if previous[w] {
			continue
		}
		if err := s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &unit.ID,
			EventType:    models.EventLimitedWeaponUsed,
			Description:  fmt.Sprintf("%s used %s", unit.DisplayName(), w),
			Details:      models.JSONMap{"weapon": w},
		}); err != nil {
			return err
		}
	}
	state.LimitedWeaponsUsed = weapons
	return nil
}

// CreateUnit adds a unit to a player's roster outside the import flow.
// Explicit flags win over flags derived from the rules blob.
func (s *Service) CreateUnit(ctx context.Context, code string, req CreateUnitRequest) (*models.Game, error) {
	if req.PlayerID == "" || req.Name == "" {
		return nil, errors.New(errors.ErrInvalidParam, "player_id and name are required")
	}

	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		if game.Status != models.StatusLobby {
			return errors.New(errors.ErrGameNotInLobby, "units can only be added before the game starts")
		}
		owner := game.Player(req.PlayerID)
		if owner == nil {
			return errors.Newf(errors.ErrPlayerNotFound, "player %s", req.PlayerID)
		}

		if req.AttachedToUnitID != nil && *req.AttachedToUnitID != "" {
			parent := game.Unit(*req.AttachedToUnitID)
			if parent == nil {
				return errors.Newf(errors.ErrUnitNotFound, "parent unit %s", *req.AttachedToUnitID)
			}
			if parent.PlayerID != owner.ID {
				return errors.New(errors.ErrCrossPlayerAttach, "cannot attach to another player's unit")
			}
		}

		flags := ParseSpecialRules(req.Rules)

		unit := &models.Unit{
			PlayerID:   owner.ID,
			Name:       req.Name,
			CustomName: req.CustomName,
			Quality:    orDefault(req.Quality, 4),
			Defense:    orDefault(req.Defense, 4),
			Size:       orDefault(req.Size, 1),
			Tough:      orDefault(req.Tough, flags.Tough),
			Cost:       req.Cost,
			Loadout:    req.Loadout,
			Rules:      req.Rules,

			IsHero:            req.IsHero || flags.IsHero,
			IsCaster:          req.IsCaster || flags.IsCaster,
			CasterLevel:       orDefault(req.CasterLevel, flags.CasterLevel),
			IsTransport:       req.IsTransport || flags.IsTransport,
			TransportCapacity: orDefault(req.TransportCapacity, flags.TransportCapacity),
			HasAmbush:         req.HasAmbush || flags.HasAmbush,
			HasScout:          req.HasScout || flags.HasScout,
			AttachedToUnitID:  req.AttachedToUnitID,
		}

		deployment := models.DeploymentDeployed
		if unit.HasAmbush {
			deployment = models.DeploymentInAmbush
		}
		unit.State = &models.UnitState{
			ModelsRemaining:  unit.Size,
			DeploymentStatus: deployment,
		}
		if unit.IsCaster {
			unit.State.SpellTokens = unit.CasterLevel
		}

		if err := s.repos.Units.Create(ctx, unit); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		owner.StartingUnitCount++
		owner.StartingPoints += unit.Cost
		if err := s.repos.Players.Save(ctx, owner); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		return s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:     &owner.ID,
			TargetUnitID: &unit.ID,
			EventType:    models.EventCustom,
			Description:  fmt.Sprintf("%s added %s to their army", owner.Name, unit.DisplayName()),
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":    "unit_created",
		"player_id": req.PlayerID,
	}))

	return game, nil
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// DetachUnit severs an explicit hero-to-unit attachment.
func (s *Service) DetachUnit(ctx context.Context, code, unitID string) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		unit := game.Unit(unitID)
		if unit == nil {
			return errors.Newf(errors.ErrUnitNotFound, "unit %s", unitID)
		}
		if !unit.IsAttached() {
			return errors.Newf(errors.ErrUnitNotAttached, "%s has no parent unit", unit.DisplayName())
		}
		owner := game.Player(unit.PlayerID)

		parentName := "its unit"
		if parent := game.Unit(*unit.AttachedToUnitID); parent != nil {
			parentName = parent.DisplayName()
		}

		unit.AttachedToUnitID = nil
		if err := s.repos.Units.Save(ctx, unit); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		event := &models.GameEvent{
			TargetUnitID: &unit.ID,
			EventType:    models.EventUnitDetached,
			Description:  fmt.Sprintf("%s detached from %s", unit.DisplayName(), parentName),
		}
		if owner != nil {
			event.PlayerID = &owner.ID
		}
		return s.logEvent(ctx, game, event)
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":  "unit_detached",
		"unit_id": unitID,
	}))

	return game, nil
}

// ClearUnits wipes a player's roster. Lobby only; army re-import goes
// through here first.
func (s *Service) ClearUnits(ctx context.Context, code, playerID string) (*models.Game, *ClearUnitsResult, error) {
	result := &ClearUnitsResult{}
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		if game.Status != models.StatusLobby {
			return errors.New(errors.ErrGameNotInLobby, "units can only be cleared before the game starts")
		}
		player := game.Player(playerID)
		if player == nil {
			return errors.Newf(errors.ErrPlayerNotFound, "player %s", playerID)
		}

		for i := range player.Units {
			result.PointsCleared += player.Units[i].Cost
		}

		cleared, err := s.repos.Units.DeleteByPlayer(ctx, player.ID)
		if err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		result.UnitsCleared = int(cleared)

		player.ArmyName = nil
		player.ArmyForgeListID = nil
		player.StartingUnitCount = 0
		player.StartingPoints = 0
		if err := s.repos.Players.Save(ctx, player); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		return s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:    &player.ID,
			EventType:   models.EventCustom,
			Description: fmt.Sprintf("%s cleared their army (%d units, %d pts)", player.Name, result.UnitsCleared, result.PointsCleared),
		})
	})
	if err != nil {
		return nil, nil, err
	}

	s.log.Info("units cleared",
		zap.String("code", game.Code),
		zap.String("player_id", playerID),
		zap.Int("count", result.UnitsCleared),
	)
	s.broadcast(game, stateUpdate(map[string]any{
		"reason":    "units_cleared",
		"player_id": playerID,
	}))

	return game, result, nil
}
