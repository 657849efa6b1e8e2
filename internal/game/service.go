package game

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/otahak/herald/internal/config"
	"github.com/otahak/herald/internal/errors"
	"github.com/otahak/herald/internal/logger"
	"github.com/otahak/herald/internal/models"
	"github.com/otahak/herald/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Broadcaster fans a message out to every connection in a game's room.
type Broadcaster interface {
	BroadcastToGame(code string, message any)
}

// NoopBroadcaster drops messages. Used in tests and tooling.
type NoopBroadcaster struct{}

func (NoopBroadcaster) BroadcastToGame(string, any) {}

// Service is the mutation engine. Every write goes through the per-session
// lock, bumps activity, persists, reloads the graph, and broadcasts.
type Service struct {
	repos       *repository.Manager
	locks       *SessionLocks
	policy      ExpirationPolicy
	broadcaster Broadcaster
	log         *zap.Logger

	woundGrace   time.Duration
	lockWait     time.Duration
	codeLength   int
	codeAttempts int
}

// NewService wires the engine from config.
func NewService(repos *repository.Manager, broadcaster Broadcaster, cfg *config.GameConfig) *Service {
	policy := DefaultExpirationPolicy()
	if cfg.MultiplayerIdleTimeout > 0 {
		policy.MultiplayerIdle = cfg.MultiplayerIdleTimeout
	}
	if cfg.SoloIdleTimeout > 0 {
		policy.SoloIdle = cfg.SoloIdleTimeout
	}

	s := &Service{
		repos:        repos,
		locks:        NewSessionLocks(),
		policy:       policy,
		broadcaster:  broadcaster,
		log:          logger.GetModuleLogger("game"),
		woundGrace:   cfg.WoundGraceWindow,
		lockWait:     cfg.LockWaitTimeout,
		codeLength:   cfg.JoinCodeLength,
		codeAttempts: cfg.JoinCodeAttempts,
	}
	if s.woundGrace <= 0 {
		s.woundGrace = 30 * time.Second
	}
	if s.lockWait <= 0 {
		s.lockWait = 5 * time.Second
	}
	if s.codeLength <= 0 {
		s.codeLength = 6
	}
	if s.codeAttempts <= 0 {
		s.codeAttempts = 10
	}
	return s
}

// --- helpers ---

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func (s *Service) loadGame(ctx context.Context, code string) (*models.Game, error) {
	game, err := s.repos.Games.FindByCode(ctx, normalizeCode(code))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.Newf(errors.ErrGameNotFound, "code %s", normalizeCode(code))
		}
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return game, nil
}

// refreshExpiration applies the lazy expiration rules and persists a flip.
func (s *Service) refreshExpiration(ctx context.Context, game *models.Game) error {
	wasExpired := game.Status == models.StatusExpired
	if s.policy.CheckExpiration(game, time.Now().UTC()) && !wasExpired {
		if err := s.repos.Games.MarkExpired(ctx, game.ID); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		s.log.Info("game expired",
			zap.String("code", game.Code),
			zap.Bool("is_solo", game.IsSolo),
		)
	}
	return nil
}

// withSession serializes fn against the session and returns the reloaded
// graph afterwards. fn runs with the game loaded, expiration refreshed, and
// writes still pending.
func (s *Service) withSession(ctx context.Context, code string, fn func(ctx context.Context, game *models.Game) error) (*models.Game, error) {
	code = normalizeCode(code)

	lockCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	release, err := s.locks.Acquire(lockCtx, code)
	if err != nil {
		return nil, err
	}
	defer release()

	game, err := s.loadGame(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.refreshExpiration(ctx, game); err != nil {
		return nil, err
	}
	if game.Status.Terminal() {
		return nil, errors.Newf(errors.ErrGameExpired, "code %s", code)
	}

	if err := fn(ctx, game); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.repos.Games.TouchActivity(ctx, game.ID, now); err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseWrite)
	}

	return s.loadGame(ctx, code)
}

// broadcast pushes a room message unless the session is solo.
func (s *Service) broadcast(game *models.Game, message any) {
	if game.IsSolo {
		return
	}
	s.broadcaster.BroadcastToGame(game.Code, message)
}

func stateUpdate(data map[string]any) map[string]any {
	return map[string]any{
		"type": "state_update",
		"data": data,
	}
}

func (s *Service) logEvent(ctx context.Context, game *models.Game, event *models.GameEvent) error {
	event.GameID = game.ID
	if event.RoundNumber == 0 {
		event.RoundNumber = game.CurrentRound
	}
	if err := s.repos.Events.Append(ctx, event); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseWrite)
	}
	return nil
}

// --- session operations ---

// CreateGame opens a session, seats the host, and in solo mode seats the
// scripted opponent as well.
func (s *Service) CreateGame(ctx context.Context, req CreateGameRequest) (*models.Game, error) {
	if req.PlayerName == "" {
		return nil, errors.New(errors.ErrInvalidParam, "player_name is required")
	}
	name := req.Name
	if name == "" {
		name = "New Game"
	}
	system := req.GameSystem
	if system == "" {
		system = models.SystemFirefight
	}
	color := req.PlayerColor
	if color == "" {
		color = "#3b82f6"
	}

	var game *models.Game
	for attempt := 0; ; attempt++ {
		code, err := s.uniqueCode(ctx)
		if err != nil {
			return nil, err
		}

		game = &models.Game{
			Code:       code,
			Name:       name,
			GameSystem: system,
			Status:     models.StatusLobby,
			IsSolo:     req.IsSolo,
			MaxRounds:  4,
		}

		err = s.insertGame(ctx, game, req, color)
		if err == nil {
			break
		}
		// a concurrent create can win the same code between the exists
		// check and the insert; the unique index backstops it
		if stderrors.Is(err, gorm.ErrDuplicatedKey) && attempt+1 < s.codeAttempts {
			continue
		}
		return nil, err
	}

	s.log.Info("game created",
		zap.String("code", game.Code),
		zap.String("name", name),
		zap.Bool("is_solo", req.IsSolo),
	)

	return s.loadGame(ctx, game.Code)
}

func (s *Service) insertGame(ctx context.Context, game *models.Game, req CreateGameRequest, color string) error {
	return s.repos.Transaction(ctx, func(txm *repository.Manager) error {
		if err := txm.Games.Create(ctx, game); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		host := &models.Player{
			GameID: game.ID,
			Name:   req.PlayerName,
			Color:  color,
			IsHost: true,
		}
		if err := txm.Players.Create(ctx, host); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		if req.IsSolo {
			opponent := &models.Player{
				GameID: game.ID,
				Name:   "Opponent",
				Color:  "#ef4444",
			}
			if err := txm.Players.Create(ctx, opponent); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}

		if err := txm.DB().WithContext(ctx).Model(&models.Game{}).
			Where("id = ?", game.ID).
			Update("current_player_id", host.ID).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		return txm.Events.Append(ctx, &models.GameEvent{
			GameID:      game.ID,
			PlayerID:    &host.ID,
			EventType:   models.EventGameStarted,
			Description: fmt.Sprintf("Game '%s' created by %s", game.Name, host.Name),
			RoundNumber: 1,
		})
	})
}

func (s *Service) uniqueCode(ctx context.Context) (string, error) {
	for i := 0; i < s.codeAttempts; i++ {
		code, err := GenerateJoinCode(s.codeLength)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrUnknown)
		}
		exists, err := s.repos.Games.CodeExists(ctx, code)
		if err != nil {
			return "", errors.Wrap(err, errors.ErrDatabaseQuery)
		}
		if !exists {
			return code, nil
		}
	}
	return "", errors.New(errors.ErrJoinCodeExhausted)
}

// GetGame loads a session by code, applying lazy expiration.
func (s *Service) GetGame(ctx context.Context, code string) (*models.Game, error) {
	game, err := s.loadGame(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.refreshExpiration(ctx, game); err != nil {
		return nil, err
	}
	return game, nil
}

// JoinGame seats a second player in a lobby. Returns the updated game and
// the new player's id.
func (s *Service) JoinGame(ctx context.Context, code string, req JoinGameRequest) (*models.Game, string, error) {
	if req.PlayerName == "" {
		return nil, "", errors.New(errors.ErrInvalidParam, "player_name is required")
	}
	color := req.PlayerColor
	if color == "" {
		color = "#ef4444"
	}

	var playerID string
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		if game.Status != models.StatusLobby {
			return errors.New(errors.ErrGameAlreadyStarted, "cannot join after start")
		}
		if len(game.Players) >= models.MaxPlayers {
			return errors.New(errors.ErrGameFull)
		}

		player := &models.Player{
			GameID:      game.ID,
			Name:        req.PlayerName,
			Color:       color,
			IsConnected: false, // flips when the websocket joins
		}
		if err := s.repos.Players.Create(ctx, player); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		playerID = player.ID

		return s.logEvent(ctx, game, &models.GameEvent{
			PlayerID:    &player.ID,
			EventType:   models.EventPlayerJoined,
			Description: fmt.Sprintf("%s joined the game", player.Name),
		})
	})
	if err != nil {
		return nil, "", err
	}

	s.broadcast(game, map[string]any{
		"type": "player_joined",
		"player": map[string]any{
			"id":           playerID,
			"name":         req.PlayerName,
			"color":        color,
			"is_host":      false,
			"is_connected": false,
		},
	})
	s.log.Info("player joined", zap.String("code", game.Code), zap.String("player", req.PlayerName))

	return game, playerID, nil
}

// StartGame moves a lobby to in_progress and freezes starting army sizes for
// morale thresholds.
func (s *Service) StartGame(ctx context.Context, code string) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		if game.Status != models.StatusLobby {
			return errors.New(errors.ErrGameAlreadyStarted)
		}

		if game.IsSolo {
			hasUnits := false
			for i := range game.Players {
				if len(game.Players[i].Units) > 0 {
					hasUnits = true
					break
				}
			}
			if !hasUnits {
				return errors.New(errors.ErrPlayerHasNoUnits, "need at least one army to start")
			}
		} else {
			if len(game.Players) < models.MaxPlayers {
				return errors.New(errors.ErrNotEnoughPlayers)
			}
			for i := range game.Players {
				if len(game.Players[i].Units) == 0 {
					return errors.Newf(errors.ErrPlayerHasNoUnits, "player %s", game.Players[i].Name)
				}
			}
		}

		game.Status = models.StatusInProgress
		game.CurrentRound = 1
		if err := s.repos.DB().WithContext(ctx).Model(&models.Game{}).
			Where("id = ?", game.ID).
			Updates(map[string]any{
				"status":        models.StatusInProgress,
				"current_round": 1,
			}).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		for i := range game.Players {
			player := &game.Players[i]
			player.StartingUnitCount = len(player.Units)
			points := 0
			for j := range player.Units {
				points += player.Units[j].Cost
			}
			player.StartingPoints = points
			if err := s.repos.Players.Save(ctx, player); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}

		return s.logEvent(ctx, game, &models.GameEvent{
			EventType:   models.EventGameStarted,
			Description: "Game started! Round 1 begins.",
			RoundNumber: 1,
		})
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, map[string]any{
		"type":          "game_started",
		"status":        string(models.StatusInProgress),
		"current_round": 1,
	})
	s.log.Info("game started", zap.String("code", game.Code))

	return game, nil
}

// UpdateGameState is the bulk round/turn/status update. A round increase
// resets every unit and activation flag for the new round.
func (s *Service) UpdateGameState(ctx context.Context, code string, req UpdateGameStateRequest) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		updates := map[string]any{}

		if req.CurrentRound != nil {
			oldRound := game.CurrentRound
			updates["current_round"] = *req.CurrentRound
			game.CurrentRound = *req.CurrentRound

			if *req.CurrentRound > oldRound {
				for i := range game.Players {
					player := &game.Players[i]
					player.HasFinishedActivations = false
					if err := s.repos.Players.Save(ctx, player); err != nil {
						return errors.Wrap(err, errors.ErrDatabaseWrite)
					}
					for j := range player.Units {
						state := player.Units[j].State
						if state == nil {
							continue
						}
						state.ResetForNewRound()
						if err := s.repos.Units.SaveState(ctx, state); err != nil {
							return errors.Wrap(err, errors.ErrDatabaseWrite)
						}
					}
				}

				if err := s.logEvent(ctx, game, &models.GameEvent{
					EventType:   models.EventRoundStarted,
					Description: fmt.Sprintf("Round %d started", *req.CurrentRound),
				}); err != nil {
					return err
				}
			}
		}

		if req.Status != nil {
			updates["status"] = *req.Status
			game.Status = *req.Status
			if *req.Status == models.StatusCompleted {
				if err := s.logEvent(ctx, game, &models.GameEvent{
					EventType:   models.EventGameEnded,
					Description: "Game ended",
				}); err != nil {
					return err
				}
			}
		}

		if req.CurrentPlayerID != nil {
			updates["current_player_id"] = *req.CurrentPlayerID
		}
		if req.FirstPlayerNextRoundID != nil {
			updates["first_player_next_round_id"] = *req.FirstPlayerNextRoundID
		}

		if len(updates) == 0 {
			return nil
		}
		if err := s.repos.DB().WithContext(ctx).Model(&models.Game{}).
			Where("id = ?", game.ID).
			Updates(updates).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"current_round": game.CurrentRound,
		"status":        string(game.Status),
	}))

	return game, nil
}

// UpdateVictoryPoints applies a signed VP delta, clamped at zero. Each added
// point gets its own log entry; a decrement retracts that many entries.
func (s *Service) UpdateVictoryPoints(ctx context.Context, code, playerID string, delta int) (*models.Game, error) {
	var newTotal int
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		player := game.Player(playerID)
		if player == nil {
			return errors.Newf(errors.ErrPlayerNotFound, "player %s", playerID)
		}

		before := player.VictoryPoints
		player.VictoryPoints = before + delta
		if player.VictoryPoints < 0 {
			player.VictoryPoints = 0
		}
		newTotal = player.VictoryPoints

		if err := s.repos.Players.Save(ctx, player); err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		switch {
		case delta > 0:
			for i := 0; i < delta; i++ {
				at := before + i
				if err := s.logEvent(ctx, game, &models.GameEvent{
					PlayerID:    &player.ID,
					EventType:   models.EventVPChanged,
					Description: fmt.Sprintf("%s VP: %d → %d (+1)", player.Name, at, at+1),
					Details: models.JSONMap{
						"vp_before": at,
						"vp_after":  at + 1,
						"delta":     1,
					},
				}); err != nil {
					return err
				}
			}
		case delta < 0:
			if _, err := s.repos.Events.RetractRecent(ctx, game.ID, models.EventVPChanged, &player.ID, nil, -delta); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":         "victory_points_updated",
		"player_id":      playerID,
		"victory_points": newTotal,
	}))

	return game, nil
}

// UpdateRound applies a signed round delta, clamped at one. An increment logs
// round_started; a decrement retracts the most recent one.
func (s *Service) UpdateRound(ctx context.Context, code string, delta int) (*models.Game, error) {
	game, err := s.withSession(ctx, code, func(ctx context.Context, game *models.Game) error {
		before := game.CurrentRound
		newRound := before + delta
		if newRound < 1 {
			newRound = 1
		}
		game.CurrentRound = newRound

		if err := s.repos.DB().WithContext(ctx).Model(&models.Game{}).
			Where("id = ?", game.ID).
			Update("current_round", newRound).Error; err != nil {
			return errors.Wrap(err, errors.ErrDatabaseWrite)
		}

		switch {
		case delta > 0:
			return s.logEvent(ctx, game, &models.GameEvent{
				EventType:   models.EventRoundStarted,
				Description: fmt.Sprintf("Round changed: %d → %d (+%d)", before, newRound, delta),
				RoundNumber: newRound,
			})
		case delta < 0:
			if _, err := s.repos.Events.RetractRecent(ctx, game.ID, models.EventRoundStarted, nil, nil, 1); err != nil {
				return errors.Wrap(err, errors.ErrDatabaseWrite)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.broadcast(game, stateUpdate(map[string]any{
		"reason":        "round_updated",
		"current_round": game.CurrentRound,
	}))

	return game, nil
}

// ListEvents returns the visible action log, newest first.
func (s *Service) ListEvents(ctx context.Context, code string, p *repository.Pagination) ([]*models.GameEvent, error) {
	game, err := s.loadGame(ctx, code)
	if err != nil {
		return nil, err
	}
	events, err := s.repos.Events.List(ctx, game.ID, false, p)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	return events, nil
}

// ExportEvents renders the full log as markdown.
func (s *Service) ExportEvents(ctx context.Context, code string) (string, string, error) {
	game, err := s.loadGame(ctx, code)
	if err != nil {
		return "", "", err
	}
	md, err := s.repos.Events.ExportMarkdown(ctx, game)
	if err != nil {
		return "", "", errors.Wrap(err, errors.ErrDatabaseQuery)
	}
	filename := fmt.Sprintf("game-%s-events.md", game.Code)
	return md, filename, nil
}

// SetPlayerConnected records websocket presence and bumps activity so the
// idle clock restarts from the disconnect.
func (s *Service) SetPlayerConnected(ctx context.Context, code, playerID string, connected bool) error {
	game, err := s.loadGame(ctx, code)
	if err != nil {
		return err
	}
	if game.Player(playerID) == nil {
		return errors.Newf(errors.ErrPlayerNotFound, "player %s", playerID)
	}
	if err := s.repos.Players.SetConnected(ctx, playerID, connected); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseWrite)
	}
	if err := s.repos.Games.TouchActivity(ctx, game.ID, time.Now().UTC()); err != nil {
		return errors.Wrap(err, errors.ErrDatabaseWrite)
	}
	return nil
}

// CleanupExpired deletes long-expired sessions. Meant to be driven by the
// periodic sweeper in cmd/server.
func (s *Service) CleanupExpired(ctx context.Context, deleteBefore time.Time) (int64, error) {
	removed, err := s.repos.Games.CleanupExpired(ctx, deleteBefore)
	if err != nil {
		return removed, errors.Wrap(err, errors.ErrDatabaseWrite)
	}
	if removed > 0 {
		s.log.Info("expired games removed", zap.Int64("count", removed))
	}
	return removed, nil
}
