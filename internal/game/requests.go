package game

import (
	"github.com/otahak/herald/internal/models"
)

// CreateGameRequest opens a new session with its host seat.
type CreateGameRequest struct {
	Name        string            `json:"name"`
	GameSystem  models.GameSystem `json:"game_system"`
	PlayerName  string            `json:"player_name" binding:"required"`
	PlayerColor string            `json:"player_color"`
	IsSolo      bool              `json:"is_solo"`
}

// JoinGameRequest claims the second seat of a lobby.
type JoinGameRequest struct {
	PlayerName  string `json:"player_name" binding:"required"`
	PlayerColor string `json:"player_color"`
}

// UpdateGameStateRequest is the bulk round/turn/status update. Nil fields are
// left untouched.
type UpdateGameStateRequest struct {
	CurrentRound           *int               `json:"current_round"`
	Status                 *models.GameStatus `json:"status"`
	CurrentPlayerID        *string            `json:"current_player_id"`
	FirstPlayerNextRoundID *string            `json:"first_player_next_round_id"`
}

// UpdateUnitStateRequest is a partial unit-state update. Nil fields are left
// untouched. TransportID set to a unit id embarks; set to the empty string it
// disembarks.
type UpdateUnitStateRequest struct {
	WoundsTaken        *int                     `json:"wounds_taken"`
	ModelsRemaining    *int                     `json:"models_remaining"`
	ActivatedThisRound *bool                    `json:"activated_this_round"`
	Action             *string                  `json:"action"`
	IsShaken           *bool                    `json:"is_shaken"`
	IsFatigued         *bool                    `json:"is_fatigued"`
	DeploymentStatus   *models.DeploymentStatus `json:"deployment_status"`
	TransportID        *string                  `json:"transport_id"`
	SpellTokens        *int                     `json:"spell_tokens"`
	LimitedWeaponsUsed *models.StringList       `json:"limited_weapons_used"`
	CustomNotes        *string                  `json:"custom_notes"`
}

// CreateUnitRequest adds a unit outside the import flow.
type CreateUnitRequest struct {
	PlayerID          string          `json:"player_id" binding:"required"`
	Name              string          `json:"name" binding:"required"`
	CustomName        *string         `json:"custom_name"`
	Quality           int             `json:"quality"`
	Defense           int             `json:"defense"`
	Size              int             `json:"size"`
	Tough             int             `json:"tough"`
	Cost              int             `json:"cost"`
	Loadout           models.JSONList `json:"loadout"`
	Rules             models.JSONList `json:"rules"`
	IsHero            bool            `json:"is_hero"`
	IsCaster          bool            `json:"is_caster"`
	CasterLevel       int             `json:"caster_level"`
	IsTransport       bool            `json:"is_transport"`
	TransportCapacity int             `json:"transport_capacity"`
	HasAmbush         bool            `json:"has_ambush"`
	HasScout          bool            `json:"has_scout"`
	AttachedToUnitID  *string         `json:"attached_to_unit_id"`
}

// UpdateObjectiveRequest changes a marker's control state.
type UpdateObjectiveRequest struct {
	Status         models.ObjectiveStatus `json:"status" binding:"required"`
	ControlledByID *string                `json:"controlled_by_id"`
}

// CreateObjectivesRequest seeds the markers for a game, once.
type CreateObjectivesRequest struct {
	Count int `json:"count"`
}

// DeltaRequest is a signed adjustment (victory points, round).
type DeltaRequest struct {
	Delta int `json:"delta" binding:"required"`
}

// ClearUnitsResult summarizes a roster wipe.
type ClearUnitsResult struct {
	UnitsCleared  int `json:"units_cleared"`
	PointsCleared int `json:"points_cleared"`
}
