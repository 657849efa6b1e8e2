package models

// EventType is the closed enumeration of logged actions.
type EventType string

const (
	// Game flow
	EventGameStarted  EventType = "game_started"
	EventGameEnded    EventType = "game_ended"
	EventRoundStarted EventType = "round_started"
	EventRoundEnded   EventType = "round_ended"
	EventTurnChanged  EventType = "turn_changed"

	// Units
	EventUnitActivated   EventType = "unit_activated"
	EventUnitWounded     EventType = "unit_wounded"
	EventUnitHealed      EventType = "unit_healed"
	EventUnitDestroyed   EventType = "unit_destroyed"
	EventUnitDeployed    EventType = "unit_deployed"
	EventUnitEmbarked    EventType = "unit_embarked"
	EventUnitDisembarked EventType = "unit_disembarked"
	EventUnitDetached    EventType = "unit_detached"

	// Unit actions
	EventUnitRushed   EventType = "unit_rushed"
	EventUnitAdvanced EventType = "unit_advanced"
	EventUnitHeld     EventType = "unit_held"
	EventUnitCharged  EventType = "unit_charged"
	EventUnitAttacked EventType = "unit_attacked"

	// Status
	EventStatusShaken        EventType = "status_shaken"
	EventStatusShakenCleared EventType = "status_shaken_cleared"
	EventStatusFatigued      EventType = "status_fatigued"

	// Resources
	EventSpellCast         EventType = "spell_cast"
	EventSpellTokensGained EventType = "spell_tokens_gained"
	EventSpellTokensSpent  EventType = "spell_tokens_spent"
	EventLimitedWeaponUsed EventType = "limited_weapon_used"

	// Objectives
	EventObjectiveSeized      EventType = "objective_seized"
	EventObjectiveContested   EventType = "objective_contested"
	EventObjectiveNeutralized EventType = "objective_neutralized"

	// Players
	EventPlayerJoined EventType = "player_joined"
	EventPlayerLeft   EventType = "player_left"
	EventArmyImported EventType = "army_imported"
	EventVPChanged    EventType = "vp_changed"

	// Other
	EventCustom EventType = "custom"
	EventUndo   EventType = "undo"
)

// GameEvent is one row of the per-session action log. The log is advisory:
// appending never fails validation, and recent rows may be deleted outright
// to implement undo-by-subtraction.
type GameEvent struct {
	BaseModel
	GameID   string  `gorm:"type:varchar(36);not null;index" json:"game_id"`
	PlayerID *string `gorm:"type:varchar(36)" json:"player_id,omitempty"`

	EventType   EventType `gorm:"size:40;not null;index" json:"event_type"`
	Description string    `gorm:"type:text;not null" json:"description"`

	// Round at the time of the event.
	RoundNumber int `gorm:"default:1" json:"round_number"`

	TargetUnitID      *string `gorm:"type:varchar(36);index" json:"target_unit_id,omitempty"`
	TargetObjectiveID *string `gorm:"type:varchar(36)" json:"target_objective_id,omitempty"`

	// Kind-specific payload, e.g. unit_wounded: {"wounds_before":2,"wounds_after":3}.
	Details JSONMap `gorm:"type:json" json:"details,omitempty"`

	// Snapshot before the event, kept for potential future revert.
	PreviousState JSONMap `gorm:"type:json" json:"previous_state,omitempty"`

	IsUndone bool `gorm:"default:false" json:"is_undone"`
}
