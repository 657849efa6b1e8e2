package models

import (
	"time"
)

// GameSystem identifies the ruleset a session is played under.
type GameSystem string

const (
	SystemGrimdarkFuture GameSystem = "gf"  // army scale
	SystemFirefight      GameSystem = "gff" // skirmish scale
)

// GameStatus is the session lifecycle state.
type GameStatus string

const (
	StatusLobby      GameStatus = "lobby"
	StatusInProgress GameStatus = "in_progress"
	StatusPaused     GameStatus = "paused"
	StatusCompleted  GameStatus = "completed"
	StatusExpired    GameStatus = "expired"
)

// Terminal reports whether no further write is allowed in this status
// (deletion excepted).
func (s GameStatus) Terminal() bool {
	return s == StatusExpired
}

// MaxPlayers is the seat capacity of a session.
const MaxPlayers = 2

// Game is one session between (up to) two players, found by its join code.
type Game struct {
	BaseModel
	Code       string     `gorm:"uniqueIndex;size:10;not null" json:"code"`
	Name       string     `gorm:"size:100;default:'New Game'" json:"name"`
	GameSystem GameSystem `gorm:"size:10;default:'gff'" json:"game_system"`
	Status     GameStatus `gorm:"size:20;default:'lobby';index" json:"status"`

	// Solo mode: a single person drives both army slots.
	IsSolo bool `gorm:"default:false" json:"is_solo"`

	// Activity tracking for lazy expiration.
	LastActivityAt *time.Time `gorm:"index" json:"last_activity_at,omitempty"`

	CurrentRound int `gorm:"default:1" json:"current_round"`
	MaxRounds    int `gorm:"default:4" json:"max_rounds"`

	CurrentPlayerID        *string `gorm:"type:varchar(36)" json:"current_player_id,omitempty"`
	FirstPlayerNextRoundID *string `gorm:"type:varchar(36)" json:"first_player_next_round_id,omitempty"`

	Players    []Player    `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"players,omitempty"`
	Objectives []Objective `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"objectives,omitempty"`
	Events     []GameEvent `gorm:"foreignKey:GameID;constraint:OnDelete:CASCADE" json:"-"`
}

// Player returns the seat with the given id, or nil.
func (g *Game) Player(id string) *Player {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// Unit returns the unit with the given id across all seats, or nil.
func (g *Game) Unit(id string) *Unit {
	for i := range g.Players {
		for j := range g.Players[i].Units {
			if g.Players[i].Units[j].ID == id {
				return &g.Players[i].Units[j]
			}
		}
	}
	return nil
}

// AttachedTo returns every unit whose AttachedToUnitID references parentID.
func (g *Game) AttachedTo(parentID string) []*Unit {
	var out []*Unit
	for i := range g.Players {
		for j := range g.Players[i].Units {
			u := &g.Players[i].Units[j]
			if u.AttachedToUnitID != nil && *u.AttachedToUnitID == parentID {
				out = append(out, u)
			}
		}
	}
	return out
}

// Objective returns the marker with the given id, or nil.
func (g *Game) Objective(id string) *Objective {
	for i := range g.Objectives {
		if g.Objectives[i].ID == id {
			return &g.Objectives[i]
		}
	}
	return nil
}
