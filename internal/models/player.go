package models

// Player is one seat in a game session.
type Player struct {
	BaseModel
	GameID string `gorm:"type:varchar(36);not null;index" json:"game_id"`

	Name  string `gorm:"size:50;not null" json:"name"`
	Color string `gorm:"size:20;default:'#3b82f6'" json:"color"`

	// Army Forge linkage (optional).
	ArmyForgeListID *string `gorm:"size:100" json:"army_forge_list_id,omitempty"`
	ArmyName        *string `gorm:"size:100" json:"army_name,omitempty"`

	IsHost      bool `gorm:"default:false" json:"is_host"`
	IsConnected bool `gorm:"default:true" json:"is_connected"`

	// Snapshot at game start, for morale thresholds.
	StartingUnitCount int `gorm:"default:0" json:"starting_unit_count"`
	StartingPoints    int `gorm:"default:0" json:"starting_points"`

	VictoryPoints          int  `gorm:"default:0" json:"victory_points"`
	HasFinishedActivations bool `gorm:"default:false" json:"has_finished_activations"`

	Units []Unit `gorm:"foreignKey:PlayerID;constraint:OnDelete:CASCADE" json:"units,omitempty"`
}

// CurrentUnitCount counts non-destroyed units.
func (p *Player) CurrentUnitCount() int {
	n := 0
	for i := range p.Units {
		if p.Units[i].State == nil || !p.Units[i].State.IsDestroyed() {
			n++
		}
	}
	return n
}

// MoraleThresholdReached is true once half or more of the starting units
// are gone.
func (p *Player) MoraleThresholdReached() bool {
	if p.StartingUnitCount == 0 {
		return false
	}
	return p.CurrentUnitCount() <= p.StartingUnitCount/2
}
