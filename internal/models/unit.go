package models

// DeploymentStatus is a unit's battlefield presence.
type DeploymentStatus string

const (
	DeploymentDeployed  DeploymentStatus = "deployed"
	DeploymentInAmbush  DeploymentStatus = "in_ambush"
	DeploymentInReserve DeploymentStatus = "in_reserve"
	DeploymentEmbarked  DeploymentStatus = "embarked"
	DeploymentDestroyed DeploymentStatus = "destroyed"
)

// MaxSpellTokens caps a caster's token pool.
const MaxSpellTokens = 6

// Unit is the base profile of one army unit, imported from Army Forge or
// entered manually. Per-game mutable state lives in UnitState (1:1).
type Unit struct {
	BaseModel
	PlayerID string `gorm:"type:varchar(36);not null;index" json:"player_id"`

	Name       string  `gorm:"size:100;not null" json:"name"`
	CustomName *string `gorm:"size:100" json:"custom_name,omitempty"`

	Quality int `gorm:"default:4" json:"quality"` // 4 means 4+
	Defense int `gorm:"default:4" json:"defense"`
	Size    int `gorm:"default:1" json:"size"`  // starting model count
	Tough   int `gorm:"default:1" json:"tough"` // Tough(X), 1 when absent
	Cost    int `gorm:"default:0" json:"cost"`

	// Opaque Army Forge blobs; only rule-flag derivation reads them.
	Loadout  JSONList `gorm:"type:json" json:"loadout,omitempty"`
	Rules    JSONList `gorm:"type:json" json:"rules,omitempty"`
	Upgrades JSONList `gorm:"type:json" json:"upgrades,omitempty"`

	ArmyForgeID          *string `gorm:"size:100" json:"army_forge_id,omitempty"`
	ArmyForgeSelectionID *string `gorm:"size:100" json:"army_forge_selection_id,omitempty"`

	// Flags derived from Rules, cached for quick access.
	IsHero            bool `gorm:"default:false" json:"is_hero"`
	IsCaster          bool `gorm:"default:false" json:"is_caster"`
	CasterLevel       int  `gorm:"default:0" json:"caster_level"`
	IsTransport       bool `gorm:"default:false" json:"is_transport"`
	TransportCapacity int  `gorm:"default:0" json:"transport_capacity"`
	HasAmbush         bool `gorm:"default:false" json:"has_ambush"`
	HasScout          bool `gorm:"default:false" json:"has_scout"`

	// Hero-joins-unit attachment. Nullable self reference; the engine keeps
	// the graph one level deep.
	AttachedToUnitID *string `gorm:"type:varchar(36);index" json:"attached_to_unit_id,omitempty"`

	State *UnitState `gorm:"foreignKey:UnitID;constraint:OnDelete:CASCADE" json:"state,omitempty"`
}

// DisplayName prefers the custom name.
func (u *Unit) DisplayName() string {
	if u.CustomName != nil && *u.CustomName != "" {
		return *u.CustomName
	}
	return u.Name
}

// MaxWounds is size models at tough wounds each.
func (u *Unit) MaxWounds() int {
	return u.Size * u.Tough
}

// IsAttached reports whether this unit is joined to a parent.
func (u *Unit) IsAttached() bool {
	return u.AttachedToUnitID != nil && *u.AttachedToUnitID != ""
}

// UnitState is the mutable per-game facet of a unit.
type UnitState struct {
	BaseModel
	UnitID string `gorm:"type:varchar(36);uniqueIndex;not null" json:"unit_id"`

	WoundsTaken     int `gorm:"default:0" json:"wounds_taken"`
	ModelsRemaining int `gorm:"default:0" json:"models_remaining"`

	ActivatedThisRound bool `gorm:"default:false" json:"activated_this_round"`
	IsShaken           bool `gorm:"default:false" json:"is_shaken"`
	IsFatigued         bool `gorm:"default:false" json:"is_fatigued"`

	DeploymentStatus DeploymentStatus `gorm:"size:20;default:'deployed'" json:"deployment_status"`

	// Set while embarked in a transport unit.
	TransportID *string `gorm:"type:varchar(36)" json:"transport_id,omitempty"`

	SpellTokens        int        `gorm:"default:0" json:"spell_tokens"`
	LimitedWeaponsUsed StringList `gorm:"type:json" json:"limited_weapons_used,omitempty"`
	CustomNotes        *string    `gorm:"size:500" json:"custom_notes,omitempty"`
}

// IsDestroyed reports whether the unit was removed from play.
func (s *UnitState) IsDestroyed() bool {
	return s.DeploymentStatus == DeploymentDestroyed
}

// ResetForNewRound clears per-round flags. Shaken persists until spent.
func (s *UnitState) ResetForNewRound() {
	s.ActivatedThisRound = false
	s.IsFatigued = false
}
