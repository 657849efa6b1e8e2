package importer

import (
	"github.com/otahak/herald/internal/models"
)

// ArmyForgeUnit is one unit entry from the Army Forge TTS endpoint. Loadout,
// rules and upgrades are kept as opaque blobs; only the rule names/ratings
// are interpreted.
type ArmyForgeUnit struct {
	ArmyID      string  `json:"armyId"`
	ID          string  `json:"id"`
	SelectionID string  `json:"selectionId"`
	Name        string  `json:"name"`
	CustomName  *string `json:"customName"`

	// SelectionID of the unit a hero is joined to, when set.
	JoinToUnit *string `json:"joinToUnit"`
	Combined   bool    `json:"combined"`

	Quality int `json:"quality"`
	Defense int `json:"defense"`
	Size    int `json:"size"`
	Cost    int `json:"cost"`

	Loadout          models.JSONList `json:"loadout"`
	Rules            models.JSONList `json:"rules"`
	SelectedUpgrades models.JSONList `json:"selectedUpgrades"`
}

// ArmyForgeList is the TTS endpoint response.
type ArmyForgeList struct {
	GameSystem   string          `json:"gameSystem"`
	Units        []ArmyForgeUnit `json:"units"`
	SpecialRules models.JSONList `json:"specialRules"`
}

// ImportRequest asks to replace a player's roster with a shared list.
type ImportRequest struct {
	ArmyForgeURL string `json:"army_forge_url" binding:"required"`
	PlayerID     string `json:"player_id" binding:"required"`
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	UnitsImported int    `json:"units_imported"`
	ArmyName      string `json:"army_name"`
	TotalPoints   int    `json:"total_points"`
}
