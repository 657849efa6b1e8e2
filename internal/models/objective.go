package models

import "fmt"

// ObjectiveStatus is a marker's control state.
type ObjectiveStatus string

const (
	ObjectiveNeutral   ObjectiveStatus = "neutral"
	ObjectiveSeized    ObjectiveStatus = "seized"
	ObjectiveContested ObjectiveStatus = "contested"
)

// Objective is one battlefield marker. Sessions carry 3-6 of them; control is
// re-checked at the end of each round.
type Objective struct {
	BaseModel
	GameID string `gorm:"type:varchar(36);not null;index" json:"game_id"`

	MarkerNumber int     `gorm:"not null" json:"marker_number"`
	Label        *string `gorm:"size:50" json:"label,omitempty"`

	Status ObjectiveStatus `gorm:"size:20;default:'neutral'" json:"status"`

	// Only set while Status == seized.
	ControlledByID *string `gorm:"type:varchar(36)" json:"controlled_by_id,omitempty"`
}

// DisplayName prefers the label.
func (o *Objective) DisplayName() string {
	if o.Label != nil && *o.Label != "" {
		return *o.Label
	}
	return fmt.Sprintf("Objective %d", o.MarkerNumber)
}
