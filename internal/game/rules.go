package game

import (
	"strconv"
	"strings"

	"github.com/otahak/herald/internal/models"
)

// SpecialRuleFlags are the unit properties derived from its rule list,
// cached on the Unit row at import or creation time.
type SpecialRuleFlags struct {
	IsHero            bool
	IsCaster          bool
	CasterLevel       int
	IsTransport       bool
	TransportCapacity int
	HasAmbush         bool
	HasScout          bool
	Tough             int
}

// ParseSpecialRules extracts unit flags from Army Forge style rule entries.
// Each entry is a map with a "name" and an optional "rating".
func ParseSpecialRules(rules models.JSONList) SpecialRuleFlags {
	flags := SpecialRuleFlags{Tough: 1}

	for _, raw := range rules {
		rule, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := rule["name"].(string)
		rating := ratingValue(rule["rating"])

		switch strings.ToLower(name) {
		case "hero":
			flags.IsHero = true
		case "caster":
			flags.IsCaster = true
			flags.CasterLevel = ratingOr(rating, 1)
		case "transport":
			flags.IsTransport = true
			flags.TransportCapacity = ratingOr(rating, 6)
		case "ambush":
			flags.HasAmbush = true
		case "scout":
			flags.HasScout = true
		case "tough":
			flags.Tough = ratingOr(rating, 1)
		}
	}

	return flags
}

// ratingValue normalizes a rule rating, which arrives as a JSON number or a
// string depending on the source.
func ratingValue(raw any) int {
	switch v := raw.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return 0
}

func ratingOr(rating, fallback int) int {
	if rating > 0 {
		return rating
	}
	return fallback
}
