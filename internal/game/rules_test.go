package game

import (
	"strings"
	"testing"

	"github.com/otahak/herald/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpecialRules(t *testing.T) {
	tests := []struct {
		name  string
		rules models.JSONList
		want  SpecialRuleFlags
	}{
		{
			name:  "empty",
			rules: nil,
			want:  SpecialRuleFlags{Tough: 1},
		},
		{
			name: "hero with tough",
			rules: models.JSONList{
				map[string]any{"name": "Hero"},
				map[string]any{"name": "Tough", "rating": float64(3)},
			},
			want: SpecialRuleFlags{IsHero: true, Tough: 3},
		},
		{
			name: "caster with level",
			rules: models.JSONList{
				map[string]any{"name": "Caster", "rating": float64(2)},
			},
			want: SpecialRuleFlags{IsCaster: true, CasterLevel: 2, Tough: 1},
		},
		{
			name: "caster without rating defaults to one",
			rules: models.JSONList{
				map[string]any{"name": "Caster"},
			},
			want: SpecialRuleFlags{IsCaster: true, CasterLevel: 1, Tough: 1},
		},
		{
			name: "transport with string rating",
			rules: models.JSONList{
				map[string]any{"name": "Transport", "rating": "11"},
			},
			want: SpecialRuleFlags{IsTransport: true, TransportCapacity: 11, Tough: 1},
		},
		{
			name: "ambush and scout",
			rules: models.JSONList{
				map[string]any{"name": "Ambush"},
				map[string]any{"name": "Scout"},
			},
			want: SpecialRuleFlags{HasAmbush: true, HasScout: true, Tough: 1},
		},
		{
			name: "case insensitive names",
			rules: models.JSONList{
				map[string]any{"name": "HERO"},
			},
			want: SpecialRuleFlags{IsHero: true, Tough: 1},
		},
		{
			name: "malformed entries skipped",
			rules: models.JSONList{
				"not a map",
				map[string]any{"rating": float64(2)},
				map[string]any{"name": "Tough", "rating": "garbage"},
			},
			want: SpecialRuleFlags{Tough: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSpecialRules(tt.rules))
		})
	}
}

func TestGenerateJoinCode(t *testing.T) {
	code, err := GenerateJoinCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.Contains(t, joinCodeAlphabet, string(c))
	}
}

func TestJoinCodeAlphabetUnambiguous(t *testing.T) {
	for _, c := range "0O1I" {
		assert.False(t, strings.ContainsRune(joinCodeAlphabet, c))
	}
}
