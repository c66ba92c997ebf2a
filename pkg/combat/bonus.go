package combat

import (
	"strconv"
	"strings"
)

const defaultAbilityScore = 10

// AbilityModifier converts an ability score to its modifier,
// floor((score-10)/2). A score of 10 is a modifier of 0.
func AbilityModifier(score int) int {
	d := score - defaultAbilityScore
	if d < 0 {
		return (d - 1) / 2
	}
	return d / 2
}

// ParseAbilityScore parses a raw sheet attribute value. Sheets are
// free-form text, so anything that isn't a number falls back to the
// default score of 10 (modifier 0).
func ParseAbilityScore(raw string) int {
	score, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultAbilityScore
	}
	return score
}

// InitiativeBonus computes the dexterity-derived bonus for a roster entry.
// Freeform participants have no backing sheet and get a bonus of 0.
func InitiativeBonus(entry *Entry) int {
	switch {
	case entry.Character != nil:
		return AbilityModifier(ParseAbilityScore(entry.Character.Dexterity))
	case entry.MonsterType != nil:
		return AbilityModifier(ParseAbilityScore(entry.MonsterType.Dexterity))
	default:
		return 0
	}
}
