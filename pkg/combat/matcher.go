package combat

import "strings"

// Match resolves a roll event to at most one roster entry. The rules are
// evaluated in a fixed priority so that an ambiguous event always resolves
// the same way:
//
//  1. the event's explicit target participant ID
//  2. the event's explicit character reference
//  3. the acting user's ownership of a backing character
//  4. name containment between the roller's display name and the backing
//     entity's or participant's stored name
//
// The first rule that produces an entry wins. Returns nil when nothing
// matches, which callers treat as "not an initiative roll".
func Match(roster *Roster, event *RollEvent) *Entry {
	if entry := roster.ByParticipantID(event.TargetParticipantID); entry != nil {
		return entry
	}
	if entry := roster.ByCharacterID(event.CharacterID); entry != nil {
		return entry
	}
	if entry := roster.ByOwner(event.ActingUserID); entry != nil {
		return entry
	}
	return matchByName(roster, event.RollerDisplayName)
}

// matchByName is the free-text fallback: players roll under loosely
// formatted display names ("Karlach (Steve)"), so the match goes both
// ways. The roller's name containing the backing entity's name counts,
// and so does the participant's stored name appearing in the roller's
// name.
func matchByName(roster *Roster, displayName string) *Entry {
	name := strings.ToLower(strings.TrimSpace(displayName))
	if name == "" {
		return nil
	}
	for _, entry := range roster.Entries {
		if backing := backingName(entry); backing != "" && strings.Contains(name, backing) {
			return entry
		}
		stored := strings.ToLower(strings.TrimSpace(entry.Participant.Name))
		if stored != "" && strings.Contains(name, stored) {
			return entry
		}
	}
	return nil
}

func backingName(entry *Entry) string {
	switch {
	case entry.Character != nil:
		return strings.ToLower(strings.TrimSpace(entry.Character.Name))
	case entry.Monster != nil:
		return strings.ToLower(strings.TrimSpace(entry.Monster.Name))
	default:
		return ""
	}
}
