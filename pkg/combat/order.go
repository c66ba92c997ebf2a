package combat

import "sort"

// TurnOrder computes the final turn order for a complete roster: a
// descending sort by initiative value. The sort is stable, so equal values
// keep their roster insertion order and the result is reproducible for
// identical inputs. Participants without a value sort last; that only
// happens if a caller asks for an order before the roster is complete.
func TurnOrder(roster *Roster) []string {
	entries := make([]*Entry, len(roster.Entries))
	copy(entries, roster.Entries)

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i].Participant.Initiative, entries[j].Participant.Initiative
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		return *a > *b
	})

	order := make([]string, len(entries))
	for i, entry := range entries {
		order[i] = entry.Participant.ID
	}
	return order
}
