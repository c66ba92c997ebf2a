package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

func intPtr(v int) *int { return &v }

func orderRoster(values ...*int) *Roster {
	roster := &Roster{SessionID: "session-1"}
	for i, v := range values {
		roster.Entries = append(roster.Entries, &Entry{
			Participant: &models.Participant{
				ID:         "p-" + string(rune('a'+i)),
				Initiative: v,
				Position:   i,
			},
		})
	}
	return roster
}

func TestTurnOrder(t *testing.T) {
	testCases := []struct {
		name   string
		roster *Roster
		want   []string
	}{
		{
			name:   "descending by value",
			roster: orderRoster(intPtr(12), intPtr(20), intPtr(3)),
			want:   []string{"p-b", "p-a", "p-c"},
		},
		{
			name:   "ties keep roster insertion order",
			roster: orderRoster(intPtr(15), intPtr(15), intPtr(15)),
			want:   []string{"p-a", "p-b", "p-c"},
		},
		{
			name:   "mixed ties",
			roster: orderRoster(intPtr(10), intPtr(17), intPtr(10), intPtr(17)),
			want:   []string{"p-b", "p-d", "p-a", "p-c"},
		},
		{
			name:   "negative totals sort below positive",
			roster: orderRoster(intPtr(-2), intPtr(1)),
			want:   []string{"p-b", "p-a"},
		},
		{
			name:   "missing values sort last",
			roster: orderRoster(intPtr(8), nil, intPtr(14)),
			want:   []string{"p-c", "p-a", "p-b"},
		},
		{
			name:   "empty roster",
			roster: orderRoster(),
			want:   []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, TurnOrder(tc.roster))
		})
	}
}

func TestTurnOrderIsReproducible(t *testing.T) {
	roster := orderRoster(intPtr(11), intPtr(11), intPtr(19), intPtr(11))
	first := TurnOrder(roster)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, TurnOrder(roster))
	}
}
