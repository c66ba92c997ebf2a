package workers

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/greatwyrm/pkg/combat"
	"github.com/tmercer/greatwyrm/pkg/messages"
	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// stubRepository backs one session with freeform participants. The
// embedded interface panics on anything the roll path doesn't touch.
type stubRepository struct {
	repositories.Repository
	mu           sync.Mutex
	session      *models.CombatSession
	participants []*models.Participant

	claimErr    error
	setOrderErr error
}

func newStubRepository(campaignID string, names ...string) *stubRepository {
	s := &stubRepository{
		session: &models.CombatSession{
			ID:         "session-1",
			CampaignID: campaignID,
			Status:     models.SessionStatusAwaitingInitiative,
			CreatedAt:  time.Now().UTC(),
		},
	}
	for i, name := range names {
		s.participants = append(s.participants, &models.Participant{
			ID:        fmt.Sprintf("p-%d", i),
			SessionID: s.session.ID,
			Name:      name,
			Position:  i,
		})
	}
	return s
}

func (s *stubRepository) FindActiveSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.CampaignID != campaignID || s.session.Status != models.SessionStatusAwaitingInitiative {
		return nil, &repositories.ErrNotFound{}
	}
	return s.session, nil
}

func (s *stubRepository) GetSession(ctx context.Context, sessionID string) (*models.CombatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.ID != sessionID {
		return nil, &repositories.ErrNotFound{}
	}
	return s.session, nil
}

func (s *stubRepository) ListParticipants(ctx context.Context, sessionID string) ([]*models.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	participants := make([]*models.Participant, len(s.participants))
	for i, p := range s.participants {
		c := *p
		if p.Initiative != nil {
			v := *p.Initiative
			c.Initiative = &v
		}
		participants[i] = &c
	}
	return participants, nil
}

func (s *stubRepository) ClaimInitiative(ctx context.Context, participantID string, value int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	for _, p := range s.participants {
		if p.ID != participantID {
			continue
		}
		if p.Initiative != nil {
			return false, nil
		}
		p.Initiative = &value
		return true, nil
	}
	return false, &repositories.ErrNotFound{}
}

func (s *stubRepository) SetSessionOrder(ctx context.Context, sessionID string, order []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setOrderErr != nil {
		return s.setOrderErr
	}
	s.session.Order = order
	return nil
}

func (s *stubRepository) TransitionSession(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.session.ID != sessionID || s.session.Status != from {
		return false, nil
	}
	s.session.Status = to
	return true, nil
}

func newRollWorkerUnderTest(repo *stubRepository) (*RollEventWorker, *combat.SessionRegistry, chan BroadcastMessage) {
	registry := combat.NewSessionRegistry(repo)
	resolver := combat.NewResolver(combat.NewResolverOptions{
		Repository: repo,
		Registry:   registry,
	})
	broadcastChan := make(chan BroadcastMessage, 4)
	worker := NewRollEventWorker(NewRollEventWorkerOptions{
		Resolver:             resolver,
		BroadcastMessageChan: broadcastChan,
		Interval:             time.Millisecond,
	})
	return worker, registry, broadcastChan
}

func rollEvent(campaignID, name string, raw int) *combat.RollEvent {
	return &combat.RollEvent{
		CampaignID:        campaignID,
		DieType:           combat.InitiativeDie,
		RawResult:         raw,
		RollerDisplayName: name,
	}
}

func TestRollEventWorker_BroadcastsRecordedAndResolved(t *testing.T) {
	repo := newStubRepository("camp-1", "Anya", "Brick")
	worker, _, broadcastChan := newRollWorkerUnderTest(repo)
	ctx := context.Background()

	worker.processRollEvent(ctx, rollEvent("camp-1", "Anya", 17))
	msg := <-broadcastChan
	assert.Equal(t, messages.MessageTypeServerRollRecorded, msg.Type)
	assert.Empty(t, broadcastChan, "no resolution with rolls outstanding")

	worker.processRollEvent(ctx, rollEvent("camp-1", "Brick", 3))
	msg = <-broadcastChan
	assert.Equal(t, messages.MessageTypeServerRollRecorded, msg.Type)
	msg = <-broadcastChan
	require.Equal(t, messages.MessageTypeServerInitiativeResolved, msg.Type)
	resolved, ok := msg.Message.(*messages.ServerInitiativeResolved)
	require.True(t, ok)
	assert.Equal(t, []string{"p-0", "p-1"}, resolved.OrderedParticipantIDs)
}

func TestRollEventWorker_NoBroadcastOnClaimFailure(t *testing.T) {
	repo := newStubRepository("camp-1", "Anya")
	repo.claimErr = fmt.Errorf("connection reset")
	worker, _, broadcastChan := newRollWorkerUnderTest(repo)

	worker.processRollEvent(context.Background(), rollEvent("camp-1", "Anya", 12))
	assert.Empty(t, broadcastChan, "storage failure must not broadcast")
	assert.Nil(t, repo.participants[0].Initiative)
}

func TestRollEventWorker_NoBroadcastOnCompletionFailure(t *testing.T) {
	repo := newStubRepository("camp-1", "Anya")
	repo.setOrderErr = fmt.Errorf("connection reset")
	worker, registry, broadcastChan := newRollWorkerUnderTest(repo)
	ctx := context.Background()

	// The claim lands, the completion check fails: nothing goes out and
	// the session stays awaiting.
	worker.processRollEvent(ctx, rollEvent("camp-1", "Anya", 12))
	assert.Empty(t, broadcastChan)
	require.NotNil(t, repo.participants[0].Initiative)
	assert.Equal(t, 12, *repo.participants[0].Initiative)
	assert.Equal(t, models.SessionStatusAwaitingInitiative, repo.session.Status)

	// Once storage recovers, the sweep worker finishes the session and
	// broadcasts the resolution.
	repo.setOrderErr = nil
	sweeper := NewSessionSweepWorker(NewSessionSweepWorkerOptions{
		Registry:             registry,
		Repository:           repo,
		Resolver:             worker.resolver,
		BroadcastMessageChan: broadcastChan,
		Interval:             time.Minute,
	})
	sweeper.sweep(ctx)

	msg := <-broadcastChan
	require.Equal(t, messages.MessageTypeServerInitiativeResolved, msg.Type)
	assert.Equal(t, "camp-1", msg.RoomKey)
	resolved, ok := msg.Message.(*messages.ServerInitiativeResolved)
	require.True(t, ok)
	assert.Equal(t, []string{"p-0"}, resolved.OrderedParticipantIDs)
	assert.Equal(t, models.SessionStatusOrdered, repo.session.Status)
}

func TestSessionSweepWorker_ForgetsFinishedSessions(t *testing.T) {
	repo := newStubRepository("camp-1", "Anya")
	_, registry, broadcastChan := newRollWorkerUnderTest(repo)
	ctx := context.Background()

	unlock := registry.Lock(repo.session.ID)
	unlock()
	repo.session.Status = models.SessionStatusEnded

	sweeper := NewSessionSweepWorker(NewSessionSweepWorkerOptions{
		Registry:             registry,
		Repository:           repo,
		BroadcastMessageChan: broadcastChan,
		Interval:             time.Minute,
	})
	sweeper.sweep(ctx)

	assert.Empty(t, registry.LockedSessions())
	assert.Empty(t, broadcastChan)
}
