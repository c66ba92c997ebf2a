package combat

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

func awaitingSession(t *testing.T, repo *fakeRepository, campaignID string) *models.CombatSession {
	t.Helper()
	ctx := context.Background()
	session, err := repo.CreateSession(ctx, campaignID)
	require.NoError(t, err)
	activated, err := repo.TransitionSession(ctx, session.ID,
		models.SessionStatusAssembling, models.SessionStatusAwaitingInitiative)
	require.NoError(t, err)
	require.True(t, activated)
	return session
}

func TestSessionRegistry_FindActiveSession(t *testing.T) {
	repo := newFakeRepository()
	registry := NewSessionRegistry(repo)
	ctx := context.Background()

	_, err := registry.FindActiveSession(ctx, "camp-1")
	assert.True(t, IsNoActiveSession(err))

	older := awaitingSession(t, repo, "camp-1")
	older.CreatedAt = older.CreatedAt.Add(-time.Minute)

	newer := awaitingSession(t, repo, "camp-1")

	other := awaitingSession(t, repo, "camp-2")

	// A session still assembling its roster is not active.
	_, err = repo.CreateSession(ctx, "camp-1")
	require.NoError(t, err)

	session, err := registry.FindActiveSession(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ID, session.ID, "most recent awaiting session wins")

	session, err = registry.FindActiveSession(ctx, "camp-2")
	require.NoError(t, err)
	assert.Equal(t, other.ID, session.ID)

	// Once the newest session has moved on, the older awaiting one is
	// active again.
	transitioned, err := registry.Transition(ctx, newer.ID,
		models.SessionStatusAwaitingInitiative, models.SessionStatusOrdered)
	require.NoError(t, err)
	assert.True(t, transitioned)

	session, err = registry.FindActiveSession(ctx, "camp-1")
	require.NoError(t, err)
	assert.Equal(t, older.ID, session.ID)
}

func TestSessionRegistry_TransitionIsCompareAndSwap(t *testing.T) {
	repo := newFakeRepository()
	registry := NewSessionRegistry(repo)
	ctx := context.Background()

	session := awaitingSession(t, repo, "camp-1")

	transitioned, err := registry.Transition(ctx, session.ID,
		models.SessionStatusAwaitingInitiative, models.SessionStatusOrdered)
	require.NoError(t, err)
	assert.True(t, transitioned)

	transitioned, err = registry.Transition(ctx, session.ID,
		models.SessionStatusAwaitingInitiative, models.SessionStatusOrdered)
	require.NoError(t, err)
	assert.False(t, transitioned, "second identical transition must lose the CAS")

	transitioned, err = registry.Transition(ctx, session.ID,
		models.SessionStatusOrdered, models.SessionStatusEnded)
	require.NoError(t, err)
	assert.True(t, transitioned)
}

func TestSessionRegistry_LockSerializes(t *testing.T) {
	registry := NewSessionRegistry(newFakeRepository())

	unlock := registry.Lock("session-1")

	acquired := make(chan struct{})
	go func() {
		innerUnlock := registry.Lock("session-1")
		close(acquired)
		innerUnlock()
	}()

	select {
	case <-acquired:
		t.Fatal("second Lock acquired while the first was held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()

	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second Lock never acquired after unlock")
	}
}

func TestSessionRegistry_LocksAreIndependentAcrossSessions(t *testing.T) {
	registry := NewSessionRegistry(newFakeRepository())

	unlock := registry.Lock("session-1")
	defer unlock()

	done := make(chan struct{})
	go func() {
		otherUnlock := registry.Lock("session-2")
		otherUnlock()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on an unrelated session blocked")
	}
}

func TestSessionRegistry_Forget(t *testing.T) {
	registry := NewSessionRegistry(newFakeRepository())

	unlock := registry.Lock("session-1")
	unlock()
	assert.Equal(t, []string{"session-1"}, registry.LockedSessions())

	registry.Forget("session-1")
	assert.Empty(t, registry.LockedSessions())

	// A fresh lock for the same ID works after Forget.
	unlock = registry.Lock("session-1")
	unlock()
}
