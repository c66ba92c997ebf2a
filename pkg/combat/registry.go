package combat

import (
	"context"
	"sync"

	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// SessionRegistry tracks live combat sessions and hands out one lock per
// session ID. The per-session lock serializes the record-and-check cycle
// for a single combat while letting unrelated campaigns resolve fully in
// parallel; there is no engine-wide lock around resolution.
type SessionRegistry struct {
	repository repositories.Repository
	mu         sync.Mutex
	locks      map[string]*sync.Mutex
}

func NewSessionRegistry(repository repositories.Repository) *SessionRegistry {
	return &SessionRegistry{
		repository: repository,
		locks:      make(map[string]*sync.Mutex),
	}
}

// FindActiveSession returns the most recently created session for the
// campaign that is still awaiting initiative. Returns ErrNoActiveSession
// when the campaign has none.
func (r *SessionRegistry) FindActiveSession(ctx context.Context, campaignID string) (*models.CombatSession, error) {
	session, err := r.repository.FindActiveSession(ctx, campaignID)
	if err != nil {
		if repositories.IsNotFound(err) {
			return nil, &ErrNoActiveSession{}
		}
		return nil, err
	}
	return session, nil
}

// Lock acquires the session's lock and returns the unlock function.
func (r *SessionRegistry) Lock(sessionID string) func() {
	r.mu.Lock()
	lock, ok := r.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[sessionID] = lock
	}
	r.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Transition moves the session between statuses with compare-and-swap
// semantics. A false return means the session had already moved on, which
// callers treat as "nothing to do".
func (r *SessionRegistry) Transition(ctx context.Context, sessionID string, from, to models.SessionStatus) (bool, error) {
	return r.repository.TransitionSession(ctx, sessionID, from, to)
}

// Forget drops the lock for a session that has reached a terminal status,
// so the lock table doesn't grow with every combat ever fought. Safe to
// call while the session is idle; a later roll for the same ID would just
// allocate a fresh lock.
func (r *SessionRegistry) Forget(sessionID string) {
	r.mu.Lock()
	delete(r.locks, sessionID)
	r.mu.Unlock()
}

// LockedSessions returns the IDs currently present in the lock table.
func (r *SessionRegistry) LockedSessions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.locks))
	for id := range r.locks {
		ids = append(ids, id)
	}
	return ids
}
