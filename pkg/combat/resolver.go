package combat

import (
	"context"
	"fmt"

	"github.com/tmercer/greatwyrm/pkg/repositories"
	"github.com/tmercer/greatwyrm/pkg/repositories/models"
)

// Resolver applies roll events to combat sessions. It is safe for
// concurrent use: the write-once initiative claim is atomic at the storage
// layer and the completion check runs under the session's registry lock.
type Resolver struct {
	repository repositories.Repository
	registry   *SessionRegistry
}

type NewResolverOptions struct {
	Repository repositories.Repository
	Registry   *SessionRegistry
}

func NewResolver(opts NewResolverOptions) *Resolver {
	return &Resolver{
		repository: opts.Repository,
		registry:   opts.Registry,
	}
}

// Resolve processes one roll event end to end: find the campaign's active
// session, match the roll to a roster entry, record raw result plus bonus
// write-once, and transition the session to ordered when the roster is
// complete.
//
// Drop conditions come back as ErrNoActiveSession, ErrNoMatch, or
// ErrAlreadyRecorded (see IsDropped); those must not be treated as
// failures. Any other error is a storage failure: nothing should be
// broadcast. A non-nil result alongside the error means the claim was
// applied before the completion check failed; ResolveCompletion can
// finish the session later.
func (r *Resolver) Resolve(ctx context.Context, event *RollEvent) (*Result, error) {
	if event.DieType != InitiativeDie {
		return nil, &ErrNoMatch{}
	}

	session, err := r.registry.FindActiveSession(ctx, event.CampaignID)
	if err != nil {
		return nil, err
	}

	unlock := r.registry.Lock(session.ID)
	defer unlock()

	roster, err := LoadRoster(ctx, r.repository, session.ID)
	if err != nil {
		return nil, err
	}

	entry := Match(roster, event)
	if entry == nil {
		return nil, &ErrNoMatch{}
	}
	if entry.Participant.Initiative != nil {
		return nil, &ErrAlreadyRecorded{}
	}

	total := event.RawResult + InitiativeBonus(entry)
	claimed, err := r.repository.ClaimInitiative(ctx, entry.Participant.ID, total)
	if err != nil {
		return nil, err
	}
	if !claimed {
		// Another event for the same participant won the race between
		// our roster read and the claim.
		return nil, &ErrAlreadyRecorded{}
	}

	result := &Result{
		SessionID:     session.ID,
		ParticipantID: entry.Participant.ID,
		Value:         total,
	}

	resolved, order, err := r.checkCompletion(ctx, session.ID)
	if err != nil {
		// The claim itself was applied; the result is returned alongside
		// the error so callers can tell the roll landed. Completion is
		// retried on a later roll or by the sweep worker.
		return result, fmt.Errorf("failed to check completion: %v", err)
	}
	result.Resolved = resolved
	result.Order = order

	return result, nil
}

// ResolveCompletion runs the completion check for a session outside of
// roll processing. It exists for the degenerate case of a roster with no
// participants, which is considered complete the moment combat starts.
func (r *Resolver) ResolveCompletion(ctx context.Context, sessionID string) (*Result, error) {
	unlock := r.registry.Lock(sessionID)
	defer unlock()

	resolved, order, err := r.checkCompletion(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, nil
	}
	return &Result{
		SessionID: sessionID,
		Resolved:  true,
		Order:     order,
	}, nil
}

// checkCompletion re-reads the full roster and, if every participant has
// an initiative value, persists the turn order and performs the
// awaiting_initiative -> ordered transition. The caller must hold the
// session lock.
func (r *Resolver) checkCompletion(ctx context.Context, sessionID string) (bool, []string, error) {
	roster, err := LoadRoster(ctx, r.repository, sessionID)
	if err != nil {
		return false, nil, err
	}
	if !roster.Complete() {
		return false, nil, nil
	}

	order := TurnOrder(roster)
	if err := r.repository.SetSessionOrder(ctx, sessionID, order); err != nil {
		return false, nil, err
	}

	// The CAS guarantees the ordered transition is observed exactly once
	// even if two rolls complete the roster at overlapping times.
	transitioned, err := r.registry.Transition(ctx, sessionID,
		models.SessionStatusAwaitingInitiative, models.SessionStatusOrdered)
	if err != nil {
		return false, nil, err
	}
	if !transitioned {
		return false, nil, nil
	}

	return true, order, nil
}
