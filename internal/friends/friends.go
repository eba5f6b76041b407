// Package friends resolves and maintains the friendship graph.
package friends

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// Store is the persistence the accessor needs.
type Store interface {
	FriendshipsByStatus(ctx context.Context, userID uuid.UUID, status domain.FriendshipStatus) ([]domain.Friendship, error)
	FindFriendship(ctx context.Context, a, b uuid.UUID) (domain.Friendship, error)
	UpsertFriendship(ctx context.Context, f domain.Friendship) error
	DeleteFriendship(ctx context.Context, a, b uuid.UUID) error
}

// Accessor reads and updates friendships.
type Accessor struct {
	store Store
	clock domain.Clock
}

func NewAccessor(store Store, clock domain.Clock) *Accessor {
	return &Accessor{store: store, clock: clock}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

// AcceptedPeers returns the users with an accepted friendship with userID,
// in either direction. Friends of friends are not included. A user without
// friends gets an empty set.
func (a *Accessor) AcceptedPeers(ctx context.Context, userID uuid.UUID) (domain.IDSet, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	rows, err := a.store.FriendshipsByStatus(ctx, userID, domain.FriendshipAccepted)
	if err != nil {
		return nil, unavailable(err)
	}
	peers := domain.NewIDSet()
	for _, f := range rows {
		if f.Status != domain.FriendshipAccepted || !f.Involves(userID) {
			continue
		}
		if other := f.Other(userID); other != userID {
			peers.Add(other)
		}
	}
	return peers, nil
}

// Request asks to befriend to. An accepted pair stays accepted, and a pending
// request in the other direction is accepted instead of duplicated.
func (a *Accessor) Request(ctx context.Context, from, to uuid.UUID) (domain.Friendship, error) {
	if from == uuid.Nil {
		return domain.Friendship{}, domain.ErrNotAuthenticated
	}
	if from == to {
		return domain.Friendship{}, domain.ErrSelfFriendship
	}

	existing, err := a.store.FindFriendship(ctx, from, to)
	switch {
	case errors.Is(err, domain.ErrNotFound):
	case err != nil:
		return domain.Friendship{}, unavailable(err)
	case existing.Status == domain.FriendshipAccepted:
		return existing, nil
	case existing.Status == domain.FriendshipPending && existing.UserID == to:
		return a.write(ctx, existing, domain.FriendshipAccepted)
	}

	return a.write(ctx, domain.Friendship{ID: existing.ID, UserID: from, FriendID: to}, domain.FriendshipPending)
}

// Respond accepts or rejects a pending request sent by requester to recipient.
func (a *Accessor) Respond(ctx context.Context, recipient, requester uuid.UUID, accept bool) (domain.Friendship, error) {
	if recipient == uuid.Nil {
		return domain.Friendship{}, domain.ErrNotAuthenticated
	}
	existing, err := a.store.FindFriendship(ctx, recipient, requester)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Friendship{}, err
		}
		return domain.Friendship{}, unavailable(err)
	}
	if existing.Status != domain.FriendshipPending || existing.FriendID != recipient {
		return domain.Friendship{}, fmt.Errorf("no pending request from %s: %w", requester, domain.ErrNotFound)
	}

	status := domain.FriendshipRejected
	if accept {
		status = domain.FriendshipAccepted
	}
	return a.write(ctx, existing, status)
}

// Remove deletes the friendship between a and b in whatever state it is.
func (a *Accessor) Remove(ctx context.Context, userID, other uuid.UUID) error {
	if userID == uuid.Nil {
		return domain.ErrNotAuthenticated
	}
	if err := a.store.DeleteFriendship(ctx, userID, other); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return unavailable(err)
	}
	return nil
}

// Pending lists requests waiting for userID's answer.
func (a *Accessor) Pending(ctx context.Context, userID uuid.UUID) ([]domain.Friendship, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	rows, err := a.store.FriendshipsByStatus(ctx, userID, domain.FriendshipPending)
	if err != nil {
		return nil, unavailable(err)
	}
	incoming := make([]domain.Friendship, 0, len(rows))
	for _, f := range rows {
		if f.FriendID == userID {
			incoming = append(incoming, f)
		}
	}
	return incoming, nil
}

func (a *Accessor) write(ctx context.Context, f domain.Friendship, status domain.FriendshipStatus) (domain.Friendship, error) {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	f.Status = status
	f.UpdatedAt = a.clock.Now().UTC()
	if err := a.store.UpsertFriendship(ctx, f); err != nil {
		return domain.Friendship{}, unavailable(err)
	}
	return f, nil
}
