// Package dueset builds the per-subject set of cards a learner should study today.
package dueset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/schedule"
	"github.com/conorfennell/knolshare/internal/visibility"
)

// CardStore fetches candidate flashcards.
type CardStore interface {
	PublicFlashcards(ctx context.Context) ([]domain.Flashcard, error)
	FlashcardsOwnedBy(ctx context.Context, ownerID uuid.UUID) ([]domain.Flashcard, error)
	FriendsTierFlashcards(ctx context.Context, ownerIDs []uuid.UUID) ([]domain.Flashcard, error)
	FlashcardsByIDs(ctx context.Context, ids []uuid.UUID) ([]domain.Flashcard, error)
}

// GroupStore resolves cards shared into the viewer's groups.
type GroupStore interface {
	GroupSharedFlashcardIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// PeerResolver returns a user's accepted friends.
type PeerResolver interface {
	AcceptedPeers(ctx context.Context, userID uuid.UUID) (domain.IDSet, error)
}

// Ledger reads a user's review history.
type Ledger interface {
	ReviewHistory(ctx context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error)
}

// Builder composes visibility, friendships and the ledger into a DueSet.
type Builder struct {
	cards  CardStore
	groups GroupStore
	peers  PeerResolver
	ledger Ledger
	loc    *time.Location
}

// NewBuilder returns a Builder reading calendar dates in loc (UTC when nil).
func NewBuilder(cards CardStore, groups GroupStore, peers PeerResolver, ledger Ledger, loc *time.Location) *Builder {
	if loc == nil {
		loc = time.UTC
	}
	return &Builder{cards: cards, groups: groups, peers: peers, ledger: ledger, loc: loc}
}

func unavailable(err error) error {
	if errors.Is(err, domain.ErrStorageUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
}

// DueCards returns the cards viewer should study on asOf's date: every
// visible card never rated by the viewer plus every visible card whose latest
// rating is due on or before that date. Any failed read fails the whole call.
func (b *Builder) DueCards(ctx context.Context, viewer uuid.UUID, asOf time.Time) (*DueSet, error) {
	if viewer == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	today := domain.Day(asOf.In(b.loc))

	var (
		history []domain.ReviewEvent
		peers   domain.IDSet
		shared  domain.IDSet
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = b.ledger.ReviewHistory(gctx, viewer)
		return err
	})
	g.Go(func() error {
		var err error
		peers, err = b.peers.AcceptedPeers(gctx, viewer)
		return err
	})
	g.Go(func() error {
		ids, err := b.groups.GroupSharedFlashcardIDs(gctx, viewer)
		shared = domain.NewIDSet(ids...)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, unavailable(err)
	}

	candidates, err := b.candidates(ctx, viewer, peers, shared)
	if err != nil {
		return nil, unavailable(err)
	}
	visible := visibility.Filter(viewer, candidates, peers, shared)

	latest := schedule.LatestByCard(history)
	ledgerPos := make(map[uuid.UUID]int, len(latest))
	for i, e := range history {
		if latest[e.FlashcardID].ID == e.ID {
			ledgerPos[e.FlashcardID] = i
		}
	}

	var due, fresh []Entry
	for _, c := range visible {
		e, tracked := latest[c.ID]
		switch {
		case !tracked:
			fresh = append(fresh, Entry{Flashcard: c, New: true})
		case !e.NextReviewDate.After(today):
			due = append(due, Entry{Flashcard: c, DueDate: e.NextReviewDate})
		}
	}

	// Due cards follow the ledger: the card whose latest rating is oldest comes first.
	sort.SliceStable(due, func(i, j int) bool {
		a, b := latest[due[i].ID], latest[due[j].ID]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return ledgerPos[due[i].ID] < ledgerPos[due[j].ID]
	})

	set := newDueSet(today)
	for _, e := range append(due, fresh...) {
		set.add(sanitizeCard(e))
	}

	slog.Debug("Built due set",
		"viewer", viewer,
		"as_of", today.Format(time.DateOnly),
		"candidates", len(candidates),
		"visible", len(visible),
		"due", len(due),
		"new", len(fresh),
		"subjects", len(set.Groups),
	)
	return set, nil
}

// candidates fetches the viewer's own cards, friends-tier cards of peers,
// group-shared cards and public cards, in that order, all in parallel.
func (b *Builder) candidates(ctx context.Context, viewer uuid.UUID, peers, shared domain.IDSet) ([]domain.Flashcard, error) {
	var own, friends, grouped, public []domain.Flashcard

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		own, err = b.cards.FlashcardsOwnedBy(gctx, viewer)
		return err
	})
	g.Go(func() error {
		var err error
		friends, err = b.cards.FriendsTierFlashcards(gctx, peers.Slice())
		return err
	})
	g.Go(func() error {
		var err error
		grouped, err = b.cards.FlashcardsByIDs(gctx, shared.Slice())
		return err
	})
	g.Go(func() error {
		var err error
		public, err = b.cards.PublicFlashcards(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Flashcard, 0, len(own)+len(friends)+len(grouped)+len(public))
	out = append(out, own...)
	out = append(out, friends...)
	out = append(out, grouped...)
	out = append(out, public...)
	return out, nil
}
