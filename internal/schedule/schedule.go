// Package schedule turns recall ratings into review dates and derives
// streaks and statistics from the review ledger.
package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// Ledger is the append-only store of review events.
type Ledger interface {
	AppendReviewEvent(ctx context.Context, e domain.ReviewEvent) error
	ReviewHistory(ctx context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error)
}

// Scheduler computes next review dates and streaks for learners.
type Scheduler struct {
	ledger Ledger
	clock  domain.Clock
	loc    *time.Location
	newID  func() uuid.UUID
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLocation sets the time zone whose calendar decides what "today" is.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// New returns a Scheduler writing to ledger. Dates default to UTC.
func New(ledger Ledger, clock domain.Clock, opts ...Option) *Scheduler {
	s := &Scheduler{
		ledger: ledger,
		clock:  clock,
		loc:    time.UTC,
		newID:  uuid.New,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Today is the current calendar date in the scheduler's time zone.
func (s *Scheduler) Today() time.Time {
	return domain.Day(s.clock.Now().In(s.loc))
}

// Location is the time zone the scheduler reads calendar dates in.
func (s *Scheduler) Location() *time.Location {
	return s.loc
}

// NextReview returns the due date and interval for a rating given on ratedOn.
// The interval is counted from the rating day, never from a previous due date.
func NextReview(ratedOn time.Time, q domain.Quality) (time.Time, int) {
	days := q.Interval()
	return domain.AddDays(ratedOn, days), days
}

// Rate records a rating as a new ledger event and returns it. A failed write
// is returned so the learner can resubmit.
func (s *Scheduler) Rate(ctx context.Context, userID, flashcardID uuid.UUID, q domain.Quality) (domain.ReviewEvent, error) {
	if userID == uuid.Nil {
		return domain.ReviewEvent{}, domain.ErrNotAuthenticated
	}
	if !q.IsValid() {
		return domain.ReviewEvent{}, fmt.Errorf("%w: %d", domain.ErrInvalidQuality, int(q))
	}

	now := s.clock.Now().In(s.loc)
	next, days := NextReview(domain.Day(now), q)
	event := domain.ReviewEvent{
		ID:             s.newID(),
		UserID:         userID,
		FlashcardID:    flashcardID,
		Quality:        q,
		NextReviewDate: next,
		IntervalDays:   days,
		CreatedAt:      now.UTC(),
	}
	if err := s.ledger.AppendReviewEvent(ctx, event); err != nil {
		return domain.ReviewEvent{}, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return event, nil
}

// History reads a user's ledger, oldest first.
func (s *Scheduler) History(ctx context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	events, err := s.ledger.ReviewHistory(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrStorageUnavailable, err)
	}
	return events, nil
}

// ComputeStreak counts consecutive study days ending today or yesterday
// relative to asOf. It reads the ledger on every call.
func (s *Scheduler) ComputeStreak(ctx context.Context, userID uuid.UUID, asOf time.Time) (int, error) {
	events, err := s.History(ctx, userID)
	if err != nil {
		return 0, err
	}
	return Streak(events, asOf, s.loc), nil
}

// LatestByCard keeps the most recent event per flashcard. Events with equal
// timestamps resolve to the one that appears later in events.
func LatestByCard(events []domain.ReviewEvent) map[uuid.UUID]domain.ReviewEvent {
	latest := make(map[uuid.UUID]domain.ReviewEvent, len(events))
	for _, e := range events {
		cur, ok := latest[e.FlashcardID]
		if !ok || !e.CreatedAt.Before(cur.CreatedAt) {
			latest[e.FlashcardID] = e
		}
	}
	return latest
}

// Streak is the pure form of ComputeStreak. Study days after asOf are ignored.
func Streak(events []domain.ReviewEvent, asOf time.Time, loc *time.Location) int {
	if loc == nil {
		loc = time.UTC
	}
	today := domain.Day(asOf.In(loc))

	seen := make(map[time.Time]struct{})
	var days []time.Time
	for _, e := range events {
		d := domain.Day(e.CreatedAt.In(loc))
		if d.After(today) {
			continue
		}
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	if len(days) == 0 {
		return 0
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	latest := days[0]
	if !latest.Equal(today) && !latest.Equal(domain.AddDays(today, -1)) {
		return 0
	}

	streak := 1
	expected := domain.AddDays(latest, -1)
	for _, d := range days[1:] {
		if !d.Equal(expected) {
			break
		}
		streak++
		expected = domain.AddDays(expected, -1)
	}
	return streak
}
