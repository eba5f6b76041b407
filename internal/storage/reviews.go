package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// There is deliberately no update or delete for review_events: the ledger is append-only.

type reviewEventRow struct {
	ID             uuid.UUID `db:"id"`
	UserID         uuid.UUID `db:"user_id"`
	FlashcardID    uuid.UUID `db:"flashcard_id"`
	Quality        int       `db:"quality"`
	NextReviewDate time.Time `db:"next_review_date"`
	IntervalDays   int       `db:"interval_days"`
	CreatedAt      time.Time `db:"created_at"`
}

// AppendReviewEvent adds an event to the ledger. seq is one past the largest
// stored value, so history reads return events with equal created_at in the
// order they were appended.
func (db *DB) AppendReviewEvent(ctx context.Context, e domain.ReviewEvent) error {
	_, err := db.execContext(ctx, `
		INSERT INTO review_events (id, user_id, flashcard_id, quality, next_review_date, interval_days, created_at, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM review_events))
	`,
		e.ID,
		e.UserID,
		e.FlashcardID,
		int(e.Quality),
		domain.Day(e.NextReviewDate),
		e.IntervalDays,
		e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append review event for card %s: %w", e.FlashcardID, err)
	}
	return nil
}

// ReviewHistory returns every event of a user, oldest first. Ties on
// created_at are returned in append order.
func (db *DB) ReviewHistory(ctx context.Context, userID uuid.UUID) ([]domain.ReviewEvent, error) {
	var rows []reviewEventRow
	err := db.selectContext(ctx, &rows, `
		SELECT id, user_id, flashcard_id, quality, next_review_date, interval_days, created_at
		FROM review_events
		WHERE user_id = ?
		ORDER BY created_at, seq
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get review history for user %s: %w", userID, err)
	}

	events := make([]domain.ReviewEvent, 0, len(rows))
	for _, r := range rows {
		events = append(events, domain.ReviewEvent{
			ID:             r.ID,
			UserID:         r.UserID,
			FlashcardID:    r.FlashcardID,
			Quality:        domain.Quality(r.Quality),
			NextReviewDate: domain.Day(r.NextReviewDate),
			IntervalDays:   r.IntervalDays,
			CreatedAt:      r.CreatedAt.UTC(),
		})
	}
	return events, nil
}
