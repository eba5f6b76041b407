package domain

import (
	"time"

	"github.com/google/uuid"
)

// ReviewEvent is one entry of the append-only review ledger.
// The most recent event per (user, flashcard) decides when the card is due.
type ReviewEvent struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	FlashcardID    uuid.UUID `json:"flashcard_id"`
	Quality        Quality   `json:"quality"`
	NextReviewDate time.Time `json:"next_review_date"`
	IntervalDays   int       `json:"interval_days"`
	CreatedAt      time.Time `json:"created_at"`
}
