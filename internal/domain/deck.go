package domain

import (
	"time"

	"github.com/google/uuid"
)

// DeckEntry is a question-answer-context block read from a Markdown deck.
type DeckEntry struct {
	Question string
	Answer   string
	Context  string
	Hash     string
}

// SourceType distinguishes local directories from git repositories.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceGit   SourceType = "git"
)

// Source is a registered location of Markdown decks imported as flashcards.
type Source struct {
	ID            uuid.UUID  `json:"id"`
	Path          string     `json:"path"`
	Type          SourceType `json:"type"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	ContributedBy *uuid.UUID `json:"contributed_by,omitempty"`
	Visibility    Visibility `json:"visibility"`
	LastScanned   *time.Time `json:"last_scanned,omitempty"`
}
