package domain

import (
	"time"

	"github.com/google/uuid"
)

// UncategorizedSubject is the label used for cards with neither a catalog
// subject nor a custom one.
const UncategorizedSubject = "Uncategorized"

// Side is one face of a flashcard.
type Side struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

// Flashcard is a single reviewable card owned by one user.
type Flashcard struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	ContributedBy *uuid.UUID `json:"contributed_by,omitempty"`
	SubjectID     *uuid.UUID `json:"subject_id,omitempty"`
	SubjectName   string     `json:"subject_name,omitempty"`
	CustomSubject string     `json:"custom_subject,omitempty"`
	Front         Side       `json:"front"`
	Back          Side       `json:"back"`
	Visibility    Visibility `json:"visibility"`
	ContentHash   string     `json:"-"`
	SourceID      *uuid.UUID `json:"source_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SubjectLabel returns the name the card is grouped under: the catalog
// subject when there is one, then the custom label, then UncategorizedSubject.
func (c Flashcard) SubjectLabel() string {
	if c.SubjectName != "" {
		return c.SubjectName
	}
	if c.CustomSubject != "" {
		return c.CustomSubject
	}
	return UncategorizedSubject
}
