// Package visibility decides whether a viewer may see a flashcard.
package visibility

import (
	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// IsAccessible reports whether viewer may see card given the viewer's
// accepted peers and the card IDs shared into the viewer's groups.
// It is a pure function of its arguments.
func IsAccessible(viewer uuid.UUID, card domain.Flashcard, friendIDs, groupSharedIDs domain.IDSet) bool {
	if card.Visibility == domain.VisibilityPublic {
		return true
	}
	if card.OwnerID == viewer {
		return true
	}
	if card.Visibility == domain.VisibilityFriends {
		return friendIDs.Has(card.OwnerID)
	}
	// private, or anything unrecognised
	return groupSharedIDs.Has(card.ID)
}

// Filter keeps the accessible cards, dropping duplicate IDs and keeping the
// first occurrence's position.
func Filter(viewer uuid.UUID, cards []domain.Flashcard, friendIDs, groupSharedIDs domain.IDSet) []domain.Flashcard {
	seen := domain.NewIDSet()
	out := make([]domain.Flashcard, 0, len(cards))
	for _, c := range cards {
		if seen.Has(c.ID) {
			continue
		}
		if !IsAccessible(viewer, c, friendIDs, groupSharedIDs) {
			continue
		}
		seen.Add(c.ID)
		out = append(out, c)
	}
	return out
}
