package domain

import "strings"

// Visibility is the three-tier access policy attached to a flashcard.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityFriends Visibility = "friends"
	VisibilityPublic  Visibility = "public"
)

// IsValid reports whether v is one of the three known tiers.
func (v Visibility) IsValid() bool {
	switch v {
	case VisibilityPrivate, VisibilityFriends, VisibilityPublic:
		return true
	}
	return false
}

// ParseVisibility maps a stored or submitted value onto a tier. Anything it
// does not recognise comes back as VisibilityPrivate with ErrUnknownVisibility.
func ParseVisibility(raw string) (Visibility, error) {
	v := Visibility(strings.ToLower(strings.TrimSpace(raw)))
	if v.IsValid() {
		return v, nil
	}
	return VisibilityPrivate, ErrUnknownVisibility
}
