package visibility

import "github.com/conorfennell/knolshare/internal/domain"

// FromColumns reads the tier from the two columns that coexist while the
// legacy is_public flag is migrated away. A recognised visibility column
// wins; otherwise is_public=true means public. Anything else is private and
// reported with domain.ErrUnknownVisibility so the caller can log it.
func FromColumns(raw string, isPublic *bool) (domain.Visibility, error) {
	v, err := domain.ParseVisibility(raw)
	if err == nil {
		return v, nil
	}
	if isPublic != nil {
		if *isPublic {
			return domain.VisibilityPublic, nil
		}
		if raw == "" {
			return domain.VisibilityPrivate, nil
		}
	}
	return domain.VisibilityPrivate, err
}

// ToColumns returns the values written to the visibility and is_public columns.
func ToColumns(v domain.Visibility) (string, bool) {
	if !v.IsValid() {
		v = domain.VisibilityPrivate
	}
	return string(v), v == domain.VisibilityPublic
}
