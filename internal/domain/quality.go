package domain

import (
	"encoding"
	"fmt"
	"strings"
)

// Quality is a learner's self-rated recall of a card.
type Quality int

const (
	QualityHard   Quality = 1
	QualityMedium Quality = 3
	QualityEasy   Quality = 5
)

var (
	_ fmt.Stringer             = Quality(0)
	_ encoding.TextMarshaler   = Quality(0)
	_ encoding.TextUnmarshaler = (*Quality)(nil)
)

// IsValid reports whether q is hard, medium or easy.
func (q Quality) IsValid() bool {
	return q == QualityHard || q == QualityMedium || q == QualityEasy
}

// Interval is the fixed number of days until the card is due again.
// Intervals never compound: the same rating always yields the same gap.
func (q Quality) Interval() int {
	switch q {
	case QualityEasy:
		return 7
	case QualityMedium:
		return 3
	case QualityHard:
		return 1
	}
	return 0
}

func (q Quality) String() string {
	switch q {
	case QualityEasy:
		return "easy"
	case QualityMedium:
		return "medium"
	case QualityHard:
		return "hard"
	}
	return fmt.Sprintf("Quality(%d)", int(q))
}

// ParseQuality accepts the rating names used by the UI.
func ParseQuality(s string) (Quality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "easy":
		return QualityEasy, nil
	case "medium":
		return QualityMedium, nil
	case "hard":
		return QualityHard, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidQuality, s)
}

func (q Quality) MarshalText() ([]byte, error) {
	if !q.IsValid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidQuality, int(q))
	}
	return []byte(q.String()), nil
}

func (q *Quality) UnmarshalText(text []byte) error {
	parsed, err := ParseQuality(string(text))
	if err != nil {
		return err
	}
	*q = parsed
	return nil
}
