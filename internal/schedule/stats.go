package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
)

// Stats summarises a learner's ledger.
//
// Accuracy is (easy+medium)/total. It is a share of non-hard ratings, not an
// ease factor, and is 0 when nothing has been rated.
type Stats struct {
	Total        int     `json:"total"`
	Easy         int     `json:"easy"`
	Medium       int     `json:"medium"`
	Hard         int     `json:"hard"`
	Accuracy     float64 `json:"accuracy"`
	Streak       int     `json:"streak"`
	CardsTracked int     `json:"cards_tracked"`
}

// Summarize computes Stats from a list of events.
func Summarize(events []domain.ReviewEvent, asOf time.Time, loc *time.Location) Stats {
	var st Stats
	for _, e := range events {
		st.Total++
		switch e.Quality {
		case domain.QualityEasy:
			st.Easy++
		case domain.QualityMedium:
			st.Medium++
		case domain.QualityHard:
			st.Hard++
		}
	}
	if st.Total > 0 {
		st.Accuracy = float64(st.Easy+st.Medium) / float64(st.Total)
	}
	st.Streak = Streak(events, asOf, loc)
	st.CardsTracked = len(LatestByCard(events))
	return st
}

// Stats reads the ledger and summarises it as of asOf.
func (s *Scheduler) Stats(ctx context.Context, userID uuid.UUID, asOf time.Time) (Stats, error) {
	events, err := s.History(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	return Summarize(events, asOf, s.loc), nil
}
