package session

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/dueset"
)

type recordingRater struct {
	calls []uuid.UUID
	err   error
}

func (r *recordingRater) Rate(_ context.Context, userID, cardID uuid.UUID, q domain.Quality) (domain.ReviewEvent, error) {
	if r.err != nil {
		return domain.ReviewEvent{}, r.err
	}
	r.calls = append(r.calls, cardID)
	return domain.ReviewEvent{ID: uuid.New(), UserID: userID, FlashcardID: cardID, Quality: q}, nil
}

func group(n int) dueset.Group {
	g := dueset.Group{Subject: "Spanish"}
	for i := 0; i < n; i++ {
		g.Cards = append(g.Cards, dueset.Entry{Flashcard: domain.Flashcard{
			ID:    uuid.New(),
			Front: domain.Side{Text: "front"},
			Back:  domain.Side{Text: "back"},
		}})
	}
	return g
}

func order(t *testing.T, r *Runner) []uuid.UUID {
	t.Helper()
	var out []uuid.UUID
	for i := range r.order {
		out = append(out, r.cards[r.order[i]].ID)
	}
	return out
}

func TestRunner_FullPass(t *testing.T) {
	rater := &recordingRater{}
	g := group(3)
	r, err := New(uuid.New(), g, rater, 42)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Equal(t, Idle, r.State())
	_, ok := r.Current()
	assert.False(t, ok)

	require.NoError(t, r.Start())
	want := order(t, r)

	for i := 0; i < 3; i++ {
		pos, total := r.Progress()
		assert.Equal(t, i+1, pos)
		assert.Equal(t, 3, total)

		assert.Nil(t, r.Snapshot().Back, "back is hidden before reveal")
		require.NoError(t, r.Reveal())
		require.NoError(t, r.Reveal(), "reveal is idempotent")
		assert.NotNil(t, r.Snapshot().Back)

		_, err := r.Rate(ctx, domain.QualityMedium)
		require.NoError(t, err)
	}

	assert.Equal(t, Complete, r.State())
	assert.Equal(t, want, rater.calls)
	assert.Equal(t, 3, r.Rated())
	assert.Equal(t, 3, r.Snapshot().Rated)

	_, err = r.Rate(ctx, domain.QualityEasy)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.ErrorIs(t, r.Reveal(), domain.ErrInvalidTransition)
	assert.Len(t, rater.calls, 3)
}

func TestRunner_RateBeforeRevealIsRejected(t *testing.T) {
	rater := &recordingRater{}
	r, err := New(uuid.New(), group(2), rater, 1)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = r.Rate(ctx, domain.QualityEasy)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "idle")

	require.NoError(t, r.Start())
	_, err = r.Rate(ctx, domain.QualityEasy)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition, "front")
	assert.Empty(t, rater.calls)
	assert.Equal(t, Front, r.State())

	assert.ErrorIs(t, r.Start(), domain.ErrInvalidTransition)
}

func TestRunner_FailedRatingStaysOnCard(t *testing.T) {
	rater := &recordingRater{err: domain.ErrStorageUnavailable}
	r, err := New(uuid.New(), group(2), rater, 7)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	require.NoError(t, r.Reveal())
	before, _ := r.Current()

	_, err = r.Rate(context.Background(), domain.QualityHard)
	assert.ErrorIs(t, err, domain.ErrStorageUnavailable)
	assert.Equal(t, Back, r.State())
	after, _ := r.Current()
	assert.Equal(t, before.ID, after.ID)

	rater.err = nil
	_, err = r.Rate(context.Background(), domain.QualityHard)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{before.ID}, rater.calls)
	assert.Equal(t, Front, r.State())
}

func TestRunner_SeedDeterminesOrder(t *testing.T) {
	g := group(12)

	a, err := New(uuid.New(), g, &recordingRater{}, 99)
	require.NoError(t, err)
	b, err := New(uuid.New(), g, &recordingRater{}, 99)
	require.NoError(t, err)
	assert.Equal(t, order(t, a), order(t, b))

	c, err := New(uuid.New(), g, &recordingRater{}, 100)
	require.NoError(t, err)
	assert.ElementsMatch(t, order(t, a), order(t, c))
}

func TestRunner_RestartReplaysSameCards(t *testing.T) {
	rater := &recordingRater{}
	g := group(5)
	r, err := New(uuid.New(), g, rater, 3)
	require.NoError(t, err)
	require.NoError(t, r.Start())
	first := order(t, r)

	for r.State() != Complete {
		require.NoError(t, r.Reveal())
		_, err := r.Rate(context.Background(), domain.QualityEasy)
		require.NoError(t, err)
	}

	require.NoError(t, r.Restart())
	assert.Equal(t, Front, r.State())
	pos, total := r.Progress()
	assert.Equal(t, 1, pos)
	assert.Equal(t, 5, total)
	assert.ElementsMatch(t, first, order(t, r))
	assert.Equal(t, 0, r.Snapshot().Rated)
	assert.Len(t, rater.calls, 5, "restart writes nothing")
}

func TestRunner_EmptyAndUnauthenticated(t *testing.T) {
	_, err := New(uuid.Nil, group(1), &recordingRater{}, 0)
	assert.ErrorIs(t, err, domain.ErrNotAuthenticated)

	r, err := New(uuid.New(), dueset.Group{Subject: "Empty"}, &recordingRater{}, 0)
	require.NoError(t, err)
	assert.ErrorIs(t, r.Start(), domain.ErrEmptySession)
	assert.Equal(t, Idle, r.State())
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	rater := &recordingRater{}
	user := uuid.New()

	r1, err := New(user, group(2), rater, 1)
	require.NoError(t, err)
	r2, err := New(user, group(2), rater, 2)
	require.NoError(t, err)

	assert.False(t, reg.Put(r1))
	assert.True(t, reg.Put(r2), "a new session replaces the old one")

	got, ok := reg.Get(user)
	require.True(t, ok)
	assert.Same(t, r2, got)

	require.NoError(t, got.Start())
	require.NoError(t, got.Reveal())
	assert.True(t, reg.Exit(user))
	assert.False(t, reg.Exit(user))
	_, ok = reg.Get(user)
	assert.False(t, ok)
	assert.Empty(t, rater.calls, "exiting writes nothing")
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "back", Back.String())
	assert.Equal(t, "State(9)", State(9).String())
}

func TestState_TextRoundTrip(t *testing.T) {
	var s State
	require.NoError(t, s.UnmarshalText([]byte("complete")))
	assert.Equal(t, Complete, s)
	assert.Error(t, s.UnmarshalText([]byte("paused")))
}
