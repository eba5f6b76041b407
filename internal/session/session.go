// Package session runs a single study session over one subject group.
package session

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/conorfennell/knolshare/internal/domain"
	"github.com/conorfennell/knolshare/internal/dueset"
)

// State is where a session is in its front/back/rate cycle.
type State int

const (
	Idle State = iota
	Front
	Back
	Complete
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Front:
		return "front"
	case Back:
		return "back"
	case Complete:
		return "complete"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, Front, Back, Complete} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// Rater records a rating. *schedule.Scheduler satisfies it.
type Rater interface {
	Rate(ctx context.Context, userID, flashcardID uuid.UUID, q domain.Quality) (domain.ReviewEvent, error)
}

// Runner presents the cards of one subject group one at a time, in an order
// shuffled once per pass from a seeded source. Only Rate writes to the ledger.
type Runner struct {
	mu sync.Mutex

	userID  uuid.UUID
	subject string
	cards   []domain.Flashcard
	order   []int
	pos     int
	state   State
	rated   int
	rng     *rand.Rand
	rater   Rater
}

// New prepares an idle session for userID over group. The same seed always
// produces the same card order.
func New(userID uuid.UUID, group dueset.Group, rater Rater, seed uint64) (*Runner, error) {
	if userID == uuid.Nil {
		return nil, domain.ErrNotAuthenticated
	}
	r := &Runner{
		userID:  userID,
		subject: group.Subject,
		cards:   group.Flashcards(),
		rng:     rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		rater:   rater,
	}
	r.shuffle()
	return r, nil
}

func (r *Runner) shuffle() {
	r.order = make([]int, len(r.cards))
	for i := range r.order {
		r.order[i] = i
	}
	r.rng.Shuffle(len(r.order), func(i, j int) {
		r.order[i], r.order[j] = r.order[j], r.order[i]
	})
	r.pos = 0
	r.rated = 0
}

// Start shows the front of the first card.
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.start()
}

func (r *Runner) start() error {
	if r.state != Idle {
		return fmt.Errorf("%w: start from %s", domain.ErrInvalidTransition, r.state)
	}
	if len(r.cards) == 0 {
		return domain.ErrEmptySession
	}
	r.state = Front
	return nil
}

// Reveal turns the current card over. Revealing an already revealed card
// does nothing.
func (r *Runner) Reveal() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case Front:
		r.state = Back
		return nil
	case Back:
		return nil
	}
	return fmt.Errorf("%w: reveal from %s", domain.ErrInvalidTransition, r.state)
}

// Rate records q for the revealed card and advances. If the rating cannot be
// stored the session stays on the same card so it can be submitted again.
func (r *Runner) Rate(ctx context.Context, q domain.Quality) (domain.ReviewEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Back {
		return domain.ReviewEvent{}, fmt.Errorf("%w: rate from %s", domain.ErrInvalidTransition, r.state)
	}
	card := r.cards[r.order[r.pos]]
	event, err := r.rater.Rate(ctx, r.userID, card.ID, q)
	if err != nil {
		return domain.ReviewEvent{}, err
	}

	r.rated++
	r.pos++
	if r.pos == len(r.order) {
		r.state = Complete
	} else {
		r.state = Front
	}
	return event, nil
}

// Restart reshuffles the same cards and starts over without fetching anything.
func (r *Runner) Restart() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == Idle {
		return r.start()
	}
	r.shuffle()
	r.state = Front
	return nil
}

// Current returns the card on screen, if any.
func (r *Runner) Current() (domain.Flashcard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current()
}

func (r *Runner) current() (domain.Flashcard, bool) {
	if r.state != Front && r.state != Back {
		return domain.Flashcard{}, false
	}
	return r.cards[r.order[r.pos]], true
}

// State returns the current state.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Progress returns the 1-based position of the current card and the total.
// A complete session reports total/total.
func (r *Runner) Progress() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.progress()
}

func (r *Runner) progress() (int, int) {
	switch r.state {
	case Idle:
		return 0, len(r.cards)
	case Complete:
		return len(r.cards), len(r.cards)
	}
	return r.pos + 1, len(r.cards)
}

// Rated is how many cards have been rated in the current pass.
func (r *Runner) Rated() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rated
}

// UserID is the learner the session belongs to.
func (r *Runner) UserID() uuid.UUID { return r.userID }

// Subject is the group the session was built from.
func (r *Runner) Subject() string { return r.subject }

// View is a snapshot of the session for display. Back is only filled in once
// the card is revealed.
type View struct {
	Subject  string       `json:"subject"`
	State    State        `json:"state"`
	Position int          `json:"position"`
	Total    int          `json:"total"`
	Rated    int          `json:"rated"`
	CardID   *uuid.UUID   `json:"card_id,omitempty"`
	Front    *domain.Side `json:"front,omitempty"`
	Back     *domain.Side `json:"back,omitempty"`
}

// Snapshot returns the current View.
func (r *Runner) Snapshot() View {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, total := r.progress()
	v := View{Subject: r.subject, State: r.state, Position: pos, Total: total, Rated: r.rated}
	if card, ok := r.current(); ok {
		id := card.ID
		front := card.Front
		v.CardID = &id
		v.Front = &front
		if r.state == Back {
			back := card.Back
			v.Back = &back
		}
	}
	return v
}
