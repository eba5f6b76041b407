package dueset

import (
	"time"

	"github.com/conorfennell/knolshare/internal/domain"
)

// Entry is a card in a due set. New cards have never been rated by the
// viewer and carry no due date.
type Entry struct {
	domain.Flashcard
	New     bool      `json:"new"`
	DueDate time.Time `json:"due_date,omitzero"`
}

// Group holds the entries of one subject in insertion order.
type Group struct {
	Subject string  `json:"subject"`
	Cards   []Entry `json:"cards"`
}

// DueSet is the deduplicated, subject-grouped result of Builder.DueCards.
// Groups are ordered by the first card that landed in them.
type DueSet struct {
	AsOf   time.Time `json:"as_of"`
	Groups []Group   `json:"groups"`

	index map[string]int
	seen  domain.IDSet
}

func newDueSet(asOf time.Time) *DueSet {
	return &DueSet{
		AsOf:   asOf,
		Groups: []Group{},
		index:  make(map[string]int),
		seen:   domain.NewIDSet(),
	}
}

func (d *DueSet) add(e Entry) {
	if d.seen.Has(e.ID) {
		return
	}
	d.seen.Add(e.ID)

	label := e.SubjectLabel()
	i, ok := d.index[label]
	if !ok {
		i = len(d.Groups)
		d.index[label] = i
		d.Groups = append(d.Groups, Group{Subject: label})
	}
	d.Groups[i].Cards = append(d.Groups[i].Cards, e)
}

// Group returns the entries filed under subject. It also works on a DueSet
// decoded from JSON, which has no index.
func (d *DueSet) Group(subject string) (Group, bool) {
	if d.index == nil {
		for _, g := range d.Groups {
			if g.Subject == subject {
				return g, true
			}
		}
		return Group{}, false
	}
	i, ok := d.index[subject]
	if !ok {
		return Group{}, false
	}
	return d.Groups[i], true
}

// Subjects lists the subject names in group order.
func (d *DueSet) Subjects() []string {
	names := make([]string, 0, len(d.Groups))
	for _, g := range d.Groups {
		names = append(names, g.Subject)
	}
	return names
}

// Len is the number of cards across all groups.
func (d *DueSet) Len() int {
	n := 0
	for _, g := range d.Groups {
		n += len(g.Cards)
	}
	return n
}

// Empty reports the caught-up state: nothing due and nothing new.
func (d *DueSet) Empty() bool {
	return d.Len() == 0
}

// Flashcards returns the cards of a group without the due metadata.
func (g Group) Flashcards() []domain.Flashcard {
	out := make([]domain.Flashcard, 0, len(g.Cards))
	for _, e := range g.Cards {
		out = append(out, e.Flashcard)
	}
	return out
}
