package dueset

import (
	"strings"
	"unicode"

	"github.com/conorfennell/knolshare/internal/domain"
)

// CleanText strips characters that older clients stored by accident and that
// break rendering: control characters other than newline and tab, zero-width
// characters and bidirectional overrides. CRLF becomes LF.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case unicode.IsControl(r):
			return -1
		case r >= 0x200B && r <= 0x200F, // zero-width and direction marks
			r >= 0x202A && r <= 0x202E, // bidi embedding and overrides
			r >= 0x2060 && r <= 0x2064,
			r >= 0x2066 && r <= 0x2069, // bidi isolates
			r == 0xFEFF:
			return -1
		}
		return r
	}, s)
}

// Sanitize cleans the displayed text of a card.
func Sanitize(c domain.Flashcard) domain.Flashcard {
	c.Front.Text = CleanText(c.Front.Text)
	c.Back.Text = CleanText(c.Back.Text)
	c.SubjectName = strings.TrimSpace(CleanText(c.SubjectName))
	c.CustomSubject = strings.TrimSpace(CleanText(c.CustomSubject))
	return c
}

func sanitizeCard(e Entry) Entry {
	e.Flashcard = Sanitize(e.Flashcard)
	return e
}
