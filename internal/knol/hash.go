package knol

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/conorfennell/knolshare/internal/domain"
)

// Normalize joins the entry's question, answer and context with newlines after
// lowercasing and trimming each part, so cosmetic edits keep the same hash.
func Normalize(entry domain.DeckEntry) string {
	normalizePart := func(part string) string {
		p := strings.ReplaceAll(part, "\r\n", "\n")
		return strings.TrimSpace(strings.ToLower(p))
	}

	return strings.Join([]string{
		normalizePart(entry.Question),
		normalizePart(entry.Answer),
		normalizePart(entry.Context),
	}, "\n")
}

// Hash returns the hex SHA-256 of the normalized entry.
func Hash(entry domain.DeckEntry) string {
	sum := sha256.Sum256([]byte(Normalize(entry)))
	return hex.EncodeToString(sum[:])
}

// Stamp fills in Hash on every entry and drops later duplicates, keeping the
// first occurrence of each hash in order.
func Stamp(entries []domain.DeckEntry) []domain.DeckEntry {
	seen := make(map[string]struct{}, len(entries))
	out := make([]domain.DeckEntry, 0, len(entries))
	for _, e := range entries {
		e.Hash = Hash(e)
		if _, dup := seen[e.Hash]; dup {
			continue
		}
		seen[e.Hash] = struct{}{}
		out = append(out, e)
	}
	return out
}
