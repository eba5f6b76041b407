package parser

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/conorfennell/knolshare/internal/domain"
)

const (
	questionPrefix = "Q:"
	answerPrefix   = "A:"
	contextPrefix  = "C:"
	separator      = "---"
)

type state int

const (
	seeking state = iota
	readingQuestion
	readingAnswer
	readingContext
)

// ParseFile reads a deck file from the given path and extracts all entries.
func ParseFile(path string) ([]domain.DeckEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads Q:/A:/C: blocks from r. Blocks are separated by a new Q: line
// or a "---" line; a block without a question is dropped.
func Parse(r io.Reader) ([]domain.DeckEntry, error) {
	scanner := bufio.NewScanner(r)
	var entries []domain.DeckEntry
	var current domain.DeckEntry
	var block []string
	currentState := seeking

	flushBlock := func() {
		if len(block) == 0 {
			return
		}
		content := strings.Join(block, "\n")
		switch currentState {
		case readingQuestion:
			current.Question = content
		case readingAnswer:
			current.Answer = content
		case readingContext:
			current.Context = content
		}
		block = nil
	}

	finishEntry := func() {
		flushBlock()
		if current.Question != "" {
			entries = append(entries, current)
		}
		current = domain.DeckEntry{}
		currentState = seeking
	}

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")

		if line == separator {
			finishEntry()
			continue
		}

		next, rest, ok := prefixed(line)
		if !ok {
			if currentState != seeking {
				block = append(block, line)
			}
			continue
		}

		if next == readingQuestion && currentState != seeking {
			// A new question always starts a new entry.
			finishEntry()
		}
		flushBlock()
		currentState = next
		block = append(block, rest)
	}

	finishEntry()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}

// prefixed reports which field a line opens and the text after its prefix,
// minus one optional space.
func prefixed(line string) (state, string, bool) {
	for _, p := range []struct {
		prefix string
		state  state
	}{
		{questionPrefix, readingQuestion},
		{answerPrefix, readingAnswer},
		{contextPrefix, readingContext},
	} {
		if rest, ok := strings.CutPrefix(line, p.prefix); ok {
			return p.state, strings.TrimPrefix(rest, " "), true
		}
	}
	return seeking, "", false
}
