package moderation

import (
	"unicode"

	"feed-lab/errors"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks censored words in message content before it is persisted
// or fanned out. Matching is done on a normalized view of the text (lowered,
// leet-speak folded, punctuation stripped) while masking is applied to the
// original runes, so spacing and casing around a match are preserved.
type Moderator struct {
	matcher  *goahocorasick.Machine
	maskChar rune
}

// NewModerator builds the Aho-Corasick automaton from the censored word list.
func NewModerator(censoredWords []string, maskChar rune) (Moderator, error) {
	if len(censoredWords) == 0 {
		return Moderator{}, errors.ErrEmptyWords
	}
	patterns := make([][]rune, 0, len(censoredWords))
	for _, word := range censoredWords {
		normalized, _ := normalize([]rune(word))
		patterns = append(patterns, normalized)
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, maskChar: maskChar}, nil
}

// Censor returns the content with every censored word masked, along with the
// normalized words that were found.
func (m *Moderator) Censor(original string) (string, []string) {
	origRunes := []rune(original)
	normalized, origIdx := normalize(origRunes)
	if len(normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	var found []string
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		found = append(found, string(span.Word))

		// Mask the original rune range covered by the normalized match.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.maskChar
		}
	}
	return string(origRunes), found
}

// normalize lowers the text, folds common leet-speak substitutions and drops
// punctuation, spaces and symbols. It returns the normalized runes and, for
// each of them, the index of the originating rune in the input.
func normalize(input []rune) ([]rune, []int) {
	normalized := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		folded := foldLeet(r)
		if unicode.IsPunct(folded) || unicode.IsSpace(folded) || unicode.IsSymbol(folded) {
			continue
		}
		normalized = append(normalized, unicode.ToLower(folded))
		origIdx = append(origIdx, i)
	}
	return normalized, origIdx
}

func foldLeet(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}
