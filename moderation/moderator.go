package moderation

import (
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Moderator masks forbidden words in message content before it is persisted.
// Matching runs on a normalized view of the text (lowercased, leet speak
// folded, punctuation and spacing stripped) while the replacement is applied
// to the original runes, so spacing and surrounding text are preserved.
type Moderator struct {
	matcher     *goahocorasick.Machine
	replacement rune
}

// NewModerator builds the Aho-Corasick automaton over the normalized word
// list. An empty list yields a pass-through moderator.
func NewModerator(words []string, replacement rune) (*Moderator, error) {
	if len(words) == 0 {
		return &Moderator{replacement: replacement}, nil
	}

	patterns := make([][]rune, 0, len(words))
	for _, word := range words {
		if norm := normalize([]rune(word), nil); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}

	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{matcher: machine, replacement: replacement}, nil
}

// Censor replaces every occurrence of a forbidden pattern with the
// replacement rune and reports the normalized patterns that matched.
func (m *Moderator) Censor(original string) (string, []string) {
	if m.matcher == nil || original == "" {
		return original, nil
	}

	origRunes := []rune(original)
	origIdx := make([]int, 0, len(origRunes))
	normalized := normalize(origRunes, func(i int) { origIdx = append(origIdx, i) })
	if len(normalized) == 0 {
		return original, nil
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return original, nil
	}

	matched := make([]string, 0, len(spans))
	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		matched = append(matched, string(span.Word))

		// Mask the original span, boundaries mapped back through origIdx.
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.replacement
		}
	}
	return string(origRunes), matched
}

// normalize lowercases, folds common leet substitutions and drops noise
// runes. When keep is non-nil it receives the original index of every rune
// retained, in order.
func normalize(input []rune, keep func(i int)) []rune {
	out := make([]rune, 0, len(input))
	for i, r := range input {
		switch r {
		case '4', '@':
			r = 'a'
		case '3':
			r = 'e'
		case '1', '!', '|':
			r = 'i'
		case '0':
			r = 'o'
		case '5', '$':
			r = 's'
		}
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		out = append(out, unicode.ToLower(r))
		if keep != nil {
			keep(i)
		}
	}
	return out
}
