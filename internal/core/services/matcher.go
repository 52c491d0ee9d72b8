package services

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"

	"github.com/custodia-labs/chanscout/internal/core/domain"
)

// Snippet limits.
const (
	snippetMaxSentences   = 3
	snippetMinSentenceLen = 10
	snippetMaxLen         = 200
	snippetEllipsis       = "..."
)

// Fuzzy matching limits.
const (
	fuzzyMaxKeywordLen = 6
	fuzzyMaxWordLen    = 8
	fuzzyMaxDistance   = 2
)

// inflectionEndings are common Russian noun and adjective endings.
// A word matches a keyword if they differ only by one of these.
var inflectionEndings = []string{
	"а", "ы", "ов", "ей", "ам", "ами", "ах", "ом", "ого", "ому", "им", "ем",
	"ему", "ими", "ой", "ую", "ю", "ие", "их", "ыми", "ая", "яя", "ое", "ее", "юю",
}

// KeywordMatcher reports which keywords occur in a message.
// It holds no mutable state and is safe for concurrent use.
type KeywordMatcher struct {
	mode domain.MatchMode
}

// NewKeywordMatcher creates a matcher. Unknown modes fall back to word mode.
func NewKeywordMatcher(mode domain.MatchMode) *KeywordMatcher {
	if !mode.IsValid() {
		mode = domain.MatchModeWord
	}
	return &KeywordMatcher{mode: mode}
}

// Mode returns the configured match mode.
func (m *KeywordMatcher) Mode() domain.MatchMode {
	return m.mode
}

// Match returns the sorted subset of keywords found in text.
// Returns nil when nothing matches.
func (m *KeywordMatcher) Match(text string, keywords []string) []string {
	// A Caser carries state and must not be shared between goroutines.
	fold := cases.Fold()
	norm := normalizeText(fold, text)
	if norm == "" {
		return nil
	}
	words := tokenize(norm)

	var matched []string
	for _, kw := range keywords {
		k := normalizeText(fold, kw)
		if k != "" && m.matches(norm, words, k) {
			matched = append(matched, kw)
		}
	}
	if len(matched) == 0 {
		return nil
	}
	slices.Sort(matched)
	return slices.Compact(matched)
}

// Snippet returns up to three whitespace-collapsed sentences of text that
// contain a keyword, truncated to 200 runes. Falls back to the start of the
// text when no sentence qualifies.
func (m *KeywordMatcher) Snippet(text string, keywords []string) string {
	fold := cases.Fold()
	folded := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if k := normalizeText(fold, kw); k != "" {
			folded = append(folded, k)
		}
	}

	var picked []string
	for _, sentence := range splitSentences(text) {
		clean := strings.Join(strings.Fields(sentence), " ")
		if utf8.RuneCountInString(clean) <= snippetMinSentenceLen {
			continue
		}
		norm := normalizeText(fold, clean)
		words := tokenize(norm)
		for _, k := range folded {
			if m.matches(norm, words, k) {
				picked = append(picked, clean)
				break
			}
		}
		if len(picked) == snippetMaxSentences {
			break
		}
	}

	if len(picked) == 0 {
		return truncateRunes(strings.Join(strings.Fields(text), " "), snippetMaxLen)
	}
	return truncateRunes(strings.Join(picked, " "), snippetMaxLen)
}

// matches tests one folded keyword against folded text and its words.
func (m *KeywordMatcher) matches(norm string, words []string, kw string) bool {
	switch m.mode {
	case domain.MatchModeSubstring:
		return strings.Contains(norm, kw)
	case domain.MatchModeFuzzy:
		if strings.Contains(norm, kw) {
			return true
		}
		return containsSequence(words, tokenize(kw), fuzzyWord)
	default:
		kwWords := tokenize(kw)
		// Keywords with symbols ("c++", "node.js") cannot be split into
		// words without losing meaning.
		if strings.Join(kwWords, " ") != kw {
			return strings.Contains(norm, kw)
		}
		return containsSequence(words, kwWords, func(w, k string) bool { return w == k })
	}
}

// containsSequence reports whether seq occurs as consecutive words.
func containsSequence(words, seq []string, eq func(word, kw string) bool) bool {
	if len(seq) == 0 || len(seq) > len(words) {
		return false
	}
	for i := 0; i+len(seq) <= len(words); i++ {
		ok := true
		for j, k := range seq {
			if !eq(words[i+j], k) {
				ok = false
				break
			}
		}
		if ok {
			return true
		}
	}
	return false
}

// fuzzyWord accepts exact and containing words, inflected forms and, for
// short words, edit distance up to two.
func fuzzyWord(word, kw string) bool {
	if word == kw || strings.Contains(word, kw) {
		return true
	}
	for _, ending := range inflectionEndings {
		if word == kw+ending {
			return true
		}
		if stem, ok := strings.CutSuffix(kw, ending); ok && stem != "" && word == stem {
			return true
		}
	}
	kwLen := utf8.RuneCountInString(kw)
	if kwLen > fuzzyMaxKeywordLen || utf8.RuneCountInString(word) > fuzzyMaxWordLen {
		return false
	}
	d := levenshtein([]rune(word), []rune(kw))
	// A distance equal to the keyword length would match unrelated words.
	return d <= fuzzyMaxDistance && d < kwLen
}

// levenshtein returns the edit distance between a and b.
func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i, ra := range a {
		curr[0] = i + 1
		for j, rb := range b {
			cost := 1
			if ra == rb {
				cost = 0
			}
			curr[j+1] = min(prev[j+1]+1, curr[j]+1, prev[j]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// normalizeText case-folds and collapses whitespace.
func normalizeText(fold cases.Caser, s string) string {
	return strings.Join(strings.Fields(fold.String(s)), " ")
}

// tokenize splits text into words of letters, digits and underscores.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

// splitSentences cuts text after '.', '!' or '?' followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	prevEnd := false
	for i, r := range text {
		if prevEnd && unicode.IsSpace(r) {
			if s := strings.TrimSpace(text[start:i]); s != "" {
				out = append(out, s)
			}
			start = i
		}
		prevEnd = r == '.' || r == '!' || r == '?'
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

// truncateRunes shortens s to max runes, ending with an ellipsis.
func truncateRunes(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	r := []rune(s)
	return string(r[:maxLen-len(snippetEllipsis)]) + snippetEllipsis
}
