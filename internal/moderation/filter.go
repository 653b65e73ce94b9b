package moderation

import (
	"strings"
	"unicode"
)

// Result is the outcome of a deterministic filter pass.
type Result struct {
	Category Category
	Reason   string // "blocked_keyword", "borderline_keyword", "spam_pattern"
	Term     string // the matched term or pattern name
}

// Filter screens message text against tiered keyword lists. Single-word
// terms match whole tokens only (punctuation-insensitive, case-insensitive);
// multi-word terms match as normalized phrases.
type Filter struct {
	blockWords    map[string]bool
	blockPhrases  []string
	borderWords   map[string]bool
	borderPhrases []string
}

// Default term lists. Deliberately small: the semantic classifier carries
// the nuanced cases, these catch the unambiguous ones.
var (
	defaultBlockedTerms = []string{
		"kill yourself",
		"kys",
		"gore video",
		"snuff",
		"school shooting",
	}
	defaultBorderlineTerms = []string{
		"idiot",
		"loser",
		"pathetic",
		"shut up",
		"nobody likes you",
		"go away freak",
	}
)

// NewFilter creates a Filter with the default term lists.
func NewFilter() *Filter {
	return NewFilterWithTerms(defaultBlockedTerms, defaultBorderlineTerms)
}

// NewFilterWithTerms creates a Filter with explicit term lists, used by
// tests and by deployments that load terms from configuration.
func NewFilterWithTerms(blocked, borderline []string) *Filter {
	f := &Filter{
		blockWords:  make(map[string]bool),
		borderWords: make(map[string]bool),
	}
	for _, t := range blocked {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			f.blockPhrases = append(f.blockPhrases, t)
		} else {
			f.blockWords[t] = true
		}
	}
	for _, t := range borderline {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if strings.ContainsRune(t, ' ') {
			f.borderPhrases = append(f.borderPhrases, t)
		} else {
			f.borderWords[t] = true
		}
	}
	return f
}

// Check screens text and returns the first match, blocked tier first.
// A zero-value Result (empty Category) means no deterministic rule fired;
// callers treat that as Allowed pending semantic review.
func (f *Filter) Check(text string) Result {
	norm, tokens := normalize(text)

	for _, tok := range tokens {
		if f.blockWords[tok] {
			return Result{Category: Blocked, Reason: "blocked_keyword", Term: tok}
		}
	}
	for _, phrase := range f.blockPhrases {
		if containsPhrase(norm, phrase) {
			return Result{Category: Blocked, Reason: "blocked_keyword", Term: phrase}
		}
	}

	for _, tok := range tokens {
		if f.borderWords[tok] {
			return Result{Category: Borderline, Reason: "borderline_keyword", Term: tok}
		}
	}
	for _, phrase := range f.borderPhrases {
		if containsPhrase(norm, phrase) {
			return Result{Category: Borderline, Reason: "borderline_keyword", Term: phrase}
		}
	}

	if spam := checkSpamPatterns(text); spam.Category != "" {
		return spam
	}

	return Result{}
}

// normalize lowercases text, maps punctuation to spaces, and collapses
// whitespace. It returns the normalized string and its tokens.
func normalize(text string) (string, []string) {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, text)
	tokens := strings.Fields(mapped)
	return strings.Join(tokens, " "), tokens
}

// containsPhrase reports whether norm contains phrase on token boundaries.
func containsPhrase(norm, phrase string) bool {
	return strings.Contains(" "+norm+" ", " "+phrase+" ")
}
