package moderation

import (
	"regexp"
	"strings"
	"unicode"
)

// Patterns compile once at init; regexp values are safe for concurrent use.
// An anonymous room attracts link drops and contact-info fishing, so URLs
// and phone numbers count as spam here.
var (
	// urlPattern covers http/https URLs, www. forms, and bare domains. The
	// bare-domain arm requires a trailing "/" so version strings ("v2.0")
	// and decimals ("3.14") pass.
	urlPattern = regexp.MustCompile(`(?i)(https?://\S+|www\.\S+|\S+\.(com|net|org|io|co|xyz|info|biz|ru|cn|tk|ml|ga|cf)/\S*)`)

	// phonePattern covers +1-555-123-4567, (555) 123-4567, 555.123.4567.
	// Anchored to whitespace so digit runs inside words and short numbers
	// like "100" do not match.
	phonePattern = regexp.MustCompile(`(?:^|\s)(\+?\d{1,3}[-.\s]?)?\(?\d{2,4}\)?[-.\s]?\d{3,4}[-.\s]?\d{3,4}(?:\s|$)`)
)

// spamCheck pairs a detector with the name reported in Result.Term.
type spamCheck struct {
	name  string
	match func(string) bool
}

// spamChecks runs in order; the first hit wins.
var spamChecks = []spamCheck{
	{name: "url", match: func(text string) bool {
		return urlPattern.MatchString(text)
	}},
	{name: "phone", match: func(text string) bool {
		return phonePattern.MatchString(text)
	}},
	{name: "char_flood", match: hasCharFlood},
	{name: "word_flood", match: hasWordFlood},
}

// hasCharFlood reports 5 or more consecutive identical characters. RE2 has
// no backreferences, so this is a linear scan instead of a regex.
func hasCharFlood(text string) bool {
	const threshold = 5

	count := 1
	prev := rune(-1)
	for _, r := range text {
		if r == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = r
		}
	}
	return false
}

// hasWordFlood reports the same word 3 or more times in a row, case
// insensitive, split on whitespace.
func hasWordFlood(text string) bool {
	const threshold = 3

	words := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	if len(words) < threshold {
		return false
	}

	count := 1
	prev := ""
	for _, w := range words {
		lower := strings.ToLower(w)
		if lower == prev {
			count++
			if count >= threshold {
				return true
			}
		} else {
			count = 1
			prev = lower
		}
	}
	return false
}

// checkSpamPatterns runs every spam check against text. Spam is scored as
// Borderline: it degrades the sender through the strike ladder rather than
// tearing rooms down.
func checkSpamPatterns(text string) Result {
	for _, sc := range spamChecks {
		if sc.match(text) {
			return Result{
				Category: Borderline,
				Reason:   "spam_pattern",
				Term:     sc.name,
			}
		}
	}
	return Result{}
}
