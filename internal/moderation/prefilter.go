package moderation

import "regexp"

// Compiled patterns for severe violations. These run before any semantic
// call and fail closed: a match is BLOCKED no matter what the classifier
// would have said, or whether it is reachable at all.
var severePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)child.{0,20}(porn|sex|abuse)`),
	regexp.MustCompile(`(?i)terroris(m|t)`),
	regexp.MustCompile(`(?i)trafficking`),
	regexp.MustCompile(`(?i)bomb.{0,20}making`),
	regexp.MustCompile(`(?i)mass.{0,20}(killing|shooting)`),
}

// MatchesSevere reports whether text trips the deterministic
// severe-violation prefilter.
func MatchesSevere(text string) bool {
	for _, p := range severePatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
