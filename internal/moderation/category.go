// Package moderation provides the per-message admission pipeline: a fast
// fail-closed prefilter for severe violations, a semantic classifier
// consumed over NATS, and the per-identity escalation gate that decides
// accept, shadow-accept, or room teardown.
package moderation

// Category is the verdict of the content classifier. Classification is
// stateless per call; all escalation state lives in the gate.
type Category string

const (
	// Allowed content passes unmodified.
	Allowed Category = "ALLOWED"
	// Borderline content is admitted but counts a strike.
	Borderline Category = "BORDERLINE"
	// Blocked content is a severe violation.
	Blocked Category = "BLOCKED"
)

// ParseCategory normalizes a wire string to a Category. Anything
// unrecognized degrades to Allowed, matching the fail-open policy.
func ParseCategory(s string) Category {
	switch Category(s) {
	case Borderline:
		return Borderline
	case Blocked:
		return Blocked
	default:
		return Allowed
	}
}

// ClassifyRequest is the NATS request payload sent to the moderator service.
type ClassifyRequest struct {
	Text string `json:"text"`
}

// ClassifyResult is the moderator service's reply.
type ClassifyResult struct {
	Category string `json:"category"`
}
