package moderation

import (
	"context"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/presence"
)

// StrikeThreshold is the borderline count a connection may accumulate
// before shadow limiting latches. The count must exceed the threshold.
const StrikeThreshold = 4

// Verdict is the gate's admission decision for one message.
type Verdict int

const (
	// VerdictAccept admits the message: store and broadcast.
	VerdictAccept Verdict = iota
	// VerdictShadow echoes the message to its sender only. The sender
	// perceives a normal send; nobody else ever receives it.
	VerdictShadow
	// VerdictBlockRoom destroys the private room the message was sent to
	// and suppresses the message entirely.
	VerdictBlockRoom
)

// Decision is the full outcome of admitting one message.
type Decision struct {
	Verdict  Verdict
	Category Category
	// Warn is set on the sender's first borderline message: deliver one
	// system-authored warning to that sender only, then never again.
	Warn bool
	// Latched is set on the exact message that tips the sender over the
	// strike threshold into shadow limiting.
	Latched bool
}

// Classifying resolves text to a category. Satisfied by *Pipeline; tests
// substitute a stub.
type Classifying interface {
	Classify(ctx context.Context, text string) Category
}

// Gate performs per-message admission control. Escalation state is kept on
// the presence registry, scoped to the logical identity: it survives a
// reconnect and dies only with the site wipe.
type Gate struct {
	classifier Classifying
	states     *presence.Registry
}

// NewGate builds a Gate over a classifier and the presence registry that
// holds the per-identity records.
func NewGate(classifier Classifying, states *presence.Registry) *Gate {
	return &Gate{classifier: classifier, states: states}
}

// Admit classifies one message from userID and applies the escalation
// ladder. isPrivate tells whether the destination is a private room; a
// Blocked verdict tears a private room down but only silently suppresses
// in the community room.
func (g *Gate) Admit(ctx context.Context, userID string, isPrivate bool, text string) Decision {
	cat := g.classifier.Classify(ctx, text)
	rec := g.states.ModerationState(userID)

	if cat == Blocked {
		if isPrivate {
			return Decision{Verdict: VerdictBlockRoom, Category: cat}
		}
		// Community room: the sender sees the message, nobody else does,
		// and no moderation signal is surfaced that could be gamed.
		return Decision{Verdict: VerdictShadow, Category: cat}
	}

	warn := false
	latched := false
	if cat == Borderline {
		rec.BorderlineCount++
		if !rec.WarnedSoft {
			rec.WarnedSoft = true
			warn = true
		}
		if rec.BorderlineCount > StrikeThreshold && !rec.ShadowLimited {
			rec.ShadowLimited = true
			latched = true
		}
	}

	// Shadow limiting applies regardless of this message's own category.
	if rec.ShadowLimited {
		return Decision{Verdict: VerdictShadow, Category: cat, Warn: warn, Latched: latched}
	}
	return Decision{Verdict: VerdictAccept, Category: cat, Warn: warn}
}
