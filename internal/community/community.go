// Package community holds the single shared room: a rolling message window,
// clock-aligned periodic resets, the longer site-wipe cycle, a rotating
// topic prompt, and the randomized quiet moment before each reset.
//
// The state is owned by the engine's event loop; nothing here locks.
package community

import (
	"math/rand"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/schedule"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/topic"
)

const (
	// ResetPeriod is the community reset cycle, aligned to wall-clock
	// boundaries (:00 / :30).
	ResetPeriod = 30 * time.Minute

	// SitePeriod is the full site-wipe cycle.
	SitePeriod = 120 * time.Minute

	// Retention is the rolling window for community messages.
	Retention = 300 * time.Second

	// MaxMessages caps the retained community log regardless of age.
	MaxMessages = 200

	// QuietLength is the duration of the quiet moment.
	QuietLength = 2 * time.Minute

	// QuietSpan is the tail of the cycle inside which the quiet moment is
	// placed at random.
	QuietSpan = 10 * time.Minute
)

// State is the community room singleton.
type State struct {
	messages     []protocol.Message
	communityEnd time.Time
	siteEnd      time.Time
	category     topic.Category
	prompt       string
	quietStart   time.Time
	quietEnd     time.Time

	topics topic.Provider
	rng    *rand.Rand
}

// New builds the community state with both deadlines snapped to the next
// clock boundary and a first topic drawn from the provider.
func New(now time.Time, topics topic.Provider, seed int64) *State {
	s := &State{
		topics:   topics,
		rng:      rand.New(rand.NewSource(seed)),
		category: topic.Deep,
	}
	s.communityEnd = schedule.NextBoundary(now, ResetPeriod)
	s.siteEnd = schedule.NextBoundary(now, SitePeriod)
	s.prompt = topics.Next(s.category)
	s.placeQuietMoment()
	return s
}

// placeQuietMoment picks a uniformly random QuietLength sub-window inside
// the final QuietSpan before the current community deadline.
func (s *State) placeQuietMoment() {
	slack := QuietSpan - QuietLength
	offset := time.Duration(s.rng.Int63n(int64(slack)))
	s.quietStart = s.communityEnd.Add(-QuietSpan).Add(offset)
	s.quietEnd = s.quietStart.Add(QuietLength)
}

// ResetDue reports whether the community reset deadline has passed.
func (s *State) ResetDue(now time.Time) bool {
	return !now.Before(s.communityEnd)
}

// SiteWipeDue reports whether the site-wipe deadline has passed.
func (s *State) SiteWipeDue(now time.Time) bool {
	return !now.Before(s.siteEnd)
}

// Reset performs a community reset: the message log is cleared, the next
// deadline snaps to the following clock boundary, the topic style toggles
// and a new prompt is drawn, and a fresh quiet moment is placed.
func (s *State) Reset(now time.Time) {
	s.messages = nil
	s.communityEnd = schedule.NextBoundary(now, ResetPeriod)
	s.category = s.category.Toggle()
	s.prompt = s.topics.Next(s.category)
	s.placeQuietMoment()
}

// SiteWipe clears the community log and recomputes both deadlines. Clearing
// users and private rooms is the engine's job; this state only owns the
// shared room.
func (s *State) SiteWipe(now time.Time) {
	s.Reset(now)
	s.siteEnd = schedule.NextBoundary(now, SitePeriod)
}

// InQuietMoment reports whether now falls inside [quietStart, quietEnd).
func (s *State) InQuietMoment(now time.Time) bool {
	return !now.Before(s.quietStart) && now.Before(s.quietEnd)
}

// Append admits a message to the shared log, enforcing the hard cap.
func (s *State) Append(msg protocol.Message) {
	s.messages = append(s.messages, msg)
	if len(s.messages) > MaxMessages {
		s.messages = s.messages[len(s.messages)-MaxMessages:]
	}
}

// Messages returns the retained view at now. Retention is a view-level
// policy: messages past the rolling window never become visible, even
// between prune sweeps.
func (s *State) Messages(now time.Time) []protocol.Message {
	cutoff := now.Add(-Retention).UnixMilli()
	out := make([]protocol.Message, 0, len(s.messages))
	for _, m := range s.messages {
		if m.Timestamp > cutoff {
			out = append(out, m)
		}
	}
	return out
}

// Prune drops messages that have left the rolling window. Called by the
// fine-grained sweep.
func (s *State) Prune(now time.Time) {
	cutoff := now.Add(-Retention).UnixMilli()
	kept := s.messages[:0]
	for _, m := range s.messages {
		if m.Timestamp > cutoff {
			kept = append(kept, m)
		}
	}
	s.messages = kept
}

// CommunityEnd returns the next community reset deadline.
func (s *State) CommunityEnd() time.Time { return s.communityEnd }

// SiteEnd returns the next site-wipe deadline.
func (s *State) SiteEnd() time.Time { return s.siteEnd }

// Topic returns the current topic prompt.
func (s *State) Topic() string { return s.prompt }

// Category returns the current topic style.
func (s *State) Category() topic.Category { return s.category }

// QuietMoment returns the current quiet window for wire payloads.
func (s *State) QuietMoment() protocol.QuietMoment {
	return protocol.QuietMoment{
		Start: s.quietStart.UnixMilli(),
		End:   s.quietEnd.UnixMilli(),
	}
}
