package community

import (
	"fmt"
	"testing"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/topic"
)

var t0 = time.Date(2024, 5, 1, 12, 7, 0, 0, time.UTC)

// stubTopics counts draws so tests can see a fresh prompt per reset.
type stubTopics struct{ calls int }

func (s *stubTopics) Next(c topic.Category) string {
	s.calls++
	return fmt.Sprintf("%s-%d", c, s.calls)
}

func TestNew_BoundariesAligned(t *testing.T) {
	s := New(t0, &stubTopics{}, 1)

	wantCommunity := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	if !s.CommunityEnd().Equal(wantCommunity) {
		t.Errorf("CommunityEnd = %v, want %v", s.CommunityEnd(), wantCommunity)
	}
	wantSite := time.Date(2024, 5, 1, 14, 0, 0, 0, time.UTC)
	if !s.SiteEnd().Equal(wantSite) {
		t.Errorf("SiteEnd = %v, want %v", s.SiteEnd(), wantSite)
	}
}

func TestReset_ClearsAndFlipsTopic(t *testing.T) {
	topics := &stubTopics{}
	s := New(t0, topics, 1)
	s.Append(protocol.Message{ID: "m1", Timestamp: t0.UnixMilli()})

	if s.Category() != topic.Deep {
		t.Fatalf("initial category = %q, want DEEP", s.Category())
	}

	deadline := s.CommunityEnd()
	if s.ResetDue(deadline.Add(-time.Second)) {
		t.Error("reset due before the deadline")
	}
	if !s.ResetDue(deadline) {
		t.Error("reset not due at the deadline")
	}

	s.Reset(deadline)

	if got := s.Messages(deadline); len(got) != 0 {
		t.Errorf("messages survived the reset: %d", len(got))
	}
	if s.Category() != topic.Playful {
		t.Errorf("category after reset = %q, want PLAYFUL", s.Category())
	}
	if s.Topic() == "DEEP-1" {
		t.Error("topic prompt not refreshed on reset")
	}
	if !s.CommunityEnd().Truncate(ResetPeriod).Equal(s.CommunityEnd()) {
		t.Errorf("new deadline %v not a multiple of the reset period", s.CommunityEnd())
	}

	s.Reset(s.CommunityEnd())
	if s.Category() != topic.Deep {
		t.Errorf("category after second reset = %q, want DEEP", s.Category())
	}
}

func TestQuietMoment_InsideFinalSpan(t *testing.T) {
	for seed := int64(0); seed < 25; seed++ {
		s := New(t0, &stubTopics{}, seed)
		q := s.QuietMoment()
		end := s.CommunityEnd().UnixMilli()
		spanStart := s.CommunityEnd().Add(-QuietSpan).UnixMilli()

		if q.Start < spanStart {
			t.Fatalf("seed %d: quiet start %d before final span %d", seed, q.Start, spanStart)
		}
		if q.End > end {
			t.Fatalf("seed %d: quiet end %d after deadline %d", seed, q.End, end)
		}
		if q.End-q.Start != QuietLength.Milliseconds() {
			t.Fatalf("seed %d: quiet window length %d, want %d", seed, q.End-q.Start, QuietLength.Milliseconds())
		}
	}
}

func TestInQuietMoment_HalfOpen(t *testing.T) {
	s := New(t0, &stubTopics{}, 3)
	start := time.UnixMilli(s.QuietMoment().Start)
	end := time.UnixMilli(s.QuietMoment().End)

	if s.InQuietMoment(start.Add(-time.Millisecond)) {
		t.Error("quiet before start")
	}
	if !s.InQuietMoment(start) {
		t.Error("start instant not quiet")
	}
	if !s.InQuietMoment(end.Add(-time.Millisecond)) {
		t.Error("instant before end not quiet")
	}
	if s.InQuietMoment(end) {
		t.Error("end instant quiet; window must be half-open")
	}
}

func TestRetention_ViewAndPrune(t *testing.T) {
	s := New(t0, &stubTopics{}, 1)

	old := protocol.Message{ID: "old", Timestamp: t0.Add(-6 * time.Minute).UnixMilli()}
	fresh := protocol.Message{ID: "fresh", Timestamp: t0.Add(-time.Minute).UnixMilli()}
	s.Append(old)
	s.Append(fresh)

	// Read-side filtering hides the stale message before any prune runs.
	view := s.Messages(t0)
	if len(view) != 1 || view[0].ID != "fresh" {
		t.Fatalf("view = %+v, want only the fresh message", view)
	}

	s.Prune(t0)
	if len(s.messages) != 1 {
		t.Errorf("prune kept %d messages, want 1", len(s.messages))
	}
}

func TestAppend_HardCap(t *testing.T) {
	s := New(t0, &stubTopics{}, 1)
	for i := 0; i < MaxMessages+25; i++ {
		s.Append(protocol.Message{
			ID:        fmt.Sprintf("m%d", i),
			Timestamp: t0.UnixMilli(),
		})
	}
	view := s.Messages(t0)
	if len(view) != MaxMessages {
		t.Fatalf("retained %d messages, want cap %d", len(view), MaxMessages)
	}
	if view[0].ID != "m25" {
		t.Errorf("oldest retained = %s, want m25", view[0].ID)
	}
}

func TestSiteWipe_RecomputesBothDeadlines(t *testing.T) {
	s := New(t0, &stubTopics{}, 1)
	siteDeadline := s.SiteEnd()

	if s.SiteWipeDue(siteDeadline.Add(-time.Second)) {
		t.Error("site wipe due early")
	}

	s.SiteWipe(siteDeadline)
	if !s.SiteEnd().After(siteDeadline) {
		t.Errorf("site deadline did not advance: %v", s.SiteEnd())
	}
	if !s.CommunityEnd().After(siteDeadline) {
		t.Errorf("community deadline did not advance: %v", s.CommunityEnd())
	}
	if len(s.Messages(siteDeadline)) != 0 {
		t.Error("messages survived the site wipe")
	}
}
