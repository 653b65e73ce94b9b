package moderation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/presence"
)

// stubClassifier maps exact texts to categories; everything else is Allowed.
type stubClassifier struct {
	verdicts map[string]Category
}

func (s *stubClassifier) Classify(_ context.Context, text string) Category {
	if c, ok := s.verdicts[text]; ok {
		return c
	}
	return Allowed
}

func newTestGate(verdicts map[string]Category) (*Gate, *presence.Registry) {
	reg := presence.NewRegistry()
	return NewGate(&stubClassifier{verdicts: verdicts}, reg), reg
}

func TestAdmit_AllowedPassesThrough(t *testing.T) {
	g, _ := newTestGate(nil)

	d := g.Admit(context.Background(), "u1", false, "hello there")
	if d.Verdict != VerdictAccept {
		t.Errorf("Verdict = %v, want VerdictAccept", d.Verdict)
	}
	if d.Warn {
		t.Error("allowed message produced a warning")
	}
}

func TestAdmit_BlockedPrivateTearsRoomDown(t *testing.T) {
	g, _ := newTestGate(map[string]Category{"bad": Blocked})

	d := g.Admit(context.Background(), "u1", true, "bad")
	if d.Verdict != VerdictBlockRoom {
		t.Errorf("Verdict = %v, want VerdictBlockRoom", d.Verdict)
	}
}

func TestAdmit_BlockedCommunityIsSilentShadow(t *testing.T) {
	g, _ := newTestGate(map[string]Category{"bad": Blocked})

	d := g.Admit(context.Background(), "u1", false, "bad")
	if d.Verdict != VerdictShadow {
		t.Errorf("Verdict = %v, want VerdictShadow", d.Verdict)
	}
	if d.Warn {
		t.Error("blocked community message produced a visible warning")
	}
}

func TestAdmit_BorderlineWarnsExactlyOnce(t *testing.T) {
	g, _ := newTestGate(map[string]Category{"edgy": Borderline})
	ctx := context.Background()

	first := g.Admit(ctx, "u1", false, "edgy")
	if !first.Warn {
		t.Error("first borderline message did not warn")
	}
	second := g.Admit(ctx, "u1", false, "edgy")
	if second.Warn {
		t.Error("second borderline message warned again")
	}

	// Warnings are per identity, not global.
	other := g.Admit(ctx, "u2", false, "edgy")
	if !other.Warn {
		t.Error("a different identity was denied its first warning")
	}
}

func TestAdmit_ShadowLimitLatchesAfterStrikes(t *testing.T) {
	g, _ := newTestGate(map[string]Category{"edgy": Borderline})
	ctx := context.Background()

	// Strikes 1 through 4 stay within the threshold.
	for i := 0; i < StrikeThreshold; i++ {
		d := g.Admit(ctx, "u1", false, "edgy")
		if d.Verdict != VerdictAccept {
			t.Fatalf("message %d: Verdict = %v, want VerdictAccept", i+1, d.Verdict)
		}
		if d.Latched {
			t.Fatalf("message %d: latched before the threshold", i+1)
		}
	}

	// The fifth strike exceeds the threshold; it and everything after is
	// shadowed, including perfectly clean messages.
	d := g.Admit(ctx, "u1", false, "edgy")
	if d.Verdict != VerdictShadow {
		t.Fatalf("fifth borderline: Verdict = %v, want VerdictShadow", d.Verdict)
	}
	if !d.Latched {
		t.Error("the tipping message did not report the latch")
	}
	clean := g.Admit(ctx, "u1", false, "totally fine text")
	if clean.Verdict != VerdictShadow {
		t.Errorf("clean message after latch: Verdict = %v, want VerdictShadow", clean.Verdict)
	}
	if clean.Latched {
		t.Error("latch reported again after the tipping message")
	}
	sixth := g.Admit(ctx, "u1", false, "edgy")
	if sixth.Latched {
		t.Error("latch reported again on a later borderline message")
	}
}

func TestAdmit_ShadowStateSurvivesReconnectAndDiesOnWipe(t *testing.T) {
	g, reg := newTestGate(map[string]Category{"edgy": Borderline})
	ctx := context.Background()

	for i := 0; i <= StrikeThreshold; i++ {
		g.Admit(ctx, "u1", false, "edgy")
	}
	if d := g.Admit(ctx, "u1", false, "hello"); d.Verdict != VerdictShadow {
		t.Fatal("expected u1 to be shadow limited")
	}

	// The record is keyed by identity, so a reconnect changes nothing.
	if d := g.Admit(ctx, "u1", false, "hello again"); d.Verdict != VerdictShadow {
		t.Error("shadow limit lost across reconnect")
	}

	reg.Wipe()
	if d := g.Admit(ctx, "u1", false, "hello"); d.Verdict != VerdictAccept {
		t.Error("shadow limit survived the site wipe")
	}
}

// failingSemantic always errors, as an unreachable moderator service would.
type failingSemantic struct{}

func (failingSemantic) Classify(context.Context, string) (Category, error) {
	return Allowed, errors.New("nats: timeout")
}

func TestPipeline_FailOpenAndFailClosed(t *testing.T) {
	p := NewPipeline(failingSemantic{})
	ctx := context.Background()

	// Semantic failure degrades to Allowed.
	if got := p.Classify(ctx, "just chatting"); got != Allowed {
		t.Errorf("Classify = %q, want ALLOWED on semantic failure", got)
	}

	// The severe prefilter fails closed even with the backend down.
	if got := p.Classify(ctx, "human trafficking ring"); got != Blocked {
		t.Errorf("Classify = %q, want BLOCKED from prefilter", got)
	}

	// No backend at all still prefilters.
	bare := NewPipeline(nil)
	if got := bare.Classify(ctx, "bomb making guide"); got != Blocked {
		t.Errorf("Classify = %q, want BLOCKED from prefilter", got)
	}
	if got := bare.Classify(ctx, "hello"); got != Allowed {
		t.Errorf("Classify = %q, want ALLOWED with no backend", got)
	}
}

// canned Requester for RemoteSemantic.
type cannedRequester struct {
	reply []byte
	err   error
}

func (c cannedRequester) Request(string, []byte, time.Duration) ([]byte, error) {
	return c.reply, c.err
}

func TestRemoteSemantic_ParsesReply(t *testing.T) {
	r := NewRemoteSemantic(cannedRequester{reply: []byte(`{"category":"BORDERLINE"}`)}, 0)
	cat, err := r.Classify(context.Background(), "text")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cat != Borderline {
		t.Errorf("category = %q, want BORDERLINE", cat)
	}
}

func TestRemoteSemantic_ErrorPropagates(t *testing.T) {
	r := NewRemoteSemantic(cannedRequester{err: errors.New("no responders")}, 0)
	if _, err := r.Classify(context.Background(), "text"); err == nil {
		t.Fatal("expected error from failed request")
	}
}
