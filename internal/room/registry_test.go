package room

import (
	"testing"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
)

func allConnected(string) bool { return true }

func TestRegistry_CreateAndIndexes(t *testing.T) {
	reg := NewRegistry()

	r, err := reg.Create("u1", "u2", t0)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if got, ok := reg.Get(r.ID); !ok || got != r {
		t.Error("Get by id failed")
	}
	if got, ok := reg.ByCode(r.ReconnectCode); !ok || got != r {
		t.Error("ByCode failed")
	}
	for _, u := range []string{"u1", "u2"} {
		if got, ok := reg.ForUser(u); !ok || got != r {
			t.Errorf("ForUser(%s) failed", u)
		}
	}
	if reg.Count() != 1 {
		t.Errorf("Count = %d, want 1", reg.Count())
	}
}

func TestRegistry_OneRoomPerUser(t *testing.T) {
	reg := NewRegistry()

	if _, err := reg.Create("u1", "u2", t0); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := reg.Create("u1", "u3", t0); err == nil {
		t.Error("second room for u1 was allowed")
	}
	if _, err := reg.Create("u3", "u3", t0); err == nil {
		t.Error("room with a single identity was allowed")
	}
}

func TestRegistry_RemoveDiscardsEverything(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)
	r.Append(protocol.Message{ID: "m1", Text: "secret"})
	code := r.ReconnectCode

	removed := reg.Remove(r.ID)
	if removed != r {
		t.Fatal("Remove did not return the room")
	}
	if _, ok := reg.Get(r.ID); ok {
		t.Error("room still resolvable by id")
	}
	if _, ok := reg.ByCode(code); ok {
		t.Error("room still resolvable by reconnect code")
	}
	if _, ok := reg.ForUser("u1"); ok {
		t.Error("room still resolvable by participant")
	}
	if len(r.History()) != 0 {
		t.Error("message history survived the close")
	}
	if reg.Remove(r.ID) != nil {
		t.Error("double Remove returned a room")
	}
}

func TestRegistry_RebindReindexesParticipant(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)

	if err := reg.Rebind(r, "u1", "u9"); err != nil {
		t.Fatalf("Rebind failed: %v", err)
	}
	if _, ok := reg.ForUser("u1"); ok {
		t.Error("old identity still indexed")
	}
	if got, ok := reg.ForUser("u9"); !ok || got != r {
		t.Error("new identity not indexed")
	}

	// The new identity is now busy; it cannot be rebound into another room.
	r2, _ := reg.Create("u3", "u4", t0)
	if err := reg.Rebind(r2, "u3", "u9"); err == nil {
		t.Error("rebind onto a busy identity succeeded")
	}
}

func TestSweep_AbsoluteExpiry(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)

	if closed := reg.Sweep(t0.Add(TTL-time.Second), allConnected); len(closed) != 0 {
		t.Fatalf("premature close: %+v", closed)
	}

	closed := reg.Sweep(t0.Add(TTL), allConnected)
	if len(closed) != 1 || closed[0].Room != r {
		t.Fatalf("expected one closure, got %+v", closed)
	}
	if closed[0].Reason != protocol.CloseExpired {
		t.Errorf("reason = %q, want %q", closed[0].Reason, protocol.CloseExpired)
	}
	if reg.Count() != 0 {
		t.Error("expired room still registered")
	}
}

func TestSweep_RejoinExpiry(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)
	r.StartRejoin(t0.Add(time.Minute))

	disconnected := func(userID string) bool { return userID != "u2" }

	// Window still open: room survives.
	if closed := reg.Sweep(t0.Add(10*time.Minute), disconnected); len(closed) != 0 {
		t.Fatalf("room closed before the rejoin deadline: %+v", closed)
	}

	closed := reg.Sweep(t0.Add(16*time.Minute+time.Second), disconnected)
	if len(closed) != 1 || closed[0].Reason != protocol.CloseRejoinExpire {
		t.Fatalf("expected rejoin_expired closure, got %+v", closed)
	}
}

func TestSweep_RejoinSkippedWhenBothConnected(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)
	r.StartRejoin(t0.Add(time.Minute))

	// Both sides connected again but the window was never cleared; the
	// sweep must not close a fully occupied room early.
	if closed := reg.Sweep(t0.Add(20*time.Minute), allConnected); len(closed) != 0 {
		t.Fatalf("sweep closed a fully occupied room: %+v", closed)
	}
}

func TestSweep_ExpiryTakesPriorityOverRejoin(t *testing.T) {
	reg := NewRegistry()
	r, _ := reg.Create("u1", "u2", t0)
	r.StartRejoin(t0.Add(29 * time.Minute))

	closed := reg.Sweep(t0.Add(TTL+time.Second), func(string) bool { return false })
	if len(closed) != 1 {
		t.Fatalf("expected one closure, got %d", len(closed))
	}
	if closed[0].Reason != protocol.CloseExpired {
		t.Errorf("reason = %q, want %q (absolute expiry wins)", closed[0].Reason, protocol.CloseExpired)
	}
}

func TestWipe_ReturnsAndClears(t *testing.T) {
	reg := NewRegistry()
	reg.Create("u1", "u2", t0)
	reg.Create("u3", "u4", t0)

	rooms := reg.Wipe()
	if len(rooms) != 2 {
		t.Fatalf("Wipe returned %d rooms, want 2", len(rooms))
	}
	if reg.Count() != 0 {
		t.Error("registry not empty after wipe")
	}
}
