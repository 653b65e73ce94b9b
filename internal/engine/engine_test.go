package engine

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/community"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/moderation"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/presence"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/room"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/topic"
)

// fakeSender captures outbound frames per connection so tests can assert on
// exactly what each client would have received.
type fakeSender struct {
	frames     map[string][][]byte
	broadcasts [][]byte
}

func newFakeSender() *fakeSender {
	return &fakeSender{frames: make(map[string][][]byte)}
}

func (f *fakeSender) Send(connID string, data []byte) error {
	f.frames[connID] = append(f.frames[connID], data)
	return nil
}

func (f *fakeSender) Broadcast(data []byte) {
	f.broadcasts = append(f.broadcasts, data)
}

func (f *fakeSender) reset() {
	f.frames = make(map[string][][]byte)
	f.broadcasts = nil
}

// typesFor returns the message type of every frame sent to connID, in order.
func (f *fakeSender) typesFor(t *testing.T, connID string) []string {
	t.Helper()
	var out []string
	for _, data := range f.frames[connID] {
		out = append(out, frameType(t, data))
	}
	return out
}

func frameType(t *testing.T, data []byte) string {
	t.Helper()
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		t.Fatalf("bad frame: %v", err)
	}
	return env.Type
}

func decodeFrame(t *testing.T, data []byte, into interface{}) {
	t.Helper()
	if err := json.Unmarshal(data, into); err != nil {
		t.Fatalf("decode frame: %v", err)
	}
}

// lastOfType returns the most recent frame of the given type sent to connID.
func (f *fakeSender) lastOfType(t *testing.T, connID, msgType string) []byte {
	t.Helper()
	var found []byte
	for _, data := range f.frames[connID] {
		if frameType(t, data) == msgType {
			found = data
		}
	}
	if found == nil {
		t.Fatalf("no %s frame sent to %s (got %v)", msgType, connID, f.typesFor(t, connID))
	}
	return found
}

type fixedClassifier struct {
	verdicts map[string]moderation.Category
}

func (f *fixedClassifier) Classify(_ context.Context, text string) moderation.Category {
	if c, ok := f.verdicts[text]; ok {
		return c
	}
	return moderation.Allowed
}

// base is a quiet-free reference instant: mid-cycle, well before the
// randomized quiet window can start.
var base = time.Date(2025, 3, 1, 12, 1, 0, 0, time.UTC)

func newTestEngine(t *testing.T, verdicts map[string]moderation.Category) (*Engine, *fakeSender) {
	t.Helper()
	sender := newFakeSender()
	users := presence.NewRegistry()
	e := New(Config{
		Sender:    sender,
		Users:     users,
		Rooms:     room.NewRegistry(),
		Community: community.New(base, topic.NewPoolProvider(1), 1),
		Gate:      moderation.NewGate(&fixedClassifier{verdicts: verdicts}, users),
	})
	return e, sender
}

// join announces an identity on a connection and clears the resulting
// broadcast noise.
func join(e *Engine, s *fakeSender, connID, userID, name string, now time.Time) {
	e.handleHeartbeat(connID, protocol.HeartbeatMsg{
		User: protocol.User{ID: userID, Username: name, AcceptingRequests: true},
	}, now)
	s.reset()
}

// openRoom drives the full request/accept exchange and returns the room.
func openRoom(t *testing.T, e *Engine, s *fakeSender, now time.Time) *room.Room {
	t.Helper()
	join(e, s, "connA", "userA", "BraveGhost", now)
	join(e, s, "connB", "userB", "CalmGhost", now)

	e.handleChatRequest("connA", protocol.ChatRequestMsg{
		Request: protocol.ChatRequest{ID: "req1", ToID: "userB"},
	}, now)
	e.handleChatAccept("connB", protocol.ChatAcceptMsg{RequestID: "req1"}, now)

	r, ok := e.rooms.ForUser("userA")
	if !ok {
		t.Fatal("room was not created")
	}
	s.reset()
	return r
}

func TestConnectSendsInitState(t *testing.T) {
	e, s := newTestEngine(t, nil)

	e.handleConnect("conn1", base)

	var init protocol.InitStateMsg
	decodeFrame(t, s.lastOfType(t, "conn1", protocol.TypeInitState), &init)
	if init.Topic == "" {
		t.Error("INIT_STATE missing topic")
	}
	if init.CommunityTimerEnd <= base.UnixMilli() {
		t.Error("community deadline is not in the future")
	}
	if init.SiteTimerEnd < init.CommunityTimerEnd {
		t.Error("site deadline before community deadline")
	}
}

func TestHeartbeatBroadcastsPresence(t *testing.T) {
	e, s := newTestEngine(t, nil)

	e.handleHeartbeat("conn1", protocol.HeartbeatMsg{
		User: protocol.User{ID: "u1", Username: "FaintGhost", AcceptingRequests: true},
	}, base)

	if len(s.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(s.broadcasts))
	}
	var hb protocol.ServerHeartbeatMsg
	decodeFrame(t, s.broadcasts[0], &hb)
	if hb.User.ID != "u1" {
		t.Errorf("broadcast user = %q, want u1", hb.User.ID)
	}

	// A nameless heartbeat is dropped.
	s.reset()
	e.handleHeartbeat("conn2", protocol.HeartbeatMsg{User: protocol.User{ID: "u2"}}, base)
	if len(s.broadcasts) != 0 {
		t.Error("anonymous heartbeat was broadcast")
	}
}

func TestCommunityMessageBroadcastAndRetained(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "conn1", "u1", "FaintGhost", base)

	e.handleMessage("conn1", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "hello everyone"},
	}, base)

	if len(s.broadcasts) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(s.broadcasts))
	}
	var out protocol.ServerChatMsg
	decodeFrame(t, s.broadcasts[0], &out)
	if out.Message.SenderID != "u1" || out.Message.SenderName != "FaintGhost" {
		t.Errorf("sender fields not authoritative: %+v", out.Message)
	}
	if out.Message.ID == "" || out.Message.Timestamp != base.UnixMilli() {
		t.Errorf("server did not finalize id/timestamp: %+v", out.Message)
	}

	if got := len(e.community.Messages(base)); got != 1 {
		t.Errorf("community retained %d messages, want 1", got)
	}
}

func TestMessageFromUnknownConnRejected(t *testing.T) {
	e, s := newTestEngine(t, nil)

	e.handleMessage("ghostconn", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "hi"},
	}, base)

	if frameType(t, s.lastOfType(t, "ghostconn", protocol.TypeError)) != protocol.TypeError {
		t.Fatal("expected an error frame")
	}
	if len(s.broadcasts) != 0 {
		t.Error("message from unannounced connection was broadcast")
	}
}

func TestQuietMomentSuppressesCommunityMessages(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "conn1", "u1", "FaintGhost", base)

	// Find an instant inside the quiet window.
	qm := e.community.QuietMoment()
	quietAt := time.UnixMilli(qm.Start).Add(30 * time.Second)

	e.handleMessage("conn1", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "shh"},
	}, quietAt)

	if len(s.broadcasts) != 0 {
		t.Error("message broadcast during quiet moment")
	}
	s.lastOfType(t, "conn1", protocol.TypeError)
}

func TestChatRequestDeliveredAndAccepted(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "connA", "userA", "BraveGhost", base)
	join(e, s, "connB", "userB", "CalmGhost", base)

	e.handleChatRequest("connA", protocol.ChatRequestMsg{
		Request: protocol.ChatRequest{ID: "req1", ToID: "userB"},
	}, base)

	var delivered protocol.ServerChatRequestMsg
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeChatRequest), &delivered)
	if delivered.Request.FromID != "userA" || delivered.Request.FromName != "BraveGhost" {
		t.Errorf("request sender not authoritative: %+v", delivered.Request)
	}

	// The target is now deciding and refuses further invites.
	entry, _ := e.users.ByUser("userB")
	if !entry.User.IsDeciding {
		t.Error("target not flagged as deciding")
	}

	e.handleChatAccept("connB", protocol.ChatAcceptMsg{RequestID: "req1"}, base)

	var forA, forB protocol.ChatAcceptedMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeChatAccept), &forA)
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeChatAccept), &forB)

	if forA.Room.ID != forB.Room.ID {
		t.Fatal("participants got different rooms")
	}
	if forA.Room.SessionToken == "" || forB.Room.SessionToken == "" {
		t.Fatal("missing session tokens")
	}
	if forA.Room.SessionToken == forB.Room.SessionToken {
		t.Error("participants share a session token")
	}
	if entry, _ := e.users.ByUser("userB"); entry.User.IsDeciding {
		t.Error("deciding flag not cleared after accept")
	}
}

func TestChatAcceptWrongUserOpaque(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "connA", "userA", "BraveGhost", base)
	join(e, s, "connB", "userB", "CalmGhost", base)
	join(e, s, "connC", "userC", "SlyGhost", base)

	e.handleChatRequest("connA", protocol.ChatRequestMsg{
		Request: protocol.ChatRequest{ID: "req1", ToID: "userB"},
	}, base)
	s.reset()

	// userC tries to steal the invitation.
	e.handleChatAccept("connC", protocol.ChatAcceptMsg{RequestID: "req1"}, base)

	s.lastOfType(t, "connC", protocol.TypeError)
	if _, ok := e.rooms.ForUser("userC"); ok {
		t.Fatal("room created for non-addressee")
	}
	if _, ok := e.pending["req1"]; !ok {
		t.Error("pending request consumed by non-addressee")
	}
}

func TestChatRequestTimeout(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "connA", "userA", "BraveGhost", base)
	join(e, s, "connB", "userB", "CalmGhost", base)

	e.handleChatRequest("connA", protocol.ChatRequestMsg{
		Request: protocol.ChatRequest{ID: "req1", ToID: "userB"},
	}, base)
	s.reset()

	e.tick(base.Add(RequestTTL + time.Second))

	if _, ok := e.pending["req1"]; ok {
		t.Fatal("request still pending after timeout")
	}
	if entry, _ := e.users.ByUser("userB"); entry.User.IsDeciding {
		t.Error("deciding flag not cleared by timeout")
	}
	s.lastOfType(t, "connA", protocol.TypeError)
}

func TestPrivateMessageDeliveredToBothOnly(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	e.handleMessage("connA", protocol.ChatMsg{
		Message: protocol.Message{RoomID: r.ID, Text: "just us"},
	}, base)

	s.lastOfType(t, "connA", protocol.TypeMessage)
	s.lastOfType(t, "connB", protocol.TypeMessage)
	if len(s.broadcasts) != 0 {
		t.Error("private message was broadcast")
	}
	if got := len(r.History()); got != 1 {
		t.Errorf("room history has %d messages, want 1", got)
	}
}

func TestChatExitClosesRoom(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	e.handleChatExit("connA", protocol.ChatExitMsg{RoomID: r.ID}, base)

	var closedA, closedB protocol.ChatClosedMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeChatClosed), &closedA)
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeChatClosed), &closedB)
	if closedA.Reason != protocol.CloseExit || closedB.Reason != protocol.CloseExit {
		t.Errorf("close reasons = %q/%q, want exit", closedA.Reason, closedB.Reason)
	}
	if _, ok := e.rooms.Get(r.ID); ok {
		t.Fatal("room still registered after exit")
	}
}

func TestExtensionMutualExtend(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)
	origExpiry := r.ExpiresAt

	voteAt := base.Add(25 * time.Minute)
	e.handleExtensionDecision("connA", protocol.ExtensionDecisionMsg{
		RoomID: r.ID, Stage: protocol.StageFiveMin, Decision: protocol.DecisionExtend,
	}, voteAt)
	if len(s.frames["connB"]) != 0 {
		t.Error("partner notified before stage completed")
	}
	e.handleExtensionDecision("connB", protocol.ExtensionDecisionMsg{
		RoomID: r.ID, Stage: protocol.StageFiveMin, Decision: protocol.DecisionExtend,
	}, voteAt)

	var extA protocol.ChatExtendedMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeChatExtended), &extA)
	s.lastOfType(t, "connB", protocol.TypeChatExtended)
	if !extA.Room.Extended {
		t.Error("extended flag not set in payload")
	}
	if !r.ExpiresAt.After(origExpiry) {
		t.Error("expiry did not move forward")
	}
}

func TestExtensionMismatchAsymmetricNotices(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	voteAt := base.Add(25 * time.Minute)
	e.handleExtensionDecision("connA", protocol.ExtensionDecisionMsg{
		RoomID: r.ID, Stage: protocol.StageFiveMin, Decision: protocol.DecisionExtend,
	}, voteAt)
	e.handleExtensionDecision("connB", protocol.ExtensionDecisionMsg{
		RoomID: r.ID, Stage: protocol.StageFiveMin, Decision: protocol.DecisionLater,
	}, voteAt)

	var noticeA, noticeB protocol.ServerChatMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeMessage), &noticeA)
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeMessage), &noticeB)
	if noticeA.Message.Text == noticeB.Message.Text {
		t.Error("mismatch notices are symmetric")
	}
	if noticeA.Message.SenderID != "system" {
		t.Errorf("notice sender = %q, want system", noticeA.Message.SenderID)
	}
	if r.Extended {
		t.Error("room extended on mismatched ballot")
	}
}

func TestRejoinMigratesIdentity(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)
	token, _ := r.TokenFor("userA")

	// userA's connection drops; a grace window opens.
	dropAt := base.Add(5 * time.Minute)
	e.handleDisconnect("connA", dropAt)
	if r.RejoinStartedAt().IsZero() {
		t.Fatal("grace window did not open")
	}
	s.reset()

	// A fresh connection with a fresh identity presents code and token.
	rejoinAt := dropAt.Add(2 * time.Minute)
	join(e, s, "connA2", "userA2", "ReturnedGhost", rejoinAt)
	e.handleChatRejoin("connA2", protocol.ChatRejoinMsg{
		ReconnectCode: r.ReconnectCode,
		SessionToken:  token,
	}, rejoinAt)

	var accepted protocol.ChatAcceptedMsg
	decodeFrame(t, s.lastOfType(t, "connA2", protocol.TypeChatAccept), &accepted)
	if accepted.Room.SessionToken != token {
		t.Error("session token changed across rejoin")
	}
	if !r.IsParticipant("userA2") || r.IsParticipant("userA") {
		t.Error("identity was not migrated")
	}
	if !r.RejoinStartedAt().IsZero() {
		t.Error("grace window not cleared after rejoin")
	}

	// The partner hears about the return.
	var notice protocol.ServerChatMsg
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeMessage), &notice)
	if notice.Message.SenderID != "system" {
		t.Errorf("rejoin notice sender = %q, want system", notice.Message.SenderID)
	}
}

func TestRejoinFailuresAreOpaque(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)
	token, _ := r.TokenFor("userA")
	e.handleDisconnect("connA", base.Add(5*time.Minute))
	s.reset()

	rejoinAt := base.Add(7 * time.Minute)
	join(e, s, "connA2", "userA2", "ReturnedGhost", rejoinAt)

	cases := []struct {
		name string
		msg  protocol.ChatRejoinMsg
		at   time.Time
	}{
		{"bad code", protocol.ChatRejoinMsg{ReconnectCode: "XXXXXX", SessionToken: token}, rejoinAt},
		{"bad token", protocol.ChatRejoinMsg{ReconnectCode: r.ReconnectCode, SessionToken: "nope"}, rejoinAt},
		{"window expired", protocol.ChatRejoinMsg{ReconnectCode: r.ReconnectCode, SessionToken: token}, base.Add(5*time.Minute + room.RejoinWindow + time.Minute)},
	}
	for _, tc := range cases {
		s.reset()
		e.handleChatRejoin("connA2", tc.msg, tc.at)
		var errMsg protocol.ErrorMsg
		decodeFrame(t, s.lastOfType(t, "connA2", protocol.TypeError), &errMsg)
		if errMsg.Message != opaqueRejoinError {
			t.Errorf("%s: error = %q, want the opaque text", tc.name, errMsg.Message)
		}
	}
}

func TestSweepClosesExpiredRoom(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	e.tick(base.Add(room.TTL + time.Second))

	if _, ok := e.rooms.Get(r.ID); ok {
		t.Fatal("expired room survived the sweep")
	}
	var closed protocol.ChatClosedMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeChatClosed), &closed)
	if closed.Reason != protocol.CloseExpired {
		t.Errorf("reason = %q, want expired", closed.Reason)
	}
}

func TestSweepClosesAbandonedRoomAfterRejoinWindow(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	dropAt := base.Add(2 * time.Minute)
	e.handleDisconnect("connA", dropAt)
	s.reset()

	// Inside the window the room survives.
	e.tick(dropAt.Add(room.RejoinWindow - time.Minute))
	if _, ok := e.rooms.Get(r.ID); !ok {
		t.Fatal("room closed before the rejoin window elapsed")
	}

	e.tick(dropAt.Add(room.RejoinWindow + time.Second))
	if _, ok := e.rooms.Get(r.ID); ok {
		t.Fatal("abandoned room survived past the rejoin window")
	}
	var closed protocol.ChatClosedMsg
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeChatClosed), &closed)
	if closed.Reason != protocol.CloseRejoinExpire {
		t.Errorf("reason = %q, want rejoin_expired", closed.Reason)
	}
}

func TestCommunityResetBroadcast(t *testing.T) {
	e, s := newTestEngine(t, nil)
	join(e, s, "conn1", "u1", "FaintGhost", base)
	e.handleMessage("conn1", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "soon gone"},
	}, base)
	s.reset()

	resetAt := e.community.CommunityEnd().Add(time.Second)
	e.tick(resetAt)

	if got := len(e.community.Messages(resetAt)); got != 0 {
		t.Errorf("community kept %d messages across reset", got)
	}
	if len(s.broadcasts) == 0 {
		t.Fatal("no reset broadcast")
	}
	var reset protocol.ResetCommunityMsg
	decodeFrame(t, s.broadcasts[len(s.broadcasts)-1], &reset)
	if reset.Topic == "" || reset.NextReset <= resetAt.UnixMilli() {
		t.Errorf("bad reset payload: %+v", reset)
	}
}

func TestSiteWipeDestroysEverything(t *testing.T) {
	e, s := newTestEngine(t, nil)
	r := openRoom(t, e, s, base)

	wipeAt := e.community.SiteEnd().Add(time.Second)
	e.tick(wipeAt)

	if e.rooms.Count() != 0 {
		t.Error("rooms survived the site wipe")
	}
	if e.users.Count() != 0 {
		t.Error("identities survived the site wipe")
	}
	var closed protocol.ChatClosedMsg
	decodeFrame(t, s.lastOfType(t, "connA", protocol.TypeChatClosed), &closed)
	if closed.Reason != protocol.CloseSiteReset {
		t.Errorf("reason = %q, want site_reset", closed.Reason)
	}
	_ = r

	sawSiteReset := false
	for _, b := range s.broadcasts {
		if frameType(t, b) == protocol.TypeResetSite {
			sawSiteReset = true
		}
	}
	if !sawSiteReset {
		t.Error("no RESET_SITE broadcast")
	}
}

func TestBlockedMessageTearsDownPrivateRoom(t *testing.T) {
	e, s := newTestEngine(t, map[string]moderation.Category{"vile": moderation.Blocked})
	r := openRoom(t, e, s, base)

	e.handleMessage("connA", protocol.ChatMsg{
		Message: protocol.Message{RoomID: r.ID, Text: "vile"},
	}, base)

	if _, ok := e.rooms.Get(r.ID); ok {
		t.Fatal("room survived a blocked message")
	}
	var closed protocol.ChatClosedMsg
	decodeFrame(t, s.lastOfType(t, "connB", protocol.TypeChatClosed), &closed)
	if closed.Reason != protocol.CloseModeration {
		t.Errorf("reason = %q, want moderation", closed.Reason)
	}
}

func TestBlockedCommunityMessageSilentlyShadowed(t *testing.T) {
	e, s := newTestEngine(t, map[string]moderation.Category{"vile": moderation.Blocked})
	join(e, s, "conn1", "u1", "FaintGhost", base)

	e.handleMessage("conn1", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "vile"},
	}, base)

	// The sender sees a normal echo; nothing is broadcast or retained.
	s.lastOfType(t, "conn1", protocol.TypeMessage)
	if len(s.broadcasts) != 0 {
		t.Error("blocked community message was broadcast")
	}
	if got := len(e.community.Messages(base)); got != 0 {
		t.Errorf("blocked message retained (%d)", got)
	}
	for _, data := range s.frames["conn1"] {
		if frameType(t, data) == protocol.TypeError {
			t.Error("blocked community message surfaced an error")
		}
	}
}

func TestBorderlineEscalationShadowLimits(t *testing.T) {
	e, s := newTestEngine(t, map[string]moderation.Category{"edgy": moderation.Borderline})
	join(e, s, "conn1", "u1", "FaintGhost", base)

	warnings := 0
	for i := 0; i < 5; i++ {
		at := base.Add(time.Duration(i) * 20 * time.Second)
		s.reset()
		e.handleMessage("conn1", protocol.ChatMsg{
			Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "edgy"},
		}, at)
		for _, data := range s.frames["conn1"] {
			var out protocol.ServerChatMsg
			if frameType(t, data) == protocol.TypeMessage {
				decodeFrame(t, data, &out)
				if out.Message.SenderID == "system" {
					warnings++
				}
			}
		}
		if i < 4 && len(s.broadcasts) != 1 {
			t.Fatalf("message %d: expected delivery, got %d broadcasts", i+1, len(s.broadcasts))
		}
		if i == 4 && len(s.broadcasts) != 0 {
			t.Fatal("fifth borderline message was still delivered")
		}
	}
	if warnings != 1 {
		t.Errorf("saw %d warnings, want exactly 1", warnings)
	}

	// Even a clean message stays shadowed now.
	s.reset()
	e.handleMessage("conn1", protocol.ChatMsg{
		Message: protocol.Message{RoomID: protocol.RoomCommunity, Text: "clean text"},
	}, base.Add(10*time.Minute))
	if len(s.broadcasts) != 0 {
		t.Error("clean message from limited sender was broadcast")
	}
	s.lastOfType(t, "conn1", protocol.TypeMessage)
}
