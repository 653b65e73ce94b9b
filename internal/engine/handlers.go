package engine

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/audit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/metrics"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/moderation"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/ratelimit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/room"
)

// opaqueRejoinError is the single error text every failed rejoin attempt
// receives, regardless of which check failed. It must not reveal whether a
// code exists, a token matched, or a window expired.
const opaqueRejoinError = "Session not available"

func newID() string {
	return uuid.New().String()
}

// ---------------------------------------------------------------------------
// Exported entry points. Each enqueues a task for the event loop; the
// unexported handlers below run on it.
// ---------------------------------------------------------------------------

// OnConnect pushes the initial community state to a new connection.
func (e *Engine) OnConnect(connID string) {
	e.enqueue(func(now time.Time) { e.handleConnect(connID, now) })
}

// OnDisconnect reclaims presence and opens the room grace window.
func (e *Engine) OnDisconnect(connID string) {
	e.enqueue(func(now time.Time) { e.handleDisconnect(connID, now) })
}

// Heartbeat records an identity announcement.
func (e *Engine) Heartbeat(connID string, m protocol.HeartbeatMsg) {
	e.enqueue(func(now time.Time) { e.handleHeartbeat(connID, m, now) })
}

// Message admits one chat message.
func (e *Engine) Message(connID string, m protocol.ChatMsg) {
	e.enqueue(func(now time.Time) { e.handleMessage(connID, m, now) })
}

// ChatRequest delivers a private chat invitation.
func (e *Engine) ChatRequest(connID string, m protocol.ChatRequestMsg) {
	e.enqueue(func(now time.Time) { e.handleChatRequest(connID, m, now) })
}

// ChatAccept opens a private room from a pending invitation.
func (e *Engine) ChatAccept(connID string, m protocol.ChatAcceptMsg) {
	e.enqueue(func(now time.Time) { e.handleChatAccept(connID, m, now) })
}

// ChatExit closes the sender's private room immediately.
func (e *Engine) ChatExit(connID string, m protocol.ChatExitMsg) {
	e.enqueue(func(now time.Time) { e.handleChatExit(connID, m, now) })
}

// ExtensionDecision records one vote in a room's extension ballot.
func (e *Engine) ExtensionDecision(connID string, m protocol.ExtensionDecisionMsg) {
	e.enqueue(func(now time.Time) { e.handleExtensionDecision(connID, m, now) })
}

// ChatRejoin reclaims a private room seat after a connection reset.
func (e *Engine) ChatRejoin(connID string, m protocol.ChatRejoinMsg) {
	e.enqueue(func(now time.Time) { e.handleChatRejoin(connID, m, now) })
}

// AllowConnect is the per-IP admission check wired into the transport's
// upgrade path. It runs off the event loop; the limiter is safe for that.
func (e *Engine) AllowConnect(ip string) bool {
	ok, _ := e.limiter.Allow(context.Background(), ip, ratelimit.RuleConnect)
	return ok
}

// ---------------------------------------------------------------------------
// Event-loop handlers
// ---------------------------------------------------------------------------

func (e *Engine) handleConnect(connID string, now time.Time) {
	e.send(connID, protocol.TypeInitState, protocol.InitStateMsg{
		CommunityMessages: e.community.Messages(now),
		CommunityTimerEnd: e.community.CommunityEnd().UnixMilli(),
		SiteTimerEnd:      e.community.SiteEnd().UnixMilli(),
		Topic:             e.community.Topic(),
		QuietMoment:       e.community.QuietMoment(),
		OnlineUsers:       e.users.Online(),
	})
}

func (e *Engine) handleDisconnect(connID string, now time.Time) {
	userID, ok := e.users.Drop(connID)
	if !ok {
		return
	}

	// Drop invitations the departed user was deciding on or had sent.
	for id, p := range e.pending {
		switch {
		case p.req.ToID == userID:
			delete(e.pending, id)
			e.sendError(p.fromConn, "Chat request is no longer available")
		case p.req.FromID == userID:
			delete(e.pending, id)
			e.users.SetDeciding(p.req.ToID, false)
		}
	}

	r, ok := e.rooms.ForUser(userID)
	if !ok {
		return
	}
	r.StartRejoin(now)
	if partnerConn, ok := e.users.ConnFor(r.Other(userID)); ok {
		notice := systemMessage(r.ID, "Your chat partner lost their connection. They have a window to rejoin with their code.", now)
		r.Append(notice)
		e.send(partnerConn, protocol.TypeMessage, protocol.ServerChatMsg{Message: notice})
	}
}

func (e *Engine) handleHeartbeat(connID string, m protocol.HeartbeatMsg, now time.Time) {
	if m.User.ID == "" || m.User.Username == "" {
		return
	}
	entry := e.users.Upsert(connID, m.User, now)
	e.broadcast(protocol.TypeHeartbeat, protocol.ServerHeartbeatMsg{
		User:              entry.User,
		CommunityTimerEnd: e.community.CommunityEnd().UnixMilli(),
		SiteTimerEnd:      e.community.SiteEnd().UnixMilli(),
	})
}

func (e *Engine) handleMessage(connID string, m protocol.ChatMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		e.sendError(connID, "Announce your identity before chatting")
		return
	}
	if err := ValidateMessage(m.Message.Text); err != nil {
		e.sendError(connID, err.Error())
		return
	}

	isCommunity := m.Message.RoomID == protocol.RoomCommunity
	roomLabel := "private"
	if isCommunity {
		roomLabel = "community"
	}

	allowed, _ := e.limiter.Allow(context.Background(), entry.User.ID, ratelimit.RuleMessage)
	if !allowed {
		metrics.MessagesTotal.WithLabelValues(roomLabel, "limited").Inc()
		e.sendError(connID, "You're sending messages too quickly")
		return
	}

	var priv *room.Room
	if !isCommunity {
		r, ok := e.rooms.Get(m.Message.RoomID)
		if !ok || !r.IsParticipant(entry.User.ID) {
			e.sendError(connID, "Room not available")
			return
		}
		priv = r
	} else if e.community.InQuietMoment(now) {
		e.sendError(connID, "The room is having a quiet moment")
		return
	}

	// The only blocking call on the event loop; bounded by the classifier
	// timeout and fails open to ALLOWED.
	start := time.Now()
	decision := e.gate.Admit(context.Background(), entry.User.ID, priv != nil, m.Message.Text)
	metrics.MessageLatency.Observe(time.Since(start).Seconds())
	metrics.ModerationVerdicts.WithLabelValues(string(decision.Category)).Inc()

	// Server-authoritative fields. The client's claimed sender is ignored.
	msg := m.Message
	msg.SenderID = entry.User.ID
	msg.SenderName = entry.User.Username
	msg.Timestamp = now.UnixMilli()
	if msg.ID == "" {
		msg.ID = newID()
	}

	if decision.Latched {
		e.recordAudit(audit.Event{
			UserID:   entry.User.ID,
			RoomKind: roomLabel,
			Category: string(decision.Category),
			Action:   audit.ActionShadowLimited,
			Excerpt:  msg.Text,
		})
	}

	if decision.Warn {
		warning := systemMessage(msg.RoomID, "A recent message was close to the line. Please keep it kind.", now)
		e.send(connID, protocol.TypeMessage, protocol.ServerChatMsg{Message: warning})
		e.recordAudit(audit.Event{
			UserID:   entry.User.ID,
			RoomKind: roomLabel,
			Category: string(decision.Category),
			Action:   audit.ActionWarned,
			Excerpt:  msg.Text,
		})
	}

	switch decision.Verdict {
	case moderation.VerdictBlockRoom:
		log.Printf("[moderator] blocked message closes room=%s user=%s", priv.ID, entry.User.ID)
		e.recordAudit(audit.Event{
			UserID:   entry.User.ID,
			RoomKind: roomLabel,
			Category: string(decision.Category),
			Action:   audit.ActionRoomClosed,
			Excerpt:  msg.Text,
		})
		e.closeRoom(priv.ID, protocol.CloseModeration)
		return

	case moderation.VerdictShadow:
		// The sender sees a normal echo; nobody else ever receives it.
		metrics.MessagesTotal.WithLabelValues(roomLabel, "shadowed").Inc()
		e.recordAudit(audit.Event{
			UserID:   entry.User.ID,
			RoomKind: roomLabel,
			Category: string(decision.Category),
			Action:   audit.ActionShadowed,
			Excerpt:  msg.Text,
		})
		e.send(connID, protocol.TypeMessage, protocol.ServerChatMsg{Message: msg})
		return
	}

	metrics.MessagesTotal.WithLabelValues(roomLabel, "delivered").Inc()
	if priv != nil {
		priv.Append(msg)
		e.sendToRoom(priv, msg)
		return
	}
	e.community.Append(msg)
	e.broadcast(protocol.TypeMessage, protocol.ServerChatMsg{Message: msg})
}

func (e *Engine) handleChatRequest(connID string, m protocol.ChatRequestMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		e.sendError(connID, "Announce your identity before chatting")
		return
	}

	allowed, _ := e.limiter.Allow(context.Background(), entry.User.ID, ratelimit.RuleChatRequest)
	if !allowed {
		e.sendError(connID, "You're sending requests too quickly")
		return
	}

	target, ok := e.users.ByUser(m.Request.ToID)
	if !ok || m.Request.ToID == entry.User.ID ||
		!target.User.AcceptingRequests || target.User.IsDeciding {
		e.sendError(connID, "That ghost is not available right now")
		return
	}
	if _, busy := e.rooms.ForUser(entry.User.ID); busy {
		e.sendError(connID, "You already have an open chat")
		return
	}
	if _, busy := e.rooms.ForUser(target.User.ID); busy {
		e.sendError(connID, "That ghost is not available right now")
		return
	}

	req := protocol.ChatRequest{
		ID:        m.Request.ID,
		FromID:    entry.User.ID,
		FromName:  entry.User.Username,
		ToID:      target.User.ID,
		Timestamp: now.UnixMilli(),
	}
	if req.ID == "" {
		req.ID = newID()
	}
	if _, dup := e.pending[req.ID]; dup {
		e.sendError(connID, "That ghost is not available right now")
		return
	}

	e.pending[req.ID] = &pendingRequest{
		req:      req,
		fromConn: connID,
		deadline: now.Add(RequestTTL),
	}
	e.users.SetDeciding(target.User.ID, true)
	e.send(target.ConnID, protocol.TypeChatRequest, protocol.ServerChatRequestMsg{Request: req})
}

func (e *Engine) handleChatAccept(connID string, m protocol.ChatAcceptMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		e.sendError(connID, "Announce your identity before chatting")
		return
	}

	p, ok := e.pending[m.RequestID]
	if !ok || p.req.ToID != entry.User.ID {
		e.sendError(connID, "Chat request is no longer available")
		return
	}
	delete(e.pending, m.RequestID)
	e.users.SetDeciding(entry.User.ID, false)

	r, err := e.rooms.Create(p.req.FromID, p.req.ToID, now)
	if err != nil {
		e.sendError(connID, "Chat request is no longer available")
		e.sendError(p.fromConn, "Chat request is no longer available")
		return
	}
	metrics.ActiveRooms.Inc()

	// Each participant receives only their own session token.
	for _, participant := range r.Participants() {
		if pc, ok := e.users.ConnFor(participant); ok {
			e.send(pc, protocol.TypeChatAccept, protocol.ChatAcceptedMsg{
				Room:     r.View(participant),
				Messages: r.History(),
			})
		}
	}
}

func (e *Engine) handleChatExit(connID string, m protocol.ChatExitMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		return
	}
	r, ok := e.rooms.Get(m.RoomID)
	if !ok || !r.IsParticipant(entry.User.ID) {
		return
	}
	e.closeRoom(r.ID, protocol.CloseExit)
}

func (e *Engine) handleExtensionDecision(connID string, m protocol.ExtensionDecisionMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		return
	}
	if !protocol.ValidStage(m.Stage) || !protocol.ValidDecision(m.Decision) {
		e.sendError(connID, "Invalid extension decision")
		return
	}
	r, ok := e.rooms.Get(m.RoomID)
	if !ok || !r.IsParticipant(entry.User.ID) {
		e.sendError(connID, "Room not available")
		return
	}

	switch r.RecordDecision(m.Stage, entry.User.ID, m.Decision, now) {
	case room.VotePending:
		// Wait for the partner's vote in this stage.

	case room.VoteExtended:
		for _, participant := range r.Participants() {
			if pc, ok := e.users.ConnFor(participant); ok {
				e.send(pc, protocol.TypeChatExtended, protocol.ChatExtendedMsg{
					Room: r.View(participant),
				})
			}
		}

	case room.VoteDeclined:
		// Each side learns only its own consequence. The extender hears
		// the partner declined; the decliner hears a neutral confirmation.
		for _, participant := range r.Participants() {
			pc, ok := e.users.ConnFor(participant)
			if !ok {
				continue
			}
			d, _ := r.Decision(m.Stage, participant)
			var text string
			if d == protocol.DecisionExtend {
				text = "Your chat partner chose to let this room fade."
			} else {
				text = "This room will fade as scheduled."
			}
			notice := systemMessage(r.ID, text, now)
			e.send(pc, protocol.TypeMessage, protocol.ServerChatMsg{Message: notice})
		}

	case room.VoteNoop:
		notice := systemMessage(r.ID, "This room has already used its extension.", now)
		for _, participant := range r.Participants() {
			if pc, ok := e.users.ConnFor(participant); ok {
				e.send(pc, protocol.TypeMessage, protocol.ServerChatMsg{Message: notice})
			}
		}
	}
}

func (e *Engine) handleChatRejoin(connID string, m protocol.ChatRejoinMsg, now time.Time) {
	entry, ok := e.users.ByConn(connID)
	if !ok {
		e.sendError(connID, opaqueRejoinError)
		return
	}

	r, ok := e.rooms.ByCode(m.ReconnectCode)
	if !ok {
		e.sendError(connID, opaqueRejoinError)
		return
	}
	holder, ok := r.HolderOfToken(m.SessionToken)
	if !ok {
		e.sendError(connID, opaqueRejoinError)
		return
	}
	if !now.Before(r.ExpiresAt) {
		e.sendError(connID, opaqueRejoinError)
		return
	}
	if deadline := r.RejoinDeadline(); !deadline.IsZero() && !now.Before(deadline) {
		e.sendError(connID, opaqueRejoinError)
		return
	}

	// Migrate the seat to the caller's fresh identity. The session token
	// itself survives the migration.
	if holder != entry.User.ID {
		if err := e.rooms.Rebind(r, holder, entry.User.ID); err != nil {
			e.sendError(connID, opaqueRejoinError)
			return
		}
	}

	// Close the grace window once both seats are occupied again.
	bothConnected := true
	for _, p := range r.Participants() {
		if _, ok := e.users.ByUser(p); !ok {
			bothConnected = false
		}
	}
	if bothConnected {
		r.ClearRejoin()
	}

	e.send(connID, protocol.TypeChatAccept, protocol.ChatAcceptedMsg{
		Room:     r.View(entry.User.ID),
		Messages: r.History(),
	})
	if partnerConn, ok := e.users.ConnFor(r.Other(entry.User.ID)); ok {
		notice := systemMessage(r.ID, "Your chat partner has rejoined.", now)
		r.Append(notice)
		e.send(partnerConn, protocol.TypeMessage, protocol.ServerChatMsg{Message: notice})
	}
}
