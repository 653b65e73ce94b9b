// Package engine is the single-writer core of the gateway. Every mutation
// of presence, community, and room state flows through one event loop, so
// the state packages need no locking. Inbound WebSocket messages, connect
// and disconnect notifications, and the periodic sweep are all enqueued as
// tasks; the loop drains them one at a time. The only blocking work inside
// a task is the time-bounded moderation classify call.
package engine

import (
	"context"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/audit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/community"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/metrics"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/moderation"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/presence"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/ratelimit"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/room"
	"github.com/sumitkumar620290-cmd/GhostTalk/internal/schedule"
)

const (
	// TickInterval drives the sweep that enforces all soft deadlines.
	TickInterval = 1 * time.Second

	// RequestTTL is how long a chat request stays pending before it is
	// dropped and the requester notified.
	RequestTTL = 30 * time.Second

	// taskQueueSize bounds the inbound event queue. Producers block when
	// it is full, which backpressures the read worker pool.
	taskQueueSize = 1024
)

// Sender delivers encoded frames to connections. Implemented by the ws
// server; tests substitute a capture fake.
type Sender interface {
	Send(connID string, data []byte) error
	Broadcast(data []byte)
}

// pendingRequest is a chat invitation awaiting accept, ignore, or timeout.
type pendingRequest struct {
	req      protocol.ChatRequest
	fromConn string
	deadline time.Time
}

// Engine owns all mutable chat state and the loop that serializes access
// to it.
type Engine struct {
	sender    Sender
	users     *presence.Registry
	rooms     *room.Registry
	community *community.State
	gate      *moderation.Gate
	limiter   *ratelimit.Limiter
	auditor   *audit.Store

	pending map[string]*pendingRequest // request id -> invitation

	tasks   chan func(now time.Time)
	done    chan struct{}
	sweeper *schedule.Sweeper
	clock   func() time.Time
}

// Config carries the engine's collaborators. Limiter and Auditor may be nil.
type Config struct {
	Sender    Sender
	Users     *presence.Registry
	Rooms     *room.Registry
	Community *community.State
	Gate      *moderation.Gate
	Limiter   *ratelimit.Limiter
	Auditor   *audit.Store
}

// New assembles an engine. Call Start to begin processing.
func New(cfg Config) *Engine {
	return &Engine{
		sender:    cfg.Sender,
		users:     cfg.Users,
		rooms:     cfg.Rooms,
		community: cfg.Community,
		gate:      cfg.Gate,
		limiter:   cfg.Limiter,
		auditor:   cfg.Auditor,
		pending:   make(map[string]*pendingRequest),
		tasks:     make(chan func(now time.Time), taskQueueSize),
		done:      make(chan struct{}),
		clock:     time.Now,
	}
}

// Start launches the event loop and the sweep ticker.
func (e *Engine) Start() {
	go e.run()
	e.sweeper = schedule.NewSweeper(TickInterval, func(now time.Time) {
		e.enqueue(func(time.Time) { e.tick(now) })
	})
	e.sweeper.Start()
}

// Stop terminates the sweep ticker and the event loop.
func (e *Engine) Stop() {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	close(e.done)
}

// run is the single writer. All state mutation happens on this goroutine.
func (e *Engine) run() {
	for {
		select {
		case <-e.done:
			return
		case task := <-e.tasks:
			task(e.clock())
		}
	}
}

// enqueue hands a task to the event loop. Blocks when the queue is full.
func (e *Engine) enqueue(task func(now time.Time)) {
	select {
	case e.tasks <- task:
	case <-e.done:
	}
}

// send encodes and delivers one server message to a connection. Delivery
// failures are the transport's problem; the heartbeat evicts dead peers.
func (e *Engine) send(connID, msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		return
	}
	_ = e.sender.Send(connID, data)
}

// broadcast encodes and delivers one server message to every connection.
func (e *Engine) broadcast(msgType string, payload interface{}) {
	data, err := protocol.NewServerMessage(msgType, payload)
	if err != nil {
		return
	}
	e.sender.Broadcast(data)
}

// sendError delivers an opaque error to one connection.
func (e *Engine) sendError(connID, message string) {
	e.send(connID, protocol.TypeError, protocol.ErrorMsg{Message: message})
}

// sendToRoom delivers an admitted message to every connected participant.
func (e *Engine) sendToRoom(r *room.Room, msg protocol.Message) {
	for _, p := range r.Participants() {
		if connID, ok := e.users.ConnFor(p); ok {
			e.send(connID, protocol.TypeMessage, protocol.ServerChatMsg{Message: msg})
		}
	}
}

// systemMessage builds a server-authored message for the given room.
func systemMessage(roomID, text string, now time.Time) protocol.Message {
	return protocol.Message{
		ID:         newID(),
		SenderID:   "system",
		SenderName: "system",
		Text:       text,
		Timestamp:  now.UnixMilli(),
		RoomID:     roomID,
	}
}

// closeRoom removes a room and notifies every still-connected participant.
func (e *Engine) closeRoom(roomID, reason string) {
	r := e.rooms.Remove(roomID)
	if r == nil {
		return
	}
	metrics.ActiveRooms.Dec()
	metrics.RoomClosures.WithLabelValues(reason).Inc()
	for _, p := range r.Participants() {
		if connID, ok := e.users.ConnFor(p); ok {
			e.send(connID, protocol.TypeChatClosed, protocol.ChatClosedMsg{
				RoomID: roomID,
				Reason: reason,
			})
		}
	}
}

// tick enforces every soft deadline: site wipe, community reset, message
// retention, room expiry and rejoin windows, and pending request timeouts.
// Deadlines are soft to within one tick interval.
func (e *Engine) tick(now time.Time) {
	if e.community.SiteWipeDue(now) {
		e.siteWipe(now)
	} else if e.community.ResetDue(now) {
		e.community.Reset(now)
		metrics.CommunityResets.WithLabelValues("community").Inc()
		e.broadcast(protocol.TypeResetCommunity, protocol.ResetCommunityMsg{
			NextReset:   e.community.CommunityEnd().UnixMilli(),
			Topic:       e.community.Topic(),
			QuietMoment: e.community.QuietMoment(),
		})
	}

	e.community.Prune(now)

	connected := func(userID string) bool {
		_, ok := e.users.ByUser(userID)
		return ok
	}
	for _, c := range e.rooms.Sweep(now, connected) {
		metrics.ActiveRooms.Dec()
		metrics.RoomClosures.WithLabelValues(c.Reason).Inc()
		for _, p := range c.Room.Participants() {
			if connID, ok := e.users.ConnFor(p); ok {
				e.send(connID, protocol.TypeChatClosed, protocol.ChatClosedMsg{
					RoomID: c.Room.ID,
					Reason: c.Reason,
				})
			}
		}
	}

	for id, p := range e.pending {
		if now.Before(p.deadline) {
			continue
		}
		delete(e.pending, id)
		e.users.SetDeciding(p.req.ToID, false)
		e.sendError(p.fromConn, "Chat request is no longer available")
	}
}

// siteWipe destroys everything: every private room, every identity, every
// moderation record, and the community log. Clients receive the room
// closures first, then the reset announcements.
func (e *Engine) siteWipe(now time.Time) {
	for _, r := range e.rooms.Wipe() {
		metrics.ActiveRooms.Dec()
		metrics.RoomClosures.WithLabelValues(protocol.CloseSiteReset).Inc()
		for _, p := range r.Participants() {
			if connID, ok := e.users.ConnFor(p); ok {
				e.send(connID, protocol.TypeChatClosed, protocol.ChatClosedMsg{
					RoomID: r.ID,
					Reason: protocol.CloseSiteReset,
				})
			}
		}
	}

	e.users.Wipe()
	e.pending = make(map[string]*pendingRequest)
	e.community.SiteWipe(now)
	metrics.CommunityResets.WithLabelValues("site").Inc()

	e.broadcast(protocol.TypeResetSite, protocol.ResetSiteMsg{
		NextReset: e.community.SiteEnd().UnixMilli(),
	})
	e.broadcast(protocol.TypeResetCommunity, protocol.ResetCommunityMsg{
		NextReset:   e.community.CommunityEnd().UnixMilli(),
		Topic:       e.community.Topic(),
		QuietMoment: e.community.QuietMoment(),
	})
}

// recordAudit persists a moderation event off the event loop.
func (e *Engine) recordAudit(ev audit.Event) {
	if e.auditor == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		e.auditor.Record(ctx, ev)
	}()
}
