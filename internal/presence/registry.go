// Package presence tracks which ephemeral identities are currently connected
// and which connection carries each of them. It also retains the per-identity
// moderation escalation record, which is scoped to the logical identity
// rather than the transport connection: it survives a reconnect and is
// destroyed only by a site wipe.
//
// The registry is owned by the engine's event loop and must only be touched
// from there; it carries no locking of its own.
package presence

import (
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
)

// Entry is one connected identity.
type Entry struct {
	User     protocol.User
	ConnID   string
	LastSeen time.Time
}

// ModerationRecord is the escalation state the moderation gate keeps per
// logical identity.
type ModerationRecord struct {
	BorderlineCount int
	WarnedSoft      bool // the one-time soft warning has been delivered
	ShadowLimited   bool // latches permanently until site wipe
}

// Registry maps live connections to identities and back.
type Registry struct {
	byUser     map[string]*Entry
	byConn     map[string]string            // conn id -> user id
	moderation map[string]*ModerationRecord // user id -> escalation state
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byUser:     make(map[string]*Entry),
		byConn:     make(map[string]string),
		moderation: make(map[string]*ModerationRecord),
	}
}

// Upsert records that connID currently carries user. A heartbeat from a new
// connection for a known identity rebinds the identity to that connection.
// It returns the stored entry.
func (r *Registry) Upsert(connID string, user protocol.User, now time.Time) *Entry {
	user.LastActive = now.UnixMilli()

	if e, ok := r.byUser[user.ID]; ok {
		if e.ConnID != connID {
			delete(r.byConn, e.ConnID)
			r.byConn[connID] = user.ID
			e.ConnID = connID
		}
		// Busy flag is server-owned; a heartbeat cannot clear it.
		user.IsDeciding = e.User.IsDeciding
		e.User = user
		e.LastSeen = now
		return e
	}

	e := &Entry{User: user, ConnID: connID, LastSeen: now}
	r.byUser[user.ID] = e
	r.byConn[connID] = user.ID
	return e
}

// ByConn returns the entry carried by connID.
func (r *Registry) ByConn(connID string) (*Entry, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return nil, false
	}
	e, ok := r.byUser[id]
	return e, ok
}

// ByUser returns the entry for a user id.
func (r *Registry) ByUser(userID string) (*Entry, bool) {
	e, ok := r.byUser[userID]
	return e, ok
}

// ConnFor returns the connection currently carrying userID, if any.
func (r *Registry) ConnFor(userID string) (string, bool) {
	e, ok := r.byUser[userID]
	if !ok {
		return "", false
	}
	return e.ConnID, true
}

// Drop removes the identity carried by connID and returns its user id.
// The moderation record for that identity is retained.
func (r *Registry) Drop(connID string) (string, bool) {
	id, ok := r.byConn[connID]
	if !ok {
		return "", false
	}
	delete(r.byConn, connID)
	delete(r.byUser, id)
	return id, true
}

// SetDeciding flips the busy flag that blocks concurrent incoming invites.
func (r *Registry) SetDeciding(userID string, deciding bool) {
	if e, ok := r.byUser[userID]; ok {
		e.User.IsDeciding = deciding
	}
}

// Online returns a snapshot of all connected users.
func (r *Registry) Online() []protocol.User {
	users := make([]protocol.User, 0, len(r.byUser))
	for _, e := range r.byUser {
		users = append(users, e.User)
	}
	return users
}

// Count returns the number of connected identities.
func (r *Registry) Count() int {
	return len(r.byUser)
}

// ModerationState returns the escalation record for an identity, creating it
// on first use. The record persists across disconnects.
func (r *Registry) ModerationState(userID string) *ModerationRecord {
	rec, ok := r.moderation[userID]
	if !ok {
		rec = &ModerationRecord{}
		r.moderation[userID] = rec
	}
	return rec
}

// Wipe clears every entry and every moderation record. Called on site reset;
// a process restart is equivalent.
func (r *Registry) Wipe() {
	r.byUser = make(map[string]*Entry)
	r.byConn = make(map[string]string)
	r.moderation = make(map[string]*ModerationRecord)
}
