package room

import (
	"fmt"
	"time"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
)

// Registry is the owned set of live private rooms, indexed by id, reconnect
// code, and participant. Closing a room is atomic: one Remove call drops it
// from every index and discards its history.
type Registry struct {
	byID   map[string]*Room
	byCode map[string]*Room
	byUser map[string]*Room
}

// NewRegistry returns an empty room registry.
func NewRegistry() *Registry {
	return &Registry{
		byID:   make(map[string]*Room),
		byCode: make(map[string]*Room),
		byUser: make(map[string]*Room),
	}
}

// Create opens a room for two identities. A user may hold at most one
// active private room at a time.
func (reg *Registry) Create(userA, userB string, now time.Time) (*Room, error) {
	if userA == userB {
		return nil, fmt.Errorf("room: cannot open a room with a single identity")
	}
	if _, busy := reg.byUser[userA]; busy {
		return nil, fmt.Errorf("room: %s already holds an active room", userA)
	}
	if _, busy := reg.byUser[userB]; busy {
		return nil, fmt.Errorf("room: %s already holds an active room", userB)
	}

	r := New(userA, userB, now)
	// Reconnect codes are short; regenerate on the rare collision.
	for {
		if _, taken := reg.byCode[r.ReconnectCode]; !taken {
			break
		}
		r.ReconnectCode = newReconnectCode()
	}

	reg.byID[r.ID] = r
	reg.byCode[r.ReconnectCode] = r
	reg.byUser[userA] = r
	reg.byUser[userB] = r
	return r, nil
}

// Get returns the room with the given id.
func (reg *Registry) Get(id string) (*Room, bool) {
	r, ok := reg.byID[id]
	return r, ok
}

// ByCode returns the room registered under a reconnect code.
func (reg *Registry) ByCode(code string) (*Room, bool) {
	r, ok := reg.byCode[code]
	return r, ok
}

// ForUser returns the room userID currently participates in.
func (reg *Registry) ForUser(userID string) (*Room, bool) {
	r, ok := reg.byUser[userID]
	return r, ok
}

// Rebind performs the reconnect identity migration on a room and keeps the
// participant index consistent.
func (reg *Registry) Rebind(r *Room, oldID, newID string) error {
	if _, busy := reg.byUser[newID]; busy {
		return fmt.Errorf("room: %s already holds an active room", newID)
	}
	if err := r.RebindIdentity(oldID, newID); err != nil {
		return err
	}
	delete(reg.byUser, oldID)
	reg.byUser[newID] = r
	return nil
}

// Remove closes a room: it is dropped from every index and its message
// history is discarded. Returns the removed room, or nil if the id was
// already gone.
func (reg *Registry) Remove(id string) *Room {
	r, ok := reg.byID[id]
	if !ok {
		return nil
	}
	delete(reg.byID, id)
	delete(reg.byCode, r.ReconnectCode)
	for _, p := range r.participants {
		delete(reg.byUser, p)
	}
	r.messages = nil
	return r
}

// Count returns the number of live rooms.
func (reg *Registry) Count() int {
	return len(reg.byID)
}

// All returns a snapshot of the live rooms.
func (reg *Registry) All() []*Room {
	out := make([]*Room, 0, len(reg.byID))
	for _, r := range reg.byID {
		out = append(out, r)
	}
	return out
}

// Closure records one room closed by a sweep.
type Closure struct {
	Room   *Room
	Reason string
}

// Sweep closes every room whose deadline has passed. The absolute expiry
// check runs first: no derived deadline may outlive it. The rejoin check
// only fires while the room is below two connected participants, reported
// by the connected callback.
func (reg *Registry) Sweep(now time.Time, connected func(userID string) bool) []Closure {
	var closed []Closure
	for _, r := range reg.byID {
		if !now.Before(r.ExpiresAt) {
			closed = append(closed, Closure{Room: r, Reason: protocol.CloseExpired})
			continue
		}
		deadline := r.RejoinDeadline()
		if deadline.IsZero() || now.Before(deadline) {
			continue
		}
		active := 0
		for _, p := range r.participants {
			if connected(p) {
				active++
			}
		}
		if active < 2 {
			closed = append(closed, Closure{Room: r, Reason: protocol.CloseRejoinExpire})
		}
	}
	for _, c := range closed {
		reg.Remove(c.Room.ID)
	}
	return closed
}

// Wipe removes every room and returns them so the caller can broadcast the
// closures.
func (reg *Registry) Wipe() []*Room {
	rooms := reg.All()
	reg.byID = make(map[string]*Room)
	reg.byCode = make(map[string]*Room)
	reg.byUser = make(map[string]*Room)
	for _, r := range rooms {
		r.messages = nil
	}
	return rooms
}
