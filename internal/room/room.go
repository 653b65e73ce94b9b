// Package room implements the private two-party room lifecycle: creation
// from an accepted chat request, token-secured rejoin, two-stage mutual
// extension voting, the disconnect grace window, and sweep-based expiry.
//
// Rooms are owned by the engine's event loop; nothing here locks.
package room

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sumitkumar620290-cmd/GhostTalk/internal/protocol"
)

const (
	// TTL is the initial room lifetime.
	TTL = 30 * time.Minute

	// ExtensionGrant is the one-time lifetime extension.
	ExtensionGrant = 30 * time.Minute

	// RejoinWindow is the grace period after a participant disconnects.
	// The effective deadline is always capped by the room's expiry.
	RejoinWindow = 15 * time.Minute

	// CodeLength is the length of the human-enterable reconnect code.
	CodeLength = 6
)

// codeAlphabet omits 0/O/1/I so codes survive being read aloud or
// handwritten.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// VoteOutcome is the result of recording one extension decision.
type VoteOutcome int

const (
	// VotePending means the other participant has not voted in this stage yet.
	VotePending VoteOutcome = iota
	// VoteExtended means both chose EXTEND and the extension was granted now.
	VoteExtended
	// VoteDeclined means the stage completed with mismatched decisions.
	VoteDeclined
	// VoteNoop means the stage completed but the extension was already used.
	VoteNoop
)

// Room is a private two-party chat session.
type Room struct {
	ID            string
	ReconnectCode string
	CreatedAt     time.Time
	ExpiresAt     time.Time
	Extended      bool

	participants []string          // at most 2, invariant-enforced
	tokens       map[string]string // identity -> session token
	ballots      map[string]map[string]string
	rejoinStart  time.Time // zero when no grace window is running
	messages     []protocol.Message
}

// New creates a room for the two given identities with a fresh reconnect
// code and one cryptographically random session token per participant.
func New(userA, userB string, now time.Time) *Room {
	return &Room{
		ID:            uuid.New().String(),
		ReconnectCode: newReconnectCode(),
		CreatedAt:     now,
		ExpiresAt:     now.Add(TTL),
		participants:  []string{userA, userB},
		tokens: map[string]string{
			userA: uuid.New().String(),
			userB: uuid.New().String(),
		},
		ballots: make(map[string]map[string]string),
	}
}

// newReconnectCode draws CodeLength characters from codeAlphabet using
// crypto/rand.
func newReconnectCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand failure means the process is in no state to hand
		// out secrets; fall back to a UUID-derived code rather than panic.
		u := uuid.New().String()
		copy(buf, u)
	}
	code := make([]byte, CodeLength)
	for i, b := range buf {
		code[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(code)
}

// Participants returns a copy of the participant identities.
func (r *Room) Participants() []string {
	out := make([]string, len(r.participants))
	copy(out, r.participants)
	return out
}

// IsParticipant reports whether userID holds a seat in this room.
func (r *Room) IsParticipant(userID string) bool {
	for _, p := range r.participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Other returns the partner of userID, or "" if userID is not a participant.
func (r *Room) Other(userID string) string {
	for _, p := range r.participants {
		if p != userID {
			return p
		}
	}
	return ""
}

// TokenFor returns the session token issued to userID.
func (r *Room) TokenFor(userID string) (string, bool) {
	tok, ok := r.tokens[userID]
	return tok, ok
}

// HolderOfToken returns the identity a token is currently assigned to.
func (r *Room) HolderOfToken(token string) (string, bool) {
	for id, tok := range r.tokens {
		if tok == token {
			return id, true
		}
	}
	return "", false
}

// Append stores an admitted message in the room's private history.
func (r *Room) Append(msg protocol.Message) {
	r.messages = append(r.messages, msg)
}

// History returns a copy of the room's message history.
func (r *Room) History() []protocol.Message {
	out := make([]protocol.Message, len(r.messages))
	copy(out, r.messages)
	return out
}

// RecordDecision stores one participant's vote for a stage (last write wins)
// and evaluates the ballot once both participants have voted. The extension
// is granted at most once per room; completed stages after the grant are
// no-ops.
func (r *Room) RecordDecision(stage, userID, decision string, now time.Time) VoteOutcome {
	ballot, ok := r.ballots[stage]
	if !ok {
		ballot = make(map[string]string)
		r.ballots[stage] = ballot
	}
	ballot[userID] = decision

	for _, p := range r.participants {
		if _, voted := ballot[p]; !voted {
			return VotePending
		}
	}

	if r.Extended {
		return VoteNoop
	}
	for _, p := range r.participants {
		if ballot[p] != protocol.DecisionExtend {
			return VoteDeclined
		}
	}

	r.Extended = true
	r.ExpiresAt = now.Add(ExtensionGrant)
	return VoteExtended
}

// Decision returns userID's recorded vote for a stage, if any.
func (r *Room) Decision(stage, userID string) (string, bool) {
	d, ok := r.ballots[stage][userID]
	return d, ok
}

// StartRejoin opens the grace window unless one is already running.
// Re-disconnection of the same side does not restart the clock.
func (r *Room) StartRejoin(now time.Time) {
	if r.rejoinStart.IsZero() {
		r.rejoinStart = now
	}
}

// ClearRejoin cancels the grace window.
func (r *Room) ClearRejoin() {
	r.rejoinStart = time.Time{}
}

// RejoinStartedAt returns the start of the grace window, zero if none.
func (r *Room) RejoinStartedAt() time.Time {
	return r.rejoinStart
}

// RejoinDeadline returns the effective rejoin deadline. It never exceeds
// the room's own expiry. The zero time means no window is running.
func (r *Room) RejoinDeadline() time.Time {
	if r.rejoinStart.IsZero() {
		return time.Time{}
	}
	deadline := r.rejoinStart.Add(RejoinWindow)
	if deadline.After(r.ExpiresAt) {
		return r.ExpiresAt
	}
	return deadline
}

// RebindIdentity replaces oldID with newID in the participant set, re-keys
// the session token and any recorded votes to the new identity, and keeps
// the token value itself unchanged. It is called only from the reconnect
// transition.
func (r *Room) RebindIdentity(oldID, newID string) error {
	if !r.IsParticipant(oldID) {
		return fmt.Errorf("room: %s holds no seat in %s", oldID, r.ID)
	}
	if r.IsParticipant(newID) {
		return fmt.Errorf("room: %s already holds a seat in %s", newID, r.ID)
	}
	for i, p := range r.participants {
		if p == oldID {
			r.participants[i] = newID
		}
	}
	r.tokens[newID] = r.tokens[oldID]
	delete(r.tokens, oldID)
	for _, ballot := range r.ballots {
		if d, ok := ballot[oldID]; ok {
			ballot[newID] = d
			delete(ballot, oldID)
		}
	}
	return nil
}

// View projects the room for one recipient, exposing only that recipient's
// session token.
func (r *Room) View(userID string) protocol.RoomView {
	v := protocol.RoomView{
		ID:            r.ID,
		Participants:  r.Participants(),
		ReconnectCode: r.ReconnectCode,
		CreatedAt:     r.CreatedAt.UnixMilli(),
		ExpiresAt:     r.ExpiresAt.UnixMilli(),
		Extended:      r.Extended,
	}
	if tok, ok := r.tokens[userID]; ok {
		v.SessionToken = tok
	}
	if !r.rejoinStart.IsZero() {
		v.RejoinStartedAt = r.rejoinStart.UnixMilli()
	}
	return v
}
