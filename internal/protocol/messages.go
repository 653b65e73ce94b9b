// Package protocol defines the WebSocket message types and structures used for
// communication between the client and server. All messages are serialized as
// JSON and follow a consistent envelope format with a type discriminator.
package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Message type constants
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeHeartbeat         = "HEARTBEAT"
	TypeMessage           = "MESSAGE"
	TypeChatRequest       = "CHAT_REQUEST"
	TypeChatAccept        = "CHAT_ACCEPT"
	TypeChatExit          = "CHAT_EXIT"
	TypeExtensionDecision = "CHAT_EXTENSION_DECISION"
	TypeChatRejoin        = "CHAT_REJOIN"
	TypePing              = "PING"
)

// Server -> Client message types. HEARTBEAT, MESSAGE, CHAT_REQUEST and
// CHAT_ACCEPT are reused in both directions with server-side payloads.
const (
	TypeInitState      = "INIT_STATE"
	TypeChatClosed     = "CHAT_CLOSED"
	TypeChatExtended   = "CHAT_EXTENDED"
	TypeResetCommunity = "RESET_COMMUNITY"
	TypeResetSite      = "RESET_SITE"
	TypeError          = "ERROR"
	TypePong           = "PONG"
)

// ---------------------------------------------------------------------------
// Envelope — used for initial JSON parsing to extract the type discriminator.
// ---------------------------------------------------------------------------

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements the json.Unmarshaler interface. It captures the
// full raw bytes and extracts only the "type" field so that the rest of the
// payload can be decoded later into the appropriate concrete struct.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	// Capture the full raw message for deferred parsing.
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	// Extract only the type field.
	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// ---------------------------------------------------------------------------
// Client -> Server message structs
// ---------------------------------------------------------------------------

// HeartbeatMsg announces the client's ephemeral identity and keeps its
// presence entry fresh.
type HeartbeatMsg struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

// ChatMsg carries a message authored by the client, addressed to the
// community room or to the private room the sender occupies.
type ChatMsg struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// ChatRequestMsg asks the server to deliver a private-chat invitation to
// another online user.
type ChatRequestMsg struct {
	Type    string      `json:"type"`
	Request ChatRequest `json:"request"`
}

// ChatAcceptMsg accepts a pending chat request. The server generates the
// room, its reconnect code and both session tokens.
type ChatAcceptMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"requestId"`
}

// ChatExitMsg closes the client's private room immediately.
type ChatExitMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
}

// ExtensionDecisionMsg records one participant's vote in a stage of the
// extension ballot.
type ExtensionDecisionMsg struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	Stage    string `json:"stage"`    // "5min" | "2min"
	Decision string `json:"decision"` // "EXTEND" | "LATER"
	UserID   string `json:"userId"`
}

// ChatRejoinMsg reclaims a private-room seat after a connection reset.
type ChatRejoinMsg struct {
	Type          string `json:"type"`
	ReconnectCode string `json:"reconnectCode"`
	SessionToken  string `json:"sessionToken"`
}

// PingMsg is a client-initiated keepalive ping.
type PingMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Server -> Client message structs
// ---------------------------------------------------------------------------

// InitStateMsg is the first message a new connection receives: the current
// community view and the shared clocks.
type InitStateMsg struct {
	Type              string      `json:"type"`
	CommunityMessages []Message   `json:"communityMessages"`
	CommunityTimerEnd int64       `json:"communityTimerEnd"`
	SiteTimerEnd      int64       `json:"siteTimerEnd"`
	Topic             string      `json:"topic"`
	QuietMoment       QuietMoment `json:"quietMoment"`
	OnlineUsers       []User      `json:"onlineUsers"`
}

// ServerHeartbeatMsg relays another user's presence along with the shared
// timer deadlines.
type ServerHeartbeatMsg struct {
	Type              string `json:"type"`
	User              User   `json:"user"`
	CommunityTimerEnd int64  `json:"communityTimerEnd"`
	SiteTimerEnd      int64  `json:"siteTimerEnd"`
}

// ServerChatMsg delivers an admitted message to a connection.
type ServerChatMsg struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
}

// ServerChatRequestMsg delivers a chat invitation to its target.
type ServerChatRequestMsg struct {
	Type    string      `json:"type"`
	Request ChatRequest `json:"request"`
}

// ChatAcceptedMsg delivers a private room to one of its participants,
// together with the room's message history. The embedded RoomView carries
// only the recipient's own session token.
type ChatAcceptedMsg struct {
	Type     string    `json:"type"`
	Room     RoomView  `json:"room"`
	Messages []Message `json:"messages"`
}

// ChatClosedMsg announces that a private room no longer exists.
type ChatClosedMsg struct {
	Type   string `json:"type"`
	RoomID string `json:"roomId"`
	Reason string `json:"reason"`
}

// ChatExtendedMsg announces the one-time extension grant to both
// participants.
type ChatExtendedMsg struct {
	Type string   `json:"type"`
	Room RoomView `json:"room"`
}

// ResetCommunityMsg announces a community reset with the next deadline,
// the fresh topic and the new quiet-moment window.
type ResetCommunityMsg struct {
	Type        string      `json:"type"`
	NextReset   int64       `json:"nextReset"`
	Topic       string      `json:"topic"`
	QuietMoment QuietMoment `json:"quietMoment"`
}

// ResetSiteMsg announces a full site wipe.
type ResetSiteMsg struct {
	Type      string `json:"type"`
	NextReset int64  `json:"nextReset"`
}

// ErrorMsg is sent by the server to communicate an error condition. The
// message text is deliberately opaque for authorization failures.
type ErrorMsg struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// PongMsg is the server's response to a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ---------------------------------------------------------------------------
// Helper functions
// ---------------------------------------------------------------------------

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type string, the decoded struct, and any error
// encountered during parsing. An error is returned for unknown or
// server-only message types.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeHeartbeat:
		var m HeartbeatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeMessage:
		var m ChatMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatRequest:
		var m ChatRequestMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatAccept:
		var m ChatAcceptMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatExit:
		var m ChatExitMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeExtensionDecision:
		var m ExtensionDecisionMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypeChatRejoin:
		var m ChatRejoinMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage creates a JSON-encoded byte slice for a server message.
// The msgType is injected into the payload under the "type" key. The payload
// should be one of the server message structs; this function marshals it to
// JSON, injects the type field, and returns the final bytes.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	// Marshal the payload struct to a generic map so we can ensure the "type"
	// field is present and correct.
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
