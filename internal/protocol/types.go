package protocol

// RoomCommunity is the reserved room id of the single shared community room.
const RoomCommunity = "community"

// User is an ephemeral identity. It exists only while its connection is
// alive (or while a private room still holds a seat for it).
type User struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	LastActive        int64  `json:"lastActive"`
	AcceptingRequests bool   `json:"acceptingRequests"`
	IsDeciding        bool   `json:"isDeciding,omitempty"`
}

// ReplyRef is an optional quoted reference to an earlier message.
type ReplyRef struct {
	Text       string `json:"text"`
	SenderName string `json:"senderName"`
}

// Message is a single chat message. Immutable once admitted.
type Message struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Text       string    `json:"text"`
	Timestamp  int64     `json:"timestamp"` // unix milliseconds
	RoomID     string    `json:"roomId"`
	ReplyTo    *ReplyRef `json:"replyTo,omitempty"`
}

// ChatRequest is a transient invitation to open a private room. It lives
// only between send and accept/ignore/timeout.
type ChatRequest struct {
	ID        string `json:"id"`
	FromID    string `json:"fromId"`
	FromName  string `json:"fromName"`
	ToID      string `json:"toId"`
	Timestamp int64  `json:"timestamp"`
}

// RoomView is the per-recipient projection of a private room. SessionToken
// is the recipient's own token; the partner's token is never included.
type RoomView struct {
	ID              string   `json:"id"`
	Participants    []string `json:"participants"`
	ReconnectCode   string   `json:"reconnectCode"`
	SessionToken    string   `json:"sessionToken"`
	CreatedAt       int64    `json:"createdAt"`
	ExpiresAt       int64    `json:"expiresAt"`
	Extended        bool     `json:"extended"`
	RejoinStartedAt int64    `json:"rejoinStartedAt,omitempty"`
}

// QuietMoment is the half-open window [Start, End) during which new
// community messages are suppressed.
type QuietMoment struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Extension vote stages and decisions.
const (
	StageFiveMin = "5min"
	StageTwoMin  = "2min"

	DecisionExtend = "EXTEND"
	DecisionLater  = "LATER"
)

// ValidStage reports whether s names one of the two voting stages.
func ValidStage(s string) bool {
	return s == StageFiveMin || s == StageTwoMin
}

// ValidDecision reports whether d is a recognised extension decision.
func ValidDecision(d string) bool {
	return d == DecisionExtend || d == DecisionLater
}

// Room close reasons carried on CHAT_CLOSED.
const (
	CloseExpired      = "expired"
	CloseRejoinExpire = "rejoin_expired"
	CloseExit         = "exit"
	CloseModeration   = "moderation"
	CloseSiteReset    = "site_reset"
)
