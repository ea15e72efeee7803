package model

import "time"

// Conversation pairs two users.  The pair is stored in canonical order
// (UserLow < UserHigh) so that looking it up is symmetric.
type Conversation struct {
    ID        uint64    `json:"id"`         // conversations.id
    UserLow   uint64    `json:"user_low"`   // conversations.user_low
    UserHigh  uint64    `json:"user_high"`  // conversations.user_high
    CreatedAt time.Time `json:"created_at"` // conversations.created_at
}

// ConversationPair orders two user ids canonically.
func ConversationPair(a, b uint64) (low, high uint64) {
    if a < b {
        return a, b
    }
    return b, a
}

// Has reports whether userID participates in the conversation.
func (c Conversation) Has(userID uint64) bool {
    return c.UserLow == userID || c.UserHigh == userID
}

// Companion returns the other participant for userID.
func (c Conversation) Companion(userID uint64) uint64 {
    if c.UserLow == userID {
        return c.UserHigh
    }
    return c.UserLow
}

// Message is an append-only entry in a conversation.
type Message struct {
    ID             uint64    `json:"id"`              // messages.id
    ConversationID uint64    `json:"conversation_id"` // messages.conversation_id
    SenderID       uint64    `json:"sender_id"`       // messages.sender_id
    ReceiverID     uint64    `json:"receiver_id"`     // messages.receiver_id
    Body           string    `json:"message"`         // messages.body
    CreatedAt      time.Time `json:"created_at"`      // messages.created_at
}

// ConversationView is a conversation as seen by one participant.
type ConversationView struct {
    ID        uint64      `json:"id"`
    Companion UserSummary `json:"companion"`
}
