package models

import "time"

// Conversation is an unordered-pair messaging thread between two users.
// Sender and receiver record who opened the thread; lookups treat the pair
// as symmetric.
type Conversation struct {
	ID         string    `db:"id" json:"id"`
	SenderID   string    `db:"sender_id" json:"sender_id"`
	ReceiverID string    `db:"receiver_id" json:"receiver_id"`
	Subject    string    `db:"subject" json:"subject"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// OtherParty returns the counterpart of the given user in the conversation.
func (c *Conversation) OtherParty(userID string) string {
	if c.SenderID == userID {
		return c.ReceiverID
	}
	return c.SenderID
}

// Message belongs to exactly one conversation.
type Message struct {
	ID             string    `db:"id" json:"id"`
	ConversationID string    `db:"conversation_id" json:"conversation_id"`
	SenderID       string    `db:"sender_id" json:"sender_id"`
	Content        string    `db:"content" json:"content"`
	SentAt         time.Time `db:"sent_at" json:"sent_at"`
	Read           bool      `db:"read" json:"read"`
}

// SendMessageRequest posts into a thread. Subject is required only when the
// thread does not exist yet.
type SendMessageRequest struct {
	Subject string `json:"subject" validate:"omitempty,max=100"`
	Content string `json:"content" validate:"required,max=511"`
}

// ConversationView is a thread with its messages in send order.
type ConversationView struct {
	Conversation Conversation `json:"conversation"`
	OtherUser    UserInfo     `json:"other_user"`
	Messages     []Message    `json:"messages"`
}

// InboxEntry summarises a conversation for the inbox listing.
type InboxEntry struct {
	Conversation  Conversation `json:"conversation"`
	OtherUser     UserInfo     `json:"other_user"`
	LastMessageAt time.Time    `json:"last_message_at"`
	UnreadCount   int          `json:"unread_count"`
}
