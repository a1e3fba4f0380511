package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/orghub-api/internal/models"
)

// ConversationRepository provides database access for conversations and
// messages.
type ConversationRepository struct {
	db *sqlx.DB
}

// NewConversationRepository creates a new instance of ConversationRepository.
func NewConversationRepository(db *sqlx.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

// FindBetween returns the conversation between two users regardless of which
// of them opened it.
func (r *ConversationRepository) FindBetween(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	const query = `SELECT id, sender_id, receiver_id, subject, created_at FROM conversations
		WHERE (sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1)
		LIMIT 1`
	var conv models.Conversation
	if err := r.db.GetContext(ctx, &conv, query, userA, userB); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find conversation between users: %w", err)
	}
	return &conv, nil
}

// Create inserts a conversation. The symmetric-pair unique index backstops
// concurrent first messages between the same two users.
func (r *ConversationRepository) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = uuid.NewString()
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO conversations (id, sender_id, receiver_id, subject, created_at) VALUES (:id, :sender_id, :receiver_id, :subject, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, conv); err != nil {
		return fmt.Errorf("create conversation: %w", err)
	}
	return nil
}

// CreateMessage inserts a message into a conversation.
func (r *ConversationRepository) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	const query = `INSERT INTO messages (id, conversation_id, sender_id, content, sent_at, read) VALUES (:id, :conversation_id, :sender_id, :content, :sent_at, :read)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

// ListMessages returns the messages of a conversation in send order.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	const query = `SELECT id, conversation_id, sender_id, content, sent_at, read FROM messages WHERE conversation_id = $1 ORDER BY sent_at ASC`
	var messages []models.Message
	if err := r.db.SelectContext(ctx, &messages, query, conversationID); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags every message in the conversation that was sent to the
// given user as read.
func (r *ConversationRepository) MarkRead(ctx context.Context, conversationID, recipientID string) error {
	const query = `UPDATE messages SET read = TRUE WHERE conversation_id = $1 AND sender_id <> $2 AND read = FALSE`
	if _, err := r.db.ExecContext(ctx, query, conversationID, recipientID); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}

// inboxRow is the scan target for the aggregated inbox query.
type inboxRow struct {
	models.Conversation
	LastMessageAt time.Time `db:"last_message_at"`
	UnreadCount   int       `db:"unread_count"`
}

// ListInbox returns the user's conversations ordered by most recent message,
// newest first, with per-conversation unread counts.
func (r *ConversationRepository) ListInbox(ctx context.Context, userID string) ([]models.Conversation, []time.Time, []int, error) {
	const query = `SELECT c.id, c.sender_id, c.receiver_id, c.subject, c.created_at,
			MAX(m.sent_at) AS last_message_at,
			COUNT(*) FILTER (WHERE m.sender_id <> $1 AND m.read = FALSE) AS unread_count
		FROM conversations c
		JOIN messages m ON m.conversation_id = c.id
		WHERE c.sender_id = $1 OR c.receiver_id = $1
		GROUP BY c.id, c.sender_id, c.receiver_id, c.subject, c.created_at
		ORDER BY last_message_at DESC`
	var rows []inboxRow
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, nil, nil, fmt.Errorf("list inbox: %w", err)
	}
	conversations := make([]models.Conversation, len(rows))
	lastAt := make([]time.Time, len(rows))
	unread := make([]int, len(rows))
	for i, row := range rows {
		conversations[i] = row.Conversation
		lastAt[i] = row.LastMessageAt
		unread[i] = row.UnreadCount
	}
	return conversations, lastAt, unread, nil
}
