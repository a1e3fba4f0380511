package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/orghub-api/internal/models"
)

func TestFindBetweenIsSymmetric(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	now := time.Now()
	query := regexp.QuoteMeta("SELECT id, sender_id, receiver_id, subject, created_at FROM conversations")

	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "subject", "created_at"}).
		AddRow("c1", "alice", "bob", "hello", now)
	mock.ExpectQuery(query).WithArgs("bob", "alice").WillReturnRows(rows)

	// The lookup arguments are reversed relative to how the thread was
	// opened; the OR in the query still finds the row.
	conv, err := repo.FindBetween(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "c1", conv.ID)
	assert.Equal(t, "alice", conv.OtherParty("bob"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesAscending(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "conversation_id", "sender_id", "content", "sent_at", "read"}).
		AddRow("m1", "c1", "alice", "hi", now.Add(-time.Minute), true).
		AddRow("m2", "c1", "bob", "hey", now, false)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, conversation_id, sender_id, content, sent_at, read FROM messages WHERE conversation_id = $1 ORDER BY sent_at ASC")).
		WithArgs("c1").
		WillReturnRows(rows)

	messages, err := repo.ListMessages(context.Background(), "c1")
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.True(t, messages[0].SentAt.Before(messages[1].SentAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListInboxOrdering(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "sender_id", "receiver_id", "subject", "created_at", "last_message_at", "unread_count"}).
		AddRow("c2", "carol", "alice", "newer", now, now, 2).
		AddRow("c1", "alice", "bob", "older", now.Add(-time.Hour), now.Add(-time.Hour), 0)
	mock.ExpectQuery("SELECT c.id, c.sender_id, c.receiver_id, c.subject, c.created_at").
		WithArgs("alice").
		WillReturnRows(rows)

	conversations, lastAt, unread, err := repo.ListInbox(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, conversations, 2)
	assert.Equal(t, "c2", conversations[0].ID)
	assert.True(t, lastAt[0].After(lastAt[1]))
	assert.Equal(t, 2, unread[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMessageDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewConversationRepository(db)

	mock.ExpectExec("INSERT INTO messages").WillReturnResult(sqlmock.NewResult(1, 1))

	msg := &models.Message{ConversationID: "c1", SenderID: "alice", Content: "hi"}
	err := repo.CreateMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.SentAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}
