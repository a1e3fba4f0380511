package service

import (
	"context"
	"database/sql"
	"sort"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type mockConversationRepo struct {
	conversations []*models.Conversation
	messages      []*models.Message
	markedRead    []string
}

func (m *mockConversationRepo) FindBetween(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	for _, c := range m.conversations {
		if (c.SenderID == userA && c.ReceiverID == userB) || (c.SenderID == userB && c.ReceiverID == userA) {
			return c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationRepo) Create(ctx context.Context, conv *models.Conversation) error {
	if conv.ID == "" {
		conv.ID = "conv-" + conv.SenderID + "-" + conv.ReceiverID
	}
	m.conversations = append(m.conversations, conv)
	return nil
}

func (m *mockConversationRepo) CreateMessage(ctx context.Context, msg *models.Message) error {
	if msg.ID == "" {
		msg.ID = "msg-" + msg.Content
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *mockConversationRepo) ListMessages(ctx context.Context, conversationID string) ([]models.Message, error) {
	var out []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID {
			out = append(out, *msg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SentAt.Before(out[j].SentAt) })
	return out, nil
}

func (m *mockConversationRepo) MarkRead(ctx context.Context, conversationID, recipientID string) error {
	m.markedRead = append(m.markedRead, conversationID)
	for _, msg := range m.messages {
		if msg.ConversationID == conversationID && msg.SenderID != recipientID {
			msg.Read = true
		}
	}
	return nil
}

func (m *mockConversationRepo) ListInbox(ctx context.Context, userID string) ([]models.Conversation, []time.Time, []int, error) {
	type agg struct {
		conv   *models.Conversation
		lastAt time.Time
		unread int
	}
	var rows []agg
	for _, c := range m.conversations {
		if c.SenderID != userID && c.ReceiverID != userID {
			continue
		}
		entry := agg{conv: c}
		for _, msg := range m.messages {
			if msg.ConversationID != c.ID {
				continue
			}
			if msg.SentAt.After(entry.lastAt) {
				entry.lastAt = msg.SentAt
			}
			if msg.SenderID != userID && !msg.Read {
				entry.unread++
			}
		}
		rows = append(rows, entry)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].lastAt.After(rows[j].lastAt) })
	convs := make([]models.Conversation, len(rows))
	lastAt := make([]time.Time, len(rows))
	unread := make([]int, len(rows))
	for i, row := range rows {
		convs[i] = *row.conv
		lastAt[i] = row.lastAt
		unread[i] = row.unread
	}
	return convs, lastAt, unread, nil
}

type mockConversationUsers struct {
	users map[string]*models.User
}

func (m *mockConversationUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockConversationUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	user, ok := m.users[username]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return user, nil
}

func newConversationFixture() (*ConversationService, *mockConversationRepo) {
	repo := &mockConversationRepo{}
	users := &mockConversationUsers{users: map[string]*models.User{
		"alice": {ID: "alice", Username: "alice", FullName: "Alice Adams"},
		"bob":   {ID: "bob", Username: "bob", FullName: "Bob Brown"},
		"carol": {ID: "carol", Username: "carol", FullName: "Carol Clark"},
	}}
	svc := NewConversationService(repo, users, nil, 0, validator.New(), zap.NewNop())
	return svc, repo
}

func TestConversationServiceFirstMessageRequiresSubject(t *testing.T) {
	svc, repo := newConversationFixture()

	_, err := svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.conversations)

	msg, err := svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Subject: "Meeting", Content: "hi"})
	require.NoError(t, err)
	require.Len(t, repo.conversations, 1)
	assert.Equal(t, repo.conversations[0].ID, msg.ConversationID)
}

func TestConversationServiceReplyJoinsExistingThread(t *testing.T) {
	svc, repo := newConversationFixture()

	first, err := svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Subject: "Meeting", Content: "hi"})
	require.NoError(t, err)

	// Reply from the other side, without a subject, lands in the same thread.
	reply, err := svc.Send(context.Background(), "bob", "alice", models.SendMessageRequest{Content: "hello back"})
	require.NoError(t, err)
	assert.Equal(t, first.ConversationID, reply.ConversationID)
	assert.Len(t, repo.conversations, 1)
}

func TestConversationServiceSubjectIgnoredOnExistingThread(t *testing.T) {
	svc, repo := newConversationFixture()

	_, err := svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Subject: "Original", Content: "hi"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "bob", "alice", models.SendMessageRequest{Subject: "Override attempt", Content: "reply"})
	require.NoError(t, err)
	assert.Equal(t, "Original", repo.conversations[0].Subject)
}

func TestConversationServiceSendToSelf(t *testing.T) {
	svc, _ := newConversationFixture()

	_, err := svc.Send(context.Background(), "alice", "alice", models.SendMessageRequest{Subject: "Hi me", Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConversationServiceSendToUnknownUser(t *testing.T) {
	svc, _ := newConversationFixture()

	_, err := svc.Send(context.Background(), "alice", "ghost", models.SendMessageRequest{Subject: "Hello", Content: "hi"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConversationServiceThreadMarksRead(t *testing.T) {
	svc, repo := newConversationFixture()

	_, err := svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Subject: "Meeting", Content: "first"})
	require.NoError(t, err)
	_, err = svc.Send(context.Background(), "alice", "bob", models.SendMessageRequest{Content: "second"})
	require.NoError(t, err)

	view, err := svc.Thread(context.Background(), "bob", "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", view.OtherUser.ID)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, "first", view.Messages[0].Content)
	assert.NotEmpty(t, repo.markedRead)
	for _, msg := range repo.messages {
		assert.True(t, msg.Read)
	}
}

func TestConversationServiceThreadMissing(t *testing.T) {
	svc, _ := newConversationFixture()

	_, err := svc.Thread(context.Background(), "alice", "bob")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConversationServiceInboxOrderAndUnread(t *testing.T) {
	svc, repo := newConversationFixture()

	_, err := svc.Send(context.Background(), "bob", "alice", models.SendMessageRequest{Subject: "Old", Content: "old news"})
	require.NoError(t, err)
	repo.messages[0].SentAt = time.Now().UTC().Add(-time.Hour)

	_, err = svc.Send(context.Background(), "carol", "alice", models.SendMessageRequest{Subject: "Fresh", Content: "just now"})
	require.NoError(t, err)

	entries, err := svc.Inbox(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "carol", entries[0].OtherUser.ID)
	assert.Equal(t, "bob", entries[1].OtherUser.ID)
	assert.Equal(t, 1, entries[0].UnreadCount)
	assert.Equal(t, 1, entries[1].UnreadCount)
	assert.True(t, entries[0].LastMessageAt.After(entries[1].LastMessageAt))
}
