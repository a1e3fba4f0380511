package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/repository"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type conversationRepository interface {
	FindBetween(ctx context.Context, userA, userB string) (*models.Conversation, error)
	Create(ctx context.Context, conv *models.Conversation) error
	CreateMessage(ctx context.Context, msg *models.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID, recipientID string) error
	ListInbox(ctx context.Context, userID string) ([]models.Conversation, []time.Time, []int, error)
}

type conversationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// ConversationService manages two-party threads and their messages.
type ConversationService struct {
	conversations conversationRepository
	users         conversationUserRepository
	cache         viewCache
	cacheTTL      time.Duration
	validator     *validator.Validate
	logger        *zap.Logger
}

// NewConversationService constructs a ConversationService instance. The cache
// may be nil when caching is disabled.
func NewConversationService(conversations conversationRepository, users conversationUserRepository, cache viewCache, cacheTTL time.Duration, validate *validator.Validate, logger *zap.Logger) *ConversationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ConversationService{
		conversations: conversations,
		users:         users,
		cache:         cache,
		cacheTTL:      cacheTTL,
		validator:     validate,
		logger:        logger,
	}
}

func inboxCacheKey(userID string) string {
	return "inbox:" + userID
}

// Send posts a message to the named user. The thread between the pair is
// created on first contact, at which point the subject is required; later
// messages join the existing thread and any provided subject is ignored.
func (s *ConversationService) Send(ctx context.Context, senderID, recipientUsername string, req models.SendMessageRequest) (*models.Message, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid message payload")
	}

	recipient, err := s.users.FindByUsername(ctx, recipientUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no user with that username exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recipient")
	}
	if recipient.ID == senderID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot message yourself")
	}

	conv, err := s.conversations.FindBetween(ctx, senderID, recipient.ID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up conversation")
		}
		subject := strings.TrimSpace(req.Subject)
		if subject == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a subject is required to start a conversation")
		}
		conv = &models.Conversation{SenderID: senderID, ReceiverID: recipient.ID, Subject: subject}
		if err := s.conversations.Create(ctx, conv); err != nil {
			if repository.IsUniqueViolation(err) {
				// Lost the race to open the thread; join the winner's.
				conv, err = s.conversations.FindBetween(ctx, senderID, recipient.ID)
				if err != nil {
					return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join conversation")
				}
			} else {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create conversation")
			}
		}
	}

	msg := &models.Message{
		ConversationID: conv.ID,
		SenderID:       senderID,
		Content:        req.Content,
	}
	if err := s.conversations.CreateMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}

	s.invalidateInbox(ctx, senderID)
	s.invalidateInbox(ctx, recipient.ID)
	return msg, nil
}

// Thread returns the caller's conversation with the named user and marks the
// messages addressed to the caller as read.
func (s *ConversationService) Thread(ctx context.Context, userID, otherUsername string) (*models.ConversationView, error) {
	other, err := s.users.FindByUsername(ctx, otherUsername)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no user with that username exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	conv, err := s.conversations.FindBetween(ctx, userID, other.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no conversation with this user yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to look up conversation")
	}
	if conv.SenderID != userID && conv.ReceiverID != userID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "this conversation does not involve you")
	}

	if err := s.conversations.MarkRead(ctx, conv.ID, userID); err != nil {
		s.logger.Warn("failed to mark messages read", zap.String("conversation_id", conv.ID), zap.Error(err))
	}

	messages, err := s.conversations.ListMessages(ctx, conv.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list messages")
	}

	s.invalidateInbox(ctx, userID)
	return &models.ConversationView{
		Conversation: *conv,
		OtherUser:    other.Info(),
		Messages:     messages,
	}, nil
}

// Inbox lists the caller's conversations, most recently active first, with
// unread counts. The payload is cached briefly.
func (s *ConversationService) Inbox(ctx context.Context, userID string) ([]models.InboxEntry, error) {
	key := inboxCacheKey(userID)
	if s.cache != nil {
		var cached []models.InboxEntry
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("inbox cache read failed", zap.Error(err))
		}
	}

	conversations, lastAt, unread, err := s.conversations.ListInbox(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inbox")
	}

	entries := make([]models.InboxEntry, 0, len(conversations))
	for i, conv := range conversations {
		otherID := conv.OtherParty(userID)
		other, err := s.users.FindByID(ctx, otherID)
		if err != nil {
			s.logger.Warn("inbox counterpart lookup failed", zap.String("user_id", otherID), zap.Error(err))
			continue
		}
		entries = append(entries, models.InboxEntry{
			Conversation:  conv,
			OtherUser:     other.Info(),
			LastMessageAt: lastAt[i],
			UnreadCount:   unread[i],
		})
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, entries, s.cacheTTL); err != nil {
			s.logger.Warn("inbox cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

func (s *ConversationService) invalidateInbox(ctx context.Context, userID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, inboxCacheKey(userID)); err != nil {
		s.logger.Warn("inbox cache invalidation failed", zap.String("user_id", userID), zap.Error(err))
	}
}
