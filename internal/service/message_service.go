package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

// MaxContentLen caps message bodies, in runes.
const MaxContentLen = 5000

// MessageService appends messages and keeps the owning conversation's
// denormalized summary consistent. It does not re-check initiation
// permissions: any participant already in a conversation may message freely.
type MessageService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository

	// DefaultPageSize bounds ListMessages when the caller passes no limit.
	DefaultPageSize int
}

func NewMessageService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	defaultPageSize int,
) *MessageService {
	return &MessageService{
		conversations:   conversations,
		messages:        messages,
		DefaultPageSize: defaultPageSize,
	}
}

type AppendInput struct {
	ConversationID uuid.UUID
	Content        string
	AttachmentURL  *string
	AttachmentKind *string
}

// Append persists a message from senderID. The recipient is the other
// participant; their unread counter and the conversation's last-message
// summary are updated in the same transaction as the insert.
func (s *MessageService) Append(
	ctx context.Context,
	in AppendInput,
	senderID uuid.UUID,
) (*domain.Message, error) {
	if len([]rune(in.Content)) > MaxContentLen {
		return nil, fmt.Errorf("%w: message content exceeds %d characters", domain.ErrInvalidInput, MaxContentLen)
	}
	hasAttachment := in.AttachmentURL != nil && *in.AttachmentURL != ""
	if in.Content == "" && !hasAttachment {
		return nil, fmt.Errorf("%w: message needs content or an attachment", domain.ErrInvalidInput)
	}
	if hasAttachment && in.AttachmentKind != nil &&
		*in.AttachmentKind != domain.AttachmentImage && *in.AttachmentKind != domain.AttachmentFile {
		return nil, fmt.Errorf("%w: unknown attachment kind %q", domain.ErrInvalidInput, *in.AttachmentKind)
	}

	conv, err := s.conversations.GetByID(ctx, in.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	recipient, ok := conv.Other(senderID)
	if !ok {
		return nil, domain.ErrUnauthorized
	}

	msg := &domain.Message{
		ID:             uuid.New(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		RecipientID:    recipient,
		Content:        in.Content,
	}
	if hasAttachment {
		msg.AttachmentURL = in.AttachmentURL
		msg.AttachmentKind = in.AttachmentKind
	}

	if err := s.messages.Append(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	return msg, nil
}

// ListMessages returns up to limit messages of a conversation in
// chronological order, after verifying membership.
func (s *MessageService) ListMessages(
	ctx context.Context,
	conversationID, requesterID uuid.UUID,
	limit int,
) ([]*domain.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.ErrNotFound
	}
	if !conv.Includes(requesterID) {
		return nil, domain.ErrUnauthorized
	}

	if limit <= 0 || limit > s.DefaultPageSize {
		limit = s.DefaultPageSize
	}

	msgs, err := s.messages.ListForConversation(ctx, conversationID, limit)
	if err != nil {
		return nil, err
	}

	// Reverse to chronological order (store returns newest first).
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}
