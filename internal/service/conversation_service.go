package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

// ConversationService resolves (participant pair, job context) keys to their
// single active conversation and owns per-participant hide and view-reset.
type ConversationService struct {
	conversations domain.ConversationRepository
}

func NewConversationService(conversations domain.ConversationRepository) *ConversationService {
	return &ConversationService{conversations: conversations}
}

// FindOrCreate returns the active conversation for the unordered pair
// (initiatorID, otherID) scoped to jobID, creating it when absent. The bool
// result reports whether a new conversation was created.
//
// Two concurrent calls for the same key cannot both create a row: the store's
// uniqueness constraint rejects the second insert, and the loser re-fetches
// the winner's row instead of surfacing the conflict.
func (s *ConversationService) FindOrCreate(
	ctx context.Context,
	initiatorID, otherID uuid.UUID,
	jobID uuid.NullUUID,
) (*domain.Conversation, bool, error) {
	if initiatorID == uuid.Nil || otherID == uuid.Nil {
		return nil, false, fmt.Errorf("%w: participant id is required", domain.ErrInvalidInput)
	}
	if initiatorID == otherID {
		return nil, false, fmt.Errorf("%w: participants must be distinct", domain.ErrInvalidInput)
	}

	low, high := domain.OrderPair(initiatorID, otherID)

	conv, err := s.conversations.FindActive(ctx, low, high, jobID)
	if err != nil {
		return nil, false, fmt.Errorf("find conversation: %w", err)
	}
	if conv != nil {
		return conv, false, nil
	}

	now := time.Now().UTC()
	conv = &domain.Conversation{
		ID:            uuid.New(),
		ParticipantA:  low,
		ParticipantB:  high,
		JobID:         jobID,
		Initiator:     initiatorID,
		Status:        domain.ConversationActive,
		LastMessageAt: now,
		CreatedAt:     now,
	}
	err = s.conversations.Create(ctx, conv)
	if errors.Is(err, domain.ErrConflict) {
		// Lost the race; the winner's row is the canonical one.
		existing, ferr := s.conversations.FindActive(ctx, low, high, jobID)
		if ferr != nil {
			return nil, false, fmt.Errorf("refetch after conflict: %w", ferr)
		}
		if existing == nil {
			return nil, false, fmt.Errorf("create conversation: %w", err)
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("create conversation: %w", err)
	}
	return conv, true, nil
}

// Get returns a conversation after verifying the requester is one of its
// participants.
func (s *ConversationService) Get(
	ctx context.Context,
	conversationID, requesterID uuid.UUID,
) (*domain.Conversation, error) {
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
	return conv, nil
}

// Hide removes the conversation from the requester's inbox without touching
// the other participant's view or the message history. Hiding an
// already-hidden conversation is a no-op success.
func (s *ConversationService) Hide(ctx context.Context, conversationID, requesterID uuid.UUID) error {
	if _, err := s.Get(ctx, conversationID, requesterID); err != nil {
		return err
	}
	if err := s.conversations.SetHidden(ctx, conversationID, requesterID); err != nil {
		return fmt.Errorf("hide conversation: %w", err)
	}
	return nil
}

// MarkViewed resets the requester's unread counter. The surrounding
// application decides what counts as a view.
func (s *ConversationService) MarkViewed(ctx context.Context, conversationID, requesterID uuid.UUID) error {
	if _, err := s.Get(ctx, conversationID, requesterID); err != nil {
		return err
	}
	if err := s.conversations.ResetUnread(ctx, conversationID, requesterID); err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

// ListVisible returns the requester's inbox: active conversations they have
// not hidden, most recently active first.
func (s *ConversationService) ListVisible(ctx context.Context, participantID uuid.UUID) ([]*domain.Conversation, error) {
	return s.conversations.ListVisible(ctx, participantID)
}
