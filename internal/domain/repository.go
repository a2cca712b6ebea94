package domain

import (
	"context"

	"github.com/google/uuid"
)

// ProfileRepository is the read side of the external profile store.
type ProfileRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Participant, error)
	// GetByIDs returns the participants that exist; missing ids are simply
	// absent from the result.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*Participant, error)
}

// ApplicationRepository is the read side of the external job-application store.
type ApplicationRepository interface {
	Exists(ctx context.Context, jobID, applicantID uuid.UUID) (bool, error)
}

// ConversationRepository defines persistence operations for conversations.
type ConversationRepository interface {
	// Create inserts a new conversation. Returns ErrConflict when an active
	// conversation for the same (pair, job) key already exists.
	Create(ctx context.Context, c *Conversation) error
	GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error)
	// FindActive looks up the single active conversation for a canonical
	// pair and job bucket. Returns (nil, nil) when there is none.
	FindActive(ctx context.Context, pairLow, pairHigh uuid.UUID, jobID uuid.NullUUID) (*Conversation, error)
	// ListVisible returns active conversations where participantID occupies
	// a slot and has not hidden the conversation, most recently active
	// first (ties broken by conversation id).
	ListVisible(ctx context.Context, participantID uuid.UUID) ([]*Conversation, error)
	// SetHidden flips the hidden flag of whichever slot participantID
	// occupies. A no-op when the flag is already set.
	SetHidden(ctx context.Context, conversationID, participantID uuid.UUID) error
	// ResetUnread zeroes the unread counter of whichever slot participantID
	// occupies.
	ResetUnread(ctx context.Context, conversationID, participantID uuid.UUID) error
}

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	// Append inserts the message and, in the same transaction, rewrites the
	// owning conversation's last-message summary and increments the
	// recipient's unread counter. The store assigns CreatedAt and Seq.
	Append(ctx context.Context, m *Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*Message, error)
	// ListForConversation returns up to limit most recent messages, newest
	// first, ordered by (created_at, seq).
	ListForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*Message, error)
}
