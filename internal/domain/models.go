package domain

import (
	"time"

	"github.com/google/uuid"
)

// Role of a marketplace participant.
type Role string

const (
	RoleTalent  Role = "talent"
	RoleCreator Role = "creator"
)

// Participant is the messaging view of a marketplace profile. The profile
// store owns the full record; the core only reads these three fields.
type Participant struct {
	ID             uuid.UUID `db:"id" json:"id"`
	Role           Role      `db:"role" json:"role"`
	OpenToMessages bool      `db:"open_to_messages" json:"open_to_messages"`
}

// ConversationStatus is the lifecycle state of a conversation. Only active
// conversations participate in resolution; closed ones are reached through
// external moderation and never reopened.
type ConversationStatus string

const (
	ConversationActive ConversationStatus = "active"
	ConversationClosed ConversationStatus = "closed"
)

// AttachmentKind values accepted on file-bearing messages.
const (
	AttachmentImage = "image"
	AttachmentFile  = "file"
)

// Conversation is the unique channel between two participants, optionally
// scoped to a job posting. ParticipantA always holds the lexicographically
// smaller id so the (pair, job) key is a single equality match; Initiator
// records who actually started the conversation.
type Conversation struct {
	ID                uuid.UUID          `db:"id" json:"id"`
	ParticipantA      uuid.UUID          `db:"participant_a" json:"participant_a"`
	ParticipantB      uuid.UUID          `db:"participant_b" json:"participant_b"`
	JobID             uuid.NullUUID      `db:"job_id" json:"job_id"`
	Initiator         uuid.UUID          `db:"initiator" json:"initiator"`
	Status            ConversationStatus `db:"status" json:"status"`
	LastMessageText   string             `db:"last_message_text" json:"last_message_text"`
	LastMessageSender uuid.NullUUID      `db:"last_message_sender" json:"last_message_sender"`
	LastMessageAt     time.Time          `db:"last_message_at" json:"last_message_at"`
	UnreadA           int                `db:"unread_a" json:"unread_a"`
	UnreadB           int                `db:"unread_b" json:"unread_b"`
	AHidden           bool               `db:"a_hidden" json:"a_hidden"`
	BHidden           bool               `db:"b_hidden" json:"b_hidden"`
	CreatedAt         time.Time          `db:"created_at" json:"created_at"`
}

// Includes reports whether id occupies one of the two participant slots.
func (c *Conversation) Includes(id uuid.UUID) bool {
	return c.ParticipantA == id || c.ParticipantB == id
}

// Other returns the participant opposite to id. The second return is false
// when id is not part of the conversation.
func (c *Conversation) Other(id uuid.UUID) (uuid.UUID, bool) {
	switch id {
	case c.ParticipantA:
		return c.ParticipantB, true
	case c.ParticipantB:
		return c.ParticipantA, true
	}
	return uuid.Nil, false
}

// UnreadFor returns the unread counter of the given participant.
func (c *Conversation) UnreadFor(id uuid.UUID) int {
	if id == c.ParticipantA {
		return c.UnreadA
	}
	return c.UnreadB
}

// HiddenFor reports whether the given participant has hidden the conversation.
func (c *Conversation) HiddenFor(id uuid.UUID) bool {
	if id == c.ParticipantA {
		return c.AHidden
	}
	return c.BHidden
}

// OrderPair returns the two ids in canonical (lexicographic) order, matching
// how conversations store their participant slots.
func OrderPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if x.String() > y.String() {
		return y, x
	}
	return x, y
}

// Message is an immutable record owned by exactly one conversation. Seq is
// the store-assigned insertion counter used to break created_at ties.
type Message struct {
	ID             uuid.UUID `db:"id" json:"id"`
	ConversationID uuid.UUID `db:"conversation_id" json:"conversation_id"`
	SenderID       uuid.UUID `db:"sender_id" json:"sender_id"`
	RecipientID    uuid.UUID `db:"recipient_id" json:"recipient_id"`
	Content        string    `db:"content" json:"content"`
	AttachmentURL  *string   `db:"attachment_url" json:"attachment_url,omitempty"`
	AttachmentKind *string   `db:"attachment_kind" json:"attachment_kind,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	Seq            int64     `db:"seq" json:"-"`
}
