package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

const messageColumns = `
	seq, id, conversation_id, sender_id, recipient_id,
	content, attachment_url, attachment_kind, created_at`

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

// Append inserts the message and rewrites the owning conversation's summary
// and recipient unread counter in one transaction.
func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, sender_id, recipient_id,
			 content, attachment_url, attachment_kind, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		RETURNING seq, created_at
	`, m.ID, m.ConversationID, m.SenderID, m.RecipientID,
		m.Content, m.AttachmentURL, m.AttachmentKind,
	).Scan(&m.Seq, &m.CreatedAt); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_text   = $1,
			last_message_sender = $2,
			last_message_at     = $3,
			unread_a = unread_a + (CASE WHEN participant_a = $4 THEN 1 ELSE 0 END),
			unread_b = unread_b + (CASE WHEN participant_b = $4 THEN 1 ELSE 0 END)
		WHERE id = $5
	`, m.Content, m.SenderID, m.CreatedAt, m.RecipientID, m.ConversationID); err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}

	return tx.Commit()
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE id = $1
	`, id).Scan(
		&m.Seq, &m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID,
		&m.Content, &m.AttachmentURL, &m.AttachmentKind, &m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message: %w", err)
	}
	return m, nil
}

func (r *MessageRepo) ListForConversation(ctx context.Context, conversationID uuid.UUID, limit int) ([]*domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, seq DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var res []*domain.Message
	for rows.Next() {
		m := &domain.Message{}
		if err := rows.Scan(
			&m.Seq, &m.ID, &m.ConversationID, &m.SenderID, &m.RecipientID,
			&m.Content, &m.AttachmentURL, &m.AttachmentKind, &m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
