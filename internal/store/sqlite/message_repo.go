package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

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
// and recipient unread counter in one transaction, so the "summary reflects
// the latest message" invariant cannot be broken by a caller.
func (r *MessageRepo) Append(ctx context.Context, m *domain.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	m.CreatedAt = time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO messages
			(id, conversation_id, sender_id, recipient_id,
			 content, attachment_url, attachment_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.SenderID, m.RecipientID,
		m.Content, m.AttachmentURL, m.AttachmentKind, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.Seq = seq

	if _, err := tx.ExecContext(ctx, `
		UPDATE conversations SET
			last_message_text   = ?,
			last_message_sender = ?,
			last_message_at     = ?,
			unread_a = unread_a + (CASE WHEN participant_a = ? THEN 1 ELSE 0 END),
			unread_b = unread_b + (CASE WHEN participant_b = ? THEN 1 ELSE 0 END)
		WHERE id = ?
	`, m.Content, m.SenderID, m.CreatedAt,
		m.RecipientID, m.RecipientID, m.ConversationID); err != nil {
		return fmt.Errorf("update conversation summary: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *MessageRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Message, error) {
	m := &domain.Message{}
	err := r.db.QueryRowContext(ctx, `
		SELECT `+messageColumns+`
		FROM messages WHERE id = ?
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
		WHERE conversation_id = ?
		ORDER BY created_at DESC, seq DESC
		LIMIT ?
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
