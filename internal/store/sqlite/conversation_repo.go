package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"castlink/internal/domain"
)

const conversationColumns = `
	id, participant_a, participant_b, job_id, initiator, status,
	last_message_text, last_message_sender, last_message_at,
	unread_a, unread_b, a_hidden, b_hidden, created_at`

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

func (r *ConversationRepo) Create(ctx context.Context, c *domain.Conversation) error {
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.LastMessageAt.IsZero() {
		c.LastMessageAt = c.CreatedAt
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversations
			(id, participant_a, participant_b, job_id, initiator, status,
			 last_message_text, last_message_sender, last_message_at,
			 unread_a, unread_b, a_hidden, b_hidden, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, c.ID, c.ParticipantA, c.ParticipantB, c.JobID, c.Initiator, c.Status,
		c.LastMessageText, c.LastMessageSender, c.LastMessageAt,
		c.UnreadA, c.UnreadB, c.AHidden, c.BHidden, c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Conversation, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations WHERE id = ?
	`, id)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) FindActive(
	ctx context.Context,
	pairLow, pairHigh uuid.UUID,
	jobID uuid.NullUUID,
) (*domain.Conversation, error) {
	jobKey := ""
	if jobID.Valid {
		jobKey = jobID.UUID.String()
	}
	row := r.db.QueryRowContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE participant_a = ? AND participant_b = ?
		  AND COALESCE(job_id, '') = ?
		  AND status = 'active'
	`, pairLow, pairHigh, jobKey)
	c, err := scanConversation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find active conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListVisible(ctx context.Context, participantID uuid.UUID) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+conversationColumns+`
		FROM conversations
		WHERE status = 'active'
		  AND ((participant_a = ? AND a_hidden = 0)
		    OR (participant_b = ? AND b_hidden = 0))
		ORDER BY last_message_at DESC, id
	`, participantID, participantID)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) SetHidden(ctx context.Context, conversationID, participantID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			a_hidden = CASE WHEN participant_a = ? THEN 1 ELSE a_hidden END,
			b_hidden = CASE WHEN participant_b = ? THEN 1 ELSE b_hidden END
		WHERE id = ?
	`, participantID, participantID, conversationID)
	if err != nil {
		return fmt.Errorf("set hidden: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, participantID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			unread_a = CASE WHEN participant_a = ? THEN 0 ELSE unread_a END,
			unread_b = CASE WHEN participant_b = ? THEN 0 ELSE unread_b END
		WHERE id = ?
	`, participantID, participantID, conversationID)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := row.Scan(
		&c.ID, &c.ParticipantA, &c.ParticipantB, &c.JobID, &c.Initiator, &c.Status,
		&c.LastMessageText, &c.LastMessageSender, &c.LastMessageAt,
		&c.UnreadA, &c.UnreadB, &c.AHidden, &c.BHidden, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func isUniqueViolation(err error) bool {
	var serr *sqlite.Error
	if errors.As(err, &serr) {
		switch serr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	return false
}
