package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO conversations
			(id, participant_a, participant_b, job_id, initiator, status,
			 last_message_text, last_message_sender, last_message_at,
			 unread_a, unread_b, a_hidden, b_hidden, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9, $10, $11, $12, NOW())
		RETURNING last_message_at, created_at
	`, c.ID, c.ParticipantA, c.ParticipantB, c.JobID, c.Initiator, c.Status,
		c.LastMessageText, c.LastMessageSender,
		c.UnreadA, c.UnreadB, c.AHidden, c.BHidden,
	).Scan(&c.LastMessageAt, &c.CreatedAt)
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
		FROM conversations WHERE id = $1
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
		WHERE participant_a = $1 AND participant_b = $2
		  AND COALESCE(job_id::text, '') = $3
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
		  AND ((participant_a = $1 AND a_hidden = FALSE)
		    OR (participant_b = $1 AND b_hidden = FALSE))
		ORDER BY last_message_at DESC, id
	`, participantID)
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
			a_hidden = CASE WHEN participant_a = $1 THEN TRUE ELSE a_hidden END,
			b_hidden = CASE WHEN participant_b = $1 THEN TRUE ELSE b_hidden END
		WHERE id = $2
	`, participantID, conversationID)
	if err != nil {
		return fmt.Errorf("set hidden: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, conversationID, participantID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE conversations SET
			unread_a = CASE WHEN participant_a = $1 THEN 0 ELSE unread_a END,
			unread_b = CASE WHEN participant_b = $1 THEN 0 ELSE unread_b END
		WHERE id = $2
	`, participantID, conversationID)
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
