package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"castlink/internal/domain"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: ping postgres: %v", domain.ErrStoreUnavailable, err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the messaging schema on
// PostgreSQL. The profiles and job_applications tables mirror the external
// profile and application stores.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id               UUID PRIMARY KEY,
			role             VARCHAR(16) NOT NULL CHECK (role IN ('talent', 'creator')),
			open_to_messages BOOLEAN     NOT NULL DEFAULT FALSE
		)`,

		`CREATE TABLE IF NOT EXISTS job_applications (
			job_id       UUID        NOT NULL,
			applicant_id UUID        NOT NULL,
			applied_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (job_id, applicant_id)
		)`,

		`CREATE TABLE IF NOT EXISTS conversations (
			id                  UUID         PRIMARY KEY,
			participant_a       UUID         NOT NULL,
			participant_b       UUID         NOT NULL,
			job_id              UUID,
			initiator           UUID         NOT NULL,
			status              VARCHAR(16)  NOT NULL DEFAULT 'active',
			last_message_text   TEXT         NOT NULL DEFAULT '',
			last_message_sender UUID,
			last_message_at     TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			unread_a            INTEGER      NOT NULL DEFAULT 0,
			unread_b            INTEGER      NOT NULL DEFAULT 0,
			a_hidden            BOOLEAN      NOT NULL DEFAULT FALSE,
			b_hidden            BOOLEAN      NOT NULL DEFAULT FALSE,
			created_at          TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			CHECK (participant_a < participant_b)
		)`,

		// One active conversation per (pair, job) key. COALESCE folds the
		// null job context into its own bucket; NULLs would otherwise never
		// collide and the constraint would not hold.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_conversations_pair_job
			ON conversations (participant_a, participant_b, COALESCE(job_id::text, ''))
			WHERE status = 'active'`,

		`CREATE TABLE IF NOT EXISTS messages (
			seq             BIGSERIAL    PRIMARY KEY,
			id              UUID         NOT NULL UNIQUE,
			conversation_id UUID         NOT NULL REFERENCES conversations(id),
			sender_id       UUID         NOT NULL,
			recipient_id    UUID         NOT NULL,
			content         TEXT         NOT NULL DEFAULT '',
			attachment_url  TEXT,
			attachment_kind VARCHAR(16),
			created_at      TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE INDEX IF NOT EXISTS idx_conversations_participant_a ON conversations(participant_a)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_participant_b ON conversations(participant_b)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_message_at ON conversations(last_message_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, seq)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
