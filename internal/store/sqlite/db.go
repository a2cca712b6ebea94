package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"castlink/internal/domain"
)

// Open opens a SQLite database with the given DSN. Pragmas go through the
// DSN so they apply to every pooled connection, not just the first one.
func Open(dsn string) (*sql.DB, error) {
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("%w: ping sqlite: %v", domain.ErrStoreUnavailable, err)
	}
	return db, nil
}

// Migrate runs idempotent DDL for the messaging schema. The profiles and
// job_applications tables are read-side mirrors of the external stores so a
// dev deployment is self-contained.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS profiles (
			id               TEXT PRIMARY KEY,
			role             TEXT NOT NULL CHECK (role IN ('talent', 'creator')),
			open_to_messages BOOLEAN NOT NULL DEFAULT 0
		);`,
		`CREATE TABLE IF NOT EXISTS job_applications (
			job_id       TEXT NOT NULL,
			applicant_id TEXT NOT NULL,
			applied_at   DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (job_id, applicant_id)
		);`,
		`CREATE TABLE IF NOT EXISTS conversations (
			id                  TEXT PRIMARY KEY,
			participant_a       TEXT NOT NULL,
			participant_b       TEXT NOT NULL,
			job_id              TEXT,
			initiator           TEXT NOT NULL,
			status              TEXT NOT NULL DEFAULT 'active',
			last_message_text   TEXT NOT NULL DEFAULT '',
			last_message_sender TEXT,
			last_message_at     DATETIME NOT NULL,
			unread_a            INTEGER NOT NULL DEFAULT 0,
			unread_b            INTEGER NOT NULL DEFAULT 0,
			a_hidden            BOOLEAN NOT NULL DEFAULT 0,
			b_hidden            BOOLEAN NOT NULL DEFAULT 0,
			created_at          DATETIME NOT NULL,
			CHECK (participant_a < participant_b)
		);`,
		// One active conversation per (pair, job) key; a missing job context
		// is its own bucket.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_conversations_pair_job
			ON conversations (participant_a, participant_b, COALESCE(job_id, ''))
			WHERE status = 'active';`,
		`CREATE TABLE IF NOT EXISTS messages (
			seq             INTEGER PRIMARY KEY AUTOINCREMENT,
			id              TEXT NOT NULL UNIQUE,
			conversation_id TEXT NOT NULL REFERENCES conversations(id),
			sender_id       TEXT NOT NULL,
			recipient_id    TEXT NOT NULL,
			content         TEXT NOT NULL DEFAULT '',
			attachment_url  TEXT,
			attachment_kind TEXT,
			created_at      DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_participant_a ON conversations(participant_a);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_participant_b ON conversations(participant_b);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_last_message_at ON conversations(last_message_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, created_at, seq);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
