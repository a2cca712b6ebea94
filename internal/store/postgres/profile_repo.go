package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

// ProfileRepo reads the local mirror of the external profile store.
type ProfileRepo struct {
	db *sql.DB
}

func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{db: db}
}

var _ domain.ProfileRepository = (*ProfileRepo)(nil)

func (r *ProfileRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Participant, error) {
	p := &domain.Participant{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, role, open_to_messages FROM profiles WHERE id = $1
	`, id).Scan(&p.ID, &p.Role, &p.OpenToMessages)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

func (r *ProfileRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.Participant, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	// pgx/stdlib passes []uuid.UUID as $1::uuid[].
	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, role, open_to_messages FROM profiles WHERE id = ANY($1::uuid[])
	`, strIDs)
	if err != nil {
		return nil, fmt.Errorf("get profiles: %w", err)
	}
	defer rows.Close()

	var res []*domain.Participant
	for rows.Next() {
		p := &domain.Participant{}
		if err := rows.Scan(&p.ID, &p.Role, &p.OpenToMessages); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

// Upsert writes a profile into the mirror. Called by the host application's
// sync path; the messaging core itself only reads.
func (r *ProfileRepo) Upsert(ctx context.Context, p *domain.Participant) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO profiles (id, role, open_to_messages)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			role = EXCLUDED.role,
			open_to_messages = EXCLUDED.open_to_messages
	`, p.ID, p.Role, p.OpenToMessages)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
