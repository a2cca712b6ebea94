package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

// ApplicationRepo reads the local mirror of the job-application store.
type ApplicationRepo struct {
	db *sql.DB
}

func NewApplicationRepo(db *sql.DB) *ApplicationRepo {
	return &ApplicationRepo{db: db}
}

var _ domain.ApplicationRepository = (*ApplicationRepo)(nil)

func (r *ApplicationRepo) Exists(ctx context.Context, jobID, applicantID uuid.UUID) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `
		SELECT 1 FROM job_applications WHERE job_id = $1 AND applicant_id = $2
	`, jobID, applicantID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check application: %w", err)
	}
	return true, nil
}

// Record mirrors an application from the host application's sync path.
func (r *ApplicationRepo) Record(ctx context.Context, jobID, applicantID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO job_applications (job_id, applicant_id)
		VALUES ($1, $2)
		ON CONFLICT (job_id, applicant_id) DO NOTHING
	`, jobID, applicantID)
	if err != nil {
		return fmt.Errorf("record application: %w", err)
	}
	return nil
}
