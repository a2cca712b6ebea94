package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"castlink/internal/domain"
)

// Gate denial reasons surfaced to the UI.
const (
	ReasonUserNotFound  = "user not found"
	ReasonNotAuthorized = "recipient is not accepting messages"
	ReasonSelfMessage   = "cannot start a conversation with yourself"
)

// Decision is the outcome of a permission check. Reason is only meaningful
// when Allowed is false.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// PermissionService decides whether a sender may start a conversation with a
// recipient. The check runs at conversation-creation time only; once a
// conversation exists it is itself the authorization boundary.
type PermissionService struct {
	profiles     domain.ProfileRepository
	applications domain.ApplicationRepository
}

func NewPermissionService(
	profiles domain.ProfileRepository,
	applications domain.ApplicationRepository,
) *PermissionService {
	return &PermissionService{
		profiles:     profiles,
		applications: applications,
	}
}

// CanInitiate evaluates, in order:
//  1. creators may always reach out to talent,
//  2. an application on the job grants the applicant a channel,
//  3. the recipient has opted in to unsolicited messages.
//
// It fails closed: if either profile cannot be loaded the answer is a denial,
// not an error.
func (s *PermissionService) CanInitiate(
	ctx context.Context,
	senderID, recipientID uuid.UUID,
	jobID uuid.NullUUID,
) (Decision, error) {
	if senderID == recipientID {
		return Decision{Allowed: false, Reason: ReasonSelfMessage}, nil
	}

	profiles, err := s.profiles.GetByIDs(ctx, []uuid.UUID{senderID, recipientID})
	if err != nil {
		return Decision{}, fmt.Errorf("load profiles: %w", err)
	}
	var sender, recipient *domain.Participant
	for _, p := range profiles {
		switch p.ID {
		case senderID:
			sender = p
		case recipientID:
			recipient = p
		}
	}
	if sender == nil || recipient == nil {
		return Decision{Allowed: false, Reason: ReasonUserNotFound}, nil
	}

	// Rule 1: role-based.
	if sender.Role == domain.RoleCreator && recipient.Role == domain.RoleTalent {
		return Decision{Allowed: true}, nil
	}

	// Rule 2: applying to a job opens a channel to its owner.
	if jobID.Valid {
		applied, err := s.applications.Exists(ctx, jobID.UUID, senderID)
		if err != nil {
			return Decision{}, fmt.Errorf("check application: %w", err)
		}
		if applied {
			return Decision{Allowed: true}, nil
		}
	}

	// Rule 3: recipient opt-in.
	if recipient.OpenToMessages {
		return Decision{Allowed: true}, nil
	}

	return Decision{Allowed: false, Reason: ReasonNotAuthorized}, nil
}
