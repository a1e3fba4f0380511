package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/orghub-api/internal/models"
)

// MembershipRepository provides database access for organization memberships
// and invitations.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository creates a new instance of MembershipRepository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// Find returns the membership row for the (organization, user) pair.
func (r *MembershipRepository) Find(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	const query = `SELECT id, organization_id, user_id, accepted, rank, invited_at, responded_at FROM organization_members WHERE organization_id = $1 AND user_id = $2 LIMIT 1`
	var member models.OrganizationMember
	if err := r.db.GetContext(ctx, &member, query, orgID, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find membership: %w", err)
	}
	return &member, nil
}

// IsMember reports whether the user holds an accepted membership in the
// organization.
func (r *MembershipRepository) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2 AND accepted = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, orgID, userID); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// Create inserts an invitation row. The (organization_id, user_id) unique
// constraint turns concurrent duplicate invites into a unique violation.
func (r *MembershipRepository) Create(ctx context.Context, member *models.OrganizationMember) error {
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if member.InvitedAt.IsZero() {
		member.InvitedAt = time.Now().UTC()
	}
	const query = `INSERT INTO organization_members (id, organization_id, user_id, accepted, rank, invited_at, responded_at) VALUES (:id, :organization_id, :user_id, :accepted, :rank, :invited_at, :responded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, member); err != nil {
		return fmt.Errorf("create membership: %w", err)
	}
	return nil
}

// Accept marks the user's membership as accepted. Returns the number of rows
// updated; zero means no row existed for the pair.
func (r *MembershipRepository) Accept(ctx context.Context, orgID, userID string) (int64, error) {
	const query = `UPDATE organization_members SET accepted = TRUE, responded_at = $3 WHERE organization_id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, orgID, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("accept membership: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("accept membership rows affected: %w", err)
	}
	return affected, nil
}

// Delete removes the membership row for the pair regardless of state. Used
// when a member leaves; deleting an absent row is not an error.
func (r *MembershipRepository) Delete(ctx context.Context, orgID, userID string) error {
	const query = `DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2`
	if _, err := r.db.ExecContext(ctx, query, orgID, userID); err != nil {
		return fmt.Errorf("delete membership: %w", err)
	}
	return nil
}

// DeletePending removes the pair's invitation row only while it is still
// pending. An accepted membership is left untouched, so the deny transition
// cannot tear down an established member.
func (r *MembershipRepository) DeletePending(ctx context.Context, orgID, userID string) error {
	const query = `DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2 AND accepted = FALSE`
	if _, err := r.db.ExecContext(ctx, query, orgID, userID); err != nil {
		return fmt.Errorf("delete pending membership: %w", err)
	}
	return nil
}

// ListAcceptedByOrg returns the accepted members of an organization together
// with their user details, highest rank first.
func (r *MembershipRepository) ListAcceptedByOrg(ctx context.Context, orgID string) ([]models.MemberDetail, error) {
	const query = `SELECT m.id, m.organization_id, m.user_id, m.accepted, m.rank, m.invited_at, m.responded_at, u.username, u.full_name
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		WHERE m.organization_id = $1 AND m.accepted = TRUE
		ORDER BY m.rank DESC, u.username ASC`
	var members []models.MemberDetail
	if err := r.db.SelectContext(ctx, &members, query, orgID); err != nil {
		return nil, fmt.Errorf("list accepted members: %w", err)
	}
	return members, nil
}

// ListPendingByUser returns the user's pending invitations with organization
// names, newest first.
func (r *MembershipRepository) ListPendingByUser(ctx context.Context, userID string) ([]models.Invite, error) {
	const query = `SELECT m.id, m.organization_id, m.user_id, m.accepted, m.rank, m.invited_at, m.responded_at, o.name AS organization_name
		FROM organization_members m
		JOIN organizations o ON o.id = m.organization_id
		WHERE m.user_id = $1 AND m.accepted = FALSE
		ORDER BY m.invited_at DESC`
	var invites []models.Invite
	if err := r.db.SelectContext(ctx, &invites, query, userID); err != nil {
		return nil, fmt.Errorf("list pending invites: %w", err)
	}
	return invites, nil
}

// ListOrgIDsByUser returns the ids of organizations the user is an accepted
// member of.
func (r *MembershipRepository) ListOrgIDsByUser(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT organization_id FROM organization_members WHERE user_id = $1 AND accepted = TRUE`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list member org ids: %w", err)
	}
	return ids, nil
}
