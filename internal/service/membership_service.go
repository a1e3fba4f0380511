package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/repository"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type membershipRepository interface {
	Find(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error)
	IsMember(ctx context.Context, userID, orgID string) (bool, error)
	Create(ctx context.Context, member *models.OrganizationMember) error
	Accept(ctx context.Context, orgID, userID string) (int64, error)
	Delete(ctx context.Context, orgID, userID string) error
	DeletePending(ctx context.Context, orgID, userID string) error
	ListAcceptedByOrg(ctx context.Context, orgID string) ([]models.MemberDetail, error)
	ListPendingByUser(ctx context.Context, userID string) ([]models.Invite, error)
}

type membershipOrgRepository interface {
	FindByID(ctx context.Context, id string) (*models.Organization, error)
}

type membershipUserRepository interface {
	FindByUsername(ctx context.Context, username string) (*models.User, error)
}

// MembershipService manages invitations and membership predicates.
type MembershipService struct {
	members   membershipRepository
	orgs      membershipOrgRepository
	users     membershipUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewMembershipService constructs a MembershipService instance.
func NewMembershipService(members membershipRepository, orgs membershipOrgRepository, users membershipUserRepository, validate *validator.Validate, logger *zap.Logger) *MembershipService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MembershipService{members: members, orgs: orgs, users: users, validator: validate, logger: logger}
}

// IsMember reports whether the user holds an accepted membership in the
// organization.
func (s *MembershipService) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	ok, err := s.members.IsMember(ctx, userID, orgID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	return ok, nil
}

// IsAdmin reports whether the user is the creator of the organization.
func (s *MembershipService) IsAdmin(ctx context.Context, userID, orgID string) (bool, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org.AdminID == userID, nil
}

// Invite creates a pending invitation for the named user. Any accepted member
// may invite, a user cannot invite themselves, and a user already invited or
// already a member cannot be invited again.
func (s *MembershipService) Invite(ctx context.Context, orgID, inviterID string, req models.InviteMemberRequest) (*models.OrganizationMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid invitation payload")
	}

	if _, err := s.orgs.FindByID(ctx, orgID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}

	isMember, err := s.members.IsMember(ctx, inviterID, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}
	if !isMember {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only organization members can invite")
	}

	invitee, err := s.users.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no user with that username exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if invitee.ID == inviterID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "you cannot invite yourself")
	}

	member := &models.OrganizationMember{
		OrganizationID: orgID,
		UserID:         invitee.ID,
		Accepted:       false,
		Rank:           req.Rank,
	}
	if err := s.members.Create(ctx, member); err != nil {
		if repository.IsUniqueViolation(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "this user has already been invited")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invitation")
	}

	s.logger.Info("member invited",
		zap.String("organization_id", orgID),
		zap.String("user_id", invitee.ID),
		zap.Int("rank", req.Rank))
	return member, nil
}

// Accept marks the caller's invitation as accepted. Accepting an already
// accepted invitation is a no-op; accepting without an invitation fails.
func (s *MembershipService) Accept(ctx context.Context, orgID, userID string) error {
	affected, err := s.members.Accept(ctx, orgID, userID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to accept invitation")
	}
	if affected == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "no invitation found for this organization")
	}
	return nil
}

// Deny removes the caller's pending invitation. An already accepted
// membership is left alone, and denying an invitation that no longer exists
// is a no-op, so concurrent denies are safe.
func (s *MembershipService) Deny(ctx context.Context, orgID, userID string) error {
	if err := s.members.DeletePending(ctx, orgID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deny invitation")
	}
	return nil
}

// Leave removes the caller's accepted membership. The organization admin
// cannot leave their own organization.
func (s *MembershipService) Leave(ctx context.Context, orgID, userID string) error {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	if org.AdminID == userID {
		return appErrors.Clone(appErrors.ErrValidation, "the organization admin cannot leave the organization")
	}
	if err := s.members.Delete(ctx, orgID, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave organization")
	}
	return nil
}

// ListInvites returns the caller's pending invitations.
func (s *MembershipService) ListInvites(ctx context.Context, userID string) ([]models.Invite, error) {
	invites, err := s.members.ListPendingByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invitations")
	}
	return invites, nil
}

// ListMembers returns the accepted members of an organization.
func (s *MembershipService) ListMembers(ctx context.Context, orgID string) ([]models.MemberDetail, error) {
	members, err := s.members.ListAcceptedByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	return members, nil
}
