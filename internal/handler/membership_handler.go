package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// MembershipHandler wires HTTP endpoints to the membership service.
type MembershipHandler struct {
	service *service.MembershipService
	orgs    *service.OrganizationService
}

// NewMembershipHandler creates a new handler.
func NewMembershipHandler(svc *service.MembershipService, orgs *service.OrganizationService) *MembershipHandler {
	return &MembershipHandler{service: svc, orgs: orgs}
}

// Invite godoc
// @Summary Invite a member
// @Description Invite a user into the organization by username
// @Tags Memberships
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param payload body models.InviteMemberRequest true "Invitation payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /organizations/{orgID}/invitations [post]
func (h *MembershipHandler) Invite(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.InviteMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid invitation payload"))
		return
	}

	orgID := c.Param("orgID")
	member, err := h.service.Invite(c.Request.Context(), orgID, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.Created(c, member)
}

// ListInvites godoc
// @Summary Pending invitations
// @Description The caller's pending invitations across all organizations
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /invitations [get]
func (h *MembershipHandler) ListInvites(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	invites, err := h.service.ListInvites(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invites, nil)
}

// Accept godoc
// @Summary Accept an invitation
// @Description Accept the caller's pending invitation to the organization
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /organizations/{orgID}/invitations/accept [post]
func (h *MembershipHandler) Accept(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	orgID := c.Param("orgID")
	if err := h.service.Accept(c.Request.Context(), orgID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.NoContent(c)
}

// Deny godoc
// @Summary Deny an invitation
// @Description Decline the caller's pending invitation to the organization
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 204
// @Router /organizations/{orgID}/invitations/deny [post]
func (h *MembershipHandler) Deny(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	orgID := c.Param("orgID")
	if err := h.service.Deny(c.Request.Context(), orgID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.NoContent(c)
}

// Leave godoc
// @Summary Leave an organization
// @Description Give up the caller's membership; the admin cannot leave
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /organizations/{orgID}/membership [delete]
func (h *MembershipHandler) Leave(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	orgID := c.Param("orgID")
	if err := h.service.Leave(c.Request.Context(), orgID, claims.UserID); err != nil {
		response.Error(c, err)
		return
	}

	h.orgs.InvalidateView(c.Request.Context(), orgID)
	response.NoContent(c)
}

// Members godoc
// @Summary List members
// @Description Accepted members of the organization, highest rank first
// @Tags Memberships
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /organizations/{orgID}/members [get]
func (h *MembershipHandler) Members(c *gin.Context) {
	members, err := h.service.ListMembers(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, members, nil)
}
