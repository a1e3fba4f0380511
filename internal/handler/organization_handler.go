package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// OrganizationHandler wires HTTP endpoints to the organization service.
type OrganizationHandler struct {
	service *service.OrganizationService
}

// NewOrganizationHandler creates a new handler.
func NewOrganizationHandler(svc *service.OrganizationService) *OrganizationHandler {
	return &OrganizationHandler{service: svc}
}

// Create godoc
// @Summary Create an organization
// @Description Found a new organization with the caller as admin
// @Tags Organizations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreateOrganizationRequest true "Organization payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /organizations [post]
func (h *OrganizationHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid organization payload"))
		return
	}

	org, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, org)
}

// View godoc
// @Summary Organization home
// @Description Membership-gated organization view with roster, folders and recent uploads
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /organizations/{orgID} [get]
func (h *OrganizationHandler) View(c *gin.Context) {
	view, err := h.service.View(c.Request.Context(), c.Param("orgID"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Mine godoc
// @Summary My organizations
// @Description The caller's organizations, split by admin role
// @Tags Organizations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /organizations [get]
func (h *OrganizationHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	mine, err := h.service.MyOrganizations(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, mine, nil)
}

// ExportRoster godoc
// @Summary Export member roster
// @Description Download the accepted member roster as CSV or PDF
// @Tags Organizations
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param orgID path string true "Organization ID"
// @Param format query string false "Export format" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /organizations/{orgID}/roster/export [get]
func (h *OrganizationHandler) ExportRoster(c *gin.Context) {
	orgID := c.Param("orgID")
	format := c.DefaultQuery("format", "csv")

	payload, contentType, err := h.service.ExportRoster(c.Request.Context(), orgID, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	filename := fmt.Sprintf("roster_%s.%s", orgID, format)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, payload)
}
