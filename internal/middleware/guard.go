package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/response"
)

// RequireOrgMember blocks callers without an accepted membership in the
// organization named by the :orgID route param.
func RequireOrgMember(memberships *service.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		orgID := c.Param("orgID")
		if orgID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "organization id is required"))
			c.Abort()
			return
		}

		isMember, err := memberships.IsMember(c.Request.Context(), claims.UserID, orgID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !isMember {
			response.Error(c, appErrors.ErrNotMember)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireOrgAdmin blocks callers who are not the organization's admin.
func RequireOrgAdmin(memberships *service.MembershipService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		orgID := c.Param("orgID")
		if orgID == "" {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "organization id is required"))
			c.Abort()
			return
		}

		isAdmin, err := memberships.IsAdmin(c.Request.Context(), claims.UserID, orgID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !isAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "organization admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireSiteAdmin blocks callers without the site administrator flag.
func RequireSiteAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := currentClaims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if !claims.IsAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "site administrator access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

func currentClaims(c *gin.Context) (*models.JWTClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.JWTClaims)
	return claims, ok
}
