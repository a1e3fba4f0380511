package handler

import (
	"bytes"
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/middleware"
	"github.com/noah-isme/orghub-api/internal/models"
	"github.com/noah-isme/orghub-api/internal/service"
)

// stubDirectory backs the membership and organization services with a fixed
// org-1 fixture: alice is the admin, bob an accepted member, carol a
// registered outsider.
type stubDirectory struct {
	members map[string]*models.OrganizationMember
}

func newStubDirectory() *stubDirectory {
	return &stubDirectory{members: map[string]*models.OrganizationMember{
		"org-1/alice": {OrganizationID: "org-1", UserID: "alice", Accepted: true, Rank: models.CreatorRank},
		"org-1/bob":   {OrganizationID: "org-1", UserID: "bob", Accepted: true, Rank: 10},
	}}
}

func (s *stubDirectory) key(orgID, userID string) string { return orgID + "/" + userID }

func (s *stubDirectory) Find(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	member, ok := s.members[s.key(orgID, userID)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return member, nil
}

func (s *stubDirectory) IsMember(ctx context.Context, userID, orgID string) (bool, error) {
	member, ok := s.members[s.key(orgID, userID)]
	return ok && member.Accepted, nil
}

func (s *stubDirectory) Create(ctx context.Context, member *models.OrganizationMember) error {
	s.members[s.key(member.OrganizationID, member.UserID)] = member
	return nil
}

func (s *stubDirectory) Accept(ctx context.Context, orgID, userID string) (int64, error) {
	member, ok := s.members[s.key(orgID, userID)]
	if !ok {
		return 0, nil
	}
	member.Accepted = true
	return 1, nil
}

func (s *stubDirectory) Delete(ctx context.Context, orgID, userID string) error {
	delete(s.members, s.key(orgID, userID))
	return nil
}

func (s *stubDirectory) DeletePending(ctx context.Context, orgID, userID string) error {
	if member, ok := s.members[s.key(orgID, userID)]; ok && !member.Accepted {
		delete(s.members, s.key(orgID, userID))
	}
	return nil
}

func (s *stubDirectory) ListAcceptedByOrg(ctx context.Context, orgID string) ([]models.MemberDetail, error) {
	return []models.MemberDetail{
		{OrganizationMember: *s.members["org-1/alice"], Username: "alice", FullName: "Alice Adams"},
	}, nil
}

func (s *stubDirectory) ListPendingByUser(ctx context.Context, userID string) ([]models.Invite, error) {
	return nil, nil
}

func (s *stubDirectory) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	if id != "org-1" {
		return nil, sql.ErrNoRows
	}
	return &models.Organization{ID: "org-1", Name: "CS Club", AdminID: "alice"}, nil
}

func (s *stubDirectory) CreateWithFounder(ctx context.Context, org *models.Organization) (*models.Folder, *models.OrganizationMember, error) {
	return nil, nil, nil
}

func (s *stubDirectory) ListByMember(ctx context.Context, userID string) ([]models.Organization, error) {
	return nil, nil
}

func (s *stubDirectory) ListByOrg(ctx context.Context, orgID string) ([]models.Folder, error) {
	return nil, nil
}

func (s *stubDirectory) ListRecentByOrg(ctx context.Context, orgID string, limit int) ([]models.File, error) {
	return nil, nil
}

func (s *stubDirectory) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	switch username {
	case "alice", "bob", "carol":
		return &models.User{ID: username, Username: username, FullName: username}, nil
	}
	return nil, sql.ErrNoRows
}

// testAuth injects claims from the X-Test-User header in place of real JWT
// parsing; "root" gets the site admin flag.
func testAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := c.GetHeader("X-Test-User")
		if user != "" {
			c.Set(middleware.ContextUserKey, &models.JWTClaims{
				UserID:   user,
				Username: user,
				IsAdmin:  user == "root",
			})
		}
		c.Next()
	}
}

type stubCategoryRepo struct{}

func (stubCategoryRepo) List(ctx context.Context) ([]models.Category, error) { return nil, nil }
func (stubCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	return nil
}

func buildGuardedRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	dir := newStubDirectory()
	validate := validator.New()
	logger := zap.NewNop()

	membershipSvc := service.NewMembershipService(dir, dir, dir, validate, logger)
	orgSvc := service.NewOrganizationService(dir, dir, dir, dir, nil, nil, 0, validate, logger)
	categorySvc := service.NewCategoryService(stubCategoryRepo{}, validate, logger)

	orgHandler := NewOrganizationHandler(orgSvc)
	membershipHandler := NewMembershipHandler(membershipSvc, orgSvc)
	categoryHandler := NewCategoryHandler(categorySvc)

	r := gin.New()
	r.Use(testAuth())

	member := r.Group("/organizations/:orgID")
	member.Use(middleware.RequireOrgMember(membershipSvc))
	member.GET("", orgHandler.View)
	member.POST("/invitations", membershipHandler.Invite)

	admin := r.Group("/organizations/:orgID")
	admin.Use(middleware.RequireOrgAdmin(membershipSvc))
	admin.GET("/roster/export", orgHandler.ExportRoster)

	r.POST("/categories", middleware.RequireSiteAdmin(), categoryHandler.Create)

	return r
}

func performRequest(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestGuardedRoutes(t *testing.T) {
	router := buildGuardedRouter()

	t.Run("org view as member", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/organizations/org-1", nil)
		req.Header.Set("X-Test-User", "bob")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Body.String(), `"organization"`)
	})

	t.Run("org view as outsider", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/organizations/org-1", nil)
		req.Header.Set("X-Test-User", "carol")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
		require.Contains(t, resp.Body.String(), "NOT_A_MEMBER")
	})

	t.Run("org view unauthenticated", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/organizations/org-1", nil)
		resp := performRequest(router, req)
		require.Equal(t, http.StatusUnauthorized, resp.Code)
	})

	t.Run("member invites outsider", func(t *testing.T) {
		body := bytes.NewBufferString(`{"username":"carol","rank":5}`)
		req, _ := http.NewRequest(http.MethodPost, "/organizations/org-1/invitations", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "bob")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	})

	t.Run("outsider cannot invite", func(t *testing.T) {
		body := bytes.NewBufferString(`{"username":"bob","rank":5}`)
		req, _ := http.NewRequest(http.MethodPost, "/organizations/org-1/invitations", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "carol")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)
	})

	t.Run("roster export admin only", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, "/organizations/org-1/roster/export", nil)
		req.Header.Set("X-Test-User", "bob")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)

		req, _ = http.NewRequest(http.MethodGet, "/organizations/org-1/roster/export", nil)
		req.Header.Set("X-Test-User", "alice")
		resp = performRequest(router, req)
		require.Equal(t, http.StatusOK, resp.Code)
		require.Contains(t, resp.Header().Get("Content-Type"), "text/csv")
		require.Contains(t, resp.Body.String(), "alice,Alice Adams")
	})

	t.Run("category create requires site admin", func(t *testing.T) {
		body := bytes.NewBufferString(`{"tag":"CS"}`)
		req, _ := http.NewRequest(http.MethodPost, "/categories", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "bob")
		resp := performRequest(router, req)
		require.Equal(t, http.StatusForbidden, resp.Code)

		body = bytes.NewBufferString(`{"tag":"CS"}`)
		req, _ = http.NewRequest(http.MethodPost, "/categories", body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Test-User", "root")
		resp = performRequest(router, req)
		require.Equal(t, http.StatusCreated, resp.Code)
	})
}
