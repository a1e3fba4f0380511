package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type mockOrgRepo struct {
	orgs          map[string]*models.Organization
	createdTop    *models.Folder
	createdMember *models.OrganizationMember
	byMember      map[string][]models.Organization
	listCalls     int
}

func newMockOrgRepo() *mockOrgRepo {
	return &mockOrgRepo{orgs: make(map[string]*models.Organization), byMember: make(map[string][]models.Organization)}
}

func (m *mockOrgRepo) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return org, nil
}

func (m *mockOrgRepo) CreateWithFounder(ctx context.Context, org *models.Organization) (*models.Folder, *models.OrganizationMember, error) {
	if org.ID == "" {
		org.ID = "org-" + org.Name
	}
	m.orgs[org.ID] = org
	m.createdTop = &models.Folder{ID: "top-" + org.ID, OrganizationID: org.ID, Top: true}
	m.createdMember = &models.OrganizationMember{OrganizationID: org.ID, UserID: org.AdminID, Accepted: true, Rank: models.CreatorRank}
	return m.createdTop, m.createdMember, nil
}

func (m *mockOrgRepo) ListByMember(ctx context.Context, userID string) ([]models.Organization, error) {
	m.listCalls++
	return m.byMember[userID], nil
}

type mockOrgMembers struct {
	roster []models.MemberDetail
	calls  int
}

func (m *mockOrgMembers) ListAcceptedByOrg(ctx context.Context, orgID string) ([]models.MemberDetail, error) {
	m.calls++
	return m.roster, nil
}

type mockOrgFolders struct {
	folders []models.Folder
}

func (m *mockOrgFolders) ListByOrg(ctx context.Context, orgID string) ([]models.Folder, error) {
	return m.folders, nil
}

type mockOrgFiles struct {
	recent []models.File
}

func (m *mockOrgFiles) ListRecentByOrg(ctx context.Context, orgID string, limit int) ([]models.File, error) {
	if len(m.recent) > limit {
		return m.recent[:limit], nil
	}
	return m.recent, nil
}

type mockOrgStorage struct {
	ensured []string
}

func (m *mockOrgStorage) OrgPath(orgID string) (string, error) { return orgID + "/", nil }
func (m *mockOrgStorage) EnsureDir(relDir string) error {
	m.ensured = append(m.ensured, relDir)
	return nil
}

// memoryCache is an in-process viewCache used to observe caching behavior.
type memoryCache struct {
	values map[string][]byte
	hits   int
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: make(map[string][]byte)}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	delete(c.values, pattern)
	return nil
}

type orgFixture struct {
	svc     *OrganizationService
	orgs    *mockOrgRepo
	members *mockOrgMembers
	storage *mockOrgStorage
	cache   *memoryCache
}

func newOrgFixture() *orgFixture {
	orgs := newMockOrgRepo()
	members := &mockOrgMembers{}
	folders := &mockOrgFolders{}
	files := &mockOrgFiles{}
	store := &mockOrgStorage{}
	cache := newMemoryCache()
	svc := NewOrganizationService(orgs, members, folders, files, store, cache, time.Minute, validator.New(), zap.NewNop())
	return &orgFixture{svc: svc, orgs: orgs, members: members, storage: store, cache: cache}
}

func TestOrganizationServiceCreateProvisionsFounderAndStorage(t *testing.T) {
	f := newOrgFixture()

	org, err := f.svc.Create(context.Background(), "alice", models.CreateOrganizationRequest{Name: "Chess Club"})
	require.NoError(t, err)
	assert.Equal(t, "alice", org.AdminID)

	require.NotNil(t, f.orgs.createdMember)
	assert.True(t, f.orgs.createdMember.Accepted)
	assert.Equal(t, models.CreatorRank, f.orgs.createdMember.Rank)
	require.NotNil(t, f.orgs.createdTop)
	assert.True(t, f.orgs.createdTop.Top)
	assert.Contains(t, f.storage.ensured, org.ID+"/")
}

func TestOrganizationServiceCreateRejectsShortName(t *testing.T) {
	f := newOrgFixture()

	_, err := f.svc.Create(context.Background(), "alice", models.CreateOrganizationRequest{Name: "X"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestOrganizationServiceViewUsesCache(t *testing.T) {
	f := newOrgFixture()
	f.orgs.orgs["org-1"] = &models.Organization{ID: "org-1", Name: "Chess Club", AdminID: "alice"}
	f.members.roster = []models.MemberDetail{{Username: "alice", FullName: "Alice Adams"}}

	view, err := f.svc.View(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", view.Organization.Name)
	assert.Equal(t, 1, f.members.calls)

	// Second read is served from cache.
	_, err = f.svc.View(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.members.calls)
	assert.Equal(t, 1, f.cache.hits)

	f.svc.InvalidateView(context.Background(), "org-1")
	_, err = f.svc.View(context.Background(), "org-1")
	require.NoError(t, err)
	assert.Equal(t, 2, f.members.calls)
}

func TestOrganizationServiceViewMissingOrg(t *testing.T) {
	f := newOrgFixture()

	_, err := f.svc.View(context.Background(), "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestOrganizationServiceMyOrganizationsSplit(t *testing.T) {
	f := newOrgFixture()
	f.orgs.byMember["alice"] = []models.Organization{
		{ID: "org-1", Name: "Chess Club", AdminID: "alice"},
		{ID: "org-2", Name: "Robotics Society", AdminID: "bob"},
	}

	mine, err := f.svc.MyOrganizations(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, mine.Admin, 1)
	require.Len(t, mine.Member, 1)
	assert.Equal(t, "org-1", mine.Admin[0].ID)
	assert.Equal(t, "org-2", mine.Member[0].ID)
}

func TestOrganizationServiceExportRosterCSV(t *testing.T) {
	f := newOrgFixture()
	joined := time.Date(2024, 9, 15, 0, 0, 0, 0, time.UTC)
	f.orgs.orgs["org-1"] = &models.Organization{ID: "org-1", Name: "Chess Club", AdminID: "alice"}
	f.members.roster = []models.MemberDetail{
		{OrganizationMember: models.OrganizationMember{Rank: 100, RespondedAt: &joined}, Username: "alice", FullName: "Alice Adams"},
		{OrganizationMember: models.OrganizationMember{Rank: 10}, Username: "bob", FullName: "Bob Brown"},
	}

	payload, contentType, err := f.svc.ExportRoster(context.Background(), "org-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)

	body := string(payload)
	assert.True(t, strings.HasPrefix(body, "Username,Full Name,Rank,Joined"))
	assert.Contains(t, body, "alice,Alice Adams,100,2024-09-15")
	assert.Contains(t, body, "bob,Bob Brown,10,")
}

func TestOrganizationServiceExportRosterPDF(t *testing.T) {
	f := newOrgFixture()
	f.orgs.orgs["org-1"] = &models.Organization{ID: "org-1", Name: "Chess Club", AdminID: "alice"}
	f.members.roster = []models.MemberDetail{{Username: "alice", FullName: "Alice Adams"}}

	payload, contentType, err := f.svc.ExportRoster(context.Background(), "org-1", "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", contentType)
	assert.True(t, strings.HasPrefix(string(payload), "%PDF"))
}

func TestOrganizationServiceExportRosterBadFormat(t *testing.T) {
	f := newOrgFixture()
	f.orgs.orgs["org-1"] = &models.Organization{ID: "org-1", Name: "Chess Club", AdminID: "alice"}

	_, _, err := f.svc.ExportRoster(context.Background(), "org-1", "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
