package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/export"
)

type organizationRepository interface {
	FindByID(ctx context.Context, id string) (*models.Organization, error)
	CreateWithFounder(ctx context.Context, org *models.Organization) (*models.Folder, *models.OrganizationMember, error)
	ListByMember(ctx context.Context, userID string) ([]models.Organization, error)
}

type organizationMemberLister interface {
	ListAcceptedByOrg(ctx context.Context, orgID string) ([]models.MemberDetail, error)
}

type organizationFolderLister interface {
	ListByOrg(ctx context.Context, orgID string) ([]models.Folder, error)
}

type organizationFileLister interface {
	ListRecentByOrg(ctx context.Context, orgID string, limit int) ([]models.File, error)
}

type organizationStorage interface {
	OrgPath(orgID string) (string, error)
	EnsureDir(relDir string) error
}

// OrganizationService manages organization lifecycle and membership-gated
// read views.
type OrganizationService struct {
	orgs      organizationRepository
	members   organizationMemberLister
	folders   organizationFolderLister
	files     organizationFileLister
	store     organizationStorage
	cache     viewCache
	cacheTTL  time.Duration
	csv       *export.CSVExporter
	pdf       *export.PDFExporter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewOrganizationService constructs an OrganizationService instance. The cache
// may be nil when caching is disabled.
func NewOrganizationService(
	orgs organizationRepository,
	members organizationMemberLister,
	folders organizationFolderLister,
	files organizationFileLister,
	store organizationStorage,
	cache viewCache,
	cacheTTL time.Duration,
	validate *validator.Validate,
	logger *zap.Logger,
) *OrganizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &OrganizationService{
		orgs:      orgs,
		members:   members,
		folders:   folders,
		files:     files,
		store:     store,
		cache:     cache,
		cacheTTL:  cacheTTL,
		csv:       export.NewCSVExporter(),
		pdf:       export.NewPDFExporter(),
		validator: validate,
		logger:    logger,
	}
}

func orgViewCacheKey(orgID string) string {
	return "org:view:" + orgID
}

// Create creates an organization founded by the caller. The creator becomes
// the admin with the creator rank and the top storage folder is provisioned
// immediately.
func (s *OrganizationService) Create(ctx context.Context, adminID string, req models.CreateOrganizationRequest) (*models.Organization, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid organization payload")
	}

	org := &models.Organization{Name: strings.TrimSpace(req.Name), AdminID: adminID}
	if _, _, err := s.orgs.CreateWithFounder(ctx, org); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create organization")
	}

	if s.store != nil {
		relDir, err := s.store.OrgPath(org.ID)
		if err == nil {
			err = s.store.EnsureDir(relDir)
		}
		if err != nil {
			s.logger.Warn("failed to provision organization directory", zap.String("organization_id", org.ID), zap.Error(err))
		}
	}

	s.logger.Info("organization created", zap.String("organization_id", org.ID), zap.String("admin_id", adminID))
	return org, nil
}

// Get returns an organization by id.
func (s *OrganizationService) Get(ctx context.Context, orgID string) (*models.Organization, error) {
	org, err := s.orgs.FindByID(ctx, orgID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "organization not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load organization")
	}
	return org, nil
}

// View assembles the organization home payload: details, roster, dated
// folders and recent uploads. The result is cached briefly since it is the
// hottest read in the application.
func (s *OrganizationService) View(ctx context.Context, orgID string) (*models.OrganizationView, error) {
	key := orgViewCacheKey(orgID)
	if s.cache != nil {
		var cached models.OrganizationView
		if err := s.cache.Get(ctx, key, &cached); err == nil {
			return &cached, nil
		} else if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("organization view cache read failed", zap.Error(err))
		}
	}

	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	members, err := s.members.ListAcceptedByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}
	folders, err := s.folders.ListByOrg(ctx, orgID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folders")
	}
	recent, err := s.files.ListRecentByOrg(ctx, orgID, 5)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list recent files")
	}

	view := &models.OrganizationView{
		Organization: *org,
		Members:      members,
		RecentFiles:  recent,
		Folders:      folders,
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, view, s.cacheTTL); err != nil {
			s.logger.Warn("organization view cache write failed", zap.Error(err))
		}
	}
	return view, nil
}

// InvalidateView drops the cached home payload after a membership or file
// mutation.
func (s *OrganizationService) InvalidateView(ctx context.Context, orgID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, orgViewCacheKey(orgID)); err != nil {
		s.logger.Warn("organization view cache invalidation failed", zap.String("organization_id", orgID), zap.Error(err))
	}
}

// MyOrganizations splits the caller's organizations into those they
// administer and those they merely belong to.
func (s *OrganizationService) MyOrganizations(ctx context.Context, userID string) (*models.MyOrganizations, error) {
	orgs, err := s.orgs.ListByMember(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organizations")
	}

	result := &models.MyOrganizations{Admin: []models.Organization{}, Member: []models.Organization{}}
	for _, org := range orgs {
		if org.AdminID == userID {
			result.Admin = append(result.Admin, org)
		} else {
			result.Member = append(result.Member, org)
		}
	}
	return result, nil
}

// ExportRoster renders the organization's accepted member roster in the
// requested format ("csv" or "pdf").
func (s *OrganizationService) ExportRoster(ctx context.Context, orgID, format string) ([]byte, string, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, "", err
	}
	members, err := s.members.ListAcceptedByOrg(ctx, orgID)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list members")
	}

	dataset := export.Dataset{
		Headers: []string{"Username", "Full Name", "Rank", "Joined"},
		Rows:    make([]map[string]string, 0, len(members)),
	}
	for _, m := range members {
		joined := ""
		if m.RespondedAt != nil {
			joined = m.RespondedAt.Format("2006-01-02")
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Username":  m.Username,
			"Full Name": m.FullName,
			"Rank":      fmt.Sprintf("%d", m.Rank),
			"Joined":    joined,
		})
	}

	switch strings.ToLower(format) {
	case "csv", "":
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster csv")
		}
		return payload, "text/csv", nil
	case "pdf":
		payload, err := s.pdf.Render(dataset, org.Name+" Roster")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render roster pdf")
		}
		return payload, "application/pdf", nil
	default:
		return nil, "", appErrors.Clone(appErrors.ErrValidation, "unsupported export format: "+format)
	}
}
