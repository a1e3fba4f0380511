package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
)

type searchMembershipRepository interface {
	ListOrgIDsByUser(ctx context.Context, userID string) ([]string, error)
}

type searchOrgRepository interface {
	SearchByName(ctx context.Context, orgIDs []string, term string) ([]models.Organization, error)
}

type searchFolderRepository interface {
	ListByOrgIDs(ctx context.Context, orgIDs []string) ([]models.Folder, error)
}

type searchFileRepository interface {
	ListByOrgIDs(ctx context.Context, orgIDs []string) ([]models.File, error)
	ListByFolderIDs(ctx context.Context, folderIDs []string) ([]models.File, error)
	SearchByName(ctx context.Context, orgIDs []string, token string) ([]models.File, error)
}

// SearchService finds files across the caller's organizations. A query can hit
// by organization name, by folder label, by course label, or by file name; the
// strategies are unioned and de-duplicated.
type SearchService struct {
	memberships searchMembershipRepository
	orgs        searchOrgRepository
	folders     searchFolderRepository
	files       searchFileRepository
	logger      *zap.Logger
}

// NewSearchService constructs a SearchService instance.
func NewSearchService(memberships searchMembershipRepository, orgs searchOrgRepository, folders searchFolderRepository, files searchFileRepository, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchService{memberships: memberships, orgs: orgs, folders: folders, files: files, logger: logger}
}

// Search runs the query against the caller's organizations. An empty union is
// reported as a not-found condition rather than an empty list.
func (s *SearchService) Search(ctx context.Context, userID, query string) (*models.SearchResults, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a search query is required")
	}

	orgIDs, err := s.memberships.ListOrgIDsByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve search scope")
	}
	if len(orgIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoResults, "join an organization to search its files")
	}

	seen := make(map[string]struct{})
	var results []models.File
	add := func(files []models.File) {
		for _, f := range files {
			if _, ok := seen[f.ID]; ok {
				continue
			}
			seen[f.ID] = struct{}{}
			results = append(results, f)
		}
	}

	byOrg, err := s.searchByOrganizationName(ctx, orgIDs, query)
	if err != nil {
		return nil, err
	}
	add(byOrg)

	byFolder, err := s.searchByFolderLabel(ctx, orgIDs, query)
	if err != nil {
		return nil, err
	}
	add(byFolder)

	byCourse, err := s.searchByCourseLabel(ctx, orgIDs, query)
	if err != nil {
		return nil, err
	}
	add(byCourse)

	byName, err := s.searchByFileName(ctx, orgIDs, query)
	if err != nil {
		return nil, err
	}
	add(byName)

	if len(results) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNoResults, "nothing matched your search")
	}

	return &models.SearchResults{Query: query, Files: results}, nil
}

func (s *SearchService) searchByOrganizationName(ctx context.Context, orgIDs []string, query string) ([]models.File, error) {
	orgs, err := s.orgs.SearchByName(ctx, orgIDs, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search organizations")
	}
	if len(orgs) == 0 {
		return nil, nil
	}
	matched := make([]string, len(orgs))
	for i, org := range orgs {
		matched[i] = org.ID
	}
	files, err := s.files.ListByOrgIDs(ctx, matched)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list organization files")
	}
	return files, nil
}

func (s *SearchService) searchByFolderLabel(ctx context.Context, orgIDs []string, query string) ([]models.File, error) {
	folders, err := s.folders.ListByOrgIDs(ctx, orgIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folders")
	}
	normalized := normalizeLabel(query)
	var matched []string
	for i := range folders {
		if normalizeLabel(folders[i].Label()) == normalized {
			matched = append(matched, folders[i].ID)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}
	files, err := s.files.ListByFolderIDs(ctx, matched)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folder files")
	}
	return files, nil
}

func (s *SearchService) searchByCourseLabel(ctx context.Context, orgIDs []string, query string) ([]models.File, error) {
	files, err := s.files.ListByOrgIDs(ctx, orgIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
	}
	normalized := normalizeLabel(query)
	var matched []models.File
	for i := range files {
		if files[i].HasCourse() && normalizeLabel(files[i].CourseLabel()) == normalized {
			matched = append(matched, files[i])
		}
	}
	return matched, nil
}

func (s *SearchService) searchByFileName(ctx context.Context, orgIDs []string, query string) ([]models.File, error) {
	var results []models.File
	for _, token := range strings.Fields(query) {
		files, err := s.files.SearchByName(ctx, orgIDs, token)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search files")
		}
		results = append(results, files...)
	}
	return results, nil
}

// normalizeLabel lowercases and collapses separators so "Fall_2024", "fall
// 2024" and "Fall 2024" compare equal.
func normalizeLabel(raw string) string {
	lowered := strings.ToLower(raw)
	lowered = strings.ReplaceAll(lowered, "_", " ")
	return strings.Join(strings.Fields(lowered), " ")
}
