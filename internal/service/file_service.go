package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/orghub-api/internal/models"
	appErrors "github.com/noah-isme/orghub-api/pkg/errors"
	"github.com/noah-isme/orghub-api/pkg/storage"
)

// classDateLayout is the accepted class date input format, e.g. "9/1/2026".
const classDateLayout = "1/2/2006"

type fileRepository interface {
	Create(ctx context.Context, file *models.File) error
	FindByID(ctx context.Context, id string) (*models.File, error)
	ListByFolder(ctx context.Context, folderID string) ([]models.File, error)
	Delete(ctx context.Context, id string) error
}

type fileFolderRepository interface {
	FindByID(ctx context.Context, id string) (*models.Folder, error)
	GetOrCreate(ctx context.Context, orgID string, term models.Term, year int) (*models.Folder, error)
}

type fileStorage interface {
	TermPath(orgID, term string, year int) (string, error)
	CoursePath(orgID, term string, year int, courseTag, courseID string) (string, error)
	SaveStream(relPath string, r io.Reader) (string, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

// FileService manages uploads, folder views and signed downloads.
type FileService struct {
	files       fileRepository
	folders     fileFolderRepository
	store       fileStorage
	signer      *storage.SignedURLSigner
	allowedExts map[string]struct{}
	maxSize     int64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewFileService constructs a FileService instance.
func NewFileService(
	files fileRepository,
	folders fileFolderRepository,
	store fileStorage,
	signer *storage.SignedURLSigner,
	allowedExtensions []string,
	maxFileSizeBytes int64,
	validate *validator.Validate,
	logger *zap.Logger,
) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	exts := make(map[string]struct{}, len(allowedExtensions))
	for _, ext := range allowedExtensions {
		exts[strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))] = struct{}{}
	}
	return &FileService{
		files:       files,
		folders:     folders,
		store:       store,
		signer:      signer,
		allowedExts: exts,
		maxSize:     maxFileSizeBytes,
		validator:   validate,
		logger:      logger,
	}
}

// Upload stores the uploaded stream under the resolved folder directory and
// records its metadata. The disk write happens first; if the metadata insert
// fails afterwards the stored file is removed so neither side leaks.
func (s *FileService) Upload(ctx context.Context, orgID, authorID string, req models.UploadFileRequest, filename string, size int64, r io.Reader) (*models.File, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid upload payload")
	}

	term := models.Term(req.Term)
	if !term.IsValid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "term must be one of Fall, Winter, Spring, Summer")
	}
	if (req.CourseTag == "") != (req.CourseID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "course tag and course number must be provided together")
	}

	var classDate *time.Time
	if req.ClassDate != "" {
		parsed, err := time.Parse(classDateLayout, req.ClassDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "class date must look like 9/1/2026")
		}
		classDate = &parsed
	}

	if s.maxSize > 0 && size > s.maxSize {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("file exceeds the %d byte limit", s.maxSize))
	}

	cleanName, err := storage.SanitizeFilename(filename)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file name is not usable")
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(cleanName), "."))
	if _, ok := s.allowedExts[ext]; !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type ."+ext+" is not allowed")
	}

	folder, err := s.folders.GetOrCreate(ctx, orgID, term, req.Year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve folder")
	}

	file := &models.File{
		ID:             uuid.NewString(),
		FileName:       cleanName,
		AuthorID:       authorID,
		OrganizationID: orgID,
		FolderID:       folder.ID,
		ClassDate:      classDate,
	}
	if req.CourseTag != "" {
		tag := strings.ToUpper(strings.TrimSpace(req.CourseTag))
		id := strings.TrimSpace(req.CourseID)
		file.CourseTag = &tag
		file.CourseID = &id
	}

	relPath, err := s.relPathFor(file, folder)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "could not derive a storage path for this upload")
	}

	if _, err := s.store.SaveStream(relPath, r); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store uploaded file")
	}

	if err := s.files.Create(ctx, file); err != nil {
		if removeErr := s.store.Delete(relPath); removeErr != nil {
			s.logger.Error("failed to remove orphaned upload", zap.String("path", relPath), zap.Error(removeErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record uploaded file")
	}

	s.logger.Info("file uploaded",
		zap.String("file_id", file.ID),
		zap.String("organization_id", orgID),
		zap.String("folder_id", folder.ID),
		zap.String("file_name", cleanName))
	return file, nil
}

// FolderView returns the folder, its files and the distinct course folder
// labels derived from course-scoped files.
func (s *FileService) FolderView(ctx context.Context, orgID, folderID string) (*models.FolderView, error) {
	folder, err := s.loadFolder(ctx, orgID, folderID)
	if err != nil {
		return nil, err
	}

	files, err := s.files.ListByFolder(ctx, folderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folder files")
	}

	seen := make(map[string]struct{})
	var courses []string
	var loose []models.File
	for _, f := range files {
		if !f.HasCourse() {
			loose = append(loose, f)
			continue
		}
		label := f.CourseLabel()
		if _, ok := seen[label]; !ok {
			seen[label] = struct{}{}
			courses = append(courses, label)
		}
	}
	sort.Strings(courses)

	return &models.FolderView{Folder: *folder, Files: loose, CourseFolders: courses}, nil
}

// CourseFiles returns the files of a folder scoped to one course.
func (s *FileService) CourseFiles(ctx context.Context, orgID, folderID, courseTag, courseID string) ([]models.File, error) {
	if _, err := s.loadFolder(ctx, orgID, folderID); err != nil {
		return nil, err
	}

	files, err := s.files.ListByFolder(ctx, folderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folder files")
	}

	tag := strings.ToUpper(strings.TrimSpace(courseTag))
	id := strings.TrimSpace(courseID)
	var matched []models.File
	for _, f := range files {
		if f.HasCourse() && *f.CourseTag == tag && *f.CourseID == id {
			matched = append(matched, f)
		}
	}
	return matched, nil
}

// IssueDownloadLink returns a signed, expiring download reference for a file
// belonging to the organization.
func (s *FileService) IssueDownloadLink(ctx context.Context, orgID, fileID string) (*models.DownloadLink, error) {
	file, err := s.loadFile(ctx, orgID, fileID)
	if err != nil {
		return nil, err
	}
	folder, err := s.folders.FindByID(ctx, file.FolderID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}

	relPath, err := s.relPathFor(file, folder)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to derive file path")
	}

	token, expiresAt, err := s.signer.Generate(file.ID, relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}

	return &models.DownloadLink{
		FileID:    file.ID,
		URL:       "/api/v1/downloads/" + token,
		ExpiresAt: expiresAt,
	}, nil
}

// Download validates the signed token and opens the referenced file.
func (s *FileService) Download(ctx context.Context, token string) (*models.File, *os.File, error) {
	fileID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "download link is invalid or expired")
	}

	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}

	handle, err := s.store.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "stored file is missing")
	}
	return file, handle, nil
}

// Delete removes a file's metadata and payload. Only the uploader or the
// organization admin may delete; the caller enforces that.
func (s *FileService) Delete(ctx context.Context, orgID, fileID string) error {
	file, err := s.loadFile(ctx, orgID, fileID)
	if err != nil {
		return err
	}
	folder, err := s.folders.FindByID(ctx, file.FolderID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}

	if err := s.files.Delete(ctx, fileID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete file record")
	}

	relPath, err := s.relPathFor(file, folder)
	if err == nil {
		if removeErr := s.store.Delete(relPath); removeErr != nil {
			s.logger.Warn("failed to delete stored file", zap.String("path", relPath), zap.Error(removeErr))
		}
	}
	return nil
}

// GetFile returns a file scoped to the organization.
func (s *FileService) GetFile(ctx context.Context, orgID, fileID string) (*models.File, error) {
	return s.loadFile(ctx, orgID, fileID)
}

func (s *FileService) loadFile(ctx context.Context, orgID, fileID string) (*models.File, error) {
	file, err := s.files.FindByID(ctx, fileID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load file")
	}
	if file.OrganizationID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
	}
	return file, nil
}

func (s *FileService) loadFolder(ctx context.Context, orgID, folderID string) (*models.Folder, error) {
	folder, err := s.folders.FindByID(ctx, folderID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load folder")
	}
	if folder.OrganizationID != orgID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
	}
	return folder, nil
}

func (s *FileService) relPathFor(file *models.File, folder *models.Folder) (string, error) {
	if folder.Term == nil || folder.Year == nil {
		return "", fmt.Errorf("folder %s has no term scope", folder.ID)
	}
	var dir string
	var err error
	if file.HasCourse() {
		dir, err = s.store.CoursePath(folder.OrganizationID, string(*folder.Term), *folder.Year, *file.CourseTag, *file.CourseID)
	} else {
		dir, err = s.store.TermPath(folder.OrganizationID, string(*folder.Term), *folder.Year)
	}
	if err != nil {
		return "", err
	}
	// The record id prefixes the stored name so two uploads with the same
	// file name in one folder do not share a disk path.
	return dir + file.ID + "_" + file.FileName, nil
}
