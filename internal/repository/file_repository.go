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

const fileColumns = `id, file_name, author_id, organization_id, folder_id, course_tag, course_id, class_date, uploaded_at`

// FileRepository provides database access for file metadata.
type FileRepository struct {
	db *sqlx.DB
}

// NewFileRepository creates a new instance of FileRepository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

// Create inserts a file metadata record.
func (r *FileRepository) Create(ctx context.Context, file *models.File) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	if file.UploadedAt.IsZero() {
		file.UploadedAt = time.Now().UTC()
	}
	const query = `INSERT INTO files (id, file_name, author_id, organization_id, folder_id, course_tag, course_id, class_date, uploaded_at) VALUES (:id, :file_name, :author_id, :organization_id, :folder_id, :course_tag, :course_id, :class_date, :uploaded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// FindByID returns a file by identifier.
func (r *FileRepository) FindByID(ctx context.Context, id string) (*models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE id = $1 LIMIT 1`, fileColumns)
	var file models.File
	if err := r.db.GetContext(ctx, &file, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find file by id: %w", err)
	}
	return &file, nil
}

// ListByOrg returns the organization's files, newest upload first.
func (r *FileRepository) ListByOrg(ctx context.Context, orgID string) ([]models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE organization_id = $1 ORDER BY uploaded_at DESC`, fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, orgID); err != nil {
		return nil, fmt.Errorf("list files by org: %w", err)
	}
	return files, nil
}

// ListRecentByOrg returns the most recent uploads for an organization.
func (r *FileRepository) ListRecentByOrg(ctx context.Context, orgID string, limit int) ([]models.File, error) {
	if limit <= 0 {
		limit = 5
	}
	query := fmt.Sprintf(`SELECT %s FROM files WHERE organization_id = $1 ORDER BY uploaded_at DESC LIMIT $2`, fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, orgID, limit); err != nil {
		return nil, fmt.Errorf("list recent files: %w", err)
	}
	return files, nil
}

// ListByFolder returns the files stored in a folder, newest upload first.
func (r *FileRepository) ListByFolder(ctx context.Context, folderID string) ([]models.File, error) {
	query := fmt.Sprintf(`SELECT %s FROM files WHERE folder_id = $1 ORDER BY uploaded_at DESC`, fileColumns)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, folderID); err != nil {
		return nil, fmt.Errorf("list files by folder: %w", err)
	}
	return files, nil
}

// ListByFolderIDs returns the files of all given folders.
func (r *FileRepository) ListByFolderIDs(ctx context.Context, folderIDs []string) ([]models.File, error) {
	if len(folderIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM files WHERE folder_id IN (?)`, fileColumns), folderIDs)
	if err != nil {
		return nil, fmt.Errorf("build folder files query: %w", err)
	}
	query = r.db.Rebind(query)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("list files by folder ids: %w", err)
	}
	return files, nil
}

// ListByOrgIDs returns all files across the given organizations.
func (r *FileRepository) ListByOrgIDs(ctx context.Context, orgIDs []string) ([]models.File, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM files WHERE organization_id IN (?)`, fileColumns), orgIDs)
	if err != nil {
		return nil, fmt.Errorf("build org files query: %w", err)
	}
	query = r.db.Rebind(query)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("list files by org ids: %w", err)
	}
	return files, nil
}

// SearchByName returns files within the given organizations whose names
// contain the token (case-insensitive).
func (r *FileRepository) SearchByName(ctx context.Context, orgIDs []string, token string) ([]models.File, error) {
	if len(orgIDs) == 0 || token == "" {
		return nil, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT %s FROM files WHERE organization_id IN (?) AND LOWER(file_name) LIKE ?`, fileColumns), orgIDs, containsPattern(token))
	if err != nil {
		return nil, fmt.Errorf("build file search query: %w", err)
	}
	query = r.db.Rebind(query)
	var files []models.File
	if err := r.db.SelectContext(ctx, &files, query, args...); err != nil {
		return nil, fmt.Errorf("search files by name: %w", err)
	}
	return files, nil
}

// Delete removes a file record. Used to roll back metadata when the disk
// write could not complete.
func (r *FileRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM files WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}
