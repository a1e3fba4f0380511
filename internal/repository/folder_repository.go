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

// FolderRepository provides database access for folders.
type FolderRepository struct {
	db *sqlx.DB
}

// NewFolderRepository creates a new instance of FolderRepository.
func NewFolderRepository(db *sqlx.DB) *FolderRepository {
	return &FolderRepository{db: db}
}

// FindByID returns a folder by identifier.
func (r *FolderRepository) FindByID(ctx context.Context, id string) (*models.Folder, error) {
	const query = `SELECT id, organization_id, top, term, year, created_at FROM folders WHERE id = $1 LIMIT 1`
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find folder by id: %w", err)
	}
	return &folder, nil
}

// GetOrCreate resolves the folder for (organization, term, year) in a single
// statement. Concurrent callers racing on a new term/year all land on the
// same row thanks to the unique constraint; the no-op DO UPDATE makes
// RETURNING yield the winning row for every caller.
func (r *FolderRepository) GetOrCreate(ctx context.Context, orgID string, term models.Term, year int) (*models.Folder, error) {
	const query = `INSERT INTO folders (id, organization_id, top, term, year, created_at)
		VALUES ($1, $2, FALSE, $3, $4, $5)
		ON CONFLICT (organization_id, term, year)
		DO UPDATE SET organization_id = EXCLUDED.organization_id
		RETURNING id, organization_id, top, term, year, created_at`
	var folder models.Folder
	if err := r.db.GetContext(ctx, &folder, query, uuid.NewString(), orgID, term, year, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("get or create folder: %w", err)
	}
	return &folder, nil
}

// ListByOrg returns the organization's dated folders, newest first. The top
// folder is excluded.
func (r *FolderRepository) ListByOrg(ctx context.Context, orgID string) ([]models.Folder, error) {
	const query = `SELECT id, organization_id, top, term, year, created_at FROM folders WHERE organization_id = $1 AND top = FALSE ORDER BY year DESC, term ASC`
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, query, orgID); err != nil {
		return nil, fmt.Errorf("list folders by org: %w", err)
	}
	return folders, nil
}

// ListByOrgIDs returns dated folders for all of the given organizations.
func (r *FolderRepository) ListByOrgIDs(ctx context.Context, orgIDs []string) ([]models.Folder, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, organization_id, top, term, year, created_at FROM folders WHERE organization_id IN (?) AND top = FALSE`, orgIDs)
	if err != nil {
		return nil, fmt.Errorf("build folder list query: %w", err)
	}
	query = r.db.Rebind(query)
	var folders []models.Folder
	if err := r.db.SelectContext(ctx, &folders, query, args...); err != nil {
		return nil, fmt.Errorf("list folders by org ids: %w", err)
	}
	return folders, nil
}
