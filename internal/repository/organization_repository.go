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

// OrganizationRepository provides database access for organizations.
type OrganizationRepository struct {
	db *sqlx.DB
}

// NewOrganizationRepository creates a new instance of OrganizationRepository.
func NewOrganizationRepository(db *sqlx.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// FindByID returns an organization by identifier.
func (r *OrganizationRepository) FindByID(ctx context.Context, id string) (*models.Organization, error) {
	const query = `SELECT id, name, admin_id, created_at FROM organizations WHERE id = $1 LIMIT 1`
	var org models.Organization
	if err := r.db.GetContext(ctx, &org, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find organization by id: %w", err)
	}
	return &org, nil
}

// CreateWithFounder inserts the organization, its top folder and the founding
// membership in a single transaction so a partially created organization can
// never be observed.
func (r *OrganizationRepository) CreateWithFounder(ctx context.Context, org *models.Organization) (*models.Folder, *models.OrganizationMember, error) {
	if org.ID == "" {
		org.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if org.CreatedAt.IsZero() {
		org.CreatedAt = now
	}

	topFolder := &models.Folder{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		Top:            true,
		CreatedAt:      now,
	}
	founder := &models.OrganizationMember{
		ID:             uuid.NewString(),
		OrganizationID: org.ID,
		UserID:         org.AdminID,
		Accepted:       true,
		Rank:           models.CreatorRank,
		InvitedAt:      now,
		RespondedAt:    &now,
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("begin create organization: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const orgQuery = `INSERT INTO organizations (id, name, admin_id, created_at) VALUES (:id, :name, :admin_id, :created_at)`
	if _, err := tx.NamedExecContext(ctx, orgQuery, org); err != nil {
		return nil, nil, fmt.Errorf("create organization: %w", err)
	}

	const folderQuery = `INSERT INTO folders (id, organization_id, top, term, year, created_at) VALUES (:id, :organization_id, :top, :term, :year, :created_at)`
	if _, err := tx.NamedExecContext(ctx, folderQuery, topFolder); err != nil {
		return nil, nil, fmt.Errorf("create top folder: %w", err)
	}

	const memberQuery = `INSERT INTO organization_members (id, organization_id, user_id, accepted, rank, invited_at, responded_at) VALUES (:id, :organization_id, :user_id, :accepted, :rank, :invited_at, :responded_at)`
	if _, err := tx.NamedExecContext(ctx, memberQuery, founder); err != nil {
		return nil, nil, fmt.Errorf("create founding membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("commit create organization: %w", err)
	}
	return topFolder, founder, nil
}

// ListByMember returns the organizations in which the user holds an accepted
// membership.
func (r *OrganizationRepository) ListByMember(ctx context.Context, userID string) ([]models.Organization, error) {
	const query = `SELECT o.id, o.name, o.admin_id, o.created_at
		FROM organizations o
		JOIN organization_members m ON m.organization_id = o.id
		WHERE m.user_id = $1 AND m.accepted = TRUE
		ORDER BY o.name ASC`
	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, userID); err != nil {
		return nil, fmt.Errorf("list organizations by member: %w", err)
	}
	return orgs, nil
}

// SearchByName returns, among the given organizations, those whose names
// contain the search term (case-insensitive).
func (r *OrganizationRepository) SearchByName(ctx context.Context, orgIDs []string, term string) ([]models.Organization, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, name, admin_id, created_at FROM organizations WHERE id IN (?) AND LOWER(name) LIKE ?`, orgIDs, containsPattern(term))
	if err != nil {
		return nil, fmt.Errorf("build organization search query: %w", err)
	}
	query = r.db.Rebind(query)
	var orgs []models.Organization
	if err := r.db.SelectContext(ctx, &orgs, query, args...); err != nil {
		return nil, fmt.Errorf("search organizations by name: %w", err)
	}
	return orgs, nil
}
