package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/orghub-api/internal/models"
)

func TestIsMember(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	rows := sqlmock.NewRows([]string{"exists"}).AddRow(true)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM organization_members WHERE organization_id = $1 AND user_id = $2 AND accepted = TRUE)")).
		WithArgs("org-1", "u1").
		WillReturnRows(rows)

	ok, err := repo.IsMember(context.Background(), "u1", "org-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptReportsRowsAffected(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec("UPDATE organization_members SET accepted = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 1))

	affected, err := repo.Accept(context.Background(), "org-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAcceptMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec("UPDATE organization_members SET accepted = TRUE").
		WillReturnResult(sqlmock.NewResult(0, 0))

	affected, err := repo.Accept(context.Background(), "org-1", "u1")
	require.NoError(t, err)
	assert.Zero(t, affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePendingScopedToPendingRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM organization_members WHERE organization_id = $1 AND user_id = $2 AND accepted = FALSE")).
		WithArgs("org-1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeletePending(context.Background(), "org-1", "u1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateMembershipDefaults(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	mock.ExpectExec("INSERT INTO organization_members").WillReturnResult(sqlmock.NewResult(1, 1))

	member := &models.OrganizationMember{OrganizationID: "org-1", UserID: "u2", Rank: 1}
	err := repo.Create(context.Background(), member)
	require.NoError(t, err)
	assert.NotEmpty(t, member.ID)
	assert.False(t, member.InvitedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPendingByUser(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMembershipRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "organization_id", "user_id", "accepted", "rank", "invited_at", "responded_at", "organization_name"}).
		AddRow("m1", "org-1", "u1", false, 1, now, nil, "CS Club")
	mock.ExpectQuery("SELECT m.id, m.organization_id, m.user_id, m.accepted, m.rank, m.invited_at, m.responded_at, o.name AS organization_name").
		WithArgs("u1").
		WillReturnRows(rows)

	invites, err := repo.ListPendingByUser(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, invites, 1)
	assert.Equal(t, "CS Club", invites[0].OrganizationName)
	assert.False(t, invites[0].Accepted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
