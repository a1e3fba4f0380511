package models

import "time"

// Organization represents a student organization with one admin and many members.
type Organization struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	AdminID   string    `db:"admin_id" json:"admin_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// CreatorRank is assigned to the founding member of an organization.
const CreatorRank = 100

// OrganizationMember is the (organization, user) relationship record. A row
// with accepted=false is a pending invitation.
type OrganizationMember struct {
	ID             string     `db:"id" json:"id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	UserID         string     `db:"user_id" json:"user_id"`
	Accepted       bool       `db:"accepted" json:"accepted"`
	Rank           int        `db:"rank" json:"rank"`
	InvitedAt      time.Time  `db:"invited_at" json:"invited_at"`
	RespondedAt    *time.Time `db:"responded_at" json:"responded_at,omitempty"`
}

// MemberDetail joins a membership row with the member's user record.
type MemberDetail struct {
	OrganizationMember
	Username string `db:"username" json:"username"`
	FullName string `db:"full_name" json:"full_name"`
}

// Invite describes a pending invitation together with the organization name.
type Invite struct {
	OrganizationMember
	OrganizationName string `db:"organization_name" json:"organization_name"`
}

// CreateOrganizationRequest is the payload for creating an organization.
type CreateOrganizationRequest struct {
	Name string `json:"name" validate:"required,min=2,max=255"`
}

// InviteMemberRequest invites a user into an organization by username.
type InviteMemberRequest struct {
	Username string `json:"username" validate:"required"`
	Rank     int    `json:"rank" validate:"omitempty,min=1,max=99"`
}

// OrganizationView is the membership-gated organization home payload.
type OrganizationView struct {
	Organization Organization   `json:"organization"`
	Members      []MemberDetail `json:"members"`
	RecentFiles  []File         `json:"recent_files"`
	Folders      []Folder       `json:"folders"`
}

// MyOrganizations splits the caller's organizations by admin role.
type MyOrganizations struct {
	Admin  []Organization `json:"admin"`
	Member []Organization `json:"member"`
}
