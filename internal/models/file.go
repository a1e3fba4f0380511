package models

import (
	"fmt"
	"time"
)

// File is the metadata record for an uploaded document. The physical payload
// lives on disk at the path derived from its folder and course scope.
type File struct {
	ID             string     `db:"id" json:"id"`
	FileName       string     `db:"file_name" json:"file_name"`
	AuthorID       string     `db:"author_id" json:"author_id"`
	OrganizationID string     `db:"organization_id" json:"organization_id"`
	FolderID       string     `db:"folder_id" json:"folder_id"`
	CourseTag      *string    `db:"course_tag" json:"course_tag,omitempty"`
	CourseID       *string    `db:"course_id" json:"course_id,omitempty"`
	ClassDate      *time.Time `db:"class_date" json:"class_date,omitempty"`
	UploadedAt     time.Time  `db:"uploaded_at" json:"uploaded_at"`
}

// HasCourse reports whether the file carries a course scope. The schema
// guarantees tag and id are either both present or both absent.
func (f *File) HasCourse() bool {
	return f.CourseTag != nil && f.CourseID != nil
}

// CourseLabel returns the course folder display name, e.g. "CS 101".
func (f *File) CourseLabel() string {
	if !f.HasCourse() {
		return ""
	}
	return fmt.Sprintf("%s %s", *f.CourseTag, *f.CourseID)
}

// UploadFileRequest carries the multipart metadata fields for an upload.
type UploadFileRequest struct {
	Term      string `form:"term" validate:"required"`
	Year      int    `form:"year" validate:"required,min=1850"`
	CourseTag string `form:"course_tag" validate:"omitempty,max=6"`
	CourseID  string `form:"course_id" validate:"omitempty,max=8"`
	ClassDate string `form:"class_date" validate:"omitempty"`
}

// DownloadLink is the issued signed download reference for a file.
type DownloadLink struct {
	FileID    string    `json:"file_id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
